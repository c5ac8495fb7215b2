// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package vm

import (
	"fmt"
	"io"

	"github.com/davecgh/go-spew/spew"
	"github.com/olekukonko/tablewriter"
)

// Disassemble renders every instruction in chunk as a table of
// offset/line/opcode/operand columns, the tabular equivalent of
// debug.c's disassembleChunk.
func Disassemble(w io.Writer, chunk *Chunk, name string) {
	fmt.Fprintf(w, "== %s ==\n", name)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"OFFSET", "LINE", "OPCODE", "OPERANDS"})
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	offset := 0
	for offset < len(chunk.Code) {
		row, next := disassembleInstruction(chunk, offset)
		table.Append(row)
		offset = next
	}
	table.Render()
}

func disassembleInstruction(chunk *Chunk, offset int) ([]string, int) {
	lineCol := fmt.Sprintf("%d", chunk.Lines[offset])
	if offset > 0 && chunk.Lines[offset] == chunk.Lines[offset-1] {
		lineCol = "|"
	}
	offsetCol := fmt.Sprintf("%04d", offset)

	op := OpCode(chunk.Code[offset])
	switch op {
	case OpNil, OpTrue, OpFalse, OpPop, OpEqual, OpGreater, OpLess, OpAdd,
		OpSubtract, OpMultiply, OpDivide, OpNot, OpNegate, OpPrint,
		OpCloseUpvalue, OpReturn, OpInherit:
		return []string{offsetCol, lineCol, op.String(), ""}, offset + 1

	case OpConstant, OpGetGlobal, OpDefineGlobal, OpSetGlobal, OpClass,
		OpGetProperty, OpSetProperty, OpMethod, OpGetSuper:
		idx := chunk.Code[offset+1]
		return []string{offsetCol, lineCol, op.String(),
			fmt.Sprintf("%d '%s'", idx, Print(chunk.Constants[idx]))}, offset + 2

	case OpGetLocal, OpSetLocal, OpGetUpvalue, OpSetUpvalue, OpCall:
		slot := chunk.Code[offset+1]
		return []string{offsetCol, lineCol, op.String(), fmt.Sprintf("%d", slot)}, offset + 2

	case OpJump, OpJumpIfFalse:
		jump := int(chunk.Code[offset+1])<<8 | int(chunk.Code[offset+2])
		return []string{offsetCol, lineCol, op.String(),
			fmt.Sprintf("%d -> %d", offset, offset+3+jump)}, offset + 3

	case OpLoop:
		jump := int(chunk.Code[offset+1])<<8 | int(chunk.Code[offset+2])
		return []string{offsetCol, lineCol, op.String(),
			fmt.Sprintf("%d -> %d", offset, offset+3-jump)}, offset + 3

	case OpInvoke, OpSuperInvoke:
		idx := chunk.Code[offset+1]
		argCount := chunk.Code[offset+2]
		return []string{offsetCol, lineCol, op.String(),
			fmt.Sprintf("(%d args) %d '%s'", argCount, idx, Print(chunk.Constants[idx]))}, offset + 3

	case OpClosure:
		idx := chunk.Code[offset+1]
		next := offset + 2
		fn := chunk.Constants[idx].AsFunction()
		operand := fmt.Sprintf("%d '%s'", idx, Print(chunk.Constants[idx]))
		for i := 0; i < fn.UpvalueCount; i++ {
			isLocal := chunk.Code[next]
			index := chunk.Code[next+1]
			kind := "upvalue"
			if isLocal != 0 {
				kind = "local"
			}
			operand += fmt.Sprintf(" | %s %d", kind, index)
			next += 2
		}
		return []string{offsetCol, lineCol, op.String(), operand}, next

	default:
		return []string{offsetCol, lineCol, fmt.Sprintf("unknown opcode %d", op), ""}, offset + 1
	}
}

// Trace renders a single in-flight instruction plus the current value
// stack to w, an optional execution tracer in the spirit of clox's
// DEBUG_TRACE_EXECUTION. Stack values are dumped with go-spew so nested
// object values are legible instead of opaque pointers.
func Trace(w io.Writer, vm *VM) {
	if vm.frameCount == 0 {
		return
	}
	frame := &vm.frames[vm.frameCount-1]
	fmt.Fprint(w, "          ")
	for i := 0; i < vm.stackTop; i++ {
		fmt.Fprintf(w, "[ %s ]", spew.Sdump(vm.stack[i]))
	}
	fmt.Fprintln(w)
	row, _ := disassembleInstruction(frame.Closure.Function.Chunk, frame.IP)
	fmt.Fprintln(w, row)
}
