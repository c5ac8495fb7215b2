// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package vm

import (
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	framesMax  = 64
	uint8Count = 256
	stackMax   = framesMax * uint8Count
)

// InterpretResult is the outcome of running a chunk, matching clox's
// InterpretResult enum.
type InterpretResult int

const (
	InterpretOK InterpretResult = iota
	InterpretCompileError
	InterpretRuntimeError
)

// ErrRuntime is wrapped by every runtime fault the VM reports, so callers
// can distinguish a Lox runtime error from a host-side failure with
// errors.Is(err, vm.ErrRuntime).
var ErrRuntime = errors.New("runtime error")

// CallFrame is one activation record: the closure being executed, the
// instruction pointer into its chunk, and the base stack slot its locals
// start at.
type CallFrame struct {
	Closure *ObjClosure
	IP      int
	Slots   int
}

// VM is one instance of the bytecode interpreter: the call-frame stack,
// the value stack, globals, the string-intern table, and the
// garbage-collected heap.
type VM struct {
	frames     [framesMax]CallFrame
	frameCount int

	stack    [stackMax]Value
	stackTop int

	Globals *Table
	strings *Table

	openUpvalues *ObjUpvalue
	objects      Obj

	grayStack      []Obj
	bytesAllocated int64
	nextGC         int64

	initString *ObjString

	Out io.Writer

	// compilerRoots, when set, is invoked during every collection so the
	// compiler's in-progress function objects (reachable only through its
	// own funcCompiler chain, not through anything the VM knows about)
	// survive a collection triggered mid-compilation. Mirrors
	// markCompilerRoots in memory.c.
	compilerRoots func(*VM)

	// externalRoots are invoked on every collection alongside the VM's own
	// roots, for callers outside this package that hold long-lived
	// references to heap objects the VM has no other way to discover —
	// unlike compilerRoots these persist for the VM's whole lifetime, not
	// just one compile (e.g. a compiled-function cache keyed by source).
	externalRoots []func(*VM)
}

// SetCompilerRootsHook installs fn as the collector's extra root source
// for the duration of a compile. Call with nil to clear it once
// compilation finishes.
func (vm *VM) SetCompilerRootsHook(fn func(*VM)) {
	vm.compilerRoots = fn
}

// AddRootSource registers fn to run on every future collection in
// addition to the VM's own roots. Use for long-lived external state that
// holds VM objects (such as a compile cache) so they survive a collection
// even when nothing on the stack currently references them.
func (vm *VM) AddRootSource(fn func(*VM)) {
	vm.externalRoots = append(vm.externalRoots, fn)
}

// MarkExternalRoot marks o as reachable. Exposed for callers outside this
// package (the compiler) that hold object references the VM itself has
// no other way to discover.
func (vm *VM) MarkExternalRoot(o Obj) {
	vm.markObject(o)
}

// New returns a VM with empty globals, a fresh intern table, and stdout
// as the destination for `print`.
func New() *VM {
	vm := &VM{
		Globals: NewTable(),
		strings: NewTable(),
		Out:     os.Stdout,
		nextGC:  1024 * 1024,
	}
	vm.initString = vm.InternString("init")
	return vm
}

func (vm *VM) push(v Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) Value {
	return vm.stack[vm.stackTop-1-distance]
}

func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
}

// runtimeError formats a message with the conventional Lox runtime-error
// trailer: the source line of the faulting instruction followed by a
// stack trace of every active call frame, innermost first.
func (vm *VM) runtimeError(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)

	var trace string
	for i := vm.frameCount - 1; i >= 0; i-- {
		frame := &vm.frames[i]
		fn := frame.Closure.Function
		line := 0
		if frame.IP-1 >= 0 && frame.IP-1 < len(fn.Chunk.Lines) {
			line = fn.Chunk.Lines[frame.IP-1]
		}
		name := "script"
		if fn.Name != nil {
			name = fn.Name.Chars + "()"
		}
		trace += fmt.Sprintf("[line %d] in %s\n", line, name)
	}

	vm.resetStack()
	return fmt.Errorf("%w: %s\n%s", ErrRuntime, msg, trace)
}

// Run executes fn as the top-level script and returns once it returns or
// a runtime error occurs.
func (vm *VM) Run(fn *ObjFunction) (InterpretResult, error) {
	vm.push(ObjVal(fn))
	closure := vm.NewClosure(fn)
	vm.pop()
	vm.push(ObjVal(closure))
	if _, err := vm.call(closure, 0); err != nil {
		return InterpretRuntimeError, err
	}
	return vm.run()
}

func (vm *VM) run() (InterpretResult, error) {
	frame := &vm.frames[vm.frameCount-1]

	readByte := func() byte {
		b := frame.Closure.Function.Chunk.Code[frame.IP]
		frame.IP++
		return b
	}
	readShort := func() int {
		hi := readByte()
		lo := readByte()
		return int(hi)<<8 | int(lo)
	}
	readConstant := func() Value {
		return frame.Closure.Function.Chunk.Constants[readByte()]
	}
	readString := func() *ObjString {
		return readConstant().AsString()
	}

	for {
		op := OpCode(readByte())
		switch op {
		case OpConstant:
			vm.push(readConstant())

		case OpNil:
			vm.push(Nil)
		case OpTrue:
			vm.push(BoolVal(true))
		case OpFalse:
			vm.push(BoolVal(false))
		case OpPop:
			vm.pop()

		case OpGetLocal:
			slot := readByte()
			vm.push(vm.stack[frame.Slots+int(slot)])
		case OpSetLocal:
			slot := readByte()
			vm.stack[frame.Slots+int(slot)] = vm.peek(0)

		case OpGetGlobal:
			name := readString()
			v, ok := vm.Globals.Get(name)
			if !ok {
				return InterpretRuntimeError, vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}
			vm.push(v)
		case OpDefineGlobal:
			name := readString()
			vm.Globals.Set(name, vm.peek(0))
			vm.pop()
		case OpSetGlobal:
			name := readString()
			if vm.Globals.Set(name, vm.peek(0)) {
				vm.Globals.Delete(name)
				return InterpretRuntimeError, vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}

		case OpGetUpvalue:
			slot := readByte()
			vm.push(*frame.Closure.Upvalues[slot].Location)
		case OpSetUpvalue:
			slot := readByte()
			*frame.Closure.Upvalues[slot].Location = vm.peek(0)

		case OpGetProperty:
			if !vm.peek(0).IsInstance() {
				return InterpretRuntimeError, vm.runtimeError("Only instances have properties.")
			}
			inst := vm.peek(0).AsInstance()
			name := readString()
			if v, ok := inst.Fields.Get(name); ok {
				vm.pop()
				vm.push(v)
				break
			}
			if !vm.bindMethod(inst.Class, name) {
				return InterpretRuntimeError, vm.runtimeError("Undefined property '%s'.", name.Chars)
			}

		case OpSetProperty:
			if !vm.peek(1).IsInstance() {
				return InterpretRuntimeError, vm.runtimeError("Only instances have fields.")
			}
			inst := vm.peek(1).AsInstance()
			name := readString()
			inst.Fields.Set(name, vm.peek(0))
			v := vm.pop()
			vm.pop()
			vm.push(v)

		case OpGetSuper:
			name := readString()
			superclass := vm.pop().AsClass()
			if !vm.bindMethod(superclass, name) {
				return InterpretRuntimeError, vm.runtimeError("Undefined property '%s'.", name.Chars)
			}

		case OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(BoolVal(Equal(a, b)))
		case OpGreater:
			res, err := vm.binaryCompare(func(a, b float64) bool { return a > b })
			if err != nil {
				return InterpretRuntimeError, err
			}
			vm.push(res)
		case OpLess:
			res, err := vm.binaryCompare(func(a, b float64) bool { return a < b })
			if err != nil {
				return InterpretRuntimeError, err
			}
			vm.push(res)

		case OpAdd:
			if err := vm.add(); err != nil {
				return InterpretRuntimeError, err
			}
		case OpSubtract:
			if err := vm.numericBinary(func(a, b float64) float64 { return a - b }); err != nil {
				return InterpretRuntimeError, err
			}
		case OpMultiply:
			if err := vm.numericBinary(func(a, b float64) float64 { return a * b }); err != nil {
				return InterpretRuntimeError, err
			}
		case OpDivide:
			if err := vm.numericBinary(func(a, b float64) float64 { return a / b }); err != nil {
				return InterpretRuntimeError, err
			}
		case OpNot:
			vm.push(BoolVal(vm.pop().IsFalsey()))
		case OpNegate:
			if !vm.peek(0).IsNumber() {
				return InterpretRuntimeError, vm.runtimeError("Operand must be a number.")
			}
			vm.push(NumberVal(-vm.pop().AsNumber()))

		case OpPrint:
			fmt.Fprintln(vm.Out, Print(vm.pop()))

		case OpJump:
			offset := readShort()
			frame.IP += offset
		case OpJumpIfFalse:
			offset := readShort()
			if vm.peek(0).IsFalsey() {
				frame.IP += offset
			}
		case OpLoop:
			offset := readShort()
			frame.IP -= offset

		case OpCall:
			argCount := int(readByte())
			if _, err := vm.callValue(vm.peek(argCount), argCount); err != nil {
				return InterpretRuntimeError, err
			}
			frame = &vm.frames[vm.frameCount-1]

		case OpInvoke:
			method := readString()
			argCount := int(readByte())
			if err := vm.invoke(method, argCount); err != nil {
				return InterpretRuntimeError, err
			}
			frame = &vm.frames[vm.frameCount-1]

		case OpSuperInvoke:
			method := readString()
			argCount := int(readByte())
			superclass := vm.pop().AsClass()
			if err := vm.invokeFromClass(superclass, method, argCount); err != nil {
				return InterpretRuntimeError, err
			}
			frame = &vm.frames[vm.frameCount-1]

		case OpClosure:
			fn := readConstant().AsFunction()
			closure := vm.NewClosure(fn)
			vm.push(ObjVal(closure))
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := readByte()
				index := readByte()
				if isLocal != 0 {
					closure.Upvalues[i] = vm.captureUpvalue(frame.Slots + int(index))
				} else {
					closure.Upvalues[i] = frame.Closure.Upvalues[index]
				}
			}

		case OpCloseUpvalue:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.pop()

		case OpReturn:
			result := vm.pop()
			vm.closeUpvalues(frame.Slots)
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop()
				return InterpretOK, nil
			}
			vm.stackTop = frame.Slots
			vm.push(result)
			frame = &vm.frames[vm.frameCount-1]

		case OpClass:
			vm.push(ObjVal(vm.NewClass(readString())))

		case OpInherit:
			superVal := vm.peek(1)
			if !superVal.IsClass() {
				return InterpretRuntimeError, vm.runtimeError("Superclass must be a class.")
			}
			subclass := vm.peek(0).AsClass()
			subclass.Methods.AddAll(superVal.AsClass().Methods)
			vm.pop()

		case OpMethod:
			vm.defineMethod(readString())

		default:
			return InterpretRuntimeError, vm.runtimeError("Unknown opcode %d.", op)
		}
	}
}

func (vm *VM) binaryCompare(cmp func(a, b float64) bool) (Value, error) {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return Nil, vm.runtimeError("Operands must be numbers.")
	}
	b := vm.pop().AsNumber()
	a := vm.pop().AsNumber()
	return BoolVal(cmp(a, b)), nil
}

func (vm *VM) numericBinary(op func(a, b float64) float64) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	b := vm.pop().AsNumber()
	a := vm.pop().AsNumber()
	vm.push(NumberVal(op(a, b)))
	return nil
}

func (vm *VM) add() error {
	switch {
	case vm.peek(0).IsString() && vm.peek(1).IsString():
		b := vm.pop().AsString()
		a := vm.pop().AsString()
		vm.push(ObjVal(vm.InternString(a.Chars + b.Chars)))
		return nil
	case vm.peek(0).IsNumber() && vm.peek(1).IsNumber():
		b := vm.pop().AsNumber()
		a := vm.pop().AsNumber()
		vm.push(NumberVal(a + b))
		return nil
	default:
		return vm.runtimeError("Operands must be two numbers or two strings.")
	}
}

func (vm *VM) callValue(callee Value, argCount int) (bool, error) {
	if callee.IsObj() {
		switch callee.AsObj().Kind() {
		case ObjKindBoundMethod:
			bound := callee.AsBoundMethod()
			vm.stack[vm.stackTop-argCount-1] = bound.Receiver
			return vm.call(bound.Method, argCount)
		case ObjKindClass:
			class := callee.AsClass()
			vm.stack[vm.stackTop-argCount-1] = ObjVal(vm.NewInstance(class))
			if init, ok := class.Methods.Get(vm.initString); ok {
				return vm.call(init.AsClosure(), argCount)
			} else if argCount != 0 {
				return false, vm.runtimeError("Expected 0 arguments but got %d.", argCount)
			}
			return true, nil
		case ObjKindClosure:
			return vm.call(callee.AsClosure(), argCount)
		case ObjKindNative:
			native := callee.AsObj().(*ObjNative)
			args := vm.stack[vm.stackTop-argCount : vm.stackTop]
			result, err := native.Function(args)
			if err != nil {
				return false, vm.runtimeError("%s", err.Error())
			}
			vm.stackTop -= argCount + 1
			vm.push(result)
			return true, nil
		}
	}
	return false, vm.runtimeError("Can only call functions and classes.")
}

func (vm *VM) call(closure *ObjClosure, argCount int) (bool, error) {
	if argCount != closure.Function.Arity {
		return false, vm.runtimeError("Expected %d arguments but got %d.", closure.Function.Arity, argCount)
	}
	if vm.frameCount == framesMax {
		return false, vm.runtimeError("Stack overflow.")
	}
	frame := &vm.frames[vm.frameCount]
	vm.frameCount++
	frame.Closure = closure
	frame.IP = 0
	frame.Slots = vm.stackTop - argCount - 1
	return true, nil
}

func (vm *VM) invoke(name *ObjString, argCount int) error {
	receiver := vm.peek(argCount)
	if !receiver.IsInstance() {
		return vm.runtimeError("Only instances have methods.")
	}
	inst := receiver.AsInstance()
	if v, ok := inst.Fields.Get(name); ok {
		vm.stack[vm.stackTop-argCount-1] = v
		_, err := vm.callValue(v, argCount)
		return err
	}
	return vm.invokeFromClass(inst.Class, name, argCount)
}

func (vm *VM) invokeFromClass(class *ObjClass, name *ObjString, argCount int) error {
	method, ok := class.Methods.Get(name)
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name.Chars)
	}
	_, err := vm.call(method.AsClosure(), argCount)
	return err
}

func (vm *VM) bindMethod(class *ObjClass, name *ObjString) bool {
	method, ok := class.Methods.Get(name)
	if !ok {
		return false
	}
	bound := &ObjBoundMethod{Receiver: vm.peek(0), Method: method.AsClosure()}
	vm.track(bound)
	vm.pop()
	vm.push(ObjVal(bound))
	return true
}

// captureUpvalue returns the open upvalue for the given stack slot,
// reusing one if a closure already captured that slot, otherwise
// allocating and linking in a new one. The open list is kept sorted by
// descending slot so both this walk and closeUpvalues terminate early.
func (vm *VM) captureUpvalue(slot int) *ObjUpvalue {
	var prev *ObjUpvalue
	up := vm.openUpvalues
	for up != nil && up.OpenSlot > slot {
		prev = up
		up = up.NextOpen
	}
	if up != nil && up.OpenSlot == slot {
		return up
	}

	created := &ObjUpvalue{Location: &vm.stack[slot], OpenSlot: slot}
	vm.track(created)
	created.NextOpen = up
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.NextOpen = created
	}
	return created
}

// closeUpvalues hoists every open upvalue at or above fromSlot onto its
// own Closed field, severing it from the stack before those slots are
// discarded (by a block exit or a function return).
func (vm *VM) closeUpvalues(fromSlot int) {
	for vm.openUpvalues != nil && vm.openUpvalues.OpenSlot >= fromSlot {
		up := vm.openUpvalues
		up.Closed = *up.Location
		up.Location = &up.Closed
		vm.openUpvalues = up.NextOpen
	}
}

func (vm *VM) defineMethod(name *ObjString) {
	method := vm.peek(0)
	class := vm.peek(1).AsClass()
	class.Methods.Set(name, method)
	vm.pop()
}
