// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package vm

// OpCode is a single bytecode instruction's opcode byte. The set and
// operand shapes match coreLox's chunk.h OpCode enum exactly.
type OpCode byte

const (
	OpConstant OpCode = iota
	OpNil
	OpTrue
	OpFalse
	OpPop
	OpGetLocal
	OpSetLocal
	OpGetProperty
	OpSetProperty
	OpGetUpvalue
	OpSetUpvalue
	OpGetSuper
	OpGetGlobal
	OpSetGlobal
	OpDefineGlobal
	OpEqual
	OpGreater
	OpLess
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpNot
	OpNegate
	OpPrint
	OpJump
	OpJumpIfFalse
	OpLoop
	OpCall
	OpInvoke
	OpSuperInvoke
	OpClosure
	OpCloseUpvalue
	OpReturn
	OpClass
	OpInherit
	OpMethod
)

var opNames = [...]string{
	OpConstant:      "OP_CONSTANT",
	OpNil:           "OP_NIL",
	OpTrue:          "OP_TRUE",
	OpFalse:         "OP_FALSE",
	OpPop:           "OP_POP",
	OpGetLocal:      "OP_GET_LOCAL",
	OpSetLocal:      "OP_SET_LOCAL",
	OpGetProperty:   "OP_GET_PROPERTY",
	OpSetProperty:   "OP_SET_PROPERTY",
	OpGetUpvalue:    "OP_GET_UPVALUE",
	OpSetUpvalue:    "OP_SET_UPVALUE",
	OpGetSuper:      "OP_GET_SUPER",
	OpGetGlobal:     "OP_GET_GLOBAL",
	OpSetGlobal:     "OP_SET_GLOBAL",
	OpDefineGlobal:  "OP_DEFINE_GLOBAL",
	OpEqual:         "OP_EQUAL",
	OpGreater:       "OP_GREATER",
	OpLess:          "OP_LESS",
	OpAdd:           "OP_ADD",
	OpSubtract:      "OP_SUBTRACT",
	OpMultiply:      "OP_MULTIPLY",
	OpDivide:        "OP_DIVIDE",
	OpNot:           "OP_NOT",
	OpNegate:        "OP_NEGATE",
	OpPrint:         "OP_PRINT",
	OpJump:          "OP_JUMP",
	OpJumpIfFalse:   "OP_JUMP_IF_FALSE",
	OpLoop:          "OP_LOOP",
	OpCall:          "OP_CALL",
	OpInvoke:        "OP_INVOKE",
	OpSuperInvoke:   "OP_SUPER_INVOKE",
	OpClosure:       "OP_CLOSURE",
	OpCloseUpvalue:  "OP_CLOSE_UPVALUE",
	OpReturn:        "OP_RETURN",
	OpClass:         "OP_CLASS",
	OpInherit:       "OP_INHERIT",
	OpMethod:        "OP_METHOD",
}

func (op OpCode) String() string {
	if int(op) < 0 || int(op) >= len(opNames) || opNames[op] == "" {
		return "OP_UNKNOWN"
	}
	return opNames[op]
}
