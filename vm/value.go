// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package vm implements the Plox bytecode virtual machine: the runtime value
// representation, the heap of garbage-collected objects, the hash table,
// the tri-color collector, the bytecode chunk format, and the stack-based
// dispatch loop that executes compiled chunks.
//
// The package mirrors coreLox's value.c/object.c/table.c/memory.c/vm.c split
// as separate files within one Go package, the way the teacher keeps
// memory.go/opcodes.go/vm.go together under lang/vm.
package vm

import (
	"fmt"
	"math"
	"strconv"
)

// ValueType tags the active member of Value, matching clox's tagged-union
// representation (NAN_BOXING disabled) — see DESIGN.md's Open Question note.
type ValueType int

const (
	ValNil ValueType = iota
	ValBool
	ValNumber
	ValObj
)

// Value is a single Lox runtime value: nil, a boolean, a double-precision
// number, or a reference to a heap Object.
type Value struct {
	Type ValueType
	num  float64
	b    bool
	obj  Obj
}

var Nil = Value{Type: ValNil}

func BoolVal(b bool) Value   { return Value{Type: ValBool, b: b} }
func NumberVal(n float64) Value { return Value{Type: ValNumber, num: n} }
func ObjVal(o Obj) Value     { return Value{Type: ValObj, obj: o} }

func (v Value) IsNil() bool    { return v.Type == ValNil }
func (v Value) IsBool() bool   { return v.Type == ValBool }
func (v Value) IsNumber() bool { return v.Type == ValNumber }
func (v Value) IsObj() bool    { return v.Type == ValObj }

func (v Value) AsBool() bool    { return v.b }
func (v Value) AsNumber() float64 { return v.num }
func (v Value) AsObj() Obj     { return v.obj }

// IsObjType reports whether v is a heap object of the given kind.
func (v Value) IsObjType(kind ObjType) bool {
	return v.Type == ValObj && v.obj != nil && v.obj.Kind() == kind
}

func (v Value) IsString() bool      { return v.IsObjType(ObjKindString) }
func (v Value) IsFunction() bool    { return v.IsObjType(ObjKindFunction) }
func (v Value) IsClosure() bool     { return v.IsObjType(ObjKindClosure) }
func (v Value) IsClass() bool       { return v.IsObjType(ObjKindClass) }
func (v Value) IsInstance() bool    { return v.IsObjType(ObjKindInstance) }
func (v Value) IsBoundMethod() bool { return v.IsObjType(ObjKindBoundMethod) }

// AsNative is a pure accessor exposing a native-function Value's callback,
// with no side effects — the spec's Open Question on AsNative resolved
// literally, matching object.h's AS_NATIVE macro.
func (v Value) AsNative() NativeFn {
	return v.obj.(*ObjNative).Function
}

func (v Value) AsString() *ObjString      { return v.obj.(*ObjString) }
func (v Value) AsFunction() *ObjFunction  { return v.obj.(*ObjFunction) }
func (v Value) AsClosure() *ObjClosure    { return v.obj.(*ObjClosure) }
func (v Value) AsClass() *ObjClass        { return v.obj.(*ObjClass) }
func (v Value) AsInstance() *ObjInstance  { return v.obj.(*ObjInstance) }
func (v Value) AsBoundMethod() *ObjBoundMethod { return v.obj.(*ObjBoundMethod) }

// IsFalsey implements Lox truthiness: nil and false are falsey, everything
// else (including 0 and "") is truthy.
func (v Value) IsFalsey() bool {
	return v.IsNil() || (v.IsBool() && !v.AsBool())
}

// Equal reports whether a and b are equal by Lox's rules: numbers compare
// numerically, objects compare by reference identity (string identity holds
// because of interning), and values of different types are never equal.
func Equal(a, b Value) bool {
	if a.IsNumber() && b.IsNumber() {
		return a.AsNumber() == b.AsNumber()
	}
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case ValNil:
		return true
	case ValBool:
		return a.AsBool() == b.AsBool()
	case ValObj:
		return a.obj == b.obj
	default:
		return false
	}
}

// Print renders value the way `print` displays it to the user.
func Print(v Value) string {
	switch v.Type {
	case ValNil:
		return "nil"
	case ValBool:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case ValNumber:
		return formatNumber(v.AsNumber())
	case ValObj:
		return printObject(v.obj)
	default:
		return "<?>"
	}
}

func formatNumber(n float64) string {
	if math.IsInf(n, 1) {
		return "inf"
	}
	if math.IsInf(n, -1) {
		return "-inf"
	}
	if math.IsNaN(n) {
		return "nan"
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

func printObject(o Obj) string {
	switch o := o.(type) {
	case *ObjString:
		return o.Chars
	case *ObjFunction:
		return printFunction(o)
	case *ObjClosure:
		return printFunction(o.Function)
	case *ObjNative:
		return "<native fn>"
	case *ObjClass:
		return o.Name.Chars
	case *ObjInstance:
		return fmt.Sprintf("%s instance", o.Class.Name.Chars)
	case *ObjBoundMethod:
		return printFunction(o.Method.Function)
	case *ObjUpvalue:
		return "upvalue"
	default:
		return "<object>"
	}
}

func printFunction(f *ObjFunction) string {
	if f.Name == nil {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name.Chars)
}
