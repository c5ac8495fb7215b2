// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package vm

// ObjType identifies the concrete kind of a heap-allocated Obj, matching
// coreLox's ObjectType enum in object.h.
type ObjType int

const (
	ObjKindString ObjType = iota
	ObjKindFunction
	ObjKindNative
	ObjKindClosure
	ObjKindUpvalue
	ObjKindClass
	ObjKindInstance
	ObjKindBoundMethod
)

// Obj is any heap-allocated Lox value. Every concrete object type embeds
// ObjHeader, which links it into the VM's all-objects list for the
// collector and carries its mark bit.
type Obj interface {
	Kind() ObjType
	header() *ObjHeader
}

// ObjHeader is the common prefix every Obj carries, mirroring clox's
// Object{type, isMarked, next} struct. Next threads every live allocation
// into one intrusive list so the sweep phase can walk the whole heap.
type ObjHeader struct {
	Marked bool
	Next   Obj
}

func (h *ObjHeader) header() *ObjHeader { return h }

// ObjString is an interned, immutable Lox string.
type ObjString struct {
	ObjHeader
	Chars string
	Hash  uint32
}

func (s *ObjString) Kind() ObjType { return ObjKindString }

// NativeFn is a Go function exposed to Lox code as a native function value.
// It receives the call's arguments and returns a result or a runtime error.
type NativeFn func(args []Value) (Value, error)

// ObjFunction is a compiled function body: its arity, the number of
// upvalues its closures must capture, the bytecode chunk, and its name
// (nil for the implicit top-level script function).
type ObjFunction struct {
	ObjHeader
	Arity        int
	UpvalueCount int
	Chunk        *Chunk
	Name         *ObjString
}

func (f *ObjFunction) Kind() ObjType { return ObjKindFunction }

func NewFunction() *ObjFunction {
	return &ObjFunction{Chunk: NewChunk()}
}

// ObjNative wraps a NativeFn as a callable Lox value.
type ObjNative struct {
	ObjHeader
	Function NativeFn
	Name     string
}

func (n *ObjNative) Kind() ObjType { return ObjKindNative }

// ObjUpvalue references a captured local variable. While the enclosing
// frame is still on the stack, Location points at the live stack slot
// (the upvalue is "open"); once closed, Location is swapped to point at
// this struct's own Closed field.
type ObjUpvalue struct {
	ObjHeader
	Location *Value
	Closed   Value
	// OpenSlot is the stack slot Location points at while this upvalue is
	// open; used to keep the VM's open-upvalues list sorted without
	// resorting to pointer arithmetic on the stack array.
	OpenSlot int
	// NextOpen threads this upvalue into the VM's open-upvalues list,
	// kept sorted by descending stack slot. Distinct from ObjHeader.Next,
	// which threads the all-objects heap list.
	NextOpen *ObjUpvalue
}

func (u *ObjUpvalue) Kind() ObjType { return ObjKindUpvalue }

// ObjClosure pairs a compiled function with the upvalues it captured at
// creation time.
type ObjClosure struct {
	ObjHeader
	Function *ObjFunction
	Upvalues []*ObjUpvalue
}

func (c *ObjClosure) Kind() ObjType { return ObjKindClosure }

func NewClosure(fn *ObjFunction) *ObjClosure {
	return &ObjClosure{Function: fn, Upvalues: make([]*ObjUpvalue, fn.UpvalueCount)}
}

// ObjClass is a Lox class: its name and its method table, keyed by name,
// valued by ObjClosure (stored as Value so Table can hold it uniformly).
type ObjClass struct {
	ObjHeader
	Name    *ObjString
	Methods *Table
}

func (c *ObjClass) Kind() ObjType { return ObjKindClass }

func NewClass(name *ObjString) *ObjClass {
	return &ObjClass{Name: name, Methods: NewTable()}
}

// ObjInstance is an instance of an ObjClass with its own field table.
type ObjInstance struct {
	ObjHeader
	Class  *ObjClass
	Fields *Table
}

func (i *ObjInstance) Kind() ObjType { return ObjKindInstance }

func NewInstance(class *ObjClass) *ObjInstance {
	return &ObjInstance{Class: class, Fields: NewTable()}
}

// ObjBoundMethod pairs a receiver instance with one of its class's
// closures, produced by property access that resolves to a method.
type ObjBoundMethod struct {
	ObjHeader
	Receiver Value
	Method   *ObjClosure
}

func (b *ObjBoundMethod) Kind() ObjType { return ObjKindBoundMethod }
