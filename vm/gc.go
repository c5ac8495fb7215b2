// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package vm

import (
	"log/slog"
	"os"

	"github.com/probechain/plox/internal/xlog"
)

// gcHeapGrowFactor is the multiple of the heap size left after a
// collection that becomes the next collection threshold (nextGC),
// matching memory.c's GC_HEAP_GROW_FACTOR.
const gcHeapGrowFactor = 2

// debugStressGC, when true, runs a collection before every single
// allocation — a test hook for exercising the collector far more often
// than real heap pressure would trigger it.
var debugStressGC = os.Getenv("PLOX_STRESS_GC") != ""

// debugLogGC, when true, logs the start and end of every collection
// (bytes allocated, next threshold) at Trace level — a coarser take on
// clox's DEBUG_LOG_GC compile-time flag.
var debugLogGC = os.Getenv("PLOX_LOG_GC") != ""

// gcLog emits Trace records, which xlog.Default's Info level would drop.
var gcLog = xlog.New(slog.LevelDebug - 4)

// track links a freshly allocated object into the heap's all-objects
// list and charges it against the collection budget, triggering a
// collection first if the budget is already stress-tested or exhausted.
func (vm *VM) track(o Obj) {
	if debugStressGC {
		vm.collectGarbage()
	}
	vm.bytesAllocated += objectSize(o)
	if vm.bytesAllocated > vm.nextGC {
		vm.collectGarbage()
	}
	h := o.header()
	h.Next = vm.objects
	vm.objects = o
}

// objectSize is a rough per-kind size estimate used only to decide when
// to collect; Go's own allocator does the real memory accounting.
func objectSize(o Obj) int64 {
	switch o.(type) {
	case *ObjString:
		return 40
	case *ObjFunction:
		return 96
	case *ObjNative:
		return 32
	case *ObjClosure:
		return 48
	case *ObjUpvalue:
		return 40
	case *ObjClass:
		return 48
	case *ObjInstance:
		return 48
	case *ObjBoundMethod:
		return 40
	default:
		return 32
	}
}

const (
	fnvOffsetBasis uint32 = 2166136261
	fnvPrime       uint32 = 16777619
)

// hashString implements FNV-1a over chars, matching object.c's
// hashString exactly (including the constants).
func hashString(chars string) uint32 {
	hash := fnvOffsetBasis
	for i := 0; i < len(chars); i++ {
		hash ^= uint32(chars[i])
		hash *= fnvPrime
	}
	return hash
}

// InternString returns the canonical *ObjString for chars, allocating
// and interning a new one only if an identical string isn't already
// known. Interning is what makes string equality a pointer comparison.
func (vm *VM) InternString(chars string) *ObjString {
	hash := hashString(chars)
	if existing := vm.strings.FindString(chars, hash); existing != nil {
		return existing
	}
	s := &ObjString{Chars: chars, Hash: hash}
	// Push/pop-guard the new string on the value stack before it is
	// reachable from anywhere else, so a collection triggered while it is
	// being tracked can't reclaim it first.
	vm.push(ObjVal(s))
	vm.track(s)
	vm.strings.Set(s, Nil)
	vm.pop()
	return s
}

// NewClosure allocates a closure over fn, tracking it on the heap.
func (vm *VM) NewClosure(fn *ObjFunction) *ObjClosure {
	c := NewClosure(fn)
	vm.track(c)
	return c
}

// NewFunction allocates a fresh, empty function object on the VM's heap.
func (vm *VM) NewFunction() *ObjFunction {
	f := NewFunction()
	vm.track(f)
	return f
}

// NewNative allocates and tracks a native function value.
func (vm *VM) NewNative(name string, fn NativeFn) *ObjNative {
	n := &ObjNative{Function: fn, Name: name}
	vm.track(n)
	return n
}

// NewClass allocates and tracks a class object.
func (vm *VM) NewClass(name *ObjString) *ObjClass {
	c := NewClass(name)
	vm.track(c)
	return c
}

// NewInstance allocates and tracks an instance of class.
func (vm *VM) NewInstance(class *ObjClass) *ObjInstance {
	i := NewInstance(class)
	vm.track(i)
	return i
}

func (vm *VM) markValue(v Value) {
	if v.IsObj() {
		vm.markObject(v.AsObj())
	}
}

func (vm *VM) markObject(o Obj) {
	if o == nil {
		return
	}
	h := o.header()
	if h.Marked {
		return
	}
	h.Marked = true
	vm.grayStack = append(vm.grayStack, o)
}

// markRoots marks every root reference the collector must not reclaim:
// the value stack, every active call frame's closure, the open-upvalue
// chain, the globals table, the intern table's own keys are handled via
// removeWhite (not marked as roots), and any caller-registered hooks.
func (vm *VM) markRoots() {
	for i := 0; i < vm.stackTop; i++ {
		vm.markValue(vm.stack[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		vm.markObject(vm.frames[i].Closure)
	}
	for up := vm.openUpvalues; up != nil; up = up.NextOpen {
		vm.markObject(up)
	}
	vm.Globals.markTable(vm)
	vm.markObject(vm.initString)
	if vm.compilerRoots != nil {
		vm.compilerRoots(vm)
	}
	for _, fn := range vm.externalRoots {
		fn(vm)
	}
}

// blackenObject marks every object a gray object refers to, turning it
// black, following blackenObject's switch in memory.c exactly.
func (vm *VM) blackenObject(o Obj) {
	switch o := o.(type) {
	case *ObjBoundMethod:
		vm.markValue(o.Receiver)
		vm.markObject(o.Method)
	case *ObjInstance:
		vm.markObject(o.Class)
		o.Fields.markTable(vm)
	case *ObjClass:
		vm.markObject(o.Name)
		o.Methods.markTable(vm)
	case *ObjClosure:
		vm.markObject(o.Function)
		for _, up := range o.Upvalues {
			if up != nil {
				vm.markObject(up)
			}
		}
	case *ObjFunction:
		if o.Name != nil {
			vm.markObject(o.Name)
		}
		for _, c := range o.Chunk.Constants {
			vm.markValue(c)
		}
	case *ObjUpvalue:
		vm.markValue(o.Closed)
	case *ObjNative, *ObjString:
		// No outgoing references.
	}
}

func (vm *VM) traceReferences() {
	for len(vm.grayStack) > 0 {
		o := vm.grayStack[len(vm.grayStack)-1]
		vm.grayStack = vm.grayStack[:len(vm.grayStack)-1]
		vm.blackenObject(o)
	}
}

// sweep walks the all-objects list, unmarking survivors for the next
// cycle and unlinking everything unreached. Go's own allocator reclaims
// the unlinked nodes once nothing else in our graph still points at
// them; this phase is bookkeeping for when that happens, not manual
// free().
func (vm *VM) sweep() {
	var prev Obj
	o := vm.objects
	for o != nil {
		h := o.header()
		if h.Marked {
			h.Marked = false
			prev = o
			o = h.Next
			continue
		}
		unreached := o
		o = h.Next
		if prev == nil {
			vm.objects = o
		} else {
			prev.header().Next = o
		}
		vm.bytesAllocated -= objectSize(unreached)
	}
}

// CollectGarbage forces an immediate mark-sweep collection, for callers
// outside this package that want to reclaim unreachable objects (or, in
// tests, verify what a registered root source keeps alive) without
// waiting for the heap to grow past nextGC.
func (vm *VM) CollectGarbage() {
	vm.collectGarbage()
}

// collectGarbage runs one full mark-sweep cycle and grows nextGC by
// gcHeapGrowFactor, the same shape as memory.c's collectGarbage.
func (vm *VM) collectGarbage() {
	if debugLogGC {
		gcLog.Trace("gc begin", "bytes", vm.bytesAllocated)
	}
	vm.markRoots()
	vm.traceReferences()
	vm.strings.removeWhite()
	vm.sweep()
	vm.nextGC = vm.bytesAllocated * gcHeapGrowFactor
	if vm.nextGC < 1024*1024 {
		vm.nextGC = 1024 * 1024
	}
	if debugLogGC {
		gcLog.Trace("gc end", "bytes", vm.bytesAllocated, "nextGC", vm.nextGC)
	}
}
