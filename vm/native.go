// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package vm

import "fmt"

// DefineNative installs fn as a global named name, the same mechanism
// coreLox's defineNative uses to expose clock() before running a script.
func (vm *VM) DefineNative(name string, fn NativeFn) {
	// Push/pop-guard both the name and the native value while they're
	// being installed, matching defineNative's stack dance in vm.c.
	vm.push(ObjVal(vm.InternString(name)))
	vm.push(ObjVal(vm.NewNative(name, fn)))
	vm.Globals.Set(vm.peek(1).AsString(), vm.peek(0))
	vm.pop()
	vm.pop()
}

// ArityError builds the conventional native-function argument-count
// complaint, for natives implemented outside this package (stdlib/clock,
// stdlib/hash) that need to report the same style of error the VM does.
func ArityError(name string, want, got int) error {
	return fmt.Errorf("%s() expected %d argument(s) but got %d", name, want, got)
}
