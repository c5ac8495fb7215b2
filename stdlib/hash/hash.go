// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package hash provides the supplemented hash(v) native for the Plox
// standard library.
package hash

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"

	"github.com/probechain/plox/vm"
)

// Native returns hash(v), a single-argument native computing the SHA3-256
// digest of v's canonical print form, returned as a lowercase hex string
// interned in machine. Not part of coreLox; added so the domain stack's
// sha3 dependency has a caller (see SPEC_FULL.md §6).
func Native(machine *vm.VM) vm.NativeFn {
	return func(args []vm.Value) (vm.Value, error) {
		if len(args) != 1 {
			return vm.Nil, vm.ArityError("hash", 1, len(args))
		}
		digest := sha3.Sum256([]byte(vm.Print(args[0])))
		return vm.ObjVal(machine.InternString(hex.EncodeToString(digest[:]))), nil
	}
}
