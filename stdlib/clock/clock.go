// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package clock provides the wall-clock native for the Plox standard
// library.
package clock

import (
	"time"

	"github.com/probechain/plox/vm"
)

// Native returns clock(), the native exposing elapsed wall-clock seconds
// as a float — the same signature and purpose as coreLox's clockNative in
// native.c, backed by time.Now instead of C's clock().
func Native() vm.NativeFn {
	start := time.Now()
	return func(args []vm.Value) (vm.Value, error) {
		if len(args) != 0 {
			return vm.Nil, vm.ArityError("clock", 0, len(args))
		}
		return vm.NumberVal(time.Since(start).Seconds()), nil
	}
}
