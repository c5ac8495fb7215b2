// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package interp wires the compiler and the virtual machine together. It
// is the only package that imports both: vm must stay import-free of
// compiler so the compiler can depend on vm's object/value types without
// a cycle.
package interp

import (
	"github.com/probechain/plox/cache"
	"github.com/probechain/plox/compiler"
	"github.com/probechain/plox/stdlib/clock"
	"github.com/probechain/plox/stdlib/hash"
	"github.com/probechain/plox/vm"
)

// NewVM returns a VM with the standard library's natives already
// installed, ready to Interpret against.
func NewVM() *vm.VM {
	machine := vm.New()
	machine.DefineNative("clock", clock.Native())
	machine.DefineNative("hash", hash.Native(machine))
	return machine
}

// Interpret compiles source and runs it on machine, the equivalent of
// coreLox's main.c interpret() helper split across two packages instead
// of one translation unit.
func Interpret(machine *vm.VM, source string) (vm.InterpretResult, error) {
	fn, err := compiler.Compile(source, machine)
	if err != nil {
		return vm.InterpretCompileError, err
	}
	return machine.Run(fn)
}

// Session pairs a VM with a compile cache keyed by source hash, so a
// long-lived consumer that sees the same source more than once — the
// REPL replaying history, or debugapi handling the same request twice —
// skips straight to running it instead of re-lexing, re-parsing, and
// re-emitting bytecode. Cached entries live on machine's heap, so a
// Session's cache must never be consulted against a different VM.
type Session struct {
	Machine *vm.VM
	cache   *cache.Cache
}

// NewSession returns a Session wrapping a fresh NewVM, with its cache
// registered as a GC root source so cached functions survive collection
// between runs even when nothing is currently executing them.
func NewSession() *Session {
	machine := NewVM()
	c, _ := cache.New(cache.DefaultSize) // DefaultSize > 0, so this never errors.
	machine.AddRootSource(c.MarkRoots)
	return &Session{Machine: machine, cache: c}
}

// Compile returns the compiled top-level function for source, compiling
// it against the session's machine only if it isn't already cached.
func (s *Session) Compile(source string) (*vm.ObjFunction, error) {
	key := cache.Key(source)
	if fn, ok := s.cache.Get(key); ok {
		return fn, nil
	}
	fn, err := compiler.Compile(source, s.Machine)
	if err != nil {
		return nil, err
	}
	s.cache.Put(key, fn)
	return fn, nil
}

// Interpret compiles source (or reuses the cached compile) and runs it
// against the session's machine.
func (s *Session) Interpret(source string) (vm.InterpretResult, error) {
	fn, err := s.Compile(source)
	if err != nil {
		return vm.InterpretCompileError, err
	}
	return s.Machine.Run(fn)
}
