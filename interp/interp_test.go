// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package interp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/probechain/plox/vm"
)

func TestInterpretRunsAgainstANativeEquippedVM(t *testing.T) {
	machine := NewVM()
	var out bytes.Buffer
	machine.Out = &out

	result, err := Interpret(machine, `print clock() >= 0;`)
	require.NoError(t, err)
	require.Equal(t, vm.InterpretOK, result)
	require.Equal(t, "true\n", out.String())
}

func TestSessionCachesCompileAcrossRuns(t *testing.T) {
	session := NewSession()
	var out bytes.Buffer
	session.Machine.Out = &out

	const source = `print 1 + 2;`

	first, err := session.Compile(source)
	require.NoError(t, err)

	second, err := session.Compile(source)
	require.NoError(t, err)
	require.Same(t, first, second, "identical source should be served from the cache, not recompiled")
	require.Equal(t, 1, session.cache.Len())

	result, err := session.Interpret(source)
	require.NoError(t, err)
	require.Equal(t, vm.InterpretOK, result)
	require.Equal(t, "3\n", out.String())
}

func TestSessionCacheSurvivesGarbageCollectionBetweenRuns(t *testing.T) {
	session := NewSession()
	var out bytes.Buffer
	session.Machine.Out = &out

	const source = `print "cached";`
	fn, err := session.Compile(source)
	require.NoError(t, err)

	// Nothing references fn right now (it isn't on the stack or in a call
	// frame); only the cache's GC root hook keeps it on the machine's heap
	// through this collection. The cache hands back the same
	// *vm.ObjFunction either way, so this checks that the cached function
	// is reused and still runs after the collection.
	session.Machine.CollectGarbage()

	again, err := session.Compile(source)
	require.NoError(t, err)
	require.Same(t, fn, again)

	result, err := session.Interpret(source)
	require.NoError(t, err)
	require.Equal(t, vm.InterpretOK, result)
	require.Equal(t, "cached\n", out.String())
}

func TestSessionCompileErrorLeavesNoCacheEntry(t *testing.T) {
	session := NewSession()

	_, err := session.Compile(`var a = ;`)
	require.Error(t, err)
	require.Equal(t, 0, session.cache.Len())
}
