// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package cache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/probechain/plox/vm"
)

func TestCacheRoundTrip(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)

	key := Key("print 1;")
	_, ok := c.Get(key)
	require.False(t, ok)

	fn := vm.NewFunction()
	c.Put(key, fn)

	got, ok := c.Get(key)
	require.True(t, ok)
	require.Same(t, fn, got)
	require.Equal(t, 1, c.Len())
}

func TestCacheKeyIsStableAndDistinct(t *testing.T) {
	require.Equal(t, Key("print 1;"), Key("print 1;"))
	require.NotEqual(t, Key("print 1;"), Key("print 2;"))
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c, err := New(1)
	require.NoError(t, err)

	c.Put("a", vm.NewFunction())
	c.Put("b", vm.NewFunction())

	_, ok := c.Get("a")
	require.False(t, ok, "first entry should have been evicted once capacity was exceeded")

	_, ok = c.Get("b")
	require.True(t, ok)
}

func TestMarkRootsKeepsCachedFunctionAliveAcrossCollection(t *testing.T) {
	machine := vm.New()
	c, err := New(4)
	require.NoError(t, err)
	machine.AddRootSource(c.MarkRoots)

	fn := machine.NewFunction()
	c.Put("key", fn)

	// fn is reachable only through the cache at this point — nothing is
	// on machine's stack or in a call frame.
	machine.CollectGarbage()

	got, ok := c.Get("key")
	require.True(t, ok)
	require.Same(t, fn, got)
}
