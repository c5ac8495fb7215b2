// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package compiler

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/probechain/plox/vm"
)

// run compiles and executes source on a fresh VM, returning everything
// printed to stdout.
func run(t *testing.T, source string) string {
	t.Helper()
	machine := vm.New()
	var out bytes.Buffer
	machine.Out = &out

	fn, err := Compile(source, machine)
	require.NoError(t, err)

	result, err := machine.Run(fn)
	require.NoError(t, err)
	require.Equal(t, vm.InterpretOK, result)
	return out.String()
}

func TestArithmeticPrecedenceAndGrouping(t *testing.T) {
	out := run(t, `print 1 + 2 * 3;
print (1 + 2) * 3;
print 10 - 2 - 3;`)
	require.Equal(t, "7\n9\n5\n", out)
}

func TestStringsAndComparisons(t *testing.T) {
	out := run(t, `print "foo" + "bar";
print 1 < 2;
print 2 <= 2;
print "a" == "a";`)
	require.Equal(t, "foobar\ntrue\ntrue\ntrue\n", out)
}

func TestVariablesAndScopes(t *testing.T) {
	out := run(t, `var a = 1;
{
  var a = 2;
  print a;
}
print a;`)
	require.Equal(t, "2\n1\n", out)
}

func TestControlFlow(t *testing.T) {
	out := run(t, `var i = 0;
var sum = 0;
while (i < 5) {
  sum = sum + i;
  i = i + 1;
}
print sum;

for (var j = 0; j < 3; j = j + 1) {
  if (j == 1) {
    print "one";
  } else {
    print j;
  }
}`)
	require.Equal(t, "10\n0\none\n2\n", out)
}

func TestFunctionsAndRecursion(t *testing.T) {
	out := run(t, `fun fib(n) {
  if (n < 2) return n;
  return fib(n - 1) + fib(n - 2);
}
print fib(8);`)
	require.Equal(t, "21\n", out)
}

// TestClosuresCaptureByReference checks that a closure sees subsequent
// mutations of a captured variable, not a value snapshot.
func TestClosuresCaptureByReference(t *testing.T) {
	out := run(t, `fun makeCounter() {
  var count = 0;
  fun increment() {
    count = count + 1;
    print count;
  }
  return increment;
}
var counter = makeCounter();
counter();
counter();
counter();`)
	require.Equal(t, "1\n2\n3\n", out)
}

// TestSharedUpvalueIdentity checks that two closures created from the same
// call frame, both capturing the same local, observe each other's writes
// through one shared upvalue rather than independent copies.
func TestSharedUpvalueIdentity(t *testing.T) {
	out := run(t, `fun makePair() {
  var shared = 0;
  fun setter(v) {
    shared = v;
  }
  fun getter() {
    print shared;
  }
  setter(7);
  getter();
}
makePair();`)
	require.Equal(t, "7\n", out)
}

func TestClassesFieldsAndMethods(t *testing.T) {
	out := run(t, `class Greeter {
  init(name) {
    this.name = name;
  }
  greet() {
    print "hello, " + this.name;
  }
}
var g = Greeter("world");
g.greet();`)
	require.Equal(t, "hello, world\n", out)
}

func TestInheritanceAndSuper(t *testing.T) {
	out := run(t, `class Animal {
  speak() {
    print "...";
  }
}
class Dog < Animal {
  speak() {
    super.speak();
    print "woof";
  }
}
Dog().speak();`)
	require.Equal(t, "...\nwoof\n", out)
}

func TestLogicalOperatorsShortCircuit(t *testing.T) {
	out := run(t, `fun sideEffect() {
  print "called";
  return true;
}
false and sideEffect();
print "after and";
true or sideEffect();
print "after or";`)
	require.Equal(t, "after and\nafter or\n", out)
}

func TestCompileDeterminism(t *testing.T) {
	source := `class Shape {
  init(sides) {
    this.sides = sides;
  }
  describe() {
    print this.sides;
  }
}
class Square < Shape {
  init() {
    super.init(4);
  }
}
fun area(s) {
  return s.sides * s.sides;
}
print area(Square());`

	machine1 := vm.New()
	fn1, err := Compile(source, machine1)
	require.NoError(t, err)

	machine2 := vm.New()
	fn2, err := Compile(source, machine2)
	require.NoError(t, err)

	if diff := cmp.Diff(fn1.Chunk.Code, fn2.Chunk.Code); diff != "" {
		t.Errorf("compiling the same source twice produced different bytecode (-first +second):\n%s", diff)
	}
	require.Equal(t, len(fn1.Chunk.Constants), len(fn2.Chunk.Constants))
}

func TestCompileErrorsDoNotPanic(t *testing.T) {
	cases := []struct {
		name   string
		source string
	}{
		{"this outside class", `print this;`},
		{"super outside class", `print super.foo();`},
		{"self-inheriting class", `class Oops < Oops {}`},
		{"missing semicolon", `var a = 1`},
		{"unterminated block", `{ var a = 1;`},
		{"return from top level", `return 1;`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			machine := vm.New()
			fn, err := Compile(tc.source, machine)
			require.Error(t, err)
			require.Nil(t, fn)
		})
	}
}
