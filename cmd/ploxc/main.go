// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Command ploxc is the Plox bytecode interpreter: run a script, disassemble
// its compiled chunk, start an interactive REPL, or serve the HTTP
// introspection API.
//
// Usage:
//
//	ploxc run <source.lox>
//	ploxc disasm <source.lox>
//	ploxc repl
//	ploxc serve [addr]
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/go-stack/stack"
	"gopkg.in/urfave/cli.v1"

	"github.com/probechain/plox/compiler"
	"github.com/probechain/plox/debugapi"
	"github.com/probechain/plox/interp"
	"github.com/probechain/plox/replio"
	"github.com/probechain/plox/vm"
)

const version = "0.1.0"

// Exit codes follow coreLox's main.c exactly: 0 success, 64 usage error,
// 65 compile error, 70 runtime error, 74 I/O error.
const (
	exitUsage   = 64
	exitCompile = 65
	exitRuntime = 70
	exitIO      = 74
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "ploxc: fatal: %v\n%s\n", r, stack.Trace().TrimRuntime())
			os.Exit(1)
		}
	}()

	app := cli.NewApp()
	app.Name = "ploxc"
	app.Usage = "the Plox bytecode interpreter"
	app.Version = version
	app.Commands = []cli.Command{runCommand, disasmCommand, replCommand, serveCommand}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var runCommand = cli.Command{
	Name:      "run",
	Usage:     "compile and execute a script",
	ArgsUsage: "<source.lox>",
	Action:    runAction,
}

func runAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: ploxc run <source.lox>")
		os.Exit(exitUsage)
	}
	source := readSourceOrExit(ctx.Args().Get(0))

	machine := interp.NewVM()
	result, err := interp.Interpret(machine, source)
	switch result {
	case vm.InterpretCompileError:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCompile)
	case vm.InterpretRuntimeError:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitRuntime)
	}
	return nil
}

var disasmCommand = cli.Command{
	Name:      "disasm",
	Usage:     "compile a script and print its disassembled bytecode",
	ArgsUsage: "<source.lox>",
	Action:    disasmAction,
}

func disasmAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: ploxc disasm <source.lox>")
		os.Exit(exitUsage)
	}
	path := ctx.Args().Get(0)
	source := readSourceOrExit(path)

	machine := interp.NewVM()
	fn, err := compiler.Compile(source, machine)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCompile)
	}
	vm.Disassemble(os.Stdout, fn.Chunk, path)
	return nil
}

var replCommand = cli.Command{
	Name:   "repl",
	Usage:  "start an interactive session",
	Action: replAction,
}

func replAction(ctx *cli.Context) error {
	return replio.Run(interp.NewSession())
}

var serveCommand = cli.Command{
	Name:      "serve",
	Usage:     "serve the HTTP compile/run introspection API",
	ArgsUsage: "[addr]",
	Action:    serveAction,
}

func serveAction(ctx *cli.Context) error {
	addr := ":8080"
	if ctx.NArg() == 1 {
		addr = ctx.Args().Get(0)
	} else if ctx.NArg() > 1 {
		fmt.Fprintln(os.Stderr, "usage: ploxc serve [addr]")
		os.Exit(exitUsage)
	}

	fmt.Fprintf(os.Stderr, "ploxc: serving on %s\n", addr)
	if err := http.ListenAndServe(addr, debugapi.NewHandler()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitIO)
	}
	return nil
}

func readSourceOrExit(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not open file %q.\n", path)
		os.Exit(exitIO)
	}
	return string(data)
}
