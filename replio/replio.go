// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package replio implements the interactive REPL: history-backed line
// editing plus TTY-aware colored diagnostics, for a line-at-a-time session
// instead of cmd/ploxc's one-shot compile-and-run.
package replio

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"

	"github.com/probechain/plox/interp"
	"github.com/probechain/plox/vm"
)

const prompt = "> "

// Run drives a read-eval-print loop over stdin against session, one line
// at a time, exactly as coreLox's repl() in main.c does — no
// bracket-matching or multi-line continuation. Repeated lines (retyped or
// replayed from history) are served from session's compile cache.
func Run(session *interp.Session) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	out := diagnosticWriter(os.Stdout)

	for {
		text, err := line.Prompt(prompt)
		if err == liner.ErrPromptAborted || err == io.EOF {
			fmt.Fprintln(os.Stdout)
			return nil
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		line.AppendHistory(text)

		result, ierr := session.Interpret(text)
		if ierr != nil {
			switch result {
			case vm.InterpretCompileError:
				fmt.Fprintln(out, color.RedString("%v", ierr))
			case vm.InterpretRuntimeError:
				fmt.Fprintln(out, color.YellowString("%v", ierr))
			default:
				fmt.Fprintln(out, ierr)
			}
		}
	}
}

// diagnosticWriter wraps w so ANSI color codes degrade gracefully when
// stdout isn't a real terminal (piped output, CI logs).
func diagnosticWriter(w *os.File) io.Writer {
	if isatty.IsTerminal(w.Fd()) {
		return colorable.NewColorable(w)
	}
	color.NoColor = true
	return w
}
