// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package debugapi exposes a small HTTP introspection surface over the
// interpreter: POST /compile disassembles a script without running it,
// POST /run executes one and returns what it printed. Method-per-operation
// JSON result structs follow the same shape as integration.ProbeLanguageAPI,
// without that package's contract/account types — this interpreter has no
// blockchain execution context to simulate against.
//
// Both endpoints share one long-lived interp.Session instead of spinning up
// a fresh VM per request, so its compile cache actually pays off across
// requests that resend the same source. The VM itself isn't reentrant, so
// every request serializes on a mutex around the session.
package debugapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"github.com/probechain/plox/interp"
	"github.com/probechain/plox/vm"
)

// api holds the shared interpreter session every request serializes on.
type api struct {
	mu      sync.Mutex
	session *interp.Session
}

// CompileResult is the JSON body returned by POST /compile.
type CompileResult struct {
	SessionID string `json:"sessionId"`
	Disasm    string `json:"disassembly,omitempty"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// RunResult is the JSON body returned by POST /run.
type RunResult struct {
	SessionID string `json:"sessionId"`
	Output    string `json:"output,omitempty"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

type sourceRequest struct {
	Source string `json:"source"`
}

// NewHandler returns an http.Handler serving /compile and /run, CORS-open
// for same-host tooling (a local browser-based REPL client, editor
// plugins), matching the teacher's JSON-RPC-over-HTTP transport shape but
// as plain REST since there is no method-dispatch table to drive here.
func NewHandler() http.Handler {
	a := &api{session: interp.NewSession()}
	router := httprouter.New()
	router.POST("/compile", a.handleCompile)
	router.POST("/run", a.handleRun)
	return cors.Default().Handler(router)
}

func (a *api) handleCompile(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	sessionID := uuid.New().String()

	a.mu.Lock()
	defer a.mu.Unlock()

	fn, err := a.session.Compile(req.Source)
	if err != nil {
		writeJSON(w, http.StatusOK, CompileResult{SessionID: sessionID, Error: err.Error()})
		return
	}

	var buf bytes.Buffer
	vm.Disassemble(&buf, fn.Chunk, sessionID)
	writeJSON(w, http.StatusOK, CompileResult{SessionID: sessionID, Disasm: buf.String(), Success: true})
}

func (a *api) handleRun(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	sessionID := uuid.New().String()

	a.mu.Lock()
	defer a.mu.Unlock()

	var out bytes.Buffer
	a.session.Machine.Out = &out

	result, err := a.session.Interpret(req.Source)
	if err != nil {
		writeJSON(w, http.StatusOK, RunResult{SessionID: sessionID, Output: out.String(), Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, RunResult{
		SessionID: sessionID,
		Output:    out.String(),
		Success:   result == vm.InterpretOK,
	})
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (sourceRequest, bool) {
	var req sourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return sourceRequest{}, false
	}
	return req, true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
