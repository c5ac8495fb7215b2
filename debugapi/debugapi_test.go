// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package debugapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleRunExecutesScript(t *testing.T) {
	srv := httptest.NewServer(NewHandler())
	defer srv.Close()

	body := `{"source": "print 1 + 2;"}`
	resp, err := http.Post(srv.URL+"/run", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var result RunResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.True(t, result.Success)
	require.Equal(t, "3\n", result.Output)
	require.NotEmpty(t, result.SessionID)
}

func TestHandleRunReportsCompileError(t *testing.T) {
	srv := httptest.NewServer(NewHandler())
	defer srv.Close()

	body := `{"source": "var a = ;"}`
	resp, err := http.Post(srv.URL+"/run", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var result RunResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.False(t, result.Success)
	require.NotEmpty(t, result.Error)
}

func TestHandleCompileReturnsDisassembly(t *testing.T) {
	srv := httptest.NewServer(NewHandler())
	defer srv.Close()

	body := `{"source": "print 1;"}`
	resp, err := http.Post(srv.URL+"/compile", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var result CompileResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.True(t, result.Success)
	require.Contains(t, result.Disasm, "OP_PRINT")
}
