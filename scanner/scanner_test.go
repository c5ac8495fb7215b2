// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package scanner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/probechain/plox/token"
)

func collect(src string) []token.Token {
	s := New(src)
	var toks []token.Token
	for {
		t := s.ScanToken()
		toks = append(toks, t)
		if t.Type == token.EOF {
			break
		}
	}
	return toks
}

func TestScanPunctuationAndOperators(t *testing.T) {
	toks := collect("(){};,+-*!===<=>=!=")
	types := make([]token.Type, 0, len(toks))
	for _, tk := range toks {
		types = append(types, tk.Type)
	}
	require.Equal(t, []token.Type{
		token.LEFT_PAREN, token.RIGHT_PAREN, token.LEFT_BRACE, token.RIGHT_BRACE,
		token.SEMICOLON, token.COMMA, token.PLUS, token.MINUS, token.STAR,
		token.BANG_EQUAL, token.EQUAL_EQUAL, token.LESS_EQUAL, token.GREATER_EQUAL,
		token.BANG_EQUAL, token.EOF,
	}, types)
}

func TestScanKeywordsAndIdentifiers(t *testing.T) {
	toks := collect("class fun for false four this that")
	want := []token.Type{
		token.CLASS, token.FUN, token.FOR, token.FALSE, token.IDENTIFIER,
		token.THIS, token.IDENTIFIER, token.EOF,
	}
	for i, tk := range toks {
		require.Equal(t, want[i], tk.Type, "token %d (%q)", i, tk.Lexeme)
	}
}

func TestScanNumberAndString(t *testing.T) {
	toks := collect(`123 45.6 "hello world"`)
	require.Equal(t, token.NUMBER, toks[0].Type)
	require.Equal(t, "123", toks[0].Lexeme)
	require.Equal(t, token.NUMBER, toks[1].Type)
	require.Equal(t, "45.6", toks[1].Lexeme)
	require.Equal(t, token.STRING, toks[2].Type)
	require.Equal(t, `"hello world"`, toks[2].Lexeme)
}

func TestScanUnterminatedStringProducesErrorToken(t *testing.T) {
	toks := collect(`"never closes`)
	require.Equal(t, token.ERROR, toks[0].Type)
	require.Equal(t, "Unterminated string.", toks[0].Lexeme)
}

func TestScanSkipsLineComments(t *testing.T) {
	toks := collect("1 // a comment\n2")
	require.Equal(t, token.NUMBER, toks[0].Type)
	require.Equal(t, "1", toks[0].Lexeme)
	require.Equal(t, token.NUMBER, toks[1].Type)
	require.Equal(t, "2", toks[1].Lexeme)
	require.Equal(t, 2, toks[1].Line)
}

func TestScanLineTracking(t *testing.T) {
	toks := collect("1\n2\n3")
	require.Equal(t, 1, toks[0].Line)
	require.Equal(t, 2, toks[1].Line)
	require.Equal(t, 3, toks[2].Line)
}
