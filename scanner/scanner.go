// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package scanner turns Lox source text into a stream of tokens.
//
// It follows the same single-pass, lookahead-by-one-or-two-characters design
// as the teacher's lexer: no buffering beyond the current lexeme, a running
// line counter, and lazily-produced tokens pulled one at a time by the
// compiler.
package scanner

import (
	"github.com/probechain/plox/token"
)

// Scanner produces tokens from a source string.
type Scanner struct {
	src     string
	start   int
	current int
	line    int
}

// New returns a Scanner positioned at the start of src.
func New(src string) *Scanner {
	return &Scanner{src: src, line: 1}
}

func (s *Scanner) atEnd() bool {
	return s.current >= len(s.src)
}

func (s *Scanner) advance() byte {
	c := s.src[s.current]
	s.current++
	return c
}

func (s *Scanner) peek() byte {
	if s.atEnd() {
		return 0
	}
	return s.src[s.current]
}

func (s *Scanner) peekNext() byte {
	if s.current+1 >= len(s.src) {
		return 0
	}
	return s.src[s.current+1]
}

func (s *Scanner) match(expected byte) bool {
	if s.atEnd() || s.src[s.current] != expected {
		return false
	}
	s.current++
	return true
}

func (s *Scanner) makeToken(t token.Type) token.Token {
	return token.Token{Type: t, Lexeme: s.src[s.start:s.current], Line: s.line}
}

func (s *Scanner) errorToken(msg string) token.Token {
	return token.Token{Type: token.ERROR, Lexeme: msg, Line: s.line}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func (s *Scanner) skipWhitespace() {
	for {
		c := s.peek()
		switch c {
		case ' ', '\r', '\t':
			s.advance()
		case '\n':
			s.line++
			s.advance()
		case '/':
			if s.peekNext() == '/' {
				for s.peek() != '\n' && !s.atEnd() {
					s.advance()
				}
			} else {
				return
			}
		default:
			return
		}
	}
}

// ScanToken returns the next token, advancing past it. Once the end of the
// source is reached it returns an endless stream of EOF tokens.
func (s *Scanner) ScanToken() token.Token {
	s.skipWhitespace()
	s.start = s.current

	if s.atEnd() {
		return s.makeToken(token.EOF)
	}

	c := s.advance()
	if isAlpha(c) {
		return s.identifier()
	}
	if isDigit(c) {
		return s.number()
	}

	switch c {
	case '(':
		return s.makeToken(token.LEFT_PAREN)
	case ')':
		return s.makeToken(token.RIGHT_PAREN)
	case '{':
		return s.makeToken(token.LEFT_BRACE)
	case '}':
		return s.makeToken(token.RIGHT_BRACE)
	case ';':
		return s.makeToken(token.SEMICOLON)
	case ',':
		return s.makeToken(token.COMMA)
	case '.':
		return s.makeToken(token.DOT)
	case '-':
		return s.makeToken(token.MINUS)
	case '+':
		return s.makeToken(token.PLUS)
	case '/':
		return s.makeToken(token.SLASH)
	case '*':
		return s.makeToken(token.STAR)
	case '!':
		if s.match('=') {
			return s.makeToken(token.BANG_EQUAL)
		}
		return s.makeToken(token.BANG)
	case '=':
		if s.match('=') {
			return s.makeToken(token.EQUAL_EQUAL)
		}
		return s.makeToken(token.EQUAL)
	case '<':
		if s.match('=') {
			return s.makeToken(token.LESS_EQUAL)
		}
		return s.makeToken(token.LESS)
	case '>':
		if s.match('=') {
			return s.makeToken(token.GREATER_EQUAL)
		}
		return s.makeToken(token.GREATER)
	case '"':
		return s.string()
	}

	return s.errorToken("Unexpected character.")
}

func (s *Scanner) string() token.Token {
	for s.peek() != '"' && !s.atEnd() {
		if s.peek() == '\n' {
			s.line++
		}
		s.advance()
	}
	if s.atEnd() {
		return s.errorToken("Unterminated string.")
	}
	s.advance() // closing quote
	return s.makeToken(token.STRING)
}

func (s *Scanner) number() token.Token {
	for isDigit(s.peek()) {
		s.advance()
	}
	if s.peek() == '.' && isDigit(s.peekNext()) {
		s.advance()
		for isDigit(s.peek()) {
			s.advance()
		}
	}
	return s.makeToken(token.NUMBER)
}

func (s *Scanner) identifier() token.Token {
	for isAlpha(s.peek()) || isDigit(s.peek()) {
		s.advance()
	}
	return s.makeToken(s.identifierType())
}

// checkKeyword compares the lexeme's tail against rest, returning typ on a
// match and IDENTIFIER otherwise.
func (s *Scanner) checkKeyword(start, length int, rest string, typ token.Type) token.Type {
	lexeme := s.src[s.start:s.current]
	if len(lexeme) == start+length && lexeme[start:start+length] == rest {
		return typ
	}
	return token.IDENTIFIER
}

// identifierType classifies the just-scanned identifier as a keyword or a
// plain identifier using a nested-switch trie on the first one or two
// characters, mirroring coreLox's scanner exactly.
func (s *Scanner) identifierType() token.Type {
	lexeme := s.src[s.start:s.current]
	switch lexeme[0] {
	case 'a':
		return s.checkKeyword(1, 2, "nd", token.AND)
	case 'c':
		return s.checkKeyword(1, 4, "lass", token.CLASS)
	case 'e':
		return s.checkKeyword(1, 3, "lse", token.ELSE)
	case 'f':
		if len(lexeme) > 1 {
			switch lexeme[1] {
			case 'a':
				return s.checkKeyword(2, 3, "lse", token.FALSE)
			case 'o':
				return s.checkKeyword(2, 1, "r", token.FOR)
			case 'u':
				return s.checkKeyword(2, 1, "n", token.FUN)
			}
		}
	case 'i':
		return s.checkKeyword(1, 1, "f", token.IF)
	case 'n':
		return s.checkKeyword(1, 2, "il", token.NIL)
	case 'o':
		return s.checkKeyword(1, 1, "r", token.OR)
	case 'p':
		return s.checkKeyword(1, 4, "rint", token.PRINT)
	case 'r':
		return s.checkKeyword(1, 5, "eturn", token.RETURN)
	case 's':
		return s.checkKeyword(1, 4, "uper", token.SUPER)
	case 't':
		if len(lexeme) > 1 {
			switch lexeme[1] {
			case 'h':
				return s.checkKeyword(2, 2, "is", token.THIS)
			case 'r':
				return s.checkKeyword(2, 2, "ue", token.TRUE)
			}
		}
	case 'v':
		return s.checkKeyword(1, 2, "ar", token.VAR)
	case 'w':
		return s.checkKeyword(1, 4, "hile", token.WHILE)
	}
	return token.IDENTIFIER
}
