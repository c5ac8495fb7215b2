// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package compiler implements a single-pass Pratt compiler that turns a
// token stream directly into vm.Chunk bytecode — there is no intermediate
// AST. Expression parsing precedence is table-driven; statements and
// declarations are parsed by straight recursive descent.
package compiler

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/probechain/plox/scanner"
	"github.com/probechain/plox/token"
	"github.com/probechain/plox/vm"
)

// Precedence orders operators from loosest to tightest binding, matching
// compiler.h's Precedence enum.
type Precedence int

const (
	PrecNone Precedence = iota
	PrecAssignment       // =
	PrecOr               // or
	PrecAnd              // and
	PrecEquality         // == !=
	PrecComparison       // < > <= >=
	PrecTerm             // + -
	PrecFactor           // * /
	PrecUnary            // ! -
	PrecCall             // . ()
	PrecPrimary
)

type parseFn func(p *parser, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence Precedence
}

var rules = [...]parseRule{
	token.LEFT_PAREN:    {grouping, call, PrecCall},
	token.DOT:            {nil, dot, PrecCall},
	token.MINUS:          {unary, binary, PrecTerm},
	token.PLUS:           {nil, binary, PrecTerm},
	token.SLASH:          {nil, binary, PrecFactor},
	token.STAR:           {nil, binary, PrecFactor},
	token.BANG:           {unary, nil, PrecNone},
	token.BANG_EQUAL:     {nil, binary, PrecEquality},
	token.EQUAL_EQUAL:    {nil, binary, PrecEquality},
	token.GREATER:        {nil, binary, PrecComparison},
	token.GREATER_EQUAL:  {nil, binary, PrecComparison},
	token.LESS:           {nil, binary, PrecComparison},
	token.LESS_EQUAL:     {nil, binary, PrecComparison},
	token.IDENTIFIER:     {variable, nil, PrecNone},
	token.STRING:         {stringLiteral, nil, PrecNone},
	token.NUMBER:         {number, nil, PrecNone},
	token.AND:            {nil, and_, PrecAnd},
	token.FALSE:          {literal, nil, PrecNone},
	token.NIL:            {literal, nil, PrecNone},
	token.OR:             {nil, or_, PrecOr},
	token.SUPER:          {super_, nil, PrecNone},
	token.THIS:           {this_, nil, PrecNone},
	token.TRUE:           {literal, nil, PrecNone},
}

func getRule(t token.Type) parseRule {
	if int(t) < 0 || int(t) >= len(rules) {
		return parseRule{}
	}
	return rules[t]
}

// local tracks one declared local variable's name, the scope depth it was
// declared at (-1 while its own initializer is still being compiled), and
// whether any nested closure captures it.
type local struct {
	name       token.Token
	depth      int
	isCaptured bool
}

// upvalueRef records how a closure's Nth upvalue is sourced: either slot
// index in the immediately enclosing function's locals, or index into
// that function's own upvalue list.
type upvalueRef struct {
	index   byte
	isLocal bool
}

type functionType int

const (
	typeFunction functionType = iota
	typeInitializer
	typeMethod
	typeScript
)

// funcCompiler holds the state for one function body being compiled —
// its own locals, upvalues, and scope depth — linked to the compiler of
// the function that lexically encloses it.
type funcCompiler struct {
	enclosing  *funcCompiler
	function   *vm.ObjFunction
	fnType     functionType
	locals     []local
	scopeDepth int
	upvalues   []upvalueRef
}

// classCompiler tracks the class currently being compiled, linked to any
// enclosing class, so "this"/"super" can be validated and nested class
// bodies restore the right context on exit.
type classCompiler struct {
	enclosing     *classCompiler
	name          token.Token
	hasSuperclass bool
}

// parser is the compiler's single mutable piece of state: the token
// stream, error-recovery flags, and the chain of function/class
// compilers for whatever scope is currently being parsed.
type parser struct {
	machine *vm.VM
	scan    *scanner.Scanner

	current  token.Token
	previous token.Token

	hadError  bool
	panicMode bool

	cc  *funcCompiler
	cls *classCompiler

	errOut io.Writer
}

const maxLocals = 256
const maxArgs = 255

// Compile compiles source into the top-level script function. A non-nil
// error means one or more syntax errors were reported to stderr during
// compilation; the returned function is nil in that case.
func Compile(source string, machine *vm.VM) (*vm.ObjFunction, error) {
	p := &parser{machine: machine, scan: scanner.New(source), errOut: os.Stderr}
	p.pushFuncCompiler(typeScript)

	machine.SetCompilerRootsHook(p.markCompilerRoots)
	defer machine.SetCompilerRootsHook(nil)

	p.advance()
	for !p.match(token.EOF) {
		p.declaration()
	}
	fn := p.endCompiler()

	if p.hadError {
		return nil, fmt.Errorf("compile error")
	}
	return fn, nil
}

// markCompilerRoots keeps every in-progress function object reachable
// across the whole enclosing chain, the same root the collector needs
// while a collection is triggered mid-compilation.
func (p *parser) markCompilerRoots(machine *vm.VM) {
	for c := p.cc; c != nil; c = c.enclosing {
		machine.MarkExternalRoot(c.function)
	}
}

func (p *parser) pushFuncCompiler(fnType functionType) {
	fn := p.machine.NewFunction()
	c := &funcCompiler{enclosing: p.cc, function: fn, fnType: fnType}

	if fnType != typeScript {
		fn.Name = p.machine.InternString(p.previous.Lexeme)
	}

	// Slot 0 is reserved: "this" for methods/initializers, unnamed
	// (and inaccessible) for plain functions and the top-level script.
	reserved := local{depth: 0}
	if fnType == typeMethod || fnType == typeInitializer {
		reserved.name = token.Synthetic("this", p.previous.Line)
	}
	c.locals = append(c.locals, reserved)

	p.cc = c
}

func (p *parser) currentChunk() *vm.Chunk {
	return p.cc.function.Chunk
}

//-----------------------------------------------------------------------
// Error handling
//-----------------------------------------------------------------------

func (p *parser) errorAt(tok token.Token, msg string) {
	if p.panicMode {
		return
	}
	p.panicMode = true

	fmt.Fprintf(p.errOut, "[line %d] Error", tok.Line)
	switch tok.Type {
	case token.EOF:
		fmt.Fprint(p.errOut, " at end")
	case token.ERROR:
		// The message is already the diagnostic; nothing to append.
	default:
		fmt.Fprintf(p.errOut, " at '%s'", tok.Lexeme)
	}
	fmt.Fprintf(p.errOut, ": %s\n", msg)
	p.hadError = true
}

func (p *parser) errorAtCurrent(msg string) { p.errorAt(p.current, msg) }
func (p *parser) errorAtPrevious(msg string) { p.errorAt(p.previous, msg) }

// synchronize skips tokens after an error until a plausible statement
// boundary, so one mistake doesn't cascade into a wall of diagnostics.
func (p *parser) synchronize() {
	p.panicMode = false
	for p.current.Type != token.EOF {
		if p.previous.Type == token.SEMICOLON {
			return
		}
		switch p.current.Type {
		case token.CLASS, token.FUN, token.VAR, token.FOR, token.IF, token.WHILE, token.PRINT, token.RETURN:
			return
		}
		p.advance()
	}
}

//-----------------------------------------------------------------------
// Parser primitives
//-----------------------------------------------------------------------

func (p *parser) advance() {
	p.previous = p.current
	for {
		p.current = p.scan.ScanToken()
		if p.current.Type != token.ERROR {
			break
		}
		p.errorAtCurrent(p.current.Lexeme)
	}
}

func (p *parser) consume(t token.Type, msg string) {
	if p.current.Type == t {
		p.advance()
		return
	}
	p.errorAtCurrent(msg)
}

func (p *parser) check(t token.Type) bool { return p.current.Type == t }

func (p *parser) match(t token.Type) bool {
	if !p.check(t) {
		return false
	}
	p.advance()
	return true
}

//-----------------------------------------------------------------------
// Bytecode emitter helpers
//-----------------------------------------------------------------------

func (p *parser) emitByte(b byte) {
	p.currentChunk().Write(b, p.previous.Line)
}

func (p *parser) emitOp(op vm.OpCode) { p.emitByte(byte(op)) }

func (p *parser) emitBytes(b1, b2 byte) {
	p.emitByte(b1)
	p.emitByte(b2)
}

func (p *parser) emitOpByte(op vm.OpCode, b byte) {
	p.emitBytes(byte(op), b)
}

// emitJump emits a jump instruction with a placeholder 16-bit offset and
// returns the offset of that placeholder for patchJump to fill in once
// the jump target is known.
func (p *parser) emitJump(op vm.OpCode) int {
	p.emitOp(op)
	p.emitByte(0xff)
	p.emitByte(0xff)
	return len(p.currentChunk().Code) - 2
}

func (p *parser) patchJump(offset int) {
	jump := len(p.currentChunk().Code) - offset - 2
	if jump > 0xffff {
		p.errorAtPrevious("Too much code to jump over.")
	}
	p.currentChunk().Code[offset] = byte((jump >> 8) & 0xff)
	p.currentChunk().Code[offset+1] = byte(jump & 0xff)
}

// emitLoop emits OP_LOOP with the backward offset to loopStart.
func (p *parser) emitLoop(loopStart int) {
	p.emitOp(vm.OpLoop)
	offset := len(p.currentChunk().Code) - loopStart + 2
	if offset > 0xffff {
		p.errorAtPrevious("Loop body too large.")
	}
	p.emitByte(byte((offset >> 8) & 0xff))
	p.emitByte(byte(offset & 0xff))
}

func (p *parser) makeConstant(v vm.Value) byte {
	idx := p.currentChunk().AddConstant(v)
	if idx > 0xff {
		p.errorAtPrevious("Too many constants in one chunk.")
		return 0
	}
	return byte(idx)
}

func (p *parser) emitConstant(v vm.Value) {
	p.emitOpByte(vm.OpConstant, p.makeConstant(v))
}

// emitReturn emits the implicit return every function body ends with:
// initializers implicitly return their receiver, everything else nil.
func (p *parser) emitReturn() {
	if p.cc.fnType == typeInitializer {
		p.emitOpByte(vm.OpGetLocal, 0)
	} else {
		p.emitOp(vm.OpNil)
	}
	p.emitOp(vm.OpReturn)
}

func (p *parser) endCompiler() *vm.ObjFunction {
	p.emitReturn()
	fn := p.cc.function
	p.cc = p.cc.enclosing
	return fn
}

//-----------------------------------------------------------------------
// Scopes and variables
//-----------------------------------------------------------------------

func (p *parser) beginScope() { p.cc.scopeDepth++ }

// endScope closes the current block, popping (or closing, if captured)
// every local declared inside it in reverse declaration order.
func (p *parser) endScope() {
	p.cc.scopeDepth--
	locals := p.cc.locals
	for len(locals) > 0 && locals[len(locals)-1].depth > p.cc.scopeDepth {
		if locals[len(locals)-1].isCaptured {
			p.emitOp(vm.OpCloseUpvalue)
		} else {
			p.emitOp(vm.OpPop)
		}
		locals = locals[:len(locals)-1]
	}
	p.cc.locals = locals
}

func identifiersEqual(a, b token.Token) bool { return a.Lexeme == b.Lexeme }

func (p *parser) addLocal(name token.Token) {
	if len(p.cc.locals) >= maxLocals {
		p.errorAtPrevious("Too many local variables in function.")
		return
	}
	p.cc.locals = append(p.cc.locals, local{name: name, depth: -1})
}

// declareVariable registers a local variable in the current scope,
// rejecting a redeclaration within the same block. Globals are resolved
// at runtime by name, so at scope depth 0 this is a no-op.
func (p *parser) declareVariable() {
	if p.cc.scopeDepth == 0 {
		return
	}
	name := p.previous
	for i := len(p.cc.locals) - 1; i >= 0; i-- {
		l := p.cc.locals[i]
		if l.depth != -1 && l.depth < p.cc.scopeDepth {
			break
		}
		if identifiersEqual(name, l.name) {
			p.errorAtPrevious("Already a variable with this name in this scope.")
		}
	}
	p.addLocal(name)
}

func (p *parser) identifierConstant(name token.Token) byte {
	return p.makeConstant(vm.ObjVal(p.machine.InternString(name.Lexeme)))
}

func (p *parser) parseVariable(msg string) byte {
	p.consume(token.IDENTIFIER, msg)
	p.declareVariable()
	if p.cc.scopeDepth > 0 {
		return 0
	}
	return p.identifierConstant(p.previous)
}

func (p *parser) markInitialized() {
	if p.cc.scopeDepth == 0 {
		return
	}
	p.cc.locals[len(p.cc.locals)-1].depth = p.cc.scopeDepth
}

func (p *parser) defineVariable(global byte) {
	if p.cc.scopeDepth > 0 {
		p.markInitialized()
		return
	}
	p.emitOpByte(vm.OpDefineGlobal, global)
}

func resolveLocal(c *funcCompiler, p *parser, name token.Token) int {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if identifiersEqual(name, c.locals[i].name) {
			if c.locals[i].depth == -1 {
				p.errorAtPrevious("Can't read local variable in its own initializer.")
			}
			return i
		}
	}
	return -1
}

func addUpvalue(c *funcCompiler, p *parser, index byte, isLocal bool) int {
	for i, uv := range c.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}
	if len(c.upvalues) >= maxLocals {
		p.errorAtPrevious("Too many closure variables in function.")
		return 0
	}
	c.upvalues = append(c.upvalues, upvalueRef{index: index, isLocal: isLocal})
	c.function.UpvalueCount = len(c.upvalues)
	return len(c.upvalues) - 1
}

// resolveUpvalue walks outward through enclosing functions looking for
// name, wiring up an upvalue chain (capturing a local directly, or
// re-exporting an enclosing function's own upvalue) as it unwinds.
func resolveUpvalue(c *funcCompiler, p *parser, name token.Token) int {
	if c.enclosing == nil {
		return -1
	}
	if localIdx := resolveLocal(c.enclosing, p, name); localIdx != -1 {
		c.enclosing.locals[localIdx].isCaptured = true
		return addUpvalue(c, p, byte(localIdx), true)
	}
	if up := resolveUpvalue(c.enclosing, p, name); up != -1 {
		return addUpvalue(c, p, byte(up), false)
	}
	return -1
}

//-----------------------------------------------------------------------
// Pratt parser
//-----------------------------------------------------------------------

func (p *parser) parsePrecedence(prec Precedence) {
	p.advance()
	prefix := getRule(p.previous.Type).prefix
	if prefix == nil {
		p.errorAtPrevious("Expected expression.")
		return
	}
	canAssign := prec <= PrecAssignment
	prefix(p, canAssign)

	for prec <= getRule(p.current.Type).precedence {
		p.advance()
		infix := getRule(p.previous.Type).infix
		infix(p, canAssign)
	}

	if canAssign && p.match(token.EQUAL) {
		p.errorAtPrevious("Invalid assignment target.")
	}
}

func (p *parser) expression() { p.parsePrecedence(PrecAssignment) }

func grouping(p *parser, _ bool) {
	p.expression()
	p.consume(token.RIGHT_PAREN, "Expected ')' after expression.")
}

func unary(p *parser, _ bool) {
	opType := p.previous.Type
	p.parsePrecedence(PrecUnary)
	switch opType {
	case token.BANG:
		p.emitOp(vm.OpNot)
	case token.MINUS:
		p.emitOp(vm.OpNegate)
	}
}

// binary parses the right operand at one precedence tighter than the
// operator's own, so that same-precedence chains like `5 - 3 - 1`
// associate left (`(5 - 3) - 1`).
func binary(p *parser, _ bool) {
	opType := p.previous.Type
	rule := getRule(opType)
	p.parsePrecedence(rule.precedence + 1)

	switch opType {
	case token.BANG_EQUAL:
		p.emitOp(vm.OpEqual)
		p.emitOp(vm.OpNot)
	case token.EQUAL_EQUAL:
		p.emitOp(vm.OpEqual)
	case token.GREATER:
		p.emitOp(vm.OpGreater)
	case token.GREATER_EQUAL:
		p.emitOp(vm.OpLess)
		p.emitOp(vm.OpNot)
	case token.LESS:
		p.emitOp(vm.OpLess)
	case token.LESS_EQUAL:
		p.emitOp(vm.OpGreater)
		p.emitOp(vm.OpNot)
	case token.PLUS:
		p.emitOp(vm.OpAdd)
	case token.MINUS:
		p.emitOp(vm.OpSubtract)
	case token.STAR:
		p.emitOp(vm.OpMultiply)
	case token.SLASH:
		p.emitOp(vm.OpDivide)
	}
}

// and_ short-circuits: if the left operand is falsey, its value (not a
// boolean) is left on the stack and the right operand is skipped.
func and_(p *parser, _ bool) {
	endJump := p.emitJump(vm.OpJumpIfFalse)
	p.emitOp(vm.OpPop)
	p.parsePrecedence(PrecAnd)
	p.patchJump(endJump)
}

// or_ short-circuits the opposite way: a truthy left operand skips the
// right operand entirely.
func or_(p *parser, _ bool) {
	elseJump := p.emitJump(vm.OpJumpIfFalse)
	endJump := p.emitJump(vm.OpJump)

	p.patchJump(elseJump)
	p.emitOp(vm.OpPop)

	p.parsePrecedence(PrecOr)
	p.patchJump(endJump)
}

func (p *parser) argumentList() byte {
	var argCount int
	if !p.check(token.RIGHT_PAREN) {
		for {
			p.expression()
			if argCount == maxArgs {
				p.errorAtPrevious("Can't have more than 255 arguments.")
			}
			argCount++
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RIGHT_PAREN, "Expected ')' after arguments.")
	return byte(argCount)
}

func call(p *parser, _ bool) {
	argCount := p.argumentList()
	p.emitOpByte(vm.OpCall, argCount)
}

// dot parses property access, property assignment, or a method call —
// the last compiled straight to OP_INVOKE so the VM can skip building an
// intermediate bound-method object for the common case.
func dot(p *parser, canAssign bool) {
	p.consume(token.IDENTIFIER, "Expected property name after '.'.")
	name := p.identifierConstant(p.previous)

	switch {
	case canAssign && p.match(token.EQUAL):
		p.expression()
		p.emitOpByte(vm.OpSetProperty, name)
	case p.match(token.LEFT_PAREN):
		argCount := p.argumentList()
		p.emitOpByte(vm.OpInvoke, name)
		p.emitByte(argCount)
	default:
		p.emitOpByte(vm.OpGetProperty, name)
	}
}

func literal(p *parser, _ bool) {
	switch p.previous.Type {
	case token.FALSE:
		p.emitOp(vm.OpFalse)
	case token.TRUE:
		p.emitOp(vm.OpTrue)
	case token.NIL:
		p.emitOp(vm.OpNil)
	}
}

func number(p *parser, _ bool) {
	v, _ := strconv.ParseFloat(p.previous.Lexeme, 64)
	p.emitConstant(vm.NumberVal(v))
}

// stringLiteral strips the surrounding quote characters; coreLox never
// processes escape sequences inside string literals, and neither do we.
func stringLiteral(p *parser, _ bool) {
	raw := p.previous.Lexeme
	chars := raw[1 : len(raw)-1]
	p.emitConstant(vm.ObjVal(p.machine.InternString(chars)))
}

// namedVariable resolves name as a local, an upvalue, or (failing both) a
// global, and emits the matching get/set instruction depending on
// whether an assignment follows.
func namedVariable(p *parser, name token.Token, canAssign bool) {
	var getOp, setOp vm.OpCode
	var arg int

	if local := resolveLocal(p.cc, p, name); local != -1 {
		getOp, setOp, arg = vm.OpGetLocal, vm.OpSetLocal, local
	} else if up := resolveUpvalue(p.cc, p, name); up != -1 {
		getOp, setOp, arg = vm.OpGetUpvalue, vm.OpSetUpvalue, up
	} else {
		arg = int(p.identifierConstant(name))
		getOp, setOp = vm.OpGetGlobal, vm.OpSetGlobal
	}

	if canAssign && p.match(token.EQUAL) {
		p.expression()
		p.emitOpByte(setOp, byte(arg))
	} else {
		p.emitOpByte(getOp, byte(arg))
	}
}

func variable(p *parser, canAssign bool) {
	namedVariable(p, p.previous, canAssign)
}

func this_(p *parser, _ bool) {
	if p.cls == nil {
		p.errorAtPrevious("Can't use 'this' outside of a class.")
		return
	}
	variable(p, false)
}

func super_(p *parser, _ bool) {
	switch {
	case p.cls == nil:
		p.errorAtPrevious("Can't use 'super' outside of a class.")
	case !p.cls.hasSuperclass:
		p.errorAtPrevious("Can't use 'super' in a class with no superclass.")
	}

	p.consume(token.DOT, "Expected '.' after 'super'.")
	p.consume(token.IDENTIFIER, "Expected superclass method name.")
	name := p.identifierConstant(p.previous)

	namedVariable(p, token.Synthetic("this", p.previous.Line), false)
	if p.match(token.LEFT_PAREN) {
		argCount := p.argumentList()
		namedVariable(p, token.Synthetic("super", p.previous.Line), false)
		p.emitOpByte(vm.OpSuperInvoke, name)
		p.emitByte(argCount)
	} else {
		namedVariable(p, token.Synthetic("super", p.previous.Line), false)
		p.emitOpByte(vm.OpGetSuper, name)
	}
}

//-----------------------------------------------------------------------
// Statements and declarations
//-----------------------------------------------------------------------

func (p *parser) block() {
	for !p.check(token.RIGHT_BRACE) && !p.check(token.EOF) {
		p.declaration()
	}
	p.consume(token.RIGHT_BRACE, "Expected '}' after block.")
}

// function compiles one function body (its own funcCompiler pushed for
// the duration) and leaves an OP_CLOSURE plus its upvalue descriptors in
// the enclosing function's code.
func (p *parser) function(fnType functionType) {
	p.pushFuncCompiler(fnType)
	p.beginScope()

	p.consume(token.LEFT_PAREN, "Expected '(' after function name.")
	if !p.check(token.RIGHT_PAREN) {
		for {
			p.cc.function.Arity++
			if p.cc.function.Arity > maxArgs {
				p.errorAtCurrent("Can't have more than 255 parameters.")
			}
			param := p.parseVariable("Expected parameter name.")
			p.defineVariable(param)
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RIGHT_PAREN, "Expected ')' after parameters.")

	p.consume(token.LEFT_BRACE, "Expected '{' before function body.")
	p.block()

	// Capture the finished function's upvalue list before endCompiler
	// pops p.cc back to the enclosing compiler.
	upvalues := p.cc.upvalues
	fn := p.endCompiler()
	p.emitOpByte(vm.OpClosure, p.makeConstant(vm.ObjVal(fn)))

	for _, uv := range upvalues {
		if uv.isLocal {
			p.emitByte(1)
		} else {
			p.emitByte(0)
		}
		p.emitByte(uv.index)
	}
}

func funDeclaration(p *parser) {
	global := p.parseVariable("Expected function name.")
	p.markInitialized()
	p.function(typeFunction)
	p.defineVariable(global)
}

func method(p *parser) {
	p.consume(token.IDENTIFIER, "Expected method name.")
	constant := p.identifierConstant(p.previous)

	fnType := typeMethod
	if p.previous.Lexeme == "init" {
		fnType = typeInitializer
	}
	p.function(fnType)
	p.emitOpByte(vm.OpMethod, constant)
}

// classDeclaration compiles a class and its methods. Inheritance opens a
// synthetic scope holding "super" as a local for the duration of the
// class body, so method bodies can resolve "super" the same way they
// resolve any other captured variable.
func classDeclaration(p *parser) {
	p.consume(token.IDENTIFIER, "Expected class name.")
	className := p.previous
	nameConstant := p.identifierConstant(p.previous)
	p.declareVariable()

	p.emitOpByte(vm.OpClass, nameConstant)
	p.defineVariable(nameConstant)

	cls := &classCompiler{enclosing: p.cls, name: className}
	p.cls = cls

	if p.match(token.LESS) {
		p.consume(token.IDENTIFIER, "Expected superclass name.")
		variable(p, false)

		if identifiersEqual(className, p.previous) {
			p.errorAtPrevious("A class can't inherit from itself.")
		}

		p.beginScope()
		p.addLocal(token.Synthetic("super", p.previous.Line))
		p.defineVariable(0)

		namedVariable(p, className, false)
		p.emitOp(vm.OpInherit)
		cls.hasSuperclass = true
	}

	namedVariable(p, className, false)
	p.consume(token.LEFT_BRACE, "Expected '{' before class body.")
	for !p.check(token.RIGHT_BRACE) && !p.check(token.EOF) {
		method(p)
	}
	p.consume(token.RIGHT_BRACE, "Expected '}' after class body.")
	p.emitOp(vm.OpPop)

	if cls.hasSuperclass {
		p.endScope()
	}

	p.cls = p.cls.enclosing
}

func varDeclaration(p *parser) {
	global := p.parseVariable("Expected variable name.")
	if p.match(token.EQUAL) {
		p.expression()
	} else {
		p.emitOp(vm.OpNil)
	}
	p.consume(token.SEMICOLON, "Expected ';' after variable declaration.")
	p.defineVariable(global)
}

func expressionStatement(p *parser) {
	p.expression()
	p.consume(token.SEMICOLON, "Expected ';' after value.")
	p.emitOp(vm.OpPop)
}

func printStatement(p *parser) {
	p.expression()
	p.consume(token.SEMICOLON, "Expected ';' after value.")
	p.emitOp(vm.OpPrint)
}

func returnStatement(p *parser) {
	if p.cc.fnType == typeScript {
		p.errorAtPrevious("Can't return from top-level code.")
	}
	if p.match(token.SEMICOLON) {
		p.emitReturn()
		return
	}
	if p.cc.fnType == typeInitializer {
		p.errorAtPrevious("Can't return a value from an initializer.")
	}
	p.expression()
	p.consume(token.SEMICOLON, "Expected ';' after return value.")
	p.emitOp(vm.OpReturn)
}

func ifStatement(p *parser) {
	p.consume(token.LEFT_PAREN, "Expected '(' after 'if'.")
	p.expression()
	p.consume(token.RIGHT_PAREN, "Expected ')' after condition.")

	thenJump := p.emitJump(vm.OpJumpIfFalse)
	p.emitOp(vm.OpPop)
	p.statement()

	elseJump := p.emitJump(vm.OpJump)

	p.patchJump(thenJump)
	p.emitOp(vm.OpPop)

	if p.match(token.ELSE) {
		p.statement()
	}
	p.patchJump(elseJump)
}

func whileStatement(p *parser) {
	loopStart := len(p.currentChunk().Code)

	p.consume(token.LEFT_PAREN, "Expected '(' after 'while'.")
	p.expression()
	p.consume(token.RIGHT_PAREN, "Expected ')' after condition.")

	exitJump := p.emitJump(vm.OpJumpIfFalse)
	p.emitOp(vm.OpPop)
	p.statement()
	p.emitLoop(loopStart)

	p.patchJump(exitJump)
	p.emitOp(vm.OpPop)
}

// forStatement desugars C-style for loops — with any of the three
// clauses optionally omitted — into the same jump/loop bytecode shape a
// hand-written while loop would produce.
func forStatement(p *parser) {
	p.beginScope()
	p.consume(token.LEFT_PAREN, "Expected '(' after 'for'.")

	switch {
	case p.match(token.SEMICOLON):
		// No initializer clause.
	case p.match(token.VAR):
		varDeclaration(p)
	default:
		expressionStatement(p)
	}

	loopStart := len(p.currentChunk().Code)

	exitJump := -1
	if !p.match(token.SEMICOLON) {
		p.expression()
		p.consume(token.SEMICOLON, "Expected ';' after loop condition.")
		exitJump = p.emitJump(vm.OpJumpIfFalse)
		p.emitOp(vm.OpPop)
	}

	if !p.match(token.RIGHT_PAREN) {
		bodyJump := p.emitJump(vm.OpJump)
		incrementStart := len(p.currentChunk().Code)
		p.expression()
		p.emitOp(vm.OpPop)
		p.consume(token.RIGHT_PAREN, "Expected ')' after for clauses.")

		p.emitLoop(loopStart)
		loopStart = incrementStart
		p.patchJump(bodyJump)
	}

	p.statement()
	p.emitLoop(loopStart)

	if exitJump != -1 {
		p.patchJump(exitJump)
		p.emitOp(vm.OpPop)
	}

	p.endScope()
}

func (p *parser) statement() {
	switch {
	case p.match(token.PRINT):
		printStatement(p)
	case p.match(token.IF):
		ifStatement(p)
	case p.match(token.WHILE):
		whileStatement(p)
	case p.match(token.FOR):
		forStatement(p)
	case p.match(token.LEFT_BRACE):
		p.beginScope()
		p.block()
		p.endScope()
	case p.match(token.RETURN):
		returnStatement(p)
	default:
		expressionStatement(p)
	}
}

func (p *parser) declaration() {
	switch {
	case p.match(token.CLASS):
		classDeclaration(p)
	case p.match(token.FUN):
		funDeclaration(p)
	case p.match(token.VAR):
		varDeclaration(p)
	default:
		p.statement()
	}
	if p.panicMode {
		p.synchronize()
	}
}
