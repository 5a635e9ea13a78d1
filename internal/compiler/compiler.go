package compiler

import (
	"math"

	"github.com/xirelogy/go-lox/internal/bytecode"
	"github.com/xirelogy/go-lox/internal/heap"
	"github.com/xirelogy/go-lox/internal/lexer"
	"github.com/xirelogy/go-lox/internal/token"
	"github.com/xirelogy/go-lox/internal/value"
)

// Compile translates source into the function for the top-level script.
// Parsing and code generation happen in the same pass. On failure it
// returns a *Error holding every diagnostic.
func Compile(h *heap.Heap, source string) (*value.Function, error) {
	c := &compiler{
		heap: h,
		lex:  lexer.New(source),
	}
	h.AddRoots(c)
	defer h.RemoveRoots(c)

	c.pushContext(kindScript)
	c.advance()
	for !c.match(token.EOF) {
		c.declaration()
	}
	fn, _ := c.popContext()

	if c.hadError {
		return nil, &Error{Diagnostics: c.diagnostics}
	}
	return fn, nil
}

type compiler struct {
	heap *heap.Heap
	lex  *lexer.Lexer

	current  token.Token
	previous token.Token

	hadError    bool
	panicMode   bool
	diagnostics []Diagnostic

	contexts []*context
	classes  []*classContext
}

type classContext struct {
	hasSuperclass bool
}

// MarkRoots keeps every function still under construction alive.
func (c *compiler) MarkRoots(h *heap.Heap) {
	for _, ctx := range c.contexts {
		h.MarkObject(ctx.function)
	}
}

func (c *compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.lex.NextToken()
		if c.current.Type != token.Error {
			return
		}
		c.errorAtCurrent(c.current.Lexeme)
	}
}

func (c *compiler) consume(t token.Type, msg string) {
	if c.current.Type == t {
		c.advance()
		return
	}
	c.errorAtCurrent(msg)
}

func (c *compiler) check(t token.Type) bool {
	return c.current.Type == t
}

func (c *compiler) match(t token.Type) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *compiler) error(msg string) {
	c.errorAt(c.previous, msg)
}

func (c *compiler) errorAtCurrent(msg string) {
	c.errorAt(c.current, msg)
}

func (c *compiler) errorAt(tok token.Token, msg string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true

	d := Diagnostic{Line: tok.Line, Message: msg}
	switch tok.Type {
	case token.EOF:
		d.Where = " at end"
	case token.Error:
	default:
		d.Where = " at '" + tok.Lexeme + "'"
	}
	c.diagnostics = append(c.diagnostics, d)
}

// synchronize skips tokens until a likely statement boundary.
func (c *compiler) synchronize() {
	c.panicMode = false
	for c.current.Type != token.EOF {
		if c.previous.Type == token.Semicolon {
			return
		}
		switch c.current.Type {
		case token.Class, token.Fun, token.Var, token.For,
			token.If, token.While, token.Print, token.Return:
			return
		}
		c.advance()
	}
}

func (c *compiler) chunk() *value.Chunk {
	return &c.ctx().function.Chunk
}

func (c *compiler) emitByte(b byte) {
	c.chunk().Write(b, c.previous.Line)
}

func (c *compiler) emitBytes(b ...byte) {
	for _, x := range b {
		c.emitByte(x)
	}
}

func (c *compiler) emitReturn() {
	if c.ctx().kind == kindInitializer {
		c.emitBytes(bytecode.OP_GET_LOCAL, 0)
	} else {
		c.emitByte(bytecode.OP_NIL)
	}
	c.emitByte(bytecode.OP_RETURN)
}

func (c *compiler) makeConstant(v value.Value) byte {
	idx := c.chunk().AddConstant(v)
	if idx > math.MaxUint8 {
		c.error("Too many constants in one chunk.")
		return 0
	}
	return byte(idx)
}

func (c *compiler) emitConstant(v value.Value) {
	c.emitBytes(bytecode.OP_CONSTANT, c.makeConstant(v))
}

func (c *compiler) identifierConstant(name token.Token) byte {
	return c.makeConstant(value.ObjVal(c.heap.NewString(name.Lexeme)))
}

// emitJump writes op with a placeholder offset and returns the position of
// the offset for patchJump.
func (c *compiler) emitJump(op byte) int {
	c.emitBytes(op, 0xff, 0xff)
	return len(c.chunk().Code) - 2
}

func (c *compiler) patchJump(pos int) {
	code := c.chunk().Code
	jump := len(code) - pos - 2
	if jump > math.MaxUint16 {
		c.error("Too much code to jump over.")
	}
	code[pos] = byte(jump >> 8)
	code[pos+1] = byte(jump)
}

func (c *compiler) emitLoop(start int) {
	c.emitByte(bytecode.OP_LOOP)
	offset := len(c.chunk().Code) - start + 2
	if offset > math.MaxUint16 {
		c.error("Loop body too large.")
	}
	c.emitBytes(byte(offset>>8), byte(offset))
}
