package compiler

import (
	"github.com/xirelogy/go-lox/internal/bytecode"
	"github.com/xirelogy/go-lox/internal/token"
	"github.com/xirelogy/go-lox/internal/value"
)

const (
	maxLocals   = 256
	maxUpvalues = 256
)

type functionKind int

const (
	kindScript functionKind = iota
	kindFunction
	kindMethod
	kindInitializer
)

type local struct {
	name string
	// depth is -1 between declaration and the end of the initializer.
	depth    int
	captured bool
}

type upvalue struct {
	index   uint8
	isLocal bool
}

// context tracks one function being compiled. Contexts nest on the
// compiler's stack the way function declarations nest in the source.
type context struct {
	function   *value.Function
	kind       functionKind
	locals     []local
	upvalues   []upvalue
	scopeDepth int
}

func (c *compiler) ctx() *context {
	return c.contexts[len(c.contexts)-1]
}

func (c *compiler) pushContext(kind functionKind) {
	ctx := &context{
		kind:     kind,
		function: c.heap.NewFunction(),
	}
	// push before allocating the name so the function is rooted
	c.contexts = append(c.contexts, ctx)
	if kind != kindScript {
		ctx.function.Name = c.heap.NewString(c.previous.Lexeme)
	}

	// slot 0 holds the callee, or the receiver inside methods
	slot0 := local{depth: 0}
	if kind == kindMethod || kind == kindInitializer {
		slot0.name = "this"
	}
	ctx.locals = append(ctx.locals, slot0)
}

func (c *compiler) popContext() (*value.Function, *context) {
	c.emitReturn()
	ctx := c.ctx()
	c.contexts = c.contexts[:len(c.contexts)-1]
	return ctx.function, ctx
}

func (c *compiler) beginScope() {
	c.ctx().scopeDepth++
}

func (c *compiler) endScope() {
	ctx := c.ctx()
	ctx.scopeDepth--
	for len(ctx.locals) > 0 && ctx.locals[len(ctx.locals)-1].depth > ctx.scopeDepth {
		if ctx.locals[len(ctx.locals)-1].captured {
			c.emitByte(bytecode.OP_CLOSE_UPVALUE)
		} else {
			c.emitByte(bytecode.OP_POP)
		}
		ctx.locals = ctx.locals[:len(ctx.locals)-1]
	}
}

func (c *compiler) addLocal(name string) {
	ctx := c.ctx()
	if len(ctx.locals) == maxLocals {
		c.error("Too many local variables in function.")
		return
	}
	ctx.locals = append(ctx.locals, local{name: name, depth: -1})
}

func (c *compiler) declareVariable() {
	ctx := c.ctx()
	if ctx.scopeDepth == 0 {
		return
	}
	name := c.previous.Lexeme
	for i := len(ctx.locals) - 1; i >= 0; i-- {
		l := ctx.locals[i]
		if l.depth != -1 && l.depth < ctx.scopeDepth {
			break
		}
		if l.name == name {
			c.error("Already a variable with this name in this scope.")
		}
	}
	c.addLocal(name)
}

// parseVariable consumes a variable name and returns its name constant,
// or 0 for locals, which need none.
func (c *compiler) parseVariable(msg string) byte {
	c.consume(token.Ident, msg)
	c.declareVariable()
	if c.ctx().scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(c.previous)
}

func (c *compiler) markInitialized() {
	ctx := c.ctx()
	if ctx.scopeDepth == 0 {
		return
	}
	ctx.locals[len(ctx.locals)-1].depth = ctx.scopeDepth
}

func (c *compiler) defineVariable(global byte) {
	if c.ctx().scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitBytes(bytecode.OP_DEFINE_GLOBAL, global)
}

// resolveLocal returns the slot of name in ctx, or -1.
func (c *compiler) resolveLocal(ctx *context, name string) int {
	for i := len(ctx.locals) - 1; i >= 0; i-- {
		if ctx.locals[i].name == name {
			if ctx.locals[i].depth == -1 {
				c.error("Can't read local variable in its own initializer.")
			}
			return i
		}
	}
	return -1
}

// resolveUpvalue walks enclosing contexts to find name, capturing it in
// every function between the declaration and the use. It returns the
// upvalue index in contexts[level], or -1.
func (c *compiler) resolveUpvalue(level int, name string) int {
	if level == 0 {
		return -1
	}
	enclosing := c.contexts[level-1]
	if slot := c.resolveLocal(enclosing, name); slot != -1 {
		enclosing.locals[slot].captured = true
		return c.addUpvalue(c.contexts[level], uint8(slot), true)
	}
	if index := c.resolveUpvalue(level-1, name); index != -1 {
		return c.addUpvalue(c.contexts[level], uint8(index), false)
	}
	return -1
}

func (c *compiler) addUpvalue(ctx *context, index uint8, isLocal bool) int {
	for i, uv := range ctx.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}
	if len(ctx.upvalues) == maxUpvalues {
		c.error("Too many closure variables in function.")
		return 0
	}
	ctx.upvalues = append(ctx.upvalues, upvalue{index: index, isLocal: isLocal})
	ctx.function.UpvalueCount = len(ctx.upvalues)
	return len(ctx.upvalues) - 1
}
