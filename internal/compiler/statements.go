package compiler

import (
	"github.com/xirelogy/go-lox/internal/bytecode"
	"github.com/xirelogy/go-lox/internal/token"
	"github.com/xirelogy/go-lox/internal/value"
)

func (c *compiler) declaration() {
	switch {
	case c.match(token.Class):
		c.classDeclaration()
	case c.match(token.Fun):
		c.funDeclaration()
	case c.match(token.Var):
		c.varDeclaration()
	default:
		c.statement()
	}
	if c.panicMode {
		c.synchronize()
	}
}

func (c *compiler) statement() {
	switch {
	case c.match(token.Print):
		c.printStatement()
	case c.match(token.For):
		c.forStatement()
	case c.match(token.If):
		c.ifStatement()
	case c.match(token.Return):
		c.returnStatement()
	case c.match(token.While):
		c.whileStatement()
	case c.match(token.LBrace):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *compiler) block() {
	for !c.check(token.RBrace) && !c.check(token.EOF) {
		c.declaration()
	}
	c.consume(token.RBrace, "Expect '}' after block.")
}

func (c *compiler) varDeclaration() {
	global := c.parseVariable("Expect variable name.")
	if c.match(token.Assign) {
		c.expression()
	} else {
		c.emitByte(bytecode.OP_NIL)
	}
	c.consume(token.Semicolon, "Expect ';' after variable declaration.")
	c.defineVariable(global)
}

func (c *compiler) funDeclaration() {
	global := c.parseVariable("Expect function name.")
	// a function may refer to itself
	c.markInitialized()
	c.function(kindFunction)
	c.defineVariable(global)
}

// function compiles a parameter list and body into a new function and
// emits the closure that creates it at runtime.
func (c *compiler) function(kind functionKind) {
	c.pushContext(kind)
	c.beginScope()

	c.consume(token.LParen, "Expect '(' after function name.")
	if !c.check(token.RParen) {
		for {
			fn := c.ctx().function
			fn.Arity++
			if fn.Arity > 255 {
				c.errorAtCurrent("Can't have more than 255 parameters.")
			}
			constant := c.parseVariable("Expect parameter name.")
			c.defineVariable(constant)
			if !c.match(token.Comma) {
				break
			}
		}
	}
	c.consume(token.RParen, "Expect ')' after parameters.")
	c.consume(token.LBrace, "Expect '{' before function body.")
	c.block()

	fn, ctx := c.popContext()
	c.emitBytes(bytecode.OP_CLOSURE, c.makeConstant(value.ObjVal(fn)))
	for _, uv := range ctx.upvalues {
		isLocal := byte(0)
		if uv.isLocal {
			isLocal = 1
		}
		c.emitBytes(isLocal, uv.index)
	}
}

func (c *compiler) classDeclaration() {
	c.consume(token.Ident, "Expect class name.")
	className := c.previous.Lexeme
	nameConstant := c.identifierConstant(c.previous)
	c.declareVariable()

	c.emitBytes(bytecode.OP_CLASS, nameConstant)
	c.defineVariable(nameConstant)

	class := &classContext{}
	c.classes = append(c.classes, class)

	if c.match(token.Less) {
		c.consume(token.Ident, "Expect superclass name.")
		c.namedVariable(c.previous.Lexeme, false)
		if className == c.previous.Lexeme {
			c.error("A class can't inherit from itself.")
		}

		c.beginScope()
		c.addLocal("super")
		c.defineVariable(0)

		c.namedVariable(className, false)
		c.emitByte(bytecode.OP_INHERIT)
		class.hasSuperclass = true
	}

	c.namedVariable(className, false)
	c.consume(token.LBrace, "Expect '{' before class body.")
	for !c.check(token.RBrace) && !c.check(token.EOF) {
		c.method()
	}
	c.consume(token.RBrace, "Expect '}' after class body.")
	c.emitByte(bytecode.OP_POP)

	if class.hasSuperclass {
		c.endScope()
	}
	c.classes = c.classes[:len(c.classes)-1]
}

func (c *compiler) method() {
	c.consume(token.Ident, "Expect method name.")
	constant := c.identifierConstant(c.previous)
	kind := kindMethod
	if c.previous.Lexeme == "init" {
		kind = kindInitializer
	}
	c.function(kind)
	c.emitBytes(bytecode.OP_METHOD, constant)
}

func (c *compiler) printStatement() {
	c.expression()
	c.consume(token.Semicolon, "Expect ';' after value.")
	c.emitByte(bytecode.OP_PRINT)
}

func (c *compiler) expressionStatement() {
	c.expression()
	c.consume(token.Semicolon, "Expect ';' after expression.")
	c.emitByte(bytecode.OP_POP)
}

func (c *compiler) returnStatement() {
	kind := c.ctx().kind
	if kind == kindScript {
		c.error("Can't return from top-level code.")
	}
	if c.match(token.Semicolon) {
		c.emitReturn()
		return
	}
	if kind == kindInitializer {
		c.error("Can't return a value from an initializer.")
	}
	c.expression()
	c.consume(token.Semicolon, "Expect ';' after return value.")
	c.emitByte(bytecode.OP_RETURN)
}

func (c *compiler) ifStatement() {
	c.consume(token.LParen, "Expect '(' after 'if'.")
	c.expression()
	c.consume(token.RParen, "Expect ')' after condition.")

	thenJump := c.emitJump(bytecode.OP_JUMP_IF_FALSE)
	c.emitByte(bytecode.OP_POP) // condition, then branch
	c.statement()
	elseJump := c.emitJump(bytecode.OP_JUMP)

	c.patchJump(thenJump)
	c.emitByte(bytecode.OP_POP) // condition, else branch
	if c.match(token.Else) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *compiler) whileStatement() {
	loopStart := len(c.chunk().Code)
	c.consume(token.LParen, "Expect '(' after 'while'.")
	c.expression()
	c.consume(token.RParen, "Expect ')' after condition.")

	exitJump := c.emitJump(bytecode.OP_JUMP_IF_FALSE)
	c.emitByte(bytecode.OP_POP)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitByte(bytecode.OP_POP)
}

func (c *compiler) forStatement() {
	c.beginScope()
	c.consume(token.LParen, "Expect '(' after 'for'.")
	switch {
	case c.match(token.Semicolon):
	case c.match(token.Var):
		c.varDeclaration()
	default:
		c.expressionStatement()
	}

	loopStart := len(c.chunk().Code)
	exitJump := -1
	if !c.match(token.Semicolon) {
		c.expression()
		c.consume(token.Semicolon, "Expect ';' after loop condition.")
		exitJump = c.emitJump(bytecode.OP_JUMP_IF_FALSE)
		c.emitByte(bytecode.OP_POP)
	}

	// the increment runs after the body, so jump over it on the way in
	if !c.match(token.RParen) {
		bodyJump := c.emitJump(bytecode.OP_JUMP)
		incrementStart := len(c.chunk().Code)
		c.expression()
		c.emitByte(bytecode.OP_POP)
		c.consume(token.RParen, "Expect ')' after for clauses.")

		c.emitLoop(loopStart)
		loopStart = incrementStart
		c.patchJump(bodyJump)
	}

	c.statement()
	c.emitLoop(loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitByte(bytecode.OP_POP)
	}
	c.endScope()
}
