package compiler

import (
	"strconv"

	"github.com/xirelogy/go-lox/internal/bytecode"
	"github.com/xirelogy/go-lox/internal/token"
	"github.com/xirelogy/go-lox/internal/value"
)

const (
	precNone = iota
	precAssignment
	precOr
	precAnd
	precEquality
	precComparison
	precTerm
	precFactor
	precUnary
	precCall
	precPrimary
)

type parseFn func(c *compiler, canAssign bool)

// rule is the Pratt parsing entry for one token kind.
type rule struct {
	prefix parseFn
	infix  parseFn
	prec   int
}

// rules is filled in init because the parse functions refer back to it.
var rules map[token.Type]rule

func init() {
	rules = map[token.Type]rule{
		token.LParen:       {(*compiler).grouping, (*compiler).call, precCall},
		token.Dot:          {nil, (*compiler).dot, precCall},
		token.Minus:        {(*compiler).unary, (*compiler).binary, precTerm},
		token.Plus:         {nil, (*compiler).binary, precTerm},
		token.Slash:        {nil, (*compiler).binary, precFactor},
		token.Star:         {nil, (*compiler).binary, precFactor},
		token.Bang:         {(*compiler).unary, nil, precNone},
		token.BangEqual:    {nil, (*compiler).binary, precEquality},
		token.Equal:        {nil, (*compiler).binary, precEquality},
		token.Greater:      {nil, (*compiler).binary, precComparison},
		token.GreaterEqual: {nil, (*compiler).binary, precComparison},
		token.Less:         {nil, (*compiler).binary, precComparison},
		token.LessEqual:    {nil, (*compiler).binary, precComparison},
		token.Ident:        {(*compiler).variable, nil, precNone},
		token.String:       {(*compiler).stringLiteral, nil, precNone},
		token.Number:       {(*compiler).number, nil, precNone},
		token.And:          {nil, (*compiler).and, precAnd},
		token.Or:           {nil, (*compiler).or, precOr},
		token.False:        {(*compiler).literal, nil, precNone},
		token.True:         {(*compiler).literal, nil, precNone},
		token.Nil:          {(*compiler).literal, nil, precNone},
		token.This:         {(*compiler).this, nil, precNone},
		token.Super:        {(*compiler).super, nil, precNone},
	}
}

func (c *compiler) expression() {
	c.parsePrecedence(precAssignment)
}

func (c *compiler) parsePrecedence(prec int) {
	c.advance()
	prefix := rules[c.previous.Type].prefix
	if prefix == nil {
		c.error("Expect expression.")
		return
	}
	canAssign := prec <= precAssignment
	prefix(c, canAssign)

	for prec <= rules[c.current.Type].prec {
		c.advance()
		rules[c.previous.Type].infix(c, canAssign)
	}

	if canAssign && c.match(token.Assign) {
		c.error("Invalid assignment target.")
	}
}

func (c *compiler) grouping(bool) {
	c.expression()
	c.consume(token.RParen, "Expect ')' after expression.")
}

func (c *compiler) number(bool) {
	n, err := strconv.ParseFloat(c.previous.Lexeme, 64)
	if err != nil {
		c.error("Invalid number literal.")
		return
	}
	c.emitConstant(value.Number(n))
}

func (c *compiler) stringLiteral(bool) {
	lexeme := c.previous.Lexeme
	s := c.heap.NewString(lexeme[1 : len(lexeme)-1])
	c.emitConstant(value.ObjVal(s))
}

func (c *compiler) unary(bool) {
	op := c.previous.Type
	c.parsePrecedence(precUnary)
	switch op {
	case token.Minus:
		c.emitByte(bytecode.OP_NEGATE)
	case token.Bang:
		c.emitByte(bytecode.OP_NOT)
	}
}

func (c *compiler) binary(bool) {
	op := c.previous.Type
	c.parsePrecedence(rules[op].prec + 1)
	switch op {
	case token.BangEqual:
		c.emitBytes(bytecode.OP_EQUAL, bytecode.OP_NOT)
	case token.Equal:
		c.emitByte(bytecode.OP_EQUAL)
	case token.Greater:
		c.emitByte(bytecode.OP_GREATER)
	case token.GreaterEqual:
		c.emitBytes(bytecode.OP_LESS, bytecode.OP_NOT)
	case token.Less:
		c.emitByte(bytecode.OP_LESS)
	case token.LessEqual:
		c.emitBytes(bytecode.OP_GREATER, bytecode.OP_NOT)
	case token.Plus:
		c.emitByte(bytecode.OP_ADD)
	case token.Minus:
		c.emitByte(bytecode.OP_SUBTRACT)
	case token.Star:
		c.emitByte(bytecode.OP_MULTIPLY)
	case token.Slash:
		c.emitByte(bytecode.OP_DIVIDE)
	}
}

// and leaves the left operand when it is falsey, else evaluates the right.
func (c *compiler) and(bool) {
	endJump := c.emitJump(bytecode.OP_JUMP_IF_FALSE)
	c.emitByte(bytecode.OP_POP)
	c.parsePrecedence(precAnd)
	c.patchJump(endJump)
}

func (c *compiler) or(bool) {
	elseJump := c.emitJump(bytecode.OP_JUMP_IF_FALSE)
	endJump := c.emitJump(bytecode.OP_JUMP)
	c.patchJump(elseJump)
	c.emitByte(bytecode.OP_POP)
	c.parsePrecedence(precOr)
	c.patchJump(endJump)
}

func (c *compiler) call(bool) {
	argc := c.argumentList()
	c.emitBytes(bytecode.OP_CALL, argc)
}

func (c *compiler) argumentList() byte {
	count := 0
	if !c.check(token.RParen) {
		for {
			c.expression()
			if count == 255 {
				c.error("Can't have more than 255 arguments.")
			}
			count++
			if !c.match(token.Comma) {
				break
			}
		}
	}
	c.consume(token.RParen, "Expect ')' after arguments.")
	return byte(count)
}

func (c *compiler) dot(canAssign bool) {
	c.consume(token.Ident, "Expect property name after '.'.")
	name := c.identifierConstant(c.previous)
	switch {
	case canAssign && c.match(token.Assign):
		c.expression()
		c.emitBytes(bytecode.OP_SET_PROPERTY, name)
	case c.match(token.LParen):
		argc := c.argumentList()
		c.emitBytes(bytecode.OP_INVOKE, name, argc)
	default:
		c.emitBytes(bytecode.OP_GET_PROPERTY, name)
	}
}

func (c *compiler) literal(bool) {
	switch c.previous.Type {
	case token.False:
		c.emitByte(bytecode.OP_FALSE)
	case token.True:
		c.emitByte(bytecode.OP_TRUE)
	case token.Nil:
		c.emitByte(bytecode.OP_NIL)
	}
}

func (c *compiler) variable(canAssign bool) {
	c.namedVariable(c.previous.Lexeme, canAssign)
}

func (c *compiler) namedVariable(name string, canAssign bool) {
	var getOp, setOp byte
	level := len(c.contexts) - 1
	arg := c.resolveLocal(c.ctx(), name)
	switch {
	case arg != -1:
		getOp, setOp = bytecode.OP_GET_LOCAL, bytecode.OP_SET_LOCAL
	default:
		if arg = c.resolveUpvalue(level, name); arg != -1 {
			getOp, setOp = bytecode.OP_GET_UPVALUE, bytecode.OP_SET_UPVALUE
		} else {
			arg = int(c.makeConstant(value.ObjVal(c.heap.NewString(name))))
			getOp, setOp = bytecode.OP_GET_GLOBAL, bytecode.OP_SET_GLOBAL
		}
	}

	if canAssign && c.match(token.Assign) {
		c.expression()
		c.emitBytes(setOp, byte(arg))
	} else {
		c.emitBytes(getOp, byte(arg))
	}
}

func (c *compiler) this(bool) {
	if len(c.classes) == 0 {
		c.error("Can't use 'this' outside of a class.")
		return
	}
	c.namedVariable("this", false)
}

func (c *compiler) super(bool) {
	if len(c.classes) == 0 {
		c.error("Can't use 'super' outside of a class.")
	} else if !c.classes[len(c.classes)-1].hasSuperclass {
		c.error("Can't use 'super' in a class with no superclass.")
	}
	c.consume(token.Dot, "Expect '.' after 'super'.")
	c.consume(token.Ident, "Expect superclass method name.")
	name := c.identifierConstant(c.previous)

	c.namedVariable("this", false)
	if c.match(token.LParen) {
		argc := c.argumentList()
		c.namedVariable("super", false)
		c.emitBytes(bytecode.OP_SUPER_INVOKE, name, argc)
		return
	}
	c.namedVariable("super", false)
	c.emitBytes(bytecode.OP_GET_SUPER, name)
}
