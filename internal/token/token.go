package token

// Type identifies the category of a token.
type Type string

// Token carries the lexical item along with the line it started on.
// For Error tokens Lexeme holds the diagnostic message.
type Token struct {
	Type   Type
	Lexeme string
	Line   int
}

const (
	Error Type = "ERROR"
	EOF   Type = "EOF"

	// single-character tokens
	LParen    Type = "LPAREN"    // (
	RParen    Type = "RPAREN"    // )
	LBrace    Type = "LBRACE"    // {
	RBrace    Type = "RBRACE"    // }
	Comma     Type = "COMMA"     // ,
	Dot       Type = "DOT"       // .
	Minus     Type = "MINUS"     // -
	Plus      Type = "PLUS"      // +
	Semicolon Type = "SEMICOLON" // ;
	Slash     Type = "SLASH"     // /
	Star      Type = "STAR"      // *

	// one or two character tokens
	Bang         Type = "BANG"         // !
	BangEqual    Type = "BANGEQUAL"    // !=
	Assign       Type = "ASSIGN"       // =
	Equal        Type = "EQUAL"        // ==
	Greater      Type = "GREATER"      // >
	GreaterEqual Type = "GREATEREQUAL" // >=
	Less         Type = "LESS"         // <
	LessEqual    Type = "LESSEQUAL"    // <=

	// literals
	Ident  Type = "IDENT"
	String Type = "STRING"
	Number Type = "NUMBER"

	// keywords
	And    Type = "AND"
	Class  Type = "CLASS"
	Else   Type = "ELSE"
	False  Type = "FALSE"
	For    Type = "FOR"
	Fun    Type = "FUN"
	If     Type = "IF"
	Nil    Type = "NIL"
	Or     Type = "OR"
	Print  Type = "PRINT"
	Return Type = "RETURN"
	Super  Type = "SUPER"
	This   Type = "THIS"
	True   Type = "TRUE"
	Var    Type = "VAR"
	While  Type = "WHILE"
)

// LookupIdent returns the keyword token type or Ident.
// Dispatch is on the first character so most identifiers are rejected
// after a single comparison.
func LookupIdent(ident string) Type {
	if ident == "" {
		return Ident
	}
	switch ident[0] {
	case 'a':
		return keyword(ident, 1, "nd", And)
	case 'c':
		return keyword(ident, 1, "lass", Class)
	case 'e':
		return keyword(ident, 1, "lse", Else)
	case 'f':
		if len(ident) > 1 {
			switch ident[1] {
			case 'a':
				return keyword(ident, 2, "lse", False)
			case 'o':
				return keyword(ident, 2, "r", For)
			case 'u':
				return keyword(ident, 2, "n", Fun)
			}
		}
	case 'i':
		return keyword(ident, 1, "f", If)
	case 'n':
		return keyword(ident, 1, "il", Nil)
	case 'o':
		return keyword(ident, 1, "r", Or)
	case 'p':
		return keyword(ident, 1, "rint", Print)
	case 'r':
		return keyword(ident, 1, "eturn", Return)
	case 's':
		return keyword(ident, 1, "uper", Super)
	case 't':
		if len(ident) > 1 {
			switch ident[1] {
			case 'h':
				return keyword(ident, 2, "is", This)
			case 'r':
				return keyword(ident, 2, "ue", True)
			}
		}
	case 'v':
		return keyword(ident, 1, "ar", Var)
	case 'w':
		return keyword(ident, 1, "hile", While)
	}
	return Ident
}

func keyword(ident string, start int, rest string, t Type) Type {
	if len(ident) == start+len(rest) && ident[start:] == rest {
		return t
	}
	return Ident
}
