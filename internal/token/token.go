// Package token defines PL/0's closed token-kind set and the Token
// value the scanner produces. Following the teacher's token package,
// keywords and punctuators are named constants backed by a lookup map,
// and a Token always carries its source position for diagnostics.
package token

import (
	"fmt"

	"github.com/hdz0318/pl0/internal/source"
)

// Kind classifies a token. The set is closed: scanner, parser, and
// diagnostics all switch over it exhaustively, and adding a variant
// means touching every one of those switches deliberately.
type Kind int

const (
	ILLEGAL Kind = iota
	EOF

	IDENT // user identifier (case-sensitive)
	INT   // integer literal

	// keywords (matched case-insensitively)
	PROGRAM
	CONST
	VAR
	PROCEDURE
	BEGIN
	END
	IF
	THEN
	ELSE
	WHILE
	DO
	CALL
	READ
	WRITE
	ODD

	// punctuators
	ASSIGN    // :=
	COMMA     // ,
	SEMICOLON // ;
	DOT       // .
	LPAREN    // (
	RPAREN    // )
	EQ        // =
	NEQ       // <>
	LT        // <
	LE        // <=
	GT        // >
	GE        // >=
	PLUS      // +
	MINUS     // -
	STAR      // *
	SLASH     // /
)

var names = map[Kind]string{
	ILLEGAL:   "ILLEGAL",
	EOF:       "EOF",
	IDENT:     "IDENT",
	INT:       "INT",
	PROGRAM:   "program",
	CONST:     "const",
	VAR:       "var",
	PROCEDURE: "procedure",
	BEGIN:     "begin",
	END:       "end",
	IF:        "if",
	THEN:      "then",
	ELSE:      "else",
	WHILE:     "while",
	DO:        "do",
	CALL:      "call",
	READ:      "read",
	WRITE:     "write",
	ODD:       "odd",
	ASSIGN:    ":=",
	COMMA:     ",",
	SEMICOLON: ";",
	DOT:       ".",
	LPAREN:    "(",
	RPAREN:    ")",
	EQ:        "=",
	NEQ:       "<>",
	LT:        "<",
	LE:        "<=",
	GT:        ">",
	GE:        ">=",
	PLUS:      "+",
	MINUS:     "-",
	STAR:      "*",
	SLASH:     "/",
}

// Keywords maps the lowercased spelling of a reserved word to its Kind.
// The scanner lowercases an identifier's lexeme before probing this map,
// which is what makes keywords case-insensitive while identifiers
// remain case-sensitive (spec §9, Open Questions).
var Keywords = map[string]Kind{
	"program":   PROGRAM,
	"const":     CONST,
	"var":       VAR,
	"procedure": PROCEDURE,
	"begin":     BEGIN,
	"end":       END,
	"if":        IF,
	"then":      THEN,
	"else":      ELSE,
	"while":     WHILE,
	"do":        DO,
	"call":      CALL,
	"read":      READ,
	"write":     WRITE,
	"odd":       ODD,
}

func (k Kind) String() string {
	if name, ok := names[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Token is a tagged value: kind, the original lexeme (only meaningful
// for IDENT/INT), the literal value for INT, and the position of its
// first byte.
type Token struct {
	Kind   Kind
	Lexeme string
	Value  int64 // valid iff Kind == INT
	Pos    source.Position
}

func (t Token) String() string {
	if t.Lexeme != "" {
		return fmt.Sprintf("%s(%q)@%s", t.Kind, t.Lexeme, t.Pos)
	}
	return fmt.Sprintf("%s@%s", t.Kind, t.Pos)
}

// IsRelOp reports whether k is one of the six relational operators
// usable in a PL/0 Condition.
func (k Kind) IsRelOp() bool {
	switch k {
	case EQ, NEQ, LT, LE, GT, GE:
		return true
	}
	return false
}
