package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hdz0318/pl0/internal/diag"
	"github.com/hdz0318/pl0/internal/token"
)

func scanAll(t *testing.T, src string) ([]token.Token, *diag.Bag) {
	t.Helper()
	bag := diag.New()
	l := New(src, bag)
	var toks []token.Token
	for {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			break
		}
	}
	return toks, bag
}

func TestScanKeywordsAreCaseInsensitive(t *testing.T) {
	toks, bag := scanAll(t, "Program PROCEDURE begin End")
	require.False(t, bag.HasErrors())
	require.Len(t, toks, 5)
	assert.Equal(t, token.PROGRAM, toks[0].Kind)
	assert.Equal(t, token.PROCEDURE, toks[1].Kind)
	assert.Equal(t, token.BEGIN, toks[2].Kind)
	assert.Equal(t, token.END, toks[3].Kind)
}

func TestScanIdentifiersAreCaseSensitive(t *testing.T) {
	toks, bag := scanAll(t, "foo Foo FOO")
	require.False(t, bag.HasErrors())
	assert.Equal(t, "foo", toks[0].Lexeme)
	assert.Equal(t, "Foo", toks[1].Lexeme)
	assert.Equal(t, "FOO", toks[2].Lexeme)
	assert.NotEqual(t, toks[0].Lexeme, toks[1].Lexeme)
}

func TestScanTwoCharOperators(t *testing.T) {
	toks, bag := scanAll(t, ":= <> <= >=")
	require.False(t, bag.HasErrors())
	kinds := []token.Kind{toks[0].Kind, toks[1].Kind, toks[2].Kind, toks[3].Kind}
	assert.Equal(t, []token.Kind{token.ASSIGN, token.NEQ, token.LE, token.GE}, kinds)
}

func TestScanStrayColonIsLexUnexpectedChar(t *testing.T) {
	toks, bag := scanAll(t, ": x")
	require.True(t, bag.HasErrors())
	diags := bag.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, diag.LexUnexpectedChar, diags[0].Kind)
	// scanning continues past the bad byte
	assert.Equal(t, token.IDENT, toks[0].Kind)
}

func TestScanIntegerOverflow(t *testing.T) {
	toks, bag := scanAll(t, "99999999999999999999999999")
	require.True(t, bag.HasErrors())
	assert.Equal(t, diag.LexOverflow, bag.Diagnostics()[0].Kind)
	assert.Equal(t, token.INT, toks[0].Kind)
	assert.Equal(t, int64(0), toks[0].Value)
}

func TestScanPositionsAreOneBased(t *testing.T) {
	toks, _ := scanAll(t, "x\n  y")
	assert.Equal(t, 1, toks[0].Pos.Line)
	assert.Equal(t, 1, toks[0].Pos.Column)
	assert.Equal(t, 2, toks[1].Pos.Line)
	assert.Equal(t, 3, toks[1].Pos.Column)
}

func TestScanUnrecognizedByteAdvancesAndContinues(t *testing.T) {
	toks, bag := scanAll(t, "x @ y")
	require.True(t, bag.HasErrors())
	assert.Equal(t, diag.LexUnexpectedChar, bag.Diagnostics()[0].Kind)
	require.Len(t, toks, 3) // x, y, eof
	assert.Equal(t, "x", toks[0].Lexeme)
	assert.Equal(t, "y", toks[1].Lexeme)
}
