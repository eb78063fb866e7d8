package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hdz0318/pl0/internal/source"
)

func TestHasErrorsIgnoresWarnings(t *testing.T) {
	b := New()
	b.Warnf(WarnUnusedVariable, source.Position{Line: 1, Column: 1}, "unused %s", "x")
	assert.False(t, b.HasErrors())

	b.Errorf(SemUndefined, source.Position{Line: 2, Column: 1}, "undefined %s", "y")
	assert.True(t, b.HasErrors())
}

func TestDiagnosticsAreSortedByPosition(t *testing.T) {
	b := New()
	b.Errorf(SemUndefined, source.Position{Line: 5, Column: 1}, "late")
	b.Errorf(SemUndefined, source.Position{Line: 1, Column: 9}, "early")
	b.Errorf(SemUndefined, source.Position{Line: 1, Column: 2}, "earliest")

	got := b.Diagnostics()
	require.Len(t, got, 3)
	assert.Equal(t, "earliest", got[0].Message)
	assert.Equal(t, "early", got[1].Message)
	assert.Equal(t, "late", got[2].Message)
}

func TestErrReturnsNilWhenEmpty(t *testing.T) {
	b := New()
	assert.Nil(t, b.Err())
}

func TestErrFoldsEveryDiagnostic(t *testing.T) {
	b := New()
	b.Errorf(SemUndefined, source.Position{Line: 1, Column: 1}, "one")
	b.Errorf(SemDuplicate, source.Position{Line: 2, Column: 1}, "two")
	err := b.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "one")
	assert.Contains(t, err.Error(), "two")
}

func TestExtendMergesDiagnostics(t *testing.T) {
	a := New()
	a.Errorf(SemUndefined, source.Position{Line: 1, Column: 1}, "a")
	b := New()
	b.Errorf(SemDuplicate, source.Position{Line: 2, Column: 1}, "b")

	a.Extend(b)
	assert.Len(t, a.Diagnostics(), 2)
}

func TestSeverityString(t *testing.T) {
	assert.Equal(t, "error", Error.String())
	assert.Equal(t, "warning", Warning.String())
}
