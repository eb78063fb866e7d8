// Package diag implements the shared diagnostic builder every compiler
// phase appends to. Per the design note in spec.md §9 ("Error collection
// is a builder pattern"), nothing in the pipeline uses panic/exception
// style control transfer to report a user-facing error: each phase is
// handed a *Bag and appends to it, and the caller decides at the end
// whether errors present means the compilation failed.
package diag

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"

	"github.com/hdz0318/pl0/internal/source"
)

// Severity distinguishes a hard compilation error from a warning/note
// that does not block code emission (spec.md §7).
type Severity int

const (
	Error Severity = iota
	Warning
)

func (s Severity) String() string {
	if s == Warning {
		return "warning"
	}
	return "error"
}

// Kind is the closed diagnostic taxonomy from spec.md §7.
type Kind string

const (
	LexUnexpectedChar Kind = "LexUnexpectedChar"
	LexOverflow       Kind = "LexOverflow"

	ParseExpectedToken     Kind = "ParseExpectedToken"
	ParseUnexpectedToken   Kind = "ParseUnexpectedToken"
	ParseMissingSemicolon  Kind = "ParseMissingSemicolon"
	ParseMissingDot        Kind = "ParseMissingDot"

	SemUndefined        Kind = "SemUndefined"
	SemDuplicate        Kind = "SemDuplicate"
	SemWrongKind        Kind = "SemWrongKind"
	SemArityMismatch    Kind = "SemArityMismatch"
	SemAssignToConstant Kind = "SemAssignToConstant"
	SemConstDivZero     Kind = "SemConstDivZero"

	GenAddressOverflow Kind = "GenAddressOverflow"

	VMArithError      Kind = "VMArithError"
	VMDivByZero       Kind = "VMDivByZero"
	VMStackOverflow   Kind = "VMStackOverflow"
	VMCodeFault       Kind = "VMCodeFault"
	VMInputExhausted  Kind = "VMInputExhausted"

	// Warnings, supplementing the closed error taxonomy (spec.md §7:
	// "Informational notes ... are warnings and never prevent code
	// emission"). Only the unused-variable note is implemented; see
	// DESIGN.md for why "reachable write after unconditional return"
	// has no PL/0 analogue.
	WarnUnusedVariable Kind = "WarnUnusedVariable"
)

// Diagnostic is one reported finding: its severity, its taxonomy kind,
// where in the source it occurred, and a human-readable message.
type Diagnostic struct {
	Severity Severity
	Kind     Kind
	Pos      source.Position
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s at %s: %s", d.Severity, d.Kind, d.Pos, d.Message)
}

// Bag accumulates diagnostics across a single compilation. A Bag is
// passed by reference into every phase; none of lexer, parser, sema,
// optimize, or codegen return a bare error for a recoverable finding —
// they call Bag.Add and keep going.
type Bag struct {
	items []Diagnostic
}

// New returns an empty Bag.
func New() *Bag {
	return &Bag{}
}

// Add records a diagnostic at the given severity/kind/position.
func (b *Bag) Add(sev Severity, kind Kind, pos source.Position, format string, args ...any) {
	b.items = append(b.items, Diagnostic{
		Severity: sev,
		Kind:     kind,
		Pos:      pos,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Errorf is shorthand for Add(Error, kind, pos, ...).
func (b *Bag) Errorf(kind Kind, pos source.Position, format string, args ...any) {
	b.Add(Error, kind, pos, format, args...)
}

// Warnf is shorthand for Add(Warning, kind, pos, ...).
func (b *Bag) Warnf(kind Kind, pos source.Position, format string, args ...any) {
	b.Add(Warning, kind, pos, format, args...)
}

// HasErrors reports whether any Error-severity diagnostic was recorded.
// Warnings alone never cause this to report true (spec.md §7).
func (b *Bag) HasErrors() bool {
	for _, d := range b.items {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Diagnostics returns all recorded diagnostics, sorted by source
// position so a report reads top-to-bottom regardless of which phase
// found what.
func (b *Bag) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, len(b.items))
	copy(out, b.items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Pos.Line != out[j].Pos.Line {
			return out[i].Pos.Line < out[j].Pos.Line
		}
		return out[i].Pos.Column < out[j].Pos.Column
	})
	return out
}

// Err folds every diagnostic into a single multierror.Error for callers
// that want one error value to print or return, while
// embedders that want the structured list keep using Diagnostics.
// Returns nil if the bag holds no diagnostics at all.
func (b *Bag) Err() error {
	if len(b.items) == 0 {
		return nil
	}
	var merr *multierror.Error
	for _, d := range b.Diagnostics() {
		merr = multierror.Append(merr, fmt.Errorf("%s", d.String()))
	}
	return merr.ErrorOrNil()
}

// Extend appends every diagnostic from other into b, letting a
// sub-pipeline (e.g. the optimizer folding a nested procedure) merge
// its findings into the caller's bag.
func (b *Bag) Extend(other *Bag) {
	b.items = append(b.items, other.items...)
}
