// Package compile orchestrates the PL/0 pipeline end to end (spec.md
// §6 Compiler API): lexer -> parser -> sema -> optional optimizer ->
// codegen, all phases sharing one diag.Bag. It owns no state of its
// own across calls, so Compile is a pure function of its source text
// and options, per spec.md §8 invariant 1.
package compile

import (
	"github.com/sirupsen/logrus"

	"github.com/hdz0318/pl0/internal/ast"
	"github.com/hdz0318/pl0/internal/codegen"
	"github.com/hdz0318/pl0/internal/diag"
	"github.com/hdz0318/pl0/internal/lexer"
	"github.com/hdz0318/pl0/internal/optimize"
	"github.com/hdz0318/pl0/internal/parser"
	"github.com/hdz0318/pl0/internal/pcode"
	"github.com/hdz0318/pl0/internal/sema"
	"github.com/hdz0318/pl0/internal/symbols"
)

// Options configures one compilation.
type Options struct {
	// Optimize enables both optimizer passes (spec.md §4.4): AST-level
	// constant folding ahead of codegen, and the post-codegen peephole
	// pass with jump-target compaction.
	Optimize bool

	// Logger receives per-phase progress at Debug level. Defaults to a
	// logger with output discarded when nil.
	Logger *logrus.Logger
}

// Result is the Compiler API's output (spec.md §6): Code is present
// iff Diagnostics holds no error-severity entry.
type Result struct {
	Code        pcode.Program
	Diagnostics []diag.Diagnostic
	AST         *ast.Program
	Symbols     *symbols.Forest
}

// Compile runs the full pipeline over source and returns its result.
// It never panics on malformed input: every phase degrades to
// best-effort output plus diagnostics, per spec.md §4.2/§7.
func Compile(source string, opts Options) Result {
	log := opts.Logger
	if log == nil {
		log = logrus.New()
		log.SetOutput(discardWriter{})
	}

	bag := diag.New()

	log.Debug("compile: scanning")
	lex := lexer.New(source, bag)

	log.Debug("compile: parsing")
	p := parser.New(lex, bag)
	prog := p.Parse()

	log.Debug("compile: analyzing")
	semaResult := sema.Analyze(prog, bag)

	if opts.Optimize {
		log.Debug("compile: folding constants")
		optimize.FoldProgram(prog, bag)
	}

	if bag.HasErrors() {
		log.WithField("diagnostics", len(bag.Diagnostics())).Debug("compile: aborting before codegen")
		return Result{
			Diagnostics: bag.Diagnostics(),
			AST:         prog,
			Symbols:     semaResult.Forest,
		}
	}

	log.Debug("compile: generating code")
	code := codegen.Generate(prog, bag)

	if bag.HasErrors() {
		return Result{
			Diagnostics: bag.Diagnostics(),
			AST:         prog,
			Symbols:     semaResult.Forest,
		}
	}

	if opts.Optimize {
		log.Debug("compile: peephole pass")
		code = optimize.Peephole(code)
	}

	return Result{
		Code:        code,
		Diagnostics: bag.Diagnostics(),
		AST:         prog,
		Symbols:     semaResult.Forest,
	}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
