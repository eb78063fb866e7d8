// Command pl0c is the PL/0 compile-only CLI driver (spec.md §6 CLI
// surface), invoked through its "compile" subcommand as
// `pl0c compile [-o2] [-S out.pcode] [-v] <file>`. Flags are parsed only
// before the source file, and a bare `pl0c <file>` is not accepted.
// Command wiring follows the teacher's own subcommands.Commander usage (nilan/cmd_run.go),
// generalized into one properly-registered "compile" subcommand
// instead of nilan's standalone, never-wired runCmd.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"
	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/hdz0318/pl0/internal/compile"
	"github.com/hdz0318/pl0/internal/diag"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&compileCmd{}, "")

	flag.Parse()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}

type compileCmd struct {
	optimize bool
	emitOut  string
	verbose  bool
}

func (*compileCmd) Name() string     { return "compile" }
func (*compileCmd) Synopsis() string { return "compile a PL/0 source file" }
func (*compileCmd) Usage() string {
	return "compile [-o2] [-S out.pcode] [-v] <file>:\n  Compile a PL/0 program and report diagnostics.\n"
}

func (c *compileCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.optimize, "o2", false, "enable constant-folding and peephole optimization")
	f.StringVar(&c.emitOut, "S", "", "write the persisted P-code text form to this path")
	f.BoolVar(&c.verbose, "v", false, "dump the annotated AST and symbol table with go-spew")
}

func (c *compileCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "pl0c: missing source file")
		return subcommands.ExitUsageError
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "pl0c: %v\n", err)
		return subcommands.ExitStatus(2)
	}

	log := logrus.New()
	if c.verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	result := compile.Compile(string(data), compile.Options{Optimize: c.optimize, Logger: log})

	for _, d := range result.Diagnostics {
		printDiagnostic(d)
	}

	if c.verbose {
		spew.Fdump(os.Stderr, result.AST)
		spew.Fdump(os.Stderr, result.Symbols)
	}

	hasErrors := false
	for _, d := range result.Diagnostics {
		if d.Severity == diag.Error {
			hasErrors = true
			break
		}
	}
	if hasErrors {
		return subcommands.ExitStatus(1)
	}

	if c.emitOut != "" {
		out, err := os.Create(c.emitOut)
		if err != nil {
			fmt.Fprintf(os.Stderr, "pl0c: %v\n", err)
			return subcommands.ExitStatus(2)
		}
		defer out.Close()
		if err := result.Code.Dump(out); err != nil {
			fmt.Fprintf(os.Stderr, "pl0c: %v\n", err)
			return subcommands.ExitStatus(2)
		}
	}

	return subcommands.ExitSuccess
}

func printDiagnostic(d diag.Diagnostic) {
	sev := color.New(color.FgRed, color.Bold).SprintFunc()
	if d.Severity == diag.Warning {
		sev = color.New(color.FgYellow, color.Bold).SprintFunc()
	}
	fmt.Fprintf(os.Stderr, "%s: %s: %s: %s\n", d.Pos, sev(d.Severity), d.Kind, d.Message)
}
