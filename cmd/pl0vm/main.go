// Command pl0vm is the PL/0 execution CLI driver (spec.md §6 CLI
// surface), invoked through its "run" subcommand as
// `pl0vm run <file.pcode> [<input-file>]`; a bare `pl0vm <file.pcode>`
// is not accepted. Without an input file, integers are read from
// standard input.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/google/subcommands"

	"github.com/hdz0318/pl0/internal/pcode"
	"github.com/hdz0318/pl0/internal/vm"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&runCmd{}, "")

	flag.Parse()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}

type runCmd struct{}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "execute a compiled P-code program" }
func (*runCmd) Usage() string {
	return "run <file.pcode> [<input-file>]:\n  Execute a PL/0 program on the stack VM.\n"
}
func (*runCmd) SetFlags(f *flag.FlagSet) {}

func (*runCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "pl0vm: missing .pcode file")
		return subcommands.ExitUsageError
	}

	codeFile, err := os.Open(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "pl0vm: %v\n", err)
		return subcommands.ExitStatus(2)
	}
	defer codeFile.Close()

	prog, err := pcode.Load(codeFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pl0vm: %v\n", err)
		return subcommands.ExitStatus(2)
	}

	var feed *vm.InputFeed
	if len(args) >= 2 {
		inFile, err := os.Open(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "pl0vm: %v\n", err)
			return subcommands.ExitStatus(2)
		}
		defer inFile.Close()
		feed, err = vm.ReadInputFeed(inFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "pl0vm: %v\n", err)
			return subcommands.ExitStatus(2)
		}
	} else {
		feed, err = vm.ReadInputFeed(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "pl0vm: %v\n", err)
			return subcommands.ExitStatus(2)
		}
	}

	machine := vm.New(prog, vm.WithInput(feed), vm.WithOutput(os.Stdout))

	if runErr := machine.Run(); runErr != nil {
		fault := color.New(color.FgRed, color.Bold).SprintFunc()
		fmt.Fprintf(os.Stderr, "%s: %v\n", fault("runtime error"), runErr)
		return subcommands.ExitStatus(3)
	}

	return subcommands.ExitSuccess
}
