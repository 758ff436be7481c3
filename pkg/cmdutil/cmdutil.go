// Package cmdutil is a small subcommand dispatcher grounded directly on
// pkg/cmdmain's mode-name-to-CommandRunner registry: each subcommand gets
// its own flag.FlagSet, a Describe() one-liner for the top-level usage
// listing, and a Usage() printed on flag errors.
package cmdutil

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
)

// Command is one subcommand of a cmdutil-dispatched CLI.
type Command interface {
	// Describe returns a one-line summary for top-level usage listing.
	Describe() string
	// Usage prints detailed usage to Stderr.
	Usage()
	// RunCommand executes the subcommand with its own flags already
	// parsed out of args.
	RunCommand(args []string) error
}

var (
	commands = map[string]func(*flag.FlagSet) Command{}
	order    []string
)

// RegisterCommand adds name to the dispatcher, mirroring
// pkg/cmdmain.RegisterCommand.
func RegisterCommand(name string, makeCmd func(*flag.FlagSet) Command) {
	if _, dup := commands[name]; dup {
		panic("cmdutil: duplicate command " + name)
	}
	commands[name] = makeCmd
	order = append(order, name)
}

// Stderr and Stdout are indirections so tests can capture output, mirroring
// pkg/cmdmain's Stderr/Stdout vars.
var (
	Stderr io.Writer = os.Stderr
	Stdout io.Writer = os.Stdout
)

// Main dispatches args[0] (typically os.Args[1:]) to a registered
// subcommand, printing top-level usage if args is empty or names an
// unregistered mode.
func Main(args []string) error {
	if len(args) == 0 {
		printUsage()
		return fmt.Errorf("cmdutil: no subcommand given")
	}
	name := args[0]
	makeCmd, ok := commands[name]
	if !ok {
		printUsage()
		return fmt.Errorf("cmdutil: unknown subcommand %q", name)
	}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	cmd := makeCmd(fs)
	fs.Usage = cmd.Usage
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	return cmd.RunCommand(fs.Args())
}

func printUsage() {
	fmt.Fprintf(Stderr, "Usage: tiersolve-worker <command> [flags]\n\nCommands:\n")
	sort.Strings(order)
	for _, name := range order {
		fs := flag.NewFlagSet(name, flag.ContinueOnError)
		cmd := commands[name](fs)
		fmt.Fprintf(Stderr, "  %-12s %s\n", name, cmd.Describe())
	}
}
