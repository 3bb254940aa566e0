package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet
	Out         io.Writer
}

// NewRootCommand creates the root command writing to stdout
func NewRootCommand() *Command {
	return newRootCommand(os.Stdout)
}

func newRootCommand(out io.Writer) *Command {
	root := &Command{
		Name:        "campus",
		Description: "Campus - plugin host for the course and community app shell",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("campus", flag.ExitOnError),
		Out:         out,
	}

	// Add subcommands
	root.Subcommands["serve"] = newServeCommand(out)
	root.Subcommands["validate"] = newValidateCommand(out)
	root.Subcommands["plan"] = newPlanCommand(out)

	return root
}

// Execute runs the subcommand named by args[0]
func (c *Command) Execute(args []string) error {
	if len(args) == 0 {
		return c.usage()
	}

	// Check for help flag
	switch strings.ToLower(args[0]) {
	case "-h", "--help", "help":
		return c.usage()
	}

	// Check for subcommand
	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage() error {
	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(c.Out, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintf(c.Out, "Commands:\n")
	for _, name := range names {
		fmt.Fprintf(c.Out, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}
