package tui

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Command is a parsed ":" command with its canonical name.
type Command struct {
	Name string
	Args string
}

var (
	ErrUnknownCommand  = errors.New("unknown command")
	ErrMissingArgument = errors.New("missing argument")
)

type commandDef struct {
	name    string
	aliases []string
	usage   string // set when the command requires an argument
}

var commands = []commandDef{
	{name: "open", usage: ":open <name>"},
	{name: "rename", usage: ":rename <name>"},
	{name: "refresh"},
	{name: "help", aliases: []string{"h"}},
	{name: "quit", aliases: []string{"q"}},
}

// ParseCommand parses input without the leading ':'. Aliases resolve to the
// command's canonical name.
func ParseCommand(input string) (Command, error) {
	name, args, _ := strings.Cut(strings.TrimSpace(input), " ")
	name = strings.ToLower(name)
	args = strings.TrimSpace(args)
	for _, c := range commands {
		if c.name != name && !slices.Contains(c.aliases, name) {
			continue
		}
		if c.usage != "" && args == "" {
			return Command{}, fmt.Errorf("%w, usage %s", ErrMissingArgument, c.usage)
		}
		return Command{Name: c.name, Args: args}, nil
	}
	return Command{}, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
}

// CompleteCommand suggests completions for input. Command names complete
// first; after "open " the conversation names matching the typed prefix do.
func CompleteCommand(input string, conversations []string) []string {
	name, arg, hasArg := strings.Cut(input, " ")
	if !hasArg {
		var out []string
		for _, c := range commands {
			if strings.HasPrefix(c.name, strings.ToLower(name)) {
				out = append(out, c.name)
			}
		}
		return out
	}
	if strings.ToLower(name) != "open" {
		return nil
	}
	arg = strings.ToLower(strings.TrimLeft(arg, " "))
	var out []string
	for _, n := range conversations {
		if n != "" && strings.HasPrefix(strings.ToLower(n), arg) {
			out = append(out, "open "+n)
		}
	}
	return out
}
