package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrInvalidOption  = errors.New("invalid option")
)

// Command is an administrative task dispatched by name.
type Command interface {
	Name() string
	Help() string
	Run(ctx context.Context, args []string) error
}

// Registry dispatches management commands by name.
type Registry struct {
	out      io.Writer
	commands map[string]Command
}

// NewRegistry creates an empty registry printing usage to out.
func NewRegistry(out io.Writer) *Registry {
	return &Registry{out: out, commands: make(map[string]Command)}
}

// Register adds c under its Name, replacing any previous command of that name.
func (r *Registry) Register(c Command) {
	r.commands[c.Name()] = c
}

// Dispatch runs the command named by args[0] with the remaining arguments.
func (r *Registry) Dispatch(ctx context.Context, args []string) error {
	if len(args) == 0 {
		r.usage()
		return fmt.Errorf("%w: no command given", ErrUnknownCommand)
	}
	name := args[0]
	if name == "help" || name == "-h" || name == "--help" {
		r.usage()
		return nil
	}
	c, ok := r.commands[name]
	if !ok {
		r.usage()
		return fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	return c.Run(ctx, args[1:])
}

func (r *Registry) usage() {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(r.out, "Usage: manage <command> [options]")
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, "Available commands:")
	for _, name := range names {
		fmt.Fprintf(r.out, "  %s\n      %s\n", name, r.commands[name].Help())
	}
}
