// Package cli implements the command-line interface of SmartAttd.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/smartattd/smartattd/pkg/logger"
)

// ErrUnknownCommand is returned for an unregistered subcommand.
var ErrUnknownCommand = errors.New("unknown command")

// ══════════════════════════════════════════════════════════════════════════════
// CONTEXT TYPES
// ══════════════════════════════════════════════════════════════════════════════

// CommandContext contains context for command handling.
type CommandContext struct {
	// Name is the subcommand name.
	Name string

	// Args are the arguments after the subcommand name.
	Args []string

	// Out receives the command output.
	Out io.Writer
}

// FlagSet returns a flag set for the command that reports errors instead of
// exiting.
func (c CommandContext) FlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet(c.Name, flag.ContinueOnError)
	fs.SetOutput(c.Out)
	return fs
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// CommandHandler processes one subcommand.
type CommandHandler interface {
	Handle(ctx context.Context, cmdCtx CommandContext) error
}

// CommandFunc adapts a function to CommandHandler.
type CommandFunc func(ctx context.Context, cmdCtx CommandContext) error

// Handle calls f.
func (f CommandFunc) Handle(ctx context.Context, cmdCtx CommandContext) error {
	return f(ctx, cmdCtx)
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTER
// ══════════════════════════════════════════════════════════════════════════════

type route struct {
	summary string
	handler CommandHandler
}

// Router routes subcommands to handlers.
type Router struct {
	out    io.Writer
	logger *logger.Logger

	mu     sync.RWMutex
	routes map[string]route
}

// NewRouter creates a new router writing to out.
func NewRouter(out io.Writer, log *logger.Logger) *Router {
	if log == nil {
		log = logger.Nop()
	}
	return &Router{
		out:    out,
		logger: log,
		routes: make(map[string]route),
	}
}

// RegisterCommand registers a handler for a subcommand.
func (r *Router) RegisterCommand(name, summary string, handler CommandHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.routes[name] = route{summary: summary, handler: handler}
}

// Run dispatches args[0] to its handler.
func (r *Router) Run(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		r.PrintUsage()
		return nil
	}

	name := args[0]

	r.mu.RLock()
	rt, ok := r.routes[name]
	r.mu.RUnlock()

	if !ok {
		r.PrintUsage()
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}

	r.logger.Debug("dispatching command", logger.Operation(name))

	err := rt.handler.Handle(ctx, CommandContext{
		Name: name,
		Args: args[1:],
		Out:  r.out,
	})
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	return err
}

// PrintUsage prints the list of registered subcommands.
func (r *Router) PrintUsage() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.routes))
	width := 0
	for name := range r.routes {
		names = append(names, name)
		if len(name) > width {
			width = len(name)
		}
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("Usage: smartattd <command> [flags]\n\nCommands:\n")
	for _, name := range names {
		fmt.Fprintf(&sb, "  %-*s  %s\n", width, name, r.routes[name].summary)
	}
	sb.WriteString("\nRun 'smartattd <command> -h' for command flags.\n")

	fmt.Fprint(r.out, sb.String())
}
