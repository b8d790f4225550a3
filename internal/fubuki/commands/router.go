// Package commands provides command parsing and routing for Fubuki.
//
// Anything starting with the "/" sentinel is command syntax and is handled
// here; it never reaches the catalog resolver.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"maunium.net/go/mautrix/event"
)

// Command represents a parsed command.
type Command struct {
	// Name is the lowercased command word without the prefix.
	Name string
	// Args are the whitespace-split arguments after the command word.
	Args []string
	// RawArgs is everything after the command word, whitespace-trimmed but
	// otherwise verbatim. Used by commands that take free text (/broadcast).
	RawArgs string
}

// ErrNotACommand is returned by Parse when the message does not start with
// the command prefix. Callers should use errors.Is to distinguish this
// expected case from real errors.
var ErrNotACommand = errors.New("not a command (missing prefix)")

// ErrUnknownCommand is returned by Route for an unregistered command name.
// Callers typically respond with the help text.
var ErrUnknownCommand = errors.New("unknown command")

// Handler is a function that handles a command and returns the reply text.
type Handler func(ctx context.Context, cmd *Command, evt *event.Event) (string, error)

// Router routes commands to handlers.
type Router struct {
	handlers map[string]Handler
	prefix   string
}

// NewRouter creates a new command router.
func NewRouter(prefix string) *Router {
	return &Router{
		handlers: make(map[string]Handler),
		prefix:   prefix,
	}
}

// Register registers a command handler.
func (r *Router) Register(command string, handler Handler) {
	r.handlers[command] = handler
}

// Parse parses a message into a command.
func (r *Router) Parse(text string) (*Command, error) {
	text = strings.TrimSpace(text)

	if !strings.HasPrefix(text, r.prefix) {
		return nil, ErrNotACommand
	}

	text = strings.TrimPrefix(text, r.prefix)
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	cmd := &Command{
		Name: strings.ToLower(fields[0]),
		Args: fields[1:],
	}
	if idx := strings.Index(text, fields[0]); idx >= 0 {
		cmd.RawArgs = strings.TrimSpace(text[idx+len(fields[0]):])
	}

	return cmd, nil
}

// Route parses and routes a command to its handler.
func (r *Router) Route(ctx context.Context, text string, evt *event.Event) (string, error) {
	cmd, err := r.Parse(text)
	if err != nil {
		return "", err
	}

	handler, ok := r.handlers[cmd.Name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Name)
	}

	return handler(ctx, cmd, evt)
}
