// Package commands parses and routes room messages addressed to the bot.
//
// Messages starting with the configured prefix are either an explicit command
// (help, communities, transactions) or free text, which is classified into a
// task by the completion oracle and dispatched from there.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"maunium.net/go/mautrix/event"
)

// Command is a parsed room message.
type Command struct {
	Name    string
	Args    []string
	RawText string
}

// ErrNotACommand is returned by Parse when the message does not start with
// the command prefix. Callers should use errors.Is to distinguish this
// expected case from real errors.
var ErrNotACommand = errors.New("not a command (missing prefix)")

// Handler handles one command and returns the reply text.
type Handler func(ctx context.Context, cmd *Command, evt *event.Event) (string, error)

// Router routes commands to handlers. Messages whose first word matches no
// registered command go to the fallback handler as free text.
type Router struct {
	handlers map[string]Handler
	fallback Handler
	prefix   string
}

// NewRouter creates a router for the given prefix.
func NewRouter(prefix string) *Router {
	return &Router{
		handlers: make(map[string]Handler),
		prefix:   prefix,
	}
}

// Register registers a named command handler.
func (r *Router) Register(command string, handler Handler) {
	r.handlers[command] = handler
}

// SetFallback registers the free-text handler.
func (r *Router) SetFallback(handler Handler) {
	r.fallback = handler
}

// Parse strips the prefix and splits the message.
func (r *Router) Parse(text string) (*Command, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, r.prefix) {
		return nil, ErrNotACommand
	}

	text = strings.TrimSpace(strings.TrimPrefix(text, r.prefix))
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	return &Command{
		Name:    parts[0],
		Args:    parts[1:],
		RawText: text,
	}, nil
}

// Route parses the message and invokes the matching handler, or the fallback
// for free text.
func (r *Router) Route(ctx context.Context, text string, evt *event.Event) (string, error) {
	cmd, err := r.Parse(text)
	if err != nil {
		return "", err
	}

	if handler, ok := r.handlers[strings.ToLower(cmd.Name)]; ok {
		return handler(ctx, cmd, evt)
	}
	if r.fallback != nil {
		return r.fallback(ctx, cmd, evt)
	}
	return "", fmt.Errorf("unknown command: %s", cmd.Name)
}
