package commands

// explicit.go implements the structured command forms. They cover the same
// operations as the free-text flow but parse deterministically, so they keep
// working when the completion oracle is down.

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"maunium.net/go/mautrix/event"

	"communibot/internal/engine"
	"communibot/internal/resolve"
)

// Send handles `send <amount> [alias] <recipient...> [message]`.
func (h *Handlers) Send(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	return h.explicitBatch(ctx, cmd, evt, engine.Send)
}

// Mint handles `mint <amount> [alias] <recipient...> [message]`.
func (h *Handlers) Mint(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	return h.explicitBatch(ctx, cmd, evt, engine.Mint)
}

// Burn handles `burn <amount> [alias] <recipient> [message]`.
func (h *Handlers) Burn(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	amount, alias, users, message, err := parseBatchArgs(cmd.Args)
	if err != nil {
		return "", err
	}
	if len(users) != 1 {
		return "", fmt.Errorf("burn takes exactly one account")
	}
	return h.runBatch(ctx, evt, engine.Burn, alias, users, amount, message)
}

// Address handles `address [alias...]`, answered privately.
func (h *Handlers) Address(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	return h.addresses(ctx, evt, cmd.Args, false)
}

// Balance handles `balance [alias...]`, answered privately.
func (h *Handlers) Balance(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	return h.balances(ctx, evt, cmd.Args, false)
}

// ShareAddress handles `share-address [alias]`, answered in the room.
func (h *Handlers) ShareAddress(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	return h.addresses(ctx, evt, singleAlias(cmd.Args), true)
}

// ShareBalance handles `share-balance [alias]`, answered in the room.
func (h *Handlers) ShareBalance(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	return h.balances(ctx, evt, singleAlias(cmd.Args), true)
}

func (h *Handlers) explicitBatch(ctx context.Context, cmd *Command, evt *event.Event, kind engine.Kind) (string, error) {
	amount, alias, users, message, err := parseBatchArgs(cmd.Args)
	if err != nil {
		return "", err
	}
	return h.runBatch(ctx, evt, kind, alias, users, amount, message)
}

// parseBatchArgs splits an explicit batch command: a decimal amount, an
// optional community alias, one or more recipient references, and any
// trailing words as the message.
func parseBatchArgs(args []string) (amount float64, alias string, users []string, message string, err error) {
	if len(args) == 0 {
		return 0, "", nil, "", fmt.Errorf("usage: <amount> [community] <recipient...> [message]")
	}
	amount, err = strconv.ParseFloat(args[0], 64)
	if err != nil || amount <= 0 {
		return 0, "", nil, "", fmt.Errorf("%q is not a positive amount", args[0])
	}
	rest := args[1:]

	if len(rest) > 0 && !resolve.IsReference(rest[0]) {
		alias = rest[0]
		rest = rest[1:]
	}
	for len(rest) > 0 && resolve.IsReference(rest[0]) {
		users = append(users, rest[0])
		rest = rest[1:]
	}
	if len(users) == 0 {
		return 0, "", nil, "", fmt.Errorf("no recipients given")
	}
	message = strings.Join(rest, " ")
	return amount, alias, users, message, nil
}

func singleAlias(args []string) []string {
	if len(args) == 0 {
		return nil
	}
	return args[:1]
}
