package commands

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"maunium.net/go/mautrix/event"

	"communibot/internal/community"
	"communibot/internal/confirm"
	"communibot/internal/engine"
	"communibot/internal/onchain"
	"communibot/internal/progress"
	"communibot/internal/resolve"
	"communibot/internal/task"
)

// Do classifies free text into a task and dispatches it.
func (h *Handlers) Do(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	candidates := h.Catalog.List(evt.RoomID.String())
	if len(candidates) == 0 {
		return "no communities are configured for this room", nil
	}

	args, err := h.Classifier.Classify(ctx, cmd.RawText, candidates)
	if err != nil {
		if errors.Is(err, task.ErrOracleContract) {
			return "", fmt.Errorf("I could not make sense of that, please try rephrasing")
		}
		return "", fmt.Errorf("task classification failed: %w", err)
	}

	switch a := args.(type) {
	case *task.ErrorArgs:
		return a.Error, nil
	case *task.MissingInformationArgs:
		return a.MissingInformation, nil
	case *task.HelpArgs:
		return h.Help(ctx, cmd, evt)
	case *task.AddressArgs:
		return h.addresses(ctx, evt, a.Alias, false)
	case *task.BalanceArgs:
		return h.balances(ctx, evt, a.Alias, false)
	case *task.ShareAddressArgs:
		return h.addresses(ctx, evt, []string{a.Alias}, true)
	case *task.ShareBalanceArgs:
		return h.balances(ctx, evt, []string{a.Alias}, true)
	case *task.SendArgs:
		if err := a.Validate(); err != nil {
			return "", err
		}
		return h.runBatch(ctx, evt, engine.Send, a.Alias, a.Users, a.Amount, a.Message)
	case *task.MintArgs:
		if err := a.Validate(); err != nil {
			return "", err
		}
		return h.runBatch(ctx, evt, engine.Mint, a.Alias, a.Users, a.Amount, a.Message)
	case *task.BurnArgs:
		if err := a.Validate(); err != nil {
			return "", err
		}
		return h.runBatch(ctx, evt, engine.Burn, a.Alias, []string{a.User}, a.Amount, a.Message)
	default:
		return "", fmt.Errorf("unhandled task %q", args.TaskName())
	}
}

// addresses answers an address request for one or more communities. When
// shared is false the answer goes to the requester as a direct message.
func (h *Handlers) addresses(ctx context.Context, evt *event.Event, aliases []string, shared bool) (string, error) {
	coms, err := h.pickCommunities(evt.RoomID.String(), aliases)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, com := range coms {
		addr, err := h.actorAccount(ctx, com, evt.Sender.String())
		if err != nil {
			fmt.Fprintf(&b, "%s: %v\n", com.Alias, err)
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", com.Alias, addr)
	}
	return h.deliver(ctx, evt, strings.TrimRight(b.String(), "\n"), shared)
}

// balances answers a balance request for one or more communities.
func (h *Handlers) balances(ctx context.Context, evt *event.Event, aliases []string, shared bool) (string, error) {
	coms, err := h.pickCommunities(evt.RoomID.String(), aliases)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, com := range coms {
		addr, err := h.actorAccount(ctx, com, evt.Sender.String())
		if err != nil {
			fmt.Fprintf(&b, "%s: %v\n", com.Alias, err)
			continue
		}
		balance, err := h.Balances.BalanceOf(ctx, com, addr)
		if err != nil {
			fmt.Fprintf(&b, "%s: could not read balance: %v\n", com.Alias, err)
			continue
		}
		fmt.Fprintf(&b, "%s: %s %s\n", com.Alias,
			onchain.FormatUnits(balance, com.Token.Decimals), com.Token.Symbol)
	}
	return h.deliver(ctx, evt, strings.TrimRight(b.String(), "\n"), shared)
}

// deliver routes an answer either publicly into the room or privately to the
// requester.
func (h *Handlers) deliver(ctx context.Context, evt *event.Event, text string, shared bool) (string, error) {
	if shared {
		return text, nil
	}
	if err := h.Messenger.SendDirectMessage(ctx, platformID(evt.Sender.String()), text); err != nil {
		// No DM channel: degrade to answering in the room.
		return text, nil
	}
	return "sent you a direct message", nil
}

// pickCommunities resolves a list of aliases against the room scope. An empty
// list means every community in the room.
func (h *Handlers) pickCommunities(roomID string, aliases []string) ([]*community.Community, error) {
	if len(aliases) == 0 {
		coms := h.Catalog.List(roomID)
		if len(coms) == 0 {
			return nil, fmt.Errorf("no communities are configured for this room")
		}
		return coms, nil
	}
	coms := make([]*community.Community, 0, len(aliases))
	for _, alias := range aliases {
		com, err := h.communityFor(roomID, alias)
		if err != nil {
			return nil, err
		}
		coms = append(coms, com)
	}
	return coms, nil
}

// runBatch gates a value-moving batch on confirmation and hands it to the
// engine with a live-edited progress message.
func (h *Handlers) runBatch(ctx context.Context, evt *event.Event, kind engine.Kind, alias string, users []string, amount float64, message string) (string, error) {
	roomID := evt.RoomID.String()
	sender := evt.Sender.String()

	com, err := h.communityFor(roomID, alias)
	if err != nil {
		return "", err
	}

	if (kind == engine.Mint || kind == engine.Burn) && !h.isManager(sender) {
		return "", fmt.Errorf("only community managers can %s", kind)
	}

	var actorAddress string
	if kind == engine.Send {
		actorAddress, err = h.actorAccount(ctx, com, sender)
		if err != nil {
			return "", err
		}
	}

	summary := batchSummary(kind, com, users, amount, message)
	outcome, err := h.Gate.Confirm(ctx, roomID, sender, summary, func(ctx context.Context) error {
		_, err := h.Messenger.SendMessage(ctx, roomID, summary+"\n\nreply yes or no")
		return err
	})
	if err != nil {
		return "", fmt.Errorf("could not post the confirmation prompt: %w", err)
	}
	switch outcome {
	case confirm.Cancelled:
		return "cancelled", nil
	case confirm.TimedOut:
		return "confirmation timed out, nothing was done", nil
	}

	// Bridged requesters show up in notifications as a mention, the way the
	// recipients know them.
	actor := sender
	if pid := platformID(sender); pid != sender {
		actor = resolve.Mention(pid)
	}

	rep := h.liveReport(roomID)
	err = h.Engine.Run(ctx, rep, engine.Request{
		Community:    com,
		Actor:        actor,
		ActorAddress: actorAddress,
		Kind:         kind,
		References:   users,
		Amount:       amount,
		Message:      message,
	})
	if err != nil {
		return "", err
	}
	return "", nil
}

func batchSummary(kind engine.Kind, com *community.Community, users []string, amount float64, message string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ about to %s %g %s", kind, amount, com.Token.Symbol)
	if len(users) == 1 {
		fmt.Fprintf(&b, " %s %s", kind.Preposition(), users[0])
	} else {
		fmt.Fprintf(&b, " %s each of %d recipients", kind.Preposition(), len(users))
	}
	if message != "" {
		fmt.Fprintf(&b, " with message %q", message)
	}
	return b.String()
}

// liveReport renders a progress report as a single room message edited in
// place.
func (h *Handlers) liveReport(roomID string) *progress.Report {
	var eventID string
	return progress.NewReport(progress.RendererFunc(func(ctx context.Context, text string) error {
		if eventID == "" {
			id, err := h.Messenger.SendMessage(ctx, roomID, text)
			if err != nil {
				return err
			}
			eventID = id
			return nil
		}
		return h.Messenger.EditMessage(ctx, roomID, eventID, text)
	}))
}

func parseBig(s string) (*big.Int, bool) {
	return new(big.Int).SetString(s, 10)
}
