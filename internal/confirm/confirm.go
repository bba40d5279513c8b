// Package confirm implements the confirmation gate for value-moving
// operations.
//
// Before a send, mint, or burn executes, the bot posts a summary of the
// operation in the room and waits for the requester to reply yes or no. Only
// the requester's first qualifying reply counts; anything else is ignored.
// Silence cancels the operation after a timeout.
package confirm

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// DefaultTimeout is how long a confirmation prompt waits for a reply.
const DefaultTimeout = 15 * time.Second

// Outcome is the terminal state of a confirmation prompt.
type Outcome int

const (
	Confirmed Outcome = iota
	Cancelled
	TimedOut
)

func (o Outcome) String() string {
	switch o {
	case Confirmed:
		return "confirmed"
	case Cancelled:
		return "cancelled"
	case TimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Recorder persists confirmation outcomes.
type Recorder interface {
	RecordDecision(ctx context.Context, roomID, requester, summary, outcome string) (string, error)
}

// Gate tracks pending confirmation prompts. One prompt may be pending per
// requester per room; a second request from the same requester in the same
// room supersedes the first.
type Gate struct {
	timeout  time.Duration
	recorder Recorder

	mu      sync.Mutex
	pending map[string]chan bool
}

// NewGate creates a Gate. Pass 0 for timeout to use DefaultTimeout. recorder
// may be nil, in which case outcomes are not persisted.
func NewGate(recorder Recorder, timeout time.Duration) *Gate {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Gate{
		timeout:  timeout,
		recorder: recorder,
		pending:  make(map[string]chan bool),
	}
}

func key(roomID, requester string) string {
	return roomID + "\x00" + requester
}

// Confirm registers the prompt, invokes post to deliver it, then blocks until
// the requester replies, the timeout elapses, or ctx is cancelled. The pending
// entry exists before post runs, so a reply racing the prompt delivery is
// queued instead of lost. When post fails the prompt is withdrawn without
// recording an outcome. post may be nil.
func (g *Gate) Confirm(ctx context.Context, roomID, requester, summary string, post func(context.Context) error) (Outcome, error) {
	k := key(roomID, requester)
	ch := make(chan bool, 1)

	g.mu.Lock()
	g.pending[k] = ch
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		if g.pending[k] == ch {
			delete(g.pending, k)
		}
		g.mu.Unlock()
	}()

	if post != nil {
		if err := post(ctx); err != nil {
			return Cancelled, err
		}
	}

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	var outcome Outcome
	select {
	case yes := <-ch:
		if yes {
			outcome = Confirmed
		} else {
			outcome = Cancelled
		}
	case <-timer.C:
		outcome = TimedOut
	case <-ctx.Done():
		outcome = Cancelled
	}

	g.record(ctx, roomID, requester, summary, outcome)
	return outcome, nil
}

func (g *Gate) record(ctx context.Context, roomID, requester, summary string, outcome Outcome) {
	if g.recorder == nil {
		return
	}
	// Recording uses a fresh context so a cancelled confirmation still logs.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := g.recorder.RecordDecision(rctx, roomID, requester, summary, outcome.String()); err != nil {
		slog.Error("failed to record confirmation decision",
			"room", roomID, "requester", requester, "error", err)
	}
}

// Deliver routes an incoming room message to a pending prompt. It returns
// true when the message was consumed as a confirmation reply. Messages from
// users with no pending prompt, and messages that are not a yes/no answer,
// are left for normal handling.
func (g *Gate) Deliver(roomID, sender, body string) bool {
	answer, ok := parseAnswer(body)
	if !ok {
		return false
	}

	g.mu.Lock()
	ch, exists := g.pending[key(roomID, sender)]
	if exists {
		delete(g.pending, key(roomID, sender))
	}
	g.mu.Unlock()

	if !exists {
		return false
	}
	ch <- answer
	return true
}

func parseAnswer(body string) (yes bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(body)) {
	case "yes", "y", "confirm", "ok":
		return true, true
	case "no", "n", "cancel":
		return false, true
	}
	return false, false
}
