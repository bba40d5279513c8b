package confirm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeRecorder struct {
	mu        sync.Mutex
	decisions []string
}

func (r *fakeRecorder) RecordDecision(_ context.Context, _, _, _, outcome string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, outcome)
	return "id-1", nil
}

func (r *fakeRecorder) outcomes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.decisions...)
}

func TestConfirm_Yes(t *testing.T) {
	rec := &fakeRecorder{}
	g := NewGate(rec, time.Second)

	done := make(chan Outcome, 1)
	go func() {
		out, _ := g.Confirm(context.Background(), "!room", "@alice", "send 10 ACORN", nil)
		done <- out
	}()

	// Wait until the prompt is registered.
	waitPending(t, g, "!room", "@alice")

	if !g.Deliver("!room", "@alice", " YES ") {
		t.Fatal("qualifying reply was not consumed")
	}
	if got := <-done; got != Confirmed {
		t.Fatalf("outcome = %v, want Confirmed", got)
	}
	if out := rec.outcomes(); len(out) != 1 || out[0] != "confirmed" {
		t.Fatalf("recorded outcomes = %v, want [confirmed]", out)
	}
}

func TestConfirm_No(t *testing.T) {
	g := NewGate(nil, time.Second)

	done := make(chan Outcome, 1)
	go func() {
		out, _ := g.Confirm(context.Background(), "!room", "@alice", "burn 5 ACORN", nil)
		done <- out
	}()
	waitPending(t, g, "!room", "@alice")

	if !g.Deliver("!room", "@alice", "no") {
		t.Fatal("qualifying reply was not consumed")
	}
	if got := <-done; got != Cancelled {
		t.Fatalf("outcome = %v, want Cancelled", got)
	}
}

func TestConfirm_Timeout(t *testing.T) {
	rec := &fakeRecorder{}
	g := NewGate(rec, 20*time.Millisecond)

	got, err := g.Confirm(context.Background(), "!room", "@alice", "send", nil)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if got != TimedOut {
		t.Fatalf("outcome = %v, want TimedOut", got)
	}
	if out := rec.outcomes(); len(out) != 1 || out[0] != "timed_out" {
		t.Fatalf("recorded outcomes = %v, want [timed_out]", out)
	}
}

func TestConfirm_ReplyDuringPromptDelivery(t *testing.T) {
	rec := &fakeRecorder{}
	g := NewGate(rec, time.Second)

	// The reply lands while the prompt is still being posted. The pending
	// entry must already exist so the answer is queued, not dropped.
	out, err := g.Confirm(context.Background(), "!room", "@alice", "send", func(context.Context) error {
		if !g.Deliver("!room", "@alice", "yes") {
			t.Error("reply arriving mid-post was not consumed")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if out != Confirmed {
		t.Fatalf("outcome = %v, want Confirmed", out)
	}
	if got := rec.outcomes(); len(got) != 1 || got[0] != "confirmed" {
		t.Fatalf("recorded outcomes = %v, want [confirmed]", got)
	}
}

func TestConfirm_PostErrorWithdrawsPrompt(t *testing.T) {
	rec := &fakeRecorder{}
	g := NewGate(rec, time.Second)

	boom := errors.New("send failed")
	_, err := g.Confirm(context.Background(), "!room", "@alice", "send", func(context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want post error", err)
	}
	if g.Deliver("!room", "@alice", "yes") {
		t.Fatal("prompt should be withdrawn after a failed post")
	}
	if got := rec.outcomes(); len(got) != 0 {
		t.Fatalf("no outcome should be recorded, got %v", got)
	}
}

func TestDeliver_IgnoresOtherUsers(t *testing.T) {
	g := NewGate(nil, time.Second)

	done := make(chan Outcome, 1)
	go func() {
		out, _ := g.Confirm(context.Background(), "!room", "@alice", "send", nil)
		done <- out
	}()
	waitPending(t, g, "!room", "@alice")

	if g.Deliver("!room", "@mallory", "yes") {
		t.Fatal("reply from a different user must not be consumed")
	}
	if g.Deliver("!other", "@alice", "yes") {
		t.Fatal("reply in a different room must not be consumed")
	}
	if !g.Deliver("!room", "@alice", "yes") {
		t.Fatal("requester's own reply should be consumed")
	}
	if got := <-done; got != Confirmed {
		t.Fatalf("outcome = %v, want Confirmed", got)
	}
}

func TestDeliver_IgnoresNonAnswers(t *testing.T) {
	g := NewGate(nil, time.Second)

	done := make(chan Outcome, 1)
	go func() {
		out, _ := g.Confirm(context.Background(), "!room", "@alice", "send", nil)
		done <- out
	}()
	waitPending(t, g, "!room", "@alice")

	if g.Deliver("!room", "@alice", "what does this do?") {
		t.Fatal("non-answer must not be consumed")
	}
	if !g.Deliver("!room", "@alice", "cancel") {
		t.Fatal("qualifying reply was not consumed")
	}
	if got := <-done; got != Cancelled {
		t.Fatalf("outcome = %v, want Cancelled", got)
	}
}

func TestConfirm_ContextCancel(t *testing.T) {
	g := NewGate(nil, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Outcome, 1)
	go func() {
		out, _ := g.Confirm(ctx, "!room", "@alice", "send", nil)
		done <- out
	}()
	waitPending(t, g, "!room", "@alice")

	cancel()
	if got := <-done; got != Cancelled {
		t.Fatalf("outcome = %v, want Cancelled", got)
	}
}

func waitPending(t *testing.T, g *Gate, roomID, requester string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		g.mu.Lock()
		_, ok := g.pending[key(roomID, requester)]
		g.mu.Unlock()
		if ok {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("prompt was never registered")
}
