package store_test

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"communibot/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "communibot-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp db file: %v", err)
	}
	f.Close()

	s, err := store.New(f.Name())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}

func TestRecordAndListDecisions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.RecordDecision(ctx, "!room:example.com", "@alice:example.com",
		"send 10 ACORN to <@42>", store.OutcomeConfirmed)
	if err != nil {
		t.Fatalf("RecordDecision: %v", err)
	}
	if id == "" {
		t.Fatal("expected a decision ID")
	}
	if _, err := s.RecordDecision(ctx, "!room:example.com", "@alice:example.com",
		"burn 5 ACORN", store.OutcomeTimedOut); err != nil {
		t.Fatalf("RecordDecision: %v", err)
	}
	if _, err := s.RecordDecision(ctx, "!other:example.com", "@bob:example.com",
		"mint 1 ACORN", store.OutcomeCancelled); err != nil {
		t.Fatalf("RecordDecision: %v", err)
	}

	decisions, err := s.RecentDecisions(ctx, "!room:example.com", 10)
	if err != nil {
		t.Fatalf("RecentDecisions: %v", err)
	}
	if len(decisions) != 2 {
		t.Fatalf("got %d decisions, want 2", len(decisions))
	}
	for _, d := range decisions {
		if d.RoomID != "!room:example.com" {
			t.Errorf("decision from wrong room: %s", d.RoomID)
		}
	}
}

func TestRecordDecision_RejectsUnknownOutcome(t *testing.T) {
	s := newTestStore(t)

	_, err := s.RecordDecision(context.Background(), "!room:example.com",
		"@alice:example.com", "send", "maybe")
	if err == nil {
		t.Fatal("expected CHECK constraint violation for unknown outcome")
	}
}

func TestRecordAndListOperations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.RecordOperation(ctx, &store.Operation{
		Community: "acorn",
		Kind:      "transfer",
		Actor:     "@alice:example.com",
		Recipient: "0x2222222222222222222222222222222222222222",
		Amount:    "1000",
		TxHash:    sql.NullString{String: "0xdeadbeef"},
		Status:    store.StatusSubmitted,
	})
	if err != nil {
		t.Fatalf("RecordOperation: %v", err)
	}
	_, err = s.RecordOperation(ctx, &store.Operation{
		Community: "acorn",
		Kind:      "mint",
		Actor:     "@alice:example.com",
		Recipient: "0x3333333333333333333333333333333333333333",
		Amount:    "500",
		Status:    store.StatusFailed,
		Error:     sql.NullString{String: "bundler: operation rejected"},
	})
	if err != nil {
		t.Fatalf("RecordOperation: %v", err)
	}

	ops, err := s.RecentOperations(ctx, "acorn", 10)
	if err != nil {
		t.Fatalf("RecentOperations: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("got %d operations, want 2", len(ops))
	}

	var submitted, failed int
	for _, op := range ops {
		switch op.Status {
		case store.StatusSubmitted:
			submitted++
			if !op.TxHash.Valid || op.TxHash.String != "0xdeadbeef" {
				t.Errorf("submitted op missing tx hash: %+v", op)
			}
		case store.StatusFailed:
			failed++
			if !op.Error.Valid {
				t.Errorf("failed op missing error message: %+v", op)
			}
		}
	}
	if submitted != 1 || failed != 1 {
		t.Fatalf("got %d submitted / %d failed, want 1/1", submitted, failed)
	}
}

func TestDMRoomCache(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	room, err := s.DMRoom(ctx, "@alice:example.com")
	if err != nil {
		t.Fatalf("DMRoom: %v", err)
	}
	if room != "" {
		t.Fatalf("expected no cached room, got %q", room)
	}

	if err := s.SetDMRoom(ctx, "@alice:example.com", "!dm1:example.com"); err != nil {
		t.Fatalf("SetDMRoom: %v", err)
	}
	if err := s.SetDMRoom(ctx, "@alice:example.com", "!dm2:example.com"); err != nil {
		t.Fatalf("SetDMRoom (replace): %v", err)
	}

	room, err = s.DMRoom(ctx, "@alice:example.com")
	if err != nil {
		t.Fatalf("DMRoom: %v", err)
	}
	if room != "!dm2:example.com" {
		t.Fatalf("room = %q, want !dm2:example.com", room)
	}
}

func TestSyncToken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	token, err := s.SyncToken(ctx, "@bot:example.com")
	if err != nil {
		t.Fatalf("SyncToken: %v", err)
	}
	if token != "" {
		t.Fatalf("expected empty token on first run, got %q", token)
	}

	if err := s.SetSyncToken(ctx, "@bot:example.com", "s12345"); err != nil {
		t.Fatalf("SetSyncToken: %v", err)
	}
	if err := s.SetSyncToken(ctx, "@bot:example.com", "s67890"); err != nil {
		t.Fatalf("SetSyncToken (replace): %v", err)
	}

	token, err = s.SyncToken(ctx, "@bot:example.com")
	if err != nil {
		t.Fatalf("SyncToken: %v", err)
	}
	if token != "s67890" {
		t.Fatalf("token = %q, want s67890", token)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "communibot-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp db file: %v", err)
	}
	f.Close()

	s, err := store.New(f.Name())
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	s.Close()

	s, err = store.New(f.Name())
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	s.Close()
}
