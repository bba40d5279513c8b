package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Decision outcomes.
const (
	OutcomeConfirmed = "confirmed"
	OutcomeCancelled = "cancelled"
	OutcomeTimedOut  = "timed_out"
)

// Decision is one confirmation prompt and how it ended.
type Decision struct {
	ID        string
	Timestamp time.Time
	RoomID    string
	Requester string
	Summary   string
	Outcome   string
}

// RecordDecision logs a confirmation outcome and returns its ID.
func (s *Store) RecordDecision(ctx context.Context, roomID, requester, summary, outcome string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO decisions (id, ts, room_id, requester, summary, outcome)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, time.Now(), roomID, requester, summary, outcome)
	if err != nil {
		return "", fmt.Errorf("failed to record decision: %w", err)
	}
	return id, nil
}

// RecentDecisions returns the most recent confirmation outcomes in a room,
// newest first.
func (s *Store) RecentDecisions(ctx context.Context, roomID string, limit int) ([]*Decision, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, room_id, requester, summary, outcome
		FROM decisions
		WHERE room_id = ?
		ORDER BY ts DESC
		LIMIT ?
	`, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	var decisions []*Decision
	for rows.Next() {
		d := &Decision{}
		if err := rows.Scan(&d.ID, &d.Timestamp, &d.RoomID, &d.Requester, &d.Summary, &d.Outcome); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

// Operation statuses.
const (
	StatusSubmitted = "submitted"
	StatusFailed    = "failed"
)

// Operation is one attempted on-chain operation for one recipient.
type Operation struct {
	ID        string
	Timestamp time.Time
	Community string
	Kind      string
	Actor     string
	Recipient string
	Amount    string
	TxHash    sql.NullString
	Status    string
	Error     sql.NullString
}

// RecordOperation logs an attempted on-chain operation. txHash and errMsg may
// be empty depending on status.
func (s *Store) RecordOperation(ctx context.Context, op *Operation) (string, error) {
	id := uuid.NewString()
	var txHash, errMsg sql.NullString
	if op.TxHash.String != "" {
		txHash = sql.NullString{String: op.TxHash.String, Valid: true}
	}
	if op.Error.String != "" {
		errMsg = sql.NullString{String: op.Error.String, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO operations (id, ts, community, kind, actor, recipient, amount, tx_hash, status, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, time.Now(), op.Community, op.Kind, op.Actor, op.Recipient, op.Amount, txHash, op.Status, errMsg)
	if err != nil {
		return "", fmt.Errorf("failed to record operation: %w", err)
	}
	return id, nil
}

// RecentOperations returns the most recent operations for a community,
// newest first.
func (s *Store) RecentOperations(ctx context.Context, communityAlias string, limit int) ([]*Operation, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, community, kind, actor, recipient, amount, tx_hash, status, error_message
		FROM operations
		WHERE community = ?
		ORDER BY ts DESC
		LIMIT ?
	`, communityAlias, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}
	defer rows.Close()

	var ops []*Operation
	for rows.Next() {
		op := &Operation{}
		if err := rows.Scan(&op.ID, &op.Timestamp, &op.Community, &op.Kind, &op.Actor,
			&op.Recipient, &op.Amount, &op.TxHash, &op.Status, &op.Error); err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}
