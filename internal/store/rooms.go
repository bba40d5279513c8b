package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DMRoom returns the cached direct-message room for a user, or "" when none
// is cached.
func (s *Store) DMRoom(ctx context.Context, userID string) (string, error) {
	var roomID string
	err := s.db.QueryRowContext(ctx,
		"SELECT room_id FROM dm_rooms WHERE user_id = ?", userID).Scan(&roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query dm room: %w", err)
	}
	return roomID, nil
}

// SetDMRoom caches the direct-message room for a user, replacing any previous
// entry.
func (s *Store) SetDMRoom(ctx context.Context, userID, roomID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dm_rooms (user_id, room_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET room_id = excluded.room_id
	`, userID, roomID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to cache dm room: %w", err)
	}
	return nil
}

// SyncToken returns the stored Matrix sync token for an account, or "" on
// first run.
func (s *Store) SyncToken(ctx context.Context, account string) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx,
		"SELECT next_batch FROM sync_state WHERE account = ?", account).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query sync token: %w", err)
	}
	return token, nil
}

// SetSyncToken stores the Matrix sync token for an account.
func (s *Store) SetSyncToken(ctx context.Context, account, token string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_state (account, next_batch, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (account) DO UPDATE SET next_batch = excluded.next_batch, updated_at = excluded.updated_at
	`, account, token, time.Now())
	if err != nil {
		return fmt.Errorf("failed to store sync token: %w", err)
	}
	return nil
}
