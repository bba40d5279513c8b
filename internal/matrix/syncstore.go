package matrix

// syncstore.go adapts the bot's persistent key store to mautrix.SyncStore.
// Persisting the next_batch token across restarts prevents the bot from
// replaying old room history and re-processing commands that were already
// handled in a previous run.

import (
	"context"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"
)

// TokenStore persists opaque string values keyed by account.
type TokenStore struct {
	Load func(ctx context.Context, account string) (string, error)
	Save func(ctx context.Context, account, value string) error
}

var _ mautrix.SyncStore = (*syncStore)(nil)

type syncStore struct {
	tokens TokenStore
}

func newSyncStore(tokens TokenStore) *syncStore {
	return &syncStore{tokens: tokens}
}

func (s *syncStore) SaveFilterID(ctx context.Context, userID id.UserID, filterID string) error {
	return s.tokens.Save(ctx, "filter/"+userID.String(), filterID)
}

func (s *syncStore) LoadFilterID(ctx context.Context, userID id.UserID) (string, error) {
	return s.tokens.Load(ctx, "filter/"+userID.String())
}

func (s *syncStore) SaveNextBatch(ctx context.Context, userID id.UserID, nextBatchToken string) error {
	return s.tokens.Save(ctx, userID.String(), nextBatchToken)
}

func (s *syncStore) LoadNextBatch(ctx context.Context, userID id.UserID) (string, error) {
	return s.tokens.Load(ctx, userID.String())
}
