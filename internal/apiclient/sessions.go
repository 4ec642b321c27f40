package apiclient

import (
	"context"
	"errors"
	"time"

	"github.com/seasky/seasky-web/pkg/state"
)

// SessionTokens keeps the token pair of each browser session, so pages
// mounted later in the session call the API as the logged-in user.
type SessionTokens struct {
	bucket *state.Bucket[TokenPair]
}

// NewSessionTokens stores token pairs in store for ttl.
func NewSessionTokens(store state.Store, ttl time.Duration) *SessionTokens {
	return &SessionTokens{bucket: state.NewBucket[TokenPair](store, "tokens:", ttl)}
}

// Load returns a TokenStore holding the tokens of sessionID. The store is
// empty when the session never logged in.
func (s *SessionTokens) Load(ctx context.Context, sessionID string) (*TokenStore, error) {
	ts := NewTokenStore()
	pair, err := s.bucket.Load(ctx, sessionID)
	if errors.Is(err, state.ErrKeyNotFound) {
		return ts, nil
	}
	if err != nil {
		return ts, err
	}
	ts.SetTokens(pair.Access, pair.Refresh)
	return ts, nil
}

// Save stores the tokens held by ts. An unauthenticated store deletes the
// entry.
func (s *SessionTokens) Save(ctx context.Context, sessionID string, ts *TokenStore) error {
	if !ts.Authenticated() {
		return s.Forget(ctx, sessionID)
	}
	return s.bucket.Save(ctx, sessionID, TokenPair{Access: ts.Token(), Refresh: ts.Refresh()})
}

// Forget drops the tokens of sessionID.
func (s *SessionTokens) Forget(ctx context.Context, sessionID string) error {
	return s.bucket.Delete(ctx, sessionID)
}
