package cart

import (
	"context"
	"errors"
	"time"

	"github.com/seasky/seasky-web/pkg/state"
)

// Sessions keeps one cart per browser session in a state store. Entries
// expire after the store TTL; nothing outlives the process.
type Sessions struct {
	bucket *state.Bucket[[]Item]
}

// NewSessions stores carts in store for ttl.
func NewSessions(store state.Store, ttl time.Duration) *Sessions {
	return &Sessions{bucket: state.NewBucket[[]Item](store, "cart:", ttl)}
}

// Load returns the cart of sessionID, or an empty cart.
func (s *Sessions) Load(ctx context.Context, sessionID string) (*Cart, error) {
	items, err := s.bucket.Load(ctx, sessionID)
	if errors.Is(err, state.ErrKeyNotFound) {
		return New(), nil
	}
	if err != nil {
		return New(), err
	}
	return New(items...), nil
}

// Save stores c under sessionID. An empty cart deletes the entry.
func (s *Sessions) Save(ctx context.Context, sessionID string, c *Cart) error {
	items := c.Items()
	if len(items) == 0 {
		return s.bucket.Delete(ctx, sessionID)
	}
	return s.bucket.Save(ctx, sessionID, items)
}
