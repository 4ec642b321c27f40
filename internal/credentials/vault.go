package credentials

import (
	"context"
	"errors"
	"time"

	"github.com/seasky/seasky-web/pkg/state"
)

// Vault holds credentials until they are shown once.
type Vault struct {
	bucket *state.Bucket[Credentials]
}

// NewVault keeps unseen credentials in store for ttl.
func NewVault(store state.Store, ttl time.Duration) *Vault {
	return &Vault{bucket: state.NewBucket[Credentials](store, "credentials:", ttl)}
}

// Put stores creds for sessionID, replacing unseen ones.
func (v *Vault) Put(ctx context.Context, sessionID string, creds Credentials) error {
	return v.bucket.Save(ctx, sessionID, creds)
}

// Take returns and forgets the credentials of sessionID. ok is false when
// there are none.
func (v *Vault) Take(ctx context.Context, sessionID string) (creds Credentials, ok bool, err error) {
	creds, err = v.bucket.Take(ctx, sessionID)
	if errors.Is(err, state.ErrKeyNotFound) {
		return Credentials{}, false, nil
	}
	if err != nil {
		return Credentials{}, false, err
	}
	return creds, true, nil
}
