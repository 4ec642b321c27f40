package apiclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seasky/seasky-web/pkg/state"
)

func TestSessionTokens(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore(0)
	t.Cleanup(func() { _ = store.Close() })
	sessions := NewSessionTokens(store, time.Hour)

	empty, err := sessions.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.False(t, empty.Authenticated())

	ts := NewTokenStore()
	ts.SetTokens("acc", "ref")
	require.NoError(t, sessions.Save(ctx, "sess-1", ts))

	loaded, err := sessions.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "acc", loaded.Token())
	assert.Equal(t, "ref", loaded.Refresh())
	assert.Equal(t, "acc", loaded.Get(KeyAccessLegacy))

	other, err := sessions.Load(ctx, "sess-2")
	require.NoError(t, err)
	assert.False(t, other.Authenticated())

	loaded.Clear()
	require.NoError(t, sessions.Save(ctx, "sess-1", loaded))
	gone, err := sessions.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.False(t, gone.Authenticated())
}
