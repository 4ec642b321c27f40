package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seasky/seasky-web/pkg/state"
)

func TestAddToCartMergesLines(t *testing.T) {
	c := New()
	c.AddToCart(1, "Milk", 1500, "img.png", 2)
	c.AddToCart(1, "Milk", 1500, "img.png", 3)

	want := []Item{{ProductID: 1, Title: "Milk", UnitPrice: 1500, ImageRef: "img.png", Quantity: 5}}
	if diff := cmp.Diff(want, c.Items()); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateQuantityZeroRemoves(t *testing.T) {
	c := New()
	c.AddToCart(1, "Milk", 1500, "milk.png", 2)
	c.AddToCart(2, "Yaourt", 800, "yaourt.png", 1)

	c.UpdateQuantity(1, 0)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 1, c.TotalItems())

	c.UpdateQuantity(2, 4)
	assert.Equal(t, 4, c.TotalItems())
	assert.InDelta(t, 3200, c.TotalPrice(), 0.001)

	c.UpdateQuantity(99, 3)
	assert.Equal(t, 1, c.Len())
}

func TestTotalsAndClear(t *testing.T) {
	c := New()
	assert.Zero(t, c.TotalItems())
	assert.Zero(t, c.TotalPrice())

	c.AddToCart(1, "Milk", 1500, "", 2)
	c.AddToCart(3, "Fromage", 4500.5, "", 1)
	c.AddToCart(4, "Beurre", 2000, "", 0)

	assert.Equal(t, 3, c.TotalItems())
	assert.InDelta(t, 7500.5, c.TotalPrice(), 0.001)

	c.RemoveFromCart(3)
	assert.Equal(t, 2, c.TotalItems())

	c.ClearCart()
	assert.Empty(t, c.Items())
}

func TestItemsIsACopy(t *testing.T) {
	c := New()
	c.AddToCart(1, "Milk", 1500, "", 1)
	items := c.Items()
	items[0].Quantity = 42
	assert.Equal(t, 1, c.TotalItems())
}

func TestConcurrentAdds(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.AddToCart(7, "Lait caillé", 1000, "", 1)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 50, c.TotalItems())
}

func TestSessions(t *testing.T) {
	store := state.NewMemoryStore(time.Minute)
	defer store.Close()
	sessions := NewSessions(store, time.Hour)
	ctx := context.Background()

	empty, err := sessions.Load(ctx, "sid")
	require.NoError(t, err)
	assert.Zero(t, empty.Len())

	c := New()
	c.AddToCart(1, "Milk", 1500, "milk.png", 2)
	require.NoError(t, sessions.Save(ctx, "sid", c))

	loaded, err := sessions.Load(ctx, "sid")
	require.NoError(t, err)
	if diff := cmp.Diff(c.Items(), loaded.Items()); diff != "" {
		t.Errorf("loaded cart mismatch (-want +got):\n%s", diff)
	}

	loaded.ClearCart()
	require.NoError(t, sessions.Save(ctx, "sid", loaded))
	keys, err := store.Keys(ctx, "cart:*")
	require.NoError(t, err)
	assert.Empty(t, keys)
}
