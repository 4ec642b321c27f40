package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShutdownRunsHooksByPriority(t *testing.T) {
	h := NewHandler(time.Second, nil)

	var order []string
	h.Register("static", 20, func(context.Context) error { order = append(order, "static"); return nil })
	h.Register("live", 10, func(context.Context) error { order = append(order, "live"); return nil })
	h.Register("store", 30, func(context.Context) error { order = append(order, "store"); return errors.New("flush failed") })

	err := h.Shutdown()
	assert.EqualError(t, err, "flush failed")
	assert.Equal(t, []string{"live", "static", "store"}, order)

	select {
	case <-h.Done():
	default:
		t.Error("Done not closed")
	}
	assert.ErrorIs(t, h.Shutdown(), ErrAlreadyClosed)
}

func TestShutdownTimeout(t *testing.T) {
	h := NewHandler(10*time.Millisecond, nil)
	h.Register("slow", 0, func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	assert.ErrorIs(t, h.Shutdown(), ErrShutdownTimeout)
}
