package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seasky/seasky-web/pkg/core"
)

type counter struct {
	core.BaseComponent
	count      int
	start      string
	terminated bool
}

func (c *counter) Name() string { return "counter" }

func (c *counter) Mount(ctx context.Context, params core.Params, session core.Session) error {
	c.start = params.Get("start")
	return nil
}

func (c *counter) Render(ctx context.Context) core.Renderer {
	return core.RendererFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<div id="counter" class="count big">%s+%d</div>`, c.start, c.count)
		return err
	})
}

func (c *counter) HandleEvent(ctx context.Context, event string, payload map[string]any) error {
	switch event {
	case "inc":
		c.count++
	case "later":
		go func() { _ = c.Socket().SendInfo(5) }()
	default:
		return errors.New("unknown event")
	}
	return nil
}

func (c *counter) HandleInfo(ctx context.Context, msg any) error {
	if n, ok := msg.(int); ok {
		c.count += n
		return c.Socket().Push("bumped", map[string]any{"by": n})
	}
	return nil
}

func (c *counter) Terminate(ctx context.Context, reason core.TerminateReason) error {
	c.terminated = true
	return nil
}

func TestMountAndEvents(t *testing.T) {
	comp := &counter{}
	lv := Mount(t, comp, WithParams(core.Params{"start": "10"}))

	lv.Assert().HasID("counter").HasClass("count").HasText("10+0")

	lv.MustEvent("inc", nil).MustEvent("inc", nil)
	lv.Assert().HasText("10+2").NoText("10+0")

	assert.Error(t, lv.Event("nope", nil))
}

func TestAwaitInfo(t *testing.T) {
	lv := Mount(t, &counter{})
	lv.MustEvent("later", nil)

	msg := lv.AwaitInfo(time.Second)
	assert.Equal(t, 5, msg)
	lv.Assert().HasText("+5")

	pushed := lv.Transport().Pushed("bumped")
	require.Len(t, pushed, 1)
	assert.Equal(t, 5, pushed[0]["by"])

	assert.Zero(t, lv.DrainInfo())
}

func TestTerminateOnCleanup(t *testing.T) {
	comp := &counter{}
	t.Run("mounted", func(t *testing.T) {
		Mount(t, comp)
	})
	assert.True(t, comp.terminated)
}

func TestMockTransportErrors(t *testing.T) {
	mt := NewMockTransport()
	sock := core.NewSocket(mt.ID, mt)

	mt.SetError(errors.New("down"))
	assert.ErrorIs(t, sock.Push("x", nil), core.ErrSendFailed)

	mt.SetError(nil)
	require.NoError(t, sock.Push("x", nil))
	assert.Len(t, mt.Sent(), 1)

	require.NoError(t, sock.Close())
	assert.True(t, mt.Closed())
	assert.ErrorIs(t, sock.Push("x", nil), core.ErrSocketClosed)
}
