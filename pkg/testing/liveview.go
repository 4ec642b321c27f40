// Package testing drives live components without a browser or WebSocket
// connection.
package testing

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/seasky/seasky-web/pkg/core"
)

// LiveViewTest mounts one component over a mock transport. Events and
// info messages are handled on the test goroutine, like the router's
// event loop would.
type LiveViewTest struct {
	t         *testing.T
	ctx       context.Context
	component core.Component
	socket    *core.Socket
	transport *MockTransport
	params    core.Params
	session   core.Session
}

// MountOption configures Mount.
type MountOption func(*LiveViewTest)

// WithParams sets the mount params.
func WithParams(params core.Params) MountOption {
	return func(lvt *LiveViewTest) { lvt.params = params }
}

// WithSession sets the mount session.
func WithSession(session core.Session) MountOption {
	return func(lvt *LiveViewTest) { lvt.session = session }
}

// WithContext sets the base context passed to the component.
func WithContext(ctx context.Context) MountOption {
	return func(lvt *LiveViewTest) { lvt.ctx = ctx }
}

// Mount connects comp to a mock socket and mounts it. The component is
// terminated when the test ends.
func Mount(t *testing.T, comp core.Component, opts ...MountOption) *LiveViewTest {
	t.Helper()

	lvt := &LiveViewTest{
		t:         t,
		ctx:       context.Background(),
		component: comp,
		transport: NewMockTransport(),
		params:    core.Params{},
		session:   core.Session{},
	}
	for _, opt := range opts {
		opt(lvt)
	}

	lvt.socket = core.NewSocket(lvt.transport.ID, lvt.transport)
	if setter, ok := comp.(interface{ SetSocket(*core.Socket) }); ok {
		setter.SetSocket(lvt.socket)
	}
	lvt.ctx = core.BuildContext(lvt.ctx, lvt.socket, lvt.session, lvt.params)

	if err := comp.Mount(lvt.ctx, lvt.params, lvt.session); err != nil {
		t.Fatalf("mount %s: %v", comp.Name(), err)
	}
	t.Cleanup(func() {
		_ = comp.Terminate(context.Background(), core.TerminateNormal)
		_ = lvt.socket.Close()
	})
	return lvt
}

// Component returns the mounted component.
func (lvt *LiveViewTest) Component() core.Component {
	return lvt.component
}

// Transport returns the mock transport.
func (lvt *LiveViewTest) Transport() *MockTransport {
	return lvt.transport
}

// Socket returns the component's socket.
func (lvt *LiveViewTest) Socket() *core.Socket {
	return lvt.socket
}

// Event sends a browser event and returns the component's error.
func (lvt *LiveViewTest) Event(event string, payload map[string]any) error {
	lvt.t.Helper()
	if payload == nil {
		payload = map[string]any{}
	}
	return lvt.component.HandleEvent(lvt.ctx, event, payload)
}

// MustEvent is Event failing the test on error.
func (lvt *LiveViewTest) MustEvent(event string, payload map[string]any) *LiveViewTest {
	lvt.t.Helper()
	if err := lvt.Event(event, payload); err != nil {
		lvt.t.Fatalf("event %q: %v", event, err)
	}
	return lvt
}

// AwaitInfo waits for the next info message, hands it to HandleInfo and
// returns it. The test fails when nothing arrives within timeout.
func (lvt *LiveViewTest) AwaitInfo(timeout time.Duration) any {
	lvt.t.Helper()

	select {
	case msg := <-lvt.socket.Info():
		if err := lvt.component.HandleInfo(lvt.ctx, msg); err != nil {
			lvt.t.Fatalf("handle info %T: %v", msg, err)
		}
		return msg
	case <-time.After(timeout):
		lvt.t.Fatalf("no info message within %s", timeout)
		return nil
	}
}

// DrainInfo handles every queued info message without waiting.
func (lvt *LiveViewTest) DrainInfo() int {
	lvt.t.Helper()

	n := 0
	for {
		select {
		case msg := <-lvt.socket.Info():
			if err := lvt.component.HandleInfo(lvt.ctx, msg); err != nil {
				lvt.t.Fatalf("handle info %T: %v", msg, err)
			}
			n++
		default:
			return n
		}
	}
}

// HTML renders the component.
func (lvt *LiveViewTest) HTML() string {
	lvt.t.Helper()

	r := lvt.component.Render(lvt.ctx)
	if r == nil {
		lvt.t.Fatalf("%s returned a nil renderer", lvt.component.Name())
	}
	var buf bytes.Buffer
	if err := r.Render(lvt.ctx, &buf); err != nil {
		lvt.t.Fatalf("render %s: %v", lvt.component.Name(), err)
	}
	return buf.String()
}

// Assert returns HTML assertions over the current render.
func (lvt *LiveViewTest) Assert() *HTMLAssert {
	lvt.t.Helper()
	return NewHTMLAssert(lvt.t, lvt.HTML())
}
