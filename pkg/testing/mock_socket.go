package testing

import (
	"sync"

	"github.com/google/uuid"

	"github.com/seasky/seasky-web/pkg/core"
)

// MockTransport implements core.Transport and records what a component
// pushed to the browser.
type MockTransport struct {
	ID string

	mu          sync.Mutex
	sent        []core.Message
	closed      bool
	errorToSend error
}

// NewMockTransport creates a connected mock transport.
func NewMockTransport() *MockTransport {
	return &MockTransport{ID: "test-socket-" + uuid.NewString()[:8]}
}

// Send records msg.
func (mt *MockTransport) Send(msg core.Message) error {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	if mt.errorToSend != nil {
		return mt.errorToSend
	}
	if mt.closed {
		return core.ErrSocketClosed
	}
	mt.sent = append(mt.sent, msg)
	return nil
}

// Close marks the transport closed.
func (mt *MockTransport) Close() error {
	mt.mu.Lock()
	mt.closed = true
	mt.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (mt *MockTransport) Closed() bool {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return mt.closed
}

// SetError makes every following Send fail with err. A nil err clears it.
func (mt *MockTransport) SetError(err error) {
	mt.mu.Lock()
	mt.errorToSend = err
	mt.mu.Unlock()
}

// Sent returns a copy of the recorded messages.
func (mt *MockTransport) Sent() []core.Message {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return append([]core.Message(nil), mt.sent...)
}

// Pushed returns the payloads of recorded messages with event.
func (mt *MockTransport) Pushed(event string) []map[string]any {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	var out []map[string]any
	for _, msg := range mt.sent {
		if msg.Event == event {
			out = append(out, msg.Payload)
		}
	}
	return out
}

// Reset forgets recorded messages and reopens the transport.
func (mt *MockTransport) Reset() {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.sent = nil
	mt.closed = false
	mt.errorToSend = nil
}
