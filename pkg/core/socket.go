package core

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrSocketClosed = errors.New("socket is closed")
	ErrSendFailed   = errors.New("failed to send message")
	ErrInfoFull     = errors.New("socket info queue full")
)

// Transport delivers messages to the browser.
type Transport interface {
	Send(msg Message) error
	Close() error
}

// Message is one frame exchanged with the browser.
type Message struct {
	Ref     string         `json:"ref,omitempty"`
	Topic   string         `json:"topic"`
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload,omitempty"`
}

const infoQueueSize = 32

// Socket is the server side of one live connection.
type Socket struct {
	id        string
	transport Transport
	info      chan any

	mu     sync.RWMutex
	closed bool
}

// NewSocket creates a socket sending through transport.
func NewSocket(id string, transport Transport) *Socket {
	return &Socket{
		id:        id,
		transport: transport,
		info:      make(chan any, infoQueueSize),
	}
}

func (s *Socket) ID() string {
	return s.id
}

// Topic is the channel name the browser joined.
func (s *Socket) Topic() string {
	return "lv:" + s.id
}

// Send writes a message to the browser.
func (s *Socket) Send(msg Message) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrSocketClosed
	}

	if err := s.transport.Send(msg); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

// Push sends a server-initiated event on the socket's topic.
func (s *Socket) Push(event string, payload map[string]any) error {
	return s.Send(Message{Topic: s.Topic(), Event: event, Payload: payload})
}

// SendInfo queues msg for the component's HandleInfo. It is safe to call
// from any goroutine and never blocks.
func (s *Socket) SendInfo(msg any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrSocketClosed
	}
	select {
	case s.info <- msg:
		return nil
	default:
		return ErrInfoFull
	}
}

// Info delivers queued HandleInfo messages. The channel is never closed;
// the event loop stops on its own context.
func (s *Socket) Info() <-chan any {
	return s.info
}

// Closed reports whether Close was called.
func (s *Socket) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Close marks the socket closed and closes the transport.
func (s *Socket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.transport.Close()
}
