// Package transport carries live-view frames between browser and server.
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrConnectionClosed = errors.New("transport: connection closed")
	ErrSendTimeout      = errors.New("transport: send timed out")
	ErrOriginNotAllowed = errors.New("transport: origin not allowed")
	ErrMalformedFrame   = errors.New("transport: malformed frame")
)

// Message is one JSON frame. The browser runtime sends events as
// {ref, topic, event, payload} and receives replies and pushes in the same
// shape.
type Message struct {
	Ref     string         `json:"ref,omitempty"`
	Topic   string         `json:"topic"`
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Encode renders the frame.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses a frame. Frames without an event are rejected.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if m.Event == "" {
		return Message{}, fmt.Errorf("%w: no event", ErrMalformedFrame)
	}
	return m, nil
}

// Config tunes a connection.
type Config struct {
	WriteTimeout time.Duration
	// PingInterval of zero disables keepalive pings.
	PingInterval   time.Duration
	MaxMessageSize int64
	// BufferSize bounds the inbound and outbound queues.
	BufferSize int

	// AllowedOrigins are accepted in addition to same-origin requests.
	// "*" accepts any origin.
	AllowedOrigins []string
}

// DefaultConfig fits form events. Upload bodies never go through the
// socket, so frames stay small.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 64 << 10,
		BufferSize:     64,
	}
}
