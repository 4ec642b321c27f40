// Package core defines live components and the socket they talk through.
package core

import (
	"context"
	"io"
)

// Component is a server-rendered view that reacts to browser events.
//
// The lifecycle is Mount, then any number of HandleEvent or HandleInfo
// calls each followed by Render, then Terminate. Calls for one component
// are never concurrent.
type Component interface {
	// Name identifies the component in logs.
	Name() string

	// Mount initializes state from the URL params and session.
	Mount(ctx context.Context, params Params, session Session) error

	// Render returns the component's current HTML.
	Render(ctx context.Context) Renderer

	// HandleEvent processes a browser event.
	HandleEvent(ctx context.Context, event string, payload map[string]any) error

	// HandleInfo processes a message the component sent itself through
	// Socket.SendInfo, typically the result of background work.
	HandleInfo(ctx context.Context, msg any) error

	// Terminate releases resources when the connection ends.
	Terminate(ctx context.Context, reason TerminateReason) error
}

// Renderer writes HTML.
type Renderer interface {
	Render(ctx context.Context, w io.Writer) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, w io.Writer) error

func (f RendererFunc) Render(ctx context.Context, w io.Writer) error {
	return f(ctx, w)
}

// Params are the query parameters of the mounting request.
type Params map[string]string

func (p Params) Get(key string) string {
	return p[key]
}

// Session carries per-browser values such as cookies.
type Session map[string]any

func (s Session) GetString(key string) string {
	v, _ := s[key].(string)
	return v
}

// Cookie returns the value of the named request cookie.
func (s Session) Cookie(name string) string {
	return s.GetString("cookie:" + name)
}

// TerminateReason says why a component is being torn down.
type TerminateReason int

const (
	TerminateNormal TerminateReason = iota
	TerminateShutdown
	TerminateError
)

func (r TerminateReason) String() string {
	switch r {
	case TerminateNormal:
		return "normal"
	case TerminateShutdown:
		return "shutdown"
	case TerminateError:
		return "error"
	default:
		return "unknown"
	}
}

// BaseComponent provides no-op lifecycle methods and socket wiring for
// embedding.
type BaseComponent struct {
	socket *Socket
}

// SetSocket is called by the router once a live connection exists. Plain
// HTTP renders never get a socket.
func (bc *BaseComponent) SetSocket(s *Socket) {
	bc.socket = s
}

// Socket returns the live socket, or nil during the initial HTTP render.
func (bc *BaseComponent) Socket() *Socket {
	return bc.socket
}

func (bc *BaseComponent) HandleInfo(ctx context.Context, msg any) error {
	return nil
}

func (bc *BaseComponent) Terminate(ctx context.Context, reason TerminateReason) error {
	return nil
}
