package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"
)

// WebSocket is a server-side live connection. Frames are read and written
// by Run; Send queues outgoing frames.
type WebSocket struct {
	conn   *websocket.Conn
	config Config

	recv chan Message
	send chan Message

	done      chan struct{}
	closeOnce sync.Once
}

// Accept checks the request origin and upgrades the connection.
func Accept(w http.ResponseWriter, r *http.Request, config Config) (*WebSocket, error) {
	if !originAllowed(r.Header.Get("Origin"), r.Host, config.AllowedOrigins) {
		http.Error(w, "Forbidden: origin not allowed", http.StatusForbidden)
		return nil, ErrOriginNotAllowed
	}

	// The origin was checked above against the configured list.
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return nil, fmt.Errorf("accept websocket: %w", err)
	}
	if config.MaxMessageSize > 0 {
		conn.SetReadLimit(config.MaxMessageSize)
	}

	if config.BufferSize <= 0 {
		config.BufferSize = 64
	}
	return &WebSocket{
		conn:   conn,
		config: config,
		recv:   make(chan Message, config.BufferSize),
		send:   make(chan Message, config.BufferSize),
		done:   make(chan struct{}),
	}, nil
}

func originAllowed(origin, host string, allowed []string) bool {
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Host == host {
		return true
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
		if au, err := url.Parse(a); err == nil && au.Host != "" && au.Host == u.Host {
			return true
		}
	}
	return false
}

// Run pumps frames until the peer goes away, ctx ends or Close is called.
func (ws *WebSocket) Run(ctx context.Context) error {
	defer ws.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ws.readLoop(ctx) })
	g.Go(func() error { return ws.writeLoop(ctx) })
	if ws.config.PingInterval > 0 {
		g.Go(func() error { return ws.pingLoop(ctx) })
	}

	err := g.Wait()
	if errors.Is(err, ErrConnectionClosed) || websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
		websocket.CloseStatus(err) == websocket.StatusGoingAway {
		return nil
	}
	return err
}

// Receive yields decoded frames. It is closed when the read side ends.
func (ws *WebSocket) Receive() <-chan Message {
	return ws.recv
}

// Done is closed once the connection is closed.
func (ws *WebSocket) Done() <-chan struct{} {
	return ws.done
}

// Send queues msg for writing.
func (ws *WebSocket) Send(msg Message) error {
	timer := time.NewTimer(ws.config.WriteTimeout)
	defer timer.Stop()

	select {
	case <-ws.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case ws.send <- msg:
		return nil
	case <-ws.done:
		return ErrConnectionClosed
	case <-timer.C:
		return ErrSendTimeout
	}
}

// Close closes the connection. It is safe to call more than once.
func (ws *WebSocket) Close() error {
	var err error
	ws.closeOnce.Do(func() {
		close(ws.done)
		err = ws.conn.Close(websocket.StatusNormalClosure, "closing")
	})
	return err
}

func (ws *WebSocket) readLoop(ctx context.Context) error {
	defer close(ws.recv)

	for {
		_, data, err := ws.conn.Read(ctx)
		if err != nil {
			select {
			case <-ws.done:
				return ErrConnectionClosed
			default:
				return err
			}
		}

		msg, err := Decode(data)
		if err != nil {
			continue
		}

		select {
		case ws.recv <- msg:
		case <-ws.done:
			return ErrConnectionClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (ws *WebSocket) writeLoop(ctx context.Context) error {
	for {
		select {
		case msg := <-ws.send:
			data, err := msg.Encode()
			if err != nil {
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, ws.config.WriteTimeout)
			err = ws.conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return err
			}
		case <-ws.done:
			return ErrConnectionClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (ws *WebSocket) pingLoop(ctx context.Context) error {
	ticker := time.NewTicker(ws.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, ws.config.WriteTimeout)
			err := ws.conn.Ping(pctx)
			cancel()
			if err != nil {
				return err
			}
		case <-ws.done:
			return ErrConnectionClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
