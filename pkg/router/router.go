// Package router serves live components over HTTP and WebSocket on top of
// a chi mux.
package router

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/seasky/seasky-web/pkg/core"
	"github.com/seasky/seasky-web/pkg/logging"
	"github.com/seasky/seasky-web/pkg/transport"
)

var (
	ErrNilRenderer = errors.New("component returned nil renderer")
	ErrNotJoined   = errors.New("live view not joined")
)

// Middleware wraps an HTTP handler.
type Middleware = func(http.Handler) http.Handler

// ErrorHandler writes a response for a failed page render.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Layout wraps a component's first render in a full HTML document.
type Layout func(w io.Writer, title string, content []byte) error

// Titler is implemented by components that set the page title.
type Titler interface {
	Title() string
}

// Router mounts live routes and plain handlers.
type Router struct {
	mux          chi.Router
	sessions     *SessionManager
	wsConfig     transport.Config
	layout       Layout
	errorHandler ErrorHandler
	logger       logging.Logger

	conns sync.WaitGroup
}

// Option configures a Router.
type Option func(*Router)

func WithLogger(l logging.Logger) Option {
	return func(r *Router) { r.logger = l }
}

func WithTransportConfig(c transport.Config) Option {
	return func(r *Router) { r.wsConfig = c }
}

func WithLayout(l Layout) Option {
	return func(r *Router) { r.layout = l }
}

func WithErrorHandler(h ErrorHandler) Option {
	return func(r *Router) { r.errorHandler = h }
}

// New creates a router.
func New(opts ...Option) *Router {
	r := &Router{
		mux:      chi.NewRouter(),
		sessions: NewSessionManager(),
		wsConfig: transport.DefaultConfig(),
		layout:   DefaultLayout,
		logger:   logging.DefaultLogger,
	}
	r.errorHandler = func(w http.ResponseWriter, req *http.Request, err error) {
		logging.L(req.Context()).Error("render failed", logging.String("path", req.URL.Path), logging.Err(err))
		http.Error(w, "Erreur interne", http.StatusInternalServerError)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Use adds middleware. Like chi, it must be called before any route is
// registered.
func (r *Router) Use(mws ...Middleware) {
	r.mux.Use(mws...)
}

// Live registers a live component at path.
func (r *Router) Live(path string, factory func() core.Component) {
	r.mux.HandleFunc(path, func(w http.ResponseWriter, req *http.Request) {
		if isWebSocketRequest(req) {
			r.serveLive(w, req, factory())
			return
		}
		r.renderPage(w, req, factory())
	})
}

func (r *Router) Handle(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) HandleFunc(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) Get(pattern string, h http.HandlerFunc) {
	r.mux.Get(pattern, h)
}

func (r *Router) Post(pattern string, h http.HandlerFunc) {
	r.mux.Post(pattern, h)
}

// Mount attaches a sub-handler under prefix.
func (r *Router) Mount(prefix string, h http.Handler) {
	r.mux.Mount(prefix, h)
}

// NotFound sets the handler for unmatched paths.
func (r *Router) NotFound(h http.HandlerFunc) {
	r.mux.NotFound(h)
}

func (r *Router) Sessions() *SessionManager {
	return r.sessions
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Shutdown closes every live connection and waits for their loops to
// finish or ctx to end.
func (r *Router) Shutdown(ctx context.Context) error {
	r.sessions.CloseAll()

	done := make(chan struct{})
	go func() {
		r.conns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Router) renderPage(w http.ResponseWriter, req *http.Request, comp core.Component) {
	session := ensureSession(w, req)
	params := extractParams(req)
	ctx := core.BuildContext(req.Context(), nil, session, params)

	if err := comp.Mount(ctx, params, session); err != nil {
		r.errorHandler(w, req, err)
		return
	}

	var buf bytes.Buffer
	if err := renderComponent(ctx, comp, &buf); err != nil {
		r.errorHandler(w, req, err)
		return
	}

	title := comp.Name()
	if t, ok := comp.(Titler); ok {
		title = t.Title()
	}

	var page bytes.Buffer
	if err := r.layout(&page, title, buf.Bytes()); err != nil {
		r.errorHandler(w, req, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(page.Bytes())
}

func renderComponent(ctx context.Context, comp core.Component, w io.Writer) error {
	renderer := comp.Render(ctx)
	if renderer == nil {
		return ErrNilRenderer
	}
	return renderer.Render(ctx, w)
}

// DefaultLayout is a minimal document loading the live client.
func DefaultLayout(w io.Writer, title string, content []byte) error {
	_, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="fr">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s · SeaSky</title>
<link rel="stylesheet" href="/_live/seasky.css">
</head>
<body>
<main id="lv-root" data-live>%s</main>
<script src="/_live/live.js" defer></script>
</body>
</html>
`, html.EscapeString(title), content)
	return err
}

func extractParams(req *http.Request) core.Params {
	params := make(core.Params)
	for key, values := range req.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return params
}

func isWebSocketRequest(req *http.Request) bool {
	return strings.EqualFold(req.Header.Get("Upgrade"), "websocket")
}

func newSocketID() string {
	return uuid.NewString()
}
