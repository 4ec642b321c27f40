package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/seasky/seasky-web/pkg/core"
	"github.com/seasky/seasky-web/pkg/transport"
)

// counter is a minimal live component.
type counter struct {
	core.BaseComponent

	mu         sync.Mutex
	count      int
	sessionID  string
	terminated chan core.TerminateReason
}

func newCounter() *counter {
	return &counter{terminated: make(chan core.TerminateReason, 1)}
}

func (c *counter) Name() string  { return "counter" }
func (c *counter) Title() string { return "Compteur" }

func (c *counter) Mount(ctx context.Context, params core.Params, session core.Session) error {
	c.sessionID = session.GetString(SessionIDKey)
	if params.Get("fail") != "" {
		return errors.New("mount refused")
	}
	return nil
}

func (c *counter) Render(ctx context.Context) core.Renderer {
	return core.RendererFunc(func(ctx context.Context, w io.Writer) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		_, err := fmt.Fprintf(w, `<p id="count">%d</p>`, c.count)
		return err
	})
}

func (c *counter) HandleEvent(ctx context.Context, event string, payload map[string]any) error {
	switch event {
	case "inc":
		c.mu.Lock()
		c.count++
		c.mu.Unlock()
	case "later":
		go func() { _ = c.Socket().SendInfo(10) }()
	case "boom":
		panic("handler exploded")
	default:
		return fmt.Errorf("unknown event %q", event)
	}
	return nil
}

func (c *counter) HandleInfo(ctx context.Context, msg any) error {
	n, _ := msg.(int)
	c.mu.Lock()
	c.count += n
	c.mu.Unlock()
	return nil
}

func (c *counter) Terminate(ctx context.Context, reason core.TerminateReason) error {
	c.terminated <- reason
	return nil
}

func TestRenderPageWrapsLayoutAndSetsSession(t *testing.T) {
	r := New()
	r.Live("/counter", func() core.Component { return newCounter() })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/counter", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"<title>Compteur · SeaSky</title>", `<p id="count">0</p>`, "/_live/live.js"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if !strings.Contains(rec.Header().Get("Set-Cookie"), SessionCookie+"=") {
		t.Error("session cookie not issued")
	}
}

func TestRenderPageKeepsExistingSession(t *testing.T) {
	var mounted *counter
	r := New()
	r.Live("/counter", func() core.Component { mounted = newCounter(); return mounted })

	req := httptest.NewRequest(http.MethodGet, "/counter", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "sid-1"})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if mounted.sessionID != "sid-1" {
		t.Errorf("session id = %q", mounted.sessionID)
	}
	if rec.Header().Get("Set-Cookie") != "" {
		t.Error("cookie reissued")
	}
}

func TestRenderPageMountError(t *testing.T) {
	r := New()
	r.Live("/counter", func() core.Component { return newCounter() })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/counter?fail=1", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
}

type liveClient struct {
	t    *testing.T
	ctx  context.Context
	conn *websocket.Conn
	ref  int
}

func dialLive(t *testing.T, srv *httptest.Server, path string) *liveClient {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+path, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return &liveClient{t: t, ctx: ctx, conn: conn}
}

func (c *liveClient) send(event string, payload map[string]any) string {
	c.t.Helper()
	c.ref++
	ref := fmt.Sprint(c.ref)
	data, _ := transport.Message{Ref: ref, Topic: "lv:test", Event: event, Payload: payload}.Encode()
	if err := c.conn.Write(c.ctx, websocket.MessageText, data); err != nil {
		c.t.Fatalf("write: %v", err)
	}
	return ref
}

func (c *liveClient) read() transport.Message {
	c.t.Helper()
	_, data, err := c.conn.Read(c.ctx)
	if err != nil {
		c.t.Fatalf("read: %v", err)
	}
	msg, err := transport.Decode(data)
	if err != nil {
		c.t.Fatalf("decode: %v", err)
	}
	return msg
}

func (c *liveClient) until(event string) transport.Message {
	c.t.Helper()
	for {
		if msg := c.read(); msg.Event == event {
			return msg
		}
	}
}

func TestLiveJoinEventAndInfo(t *testing.T) {
	comp := newCounter()
	r := New()
	r.Live("/counter", func() core.Component { return comp })
	srv := httptest.NewServer(r)
	defer srv.Close()

	c := dialLive(t, srv, "/counter")

	c.send("inc", nil)
	reply := c.read()
	if reply.Payload["status"] != "error" {
		t.Errorf("event before join should fail, got %v", reply.Payload)
	}

	c.send("phx_join", nil)
	reply = c.until("phx_reply")
	resp, _ := reply.Payload["response"].(map[string]any)
	if resp["rendered"] != `<p id="count">0</p>` {
		t.Errorf("join render = %v", resp["rendered"])
	}

	c.send("inc", nil)
	diff := c.until("diff")
	if diff.Payload["f"] != `<p id="count">1</p>` {
		t.Errorf("diff = %v", diff.Payload)
	}

	c.send("later", nil)
	diff = c.until("diff")
	if diff.Payload["f"] != `<p id="count">11</p>` {
		t.Errorf("info diff = %v", diff.Payload)
	}

	c.send("phx_leave", nil)
	select {
	case reason := <-comp.terminated:
		if reason != core.TerminateNormal {
			t.Errorf("reason = %v", reason)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("component not terminated")
	}
}

func TestLivePanicIsReportedAndConnectionSurvives(t *testing.T) {
	r := New()
	r.Live("/counter", func() core.Component { return newCounter() })
	srv := httptest.NewServer(r)
	defer srv.Close()

	c := dialLive(t, srv, "/counter")
	c.send("phx_join", nil)
	c.until("phx_reply")

	c.send("boom", nil)
	reply := c.until("phx_reply")
	if reply.Payload["status"] != "error" {
		t.Errorf("panic reply = %v", reply.Payload)
	}

	c.send("inc", nil)
	if diff := c.until("diff"); diff.Payload["f"] != `<p id="count">1</p>` {
		t.Errorf("diff after panic = %v", diff.Payload)
	}
}

func TestShutdownClosesLiveConnections(t *testing.T) {
	comp := newCounter()
	r := New()
	r.Live("/counter", func() core.Component { return comp })
	srv := httptest.NewServer(r)
	defer srv.Close()

	c := dialLive(t, srv, "/counter")
	c.send("phx_join", nil)
	c.until("phx_reply")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if r.Sessions().Count() != 0 {
		t.Errorf("sessions left = %d", r.Sessions().Count())
	}
	if reason := <-comp.terminated; reason != core.TerminateShutdown {
		t.Errorf("reason = %v", reason)
	}
}

func TestSecureHeaders(t *testing.T) {
	h := SecureHeaders()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("frame options missing")
	}
	if !strings.Contains(rec.Header().Get("Content-Security-Policy"), "img-src 'self' data:") {
		t.Error("csp should allow data: previews")
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("oops") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
}
