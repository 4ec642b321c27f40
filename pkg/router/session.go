package router

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/seasky/seasky-web/pkg/core"
)

// SessionCookie names the browser session cookie. Its value keys drafts
// and carts kept on the server.
const SessionCookie = "seasky_sid"

// SessionIDKey is the core.Session key holding the browser session ID.
const SessionIDKey = "session_id"

// LiveSession is one connected component.
type LiveSession struct {
	ID        string
	Component core.Component
	Socket    *core.Socket
	Params    core.Params
	Session   core.Session
	CreatedAt time.Time

	lastActivity atomic.Int64
	mounted      atomic.Bool
	left         atomic.Bool
	lastHash     atomic.Uint64
	version      atomic.Uint64
}

func (s *LiveSession) Touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

func (s *LiveSession) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

func (s *LiveSession) Mounted() bool {
	return s.mounted.Load()
}

func (s *LiveSession) setMounted() {
	s.mounted.Store(true)
}

// swapHash records the hash of the latest render and reports whether it
// differs from the previous one.
func (s *LiveSession) swapHash(h uint64) bool {
	return s.lastHash.Swap(h) != h
}

func (s *LiveSession) nextVersion() uint64 {
	return s.version.Add(1)
}

// SessionManager tracks connected components.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*LiveSession
}

func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]*LiveSession)}
}

func (m *SessionManager) Create(socket *core.Socket, comp core.Component, params core.Params, session core.Session) *LiveSession {
	s := &LiveSession{
		ID:        socket.ID(),
		Component: comp,
		Socket:    socket,
		Params:    params,
		Session:   session,
		CreatedAt: time.Now(),
	}
	s.Touch()

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

func (m *SessionManager) Get(id string) (*LiveSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *SessionManager) Remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll closes every session's socket.
func (m *SessionManager) CloseAll() {
	m.mu.RLock()
	sockets := make([]*core.Socket, 0, len(m.sessions))
	for _, s := range m.sessions {
		sockets = append(sockets, s.Socket)
	}
	m.mu.RUnlock()

	for _, s := range sockets {
		_ = s.Close()
	}
}

func extractSession(req *http.Request) core.Session {
	session := make(core.Session)
	for _, c := range req.Cookies() {
		session["cookie:"+c.Name] = c.Value
	}
	if sid := session.Cookie(SessionCookie); sid != "" {
		session[SessionIDKey] = sid
	}
	return session
}

// ensureSession extracts the session and issues a session cookie when the
// browser has none.
func ensureSession(w http.ResponseWriter, req *http.Request) core.Session {
	session := extractSession(req)
	if session.GetString(SessionIDKey) != "" {
		return session
	}

	sid := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	session["cookie:"+SessionCookie] = sid
	session[SessionIDKey] = sid
	return session
}
