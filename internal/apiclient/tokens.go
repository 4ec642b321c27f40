package apiclient

import "sync"

// Storage keys, in lookup order.
const (
	KeyAccess        = "seasky_access_token"
	KeyAccessLegacy  = "access_token"
	KeyAccessShort   = "access"
	KeyRefresh       = "seasky_refresh_token"
	KeyRefreshLegacy = "refresh_token"
)

var accessKeys = []string{KeyAccess, KeyAccessLegacy, KeyAccessShort}

// TokenSource yields the bearer token for a request. An empty token means
// the request is sent without Authorization.
type TokenSource interface {
	Token() string
}

// TokenStore keeps the tokens of one browser session under the same keys
// the SPA uses in localStorage.
type TokenStore struct {
	mu   sync.RWMutex
	vals map[string]string
}

func NewTokenStore() *TokenStore {
	return &TokenStore{vals: make(map[string]string)}
}

// Token returns the first non-empty access token among the known keys.
func (s *TokenStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range accessKeys {
		if v := s.vals[k]; v != "" {
			return v
		}
	}
	return ""
}

// Refresh returns the refresh token.
func (s *TokenStore) Refresh() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v := s.vals[KeyRefresh]; v != "" {
		return v
	}
	return s.vals[KeyRefreshLegacy]
}

// Get reads a raw key.
func (s *TokenStore) Get(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vals[key]
}

// Set writes a raw key. An empty value deletes it.
func (s *TokenStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == "" {
		delete(s.vals, key)
		return
	}
	s.vals[key] = value
}

// SetTokens stores access and refresh tokens under both the current and
// legacy keys. Empty values leave the stored token unchanged.
func (s *TokenStore) SetTokens(access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if access != "" {
		s.vals[KeyAccess] = access
		s.vals[KeyAccessLegacy] = access
	}
	if refresh != "" {
		s.vals[KeyRefresh] = refresh
		s.vals[KeyRefreshLegacy] = refresh
	}
}

// Clear forgets every token.
func (s *TokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.vals)
}

// Authenticated reports whether an access token is present.
func (s *TokenStore) Authenticated() bool {
	return s.Token() != ""
}

// StaticToken is a fixed TokenSource.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }
