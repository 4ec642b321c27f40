package views

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seasky/seasky-web/internal/apiclient"
)

var errExpired = &apiclient.APIError{Status: http.StatusUnauthorized, Message: "Token expiré"}

// fakeAgent answers like the API for the token it was bound to. The
// access token "expired" gets 401 until refreshed.
type fakeAgent struct {
	mu         sync.Mutex
	tokens     *apiclient.TokenStore
	refreshErr error
	pdv        *apiclient.PDV
	pdvErr     error
	scan       *apiclient.QRScanResult
	scanErr    error
	scanned    []string
	sales      []apiclient.SaleReport
	confirms   []apiclient.DeliveryConfirmation
	logouts    int
}

func (f *fakeAgent) auth() error {
	if f.tokens.Token() == "expired" {
		return errExpired
	}
	return nil
}

func (f *fakeAgent) Profile(ctx context.Context) (*apiclient.Profile, error) {
	if err := f.auth(); err != nil {
		return nil, err
	}
	return &apiclient.Profile{Username: "agent1", FullName: "Jean Agent", Role: "PDV"}, nil
}

func (f *fakeAgent) Refresh(ctx context.Context) (*apiclient.AuthResponse, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	f.tokens.SetTokens("fresh", "")
	return &apiclient.AuthResponse{Access: "fresh"}, nil
}

func (f *fakeAgent) Logout(ctx context.Context) error {
	f.mu.Lock()
	f.logouts++
	f.mu.Unlock()
	f.tokens.Clear()
	return nil
}

func (f *fakeAgent) MyPDV(ctx context.Context) (*apiclient.PDV, error) {
	if err := f.auth(); err != nil {
		return nil, err
	}
	if f.pdvErr != nil {
		return nil, f.pdvErr
	}
	return f.pdv, nil
}

func (f *fakeAgent) ReportSale(ctx context.Context, in apiclient.SaleReport) (map[string]any, error) {
	if err := f.auth(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sales = append(f.sales, in)
	return map[string]any{"message": "Vente enregistrée"}, nil
}

func (f *fakeAgent) ScanQR(ctx context.Context, qrData string) (*apiclient.QRScanResult, error) {
	if err := f.auth(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scanned = append(f.scanned, qrData)
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	return f.scan, nil
}

func (f *fakeAgent) ConfirmDeliveryFromScan(ctx context.Context, in apiclient.DeliveryConfirmation) (map[string]any, error) {
	if err := f.auth(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirms = append(f.confirms, in)
	return map[string]any{"ok": true}, nil
}

// agentDeps binds f to the session "sess-1", signed in with access when
// it is not empty.
func agentDeps(t *testing.T, f *fakeAgent, access string) (AgentDeps, *apiclient.SessionTokens) {
	t.Helper()
	tokens := apiclient.NewSessionTokens(newStore(t), time.Hour)
	if access != "" {
		ts := apiclient.NewTokenStore()
		ts.SetTokens(access, "ref")
		require.NoError(t, tokens.Save(context.Background(), "sess-1", ts))
	}
	deps := AgentDeps{
		Client: func(ts *apiclient.TokenStore) AgentAPI {
			f.tokens = ts
			return f
		},
		Tokens: tokens,
	}
	return deps, tokens
}

func kinama() *apiclient.PDV {
	return &apiclient.PDV{
		ID:       7,
		Name:     "PDV Kinama",
		Province: "Bujumbura Mairie",
		Commune:  "Ntahangwa",
		Stock:    &apiclient.PDVStock{CurrentLiters: "120.50"},
	}
}

func TestLitersParam(t *testing.T) {
	tests := []struct {
		value any
		want  float64
		ok    bool
	}{
		{float64(12), 12, true},
		{"12,5", 12.5, true},
		{" 3.25 ", 3.25, true},
		{"0", 0, false},
		{float64(-1), 0, false},
		{"douze", 0, false},
		{"NaN", 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, err := litersParam(map[string]any{"liters": tt.value}, "liters")
		if !tt.ok {
			assert.ErrorIs(t, err, ErrBadPayload, "%v", tt.value)
			continue
		}
		require.NoError(t, err, "%v", tt.value)
		assert.Equal(t, tt.want, got)
	}
}

func TestAgentCallGivesUpAfterOneRefresh(t *testing.T) {
	f := &fakeAgent{}
	deps, _ := agentDeps(t, f, "expired")
	a := agentSession{deps: deps.withDefaults()}
	a.mount(context.Background(), session, deps.withDefaults().Logger)
	require.True(t, a.signedIn())

	calls := 0
	err := a.call(context.Background(), "profile", func(ctx context.Context) error {
		calls++
		return errExpired
	})
	assert.True(t, apiclient.IsStatus(err, http.StatusUnauthorized))
	assert.Equal(t, 2, calls)

	f.refreshErr = errors.New("refresh rejected")
	calls = 0
	err = a.call(context.Background(), "profile", func(ctx context.Context) error {
		calls++
		return errExpired
	})
	assert.ErrorIs(t, err, errExpired)
	assert.Equal(t, 1, calls)
	assert.False(t, a.signedIn())
}
