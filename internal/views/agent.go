package views

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/seasky/seasky-web/internal/apiclient"
	"github.com/seasky/seasky-web/pkg/core"
	"github.com/seasky/seasky-web/pkg/i18n"
	"github.com/seasky/seasky-web/pkg/logging"
	"github.com/seasky/seasky-web/pkg/metrics"
)

const redirectLogoutDelay = 500 * time.Millisecond

// AgentAPI is the part of the API client the point-of-sale pages use.
type AgentAPI interface {
	Profile(ctx context.Context) (*apiclient.Profile, error)
	Refresh(ctx context.Context) (*apiclient.AuthResponse, error)
	Logout(ctx context.Context) error
	MyPDV(ctx context.Context) (*apiclient.PDV, error)
	ReportSale(ctx context.Context, in apiclient.SaleReport) (map[string]any, error)
	ScanQR(ctx context.Context, qrData string) (*apiclient.QRScanResult, error)
	ConfirmDeliveryFromScan(ctx context.Context, in apiclient.DeliveryConfirmation) (map[string]any, error)
}

// AgentDeps are shared by the point-of-sale pages.
type AgentDeps struct {
	// Client binds the API to the tokens of one browser session.
	Client     func(tokens *apiclient.TokenStore) AgentAPI
	Tokens     *apiclient.SessionTokens
	Translator *i18n.Translator
	Logger     logging.Logger
	Metrics    *metrics.Metrics
}

func (d AgentDeps) withDefaults() AgentDeps {
	if d.Logger == nil {
		d.Logger = logging.NopLogger{}
	}
	if d.Translator == nil {
		d.Translator = i18n.MustDefault(i18n.DefaultLocale)
	}
	return d
}

// agentSession is the logged-in API access of one page.
type agentSession struct {
	deps      AgentDeps
	logger    logging.Logger
	sessionID string
	tokens    *apiclient.TokenStore
	api       AgentAPI
}

func (a *agentSession) mount(ctx context.Context, session core.Session, logger logging.Logger) {
	a.logger = logger
	a.sessionID = session.GetString("session_id")
	a.tokens = apiclient.NewTokenStore()
	if a.deps.Tokens != nil && a.sessionID != "" {
		ts, err := a.deps.Tokens.Load(ctx, a.sessionID)
		if err != nil {
			a.logger.Warn("session tokens not loaded", logging.Err(err))
		}
		a.tokens = ts
	}
	if a.deps.Client != nil {
		a.api = a.deps.Client(a.tokens)
	}
}

// signedIn reports whether calls go out with an access token.
func (a *agentSession) signedIn() bool {
	return a.api != nil && a.tokens.Authenticated()
}

// call runs fn and, when the access token has expired, refreshes it once
// and runs fn again. A failed refresh signs the session out.
func (a *agentSession) call(ctx context.Context, action string, fn func(context.Context) error) error {
	err := fn(ctx)
	if apiclient.IsStatus(err, http.StatusUnauthorized) {
		if _, rerr := a.api.Refresh(ctx); rerr != nil {
			a.logger.Info("token refresh failed", logging.String("action", action), logging.Err(rerr))
			a.tokens.Clear()
			a.persist(ctx)
			a.deps.Metrics.AgentAction(action, false)
			return err
		}
		a.persist(ctx)
		err = fn(ctx)
	}
	a.deps.Metrics.AgentAction(action, err == nil)
	if err != nil {
		a.logger.Warn("api call failed", logging.String("action", action), logging.Err(err))
	}
	return err
}

func (a *agentSession) persist(ctx context.Context) {
	if a.deps.Tokens == nil || a.sessionID == "" {
		return
	}
	if err := a.deps.Tokens.Save(context.WithoutCancel(ctx), a.sessionID, a.tokens); err != nil {
		a.logger.Warn("session tokens not kept", logging.Err(err))
	}
}

// logout ends the session upstream and forgets its tokens even when the
// API cannot be reached.
func (a *agentSession) logout(ctx context.Context, socket *core.Socket) {
	if a.signedIn() {
		if err := a.api.Logout(ctx); err != nil {
			a.logger.Warn("logout failed", logging.Err(err))
		}
	}
	a.tokens.Clear()
	a.persist(ctx)
	if socket != nil {
		_ = socket.Push("redirect", map[string]any{"to": "/login", "delay": redirectLogoutDelay.Milliseconds()})
	}
}

// litersParam reads a positive quantity of liters. Browsers send numbers
// as strings, sometimes with a decimal comma.
func litersParam(payload map[string]any, key string) (float64, error) {
	var liters float64
	switch v := payload[key].(type) {
	case float64:
		liters = v
	case int:
		liters = float64(v)
	case string:
		n, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(v), ",", "."), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s=%q", ErrBadPayload, key, v)
		}
		liters = n
	default:
		return 0, fmt.Errorf("%w: missing %s", ErrBadPayload, key)
	}
	if liters <= 0 || math.IsNaN(liters) || math.IsInf(liters, 0) {
		return 0, fmt.Errorf("%w: %s must be positive", ErrBadPayload, key)
	}
	return liters, nil
}
