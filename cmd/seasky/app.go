package main

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/seasky/seasky-web/client"
	"github.com/seasky/seasky-web/internal/apiclient"
	"github.com/seasky/seasky-web/internal/cart"
	"github.com/seasky/seasky-web/internal/catalog"
	"github.com/seasky/seasky-web/internal/config"
	"github.com/seasky/seasky-web/internal/credentials"
	"github.com/seasky/seasky-web/internal/registration"
	"github.com/seasky/seasky-web/internal/staticserver"
	"github.com/seasky/seasky-web/internal/views"
	"github.com/seasky/seasky-web/pkg/core"
	"github.com/seasky/seasky-web/pkg/health"
	"github.com/seasky/seasky-web/pkg/i18n"
	"github.com/seasky/seasky-web/pkg/limits"
	"github.com/seasky/seasky-web/pkg/logging"
	"github.com/seasky/seasky-web/pkg/metrics"
	"github.com/seasky/seasky-web/pkg/retry"
	"github.com/seasky/seasky-web/pkg/router"
	"github.com/seasky/seasky-web/pkg/state"
	"github.com/seasky/seasky-web/pkg/transport"
	"github.com/seasky/seasky-web/pkg/uploads"
)

const (
	maxLiveSessions = 10000
	maxConnsPerIP   = 20
	uploadRate      = 1.0 // per second and client
	uploadBurst     = 10
	uploadTTL       = 15 * time.Minute
	credentialsTTL  = 10 * time.Minute
	sweepInterval   = time.Minute
)

var errBreakerOpen = errors.New("api circuit breaker is open")

// app holds the long-lived pieces of the serve command.
type app struct {
	cfg    *config.Config
	logger logging.Logger

	store   *state.MemoryStore
	uploads *limits.TokenBucket
	api     *apiclient.Client
	live    *router.Router
	health  *health.Checker
	metrics *metrics.Metrics
	static  *staticserver.Server
	root    chi.Router
}

func newApp(cfg *config.Config, logger logging.Logger) (*app, error) {
	tr, err := i18n.Default(cfg.Locale)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		store:   state.NewMemoryStore(sweepInterval),
		uploads: limits.NewTokenBucket(uploadRate, uploadBurst, sweepInterval),
		api: apiclient.New(apiclient.Config{
			BaseURL: cfg.APIURL,
			Breaker: retry.DefaultBreakerConfig(),
			Logger:  logger.With(logging.String("component", "api")),
		}),
		metrics: metrics.New("seasky"),
		static:  staticserver.New(&staticserver.Config{Dir: cfg.StaticDir, Logger: logger}),
	}

	ttl := cfg.GetSessionTTL()
	inbox := uploads.NewInbox(a.store, uploadTTL)
	drafts := registration.NewDrafts(a.store, ttl)
	carts := cart.NewSessions(a.store, ttl)
	vault := credentials.NewVault(a.store, credentialsTTL)
	tokens := apiclient.NewSessionTokens(a.store, ttl)
	products := catalog.New(nil)
	agent := views.AgentDeps{
		Client: func(ts *apiclient.TokenStore) views.AgentAPI {
			return a.api.WithTokens(ts)
		},
		Tokens:     tokens,
		Translator: tr,
		Logger:     logger,
		Metrics:    a.metrics,
	}
	uploadCfg := uploads.DefaultConfig()

	wsConfig := transport.DefaultConfig()
	wsConfig.AllowedOrigins = cfg.AllowedOrigins

	a.live = router.New(
		router.WithLogger(logger),
		router.WithTransportConfig(wsConfig),
	)
	conns := limits.NewConnectionLimiter(maxConnsPerIP)
	a.live.Use(router.Recovery(), router.SecureHeaders(), conns.Middleware())

	a.live.Live("/register", func() core.Component {
		return views.NewRegisterView(views.RegisterDeps{
			API:        a.api.WithTokens(apiclient.NewTokenStore()),
			Inbox:      inbox,
			Uploads:    uploadCfg,
			Drafts:     drafts,
			Vault:      vault,
			Tokens:     tokens,
			Translator: tr,
			Debug:      cfg.DebugEnabled(),
			Logger:     logger,
			Metrics:    a.metrics,
		})
	})
	a.live.Live("/cart", func() core.Component {
		return views.NewCartView(views.CartDeps{Sessions: carts, Catalog: products, Translator: tr, Logger: logger, Metrics: a.metrics})
	})
	a.live.Live("/products", func() core.Component {
		return views.NewProductsView(views.ProductsDeps{Sessions: carts, Catalog: products, Translator: tr, Logger: logger, Metrics: a.metrics})
	})
	a.live.Live("/pdv", func() core.Component { return views.NewPDVView(agent) })
	a.live.Live("/qr", func() core.Component { return views.NewQRConfirmView(agent) })
	a.live.Live("/admin/credentials", func() core.Component {
		return views.NewCredentialsView(views.CredentialsDeps{Vault: vault, Translator: tr, Logger: logger, Metrics: a.metrics})
	})
	a.live.Handle(client.Prefix+"*", client.Handler())
	a.live.Handle("/_uploads", limits.Middleware(a.uploads)(uploads.NewHandler(uploadCfg, inbox)))
	a.live.NotFound(a.static.ServeHTTP)

	a.health = health.NewChecker(version)
	a.health.AddCheck("api", a.api.Ping, 3*time.Second)
	a.health.AddCheck("api_breaker", func(context.Context) error {
		if a.api.BreakerState() == retry.StateOpen {
			return errBreakerOpen
		}
		return nil
	}, time.Second)
	a.health.AddCheck("static_index", health.FileCheck(filepath.Join(a.static.Root(), "index.html")), time.Second)
	a.health.AddCriticalCheck("live_sessions", health.CountCheck("live sessions", a.live.Sessions().Count, maxLiveSessions), time.Second)

	a.metrics.Gauge("live_sessions", func() float64 { return float64(a.live.Sessions().Count()) })
	a.metrics.Gauge("upload_clients", func() float64 { return float64(a.uploads.Len()) })

	root := chi.NewRouter()
	root.Use(middleware.RealIP, middleware.Heartbeat("/ping"), logging.RequestLogger(logger))
	root.Method(http.MethodGet, "/healthz", a.health.LivenessHandler())
	root.Method(http.MethodGet, "/readyz", a.health.ReadinessHandler())
	root.Method(http.MethodGet, "/metrics", a.metrics.Handler())
	root.Mount("/", a.live)
	a.root = root

	return a, nil
}

// Handler is the root HTTP handler.
func (a *app) Handler() http.Handler {
	return a.root
}

// Close releases the session store and the upload limiter.
func (a *app) Close() error {
	return errors.Join(a.uploads.Close(), a.store.Close())
}
