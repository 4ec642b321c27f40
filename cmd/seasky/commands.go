package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/seasky/seasky-web/internal/config"
	"github.com/seasky/seasky-web/internal/staticserver"
	"github.com/seasky/seasky-web/pkg/logging"
	"github.com/seasky/seasky-web/pkg/shutdown"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the live frontend with the static fallback",
	RunE:  runServe,
}

var staticCmd = &cobra.Command{
	Use:   "static",
	Short: "Serve the built single-page app only",
	Long: `Serve the files of the static directory. Unknown paths get
index.html so client-side routes work. Listens on the static port
(3000 by default) unless --addr is given.`,
	RunE: runStatic,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "seasky v%s\n", version)
	},
}

// loadConfig reads the configuration, letting --config replace
// SEASKY_CONFIG.
func loadConfig() (*config.Config, error) {
	return config.LoadWith(func(key string) string {
		if key == "SEASKY_CONFIG" && configPath != "" {
			return configPath
		}
		return os.Getenv(key)
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addrFlag != "" {
		cfg.Addr = addrFlag
	}
	logger := cfg.Logger()
	logging.SetDefault(logger)

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := shutdown.NotifyContext(cmd.Context())
	defer stop()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	sd := shutdown.NewHandler(shutdownTimeout, logger)
	sd.Register("http", 10, srv.Shutdown)
	sd.Register("live", 20, a.live.Shutdown)
	sd.Register("state", 30, func(context.Context) error { return a.Close() })

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting",
			logging.String("addr", cfg.Addr),
			logging.String("env", cfg.Env),
			logging.String("api", a.api.BaseURL()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("server stopping")
		return sd.Shutdown()
	})
	return g.Wait()
}

func runStatic(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := cfg.Logger()
	logging.SetDefault(logger)

	addr := cfg.StaticAddr()
	if addrFlag != "" {
		addr = addrFlag
	}
	srv := staticserver.New(&staticserver.Config{Addr: addr, Dir: cfg.StaticDir, Logger: logger})

	ctx, stop := shutdown.NotifyContext(cmd.Context())
	defer stop()

	logger.Info("static server starting", logging.String("addr", addr), logging.String("dir", srv.Root()))
	return srv.Start(ctx)
}
