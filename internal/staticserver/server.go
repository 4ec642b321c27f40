// Package staticserver serves a built single-page application from a
// directory. Unknown paths fall back to index.html so client-side routes
// resolve.
package staticserver

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/seasky/seasky-web/pkg/logging"
)

// contentTypes is deliberately small; everything else is served as HTML.
var contentTypes = map[string]string{
	".js":   "text/javascript",
	".css":  "text/css",
	".json": "application/json",
	".png":  "image/png",
	".jpg":  "image/jpg",
}

// ContentType returns the Content-Type for a file name.
func ContentType(name string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "text/html"
}

// Config configures the static server.
type Config struct {
	Addr   string
	Dir    string
	Logger logging.Logger
}

// DefaultConfig serves ./dist on port 3000.
func DefaultConfig() *Config {
	return &Config{
		Addr: ":3000",
		Dir:  "./dist",
	}
}

// Server serves files from Dir.
type Server struct {
	addr   string
	root   string
	logger logging.Logger
}

// New creates a static server.
func New(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.NopLogger{}
	}
	root, err := filepath.Abs(config.Dir)
	if err != nil {
		root = filepath.Clean(config.Dir)
	}
	return &Server{addr: config.Addr, root: root, logger: logger}
}

// Root returns the absolute directory being served.
func (s *Server) Root() string {
	return s.root
}

// resolve maps a URL path into the root. Paths that do not exist or that
// escape the root resolve to index.html.
func (s *Server) resolve(urlPath string) string {
	index := filepath.Join(s.root, "index.html")
	if urlPath == "" || urlPath == "/" {
		return index
	}

	clean := path.Clean("/" + urlPath)
	full := filepath.Join(s.root, filepath.FromSlash(clean))
	if rel, err := filepath.Rel(s.root, full); err != nil || strings.HasPrefix(rel, "..") {
		return index
	}
	if info, err := os.Stat(full); err != nil || info.IsDir() {
		return index
	}
	return full
}

// ServeHTTP reads the resolved file on every request.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	file := s.resolve(r.URL.Path)

	content, err := os.ReadFile(file)
	if err != nil {
		logging.L(r.Context()).Error("static file read failed",
			logging.String("url", r.URL.RequestURI()),
			logging.String("file", file),
			logging.Err(err),
		)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Error loading " + r.URL.RequestURI()))
		return
	}

	w.Header().Set("Content-Type", ContentType(file))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(content)
	}
}

// Start listens on the configured address until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           logging.RequestLogger(s.logger)(s),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("static server listening", logging.String("addr", s.addr), logging.String("dir", s.root))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
