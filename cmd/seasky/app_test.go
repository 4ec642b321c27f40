package main

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seasky/seasky-web/internal/config"
	"github.com/seasky/seasky-web/pkg/logging"
	"github.com/seasky/seasky-web/pkg/router"
)

func newTestApp(t *testing.T) *app {
	t.Helper()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Not found."}`))
	}))
	t.Cleanup(api.Close)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte(`<div id="app">SPA</div>`), 0o644))

	cfg := config.Default()
	cfg.StaticDir = dir
	cfg.APIURL = api.URL

	a, err := newApp(cfg, logging.NopLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServeRoutes(t *testing.T) {
	h := newTestApp(t).Handler()

	rec := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, h, "/ping")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ".", rec.Body.String())

	rec = get(t, h, "/readyz")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "healthy", report.Status)

	rec = get(t, h, "/_live/live.js")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "phx_join")

	rec = get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "seasky_live_sessions 0\n")
	assert.Contains(t, rec.Body.String(), "# TYPE seasky_registrations_total counter")
}

func TestServeLivePages(t *testing.T) {
	h := newTestApp(t).Handler()

	rec := get(t, h, "/register")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Créer un compte")
	assert.Contains(t, rec.Body.String(), `src="/_live/live.js"`)
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))

	var sid *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == router.SessionCookie {
			sid = c
		}
	}
	require.NotNil(t, sid)

	rec = get(t, h, "/cart")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Mon panier")

	rec = get(t, h, "/products?type=lait")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Nos produits laitiers")
	assert.Contains(t, rec.Body.String(), "Lait Frais Entier")
	assert.NotContains(t, rec.Body.String(), "Yaourt Nature")

	for _, path := range []string{"/pdv", "/qr"} {
		rec = get(t, h, path)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "Connectez-vous pour accéder à cet espace.", path)
	}

	rec = get(t, h, "/admin/credentials")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServeStaticFallback(t *testing.T) {
	h := newTestApp(t).Handler()

	for _, path := range []string{"/", "/login", "/orders/12"} {
		rec := get(t, h, path)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "SPA", path)
	}
}

func TestServeUpload(t *testing.T) {
	h := newTestApp(t).Handler()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("field", "passport_photo"))
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="photo.png"`)
	hdr.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, _ = part.Write([]byte("\x89PNG\r\n\x1a\nfake"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/_uploads", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "passport_photo", resp["field"])
	assert.NotEmpty(t, resp["id"])
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "seasky v"+version+"\n", out.String())
}
