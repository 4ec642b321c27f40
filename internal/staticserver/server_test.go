package staticserver

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDist(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"index.html":         "<html>app</html>",
		"assets/app.js":      "console.log(1)",
		"assets/app.css":     "body{}",
		"manifest.json":      "{}",
		"logo.png":           "png",
		"photo.jpg":          "jpg",
		"robots.txt":         "User-agent: *",
		"assets/fonts/a.otf": "font",
	}
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return dir
}

func get(t *testing.T, h http.Handler, target string) (*http.Response, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	res := rec.Result()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, string(body)
}

func TestServe(t *testing.T) {
	s := New(&Config{Dir: newDist(t)})

	tests := []struct {
		target      string
		contentType string
		body        string
	}{
		{"/", "text/html", "<html>app</html>"},
		{"/assets/app.js", "text/javascript", "console.log(1)"},
		{"/assets/app.css", "text/css", "body{}"},
		{"/manifest.json", "application/json", "{}"},
		{"/logo.png", "image/png", "png"},
		{"/photo.jpg", "image/jpg", "jpg"},
		{"/robots.txt", "text/html", "User-agent: *"},
		{"/assets/fonts/a.otf", "text/html", "font"},
		{"/dashboard/livreur", "text/html", "<html>app</html>"},
		{"/assets", "text/html", "<html>app</html>"},
		{"/../../etc/passwd", "text/html", "<html>app</html>"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			res, body := get(t, s, tt.target)
			assert.Equal(t, http.StatusOK, res.StatusCode)
			assert.Equal(t, tt.contentType, res.Header.Get("Content-Type"))
			assert.Equal(t, tt.body, body)
		})
	}
}

func TestMissingIndexIs500(t *testing.T) {
	s := New(&Config{Dir: t.TempDir()})

	res, body := get(t, s, "/orders?id=3")
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.Equal(t, "Error loading /orders?id=3", body)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/javascript", ContentType("A.JS"))
	assert.Equal(t, "text/html", ContentType("noext"))
	assert.Equal(t, "text/html", ContentType("image.jpeg"))
}
