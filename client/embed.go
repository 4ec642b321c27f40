// Package client embeds the browser runtime of the live pages.
package client

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"sort"
)

// Prefix is the URL path the assets are served under.
const Prefix = "/_live/"

//go:embed src/*.js src/*.css
var embedded embed.FS

var assets = mustSub(embedded, "src")

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}

// Handler serves the assets under Prefix. The runtime changes with each
// release, so browsers revalidate instead of caching blindly.
func Handler() http.Handler {
	files := http.FileServer(http.FS(assets))
	return http.StripPrefix(Prefix, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := fs.Stat(assets, path.Clean(r.URL.Path)); err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "no-cache")
		files.ServeHTTP(w, r)
	}))
}

// Read returns an embedded asset by name.
func Read(name string) ([]byte, error) {
	return fs.ReadFile(assets, name)
}

// Names lists the embedded assets, sorted.
func Names() []string {
	var names []string
	_ = fs.WalkDir(assets, ".", func(p string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			names = append(names, p)
		}
		return nil
	})
	sort.Strings(names)
	return names
}
