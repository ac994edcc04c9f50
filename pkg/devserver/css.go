package devserver

import (
	"net/http"
	"path/filepath"
	"strings"
)

// CSSPluginName is the registry name of the built-in stylesheet plugin.
const CSSPluginName = "css"

// CSSExtensions are the file extensions treated as stylesheets.
var CSSExtensions = []string{".css", ".scss", ".sass", ".less"}

// IsCSS reports whether p names a stylesheet.
func IsCSS(p string) bool {
	ext := strings.ToLower(filepath.Ext(stripQuery(p)))
	for _, e := range CSSExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// CSSPlugin serves stylesheets uncached with a text/css content type so that
// reloads triggered by the watcher always fetch fresh text.
type CSSPlugin struct{}

// NewCSSPlugin creates the stylesheet plugin.
func NewCSSPlugin() *CSSPlugin {
	return &CSSPlugin{}
}

// Name implements Plugin.
func (*CSSPlugin) Name() string { return CSSPluginName }

// Middleware implements MiddlewarePlugin.
func (*CSSPlugin) Middleware(Handle) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsCSS(r.URL.Path) {
				w.Header().Set("Content-Type", "text/css; charset=utf-8")
				w.Header().Set("Cache-Control", "no-cache")
			}
			next.ServeHTTP(w, r)
		})
	}
}

func stripQuery(p string) string {
	if i := strings.IndexAny(p, "?#"); i != -1 {
		return p[:i]
	}
	return p
}
