// Package devserver defines the development-server capability the
// orchestrator builds on, and ships a minimal built-in engine for it.
//
// A dev server is created per router through a Factory. The returned Handle
// serves requests under the router's base path, exposes the plugins it was
// configured with, and loads server modules fresh on every call. Plugins
// participate through optional interfaces:
//
//   - ConfigHook sees the final Config before the handle starts.
//   - HTMLTransformer contributes head markup to every manifest entry.
//   - MiddlewarePlugin wraps the handle's request chain.
//
// The engine in this package is a file server with a WebSocket reload
// channel and an fsnotify watcher. It does not transform sources.
package devserver

import (
	"context"
	"net/http"

	"github.com/vango-dev/devstack/internal/config"
	"github.com/vango-dev/devstack/pkg/assets"
)

// AppType describes how a handle treats requests it cannot serve.
type AppType string

const (
	// AppTypeCustom leaves HTML handling to the caller.
	AppTypeCustom AppType = "custom"

	// AppTypeSPA falls back to index.html for unknown paths.
	AppTypeSPA AppType = "spa"
)

// HMRConfig configures a handle's reload channel.
type HMRConfig struct {
	Host string
	Port int
}

// ServerConfig configures how a handle is served.
type ServerConfig struct {
	// MiddlewareMode means the handle never listens for HTTP itself.
	MiddlewareMode bool
	HMR            HMRConfig
}

// BuildConfig records the entry points of a router.
type BuildConfig struct {
	Inputs []string
}

// Config is the configuration a Factory receives.
type Config struct {
	// Base is the URL prefix the handle serves under.
	Base    string
	AppType AppType

	// Root is the directory files are served from.
	Root string

	// AllowFS lists extra directories whose files may be served via @fs.
	AllowFS []string

	Plugins []Plugin
	Router  *config.RouterConfig
	Server  ServerConfig
	Build   BuildConfig

	// Ignore holds extra watcher ignore patterns.
	Ignore []string
}

// Plugin is a named dev-server extension.
type Plugin interface {
	Name() string
}

// ConfigHook is implemented by plugins that inspect or adjust the resolved
// config before the handle starts.
type ConfigHook interface {
	ConfigResolved(cfg *Config) error
}

// HTMLContext is the document a transform hook runs against.
type HTMLContext struct {
	Path        string
	HTML        string
	OriginalURL string
}

// HTMLTransformer is implemented by plugins that inject head markup.
type HTMLTransformer interface {
	TransformIndexHTML(ctx context.Context, hc HTMLContext) ([]assets.Asset, error)
}

// MiddlewarePlugin is implemented by plugins that wrap the request chain.
type MiddlewarePlugin interface {
	Middleware(h Handle) func(http.Handler) http.Handler
}

// Module is a server module loaded through a handle.
type Module struct {
	ID string

	// Handler is the module's exported request handler.
	Handler http.Handler
}

// Handle is a live dev server.
type Handle interface {
	Config() *Config
	Plugins() []Plugin

	// Middlewares returns the handle's request chain.
	Middlewares() http.Handler

	// LoadModule loads the module id fresh. Callers must not cache the result.
	LoadModule(ctx context.Context, id string) (*Module, error)

	Close() error
}

// Factory creates a live handle from a config.
type Factory func(ctx context.Context, cfg Config) (Handle, error)

// StyleModule is a stylesheet reachable from a set of entry points.
type StyleModule struct {
	Key  string
	Text string
}

// StyleCollector finds the stylesheets reachable from paths in a handle's
// module graph.
type StyleCollector interface {
	Collect(ctx context.Context, h Handle, paths []string) ([]StyleModule, error)
}

// StyleCollectorFunc adapts a function to StyleCollector.
type StyleCollectorFunc func(ctx context.Context, h Handle, paths []string) ([]StyleModule, error)

// Collect calls f.
func (f StyleCollectorFunc) Collect(ctx context.Context, h Handle, paths []string) ([]StyleModule, error) {
	return f(ctx, h, paths)
}
