// Package manifest maps source inputs to the assets and output path a router
// must emit for them.
//
// The manifest is lazy. Nothing is computed when it is built; every call to
// Bundler, Input and Entry.Assets resolves against the current configuration
// and the live dev servers. Entry assets in particular are recomputed on
// every call, because the module graph changes between requests in dev.
//
// Consumers normally reach the manifest through a Slot:
//
//	slot := manifest.NewSlot()
//	// ... dev servers start, then:
//	slot.Install(manifest.New(app, servers, collector))
//
//	b, err := slot.Bundler("client")
//	entry, err := b.Input("app/client.tsx")
//	list, err := entry.Assets(ctx)
package manifest

import (
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/devstack/internal/config"
	"github.com/vango-dev/devstack/internal/errors"
	"github.com/vango-dev/devstack/internal/metrics"
	"github.com/vango-dev/devstack/pkg/assets"
	"github.com/vango-dev/devstack/pkg/devserver"
)

const tracerName = "github.com/vango-dev/devstack/pkg/manifest"

// Manifest resolves bundler names to their manifests.
type Manifest interface {
	Bundler(name string) (*BundlerManifest, error)
}

// Servers looks up the live dev-server handle of a router.
type Servers interface {
	Server(router string) (devserver.Handle, bool)
}

// ServerMap is a Servers keyed by router name.
type ServerMap map[string]devserver.Handle

// Server returns the handle registered for router.
func (m ServerMap) Server(router string) (devserver.Handle, bool) {
	h, ok := m[router]
	return h, ok
}

// Option configures a DevManifest.
type Option func(*DevManifest)

// WithTracer sets the tracer used for asset computation spans.
// Default: the global provider's tracer.
func WithTracer(t trace.Tracer) Option {
	return func(m *DevManifest) {
		m.tracer = t
	}
}

// WithMetrics records lookups and asset computations on mt.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *DevManifest) {
		m.metrics = mt
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *DevManifest) {
		m.logger = l
	}
}

// DevManifest is the manifest served while dev servers are running.
type DevManifest struct {
	app       *config.AppConfig
	servers   Servers
	collector devserver.StyleCollector

	tracer  trace.Tracer
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New builds a dev manifest over app. servers supplies the live handle for
// each router and collector finds the stylesheets of an entry.
func New(app *config.AppConfig, servers Servers, collector devserver.StyleCollector, opts ...Option) *DevManifest {
	m := &DevManifest{
		app:       app,
		servers:   servers,
		collector: collector,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.tracer == nil {
		m.tracer = otel.Tracer(tracerName)
	}
	return m
}

// Bundler returns the manifest for name. name is matched against router
// names first, then against the bundler name of each router in declaration
// order, preferring routers whose mode has a manifest.
func (m *DevManifest) Bundler(name string) (*BundlerManifest, error) {
	if name == "" {
		return nil, errors.New("E101").WithDetail("bundler name must not be empty")
	}

	router := m.lookupRouter(name)
	if router == nil {
		return nil, errors.New("E104").
			WithDetailf("no router or bundler named %q", name).
			WithSuggestion("Check the router names and build fields in your config")
	}
	if !router.Mode.Known() {
		return nil, errors.New("E123").
			WithDetailf("router %q has mode %q", router.Name, router.Mode)
	}
	if !router.Mode.HasManifest() {
		return nil, errors.New("E103").
			WithDetailf("Router mode %s doesn't have a manifest", router.Mode)
	}

	return &BundlerManifest{manifest: m, name: name, router: router}, nil
}

// lookupRouter returns the router named name. Failing that, it returns the
// first router building with bundler name that has a manifest, or the first
// such router at all when none has one.
func (m *DevManifest) lookupRouter(name string) *config.RouterConfig {
	if r := m.app.Router(name); r != nil {
		return r
	}
	var first *config.RouterConfig
	for _, r := range m.app.Routers {
		if r.BundlerName != name {
			continue
		}
		if r.Mode.Known() && r.Mode.HasManifest() {
			return r
		}
		if first == nil {
			first = r
		}
	}
	return first
}

// BundlerManifest is the manifest of one router, reached by bundler name.
type BundlerManifest struct {
	manifest *DevManifest
	name     string
	router   *config.RouterConfig
}

// Name returns the name the manifest was requested by.
func (b *BundlerManifest) Name() string { return b.name }

// Router returns the router that owns this manifest.
func (b *BundlerManifest) Router() *config.RouterConfig { return b.router }

// Handler returns the router's handler path, relative to the app root.
func (b *BundlerManifest) Handler() string { return b.router.Handler }

// JSON returns the build manifest. It is empty in dev.
func (b *BundlerManifest) JSON() map[string]any {
	return map[string]any{}
}

// Assets returns the per-entry assets of a built bundle. It is empty in dev.
func (b *BundlerManifest) Assets() map[string][]assets.Asset {
	return map[string][]assets.Asset{}
}
