package dev

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/devstack/internal/config"
	"github.com/vango-dev/devstack/internal/errors"
	"github.com/vango-dev/devstack/internal/metrics"
	"github.com/vango-dev/devstack/internal/server"
	"github.com/vango-dev/devstack/pkg/devserver"
	"github.com/vango-dev/devstack/pkg/handler"
	"github.com/vango-dev/devstack/pkg/manifest"
)

const tracerName = "github.com/vango-dev/devstack/internal/dev"

// WSOptions configures the reload channels.
type WSOptions struct {
	// Port is the base port. Router i binds Port+i.
	Port int
}

// Options configures the orchestrator.
type Options struct {
	// Port is the port the HTTP server listens on.
	Port int

	// Host is the interface to listen on. Reload channels bind it too.
	Host string

	// Dev enables development mode. Without it Start is a no-op.
	Dev bool

	WS WSOptions

	// ServerEntry is the module node-handler routers load per request.
	ServerEntry string

	// Factory creates dev servers. Defaults to the built-in engine.
	Factory devserver.Factory

	// Collector finds entry stylesheets. Defaults to a GraphCollector.
	Collector devserver.StyleCollector

	// Registry resolves bundler plugin names. Defaults to NewRegistry().
	Registry *devserver.Registry

	// Ignore holds extra watcher ignore patterns.
	Ignore []string

	// SessionID identifies this dev session in logs and response headers.
	SessionID string

	Logger  zerolog.Logger
	Metrics *metrics.Metrics
	Tracer  trace.Tracer
}

func (o *Options) applyDefaults() {
	if o.Port == 0 {
		o.Port = config.DefaultPort
	}
	if o.WS.Port == 0 {
		o.WS.Port = config.DefaultWSPort
	}
	if o.ServerEntry == "" {
		o.ServerEntry = config.DefaultServerEntry
	}
	if o.Factory == nil {
		o.Factory = devserver.NewEngine(devserver.EngineOptions{Logger: o.Logger}).Factory()
	}
	if o.Collector == nil {
		o.Collector = devserver.NewGraphCollector()
	}
	if o.Registry == nil {
		o.Registry = devserver.NewRegistry()
	}
	if o.Tracer == nil {
		o.Tracer = otel.Tracer(tracerName)
	}
}

// HMRPort returns the reload channel port of router r.
func HMRPort(base int, r *config.RouterConfig) int {
	return base + r.Index
}

// Orchestrator runs development mode for one app.
type Orchestrator struct {
	app    *config.AppConfig
	slot   *manifest.Slot
	opts   Options
	logger zerolog.Logger

	mu      sync.Mutex
	started bool
	handles manifest.ServerMap
	server  *server.Server
}

// New creates an orchestrator for app. The manifest is installed into slot
// once every dev server is live.
func New(app *config.AppConfig, slot *manifest.Slot, opts Options) *Orchestrator {
	opts.applyDefaults()
	return &Orchestrator{
		app:    app,
		slot:   slot,
		opts:   opts,
		logger: opts.Logger.With().Str("component", "dev").Logger(),
	}
}

// Start prepares every dev server and serves until ctx is canceled. It may
// be called once. Without Options.Dev it returns nil immediately.
func (o *Orchestrator) Start(ctx context.Context) error {
	srv, err := o.Prepare(ctx)
	if err != nil {
		return err
	}
	if srv == nil {
		return nil
	}
	defer o.Close()

	addr := net.JoinHostPort(o.opts.Host, strconv.Itoa(o.opts.Port))
	o.logger.Info().
		Str("url", "http://"+displayHost(o.opts.Host)+":"+strconv.Itoa(o.opts.Port)).
		Str("session", o.opts.SessionID).
		Msg("dev server running")
	return srv.Listen(ctx, addr)
}

// Prepare starts the dev servers, installs the manifest and builds the HTTP
// server without listening. It returns a nil server when Options.Dev is
// false.
func (o *Orchestrator) Prepare(ctx context.Context) (*server.Server, error) {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return nil, errors.New("E140")
	}
	o.started = true
	o.mu.Unlock()

	if !o.opts.Dev {
		return nil, nil
	}

	ctx, span := o.opts.Tracer.Start(ctx, "dev.Prepare",
		trace.WithAttributes(attribute.Int("devstack.routers", len(o.app.Routers))))
	defer span.End()

	srv, err := o.prepare(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return srv, nil
}

func (o *Orchestrator) prepare(ctx context.Context) (*server.Server, error) {
	var (
		public  []server.PublicAssetDir
		routers []*config.RouterConfig
	)
	for _, r := range o.app.Routers {
		switch r.Mode {
		case config.ModeStatic:
			if r.Dir != "" {
				public = append(public, server.PublicAssetDir{Dir: r.Dir, BaseURL: r.Prefix, Passthrough: true})
			}
		case config.ModeBuild, config.ModeHandler, config.ModeSPA, config.ModeNodeHandler:
			routers = append(routers, r)
		default:
			return nil, errors.New("E123").
				WithDetailf("router %q has mode %q", r.Name, r.Mode)
		}
	}

	handles, err := o.startAll(ctx, routers)
	if err != nil {
		return nil, err
	}

	m := manifest.New(o.app, handles, o.opts.Collector,
		manifest.WithTracer(o.opts.Tracer),
		manifest.WithMetrics(o.opts.Metrics),
		manifest.WithLogger(o.logger),
	)
	if err := o.slot.Install(m); err != nil {
		closeAll(handles)
		return nil, err
	}

	devHandlers := make([]server.DevHandler, 0, len(routers))
	for _, r := range routers {
		devHandlers = append(devHandlers, server.DevHandler{
			Router:  r.Prefix,
			Handler: o.dispatcher(r, handles[r.Name]),
		})
	}

	srv := server.New(server.Config{
		PublicAssets: public,
		DevHandlers:  devHandlers,
		SessionID:    o.opts.SessionID,
		Logger:       o.opts.Logger,
		Metrics:      o.opts.Metrics,
	})

	o.mu.Lock()
	o.handles = handles
	o.server = srv
	o.mu.Unlock()
	return srv, nil
}

// startAll creates a dev server per router concurrently. On any failure the
// handles that did start are closed.
func (o *Orchestrator) startAll(ctx context.Context, routers []*config.RouterConfig) (manifest.ServerMap, error) {
	var mu sync.Mutex
	handles := make(manifest.ServerMap, len(routers))

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range routers {
		g.Go(func() error {
			start := time.Now()
			h, err := o.startOne(gctx, r)
			took := time.Since(start)
			o.opts.Metrics.RecordDevServerStart(r.Name, took, err)
			if err != nil {
				return fmt.Errorf("router %s: %w", r.Name, err)
			}

			mu.Lock()
			handles[r.Name] = h
			mu.Unlock()

			o.logger.Info().
				Str("router", r.Name).
				Str("prefix", r.Prefix).
				Int("hmr_port", HMRPort(o.opts.WS.Port, r)).
				Dur("took", took.Round(time.Millisecond)).
				Msg("router ready")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		closeAll(handles)
		return nil, errors.New("E150").Wrap(err)
	}
	return handles, nil
}

func (o *Orchestrator) startOne(ctx context.Context, r *config.RouterConfig) (devserver.Handle, error) {
	b, err := r.RequireBundler()
	if err != nil {
		return nil, err
	}

	plugins := []devserver.Plugin{
		newEntriesPlugin(o.app.Root, r),
		newManifestPlugin(o.slot, r),
	}
	switch b.Target {
	case config.TargetBrowser:
		plugins = append(plugins, devserver.NewCSSPlugin())
	case config.TargetStatic, config.TargetNode:
	default:
		return nil, errors.New("E124").
			WithDetailf("bundler %q has target %q", b.Name, b.Target)
	}
	declared, err := o.opts.Registry.BuildAll(b.Plugins, b)
	if err != nil {
		return nil, err
	}
	plugins = append(plugins, declared...)

	return o.opts.Factory(ctx, devserver.Config{
		Base:    r.Prefix,
		AppType: devserver.AppTypeCustom,
		Root:    o.app.Root,
		AllowFS: []string{o.app.Root},
		Plugins: plugins,
		Router:  r,
		Server: devserver.ServerConfig{
			MiddlewareMode: true,
			HMR: devserver.HMRConfig{
				Host: o.opts.Host,
				Port: HMRPort(o.opts.WS.Port, r),
			},
		},
		Ignore: o.opts.Ignore,
	})
}

// dispatcher returns the request handler of router r.
func (o *Orchestrator) dispatcher(r *config.RouterConfig, h devserver.Handle) handler.Handler {
	switch r.Mode {
	case config.ModeNodeHandler:
		entry := o.opts.ServerEntry
		return handler.Define(func(e *handler.Event) error {
			mod, err := h.LoadModule(e.Context(), entry)
			if err != nil {
				return err
			}
			mod.Handler.ServeHTTP(e.Writer, e.Request)
			return nil
		})
	case config.ModeBuild, config.ModeHandler, config.ModeSPA:
		return handler.FromMiddleware(h.Middlewares())
	case config.ModeStatic:
		panic("dev: static routers have no dev server")
	default:
		panic(fmt.Sprintf("dev: unhandled router mode %q", r.Mode))
	}
}

// Handles returns the live dev servers by router name.
func (o *Orchestrator) Handles() manifest.ServerMap {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.handles
}

// Server returns the HTTP server built by Prepare, or nil.
func (o *Orchestrator) Server() *server.Server {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.server
}

// Close shuts down every dev server.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	handles := o.handles
	o.handles = nil
	o.mu.Unlock()
	return closeAll(handles)
}

func closeAll(handles manifest.ServerMap) error {
	var errs []error
	for name, h := range handles {
		if err := h.Close(); err != nil {
			errs = append(errs, fmt.Errorf("router %s: %w", name, err))
		}
	}
	return stderrors.Join(errs...)
}

func displayHost(host string) string {
	if host == "" || host == "0.0.0.0" {
		return config.DefaultHost
	}
	return host
}
