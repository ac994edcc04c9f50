package devserver

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vango-dev/devstack/internal/errors"
)

// DefaultHMRHost is the interface reload channels bind to when none is set.
const DefaultHMRHost = "localhost"

// EngineOptions configures the built-in engine.
type EngineOptions struct {
	// NewLoader creates the module loader of each handle.
	// Defaults to a GoModuleLoader.
	NewLoader func(cfg *Config) ModuleLoader

	// DisableWatch turns off the file watcher.
	DisableWatch bool

	// Debounce is the watcher quiet period.
	Debounce time.Duration

	Logger zerolog.Logger
}

// Engine is the built-in dev-server implementation.
type Engine struct {
	opts EngineOptions
}

// NewEngine creates an engine.
func NewEngine(opts EngineOptions) *Engine {
	if opts.NewLoader == nil {
		logger := opts.Logger
		opts.NewLoader = func(*Config) ModuleLoader {
			return NewGoModuleLoader(GoModuleLoaderConfig{Logger: logger})
		}
	}
	return &Engine{opts: opts}
}

// Factory returns e.Create as a Factory.
func (e *Engine) Factory() Factory {
	return e.Create
}

// Create starts a handle: plugin config hooks run, the reload channel binds
// its port, and the watcher registers the root. The handle outlives ctx.
func (e *Engine) Create(ctx context.Context, cfg Config) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg.Base = normalizeBase(cfg.Base)
	if cfg.AppType == "" {
		cfg.AppType = AppTypeCustom
	}
	if cfg.Server.HMR.Host == "" {
		cfg.Server.HMR.Host = DefaultHMRHost
	}
	if cfg.Root != "" {
		abs, err := filepath.Abs(cfg.Root)
		if err != nil {
			return nil, errors.New("E150").Wrap(err)
		}
		cfg.Root = abs
	}

	for _, p := range cfg.Plugins {
		hook, ok := p.(ConfigHook)
		if !ok {
			continue
		}
		if err := hook.ConfigResolved(&cfg); err != nil {
			return nil, fmt.Errorf("plugin %s: %w", p.Name(), err)
		}
	}

	logger := e.opts.Logger.With().Str("base", cfg.Base).Logger()

	reload, err := ListenReload(cfg.Server.HMR.Host, cfg.Server.HMR.Port, logger)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	h := &engineHandle{
		cfg:    cfg,
		reload: reload,
		logger: logger,
		cancel: cancel,
	}

	if !e.opts.DisableWatch && cfg.Root != "" {
		h.watcher = NewWatcher(WatcherConfig{
			Paths:    []string{cfg.Root},
			Ignore:   append(append([]string(nil), DefaultIgnore...), cfg.Ignore...),
			Debounce: e.opts.Debounce,
			Logger:   logger,
		})
		h.watcher.OnChange(h.onChange)
		if err := h.watcher.Open(); err != nil {
			cancel()
			reload.Close()
			return nil, errors.New("E150").WithDetail("file watcher").Wrap(err)
		}
		go func() {
			if err := h.watcher.Start(runCtx); err != nil && !stderrors.Is(err, context.Canceled) {
				logger.Warn().Err(err).Msg("watcher stopped")
			}
		}()
	}

	h.loader = e.opts.NewLoader(&h.cfg)
	h.chain = h.buildChain()

	return h, nil
}

type engineHandle struct {
	cfg     Config
	reload  *ReloadServer
	watcher *Watcher
	loader  ModuleLoader
	chain   http.Handler
	logger  zerolog.Logger
	cancel  context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

func (h *engineHandle) Config() *Config { return &h.cfg }

func (h *engineHandle) Plugins() []Plugin { return h.cfg.Plugins }

func (h *engineHandle) Middlewares() http.Handler { return h.chain }

// HMRPort returns the bound reload channel port.
func (h *engineHandle) HMRPort() int {
	return h.reload.Port()
}

func (h *engineHandle) LoadModule(ctx context.Context, id string) (*Module, error) {
	return h.loader.Load(ctx, h, id)
}

func (h *engineHandle) Close() error {
	h.closeOnce.Do(func() {
		h.cancel()
		if h.watcher != nil {
			h.watcher.Stop()
		}
		h.closeErr = stderrors.Join(h.reload.Close(), h.loader.Close())
	})
	return h.closeErr
}

func (h *engineHandle) onChange(c Change) {
	h.logger.Info().Str("path", c.Path).Stringer("type", c.Type).Msg("changed")
	if c.Type == ChangeCSS {
		h.reload.NotifyCSS(c.Path)
		return
	}
	h.reload.NotifyReload()
}

// buildChain wraps the file server in plugin middlewares. The first plugin is
// the outermost.
func (h *engineHandle) buildChain() http.Handler {
	var next http.Handler = http.HandlerFunc(h.serve)
	for i := len(h.cfg.Plugins) - 1; i >= 0; i-- {
		mp, ok := h.cfg.Plugins[i].(MiddlewarePlugin)
		if !ok {
			continue
		}
		next = mp.Middleware(h)(next)
	}
	return next
}

func (h *engineHandle) serve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rel, ok := stripBase(r.URL.Path, h.cfg.Base)
	if !ok {
		http.NotFound(w, r)
		return
	}

	switch {
	case rel == "@vite/client":
		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		io.WriteString(w, ClientScript(h.cfg.Base, h.reload.Port()))

	case strings.HasPrefix(rel, "@fs/"):
		abs := fsPath(strings.TrimPrefix(rel, "@fs"))
		if !h.allowed(abs) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if !serveFile(w, r, abs) {
			http.NotFound(w, r)
		}

	default:
		if h.cfg.Root == "" {
			http.NotFound(w, r)
			return
		}
		abs := filepath.Join(h.cfg.Root, filepath.FromSlash(path.Clean("/"+rel)))
		if serveFile(w, r, abs) {
			return
		}
		if h.cfg.AppType == AppTypeSPA && serveFile(w, r, filepath.Join(h.cfg.Root, "index.html")) {
			return
		}
		http.NotFound(w, r)
	}
}

// allowed reports whether abs lies under the root or an AllowFS directory.
func (h *engineHandle) allowed(abs string) bool {
	dirs := append([]string{h.cfg.Root}, h.cfg.AllowFS...)
	for _, dir := range dirs {
		if dir != "" && IsWithinDir(abs, dir) {
			return true
		}
	}
	return false
}

var sourceContentTypes = map[string]string{
	".ts":  "text/javascript; charset=utf-8",
	".tsx": "text/javascript; charset=utf-8",
	".jsx": "text/javascript; charset=utf-8",
	".mjs": "text/javascript; charset=utf-8",
}

// serveFile serves a regular file. It reports false when abs is missing or a
// directory.
func serveFile(w http.ResponseWriter, r *http.Request, abs string) bool {
	f, err := os.Open(abs)
	if err != nil {
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return false
	}

	if ct, ok := sourceContentTypes[strings.ToLower(filepath.Ext(abs))]; ok && w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", ct)
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	return true
}

// stripBase returns urlPath relative to base, without a leading slash.
func stripBase(urlPath, base string) (string, bool) {
	if base == "/" {
		return strings.TrimPrefix(urlPath, "/"), true
	}
	if urlPath == base {
		return "", true
	}
	if strings.HasPrefix(urlPath, base+"/") {
		return urlPath[len(base)+1:], true
	}
	return "", false
}

// fsPath converts the slash path after @fs into an OS path.
func fsPath(p string) string {
	p = path.Clean("/" + strings.TrimPrefix(p, "/"))
	if filepath.Separator == '\\' && len(p) > 2 && p[2] == ':' {
		// /C:/dir → C:/dir
		p = p[1:]
	}
	return filepath.FromSlash(p)
}

func normalizeBase(base string) string {
	if base == "" || base == "/" {
		return "/"
	}
	if !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	return path.Clean(base)
}

// IsWithinDir reports whether p is dir or lies beneath it.
func IsWithinDir(p, dir string) bool {
	absPath, err := filepath.Abs(p)
	if err != nil {
		return false
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	absPath = filepath.Clean(absPath)
	absDir = filepath.Clean(absDir)
	if absPath == absDir {
		return true
	}
	if !strings.HasSuffix(absDir, string(os.PathSeparator)) {
		absDir += string(os.PathSeparator)
	}
	return strings.HasPrefix(absPath, absDir)
}
