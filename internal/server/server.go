// Package server is the HTTP runtime the dev orchestrator mounts routers on.
//
// Requests are matched against public asset dirs first, then against dev
// handlers by longest router prefix. Internal endpoints live under
// /__devstack.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/vango-dev/devstack/internal/metrics"
	"github.com/vango-dev/devstack/pkg/handler"
)

const (
	// InternalPrefix is the path prefix of devstack's own endpoints.
	InternalPrefix = "/__devstack"

	// SessionHeader carries the dev session id on every response.
	SessionHeader = "X-Devstack-Session"

	defaultShutdownTimeout = 5 * time.Second
)

// DevHandler serves every request under Router.
type DevHandler struct {
	// Router is the URL prefix the handler owns.
	Router  string
	Handler handler.Handler
}

// Config configures a Server.
type Config struct {
	PublicAssets []PublicAssetDir
	DevHandlers  []DevHandler

	// SessionID is echoed in the SessionHeader when set.
	SessionID string

	Logger  zerolog.Logger
	Metrics *metrics.Metrics

	// ShutdownTimeout bounds graceful shutdown (default: 5s).
	ShutdownTimeout time.Duration
}

// Server routes requests to public assets and dev handlers.
type Server struct {
	config Config
	logger zerolog.Logger
	router *chi.Mux
	public []*publicDir
	dev    []devRoute
}

type devRoute struct {
	prefix  string
	handler http.Handler
}

// New builds a server from cfg.
func New(cfg Config) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	s := &Server{
		config: cfg,
		logger: cfg.Logger.With().Str("component", "server").Logger(),
	}
	for _, d := range cfg.PublicAssets {
		s.public = append(s.public, newPublicDir(d))
	}
	for _, d := range cfg.DevHandlers {
		s.dev = append(s.dev, devRoute{
			prefix:  normalizePrefix(d.Router),
			handler: handler.ToHTTP(d.Handler, s.handlerError),
		})
	}
	// Longest prefix first; stable so equal prefixes keep declaration order.
	sort.SliceStable(s.dev, func(i, j int) bool {
		return len(s.dev[i].prefix) > len(s.dev[j].prefix)
	})

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	if s.config.SessionID != "" {
		r.Use(s.sessionHeader)
	}

	r.Get(InternalPrefix+"/health", s.handleHealth)
	r.Handle(InternalPrefix+"/metrics", s.config.Metrics.Handler())

	r.HandleFunc("/*", s.dispatch)
	r.NotFound(s.dispatch)
	r.MethodNotAllowed(s.dispatch)

	s.router = r
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Listen serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Listen(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled. It takes ownership of ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("listening")

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info().Msg("server stopped")
	return nil
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
	route := s.serve(ww, r)

	status := ww.Status()
	if status == 0 {
		status = http.StatusOK
	}
	s.config.Metrics.RecordRequest(route, r.Method, status, time.Since(start))
}

// serve routes r and returns the route label for metrics.
func (s *Server) serve(w http.ResponseWriter, r *http.Request) string {
	for _, d := range s.public {
		if !d.owns(r.URL.Path) {
			continue
		}
		if d.serve(w, r) {
			return "public"
		}
		if !d.through {
			http.NotFound(w, r)
			return "public"
		}
	}

	for _, d := range s.dev {
		if matchPrefix(r.URL.Path, d.prefix) {
			d.handler.ServeHTTP(w, r)
			return d.prefix
		}
	}

	http.NotFound(w, r)
	return "none"
}

func (s *Server) handlerError(w http.ResponseWriter, r *http.Request, err error) {
	status := handler.StatusCode(err)
	ev := s.logger.Warn()
	if status >= http.StatusInternalServerError {
		ev = s.logger.Error()
	}
	ev.Err(err).
		Str("path", r.URL.Path).
		Int("status", status).
		Str("request_id", middleware.GetReqID(r.Context())).
		Msg("handler failed")
	http.Error(w, err.Error(), status)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) sessionHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(SessionHeader, s.config.SessionID)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if strings.HasPrefix(r.URL.Path, InternalPrefix) {
			return
		}
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

// matchPrefix reports whether urlPath is prefix or lies beneath it.
func matchPrefix(urlPath, prefix string) bool {
	if prefix == "/" {
		return true
	}
	return urlPath == prefix || strings.HasPrefix(urlPath, prefix+"/")
}

func normalizePrefix(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	if p == "" {
		return "/"
	}
	return p
}
