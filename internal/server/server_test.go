package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vango-dev/devstack/internal/errors"
	"github.com/vango-dev/devstack/internal/metrics"
	"github.com/vango-dev/devstack/pkg/handler"
)

func echo(name string) handler.Handler {
	return handler.Define(func(e *handler.Event) error {
		fmt.Fprintf(e.Writer, "%s %s", name, e.Request.URL.Path)
		return nil
	})
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func do(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(method, "http://example.com"+target, nil))
	return rr
}

func TestServer_DevHandlersLongestPrefix(t *testing.T) {
	s := New(Config{
		Logger: zerolog.Nop(),
		DevHandlers: []DevHandler{
			{Router: "/", Handler: echo("ssr")},
			{Router: "/_build", Handler: echo("client")},
			{Router: "/api/", Handler: echo("api")},
		},
	})

	tests := []struct {
		path string
		want string
	}{
		{"/", "ssr /"},
		{"/about", "ssr /about"},
		{"/_build", "client /_build"},
		{"/_build/app/client.tsx", "client /_build/app/client.tsx"},
		{"/_buildx", "ssr /_buildx"},
		{"/api/users", "api /api/users"},
	}
	for _, tt := range tests {
		rr := do(t, s, http.MethodGet, tt.path)
		if rr.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", tt.path, rr.Code)
		}
		if got := rr.Body.String(); got != tt.want {
			t.Errorf("GET %s body = %q, want %q", tt.path, got, tt.want)
		}
	}

	// Dev handlers see every method.
	if got := do(t, s, http.MethodPost, "/api/users").Body.String(); got != "api /api/users" {
		t.Errorf("POST body = %q", got)
	}
}

func TestServer_NoHandler(t *testing.T) {
	s := New(Config{
		Logger:      zerolog.Nop(),
		DevHandlers: []DevHandler{{Router: "/_build", Handler: echo("client")}},
	})
	if rr := do(t, s, http.MethodGet, "/other"); rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestServer_PassthroughPublicAssets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "favicon.ico"), "icon")
	writeFile(t, filepath.Join(dir, "app.a1b2c3d4.js"), "bundle")
	writeFile(t, filepath.Join(dir, "sub", "page.html"), "page")

	s := New(Config{
		Logger:       zerolog.Nop(),
		PublicAssets: []PublicAssetDir{{Dir: dir, BaseURL: "/", Passthrough: true}},
		DevHandlers:  []DevHandler{{Router: "/", Handler: echo("ssr")}},
	})

	rr := do(t, s, http.MethodGet, "/favicon.ico")
	if rr.Body.String() != "icon" {
		t.Fatalf("GET /favicon.ico body = %q, want icon", rr.Body.String())
	}
	if got := rr.Header().Get("Cache-Control"); got != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", got)
	}

	rr = do(t, s, http.MethodGet, "/app.a1b2c3d4.js")
	if got := rr.Header().Get("Cache-Control"); !strings.Contains(got, "immutable") {
		t.Errorf("fingerprinted Cache-Control = %q", got)
	}

	for path, want := range map[string]string{
		"/missing.png":       "ssr /missing.png",
		"/sub":               "ssr /sub",
		"/../secret.txt":     "ssr /../secret.txt",
		"/%2e%2e/secret.txt": "ssr /../secret.txt",
	} {
		if got := do(t, s, http.MethodGet, path).Body.String(); got != want {
			t.Errorf("GET %s body = %q, want %q", path, got, want)
		}
	}

	// Non-GET requests skip public assets.
	if got := do(t, s, http.MethodPost, "/favicon.ico").Body.String(); got != "ssr /favicon.ico" {
		t.Errorf("POST /favicon.ico body = %q", got)
	}
}

func TestServer_NonPassthroughAnswers404(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "logo.svg"), "<svg/>")
	writeFile(t, filepath.Join(filepath.Dir(dir), "secret.txt"), "secret")

	s := New(Config{
		Logger:       zerolog.Nop(),
		PublicAssets: []PublicAssetDir{{Dir: dir, BaseURL: "/assets"}},
		DevHandlers:  []DevHandler{{Router: "/", Handler: echo("ssr")}},
	})

	if got := do(t, s, http.MethodGet, "/assets/logo.svg").Body.String(); got != "<svg/>" {
		t.Errorf("GET logo body = %q", got)
	}
	for _, p := range []string{"/assets/nope.svg", "/assets/../secret.txt", "/assets//etc/passwd"} {
		rr := do(t, s, http.MethodGet, p)
		if rr.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", p, rr.Code)
		}
		if strings.Contains(rr.Body.String(), "secret") {
			t.Errorf("GET %s leaked content", p)
		}
	}
	if got := do(t, s, http.MethodGet, "/assetsx/logo.svg").Body.String(); got != "ssr /assetsx/logo.svg" {
		t.Errorf("GET outside base body = %q", got)
	}
}

func TestServer_ErrorMapping(t *testing.T) {
	s := New(Config{
		Logger: zerolog.Nop(),
		DevHandlers: []DevHandler{{Router: "/", Handler: handler.Define(func(e *handler.Event) error {
			switch e.Request.URL.Path {
			case "/ready":
				return errors.New("E100")
			case "/missing":
				return errors.New("E102")
			default:
				return fmt.Errorf("boom")
			}
		})}},
	})

	tests := map[string]int{
		"/ready":   http.StatusServiceUnavailable,
		"/missing": http.StatusNotFound,
		"/other":   http.StatusInternalServerError,
	}
	for path, want := range tests {
		if rr := do(t, s, http.MethodGet, path); rr.Code != want {
			t.Errorf("GET %s status = %d, want %d", path, rr.Code, want)
		}
	}
}

func TestServer_InternalEndpoints(t *testing.T) {
	m := metrics.New(nil)
	s := New(Config{
		Logger:      zerolog.Nop(),
		Metrics:     m,
		SessionID:   "session-1",
		DevHandlers: []DevHandler{{Router: "/", Handler: echo("ssr")}},
	})

	rr := do(t, s, http.MethodGet, "/__devstack/health")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Fatalf("health = %d %q", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get(SessionHeader); got != "session-1" {
		t.Errorf("%s = %q, want session-1", SessionHeader, got)
	}

	do(t, s, http.MethodGet, "/page")
	rr = do(t, s, http.MethodGet, "/__devstack/metrics")
	if !strings.Contains(rr.Body.String(), `devstack_http_requests_total{method="GET",route="/",status="2xx"} 1`) {
		t.Errorf("metrics missing request counter:\n%s", rr.Body.String())
	}
}

func TestServer_ServeShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	s := New(Config{
		Logger:      zerolog.Nop(),
		DevHandlers: []DevHandler{{Router: "/", Handler: echo("ssr")}},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/hello")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ssr /hello" {
		t.Errorf("body = %q", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestListen_BadAddress(t *testing.T) {
	s := New(Config{Logger: zerolog.Nop()})
	if err := s.Listen(context.Background(), "127.0.0.1:-1"); err == nil {
		t.Error("Listen with invalid port should fail")
	}
}

func TestIsFingerprinted(t *testing.T) {
	tests := map[string]bool{
		"app.a1b2c3d4.css":  true,
		"app.A1B2C3D4E5.js": true,
		"app.css":           false,
		"app.abc.css":       false,
		"app.zzzzzzzz.css":  false,
	}
	for name, want := range tests {
		if got := isFingerprinted(name); got != want {
			t.Errorf("isFingerprinted(%q) = %v, want %v", name, got, want)
		}
	}
}
