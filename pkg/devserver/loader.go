package devserver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vango-dev/devstack/internal/errors"
)

// ModuleLoader loads server modules on behalf of a handle.
type ModuleLoader interface {
	Load(ctx context.Context, h Handle, id string) (*Module, error)
	Close() error
}

// ModuleLoaderFunc adapts a function to ModuleLoader.
type ModuleLoaderFunc func(ctx context.Context, h Handle, id string) (*Module, error)

// Load calls f.
func (f ModuleLoaderFunc) Load(ctx context.Context, h Handle, id string) (*Module, error) {
	return f(ctx, h, id)
}

// Close implements ModuleLoader.
func (ModuleLoaderFunc) Close() error { return nil }

type processSpec struct {
	Binary string
	Args   []string
	Dir    string
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// GoModuleLoaderConfig configures a GoModuleLoader.
type GoModuleLoaderConfig struct {
	// CacheDir holds compiled binaries and the Go build cache.
	// Defaults to <root>/.devstack.
	CacheDir string

	// Tags are build tags to pass to go build.
	Tags []string

	// LDFlags are linker flags to pass to go build.
	LDFlags string

	// Env are additional environment variables for build and run.
	Env []string

	// StartTimeout bounds how long a started module may take to accept
	// connections. Defaults to 10s.
	StartTimeout time.Duration

	// Output receives the module process' stdout and stderr.
	Output io.Writer

	Logger zerolog.Logger
}

// GoModuleLoader loads a module id as a Go main package relative to the
// handle root. The package is rebuilt when any of its .go files changed since
// the last build, run on a free local port, and returned as a module whose
// handler reverse-proxies to that process. Every Load returns a new Module.
type GoModuleLoader struct {
	config GoModuleLoaderConfig
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	modules map[string]*goModule
}

type goModule struct {
	dir    string
	binary string
	stamp  time.Time
	proc   *processHandle
	target *url.URL
}

// NewGoModuleLoader creates a loader.
func NewGoModuleLoader(config GoModuleLoaderConfig) *GoModuleLoader {
	if config.StartTimeout == 0 {
		config.StartTimeout = 10 * time.Second
	}
	if config.Output == nil {
		config.Output = os.Stderr
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &GoModuleLoader{
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
		modules: make(map[string]*goModule),
	}
}

// Load implements ModuleLoader.
func (l *GoModuleLoader) Load(ctx context.Context, h Handle, id string) (*Module, error) {
	root := h.Config().Root
	dir := id
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, id)
	}
	dir = strings.TrimSuffix(dir, filepath.Ext(dir))
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return nil, errors.New("E152").
			WithDetailf("module %q: %s is not a Go package directory", id, dir)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	mod := l.modules[dir]
	if mod == nil {
		mod = &goModule{
			dir:    dir,
			binary: l.binaryPath(root, dir),
		}
		l.modules[dir] = mod
	}

	stamp, err := latestModTime(dir)
	if err != nil {
		return nil, errors.New("E152").WithDetailf("module %q", id).Wrap(err)
	}

	if mod.proc == nil || stamp.After(mod.stamp) {
		if err := l.rebuild(ctx, root, mod); err != nil {
			return nil, err
		}
		mod.stamp = stamp
	}

	proxy := httputil.NewSingleHostReverseProxy(mod.target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		l.config.Logger.Warn().Err(err).Str("module", id).Msg("module not responding")
		http.Error(w, "module "+id+" is not responding", http.StatusBadGateway)
	}

	return &Module{ID: id, Handler: proxy}, nil
}

func (l *GoModuleLoader) rebuild(ctx context.Context, root string, mod *goModule) error {
	start := time.Now()
	if err := l.build(ctx, root, mod); err != nil {
		return err
	}
	l.config.Logger.Info().
		Str("dir", mod.dir).
		Dur("duration", time.Since(start).Round(time.Millisecond)).
		Msg("module built")

	if mod.proc != nil {
		stopProcess(mod.proc, 5*time.Second)
		mod.proc = nil
	}

	port, err := freePort()
	if err != nil {
		return errors.New("E152").WithDetail("no free port for module").Wrap(err)
	}

	env := append(os.Environ(), "PORT="+strconv.Itoa(port), "DEVSTACK_DEV=1")
	env = append(env, l.config.Env...)
	proc, err := startProcess(l.ctx, processSpec{
		Binary: mod.binary,
		Dir:    root,
		Env:    env,
		Stdout: l.config.Output,
		Stderr: l.config.Output,
	})
	if err != nil {
		return errors.New("E152").WithDetailf("start %s", mod.binary).Wrap(err)
	}

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	if err := waitForPort(ctx, addr, proc, l.config.StartTimeout); err != nil {
		stopProcess(proc, time.Second)
		return errors.New("E152").WithDetailf("module in %s did not listen on %s", mod.dir, addr).Wrap(err)
	}

	mod.proc = proc
	mod.target = &url.URL{Scheme: "http", Host: addr}
	return nil
}

// build compiles the module package with go build.
func (l *GoModuleLoader) build(ctx context.Context, root string, mod *goModule) error {
	cacheDir := l.cacheDir(root)
	if err := os.MkdirAll(filepath.Join(cacheDir, "gocache"), 0755); err != nil {
		return errors.New("E153").Wrap(err)
	}

	args := []string{"build", "-o", mod.binary}
	if len(l.config.Tags) > 0 {
		args = append(args, "-tags", strings.Join(l.config.Tags, ","))
	}
	if l.config.LDFlags != "" {
		args = append(args, "-ldflags", l.config.LDFlags)
	}
	args = append(args, ".")

	cmd := exec.CommandContext(ctx, "go", args...)
	cmd.Dir = mod.dir
	cmd.Env = append(os.Environ(), "GOCACHE="+filepath.Join(cacheDir, "gocache"))
	cmd.Env = append(cmd.Env, l.config.Env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		output := stderr.String()
		if output == "" {
			output = stdout.String()
		}
		return errors.New("E153").WithDetail(strings.TrimSpace(output)).Wrap(err)
	}
	return nil
}

func (l *GoModuleLoader) cacheDir(root string) string {
	if l.config.CacheDir != "" {
		return l.config.CacheDir
	}
	return filepath.Join(root, ".devstack")
}

func (l *GoModuleLoader) binaryPath(root, dir string) string {
	name := "module"
	if rel, err := filepath.Rel(root, dir); err == nil && rel != "." {
		name = strings.NewReplacer(string(filepath.Separator), "_", ".", "_").Replace(rel)
	}
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(l.cacheDir(root), "bin", name)
}

// Close stops every module process.
func (l *GoModuleLoader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, mod := range l.modules {
		if mod.proc != nil {
			stopProcess(mod.proc, 5*time.Second)
			mod.proc = nil
		}
	}
	l.cancel()
	return nil
}

// latestModTime returns the newest modification time among .go files and
// go.mod/go.sum under dir.
func latestModTime(dir string) (time.Time, error) {
	var latest time.Time
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if !strings.HasSuffix(name, ".go") && name != "go.mod" && name != "go.sum" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
		return nil
	})
	return latest, err
}

func freePort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port, nil
}

// waitForPort polls addr until it accepts a connection, the process exits,
// ctx is done or timeout elapses.
func waitForPort(ctx context.Context, addr string, proc *processHandle, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()

	for {
		conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			conn.Close()
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("timed out after %s", timeout)
		case err := <-proc.done:
			return fmt.Errorf("process exited: %v", err)
		case <-tick.C:
		}
	}
}
