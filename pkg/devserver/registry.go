package devserver

import (
	"sort"
	"strings"
	"sync"

	"github.com/vango-dev/devstack/internal/config"
	"github.com/vango-dev/devstack/internal/errors"
)

// PluginConstructor builds a plugin for one bundler.
type PluginConstructor func(b *config.BundlerConfig) (Plugin, error)

// Registry maps plugin names to constructors. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]PluginConstructor
}

// NewRegistry creates a registry holding the built-in plugins.
func NewRegistry() *Registry {
	r := &Registry{ctors: make(map[string]PluginConstructor)}
	r.Register(CSSPluginName, func(*config.BundlerConfig) (Plugin, error) {
		return NewCSSPlugin(), nil
	})
	return r
}

// Register adds or replaces a constructor.
func (r *Registry) Register(name string, ctor PluginConstructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[name] = ctor
}

// Build constructs the named plugin for bundler b.
func (r *Registry) Build(name string, b *config.BundlerConfig) (Plugin, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[name]
	r.mu.RUnlock()

	if !ok {
		bundler := ""
		if b != nil {
			bundler = b.Name
		}
		return nil, errors.New("E125").
			WithDetailf("bundler %q declares plugin %q", bundler, name).
			WithSuggestion("Registered plugins: " + strings.Join(r.Names(), ", "))
	}
	return ctor(b)
}

// BuildAll constructs every named plugin, in order.
func (r *Registry) BuildAll(names []string, b *config.BundlerConfig) ([]Plugin, error) {
	plugins := make([]Plugin, 0, len(names))
	for _, name := range names {
		p, err := r.Build(name, b)
		if err != nil {
			return nil, err
		}
		plugins = append(plugins, p)
	}
	return plugins, nil
}

// Names returns the registered plugin names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.ctors))
	for name := range r.ctors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
