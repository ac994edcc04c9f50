package devserver

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/devstack/internal/config"
	"github.com/vango-dev/devstack/internal/errors"
)

// stubHandle is a Handle with a fixed config and no behaviour.
type stubHandle struct {
	cfg Config
}

func (s *stubHandle) Config() *Config { return &s.cfg }

func (s *stubHandle) Plugins() []Plugin { return s.cfg.Plugins }

func (s *stubHandle) Middlewares() http.Handler { return http.NotFoundHandler() }

func (s *stubHandle) Close() error { return nil }

func (s *stubHandle) LoadModule(context.Context, string) (*Module, error) {
	return nil, nil
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{CSSPluginName}, r.Names())

	p, err := r.Build(CSSPluginName, nil)
	require.NoError(t, err)
	assert.Equal(t, "css", p.Name())
	_, isMiddleware := p.(MiddlewarePlugin)
	assert.True(t, isMiddleware)

	_, err = r.Build("svelte", &config.BundlerConfig{Name: "client"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, "E125"))
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

type namedPlugin string

func (n namedPlugin) Name() string { return string(n) }

func TestRegistry_BuildAllKeepsOrder(t *testing.T) {
	r := NewRegistry()
	r.Register("a", func(*config.BundlerConfig) (Plugin, error) { return namedPlugin("a"), nil })
	r.Register("b", func(b *config.BundlerConfig) (Plugin, error) { return namedPlugin("b-" + b.Name), nil })

	plugins, err := r.BuildAll([]string{"b", "css", "a"}, &config.BundlerConfig{Name: "ssr"})
	require.NoError(t, err)

	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name()
	}
	assert.Equal(t, []string{"b-ssr", "css", "a"}, names)
	assert.Equal(t, []string{"a", "b", "css"}, r.Names())

	_, err = r.BuildAll([]string{"a", "missing"}, nil)
	assert.True(t, errors.HasCode(err, "E125"))
}

func TestIsCSS(t *testing.T) {
	assert.True(t, IsCSS("/app/a.css"))
	assert.True(t, IsCSS("theme.SCSS"))
	assert.True(t, IsCSS("/x.less?direct"))
	assert.False(t, IsCSS("/app/a.tsx"))
	assert.False(t, IsCSS("/app/css"))
}
