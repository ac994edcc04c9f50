package manifest

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/devstack/internal/config"
	"github.com/vango-dev/devstack/internal/errors"
	"github.com/vango-dev/devstack/pkg/assets"
	"github.com/vango-dev/devstack/pkg/devserver"
)

// ViteClientKey is the key of the bootstrap script added to handler entries.
const ViteClientKey = "vite-client"

// Output is where an entry is served from.
type Output struct {
	Path string `json:"path"`
}

// Entry is one input resolved under a router.
type Entry struct {
	bundler   *BundlerManifest
	target    *config.BundlerConfig
	input     string
	abs       string
	isHandler bool
}

// Input resolves p to an entry of this router. p may be absolute or
// relative to the app root. It must be the router's handler or live under
// the router's dir.
func (b *BundlerManifest) Input(p string) (*Entry, error) {
	e, err := b.input(p)
	b.manifest.metrics.RecordLookup(b.name, err)
	return e, err
}

func (b *BundlerManifest) input(p string) (*Entry, error) {
	if p == "" {
		return nil, errors.New("E101").WithDetail("input path must not be empty")
	}

	target, err := b.router.RequireBundler()
	if err != nil {
		return nil, err
	}
	if !target.Target.Known() {
		return nil, errors.New("E124").
			WithDetailf("bundler %q has target %q", target.Name, target.Target)
	}

	root := b.manifest.app.Root
	abs := p
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(root, p)
	}
	abs = filepath.Clean(abs)

	isHandler := b.router.Handler != "" &&
		rootRelative(root, filepath.Join(root, b.router.Handler)) == rootRelative(root, abs)
	isDirEntry := b.router.Dir != "" && devserver.IsWithinDir(abs, b.router.Dir)

	if !isHandler && !isDirEntry {
		return nil, errors.New("E102").
			WithDetailf("Could not find entry %s in any router with bundler %s", p, b.name)
	}

	return &Entry{
		bundler:   b,
		target:    target,
		input:     p,
		abs:       abs,
		isHandler: isHandler,
	}, nil
}

// Input returns the input string the entry was requested with.
func (e *Entry) Input() string { return e.input }

// Path returns the entry's absolute file path.
func (e *Entry) Path() string { return e.abs }

// IsHandler reports whether the entry is the router's handler.
func (e *Entry) IsHandler() bool { return e.isHandler }

// Output returns where the entry is served from. Browser bundles address
// files through the dev server's @fs route under the router prefix; other
// targets use the file path directly. Entries only exist for known targets.
func (e *Entry) Output() Output {
	switch e.target.Target {
	case config.TargetBrowser:
		return Output{Path: path.Join(e.bundler.router.Prefix, "@fs", filepath.ToSlash(e.abs))}
	case config.TargetStatic, config.TargetNode:
		return Output{Path: e.abs}
	default:
		panic(fmt.Sprintf("manifest: unhandled bundler target %q", e.target.Target))
	}
}

// Assets computes the tags the entry needs in the document head: plugin
// markup, then collected stylesheets, then the client bootstrap script for
// handler entries. The result is never cached.
func (e *Entry) Assets(ctx context.Context) ([]assets.Asset, error) {
	m := e.bundler.manifest
	router := e.bundler.router

	ctx, span := m.tracer.Start(ctx, "manifest.Entry.Assets",
		trace.WithAttributes(
			attribute.String("devstack.router", router.Name),
			attribute.String("devstack.bundler", e.bundler.name),
			attribute.String("devstack.input", e.input),
			attribute.Bool("devstack.handler", e.isHandler),
		),
	)
	defer span.End()

	start := time.Now()
	list, err := e.assets(ctx)
	m.metrics.RecordAssets(router.Name, time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.logger.Debug().Err(err).
			Str("router", router.Name).
			Str("input", e.input).
			Msg("asset computation failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("devstack.assets", len(list)))
	return list, nil
}

func (e *Entry) assets(ctx context.Context) ([]assets.Asset, error) {
	router := e.bundler.router

	h, ok := e.bundler.manifest.servers.Server(router.Name)
	if !ok || h == nil {
		return nil, errors.New("E106").
			WithDetailf("router %q has no running dev server", router.Name)
	}

	pluginAssets, err := e.pluginAssets(ctx, h)
	if err != nil {
		return nil, err
	}
	styles, err := e.styleAssets(ctx, h)
	if err != nil {
		return nil, err
	}

	list := make([]assets.Asset, 0, len(pluginAssets)+len(styles)+1)
	list = append(list, pluginAssets...)
	list = append(list, styles...)
	list = append(list, e.clientScript())
	return assets.Compact(list), nil
}

func (e *Entry) pluginAssets(ctx context.Context, h devserver.Handle) ([]assets.Asset, error) {
	var out []assets.Asset
	hc := devserver.HTMLContext{Path: "/", HTML: "", OriginalURL: "/"}

	for _, p := range h.Config().Plugins {
		t, ok := p.(devserver.HTMLTransformer)
		if !ok {
			continue
		}
		fragments, err := t.TransformIndexHTML(ctx, hc)
		if err != nil {
			return nil, errors.New("E106").
				WithDetailf("plugin %s failed to transform HTML", p.Name()).
				Wrap(err)
		}
		for _, f := range fragments {
			if f.IsZero() {
				continue
			}
			f.Attrs = f.Attrs.Clone()
			f.Attrs.Set(assets.KeyAttr, fmt.Sprintf("plugin-%d", len(out)))
			out = append(out, f)
		}
	}
	return out, nil
}

func (e *Entry) styleAssets(ctx context.Context, h devserver.Handle) ([]assets.Asset, error) {
	var paths []string
	switch e.target.Target {
	case config.TargetBrowser:
		paths = []string{e.abs}
	case config.TargetStatic, config.TargetNode:
		paths = []string{e.input}
	default:
		panic(fmt.Sprintf("manifest: unhandled bundler target %q", e.target.Target))
	}

	modules, err := e.bundler.manifest.collector.Collect(ctx, h, paths)
	if err != nil {
		return nil, errors.New("E154").
			WithDetailf("collecting styles for %s", e.input).
			Wrap(err)
	}

	out := make([]assets.Asset, 0, len(modules))
	for _, mod := range modules {
		out = append(out, assets.Asset{
			Tag: "style",
			Attrs: assets.Attrs{
				{Name: "type", Value: "text/css"},
				{Name: assets.KeyAttr, Value: mod.Key},
				{Name: "data-vite-dev-id", Value: mod.Key},
			},
			Children: mod.Text,
		})
	}
	return out, nil
}

// clientScript returns the bootstrap script for handler entries and the
// zero asset otherwise.
func (e *Entry) clientScript() assets.Asset {
	if !e.isHandler {
		return assets.Asset{}
	}
	return assets.Asset{
		Tag: "script",
		Attrs: assets.Attrs{
			{Name: assets.KeyAttr, Value: ViteClientKey},
			{Name: "type", Value: "module"},
			{Name: "src", Value: path.Join(e.bundler.router.Prefix, "@vite", "client")},
		},
	}
}

func rootRelative(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return filepath.Clean(p)
	}
	return filepath.Clean(rel)
}
