package config

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/vango-dev/devstack/internal/errors"
)

// Resolve merges raw router and bundler declarations into an AppConfig rooted at root.
//
// A router whose build name matches no bundler resolves with a nil Bundler;
// that is reported lazily by RouterConfig.RequireBundler, not here.
func Resolve(routers []RouterSpec, bundlers []BundlerSpec, root string) (*AppConfig, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.New("E120").WithDetail("cannot resolve app root " + root).Wrap(err)
	}

	cfg := &AppConfig{
		Root:     absRoot,
		Bundlers: make([]*BundlerConfig, 0, len(bundlers)),
		Routers:  make([]*RouterConfig, 0, len(routers)),
	}

	for _, spec := range bundlers {
		b, err := resolveBundler(spec, absRoot)
		if err != nil {
			return nil, err
		}
		cfg.Bundlers = append(cfg.Bundlers, b)
	}

	for i, spec := range routers {
		r, err := resolveRouter(spec, i, cfg)
		if err != nil {
			return nil, err
		}
		cfg.Routers = append(cfg.Routers, r)
	}

	return cfg, nil
}

// bundlerDefaults returns the computed defaults for a bundler under root.
func bundlerDefaults(root string) BundlerConfig {
	return BundlerConfig{
		Target: TargetStatic,
		Root:   root,
	}
}

// mergeBundler applies explicit declarations over computed defaults.
// A non-zero override always wins.
func mergeBundler(defaults BundlerConfig, overrides BundlerSpec) BundlerConfig {
	merged := defaults
	merged.Name = overrides.Name
	if overrides.Target != "" {
		merged.Target = overrides.Target
	}
	if overrides.Root != "" {
		merged.Root = overrides.Root
	}
	if overrides.Plugins != nil {
		merged.Plugins = append([]string(nil), overrides.Plugins...)
	}
	return merged
}

func resolveBundler(spec BundlerSpec, root string) (*BundlerConfig, error) {
	if spec.Target != "" {
		if _, err := ParseBundlerTarget(string(spec.Target)); err != nil {
			return nil, err
		}
	}

	b := mergeBundler(bundlerDefaults(root), spec)
	b.Root = resolvePath(root, b.Root)

	// outDir is always anchored at the app root, never the bundler root.
	if spec.OutDir != "" {
		b.OutDir = filepath.Join(root, spec.OutDir)
	}

	return &b, nil
}

func resolveRouter(spec RouterSpec, index int, app *AppConfig) (*RouterConfig, error) {
	if spec.Mode == "" {
		return nil, errors.New("E123").
			WithDetailf("router %q has no mode", spec.Name)
	}
	mode, err := ParseRouterMode(string(spec.Mode))
	if err != nil {
		return nil, err
	}

	r := &RouterConfig{
		Name:        spec.Name,
		Mode:        mode,
		Prefix:      normalizePrefix(spec.Base),
		Dir:         resolvePath(app.Root, spec.Dir),
		Handler:     normalizeHandler(app.Root, spec.Handler),
		BundlerName: spec.Build,
		Bundler:     app.Bundler(spec.Build),
		Index:       index,
	}

	if spec.FileRouter != nil {
		fr, err := ScanFileRouter(app.Root, r.Dir, *spec.FileRouter)
		if err != nil {
			return nil, errors.New("E126").
				WithDetailf("router %q", spec.Name).
				Wrap(err)
		}
		r.FileRouter = fr
	}

	return r, nil
}

// normalizePrefix returns a clean URL base path with a leading slash.
func normalizePrefix(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return "/"
	}
	if !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	return path.Clean(base)
}

// normalizeHandler returns the handler as a clean path relative to root.
func normalizeHandler(root, handler string) string {
	if handler == "" {
		return ""
	}
	if filepath.IsAbs(handler) {
		if rel, err := filepath.Rel(root, handler); err == nil {
			return filepath.ToSlash(rel)
		}
		return filepath.ToSlash(handler)
	}
	return filepath.ToSlash(filepath.Clean(handler))
}

// resolvePath makes path absolute against dir. Empty stays empty.
func resolvePath(dir, p string) string {
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(dir, p)
}
