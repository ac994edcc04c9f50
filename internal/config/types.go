package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/vango-dev/devstack/internal/errors"
)

// RouterMode is how a router is served.
type RouterMode string

const (
	ModeStatic      RouterMode = "static"
	ModeBuild       RouterMode = "build"
	ModeHandler     RouterMode = "handler"
	ModeSPA         RouterMode = "spa"
	ModeNodeHandler RouterMode = "node-handler"
)

// RouterModes lists every known router mode.
var RouterModes = []RouterMode{ModeStatic, ModeBuild, ModeHandler, ModeSPA, ModeNodeHandler}

// ParseRouterMode converts a raw string into a RouterMode.
func ParseRouterMode(raw string) (RouterMode, error) {
	cleaned := RouterMode(strings.ToLower(strings.TrimSpace(raw)))
	for _, m := range RouterModes {
		if m == cleaned {
			return m, nil
		}
	}
	return "", errors.New("E123").
		WithDetailf("mode %q is not one of %s", raw, joinModes()).
		WithSuggestion("Use one of static, build, handler, spa or node-handler")
}

// Known reports whether m is one of RouterModes.
func (m RouterMode) Known() bool {
	return slices.Contains(RouterModes, m)
}

// HasManifest reports whether routers in this mode expose a manifest.
// It panics on modes that are not Known.
func (m RouterMode) HasManifest() bool {
	switch m {
	case ModeBuild, ModeHandler, ModeSPA, ModeNodeHandler:
		return true
	case ModeStatic:
		return false
	default:
		panic(fmt.Sprintf("config: unhandled router mode %q", string(m)))
	}
}

// NeedsDevServer reports whether routers in this mode get their own dev server.
func (m RouterMode) NeedsDevServer() bool {
	return m.HasManifest()
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *RouterMode) UnmarshalText(text []byte) error {
	parsed, err := ParseRouterMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func joinModes() string {
	names := make([]string, len(RouterModes))
	for i, m := range RouterModes {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

// BundlerTarget is the platform a bundler builds for.
type BundlerTarget string

const (
	TargetStatic  BundlerTarget = "static"
	TargetBrowser BundlerTarget = "browser"
	TargetNode    BundlerTarget = "node"
)

// BundlerTargets lists every known bundler target.
var BundlerTargets = []BundlerTarget{TargetStatic, TargetBrowser, TargetNode}

// ParseBundlerTarget converts a raw string into a BundlerTarget.
func ParseBundlerTarget(raw string) (BundlerTarget, error) {
	cleaned := BundlerTarget(strings.ToLower(strings.TrimSpace(raw)))
	for _, t := range BundlerTargets {
		if t == cleaned {
			return t, nil
		}
	}
	return "", errors.New("E124").
		WithDetailf("target %q is not one of static, browser, node", raw)
}

// Known reports whether t is one of BundlerTargets.
func (t BundlerTarget) Known() bool {
	return slices.Contains(BundlerTargets, t)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *BundlerTarget) UnmarshalText(text []byte) error {
	parsed, err := ParseBundlerTarget(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// BundlerSpec is a bundler as declared by the user, before resolution.
type BundlerSpec struct {
	Name    string        `json:"name" yaml:"name"`
	Target  BundlerTarget `json:"target,omitempty" yaml:"target,omitempty"`
	Root    string        `json:"root,omitempty" yaml:"root,omitempty"`
	OutDir  string        `json:"outDir,omitempty" yaml:"outDir,omitempty"`
	Plugins []string      `json:"plugins,omitempty" yaml:"plugins,omitempty"`
}

// FileRouterSpec enables directory-based route discovery for a router.
type FileRouterSpec struct {
	// Dir is the directory to scan. Defaults to the router dir.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`

	// Extensions are the file extensions treated as routes.
	Extensions []string `json:"extensions,omitempty" yaml:"extensions,omitempty"`
}

// RouterSpec is a router as declared by the user, before resolution.
type RouterSpec struct {
	Name       string          `json:"name" yaml:"name"`
	Mode       RouterMode      `json:"mode" yaml:"mode"`
	Base       string          `json:"base,omitempty" yaml:"base,omitempty"`
	Dir        string          `json:"dir,omitempty" yaml:"dir,omitempty"`
	Handler    string          `json:"handler,omitempty" yaml:"handler,omitempty"`
	Build      string          `json:"build,omitempty" yaml:"build,omitempty"`
	FileRouter *FileRouterSpec `json:"fileRouter,omitempty" yaml:"fileRouter,omitempty"`
}

// AppConfig is the resolved, canonical application configuration.
type AppConfig struct {
	Root     string           `json:"root"`
	Bundlers []*BundlerConfig `json:"bundlers"`
	Routers  []*RouterConfig  `json:"routers"`
}

// BundlerConfig is a resolved bundler.
type BundlerConfig struct {
	Name   string        `json:"name"`
	Target BundlerTarget `json:"target"`
	Root   string        `json:"root"`

	// OutDir is absolute, or empty when the bundler declared none.
	OutDir string `json:"outDir,omitempty"`

	Plugins []string `json:"plugins,omitempty"`
}

// RouterConfig is a resolved router.
type RouterConfig struct {
	Name   string     `json:"name"`
	Mode   RouterMode `json:"mode"`
	Prefix string     `json:"prefix"`

	// Dir is absolute, or empty.
	Dir string `json:"dir,omitempty"`

	// Handler is relative to the app root, or empty.
	Handler string `json:"handler,omitempty"`

	// BundlerName is the declared build reference.
	BundlerName string `json:"build,omitempty"`

	// Bundler is nil when BundlerName matched no bundler.
	Bundler *BundlerConfig `json:"-"`

	// Index is the router's position in declaration order.
	Index int `json:"index"`

	FileRouter *FileRouter `json:"fileRouter,omitempty"`
}

// RequireBundler returns the router's bundler, or a configuration error if the
// router references a bundler that does not exist.
func (r *RouterConfig) RequireBundler() (*BundlerConfig, error) {
	if r.Bundler == nil {
		return nil, errors.New("E121").
			WithDetailf("router %q references bundler %q, which is not declared", r.Name, r.BundlerName).
			WithSuggestion("Add a bundler with that name or fix the router's build field")
	}
	return r.Bundler, nil
}

// Router returns the router with the given name, or nil.
func (c *AppConfig) Router(name string) *RouterConfig {
	for _, r := range c.Routers {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// Bundler returns the first bundler with the given name, or nil.
func (c *AppConfig) Bundler(name string) *BundlerConfig {
	for _, b := range c.Bundlers {
		if b.Name == name {
			return b
		}
	}
	return nil
}
