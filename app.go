package devstack

import (
	"context"
	"os"

	"github.com/vango-dev/devstack/internal/config"
	"github.com/vango-dev/devstack/internal/dev"
	"github.com/vango-dev/devstack/internal/errors"
	"github.com/vango-dev/devstack/pkg/manifest"
)

// Options configures CreateApp.
type Options struct {
	Routers  []RouterSpec
	Bundlers []BundlerSpec

	// Root is the app root directory. Defaults to the working directory.
	Root string
}

// App is a resolved application together with its manifest.
//
// The manifest starts out not ready: every lookup fails until a dev server
// has started all of its routers.
type App struct {
	config *config.AppConfig
	slot   *manifest.Slot
}

// CreateApp resolves the declared routers and bundlers into an App.
func CreateApp(opts Options) (*App, error) {
	root := opts.Root
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.New("E120").WithDetail("cannot determine the app root").Wrap(err)
		}
		root = wd
	}

	cfg, err := config.Resolve(opts.Routers, opts.Bundlers, root)
	if err != nil {
		return nil, err
	}
	return &App{config: cfg, slot: manifest.NewSlot()}, nil
}

// CreateAppFromConfig resolves a loaded configuration file into an App rooted
// at the file's directory.
func CreateAppFromConfig(c *config.Config) (*App, error) {
	cfg, err := c.Resolve()
	if err != nil {
		return nil, err
	}
	return &App{config: cfg, slot: manifest.NewSlot()}, nil
}

// Config returns the resolved configuration.
func (a *App) Config() *AppConfig {
	return a.config
}

// Root returns the absolute app root.
func (a *App) Root() string {
	return a.config.Root
}

// Routers returns the resolved routers in declaration order.
func (a *App) Routers() []*RouterConfig {
	return a.config.Routers
}

// GetRouter returns the router with the given name.
func (a *App) GetRouter(name string) (*RouterConfig, error) {
	if r := a.config.Router(name); r != nil {
		return r, nil
	}
	return nil, errors.New("E104").WithDetailf("no router named %q", name)
}

// Manifest returns the app's manifest. It answers every lookup with a
// not-ready error until a dev server has installed the live manifest.
func (a *App) Manifest() *manifest.Slot {
	return a.slot
}

// CreateDevServer creates the dev server of app. Start it once.
func CreateDevServer(app *App, opts DevServerOptions) *DevServer {
	return dev.New(app.config, app.slot, opts)
}

// StartDev creates the dev server of app and serves until ctx is canceled.
func StartDev(ctx context.Context, app *App, opts DevServerOptions) error {
	return CreateDevServer(app, opts).Start(ctx)
}
