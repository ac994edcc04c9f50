// Package devstack provides the public API for the devstack development engine.
//
// This is the recommended import for most applications:
//
//	import "github.com/vango-dev/devstack"
//
// Usage:
//
//	app, err := devstack.CreateApp(devstack.Options{
//	    Routers: []devstack.RouterSpec{
//	        {Name: "public", Mode: devstack.ModeStatic, Dir: "public"},
//	        {Name: "client", Mode: devstack.ModeBuild, Base: "/_build", Handler: "app/client.tsx", Build: "client"},
//	        {Name: "ssr", Mode: devstack.ModeNodeHandler, Handler: "app/server.tsx", Build: "ssr"},
//	    },
//	    Bundlers: []devstack.BundlerSpec{
//	        {Name: "client", Target: devstack.TargetBrowser},
//	        {Name: "ssr", Target: devstack.TargetNode},
//	    },
//	})
//
//	srv := devstack.CreateDevServer(app, devstack.DevServerOptions{Dev: true})
//	err = srv.Start(ctx)
package devstack

import (
	"github.com/vango-dev/devstack/internal/config"
	"github.com/vango-dev/devstack/internal/dev"
	"github.com/vango-dev/devstack/pkg/manifest"
)

// =============================================================================
// Configuration
// =============================================================================

// RouterSpec is a router as declared by the user.
type RouterSpec = config.RouterSpec

// BundlerSpec is a bundler as declared by the user.
type BundlerSpec = config.BundlerSpec

// FileRouterSpec enables directory-based route discovery for a router.
type FileRouterSpec = config.FileRouterSpec

// RouterMode is how a router is served.
type RouterMode = config.RouterMode

// BundlerTarget is the environment a bundler builds for.
type BundlerTarget = config.BundlerTarget

// AppConfig is the resolved application configuration.
type AppConfig = config.AppConfig

// RouterConfig is a resolved router.
type RouterConfig = config.RouterConfig

// BundlerConfig is a resolved bundler.
type BundlerConfig = config.BundlerConfig

const (
	ModeStatic      = config.ModeStatic
	ModeBuild       = config.ModeBuild
	ModeHandler     = config.ModeHandler
	ModeSPA         = config.ModeSPA
	ModeNodeHandler = config.ModeNodeHandler
)

const (
	TargetStatic  = config.TargetStatic
	TargetBrowser = config.TargetBrowser
	TargetNode    = config.TargetNode
)

// =============================================================================
// Manifest
// =============================================================================

// Manifest resolves bundler manifests by router or bundler name.
type Manifest = manifest.Manifest

// BundlerManifest is the manifest of one router's bundler.
type BundlerManifest = manifest.BundlerManifest

// Entry is one resolved input of a bundler manifest.
type Entry = manifest.Entry

// =============================================================================
// Dev Server
// =============================================================================

// DevServer runs development mode for an App.
type DevServer = dev.Orchestrator

// DevServerOptions configures CreateDevServer.
type DevServerOptions = dev.Options

// WSOptions configures the per-router reload channels.
type WSOptions = dev.WSOptions
