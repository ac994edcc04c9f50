// Package config resolves router and bundler declarations into the canonical
// AppConfig the dev orchestrator and the manifest work from.
//
// Declarations usually come from devstack.json (or devstack.yaml) at the
// project root:
//
//	{
//	  "bundlers": [
//	    {"name": "client", "target": "browser", "outDir": ".devstack/client"},
//	    {"name": "ssr", "target": "node"}
//	  ],
//	  "routers": [
//	    {"name": "public", "mode": "static", "dir": "public"},
//	    {"name": "client", "mode": "build", "base": "/_build", "handler": "app/client.tsx", "build": "client"},
//	    {"name": "ssr", "mode": "node-handler", "handler": "app/server.tsx", "build": "ssr"}
//	  ],
//	  "dev": {"port": 3000, "wsPort": 16000}
//	}
//
// Resolution rules:
//   - bundlers default to target "static" and the app root; explicit fields win
//   - a bundler outDir is joined onto the app root
//   - routers keep their declaration index, which later picks their reload port
//   - a router's bundler is looked up by name; a missing bundler is only
//     reported when the router is first used
//
// # Usage
//
//	cfg, err := config.LoadFromWorkingDir()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	app, err := cfg.Resolve()
package config
