// Package dev orchestrates development mode: one dev server per router,
// the live manifest, and the HTTP server in front of them.
//
// # Startup
//
// Start (or Prepare, which stops short of listening) runs once:
//
//  1. Routers are partitioned. Static routers become passthrough public asset
//     dirs. Every other router gets its own dev server.
//  2. Dev servers are created concurrently. Each binds a reload channel on
//     ws port + router index, so ports never collide.
//  3. Startup is all-or-nothing. If any dev server fails, the ones that did
//     start are closed and the error is returned.
//  4. The manifest is installed into the slot only after every dev server is
//     live, so a failed startup never leaves a ready manifest behind.
//  5. The HTTP server starts listening last.
//
// # Usage
//
//	o := dev.New(app, slot, dev.Options{
//	    Port: 3000,
//	    Dev:  true,
//	    WS:   dev.WSOptions{Port: 16000},
//	})
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := o.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Request Dispatch
//
// node-handler routers load the server entry fresh from their dev server on
// every request and delegate to its handler. build, handler and spa routers
// forward requests unmodified into their dev server's middleware chain.
//
// # Manifest Endpoint
//
// Every dev server answers GET {prefix}/@manifest?bundler=NAME&input=PATH
// with the entry's output path and assets as JSON, or with rendered head
// tags when format=html is given.
package dev
