package dev

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"path"
	"path/filepath"

	"github.com/vango-dev/devstack/internal/config"
	"github.com/vango-dev/devstack/internal/errors"
	"github.com/vango-dev/devstack/pkg/assets"
	"github.com/vango-dev/devstack/pkg/devserver"
	"github.com/vango-dev/devstack/pkg/handler"
	"github.com/vango-dev/devstack/pkg/manifest"
)

const (
	entriesPluginName  = "devstack:entries"
	manifestPluginName = "devstack:manifest"

	// ManifestPath is the manifest endpoint, relative to a router prefix.
	ManifestPath = "@manifest"
)

// entriesPlugin declares a router's entry points: its handler plus every
// file-router route.
type entriesPlugin struct {
	root   string
	router *config.RouterConfig
}

func newEntriesPlugin(root string, r *config.RouterConfig) *entriesPlugin {
	return &entriesPlugin{root: root, router: r}
}

func (p *entriesPlugin) Name() string { return entriesPluginName }

func (p *entriesPlugin) ConfigResolved(cfg *devserver.Config) error {
	var inputs []string
	if p.router.Handler != "" {
		inputs = append(inputs, filepath.Join(p.root, p.router.Handler))
	}
	inputs = append(inputs, p.router.FileRouter.FilePaths()...)
	cfg.Build.Inputs = inputs
	return nil
}

// manifestPlugin serves the manifest of its router's bundler over HTTP.
type manifestPlugin struct {
	slot   *manifest.Slot
	router *config.RouterConfig
}

func newManifestPlugin(slot *manifest.Slot, r *config.RouterConfig) *manifestPlugin {
	return &manifestPlugin{slot: slot, router: r}
}

func (p *manifestPlugin) Name() string { return manifestPluginName }

// manifestResponse is the JSON body of the manifest endpoint.
type manifestResponse struct {
	Bundler string          `json:"bundler"`
	Input   string          `json:"input"`
	Handler bool            `json:"handler"`
	Output  manifest.Output `json:"output"`
	Assets  []assets.Asset  `json:"assets"`
}

func (p *manifestPlugin) Middleware(h devserver.Handle) func(http.Handler) http.Handler {
	endpoint := path.Join(h.Config().Base, ManifestPath)

	return func(next http.Handler) http.Handler {
		serve := handler.ToHTTP(handler.Define(p.serve), writeJSONError)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != endpoint || (r.Method != http.MethodGet && r.Method != http.MethodHead) {
				next.ServeHTTP(w, r)
				return
			}
			serve.ServeHTTP(w, r)
		})
	}
}

func (p *manifestPlugin) serve(e *handler.Event) error {
	q := e.Request.URL.Query()
	name := q.Get("bundler")
	if name == "" {
		name = p.router.Name
	}
	input := q.Get("input")
	if input == "" {
		return errors.New("E101").WithDetail("the input query parameter is required")
	}

	b, err := p.slot.Bundler(name)
	if err != nil {
		return err
	}
	entry, err := b.Input(input)
	if err != nil {
		return err
	}
	list, err := entry.Assets(e.Context())
	if err != nil {
		return err
	}

	w := e.Writer
	w.Header().Set("Cache-Control", "no-cache")

	if q.Get("format") == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, err := w.Write([]byte(assets.RenderAll(list)))
		return err
	}

	if list == nil {
		list = []assets.Asset{}
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(manifestResponse{
		Bundler: name,
		Input:   input,
		Handler: entry.IsHandler(),
		Output:  entry.Output(),
		Assets:  list,
	})
}

func writeJSONError(w http.ResponseWriter, _ *http.Request, err error) {
	body := map[string]string{"error": err.Error()}
	var de *errors.DevError
	if stderrors.As(err, &de) {
		body["code"] = de.Code
		body["category"] = string(de.Category)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(handler.StatusCode(err))
	_ = json.NewEncoder(w).Encode(body)
}
