package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vango-dev/devstack/internal/errors"
)

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Dev.Port != DefaultPort {
		t.Errorf("Dev.Port = %d, want %d", cfg.Dev.Port, DefaultPort)
	}
	if cfg.Dev.Host != DefaultHost {
		t.Errorf("Dev.Host = %q, want %q", cfg.Dev.Host, DefaultHost)
	}
	if cfg.Dev.WSPort != DefaultWSPort {
		t.Errorf("Dev.WSPort = %d, want %d", cfg.Dev.WSPort, DefaultWSPort)
	}
	if cfg.Dev.ServerEntry != DefaultServerEntry {
		t.Errorf("Dev.ServerEntry = %q, want %q", cfg.Dev.ServerEntry, DefaultServerEntry)
	}
}

func TestLoad_JSON(t *testing.T) {
	tmpDir := t.TempDir()

	if _, err := Load(tmpDir); !errors.HasCode(err, "E141") {
		t.Fatalf("Load on empty dir = %v, want E141", err)
	}

	configJSON := `{
  "bundlers": [
    {"name": "client", "target": "browser", "outDir": "dist/client", "plugins": ["css"]}
  ],
  "routers": [
    {"name": "public", "mode": "static", "dir": "public"},
    {"name": "client", "mode": "spa", "base": "/app", "handler": "index.html", "build": "client"}
  ],
  "dev": {"port": 8080, "wsPort": 17000}
}
`
	if err := os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte(configJSON), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Dev.Port != 8080 {
		t.Errorf("Dev.Port = %d, want 8080", cfg.Dev.Port)
	}
	if cfg.Dev.WSPort != 17000 {
		t.Errorf("Dev.WSPort = %d, want 17000", cfg.Dev.WSPort)
	}
	if cfg.Dev.Host != DefaultHost {
		t.Errorf("Dev.Host = %q, want default %q", cfg.Dev.Host, DefaultHost)
	}
	if len(cfg.Routers) != 2 || cfg.Routers[1].Mode != ModeSPA {
		t.Fatalf("Routers = %+v", cfg.Routers)
	}
	if cfg.Bundlers[0].Target != TargetBrowser {
		t.Errorf("Bundlers[0].Target = %q, want browser", cfg.Bundlers[0].Target)
	}
	if cfg.Dir() != tmpDir {
		t.Errorf("Dir() = %q, want %q", cfg.Dir(), tmpDir)
	}

	app, err := cfg.Resolve()
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if got, want := app.Bundlers[0].OutDir, filepath.Join(tmpDir, "dist/client"); got != want {
		t.Errorf("OutDir = %q, want %q", got, want)
	}
	if got, want := app.Routers[0].Dir, filepath.Join(tmpDir, "public"); got != want {
		t.Errorf("Routers[0].Dir = %q, want %q", got, want)
	}
}

func TestLoad_YAML(t *testing.T) {
	tmpDir := t.TempDir()
	configYAML := `
bundlers:
  - name: ssr
    target: node
routers:
  - name: ssr
    mode: node-handler
    handler: app/server.tsx
    build: ssr
dev:
  port: 4000
`
	if err := os.WriteFile(filepath.Join(tmpDir, "devstack.yaml"), []byte(configYAML), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Dev.Port != 4000 {
		t.Errorf("Dev.Port = %d, want 4000", cfg.Dev.Port)
	}
	if cfg.Dev.WSPort != DefaultWSPort {
		t.Errorf("Dev.WSPort = %d, want %d", cfg.Dev.WSPort, DefaultWSPort)
	}
	if cfg.Routers[0].Mode != ModeNodeHandler {
		t.Errorf("Mode = %q, want node-handler", cfg.Routers[0].Mode)
	}
	if cfg.Bundlers[0].Target != TargetNode {
		t.Errorf("Target = %q, want node", cfg.Bundlers[0].Target)
	}
}

func TestLoadFile_InvalidMode(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, ConfigFileName)
	if err := os.WriteFile(path, []byte(`{"routers":[{"name":"x","mode":"lambda"}]}`), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFile(path)
	if !errors.HasCode(err, "E120") {
		t.Fatalf("LoadFile = %v, want E120", err)
	}
	if !errors.HasCode(err, "E123") {
		t.Errorf("LoadFile = %v, should carry E123 cause", err)
	}
}

func TestLoadFile_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, ConfigFileName)
	if err := os.WriteFile(path, []byte(`{not json`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); !errors.HasCategory(err, errors.CategoryConfig) {
		t.Fatalf("LoadFile = %v, want configuration error", err)
	}
}

func TestSaveTo_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()

	for _, name := range []string{"devstack.json", "devstack.yaml"} {
		t.Run(name, func(t *testing.T) {
			cfg := New()
			cfg.Bundlers = []BundlerSpec{{Name: "client", Target: TargetBrowser}}
			cfg.Routers = []RouterSpec{{Name: "client", Mode: ModeHandler, Handler: "app/entry.tsx", Build: "client"}}

			path := filepath.Join(tmpDir, name)
			if err := cfg.SaveTo(path); err != nil {
				t.Fatalf("SaveTo error: %v", err)
			}
			if cfg.Path() != path {
				t.Errorf("Path() = %q, want %q", cfg.Path(), path)
			}

			loaded, err := LoadFile(path)
			if err != nil {
				t.Fatalf("LoadFile error: %v", err)
			}
			if loaded.Routers[0].Handler != "app/entry.tsx" || loaded.Routers[0].Mode != ModeHandler {
				t.Errorf("Routers = %+v", loaded.Routers)
			}
			if loaded.Bundlers[0].Target != TargetBrowser {
				t.Errorf("Bundlers = %+v", loaded.Bundlers)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"DEVSTACK_PORT":    "5000",
		"DEVSTACK_WS_PORT": "20000",
		"DEVSTACK_HOST":    "0.0.0.0",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := New()
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("ApplyEnv error: %v", err)
	}
	if cfg.Dev.Port != 5000 || cfg.Dev.WSPort != 20000 || cfg.Dev.Host != "0.0.0.0" {
		t.Errorf("Dev = %+v", cfg.Dev)
	}

	env["DEVSTACK_PORT"] = "abc"
	if err := cfg.ApplyEnv(lookup); !errors.HasCode(err, "E122") {
		t.Errorf("ApplyEnv with bad port = %v, want E122", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"port too large", func(c *Config) { c.Dev.Port = 70000 }, true},
		{"negative port", func(c *Config) { c.Dev.Port = -1 }, true},
		{"zero ws port", func(c *Config) { c.Dev.WSPort = 0 }, true},
		{"ws range overflows", func(c *Config) {
			c.Dev.WSPort = 65535
			c.Routers = []RouterSpec{{Name: "a"}, {Name: "b"}}
		}, true},
		{"ws range fits", func(c *Config) {
			c.Dev.WSPort = 65534
			c.Routers = []RouterSpec{{Name: "a"}, {Name: "b"}}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDevAddress(t *testing.T) {
	cfg := New()
	cfg.Dev.Host = "127.0.0.1"
	cfg.Dev.Port = 3100
	if got := cfg.DevAddress(); got != "127.0.0.1:3100" {
		t.Errorf("DevAddress() = %q", got)
	}
	if got := cfg.DevURL(); got != "http://127.0.0.1:3100" {
		t.Errorf("DevURL() = %q", got)
	}
}

func TestFindProjectRoot(t *testing.T) {
	tmpDir := t.TempDir()
	nested := filepath.Join(tmpDir, "app", "routes")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	if _, err := FindProjectRoot(nested); err == nil {
		t.Error("expected error without config file")
	}

	if err := os.WriteFile(filepath.Join(tmpDir, "devstack.yml"), []byte("routers: []\n"), 0644); err != nil {
		t.Fatal(err)
	}

	root, err := FindProjectRoot(nested)
	if err != nil {
		t.Fatalf("FindProjectRoot error: %v", err)
	}
	if root != tmpDir {
		t.Errorf("FindProjectRoot() = %q, want %q", root, tmpDir)
	}
	if !Exists(tmpDir) {
		t.Error("Exists() = false, want true")
	}
}
