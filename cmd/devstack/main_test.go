package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	deverrors "github.com/vango-dev/devstack/internal/errors"
)

const testConfig = `{
  "routers": [
    {"name": "public", "mode": "static", "dir": "public"},
    {"name": "client", "mode": "build", "base": "/_build", "handler": "app/client.tsx", "build": "client"}
  ],
  "bundlers": [
    {"name": "client", "target": "browser"}
  ],
  "dev": {"port": 4000}
}`

// unsetEnv clears the DEVSTACK_* overrides for the duration of the test.
func unsetEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DEVSTACK_PORT", "DEVSTACK_WS_PORT", "DEVSTACK_HOST"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "devstack.json")
	if err := os.WriteFile(p, []byte(testConfig), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return p
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDevFlags_Precedence(t *testing.T) {
	unsetEnv(t)
	p := writeConfig(t)

	envFile := filepath.Join(t.TempDir(), "dev.env")
	if err := os.WriteFile(envFile, []byte("DEVSTACK_PORT=5000\nDEVSTACK_WS_PORT=17000\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	f := devFlags{configPath: p, envFile: envFile, port: 6000}
	cfg, err := f.load(true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	// flags beat the environment, which beats the file.
	if cfg.Dev.Port != 6000 {
		t.Errorf("Port = %d, want 6000", cfg.Dev.Port)
	}
	if cfg.Dev.WSPort != 17000 {
		t.Errorf("WSPort = %d, want 17000", cfg.Dev.WSPort)
	}
	if cfg.Dev.Host != "localhost" {
		t.Errorf("Host = %q, want localhost", cfg.Dev.Host)
	}
}

func TestDevFlags_MissingEnvFile(t *testing.T) {
	unsetEnv(t)
	p := writeConfig(t)
	missing := filepath.Join(t.TempDir(), ".env")

	f := devFlags{configPath: p, envFile: missing}
	if _, err := f.load(false); err != nil {
		t.Errorf("default env file should be optional: %v", err)
	}
	if _, err := f.load(true); err == nil {
		t.Error("an explicit env file that does not exist should fail")
	}
}

func TestDevFlags_InvalidPort(t *testing.T) {
	unsetEnv(t)
	p := writeConfig(t)

	f := devFlags{configPath: p, envFile: "", wsPort: 65535}
	_, err := f.load(false)
	if !deverrors.HasCode(err, "E122") {
		t.Errorf("load error = %v, want E122", err)
	}
}

func TestConfigCmd_Resolved(t *testing.T) {
	unsetEnv(t)
	p := writeConfig(t)

	out, err := run(t, "config", "--config", p, "--env-file", "")
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	var app struct {
		Root    string `json:"root"`
		Routers []struct {
			Name   string `json:"name"`
			Prefix string `json:"prefix"`
			Dir    string `json:"dir"`
			Index  int    `json:"index"`
		} `json:"routers"`
	}
	if err := json.Unmarshal([]byte(out), &app); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if app.Root != filepath.Dir(p) {
		t.Errorf("root = %q, want %q", app.Root, filepath.Dir(p))
	}
	if len(app.Routers) != 2 {
		t.Fatalf("routers = %d, want 2", len(app.Routers))
	}
	if r := app.Routers[1]; r.Name != "client" || r.Prefix != "/_build" || r.Index != 1 {
		t.Errorf("client router = %+v", r)
	}
	if want := filepath.Join(filepath.Dir(p), "public"); app.Routers[0].Dir != want {
		t.Errorf("public dir = %q, want %q", app.Routers[0].Dir, want)
	}
}

func TestConfigCmd_Declared(t *testing.T) {
	unsetEnv(t)
	p := writeConfig(t)

	out, err := run(t, "config", "--config", p, "--env-file", "", "--declared", "--port", "7000")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	for _, want := range []string{"name: client", "mode: build", "port: 7000", "wsPort: 16000"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version", "--short")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if strings.TrimSpace(out) != version {
		t.Errorf("version = %q, want %q", out, version)
	}
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, deverrors.New("E141").WithDetail("No devstack.json found in /tmp"))
	if !strings.Contains(buf.String(), "E141") || !strings.Contains(buf.String(), "No devstack.json found") {
		t.Errorf("coded error output = %q", buf.String())
	}

	buf.Reset()
	printError(&buf, errors.New("plain"))
	if !strings.Contains(buf.String(), "plain") {
		t.Errorf("plain error output = %q", buf.String())
	}
}
