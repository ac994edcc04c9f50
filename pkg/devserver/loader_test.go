package devserver

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/devstack/internal/errors"
)

const serverSource = `package main

import (
	"fmt"
	"net/http"
	"os"
)

func main() {
	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "%s")
	})
	http.ListenAndServe("127.0.0.1:"+os.Getenv("PORT"), nil)
}
`

func writeServer(t *testing.T, dir, reply string) {
	t.Helper()
	writeFiles(t, dir, map[string]string{
		"go.mod":             "module example.com/server\n\ngo 1.21\n",
		"app/server/main.go": fmtSource(reply),
	})
}

func fmtSource(reply string) string {
	return strings.Replace(serverSource, "%s", reply, 1)
}

func TestGoModuleLoader_MissingPackage(t *testing.T) {
	l := NewGoModuleLoader(GoModuleLoaderConfig{Logger: zerolog.Nop()})
	defer l.Close()

	_, err := l.Load(context.Background(), &stubHandle{cfg: Config{Root: t.TempDir()}}, "./app/server")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, "E152"))
}

func TestGoModuleLoader_BuildFailure(t *testing.T) {
	if testing.Short() {
		t.Skip("builds a Go binary")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not on PATH")
	}

	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"go.mod":             "module example.com/server\n\ngo 1.21\n",
		"app/server/main.go": "package main\n\nfunc main() { undefined() }\n",
	})

	l := NewGoModuleLoader(GoModuleLoaderConfig{Logger: zerolog.Nop(), Output: io.Discard})
	defer l.Close()

	_, err := l.Load(context.Background(), &stubHandle{cfg: Config{Root: root}}, "./app/server")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, "E153"))
	assert.Contains(t, err.Error(), "undefined")
}

func TestGoModuleLoader_RebuildsOnChange(t *testing.T) {
	if testing.Short() {
		t.Skip("builds a Go binary")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not on PATH")
	}

	root := t.TempDir()
	writeServer(t, root, "v1")

	l := NewGoModuleLoader(GoModuleLoaderConfig{Logger: zerolog.Nop(), Output: io.Discard})
	defer l.Close()
	h := &stubHandle{cfg: Config{Root: root}}

	mod, err := l.Load(context.Background(), h, "./app/server")
	require.NoError(t, err)
	assert.Equal(t, "v1", get(t, mod.Handler, "/").Body.String())

	again, err := l.Load(context.Background(), h, "./app/server")
	require.NoError(t, err)
	assert.NotSame(t, mod, again)
	assert.Equal(t, "v1", get(t, again.Handler, "/").Body.String())

	main := filepath.Join(root, "app", "server", "main.go")
	require.NoError(t, os.WriteFile(main, []byte(fmtSource("v2")), 0644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(main, future, future))

	mod, err = l.Load(context.Background(), h, "./app/server")
	require.NoError(t, err)
	assert.Equal(t, "v2", get(t, mod.Handler, "/").Body.String())
}
