package devserver

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldIgnore(t *testing.T) {
	root := filepath.FromSlash("/tmp/project")
	w := NewWatcher(WatcherConfig{
		Paths:  []string{root},
		Ignore: append(append([]string(nil), DefaultIgnore...), "app/generated", "*.gen.ts"),
	})

	tests := []struct {
		path string
		want bool
	}{
		{"app/page.tsx", false},
		{"app/page_test.go", true},
		{"node_modules/react/index.js", true},
		{".git/HEAD", true},
		{"app/generated/routes.ts", true},
		{"app/other/generated.ts", false},
		{"app/types.gen.ts", true},
		{"styles/main.css~", true},
		// the watched root itself lives under /tmp; only relative segments count
		{"src/main.go", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			full := filepath.Join(root, filepath.FromSlash(tt.path))
			assert.Equal(t, tt.want, w.shouldIgnore(full))
		})
	}
}

func TestClassifyChange(t *testing.T) {
	tests := map[string]ChangeType{
		"main.go":         ChangeSource,
		"app/page.tsx":    ChangeSource,
		"styles/a.SCSS":   ChangeCSS,
		"index.html":      ChangeTemplate,
		"public/logo.png": ChangeAsset,
	}
	for p, want := range tests {
		assert.Equal(t, want, classifyChange(p), p)
	}
	assert.Equal(t, "css", ChangeCSS.String())
}

func TestWatcher_ReportsOncePerType(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.css": "", "b.css": "", "sub/c.tsx": ""})

	w := NewWatcher(WatcherConfig{
		Paths:    []string{root},
		Debounce: 50 * time.Millisecond,
		Logger:   zerolog.Nop(),
	})

	var (
		mu      sync.Mutex
		changes []Change
	)
	w.OnChange(func(c Change) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, c)
	})

	require.NoError(t, w.Open())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	require.Eventually(t, w.IsRunning, time.Second, 5*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.css"), []byte(".a{}"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.css"), []byte(".b{}"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "c.tsx"), []byte("x"), 0644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(changes) >= 2
	}, 5*time.Second, 10*time.Millisecond)

	w.Stop()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	types := map[ChangeType]int{}
	for _, c := range changes {
		types[c.Type]++
	}
	assert.Equal(t, 1, types[ChangeCSS])
	assert.Equal(t, 1, types[ChangeSource])
}
