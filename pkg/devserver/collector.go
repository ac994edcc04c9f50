package devserver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// importRe matches the specifier of static imports, re-exports, dynamic
// imports, side-effect imports and CSS @import rules, in source order.
var importRe = regexp.MustCompile(
	`(?:import|export)\s+[^'";]*?\bfrom\s*["']([^"']+)["']` +
		`|\bimport\s*\(?\s*["']([^"']+)["']` +
		`|@import\s+(?:url\(\s*)?["']([^"']+)["']`,
)

// ResolveExtensions are probed, in order, for extensionless specifiers.
var ResolveExtensions = []string{".tsx", ".ts", ".jsx", ".js", ".mjs", ".css", ".scss", ".sass", ".less"}

// GraphCollector is the built-in StyleCollector. It walks import statements
// from the given paths and returns every stylesheet reached, in depth-first
// discovery order. Only relative and root-absolute specifiers are followed.
type GraphCollector struct{}

// NewGraphCollector creates a collector.
func NewGraphCollector() *GraphCollector {
	return &GraphCollector{}
}

// Collect implements StyleCollector. Relative paths are resolved against the
// handle root. Paths that do not exist contribute nothing.
func (c *GraphCollector) Collect(ctx context.Context, h Handle, paths []string) ([]StyleModule, error) {
	root := h.Config().Root
	w := &graphWalk{
		ctx:  ctx,
		root: root,
		seen: make(map[string]bool),
	}

	for _, p := range paths {
		abs := p
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(root, p)
		}
		resolved, ok := probe(filepath.Clean(abs))
		if !ok {
			continue
		}
		if err := w.visit(resolved); err != nil {
			return nil, err
		}
	}
	return w.out, nil
}

type graphWalk struct {
	ctx  context.Context
	root string
	seen map[string]bool
	out  []StyleModule
}

func (w *graphWalk) visit(file string) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}
	if w.seen[file] {
		return nil
	}
	w.seen[file] = true

	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}

	if IsCSS(file) {
		w.out = append(w.out, StyleModule{Key: w.key(file), Text: string(data)})
	}

	for _, spec := range importSpecifiers(string(data)) {
		dep, ok := w.resolve(filepath.Dir(file), spec)
		if !ok {
			continue
		}
		if err := w.visit(dep); err != nil {
			return err
		}
	}
	return nil
}

func (w *graphWalk) resolve(fromDir, spec string) (string, bool) {
	spec = stripQuery(spec)
	var candidate string
	switch {
	case strings.HasPrefix(spec, "./"), strings.HasPrefix(spec, "../"):
		candidate = filepath.Join(fromDir, filepath.FromSlash(spec))
	case strings.HasPrefix(spec, "/"):
		candidate = filepath.Join(w.root, filepath.FromSlash(spec))
	default:
		return "", false
	}
	return probe(candidate)
}

// key returns the module key of file: its root-relative slash path with a
// leading slash, or /@fs/<abs> for files outside the root.
func (w *graphWalk) key(file string) string {
	if rel, err := filepath.Rel(w.root, file); err == nil && !strings.HasPrefix(rel, "..") {
		return "/" + filepath.ToSlash(rel)
	}
	return "/@fs/" + strings.TrimPrefix(filepath.ToSlash(file), "/")
}

// importSpecifiers returns the specifiers imported by src, in source order.
func importSpecifiers(src string) []string {
	matches := importRe.FindAllStringSubmatch(src, -1)
	specs := make([]string, 0, len(matches))
	for _, m := range matches {
		for _, g := range m[1:] {
			if g != "" {
				specs = append(specs, g)
				break
			}
		}
	}
	return specs
}

// probe returns p if it is a regular file, else the first match of p with a
// resolve extension, else an index file inside p.
func probe(p string) (string, bool) {
	if isFile(p) {
		return p, true
	}
	for _, ext := range ResolveExtensions {
		if isFile(p + ext) {
			return p + ext, true
		}
	}
	for _, ext := range ResolveExtensions {
		idx := filepath.Join(p, "index"+ext)
		if isFile(idx) {
			return idx, true
		}
	}
	return "", false
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
