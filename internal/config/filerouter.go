package config

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// DefaultRouteExtensions are the file extensions a file router treats as routes.
var DefaultRouteExtensions = []string{".tsx", ".ts", ".jsx", ".js", ".go"}

// FileRouter is the resolved directory-based route table of a router.
type FileRouter struct {
	Dir    string  `json:"dir"`
	Routes []Route `json:"routes"`
}

// Route maps a URL pattern to the source file that handles it.
type Route struct {
	// Path is the URL pattern, e.g. /users/:id.
	Path string `json:"path"`

	// FilePath is the absolute path of the route file.
	FilePath string `json:"filePath"`
}

// FilePaths returns the file path of every route, in route order.
func (f *FileRouter) FilePaths() []string {
	if f == nil {
		return nil
	}
	paths := make([]string, len(f.Routes))
	for i, r := range f.Routes {
		paths[i] = r.FilePath
	}
	return paths
}

var (
	catchAllRe = regexp.MustCompile(`\[\.\.\.(\w+)\]`)
	paramRe    = regexp.MustCompile(`\[(\w+)\]`)
)

// ScanFileRouter walks the route directory and builds the route table.
// routerDir is used when spec.Dir is empty. Routes are sorted by path.
func ScanFileRouter(root, routerDir string, spec FileRouterSpec) (*FileRouter, error) {
	dir := resolvePath(root, spec.Dir)
	if dir == "" {
		dir = routerDir
	}
	if dir == "" {
		return nil, fmt.Errorf("file router needs a dir")
	}

	exts := spec.Extensions
	if len(exts) == 0 {
		exts = DefaultRouteExtensions
	}

	var routes []Route
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !hasExtension(p, exts) || isTestFile(p) {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		routes = append(routes, Route{
			Path:     filePathToURLPath(rel),
			FilePath: p,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	sort.SliceStable(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].FilePath < routes[j].FilePath
	})

	return &FileRouter{Dir: dir, Routes: routes}, nil
}

// filePathToURLPath converts a route file path to a URL pattern.
//
// Examples:
//   - index.tsx → /
//   - users/[id].tsx → /users/:id
//   - docs/[...slug].tsx → /docs/*slug
func filePathToURLPath(relPath string) string {
	p := filepath.ToSlash(relPath)
	p = strings.TrimSuffix(p, filepath.Ext(p))

	if strings.HasSuffix(p, "/index") {
		p = strings.TrimSuffix(p, "/index")
	}
	if p == "index" {
		p = ""
	}

	p = catchAllRe.ReplaceAllString(p, "*$1")
	p = paramRe.ReplaceAllString(p, ":$1")

	return "/" + p
}

func hasExtension(p string, exts []string) bool {
	ext := filepath.Ext(p)
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

func isTestFile(p string) bool {
	base := filepath.Base(p)
	return strings.HasSuffix(base, "_test.go") ||
		strings.Contains(base, ".test.") ||
		strings.Contains(base, ".spec.")
}
