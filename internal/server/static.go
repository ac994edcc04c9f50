package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// PublicAssetDir serves the files of Dir under BaseURL.
type PublicAssetDir struct {
	Dir     string
	BaseURL string

	// Passthrough lets requests for missing files fall through to the dev
	// handlers instead of answering 404.
	Passthrough bool
}

type publicDir struct {
	root    string
	prefix  string
	through bool
}

func newPublicDir(d PublicAssetDir) *publicDir {
	prefix := d.BaseURL
	if prefix == "" {
		prefix = "/"
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &publicDir{root: d.Dir, prefix: prefix, through: d.Passthrough}
}

// owns reports whether urlPath is under the dir's base URL.
func (d *publicDir) owns(urlPath string) bool {
	return d.prefix == "/" || strings.HasPrefix(urlPath, d.prefix) || urlPath+"/" == d.prefix
}

// relPath returns a sanitized relative path for a request. It rejects
// traversal and absolute-path tricks so serving cannot escape the dir.
func (d *publicDir) relPath(urlPath string) (string, bool) {
	if d.root == "" || !strings.HasPrefix(urlPath, d.prefix) {
		return "", false
	}
	rel := strings.TrimPrefix(urlPath, d.prefix)
	if rel == "" {
		return "", false
	}

	// Reject NUL early (can appear via %00).
	if strings.IndexByte(rel, 0) != -1 {
		return "", false
	}
	if strings.Contains(rel, "\\") {
		return "", false
	}

	// "/static//etc/passwd" strips to "/etc/passwd".
	if strings.HasPrefix(rel, "/") {
		return "", false
	}

	// Check dot-segments before cleaning so traversal is not cleaned away.
	for _, seg := range strings.Split(rel, "/") {
		if seg == "." || seg == ".." {
			return "", false
		}
	}

	clean := path.Clean(rel)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") || strings.HasPrefix(clean, "/") {
		return "", false
	}

	osPath := filepath.FromSlash(clean)
	if filepath.IsAbs(osPath) || filepath.VolumeName(osPath) != "" {
		return "", false
	}
	return clean, true
}

// open returns the file for urlPath if it exists and is not a directory.
func (d *publicDir) open(urlPath string) (*os.File, os.FileInfo, bool) {
	rel, ok := d.relPath(urlPath)
	if !ok {
		return nil, nil, false
	}
	f, err := os.Open(filepath.Join(d.root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, nil, false
	}
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		f.Close()
		return nil, nil, false
	}
	return f, info, true
}

// serve writes the file for r and reports whether it did. GET and HEAD only.
func (d *publicDir) serve(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	f, info, ok := d.open(r.URL.Path)
	if !ok {
		return false
	}
	defer f.Close()

	applyCacheHeaders(w, info.Name())
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	return true
}

// applyCacheHeaders marks fingerprinted files immutable and everything else
// no-cache.
func applyCacheHeaders(w http.ResponseWriter, name string) {
	if isFingerprinted(name) {
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
}

// isFingerprinted checks if a file name carries a content hash, as in
// "app.a1b2c3d4.css".
func isFingerprinted(name string) bool {
	parts := strings.Split(path.Base(name), ".")
	if len(parts) < 3 {
		return false
	}

	// Hashes are 8+ hex characters before the extension.
	hash := parts[len(parts)-2]
	if len(hash) < 8 {
		return false
	}
	for _, c := range hash {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
