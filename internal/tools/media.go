package tools

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ShortID returns n lowercase hex characters (1..32) drawn from a random UUID.
func ShortID(n int) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if n <= 0 || n > len(id) {
		n = len(id)
	}
	return id[:n]
}

// MediaURL maps a file on disk to the URL a browser can open it at.
// Files under mediaRoot are served by the API at <publicBase>/media/<rel>;
// anything else gets a file:// URL.
func MediaURL(publicBase, mediaRoot, path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if publicBase != "" && mediaRoot != "" {
		if root, err := filepath.Abs(mediaRoot); err == nil {
			if rel, err := filepath.Rel(root, abs); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
				parts := strings.Split(filepath.ToSlash(rel), "/")
				for i, p := range parts {
					parts[i] = url.PathEscape(p)
				}
				return strings.TrimRight(publicBase, "/") + "/media/" + strings.Join(parts, "/")
			}
		}
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}

// SlashPath returns the absolute form of path with forward slashes, the form
// LaTeX accepts on every platform.
func SlashPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return filepath.ToSlash(path)
}
