package lsp

import (
	"path/filepath"
	"strings"
)

// fileURI builds a file:// URI for a path, resolving relative paths against
// the workspace root.
func fileURI(root, path string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	return "file://" + path
}

// uriToPath strips the file:// scheme from a URI.
func uriToPath(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}

// relToRoot reports a path relative to the workspace root when it lies
// inside it; paths outside the root are returned unchanged.
func relToRoot(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
