package retrieval

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"refeed/app/feed"
)

func (c *Client) retrieveFile(rawURL string) (*Result, error) {
	path, err := c.resolvePath(rawURL)
	if err != nil {
		return nil, &feed.RetrieveError{URL: rawURL, Err: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &feed.RetrieveError{URL: rawURL, Err: err}
	}

	// Local files carry no caching validators.
	return &Result{Data: data}, nil
}

// resolvePath turns a file URL or bare path into a filesystem path confined
// to the configured feed root. Escaping paths and OS-reserved names are
// errors, never a silent fallback.
func (c *Client) resolvePath(rawURL string) (string, error) {
	if c.feedRoot == "" {
		return "", fmt.Errorf("file access is disabled (no feed root configured)")
	}

	path, err := extractPath(rawURL)
	if err != nil {
		return "", err
	}

	root, err := filepath.Abs(c.feedRoot)
	if err != nil {
		return "", fmt.Errorf("invalid feed root: %w", err)
	}

	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(root, resolved)
	} else {
		resolved = filepath.Clean(resolved)
	}

	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path is outside feed root %s", c.feedRoot)
	}

	if isReservedName(filepath.Base(resolved)) {
		return "", fmt.Errorf("path must not be reserved")
	}

	return resolved, nil
}

// extractPath returns the filesystem path of a file: URL, or the input
// itself when it is a bare path.
func extractPath(rawURL string) (string, error) {
	if !strings.HasPrefix(rawURL, "file:") {
		return rawURL, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid file URL: %w", err)
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", fmt.Errorf("file URL with remote host not supported")
	}

	if u.Path != "" {
		return u.Path, nil
	}
	// file:relative/path parses as opaque
	if u.Opaque != "" {
		return u.Opaque, nil
	}
	return "", fmt.Errorf("file URL with empty path")
}

// isReservedName reports whether the final path component is a name
// reserved by Windows (the part before the first dot, case-insensitive).
func isReservedName(base string) bool {
	name, _, _ := strings.Cut(base, ".")
	name = strings.ToUpper(name)

	switch name {
	case "CON", "PRN", "AUX", "NUL":
		return true
	}
	if len(name) == 4 && (strings.HasPrefix(name, "COM") || strings.HasPrefix(name, "LPT")) {
		return name[3] >= '1' && name[3] <= '9'
	}
	return false
}
