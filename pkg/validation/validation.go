// Package validation holds input checks shared by the configuration loaders.
package validation

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

var configExtensions = map[string]bool{".yaml": true, ".yml": true, ".xml": true}

// ValidateConfigPath checks that path names a readable regular configuration
// file with a supported extension and without parent directory references.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("config path must not contain '..': %s", path)
		}
	}
	ext := strings.ToLower(filepath.Ext(path))
	if !configExtensions[ext] {
		return fmt.Errorf("unsupported config file extension %q", ext)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access config file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path is a directory: %s", path)
	}
	return nil
}

// ValidateEndpointURL checks that raw is an absolute http or https URL.
func ValidateEndpointURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("URL %q must use http or https", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("URL %q has no host", raw)
	}
	return u, nil
}

// IsSecureURL reports whether raw uses https.
func IsSecureURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && strings.EqualFold(u.Scheme, "https")
}
