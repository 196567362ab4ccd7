package storage

import (
	"context"
	"time"
)

// Backend is a destination that ingested TDDF files are shipped to
type Backend interface {
	// Name returns the configured destination name (e.g., "s3_primary")
	Name() string

	// Type returns the backend type (local, s3, backblaze, ssh, mms)
	Type() string

	// Write copies a local file to the backend.
	// destPath is relative to the backend root, see ObjectKey.
	Write(ctx context.Context, sourcePath string, destPath string) error

	// Delete removes a file from the backend
	Delete(ctx context.Context, path string) error

	// List returns stored files whose relative path matches pattern,
	// newest first. 0-byte files are left out.
	List(ctx context.Context, pattern string) ([]FileInfo, error)

	// Stat returns metadata about a specific file
	Stat(ctx context.Context, path string) (*FileInfo, error)

	// Exists checks if a file exists in the backend
	Exists(ctx context.Context, path string) (bool, error)

	// Close releases resources (connections, sessions)
	Close() error
}

// FileInfo represents metadata about a stored file
type FileInfo struct {
	Path    string    // Relative path in backend
	Size    int64     // Size in bytes
	ModTime time.Time // Last modification time
}

// Config represents storage backend configuration
type Config struct {
	Name    string                 `json:"name"`
	Type    string                 `json:"type"`
	Enabled bool                   `json:"enabled"`
	BaseDir string                 `json:"base_dir"`
	Options map[string]interface{} `json:"options"`
}

// Result represents outcome of a storage operation
type Result struct {
	BackendName string
	BackendType string
	Success     bool
	Duplicate   bool // the destination already held the file
	Error       error
	Duration    time.Duration
}

// AnySucceeded reports whether at least one backend accepted the file
func AnySucceeded(results []Result) bool {
	for _, r := range results {
		if r.Success {
			return true
		}
	}
	return false
}

// stringOption reads a string option, reporting whether it was present
func stringOption(options map[string]interface{}, key string) (string, bool) {
	v, ok := options[key].(string)
	return v, ok
}

// StringOption returns a string option or def when missing
func StringOption(options map[string]interface{}, key, def string) string {
	if v, ok := stringOption(options, key); ok {
		return v
	}
	return def
}

// RequireString returns a string option or an ErrInvalidConfig error when missing
func RequireString(options map[string]interface{}, key string) (string, error) {
	v, ok := stringOption(options, key)
	if !ok || v == "" {
		return "", missingOption(key)
	}
	return v, nil
}

// BoolOption returns a bool option or def when missing
func BoolOption(options map[string]interface{}, key string, def bool) bool {
	if v, ok := options[key].(bool); ok {
		return v
	}
	return def
}

// IntOption returns a numeric option or def when missing.
// JSON numbers decode as float64, so both forms are accepted.
func IntOption(options map[string]interface{}, key string, def int) int {
	switch v := options[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

// FloatOption returns a numeric option or def when missing
func FloatOption(options map[string]interface{}, key string, def float64) float64 {
	switch v := options[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}
