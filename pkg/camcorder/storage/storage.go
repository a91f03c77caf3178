// Package storage resolves recording storage policies into concrete
// directories and unique output file names. The recording controller only
// consumes the resulting paths.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// appDir is the per-app subdirectory under the platform cache/files roots.
const appDir = "camcorder"

// recordingExt is the container extension the platform encoder produces.
const recordingExt = ".mp4"

// Policy resolves to a writable directory for recording output.
type Policy interface {
	Dir() (string, error)
}

// CachePolicy stores recordings under the user cache directory. Suitable
// for clips that are uploaded and discarded.
type CachePolicy struct{}

// Dir resolves and creates the cache recording directory.
func (CachePolicy) Dir() (string, error) {
	root, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("storage: resolve cache dir: %w", err)
	}
	return ensure(filepath.Join(root, appDir))
}

// FilesPolicy stores recordings under the user's home directory, surviving
// cache eviction.
type FilesPolicy struct{}

// Dir resolves and creates the permanent recording directory.
func (FilesPolicy) Dir() (string, error) {
	root, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("storage: resolve home dir: %w", err)
	}
	return ensure(filepath.Join(root, appDir))
}

// CustomPolicy stores recordings in a caller-specified directory.
type CustomPolicy string

// Dir resolves and creates the custom directory.
func (p CustomPolicy) Dir() (string, error) {
	if p == "" {
		return "", fmt.Errorf("storage: empty custom directory")
	}
	return ensure(string(p))
}

// NewRecordingPath returns a unique output path inside dir, creating dir if
// needed. Names combine a wall-clock timestamp with a short random suffix
// so concurrent processes cannot collide.
func NewRecordingPath(dir string) (string, error) {
	if _, err := ensure(dir); err != nil {
		return "", err
	}
	name := fmt.Sprintf("rec_%s_%s%s",
		time.Now().Format("20060102_150405"),
		uuid.NewString()[:8],
		recordingExt)
	return filepath.Join(dir, name), nil
}

// CleanupCache removes cache recordings older than maxAge and returns how
// many were deleted.
func CleanupCache(maxAge time.Duration) (int, error) {
	dir, err := (CachePolicy{}).Dir()
	if err != nil {
		return 0, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("storage: read cache dir: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != recordingExt {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

func ensure(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("storage: create dir %s: %w", dir, err)
	}
	return dir, nil
}
