package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/halvard/gebo/internal/checksum"
)

// Local is a content-addressed file backend for development: files are named
// by the SHA-256 of their bytes and served under /media.
type Local struct {
	root string // absolute path to the media directory
}

// NewLocal creates a local backend rooted at the given directory, creating
// it if needed.
func NewLocal(root string) (*Local, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("media: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("media: create root: %w", err)
	}
	return &Local{root: abs}, nil
}

// Upload writes the attachment under its content address and returns the
// serving path. Re-uploading identical bytes yields the same reference.
func (l *Local) Upload(_ context.Context, att Attachment) (string, error) {
	name := checksum.Sum(att.Data) + ext(att.Filename)
	abs := filepath.Join(l.root, name)

	if _, err := os.Stat(abs); err == nil {
		return "/media/" + name, nil
	}

	// Atomic write: tmp file, fsync, rename.
	tmp, err := os.CreateTemp(l.root, ".gebo-tmp-*")
	if err != nil {
		return "", fmt.Errorf("media: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(att.Data); err != nil {
		return "", fmt.Errorf("media: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("media: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("media: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return "", fmt.Errorf("media: rename: %w", err)
	}
	success = true
	return "/media/" + name, nil
}

// Path validates name and returns the absolute file path for serving.
// Plain names only: no path separators, no traversal.
func (l *Local) Path(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("media: name is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("media: invalid name: %s", name)
	}
	abs := filepath.Join(l.root, cleaned)
	if !strings.HasPrefix(abs, l.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("media: path escapes media root: %s", name)
	}
	return abs, nil
}

func ext(filename string) string {
	e := strings.ToLower(filepath.Ext(filename))
	switch e {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg":
		return e
	default:
		return ".bin"
	}
}
