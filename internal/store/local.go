package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

const (
	LocalBackendName    = "local"
	FallbackBackendName = "fallback"
)

// LocalBackend keeps the collection in a single file on disk.
type LocalBackend struct {
	name string
	path string
}

// NewLocalBackend creates the primary filesystem backend.
func NewLocalBackend(path string) (*LocalBackend, error) {
	return newLocalBackend(LocalBackendName, path)
}

// NewFallbackBackend creates the secondary filesystem backend used when the
// backends ahead of it fail, typically rooted in the OS temp directory.
func NewFallbackBackend(path string) (*LocalBackend, error) {
	return newLocalBackend(FallbackBackendName, path)
}

func newLocalBackend(name, path string) (*LocalBackend, error) {
	if path == "" {
		return nil, fmt.Errorf("%s backend: path is required", name)
	}
	return &LocalBackend{name: name, path: filepath.Clean(path)}, nil
}

func (b *LocalBackend) Name() string {
	return b.name
}

func (b *LocalBackend) Path() string {
	return b.path
}

func (b *LocalBackend) Fetch(ctx context.Context) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return Blob{}, err
	}

	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Blob{}, ErrNotFound
		}
		return Blob{}, fmt.Errorf("reading collection: %w", err)
	}

	return Blob{Data: data, Version: sha256Hash(data)}, nil
}

// Store writes atomically: temp file in the same directory, then rename.
// The version token is ignored; the filesystem has no concurrency control.
func (b *LocalBackend) Store(ctx context.Context, blob Blob) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating collection directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp collection: %w", err)
	}
	tmpPath := tmp.Name()

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp collection: %w", err)
	}
	if _, err := tmp.Write(blob.Data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp collection: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp collection: %w", err)
	}

	if err := os.Rename(tmpPath, b.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming collection: %w", err)
	}
	return nil
}

func sha256Hash(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}
