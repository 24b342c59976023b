package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kk-code-lab/packsync/internal/manifest"
)

// FileStore persists the manifest as a single codec-encoded file. Saves write
// to a temp file, sync, then rename over the durable path so a crash never
// leaves a torn record.
type FileStore struct {
	path  string
	codec manifest.Codec
}

// NewFileStore creates a file-backed store at the given path. A nil codec
// defaults to the binary codec.
func NewFileStore(path string, codec manifest.Codec) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("store: manifest path required")
	}
	if codec == nil {
		codec = &manifest.BinaryCodec{}
	}
	return &FileStore{path: path, codec: codec}, nil
}

// Path returns the durable manifest path.
func (s *FileStore) Path() string {
	return s.path
}

// Exists reports whether a manifest file is present.
func (s *FileStore) Exists() bool {
	info, err := os.Stat(s.path)
	return err == nil && !info.IsDir()
}

// Load reads and decodes the stored manifest.
func (s *FileStore) Load(ctx context.Context) (*manifest.Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer func() { _ = file.Close() }()
	m, err := s.codec.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return m, nil
}

// Save atomically replaces the stored manifest.
func (s *FileStore) Save(ctx context.Context, m *manifest.Manifest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m == nil {
		return errors.New("store: nil manifest")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := s.codec.Encode(file, m); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
