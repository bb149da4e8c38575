package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dvloznov/statement-ledger/internal/ledger"
)

// FileStore keeps the ledger in a local JSON file.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the ledger file location.
func (s *FileStore) Path() string { return s.path }

// Load reads the ledger file. A missing file is an empty ledger.
func (s *FileStore) Load(ctx context.Context) (*ledger.Ledger, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return ledger.Empty(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("FileStore.Load: reading %s: %w", s.path, err)
	}

	l, err := ledger.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("FileStore.Load: %s: %w", s.path, err)
	}
	return l, nil
}

// Save replaces the ledger file. The new content is written to a temporary
// file in the same directory and renamed over the old one.
func (s *FileStore) Save(ctx context.Context, l *ledger.Ledger) error {
	data, err := encodeLedger(l)
	if err != nil {
		return fmt.Errorf("FileStore.Save: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("FileStore.Save: creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".ledger-*.tmp")
	if err != nil {
		return fmt.Errorf("FileStore.Save: creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("FileStore.Save: writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("FileStore.Save: syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("FileStore.Save: closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("FileStore.Save: replacing %s: %w", s.path, err)
	}
	return nil
}
