package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fyrsmithlabs/motorqc/internal/record"
)

// FilePersister keeps the envelope in a single JSON file.
type FilePersister struct {
	path string
}

// NewFilePersister returns a persister writing to path. The parent
// directory is created on first save.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

// Path returns the snapshot file path.
func (p *FilePersister) Path() string {
	return p.path
}

// Load reads the snapshot file.
func (p *FilePersister) Load(ctx context.Context) ([]record.Record, error) {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", p.path, err)
	}
	if len(data) == 0 {
		return nil, ErrNotFound
	}
	return decodeEnvelope(data)
}

// Save writes the snapshot atomically via a temp file and rename.
func (p *FilePersister) Save(ctx context.Context, records []record.Record) error {
	data, err := encodeEnvelope(records)
	if err != nil {
		return fmt.Errorf("encoding records: %w", err)
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".motorqc-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, p.path); err != nil {
		return fmt.Errorf("replacing %s: %w", p.path, err)
	}
	return nil
}
