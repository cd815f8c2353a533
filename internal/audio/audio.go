// Package audio stores the sound clips attached to a record, one per RPM
// bucket.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/motorqc/internal/record"
)

// ErrNotAudio indicates an upload whose content type is not audio/*.
var ErrNotAudio = errors.New("file is not audio")

// Store writes audio blobs under a directory.
type Store struct {
	dir     string
	maxSize int64
}

// NewStore creates a store rooted at dir. maxSize <= 0 means unlimited.
func NewStore(dir string, maxSize int64) *Store {
	return &Store{dir: dir, maxSize: maxSize}
}

// Dir returns the root directory.
func (s *Store) Dir() string { return s.dir }

// SaveFile stores an uploaded multipart file for bucket and returns its
// reference. The blob key is "<bucket>/<uuid><ext>".
func (s *Store) SaveFile(ctx context.Context, bucket record.RPM, fh *multipart.FileHeader) (*record.FileRef, error) {
	contentType := fh.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "audio/") {
		return nil, fmt.Errorf("%w: %s has type %s", ErrNotAudio, fh.Filename, contentType)
	}
	if s.maxSize > 0 && fh.Size > s.maxSize {
		return nil, fmt.Errorf("%s exceeds %d bytes", fh.Filename, s.maxSize)
	}

	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("opening upload: %w", err)
	}
	defer src.Close()

	ref := &record.FileRef{
		Name:        filepath.Base(fh.Filename),
		ContentType: contentType,
	}
	n, key, err := s.write(ctx, bucket, ref.Name, src)
	if err != nil {
		return nil, err
	}
	ref.Size = n
	ref.Key = key
	return ref, nil
}

// Open returns a reader for a stored blob.
func (s *Store) Open(key string) (*os.File, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Remove deletes a stored blob. A missing blob is not an error.
func (s *Store) Remove(key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing audio file: %w", err)
	}
	return nil
}

func (s *Store) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid audio key %q", key)
	}
	return filepath.Join(s.dir, clean), nil
}

func (s *Store) write(ctx context.Context, bucket record.RPM, name string, src io.Reader) (int64, string, error) {
	if err := ctx.Err(); err != nil {
		return 0, "", err
	}
	dir := filepath.Join(s.dir, string(bucket))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, "", fmt.Errorf("creating audio dir: %w", err)
	}

	file := uuid.NewString() + strings.ToLower(filepath.Ext(name))
	dst, err := os.OpenFile(filepath.Join(dir, file), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, "", fmt.Errorf("creating audio file: %w", err)
	}

	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst.Name())
		return 0, "", fmt.Errorf("writing audio file: %w", err)
	}
	return n, string(bucket) + "/" + file, nil
}
