// Package ree implements the R collaborator: a positional transport
// to the untrusted normal-world backing store, the single channel
// through which every encrypted block/meta/counter byte crosses the
// trust boundary.
package ree

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// FileDescriptor is an open handle to one backing-store object,
// addressed positionally rather than by stream cursor — the engine
// always knows the absolute offset it wants to touch.
type FileDescriptor interface {
	ReadAt(buf []byte, offset int64) (n int, err error)
	WriteAt(buf []byte, offset int64) (n int, err error)
	Sync() error
	Close() error
}

// Transport creates, renames and removes backing-store objects by
// path. Paths are opaque to the transport; objectfs is responsible
// for naming.
type Transport interface {
	Open(path string, create bool) (FileDescriptor, error)
	Rename(oldPath, newPath string, overwrite bool) error
	Remove(path string) error
}

// LocalTransport backs every object with a real file under root,
// generalizing storage.FileStore's directory-creation and
// sentinel-error-wrapping idiom from content-addressed Put/Get to
// positional ReadAt/WriteAt.
type LocalTransport struct {
	root string
	mu   sync.Mutex
	log  zerolog.Logger
}

// NewLocalTransport creates a LocalTransport rooted at root. The
// directory is created if it does not exist.
func NewLocalTransport(root string, log zerolog.Logger) (*LocalTransport, error) {
	if root == "" {
		return nil, ErrInvalidRoot
	}
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return &LocalTransport{root: root, log: log}, nil
}

func (t *LocalTransport) fullPath(path string) string {
	return filepath.Join(t.root, filepath.FromSlash(path))
}

// Open opens path, creating the parent directory and the file itself
// when create is true. When create is false and the file does not
// exist, ErrNotFound is returned.
func (t *LocalTransport) Open(path string, create bool) (FileDescriptor, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	full := t.fullPath(path)

	flags := os.O_RDWR
	if create {
		if err := os.MkdirAll(filepath.Dir(full), 0700); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
		}
		flags |= os.O_CREATE
	}

	f, err := os.OpenFile(full, flags, 0600)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		t.log.Error().Err(err).Str("path", path).Msg("ree: open failed")
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	return &localFile{f: f}, nil
}

// Rename moves oldPath to newPath. When overwrite is false and
// newPath already exists, ErrAlreadyExists is returned.
func (t *LocalTransport) Rename(oldPath, newPath string, overwrite bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	oldFull, newFull := t.fullPath(oldPath), t.fullPath(newPath)

	if !overwrite {
		if _, err := os.Stat(newFull); err == nil {
			return ErrAlreadyExists
		}
	}

	if err := os.MkdirAll(filepath.Dir(newFull), 0700); err != nil {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	if err := os.Rename(oldFull, newFull); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		t.log.Error().Err(err).Str("old", oldPath).Str("new", newPath).Msg("ree: rename failed")
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return nil
}

// Remove deletes path. Removing a path that does not exist returns
// ErrNotFound.
func (t *LocalTransport) Remove(path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	err := os.Remove(t.fullPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		t.log.Error().Err(err).Str("path", path).Msg("ree: remove failed")
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return nil
}

// localFile adapts *os.File to FileDescriptor. A short ReadAt at or
// past EOF returns (0, nil) rather than io.EOF: objectfs treats a
// zero-length read at a slot offset as "slot empty," matching the
// original REE filesystem's short-read-is-not-an-error convention.
type localFile struct {
	f *os.File
}

func (l *localFile) ReadAt(buf []byte, offset int64) (int, error) {
	n, err := l.f.ReadAt(buf, offset)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		return n, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return n, nil
}

func (l *localFile) WriteAt(buf []byte, offset int64) (int, error) {
	n, err := l.f.WriteAt(buf, offset)
	if err != nil {
		return n, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return n, nil
}

func (l *localFile) Sync() error {
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return nil
}

func (l *localFile) Close() error {
	if err := l.f.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return nil
}
