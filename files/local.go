package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/padraicbc/library/apperr"
)

// Local keeps artifacts in a directory. All access goes through an os.Root,
// so no key can resolve outside that directory, symlinks included.
type Local struct {
	dir  string
	root *os.Root
}

// NewLocal opens (creating if needed) the storage directory.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open upload dir: %w", err)
	}
	return &Local{dir: dir, root: root}, nil
}

// Dir returns the storage directory.
func (l *Local) Dir() string { return l.dir }

// Close releases the directory handle.
func (l *Local) Close() error { return l.root.Close() }

// Create writes r to a new file; an existing file yields ErrExists.
func (l *Local) Create(ctx context.Context, key Key, r io.Reader) error {
	f, err := l.root.OpenFile(key.String(), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ErrExists
		}
		return fmt.Errorf("create %s: %w", key, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = l.root.Remove(key.String())
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		_ = l.root.Remove(key.String())
		return fmt.Errorf("close %s: %w", key, err)
	}
	return nil
}

// Open returns the regular file stored under key.
func (l *Local) Open(ctx context.Context, key Key) (io.ReadCloser, error) {
	f, err := l.root.Open(key.String())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		// Includes links that resolve outside the root.
		return nil, fmt.Errorf("%w: %v", apperr.ErrNotFound, err)
	}

	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat %s: %w", key, err)
	}
	if !st.Mode().IsRegular() {
		_ = f.Close()
		return nil, apperr.ErrNotFound
	}
	return f, nil
}

// Remove deletes the file. A missing file is not an error.
func (l *Local) Remove(ctx context.Context, key Key) error {
	if err := l.root.Remove(key.String()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}
