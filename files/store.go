package files

import (
	"context"
	"errors"
	"io"
	"mime"
	"path"
)

// ErrExists is returned by Create when the key is already taken.
var ErrExists = errors.New("artifact already exists")

// Store is a flat namespace of artifacts.
type Store interface {
	// Create writes r under key. It never overwrites: an existing key yields ErrExists.
	Create(ctx context.Context, key Key, r io.Reader) error
	// Open streams the artifact. A missing key yields apperr.ErrNotFound.
	Open(ctx context.Context, key Key) (io.ReadCloser, error)
	// Remove deletes the artifact. A missing key is not an error.
	Remove(ctx context.Context, key Key) error
}

// ContentType guesses the media type from the key's extension.
func ContentType(key Key) string {
	if ct := mime.TypeByExtension(path.Ext(key.String())); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
