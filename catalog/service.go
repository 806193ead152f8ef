// Package catalog manages books: a database row plus the stored artifact it names.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/padraicbc/library/apperr"
	"github.com/padraicbc/library/files"
	"github.com/padraicbc/library/logger"
	"github.com/padraicbc/library/models"
)

const (
	maxTitleLen = 500
	// Attempts at finding a free key before an upload gives up.
	maxKeyAttempts = 5
)

// BookStore is the part of the books collection the Service needs.
type BookStore interface {
	Create(ctx context.Context, b *models.Book) error
	List(ctx context.Context) ([]models.Book, error)
	ByID(ctx context.Context, id int64) (*models.Book, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// UploadInput is a validated upload request.
type UploadInput struct {
	title   string
	key     files.Key
	content io.Reader
}

// Service implements listing, uploading, deleting and fetching books.
type Service struct {
	books   BookStore
	files   files.Store
	allowed map[string]bool
	log     *zap.Logger

	suffix func() string
}

// NewService returns a Service accepting uploads whose extension is in allowed.
func NewService(books BookStore, fs files.Store, allowed []string, log *zap.Logger) *Service {
	set := make(map[string]bool, len(allowed))
	for _, ext := range allowed {
		set[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}
	return &Service{
		books:   books,
		files:   fs,
		allowed: set,
		log:     logger.OrNop(log).Named("catalog"),
		suffix:  func() string { return uuid.NewString()[:8] },
	}
}

// AllowedExtensions returns the accepted extensions, sorted.
func (s *Service) AllowedExtensions() []string {
	out := make([]string, 0, len(s.allowed))
	for ext := range s.allowed {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// NewUploadInput validates an upload. The extension of filename is compared
// case-insensitively against the allowed set; the storage key is derived from
// filename by files.Sanitize.
func (s *Service) NewUploadInput(title, filename string, content io.Reader) (UploadInput, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return UploadInput{}, apperr.Invalid("title", "is required")
	}
	if len(title) > maxTitleLen {
		return UploadInput{}, apperr.Invalid("title", "is too long")
	}
	if content == nil || filename == "" {
		return UploadInput{}, apperr.Invalid("file", "is required")
	}

	i := strings.LastIndexByte(filename, '.')
	if i < 0 {
		return UploadInput{}, &apperr.UnsupportedFileTypeError{}
	}
	ext := strings.ToLower(filename[i+1:])
	if !s.allowed[ext] {
		return UploadInput{}, &apperr.UnsupportedFileTypeError{Ext: ext}
	}

	key, err := files.Sanitize(filename)
	if err != nil {
		return UploadInput{}, err
	}
	if key.Ext() != ext {
		return UploadInput{}, apperr.Invalid("file", "name has no usable characters")
	}
	return UploadInput{title: title, key: key, content: content}, nil
}

// ListBooks returns every book.
func (s *Service) ListBooks(ctx context.Context) ([]models.Book, error) {
	return s.books.List(ctx)
}

// UploadBook stores the artifact and then the row referencing it. An existing
// artifact is never overwritten: the key gets a random suffix instead. If the
// row cannot be written the artifact is removed again.
func (s *Service) UploadBook(ctx context.Context, in UploadInput) (*models.Book, error) {
	key, err := s.store(ctx, in)
	if err != nil {
		return nil, err
	}

	b := &models.Book{Title: in.title, Filename: key.String()}
	if err := s.books.Create(ctx, b); err != nil {
		if rmErr := s.files.Remove(ctx, key); rmErr != nil {
			s.log.Warn("orphaned artifact after failed insert", zap.String("key", key.String()), zap.Error(rmErr))
		}
		return nil, err
	}

	s.log.Info("book uploaded", zap.Int64("book_id", b.ID), zap.String("key", key.String()))
	return b, nil
}

func (s *Service) store(ctx context.Context, in UploadInput) (files.Key, error) {
	key := in.key
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		err := s.files.Create(ctx, key, in.content)
		if err == nil {
			return key, nil
		}
		if !errors.Is(err, files.ErrExists) {
			return files.Key{}, err
		}

		s.log.Debug("storage key taken", zap.String("key", key.String()))
		if seeker, ok := in.content.(io.Seeker); ok {
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return files.Key{}, fmt.Errorf("rewind upload: %w", err)
			}
		}
		key = in.key.WithSuffix(s.suffix())
	}
	return files.Key{}, fmt.Errorf("no free storage key for %s after %d attempts", in.key, maxKeyAttempts)
}

// DeleteBook removes the artifact, then the row. A missing book or a missing
// artifact is not an error; the result reports whether a row was removed.
func (s *Service) DeleteBook(ctx context.Context, id int64) (bool, error) {
	b, err := s.books.ByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	if key, err := files.ParseKey(b.Filename); err != nil {
		s.log.Warn("book references an invalid key, leaving storage alone",
			zap.Int64("book_id", b.ID), zap.String("filename", b.Filename))
	} else if err := s.files.Remove(ctx, key); err != nil {
		return false, err
	}

	removed, err := s.books.Delete(ctx, id)
	if err != nil {
		s.log.Warn("artifact removed but row delete failed", zap.Int64("book_id", id), zap.Error(err))
		return false, err
	}
	s.log.Info("book deleted", zap.Int64("book_id", id), zap.String("key", b.Filename))
	return removed, nil
}

// FetchFile opens the artifact stored under filename. Names that are not in
// sanitized form are rejected with *apperr.ValidationError before any lookup.
func (s *Service) FetchFile(ctx context.Context, filename string) (io.ReadCloser, files.Key, error) {
	key, err := files.ParseKey(filename)
	if err != nil {
		return nil, files.Key{}, err
	}
	rc, err := s.files.Open(ctx, key)
	if err != nil {
		return nil, files.Key{}, err
	}
	return rc, key, nil
}
