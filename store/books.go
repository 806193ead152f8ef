package store

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/padraicbc/library/models"
)

// Books is the books collection.
type Books struct {
	db bun.IDB
}

// NewBooks returns a Books collection backed by db.
func NewBooks(db bun.IDB) *Books {
	return &Books{db: db}
}

// Create inserts b and fills in its ID.
func (s *Books) Create(ctx context.Context, b *models.Book) error {
	if _, err := s.db.NewInsert().Model(b).Exec(ctx); err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

// List returns every book ordered by id.
func (s *Books) List(ctx context.Context) ([]models.Book, error) {
	books := []models.Book{}
	if err := s.db.NewSelect().Model(&books).OrderExpr("b.id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// ByID returns the book with the given id.
func (s *Books) ByID(ctx context.Context, id int64) (*models.Book, error) {
	b := &models.Book{}
	err := s.db.NewSelect().Model(b).
		Where("b.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "book by id")
	}
	return b, nil
}

// Delete removes the book row with the given id and reports whether a row was removed.
func (s *Books) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.NewDelete().Model((*models.Book)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("delete book: %w", err)
	}
	return affected(res)
}
