package store

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/padraicbc/library/apperr"
	"github.com/padraicbc/library/models"
)

// Users is the users collection.
type Users struct {
	db bun.IDB
}

// NewUsers returns a Users collection backed by db.
func NewUsers(db bun.IDB) *Users {
	return &Users{db: db}
}

// Create inserts u and fills in its ID. A duplicate username or email yields
// *apperr.ConflictError with Field set to the offending column.
func (s *Users) Create(ctx context.Context, u *models.User) error {
	_, err := s.db.NewInsert().Model(u).Exec(ctx)
	if err == nil {
		return nil
	}
	if !isUniqueViolation(err) {
		return fmt.Errorf("insert user: %w", err)
	}

	// The constraint names differ per dialect, so ask which value is taken.
	taken, qerr := s.db.NewSelect().Model((*models.User)(nil)).
		Where("username = ?", u.Username).
		Exists(ctx)
	if qerr != nil {
		return fmt.Errorf("insert user: %w", qerr)
	}
	if taken {
		return &apperr.ConflictError{Field: "username"}
	}
	return &apperr.ConflictError{Field: "email"}
}

// ByUsername returns the user with the given username.
func (s *Users) ByUsername(ctx context.Context, username string) (*models.User, error) {
	u := &models.User{}
	err := s.db.NewSelect().Model(u).
		Where("u.username = ?", username).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "user by username")
	}
	return u, nil
}

// ByID returns the user with the given id.
func (s *Users) ByID(ctx context.Context, id int64) (*models.User, error) {
	u := &models.User{}
	err := s.db.NewSelect().Model(u).
		Where("u.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "user by id")
	}
	return u, nil
}

// Exists reports whether a user with the given id is present.
func (s *Users) Exists(ctx context.Context, id int64) (bool, error) {
	ok, err := s.db.NewSelect().Model((*models.User)(nil)).
		Where("id = ?", id).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("user exists: %w", err)
	}
	return ok, nil
}

// List returns every user without the password hash, ordered by id.
func (s *Users) List(ctx context.Context) ([]models.Member, error) {
	var users []models.User
	err := s.db.NewSelect().Model(&users).
		Column("u.id", "u.username", "u.email").
		OrderExpr("u.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	members := make([]models.Member, len(users))
	for i, u := range users {
		members[i] = models.Member{ID: u.ID, Username: u.Username, Email: u.Email}
	}
	return members, nil
}

// Delete removes the user with the given id and reports whether a row was removed.
func (s *Users) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.NewDelete().Model((*models.User)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	return affected(res)
}
