package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/padraicbc/library/apperr"
	bundb "github.com/padraicbc/library/db"
	"github.com/padraicbc/library/models"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	db, err := bundb.OpenSQLite(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, bundb.CreateTables(context.Background(), db))
	return db
}

func TestUsers_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	users := NewUsers(newTestDB(t))

	u := &models.User{Username: "alice", Email: "a@x.com", Password: "hash"}
	require.NoError(t, users.Create(ctx, u))
	require.NotZero(t, u.ID)

	got, err := users.ByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "hash", got.Password)

	got, err = users.ByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got.Email)

	ok, err := users.Exists(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUsers_UsernameIsCaseSensitive(t *testing.T) {
	ctx := context.Background()
	users := NewUsers(newTestDB(t))

	require.NoError(t, users.Create(ctx, &models.User{Username: "alice", Email: "a@x.com", Password: "h"}))
	require.NoError(t, users.Create(ctx, &models.User{Username: "Alice", Email: "b@x.com", Password: "h"}))

	_, err := users.ByUsername(ctx, "ALICE")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUsers_CreateConflicts(t *testing.T) {
	ctx := context.Background()
	users := NewUsers(newTestDB(t))
	require.NoError(t, users.Create(ctx, &models.User{Username: "alice", Email: "a@x.com", Password: "h"}))

	err := users.Create(ctx, &models.User{Username: "alice", Email: "b@y.com", Password: "h"})
	field, ok := apperr.IsConflict(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "username", field)

	err = users.Create(ctx, &models.User{Username: "bob", Email: "a@x.com", Password: "h"})
	field, ok = apperr.IsConflict(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "email", field)
}

func TestUsers_ConcurrentSameUsername(t *testing.T) {
	ctx := context.Background()
	users := NewUsers(newTestDB(t))

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := users.Create(ctx, &models.User{
				Username: "alice",
				Email:    string(rune('a'+i)) + "@x.com",
				Password: "h",
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if _, c := apperr.IsConflict(err); c {
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflicts)
}

func TestUsers_ListOmitsPassword(t *testing.T) {
	ctx := context.Background()
	users := NewUsers(newTestDB(t))
	require.NoError(t, users.Create(ctx, &models.User{Username: "alice", Email: "a@x.com", Password: "h1"}))
	require.NoError(t, users.Create(ctx, &models.User{Username: "bob", Email: "b@x.com", Password: "h2"}))

	members, err := users.List(ctx)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "alice", members[0].Username)
	assert.Equal(t, "b@x.com", members[1].Email)
}

func TestUsers_Delete(t *testing.T) {
	ctx := context.Background()
	users := NewUsers(newTestDB(t))
	u := &models.User{Username: "alice", Email: "a@x.com", Password: "h"}
	require.NoError(t, users.Create(ctx, u))

	removed, err := users.Delete(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = users.Delete(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = users.ByID(ctx, u.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestBooks_CRUD(t *testing.T) {
	ctx := context.Background()
	books := NewBooks(newTestDB(t))

	list, err := books.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	b1 := &models.Book{Title: "One", Filename: "one.pdf"}
	b2 := &models.Book{Title: "Two", Filename: "two.pdf"}
	require.NoError(t, books.Create(ctx, b1))
	require.NoError(t, books.Create(ctx, b2))

	list, err = books.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "One", list[0].Title)
	assert.Equal(t, "two.pdf", list[1].Filename)

	got, err := books.ByID(ctx, b2.ID)
	require.NoError(t, err)
	assert.Equal(t, "Two", got.Title)

	removed, err := books.Delete(ctx, b1.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = books.ByID(ctx, b1.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	removed, err = books.Delete(ctx, 999)
	require.NoError(t, err)
	assert.False(t, removed)
}
