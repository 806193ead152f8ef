// cmd/migrate/main.go
// Imports users and books from a legacy library database into the configured
// database, and optionally copies the legacy upload folder into the configured
// file store. Re-runs are idempotent.
//
// Usage:
//
//	go run ./cmd/migrate -from old/library.db -uploads old/uploads
//	go run ./cmd/migrate -from-driver mysql -from "user:pass@tcp(host:3306)/library"
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	_ "modernc.org/sqlite"

	"github.com/padraicbc/library/config"
	bundb "github.com/padraicbc/library/db"
	"github.com/padraicbc/library/files"
	"github.com/padraicbc/library/models"
)

const batchSize = 500

func main() {
	fromDriver := flag.String("from-driver", "sqlite", "legacy database driver: sqlite or mysql")
	from := flag.String("from", "library.db", "legacy database: sqlite file or mysql DSN")
	uploads := flag.String("uploads", "", "legacy upload folder to copy into the file store (optional)")
	flag.Parse()

	ctx := context.Background()
	cfg := config.Load()

	// --- legacy source ---
	src, err := openSource(ctx, *fromDriver, *from)
	if err != nil {
		log.Fatalf("open legacy %s: %v", *fromDriver, err)
	}
	defer src.Close()
	log.Printf("connected to legacy %s database", *fromDriver)

	// --- destination ---
	dst := bundb.Setup(cfg)
	defer dst.Close()
	if err := bundb.CreateTables(ctx, dst); err != nil {
		log.Fatalf("create tables: %v", err)
	}
	log.Printf("connected to %s", cfg.DBDriver)

	var artifacts []artifact
	steps := []struct {
		name string
		fn   func() (int, error)
	}{
		{"users", func() (int, error) { return migrateUsers(ctx, src, dst) }},
		{"books", func() (n int, err error) {
			artifacts, err = migrateBooks(ctx, src, dst)
			return len(artifacts), err
		}},
	}
	for _, s := range steps {
		n, err := s.fn()
		if err != nil {
			log.Fatalf("migrate %s: %v", s.name, err)
		}
		log.Printf("%-10s  %d rows processed", s.name, n)
	}

	resetSequences(ctx, dst)

	if *uploads != "" {
		store, err := files.FromConfig(ctx, cfg)
		if err != nil {
			log.Fatalf("open file store: %v", err)
		}
		defer store.Close()

		n, err := copyArtifacts(ctx, *uploads, store, dst, artifacts)
		if err != nil {
			log.Fatalf("copy artifacts: %v", err)
		}
		log.Printf("%-10s  %d files copied", "uploads", n)
	}
	log.Println("migration complete")
}

func openSource(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	switch driver {
	case "sqlite", "mysql":
	default:
		return nil, fmt.Errorf("unknown driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// --- helpers ---

func present(ns ...sql.NullString) bool {
	for _, n := range ns {
		if !n.Valid || strings.TrimSpace(n.String) == "" {
			return false
		}
	}
	return true
}

// bulkInsert inserts a batch, skipping rows that already exist (idempotent re-runs).
func bulkInsert[T any](ctx context.Context, db bun.IDB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := db.NewInsert().Model(&rows).On("CONFLICT DO NOTHING").Exec(ctx)
	return err
}

// --- per-table migrations ---

// migrateUsers copies users with their password hashes unchanged; legacy
// werkzeug hashes keep verifying after the import.
func migrateUsers(ctx context.Context, src *sql.DB, dst bun.IDB) (int, error) {
	rows, err := src.QueryContext(ctx, "SELECT id, username, email, password FROM users ORDER BY id")
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var batch []models.User
	total := 0
	for rows.Next() {
		var (
			id                        int64
			username, email, password sql.NullString
		)
		if err := rows.Scan(&id, &username, &email, &password); err != nil {
			return total, err
		}
		if !present(username, email, password) {
			log.Printf("users: skipping id %d, incomplete row", id)
			continue
		}
		batch = append(batch, models.User{
			ID:       id,
			Username: strings.TrimSpace(username.String),
			Email:    strings.TrimSpace(email.String),
			Password: password.String,
		})
		if len(batch) >= batchSize {
			if err := bulkInsert(ctx, dst, batch); err != nil {
				return total, err
			}
			total += len(batch)
			batch = batch[:0]
		}
	}
	if err := rows.Err(); err != nil {
		return total, err
	}
	if err := bulkInsert(ctx, dst, batch); err != nil {
		return total, err
	}
	return total + len(batch), nil
}

// Attempts at finding a free key for a copied artifact.
const maxKeyAttempts = 5

var newSuffix = func() string { return uuid.NewString()[:8] }

// artifact maps a legacy upload to the book row that references it.
type artifact struct {
	id     int64
	legacy string
	key    files.Key
	// fresh is set for rows inserted by this run. Their key may still change
	// if the file store already holds it.
	fresh bool
}

// migrateBooks copies books, renaming filenames that are not valid storage
// keys. Every imported row gets a key no other row uses, so deleting one book
// never removes another book's artifact. Rows imported by an earlier run keep
// their key. It returns the artifacts the rows reference.
func migrateBooks(ctx context.Context, src *sql.DB, dst bun.IDB) ([]artifact, error) {
	var existing []models.Book
	if err := dst.NewSelect().Model(&existing).Scan(ctx); err != nil {
		return nil, fmt.Errorf("existing books: %w", err)
	}
	byID := make(map[int64]models.Book, len(existing))
	used := make(map[string]bool, len(existing))
	for _, b := range existing {
		byID[b.ID] = b
		used[b.Filename] = true
	}

	rows, err := src.QueryContext(ctx, "SELECT id, title, filename FROM books ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		batch []models.Book
		arts  []artifact
	)
	for rows.Next() {
		var (
			id              int64
			title, filename sql.NullString
		)
		if err := rows.Scan(&id, &title, &filename); err != nil {
			return arts, err
		}
		if !present(title, filename) {
			log.Printf("books: skipping id %d, incomplete row", id)
			continue
		}
		t := strings.TrimSpace(title.String)

		if b, ok := byID[id]; ok {
			if b.Title != t {
				log.Printf("books: skipping id %d, already used by %q", id, b.Title)
				continue
			}
			key, err := files.ParseKey(b.Filename)
			if err != nil {
				log.Printf("books: id %d holds unusable filename %q", id, b.Filename)
				continue
			}
			arts = append(arts, artifact{id: id, legacy: filename.String, key: key})
			continue
		}

		key, err := files.ParseKey(filename.String)
		if err != nil {
			if key, err = files.Sanitize(filename.String); err != nil {
				log.Printf("books: skipping id %d, unusable filename %q", id, filename.String)
				continue
			}
		}
		for used[key.String()] {
			key = key.WithSuffix(newSuffix())
		}
		used[key.String()] = true
		if key.String() != filename.String {
			log.Printf("books: id %d filename %q stored as %q", id, filename.String, key)
		}

		batch = append(batch, models.Book{ID: id, Title: t, Filename: key.String()})
		arts = append(arts, artifact{id: id, legacy: filename.String, key: key, fresh: true})
		if len(batch) >= batchSize {
			if err := bulkInsert(ctx, dst, batch); err != nil {
				return arts, err
			}
			batch = batch[:0]
		}
	}
	if err := rows.Err(); err != nil {
		return arts, err
	}
	return arts, bulkInsert(ctx, dst, batch)
}

// copyArtifacts copies legacy uploads into store. Missing legacy files are
// skipped, as are files an earlier run already copied.
func copyArtifacts(ctx context.Context, dir string, store files.Store, dst bun.IDB, arts []artifact) (int, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return 0, err
	}
	defer root.Close()

	n := 0
	for _, a := range arts {
		copied, err := copyArtifact(ctx, root, store, dst, a)
		if err != nil {
			return n, fmt.Errorf("%s: %w", a.legacy, err)
		}
		if copied {
			n++
		}
	}
	return n, nil
}

// copyArtifact stores one legacy file. A fresh row whose key is taken in the
// store moves to a suffixed key, and the row is updated to match.
func copyArtifact(ctx context.Context, root *os.Root, store files.Store, dst bun.IDB, a artifact) (bool, error) {
	f, err := root.Open(a.legacy)
	if err != nil {
		log.Printf("uploads: %s: %v", a.legacy, err)
		return false, nil
	}
	defer f.Close()

	key := a.key
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		err := store.Create(ctx, key, f)
		switch {
		case err == nil:
			if key != a.key {
				if _, err := dst.NewUpdate().Model((*models.Book)(nil)).
					Set("filename = ?", key.String()).
					Where("id = ?", a.id).
					Exec(ctx); err != nil {
					_ = store.Remove(ctx, key)
					return false, fmt.Errorf("update book %d: %w", a.id, err)
				}
				log.Printf("uploads: book %d stored as %s, %s was taken", a.id, key, a.key)
			}
			return true, nil
		case !errors.Is(err, files.ErrExists):
			return false, err
		case !a.fresh:
			log.Printf("uploads: %s already present", key)
			return false, nil
		}

		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return false, fmt.Errorf("rewind: %w", err)
		}
		key = a.key.WithSuffix(newSuffix())
	}
	return false, fmt.Errorf("no free storage key after %d attempts", maxKeyAttempts)
}

// resetSequences advances postgres id sequences past the imported ids.
func resetSequences(ctx context.Context, db *bun.DB) {
	if db.Dialect().Name() != dialect.PG {
		return
	}
	seqs := []struct{ seq, table, col string }{
		{"users_id_seq", "users", "id"},
		{"books_id_seq", "books", "id"},
	}
	for _, s := range seqs {
		q := fmt.Sprintf(
			"SELECT setval('%s', COALESCE((SELECT MAX(%s) FROM %s), 1))",
			s.seq, s.col, s.table,
		)
		if _, err := db.ExecContext(ctx, q); err != nil {
			log.Printf("reset seq %s: %v", s.seq, err)
		}
	}
	log.Println("sequences reset")
}
