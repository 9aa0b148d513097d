// Package sqlite keeps documents in a single SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/walteh/docpatch/pkg/config"
	"github.com/walteh/docpatch/pkg/store"
	"gitlab.com/tozd/go/errors"

	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed schema.sql
var schema string

func init() {
	store.Register("sqlite", func(ctx context.Context, cfg config.Store) (store.Store, error) {
		return New(ctx, cfg.Path)
	})
}

// Store is a SQLite backed store
type Store struct {
	db   *sql.DB
	path string
}

// New opens (or creates) docpatch.db inside dataDir
func New(ctx context.Context, dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, errors.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "docpatch.db")

	// WAL mode lets readers proceed during a write
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.Errorf("opening database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Errorf("applying schema: %w", err)
	}

	zerolog.Ctx(ctx).Debug().Str("path", dbPath).Msg("opened sqlite store")

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Get(ctx context.Context, key string) (*store.Object, error) {
	obj := &store.Object{Key: key}
	err := s.db.QueryRowContext(ctx,
		`SELECT content, content_type, checksum FROM objects WHERE key = ?`, key,
	).Scan(&obj.Content, &obj.ContentType, &obj.Checksum)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Errorf("getting %s: %w", key, store.ErrNotFound)
	}
	if err != nil {
		return nil, errors.Errorf("querying object: %w", err)
	}
	return obj, nil
}

func (s *Store) Put(ctx context.Context, key string, content []byte, opts store.PutOptions) error {
	if opts.IfMatch != "" {
		return s.putIfMatch(ctx, key, content, opts)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO objects (key, content, content_type, checksum, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			content = excluded.content,
			content_type = excluded.content_type,
			checksum = excluded.checksum,
			updated_at = excluded.updated_at
	`, key, content, opts.ContentType, store.Checksum(content))
	if err != nil {
		return errors.Errorf("writing object: %w", err)
	}
	return nil
}

// putIfMatch compares and swaps in one statement so concurrent writers
// holding the same checksum cannot both succeed
func (s *Store) putIfMatch(ctx context.Context, key string, content []byte, opts store.PutOptions) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE objects
		SET content = ?, content_type = ?, checksum = ?, updated_at = CURRENT_TIMESTAMP
		WHERE key = ? AND checksum = ?
	`, content, opts.ContentType, store.Checksum(content), key, opts.IfMatch)
	if err != nil {
		return errors.Errorf("writing object: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Errorf("checking updated rows: %w", err)
	}
	if n == 1 {
		return nil
	}

	current, err := s.Get(ctx, key)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if current == nil {
		return store.CheckMatch(key, nil, opts.IfMatch)
	}
	return errors.Errorf("%w: %s has checksum %s, expected %s", store.ErrConflict, key, current.Checksum, opts.IfMatch)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM objects WHERE key = ?`, key)
	if err != nil {
		return errors.Errorf("deleting object: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Errorf("checking deleted rows: %w", err)
	}
	if n == 0 {
		return errors.Errorf("deleting %s: %w", key, store.ErrNotFound)
	}
	return nil
}
