package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/kk-code-lab/packsync/internal/manifest"
)

// SQLiteStore persists the manifest in a SQLite database. The whole manifest
// is replaced inside one transaction, so a reader never observes a partially
// applied update.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the manifest database at the given path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("store: db path required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db}
	if err := s.applyPragmas(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) applyPragmas(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA synchronous=FULL"); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		return err
	}
	return nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS manifest (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	last_update_ms INTEGER NOT NULL
)`); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS content_groups (
	name TEXT PRIMARY KEY,
	pos INTEGER NOT NULL
)`); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS bundles (
	group_name TEXT NOT NULL REFERENCES content_groups(name) ON DELETE CASCADE,
	name TEXT NOT NULL,
	pos INTEGER NOT NULL,
	fetch_url TEXT NOT NULL,
	size INTEGER NOT NULL,
	hash BLOB,
	part_index INTEGER NOT NULL,
	part_total INTEGER NOT NULL,
	PRIMARY KEY (group_name, name)
)`); err != nil {
		return err
	}
	return tx.Commit()
}

// Exists reports whether a manifest record is present.
func (s *SQLiteStore) Exists() bool {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM manifest WHERE id = 1").Scan(&n)
	return err == nil && n > 0
}

// Load reconstructs the stored manifest in its original iteration order.
func (s *SQLiteStore) Load(ctx context.Context) (*manifest.Manifest, error) {
	m := &manifest.Manifest{}
	err := s.db.QueryRowContext(ctx, "SELECT last_update_ms FROM manifest WHERE id = 1").Scan(&m.LastUpdate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT name FROM content_groups ORDER BY pos")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		m.Groups = append(m.Groups, manifest.ContentGroup{Name: name})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range m.Groups {
		bundles, err := s.loadBundles(ctx, m.Groups[i].Name)
		if err != nil {
			return nil, err
		}
		m.Groups[i].Bundles = bundles
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return m, nil
}

func (s *SQLiteStore) loadBundles(ctx context.Context, group string) ([]manifest.Bundle, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT name, fetch_url, size, hash, part_index, part_total
FROM bundles WHERE group_name = ? ORDER BY pos`, group)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var bundles []manifest.Bundle
	for rows.Next() {
		var b manifest.Bundle
		var size int64
		if err := rows.Scan(&b.Name, &b.FetchURL, &size, &b.Hash, &b.PartIndex, &b.PartCount); err != nil {
			return nil, err
		}
		if size < 0 {
			return nil, fmt.Errorf("%w: negative bundle size", ErrCorrupt)
		}
		b.Size = uint64(size)
		bundles = append(bundles, b)
	}
	return bundles, rows.Err()
}

// Save replaces the stored manifest in a single transaction.
func (s *SQLiteStore) Save(ctx context.Context, m *manifest.Manifest) error {
	if m == nil {
		return errors.New("store: nil manifest")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM bundles"); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM content_groups"); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `
INSERT INTO manifest (id, last_update_ms) VALUES (1, ?)
ON CONFLICT (id) DO UPDATE SET last_update_ms = excluded.last_update_ms`, int64(m.LastUpdate)); err != nil {
		return err
	}
	for gi, g := range m.Groups {
		if _, err = tx.ExecContext(ctx, "INSERT INTO content_groups (name, pos) VALUES (?, ?)", g.Name, gi); err != nil {
			return err
		}
		for bi, b := range g.Bundles {
			if _, err = tx.ExecContext(ctx, `
INSERT INTO bundles (group_name, name, pos, fetch_url, size, hash, part_index, part_total)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, g.Name, b.Name, bi, b.FetchURL, int64(b.Size), b.Hash, b.PartIndex, b.PartCount); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}
