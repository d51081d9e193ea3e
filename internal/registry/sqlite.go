package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/Faultbox/midgard-forge/pkg/formats"
)

// SQLite persists allocations so IDs survive across builds.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the registry database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS counters (
			name  TEXT PRIMARY KEY,
			value INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS maps (
			name TEXT PRIMARY KEY,
			id   INTEGER NOT NULL UNIQUE
		);`,
		`CREATE TABLE IF NOT EXISTS tile_blocks (
			map   TEXT NOT NULL,
			x     INTEGER NOT NULL,
			y     INTEGER NOT NULL,
			first INTEGER NOT NULL,
			count INTEGER NOT NULL,
			PRIMARY KEY (map, x, y)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// next advances a named counter by n inside tx and returns its prior value.
func next(ctx context.Context, tx *sql.Tx, name string, start uint32, n int) (uint32, error) {
	var v int64
	err := tx.QueryRowContext(ctx, `SELECT value FROM counters WHERE name = ?`, name).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		v = int64(start)
	} else if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO counters(name, value) VALUES(?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value`, name, v+int64(n)); err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// MapID implements Allocator.
func (s *SQLite) MapID(ctx context.Context, name string) (uint32, error) {
	if name == "" {
		return 0, fmt.Errorf("registry: empty map name")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM maps WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return uint32(id), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	newID, err := next(ctx, tx, "map", FirstMapID, 1)
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO maps(name, id) VALUES(?, ?)`, name, newID); err != nil {
		return 0, err
	}
	return newID, tx.Commit()
}

// UniqueIDs implements Allocator.
func (s *SQLite) UniqueIDs(ctx context.Context, mapName string, tile formats.TileCoord, n int) (uint32, error) {
	if n < 0 {
		return 0, fmt.Errorf("registry: negative block size %d", n)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var first, count int64
	err = tx.QueryRowContext(ctx,
		`SELECT first, count FROM tile_blocks WHERE map = ? AND x = ? AND y = ?`,
		mapName, tile.X, tile.Y).Scan(&first, &count)
	if err == nil && int(count) >= n {
		return uint32(first), nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	start, err := next(ctx, tx, "unique", FirstUniqueID, n)
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO tile_blocks(map, x, y, first, count) VALUES(?, ?, ?, ?, ?)
		 ON CONFLICT(map, x, y) DO UPDATE SET first = excluded.first, count = excluded.count`,
		mapName, tile.X, tile.Y, start, n); err != nil {
		return 0, err
	}
	return start, tx.Commit()
}

// Close implements Allocator.
func (s *SQLite) Close() error {
	return s.db.Close()
}
