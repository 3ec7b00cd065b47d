// Package sqlite stores Thing records in a local SQLite database.
//
// It suits single-host deployments where several Things share one machine.
// Each handle opens its own database connection pool.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/safething/safething-go/pkg/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	address  TEXT PRIMARY KEY,
	type_tag INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS fields (
	address TEXT NOT NULL REFERENCES records(address),
	key     TEXT NOT NULL,
	value   TEXT NOT NULL,
	version INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (address, key)
);
`

// Network opens handles on a SQLite database file.
type Network struct {
	path string
}

// New returns a Network backed by the database at path.
func New(path string) *Network {
	return &Network{path: path}
}

// Open opens and migrates the database.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	dsn := "file:" + filepath.ToSlash(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Connect opens a new handle. Credentials are not checked; access to the
// database file is the access boundary.
func (n *Network) Connect(ctx context.Context, _ store.Credentials) (store.Handle, error) {
	db, err := Open(ctx, n.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrConnection, err)
	}
	return &handle{db: db}, nil
}

var _ store.Network = (*Network)(nil)

type handle struct {
	db *sql.DB
}

var _ store.Handle = (*handle)(nil)

func (h *handle) PutRecord(ctx context.Context, address string, typeTag uint64) error {
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO records(address, type_tag) VALUES(?, ?) ON CONFLICT(address) DO NOTHING`,
		address, int64(typeTag))
	if err != nil {
		return fmt.Errorf("put record: %w: %w", store.ErrNetwork, err)
	}
	return nil
}

func (h *handle) GetField(ctx context.Context, address, key string) (string, error) {
	var value string
	err := h.db.QueryRowContext(ctx,
		`SELECT value FROM fields WHERE address = ? AND key = ?`, address, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("field %s: %w", key, store.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w: %w", key, store.ErrNetwork, err)
	}
	return value, nil
}

func (h *handle) exists(ctx context.Context, address string) error {
	var one int
	err := h.db.QueryRowContext(ctx, `SELECT 1 FROM records WHERE address = ?`, address).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("record %s: %w", address, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("record %s: %w: %w", address, store.ErrNetwork, err)
	}
	return nil
}

func (h *handle) SetField(ctx context.Context, address, key, value string) error {
	if err := h.exists(ctx, address); err != nil {
		return err
	}
	_, err := h.db.ExecContext(ctx, `
INSERT INTO fields(address, key, value, version) VALUES(?, ?, ?, 0)
ON CONFLICT(address, key) DO UPDATE SET value = excluded.value, version = fields.version + 1`,
		address, key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w: %w", key, store.ErrNetwork, err)
	}
	return nil
}

func (h *handle) ListFields(ctx context.Context, address string) ([]store.Field, error) {
	if err := h.exists(ctx, address); err != nil {
		return nil, err
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT key, value FROM fields WHERE address = ? ORDER BY key`, address)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w: %w", address, store.ErrNetwork, err)
	}
	defer rows.Close()

	var fields []store.Field
	for rows.Next() {
		var f store.Field
		if err := rows.Scan(&f.Key, &f.Value); err != nil {
			return nil, fmt.Errorf("list %s: %w: %w", address, store.ErrNetwork, err)
		}
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w: %w", address, store.ErrNetwork, err)
	}
	return fields, nil
}

// Version returns the stored version of a field.
func (h *handle) Version(ctx context.Context, address, key string) (uint64, error) {
	var v int64
	err := h.db.QueryRowContext(ctx,
		`SELECT version FROM fields WHERE address = ? AND key = ?`, address, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, store.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %w", store.ErrNetwork, err)
	}
	return uint64(v), nil
}

func (h *handle) Close() error {
	return h.db.Close()
}
