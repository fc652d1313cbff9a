package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ValentinKolb/homekv/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	_ "modernc.org/sqlite"
)

var log = logger.GetLogger("store")

const schemaSQL = `
CREATE TABLE IF NOT EXISTS records (
	key   TEXT PRIMARY KEY NOT NULL,
	value BLOB NOT NULL
);`

// storeImpl keeps every record as one row of the records table
type storeImpl struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at path and prepares the schema.
// The special path ":memory:" opens a private in-memory database.
//
// The connection pool is limited to a single connection: SQLite allows one
// writer at a time and the in-memory database only exists per connection.
func Open(path string) (store.IStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	log.Infof("opened sqlite store %s", path)
	return &storeImpl{db: db}, nil
}

// placeholders returns "?, ?, ..." with n placeholders and the keys as arguments
func placeholders(keys []string) (string, []any) {
	args := make([]any, len(keys))
	for i, key := range keys {
		args[i] = key
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(keys)), ", "), args
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Get(ctx context.Context, keys ...string) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	values := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return values, nil
	}

	in, args := placeholders(keys)
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM records WHERE key IN ("+in+")", args...)
	if err != nil {
		return nil, store.WrapError(store.RetCInternalError, "query records", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key   string
			value []byte
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, store.WrapError(store.RetCInternalError, "scan record", err)
		}
		if value == nil {
			value = []byte{}
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, store.WrapError(store.RetCInternalError, "iterate records", err)
	}
	return values, nil
}

func (s *storeImpl) Set(ctx context.Context, values map[string][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO records (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value")
		if err != nil {
			return err
		}
		defer stmt.Close()

		for key, value := range values {
			if value == nil {
				value = []byte{}
			}
			if _, err := stmt.ExecContext(ctx, key, value); err != nil {
				return fmt.Errorf("write %q: %w", key, err)
			}
		}
		return nil
	})
}

func (s *storeImpl) Remove(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	in, args := placeholders(keys)
	if _, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE key IN ("+in+")", args...); err != nil {
		return store.WrapError(store.RetCInternalError, "delete records", err)
	}
	return nil
}

func (s *storeImpl) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM records"); err != nil {
		return store.WrapError(store.RetCInternalError, "clear records", err)
	}
	return nil
}

func (s *storeImpl) Close() error {
	return s.db.Close()
}

// inTx runs fn inside a transaction and commits it if fn succeeds
func (s *storeImpl) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.WrapError(store.RetCInternalError, "begin transaction", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return store.WrapError(store.RetCInternalError, "write records", err)
	}

	if err := tx.Commit(); err != nil {
		return store.WrapError(store.RetCInternalError, "commit transaction", err)
	}
	return nil
}
