package bstore

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ValentinKolb/homekv/lib/store"
	"github.com/dgraph-io/badger/v4"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("store")

// Config holds configuration for a Badger backed store.
type Config struct {
	// Path is the directory for the BadgerDB files. Ignored when InMemory is true.
	Path string
	// InMemory keeps all data in memory (no disk persistence).
	InMemory bool
	// SyncWrites fsyncs every write before returning.
	SyncWrites bool
}

// DefaultConfig returns a durable configuration for the given path.
func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		SyncWrites: true,
	}
}

// InMemoryConfig returns a configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

type storeImpl struct {
	db *badger.DB
}

// Open opens the BadgerDB described by cfg.
// BadgerDB's own log output is routed to the "badger" logger.
func Open(cfg Config) (store.IStore, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("path is required for a persistent badger store")
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(logger.GetLogger("badger"))

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	log.Infof("opened badger store (path=%q, in-memory=%v)", cfg.Path, cfg.InMemory)
	return &storeImpl{db: db}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Get(ctx context.Context, keys ...string) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	values := make(map[string][]byte, len(keys))
	err := s.db.View(func(txn *badger.Txn) error {
		for _, key := range keys {
			item, err := txn.Get([]byte(key))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if value == nil {
				value = []byte{}
			}
			values[key] = value
		}
		return nil
	})
	if err != nil {
		return nil, store.WrapError(store.RetCInternalError, "read records", err)
	}
	return values, nil
}

func (s *storeImpl) Set(ctx context.Context, values map[string][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		for key, value := range values {
			if value == nil {
				value = []byte{}
			}
			if err := txn.Set([]byte(key), value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return store.WrapError(store.RetCInternalError, "write records", err)
	}
	return nil
}

func (s *storeImpl) Remove(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return store.WrapError(store.RetCInternalError, "delete records", err)
	}
	return nil
}

func (s *storeImpl) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.DropAll(); err != nil {
		return store.WrapError(store.RetCInternalError, "drop records", err)
	}
	return nil
}

func (s *storeImpl) Close() error {
	return s.db.Close()
}
