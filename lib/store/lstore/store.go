package lstore

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/homekv/lib/db"
	"github.com/ValentinKolb/homekv/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

var log = logger.GetLogger("store")

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() db.KVDB

type storeImpl struct {
	db    db.KVDB
	index atomic.Uint64

	// snapshot persistence (empty path = memory only)
	snapshotPath string
	persistMu    sync.Mutex
}

// NewLocalStore creates a new local store instance.
// The data lives in memory only and is lost when the process exits.
func NewLocalStore(factory DBFactory) store.IStore {
	return &storeImpl{
		db:    factory(),
		index: atomic.Uint64{},
	}
}

// NewPersistentLocalStore creates a local store that writes a snapshot of the
// database to path after every write operation. An existing snapshot at path
// is loaded first.
func NewPersistentLocalStore(factory DBFactory, path string) (store.IStore, error) {
	s := &storeImpl{
		db:           factory(),
		snapshotPath: path,
	}

	if !s.db.SupportsFeature(db.FeatureSave | db.FeatureLoad) {
		return nil, store.NewError(store.RetCUnsupportedOperation, "snapshots are not supported by the database")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}

	f, err := os.Open(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Infof("no snapshot at %s, starting empty", path)
	case err != nil:
		return nil, fmt.Errorf("open snapshot: %w", err)
	default:
		defer f.Close()
		if err := s.db.Load(f); err != nil {
			return nil, fmt.Errorf("load snapshot %s: %w", path, err)
		}
		s.index.Store(s.db.WriteIdx())
		log.Infof("loaded snapshot %s (write index %d)", path, s.db.WriteIdx())
	}

	return s, nil
}

// incAndGetIndex increments the index and returns the new value.
// It is used to ensure that each write operation has a unique index.
//
// Thread-safety: This method is thread-safe since it uses atomic operations.
func (s *storeImpl) incAndGetIndex() uint64 {
	return s.index.Add(1)
}

// persist writes the snapshot file if the store is persistent.
// The snapshot is written to a temporary file first and renamed afterwards,
// so a crash never leaves a truncated snapshot behind.
func (s *storeImpl) persist() error {
	if s.snapshotPath == "" {
		return nil
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	tmpPath := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640)
	if err != nil {
		return store.WrapError(store.RetCInternalError, "create snapshot", err)
	}

	if err := s.db.Save(f); err != nil {
		f.Close()
		return store.WrapError(store.RetCInternalError, "write snapshot", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return store.WrapError(store.RetCInternalError, "sync snapshot", err)
	}
	if err := f.Close(); err != nil {
		return store.WrapError(store.RetCInternalError, "close snapshot", err)
	}
	if err := os.Rename(tmpPath, s.snapshotPath); err != nil {
		return store.WrapError(store.RetCInternalError, "replace snapshot", err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Get(ctx context.Context, keys ...string) (map[string][]byte, error) {
	if !s.db.SupportsFeature(db.FeatureGet) {
		return nil, store.NewError(store.RetCUnsupportedOperation, "Get operation is not supported")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	values := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if val, ok := s.db.Get(key); ok {
			values[key] = val
		}
	}
	return values, nil
}

func (s *storeImpl) Set(ctx context.Context, values map[string][]byte) error {
	if !s.db.SupportsFeature(db.FeatureSet) {
		return store.NewError(store.RetCUnsupportedOperation, "Set operation is not supported")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for key, value := range values {
		s.db.Set(key, value, s.incAndGetIndex())
	}
	return s.persist()
}

func (s *storeImpl) Remove(ctx context.Context, keys ...string) error {
	if !s.db.SupportsFeature(db.FeatureDelete) {
		return store.NewError(store.RetCUnsupportedOperation, "Delete operation is not supported")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, key := range keys {
		s.db.Delete(key, s.incAndGetIndex())
	}
	return s.persist()
}

func (s *storeImpl) Clear(ctx context.Context) error {
	if !s.db.SupportsFeature(db.FeatureClear) {
		return store.NewError(store.RetCUnsupportedOperation, "Clear operation is not supported")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.db.Clear(s.incAndGetIndex())
	return s.persist()
}

func (s *storeImpl) Close() error {
	return s.db.Close()
}
