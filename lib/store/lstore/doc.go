// Package lstore implements a local, single-node backing store based on the
// store.IStore interface. It is a thin wrapper around any db.KVDB
// implementation with automatic write index management.
//
// Modes:
//
//   - NewLocalStore: pure in-memory, nothing survives a restart. Used by tests
//     and by "--backend memory".
//   - NewPersistentLocalStore: after every Set, Remove and Clear the whole
//     database is saved to a snapshot file (write to "<path>.tmp", fsync,
//     rename). The snapshot is loaded again on start. The data set of this
//     store is a handful of small records, so a full snapshot per write is
//     cheap enough.
//
// Implementation Details:
//
//   - Write Index Management: The store maintains an atomic counter that
//     increments with each written key. The counter is restored from the
//     snapshot so indices keep growing across restarts.
//
//   - Feature Detection: Before executing operations, the store checks if the
//     underlying db.KVDB implementation supports the requested feature.
//     Unsupported operations return store.RetCUnsupportedOperation.
//
// Usage Example:
//
//	factory := func() db.KVDB { return maple.NewMapleDB(nil) }
//	s, err := lstore.NewPersistentLocalStore(factory, "data/homekv.snapshot")
//	err = s.Set(ctx, map[string][]byte{"defaultClient": []byte("true")})
//	values, err := s.Get(ctx, "defaultClient")
package lstore
