// Package maple implements a sharded in-memory key-value database (KVDB).
// It provides a complete implementation of the db.KVDB interface with a focus
// on thread safety and a compact binary snapshot format.
//
// Key Components:
//
//   - mapleImpl: The central database structure implementing db.KVDB. It manages
//     the shards and provides the public API for key-value operations. The
//     mapleImpl does not generate write indices itself; the caller passes them in
//     so it can choose the index source that fits (an atomic counter in lstore).
//
//   - Shard: A partition of the key space backed by an xsync.MapOf. Keys are
//     assigned to shards by hashing them with HashString and a database-specific
//     seed.
//
//   - Entry: The stored value plus the write index of the operation that
//     created it. Writes with an older index than the stored entry are dropped.
//
// Persistence:
//
//	Save writes a fuzzy snapshot (concurrent writes are allowed while saving):
//
//	  magic "MAPLEKV\x00" | version uint8 | write index uint64 | count uint64
//	  count * (key len uint32 | key | index uint64 | value len uint32 | value)
//
//	Load replaces the whole content of the database with the snapshot.
//
// Usage Example:
//
//	database := maple.NewMapleDB(nil)
//	database.Set("greeting", []byte("hello"), 1)
//	value, ok := database.Get("greeting")
package maple
