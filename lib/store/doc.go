// Package store defines the durable key-value backing store used by the home
// data layer, together with a unified error type.
//
// Key Components:
//
//   - IStore Interface: Get, Set, Remove and Clear over string keys with byte
//     values. Get and Remove accept several keys, Set accepts a mapping, so a
//     single call can touch all records of one logical operation.
//
//   - Error System: a structured error carrying a RetCode and an optional
//     wrapped cause, so callers can use errors.Is / errors.As on engine errors.
//
// Implementations:
//
//   - lstore: the maple engine from lib/db, optionally persisted to a
//     snapshot file after every write.
//   - sqlstore: a single SQLite table (modernc.org/sqlite, no cgo).
//   - bstore: BadgerDB, on disk or in memory.
//
// The testing subpackage contains a conformance suite every implementation
// runs in its tests.
package store
