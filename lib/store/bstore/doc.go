// Package bstore implements store.IStore on top of BadgerDB
// (github.com/dgraph-io/badger/v4), either on disk or fully in memory.
// Set and Remove run in a single Badger transaction each; Clear drops
// every key with DropAll.
package bstore
