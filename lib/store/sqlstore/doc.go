// Package sqlstore implements store.IStore on top of SQLite using the pure Go
// driver modernc.org/sqlite. All records live in one table:
//
//	records(key TEXT PRIMARY KEY, value BLOB)
//
// Set writes every pair of the mapping in one transaction. The database runs in
// WAL mode with synchronous=FULL, so a returned Set is durable.
package sqlstore
