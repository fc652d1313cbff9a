// Package db provides a standardized interface for key-value database implementations.
// It defines the KVDB interface that allows for consistent interaction with various
// database backends while abstracting implementation details.
//
// The package focuses on:
//   - A unified interface for key-value operations
//   - Feature discovery through capability flags
//   - Standardized persistence operations
//   - Metadata reporting
//
// Key Components:
//
//   - KVDB Interface: The core interface that all database implementations must satisfy.
//     It provides methods for basic operations (Set, Get, Has, Delete), bulk operations
//     (Clear, Keys), metadata retrieval (GetInfo) and persistence operations (Save, Load).
//
//   - Feature Flags: The Feature type defines capability flags that implementations
//     can advertise through the SupportsFeature method. This allows clients to
//     discover supported operations at runtime.
//
//   - Implementation Identifiers: The Implementation type provides string constants
//     for different database backends (currently "maple").
//
// Note on the write index:
//   - All write operations require a write-index parameter that serves as a logical
//     timestamp. Writes carrying an index lower than the index of the stored entry
//     are ignored.
//   - Monotonicity Guarantee: All implementations must ensure that the write-index only
//     increases monotonically. Attempts to set a write-index lower than the current one
//     must be ignored.
//
// Related Packages:
//
// The engines/maple package (github.com/ValentinKolb/homekv/lib/db/engines/maple) provides
// a sharded in-memory implementation of the KVDB interface with binary persistence.
//
// The testing package (github.com/ValentinKolb/homekv/lib/db/testing) provides
// standardized tests for database implementations that satisfy the db.KVDB interface.
package db
