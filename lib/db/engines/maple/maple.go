package maple

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"github.com/ValentinKolb/homekv/lib/db"
	"github.com/ValentinKolb/homekv/lib/db/engines/maple/internal"
	"github.com/ValentinKolb/homekv/lib/db/util"
	"io"
	"runtime"
	"sync"
	"sync/atomic"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

// Constants for database behavior and structure
const (
	magicNum     = "MAPLEKV\x00" // File format identifier
	mapleVersion = 1             // Snapshot format version
	maxKeyLen    = 1 << 16       // Upper bound for keys read from a snapshot
)

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// mapleImpl implements a database with sharded data
type mapleImpl struct {
	numShards int               // Number of shards
	seed      uint64            // Seed for hash function
	shards    []*internal.Shard // Array of shards
	currIndex atomic.Uint64     // Current logical timestamp

	// loadMu is held exclusively by Load, which swaps the shards
	loadMu sync.RWMutex
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	NumShards int // Number of shards (0 = auto)
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		NumShards: runtime.NumCPU(), // Auto-determine based on CPU count
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB creates a new MapleDB instance with the specified options (optional)
//
// Thread-safety: This function is not thread-safe and should only be called once
// during initialization.
func NewMapleDB(opts *DBOptions) db.KVDB {

	// Generate default options if not provided
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.NumShards <= 0 {
		opts.NumShards = runtime.NumCPU()
	}

	newDB := &mapleImpl{
		numShards: opts.NumShards,
		seed:      util.GenerateSeed(),
		shards:    newShards(opts.NumShards),
	}
	newDB.currIndex.Store(0)

	return newDB
}

// newShards allocates n empty shards
func newShards(n int) []*internal.Shard {
	shards := make([]*internal.Shard, n)
	for i := 0; i < n; i++ {
		shards[i] = internal.NewShard()
	}
	return shards
}

// shardFor returns the shard responsible for the key
//
// Thread-safety: callers must hold loadMu (read or write).
func (maple *mapleImpl) shardFor(key string) *internal.Shard {
	return internal.GetShard(util.HashString(key, maple.seed), maple.shards)
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Set inserts or updates an entry with the given key, value, and writeIndex.
// If the key already exists, the old value is overwritten unless the stored
// entry was written with a higher index.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Set(key string, value []byte, writeIdx uint64) {
	maple.loadMu.RLock()
	defer maple.loadMu.RUnlock()

	maple.SetWriteIdx(writeIdx)

	// Copy value to prevent memory corruption
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	maple.shardFor(key).Data.Compute(key, func(old internal.Entry, loaded bool) (internal.Entry, bool) {
		if loaded && old.IsStale(writeIdx) {
			return old, false
		}
		return internal.Entry{Value: valueCopy, Index: writeIdx}, false
	})
}

// Delete removes an entry with the specified key.
// The key is not findable anymore. This change is immediate.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Delete(key string, writeIdx uint64) {
	maple.loadMu.RLock()
	defer maple.loadMu.RUnlock()

	maple.SetWriteIdx(writeIdx)

	maple.shardFor(key).Data.Compute(key, func(old internal.Entry, loaded bool) (internal.Entry, bool) {
		if loaded && old.IsStale(writeIdx) {
			return old, false
		}
		return old, true
	})
}

// Clear removes all entries from all shards.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Clear(writeIdx uint64) {
	maple.loadMu.RLock()
	defer maple.loadMu.RUnlock()

	maple.SetWriteIdx(writeIdx)

	for _, shard := range maple.shards {
		shard.Data.Clear()
	}
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Get retrieves a value for a key.
// The returned value is a copy of the stored data and therefore safe to use and modify.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Get(key string) ([]byte, bool) {
	maple.loadMu.RLock()
	defer maple.loadMu.RUnlock()

	entry, ok := maple.shardFor(key).Data.Load(key)
	if !ok {
		return nil, false
	}

	valueCopy := make([]byte, len(entry.Value))
	copy(valueCopy, entry.Value)
	return valueCopy, true
}

// Has checks if a key exists in the database.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Has(key string) bool {
	maple.loadMu.RLock()
	defer maple.loadMu.RUnlock()

	_, ok := maple.shardFor(key).Data.Load(key)
	return ok
}

// Keys returns all keys of all shards.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
// Keys written while the call is running may or may not be included.
func (maple *mapleImpl) Keys() []string {
	maple.loadMu.RLock()
	defer maple.loadMu.RUnlock()

	keys := make([]string, 0, maple.size())
	for _, shard := range maple.shards {
		shard.Data.Range(func(key string, _ internal.Entry) bool {
			keys = append(keys, key)
			return true
		})
	}
	return keys
}

// size returns the number of entries over all shards
func (maple *mapleImpl) size() int {
	n := 0
	for _, shard := range maple.shards {
		n += shard.Data.Size()
	}
	return n
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save persists the database to the writer
// Concurrent reading and writing is allowed during Save operation
//
// Thread-safety: This function allows concurrent operations with all other functions
// except Load. It takes snapshots of the data without blocking modifications.
func (maple *mapleImpl) Save(w io.Writer) error {
	maple.loadMu.RLock()
	defer maple.loadMu.RUnlock()

	// Use a buffered writer for better performance
	bw := bufio.NewWriterSize(w, 64*1024)

	type entryToSave struct {
		key   string
		entry internal.Entry
	}

	// Collect snapshots of all shards
	var entries []entryToSave
	for _, shard := range maple.shards {
		shard.Data.Range(func(key string, entry internal.Entry) bool {
			entryCopy := internal.Entry{
				Index: entry.Index,
				Value: make([]byte, len(entry.Value)),
			}
			copy(entryCopy.Value, entry.Value)
			entries = append(entries, entryToSave{key, entryCopy})
			return true
		})
	}

	// Write file header
	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint8(mapleVersion)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, maple.currIndex.Load()); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(entries))); err != nil {
		return err
	}

	// Write data entries
	for _, item := range entries {
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(item.key))); err != nil {
			return err
		}
		if _, err := bw.WriteString(item.key); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, item.entry.Index); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(item.entry.Value))); err != nil {
			return err
		}
		if _, err := bw.Write(item.entry.Value); err != nil {
			return err
		}
	}

	// Flush buffer to ensure all data is written
	return bw.Flush()
}

// Load restores a database from the reader.
// On error the database keeps the content it had before the call.
//
// Thread-safety: This function blocks all other operations while it runs.
func (maple *mapleImpl) Load(r io.Reader) error {
	br := bufio.NewReaderSize(r, 64*1024)

	// Read and verify magic number
	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return err
	}
	if string(magicBytes) != magicNum {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	// Read and verify version
	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}
	if int(version) != mapleVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, mapleVersion)
	}

	var writeIdx, count uint64
	if err := binary.Read(br, binary.LittleEndian, &writeIdx); err != nil {
		return err
	}
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return err
	}

	// Build the new shards before swapping them in
	seed := util.GenerateSeed()
	shards := newShards(maple.numShards)
	for i := uint64(0); i < count; i++ {
		var keyLen uint32
		if err := binary.Read(br, binary.LittleEndian, &keyLen); err != nil {
			return err
		}
		if keyLen > maxKeyLen {
			return fmt.Errorf("invalid key length %d in entry %d", keyLen, i)
		}
		keyBytes := make([]byte, keyLen)
		if _, err := io.ReadFull(br, keyBytes); err != nil {
			return err
		}

		var entry internal.Entry
		if err := binary.Read(br, binary.LittleEndian, &entry.Index); err != nil {
			return err
		}
		var valueLen uint32
		if err := binary.Read(br, binary.LittleEndian, &valueLen); err != nil {
			return err
		}
		entry.Value = make([]byte, valueLen)
		if _, err := io.ReadFull(br, entry.Value); err != nil {
			return err
		}

		key := string(keyBytes)
		internal.GetShard(util.HashString(key, seed), shards).Data.Store(key, entry)
	}

	maple.loadMu.Lock()
	defer maple.loadMu.Unlock()

	maple.seed = seed
	maple.shards = shards
	maple.currIndex.Store(writeIdx)
	return nil
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {
	maple.loadMu.RLock()
	defer maple.loadMu.RUnlock()

	sizeBytes := 0
	shardSizes := make([]int, len(maple.shards))
	for i, shard := range maple.shards {
		shardSizes[i] = shard.Data.Size()
		shard.Data.Range(func(key string, entry internal.Entry) bool {
			sizeBytes += len(key) + len(entry.Value)
			return true
		})
	}

	return db.DatabaseInfo{
		SizeBytes: sizeBytes,
		Entries:   maple.size(),
		DbType:    db.ImplMaple,
		SupportedFeatures: []db.Feature{
			db.FeatureSet, db.FeatureGet, db.FeatureDelete, db.FeatureHas,
			db.FeatureClear, db.FeatureKeys, db.FeatureSave, db.FeatureLoad,
		},
		Metadata: map[string]interface{}{
			"shards":      maple.numShards,
			"shard_sizes": shardSizes,
			"write_index": maple.currIndex.Load(),
		},
	}
}

// SupportsFeature checks if this implementation supports a specific KVDB feature
func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	supported := db.FeatureSet | db.FeatureGet | db.FeatureDelete | db.FeatureHas |
		db.FeatureClear | db.FeatureKeys | db.FeatureSave | db.FeatureLoad
	return feature&supported == feature
}

// Close releases the database. The maple engine holds no external resources.
func (maple *mapleImpl) Close() error {
	return nil
}

// --------------------------------------------------------------------------
// Index and Timestamp Management
// --------------------------------------------------------------------------

// SetWriteIdx safely updates the current index
// It only updates if the new index is greater than the current one
//
// Thread-safety: This method is thread-safe and can be called concurrently.
// It uses atomic operations to ensure that the index only increases.
func (maple *mapleImpl) SetWriteIdx(newIdx uint64) {
	for {
		current := maple.currIndex.Load()
		if newIdx <= current {
			return
		}
		if maple.currIndex.CompareAndSwap(current, newIdx) {
			return
		}
	}
}

// WriteIdx returns the current index of the database
func (maple *mapleImpl) WriteIdx() uint64 {
	return maple.currIndex.Load()
}
