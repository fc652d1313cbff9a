package testing

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/ValentinKolb/homekv/lib/db"
)

// DBFactory is a function that creates a new instance of a KVDB implementation
type DBFactory func() db.KVDB

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("Has", func(t *testing.T) {
			testHas(t, factory())
		})

		t.Run("Clear", func(t *testing.T) {
			testClear(t, factory())
		})

		t.Run("Keys", func(t *testing.T) {
			testKeys(t, factory())
		})

		t.Run("StaleWrites", func(t *testing.T) {
			testStaleWrites(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})

		t.Run("ConcurrentAccess", func(t *testing.T) {
			testConcurrentAccess(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	testKey := "clientData;https://client;https://home"
	testValue1 := []byte(`{"x":1}`)
	testValue2 := []byte(`{"x":2}`)

	database.Set(testKey, testValue1, 1)

	result, exists := database.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	database.Set(testKey, testValue2, 2)

	result, exists = database.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	if _, exists = database.Get("nonexistent-key"); exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}

	retrievedValue, _ := database.Get(testKey)
	retrievedValue[0] = 'X'

	originalValue, _ := database.Get(testKey)
	if bytes.Equal(retrievedValue, originalValue) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}

	input := []byte("mutable")
	database.Set("mutable-key", input, 3)
	input[0] = 'X'
	if result, _ = database.Get("mutable-key"); !bytes.Equal(result, []byte("mutable")) {
		t.Errorf("Set should copy the value, got %s", result)
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	database.Set("delete-me", []byte("value"), 1)
	database.Delete("delete-me", 2)

	if _, exists := database.Get("delete-me"); exists {
		t.Errorf("Expected key to be gone after Delete")
	}

	// deleting a missing key is a no-op
	database.Delete("never-set", 3)

	database.Set("delete-me", []byte("again"), 4)
	if result, exists := database.Get("delete-me"); !exists || !bytes.Equal(result, []byte("again")) {
		t.Errorf("Expected key to be settable after Delete, got %s (exists=%v)", result, exists)
	}
}

func testHas(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureHas|db.FeatureDelete)

	if database.Has("has-key") {
		t.Errorf("Has should return false before Set")
	}

	database.Set("has-key", []byte{}, 1)
	if !database.Has("has-key") {
		t.Errorf("Has should return true for an empty value")
	}

	database.Delete("has-key", 2)
	if database.Has("has-key") {
		t.Errorf("Has should return false after Delete")
	}
}

func testClear(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureHas|db.FeatureClear)

	for i := 0; i < 100; i++ {
		database.Set(fmt.Sprintf("key-%d", i), []byte("value"), uint64(i+1))
	}

	database.Clear(200)

	for i := 0; i < 100; i++ {
		if database.Has(fmt.Sprintf("key-%d", i)) {
			t.Fatalf("Expected key-%d to be gone after Clear", i)
		}
	}

	if idx := database.WriteIdx(); idx < 200 {
		t.Errorf("Expected write index >= 200 after Clear, got %d", idx)
	}

	database.Set("after-clear", []byte("value"), 201)
	if !database.Has("after-clear") {
		t.Errorf("Expected database to accept writes after Clear")
	}
}

func testKeys(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureDelete|db.FeatureKeys)

	if keys := database.Keys(); len(keys) != 0 {
		t.Errorf("Expected no keys in a new database, got %v", keys)
	}

	database.Set("b", []byte("2"), 1)
	database.Set("a", []byte("1"), 2)
	database.Set("c", []byte("3"), 3)
	database.Delete("c", 4)

	keys := database.Keys()
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("Expected keys [a b], got %v", keys)
	}
}

func testStaleWrites(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	database.Set("stale", []byte("new"), 10)
	database.Set("stale", []byte("old"), 5)

	if result, _ := database.Get("stale"); !bytes.Equal(result, []byte("new")) {
		t.Errorf("Expected stale write to be ignored, got %s", result)
	}

	database.Delete("stale", 7)
	if _, exists := database.Get("stale"); !exists {
		t.Errorf("Expected stale delete to be ignored")
	}

	database.SetWriteIdx(3)
	if idx := database.WriteIdx(); idx != 10 {
		t.Errorf("Expected write index to stay at 10, got %d", idx)
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	source := factory()
	defer source.Close()

	requireFeature(t, source, db.FeatureSet|db.FeatureGet|db.FeatureSave|db.FeatureLoad)

	expected := map[string][]byte{
		"defaultClient":                       []byte("false"),
		"customClientUrl":                     []byte(`"https://custom"`),
		"roots;https://custom":                []byte(`[{"url":"https://h","name":null}]`),
		"currentRoot;https://custom":          []byte(`"https://h"`),
		"clientData;https://custom;https://h": []byte(`{"foo":"bar"}`),
		"empty":                               {},
	}
	idx := uint64(1)
	for key, value := range expected {
		source.Set(key, value, idx)
		idx++
	}

	var buf bytes.Buffer
	if err := source.Save(&buf); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	target := factory()
	defer target.Close()

	target.Set("stale-entry", []byte("dropped by load"), 1)

	if err := target.Load(&buf); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	for key, value := range expected {
		result, exists := target.Get(key)
		if !exists {
			t.Errorf("Expected key %q after Load", key)
			continue
		}
		if !bytes.Equal(result, value) {
			t.Errorf("Key %q: expected %s, got %s", key, value, result)
		}
	}

	if target.Has("stale-entry") {
		t.Errorf("Load should replace the previous content")
	}

	if target.WriteIdx() != source.WriteIdx() {
		t.Errorf("Expected write index %d after Load, got %d", source.WriteIdx(), target.WriteIdx())
	}

	if err := target.Load(bytes.NewReader([]byte("garbage"))); err == nil {
		t.Errorf("Expected Load to fail for invalid input")
	}
	if !target.Has("defaultClient") {
		t.Errorf("A failed Load must keep the previous content")
	}
}

func testEdgeCases(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	database.Set("", []byte("empty key"), 1)
	if result, exists := database.Get(""); !exists || !bytes.Equal(result, []byte("empty key")) {
		t.Errorf("Expected empty key to be stored, got %s (exists=%v)", result, exists)
	}

	database.Set("nil-value", nil, 2)
	if result, exists := database.Get("nil-value"); !exists || len(result) != 0 {
		t.Errorf("Expected nil value to be stored as empty, got %v (exists=%v)", result, exists)
	}

	large := bytes.Repeat([]byte("x"), 1<<20)
	database.Set("large", large, 3)
	if result, _ := database.Get("large"); !bytes.Equal(result, large) {
		t.Errorf("Expected large value to round-trip")
	}

	unicode := "clientData;https://клиент;https://家"
	database.Set(unicode, []byte("unicode"), 4)
	if _, exists := database.Get(unicode); !exists {
		t.Errorf("Expected unicode key to be stored")
	}
}

func testConcurrentAccess(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	const (
		workers = 8
		keys    = 200
	)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < keys; i++ {
				key := fmt.Sprintf("worker-%d-key-%d", w, i)
				database.Set(key, []byte(key), uint64(w*keys+i+1))
				if result, exists := database.Get(key); !exists || string(result) != key {
					t.Errorf("Expected %s to read back its own write", key)
				}
			}
		}(w)
	}
	wg.Wait()

	for w := 0; w < workers; w++ {
		for i := 0; i < keys; i++ {
			key := fmt.Sprintf("worker-%d-key-%d", w, i)
			if result, exists := database.Get(key); !exists || string(result) != key {
				t.Fatalf("Expected %s after concurrent writes", key)
			}
		}
	}
}
