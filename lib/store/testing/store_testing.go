package testing

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/homekv/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreFactory creates a new, empty store for a single test
type StoreFactory func(t *testing.T) store.IStore

// RunIStoreTests runs the conformance suite for a store.IStore implementation.
func RunIStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory(t))
		})

		t.Run("GetMissing", func(t *testing.T) {
			testGetMissing(t, factory(t))
		})

		t.Run("Remove", func(t *testing.T) {
			testRemove(t, factory(t))
		})

		t.Run("Clear", func(t *testing.T) {
			testClear(t, factory(t))
		})

		t.Run("CanceledContext", func(t *testing.T) {
			testCanceledContext(t, factory(t))
		})

		t.Run("ConcurrentWrites", func(t *testing.T) {
			testConcurrentWrites(t, factory(t))
		})
	})
}

func testSetGet(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, map[string][]byte{
		"currentRoot;https://client": []byte(`"https://a"`),
		"roots;https://client":       []byte(`[{"url":"https://a","name":null}]`),
	}))

	values, err := s.Get(ctx, "currentRoot;https://client", "roots;https://client")
	require.NoError(t, err)
	assert.Equal(t, `"https://a"`, string(values["currentRoot;https://client"]))
	assert.Equal(t, `[{"url":"https://a","name":null}]`, string(values["roots;https://client"]))

	require.NoError(t, s.Set(ctx, map[string][]byte{
		"currentRoot;https://client": []byte(`"https://b"`),
	}))

	values, err = s.Get(ctx, "currentRoot;https://client")
	require.NoError(t, err)
	assert.Equal(t, `"https://b"`, string(values["currentRoot;https://client"]))

	require.NoError(t, s.Set(ctx, map[string][]byte{}))
}

func testGetMissing(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := context.Background()

	values, err := s.Get(ctx, "settings", "clientData")
	require.NoError(t, err)
	assert.Empty(t, values)

	values, err = s.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, values)

	require.NoError(t, s.Set(ctx, map[string][]byte{"settings": []byte(`{}`)}))
	values, err = s.Get(ctx, "settings", "clientData")
	require.NoError(t, err)
	assert.Len(t, values, 1)
	assert.Contains(t, values, "settings")
}

func testRemove(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, map[string][]byte{
		"a": []byte("1"),
		"b": []byte("2"),
		"c": []byte("3"),
	}))

	require.NoError(t, s.Remove(ctx, "a", "c", "missing"))

	values, err := s.Get(ctx, "a", "b", "c")
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"b": []byte("2")}, values)

	require.NoError(t, s.Remove(ctx))
}

func testClear(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := context.Background()

	records := map[string][]byte{}
	keys := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		key := fmt.Sprintf("clientData;https://client;https://root-%d", i)
		records[key] = []byte(`{"x":1}`)
		keys = append(keys, key)
	}
	require.NoError(t, s.Set(ctx, records))

	require.NoError(t, s.Clear(ctx))

	values, err := s.Get(ctx, keys...)
	require.NoError(t, err)
	assert.Empty(t, values)

	require.NoError(t, s.Set(ctx, map[string][]byte{"defaultClient": []byte("true")}))
	values, err = s.Get(ctx, "defaultClient")
	require.NoError(t, err)
	assert.Equal(t, "true", string(values["defaultClient"]))
}

func testCanceledContext(t *testing.T, s store.IStore) {
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Get(ctx, "a")
	assert.Error(t, err)
	assert.Error(t, s.Set(ctx, map[string][]byte{"a": []byte("1")}))

	values, err := s.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Empty(t, values)
}

func testConcurrentWrites(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				key := fmt.Sprintf("worker-%d-%d", w, i)
				assert.NoError(t, s.Set(ctx, map[string][]byte{key: []byte(key)}))
			}
		}(w)
	}
	wg.Wait()

	for w := 0; w < workers; w++ {
		for i := 0; i < 20; i++ {
			key := fmt.Sprintf("worker-%d-%d", w, i)
			values, err := s.Get(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, key, string(values[key]))
		}
	}
}
