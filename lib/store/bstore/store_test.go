package bstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/homekv/lib/store"
	storetesting "github.com/ValentinKolb/homekv/lib/store/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerMemoryStore(t *testing.T) {
	storetesting.RunIStoreTests(t, "BadgerMemoryStore", func(t *testing.T) store.IStore {
		s, err := Open(InMemoryConfig())
		require.NoError(t, err)
		return s
	})
}

func TestBadgerDiskStore(t *testing.T) {
	storetesting.RunIStoreTests(t, "BadgerDiskStore", func(t *testing.T) store.IStore {
		s, err := Open(DefaultConfig(filepath.Join(t.TempDir(), "badger")))
		require.NoError(t, err)
		return s
	})
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "badger")

	first, err := Open(DefaultConfig(path))
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, map[string][]byte{"roots;https://c": []byte(`[]`)}))
	require.NoError(t, first.Close())

	second, err := Open(DefaultConfig(path))
	require.NoError(t, err)
	defer second.Close()

	values, err := second.Get(ctx, "roots;https://c")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(values["roots;https://c"]))
}
