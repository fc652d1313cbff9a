package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/homekv/lib/store"
	storetesting "github.com/ValentinKolb/homekv/lib/store/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore(t *testing.T) {
	storetesting.RunIStoreTests(t, "SQLiteStore", func(t *testing.T) store.IStore {
		s, err := Open(filepath.Join(t.TempDir(), "homekv.db"))
		require.NoError(t, err)
		return s
	})
}

func TestSQLiteMemoryStore(t *testing.T) {
	storetesting.RunIStoreTests(t, "SQLiteMemoryStore", func(t *testing.T) store.IStore {
		s, err := Open(":memory:")
		require.NoError(t, err)
		return s
	})
}

func TestReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "homekv.db")

	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, map[string][]byte{"currentRoot;https://c": []byte(`"https://a"`)}))
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	defer second.Close()

	values, err := second.Get(ctx, "currentRoot;https://c")
	require.NoError(t, err)
	assert.Equal(t, `"https://a"`, string(values["currentRoot;https://c"]))
}
