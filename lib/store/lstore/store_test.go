package lstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/homekv/lib/db"
	"github.com/ValentinKolb/homekv/lib/db/engines/maple"
	"github.com/ValentinKolb/homekv/lib/store"
	storetesting "github.com/ValentinKolb/homekv/lib/store/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapleFactory() db.KVDB {
	return maple.NewMapleDB(nil)
}

func TestLocalStore(t *testing.T) {
	storetesting.RunIStoreTests(t, "LocalStore", func(t *testing.T) store.IStore {
		return NewLocalStore(mapleFactory)
	})
}

func TestPersistentLocalStore(t *testing.T) {
	storetesting.RunIStoreTests(t, "PersistentLocalStore", func(t *testing.T) store.IStore {
		s, err := NewPersistentLocalStore(mapleFactory, filepath.Join(t.TempDir(), "homekv.snapshot"))
		require.NoError(t, err)
		return s
	})
}

func TestPersistentLocalStoreSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "homekv.snapshot")

	first, err := NewPersistentLocalStore(mapleFactory, path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, map[string][]byte{
		"defaultClient":   []byte("false"),
		"customClientUrl": []byte(`"https://custom"`),
		"obsolete":        []byte("1"),
	}))
	require.NoError(t, first.Remove(ctx, "obsolete"))
	require.NoError(t, first.Close())

	second, err := NewPersistentLocalStore(mapleFactory, path)
	require.NoError(t, err)
	defer second.Close()

	values, err := second.Get(ctx, "defaultClient", "customClientUrl", "obsolete")
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{
		"defaultClient":   []byte("false"),
		"customClientUrl": []byte(`"https://custom"`),
	}, values)

	// writes after the restart must not be dropped as stale
	require.NoError(t, second.Set(ctx, map[string][]byte{"defaultClient": []byte("true")}))
	values, err = second.Get(ctx, "defaultClient")
	require.NoError(t, err)
	assert.Equal(t, "true", string(values["defaultClient"]))
}
