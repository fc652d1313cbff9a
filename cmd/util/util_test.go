package util

import (
	"context"
	"strings"
	"testing"

	"github.com/ValentinKolb/homekv/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapString(t *testing.T) {
	wrapped := WrapString(strings.Repeat("word ", 30))
	for _, line := range strings.Split(wrapped, "\n") {
		assert.LessOrEqual(t, len(line), Wrap)
	}
	assert.Equal(t, "", WrapString(""))
}

func TestStoreFactory(t *testing.T) {
	for _, backend := range []common.Backend{common.BackendSQLite, common.BackendBadger, common.BackendMemory} {
		t.Run(string(backend), func(t *testing.T) {
			s, err := StoreFactory(backend, t.TempDir())()
			require.NoError(t, err)
			defer s.Close()

			ctx := context.Background()
			require.NoError(t, s.Set(ctx, map[string][]byte{"k": []byte(`1`)}))
			values, err := s.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte(`1`), values["k"])
		})
	}

	_, err := StoreFactory("redis", t.TempDir())()
	assert.Error(t, err)
}
