package home

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateCustomClient(t *testing.T) {
	svc, s, _ := newTestService(t)
	ctx := context.Background()

	putRecord(t, s, keyLegacySettings, `{"clientUrl":"`+clientB+`"}`)
	putRecord(t, s, keyLegacyClientData, `{"clientId":"c-1","z":3,"home":{"location":"`+rootA+`"}}`)
	putRecord(t, s, "unrelated", `1`)

	v1, err := svc.IsStorageV1(ctx)
	require.NoError(t, err)
	require.True(t, v1)

	require.NoError(t, svc.MigrateStorageToV2(ctx))

	assert.JSONEq(t, `false`, rawRecord(t, s, keyDefaultClient))
	assert.JSONEq(t, `"`+clientB+`"`, rawRecord(t, s, keyCustomClientURL))
	assert.JSONEq(t, `[{"url":"`+rootA+`","name":null}]`, rawRecord(t, s, rootsKey(clientB)))
	assert.JSONEq(t, `"`+rootA+`"`, rawRecord(t, s, currentRootKey(clientB)))
	assert.JSONEq(t, `{"z":3,"home":{}}`, rawRecord(t, s, clientDataKey(clientB, rootA)))

	for _, key := range []string{keyLegacySettings, keyLegacyClientData, "unrelated"} {
		assert.Equal(t, "", rawRecord(t, s, key), "record %q must be gone", key)
	}

	v1, err = svc.IsStorageV1(ctx)
	require.NoError(t, err)
	assert.False(t, v1)

	// the migrated root is served to tabs of the legacy client URL
	_, err = svc.Tabs().AddTab(ctx, "t1")
	require.NoError(t, err)
	env, err := svc.LoadData(ctx, "t1")
	require.NoError(t, err)
	require.True(t, env.Payload.HasHome())
	assert.Equal(t, rootA, env.Payload.Home.Location)
	assert.JSONEq(t, `3`, string(env.Payload.Fields["z"]))
	assert.NotContains(t, env.Payload.Fields, "clientId")
}

func TestMigrateDefaultClientWithoutHome(t *testing.T) {
	svc, s, _ := newTestService(t)
	ctx := context.Background()

	putRecord(t, s, keyLegacySettings, `{"clientUrl":"`+DefaultClientURL+`"}`)

	require.NoError(t, svc.MigrateStorageToV2(ctx))

	assert.JSONEq(t, `true`, rawRecord(t, s, keyDefaultClient))
	assert.JSONEq(t, `""`, rawRecord(t, s, keyCustomClientURL))
	assert.Equal(t, "", rawRecord(t, s, rootsKey(DefaultClientURL)))
	assert.Equal(t, "", rawRecord(t, s, currentRootKey(DefaultClientURL)))

	settings, err := svc.Settings().GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), settings)
}

func TestMigrateMissingSettings(t *testing.T) {
	svc, s, _ := newTestService(t)
	ctx := context.Background()

	putRecord(t, s, keyLegacyClientData, `{"home":{"location":"`+rootB+`","nodeName":"B"}}`)

	require.NoError(t, svc.MigrateStorageToV2(ctx))

	assert.JSONEq(t, `true`, rawRecord(t, s, keyDefaultClient))
	assert.JSONEq(t, `[{"url":"`+rootB+`","name":null}]`, rawRecord(t, s, rootsKey(DefaultClientURL)))
	assert.JSONEq(t, `{"home":{}}`, rawRecord(t, s, clientDataKey(DefaultClientURL, rootB)))
}

func TestIsStorageV1OnFreshStore(t *testing.T) {
	svc, _, _ := newTestService(t)

	v1, err := svc.IsStorageV1(context.Background())
	require.NoError(t, err)
	assert.False(t, v1)
}

func TestMigrateMalformedLegacyRecord(t *testing.T) {
	svc, s, _ := newTestService(t)
	ctx := context.Background()

	putRecord(t, s, keyLegacySettings, `"not an object"`)

	assert.Error(t, svc.MigrateStorageToV2(ctx))
	// nothing was cleared
	assert.NotEmpty(t, rawRecord(t, s, keyLegacySettings))
}
