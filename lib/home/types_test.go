package home

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string {
	return &s
}

func TestClientDataPersistedForm(t *testing.T) {
	var data ClientData
	require.NoError(t, json.Unmarshal([]byte(`{
		"clientId": "c-1",
		"x": 1,
		"home": {"location": "https://a", "nodeName": "A", "avatar": "img"}
	}`), &data))

	assert.Equal(t, "https://a", data.Location())
	assert.Equal(t, strPtr("A"), data.NodeName())

	persisted, err := json.Marshal(data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1,"home":{"avatar":"img"}}`, string(persisted))
}

func TestClientDataNullHome(t *testing.T) {
	var data ClientData
	require.NoError(t, json.Unmarshal([]byte(`{"home": null, "y": true}`), &data))
	assert.Nil(t, data.Home)
	assert.Equal(t, "", data.Location())

	var bad ClientData
	assert.Error(t, json.Unmarshal([]byte(`{"home": 5}`), &bad))
	assert.Error(t, json.Unmarshal([]byte(`{"home": {"location": 5}}`), &bad))
	assert.Error(t, json.Unmarshal([]byte(`[1, 2]`), &bad))
}

func TestClientDataMergeReplacesHome(t *testing.T) {
	stored := NewClientData()
	require.NoError(t, json.Unmarshal([]byte(`{"a": 1, "b": 2, "home": {"theme": "dark"}}`), stored))

	incoming := NewClientData()
	require.NoError(t, json.Unmarshal([]byte(`{"b": 3, "home": {"location": "https://a"}}`), incoming))

	stored.Merge(incoming)

	persisted, err := json.Marshal(stored)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"b":3,"home":{}}`, string(persisted))
}

func TestEnvelopeEncoding(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		encoded, err := json.Marshal(emptyEnvelope())
		require.NoError(t, err)
		assert.JSONEq(t, `{"source":"moera","action":"loadedData","payload":{"version":2}}`, string(encoded))
	})

	t.Run("Loaded", func(t *testing.T) {
		data := NewClientData()
		require.NoError(t, json.Unmarshal([]byte(`{"x": 1, "clientId": "c", "home": {"nodeName": "stale", "k": "v"}}`), data))
		roots := []Root{{URL: "https://a", Name: strPtr("A")}, {URL: "https://b"}}

		encoded, err := json.Marshal(loadedEnvelope("https://b", data, roots))
		require.NoError(t, err)
		assert.JSONEq(t, `{"source":"moera","action":"loadedData","payload":{
			"version": 2,
			"x": 1,
			"clientId": "c",
			"home": {"location": "https://b", "nodeName": null, "k": "v"},
			"roots": [{"url": "https://a", "name": "A"}, {"url": "https://b", "name": null}]
		}}`, string(encoded))
	})

	t.Run("Decode", func(t *testing.T) {
		var env Envelope
		require.NoError(t, json.Unmarshal([]byte(`{"source":"moera","action":"loadedData","payload":{
			"version": 2, "z": "q", "roots": [],
			"home": {"location": "https://a", "nodeName": "A"}
		}}`), &env))

		assert.Equal(t, PayloadVersion, env.Payload.Version)
		require.True(t, env.Payload.HasHome())
		assert.Equal(t, "https://a", env.Payload.Home.Location)
		assert.Equal(t, strPtr("A"), env.Payload.Home.NodeName)
		assert.NotNil(t, env.Payload.Roots)
		assert.Empty(t, env.Payload.Roots)
		assert.JSONEq(t, `"q"`, string(env.Payload.Fields["z"]))
	})
}

func TestRootHelpers(t *testing.T) {
	roots := setRoot(nil, "https://a", strPtr("A"))
	roots = setRoot(roots, "https://b", nil)
	roots = setRoot(roots, "https://a", strPtr("A2"))

	assert.Equal(t, []Root{{URL: "https://a", Name: strPtr("A2")}, {URL: "https://b"}}, roots)
	assert.Equal(t, strPtr("A2"), rootName(roots, "https://a"))
	assert.Nil(t, rootName(roots, "https://b"))
	assert.Nil(t, findRoot(roots, "https://c"))

	assert.Equal(t, []Root{{URL: "https://b"}}, removeRoot(roots, "https://a"))
	assert.Len(t, roots, 2, "removeRoot must not modify its input")
}
