package common

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ValentinKolb/homekv/lib/home"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestDecoding(t *testing.T) {
	var msg Message
	require.NoError(t, json.Unmarshal([]byte(`{"action":"storeData","data":{"home":{"location":"https://a"},"x":1}}`), &msg))

	assert.Equal(t, MsgTStoreData, msg.Action)
	assert.True(t, msg.Action.IsRequest())

	data, err := msg.ClientData()
	require.NoError(t, err)
	assert.Equal(t, "https://a", data.Location())

	empty, err := (&Message{Action: MsgTStoreData}).ClientData()
	require.NoError(t, err)
	assert.Nil(t, empty.Home)

	_, err = (&Message{Action: MsgTStoreData, Data: json.RawMessage(`"text"`)}).ClientData()
	assert.Error(t, err)
}

func TestServerMessages(t *testing.T) {
	encoded, err := json.Marshal(NewAttachedMessage("tab-1"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"source":"moera","action":"attached","tabId":"tab-1"}`, string(encoded))

	encoded, err = json.Marshal(NewErrorResponse("", errors.New("boom")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"source":"moera","action":"error","error":"boom"}`, string(encoded))

	encoded, err = json.Marshal(NewDoneResponse("r-1", false))
	require.NoError(t, err)
	assert.JSONEq(t, `{"source":"moera","action":"done","requestId":"r-1","ok":false}`, string(encoded))
	assert.False(t, MsgTDone.IsRequest())
}

func TestEnvelopeMessage(t *testing.T) {
	env := home.Envelope{
		Source:  home.EnvelopeSource,
		Action:  home.EnvelopeAction,
		Payload: home.Payload{Version: home.PayloadVersion, Roots: []home.Root{}},
	}

	encoded, err := json.Marshal(NewEnvelopeMessage(env, ""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"source":"moera","action":"loadedData","payload":{"version":2,"roots":[]}}`, string(encoded))

	var decoded Message
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	got, err := decoded.Envelope()
	require.NoError(t, err)
	assert.Equal(t, home.PayloadVersion, got.Payload.Version)
	assert.Equal(t, []home.Root{}, got.Payload.Roots)

	_, err = NewAttachedMessage("t").Envelope()
	assert.Error(t, err)
}

func TestParseBackend(t *testing.T) {
	b, err := ParseBackend("SQLite")
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, b)

	_, err = ParseBackend("redis")
	assert.Error(t, err)
}

func TestInitLoggers(t *testing.T) {
	assert.NoError(t, InitLoggers("warn"))
	assert.Error(t, InitLoggers("verbose"))
}
