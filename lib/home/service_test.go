package home

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/homekv/lib/db"
	"github.com/ValentinKolb/homekv/lib/db/engines/maple"
	"github.com/ValentinKolb/homekv/lib/lockmgr"
	"github.com/ValentinKolb/homekv/lib/store"
	"github.com/ValentinKolb/homekv/lib/store/lstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

const (
	clientA = DefaultClientURL
	clientB = "https://custom.example"
	rootA   = "https://a.example"
	rootB   = "https://b.example"
	rootC   = "https://c.example"
)

// recordingSender records every delivery and fails for the tabs in fail
type recordingSender struct {
	mu       sync.Mutex
	received map[TabID][]Envelope
	fail     map[TabID]bool
}

func newRecordingSender() *recordingSender {
	return &recordingSender{received: map[TabID][]Envelope{}, fail: map[TabID]bool{}}
}

func (r *recordingSender) Send(_ context.Context, tab TabID, envelope Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail[tab] {
		return errors.New("tab closed")
	}
	r.received[tab] = append(r.received[tab], envelope)
	return nil
}

func (r *recordingSender) count(tab TabID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.received[tab])
}

func (r *recordingSender) last(tab TabID) Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	envs := r.received[tab]
	if len(envs) == 0 {
		return Envelope{}
	}
	return envs[len(envs)-1]
}

func newTestStore() store.IStore {
	return lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) })
}

func newTestService(t *testing.T) (*Service, store.IStore, *recordingSender) {
	t.Helper()
	s := newTestStore()
	t.Cleanup(func() { _ = s.Close() })
	sender := newRecordingSender()
	return NewService(s, lockmgr.NewLockManager(), sender), s, sender
}

func clientData(t *testing.T, raw string) *ClientData {
	t.Helper()
	data := NewClientData()
	require.NoError(t, json.Unmarshal([]byte(raw), data))
	return data
}

func envelopeJSON(t *testing.T, env Envelope) string {
	t.Helper()
	encoded, err := json.Marshal(env)
	require.NoError(t, err)
	return string(encoded)
}

// rawRecord returns the raw JSON of a record, "" if the record is missing
func rawRecord(t *testing.T, s store.IStore, key string) string {
	t.Helper()
	values, err := s.Get(context.Background(), key)
	require.NoError(t, err)
	return string(values[key])
}

func putRecord(t *testing.T, s store.IStore, key, raw string) {
	t.Helper()
	require.NoError(t, s.Set(context.Background(), map[string][]byte{key: []byte(raw)}))
}

// --------------------------------------------------------------------------
// Load / Store / Switch / Delete
// --------------------------------------------------------------------------

func TestLoadWithoutRoot(t *testing.T) {
	svc, _, sender := newTestService(t)
	ctx := context.Background()

	_, err := svc.Tabs().AddTab(ctx, "t1")
	require.NoError(t, err)

	env, err := svc.LoadData(ctx, "t1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"source":"moera","action":"loadedData","payload":{"version":2}}`, envelopeJSON(t, env))
	assert.Equal(t, 0, sender.count("t1"), "load must not broadcast")
}

func TestStoreSwitchDelete(t *testing.T) {
	svc, s, sender := newTestService(t)
	ctx := context.Background()

	_, err := svc.Tabs().AddTab(ctx, "t1")
	require.NoError(t, err)

	// first store creates the root and makes it current
	env, err := svc.StoreData(ctx, "t1", clientData(t, `{"home":{"location":"`+rootA+`","nodeName":"A"},"x":1}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"source":"moera","action":"loadedData","payload":{
		"version":2, "x":1,
		"home":{"location":"`+rootA+`","nodeName":"A"},
		"roots":[{"url":"`+rootA+`","name":"A"}]
	}}`, envelopeJSON(t, env))
	assert.JSONEq(t, `[{"url":"`+rootA+`","name":"A"}]`, rawRecord(t, s, rootsKey(clientA)))
	assert.JSONEq(t, `"`+rootA+`"`, rawRecord(t, s, currentRootKey(clientA)))
	assert.JSONEq(t, `{"home":{},"x":1}`, rawRecord(t, s, clientDataKey(clientA, rootA)))
	assert.Equal(t, 1, sender.count("t1"))

	// second root without a name
	env, err = svc.StoreData(ctx, "t1", clientData(t, `{"home":{"location":"`+rootB+`"},"y":2}`))
	require.NoError(t, err)
	assert.Equal(t, rootB, env.Payload.Home.Location)
	assert.Nil(t, env.Payload.Home.NodeName)
	assert.JSONEq(t, `[{"url":"`+rootA+`","name":"A"},{"url":"`+rootB+`","name":null}]`, rawRecord(t, s, rootsKey(clientA)))
	assert.JSONEq(t, `"`+rootB+`"`, rawRecord(t, s, currentRootKey(clientA)))

	// switch back to A loads the data of A
	env, err = svc.SwitchData(ctx, "t1", rootA)
	require.NoError(t, err)
	assert.JSONEq(t, `{"source":"moera","action":"loadedData","payload":{
		"version":2, "x":1,
		"home":{"location":"`+rootA+`","nodeName":"A"},
		"roots":[{"url":"`+rootA+`","name":"A"},{"url":"`+rootB+`","name":null}]
	}}`, envelopeJSON(t, env))
	assert.Equal(t, env, sender.last("t1"))

	// deleting the current root promotes the last registry entry
	env, ok, err := svc.DeleteData(ctx, "t1", "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rootB, env.Payload.Home.Location)
	assert.JSONEq(t, `2`, string(env.Payload.Fields["y"]))
	assert.Equal(t, []Root{{URL: rootB}}, env.Payload.Roots)
	assert.JSONEq(t, `"`+rootB+`"`, rawRecord(t, s, currentRootKey(clientA)))
	assert.Equal(t, "", rawRecord(t, s, clientDataKey(clientA, rootA)))

	roots, current, err := svc.Roots(ctx, clientA)
	require.NoError(t, err)
	assert.Equal(t, []Root{{URL: rootB}}, roots)
	assert.Equal(t, rootB, current)
	assert.Equal(t, 4, sender.count("t1"))
}

func TestStoreStripsReservedFields(t *testing.T) {
	svc, s, _ := newTestService(t)
	ctx := context.Background()

	env, err := svc.StoreData(ctx, "t1", clientData(t, `{"clientId":"c-7","home":{"location":"`+rootA+`","nodeName":"A","theme":"dark"}}`))
	require.NoError(t, err)

	assert.JSONEq(t, `"c-7"`, string(env.Payload.Fields["clientId"]), "response keeps clientId")
	assert.JSONEq(t, `{"home":{"theme":"dark"}}`, rawRecord(t, s, clientDataKey(clientA, rootA)))
}

func TestStoreMergesShallow(t *testing.T) {
	svc, s, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.StoreData(ctx, "t1", clientData(t, `{"home":{"location":"`+rootA+`","nodeName":"A"},"a":1,"b":{"c":1}}`))
	require.NoError(t, err)

	// no location: data goes to the current root, the name comes from the registry
	env, err := svc.StoreData(ctx, "t1", clientData(t, `{"home":{"nodeName":"forged"},"b":{"d":2}}`))
	require.NoError(t, err)
	assert.Equal(t, strPtr("A"), env.Payload.Home.NodeName)
	assert.JSONEq(t, `{"home":{},"a":1,"b":{"d":2}}`, rawRecord(t, s, clientDataKey(clientA, rootA)))
	assert.JSONEq(t, `[{"url":"`+rootA+`","name":"A"}]`, rawRecord(t, s, rootsKey(clientA)))
}

func TestStoreRenamesRootInPlace(t *testing.T) {
	svc, s, _ := newTestService(t)
	ctx := context.Background()

	for _, raw := range []string{
		`{"home":{"location":"` + rootA + `","nodeName":"A"}}`,
		`{"home":{"location":"` + rootB + `","nodeName":"B"}}`,
		`{"home":{"location":"` + rootA + `","nodeName":"A2"}}`,
	} {
		_, err := svc.StoreData(ctx, "t1", clientData(t, raw))
		require.NoError(t, err)
	}

	assert.JSONEq(t, `[{"url":"`+rootA+`","name":"A2"},{"url":"`+rootB+`","name":"B"}]`, rawRecord(t, s, rootsKey(clientA)))
	assert.JSONEq(t, `"`+rootA+`"`, rawRecord(t, s, currentRootKey(clientA)))
}

func TestStoreWithoutRoot(t *testing.T) {
	svc, s, sender := newTestService(t)
	ctx := context.Background()

	_, err := svc.Tabs().AddTab(ctx, "t1")
	require.NoError(t, err)

	env, err := svc.StoreData(ctx, "t1", clientData(t, `{"x":1}`))
	require.NoError(t, err)
	assert.False(t, env.Payload.HasHome())
	assert.Nil(t, env.Payload.Roots)
	assert.Equal(t, "", rawRecord(t, s, rootsKey(clientA)))
	assert.Equal(t, 1, sender.count("t1"))
}

func TestSwitchNoop(t *testing.T) {
	svc, s, sender := newTestService(t)
	ctx := context.Background()

	_, err := svc.Tabs().AddTab(ctx, "t1")
	require.NoError(t, err)
	_, err = svc.StoreData(ctx, "t1", clientData(t, `{"home":{"location":"`+rootA+`"}}`))
	require.NoError(t, err)

	for _, location := range []string{"", rootA, rootC} {
		env, err := svc.SwitchData(ctx, "t1", location)
		require.NoError(t, err)
		assert.False(t, env.Payload.HasHome(), "switch to %q", location)
		assert.JSONEq(t, `"`+rootA+`"`, rawRecord(t, s, currentRootKey(clientA)))
	}
	// one store plus three empty broadcasts
	assert.Equal(t, 4, sender.count("t1"))
	assert.False(t, sender.last("t1").Payload.HasHome())
}

func TestDeleteNonCurrent(t *testing.T) {
	svc, s, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.StoreData(ctx, "t1", clientData(t, `{"home":{"location":"`+rootA+`","nodeName":"A"},"a":1}`))
	require.NoError(t, err)
	_, err = svc.StoreData(ctx, "t1", clientData(t, `{"home":{"location":"`+rootB+`","nodeName":"B"},"b":1}`))
	require.NoError(t, err)

	env, ok, err := svc.DeleteData(ctx, "t1", rootA)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rootB, env.Payload.Home.Location)
	assert.Equal(t, strPtr("B"), env.Payload.Home.NodeName)
	assert.JSONEq(t, `1`, string(env.Payload.Fields["b"]))
	assert.JSONEq(t, `[{"url":"`+rootB+`","name":"B"}]`, rawRecord(t, s, rootsKey(clientA)))
	assert.Equal(t, "", rawRecord(t, s, clientDataKey(clientA, rootA)))
}

func TestDeleteLastRoot(t *testing.T) {
	svc, s, sender := newTestService(t)
	ctx := context.Background()

	_, err := svc.Tabs().AddTab(ctx, "t1")
	require.NoError(t, err)
	_, err = svc.StoreData(ctx, "t1", clientData(t, `{"home":{"location":"`+rootA+`"}}`))
	require.NoError(t, err)

	env, ok, err := svc.DeleteData(ctx, "t1", rootA)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"source":"moera","action":"loadedData","payload":{"version":2,"roots":[]}}`, envelopeJSON(t, env))
	assert.Equal(t, "", rawRecord(t, s, currentRootKey(clientA)))
	assert.JSONEq(t, `[]`, rawRecord(t, s, rootsKey(clientA)))
	assert.Equal(t, env, sender.last("t1"))
}

func TestDeleteGuard(t *testing.T) {
	svc, s, sender := newTestService(t)
	ctx := context.Background()

	_, err := svc.Tabs().AddTab(ctx, "t1")
	require.NoError(t, err)
	_, err = svc.StoreData(ctx, "t1", clientData(t, `{"home":{"location":"`+rootA+`"}}`))
	require.NoError(t, err)

	// current root points outside of the registry
	putRecord(t, s, currentRootKey(clientA), `"`+rootC+`"`)
	before := sender.count("t1")

	_, ok, err := svc.DeleteData(ctx, "t1", rootA)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, before, sender.count("t1"), "aborted delete must not broadcast")
	assert.JSONEq(t, `[{"url":"`+rootA+`","name":null}]`, rawRecord(t, s, rootsKey(clientA)))
	assert.NotEmpty(t, rawRecord(t, s, clientDataKey(clientA, rootA)))

	// deleting the dangling current root is allowed and repairs the pointer
	env, ok, err := svc.DeleteData(ctx, "t1", "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rootA, env.Payload.Home.Location)
	assert.JSONEq(t, `"`+rootA+`"`, rawRecord(t, s, currentRootKey(clientA)))
}

func TestDeleteWithoutCurrentRoot(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, ok, err := svc.DeleteData(context.Background(), "t1", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMalformedRecord(t *testing.T) {
	svc, s, _ := newTestService(t)
	putRecord(t, s, rootsKey(clientA), `{not json`)

	_, err := svc.LoadData(context.Background(), "t1")
	assert.Error(t, err)
}

func TestClientURLPartitions(t *testing.T) {
	svc, s, sender := newTestService(t)
	ctx := context.Background()

	_, err := svc.Tabs().AddTab(ctx, "default-tab")
	require.NoError(t, err)
	require.NoError(t, svc.Settings().SetSettings(ctx, Settings{DefaultClient: false, CustomClientURL: clientB}))
	_, err = svc.Tabs().AddTab(ctx, "custom-tab")
	require.NoError(t, err)

	_, err = svc.StoreData(ctx, "custom-tab", clientData(t, `{"home":{"location":"`+rootA+`"}}`))
	require.NoError(t, err)

	assert.Equal(t, 1, sender.count("custom-tab"))
	assert.Equal(t, 0, sender.count("default-tab"))
	assert.NotEmpty(t, rawRecord(t, s, rootsKey(clientB)))
	assert.Equal(t, "", rawRecord(t, s, rootsKey(clientA)))

	// the default tab keeps seeing its own (empty) client URL
	env, err := svc.LoadData(ctx, "default-tab")
	require.NoError(t, err)
	assert.False(t, env.Payload.HasHome())
}

func TestConcurrentStores(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	const workers = 16
	payloads := make([]*ClientData, workers)
	for i := range payloads {
		payloads[i] = clientData(t, fmt.Sprintf(`{"home":{"location":"https://root%d.example","nodeName":"n%d"},"w%d":%d}`, i, i, i, i))
	}

	var wg sync.WaitGroup
	for _, data := range payloads {
		wg.Add(1)
		go func(data *ClientData) {
			defer wg.Done()
			_, err := svc.StoreData(ctx, "t1", data)
			assert.NoError(t, err)
		}(data)
	}
	wg.Wait()

	roots, current, err := svc.Roots(ctx, clientA)
	require.NoError(t, err)
	assert.Len(t, roots, workers)
	assert.NotNil(t, findRoot(roots, current), "current root must be registered")
}

// --------------------------------------------------------------------------
// Tabs
// --------------------------------------------------------------------------

func TestBroadcastPrunesFailedTabs(t *testing.T) {
	svc, _, sender := newTestService(t)
	ctx := context.Background()

	for _, tab := range []TabID{"ok-1", "ok-2", "gone"} {
		_, err := svc.Tabs().AddTab(ctx, tab)
		require.NoError(t, err)
	}
	sender.fail["gone"] = true

	delivered := svc.Tabs().Broadcast(ctx, emptyEnvelope(), clientA)
	assert.Equal(t, 2, delivered)
	assert.Equal(t, map[TabID]string{"ok-1": clientA, "ok-2": clientA}, svc.Tabs().Tabs())

	// pruned tabs fall back to the settings
	clientURL, err := svc.Tabs().TabClientURL(ctx, "gone")
	require.NoError(t, err)
	assert.Equal(t, clientA, clientURL)
}

func TestTabBindingIsFixed(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	bound, err := svc.Tabs().AddTab(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, clientA, bound)

	require.NoError(t, svc.Settings().SetSettings(ctx, Settings{DefaultClient: false, CustomClientURL: clientB}))

	clientURL, err := svc.Tabs().TabClientURL(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, clientA, clientURL)

	clientURL, err = svc.Tabs().TabClientURL(ctx, "unknown")
	require.NoError(t, err)
	assert.Equal(t, clientB, clientURL)

	svc.Tabs().RemoveTab("t1")
	svc.Tabs().Reset()
	assert.Empty(t, svc.Tabs().Tabs())
}

func TestBroadcastWithoutSender(t *testing.T) {
	registry := NewTabRegistry(NewSettingsStore(newTestStore()), nil)
	_, err := registry.AddTab(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 0, registry.Broadcast(context.Background(), emptyEnvelope(), clientA))
}

// --------------------------------------------------------------------------
// Settings
// --------------------------------------------------------------------------

func TestSettings(t *testing.T) {
	settings := NewSettingsStore(newTestStore())
	ctx := context.Background()

	got, err := settings.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), got)

	require.NoError(t, settings.SetSettings(ctx, Settings{DefaultClient: true, CustomClientURL: clientB}))
	clientURL, err := settings.ClientURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, clientA, clientURL, "default client wins over the custom URL")

	require.NoError(t, settings.SetSettings(ctx, Settings{DefaultClient: false, CustomClientURL: ""}))
	got, err = settings.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, Settings{DefaultClient: false, CustomClientURL: DefaultClientURL}, got)
	assert.Equal(t, DefaultClientURL, got.ClientURL())
}
