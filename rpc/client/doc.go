// Package client implements a Go tab for the homekv tab channel.
//
// A TabClient holds one websocket connection to the /tabs endpoint of a
// server. The server assigns the tab id on connect and binds the tab to the
// client URL of its settings at that moment.
//
// Requests (Load, Store, Delete, Switch) carry a request ID and wait for the
// matching reply. Broadcasts, including the ones caused by this tab's own
// requests, are delivered on the Envelopes channel; a broadcast always
// arrives before the reply of the request that caused it.
//
// Usage Example:
//
//	tab, err := client.Dial(ctx, common.ClientConfig{
//	    Endpoint:      "localhost:8080",
//	    TimeoutSecond: 5,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tab.Close()
//
//	err = tab.Store(ctx, map[string]any{
//	    "home": map[string]any{"location": "https://node.example", "nodeName": "node"},
//	})
//	env := <-tab.Envelopes()
package client
