// Package server implements the homekv server: the websocket tab channel
// and a small HTTP api around a home.Service.
//
// Routes:
//
//	GET /tabs       websocket, one connection per tab
//	GET /settings   current settings as JSON
//	PUT /settings   replace the settings
//	GET /roots      registry and current root (?clientUrl=, defaults to the settings)
//	GET /metrics    metrics in Prometheus text format
//
// On connect a tab gets a random id and the message
// {"source":"moera","action":"attached","tabId":...}. It then sends
// loadData, storeData, deleteData and switchData requests. loadData is
// answered on the same connection, the results of the other requests are
// broadcast to every tab of the same client URL. Requests with a requestId
// get a "done" acknowledgement, failures are reported as "error" messages.
//
// The server implements home.TabSender: broadcasts are written to the
// connection of each target tab. Writes to a connection are serialized with
// a per connection mutex and bounded by the configured timeout.
package server
