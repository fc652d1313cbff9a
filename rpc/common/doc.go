// Package common provides the types shared by the tab channel server and
// client: the Message protocol, the configuration structures and the
// logging setup.
//
// Key Components:
//
//   - Message: single structure for every message on the tab channel, in
//     both directions. Tabs send loadData, storeData, deleteData and
//     switchData requests; the server sends attached, loadedData, done and
//     error messages. Factory functions create each kind.
//
//   - ServerConfig / ClientConfig: configuration of the server (endpoint,
//     backing store, timeouts, log level) and of the tab client, both
//     with a String method for startup dumps.
//
//   - Logger: custom implementation of the dragonboat logger.ILogger
//     interface printing "LEVEL | package | message" lines. InitLoggers
//     installs it as the global logger factory.
package common
