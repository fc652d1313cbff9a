// Package cmd implements the command-line interface of homekv. It provides
// a hierarchical command structure for running the server, maintaining its
// backing store and interacting with it as a tab.
//
// The package is organized into several subpackages:
//
//   - serve: Start the server (migrates a v1 store on startup)
//   - migrate: Offline migration of a v1 backing store
//   - settings: Show and replace the settings, list the roots of a client URL
//   - tab: Attach as a tab (load, store, delete, switch, watch, perf)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See homekv -help for a list of all commands.
package cmd
