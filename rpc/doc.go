// Package rpc provides the communication layer between homekv and its tabs.
//
// The package is organized into several subpackages:
//
//   - common: The Message protocol of the tab channel, configuration
//     structures and the logging setup.
//
//   - server: The websocket tab channel and the HTTP api (settings, roots,
//     metrics) around a home.Service.
//
//   - client: A Go tab that attaches to a server, sends requests and
//     receives broadcasts.
package rpc
