// Package home implements the versioned per client URL data layer.
//
// For every client URL the package keeps a registry of known roots (home
// locations), a pointer to the current root and one opaque data blob per
// root. All records live in a store.IStore as JSON documents:
//
//	defaultClient                     bool
//	customClientUrl                   string
//	roots;<clientUrl>                 [{"url": ..., "name": ...}, ...]
//	currentRoot;<clientUrl>           string
//	clientData;<clientUrl>;<rootUrl>  object
//
// The paths home.location and home.nodeName of a data blob are derived from
// the registry on every read and are never persisted, neither is clientId.
//
// Service is the entry point. LoadData, StoreData, DeleteData and SwitchData
// run inside the single named lock "clientData"; the data changing
// operations broadcast their result to all tabs of the same client URL
// through the TabRegistry.
//
// MigrateStorageToV2 converts the single root v1 layout (records "settings"
// and "clientData") to the layout above. It clears the store, so it must
// only run if IsStorageV1 reports true.
package home
