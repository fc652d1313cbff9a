package home

// Record keys of the backing store
const (
	keyDefaultClient   = "defaultClient"
	keyCustomClientURL = "customClientUrl"

	// legacy (v1) layout
	keyLegacySettings   = "settings"
	keyLegacyClientData = "clientData"
)

func rootsKey(clientURL string) string {
	return "roots;" + clientURL
}

func currentRootKey(clientURL string) string {
	return "currentRoot;" + clientURL
}

func clientDataKey(clientURL, root string) string {
	return "clientData;" + clientURL + ";" + root
}
