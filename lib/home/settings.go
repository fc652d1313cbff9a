package home

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/homekv/lib/store"
)

// Settings selects which client the tabs are talking to
type Settings struct {
	DefaultClient   bool   `json:"defaultClient"`
	CustomClientURL string `json:"customClientUrl"`
}

// DefaultSettings returns the settings used when nothing is stored
func DefaultSettings() Settings {
	return Settings{
		DefaultClient:   true,
		CustomClientURL: DefaultClientURL,
	}
}

// ClientURL returns the client URL selected by the settings
func (s Settings) ClientURL() string {
	if s.DefaultClient || s.CustomClientURL == "" {
		return DefaultClientURL
	}
	return s.CustomClientURL
}

// SettingsStore reads and writes the settings records
type SettingsStore struct {
	records records
}

// NewSettingsStore creates a settings accessor on top of s
func NewSettingsStore(s store.IStore) *SettingsStore {
	return &SettingsStore{records: records{store: s}}
}

// GetSettings returns the stored settings, missing records fall back to their defaults
func (s *SettingsStore) GetSettings(ctx context.Context) (Settings, error) {
	values, err := s.records.get(ctx, keyDefaultClient, keyCustomClientURL)
	if err != nil {
		return Settings{}, fmt.Errorf("get settings: %w", err)
	}

	settings := DefaultSettings()
	if _, err := values.decode(keyDefaultClient, &settings.DefaultClient); err != nil {
		return Settings{}, fmt.Errorf("get settings: %w", err)
	}
	if _, err := values.decode(keyCustomClientURL, &settings.CustomClientURL); err != nil {
		return Settings{}, fmt.Errorf("get settings: %w", err)
	}
	if settings.CustomClientURL == "" {
		settings.CustomClientURL = DefaultClientURL
	}
	return settings, nil
}

// SetSettings overwrites both settings records
func (s *SettingsStore) SetSettings(ctx context.Context, settings Settings) error {
	b := batch{}
	if err := b.put(keyDefaultClient, settings.DefaultClient); err != nil {
		return err
	}
	if err := b.put(keyCustomClientURL, settings.CustomClientURL); err != nil {
		return err
	}
	if err := s.records.write(ctx, b); err != nil {
		return fmt.Errorf("set settings: %w", err)
	}
	log.Infof("settings updated (defaultClient=%v, customClientUrl=%q)", settings.DefaultClient, settings.CustomClientURL)
	return nil
}

// ClientURL resolves the client URL from the stored settings
func (s *SettingsStore) ClientURL(ctx context.Context) (string, error) {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return "", err
	}
	return settings.ClientURL(), nil
}
