package home

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/homekv/lib/lockmgr"
)

// legacySettings is the v1 "settings" record
type legacySettings struct {
	ClientURL string `json:"clientUrl"`
}

// IsStorageV1 reports whether the store still holds records of the v1 layout
func (s *Service) IsStorageV1(ctx context.Context) (bool, error) {
	values, err := s.records.get(ctx, keyLegacySettings, keyLegacyClientData)
	if err != nil {
		return false, fmt.Errorf("check storage version: %w", err)
	}
	return values.has(keyLegacySettings) || values.has(keyLegacyClientData), nil
}

// MigrateStorageToV2 rewrites the v1 single root layout into the v2 layout.
//
// The store is cleared, so callers must check IsStorageV1 first. The legacy
// home location becomes the only root of the legacy client URL.
func (s *Service) MigrateStorageToV2(ctx context.Context) error {
	start := time.Now()
	err := lockmgr.WithLock(ctx, s.locks, LockName, func() error {
		observeLockWait("migrate", start)
		return s.migrate(ctx)
	})
	observeOp("migrate", start, err)
	return err
}

func (s *Service) migrate(ctx context.Context) error {
	values, err := s.records.get(ctx, keyLegacySettings, keyLegacyClientData)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	var settings legacySettings
	if _, err := values.decode(keyLegacySettings, &settings); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	clientURL := settings.ClientURL
	if clientURL == "" {
		clientURL = DefaultClientURL
	}

	data := NewClientData()
	if _, err := values.decode(keyLegacyClientData, data); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	home := data.Location()

	b := batch{}
	if clientURL == DefaultClientURL {
		err = errors.Join(b.put(keyDefaultClient, true), b.put(keyCustomClientURL, ""))
	} else {
		err = errors.Join(b.put(keyDefaultClient, false), b.put(keyCustomClientURL, clientURL))
	}
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if home != "" {
		err = errors.Join(
			b.put(rootsKey(clientURL), []Root{{URL: home}}),
			b.put(currentRootKey(clientURL), home),
			b.put(clientDataKey(clientURL, home), data),
		)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("migrate: clear store: %w", err)
	}
	if err := s.records.write(ctx, b); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	migrations.Inc()
	if home != "" {
		log.Infof("migrated storage to v2 (client %s, root %s)", clientURL, home)
	} else {
		log.Infof("migrated storage to v2 (client %s, no root)", clientURL)
	}
	return nil
}
