package home

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/homekv/lib/store"
)

// records reads and writes JSON encoded records of a backing store
type records struct {
	store store.IStore
}

// batch collects record writes to be applied with a single Set
type batch map[string][]byte

func (b batch) put(key string, v any) error {
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode record %q: %w", key, err)
	}
	b[key] = encoded
	return nil
}

func (r records) get(ctx context.Context, keys ...string) (fetched, error) {
	values, err := r.store.Get(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	return values, nil
}

func (r records) write(ctx context.Context, b batch) error {
	if len(b) == 0 {
		return nil
	}
	if err := r.store.Set(ctx, b); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	return nil
}

func (r records) remove(ctx context.Context, keys ...string) error {
	if err := r.store.Remove(ctx, keys...); err != nil {
		return fmt.Errorf("remove records: %w", err)
	}
	return nil
}

// fetched is the result of a records.get call
type fetched map[string][]byte

func (f fetched) has(key string) bool {
	_, ok := f[key]
	return ok
}

// decode unmarshals the record for key into v.
// It returns false without touching v if the record is missing.
func (f fetched) decode(key string, v any) (bool, error) {
	raw, ok := f[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("decode record %q: %w", key, err)
	}
	return true, nil
}
