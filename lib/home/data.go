package home

import (
	"context"
	"fmt"
	"time"

	"github.com/ValentinKolb/homekv/lib/lockmgr"
	"github.com/ValentinKolb/homekv/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("home")

// Service implements the root registry and client data operations for all
// client URLs on top of one backing store.
//
// Every operation runs inside the critical section LockName of the lock
// manager. Operations that change data broadcast their result to all tabs
// bound to the same client URL after the lock has been released.
type Service struct {
	store    store.IStore
	records  records
	locks    lockmgr.ILockManager
	settings *SettingsStore
	tabs     *TabRegistry
}

// NewService creates a service. The sender is used for broadcasts, it may be nil.
func NewService(s store.IStore, locks lockmgr.ILockManager, sender TabSender) *Service {
	settings := NewSettingsStore(s)
	return &Service{
		store:    s,
		records:  records{store: s},
		locks:    locks,
		settings: settings,
		tabs:     NewTabRegistry(settings, sender),
	}
}

// Settings returns the settings accessor of the service
func (s *Service) Settings() *SettingsStore {
	return s.settings
}

// Tabs returns the tab registry of the service
func (s *Service) Tabs() *TabRegistry {
	return s.tabs
}

// --------------------------------------------------------------------------
// Registry State
// --------------------------------------------------------------------------

// rootState is the registry of one client URL as read inside a critical section
type rootState struct {
	clientURL string
	current   string // "" if there is no current root
	roots     []Root // never nil
}

func (s *Service) readState(ctx context.Context, clientURL string) (*rootState, error) {
	values, err := s.records.get(ctx, rootsKey(clientURL), currentRootKey(clientURL))
	if err != nil {
		return nil, err
	}

	st := &rootState{clientURL: clientURL}
	if _, err := values.decode(rootsKey(clientURL), &st.roots); err != nil {
		return nil, err
	}
	if st.roots == nil {
		st.roots = []Root{}
	}
	if _, err := values.decode(currentRootKey(clientURL), &st.current); err != nil {
		return nil, err
	}
	return st, nil
}

// readClientData returns the stored data of root, or an empty blob if there is none
func (s *Service) readClientData(ctx context.Context, clientURL, root string) (*ClientData, error) {
	key := clientDataKey(clientURL, root)
	values, err := s.records.get(ctx, key)
	if err != nil {
		return nil, err
	}

	data := NewClientData()
	if _, err := values.decode(key, data); err != nil {
		return nil, err
	}
	return data, nil
}

// loadCurrent builds the Envelope for the current root of st
func (s *Service) loadCurrent(ctx context.Context, st *rootState) (Envelope, error) {
	data, err := s.readClientData(ctx, st.clientURL, st.current)
	if err != nil {
		return Envelope{}, err
	}
	return loadedEnvelope(st.current, data, st.roots), nil
}

// critical runs fn inside the mutation lock for the client URL of tab
func (s *Service) critical(ctx context.Context, op string, tab TabID, fn func(clientURL string) error) (string, error) {
	start := time.Now()

	clientURL, err := s.tabs.TabClientURL(ctx, tab)
	if err == nil {
		err = lockmgr.WithLock(ctx, s.locks, LockName, func() error {
			observeLockWait(op, start)
			return fn(clientURL)
		})
	}

	observeOp(op, start, err)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return clientURL, nil
}

// --------------------------------------------------------------------------
// Operations
// --------------------------------------------------------------------------

// LoadData returns the data of the current root for the tab's client URL.
// Nothing is broadcast.
func (s *Service) LoadData(ctx context.Context, tab TabID) (Envelope, error) {
	env := emptyEnvelope()

	_, err := s.critical(ctx, "load", tab, func(clientURL string) error {
		st, err := s.readState(ctx, clientURL)
		if err != nil {
			return err
		}
		if st.current == "" {
			return nil
		}
		env, err = s.loadCurrent(ctx, st)
		return err
	})
	if err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// StoreData merges data into the data of the current root and broadcasts the result.
//
// If data carries home.location, that root becomes the current root and is
// added to (or renamed in) the registry using home.nodeName.
func (s *Service) StoreData(ctx context.Context, tab TabID, data *ClientData) (Envelope, error) {
	if data == nil {
		data = NewClientData()
	}
	env := emptyEnvelope()

	clientURL, err := s.critical(ctx, "store", tab, func(clientURL string) error {
		st, err := s.readState(ctx, clientURL)
		if err != nil {
			return err
		}

		if location := data.Location(); location != "" {
			b := batch{}
			if location != st.current {
				st.current = location
				if err := b.put(currentRootKey(clientURL), location); err != nil {
					return err
				}
			}
			st.roots = setRoot(st.roots, location, data.NodeName())
			if err := b.put(rootsKey(clientURL), st.roots); err != nil {
				return err
			}
			if err := s.records.write(ctx, b); err != nil {
				return err
			}
		}

		if st.current == "" {
			return nil
		}

		stored, err := s.readClientData(ctx, clientURL, st.current)
		if err != nil {
			return err
		}
		stored.Merge(data)

		b := batch{}
		if err := b.put(clientDataKey(clientURL, st.current), stored); err != nil {
			return err
		}
		if err := s.records.write(ctx, b); err != nil {
			return err
		}

		env = loadedEnvelope(st.current, stored, st.roots)
		return nil
	})
	if err != nil {
		return Envelope{}, err
	}

	s.tabs.Broadcast(ctx, env, clientURL)
	return env, nil
}

// DeleteData removes the root at location (the current root if location is
// empty) together with its data and broadcasts the new state.
//
// If the registry does not contain the current root, only the current root
// may be deleted; any other request is dropped and ok is false.
// Deleting the current root promotes the last root of the registry.
func (s *Service) DeleteData(ctx context.Context, tab TabID, location string) (env Envelope, ok bool, err error) {
	clientURL, err := s.critical(ctx, "delete", tab, func(clientURL string) error {
		st, err := s.readState(ctx, clientURL)
		if err != nil {
			return err
		}

		if location == "" {
			location = st.current
		}
		if location == "" {
			log.Debugf("delete for %s dropped: no current root", clientURL)
			return nil
		}
		if findRoot(st.roots, st.current) == nil && location != st.current {
			log.Warningf("delete of %s for %s dropped: current root %q is not registered", location, clientURL, st.current)
			return nil
		}

		st.roots = removeRoot(st.roots, location)
		b := batch{}
		if err := b.put(rootsKey(clientURL), st.roots); err != nil {
			return err
		}
		if err := s.records.write(ctx, b); err != nil {
			return err
		}
		if err := s.records.remove(ctx, clientDataKey(clientURL, location)); err != nil {
			return err
		}
		ok = true

		if location == st.current {
			if len(st.roots) == 0 {
				if err := s.records.remove(ctx, currentRootKey(clientURL)); err != nil {
					return err
				}
				env = emptyEnvelope()
				env.Payload.Roots = []Root{}
				return nil
			}

			st.current = st.roots[len(st.roots)-1].URL
			b := batch{}
			if err := b.put(currentRootKey(clientURL), st.current); err != nil {
				return err
			}
			if err := s.records.write(ctx, b); err != nil {
				return err
			}
		}

		env, err = s.loadCurrent(ctx, st)
		return err
	})
	if err != nil {
		return Envelope{}, false, err
	}
	if !ok {
		return Envelope{}, false, nil
	}

	s.tabs.Broadcast(ctx, env, clientURL)
	return env, true, nil
}

// SwitchData makes the root at location the current root and broadcasts its data.
// An empty, unknown or already current location results in an empty Envelope
// which is broadcast as well.
func (s *Service) SwitchData(ctx context.Context, tab TabID, location string) (Envelope, error) {
	env := emptyEnvelope()

	clientURL, err := s.critical(ctx, "switch", tab, func(clientURL string) error {
		st, err := s.readState(ctx, clientURL)
		if err != nil {
			return err
		}

		if location == "" || location == st.current || findRoot(st.roots, location) == nil {
			return nil
		}

		st.current = location
		b := batch{}
		if err := b.put(currentRootKey(clientURL), location); err != nil {
			return err
		}
		if err := s.records.write(ctx, b); err != nil {
			return err
		}

		env, err = s.loadCurrent(ctx, st)
		return err
	})
	if err != nil {
		return Envelope{}, err
	}

	s.tabs.Broadcast(ctx, env, clientURL)
	return env, nil
}

// Roots returns the registry and the current root ("" if none) of clientURL
func (s *Service) Roots(ctx context.Context, clientURL string) (roots []Root, current string, err error) {
	start := time.Now()
	err = lockmgr.WithLock(ctx, s.locks, LockName, func() error {
		observeLockWait("roots", start)
		st, err := s.readState(ctx, clientURL)
		if err != nil {
			return err
		}
		roots, current = st.roots, st.current
		return nil
	})
	observeOp("roots", start, err)
	if err != nil {
		return nil, "", fmt.Errorf("roots: %w", err)
	}
	return roots, current, nil
}
