package home

import (
	"context"
	"fmt"
	"sync"
)

// TabID identifies one attached consumer
type TabID string

// TabSender delivers an Envelope to a single tab.
// An error means the tab is gone and will be forgotten.
type TabSender interface {
	Send(ctx context.Context, tab TabID, envelope Envelope) error
}

// ClientURLResolver resolves the client URL a new tab is bound to
type ClientURLResolver interface {
	ClientURL(ctx context.Context) (string, error)
}

// TabRegistry binds tabs to client URLs and pushes Envelopes to them.
// The registry is in memory only, a new process starts without tabs.
type TabRegistry struct {
	mu       sync.Mutex
	tabs     map[TabID]string
	resolver ClientURLResolver
	sender   TabSender
}

// NewTabRegistry creates an empty registry. A nil sender drops every broadcast.
func NewTabRegistry(resolver ClientURLResolver, sender TabSender) *TabRegistry {
	return &TabRegistry{
		tabs:     make(map[TabID]string),
		resolver: resolver,
		sender:   sender,
	}
}

// AddTab binds the tab to the current client URL and returns it.
// The binding is fixed until the tab is removed.
func (r *TabRegistry) AddTab(ctx context.Context, tab TabID) (string, error) {
	clientURL, err := r.resolver.ClientURL(ctx)
	if err != nil {
		return "", fmt.Errorf("add tab %s: %w", tab, err)
	}

	r.mu.Lock()
	r.tabs[tab] = clientURL
	r.mu.Unlock()

	tabsAttached.Inc()
	log.Debugf("tab %s attached to %s", tab, clientURL)
	return clientURL, nil
}

// RemoveTab forgets the tab, unknown tabs are ignored
func (r *TabRegistry) RemoveTab(tab TabID) {
	r.mu.Lock()
	_, ok := r.tabs[tab]
	delete(r.tabs, tab)
	r.mu.Unlock()

	if ok {
		log.Debugf("tab %s detached", tab)
	}
}

// TabClientURL returns the client URL the tab is bound to.
// Unknown tabs get the client URL of the current settings.
func (r *TabRegistry) TabClientURL(ctx context.Context, tab TabID) (string, error) {
	r.mu.Lock()
	clientURL, ok := r.tabs[tab]
	r.mu.Unlock()

	if ok {
		return clientURL, nil
	}
	return r.resolver.ClientURL(ctx)
}

// Tabs returns a snapshot of all bindings
func (r *TabRegistry) Tabs() map[TabID]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make(map[TabID]string, len(r.tabs))
	for tab, clientURL := range r.tabs {
		snapshot[tab] = clientURL
	}
	return snapshot
}

// Reset forgets all tabs
func (r *TabRegistry) Reset() {
	r.mu.Lock()
	r.tabs = make(map[TabID]string)
	r.mu.Unlock()
}

// Broadcast sends the envelope to every tab bound to clientURL.
// All deliveries run concurrently; tabs that failed are removed after
// every delivery has finished. Returns the number of successful deliveries.
func (r *TabRegistry) Broadcast(ctx context.Context, envelope Envelope, clientURL string) int {
	if r.sender == nil {
		return 0
	}

	r.mu.Lock()
	targets := make([]TabID, 0, len(r.tabs))
	for tab, bound := range r.tabs {
		if bound == clientURL {
			targets = append(targets, tab)
		}
	}
	r.mu.Unlock()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed []TabID
	)
	for _, tab := range targets {
		wg.Add(1)
		go func(tab TabID) {
			defer wg.Done()
			if err := r.sender.Send(ctx, tab, envelope); err != nil {
				log.Debugf("delivery to tab %s failed: %v", tab, err)
				mu.Lock()
				failed = append(failed, tab)
				mu.Unlock()
			}
		}(tab)
	}
	wg.Wait()

	if len(failed) > 0 {
		r.mu.Lock()
		for _, tab := range failed {
			delete(r.tabs, tab)
		}
		r.mu.Unlock()
		tabsPruned.Add(len(failed))
	}

	delivered := len(targets) - len(failed)
	broadcastDeliveries.Add(delivered)
	return delivered
}
