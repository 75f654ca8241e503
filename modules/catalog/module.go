// Package catalog hosts the Catalog Store: the terminal's cached,
// optimistically-mutated replica of the backend product listing.
package catalog

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-monolith/mono"
	"github.com/kencha-a11/pos-terminal/events"
	"github.com/kencha-a11/pos-terminal/modules/storage"
)

// Module wires the catalog store into the application.
type Module struct {
	store    *Store
	backend  Backend
	cache    *storage.Store
	eventBus mono.EventBus
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.EventEmitterModule = (*Module)(nil)

// NewModule creates a new catalog module.
func NewModule() *Module {
	return &Module{}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "catalog"
}

// SetBackend wires the remote client dependency.
func (m *Module) SetBackend(b Backend) {
	m.backend = b
}

// SetStorage wires the local persistence dependency.
func (m *Module) SetStorage(cache *storage.Store) {
	m.cache = cache
}

// SetEventBus receives the event bus for publishing store-change events.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module publishes.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.CatalogChangedV1.ToBase(),
	}
}

// Start starts the module.
func (m *Module) Start(_ context.Context) error {
	log.Println("[catalog] Module started")
	return nil
}

// Stop stops the module.
func (m *Module) Stop(_ context.Context) error {
	log.Println("[catalog] Module stopped")
	return nil
}

// Bootstrap builds the store once dependencies are wired, then hydrates it
// from the local cache (falling back to a remote fetch).
func (m *Module) Bootstrap(ctx context.Context) error {
	if m.backend == nil {
		return fmt.Errorf("catalog backend not set")
	}
	if m.cache == nil {
		return fmt.Errorf("catalog storage not set")
	}

	m.store = NewStore(m.backend, m.cache)
	m.store.SetOnChange(m.publishChanged)
	m.store.Hydrate(ctx)
	return nil
}

// GetStore returns the catalog store.
func (m *Module) GetStore() *Store {
	return m.store
}

// publishChanged publishes a CatalogChanged event. Publishing is best-effort;
// a failure is logged and never fails the operation that caused it.
func (m *Module) publishChanged(reason string, count, page int, hasMore bool) {
	if m.eventBus == nil {
		return
	}
	event := events.CatalogChangedEvent{
		Reason:    reason,
		Count:     count,
		Page:      page,
		HasMore:   hasMore,
		Timestamp: time.Now(),
	}
	if err := events.CatalogChangedV1.Publish(m.eventBus, event, nil); err != nil {
		log.Printf("[catalog] Warning: failed to publish CatalogChanged event: %v", err)
	}
}
