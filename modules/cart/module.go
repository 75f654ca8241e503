package cart

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-monolith/mono"

	"github.com/kencha-a11/pos-terminal/events"
	"github.com/kencha-a11/pos-terminal/modules/backend"
	"github.com/kencha-a11/pos-terminal/modules/catalog"
	"github.com/kencha-a11/pos-terminal/modules/storage"
)

// Module hosts the cart store. Like the catalog module it is wired after
// application start and built in Bootstrap once its dependencies are set.
type Module struct {
	store    *Store
	backend  *backend.Module
	storage  *storage.Module
	catalog  *catalog.Module
	eventBus mono.EventBus
}

var _ mono.Module = (*Module)(nil)
var _ mono.EventEmitterModule = (*Module)(nil)

func NewModule() *Module {
	return &Module{}
}

func (m *Module) Name() string {
	return "cart"
}

func (m *Module) SetBackend(b *backend.Module) {
	m.backend = b
}

func (m *Module) SetStorage(s *storage.Module) {
	m.storage = s
}

func (m *Module) SetCatalog(c *catalog.Module) {
	m.catalog = c
}

func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.CartChangedV1.ToBase(),
		events.SaleCompletedV1.ToBase(),
	}
}

func (m *Module) Start(ctx context.Context) error {
	log.Println("[cart] Module started")
	return nil
}

func (m *Module) Stop(ctx context.Context) error {
	log.Println("[cart] Module stopped")
	return nil
}

// Bootstrap builds the store and restores any persisted cart. Must run after
// SetBackend, SetStorage, SetCatalog and SetEventBus.
func (m *Module) Bootstrap(ctx context.Context) error {
	if m.backend == nil || m.storage == nil || m.catalog == nil {
		return fmt.Errorf("cart module not fully wired")
	}
	m.store = NewStore(m.catalog.GetStore(), m.backend.GetClient(), m.storage.GetStore())
	m.store.SetOnChange(m.publishChanged)
	m.store.SetOnSale(m.publishSale)
	m.store.Hydrate()
	return nil
}

func (m *Module) GetStore() *Store {
	return m.store
}

func (m *Module) publishChanged(reason string, count int, total string) {
	if m.eventBus == nil {
		return
	}
	event := events.CartChangedEvent{
		Reason:    reason,
		ItemCount: count,
		Total:     total,
		Timestamp: time.Now(),
	}
	if err := events.CartChangedV1.Publish(m.eventBus, event, nil); err != nil {
		log.Printf("[cart] Failed to publish cart change: %v", err)
	}
}

func (m *Module) publishSale(saleID int, total string, items int) {
	if m.eventBus == nil {
		return
	}
	event := events.SaleCompletedEvent{
		SaleID:    saleID,
		Total:     total,
		Items:     items,
		Timestamp: time.Now(),
	}
	if err := events.SaleCompletedV1.Publish(m.eventBus, event, nil); err != nil {
		log.Printf("[cart] Failed to publish sale: %v", err)
	}
}
