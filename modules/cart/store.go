package cart

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/kencha-a11/pos-terminal/domain/cart"
	catalogdomain "github.com/kencha-a11/pos-terminal/domain/catalog"
	"github.com/kencha-a11/pos-terminal/modules/backend"
	"github.com/kencha-a11/pos-terminal/modules/storage"
)

const cacheTTL = 30 * time.Minute

const msgCheckoutFailed = "Something went wrong"

// Catalog is the slice of the catalog store the cart depends on: the stock
// ceiling for mutations and the refresh triggered after a successful sale.
// The cart never mutates catalog state directly.
type Catalog interface {
	StockQuantity(id int) int
	Refresh(ctx context.Context, filters catalogdomain.Filters) error
}

// SaleBackend submits finished sales.
type SaleBackend interface {
	CreateSale(ctx context.Context, items []backend.SaleItem, total decimal.Decimal) (*backend.SaleResponse, error)
}

// Store owns the in-progress sale. Every quantity mutation is checked against
// the catalog's current stock figure; checkout re-validates the whole cart
// before submitting, so a ceiling that drifted since an item was added rejects
// the purchase instead of over-selling.
type Store struct {
	mu      sync.Mutex
	items   []domain.Item
	loading bool
	lastErr string

	catalog  Catalog
	sales    SaleBackend
	cache    *storage.Store
	onChange func(reason string, count int, total string)
	onSale   func(saleID int, total string, items int)
}

// NewStore creates a cart store.
func NewStore(catalog Catalog, sales SaleBackend, cache *storage.Store) *Store {
	return &Store{
		catalog: catalog,
		sales:   sales,
		cache:   cache,
	}
}

// SetOnChange installs the cart-change callback.
func (s *Store) SetOnChange(fn func(reason string, count int, total string)) {
	s.onChange = fn
}

// SetOnSale installs the sale-completed callback.
func (s *Store) SetOnSale(fn func(saleID int, total string, items int)) {
	s.onSale = fn
}

// Items returns a snapshot of the cart lines.
func (s *Store) Items() []domain.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Item, len(s.items))
	copy(out, s.items)
	return out
}

// Total returns the running total, recomputed on every call.
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Total(s.items)
}

// ItemCount returns the sum of quantities over all lines.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.ItemCount(s.items)
}

// HasItems reports whether the cart holds any lines.
func (s *Store) HasItems() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items) > 0
}

// Loading reports whether a checkout is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the last recorded checkout error message.
func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Hydrate loads the persisted cart if it is still fresh; a stale or corrupt
// envelope is cleared and the cart starts empty.
func (s *Store) Hydrate() {
	payload, writtenAt, ok := s.cache.LoadEnvelope(storage.KeyCartCache)
	if !ok {
		return
	}
	if time.Since(writtenAt) >= cacheTTL {
		log.Println("[cart] Cart cache expired, starting fresh")
		if err := s.cache.ClearEnvelope(storage.KeyCartCache); err != nil {
			log.Printf("[cart] Cache clear error: %v", err)
		}
		return
	}

	var items []domain.Item
	if err := json.Unmarshal(payload, &items); err != nil {
		log.Printf("[cart] Corrupt cart cache, starting fresh: %v", err)
		return
	}

	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
	log.Printf("[cart] Loaded %d cart lines from cache", len(items))
	s.emit("hydrate")
}

// Add puts a product in the cart. A non-positive quantity counts as 1. When a
// line for the product already exists, the combined quantity is checked
// against the ceiling; a rejection leaves the cart untouched.
func (s *Store) Add(input domain.AddInput, quantity int) error {
	if quantity < 1 {
		quantity = 1
	}

	ceiling := s.catalog.StockQuantity(input.ID)

	s.mu.Lock()
	idx := s.indexOf(input.ID)
	requested := quantity
	if idx >= 0 {
		requested = s.items[idx].Quantity + quantity
	}
	if requested > ceiling {
		s.mu.Unlock()
		return &domain.StockExceededError{
			ProductID: input.ID,
			Name:      input.Name,
			Requested: requested,
			Available: ceiling,
		}
	}

	if idx >= 0 {
		s.items[idx].Quantity = requested
	} else {
		s.items = append(s.items, domain.Item{
			ID:       input.ID,
			Name:     input.Name,
			Price:    input.Price,
			Quantity: quantity,
		})
	}
	s.mu.Unlock()

	s.persist()
	s.emit("add")
	return nil
}

// Increment raises a line's quantity by one, re-checking the ceiling.
func (s *Store) Increment(id int) error {
	ceiling := s.catalog.StockQuantity(id)

	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}
	next := s.items[idx].Quantity + 1
	if next > ceiling {
		name := s.items[idx].Name
		s.mu.Unlock()
		return &domain.StockExceededError{
			ProductID: id,
			Name:      name,
			Requested: next,
			Available: ceiling,
		}
	}
	s.items[idx].Quantity = next
	s.mu.Unlock()

	s.persist()
	s.emit("increment")
	return nil
}

// Decrement lowers a line's quantity by one; a line reaching zero is removed.
// There is no floor check beyond that.
func (s *Store) Decrement(id int) {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	s.items[idx].Quantity--
	if s.items[idx].Quantity <= 0 {
		s.items = append(s.items[:idx], s.items[idx+1:]...)
	}
	s.mu.Unlock()

	s.persist()
	s.emit("decrement")
}

// SetQuantity sets a line's exact quantity. A quantity of zero or less removes
// the line; otherwise the ceiling is re-checked and a rejection leaves the
// prior quantity intact.
func (s *Store) SetQuantity(id, quantity int) error {
	if quantity <= 0 {
		s.Remove(id)
		return nil
	}

	ceiling := s.catalog.StockQuantity(id)

	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}
	if quantity > ceiling {
		name := s.items[idx].Name
		s.mu.Unlock()
		return &domain.StockExceededError{
			ProductID: id,
			Name:      name,
			Requested: quantity,
			Available: ceiling,
		}
	}
	s.items[idx].Quantity = quantity
	s.mu.Unlock()

	s.persist()
	s.emit("update")
	return nil
}

// Remove drops a line unconditionally.
func (s *Store) Remove(id int) {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.mu.Unlock()

	s.persist()
	s.emit("remove")
}

// Clear empties the cart and erases its persisted envelope.
func (s *Store) Clear() {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()

	s.persist()
	s.emit("clear")
}

// Checkout submits the sale. The whole cart is re-validated against current
// ceilings first; any drifted line rejects the entire purchase and names the
// item. On success the catalog is refreshed (server-side stock changed) and
// the cart cleared; on failure the cart is left untouched for retry.
func (s *Store) Checkout(ctx context.Context) (*backend.SaleResponse, error) {
	s.mu.Lock()
	if len(s.items) == 0 {
		s.mu.Unlock()
		return nil, domain.ErrEmptyCart
	}
	lines := make([]domain.Item, len(s.items))
	copy(lines, s.items)
	s.mu.Unlock()

	for _, line := range lines {
		available := s.catalog.StockQuantity(line.ID)
		if line.Quantity > available {
			return nil, &domain.StockExceededError{
				ProductID: line.ID,
				Name:      line.Name,
				Requested: line.Quantity,
				Available: available,
			}
		}
	}

	s.mu.Lock()
	s.loading = true
	s.lastErr = ""
	s.mu.Unlock()
	defer s.clearLoading()

	saleItems := make([]backend.SaleItem, 0, len(lines))
	for _, line := range lines {
		saleItems = append(saleItems, backend.SaleItem{ProductID: line.ID, Quantity: line.Quantity})
	}
	total := domain.Total(lines)

	resp, err := s.sales.CreateSale(ctx, saleItems, total)
	if err != nil {
		s.recordError(err)
		return nil, err
	}

	// Stock changed server-side; refresh the catalog so the UI's figures and
	// the cart's future ceilings reflect it.
	if err := s.catalog.Refresh(ctx, catalogdomain.Filters{}); err != nil {
		log.Printf("[cart] Post-sale catalog refresh failed: %v", err)
	}

	s.Clear()

	if s.onSale != nil {
		s.onSale(resp.SaleID, total.String(), domain.ItemCount(lines))
	}
	return resp, nil
}

// indexOf returns the position of the line for id, -1 when absent. Caller
// holds the lock.
func (s *Store) indexOf(id int) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

// persist writes the cart to its envelope while non-empty, and clears the
// envelope when the cart empties. Failures degrade to logging.
func (s *Store) persist() {
	s.mu.Lock()
	count := len(s.items)
	var payload []byte
	var err error
	if count > 0 {
		payload, err = json.Marshal(s.items)
	}
	s.mu.Unlock()

	if err != nil {
		log.Printf("[cart] Cache encode error: %v", err)
		return
	}

	if count == 0 {
		err = s.cache.ClearEnvelope(storage.KeyCartCache)
	} else {
		err = s.cache.SaveEnvelope(storage.KeyCartCache, payload)
	}
	if err != nil {
		log.Printf("[cart] Cache save error: %v", err)
	}
}

func (s *Store) clearLoading() {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
}

func (s *Store) recordError(err error) {
	msg := msgCheckoutFailed
	if apiErr, ok := err.(*backend.APIError); ok {
		if display := apiErr.DisplayMessage(); display != "" {
			msg = display
		}
	}
	s.mu.Lock()
	s.lastErr = msg
	s.mu.Unlock()
}

func (s *Store) emit(reason string) {
	if s.onChange == nil {
		return
	}
	s.mu.Lock()
	count := domain.ItemCount(s.items)
	total := domain.Total(s.items).String()
	s.mu.Unlock()
	s.onChange(reason, count, total)
}
