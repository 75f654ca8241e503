package catalog

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	domain "github.com/kencha-a11/pos-terminal/domain/catalog"
	"github.com/kencha-a11/pos-terminal/modules/backend"
	"github.com/kencha-a11/pos-terminal/modules/storage"
)

const (
	pageSize = 50
	cacheTTL = 30 * time.Minute
)

// Default messages shown when the backend does not provide one.
const (
	msgFetchFailed    = "Failed to fetch products"
	msgFetchSellFail  = "Failed to fetch sell products"
	msgLoadMoreFailed = "Failed to load more products"
	msgCreateFailed   = "Failed to create product"
	msgUpdateFailed   = "Failed to update product"
	msgDeleteFailed   = "Failed to delete product"
	msgBulkFailed     = "Failed to delete multiple products"
	msgRestockFailed  = "Failed to restock product"
	msgDeductFailed   = "Failed to deduct product"
	msgBarcodeFailed  = "Failed to lookup product by barcode"
)

// Backend is the slice of the REST client the catalog store uses.
type Backend interface {
	ListProducts(ctx context.Context, query backend.ProductQuery) (domain.Page, error)
	ListSellProducts(ctx context.Context, query backend.ProductQuery) (domain.Page, error)
	GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error)
	CreateProduct(ctx context.Context, form domain.ProductForm) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id int, form domain.ProductForm) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int) error
	DeleteProducts(ctx context.Context, ids []int) error
	RestockProduct(ctx context.Context, id, quantity int) error
	DeductProduct(ctx context.Context, id, quantity int, reason string) error
}

// Store owns the cached product collection. The collection is an optimistic
// replica: remote mutations apply a local arithmetic adjustment on success and
// force a reconciling re-fetch on failure, never the other way round.
//
// One mutex makes every state update atomic relative to reads. Remote calls
// happen outside the lock; overlapping operations are last-write-wins, and the
// loading-flag guard on LoadMore is deliberately the only cross-operation
// guard.
type Store struct {
	mu       sync.Mutex
	products []domain.Product
	cursor   domain.Cursor
	loading  bool
	lastErr  string

	backend  Backend
	cache    *storage.Store
	onChange func(reason string, count, page int, hasMore bool)
}

// NewStore creates a catalog store over the given backend and cache.
func NewStore(b Backend, cache *storage.Store) *Store {
	return &Store{
		backend: b,
		cache:   cache,
		cursor:  domain.Cursor{CurrentPage: 1, LastPage: 1},
	}
}

// SetOnChange installs the change callback used to publish store events.
func (s *Store) SetOnChange(fn func(reason string, count, page int, hasMore bool)) {
	s.onChange = fn
}

// Products returns a snapshot of the current collection.
func (s *Store) Products() []domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Product, len(s.products))
	copy(out, s.products)
	return out
}

// Cursor returns the current pagination cursor.
func (s *Store) Cursor() domain.Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Loading reports whether a fetch-family operation is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the last recorded error message, empty when the most recent
// operation succeeded.
func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// StockQuantity returns the cached stock figure for a product, 0 when the
// product is not known locally. The cart store uses this as its ceiling.
func (s *Store) StockQuantity(id int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.products {
		if s.products[i].ID == id {
			return s.products[i].StockQuantity
		}
	}
	return 0
}

// Hydrate loads the persisted collection if it is still fresh; otherwise it
// clears the stale envelope and fetches page 1. A failed fetch is logged, not
// fatal: the terminal may simply be offline at startup.
func (s *Store) Hydrate(ctx context.Context) {
	payload, writtenAt, ok := s.cache.LoadEnvelope(storage.KeyProductsCache)
	if ok && time.Since(writtenAt) < cacheTTL {
		var products []domain.Product
		if err := json.Unmarshal(payload, &products); err == nil {
			s.mu.Lock()
			s.products = products
			s.mu.Unlock()
			log.Printf("[catalog] Loaded %d products from cache", len(products))
			s.emit("hydrate")
			return
		}
		log.Println("[catalog] Corrupt product cache, refetching")
	} else if ok {
		log.Println("[catalog] Product cache expired")
		if err := s.cache.ClearEnvelope(storage.KeyProductsCache); err != nil {
			log.Printf("[catalog] Cache clear error: %v", err)
		}
	}

	if err := s.Refresh(ctx, domain.Filters{}); err != nil {
		log.Printf("[catalog] Initial fetch failed: %v", err)
	}
}

// Refresh fetches page 1 of the full catalog under the given filter set and
// replaces the collection. On failure the prior collection and cursor are
// preserved and an error message recorded.
func (s *Store) Refresh(ctx context.Context, filters domain.Filters) error {
	return s.fetchFirstPage(ctx, filters, s.backend.ListProducts, "refresh", msgFetchFailed)
}

// RefreshSellable is Refresh against the sellable-product listing.
func (s *Store) RefreshSellable(ctx context.Context, filters domain.Filters) error {
	return s.fetchFirstPage(ctx, filters, s.backend.ListSellProducts, "refresh_sell", msgFetchSellFail)
}

// Search re-runs the last fetch with the search field overwritten.
func (s *Store) Search(ctx context.Context, query string) error {
	s.mu.Lock()
	filters := s.cursor.Filters
	s.mu.Unlock()
	filters.Search = query
	return s.Refresh(ctx, filters)
}

type listFunc func(ctx context.Context, query backend.ProductQuery) (domain.Page, error)

func (s *Store) fetchFirstPage(ctx context.Context, filters domain.Filters, list listFunc, reason, defaultMsg string) error {
	s.mu.Lock()
	s.loading = true
	s.lastErr = ""
	s.cursor.Filters = filters
	s.mu.Unlock()
	defer s.clearLoading()

	page, err := list(ctx, backend.ProductQuery{Page: 1, PerPage: pageSize, Filters: filters})
	if err != nil {
		s.recordError(err, defaultMsg)
		return err
	}

	s.mu.Lock()
	s.products = page.Data
	s.cursor = domain.Cursor{
		CurrentPage: page.CurrentPage,
		LastPage:    page.LastPage,
		HasMore:     page.HasMore,
		Filters:     filters,
	}
	s.mu.Unlock()

	s.persist()
	s.emit(reason)
	return nil
}

// LoadMore appends the next page under the stored filter set. It is a no-op
// while a fetch is in flight or when there is nothing more to load.
func (s *Store) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	if s.loading || !s.cursor.HasMore {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	s.lastErr = ""
	nextPage := s.cursor.CurrentPage + 1
	filters := s.cursor.Filters
	s.mu.Unlock()
	defer s.clearLoading()

	page, err := s.backend.ListProducts(ctx, backend.ProductQuery{Page: nextPage, PerPage: pageSize, Filters: filters})
	if err != nil {
		s.recordError(err, msgLoadMoreFailed)
		return err
	}

	s.mu.Lock()
	s.products = append(s.products, page.Data...)
	s.cursor.CurrentPage = page.CurrentPage
	s.cursor.HasMore = page.HasMore
	s.mu.Unlock()

	s.persist()
	s.emit("load_more")
	return nil
}

// Restock adds stock to a product. The remote mutation runs first; only on
// success is the local figure adjusted, so a failure leaves the collection
// untouched and forces a reconciling re-fetch instead.
func (s *Store) Restock(ctx context.Context, id, quantity int) error {
	return s.adjustStock(ctx, "restock", quantity, msgRestockFailed, func() error {
		return s.backend.RestockProduct(ctx, id, quantity)
	}, id)
}

// Deduct removes stock from a product, mirroring Restock.
func (s *Store) Deduct(ctx context.Context, id, quantity int, reason string) error {
	return s.adjustStock(ctx, "deduct", -quantity, msgDeductFailed, func() error {
		return s.backend.DeductProduct(ctx, id, quantity, reason)
	}, id)
}

func (s *Store) adjustStock(ctx context.Context, reason string, delta int, defaultMsg string, call func() error, id int) error {
	s.setLoading()
	defer s.clearLoading()

	if err := call(); err != nil {
		s.recordError(err, defaultMsg)
		s.reconcile(ctx)
		return err
	}

	s.mu.Lock()
	for i := range s.products {
		if s.products[i].ID == id {
			s.products[i].StockQuantity += delta
			break
		}
	}
	s.mu.Unlock()

	s.persist()
	s.emit(reason)
	return nil
}

// reconcile re-fetches page 1 under the current filters to resync the
// collection with server truth after a failed mutation. It keeps the recorded
// error from the mutation that triggered it.
func (s *Store) reconcile(ctx context.Context) {
	s.mu.Lock()
	filters := s.cursor.Filters
	s.mu.Unlock()

	page, err := s.backend.ListProducts(ctx, backend.ProductQuery{Page: 1, PerPage: pageSize, Filters: filters})
	if err != nil {
		log.Printf("[catalog] Reconciliation fetch failed: %v", err)
		return
	}

	s.mu.Lock()
	s.products = page.Data
	s.cursor = domain.Cursor{
		CurrentPage: page.CurrentPage,
		LastPage:    page.LastPage,
		HasMore:     page.HasMore,
		Filters:     filters,
	}
	s.mu.Unlock()

	s.persist()
	s.emit("reconcile")
}

// Add creates a product remotely, then re-fetches the listing so the new
// entry arrives with its server-assigned fields.
func (s *Store) Add(ctx context.Context, form domain.ProductForm) error {
	s.setLoading()
	defer s.clearLoading()

	if _, err := s.backend.CreateProduct(ctx, form); err != nil {
		s.recordError(err, msgCreateFailed)
		return err
	}

	s.mu.Lock()
	filters := s.cursor.Filters
	s.mu.Unlock()
	return s.Refresh(ctx, filters)
}

// Edit updates a product remotely, applies the returned entity locally right
// away, then re-fetches unconditionally for consistency.
func (s *Store) Edit(ctx context.Context, id int, form domain.ProductForm) error {
	s.setLoading()
	defer s.clearLoading()

	updated, err := s.backend.UpdateProduct(ctx, id, form)
	if err != nil {
		s.recordError(err, msgUpdateFailed)
		return err
	}

	s.mu.Lock()
	for i := range s.products {
		if s.products[i].ID == id {
			s.products[i] = *updated
			break
		}
	}
	filters := s.cursor.Filters
	s.mu.Unlock()

	s.persist()
	s.emit("edit")
	return s.Refresh(ctx, filters)
}

// Remove deletes a product remotely and drops it from the collection.
func (s *Store) Remove(ctx context.Context, id int) error {
	s.setLoading()
	defer s.clearLoading()

	if err := s.backend.DeleteProduct(ctx, id); err != nil {
		s.recordError(err, msgDeleteFailed)
		return err
	}

	s.removeLocal(func(p domain.Product) bool { return p.ID == id })
	s.emit("remove")
	return nil
}

// RemoveMany bulk-deletes products and drops them from the collection.
func (s *Store) RemoveMany(ctx context.Context, ids []int) error {
	s.setLoading()
	defer s.clearLoading()

	if err := s.backend.DeleteProducts(ctx, ids); err != nil {
		s.recordError(err, msgBulkFailed)
		return err
	}

	drop := make(map[int]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	s.removeLocal(func(p domain.Product) bool { return drop[p.ID] })
	s.emit("remove_many")
	return nil
}

func (s *Store) removeLocal(match func(domain.Product) bool) {
	s.mu.Lock()
	kept := s.products[:0]
	for _, p := range s.products {
		if !match(p) {
			kept = append(kept, p)
		}
	}
	s.products = kept
	s.mu.Unlock()
	s.persist()
}

// ProductByBarcode looks a product up remotely and inserts it into the
// collection if it is not already present by ID. It never fails to the
// caller: a lookup error records a message and returns nil.
func (s *Store) ProductByBarcode(ctx context.Context, barcode string) *domain.Product {
	s.setLoading()
	defer s.clearLoading()

	product, err := s.backend.GetProductByBarcode(ctx, barcode)
	if err != nil {
		s.recordError(err, msgBarcodeFailed)
		return nil
	}
	if product == nil {
		return nil
	}

	s.mu.Lock()
	exists := false
	for i := range s.products {
		if s.products[i].ID == product.ID {
			exists = true
			break
		}
	}
	if !exists {
		s.products = append(s.products, *product)
	}
	s.mu.Unlock()

	if !exists {
		s.persist()
		s.emit("barcode")
	}
	return product
}

// ClearCache erases the persisted envelope and resets the in-memory state.
func (s *Store) ClearCache() error {
	err := s.cache.ClearEnvelope(storage.KeyProductsCache)

	s.mu.Lock()
	s.products = nil
	s.cursor = domain.Cursor{CurrentPage: 1, LastPage: 1}
	s.lastErr = ""
	s.mu.Unlock()

	s.emit("clear")
	return err
}

// persist writes the collection to its cache envelope, or clears the envelope
// when the collection is empty. Persistence failures degrade to logging.
func (s *Store) persist() {
	s.mu.Lock()
	count := len(s.products)
	var payload []byte
	var err error
	if count > 0 {
		payload, err = json.Marshal(s.products)
	}
	s.mu.Unlock()

	if err != nil {
		log.Printf("[catalog] Cache encode error: %v", err)
		return
	}

	if count == 0 {
		err = s.cache.ClearEnvelope(storage.KeyProductsCache)
	} else {
		err = s.cache.SaveEnvelope(storage.KeyProductsCache, payload)
	}
	if err != nil {
		log.Printf("[catalog] Cache save error: %v", err)
	}
}

func (s *Store) setLoading() {
	s.mu.Lock()
	s.loading = true
	s.lastErr = ""
	s.mu.Unlock()
}

func (s *Store) clearLoading() {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
}

// recordError stores the display message for a failed operation, preferring
// the backend's message over the per-operation default.
func (s *Store) recordError(err error, defaultMsg string) {
	msg := defaultMsg
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
	count := len(s.products)
	page := s.cursor.CurrentPage
	hasMore := s.cursor.HasMore
	s.mu.Unlock()
	s.onChange(reason, count, page, hasMore)
}
