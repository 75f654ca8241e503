package api

import (
	"github.com/shopspring/decimal"

	cartdomain "github.com/kencha-a11/pos-terminal/domain/cart"
	catalogdomain "github.com/kencha-a11/pos-terminal/domain/catalog"
)

// CatalogStateResponse is the catalog store snapshot returned to the UI.
type CatalogStateResponse struct {
	Products []catalogdomain.Product `json:"products"`
	Cursor   catalogdomain.Cursor    `json:"cursor"`
	Loading  bool                    `json:"loading"`
	Error    string                  `json:"error,omitempty"`
}

// CartStateResponse is the cart store snapshot returned to the UI.
type CartStateResponse struct {
	Items     []cartdomain.Item `json:"items"`
	Total     string            `json:"total"`
	ItemCount int               `json:"item_count"`
	Loading   bool              `json:"loading"`
	Error     string            `json:"error,omitempty"`
}

// FiltersRequest carries the catalog filter set for refresh requests.
type FiltersRequest struct {
	Search   string `json:"search"`
	Category string `json:"category"`
	Status   string `json:"status"`
}

// SearchRequest carries the free-text catalog search query.
type SearchRequest struct {
	Query string `json:"query"`
}

// AddItemRequest puts a product into the cart.
type AddItemRequest struct {
	ID       int             `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// QuantityRequest carries a quantity for restock, deduct and cart updates.
type QuantityRequest struct {
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason,omitempty"`
}

// BulkDeleteRequest names the products to remove in one call.
type BulkDeleteRequest struct {
	Products []int `json:"products"`
}

// TokenRequest installs a backend session token.
type TokenRequest struct {
	Token string `json:"token"`
}

// CheckoutResponse reports an accepted sale.
type CheckoutResponse struct {
	Message string `json:"message"`
	SaleID  int    `json:"sale_id"`
}
