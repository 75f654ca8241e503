// Package catalog defines the product entities the terminal mirrors from the
// remote backend. The terminal is never the source of truth for any of them.
package catalog

import "github.com/shopspring/decimal"

// Stock status values as reported by the backend.
const (
	StatusInStock    = "stock"
	StatusLowStock   = "low stock"
	StatusOutOfStock = "out of stock"
)

// Category is a product category association.
type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Product is the cached replica of a backend product.
//
// Price arrives from the backend as either a JSON string or a number depending
// on the endpoint; decimal.Decimal unmarshals both, so the inconsistency stays
// at the wire boundary.
type Product struct {
	ID                int             `json:"id"`
	Name              string          `json:"name"`
	Barcode           string          `json:"barcode,omitempty"`
	Price             decimal.Decimal `json:"price"`
	StockQuantity     int             `json:"stock_quantity"`
	Status            string          `json:"status"`
	Image             string          `json:"image"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	Categories        []Category      `json:"categories"`
	CreatedAt         string          `json:"created_at"`
	UpdatedAt         string          `json:"updated_at"`
}

// Filters is the filter set a list fetch runs under. A zero value means the
// field is unset; the category "all" is treated as unset at the wire boundary.
type Filters struct {
	Search   string `json:"search,omitempty"`
	Category string `json:"category,omitempty"`
	Status   string `json:"status,omitempty"`
}

// ProductForm carries the fields for product create/update. Pointer fields are
// omitted from the multipart body when nil, mirroring partial updates.
type ProductForm struct {
	Name              string
	Price             *decimal.Decimal
	StockQuantity     *int
	LowStockThreshold *int
	Barcode           string
	CategoryIDs       []int

	// ImageName/Image hold an optional attachment for the image_path field.
	ImageName string
	Image     []byte
}
