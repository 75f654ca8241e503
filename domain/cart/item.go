// Package cart defines the in-progress sale the terminal accumulates before
// submitting it to the backend.
package cart

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrEmptyCart is returned when checkout is attempted on an empty cart.
var ErrEmptyCart = errors.New("cart is empty")

// AddInput identifies a product being added to the cart. Price is snapshotted
// here and never re-fetched for existing lines.
type AddInput struct {
	ID    int             `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Item is one cart line. Quantity is always >= 1; a line that would drop to
// zero is removed instead.
type Item struct {
	ID       int             `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// Subtotal returns price x quantity for this line.
func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Total sums price x quantity over all lines.
func Total(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// ItemCount sums the quantities over all lines.
func ItemCount(items []Item) int {
	count := 0
	for _, item := range items {
		count += item.Quantity
	}
	return count
}

// StockExceededError reports a cart mutation that would push a line past the
// product's current stock ceiling. It names the offending product so the UI
// can tell the cashier which line to adjust.
type StockExceededError struct {
	ProductID int
	Name      string
	Requested int
	Available int
}

func (e *StockExceededError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: available=%d, requested=%d",
		e.Name, e.Available, e.Requested)
}
