package cart

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestTotal(t *testing.T) {
	items := []Item{
		{ID: 1, Name: "Coffee", Price: decimal.RequireFromString("20.00"), Quantity: 3},
		{ID: 2, Name: "Sugar", Price: decimal.RequireFromString("5.50"), Quantity: 2},
	}

	total := Total(items)
	if total.String() != "71.00" {
		t.Errorf("Total = %s, want 71.00", total)
	}

	if count := ItemCount(items); count != 5 {
		t.Errorf("ItemCount = %d, want 5", count)
	}
}

func TestTotal_Empty(t *testing.T) {
	if total := Total(nil); !total.IsZero() {
		t.Errorf("Total of empty cart = %s, want 0", total)
	}
	if count := ItemCount(nil); count != 0 {
		t.Errorf("ItemCount of empty cart = %d, want 0", count)
	}
}

func TestSubtotal(t *testing.T) {
	item := Item{Price: decimal.RequireFromString("12.75"), Quantity: 4}
	if got := item.Subtotal(); got.String() != "51.00" {
		t.Errorf("Subtotal = %s, want 51.00", got)
	}
}

func TestStockExceededError_NamesProduct(t *testing.T) {
	err := &StockExceededError{
		ProductID: 7,
		Name:      "Instant Noodles",
		Requested: 12,
		Available: 10,
	}

	msg := err.Error()
	if !strings.Contains(msg, "Instant Noodles") {
		t.Errorf("error %q should name the product", msg)
	}
	if !strings.Contains(msg, "available=10") || !strings.Contains(msg, "requested=12") {
		t.Errorf("error %q should carry both quantities", msg)
	}
}
