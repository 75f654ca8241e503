// Package events defines the typed store-change events the terminal modules
// publish. The UI subscribes to these (over the websocket feed) instead of
// polling store state.
package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// CatalogChangedEvent is emitted after any catalog store state change.
type CatalogChangedEvent struct {
	Reason    string    `json:"reason"` // "refresh", "load_more", "restock", ...
	Count     int       `json:"count"`
	Page      int       `json:"page"`
	HasMore   bool      `json:"has_more"`
	Timestamp time.Time `json:"timestamp"`
}

// CartChangedEvent is emitted after any cart store mutation.
type CartChangedEvent struct {
	Reason    string    `json:"reason"` // "add", "increment", "clear", ...
	ItemCount int       `json:"item_count"`
	Total     string    `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}

// SaleCompletedEvent is emitted when a checkout is accepted by the backend.
type SaleCompletedEvent struct {
	SaleID    int       `json:"sale_id"`
	Total     string    `json:"total"`
	Items     int       `json:"items"`
	Timestamp time.Time `json:"timestamp"`
}

// Event definitions for the store domains.
var (
	CatalogChangedV1 = helper.EventDefinition[CatalogChangedEvent](
		"catalog",
		"CatalogChanged",
		"v1",
	)

	CartChangedV1 = helper.EventDefinition[CartChangedEvent](
		"cart",
		"CartChanged",
		"v1",
	)

	SaleCompletedV1 = helper.EventDefinition[SaleCompletedEvent](
		"cart",
		"SaleCompleted",
		"v1",
	)
)
