package backend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
)

// APIError is a backend failure normalized to something the stores can show:
// the HTTP status, the general message, and any per-field validation messages.
type APIError struct {
	Status  int                 `json:"status"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend error %d: %s", e.Status, e.DisplayMessage())
}

// DisplayMessage picks the human-readable message to surface: the first
// per-field validation message when present, then the general message.
func (e *APIError) DisplayMessage() string {
	if len(e.Errors) > 0 {
		fields := make([]string, 0, len(e.Errors))
		for field := range e.Errors {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			if msgs := e.Errors[field]; len(msgs) > 0 && msgs[0] != "" {
				return msgs[0]
			}
		}
	}
	return e.Message
}

// parseAPIError builds an *APIError from a non-2xx response body. Bodies that
// are not the expected JSON shape fall back to the HTTP status text.
func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}
	if len(body) > 0 {
		_ = json.Unmarshal(body, apiErr)
		apiErr.Status = status
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

// SaleItem is one sale line as the backend expects it.
type SaleItem struct {
	ProductID int `json:"product_id"`
	Quantity  int `json:"quantity"`
}

// CreateSaleRequest is the payload for sale creation. TotalAmount is a
// json.Number so the backend receives a bare decimal, not a quoted string.
type CreateSaleRequest struct {
	Items          []SaleItem  `json:"items"`
	TotalAmount    json.Number `json:"total_amount"`
	DeviceDatetime string      `json:"device_datetime"`
}

// SaleResponse is the backend's acknowledgement of a recorded sale.
type SaleResponse struct {
	Message string `json:"message"`
	SaleID  int    `json:"sale_id"`
}
