package backend

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// CreateSale submits the finished sale. The device timestamp is captured here
// in UTC so the backend can order sales from many terminals consistently.
func (c *Client) CreateSale(ctx context.Context, items []SaleItem, total decimal.Decimal) (*SaleResponse, error) {
	req := CreateSaleRequest{
		Items:          items,
		TotalAmount:    json.Number(total.String()),
		DeviceDatetime: time.Now().UTC().Format(time.RFC3339),
	}

	var resp SaleResponse
	if err := c.postJSON(ctx, "/sales/store", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
