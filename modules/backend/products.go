package backend

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/url"
	"strconv"

	"github.com/kencha-a11/pos-terminal/domain/catalog"
)

// ProductQuery is the parameter set for a paginated product listing.
type ProductQuery struct {
	Page    int
	PerPage int
	Filters catalog.Filters
}

// encode turns the query into URL parameters. A category of "" or "all" and
// an empty status are left off entirely, matching what the backend expects.
func (q ProductQuery) encode() string {
	params := url.Values{}
	params.Set("page", strconv.Itoa(max(1, q.Page)))
	perPage := q.PerPage
	if perPage <= 0 {
		perPage = 50
	}
	params.Set("perPage", strconv.Itoa(perPage))
	params.Set("search", q.Filters.Search)
	if q.Filters.Category != "" && q.Filters.Category != "all" {
		params.Set("category", q.Filters.Category)
	}
	if q.Filters.Status != "" {
		params.Set("status", q.Filters.Status)
	}
	return params.Encode()
}

// ListProducts fetches one page of the full catalog.
func (c *Client) ListProducts(ctx context.Context, query ProductQuery) (catalog.Page, error) {
	return c.listProducts(ctx, "/products", query)
}

// ListSellProducts fetches one page of the sellable catalog.
func (c *Client) ListSellProducts(ctx context.Context, query ProductQuery) (catalog.Page, error) {
	return c.listProducts(ctx, "/sell/products", query)
}

func (c *Client) listProducts(ctx context.Context, endpoint string, query ProductQuery) (catalog.Page, error) {
	var raw catalog.RawPage
	if err := c.getJSON(ctx, endpoint+"?"+query.encode(), &raw); err != nil {
		return catalog.Page{}, err
	}
	return catalog.NormalizePage(raw), nil
}

// barcodeResponse is the wrapper the barcode endpoint answers with.
type barcodeResponse struct {
	Success bool             `json:"success"`
	Data    *catalog.Product `json:"data"`
}

// GetProductByBarcode looks a product up by barcode. A miss returns (nil, nil).
func (c *Client) GetProductByBarcode(ctx context.Context, barcode string) (*catalog.Product, error) {
	var resp barcodeResponse
	if err := c.getJSON(ctx, "/products/barcode/"+url.PathEscape(barcode), &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.Data == nil {
		return nil, nil
	}
	return resp.Data, nil
}

// productResponse wraps the product returned by create/update.
type productResponse struct {
	Product catalog.Product `json:"product"`
}

// CreateProduct creates a product via the multipart endpoint.
func (c *Client) CreateProduct(ctx context.Context, form catalog.ProductForm) (*catalog.Product, error) {
	return c.submitProductForm(ctx, "/products", form)
}

// UpdateProduct updates a product. The backend only accepts multipart bodies
// on POST, so updates go through the _method=PUT override.
func (c *Client) UpdateProduct(ctx context.Context, id int, form catalog.ProductForm) (*catalog.Product, error) {
	return c.submitProductForm(ctx, fmt.Sprintf("/products/%d?_method=PUT", id), form)
}

func (c *Client) submitProductForm(ctx context.Context, path string, form catalog.ProductForm) (*catalog.Product, error) {
	body, contentType, err := encodeProductForm(form)
	if err != nil {
		return nil, err
	}

	var resp productResponse
	if err := c.do(ctx, "POST", path, contentType, body, &resp); err != nil {
		return nil, err
	}
	return &resp.Product, nil
}

// encodeProductForm builds the multipart body for product create/update:
// scalar fields, repeated category_ids[i], and the optional image attachment.
func encodeProductForm(form catalog.ProductForm) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if form.Name != "" {
		if err := writer.WriteField("name", form.Name); err != nil {
			return nil, "", err
		}
	}
	if form.Price != nil {
		if err := writer.WriteField("price", form.Price.String()); err != nil {
			return nil, "", err
		}
	}
	if form.StockQuantity != nil {
		if err := writer.WriteField("stock_quantity", strconv.Itoa(*form.StockQuantity)); err != nil {
			return nil, "", err
		}
	}
	if form.LowStockThreshold != nil {
		if err := writer.WriteField("low_stock_threshold", strconv.Itoa(*form.LowStockThreshold)); err != nil {
			return nil, "", err
		}
	}
	if form.Barcode != "" {
		if err := writer.WriteField("barcode", form.Barcode); err != nil {
			return nil, "", err
		}
	}
	for i, id := range form.CategoryIDs {
		field := fmt.Sprintf("category_ids[%d]", i)
		if err := writer.WriteField(field, strconv.Itoa(id)); err != nil {
			return nil, "", err
		}
	}
	if len(form.Image) > 0 {
		name := form.ImageName
		if name == "" {
			name = "image"
		}
		part, err := writer.CreateFormFile("image_path", name)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(form.Image); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}

// DeleteProduct deletes one product.
func (c *Client) DeleteProduct(ctx context.Context, id int) error {
	return c.deleteJSON(ctx, fmt.Sprintf("/products/%d", id), nil, nil)
}

// DeleteProducts bulk-deletes products by ID.
func (c *Client) DeleteProducts(ctx context.Context, ids []int) error {
	body := map[string][]int{"products": ids}
	return c.deleteJSON(ctx, "/products/multiple", body, nil)
}

// RestockProduct adds quantity units of stock to a product.
func (c *Client) RestockProduct(ctx context.Context, id, quantity int) error {
	body := map[string]int{"quantity": quantity}
	return c.postJSON(ctx, fmt.Sprintf("/products/%d/restock", id), body, nil)
}

// DeductProduct removes quantity units of stock, with an optional reason.
func (c *Client) DeductProduct(ctx context.Context, id, quantity int, reason string) error {
	body := map[string]any{"quantity": quantity}
	if reason != "" {
		body["reason"] = reason
	}
	return c.postJSON(ctx, fmt.Sprintf("/products/%d/deduct", id), body, nil)
}
