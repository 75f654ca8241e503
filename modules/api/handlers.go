package api

import (
	"errors"
	"io"
	"log"
	"strconv"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cartdomain "github.com/kencha-a11/pos-terminal/domain/cart"
	catalogdomain "github.com/kencha-a11/pos-terminal/domain/catalog"
	"github.com/kencha-a11/pos-terminal/modules/backend"
	"github.com/kencha-a11/pos-terminal/modules/cart"
	"github.com/kencha-a11/pos-terminal/modules/catalog"
	"github.com/kencha-a11/pos-terminal/modules/storage"
)

// Handlers serves the local UI surface over the two stores.
type Handlers struct {
	catalog *catalog.Store
	cart    *cart.Store
	tokens  *storage.TokenStore
	hub     *Hub
}

// NewHandlers creates handlers over the wired stores.
func NewHandlers(catalogStore *catalog.Store, cartStore *cart.Store, tokens *storage.TokenStore, hub *Hub) *Handlers {
	return &Handlers{
		catalog: catalogStore,
		cart:    cartStore,
		tokens:  tokens,
		hub:     hub,
	}
}

// HealthCheck handles GET /health.
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":       "healthy",
		"feed_clients": h.hub.ClientCount(),
	})
}

// Catalog handlers

// GetCatalog handles GET /api/v1/catalog.
func (h *Handlers) GetCatalog(c *fiber.Ctx) error {
	return c.JSON(h.catalogState())
}

// RefreshCatalog handles POST /api/v1/catalog/refresh.
func (h *Handlers) RefreshCatalog(c *fiber.Ctx) error {
	filters, err := parseFilters(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid filters")
	}
	if err := h.catalog.Refresh(c.Context(), filters); err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(h.catalogState())
}

// RefreshSellable handles POST /api/v1/catalog/refresh-sellable.
func (h *Handlers) RefreshSellable(c *fiber.Ctx) error {
	filters, err := parseFilters(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid filters")
	}
	if err := h.catalog.RefreshSellable(c.Context(), filters); err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(h.catalogState())
}

// LoadMore handles POST /api/v1/catalog/load-more.
func (h *Handlers) LoadMore(c *fiber.Ctx) error {
	if err := h.catalog.LoadMore(c.Context()); err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(h.catalogState())
}

// SearchCatalog handles POST /api/v1/catalog/search.
func (h *Handlers) SearchCatalog(c *fiber.Ctx) error {
	var req SearchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid search request")
	}
	if err := h.catalog.Search(c.Context(), req.Query); err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(h.catalogState())
}

// LookupBarcode handles GET /api/v1/catalog/barcode/:code.
func (h *Handlers) LookupBarcode(c *fiber.Ctx) error {
	code := c.Params("code")
	product := h.catalog.ProductByBarcode(c.Context(), code)
	if product == nil {
		return fiber.NewError(fiber.StatusNotFound, "Product not found")
	}
	return c.JSON(product)
}

// CreateProduct handles POST /api/v1/catalog/products (multipart).
func (h *Handlers) CreateProduct(c *fiber.Ctx) error {
	form, err := parseProductForm(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := h.catalog.Add(c.Context(), form); err != nil {
		return h.storeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(h.catalogState())
}

// UpdateProduct handles PUT /api/v1/catalog/products/:id (multipart).
func (h *Handlers) UpdateProduct(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid product id")
	}
	form, err := parseProductForm(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := h.catalog.Edit(c.Context(), id, form); err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(h.catalogState())
}

// DeleteProduct handles DELETE /api/v1/catalog/products/:id.
func (h *Handlers) DeleteProduct(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid product id")
	}
	if err := h.catalog.Remove(c.Context(), id); err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(h.catalogState())
}

// DeleteProducts handles DELETE /api/v1/catalog/products.
func (h *Handlers) DeleteProducts(c *fiber.Ctx) error {
	var req BulkDeleteRequest
	if err := c.BodyParser(&req); err != nil || len(req.Products) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no products named")
	}
	if err := h.catalog.RemoveMany(c.Context(), req.Products); err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(h.catalogState())
}

// RestockProduct handles POST /api/v1/catalog/products/:id/restock.
func (h *Handlers) RestockProduct(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid product id")
	}
	var req QuantityRequest
	if err := c.BodyParser(&req); err != nil || req.Quantity < 1 {
		return fiber.NewError(fiber.StatusBadRequest, "quantity must be positive")
	}
	if err := h.catalog.Restock(c.Context(), id, req.Quantity); err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(h.catalogState())
}

// DeductProduct handles POST /api/v1/catalog/products/:id/deduct.
func (h *Handlers) DeductProduct(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid product id")
	}
	var req QuantityRequest
	if err := c.BodyParser(&req); err != nil || req.Quantity < 1 {
		return fiber.NewError(fiber.StatusBadRequest, "quantity must be positive")
	}
	if err := h.catalog.Deduct(c.Context(), id, req.Quantity, req.Reason); err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(h.catalogState())
}

// ClearCatalogCache handles POST /api/v1/catalog/cache/clear.
func (h *Handlers) ClearCatalogCache(c *fiber.Ctx) error {
	if err := h.catalog.ClearCache(); err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Catalog cache cleared"})
}

// Cart handlers

// GetCart handles GET /api/v1/cart.
func (h *Handlers) GetCart(c *fiber.Ctx) error {
	return c.JSON(h.cartState())
}

// AddCartItem handles POST /api/v1/cart/items.
func (h *Handlers) AddCartItem(c *fiber.Ctx) error {
	var req AddItemRequest
	if err := c.BodyParser(&req); err != nil || req.ID == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid cart item")
	}
	input := cartdomain.AddInput{ID: req.ID, Name: req.Name, Price: req.Price}
	if err := h.cart.Add(input, req.Quantity); err != nil {
		return h.storeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(h.cartState())
}

// IncrementCartItem handles POST /api/v1/cart/items/:id/increment.
func (h *Handlers) IncrementCartItem(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid item id")
	}
	if err := h.cart.Increment(id); err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(h.cartState())
}

// DecrementCartItem handles POST /api/v1/cart/items/:id/decrement.
func (h *Handlers) DecrementCartItem(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid item id")
	}
	h.cart.Decrement(id)
	return c.JSON(h.cartState())
}

// SetCartItemQuantity handles PUT /api/v1/cart/items/:id.
func (h *Handlers) SetCartItemQuantity(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid item id")
	}
	var req QuantityRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid quantity")
	}
	if err := h.cart.SetQuantity(id, req.Quantity); err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(h.cartState())
}

// RemoveCartItem handles DELETE /api/v1/cart/items/:id.
func (h *Handlers) RemoveCartItem(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid item id")
	}
	h.cart.Remove(id)
	return c.JSON(h.cartState())
}

// ClearCart handles DELETE /api/v1/cart.
func (h *Handlers) ClearCart(c *fiber.Ctx) error {
	h.cart.Clear()
	return c.JSON(h.cartState())
}

// Checkout handles POST /api/v1/cart/checkout.
func (h *Handlers) Checkout(c *fiber.Ctx) error {
	resp, err := h.cart.Checkout(c.Context())
	if err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(CheckoutResponse{Message: resp.Message, SaleID: resp.SaleID})
}

// Session handlers

// PutToken handles PUT /api/v1/session/token.
func (h *Handlers) PutToken(c *fiber.Ctx) error {
	var req TokenRequest
	if err := c.BodyParser(&req); err != nil || req.Token == "" {
		return fiber.NewError(fiber.StatusBadRequest, "token required")
	}
	if err := h.tokens.SetToken(req.Token); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to store token")
	}
	return c.JSON(fiber.Map{"message": "Token installed"})
}

// DeleteToken handles DELETE /api/v1/session/token.
func (h *Handlers) DeleteToken(c *fiber.Ctx) error {
	h.tokens.ClearToken()
	return c.JSON(fiber.Map{"message": "Token cleared"})
}

// HandleFeed serves GET /ws. The connection only receives; inbound frames are
// drained and discarded until the client hangs up.
func (h *Handlers) HandleFeed(conn *websocket.Conn) {
	client := &feedClient{ID: uuid.NewString(), Conn: conn}
	h.hub.Register(client)
	defer h.hub.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Helpers

func (h *Handlers) catalogState() CatalogStateResponse {
	return CatalogStateResponse{
		Products: h.catalog.Products(),
		Cursor:   h.catalog.Cursor(),
		Loading:  h.catalog.Loading(),
		Error:    h.catalog.Err(),
	}
}

func (h *Handlers) cartState() CartStateResponse {
	return CartStateResponse{
		Items:     h.cart.Items(),
		Total:     h.cart.Total().String(),
		ItemCount: h.cart.ItemCount(),
		Loading:   h.cart.Loading(),
		Error:     h.cart.Err(),
	}
}

// storeError maps store-level failures to HTTP responses.
func (h *Handlers) storeError(c *fiber.Ctx, err error) error {
	var stockErr *cartdomain.StockExceededError
	if errors.As(err, &stockErr) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": stockErr.Error()})
	}
	if errors.Is(err, cartdomain.ErrEmptyCart) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Cart is empty"})
	}
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		return c.Status(apiErr.Status).JSON(fiber.Map{"error": apiErr.DisplayMessage()})
	}
	log.Printf("[api] Unmapped store error: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Something went wrong"})
}

func parseFilters(c *fiber.Ctx) (catalogdomain.Filters, error) {
	var req FiltersRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return catalogdomain.Filters{}, err
		}
	}
	return catalogdomain.Filters{
		Search:   req.Search,
		Category: req.Category,
		Status:   req.Status,
	}, nil
}

// parseProductForm reads the multipart product payload shared by create and
// update. Numeric fields stay unset when absent so updates can be partial.
func parseProductForm(c *fiber.Ctx) (catalogdomain.ProductForm, error) {
	var form catalogdomain.ProductForm

	form.Name = c.FormValue("name")
	form.Barcode = c.FormValue("barcode")

	if v := c.FormValue("price"); v != "" {
		price, err := decimal.NewFromString(v)
		if err != nil {
			return form, errors.New("invalid price")
		}
		form.Price = &price
	}
	if v := c.FormValue("stock_quantity"); v != "" {
		qty, err := strconv.Atoi(v)
		if err != nil {
			return form, errors.New("invalid stock_quantity")
		}
		form.StockQuantity = &qty
	}
	if v := c.FormValue("low_stock_threshold"); v != "" {
		threshold, err := strconv.Atoi(v)
		if err != nil {
			return form, errors.New("invalid low_stock_threshold")
		}
		form.LowStockThreshold = &threshold
	}

	if mp, err := c.MultipartForm(); err == nil {
		for _, raw := range mp.Value["category_ids"] {
			id, err := strconv.Atoi(raw)
			if err != nil {
				return form, errors.New("invalid category id")
			}
			form.CategoryIDs = append(form.CategoryIDs, id)
		}
	}

	// The attachment field name matches the outbound backend field.
	if header, err := c.FormFile("image_path"); err == nil {
		file, err := header.Open()
		if err != nil {
			return form, errors.New("failed to open image")
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return form, errors.New("failed to read image")
		}
		form.ImageName = header.Filename
		form.Image = data
	}

	return form, nil
}
