// Package api exposes the terminal's stores to the local UI over HTTP and a
// websocket event feed.
package api

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/kencha-a11/pos-terminal/events"
	cartmod "github.com/kencha-a11/pos-terminal/modules/cart"
	catalogmod "github.com/kencha-a11/pos-terminal/modules/catalog"
	"github.com/kencha-a11/pos-terminal/modules/storage"
)

// Module serves the local UI surface.
type Module struct {
	app       *fiber.App
	handlers  *Handlers
	hub       *Hub
	cancelHub context.CancelFunc

	catalog *catalogmod.Module
	cart    *cartmod.Module
	storage *storage.Module
	port    int
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.EventConsumerModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates the API module listening on port.
func NewModule(port int) *Module {
	return &Module{
		port: port,
		hub:  NewHub(),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "api"
}

// SetCatalog sets the catalog module dependency.
func (m *Module) SetCatalog(c *catalogmod.Module) {
	m.catalog = c
}

// SetCart sets the cart module dependency.
func (m *Module) SetCart(c *cartmod.Module) {
	m.cart = c
}

// SetStorage sets the storage module dependency.
func (m *Module) SetStorage(s *storage.Module) {
	m.storage = s
}

// Init creates the Fiber app and configures middleware.
func (m *Module) Init(_ mono.ServiceContainer) error {
	m.app = fiber.New(fiber.Config{
		AppName:               "POS Terminal",
		DisableStartupMessage: true,
		ErrorHandler:          m.errorHandler,
	})

	m.app.Use(recover.New())
	m.app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	m.app.Use(cors.New())

	return nil
}

// Start runs the websocket hub. The HTTP listener waits for Bootstrap since
// the stores it serves are wired after application start.
func (m *Module) Start(_ context.Context) error {
	hubCtx, cancel := context.WithCancel(context.Background())
	m.cancelHub = cancel
	go m.hub.Run(hubCtx)
	log.Println("[api] Module started")
	return nil
}

// Stop shuts down the HTTP server and the websocket hub.
func (m *Module) Stop(ctx context.Context) error {
	if m.app != nil {
		log.Println("[api] Shutting down HTTP server...")
		if err := m.app.ShutdownWithContext(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}
	if m.cancelHub != nil {
		m.cancelHub()
		m.hub.Wait()
	}
	log.Println("[api] Module stopped")
	return nil
}

// Health reports listener and feed status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.handlers == nil {
		return mono.HealthStatus{Healthy: false, Message: "not bootstrapped"}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"port":         m.port,
			"feed_clients": m.hub.ClientCount(),
		},
	}
}

// RegisterEventConsumers subscribes the websocket feed to the store events.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.CatalogChangedV1, m.handleCatalogChanged, m,
	); err != nil {
		return fmt.Errorf("failed to register CatalogChanged consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(
		registry, events.CartChangedV1, m.handleCartChanged, m,
	); err != nil {
		return fmt.Errorf("failed to register CartChanged consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(
		registry, events.SaleCompletedV1, m.handleSaleCompleted, m,
	); err != nil {
		return fmt.Errorf("failed to register SaleCompleted consumer: %w", err)
	}

	log.Println("[api] Registered event consumers: CatalogChanged, CartChanged, SaleCompleted")
	return nil
}

// Bootstrap builds the handlers, registers routes and starts the listener.
// Must run after SetCatalog, SetCart and SetStorage, once both stores exist.
func (m *Module) Bootstrap(_ context.Context) error {
	if m.catalog == nil || m.cart == nil || m.storage == nil {
		return fmt.Errorf("api module not fully wired")
	}

	m.handlers = NewHandlers(
		m.catalog.GetStore(),
		m.cart.GetStore(),
		m.storage.GetTokenStore(),
		m.hub,
	)
	m.registerRoutes()

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", m.port)
		log.Printf("[api] Starting HTTP server on %s", addr)
		if err := m.app.Listen(addr); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}
	return nil
}

// registerRoutes sets up all HTTP and websocket routes.
func (m *Module) registerRoutes() {
	m.app.Get("/health", m.handlers.HealthCheck)

	m.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	m.app.Get("/ws", websocket.New(m.handlers.HandleFeed))

	api := m.app.Group("/api/v1")

	cat := api.Group("/catalog")
	cat.Get("/", m.handlers.GetCatalog)
	cat.Post("/refresh", m.handlers.RefreshCatalog)
	cat.Post("/refresh-sellable", m.handlers.RefreshSellable)
	cat.Post("/load-more", m.handlers.LoadMore)
	cat.Post("/search", m.handlers.SearchCatalog)
	cat.Get("/barcode/:code", m.handlers.LookupBarcode)
	cat.Post("/products", m.handlers.CreateProduct)
	cat.Put("/products/:id", m.handlers.UpdateProduct)
	cat.Delete("/products/:id", m.handlers.DeleteProduct)
	cat.Delete("/products", m.handlers.DeleteProducts)
	cat.Post("/products/:id/restock", m.handlers.RestockProduct)
	cat.Post("/products/:id/deduct", m.handlers.DeductProduct)
	cat.Post("/cache/clear", m.handlers.ClearCatalogCache)

	crt := api.Group("/cart")
	crt.Get("/", m.handlers.GetCart)
	crt.Post("/items", m.handlers.AddCartItem)
	crt.Post("/items/:id/increment", m.handlers.IncrementCartItem)
	crt.Post("/items/:id/decrement", m.handlers.DecrementCartItem)
	crt.Put("/items/:id", m.handlers.SetCartItemQuantity)
	crt.Delete("/items/:id", m.handlers.RemoveCartItem)
	crt.Delete("/", m.handlers.ClearCart)
	crt.Post("/checkout", m.handlers.Checkout)

	session := api.Group("/session")
	session.Put("/token", m.handlers.PutToken)
	session.Delete("/token", m.handlers.DeleteToken)
}

// errorHandler handles errors from Fiber routes.
func (m *Module) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error":  message,
		"code":   code,
		"path":   c.Path(),
		"method": c.Method(),
	})
}

// GetApp returns the Fiber app (for testing).
func (m *Module) GetApp() *fiber.App {
	return m.app
}

// Event handlers

func (m *Module) handleCatalogChanged(_ context.Context, event events.CatalogChangedEvent, _ *mono.Msg) error {
	m.hub.Broadcast("catalog_changed", event)
	return nil
}

func (m *Module) handleCartChanged(_ context.Context, event events.CartChangedEvent, _ *mono.Msg) error {
	m.hub.Broadcast("cart_changed", event)
	return nil
}

func (m *Module) handleSaleCompleted(_ context.Context, event events.SaleCompletedEvent, _ *mono.Msg) error {
	m.hub.Broadcast("sale_completed", event)
	return nil
}
