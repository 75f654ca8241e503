package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"

	apimod "github.com/kencha-a11/pos-terminal/modules/api"
	backendmod "github.com/kencha-a11/pos-terminal/modules/backend"
	cartmod "github.com/kencha-a11/pos-terminal/modules/cart"
	catalogmod "github.com/kencha-a11/pos-terminal/modules/catalog"
	storagemod "github.com/kencha-a11/pos-terminal/modules/storage"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration from environment
	backendURL := getEnv("BACKEND_URL", "http://localhost:8000/api")
	dbPath := getEnv("DB_PATH", "./pos-terminal.db")
	httpPort := getEnvInt("HTTP_PORT", 3000)
	httpTimeout := getEnvDuration("HTTP_TIMEOUT", 10*time.Second)

	log.Println("=== POS Terminal ===")
	log.Printf("Backend: %s", backendURL)
	log.Printf("Database: %s", dbPath)
	log.Printf("HTTP Port: %d", httpPort)
	log.Printf("Request Timeout: %s", httpTimeout)

	// Create modules
	storageModule := storagemod.NewModule(dbPath)
	backendModule := backendmod.NewModule(backendURL, httpTimeout)
	catalogModule := catalogmod.NewModule()
	cartModule := cartmod.NewModule()
	apiModule := apimod.NewModule(httpPort)

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
	)
	if err != nil {
		log.Fatalf("Failed to create mono application: %v", err)
	}

	// Register modules
	app.Register(storageModule)
	app.Register(backendModule)
	app.Register(catalogModule)
	app.Register(cartModule)
	app.Register(apiModule)

	// Start modules (this handles Init and Start)
	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		log.Fatalf("Failed to start app: %v", err)
	}

	// Wire up dependencies after start, then bootstrap the stores in
	// dependency order: catalog before cart, both before the API surface.
	backendModule.SetTokenSource(storageModule.GetTokenStore())

	catalogModule.SetBackend(backendModule.GetClient())
	catalogModule.SetStorage(storageModule.GetStore())
	if err := catalogModule.Bootstrap(ctx); err != nil {
		log.Fatalf("Failed to bootstrap catalog: %v", err)
	}

	cartModule.SetBackend(backendModule)
	cartModule.SetStorage(storageModule)
	cartModule.SetCatalog(catalogModule)
	if err := cartModule.Bootstrap(ctx); err != nil {
		log.Fatalf("Failed to bootstrap cart: %v", err)
	}

	apiModule.SetCatalog(catalogModule)
	apiModule.SetCart(cartModule)
	apiModule.SetStorage(storageModule)
	if err := apiModule.Bootstrap(ctx); err != nil {
		log.Fatalf("Failed to bootstrap api: %v", err)
	}

	log.Println("=== Terminal Started ===")
	log.Printf("Local API available at http://localhost:%d", httpPort)
	log.Println("Endpoints:")
	log.Println("  GET    /health                        - Health check")
	log.Println("  GET    /ws                            - Store event feed (websocket)")
	log.Println("  GET    /api/v1/catalog                - Catalog state")
	log.Println("  POST   /api/v1/catalog/refresh        - Refetch first page")
	log.Println("  POST   /api/v1/catalog/load-more      - Fetch next page")
	log.Println("  GET    /api/v1/cart                   - Cart state")
	log.Println("  POST   /api/v1/cart/checkout          - Submit the sale")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown")

	// Setup graceful shutdown using gelmium/graceful-shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Terminal exited with code: %d", exitCode)
	os.Exit(exitCode)
}

// getEnv returns environment variable value or default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns environment variable as int or default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid int value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvDuration returns environment variable as duration or default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		log.Printf("Warning: invalid duration value for %s: %s, using default: %s", key, value, defaultValue)
	}
	return defaultValue
}
