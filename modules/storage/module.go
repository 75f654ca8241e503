// Package storage provides the terminal's device-local key-value store and the
// timestamped cache envelopes the catalog and cart stores persist into it.
package storage

import (
	"context"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Module owns the sqlite database backing all local persistence.
type Module struct {
	db     *gorm.DB
	store  *Store
	tokens *TokenStore
	dbPath string
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new storage module persisting to dbPath.
func NewModule(dbPath string) *Module {
	return &Module{dbPath: dbPath}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "storage"
}

// Init opens the database and runs migrations.
func (m *Module) Init(_ mono.ServiceContainer) error {
	db, err := gorm.Open(sqlite.Open(m.dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("failed to open local database: %w", err)
	}

	// sqlite allows one writer; a single pooled connection keeps the
	// concurrent envelope writes serialized instead of SQLITE_BUSY.
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access database pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	m.db = db
	m.store = NewStore(db)
	m.tokens = NewTokenStore(m.store)

	if err := m.store.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate local database: %w", err)
	}

	log.Printf("[storage] Local database initialized at %s", m.dbPath)
	return nil
}

// Start starts the module.
func (m *Module) Start(_ context.Context) error {
	if m.store == nil {
		return fmt.Errorf("storage not initialized")
	}
	log.Println("[storage] Module started")
	return nil
}

// Stop closes the database connection.
func (m *Module) Stop(_ context.Context) error {
	if m.db != nil {
		sqlDB, err := m.db.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
	log.Println("[storage] Module stopped")
	return nil
}

// Health reports whether the database connection is usable.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{Healthy: false, Message: "database not initialized"}
	}
	sqlDB, err := m.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		return mono.HealthStatus{Healthy: false, Message: err.Error()}
	}
	return mono.HealthStatus{Healthy: true, Message: "operational"}
}

// GetStore returns the key-value store.
func (m *Module) GetStore() *Store {
	return m.store
}

// GetTokenStore returns the session token store.
func (m *Module) GetTokenStore() *TokenStore {
	return m.tokens
}
