// Package backend is the REST client for the remote POS backend. It owns the
// transport policy (auth header, device headers, retry-once on gateway errors)
// and the endpoint wrappers the stores call.
package backend

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-monolith/mono"
)

// TokenSource supplies the bearer token for outgoing requests and accepts a
// purge when the backend rejects it.
type TokenSource interface {
	Token() string
	ClearToken()
}

// Module owns the HTTP client for the remote backend.
type Module struct {
	client  *Client
	baseURL string
	timeout time.Duration
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)

// NewModule creates a new backend module targeting baseURL.
func NewModule(baseURL string, timeout time.Duration) *Module {
	return &Module{
		baseURL: baseURL,
		timeout: timeout,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "backend"
}

// Init builds the HTTP client.
func (m *Module) Init(_ mono.ServiceContainer) error {
	if m.baseURL == "" {
		return fmt.Errorf("backend base URL is required")
	}
	m.client = NewClient(m.baseURL, m.timeout)
	log.Printf("[backend] Client initialized for %s", m.baseURL)
	return nil
}

// Start starts the module.
func (m *Module) Start(_ context.Context) error {
	if m.client == nil {
		return fmt.Errorf("backend client not initialized")
	}
	log.Println("[backend] Module started")
	return nil
}

// Stop stops the module.
func (m *Module) Stop(_ context.Context) error {
	log.Println("[backend] Module stopped")
	return nil
}

// SetTokenSource wires the session token provider into the transport.
func (m *Module) SetTokenSource(ts TokenSource) {
	if m.client != nil {
		m.client.SetTokenSource(ts)
	}
}

// GetClient returns the backend client.
func (m *Module) GetClient() *Client {
	return m.client
}
