package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const retryDelay = 2 * time.Second

// retryableStatus reports gateway statuses worth one retry.
func retryableStatus(status int) bool {
	return status == http.StatusBadGateway ||
		status == http.StatusServiceUnavailable ||
		status == http.StatusGatewayTimeout
}

// Client performs HTTP calls against the remote backend. All requests carry
// JSON accept/content headers, the device identity headers, and the bearer
// token when one is installed.
type Client struct {
	httpClient *http.Client
	baseURL    string
	deviceID   string
	timezone   string

	mu          sync.RWMutex
	tokenSource TokenSource

	// sleep is swapped out in tests to avoid real retry delays.
	sleep func(time.Duration)
}

// NewClient creates a new backend client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		deviceID:   uuid.New().String(),
		timezone:   deviceTimezone(),
		sleep:      time.Sleep,
	}
}

// deviceTimezone resolves the terminal's IANA timezone name. The runtime only
// carries the name when TZ is set or the zone was loaded explicitly, so the
// environment and /etc/timezone are consulted first. The zone abbreviation is
// the last resort when no name can be resolved.
func deviceTimezone() string {
	if tz := os.Getenv("TZ"); tz != "" {
		return tz
	}
	if data, err := os.ReadFile("/etc/timezone"); err == nil {
		if tz := strings.TrimSpace(string(data)); tz != "" {
			return tz
		}
	}
	if loc := time.Local.String(); loc != "" && loc != "Local" {
		return loc
	}
	name, _ := time.Now().Zone()
	return name
}

// SetTokenSource installs the session token provider.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokenSource = ts
}

func (c *Client) currentTokenSource() TokenSource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokenSource
}

// getJSON issues a GET and decodes the response into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, "", nil, out)
}

// postJSON issues a POST with a JSON body and decodes the response into out.
func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, "application/json", payload, out)
}

// deleteJSON issues a DELETE, optionally with a JSON body.
func (c *Client) deleteJSON(ctx context.Context, path string, body any, out any) error {
	var payload []byte
	contentType := ""
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		contentType = "application/json"
	}
	return c.do(ctx, http.MethodDelete, path, contentType, payload, out)
}

// do sends one request, retrying exactly once after a short pause when the
// backend answers with a gateway error. Responses outside 2xx are normalized
// to *APIError; a 401 additionally purges the stored session token.
func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte, out any) error {
	status, respBody, err := c.send(ctx, method, path, contentType, body)
	if err != nil {
		return err
	}

	if retryableStatus(status) {
		log.Printf("[backend] %s %s returned %d, retrying once", method, path, status)
		c.sleep(retryDelay)
		status, respBody, err = c.send(ctx, method, path, contentType, body)
		if err != nil {
			return err
		}
	}

	if status == http.StatusUnauthorized {
		if ts := c.currentTokenSource(); ts != nil {
			log.Println("[backend] Token rejected, clearing session")
			ts.ClearToken()
		}
	}

	if status < 200 || status >= 300 {
		return parseAPIError(status, respBody)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// send performs a single HTTP round trip.
func (c *Client) send(ctx context.Context, method, path, contentType string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("X-Device-Timezone", c.timezone)
	req.Header.Set("X-Device-ID", c.deviceID)

	if ts := c.currentTokenSource(); ts != nil {
		if token := ts.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}
