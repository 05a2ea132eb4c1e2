// Package inventory provides the HTTP client for the remote inventory
// service, which owns the authoritative physical stock counts.
package inventory

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/http2"

	"github.com/takato23/venezia-sub004/internal/domain"
)

// Client talks to the remote inventory service over plain JSON/HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the given base URL. A nil httpClient
// falls back to a default with a 10 second timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// NewH2CHTTPClient creates an HTTP client configured for h2c (HTTP/2 over
// cleartext). Used for internal service-to-service communication.
func NewH2CHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		},
	}
}

type syncStockRequest struct {
	Updates []domain.StockUpdate `json:"updates"`
}

type syncStockResponse struct {
	Updated int      `json:"updated"`
	Failed  []string `json:"failed,omitempty"`
}

type stockResponse struct {
	Products []domain.PhysicalStock `json:"products"`
}

type reserveRequest struct {
	OrderID string        `json:"orderId"`
	Items   []reserveItem `json:"items"`
}

type reserveItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type releaseRequest struct {
	OrderID string `json:"orderId"`
}

// PushStockUpdates sends the availability batch derived locally. The
// remote applies it to the storefront listings.
func (c *Client) PushStockUpdates(ctx context.Context, updates []domain.StockUpdate) error {
	body, err := json.Marshal(syncStockRequest{Updates: updates})
	if err != nil {
		return &domain.SyncError{Op: "push", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/stock/sync", bytes.NewReader(body))
	if err != nil {
		return &domain.SyncError{Op: "push", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.SyncError{Op: "push", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &domain.SyncError{Op: "push", Err: responseError(resp)}
	}

	var result syncStockResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return &domain.SyncError{Op: "push", Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(result.Failed) > 0 {
		return &domain.SyncError{Op: "push", Err: fmt.Errorf("remote rejected %d updates: %s", len(result.Failed), strings.Join(result.Failed, ", "))}
	}
	return nil
}

// FetchPhysicalStock pulls the canonical counts for the given products.
// An empty ids slice asks for every product the remote tracks.
func (c *Client) FetchPhysicalStock(ctx context.Context, ids []string) ([]domain.PhysicalStock, error) {
	endpoint := c.baseURL + "/stock"
	if len(ids) > 0 {
		endpoint += "?ids=" + url.QueryEscape(strings.Join(ids, ","))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &domain.SyncError{Op: "pull", Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.SyncError{Op: "pull", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.SyncError{Op: "pull", Err: responseError(resp)}
	}

	var result stockResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &domain.SyncError{Op: "pull", Err: fmt.Errorf("decode response: %w", err)}
	}
	return result.Products, nil
}

// MirrorReserve mirrors a local reservation server-side for cross-client
// visibility. Local state stays authoritative; callers treat failures as
// advisory.
func (c *Client) MirrorReserve(ctx context.Context, orderID string, items []domain.ReservationItem) error {
	payload := reserveRequest{OrderID: orderID}
	for _, item := range items {
		payload.Items = append(payload.Items, reserveItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return c.post(ctx, "/stock/reserve", payload)
}

// MirrorRelease mirrors a local release server-side.
func (c *Client) MirrorRelease(ctx context.Context, orderID string) error {
	return c.post(ctx, "/stock/release", releaseRequest{OrderID: orderID})
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return responseError(resp)
	}
	return nil
}

func responseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Errorf("remote returned status %d", resp.StatusCode)
	}
	return fmt.Errorf("remote returned status %d: %s", resp.StatusCode, msg)
}
