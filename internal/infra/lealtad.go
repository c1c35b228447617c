package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// SelloPayload is sent to the external loyalty service for every stamped order.
type SelloPayload struct {
	ClienteID string `json:"cliente_id"`
	OrdenID   string `json:"orden_id"`
}

// ErrLealtadRechazo means the loyalty service refused the stamp (4xx).
// Retrying will not help.
var ErrLealtadRechazo = errors.New("lealtad: sello rechazado")

// LealtadClient is the HTTP client for the loyalty service. The stamp
// bookkeeping lives there; this side only reports accruals.
type LealtadClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *CircuitBreaker
}

func NewLealtadClient(baseURL string, breaker *CircuitBreaker) *LealtadClient {
	return &LealtadClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		breaker:    breaker,
	}
}

// AcumularSello reports one stamp. The loyalty service deduplicates on orden_id.
func (c *LealtadClient) AcumularSello(ctx context.Context, payload SelloPayload) error {
	if c.breaker == nil {
		return c.post(ctx, payload)
	}
	return c.breaker.Execute(func() error { return c.post(ctx, payload) })
}

func (c *LealtadClient) post(ctx context.Context, payload SelloPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("lealtad: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sellos", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("lealtad: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("lealtad: service unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrLealtadRechazo, resp.StatusCode)
	default:
		return fmt.Errorf("lealtad: service returned %d", resp.StatusCode)
	}
}

// EsFalloLealtad is the breaker predicate: refusals do not count as outages.
func EsFalloLealtad(err error) bool { return !errors.Is(err, ErrLealtadRechazo) }
