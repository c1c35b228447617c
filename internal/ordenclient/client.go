// Package ordenclient is the terminal's HTTP transport to the branch server.
// Every call goes through a circuit breaker and every failure is classified:
// ErrTransitorio means "treat as offline", *RechazoError means the server
// answered and refused.
package ordenclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cajapos/internal/apierror"
	"cajapos/internal/dto"
	"cajapos/internal/infra"
)

// ErrTransitorio covers network errors, 5xx, 429 and an open breaker.
var ErrTransitorio = errors.New("servidor no disponible")

// RechazoError is a 4xx answer. Resubmitting the same payload will fail again.
type RechazoError struct {
	Status int
	Detail string
}

func (e *RechazoError) Error() string {
	return fmt.Sprintf("servidor rechazó la solicitud (%d): %s", e.Status, e.Detail)
}

// EsRechazo reports whether err is (or wraps) a *RechazoError.
func EsRechazo(err error) bool {
	var re *RechazoError
	return errors.As(err, &re)
}

// EsTransitorio is also the breaker predicate: refusals do not trip it.
func EsTransitorio(err error) bool { return errors.Is(err, ErrTransitorio) }

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	breaker    *infra.CircuitBreaker
}

// New builds the client. breaker may be nil.
func New(baseURL, token string, timeout time.Duration, breaker *infra.CircuitBreaker) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
	}
}

// CrearOrden submits an order. A duplicate clave_idempotencia is a success
// with Duplicada=true.
func (c *Client) CrearOrden(ctx context.Context, req dto.OrdenRequest) (*dto.OrdenResponse, error) {
	var resp dto.OrdenResponse
	if err := c.call(ctx, http.MethodPost, "/v1/ordenes", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SiguienteFolio asks the server for the order's folio. Idempotent per order.
func (c *Client) SiguienteFolio(ctx context.Context, ordenID string) (int, error) {
	var resp dto.FolioResponse
	if err := c.call(ctx, http.MethodPost, "/v1/ordenes/"+ordenID+"/folio", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Folio, nil
}

func (c *Client) AcumularSello(ctx context.Context, clienteID, ordenID string) error {
	return c.call(ctx, http.MethodPost, "/v1/lealtad/sellos", dto.SelloRequest{ClienteID: clienteID, OrdenID: ordenID}, nil)
}

// Health probes the unauthenticated /health endpoint. It bypasses the
// breaker so the connectivity monitor sees the real server state.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, false)
}

func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	if c.breaker == nil {
		return c.do(ctx, method, path, body, out, true)
	}
	err := c.breaker.Execute(func() error { return c.do(ctx, method, path, body, out, true) })
	if errors.Is(err, infra.ErrCircuitOpen) {
		return fmt.Errorf("%w: %v", ErrTransitorio, err)
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, auth bool) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("ordenclient: marshal: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("ordenclient: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth && c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransitorio, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: respuesta ilegible: %v", ErrTransitorio, err)
		}
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrTransitorio, resp.StatusCode)
	default:
		return &RechazoError{Status: resp.StatusCode, Detail: leerDetalle(resp.Body)}
	}
}

// leerDetalle extracts apierror.Detail, falling back to the raw body.
func leerDetalle(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 4096))
	var e apierror.APIError
	if json.Unmarshal(raw, &e) == nil && e.Detail != "" {
		return e.Detail
	}
	return strings.TrimSpace(string(raw))
}
