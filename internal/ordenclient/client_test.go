package ordenclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"cajapos/internal/dto"
	"cajapos/internal/infra"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrearOrdenEnviaTokenYDecodifica(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/ordenes", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var req dto.OrdenRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(dto.OrdenResponse{ID: "srv-1", ClaveIdempotencia: req.ClaveIdempotencia, Total: decimal.NewFromInt(70)})
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "tok", time.Second, nil)
	resp, err := c.CrearOrden(context.Background(), dto.OrdenRequest{ClaveIdempotencia: "k1", SucursalID: 1})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", resp.ID)
	assert.Equal(t, "k1", resp.ClaveIdempotencia)
}

func TestClasificacionDeErrores(t *testing.T) {
	var status atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(int(status.Load()))
		_, _ = w.Write([]byte(`{"detail":"los pagos no cuadran"}`))
	}))
	defer srv.Close()
	c := New(srv.URL, "", time.Second, nil)
	ctx := context.Background()

	status.Store(http.StatusBadRequest)
	_, err := c.CrearOrden(ctx, dto.OrdenRequest{})
	var re *RechazoError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusBadRequest, re.Status)
	assert.Equal(t, "los pagos no cuadran", re.Detail)
	assert.False(t, EsTransitorio(err))

	for _, s := range []int{http.StatusInternalServerError, http.StatusBadGateway, http.StatusTooManyRequests} {
		status.Store(int32(s))
		_, err = c.CrearOrden(ctx, dto.OrdenRequest{})
		assert.ErrorIs(t, err, ErrTransitorio, "status %d", s)
		assert.False(t, EsRechazo(err))
	}
}

func TestServidorCaidoEsTransitorio(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, "", 200*time.Millisecond, nil)
	_, err := c.SiguienteFolio(context.Background(), "x")
	assert.ErrorIs(t, err, ErrTransitorio)
	assert.ErrorIs(t, c.Health(context.Background()), ErrTransitorio)
}

func TestBreakerAbiertoEsTransitorioYRechazosNoLoAbren(t *testing.T) {
	var status atomic.Int32
	var llamadas atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		llamadas.Add(1)
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	cb := infra.NewCircuitBreaker(infra.CircuitBreakerConfig{FailureThreshold: 2, OpenTimeout: time.Hour, IsFailure: EsTransitorio})
	c := New(srv.URL, "", time.Second, cb)
	ctx := context.Background()

	status.Store(http.StatusUnprocessableEntity)
	for i := 0; i < 3; i++ {
		assert.True(t, EsRechazo(c.AcumularSello(ctx, "c", "o")))
	}
	assert.Equal(t, infra.CBClosed, cb.State())

	status.Store(http.StatusServiceUnavailable)
	_ = c.AcumularSello(ctx, "c", "o")
	_ = c.AcumularSello(ctx, "c", "o")
	assert.Equal(t, infra.CBOpen, cb.State())

	antes := llamadas.Load()
	err := c.AcumularSello(ctx, "c", "o")
	assert.ErrorIs(t, err, ErrTransitorio)
	assert.Equal(t, antes, llamadas.Load(), "open breaker must not reach the server")

	status.Store(http.StatusOK)
	assert.NoError(t, c.Health(ctx), "health bypasses the breaker")
}
