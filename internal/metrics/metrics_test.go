package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestServidorGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewServidor(prometheus.NewRegistry())
	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/v1/caja/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/caja/1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/caja/2", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nada", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/v1/caja/:id", "204")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "unmatched", "404")))
}

func TestServidorContadores(t *testing.T) {
	m := NewServidor(prometheus.NewRegistry())
	m.OrdenRegistrada(false)
	m.OrdenRegistrada(true)
	m.OrdenRegistrada(true)
	m.CajaCerrada("falta")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ordenes.WithLabelValues("creada")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ordenes.WithLabelValues("duplicada")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cierres.WithLabelValues("falta")))
}

func TestTerminalGauges(t *testing.T) {
	m := NewTerminal(prometheus.NewRegistry())
	m.Pendientes(3)
	m.EnLinea(true)
	m.Fallida("rechazo")

	assert.Equal(t, 3.0, testutil.ToFloat64(m.pendientes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.enLinea))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fallidas.WithLabelValues("rechazo")))
}

func TestRecorderNilNoFalla(t *testing.T) {
	var s *Servidor
	var m *Terminal
	assert.NotPanics(t, func() {
		s.OrdenRegistrada(true)
		s.CajaCerrada("cuadrado")
		s.SelloEncolado()
		m.OrdenEncolada()
		m.Fallida("transitorio")
		m.Pendientes(1)
		m.EnLinea(false)
	})
}
