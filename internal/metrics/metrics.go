// Package metrics holds the prometheus collectors of both binaries. Every
// recorder is nil-safe so components can run without metrics in tests.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// ── Server ────────────────────────────────────────────────────────────────────

type Servidor struct {
	requests *prometheus.CounterVec
	latencia *prometheus.HistogramVec
	ordenes  *prometheus.CounterVec
	cierres  *prometheus.CounterVec
	sellos   prometheus.Counter
}

// NewServidor registers the server collectors on reg (DefaultRegisterer when nil).
func NewServidor(reg prometheus.Registerer) *Servidor {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Servidor{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cajapos_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		latencia: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cajapos_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"route"}),
		ordenes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cajapos_ordenes_total",
			Help: "Orders received, split into new and duplicate submissions.",
		}, []string{"resultado"}),
		cierres: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cajapos_cajas_cerradas_total",
			Help: "Closed cash drawers by reconciliation outcome.",
		}, []string{"estado_cuadre"}),
		sellos: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cajapos_sellos_encolados_total",
			Help: "Loyalty stamp jobs enqueued.",
		}),
	}
	reg.MustRegister(m.requests, m.latencia, m.ordenes, m.cierres, m.sellos)
	return m
}

// GinMiddleware records every request under its route template.
func (m *Servidor) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.latencia.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func (m *Servidor) OrdenRegistrada(duplicada bool) {
	if m == nil {
		return
	}
	resultado := "creada"
	if duplicada {
		resultado = "duplicada"
	}
	m.ordenes.WithLabelValues(resultado).Inc()
}

func (m *Servidor) CajaCerrada(estadoCuadre string) {
	if m == nil {
		return
	}
	m.cierres.WithLabelValues(estadoCuadre).Inc()
}

func (m *Servidor) SelloEncolado() {
	if m == nil {
		return
	}
	m.sellos.Inc()
}

// ── Terminal ──────────────────────────────────────────────────────────────────

type Terminal struct {
	enviadas      prometheus.Counter
	encoladas     prometheus.Counter
	perdidas      prometheus.Counter
	rechazadas    prometheus.Counter
	sincronizadas prometheus.Counter
	fallidas      *prometheus.CounterVec
	pendientes    prometheus.Gauge
	enLinea       prometheus.Gauge
}

// NewTerminal registers the terminal collectors on reg (DefaultRegisterer when nil).
func NewTerminal(reg prometheus.Registerer) *Terminal {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Terminal{
		enviadas: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cajapos_terminal_ordenes_enviadas_total",
			Help: "Orders accepted by the server at sale time.",
		}),
		encoladas: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cajapos_terminal_ordenes_encoladas_total",
			Help: "Orders stored in the offline queue.",
		}),
		perdidas: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cajapos_terminal_ordenes_perdidas_total",
			Help: "Orders neither sent nor queued because local storage failed.",
		}),
		rechazadas: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cajapos_terminal_ordenes_rechazadas_total",
			Help: "Orders refused by the server at sale time.",
		}),
		sincronizadas: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cajapos_terminal_sync_sincronizadas_total",
			Help: "Queued orders delivered by the sync coordinator.",
		}),
		fallidas: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cajapos_terminal_sync_fallidas_total",
			Help: "Queued orders whose delivery failed, by cause.",
		}, []string{"causa"}),
		pendientes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cajapos_terminal_offline_pendientes",
			Help: "Orders waiting in the offline queue.",
		}),
		enLinea: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cajapos_terminal_en_linea",
			Help: "1 when the server answered the last health probe.",
		}),
	}
	reg.MustRegister(m.enviadas, m.encoladas, m.perdidas, m.rechazadas,
		m.sincronizadas, m.fallidas, m.pendientes, m.enLinea)
	return m
}

func (m *Terminal) OrdenEnviada() {
	if m != nil {
		m.enviadas.Inc()
	}
}

func (m *Terminal) OrdenEncolada() {
	if m != nil {
		m.encoladas.Inc()
	}
}

func (m *Terminal) OrdenPerdida() {
	if m != nil {
		m.perdidas.Inc()
	}
}

func (m *Terminal) OrdenRechazada() {
	if m != nil {
		m.rechazadas.Inc()
	}
}

func (m *Terminal) Sincronizada() {
	if m != nil {
		m.sincronizadas.Inc()
	}
}

// Fallida records a failed delivery; causa is "transitorio" or "rechazo".
func (m *Terminal) Fallida(causa string) {
	if m != nil {
		m.fallidas.WithLabelValues(causa).Inc()
	}
}

func (m *Terminal) Pendientes(n int64) {
	if m != nil {
		m.pendientes.Set(float64(n))
	}
}

func (m *Terminal) EnLinea(online bool) {
	if m == nil {
		return
	}
	v := 0.0
	if online {
		v = 1
	}
	m.enLinea.Set(v)
}
