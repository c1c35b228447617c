// Package conectividad tracks whether the branch server is reachable.
package conectividad

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"cajapos/internal/metrics"

	"github.com/rs/zerolog/log"
)

// Sonda is implemented by ordenclient.Client.
type Sonda interface {
	Health(ctx context.Context) error
}

// Monitor probes the server on a ticker. It starts offline, so the first
// successful probe counts as a reconnection.
type Monitor struct {
	sonda     Sonda
	intervalo time.Duration
	metrics   *metrics.Terminal
	enLinea   atomic.Bool

	mu   sync.Mutex
	subs []func()
}

func NewMonitor(sonda Sonda, intervalo time.Duration, m *metrics.Terminal) *Monitor {
	return &Monitor{sonda: sonda, intervalo: intervalo, metrics: m}
}

func (m *Monitor) EnLinea() bool { return m.enLinea.Load() }

// AlReconectar registers fn for every offline→online transition. Each call
// runs in its own goroutine.
func (m *Monitor) AlReconectar(fn func()) {
	m.mu.Lock()
	m.subs = append(m.subs, fn)
	m.mu.Unlock()
}

// MarcarFueraDeLinea records a failure seen outside the probe (a transport
// error at sale time). The next good probe is then a reconnection.
func (m *Monitor) MarcarFueraDeLinea() {
	if m.enLinea.Swap(false) {
		log.Warn().Msg("conectividad: servidor fuera de línea")
		m.metrics.EnLinea(false)
	}
}

// Sondear runs one probe and returns the resulting state.
func (m *Monitor) Sondear(ctx context.Context) bool {
	timeout := m.intervalo
	if timeout <= 0 || timeout > 5*time.Second {
		timeout = 5 * time.Second
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := m.sonda.Health(pctx); err != nil {
		if m.enLinea.Swap(false) {
			log.Warn().Err(err).Msg("conectividad: servidor fuera de línea")
		}
		m.metrics.EnLinea(false)
		return false
	}

	m.metrics.EnLinea(true)
	if !m.enLinea.Swap(true) {
		log.Info().Msg("conectividad: servidor en línea")
		m.mu.Lock()
		subs := append([]func(){}, m.subs...)
		m.mu.Unlock()
		for _, fn := range subs {
			go fn()
		}
	}
	return true
}

// Run probes immediately and then every intervalo until ctx ends.
func (m *Monitor) Run(ctx context.Context) {
	m.Sondear(ctx)
	ticker := time.NewTicker(m.intervalo)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sondear(ctx)
		}
	}
}
