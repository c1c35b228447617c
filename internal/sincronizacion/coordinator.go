// Package sincronizacion drains the offline queue into the server. One drain
// runs at a time per terminal; a concurrent request is rejected, never queued.
package sincronizacion

import (
	"context"
	"errors"
	"sync/atomic"

	"cajapos/internal/dto"
	"cajapos/internal/metrics"
	"cajapos/internal/model"
	"cajapos/internal/offline"
	"cajapos/internal/ordenclient"

	"github.com/rs/zerolog/log"
)

// ErrEnCurso is returned when a drain is already running.
var ErrEnCurso = errors.New("sincronización en curso")

// Almacen is the slice of offline.Store the coordinator uses.
type Almacen interface {
	Pendientes(ctx context.Context) (int64, error)
	ListarPendientes(ctx context.Context) ([]model.OrdenOffline, error)
	MarcarSincronizada(ctx context.Context, localID, servidorID string, folio *int) error
	MarcarFallida(ctx context.Context, localID, causa string, rechazada bool) error
	RegistrarFolio(ctx context.Context, localID string, folio int) error
	PurgarSincronizadas(ctx context.Context) (int64, error)
}

// Transporte is implemented by ordenclient.Client.
type Transporte interface {
	CrearOrden(ctx context.Context, req dto.OrdenRequest) (*dto.OrdenResponse, error)
	SiguienteFolio(ctx context.Context, ordenID string) (int, error)
	AcumularSello(ctx context.Context, clienteID, ordenID string) error
}

const (
	DetalleSincronizada = "sincronizada"
	DetalleFallida      = "fallida"
)

type Detalle struct {
	LocalID    string `json:"local_id"`
	Estado     string `json:"estado"`
	ServidorID string `json:"servidor_id,omitempty"`
	Folio      *int   `json:"folio,omitempty"`
	Rechazada  bool   `json:"rechazada,omitempty"`
	Error      string `json:"error,omitempty"`
}

type Reporte struct {
	Sincronizadas int       `json:"sincronizadas"`
	Fallidas      int       `json:"fallidas"`
	Purgadas      int64     `json:"purgadas"`
	Detalle       []Detalle `json:"detalle"`
}

type Coordinator struct {
	almacen    Almacen
	transporte Transporte
	metrics    *metrics.Terminal
	enCurso    atomic.Bool
}

func New(almacen Almacen, transporte Transporte, m *metrics.Terminal) *Coordinator {
	return &Coordinator{almacen: almacen, transporte: transporte, metrics: m}
}

// EnCurso reports whether a drain is running.
func (c *Coordinator) EnCurso() bool { return c.enCurso.Load() }

// Sincronizar runs one drain: purge records delivered by the previous pass,
// then submit every pending or failed record once. Per-record failures are
// recorded in the store and the report; the error is only non-nil when the
// store itself fails or another drain is running.
//
// A started pass runs to the end even if ctx is cancelled: the caller's
// values are kept but its cancellation is dropped. Each submission is still
// bounded by the transport timeout.
func (c *Coordinator) Sincronizar(ctx context.Context) (Reporte, error) {
	rep := Reporte{Detalle: []Detalle{}}
	if !c.enCurso.CompareAndSwap(false, true) {
		return rep, ErrEnCurso
	}
	defer c.enCurso.Store(false)
	ctx = context.WithoutCancel(ctx)

	purgadas, err := c.almacen.PurgarSincronizadas(ctx)
	if err != nil {
		return rep, err
	}
	rep.Purgadas = purgadas

	pendientes, err := c.almacen.Pendientes(ctx)
	if err != nil {
		return rep, err
	}
	c.metrics.Pendientes(pendientes)
	if pendientes == 0 {
		return rep, nil
	}

	lista, err := c.almacen.ListarPendientes(ctx)
	if err != nil {
		return rep, err
	}
	log.Info().Int("registros", len(lista)).Msg("sincronizacion: inicio")

	for i := range lista {
		det := c.sincronizarUno(ctx, &lista[i])
		if det.Estado == DetalleSincronizada {
			rep.Sincronizadas++
		} else {
			rep.Fallidas++
		}
		rep.Detalle = append(rep.Detalle, det)
	}

	c.cerrarPasada(ctx, &rep)
	return rep, nil
}

func (c *Coordinator) cerrarPasada(ctx context.Context, rep *Reporte) {
	if n, err := c.almacen.Pendientes(ctx); err == nil {
		c.metrics.Pendientes(n)
	}
	log.Info().
		Int("sincronizadas", rep.Sincronizadas).
		Int("fallidas", rep.Fallidas).
		Int64("purgadas", rep.Purgadas).
		Msg("sincronizacion: fin")
}

func (c *Coordinator) sincronizarUno(ctx context.Context, rec *model.OrdenOffline) Detalle {
	det := Detalle{LocalID: rec.ID}

	payload, err := offline.Payload(rec)
	if err != nil {
		return c.fallida(ctx, det, err, true)
	}

	resp, err := c.transporte.CrearOrden(ctx, payload)
	if err != nil {
		return c.fallida(ctx, det, err, ordenclient.EsRechazo(err))
	}

	if err := c.almacen.MarcarSincronizada(ctx, rec.ID, resp.ID, resp.Folio); err != nil {
		// The server has the order; the next pass resubmits and gets duplicada.
		log.Error().Err(err).Str("local_id", rec.ID).Str("servidor_id", resp.ID).
			Msg("sincronizacion: orden creada pero no marcada")
		det.Estado = DetalleFallida
		det.ServidorID = resp.ID
		det.Error = err.Error()
		return det
	}
	c.metrics.Sincronizada()
	det.Estado = DetalleSincronizada
	det.ServidorID = resp.ID
	det.Folio = resp.Folio
	log.Info().Str("local_id", rec.ID).Str("servidor_id", resp.ID).Bool("duplicada", resp.Duplicada).
		Msg("sincronizacion: orden sincronizada")

	// Follow-ons are best effort and never undo the sync.
	if det.Folio == nil {
		if folio, err := c.transporte.SiguienteFolio(ctx, resp.ID); err != nil {
			log.Warn().Err(err).Str("servidor_id", resp.ID).Msg("sincronizacion: folio pendiente")
		} else if err := c.almacen.RegistrarFolio(ctx, rec.ID, folio); err != nil {
			log.Warn().Err(err).Str("local_id", rec.ID).Msg("sincronizacion: no se guardó el folio")
		} else {
			det.Folio = &folio
		}
	}
	if payload.ClienteID != nil && *payload.ClienteID != "" {
		if err := c.transporte.AcumularSello(ctx, *payload.ClienteID, resp.ID); err != nil {
			log.Warn().Err(err).Str("servidor_id", resp.ID).Msg("sincronizacion: sello no acumulado")
		}
	}
	return det
}

func (c *Coordinator) fallida(ctx context.Context, det Detalle, causa error, rechazada bool) Detalle {
	det.Estado = DetalleFallida
	det.Rechazada = rechazada
	det.Error = causa.Error()

	tipo := "transitorio"
	if rechazada {
		tipo = "rechazo"
	}
	c.metrics.Fallida(tipo)
	log.Warn().Err(causa).Str("local_id", det.LocalID).Bool("rechazada", rechazada).
		Msg("sincronizacion: entrega fallida")

	if err := c.almacen.MarcarFallida(ctx, det.LocalID, causa.Error(), rechazada); err != nil {
		log.Error().Err(err).Str("local_id", det.LocalID).Msg("sincronizacion: no se pudo marcar fallida")
	}
	return det
}
