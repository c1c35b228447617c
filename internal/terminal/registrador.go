// Package terminal decides, for every sale, whether it goes to the server now
// or into the offline queue, and reports which one happened.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cajapos/internal/dto"
	"cajapos/internal/metrics"
	"cajapos/internal/model"
	"cajapos/internal/ordenclient"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrOrdenPerdida means the sale was neither accepted by the server nor
// stored locally. The cashier must be told; it is not queued.
var ErrOrdenPerdida = errors.New("venta perdida: no se pudo enviar ni guardar")

const (
	ResultadoEnviada   = "enviada"
	ResultadoEnCola    = "en_cola"
	ResultadoRechazada = "rechazada"
)

// Resultado is the outcome of one submission. Only the fields of its Estado
// are set.
type Resultado struct {
	Estado string `json:"estado"`

	// enviada
	ServidorID string             `json:"servidor_id,omitempty"`
	Folio      *int               `json:"folio,omitempty"`
	Orden      *dto.OrdenResponse `json:"orden,omitempty"`

	// en_cola
	LocalID        string `json:"local_id,omitempty"`
	NumeroTemporal int    `json:"numero_temporal,omitempty"`

	// rechazada
	Motivo string `json:"motivo,omitempty"`
}

type Cola interface {
	Encolar(ctx context.Context, payload dto.OrdenRequest) (*model.OrdenOffline, error)
}

type Transporte interface {
	CrearOrden(ctx context.Context, req dto.OrdenRequest) (*dto.OrdenResponse, error)
	SiguienteFolio(ctx context.Context, ordenID string) (int, error)
	AcumularSello(ctx context.Context, clienteID, ordenID string) error
}

// Conexion is implemented by conectividad.Monitor.
type Conexion interface {
	EnLinea() bool
	MarcarFueraDeLinea()
}

type Registrador struct {
	cola       Cola
	transporte Transporte
	conexion   Conexion
	metrics    *metrics.Terminal
	sucursalID int
	ahora      func() time.Time
}

func NewRegistrador(cola Cola, transporte Transporte, conexion Conexion, sucursalID int, m *metrics.Terminal) *Registrador {
	return &Registrador{
		cola:       cola,
		transporte: transporte,
		conexion:   conexion,
		metrics:    m,
		sucursalID: sucursalID,
		ahora:      func() time.Time { return time.Now().UTC() },
	}
}

// Registrar submits the sale. The error is non-nil only for a lost sale,
// which wraps ErrOrdenPerdida.
func (r *Registrador) Registrar(ctx context.Context, req dto.OrdenRequest) (Resultado, error) {
	if req.ClaveIdempotencia == "" {
		req.ClaveIdempotencia = uuid.NewString()
	}
	if req.SucursalID == 0 {
		req.SucursalID = r.sucursalID
	}
	if req.CreadaEn == nil {
		ahora := r.ahora()
		req.CreadaEn = &ahora
	}

	if r.conexion.EnLinea() {
		resp, err := r.transporte.CrearOrden(ctx, req)
		if err == nil {
			r.metrics.OrdenEnviada()
			return r.enviada(ctx, req, resp), nil
		}
		var re *ordenclient.RechazoError
		if errors.As(err, &re) {
			r.metrics.OrdenRechazada()
			log.Warn().Str("clave", req.ClaveIdempotencia).Int("status", re.Status).Str("motivo", re.Detail).
				Msg("terminal: orden rechazada")
			return Resultado{Estado: ResultadoRechazada, Motivo: re.Detail}, nil
		}
		log.Warn().Err(err).Str("clave", req.ClaveIdempotencia).Msg("terminal: servidor no disponible, encolando")
		r.conexion.MarcarFueraDeLinea()
	}

	rec, err := r.cola.Encolar(ctx, req)
	if err != nil {
		r.metrics.OrdenPerdida()
		log.Error().Err(err).Str("clave", req.ClaveIdempotencia).Msg("terminal: venta perdida")
		return Resultado{}, fmt.Errorf("%w: %w", ErrOrdenPerdida, err)
	}
	r.metrics.OrdenEncolada()
	log.Info().Str("local_id", rec.ID).Int("numero_temporal", rec.NumeroTemporal).Msg("terminal: orden en cola")
	return Resultado{Estado: ResultadoEnCola, LocalID: rec.ID, NumeroTemporal: rec.NumeroTemporal}, nil
}

// enviada completes the online path. Folio and stamp are best effort; the
// sale is already recorded.
func (r *Registrador) enviada(ctx context.Context, req dto.OrdenRequest, resp *dto.OrdenResponse) Resultado {
	if resp.Folio == nil {
		if folio, err := r.transporte.SiguienteFolio(ctx, resp.ID); err != nil {
			log.Warn().Err(err).Str("servidor_id", resp.ID).Msg("terminal: folio pendiente")
		} else {
			resp.Folio = &folio
		}
	}
	if req.ClienteID != nil && *req.ClienteID != "" {
		if err := r.transporte.AcumularSello(ctx, *req.ClienteID, resp.ID); err != nil {
			log.Warn().Err(err).Str("servidor_id", resp.ID).Msg("terminal: sello no acumulado")
		}
	}
	return Resultado{Estado: ResultadoEnviada, ServidorID: resp.ID, Folio: resp.Folio, Orden: resp}
}
