package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cajapos/internal/dto"
	"cajapos/internal/model"
	"cajapos/internal/orden"
	"cajapos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OrdenService creates orders exactly once per clave_idempotencia. Orders do
// not need an open caja: offline orders may arrive after the caja that owns
// their timestamp was closed.
type OrdenService interface {
	// Crear returns Duplicada=true with the stored order when the key was seen before.
	Crear(ctx context.Context, req dto.OrdenRequest) (*dto.OrdenResponse, error)
	Obtener(ctx context.Context, id uuid.UUID) (*dto.OrdenResponse, error)
	Cancelar(ctx context.Context, id uuid.UUID, motivo string) (*dto.OrdenResponse, error)
}

type ordenService struct {
	repo    repository.OrdenRepository
	tasaIVA decimal.Decimal
	ahora   func() time.Time
}

func NewOrdenService(repo repository.OrdenRepository, tasaIVA decimal.Decimal) OrdenService {
	return &ordenService{repo: repo, tasaIVA: tasaIVA, ahora: func() time.Time { return time.Now().UTC() }}
}

// ── Crear ─────────────────────────────────────────────────────────────────────

func (s *ordenService) Crear(ctx context.Context, req dto.OrdenRequest) (*dto.OrdenResponse, error) {
	// Idempotency: same key, same order
	if existente, err := s.repo.FindByClave(ctx, req.ClaveIdempotencia); err == nil {
		return duplicada(existente), nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("buscar orden: %w", err)
	}

	tot, err := orden.Calcular(req.Items, req.Descuento, s.tasaIVA)
	if err != nil {
		return nil, validacion("%v", err)
	}

	estado := model.OrdenPendiente
	if len(req.Pagos) > 0 {
		if err := orden.VerificarPagos(tot.Total, req.Pagos); err != nil {
			return nil, validacion("%v", err)
		}
		estado = model.OrdenCompletada
	}

	o := &model.Orden{
		ClaveIdempotencia: req.ClaveIdempotencia,
		SucursalID:        req.SucursalID,
		ClienteID:         req.ClienteID,
		Estado:            estado,
		Subtotal:          tot.Subtotal,
		Descuento:         tot.Descuento,
		Impuesto:          tot.Impuesto,
		Total:             tot.Total,
		CreatedAt:         s.ahora(),
	}
	if req.CreadaEn != nil && !req.CreadaEn.IsZero() {
		o.CreatedAt = req.CreadaEn.UTC()
	}
	if req.EmpleadoID != nil && *req.EmpleadoID != "" {
		id, err := uuid.Parse(*req.EmpleadoID)
		if err != nil {
			return nil, validacion("empleado_id inválido")
		}
		o.EmpleadoID = &id
	}
	if req.Plataforma != nil && *req.Plataforma != "" {
		o.Plataforma = req.Plataforma
		if req.TotalPlataforma != nil {
			if req.TotalPlataforma.IsNegative() {
				return nil, validacion("total_plataforma no puede ser negativo")
			}
			tp := req.TotalPlataforma.Round(2)
			o.TotalPlataforma = &tp
		}
	}

	for i, it := range req.Items {
		mods, err := json.Marshal(it.Modificadores)
		if err != nil {
			return nil, err
		}
		o.Items = append(o.Items, model.OrdenItem{
			Posicion:       i + 1,
			ProductoID:     it.ProductoID,
			Nombre:         it.Nombre,
			Cantidad:       it.Cantidad,
			PrecioUnitario: it.PrecioUnitario,
			Modificadores:  datatypes.JSON(mods),
			Subtotal:       tot.Lineas[i],
		})
	}
	for _, p := range req.Pagos {
		o.Pagos = append(o.Pagos, model.OrdenPago{Metodo: p.Metodo, Monto: p.Monto.Round(2)})
	}

	if err := s.repo.Create(ctx, o); err != nil {
		// Lost the race on the unique key: the other request's order wins.
		if existente, lookupErr := s.repo.FindByClave(ctx, req.ClaveIdempotencia); lookupErr == nil {
			return duplicada(existente), nil
		}
		return nil, fmt.Errorf("crear orden: %w", err)
	}

	log.Info().Str("orden_id", o.ID.String()).Str("clave", o.ClaveIdempotencia).
		Int("sucursal_id", o.SucursalID).Str("estado", o.Estado).
		Str("total", o.Total.StringFixed(2)).Msg("orden creada")

	resp := ordenToResponse(o)
	return &resp, nil
}

// ── Obtener / Cancelar ────────────────────────────────────────────────────────

func (s *ordenService) Obtener(ctx context.Context, id uuid.UUID) (*dto.OrdenResponse, error) {
	o, err := s.buscar(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ordenToResponse(o)
	return &resp, nil
}

func (s *ordenService) Cancelar(ctx context.Context, id uuid.UUID, motivo string) (*dto.OrdenResponse, error) {
	o, err := s.buscar(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Estado == model.OrdenCancelada {
		return nil, validacion("la orden ya está cancelada")
	}

	ok, err := s.repo.Cancelar(ctx, id, motivo, s.ahora())
	if err != nil {
		return nil, fmt.Errorf("cancelar orden: %w", err)
	}
	if !ok {
		return nil, validacion("la orden ya está cancelada")
	}
	log.Info().Str("orden_id", id.String()).Str("motivo", motivo).Msg("orden cancelada")

	return s.Obtener(ctx, id)
}

func (s *ordenService) buscar(ctx context.Context, id uuid.UUID) (*model.Orden, error) {
	o, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrdenNoEncontrada
		}
		return nil, err
	}
	return o, nil
}

func duplicada(o *model.Orden) *dto.OrdenResponse {
	resp := ordenToResponse(o)
	resp.Duplicada = true
	return &resp
}

func ordenToResponse(o *model.Orden) dto.OrdenResponse {
	items := make([]dto.OrdenItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		var mods []dto.ModificadorRequest
		if len(it.Modificadores) > 0 {
			if err := json.Unmarshal(it.Modificadores, &mods); err != nil {
				log.Warn().Err(err).Str("orden_id", o.ID.String()).Msg("modificadores ilegibles")
			}
		}
		items = append(items, dto.OrdenItemResponse{
			ProductoID:     it.ProductoID,
			Nombre:         it.Nombre,
			Cantidad:       it.Cantidad,
			PrecioUnitario: it.PrecioUnitario,
			Modificadores:  mods,
			Subtotal:       it.Subtotal,
		})
	}
	pagos := make([]dto.PagoRequest, 0, len(o.Pagos))
	for _, p := range o.Pagos {
		pagos = append(pagos, dto.PagoRequest{Metodo: p.Metodo, Monto: p.Monto})
	}

	resp := dto.OrdenResponse{
		ID:                o.ID.String(),
		ClaveIdempotencia: o.ClaveIdempotencia,
		SucursalID:        o.SucursalID,
		ClienteID:         o.ClienteID,
		Folio:             o.Folio,
		Estado:            o.Estado,
		Subtotal:          o.Subtotal,
		Descuento:         o.Descuento,
		Impuesto:          o.Impuesto,
		Total:             o.Total,
		Plataforma:        o.Plataforma,
		TotalPlataforma:   o.TotalPlataforma,
		Items:             items,
		Pagos:             pagos,
		MotivoCancelacion: o.MotivoCancelacion,
		CreatedAt:         o.CreatedAt.Format(formatoFecha),
	}
	if o.EmpleadoID != nil {
		id := o.EmpleadoID.String()
		resp.EmpleadoID = &id
	}
	if o.CanceladaEn != nil {
		t := o.CanceladaEn.Format(formatoFecha)
		resp.CanceladaEn = &t
	}
	return resp
}
