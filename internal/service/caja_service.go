package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cajapos/internal/cuadre"
	"cajapos/internal/denominacion"
	"cajapos/internal/dto"
	"cajapos/internal/model"
	"cajapos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CajaService interface {
	Abrir(ctx context.Context, empleadoID *uuid.UUID, req dto.AbrirCajaRequest) (*dto.CajaResponse, error)
	RegistrarMovimiento(ctx context.Context, cajaID uuid.UUID, empleadoID *uuid.UUID, req dto.MovimientoRequest) (*dto.MovimientoResponse, error)
	ListarMovimientos(ctx context.Context, cajaID uuid.UUID) ([]dto.MovimientoResponse, error)
	Entregar(ctx context.Context, cajaID, empleadoSalienteID uuid.UUID, req dto.EntregaRequest) (*dto.EntregaResponse, error)
	ListarEntregas(ctx context.Context, cajaID uuid.UUID) ([]dto.EntregaResponse, error)
	Cerrar(ctx context.Context, cajaID uuid.UUID, req dto.CerrarCajaRequest) (*dto.CierreResponse, error)
	// Obtener returns ErrCajaNoEncontrada for an unknown id.
	Obtener(ctx context.Context, cajaID uuid.UUID) (*dto.CajaResponse, error)
	// ObtenerAbierta returns ErrSinCajaAbierta when the branch has no open caja.
	ObtenerAbierta(ctx context.Context, sucursalID int) (*dto.CajaResponse, error)
	ListarCerradas(ctx context.Context, filtro dto.HistorialCajaFilter) (*dto.HistorialCajaResponse, error)
}

type cajaService struct {
	repo        repository.CajaRepository
	cuadre      CuadreService
	maxEfectivo decimal.Decimal // 0 disables the close limit
	ahora       func() time.Time
}

func NewCajaService(repo repository.CajaRepository, cuadreSvc CuadreService, maxEfectivo decimal.Decimal) CajaService {
	return &cajaService{
		repo:        repo,
		cuadre:      cuadreSvc,
		maxEfectivo: maxEfectivo,
		ahora:       func() time.Time { return time.Now().UTC() },
	}
}

// ── Abrir ─────────────────────────────────────────────────────────────────────

func (s *cajaService) Abrir(ctx context.Context, empleadoID *uuid.UUID, req dto.AbrirCajaRequest) (*dto.CajaResponse, error) {
	monto, conteo, err := resolverEfectivo(req.MontoApertura, req.Conteo, "monto_apertura")
	if err != nil {
		return nil, err
	}

	// Guard: one open caja per sucursal. The partial unique index closes the race.
	if _, err := s.repo.FindAbiertaPorSucursal(ctx, req.SucursalID); err == nil {
		return nil, validacion("ya existe una caja abierta en la sucursal %d", req.SucursalID)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("buscar caja abierta: %w", err)
	}

	caja := &model.Caja{
		SucursalID:         req.SucursalID,
		EmpleadoAperturaID: empleadoID,
		MontoApertura:      monto,
		ConteoApertura:     conteo,
		Estado:             model.CajaAbierta,
		OpenedAt:           s.ahora(),
	}
	if err := s.repo.CreateCaja(ctx, caja); err != nil {
		if _, lookupErr := s.repo.FindAbiertaPorSucursal(ctx, req.SucursalID); lookupErr == nil {
			return nil, validacion("ya existe una caja abierta en la sucursal %d", req.SucursalID)
		}
		return nil, fmt.Errorf("crear caja: %w", err)
	}

	log.Info().Str("caja_id", caja.ID.String()).Int("sucursal_id", caja.SucursalID).
		Str("monto_apertura", monto.StringFixed(2)).Msg("caja abierta")
	resp := cajaToResponse(caja)
	return &resp, nil
}

// ── Movimientos ───────────────────────────────────────────────────────────────
// Movements are immutable: no Update/Delete.

func (s *cajaService) RegistrarMovimiento(ctx context.Context, cajaID uuid.UUID, empleadoID *uuid.UUID, req dto.MovimientoRequest) (*dto.MovimientoResponse, error) {
	if !req.Monto.IsPositive() {
		return nil, validacion("el monto debe ser mayor a cero")
	}
	switch req.Tipo {
	case model.MovimientoDeposito, model.MovimientoRetiro, model.MovimientoGasto:
	default:
		return nil, validacion("tipo de movimiento inválido: %q", req.Tipo)
	}
	if req.Subcategoria != nil && req.Tipo != model.MovimientoGasto {
		return nil, validacion("la subcategoría solo aplica a gastos")
	}

	if _, err := s.cajaAbierta(ctx, cajaID); err != nil {
		return nil, err
	}

	mov := &model.MovimientoCaja{
		CajaID:     cajaID,
		Tipo:       req.Tipo,
		Monto:      req.Monto.Round(2),
		Nota:       req.Nota,
		EmpleadoID: empleadoID,
		CreatedAt:  s.ahora(),
	}
	if req.Tipo == model.MovimientoGasto {
		sub := model.SubcategoriaPorDefecto
		if req.Subcategoria != nil && *req.Subcategoria != "" {
			sub = *req.Subcategoria
		}
		mov.Subcategoria = &sub
	}
	if err := s.repo.CreateMovimiento(ctx, mov); err != nil {
		return nil, fmt.Errorf("registrar movimiento: %w", err)
	}

	resp := movimientoToResponse(mov)
	return &resp, nil
}

func (s *cajaService) ListarMovimientos(ctx context.Context, cajaID uuid.UUID) ([]dto.MovimientoResponse, error) {
	if _, err := s.buscar(ctx, cajaID); err != nil {
		return nil, err
	}
	movs, err := s.repo.ListMovimientos(ctx, cajaID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.MovimientoResponse, 0, len(movs))
	for i := range movs {
		out = append(out, movimientoToResponse(&movs[i]))
	}
	return out, nil
}

// ── Entrega ───────────────────────────────────────────────────────────────────
// Mid-shift handover: checkpoint only. The caja stays open and totals are not reset.

func (s *cajaService) Entregar(ctx context.Context, cajaID, empleadoSalienteID uuid.UUID, req dto.EntregaRequest) (*dto.EntregaResponse, error) {
	entranteID, err := uuid.Parse(req.EmpleadoEntranteID)
	if err != nil {
		return nil, validacion("empleado_entrante_id inválido")
	}
	if entranteID == empleadoSalienteID {
		return nil, validacion("el empleado entrante debe ser distinto del saliente")
	}
	contado, _, err := resolverEfectivo(req.EfectivoContado, req.Conteo, "efectivo_contado")
	if err != nil {
		return nil, err
	}

	caja, err := s.cajaAbierta(ctx, cajaID)
	if err != nil {
		return nil, err
	}

	resumen, err := s.cuadre.Calcular(ctx, caja, &contado)
	if err != nil {
		return nil, err
	}
	snapshot, err := json.Marshal(resumen)
	if err != nil {
		return nil, fmt.Errorf("serializar cuadre: %w", err)
	}

	ahora := s.ahora()
	mov := &model.MovimientoCaja{
		CajaID:     cajaID,
		Tipo:       model.MovimientoEntrega,
		Monto:      decimal.Zero,
		Nota:       req.Nota,
		EmpleadoID: &empleadoSalienteID,
		CreatedAt:  ahora,
	}
	entrega := &model.EntregaCaja{
		CajaID:             cajaID,
		EmpleadoSalienteID: empleadoSalienteID,
		EmpleadoEntranteID: entranteID,
		EfectivoContado:    *resumen.EfectivoContado,
		EfectivoTeorico:    resumen.EfectivoTeorico,
		Descuadre:          *resumen.Descuadre,
		Nota:               req.Nota,
		Resumen:            datatypes.JSON(snapshot),
		CreatedAt:          ahora,
	}
	if err := s.repo.CreateEntrega(ctx, mov, entrega); err != nil {
		return nil, fmt.Errorf("registrar entrega: %w", err)
	}

	log.Info().Str("caja_id", cajaID.String()).Str("saliente", empleadoSalienteID.String()).
		Str("entrante", entranteID.String()).Str("descuadre", entrega.Descuadre.StringFixed(2)).
		Msg("entrega de turno")

	resp := entregaToResponse(entrega)
	resp.Resumen = &resumen
	return &resp, nil
}

func (s *cajaService) ListarEntregas(ctx context.Context, cajaID uuid.UUID) ([]dto.EntregaResponse, error) {
	if _, err := s.buscar(ctx, cajaID); err != nil {
		return nil, err
	}
	entregas, err := s.repo.ListEntregas(ctx, cajaID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.EntregaResponse, 0, len(entregas))
	for i := range entregas {
		resp := entregaToResponse(&entregas[i])
		if len(entregas[i].Resumen) > 0 {
			var r cuadre.Resumen
			if err := json.Unmarshal(entregas[i].Resumen, &r); err == nil {
				resp.Resumen = &r
			}
		}
		out = append(out, resp)
	}
	return out, nil
}

// ── Cerrar ────────────────────────────────────────────────────────────────────

func (s *cajaService) Cerrar(ctx context.Context, cajaID uuid.UUID, req dto.CerrarCajaRequest) (*dto.CierreResponse, error) {
	contado, conteo, err := resolverEfectivo(req.EfectivoContado, req.Conteo, "efectivo_contado")
	if err != nil {
		return nil, err
	}
	if s.maxEfectivo.IsPositive() && contado.GreaterThan(s.maxEfectivo) {
		return nil, validacion("el efectivo contado (%s) excede el máximo permitido en caja (%s): registre un retiro antes de cerrar",
			contado.StringFixed(2), s.maxEfectivo.StringFixed(2))
	}
	var receptorID *uuid.UUID
	if req.EmpleadoReceptorID != nil && *req.EmpleadoReceptorID != "" {
		id, err := uuid.Parse(*req.EmpleadoReceptorID)
		if err != nil {
			return nil, validacion("empleado_receptor_id inválido")
		}
		receptorID = &id
	}

	caja, err := s.cajaAbierta(ctx, cajaID)
	if err != nil {
		return nil, err
	}

	// Fix the window at close time before reconciling.
	closedAt := s.ahora()
	caja.ClosedAt = &closedAt
	resumen, err := s.cuadre.Calcular(ctx, caja, &contado)
	if err != nil {
		return nil, err
	}

	caja.Estado = model.CajaCerrada
	caja.EfectivoContado = resumen.EfectivoContado
	caja.ConteoCierre = conteo
	teorico := resumen.EfectivoTeorico
	caja.EfectivoTeorico = &teorico
	caja.Descuadre = resumen.Descuadre
	caja.NotasCierre = req.Notas
	caja.EmpleadoReceptorID = receptorID

	ok, err := s.repo.Cerrar(ctx, caja)
	if err != nil {
		return nil, fmt.Errorf("cerrar caja: %w", err)
	}
	if !ok {
		return nil, validacion("la caja ya está cerrada")
	}
	resumen.EstadoCaja = model.CajaCerrada

	log.Info().Str("caja_id", caja.ID.String()).Int("sucursal_id", caja.SucursalID).
		Str("teorico", teorico.StringFixed(2)).Str("contado", contado.StringFixed(2)).
		Str("descuadre", resumen.Descuadre.StringFixed(2)).Str("estado_cuadre", resumen.EstadoCuadre).
		Msg("caja cerrada")

	return &dto.CierreResponse{Caja: cajaToResponse(caja), Resumen: resumen}, nil
}

// ── Consultas ─────────────────────────────────────────────────────────────────

func (s *cajaService) Obtener(ctx context.Context, cajaID uuid.UUID) (*dto.CajaResponse, error) {
	caja, err := s.buscar(ctx, cajaID)
	if err != nil {
		return nil, err
	}
	resp := cajaToResponse(caja)
	return &resp, nil
}

func (s *cajaService) ObtenerAbierta(ctx context.Context, sucursalID int) (*dto.CajaResponse, error) {
	caja, err := s.repo.FindAbiertaPorSucursal(ctx, sucursalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSinCajaAbierta
		}
		return nil, err
	}
	resp := cajaToResponse(caja)
	return &resp, nil
}

func (s *cajaService) ListarCerradas(ctx context.Context, filtro dto.HistorialCajaFilter) (*dto.HistorialCajaResponse, error) {
	if filtro.Page < 1 {
		filtro.Page = 1
	}
	switch {
	case filtro.Limit < 1:
		filtro.Limit = 20
	case filtro.Limit > 100:
		filtro.Limit = 100
	}

	f := repository.CajaFiltro{
		SucursalID: filtro.SucursalID,
		Offset:     (filtro.Page - 1) * filtro.Limit,
		Limit:      filtro.Limit,
	}
	if filtro.Desde != "" {
		t, err := time.Parse("2006-01-02", filtro.Desde)
		if err != nil {
			return nil, validacion("fecha 'desde' inválida, use AAAA-MM-DD")
		}
		f.Desde = &t
	}
	if filtro.Hasta != "" {
		t, err := time.Parse("2006-01-02", filtro.Hasta)
		if err != nil {
			return nil, validacion("fecha 'hasta' inválida, use AAAA-MM-DD")
		}
		t = t.AddDate(0, 0, 1)
		f.Hasta = &t
	}

	cajas, total, err := s.repo.ListCerradas(ctx, f)
	if err != nil {
		return nil, err
	}

	data := make([]dto.CajaResponse, 0, len(cajas))
	for i := range cajas {
		data = append(data, cajaToResponse(&cajas[i]))
	}
	totalPages := int(total) / filtro.Limit
	if int(total)%filtro.Limit != 0 {
		totalPages++
	}
	return &dto.HistorialCajaResponse{
		Data:       data,
		Total:      total,
		Page:       filtro.Page,
		Limit:      filtro.Limit,
		TotalPages: totalPages,
	}, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func (s *cajaService) buscar(ctx context.Context, cajaID uuid.UUID) (*model.Caja, error) {
	caja, err := s.repo.FindByID(ctx, cajaID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCajaNoEncontrada
		}
		return nil, err
	}
	return caja, nil
}

func (s *cajaService) cajaAbierta(ctx context.Context, cajaID uuid.UUID) (*model.Caja, error) {
	caja, err := s.buscar(ctx, cajaID)
	if err != nil {
		return nil, err
	}
	if !caja.Abierta() {
		return nil, validacion("la caja ya está cerrada")
	}
	return caja, nil
}

// resolverEfectivo turns a direct amount and/or a denomination tally into one
// amount. At least one is required; when both are given they must agree.
func resolverEfectivo(monto *decimal.Decimal, conteo map[string]int, campo string) (decimal.Decimal, datatypes.JSON, error) {
	var raw datatypes.JSON
	var total *decimal.Decimal

	if len(conteo) > 0 {
		norm, err := denominacion.Normalizar(denominacion.Conteo(conteo))
		if err != nil {
			return decimal.Zero, nil, validacion("conteo inválido: %v", err)
		}
		t, err := denominacion.Total(norm)
		if err != nil {
			return decimal.Zero, nil, validacion("conteo inválido: %v", err)
		}
		b, err := json.Marshal(norm)
		if err != nil {
			return decimal.Zero, nil, err
		}
		raw = datatypes.JSON(b)
		total = &t
	}

	switch {
	case monto == nil && total == nil:
		return decimal.Zero, nil, validacion("se requiere %s o conteo de denominaciones", campo)
	case monto != nil && monto.IsNegative():
		return decimal.Zero, nil, validacion("%s no puede ser negativo", campo)
	case monto != nil && total != nil && !monto.Round(2).Equal(*total):
		return decimal.Zero, nil, validacion("%s (%s) no coincide con el conteo (%s)", campo, monto.StringFixed(2), total.StringFixed(2))
	case total != nil:
		return *total, raw, nil
	default:
		return monto.Round(2), nil, nil
	}
}

const formatoFecha = time.RFC3339

func uuidPtrString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func conteoDesdeJSON(raw datatypes.JSON) map[string]int {
	if len(raw) == 0 {
		return nil
	}
	var c map[string]int
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil
	}
	return c
}

func cajaToResponse(c *model.Caja) dto.CajaResponse {
	resp := dto.CajaResponse{
		ID:                 c.ID.String(),
		SucursalID:         c.SucursalID,
		Estado:             c.Estado,
		EmpleadoAperturaID: uuidPtrString(c.EmpleadoAperturaID),
		MontoApertura:      c.MontoApertura,
		ConteoApertura:     conteoDesdeJSON(c.ConteoApertura),
		EfectivoContado:    c.EfectivoContado,
		ConteoCierre:       conteoDesdeJSON(c.ConteoCierre),
		EfectivoTeorico:    c.EfectivoTeorico,
		Descuadre:          c.Descuadre,
		NotasCierre:        c.NotasCierre,
		EmpleadoReceptorID: uuidPtrString(c.EmpleadoReceptorID),
		OpenedAt:           c.OpenedAt.Format(formatoFecha),
	}
	if c.Descuadre != nil {
		resp.EstadoCuadre = cuadre.Clasificar(*c.Descuadre)
	}
	if c.ClosedAt != nil {
		t := c.ClosedAt.Format(formatoFecha)
		resp.ClosedAt = &t
	}
	return resp
}

func movimientoToResponse(m *model.MovimientoCaja) dto.MovimientoResponse {
	return dto.MovimientoResponse{
		ID:           m.ID.String(),
		CajaID:       m.CajaID.String(),
		Tipo:         m.Tipo,
		Monto:        m.Monto,
		Subcategoria: m.Subcategoria,
		Nota:         m.Nota,
		EmpleadoID:   uuidPtrString(m.EmpleadoID),
		CreatedAt:    m.CreatedAt.Format(formatoFecha),
	}
}

func entregaToResponse(e *model.EntregaCaja) dto.EntregaResponse {
	return dto.EntregaResponse{
		ID:                 e.ID.String(),
		CajaID:             e.CajaID.String(),
		MovimientoID:       e.MovimientoID.String(),
		EmpleadoSalienteID: e.EmpleadoSalienteID.String(),
		EmpleadoEntranteID: e.EmpleadoEntranteID.String(),
		EfectivoContado:    e.EfectivoContado,
		EfectivoTeorico:    e.EfectivoTeorico,
		Descuadre:          e.Descuadre,
		EstadoCuadre:       cuadre.Clasificar(e.Descuadre),
		Nota:               e.Nota,
		CreatedAt:          e.CreatedAt.Format(formatoFecha),
	}
}
