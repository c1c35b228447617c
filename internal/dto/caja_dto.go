package dto

import (
	"cajapos/internal/cuadre"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

// AbrirCajaRequest accepts the opening float either as a direct amount or as a
// denomination tally. When both are sent they must agree.
type AbrirCajaRequest struct {
	SucursalID    int              `json:"sucursal_id"    validate:"required,min=1"`
	MontoApertura *decimal.Decimal `json:"monto_apertura"`
	Conteo        map[string]int   `json:"conteo"`
}

type MovimientoRequest struct {
	Tipo         string          `json:"tipo"         validate:"required,oneof=deposito retiro gasto"`
	Monto        decimal.Decimal `json:"monto"        validate:"required,gt=0"`
	Subcategoria *string         `json:"subcategoria" validate:"omitempty,oneof=insumos proveedor renta nomina servicios limpieza otros"`
	Nota         *string         `json:"nota"         validate:"omitempty,max=255"`
}

type EntregaRequest struct {
	EmpleadoEntranteID string           `json:"empleado_entrante_id" validate:"required,uuid"`
	EfectivoContado    *decimal.Decimal `json:"efectivo_contado"`
	Conteo             map[string]int   `json:"conteo"`
	Nota               *string          `json:"nota" validate:"omitempty,max=255"`
}

type CerrarCajaRequest struct {
	EfectivoContado    *decimal.Decimal `json:"efectivo_contado"`
	Conteo             map[string]int   `json:"conteo"`
	Notas              *string          `json:"notas"                validate:"omitempty,max=500"`
	EmpleadoReceptorID *string          `json:"empleado_receptor_id" validate:"omitempty,uuid"`
}

// ─── Filter / Pagination ─────────────────────────────────────────────────────

type HistorialCajaFilter struct {
	SucursalID int    `form:"sucursal_id" validate:"min=0"`
	Desde      string `form:"desde"` // YYYY-MM-DD
	Hasta      string `form:"hasta"` // YYYY-MM-DD, inclusive
	Page       int    `form:"page,default=1"   validate:"min=1"`
	Limit      int    `form:"limit,default=20" validate:"min=1"` // clamped to 100
}

type ConteoTotalRequest struct {
	Conteo map[string]int `json:"conteo" validate:"required"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type CajaResponse struct {
	ID                 string           `json:"id"`
	SucursalID         int              `json:"sucursal_id"`
	Estado             string           `json:"estado"`
	EmpleadoAperturaID *string          `json:"empleado_apertura_id"`
	MontoApertura      decimal.Decimal  `json:"monto_apertura"`
	ConteoApertura     map[string]int   `json:"conteo_apertura,omitempty"`
	EfectivoContado    *decimal.Decimal `json:"efectivo_contado"`
	ConteoCierre       map[string]int   `json:"conteo_cierre,omitempty"`
	EfectivoTeorico    *decimal.Decimal `json:"efectivo_teorico"`
	Descuadre          *decimal.Decimal `json:"descuadre"`
	EstadoCuadre       string           `json:"estado_cuadre,omitempty"`
	NotasCierre        *string          `json:"notas_cierre"`
	EmpleadoReceptorID *string          `json:"empleado_receptor_id"`
	OpenedAt           string           `json:"opened_at"`
	ClosedAt           *string          `json:"closed_at"`
}

type MovimientoResponse struct {
	ID           string          `json:"id"`
	CajaID       string          `json:"caja_id"`
	Tipo         string          `json:"tipo"`
	Monto        decimal.Decimal `json:"monto"`
	Subcategoria *string         `json:"subcategoria"`
	Nota         *string         `json:"nota"`
	EmpleadoID   *string         `json:"empleado_id"`
	CreatedAt    string          `json:"created_at"`
}

type EntregaResponse struct {
	ID                 string          `json:"id"`
	CajaID             string          `json:"caja_id"`
	MovimientoID       string          `json:"movimiento_id"`
	EmpleadoSalienteID string          `json:"empleado_saliente_id"`
	EmpleadoEntranteID string          `json:"empleado_entrante_id"`
	EfectivoContado    decimal.Decimal `json:"efectivo_contado"`
	EfectivoTeorico    decimal.Decimal `json:"efectivo_teorico"`
	Descuadre          decimal.Decimal `json:"descuadre"`
	EstadoCuadre       string          `json:"estado_cuadre"`
	Nota               *string         `json:"nota"`
	CreatedAt          string          `json:"created_at"`
	Resumen            *cuadre.Resumen `json:"resumen,omitempty"`
}

// CierreResponse is the closed caja plus the reconciliation it was closed with.
type CierreResponse struct {
	Caja    CajaResponse   `json:"caja"`
	Resumen cuadre.Resumen `json:"resumen"`
}

type HistorialCajaResponse struct {
	Data       []CajaResponse `json:"data"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"total_pages"`
}

type ConteoTotalResponse struct {
	Conteo map[string]int  `json:"conteo"`
	Total  decimal.Decimal `json:"total"`
}
