package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type ModificadorRequest struct {
	Nombre string          `json:"nombre" validate:"required"`
	Precio decimal.Decimal `json:"precio" validate:"min=0"`
}

type ItemOrdenRequest struct {
	ProductoID     string               `json:"producto_id"     validate:"required,max=64"`
	Nombre         string               `json:"nombre"          validate:"required"`
	Cantidad       int                  `json:"cantidad"        validate:"required,min=1"`
	PrecioUnitario decimal.Decimal      `json:"precio_unitario" validate:"min=0"`
	Modificadores  []ModificadorRequest `json:"modificadores"   validate:"dive"`
}

type PagoRequest struct {
	Metodo string          `json:"metodo" validate:"required,oneof=efectivo tarjeta plataforma"`
	Monto  decimal.Decimal `json:"monto"  validate:"gt=0"`
}

// OrdenRequest is the order-creation payload. The terminal stores exactly this
// shape in its offline queue, so a queued order replays byte-for-byte.
type OrdenRequest struct {
	// ClaveIdempotencia is the client correlation id; the server deduplicates on it.
	ClaveIdempotencia string             `json:"clave_idempotencia" validate:"required,max=64"`
	SucursalID        int                `json:"sucursal_id"        validate:"required,min=1"`
	EmpleadoID        *string            `json:"empleado_id"        validate:"omitempty,uuid"`
	ClienteID         *string            `json:"cliente_id"         validate:"omitempty,max=64"`
	Items             []ItemOrdenRequest `json:"items"              validate:"required,min=1,dive"`
	Pagos             []PagoRequest      `json:"pagos"              validate:"dive"`
	Descuento         decimal.Decimal    `json:"descuento"          validate:"min=0"`
	Plataforma        *string            `json:"plataforma"         validate:"omitempty,max=30"`
	TotalPlataforma   *decimal.Decimal   `json:"total_plataforma"`
	// CreadaEn is the terminal clock at sale time. Offline orders keep it so they
	// land in the caja window they were sold in.
	CreadaEn *time.Time `json:"creada_en"`
}

type CancelarOrdenRequest struct {
	Motivo string `json:"motivo" validate:"required,min=3"`
}

type SelloRequest struct {
	ClienteID string `json:"cliente_id" validate:"required,max=64"`
	OrdenID   string `json:"orden_id"   validate:"required,uuid"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type OrdenItemResponse struct {
	ProductoID     string               `json:"producto_id"`
	Nombre         string               `json:"nombre"`
	Cantidad       int                  `json:"cantidad"`
	PrecioUnitario decimal.Decimal      `json:"precio_unitario"`
	Modificadores  []ModificadorRequest `json:"modificadores"`
	Subtotal       decimal.Decimal      `json:"subtotal"`
}

type OrdenResponse struct {
	ID                string              `json:"id"`
	ClaveIdempotencia string              `json:"clave_idempotencia"`
	SucursalID        int                 `json:"sucursal_id"`
	EmpleadoID        *string             `json:"empleado_id"`
	ClienteID         *string             `json:"cliente_id"`
	Folio             *int                `json:"folio"`
	Estado            string              `json:"estado"`
	Subtotal          decimal.Decimal     `json:"subtotal"`
	Descuento         decimal.Decimal     `json:"descuento"`
	Impuesto          decimal.Decimal     `json:"impuesto"`
	Total             decimal.Decimal     `json:"total"`
	Plataforma        *string             `json:"plataforma"`
	TotalPlataforma   *decimal.Decimal    `json:"total_plataforma"`
	Items             []OrdenItemResponse `json:"items"`
	Pagos             []PagoRequest       `json:"pagos"`
	MotivoCancelacion *string             `json:"motivo_cancelacion,omitempty"`
	CanceladaEn       *string             `json:"cancelada_en,omitempty"`
	Duplicada         bool                `json:"duplicada"`
	CreatedAt         string              `json:"created_at"`
}

type FolioResponse struct {
	OrdenID string `json:"orden_id"`
	Folio   int    `json:"folio"`
}
