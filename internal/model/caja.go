package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Estado de la caja
const (
	CajaAbierta = "abierta"
	CajaCerrada = "cerrada"
)

// Tipos de movimiento. "entrega" is written only by the handover flow and
// always carries a zero amount.
const (
	MovimientoDeposito = "deposito"
	MovimientoRetiro   = "retiro"
	MovimientoGasto    = "gasto"
	MovimientoEntrega  = "entrega"
)

// Subcategorías de gasto, in report order.
var SubcategoriasGasto = []string{"insumos", "proveedor", "renta", "nomina", "servicios", "limpieza", "otros"}

// SubcategoriaPorDefecto is used for expenses recorded without a subcategory.
const SubcategoriaPorDefecto = "otros"

// Caja is one cash-drawer session for one branch (sucursal).
// At most one row per sucursal may have Estado = "abierta"; the partial unique
// index idx_cajas_sucursal_abierta enforces it (see infra.Migrar).
type Caja struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SucursalID         int             `gorm:"not null;index"`
	EmpleadoAperturaID *uuid.UUID      `gorm:"type:uuid"`
	MontoApertura      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	ConteoApertura     datatypes.JSON
	Estado             string `gorm:"type:varchar(20);not null;default:'abierta'"`

	// Set on close
	EfectivoContado    *decimal.Decimal `gorm:"type:decimal(12,2)"`
	ConteoCierre       datatypes.JSON
	EfectivoTeorico    *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Descuadre          *decimal.Decimal `gorm:"type:decimal(12,2)"`
	NotasCierre        *string
	EmpleadoReceptorID *uuid.UUID `gorm:"type:uuid"`

	OpenedAt time.Time `gorm:"not null;index"`
	ClosedAt *time.Time

	Movimientos []MovimientoCaja `gorm:"foreignKey:CajaID"`
}

func (Caja) TableName() string { return "cajas" }

func (c *Caja) BeforeCreate(_ *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Abierta reports whether the caja still accepts orders and movements.
func (c *Caja) Abierta() bool { return c.Estado == CajaAbierta }

// MovimientoCaja is a manual cash adjustment against a caja.
// Movements are NEVER modified or deleted.
type MovimientoCaja struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	CajaID       uuid.UUID       `gorm:"type:uuid;index;not null"`
	Tipo         string          `gorm:"type:varchar(20);not null"`
	Monto        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Nota         *string
	Subcategoria *string    `gorm:"type:varchar(20)"`
	EmpleadoID   *uuid.UUID `gorm:"type:uuid"`
	CreatedAt    time.Time
}

func (MovimientoCaja) TableName() string { return "movimientos_caja" }

func (m *MovimientoCaja) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// EntregaCaja is the audit checkpoint written by a mid-shift handover.
// Resumen holds the full cuadre computed at that moment.
type EntregaCaja struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey"`
	CajaID             uuid.UUID       `gorm:"type:uuid;index;not null"`
	MovimientoID       uuid.UUID       `gorm:"type:uuid;not null"`
	EmpleadoSalienteID uuid.UUID       `gorm:"type:uuid;not null"`
	EmpleadoEntranteID uuid.UUID       `gorm:"type:uuid;not null"`
	EfectivoContado    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	EfectivoTeorico    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Descuadre          decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Nota               *string
	Resumen            datatypes.JSON
	CreatedAt          time.Time
}

func (EntregaCaja) TableName() string { return "entregas_caja" }

func (e *EntregaCaja) BeforeCreate(_ *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
