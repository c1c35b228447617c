package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Estado de la orden
const (
	OrdenPendiente  = "pendiente"
	OrdenCompletada = "completada"
	OrdenCancelada  = "cancelada"
)

// Métodos de pago. "plataforma" is money collected by a delivery app; it never
// enters the drawer.
const (
	MetodoEfectivo   = "efectivo"
	MetodoTarjeta    = "tarjeta"
	MetodoPlataforma = "plataforma"
)

// MetodoValido reports whether m is one of the accepted payment methods.
func MetodoValido(m string) bool {
	switch m {
	case MetodoEfectivo, MetodoTarjeta, MetodoPlataforma:
		return true
	}
	return false
}

// Orden is a sale. It is immutable once completed except for cancellation and
// folio assignment.
//
// ClaveIdempotencia is generated by the terminal; re-submitting the same key
// returns the stored order instead of creating a new one.
type Orden struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ClaveIdempotencia string     `gorm:"type:varchar(64);uniqueIndex;not null"`
	SucursalID        int        `gorm:"not null;index:idx_ordenes_sucursal_fecha,priority:1"`
	EmpleadoID        *uuid.UUID `gorm:"type:uuid"`
	ClienteID         *string    `gorm:"type:varchar(64)"`
	Folio             *int
	Estado            string          `gorm:"type:varchar(20);not null"`
	Subtotal          decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Descuento         decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Impuesto          decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Total             decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// Plataforma is the delivery-platform tag ("uber", "didi", "rappi"...)
	Plataforma *string `gorm:"type:varchar(30)"`
	// TotalPlataforma is what the platform charged the customer; may exceed Total.
	TotalPlataforma   *decimal.Decimal `gorm:"type:decimal(12,2)"`
	MotivoCancelacion *string
	CreatedAt         time.Time `gorm:"index:idx_ordenes_sucursal_fecha,priority:2"`
	CanceladaEn       *time.Time

	Items []OrdenItem `gorm:"foreignKey:OrdenID"`
	Pagos []OrdenPago `gorm:"foreignKey:OrdenID"`
}

func (Orden) TableName() string { return "ordenes" }

func (o *Orden) BeforeCreate(_ *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

type OrdenItem struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OrdenID        uuid.UUID       `gorm:"type:uuid;index;not null"`
	Posicion       int             `gorm:"not null"`
	ProductoID     string          `gorm:"type:varchar(64);not null"`
	Nombre         string          `gorm:"not null"`
	Cantidad       int             `gorm:"not null"`
	PrecioUnitario decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Modificadores  datatypes.JSON
	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}

func (OrdenItem) TableName() string { return "orden_items" }

func (i *OrdenItem) BeforeCreate(_ *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

type OrdenPago struct {
	ID      uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OrdenID uuid.UUID       `gorm:"type:uuid;index;not null"`
	Metodo  string          `gorm:"type:varchar(20);not null"`
	Monto   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}

func (OrdenPago) TableName() string { return "orden_pagos" }

func (p *OrdenPago) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// FolioSucursal holds the last folio handed out for a sucursal.
type FolioSucursal struct {
	SucursalID int `gorm:"primaryKey;autoIncrement:false"`
	Ultimo     int `gorm:"not null;default:0"`
	UpdatedAt  time.Time
}

func (FolioSucursal) TableName() string { return "folios_sucursal" }
