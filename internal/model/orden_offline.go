package model

import (
	"time"

	"gorm.io/datatypes"
)

// Estado de sincronización de una orden offline
const (
	OfflinePendiente    = "pendiente"
	OfflineSincronizada = "sincronizada"
	OfflineFallida      = "fallida"
)

// OrdenOffline lives only in the terminal's local database. ID is the
// temporary local id and doubles as the payload's clave_idempotencia.
// A record may be deleted only after it reached "sincronizada".
type OrdenOffline struct {
	ID             string         `gorm:"type:varchar(64);primaryKey"`
	NumeroTemporal int            `gorm:"not null"`
	Payload        datatypes.JSON `gorm:"not null"`
	Estado         string         `gorm:"type:varchar(20);not null;index"`
	ServidorID     *string        `gorm:"type:varchar(64)"`
	Folio          *int
	Intentos       int `gorm:"not null;default:0"`
	UltimoError    *string
	// Rechazada marks a record the server refused (4xx); it stays queued for
	// manual inspection.
	Rechazada      bool `gorm:"not null;default:false"`
	CreatedAt      time.Time
	SincronizadaEn *time.Time
}

func (OrdenOffline) TableName() string { return "ordenes_offline" }

// ContadorTemporal persists the receipt placeholder sequence across restarts.
type ContadorTemporal struct {
	ID     int `gorm:"primaryKey;autoIncrement:false"`
	Ultimo int `gorm:"not null;default:0"`
}

func (ContadorTemporal) TableName() string { return "contador_temporal" }
