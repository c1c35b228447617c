package infra

import (
	"fmt"

	"cajapos/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx and migrates the
// server schema (see Migrar).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := Migrar(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrar runs AutoMigrate for the ledger tables, then applies the idempotent
// DDL that GORM cannot express. It works on Postgres and SQLite.
func Migrar(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Caja{},
		&model.MovimientoCaja{},
		&model.EntregaCaja{},
		&model.Orden{},
		&model.OrdenItem{},
		&model.OrdenPago{},
		&model.FolioSucursal{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs DDL statements with IF NOT EXISTS semantics so
// re-running on an already-patched DB is safe.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// At most one open caja per sucursal. Partial indexes are supported by
		// both Postgres and SQLite with identical syntax.
		{"idx_cajas_sucursal_abierta", `
CREATE UNIQUE INDEX IF NOT EXISTS idx_cajas_sucursal_abierta
    ON cajas (sucursal_id)
    WHERE estado = 'abierta'`},
		{"idx_cajas_cerradas", `
CREATE INDEX IF NOT EXISTS idx_cajas_cerradas
    ON cajas (sucursal_id, closed_at)
    WHERE estado = 'cerrada'`},
	}
	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
