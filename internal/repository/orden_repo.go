package repository

import (
	"context"
	"time"

	"cajapos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrdenRepository interface {
	// Create inserts the order with its items and payments in one transaction.
	Create(ctx context.Context, o *model.Orden) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Orden, error)
	FindByClave(ctx context.Context, clave string) (*model.Orden, error)
	// ListEnVentana returns completed and cancelled orders of a branch with
	// desde <= created_at < hasta, items and payments preloaded.
	ListEnVentana(ctx context.Context, sucursalID int, desde, hasta time.Time) ([]model.Orden, error)
	// Cancelar reports false when the order was already cancelled.
	Cancelar(ctx context.Context, id uuid.UUID, motivo string, cuando time.Time) (bool, error)
}

type ordenRepo struct{ db *gorm.DB }

func NewOrdenRepository(db *gorm.DB) OrdenRepository { return &ordenRepo{db: db} }

func (r *ordenRepo) Create(ctx context.Context, o *model.Orden) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(o).Error
	})
}

func (r *ordenRepo) preload(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("posicion ASC") }).
		Preload("Pagos")
}

func (r *ordenRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Orden, error) {
	var o model.Orden
	err := r.preload(ctx).Where("id = ?", id).First(&o).Error
	return &o, err
}

func (r *ordenRepo) FindByClave(ctx context.Context, clave string) (*model.Orden, error) {
	var o model.Orden
	err := r.preload(ctx).Where("clave_idempotencia = ?", clave).First(&o).Error
	return &o, err
}

func (r *ordenRepo) ListEnVentana(ctx context.Context, sucursalID int, desde, hasta time.Time) ([]model.Orden, error) {
	var ordenes []model.Orden
	err := r.preload(ctx).
		Where("sucursal_id = ? AND created_at >= ? AND created_at < ?", sucursalID, desde, hasta).
		Where("estado IN ?", []string{model.OrdenCompletada, model.OrdenCancelada}).
		Order("created_at ASC").
		Find(&ordenes).Error
	return ordenes, err
}

func (r *ordenRepo) Cancelar(ctx context.Context, id uuid.UUID, motivo string, cuando time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Orden{}).
		Where("id = ? AND estado <> ?", id, model.OrdenCancelada).
		Updates(map[string]interface{}{
			"estado":             model.OrdenCancelada,
			"motivo_cancelacion": motivo,
			"cancelada_en":       cuando,
		})
	return res.RowsAffected == 1, res.Error
}
