package repository

import (
	"context"
	"time"

	"cajapos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CajaFiltro selects closed cajas. Zero values mean "no filter".
type CajaFiltro struct {
	SucursalID int
	Desde      *time.Time
	Hasta      *time.Time // exclusive
	Offset     int
	Limit      int
}

// CajaRepository persists cajas, their movements and handover checkpoints.
// Movements are append-only: there is no update or delete.
type CajaRepository interface {
	CreateCaja(ctx context.Context, c *model.Caja) error
	FindAbiertaPorSucursal(ctx context.Context, sucursalID int) (*model.Caja, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Caja, error)
	// Cerrar persists the closing fields only if the caja is still open.
	// It reports false when another request closed it first.
	Cerrar(ctx context.Context, c *model.Caja) (bool, error)
	CreateMovimiento(ctx context.Context, m *model.MovimientoCaja) error
	ListMovimientos(ctx context.Context, cajaID uuid.UUID) ([]model.MovimientoCaja, error)
	CreateEntrega(ctx context.Context, m *model.MovimientoCaja, e *model.EntregaCaja) error
	ListEntregas(ctx context.Context, cajaID uuid.UUID) ([]model.EntregaCaja, error)
	ListCerradas(ctx context.Context, f CajaFiltro) ([]model.Caja, int64, error)
}

type cajaRepo struct{ db *gorm.DB }

func NewCajaRepository(db *gorm.DB) CajaRepository { return &cajaRepo{db: db} }

func (r *cajaRepo) CreateCaja(ctx context.Context, c *model.Caja) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(c).Error
}

func (r *cajaRepo) FindAbiertaPorSucursal(ctx context.Context, sucursalID int) (*model.Caja, error) {
	var c model.Caja
	err := r.db.WithContext(ctx).
		Where("sucursal_id = ? AND estado = ?", sucursalID, model.CajaAbierta).
		First(&c).Error
	return &c, err
}

func (r *cajaRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Caja, error) {
	var c model.Caja
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	return &c, err
}

func (r *cajaRepo) Cerrar(ctx context.Context, c *model.Caja) (bool, error) {
	res := r.db.WithContext(ctx).Model(c).
		Where("estado = ?", model.CajaAbierta).
		Select("estado", "efectivo_contado", "conteo_cierre", "efectivo_teorico",
			"descuadre", "notas_cierre", "empleado_receptor_id", "closed_at").
		Updates(c)
	return res.RowsAffected == 1, res.Error
}

func (r *cajaRepo) CreateMovimiento(ctx context.Context, m *model.MovimientoCaja) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *cajaRepo) ListMovimientos(ctx context.Context, cajaID uuid.UUID) ([]model.MovimientoCaja, error) {
	var movs []model.MovimientoCaja
	err := r.db.WithContext(ctx).Where("caja_id = ?", cajaID).Order("created_at ASC").Find(&movs).Error
	return movs, err
}

// CreateEntrega writes the zero-amount marker movement and the checkpoint atomically.
func (r *cajaRepo) CreateEntrega(ctx context.Context, m *model.MovimientoCaja, e *model.EntregaCaja) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		e.MovimientoID = m.ID
		return tx.Create(e).Error
	})
}

func (r *cajaRepo) ListEntregas(ctx context.Context, cajaID uuid.UUID) ([]model.EntregaCaja, error) {
	var entregas []model.EntregaCaja
	err := r.db.WithContext(ctx).Where("caja_id = ?", cajaID).Order("created_at ASC").Find(&entregas).Error
	return entregas, err
}

func (r *cajaRepo) ListCerradas(ctx context.Context, f CajaFiltro) ([]model.Caja, int64, error) {
	var cajas []model.Caja
	var total int64

	q := r.db.WithContext(ctx).Model(&model.Caja{}).Where("estado = ?", model.CajaCerrada)
	if f.SucursalID > 0 {
		q = q.Where("sucursal_id = ?", f.SucursalID)
	}
	if f.Desde != nil {
		q = q.Where("closed_at >= ?", *f.Desde)
	}
	if f.Hasta != nil {
		q = q.Where("closed_at < ?", *f.Hasta)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := q.Order("closed_at DESC").Offset(f.Offset).Limit(f.Limit).Find(&cajas).Error
	return cajas, total, err
}
