package repository

import (
	"context"

	"cajapos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FolioRepository interface {
	// Asignar gives the order the next folio of its branch. If the order
	// already has one it is returned unchanged.
	Asignar(ctx context.Context, ordenID uuid.UUID) (int, error)
}

type folioRepo struct{ db *gorm.DB }

func NewFolioRepository(db *gorm.DB) FolioRepository { return &folioRepo{db: db} }

func (r *folioRepo) Asignar(ctx context.Context, ordenID uuid.UUID) (int, error) {
	var folio int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o model.Orden
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", ordenID).First(&o).Error; err != nil {
			return err
		}
		if o.Folio != nil {
			folio = *o.Folio
			return nil
		}

		seq := model.FolioSucursal{SucursalID: o.SucursalID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seq).Error; err != nil {
			return err
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("sucursal_id = ?", o.SucursalID).First(&seq).Error; err != nil {
			return err
		}
		seq.Ultimo++
		if err := tx.Model(&seq).Update("ultimo", seq.Ultimo).Error; err != nil {
			return err
		}
		folio = seq.Ultimo
		return tx.Model(&o).Update("folio", folio).Error
	})
	return folio, err
}
