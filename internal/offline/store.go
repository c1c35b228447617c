// Package offline is the terminal's persistent order queue. Orders that could
// not reach the server wait here, keyed by their clave_idempotencia, until the
// sync coordinator delivers them.
package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cajapos/internal/dto"
	"cajapos/internal/model"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrAlmacenamiento wraps every failure of the local database. A sale
	// that hits it on Encolar is lost, not queued.
	ErrAlmacenamiento = errors.New("almacenamiento local no disponible")
	ErrNoEncontrada   = errors.New("orden offline no encontrada")
)

const contadorID = 1

type Store struct {
	db    *gorm.DB
	ahora func() time.Time
}

// NewStore migrates the local tables and returns the store.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&model.OrdenOffline{}, &model.ContadorTemporal{}); err != nil {
		return nil, fmt.Errorf("%w: migrar: %w", ErrAlmacenamiento, err)
	}
	return &Store{db: db, ahora: func() time.Time { return time.Now().UTC() }}, nil
}

func fallo(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrAlmacenamiento, op, err)
}

// ── Encolar ───────────────────────────────────────────────────────────────────

// Encolar stores the order for later delivery. The record id is the payload's
// clave_idempotencia (generated when empty) and the sale keeps the terminal
// timestamp. Enqueuing the same clave twice returns the stored record.
func (s *Store) Encolar(ctx context.Context, payload dto.OrdenRequest) (*model.OrdenOffline, error) {
	if payload.ClaveIdempotencia == "" {
		payload.ClaveIdempotencia = uuid.NewString()
	}
	ahora := s.ahora()
	if payload.CreadaEn == nil {
		payload.CreadaEn = &ahora
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("serializar orden: %w", err)
	}

	var rec model.OrdenOffline
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ?", payload.ClaveIdempotencia).First(&rec).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		numero, err := siguienteNumero(tx)
		if err != nil {
			return err
		}
		rec = model.OrdenOffline{
			ID:             payload.ClaveIdempotencia,
			NumeroTemporal: numero,
			Payload:        datatypes.JSON(raw),
			Estado:         model.OfflinePendiente,
			CreatedAt:      ahora,
		}
		return tx.Create(&rec).Error
	})
	if err != nil {
		return nil, fallo("encolar", err)
	}
	return &rec, nil
}

// SiguienteNumeroTemporal returns the next receipt placeholder. It survives
// restarts and is never the order identity.
func (s *Store) SiguienteNumeroTemporal(ctx context.Context) (int, error) {
	var n int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		n, err = siguienteNumero(tx)
		return err
	})
	if err != nil {
		return 0, fallo("numero temporal", err)
	}
	return n, nil
}

func siguienteNumero(tx *gorm.DB) (int, error) {
	c := model.ContadorTemporal{ID: contadorID}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&c).Error; err != nil {
		return 0, err
	}
	if err := tx.Model(&model.ContadorTemporal{}).Where("id = ?", contadorID).
		UpdateColumn("ultimo", gorm.Expr("ultimo + 1")).Error; err != nil {
		return 0, err
	}
	if err := tx.Where("id = ?", contadorID).First(&c).Error; err != nil {
		return 0, err
	}
	return c.Ultimo, nil
}

// ── Consultas ─────────────────────────────────────────────────────────────────

// Pendientes counts every record not yet delivered, rejected ones included.
func (s *Store) Pendientes(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.OrdenOffline{}).
		Where("estado <> ?", model.OfflineSincronizada).Count(&n).Error
	if err != nil {
		return 0, fallo("contar pendientes", err)
	}
	return n, nil
}

// ListarPendientes returns the records a drain should submit, oldest first.
// Records the server rejected stay out until Reintentar clears them.
func (s *Store) ListarPendientes(ctx context.Context) ([]model.OrdenOffline, error) {
	var out []model.OrdenOffline
	err := s.db.WithContext(ctx).
		Where("estado IN ? AND rechazada = ?", []string{model.OfflinePendiente, model.OfflineFallida}, false).
		Order("created_at ASC, numero_temporal ASC").
		Find(&out).Error
	if err != nil {
		return nil, fallo("listar pendientes", err)
	}
	return out, nil
}

// Listar returns every undelivered record for the operator view.
func (s *Store) Listar(ctx context.Context) ([]model.OrdenOffline, error) {
	var out []model.OrdenOffline
	err := s.db.WithContext(ctx).
		Where("estado <> ?", model.OfflineSincronizada).
		Order("created_at ASC, numero_temporal ASC").
		Find(&out).Error
	if err != nil {
		return nil, fallo("listar", err)
	}
	return out, nil
}

func (s *Store) Obtener(ctx context.Context, localID string) (*model.OrdenOffline, error) {
	var rec model.OrdenOffline
	err := s.db.WithContext(ctx).Where("id = ?", localID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoEncontrada
	}
	if err != nil {
		return nil, fallo("obtener", err)
	}
	return &rec, nil
}

// Payload decodes the stored order request.
func Payload(rec *model.OrdenOffline) (dto.OrdenRequest, error) {
	var req dto.OrdenRequest
	if err := json.Unmarshal(rec.Payload, &req); err != nil {
		return req, fmt.Errorf("payload de %s: %w", rec.ID, err)
	}
	return req, nil
}

// ── Transiciones ──────────────────────────────────────────────────────────────

func (s *Store) MarcarSincronizada(ctx context.Context, localID, servidorID string, folio *int) error {
	ahora := s.ahora()
	return s.actualizar(ctx, "marcar sincronizada", localID, map[string]interface{}{
		"estado":          model.OfflineSincronizada,
		"servidor_id":     servidorID,
		"folio":           folio,
		"ultimo_error":    nil,
		"intentos":        gorm.Expr("intentos + 1"),
		"sincronizada_en": ahora,
	})
}

// MarcarFallida records a failed delivery. rechazada marks a server refusal,
// which excludes the record from later drains.
func (s *Store) MarcarFallida(ctx context.Context, localID, causa string, rechazada bool) error {
	return s.actualizar(ctx, "marcar fallida", localID, map[string]interface{}{
		"estado":       model.OfflineFallida,
		"ultimo_error": causa,
		"rechazada":    rechazada,
		"intentos":     gorm.Expr("intentos + 1"),
	})
}

func (s *Store) RegistrarFolio(ctx context.Context, localID string, folio int) error {
	return s.actualizar(ctx, "registrar folio", localID, map[string]interface{}{"folio": folio})
}

// Reintentar clears a rejection so the next drain submits the record again.
func (s *Store) Reintentar(ctx context.Context, localID string) error {
	return s.actualizar(ctx, "reintentar", localID, map[string]interface{}{"rechazada": false})
}

func (s *Store) actualizar(ctx context.Context, op, localID string, cambios map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&model.OrdenOffline{}).Where("id = ?", localID).Updates(cambios)
	if res.Error != nil {
		return fallo(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNoEncontrada
	}
	return nil
}

// PurgarSincronizadas deletes delivered records. Only the sync coordinator
// calls it, inside its in-flight guard.
func (s *Store) PurgarSincronizadas(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("estado = ?", model.OfflineSincronizada).Delete(&model.OrdenOffline{})
	if res.Error != nil {
		return 0, fallo("purgar", res.Error)
	}
	return res.RowsAffected, nil
}
