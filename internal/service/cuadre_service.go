package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cajapos/internal/cuadre"
	"cajapos/internal/model"
	"cajapos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CuadreService loads the ledger of a caja and runs the reconciliation engine
// over it. It never writes.
type CuadreService interface {
	// Obtener reconciles the caja. A nil contado on a closed caja uses the
	// stored closing count.
	Obtener(ctx context.Context, cajaID uuid.UUID, contado *decimal.Decimal) (*cuadre.Resumen, error)
	// Calcular reconciles an already loaded caja. The window ends at
	// caja.ClosedAt when set, otherwise now.
	Calcular(ctx context.Context, caja *model.Caja, contado *decimal.Decimal) (cuadre.Resumen, error)
}

type cuadreService struct {
	cajas   repository.CajaRepository
	ordenes repository.OrdenRepository
	tasas   cuadre.Tasas
	ahora   func() time.Time
}

func NewCuadreService(cajas repository.CajaRepository, ordenes repository.OrdenRepository, tasas cuadre.Tasas) CuadreService {
	return &cuadreService{cajas: cajas, ordenes: ordenes, tasas: tasas, ahora: func() time.Time { return time.Now().UTC() }}
}

func (s *cuadreService) Obtener(ctx context.Context, cajaID uuid.UUID, contado *decimal.Decimal) (*cuadre.Resumen, error) {
	caja, err := s.cajas.FindByID(ctx, cajaID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCajaNoEncontrada
		}
		return nil, fmt.Errorf("cargar caja: %w", err)
	}
	if contado == nil && !caja.Abierta() {
		contado = caja.EfectivoContado
	}
	res, err := s.Calcular(ctx, caja, contado)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *cuadreService) Calcular(ctx context.Context, caja *model.Caja, contado *decimal.Decimal) (cuadre.Resumen, error) {
	ahora := s.ahora()
	hasta := ahora
	if caja.ClosedAt != nil {
		hasta = *caja.ClosedAt
	}

	ordenes, err := s.ordenes.ListEnVentana(ctx, caja.SucursalID, caja.OpenedAt, hasta)
	if err != nil {
		return cuadre.Resumen{}, fmt.Errorf("cargar ordenes: %w", err)
	}
	movs, err := s.cajas.ListMovimientos(ctx, caja.ID)
	if err != nil {
		return cuadre.Resumen{}, fmt.Errorf("cargar movimientos: %w", err)
	}

	return cuadre.Calcular(cuadre.Entrada{
		Caja:        *caja,
		Ordenes:     ordenes,
		Movimientos: movs,
		Contado:     contado,
		Ahora:       ahora,
		Tasas:       s.tasas,
	}), nil
}
