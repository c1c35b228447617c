package service

import (
	"context"
	"fmt"

	"cajapos/internal/dto"
	"cajapos/internal/model"

	"github.com/google/uuid"
)

// EncoladorLealtad pushes loyalty jobs to the async queue (worker.Dispatcher).
type EncoladorLealtad interface {
	EnqueueLealtad(ctx context.Context, payload interface{}) error
}

// SelloJob is the payload of a loyalty-stamp job.
type SelloJob struct {
	ClienteID string `json:"cliente_id"`
	OrdenID   string `json:"orden_id"`
}

// LealtadService forwards loyalty accrual to the external loyalty service
// through the job queue. Bookkeeping of stamps lives outside this system.
type LealtadService interface {
	AcumularSello(ctx context.Context, req dto.SelloRequest) error
}

type lealtadService struct {
	ordenes   OrdenService
	encolador EncoladorLealtad
}

func NewLealtadService(ordenes OrdenService, encolador EncoladorLealtad) LealtadService {
	return &lealtadService{ordenes: ordenes, encolador: encolador}
}

func (s *lealtadService) AcumularSello(ctx context.Context, req dto.SelloRequest) error {
	id, err := uuid.Parse(req.OrdenID)
	if err != nil {
		return validacion("orden_id inválido")
	}
	o, err := s.ordenes.Obtener(ctx, id)
	if err != nil {
		return err
	}
	if o.Estado == model.OrdenCancelada {
		return validacion("no se acumulan sellos por órdenes canceladas")
	}
	if err := s.encolador.EnqueueLealtad(ctx, SelloJob{ClienteID: req.ClienteID, OrdenID: o.ID}); err != nil {
		return fmt.Errorf("encolar sello: %w", err)
	}
	return nil
}
