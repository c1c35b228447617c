package service

import (
	"context"
	"errors"
	"fmt"

	"cajapos/internal/dto"
	"cajapos/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FolioService hands out the human-readable per-branch receipt number.
// Assigning twice to the same order returns the same folio.
type FolioService interface {
	Asignar(ctx context.Context, ordenID uuid.UUID) (*dto.FolioResponse, error)
}

type folioService struct{ repo repository.FolioRepository }

func NewFolioService(repo repository.FolioRepository) FolioService {
	return &folioService{repo: repo}
}

func (s *folioService) Asignar(ctx context.Context, ordenID uuid.UUID) (*dto.FolioResponse, error) {
	folio, err := s.repo.Asignar(ctx, ordenID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrdenNoEncontrada
		}
		return nil, fmt.Errorf("asignar folio: %w", err)
	}
	return &dto.FolioResponse{OrdenID: ordenID.String(), Folio: folio}, nil
}
