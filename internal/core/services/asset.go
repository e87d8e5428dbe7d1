package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"asset-lifecycle-service/internal/core/domain"
	"asset-lifecycle-service/internal/core/ports/output"
)

type AssetService struct {
	assets  ports.AssetRepository
	history ports.StatusHistoryRepository
}

func NewAssetService(assets ports.AssetRepository, history ports.StatusHistoryRepository) *AssetService {
	return &AssetService{assets: assets, history: history}
}

func (s *AssetService) Get(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	return s.assets.Get(ctx, id)
}

func (s *AssetService) StatusHistory(ctx context.Context, id uuid.UUID) ([]*domain.StatusChange, error) {
	if _, err := s.assets.Get(ctx, id); err != nil {
		return nil, err
	}
	changes, err := s.history.ListByAsset(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	return changes, nil
}
