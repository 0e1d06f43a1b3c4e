package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fekuna/omnipos-pricing-service/internal/model"
	"github.com/fekuna/omnipos-pricing-service/internal/seller"
	"github.com/fekuna/omnipos-pricing-service/internal/seller/dto"
	"github.com/fekuna/omnipos-pricing-service/pkg/database/postgres"
	"github.com/fekuna/omnipos-pricing-service/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type sellerUseCase struct {
	repo   seller.Repository
	logger logger.ZapLogger
}

func NewSellerUseCase(repo seller.Repository, log logger.ZapLogger) seller.UseCase {
	return &sellerUseCase{
		repo:   repo,
		logger: log,
	}
}

// GetOrCreate is safe to call concurrently for the same name: the unique
// constraint on sellers.name decides the winner and losers re-read it.
func (uc *sellerUseCase) GetOrCreate(ctx context.Context, input *dto.GetOrCreateSellerInput) (*model.Seller, bool, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, false, errors.New("seller name is required")
	}

	s, created, err := postgres.GetOrCreate(ctx, postgres.DefaultGetOrCreateAttempts,
		func(ctx context.Context) (*model.Seller, error) {
			return uc.repo.FindByName(ctx, name)
		},
		func(ctx context.Context) (*model.Seller, error) {
			now := time.Now().UTC()
			s := &model.Seller{
				BaseModel:  model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
				Name:       name,
				WebsiteURL: optional(input.WebsiteURL),
				Location:   optional(input.Location),
			}
			if err := uc.repo.Create(ctx, s); err != nil {
				return nil, err
			}
			return s, nil
		},
	)
	if err != nil {
		return nil, false, err
	}
	if created {
		uc.logger.Info("seller created", zap.String("seller_id", s.ID), zap.String("name", s.Name))
	}
	return s, created, nil
}

func (uc *sellerUseCase) GetSeller(ctx context.Context, id string) (*model.Seller, error) {
	return uc.repo.FindByID(ctx, id)
}

func (uc *sellerUseCase) ListSellers(ctx context.Context, filters *dto.SellerFilters) ([]model.Seller, int, error) {
	return uc.repo.FindAll(ctx, filters)
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
