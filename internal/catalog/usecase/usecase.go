package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-pricing-service/internal/catalog"
	"github.com/fekuna/omnipos-pricing-service/internal/catalog/dto"
	"github.com/fekuna/omnipos-pricing-service/internal/catalog/matcher"
	"github.com/fekuna/omnipos-pricing-service/internal/model"
	"github.com/fekuna/omnipos-pricing-service/pkg/database/postgres"
	"github.com/fekuna/omnipos-pricing-service/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultCandidateLimit = 200

type catalogUseCase struct {
	repo           catalog.Repository
	matcher        *matcher.Matcher
	search         catalog.CandidateSource // Optional
	indexer        catalog.Indexer         // Optional
	candidateLimit int
	logger         logger.ZapLogger
}

func NewCatalogUseCase(
	repo catalog.Repository,
	m *matcher.Matcher,
	search catalog.CandidateSource,
	indexer catalog.Indexer,
	candidateLimit int,
	log logger.ZapLogger,
) catalog.UseCase {
	if candidateLimit <= 0 {
		candidateLimit = DefaultCandidateLimit
	}
	return &catalogUseCase{
		repo:           repo,
		matcher:        m,
		search:         search,
		indexer:        indexer,
		candidateLimit: candidateLimit,
		logger:         log,
	}
}

func (uc *catalogUseCase) Resolve(ctx context.Context, input *dto.ResolveInput) (*dto.ResolveResult, error) {
	if input.NormalizedKey == "" {
		return nil, errors.New("normalized key is required")
	}

	// 1. Exact key
	item, err := uc.repo.FindByNormalizedKey(ctx, input.NormalizedKey)
	if err != nil {
		return nil, err
	}
	if item != nil {
		canonical, err := uc.canonical(ctx, item)
		if err != nil {
			return nil, err
		}
		return &dto.ResolveResult{Item: canonical, Decision: matcher.DecisionExact, Score: 1}, nil
	}

	// 2. Fuzzy name match over a bounded candidate set
	candidates, err := uc.candidates(ctx, input.Name)
	if err != nil {
		return nil, err
	}
	match := uc.matcher.Match(input.NormalizedKey, input.Name, candidates)
	if match.Decision != matcher.DecisionCreate {
		if match.Tied > 0 {
			uc.logger.Info("fuzzy match tie broken by most recent update",
				zap.String("name", input.Name),
				zap.String("catalog_item_id", match.Item.ID),
				zap.Float64("score", match.Score),
				zap.Int("tied", match.Tied),
			)
		}
		// Index documents can trail the table; take the stored row and follow merges.
		stored, err := uc.repo.FindByID(ctx, match.Item.ID)
		if err != nil {
			return nil, err
		}
		if stored != nil {
			canonical, err := uc.canonical(ctx, stored)
			if err != nil {
				return nil, err
			}
			return &dto.ResolveResult{Item: canonical, Decision: match.Decision, Score: match.Score}, nil
		}
		uc.logger.Warn("fuzzy candidate missing from store", zap.String("catalog_item_id", match.Item.ID))
		match.Decision = matcher.DecisionCreate
	}

	// 3. Create, racing other ingestions on the normalized key
	created, isNew, err := postgres.GetOrCreate(ctx, postgres.DefaultGetOrCreateAttempts,
		func(ctx context.Context) (*model.CatalogItem, error) {
			found, err := uc.repo.FindByNormalizedKey(ctx, input.NormalizedKey)
			if err != nil || found == nil {
				return found, err
			}
			return uc.canonical(ctx, found)
		},
		func(ctx context.Context) (*model.CatalogItem, error) {
			now := time.Now().UTC()
			item := &model.CatalogItem{
				BaseModel:     model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
				Name:          strings.TrimSpace(input.Name),
				Brand:         optional(input.Brand),
				Category:      input.Category,
				Attributes:    input.Attributes,
				NormalizedKey: input.NormalizedKey,
			}
			if err := uc.repo.Create(ctx, item); err != nil {
				return nil, err
			}
			return item, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("create catalog item %s: %w", input.NormalizedKey, err)
	}

	decision := matcher.DecisionCreate
	if isNew {
		uc.logger.Info("catalog item created",
			zap.String("catalog_item_id", created.ID),
			zap.String("normalized_key", created.NormalizedKey),
			zap.Float64("best_fuzzy_score", match.Score),
		)
		go uc.syncToIndex(context.Background(), created)
	} else {
		// Lost the race; the winner's row is an exact key match.
		decision = matcher.DecisionExact
	}
	return &dto.ResolveResult{Item: created, Decision: decision, Score: match.Score, Created: isNew}, nil
}

func (uc *catalogUseCase) candidates(ctx context.Context, name string) ([]model.CatalogItem, error) {
	if uc.search != nil {
		items, err := uc.search.Candidates(ctx, name, uc.candidateLimit)
		switch {
		case err != nil:
			uc.logger.Warn("candidate search failed, falling back to DB", zap.Error(err))
		case len(items) == 0:
			// An empty or lagging index says nothing about the catalog.
			uc.logger.Debug("candidate search returned no hits, falling back to DB", zap.String("name", name))
		default:
			return items, nil
		}
	}
	return uc.repo.ListRecent(ctx, uc.candidateLimit)
}

// canonical follows a merged alias to the item it was merged into.
func (uc *catalogUseCase) canonical(ctx context.Context, item *model.CatalogItem) (*model.CatalogItem, error) {
	if item.MergedIntoID == nil {
		return item, nil
	}
	target, err := uc.repo.FindByID(ctx, *item.MergedIntoID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, fmt.Errorf("catalog item %s merged into missing item %s", item.ID, *item.MergedIntoID)
	}
	return target, nil
}

func (uc *catalogUseCase) syncToIndex(ctx context.Context, item *model.CatalogItem) {
	if uc.indexer == nil {
		return
	}
	if err := uc.indexer.IndexItem(ctx, item); err != nil {
		uc.logger.Error("failed to index catalog item", zap.String("catalog_item_id", item.ID), zap.Error(err))
	}
}

func (uc *catalogUseCase) GetItem(ctx context.Context, id string) (*model.CatalogItem, error) {
	return uc.repo.FindByID(ctx, id)
}

func (uc *catalogUseCase) ListItems(ctx context.Context, filters *dto.CatalogFilters) ([]model.CatalogItem, int, error) {
	return uc.repo.FindAll(ctx, filters)
}

func (uc *catalogUseCase) MergeItems(ctx context.Context, input *dto.MergeInput) (*model.CatalogItem, error) {
	if input.KeepID == "" || input.DuplicateID == "" {
		return nil, errors.New("keep and duplicate ids are required")
	}
	if input.KeepID == input.DuplicateID {
		return nil, errors.New("cannot merge an item into itself")
	}

	keep, err := uc.repo.FindByID(ctx, input.KeepID)
	if err != nil {
		return nil, err
	}
	if keep == nil {
		return nil, errors.New("catalog item to keep not found")
	}
	if keep.MergedIntoID != nil {
		return nil, fmt.Errorf("catalog item %s is itself merged into %s", keep.ID, *keep.MergedIntoID)
	}

	if err := uc.repo.MarkMerged(ctx, input.DuplicateID, input.KeepID); err != nil {
		return nil, err
	}
	uc.logger.Info("catalog items merged",
		zap.String("keep_id", input.KeepID),
		zap.String("duplicate_id", input.DuplicateID),
	)

	// Merges are rare maintenance; drop the alias from the index before returning.
	if uc.indexer != nil {
		if err := uc.indexer.RemoveItem(ctx, input.DuplicateID); err != nil {
			uc.logger.Error("failed to remove merged item from index", zap.String("catalog_item_id", input.DuplicateID), zap.Error(err))
		}
	}

	return uc.repo.FindByID(ctx, input.KeepID)
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
