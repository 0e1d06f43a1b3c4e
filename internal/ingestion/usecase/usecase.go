package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-pricing-service/internal/catalog"
	catalogdto "github.com/fekuna/omnipos-pricing-service/internal/catalog/dto"
	"github.com/fekuna/omnipos-pricing-service/internal/diff"
	"github.com/fekuna/omnipos-pricing-service/internal/ingestion"
	"github.com/fekuna/omnipos-pricing-service/internal/ingestion/dto"
	"github.com/fekuna/omnipos-pricing-service/internal/model"
	"github.com/fekuna/omnipos-pricing-service/internal/normalizer"
	"github.com/fekuna/omnipos-pricing-service/internal/price"
	"github.com/fekuna/omnipos-pricing-service/internal/seller"
	sellerdto "github.com/fekuna/omnipos-pricing-service/internal/seller/dto"
	"github.com/fekuna/omnipos-pricing-service/pkg/logger"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultCurrency = "EUR"

type Settings struct {
	DiffThreshold   float64
	Scope           diff.Scope
	DefaultCurrency string
	// Concurrency caps how many seller groups IngestBatches runs at once.
	Concurrency int
}

type ingestionUseCase struct {
	normalizer *normalizer.Normalizer
	sellers    seller.UseCase
	catalog    catalog.UseCase
	prices     price.UseCase
	publisher  ingestion.Publisher
	validate   *validator.Validate
	settings   Settings
	now        func() time.Time
	logger     logger.ZapLogger
}

// NewIngestionUseCase wires the pipeline. publisher may be nil.
func NewIngestionUseCase(
	norm *normalizer.Normalizer,
	sellers seller.UseCase,
	catalogUC catalog.UseCase,
	prices price.UseCase,
	publisher ingestion.Publisher,
	settings Settings,
	log logger.ZapLogger,
) ingestion.UseCase {
	if settings.DiffThreshold <= 0 {
		settings.DiffThreshold = diff.DefaultThresholdPercent
	}
	if settings.Scope == "" {
		settings.Scope = diff.ScopeSeller
	}
	if settings.DefaultCurrency == "" {
		settings.DefaultCurrency = DefaultCurrency
	}
	if settings.Concurrency <= 0 {
		settings.Concurrency = 4
	}
	return &ingestionUseCase{
		normalizer: norm,
		sellers:    sellers,
		catalog:    catalogUC,
		prices:     prices,
		publisher:  publisher,
		validate:   validator.New(),
		settings:   settings,
		now:        time.Now,
		logger:     log,
	}
}

func (uc *ingestionUseCase) IngestBatch(ctx context.Context, batch *dto.Batch) (*dto.BatchResult, error) {
	res := &dto.BatchResult{
		Scope:     uc.settings.Scope,
		Items:     []dto.ItemResult{},
		StartedAt: uc.now().UTC(),
	}
	if batch == nil || len(batch.Items) == 0 {
		res.FinishedAt = res.StartedAt
		return res, nil
	}
	if batch.Scope != "" {
		res.Scope = diff.ParseScope(string(batch.Scope))
	}
	observedAt := res.StartedAt
	if batch.ObservedAt != nil && !batch.ObservedAt.IsZero() {
		observedAt = batch.ObservedAt.UTC()
	}

	sellers := map[string]*model.Seller{}
	for i := range batch.Items {
		if err := ctx.Err(); err != nil {
			return uc.finish(res), err
		}

		raw := batch.Items[i]
		if raw.SellerName == "" {
			raw.SellerName = batch.SellerName
		}

		item, err := uc.ingestItem(ctx, &raw, res.Scope, observedAt, sellers)
		if err != nil {
			if errors.Is(err, ingestion.ErrValidation) {
				uc.logger.Warn("scraped item rejected",
					zap.Int("index", i),
					zap.String("source_url", raw.SourceURL),
					zap.Error(err),
				)
				res.Rejections = multierr.Append(res.Rejections, fmt.Errorf("item %d: %w", i, err))
				res.Items = append(res.Items, dto.ItemResult{
					Index:     i,
					SourceURL: raw.SourceURL,
					Status:    dto.ItemRejected,
					Error:     err.Error(),
				})
				res.Rejected++
				continue
			}

			var outOfRange *price.DataOutOfRangeError
			if errors.As(err, &outOfRange) {
				uc.logger.Error("price partition missing, aborting batch",
					zap.String("partition", outOfRange.Partition),
					zap.Int("index", i),
				)
			}
			return uc.finish(res), fmt.Errorf("item %d: %w", i, err)
		}

		item.Index = i
		res.Items = append(res.Items, *item)
		res.Accepted++
	}

	uc.finish(res)
	uc.logger.Info("scrape batch ingested",
		zap.Int("accepted", res.Accepted),
		zap.Int("rejected", res.Rejected),
		zap.String("scope", string(res.Scope)),
		zap.Duration("took", res.FinishedAt.Sub(res.StartedAt)),
	)
	return res, nil
}

func (uc *ingestionUseCase) finish(res *dto.BatchResult) *dto.BatchResult {
	res.FinishedAt = uc.now().UTC()
	return res
}

func (uc *ingestionUseCase) IngestBatches(ctx context.Context, batches []dto.Batch) ([]*dto.BatchResult, error) {
	results := make([]*dto.BatchResult, len(batches))

	// Same-seller batches stay sequential so each diff sees its predecessor.
	var order []string
	groups := map[string][]int{}
	for i := range batches {
		key := batches[i].SellerKey()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.settings.Concurrency)
	for _, key := range order {
		idx := groups[key]
		g.Go(func() error {
			for _, i := range idx {
				res, err := uc.IngestBatch(gctx, &batches[i])
				results[i] = res
				if err != nil {
					return fmt.Errorf("batch %d (seller %q): %w", i, key, err)
				}
			}
			return nil
		})
	}
	err := g.Wait()
	return results, err
}

func (uc *ingestionUseCase) ingestItem(
	ctx context.Context,
	raw *dto.RawItem,
	scope diff.Scope,
	batchObservedAt time.Time,
	sellers map[string]*model.Seller,
) (*dto.ItemResult, error) {
	if err := uc.validateItem(raw); err != nil {
		return nil, err
	}

	norm := uc.normalizer.Normalize(normalizer.RawProduct{
		Name:     raw.ProductName,
		Brand:    raw.Brand,
		Category: raw.Category,
		Specs:    raw.RawSpecifications,
	})

	s, err := uc.sellerFor(ctx, raw.SellerName, sellers)
	if err != nil {
		return nil, fmt.Errorf("resolve seller: %w", err)
	}

	resolved, err := uc.catalog.Resolve(ctx, &catalogdto.ResolveInput{
		Name:          strings.TrimSpace(raw.ProductName),
		Brand:         strings.TrimSpace(raw.Brand),
		Category:      norm.Category,
		NormalizedKey: norm.Key,
		Attributes:    norm.Attributes,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve catalog item: %w", err)
	}
	item := resolved.Item

	// The prior is read before the append so it never sees the new row.
	var sellerScope *string
	if scope == diff.ScopeSeller {
		sellerScope = &s.ID
	}
	prior, err := uc.prices.Latest(ctx, item.ID, sellerScope)
	if err != nil {
		return nil, fmt.Errorf("latest observation: %w", err)
	}

	observedAt := batchObservedAt
	if raw.ObservedAt != nil && !raw.ObservedAt.IsZero() {
		observedAt = raw.ObservedAt.UTC()
	}
	obs := &model.PriceObservation{
		CatalogItemID: item.ID,
		SellerID:      s.ID,
		Price:         raw.Price,
		Currency:      raw.Currency,
		InStock:       raw.InStock == nil || *raw.InStock,
		SourceURL:     strings.TrimSpace(raw.SourceURL),
		ObservedAt:    observedAt,
	}
	if q := norm.Attributes.Quantity; q != nil {
		qty := decimal.NewFromFloat(*q)
		unit := norm.Attributes.Unit
		obs.Quantity, obs.Unit = &qty, &unit
	}

	if err := uc.prices.Append(ctx, obs); err != nil {
		return nil, err
	}

	cmp := diff.Classify(*obs, prior, uc.settings.DiffThreshold)
	if cmp.Status == diff.StatusPriceIncrease || cmp.Status == diff.StatusPriceDecrease {
		uc.publishChange(ctx, obs, scope, cmp)
	}

	return &dto.ItemResult{
		SourceURL:     obs.SourceURL,
		Status:        dto.ItemAccepted,
		SellerID:      s.ID,
		CatalogItemID: item.ID,
		NormalizedKey: norm.Key,
		ObservationID: obs.ID,
		MatchDecision: resolved.Decision,
		MatchScore:    resolved.Score,
		Comparison:    &cmp,
	}, nil
}

func (uc *ingestionUseCase) validateItem(raw *dto.RawItem) error {
	raw.ProductName = strings.TrimSpace(raw.ProductName)
	raw.SellerName = strings.TrimSpace(raw.SellerName)
	raw.Currency = strings.ToUpper(strings.TrimSpace(raw.Currency))
	if raw.Currency == "" {
		raw.Currency = uc.settings.DefaultCurrency
	}

	if err := uc.validate.Struct(raw); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: field %s failed %s", ingestion.ErrValidation, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ingestion.ErrValidation, err)
	}
	if !raw.Price.IsPositive() {
		return fmt.Errorf("%w: price must be > 0, got %s", ingestion.ErrValidation, raw.Price)
	}
	if !price.Storable(raw.Price) {
		return fmt.Errorf("%w: price %s needs at most %d decimals and must be below %s",
			ingestion.ErrValidation, raw.Price, price.PriceScale, price.MaxPrice)
	}
	return nil
}

func (uc *ingestionUseCase) sellerFor(ctx context.Context, name string, cache map[string]*model.Seller) (*model.Seller, error) {
	key := strings.ToLower(name)
	if s, ok := cache[key]; ok {
		return s, nil
	}
	s, _, err := uc.sellers.GetOrCreate(ctx, &sellerdto.GetOrCreateSellerInput{Name: name})
	if err != nil {
		return nil, err
	}
	cache[key] = s
	return s, nil
}

// publishChange is best effort; the observation is already stored.
func (uc *ingestionUseCase) publishChange(ctx context.Context, obs *model.PriceObservation, scope diff.Scope, cmp diff.ComparisonResult) {
	if uc.publisher == nil {
		return
	}
	event := dto.PriceChangedEvent{
		EventID:   uuid.New().String(),
		EventType: dto.EventPriceChanged,
		Payload: dto.PriceChangedPayload{
			CatalogItemID: obs.CatalogItemID,
			SellerID:      obs.SellerID,
			ObservationID: obs.ID,
			Scope:         scope,
			Comparison:    cmp,
		},
		Timestamp: uc.now().UTC(),
	}
	value, err := json.Marshal(event)
	if err != nil {
		uc.logger.Error("failed to marshal price change event", zap.Error(err))
		return
	}
	if err := uc.publisher.Publish(ctx, obs.CatalogItemID, value); err != nil {
		uc.logger.Warn("failed to publish price change event",
			zap.String("observation_id", obs.ID),
			zap.Error(err),
		)
	}
}
