package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fekuna/omnipos-pricing-service/internal/catalog/dto"
	"github.com/fekuna/omnipos-pricing-service/internal/catalog/matcher"
	"github.com/fekuna/omnipos-pricing-service/internal/model"
	"github.com/fekuna/omnipos-pricing-service/pkg/database/postgres"
	"github.com/fekuna/omnipos-pricing-service/pkg/logger"
)

type fakeRepo struct {
	mu    sync.Mutex
	items map[string]*model.CatalogItem

	// beforeCreate runs once before the next Create; used to simulate a concurrent writer.
	beforeCreate func(r *fakeRepo)
}

func newFakeRepo(items ...model.CatalogItem) *fakeRepo {
	r := &fakeRepo{items: map[string]*model.CatalogItem{}}
	for i := range items {
		it := items[i]
		r.items[it.ID] = &it
	}
	return r
}

func (r *fakeRepo) Create(_ context.Context, item *model.CatalogItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hook := r.beforeCreate; hook != nil {
		r.beforeCreate = nil
		hook(r)
	}
	for _, it := range r.items {
		if it.NormalizedKey == item.NormalizedKey && it.MergedIntoID == nil {
			return postgres.ErrConflict
		}
	}
	cp := *item
	r.items[item.ID] = &cp
	return nil
}

func (r *fakeRepo) FindByID(_ context.Context, id string) (*model.CatalogItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if it, ok := r.items[id]; ok {
		cp := *it
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeRepo) FindByNormalizedKey(_ context.Context, key string) (*model.CatalogItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found *model.CatalogItem
	for _, it := range r.items {
		if it.NormalizedKey != key {
			continue
		}
		if found == nil || (found.MergedIntoID != nil && it.MergedIntoID == nil) {
			found = it
		}
	}
	if found == nil {
		return nil, nil
	}
	cp := *found
	return &cp, nil
}

func (r *fakeRepo) ListRecent(_ context.Context, limit int) ([]model.CatalogItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.CatalogItem{}
	for _, it := range r.items {
		if it.MergedIntoID == nil && len(out) < limit {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (r *fakeRepo) FindAll(ctx context.Context, _ *dto.CatalogFilters) ([]model.CatalogItem, int, error) {
	items, err := r.ListRecent(ctx, 1000)
	return items, len(items), err
}

func (r *fakeRepo) MarkMerged(_ context.Context, duplicateID, keepID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	dup, ok := r.items[duplicateID]
	if !ok || dup.MergedIntoID != nil {
		return errors.New("missing or already merged")
	}
	for _, it := range r.items {
		if it.MergedIntoID != nil && *it.MergedIntoID == duplicateID {
			k := keepID
			it.MergedIntoID = &k
		}
	}
	k := keepID
	dup.MergedIntoID = &k
	return nil
}

type failingSearch struct{}

func (failingSearch) Candidates(context.Context, string, int) ([]model.CatalogItem, error) {
	return nil, errors.New("cluster unavailable")
}

func newUseCase(repo *fakeRepo) *catalogUseCase {
	return NewCatalogUseCase(repo, matcher.New(0.85), nil, nil, 50, logger.NewNop()).(*catalogUseCase)
}

func existing(id, name, key string) model.CatalogItem {
	return model.CatalogItem{
		BaseModel:     model.BaseModel{ID: id, UpdatedAt: time.Now()},
		Name:          name,
		Category:      "pellets",
		NormalizedKey: key,
	}
}

func TestResolveExactKey(t *testing.T) {
	repo := newFakeRepo(existing("a", "Premium Pellets 15kg", "pellets_15kg_bagged"))
	uc := newUseCase(repo)

	res, err := uc.Resolve(context.Background(), &dto.ResolveInput{
		Name:          "Completely different title",
		NormalizedKey: "pellets_15kg_bagged",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Decision != matcher.DecisionExact || res.Item.ID != "a" || res.Created {
		t.Fatalf("want exact match on a, got %+v", res)
	}
}

func TestResolveFollowsMergedAlias(t *testing.T) {
	keep := existing("keep", "Pellets 15kg", "pellets_15kg_bagged")
	dup := existing("dup", "Pellets 15 kg Sack", "pellets_15kg-sack_bagged")
	repo := newFakeRepo(keep, dup)
	uc := newUseCase(repo)

	if _, err := uc.MergeItems(context.Background(), &dto.MergeInput{KeepID: "keep", DuplicateID: "dup"}); err != nil {
		t.Fatalf("MergeItems: %v", err)
	}

	res, err := uc.Resolve(context.Background(), &dto.ResolveInput{
		Name:          "Pellets 15 kg Sack",
		NormalizedKey: "pellets_15kg-sack_bagged",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Item.ID != "keep" {
		t.Fatalf("alias should resolve to keep, got %s", res.Item.ID)
	}
}

func TestResolveFuzzyFallsBackToDBWhenSearchFails(t *testing.T) {
	repo := newFakeRepo(existing("a", "Premium Holzpellets 15 kg Sack", "pellets_15kg_bagged"))
	uc := NewCatalogUseCase(repo, matcher.New(0.85), failingSearch{}, nil, 50, logger.NewNop())

	res, err := uc.Resolve(context.Background(), &dto.ResolveInput{
		Name:          "Premium Holzpellets 15kg Sack",
		NormalizedKey: "pellets_unknown_bagged",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Decision != matcher.DecisionFuzzy || res.Item.ID != "a" {
		t.Fatalf("want fuzzy match on a, got %+v", res)
	}
}

func TestResolveCreatesNewItem(t *testing.T) {
	repo := newFakeRepo(existing("a", "Premium Holzpellets 15kg Sack", "pellets_15kg_bagged"))
	uc := newUseCase(repo)

	res, err := uc.Resolve(context.Background(), &dto.ResolveInput{
		Name:          "Holzbriketts Buche 10kg",
		Category:      "briquettes",
		NormalizedKey: "briquettes_10kg_bagged",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Created || res.Decision != matcher.DecisionCreate {
		t.Fatalf("want created item, got %+v", res)
	}
	if res.Item.NormalizedKey != "briquettes_10kg_bagged" {
		t.Fatalf("normalized key: want=briquettes_10kg_bagged got=%s", res.Item.NormalizedKey)
	}
	if len(repo.items) != 2 {
		t.Fatalf("items: want=2 got=%d", len(repo.items))
	}
}

func TestResolveLosingCreateRaceReturnsWinner(t *testing.T) {
	repo := newFakeRepo()
	repo.beforeCreate = func(r *fakeRepo) {
		w := existing("winner", "Pellets 15kg", "pellets_15kg_bagged")
		r.items[w.ID] = &w
	}
	uc := newUseCase(repo)

	res, err := uc.Resolve(context.Background(), &dto.ResolveInput{
		Name:          "Pellets 15kg",
		NormalizedKey: "pellets_15kg_bagged",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Created || res.Item.ID != "winner" {
		t.Fatalf("want winner without creating, got %+v", res)
	}
	if len(repo.items) != 1 {
		t.Fatalf("items: want=1 got=%d", len(repo.items))
	}
}

func TestResolveConcurrentCreatesOneItem(t *testing.T) {
	repo := newFakeRepo()
	uc := newUseCase(repo)

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := uc.Resolve(context.Background(), &dto.ResolveInput{
				Name:          "Pellets 15kg",
				NormalizedKey: "pellets_15kg_bagged",
			})
			if err != nil {
				t.Errorf("Resolve: %v", err)
				return
			}
			ids[i] = res.Item.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("concurrent resolves returned different items: %v", ids)
		}
	}
	if len(repo.items) != 1 {
		t.Fatalf("items: want=1 got=%d", len(repo.items))
	}
}

func TestMergeItemsRejectsSelfMerge(t *testing.T) {
	uc := newUseCase(newFakeRepo(existing("a", "x", "k")))
	if _, err := uc.MergeItems(context.Background(), &dto.MergeInput{KeepID: "a", DuplicateID: "a"}); err == nil {
		t.Fatalf("want error merging item into itself")
	}
}

func TestMergeItemsMarksDuplicate(t *testing.T) {
	repo := newFakeRepo(
		existing("keep", "Premium Pellets 15kg", "pellets_15kg_bagged"),
		existing("dup", "Premium Pellets 15 kg Sack", "pellets_15kg_bagged_alt"),
	)
	uc := newUseCase(repo)
	ctx := context.Background()

	kept, err := uc.MergeItems(ctx, &dto.MergeInput{KeepID: "keep", DuplicateID: "dup"})
	if err != nil {
		t.Fatalf("MergeItems: %v", err)
	}
	if kept.ID != "keep" {
		t.Fatalf("kept id: want=keep got=%s", kept.ID)
	}
	dup, _ := repo.FindByID(ctx, "dup")
	if dup.MergedIntoID == nil || *dup.MergedIntoID != "keep" {
		t.Fatalf("merged_into_id: want=keep got=%v", dup.MergedIntoID)
	}
}

func TestMergeItemsRejectsMergedKeep(t *testing.T) {
	merged := existing("b", "y", "k2")
	target := "c"
	merged.MergedIntoID = &target
	uc := newUseCase(newFakeRepo(existing("a", "x", "k"), merged, existing("c", "z", "k3")))
	if _, err := uc.MergeItems(context.Background(), &dto.MergeInput{KeepID: "b", DuplicateID: "a"}); err == nil {
		t.Fatalf("want error keeping an already merged item")
	}
}

type staticSearch struct{ items []model.CatalogItem }

func (s staticSearch) Candidates(context.Context, string, int) ([]model.CatalogItem, error) {
	return s.items, nil
}

type recordingIndexer struct {
	mu      sync.Mutex
	removed []string
}

func (r *recordingIndexer) IndexItem(context.Context, *model.CatalogItem) error { return nil }

func (r *recordingIndexer) RemoveItem(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, id)
	return nil
}

func TestResolveFallsBackToDBWhenSearchHasNoHits(t *testing.T) {
	repo := newFakeRepo(existing("a", "Premium Holzpellets 15 kg Sack", "pellets_15kg_bagged"))
	uc := NewCatalogUseCase(repo, matcher.New(0.85), staticSearch{}, nil, 50, logger.NewNop())

	res, err := uc.Resolve(context.Background(), &dto.ResolveInput{
		Name:          "Premium Holzpellets 15kg Sack",
		NormalizedKey: "pellets_unknown_bagged",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Decision != matcher.DecisionFuzzy || res.Item.ID != "a" || res.Created {
		t.Fatalf("want fuzzy match on a, got %+v", res)
	}
}

func TestResolveFuzzyHitFromStaleIndexFollowsMerge(t *testing.T) {
	keep := existing("keep", "Premium Holzpellets 15 kg", "pellets_15kg_bagged")
	dup := existing("dup", "Premium Holzpellets 15 kg Sack", "pellets_15kg-sack_bagged")
	repo := newFakeRepo(keep, dup)
	if err := repo.MarkMerged(context.Background(), "dup", "keep"); err != nil {
		t.Fatalf("MarkMerged: %v", err)
	}
	// The index still holds dup as it was before the merge.
	uc := NewCatalogUseCase(repo, matcher.New(0.85), staticSearch{items: []model.CatalogItem{dup}}, nil, 50, logger.NewNop())

	res, err := uc.Resolve(context.Background(), &dto.ResolveInput{
		Name:          "Premium Holzpellets 15kg Sack",
		NormalizedKey: "pellets_unknown_bagged",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Item.ID != "keep" {
		t.Fatalf("want canonical keep, got %+v", res.Item)
	}
}

func TestMergeItemsRemovesDuplicateFromIndex(t *testing.T) {
	repo := newFakeRepo(existing("keep", "x", "k1"), existing("dup", "y", "k2"))
	ix := &recordingIndexer{}
	uc := NewCatalogUseCase(repo, matcher.New(0.85), nil, ix, 50, logger.NewNop())

	if _, err := uc.MergeItems(context.Background(), &dto.MergeInput{KeepID: "keep", DuplicateID: "dup"}); err != nil {
		t.Fatalf("MergeItems: %v", err)
	}
	if len(ix.removed) != 1 || ix.removed[0] != "dup" {
		t.Fatalf("removed from index: want=[dup] got=%v", ix.removed)
	}
}
