package repository

import (
	"context"
	"testing"
	"time"

	"github.com/fekuna/omnipos-pricing-service/internal/model"
	"github.com/fekuna/omnipos-pricing-service/internal/seller/dto"
	"github.com/fekuna/omnipos-pricing-service/internal/testutil"
	"github.com/google/uuid"
)

func TestPGRepositoryFindAllSearchesAndPages(t *testing.T) {
	db := testutil.DB(t)
	repo := NewPGRepository(db)
	ctx := context.Background()

	token := uuid.New().String()[:8]
	now := time.Now().UTC()
	names := []string{"Holz Direkt " + token, "Brennstoff24 " + token, "Pellet World " + token}
	for _, name := range names {
		s := &model.Seller{
			BaseModel: model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
			Name:      name,
		}
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
	}

	got, total, err := repo.FindAll(ctx, &dto.SellerFilters{SearchQuery: token})
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if total != 3 || len(got) != 3 {
		t.Fatalf("sellers: want=3 got total=%d len=%d", total, len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Name > got[i].Name {
			t.Fatalf("not ordered by name: %q before %q", got[i-1].Name, got[i].Name)
		}
	}

	got, total, err = repo.FindAll(ctx, &dto.SellerFilters{SearchQuery: "PELLET WORLD " + token})
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if total != 1 || len(got) != 1 || got[0].Name != names[2] {
		t.Fatalf("case-insensitive search: got total=%d %v", total, got)
	}

	page, total, err := repo.FindAll(ctx, &dto.SellerFilters{SearchQuery: token, Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if total != 3 || len(page) != 1 {
		t.Fatalf("page 2: want total=3 len=1 got total=%d len=%d", total, len(page))
	}
}
