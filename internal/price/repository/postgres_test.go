package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fekuna/omnipos-pricing-service/internal/model"
	"github.com/fekuna/omnipos-pricing-service/internal/price"
	"github.com/fekuna/omnipos-pricing-service/internal/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func newObservation(itemID, sellerID, p string, at time.Time) *model.PriceObservation {
	return &model.PriceObservation{
		ID:            uuid.New().String(),
		CatalogItemID: itemID,
		SellerID:      sellerID,
		Price:         decimal.RequireFromString(p),
		Currency:      "EUR",
		InStock:       true,
		SourceURL:     "https://shop.example/p/1",
		ObservedAt:    at,
		CreatedAt:     time.Now().UTC(),
	}
}

func TestPGRepositoryLatestReturnsMaxObservedAt(t *testing.T) {
	db := testutil.DB(t)
	repo := NewPGRepository(db)
	ctx := context.Background()

	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	if _, err := repo.EnsurePartition(ctx, base); err != nil {
		t.Fatalf("EnsurePartition: %v", err)
	}
	item := testutil.CatalogItem(t, db)
	seller := testutil.Seller(t, db)
	other := testutil.Seller(t, db)

	// Inserted out of order on purpose.
	for _, o := range []*model.PriceObservation{
		newObservation(item.ID, seller.ID, "230", base.Add(2*time.Hour)),
		newObservation(item.ID, seller.ID, "235", base),
		newObservation(item.ID, seller.ID, "210", base.Add(5*time.Hour)),
		newObservation(item.ID, seller.ID, "220", base.Add(time.Hour)),
		newObservation(item.ID, other.ID, "199", base.Add(9*time.Hour)),
	} {
		if err := repo.Append(ctx, o); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	latest, err := repo.Latest(ctx, item.ID, &seller.ID)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest == nil || !latest.Price.Equal(decimal.RequireFromString("210")) {
		t.Fatalf("latest for seller: want=210 got=%v", latest)
	}

	across, err := repo.Latest(ctx, item.ID, nil)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if across == nil || across.SellerID != other.ID {
		t.Fatalf("latest across sellers: want seller %s got=%v", other.ID, across)
	}

	rows, err := repo.Range(ctx, item.ID, base, base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("range rows: want=5 got=%d", len(rows))
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].ObservedAt.Before(rows[i-1].ObservedAt) {
			t.Fatalf("range not ordered at %d", i)
		}
	}
}

func TestPGRepositoryAppendIsNotDeduplicating(t *testing.T) {
	db := testutil.DB(t)
	repo := NewPGRepository(db)
	ctx := context.Background()

	at := time.Date(2024, 3, 11, 8, 0, 0, 0, time.UTC)
	if _, err := repo.EnsurePartition(ctx, at); err != nil {
		t.Fatalf("EnsurePartition: %v", err)
	}
	item := testutil.CatalogItem(t, db)
	seller := testutil.Seller(t, db)

	for i := 0; i < 2; i++ {
		if err := repo.Append(ctx, newObservation(item.ID, seller.ID, "235", at)); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
	rows, err := repo.Range(ctx, item.ID, at, at.Add(time.Second))
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows: want=2 got=%d", len(rows))
	}
}

func TestPGRepositoryRejectsNonPositivePrice(t *testing.T) {
	db := testutil.DB(t)
	repo := NewPGRepository(db)
	ctx := context.Background()

	at := time.Date(2024, 3, 12, 8, 0, 0, 0, time.UTC)
	if _, err := repo.EnsurePartition(ctx, at); err != nil {
		t.Fatalf("EnsurePartition: %v", err)
	}
	item := testutil.CatalogItem(t, db)
	seller := testutil.Seller(t, db)

	err := repo.Append(ctx, newObservation(item.ID, seller.ID, "0", at))
	if !errors.Is(err, price.ErrConstraint) {
		t.Fatalf("want ErrConstraint, got=%v", err)
	}
}

func TestPGRepositoryRejectsUnknownSeller(t *testing.T) {
	db := testutil.DB(t)
	repo := NewPGRepository(db)
	ctx := context.Background()

	at := time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC)
	if _, err := repo.EnsurePartition(ctx, at); err != nil {
		t.Fatalf("EnsurePartition: %v", err)
	}
	item := testutil.CatalogItem(t, db)

	err := repo.Append(ctx, newObservation(item.ID, uuid.New().String(), "235", at))
	if !errors.Is(err, price.ErrConstraint) {
		t.Fatalf("want ErrConstraint for FK violation, got=%v", err)
	}
}

func TestPGRepositoryMissingPartition(t *testing.T) {
	db := testutil.DB(t)
	repo := NewPGRepository(db)
	ctx := context.Background()

	item := testutil.CatalogItem(t, db)
	seller := testutil.Seller(t, db)
	at := time.Date(1999, 7, 4, 0, 0, 0, 0, time.UTC)

	err := repo.Append(ctx, newObservation(item.ID, seller.ID, "235", at))
	var oor *price.DataOutOfRangeError
	if !errors.As(err, &oor) {
		t.Fatalf("want DataOutOfRangeError, got=%v", err)
	}
	if oor.Partition != "price_observations_y1999m07" {
		t.Fatalf("partition: want=price_observations_y1999m07 got=%s", oor.Partition)
	}
}

func TestPGRepositoryRowsAreImmutable(t *testing.T) {
	db := testutil.DB(t)
	repo := NewPGRepository(db)
	ctx := context.Background()

	at := time.Date(2024, 3, 13, 8, 0, 0, 0, time.UTC)
	if _, err := repo.EnsurePartition(ctx, at); err != nil {
		t.Fatalf("EnsurePartition: %v", err)
	}
	item := testutil.CatalogItem(t, db)
	seller := testutil.Seller(t, db)
	obs := newObservation(item.ID, seller.ID, "235", at)
	if err := repo.Append(ctx, obs); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if _, err := db.ExecContext(ctx, `UPDATE price_observations SET price = 1 WHERE id = $1`, obs.ID); err == nil {
		t.Fatalf("update should be rejected")
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM price_observations WHERE id = $1`, obs.ID); err == nil {
		t.Fatalf("delete should be rejected")
	}
}

func TestPGRepositoryListPartitions(t *testing.T) {
	db := testutil.DB(t)
	repo := NewPGRepository(db)
	ctx := context.Background()

	month := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	name, err := repo.EnsurePartition(ctx, month)
	if err != nil {
		t.Fatalf("EnsurePartition: %v", err)
	}
	// Idempotent.
	if _, err := repo.EnsurePartition(ctx, month); err != nil {
		t.Fatalf("EnsurePartition again: %v", err)
	}

	parts, err := repo.ListPartitions(ctx)
	if err != nil {
		t.Fatalf("ListPartitions: %v", err)
	}
	for _, p := range parts {
		if p.Name == name {
			if !p.From.Equal(month) || !p.To.Equal(month.AddDate(0, 1, 0)) {
				t.Fatalf("bounds: got=%v..%v", p.From, p.To)
			}
			return
		}
	}
	t.Fatalf("partition %s not listed", name)
}

func TestPGRepositoryRangeIsHalfOpenAndOrdered(t *testing.T) {
	db := testutil.DB(t)
	repo := NewPGRepository(db)
	ctx := context.Background()

	from := time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)
	to := from.Add(48 * time.Hour)
	if _, err := repo.EnsurePartition(ctx, from); err != nil {
		t.Fatalf("EnsurePartition: %v", err)
	}
	item := testutil.CatalogItem(t, db)
	seller := testutil.Seller(t, db)

	for _, o := range []*model.PriceObservation{
		newObservation(item.ID, seller.ID, "240", to),
		newObservation(item.ID, seller.ID, "231", from.Add(30*time.Hour)),
		newObservation(item.ID, seller.ID, "230", from),
		newObservation(item.ID, seller.ID, "229", from.Add(-time.Second)),
		newObservation(item.ID, seller.ID, "232", to.Add(-time.Second)),
	} {
		if err := repo.Append(ctx, o); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	rows, err := repo.Range(ctx, item.ID, from, to)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	want := []string{"230", "231", "232"}
	if len(rows) != len(want) {
		t.Fatalf("rows: want=%d got=%d", len(want), len(rows))
	}
	for i, w := range want {
		if !rows[i].Price.Equal(decimal.RequireFromString(w)) {
			t.Fatalf("row %d: want=%s got=%s", i, w, rows[i].Price)
		}
	}
	if !rows[0].ObservedAt.Equal(from) {
		t.Fatalf("first row should sit on the lower bound, got %v", rows[0].ObservedAt)
	}
}

func TestPGRepositoryRangeSpansPartitions(t *testing.T) {
	db := testutil.DB(t)
	repo := NewPGRepository(db)
	ctx := context.Background()

	may := time.Date(2024, 5, 31, 22, 0, 0, 0, time.UTC)
	june := time.Date(2024, 6, 1, 2, 0, 0, 0, time.UTC)
	for _, m := range []time.Time{may, june} {
		if _, err := repo.EnsurePartition(ctx, m); err != nil {
			t.Fatalf("EnsurePartition %v: %v", m, err)
		}
	}
	item := testutil.CatalogItem(t, db)
	seller := testutil.Seller(t, db)

	for _, o := range []*model.PriceObservation{
		newObservation(item.ID, seller.ID, "219", june),
		newObservation(item.ID, seller.ID, "225", may),
	} {
		if err := repo.Append(ctx, o); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	rows, err := repo.Range(ctx, item.ID, may.Add(-time.Hour), june.Add(time.Hour))
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows: want=2 got=%d", len(rows))
	}
	if !rows[0].ObservedAt.Equal(may) || !rows[1].ObservedAt.Equal(june) {
		t.Fatalf("order: got=%v, %v", rows[0].ObservedAt, rows[1].ObservedAt)
	}
}

func TestPGRepositoryRangeIncludesMergedDuplicates(t *testing.T) {
	db := testutil.DB(t)
	repo := NewPGRepository(db)
	ctx := context.Background()

	base := time.Date(2024, 3, 20, 8, 0, 0, 0, time.UTC)
	if _, err := repo.EnsurePartition(ctx, base); err != nil {
		t.Fatalf("EnsurePartition: %v", err)
	}
	keep := testutil.CatalogItem(t, db)
	dup := testutil.CatalogItem(t, db)
	unrelated := testutil.CatalogItem(t, db)
	seller := testutil.Seller(t, db)

	for _, o := range []*model.PriceObservation{
		newObservation(keep.ID, seller.ID, "230", base),
		newObservation(dup.ID, seller.ID, "228", base.Add(time.Hour)),
		newObservation(unrelated.ID, seller.ID, "199", base.Add(2*time.Hour)),
	} {
		if err := repo.Append(ctx, o); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if _, err := db.ExecContext(ctx, `UPDATE catalog_items SET merged_into_id = $1 WHERE id = $2`, keep.ID, dup.ID); err != nil {
		t.Fatalf("merge: %v", err)
	}

	from, to := base.Add(-time.Hour), base.Add(24*time.Hour)
	rows, err := repo.Range(ctx, keep.ID, from, to)
	if err != nil {
		t.Fatalf("Range keep: %v", err)
	}
	if len(rows) != 2 || rows[0].CatalogItemID != keep.ID || rows[1].CatalogItemID != dup.ID {
		t.Fatalf("keep should see its own and the duplicate's rows, got %d", len(rows))
	}

	// The duplicate's own history stays addressable and does not pull in keep.
	rows, err = repo.Range(ctx, dup.ID, from, to)
	if err != nil {
		t.Fatalf("Range dup: %v", err)
	}
	if len(rows) != 1 || rows[0].CatalogItemID != dup.ID {
		t.Fatalf("dup rows: want=1 got=%d", len(rows))
	}
}
