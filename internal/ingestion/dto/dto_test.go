package dto

import (
	"testing"

	"github.com/fekuna/omnipos-pricing-service/internal/diff"
)

func TestDecodeBatches(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		batches int
		items   int
		wantErr bool
	}{
		{
			name:    "single object",
			input:   `{"sellerName":"Pellet World","items":[{"sourceUrl":"https://a.example/p","productName":"Pellets 15kg","price":"235.00","sellerName":"Pellet World"}]}`,
			batches: 1,
			items:   1,
		},
		{
			name:    "array",
			input:   ` [ {"items":[]}, {"scope":"catalog_item","items":[{"productName":"x"},{"productName":"y"}]} ]`,
			batches: 2,
			items:   2,
		},
		{name: "empty", input: "  \n", wantErr: true},
		{name: "garbage", input: `{"items":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeBatches([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeBatches: %v", err)
			}
			if len(got) != tt.batches {
				t.Fatalf("batches: want=%d got=%d", tt.batches, len(got))
			}
			if n := len(got[len(got)-1].Items); n != tt.items {
				t.Fatalf("items in last batch: want=%d got=%d", tt.items, n)
			}
		})
	}
}

func TestDecodeBatchesKeepsPriceAndScope(t *testing.T) {
	got, err := DecodeBatches([]byte(`{"scope":"catalog_item","items":[{"price":"210.50","sellerName":" Pellet World "}]}`))
	if err != nil {
		t.Fatalf("DecodeBatches: %v", err)
	}
	b := got[0]
	if b.Scope != diff.ScopeCatalogItem {
		t.Fatalf("scope: want=%s got=%s", diff.ScopeCatalogItem, b.Scope)
	}
	if p := b.Items[0].Price.String(); p != "210.5" {
		t.Fatalf("price: want=210.5 got=%s", p)
	}
	if k := b.SellerKey(); k != "pellet world" {
		t.Fatalf("seller key: want=%q got=%q", "pellet world", k)
	}
}
