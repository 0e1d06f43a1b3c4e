package normalizer

import (
	"testing"

	"github.com/fekuna/omnipos-pricing-service/internal/model"
)

func TestNormalizeKey(t *testing.T) {
	n := New("")

	cases := []struct {
		name string
		raw  RawProduct
		key  string
	}{
		{
			name: "bagged kg from name",
			raw:  RawProduct{Name: "Premium Holzpellets 15kg Sack ENplus A1 6mm"},
			key:  "pellets_15kg_bagged",
		},
		{
			name: "decimal comma",
			raw:  RawProduct{Name: "Pellets 15,5 kg"},
			key:  "pellets_15.5kg_bagged",
		},
		{
			name: "bulk tonnes",
			raw:  RawProduct{Name: "Holzpellets lose 3 t"},
			key:  "pellets_3t_bulk",
		},
		{
			name: "missing quantity falls back to unknown",
			raw:  RawProduct{Name: "Lose Pellets, Preis pro Tonne"},
			key:  "pellets_unknown_bulk",
		},
		{
			name: "weight spec overrides name",
			raw: RawProduct{
				Name:  "Pellets 6mm Big Bag",
				Specs: map[string]string{"Weight": "975 kg"},
			},
			key: "pellets_975kg_bagged",
		},
		{
			name: "explicit category is slugged",
			raw:  RawProduct{Name: "Briketts 10 kg", Category: "Wood Briquettes"},
			key:  "wood-briquettes_10kg_bagged",
		},
		{
			name: "first pattern wins",
			raw:  RawProduct{Name: "1 t Palette mit 66 x 15 kg"},
			key:  "pellets_15kg_bagged",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := n.Normalize(tc.raw)
			if got.Key != tc.key {
				t.Fatalf("key: want=%s got=%s", tc.key, got.Key)
			}
		})
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	n := New("pellets")
	raw := RawProduct{
		Name:  "ÖkoPellets Premium 15 kg",
		Brand: "Öko",
		Specs: map[string]string{
			"Durchmesser": "6 mm",
			"Norm":        "ENplus A1",
			"Herkunft":    "Österreich",
			"Asche":       "< 0,7 %",
		},
	}

	first := n.Normalize(raw)
	for i := 0; i < 50; i++ {
		again := n.Normalize(raw)
		if again.Key != first.Key {
			t.Fatalf("run %d: want=%s got=%s", i, first.Key, again.Key)
		}
		if again.Attributes.Key(again.Category) != again.Key {
			t.Fatalf("key is not derived from attributes: %s", again.Key)
		}
	}
	if first.Key != "pellets_15kg_bagged" {
		t.Fatalf("key: want=pellets_15kg_bagged got=%s", first.Key)
	}
}

func TestNormalizeAttributes(t *testing.T) {
	n := New("pellets")
	got := n.Normalize(RawProduct{
		Name:  "Holzpellets 6mm",
		Specs: map[string]string{"Verpackung": "Sackware", "Norm": "DINplus"},
	})

	if got.Attributes.Quantity != nil {
		t.Fatalf("quantity: want=nil got=%v", *got.Attributes.Quantity)
	}
	if got.Attributes.Packaging != model.PackagingBagged {
		t.Fatalf("packaging: want=%s got=%s", model.PackagingBagged, got.Attributes.Packaging)
	}
	if got.Attributes.DiameterMM == nil || *got.Attributes.DiameterMM != 6 {
		t.Fatalf("diameter: want=6 got=%v", got.Attributes.DiameterMM)
	}
	if got.Attributes.Extra["norm"] != "dinplus" {
		t.Fatalf("extra norm: want=dinplus got=%q", got.Attributes.Extra["norm"])
	}
	if _, ok := got.Attributes.Extra["verpackung"]; ok {
		t.Fatalf("packaging spec should not be copied into extra")
	}
}
