package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

const (
	PackagingBagged = "bagged"
	PackagingBulk   = "bulk"

	UnknownQuantity = "unknown"
)

// Attributes is the structured form of the scraped specification fields.
// Known fields are typed; anything unrecognized lands in Extra.
type Attributes struct {
	Quantity   *float64          `json:"quantity,omitempty"`
	Unit       string            `json:"unit,omitempty"`
	Packaging  string            `json:"packaging"`
	DiameterMM *float64          `json:"diameter_mm,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Key composes the normalized key {category}_{quantity}{unit}_{packaging}.
func (a Attributes) Key(category string) string {
	qty := UnknownQuantity
	if a.Quantity != nil {
		qty = strconv.FormatFloat(*a.Quantity, 'f', -1, 64) + a.Unit
	}
	return strings.Join([]string{category, qty, a.Packaging}, "_")
}

func (a Attributes) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *Attributes) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*a = Attributes{}
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return errors.New("attributes: unsupported scan type")
	}
}

type CatalogItem struct {
	BaseModel
	Name          string     `db:"name" json:"name"`
	Brand         *string    `db:"brand" json:"brand"`
	Category      string     `db:"category" json:"category"`
	Attributes    Attributes `db:"attributes" json:"attributes"`
	NormalizedKey string     `db:"normalized_key" json:"normalized_key"`
	MergedIntoID  *string    `db:"merged_into_id" json:"merged_into_id,omitempty"` // Set by maintenance merge
}
