package dto

type CompareSellersInput struct {
	CatalogItemID string
	// Days limits the comparison to the trailing window. Zero uses the default.
	Days int
}

type ForecastInput struct {
	CatalogItemID string
	SellerID      *string
}

type AlertInput struct {
	// CatalogItemID narrows detection to one item. Nil scans the catalog.
	CatalogItemID *string
	DropThreshold *float64
	RiseThreshold *float64
}
