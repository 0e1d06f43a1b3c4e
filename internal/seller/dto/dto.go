package dto

type SellerFilters struct {
	SearchQuery string // Name ILIKE
	Page        int
	PageSize    int
}
