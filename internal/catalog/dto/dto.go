package dto

type CatalogFilters struct {
	Category      string
	SearchQuery   string // Name ILIKE
	IncludeMerged bool
	SortBy        string // name, updated_at, created_at
	SortOrder     string // asc, desc
	Page          int
	PageSize      int
}
