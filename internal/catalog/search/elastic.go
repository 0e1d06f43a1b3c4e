package search

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/fekuna/omnipos-pricing-service/internal/model"
	"github.com/fekuna/omnipos-pricing-service/pkg/search"
	"golang.org/x/time/rate"
)

const IndexName = "catalog_items"

const mapping = `{
	"mappings": {
		"properties": {
			"name": { "type": "text" },
			"brand": { "type": "keyword" },
			"category": { "type": "keyword" },
			"normalized_key": { "type": "keyword" },
			"updated_at": { "type": "date" }
		}
	}
}`

// indexClient is the part of *search.Client the catalog index uses.
type indexClient interface {
	CreateIndex(ctx context.Context, index, mapping string) error
	Index(ctx context.Context, index, id string, doc interface{}) error
	Search(ctx context.Context, index string, query map[string]interface{}) (*search.SearchResponse, error)
	Delete(ctx context.Context, index, id string) error
}

// CatalogIndex serves fuzzy-match candidates from Elasticsearch and keeps the
// index in step with the catalog. Writes are throttled so a large first
// ingestion does not flood the cluster.
type CatalogIndex struct {
	client  indexClient
	limiter *rate.Limiter

	mu    sync.Mutex
	ready bool
}

func NewCatalogIndex(client *search.Client, writesPerSecond float64) *CatalogIndex {
	return newCatalogIndex(client, writesPerSecond)
}

func newCatalogIndex(client indexClient, writesPerSecond float64) *CatalogIndex {
	if writesPerSecond <= 0 {
		writesPerSecond = 20
	}
	return &CatalogIndex{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(writesPerSecond), int(writesPerSecond)+1),
	}
}

// ensureIndex creates the index once. A failed attempt is retried on the next write.
func (ix *CatalogIndex) ensureIndex(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.ready {
		return nil
	}
	if err := ix.client.CreateIndex(ctx, IndexName, mapping); err != nil {
		return err
	}
	ix.ready = true
	return nil
}

func (ix *CatalogIndex) IndexItem(ctx context.Context, item *model.CatalogItem) error {
	if err := ix.ensureIndex(ctx); err != nil {
		return err
	}
	if err := ix.limiter.Wait(ctx); err != nil {
		return err
	}
	return ix.client.Index(ctx, IndexName, item.ID, item)
}

func (ix *CatalogIndex) RemoveItem(ctx context.Context, id string) error {
	if err := ix.limiter.Wait(ctx); err != nil {
		return err
	}
	return ix.client.Delete(ctx, IndexName, id)
}

// Candidates returns up to limit items whose names loosely match name.
func (ix *CatalogIndex) Candidates(ctx context.Context, name string, limit int) ([]model.CatalogItem, error) {
	q := map[string]interface{}{
		"size": limit,
		"query": map[string]interface{}{
			"match": map[string]interface{}{
				"name": map[string]interface{}{
					"query":     name,
					"fuzziness": "AUTO",
				},
			},
		},
	}

	res, err := ix.client.Search(ctx, IndexName, q)
	if err != nil {
		return nil, err
	}

	items := make([]model.CatalogItem, 0, len(res.Hits.Hits))
	for _, hit := range res.Hits.Hits {
		var item model.CatalogItem
		if err := json.Unmarshal(hit.Source, &item); err != nil {
			continue
		}
		if item.MergedIntoID != nil {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}
