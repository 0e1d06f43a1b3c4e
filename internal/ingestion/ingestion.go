// Package ingestion runs scraped batches through normalization, catalog
// matching, the append-only price store and diff classification.
package ingestion

import (
	"context"
	"errors"

	"github.com/fekuna/omnipos-pricing-service/internal/ingestion/dto"
)

// ErrValidation marks an item rejected before touching the store. The rest
// of the batch continues.
var ErrValidation = errors.New("invalid scraped item")

type UseCase interface {
	// IngestBatch processes items in order. Validation failures reject the
	// item only; store errors such as a missing partition abort the batch and
	// are returned along with the results gathered so far.
	IngestBatch(ctx context.Context, batch *dto.Batch) (*dto.BatchResult, error)
	// IngestBatches runs batches of different sellers concurrently and
	// batches of the same seller in order.
	IngestBatches(ctx context.Context, batches []dto.Batch) ([]*dto.BatchResult, error)
}

// Publisher emits price-change events. *broker.KafkaProducer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}
