package listener

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fekuna/omnipos-pricing-service/internal/ingestion"
	"github.com/fekuna/omnipos-pricing-service/internal/ingestion/dto"
	"github.com/fekuna/omnipos-pricing-service/pkg/broker"
	"github.com/fekuna/omnipos-pricing-service/pkg/logger"
	"go.uber.org/zap"
)

type ScrapeBatchListener struct {
	consumer *broker.KafkaConsumer
	uc       ingestion.UseCase
	logger   logger.ZapLogger
}

func NewScrapeBatchListener(consumer *broker.KafkaConsumer, uc ingestion.UseCase, logger logger.ZapLogger) *ScrapeBatchListener {
	return &ScrapeBatchListener{
		consumer: consumer,
		uc:       uc,
		logger:   logger,
	}
}

func (l *ScrapeBatchListener) Start(ctx context.Context) {
	l.logger.Info("Starting scrape batch Kafka listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping scrape batch Kafka listener")
			return
		default:
			msg, err := l.consumer.ReadMessage(ctx)
			if err != nil {
				// Cancellation is shutdown, not a failure.
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("Failed to read kafka message", zap.Error(err))
				time.Sleep(1 * time.Second)
				continue
			}
			l.processMessage(ctx, msg.Value)
		}
	}
}

func (l *ScrapeBatchListener) processMessage(ctx context.Context, value []byte) {
	var event dto.ScrapeBatchEvent
	if err := json.Unmarshal(value, &event); err != nil {
		l.logger.Error("Failed to unmarshal event", zap.Error(err))
		return
	}

	if event.EventType != dto.EventScrapeBatch {
		return
	}

	l.logger.Info("Processing scrape batch",
		zap.String("event_id", event.EventID),
		zap.Int("items", len(event.Payload.Items)),
	)

	res, err := l.uc.IngestBatch(ctx, &event.Payload)
	if err != nil {
		// The offset is already committed; the batch is not redelivered.
		l.logger.Error("Failed to ingest scrape batch",
			zap.String("event_id", event.EventID),
			zap.Error(err),
		)
		return
	}
	if res.Rejected > 0 {
		l.logger.Warn("Scrape batch had rejected items",
			zap.String("event_id", event.EventID),
			zap.Int("rejected", res.Rejected),
			zap.Error(res.Rejections),
		)
	}
}
