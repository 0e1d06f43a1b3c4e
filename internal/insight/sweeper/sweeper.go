package sweeper

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-pricing-service/internal/insight"
	"github.com/fekuna/omnipos-pricing-service/pkg/logger"
	"go.uber.org/zap"
)

// Sweeper periodically deactivates expired insights.
type Sweeper struct {
	uc       insight.UseCase
	interval time.Duration
	logger   logger.ZapLogger
}

func NewSweeper(uc insight.UseCase, interval time.Duration, logger logger.ZapLogger) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{uc: uc, interval: interval, logger: logger}
}

func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("Starting insight sweeper", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping insight sweeper")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

func (s *Sweeper) RunOnce(ctx context.Context) {
	n, err := s.uc.SweepExpired(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("Insight sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Debug("Insight sweep finished", zap.Int("deactivated", n))
	}
}
