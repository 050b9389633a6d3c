package quotes

import (
	"context"
	"time"

	"quote-proxy/src/interfaces"
	"quote-proxy/src/logger"
	"quote-proxy/src/metrics"
	"quote-proxy/src/models"

	"github.com/juju/clock"
)

// Sweeper deletes cache rows nobody has refreshed within the retention window.
type Sweeper struct {
	Store     interfaces.ICacheStore
	Clock     clock.Clock
	Logger    *logger.Logger
	Metrics   *metrics.QuoteMetrics
	Retention time.Duration
	Interval  time.Duration
}

// -----------------------------------------------------------------------------

func NewSweeper(cfg *models.MConfig, store interfaces.ICacheStore, clk clock.Clock, log *logger.Logger, m *metrics.QuoteMetrics) *Sweeper {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Sweeper{
		Store:     store,
		Clock:     clk,
		Logger:    log,
		Metrics:   m,
		Retention: time.Duration(cfg.Cache.RetentionHours) * time.Hour,
		Interval:  time.Duration(cfg.Cache.SweepIntervalMinutes) * time.Minute,
	}
}

// -----------------------------------------------------------------------------

// SweepOnce removes rows last updated before now minus the retention window.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	cutoff := s.Clock.Now().Add(-s.Retention)
	n, err := s.Store.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		if s.Metrics != nil {
			s.Metrics.StoreErrors.WithLabelValues("purge").Inc()
		}
		s.Logger.Error("Cache sweep failed: %v", err)
		return 0, err
	}

	if s.Metrics != nil {
		s.Metrics.SweptRows.Add(float64(n))
	}
	if n > 0 {
		s.Logger.Info("Swept %d cache rows older than %s", n, cutoff.Format(time.RFC3339))
	}
	return n, nil
}

// -----------------------------------------------------------------------------

// Run sweeps immediately and then every Interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	if s.Interval <= 0 {
		s.Logger.Info("Cache sweep disabled")
		return
	}

	s.SweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.Clock.After(s.Interval):
			s.SweepOnce(ctx)
		}
	}
}
