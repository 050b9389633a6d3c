package quotes

import (
	"context"
	"errors"
	"time"

	"quote-proxy/src/analysis/core"
	"quote-proxy/src/helpers"
	"quote-proxy/src/interfaces"
	"quote-proxy/src/logger"
	"quote-proxy/src/metrics"
	"quote-proxy/src/models"

	"github.com/juju/clock"
	"golang.org/x/sync/singleflight"
)

// Where a Result payload came from.
const (
	SourceCache    = "cache"
	SourceUpstream = "upstream"
)

// Upstream fetch outcomes, as counted in metrics.
const (
	outcomeOK          = "ok"
	outcomeRateLimited = "rate_limited"
	outcomeInvalid     = "invalid"
	outcomeError       = "error"
)

// Result is a payload ready to hand back to the client.
type Result struct {
	Quote  models.MCachedQuote
	Source string
	// Shared is set when the upstream fetch served more than one caller.
	Shared bool
}

// Service answers quote requests from the cache, refreshing stale or
// missing entries from the provider.
type Service struct {
	Store     interfaces.ICacheStore
	Fetcher   interfaces.IQuoteFetcher
	Publisher interfaces.IQuotePublisher // optional
	Clock     clock.Clock
	Logger    *logger.Logger
	Metrics   *metrics.QuoteMetrics

	group singleflight.Group
}

// -----------------------------------------------------------------------------

func NewService(store interfaces.ICacheStore, fetcher interfaces.IQuoteFetcher, clk clock.Clock, log *logger.Logger, m *metrics.QuoteMetrics) *Service {
	if clk == nil {
		clk = clock.WallClock
	}
	if m == nil {
		m = metrics.NewUnregistered()
	}
	return &Service{
		Store:   store,
		Fetcher: fetcher,
		Clock:   clk,
		Logger:  log,
		Metrics: m,
	}
}

// -----------------------------------------------------------------------------

// Get validates req, then serves the cached payload when it is fresh and
// fetches a new one otherwise. Store failures never fail the request.
func (s *Service) Get(ctx context.Context, req models.MQuoteRequest) (*Result, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	cached, err := s.Store.Get(ctx, req.Symbol, req.Range, req.Interval)
	switch {
	case err == nil:
		age := cached.Age(s.Clock.Now())
		if IsFresh(age, req.Range, req.Interval) {
			s.Metrics.CacheLookups.WithLabelValues(metrics.LookupHit).Inc()
			s.Logger.Debug("Cache hit for %s (%s/%s), age %s", req.Symbol, req.Range, req.Interval, age.Round(time.Second))
			return &Result{Quote: cached, Source: SourceCache}, nil
		}
		s.Metrics.CacheLookups.WithLabelValues(metrics.LookupStale).Inc()
		s.Logger.Debug("Cache stale for %s (%s/%s), age %s", req.Symbol, req.Range, req.Interval, age.Round(time.Second))

	case errors.Is(err, helpers.ErrQuoteNotFound):
		s.Metrics.CacheLookups.WithLabelValues(metrics.LookupMiss).Inc()

	default:
		s.Metrics.CacheLookups.WithLabelValues(metrics.LookupError).Inc()
		s.Metrics.StoreErrors.WithLabelValues("get").Inc()
		s.Logger.Warning("Cache read failed for %s (%s/%s), fetching upstream: %v", req.Symbol, req.Range, req.Interval, err)
	}

	return s.refresh(ctx, req)
}

// -----------------------------------------------------------------------------

// refresh joins or starts the single upstream fetch for req's key. The fetch
// itself is detached from ctx so one impatient caller cannot fail the others.
func (s *Service) refresh(ctx context.Context, req models.MQuoteRequest) (*Result, error) {
	fetchCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(req.Key(), func() (interface{}, error) {
		return s.fetchAndPersist(fetchCtx, req)
	})

	select {
	case <-ctx.Done():
		return nil, helpers.NewNetworkError("request cancelled", ctx.Err())
	case res := <-ch:
		if res.Shared {
			s.Metrics.CoalescedWaits.Inc()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return &Result{
			Quote:  res.Val.(models.MCachedQuote),
			Source: SourceUpstream,
			Shared: res.Shared,
		}, nil
	}
}

// -----------------------------------------------------------------------------

func (s *Service) fetchAndPersist(ctx context.Context, req models.MQuoteRequest) (models.MCachedQuote, error) {
	body, err := s.Fetcher.FetchChart(ctx, req.Symbol, req.Range, req.Interval)
	if err != nil {
		if helpers.IsRateLimited(err) {
			s.Metrics.UpstreamFetches.WithLabelValues(outcomeRateLimited).Inc()
		} else {
			s.Metrics.UpstreamFetches.WithLabelValues(outcomeError).Inc()
		}
		s.Logger.Error("Upstream fetch failed for %s (%s/%s): %v", req.Symbol, req.Range, req.Interval, err)
		return models.MCachedQuote{}, err
	}

	chart, err := models.ParseChartEnvelope(body)
	if err != nil {
		s.Metrics.UpstreamFetches.WithLabelValues(outcomeInvalid).Inc()
		s.Logger.Error("Rejected payload for %s (%s/%s): %v", req.Symbol, req.Range, req.Interval, err)
		return models.MCachedQuote{}, err
	}
	s.Metrics.UpstreamFetches.WithLabelValues(outcomeOK).Inc()

	quote := models.MCachedQuote{
		Symbol:    req.Symbol,
		Range:     req.Range,
		Interval:  req.Interval,
		Data:      body,
		UpdatedAt: s.Clock.Now().UTC(),
	}

	if err := s.Store.Upsert(ctx, quote); err != nil {
		s.Metrics.StoreErrors.WithLabelValues("upsert").Inc()
		s.Logger.Error("Cache write failed for %s (%s/%s): %v", req.Symbol, req.Range, req.Interval, err)
	}

	s.publish(req, chart, quote.UpdatedAt)
	return quote, nil
}

// -----------------------------------------------------------------------------

func (s *Service) publish(req models.MQuoteRequest, chart *models.MChart, at time.Time) {
	if s.Publisher == nil {
		return
	}
	s.Publisher.Publish(models.MQuoteEvent{
		Type:      models.EventTypeQuote,
		Symbol:    req.Symbol,
		Range:     req.Range,
		Interval:  req.Interval,
		Summary:   core.Summarize(chart),
		Timestamp: at.UnixMilli(),
	})
}
