package datasource

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"quote-proxy/src/interfaces"
	"quote-proxy/src/logger"
	"quote-proxy/src/models"
	"quote-proxy/src/quotes"
	"quote-proxy/src/utils"

	"github.com/juju/clock"
	"golang.org/x/sync/errgroup"
)

// QuoteGetter is the part of quotes.Service the warmer drives.
type QuoteGetter interface {
	Get(ctx context.Context, req models.MQuoteRequest) (*quotes.Result, error)
}

// Warmer keeps the watchlist fresh in the cache by reading it through the
// quote service while its markets are open.
type Warmer struct {
	Config    *models.MConfig
	Quotes    QuoteGetter
	Scheduler *utils.MarketScheduler
	Resolver  interfaces.IWatchlistResolver // optional
	Clock     clock.Clock
	Logger    *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// -----------------------------------------------------------------------------

func NewWarmer(cfg *models.MConfig, svc QuoteGetter, clk clock.Clock, log *logger.Logger) *Warmer {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Warmer{
		Config:    cfg,
		Quotes:    svc,
		Scheduler: utils.NewMarketScheduler(cfg.Warmer.Symbols, clk, log.Named("MarketScheduler")),
		Clock:     clk,
		Logger:    log,
	}
}

// -----------------------------------------------------------------------------

// Symbols returns the watchlist with stored symbol lists expanded.
func (w *Warmer) Symbols(ctx context.Context) ([]string, error) {
	entries := w.Config.Warmer.Symbols
	if w.Resolver != nil {
		return w.Resolver.ResolveSymbols(ctx, entries)
	}

	symbols := make([]string, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" || seen[e] {
			continue
		}
		if strings.Count(e, ".") == 2 {
			w.Logger.Warning("Skipping %q: table references need a postgres store", e)
			continue
		}
		seen[e] = true
		symbols = append(symbols, e)
	}
	return symbols, nil
}

// -----------------------------------------------------------------------------

// RunOnce reads every open-market symbol through the quote service and
// returns how many succeeded. Per-symbol failures are logged, not returned.
func (w *Warmer) RunOnce(ctx context.Context) (int, error) {
	symbols, err := w.Symbols(ctx)
	if err != nil {
		return 0, fmt.Errorf("resolve watchlist: %w", err)
	}
	w.Scheduler.UpdateSymbols(symbols)

	open := w.Scheduler.OpenSymbols(symbols)
	if len(open) == 0 {
		return 0, nil
	}

	var (
		g      errgroup.Group
		warmed atomic.Int64
	)
	g.SetLimit(max(w.Config.Network.ConcurrentRequests, 1))

	for _, symbol := range open {
		req := models.MQuoteRequest{
			Symbol:   symbol,
			Range:    w.Config.Warmer.Range,
			Interval: w.Config.Warmer.Interval,
		}
		g.Go(func() error {
			if _, err := w.Quotes.Get(ctx, req); err != nil {
				w.Logger.Warning("Failed to warm %s: %v", req.Key(), err)
				return nil
			}
			warmed.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	return int(warmed.Load()), nil
}

// -----------------------------------------------------------------------------

// Run warms the cache every update interval until ctx ends. While every
// market is closed it sleeps for the closed pause instead.
func (w *Warmer) Run(ctx context.Context) {
	interval := time.Duration(w.Config.Warmer.UpdateIntervalSeconds) * time.Second
	pause := time.Duration(w.Config.Warmer.ClosedPauseMinutes) * time.Minute

	for {
		n, err := w.RunOnce(ctx)
		if err != nil {
			w.Logger.Error("Warm cycle failed: %v", err)
		} else if n > 0 {
			w.Logger.Debug("Warmed %d symbols", n)
		}

		wait := interval
		if !w.Scheduler.AnyMarketOpen() && pause > 0 {
			w.Logger.Info("All markets closed, pausing for %s", pause)
			wait = pause
		}

		select {
		case <-ctx.Done():
			return
		case <-w.Clock.After(wait):
		}
	}
}

// -----------------------------------------------------------------------------

// Start runs the warmer in the background.
func (w *Warmer) Start(parentCtx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return fmt.Errorf("warmer is already running")
	}

	ctx, cancel := context.WithCancel(parentCtx)
	w.cancel = cancel
	w.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		w.Run(ctx)
	}(w.done)

	w.Logger.Info("Warmer started for %d watchlist entries", len(w.Config.Warmer.Symbols))
	return nil
}

// -----------------------------------------------------------------------------

// Stop cancels the background loop and waits for it to return.
func (w *Warmer) Stop() error {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return nil // Already stopped
	}
	cancel()
	<-done

	w.Logger.Info("Warmer stopped")
	return nil
}
