package utils

import (
	"sync"
	"time"

	"quote-proxy/src/logger"

	"github.com/juju/clock"
)

// MarketScheduler tracks the trading calendars of the warmed symbols.
type MarketScheduler struct {
	Calendars map[string]*TradingCalendar
	Clock     clock.Clock
	Logger    *logger.Logger
	mu        sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewMarketScheduler(symbols []string, clk clock.Clock, l *logger.Logger) *MarketScheduler {
	if clk == nil {
		clk = clock.WallClock
	}
	ms := &MarketScheduler{
		Calendars: make(map[string]*TradingCalendar),
		Clock:     clk,
		Logger:    l,
	}
	ms.MapSymbolsToCalendars(symbols)
	return ms
}

// -----------------------------------------------------------------------------

// MapSymbolsToCalendars replaces the tracked symbols.
func (ms *MarketScheduler) MapSymbolsToCalendars(symbols []string) {
	calendars := make(map[string]*TradingCalendar, len(symbols))
	markets := make(map[string]bool)
	for _, symbol := range symbols {
		calendars[symbol] = GetCalendar(symbol)
		markets[MarketFor(symbol)] = true
	}

	ms.mu.Lock()
	ms.Calendars = calendars
	ms.mu.Unlock()

	ms.Logger.Debug("Mapped %d symbols to %d markets", len(symbols), len(markets))
}

// UpdateSymbols updates the scheduler with a new list of symbols
func (ms *MarketScheduler) UpdateSymbols(symbols []string) {
	ms.MapSymbolsToCalendars(symbols)
}

// -----------------------------------------------------------------------------

// IsOpen reports whether the market of symbol is open at t. Untracked
// symbols are looked up on demand.
func (ms *MarketScheduler) IsOpen(symbol string, t time.Time) bool {
	ms.mu.RLock()
	cal, ok := ms.Calendars[symbol]
	ms.mu.RUnlock()
	if !ok {
		cal = GetCalendar(symbol)
	}
	return cal.IsOpenOnMinute(t)
}

// -----------------------------------------------------------------------------

// OpenSymbols filters symbols down to those whose market is open now,
// keeping their order.
func (ms *MarketScheduler) OpenSymbols(symbols []string) []string {
	now := ms.Clock.Now().UTC()
	open := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if ms.IsOpen(s, now) {
			open = append(open, s)
		}
	}
	return open
}

// -----------------------------------------------------------------------------

// AnyMarketOpen checks if ANY tracked markets are currently open
func (ms *MarketScheduler) AnyMarketOpen() bool {
	now := ms.Clock.Now().UTC()

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	for _, cal := range ms.Calendars {
		if cal.IsOpenOnMinute(now) {
			return true
		}
	}
	return false
}
