package quotes

import "time"

const (
	// IntradayMaxAge covers series that move minute to minute while markets are open.
	IntradayMaxAge = 5 * time.Minute
	// HistoricalMaxAge covers daily-or-coarser series that settle once per trading day.
	HistoricalMaxAge = 24 * time.Hour
)

var intradayIntervals = map[string]bool{
	"1m": true,
	"2m": true,
	"5m": true,
}

// MaxAge is the staleness window for a (range, interval) combination.
func MaxAge(rangeStr, interval string) time.Duration {
	if intradayIntervals[interval] || rangeStr == "1d" {
		return IntradayMaxAge
	}
	return HistoricalMaxAge
}

// IsFresh reports whether a cached entry of the given age may be served.
func IsFresh(age time.Duration, rangeStr, interval string) bool {
	if age < 0 {
		age = 0
	}
	return age < MaxAge(rangeStr, interval)
}
