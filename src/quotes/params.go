package quotes

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"quote-proxy/src/helpers"
	"quote-proxy/src/models"
)

const (
	MsgMissingParameters = "Missing parameters"
	MsgInvalidParameters = "Invalid parameters"
)

// Ranges accepted by the v8 chart endpoint.
var SupportedRanges = map[string]bool{
	"1d": true, "5d": true, "1mo": true, "3mo": true, "6mo": true,
	"1y": true, "2y": true, "5y": true, "10y": true, "ytd": true, "max": true,
}

// Intervals accepted by the v8 chart endpoint.
var SupportedIntervals = map[string]bool{
	"1m": true, "2m": true, "5m": true, "15m": true, "30m": true, "60m": true, "90m": true,
	"1h": true, "1d": true, "5d": true, "1wk": true, "1mo": true, "3mo": true,
}

// Fits the cache key column.
const maxSymbolLength = 20

// validSymbol accepts any exchange identifier (M&M.NS, ^NSEI, EURUSD=X) except
// characters that would break the chart path or the cache key.
func validSymbol(symbol string) bool {
	if utf8.RuneCountInString(symbol) > maxSymbolLength {
		return false
	}
	return strings.IndexFunc(symbol, func(r rune) bool {
		return r == '/' || r == '|' || unicode.IsSpace(r) || unicode.IsControl(r)
	}) < 0
}

// ValidateRequest checks presence first, then vocabulary.
func ValidateRequest(req models.MQuoteRequest) error {
	if req.Symbol == "" || req.Range == "" || req.Interval == "" {
		return helpers.NewValidationError(MsgMissingParameters)
	}
	if !validSymbol(req.Symbol) || !SupportedRanges[req.Range] || !SupportedIntervals[req.Interval] {
		return helpers.NewValidationError(MsgInvalidParameters)
	}
	return nil
}

// SortedKeys lists a vocabulary for display.
func SortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
