package models

import (
	"encoding/json"
	"time"
)

// MCachedQuote is one row of the quote cache, identified by (Symbol, Range, Interval).
type MCachedQuote struct {
	Symbol    string          `json:"symbol"`
	Range     string          `json:"range"`
	Interval  string          `json:"interval"`
	Data      json.RawMessage `json:"data"` // upstream body, stored verbatim
	UpdatedAt time.Time       `json:"updated_at"`
}

// Age returns how old the row is at now. Never negative.
func (q MCachedQuote) Age(now time.Time) time.Duration {
	age := now.Sub(q.UpdatedAt)
	if age < 0 {
		return 0
	}
	return age
}

// MQuoteRequest holds the query parameters of a proxy request.
type MQuoteRequest struct {
	Symbol   string `form:"symbol" json:"symbol"`
	Range    string `form:"range" json:"range"`
	Interval string `form:"interval" json:"interval"`
}

// Key returns the single-flight / cache identity of the request.
func (r MQuoteRequest) Key() string {
	return r.Symbol + "|" + r.Range + "|" + r.Interval
}
