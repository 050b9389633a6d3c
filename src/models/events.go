package models

// -----------------------------------------------------------------------------
// Live quote events pushed over the websocket
// -----------------------------------------------------------------------------

const (
	EventTypeQuote   = "QUOTE"
	EventTypeInitial = "INITIAL"
)

// MQuoteSummary condenses a chart into what a ticker needs.
type MQuoteSummary struct {
	Currency      string  `json:"currency"`
	LastPrice     float64 `json:"last_price"`
	PreviousClose float64 `json:"previous_close"`
	ChangePercent float64 `json:"change_percent"` // fraction, 0.012 = +1.2%
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Volume        float64 `json:"volume"`
	AvgPrice      float64 `json:"avg_price"`
	PriceStdDev   float64 `json:"price_std_dev"`
	VolumeZScore  float64 `json:"volume_z_score"` // last bar against the series
	DataPoints    int     `json:"data_points"`
	LastTimestamp int64   `json:"last_timestamp"`
}

type MQuoteEvent struct {
	Type      string        `json:"type"`
	Symbol    string        `json:"symbol"`
	Range     string        `json:"range"`
	Interval  string        `json:"interval"`
	Summary   MQuoteSummary `json:"summary"`
	Timestamp int64         `json:"timestamp"`
}

// MSnapshot is sent to a client right after it subscribes.
type MSnapshot struct {
	Type   string                 `json:"type"`
	Quotes map[string]MQuoteEvent `json:"quotes"`
}

// -----------------------------------------------------------------------------
// SubscribeCommand for client messages
// -----------------------------------------------------------------------------

type MSubscribeCommand struct {
	Command string   `json:"command"` // "subscribe" or "unsubscribe"
	Symbols []string `json:"symbols"`
}
