package models

import (
	"encoding/json"
	"fmt"

	"quote-proxy/src/helpers"
)

// -----------------------------------------------------------------------------
// Yahoo chart envelope
// -----------------------------------------------------------------------------

// MChartEnvelope is the typed view of a chart response. Exactly one of
// Chart.Result and Chart.Error is expected to be set.
type MChartEnvelope struct {
	Chart *MChart `json:"chart"`
}

type MChart struct {
	Result []MChartResult `json:"result"`
	Error  *MChartError   `json:"error"`
}

type MChartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type MChartResult struct {
	Meta       MChartMeta `json:"meta"`
	Timestamp  []int64    `json:"timestamp"`
	Indicators struct {
		Quote []MChartQuote `json:"quote"`
	} `json:"indicators"`
}

type MChartMeta struct {
	Currency             string  `json:"currency"`
	Symbol               string  `json:"symbol"`
	ExchangeName         string  `json:"exchangeName"`
	InstrumentType       string  `json:"instrumentType"`
	RegularMarketTime    int64   `json:"regularMarketTime"`
	Gmtoffset            int     `json:"gmtoffset"`
	Timezone             string  `json:"timezone"`
	ExchangeTimezoneName string  `json:"exchangeTimezoneName"`
	RegularMarketPrice   float64 `json:"regularMarketPrice"`
	ChartPreviousClose   float64 `json:"chartPreviousClose"`
	PreviousClose        float64 `json:"previousClose"`
	DataGranularity      string  `json:"dataGranularity"`
	Range                string  `json:"range"`
}

type MChartQuote struct {
	High   []*float64 `json:"high"` // Use pointers to handle null
	Low    []*float64 `json:"low"`
	Open   []*float64 `json:"open"`
	Close  []*float64 `json:"close"`
	Volume []*float64 `json:"volume"`
}

// -----------------------------------------------------------------------------

// ParseChartEnvelope decodes body and checks it carries a usable result.
// Every failure is an *helpers.UpstreamShapeError.
func ParseChartEnvelope(body []byte) (*MChart, error) {
	var env MChartEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, helpers.NewUpstreamShapeError("response is not valid JSON", err)
	}

	if env.Chart == nil {
		return nil, helpers.NewUpstreamShapeError("response has no chart field", nil)
	}

	if env.Chart.Error != nil {
		return nil, helpers.NewUpstreamShapeError(
			fmt.Sprintf("yahoo api error: %s - %s", env.Chart.Error.Code, env.Chart.Error.Description), nil)
	}

	if len(env.Chart.Result) == 0 {
		return nil, helpers.NewUpstreamShapeError("response has no chart result", nil)
	}

	return env.Chart, nil
}
