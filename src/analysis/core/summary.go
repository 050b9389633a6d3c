package core

import (
	"math"

	"quote-proxy/src/models"
)

type bar struct {
	timestamp int64
	open      float64
	high      float64
	low       float64
	close     float64
	volume    float64
}

// -----------------------------------------------------------------------------

// validBars drops points with a null field or a non-positive close, the way
// Yahoo pads halted or pre-market slots.
func validBars(result models.MChartResult) []bar {
	if len(result.Indicators.Quote) == 0 {
		return nil
	}
	q := result.Indicators.Quote[0]

	n := len(result.Timestamp)
	if len(q.Open) != n || len(q.High) != n || len(q.Low) != n || len(q.Close) != n || len(q.Volume) != n {
		return nil
	}

	bars := make([]bar, 0, n)
	for i := 0; i < n; i++ {
		if q.Open[i] == nil || q.High[i] == nil || q.Low[i] == nil || q.Close[i] == nil || q.Volume[i] == nil {
			continue
		}
		if *q.Close[i] <= 0 || *q.Volume[i] < 0 {
			continue
		}
		bars = append(bars, bar{
			timestamp: result.Timestamp[i],
			open:      *q.Open[i],
			high:      *q.High[i],
			low:       *q.Low[i],
			close:     *q.Close[i],
			volume:    *q.Volume[i],
		})
	}
	return bars
}

// -----------------------------------------------------------------------------

// Summarize condenses the first chart result into a ticker summary.
// Without usable bars only the meta fields are filled.
func Summarize(chart *models.MChart) models.MQuoteSummary {
	var summary models.MQuoteSummary
	if chart == nil || len(chart.Result) == 0 {
		return summary
	}

	result := chart.Result[0]
	meta := result.Meta
	summary.Currency = meta.Currency
	summary.LastPrice = meta.RegularMarketPrice
	summary.LastTimestamp = meta.RegularMarketTime

	summary.PreviousClose = meta.ChartPreviousClose
	if summary.PreviousClose <= 0 {
		summary.PreviousClose = meta.PreviousClose
	}

	bars := validBars(result)
	summary.DataPoints = len(bars)

	if len(bars) > 0 {
		closes := make([]float64, len(bars))
		volumes := make([]float64, len(bars))
		summary.Open = bars[0].open
		summary.High = -1.0
		summary.Low = math.MaxFloat64

		for i, b := range bars {
			closes[i] = b.close
			volumes[i] = b.volume
			if b.high > summary.High {
				summary.High = b.high
			}
			if b.low < summary.Low {
				summary.Low = b.low
			}
			summary.Volume += b.volume
		}

		last := bars[len(bars)-1]
		if summary.LastPrice <= 0 {
			summary.LastPrice = last.close
		}
		if last.timestamp > summary.LastTimestamp {
			summary.LastTimestamp = last.timestamp
		}
		if summary.PreviousClose <= 0 {
			summary.PreviousClose = bars[0].close
		}

		summary.AvgPrice, summary.PriceStdDev = CalculateMeanStd(closes)
		volMean, volStd := CalculateMeanStd(volumes)
		summary.VolumeZScore = CalculateZScore(last.volume, volMean, volStd)
	}

	summary.ChangePercent = CalculateChangePercent(summary.LastPrice, summary.PreviousClose)
	return summary
}
