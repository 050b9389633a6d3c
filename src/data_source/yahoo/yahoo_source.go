package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"quote-proxy/src/interfaces"
	"quote-proxy/src/logger"
	"quote-proxy/src/models"
)

const chartPath = "/v8/finance/chart/"

// YahooChartSource fetches chart history from the Yahoo Finance v8 API.
type YahooChartSource struct {
	BaseURL string
	Network interfaces.INetworkManager
	Logger  *logger.Logger
}

// -----------------------------------------------------------------------------

func NewYahooChartSource(cfg *models.MConfig, netMgr interfaces.INetworkManager, log *logger.Logger) *YahooChartSource {
	return &YahooChartSource{
		BaseURL: strings.TrimRight(cfg.Upstream.BaseURL, "/"),
		Network: netMgr,
		Logger:  log,
	}
}

// -----------------------------------------------------------------------------

// ChartURL builds the chart endpoint for symbol. Query parameters are added
// by the network manager.
func (s *YahooChartSource) ChartURL(symbol string) string {
	return s.BaseURL + chartPath + url.PathEscape(symbol)
}

// -----------------------------------------------------------------------------

// FetchChart returns the body exactly as Yahoo sent it. Shape checks are
// left to the caller so a bad body is never mistaken for a good one.
func (s *YahooChartSource) FetchChart(ctx context.Context, symbol, rangeStr, interval string) ([]byte, error) {
	params := map[string]string{
		"range":    rangeStr,
		"interval": interval,
	}

	body, err := s.Network.Get(ctx, s.ChartURL(symbol), params)
	if err != nil {
		return nil, fmt.Errorf("fetch %s (%s/%s): %w", symbol, rangeStr, interval, err)
	}

	s.Logger.Debug("Fetched %s (%s/%s): %d bytes", symbol, rangeStr, interval, len(body))
	return body, nil
}
