package interfaces

import "context"

// -----------------------------------------------------------------------------
// IQuoteFetcher retrieves one chart from the market-data provider.
// -----------------------------------------------------------------------------

type IQuoteFetcher interface {

	// FetchChart returns the provider's response body, unparsed.
	FetchChart(ctx context.Context, symbol, rangeStr, interval string) ([]byte, error)
}
