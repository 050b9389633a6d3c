package interfaces

import "context"

// -----------------------------------------------------------------------------
// IWatchlistResolver expands watchlist entries that point at stored symbol
// lists. Stores that can hold such lists implement it.
// -----------------------------------------------------------------------------

type IWatchlistResolver interface {
	ResolveSymbols(ctx context.Context, entries []string) ([]string, error)
}
