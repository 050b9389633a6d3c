package interfaces

import (
	"context"
	"time"

	"quote-proxy/src/models"
)

// -----------------------------------------------------------------------------
// ICacheStore defines the contract for the durable quote cache.
// -----------------------------------------------------------------------------

type ICacheStore interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the cache table. Existing rows are kept.
	Initialize(ctx context.Context) error

	// -----------------------------------------------------------------------------

	// Get returns the row for the triple, or helpers.ErrQuoteNotFound.
	Get(ctx context.Context, symbol, rangeStr, interval string) (models.MCachedQuote, error)

	// -----------------------------------------------------------------------------

	// Upsert inserts the row or replaces the existing one for the same triple.
	Upsert(ctx context.Context, quote models.MCachedQuote) error

	// -----------------------------------------------------------------------------

	// PurgeOlderThan deletes rows last updated before cutoff and returns how many went.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// -----------------------------------------------------------------------------

	// Ping checks the backing store is reachable.
	Ping(ctx context.Context) error

	// -----------------------------------------------------------------------------

	// Close the store connection
	Close() error
}
