package interfaces

import "quote-proxy/src/models"

// -----------------------------------------------------------------------------
// IQuotePublisher pushes freshly fetched quotes to live listeners.
// -----------------------------------------------------------------------------

type IQuotePublisher interface {
	// Publish must not block the caller.
	Publish(event models.MQuoteEvent)
}
