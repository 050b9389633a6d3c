package server

import (
	"errors"
	"net/http"

	"quote-proxy/src/helpers"
)

// Client-facing messages
const (
	MsgRateLimited  = "Too many requests to Yahoo, please try again later."
	MsgInvalidShape = "Invalid data structure from Yahoo"
	MsgFetchFailed  = "Failed to fetch data"
)

// -----------------------------------------------------------------------------

// errorResponse maps an error from the quote service to a status and message.
// Only validation, rate limit and shape errors are described to the client.
func errorResponse(err error) (int, string) {
	var validation *helpers.ValidationError
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, validation.Message
	case helpers.IsRateLimited(err):
		return http.StatusTooManyRequests, MsgRateLimited
	case helpers.IsUpstreamShape(err):
		return http.StatusInternalServerError, MsgInvalidShape
	default:
		return http.StatusInternalServerError, MsgFetchFailed
	}
}
