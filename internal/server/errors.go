package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/Sternrassler/scoreboard-cache/pkg/cache"
	"github.com/Sternrassler/scoreboard-cache/pkg/client"
)

type errorBody struct {
	Error string `json:"error"`
	Class string `json:"class,omitempty"`
}

// statusFor maps a fetch or store error to an HTTP status.
func statusFor(err error) (int, string) {
	var upstream *client.UpstreamError
	switch {
	case errors.Is(err, client.ErrUnknownCacheType),
		errors.Is(err, client.ErrMissingParam),
		errors.Is(err, cache.ErrInvalidKey):
		return http.StatusBadRequest, ""
	case errors.Is(err, client.ErrRateLimited):
		return http.StatusTooManyRequests, string(client.ErrorClassRateLimit)
	case errors.Is(err, cache.ErrPersistence):
		return http.StatusServiceUnavailable, "persistence"
	case errors.As(err, &upstream):
		if upstream.ErrorClass == client.ErrorClassRateLimit {
			return http.StatusTooManyRequests, string(upstream.ErrorClass)
		}
		return http.StatusBadGateway, string(upstream.ErrorClass)
	case errors.Is(err, client.ErrContextCancelled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, ""
	default:
		return http.StatusInternalServerError, ""
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, class := statusFor(err)
	event := hlog.FromRequest(r).Warn()
	if status >= http.StatusInternalServerError {
		event = hlog.FromRequest(r).Error()
	}
	event.Err(err).Int("status", status).Msg("Request failed")

	writeJSON(w, status, errorBody{Error: err.Error(), Class: class})
}
