package controlplane

import (
	"errors"
	"net/http"

	"github.com/fentz26/stockwatch/internal/analysis"
	"github.com/fentz26/stockwatch/internal/annotate"
	"github.com/fentz26/stockwatch/internal/workerpool"
)

// Sentinel errors for control plane operations.
var (
	ErrNoWatchlist = errors.New("watchlist editing is not configured")
	ErrNoAnnotator = errors.New("watchlist annotation is not configured")
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, analysis.ErrInvalidSymbol),
		errors.Is(err, analysis.ErrInvalidReportKind),
		errors.Is(err, annotate.ErrEmptyWatchlist):
		return http.StatusBadRequest
	case errors.Is(err, analysis.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, workerpool.ErrPoolStopped),
		errors.Is(err, ErrNoWatchlist),
		errors.Is(err, ErrNoAnnotator):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
