package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/homegw/homegw-rt/internal/api/models"
	"github.com/homegw/homegw-rt/internal/bridge"
	"github.com/homegw/homegw-rt/pkg/render"
)

// DefaultResetHold is how long a reset line stays asserted for requests
// coming through the API.
const DefaultResetHold = time.Second

type PinResetter interface {
	Reset(ctx context.Context, pin string, hold time.Duration) error
}

func HandlePinReset(resetter PinResetter, hold time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		if err := resetter.Reset(r.Context(), name, hold); err != nil {
			slog.Warn("pin reset failed", slog.String("pin_name", name), slog.String("error", err.Error()))
			render.EncodeResponse(w, resetStatusCode(err), models.ErrorResponse{Details: err.Error()})
			return
		}
		slog.Info("pin reset", slog.String("pin_name", name), slog.Duration("hold", hold))
		render.EncodeResponse(w, http.StatusOK, models.ResetResponse{Pin: name, Status: "ok"})
	}
}

func resetStatusCode(err error) int {
	switch {
	case errors.Is(err, bridge.ErrUnknownPin):
		return http.StatusNotFound
	case errors.Is(err, bridge.ErrAlreadyResetting):
		return http.StatusConflict
	case errors.Is(err, bridge.ErrHeapFull), errors.Is(err, bridge.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
