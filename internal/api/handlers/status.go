package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/shirou/gopsutil/v4/mem"

	"github.com/homegw/homegw-rt/internal/api/models"
	"github.com/homegw/homegw-rt/internal/bridge"
	"github.com/homegw/homegw-rt/pkg/render"
)

type Statuser interface {
	Status(ctx context.Context) (bridge.Status, error)
}

// MemoryReader returns the system memory usage.
type MemoryReader func(ctx context.Context) (*mem.VirtualMemoryStat, error)

func HandleStatus(statuser Statuser, readMemory MemoryReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := statuser.Status(r.Context())
		if err != nil {
			slog.Error("unable to get control loop status", slog.String("error", err.Error()))
			render.EncodeResponse(w, resetStatusCode(err), models.ErrorResponse{Details: err.Error()})
			return
		}

		resp := models.StatusResponse{Status: status}
		if readMemory != nil {
			memory, err := readMemory(r.Context())
			if err != nil {
				slog.Warn("unable to read memory usage", slog.String("error", err.Error()))
			} else {
				resp.Memory = &models.MemoryResponse{Used: memory.Used, Total: memory.Total}
			}
		}
		render.EncodeResponse(w, http.StatusOK, resp)
	}
}
