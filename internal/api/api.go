package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/homegw/homegw-rt/internal/api/handlers"
	"github.com/homegw/homegw-rt/internal/bridge"
)

// ControlLoop is what the API needs from the request bridge.
type ControlLoop interface {
	Reset(ctx context.Context, pin string, hold time.Duration) error
	Status(ctx context.Context) (bridge.Status, error)
}

type Options struct {
	Version string
	// ResetHold defaults to handlers.DefaultResetHold.
	ResetHold time.Duration
	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer
	// ReadMemory defaults to the host's virtual memory statistics.
	ReadMemory handlers.MemoryReader
}

func NewHTTPRouter(loop ControlLoop, opts Options) http.Handler {
	if opts.ResetHold <= 0 {
		opts.ResetHold = handlers.DefaultResetHold
	}
	if opts.ReadMemory == nil {
		opts.ReadMemory = mem.VirtualMemoryWithContext
	}

	mux := http.NewServeMux()

	mux.Handle("GET /v1/version", handlers.HandlerVersion(opts.Version))
	mux.Handle("GET /v1/status", handlers.HandleStatus(loop, opts.ReadMemory))
	mux.Handle("POST /v1/pins/{name}/reset", handlers.HandlePinReset(loop, opts.ResetHold))

	// The legacy routes never checked the method.
	mux.Handle("/ext_reset/{name}", handlers.HandleLegacyReset(loop, opts.ResetHold))
	mux.Handle("/hello/{name}", handlers.HandleHello())

	if opts.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	return mux
}
