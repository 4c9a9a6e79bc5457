// Package metrics holds the Prometheus collectors of the daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "homegw_rt"

// Label values of Requests.
const (
	OpReset  = "reset"
	OpStatus = "status"
	OpOther  = "other"

	ResultOK               = "ok"
	ResultUnknownPin       = "unknown_pin"
	ResultAlreadyResetting = "already_resetting"
	ResultHeapFull         = "heap_full"
	ResultLineWrite        = "line_write"
	ResultUnsupported      = "unsupported"
	ResultError            = "error"
)

// Metrics is safe to update from the real-time threads: every collector is a
// plain atomic counter or gauge.
type Metrics struct {
	LoopIterations     prometheus.Counter
	BlinkWriteErrors   prometheus.Counter
	Requests           *prometheus.CounterVec
	Handled            RequestCounters
	ResetsReleased     prometheus.Counter
	ReleaseWriteErrors prometheus.Counter
	PendingResets      prometheus.Gauge
	DrainBudgetHits    prometheus.Counter

	OOMEvents prometheus.Counter
	OOMKilled prometheus.Counter
}

// RequestCounters are the series of Requests the control loop updates,
// resolved once so the loop thread never hashes label values.
type RequestCounters struct {
	ResetOK               prometheus.Counter
	ResetUnknownPin       prometheus.Counter
	ResetAlreadyResetting prometheus.Counter
	ResetHeapFull         prometheus.Counter
	ResetLineWrite        prometheus.Counter
	ResetError            prometheus.Counter
	StatusOK              prometheus.Counter
	Unsupported           prometheus.Counter
}

// New registers every collector on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		LoopIterations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loop_iterations_total",
			Help:      "Control loop iterations run.",
		}),
		BlinkWriteErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blink_write_errors_total",
			Help:      "Failed writes to liveness blink lines.",
		}),
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bridge_requests_total",
			Help:      "Bridge requests handled by the control loop, by operation and result.",
		}, []string{"op", "result"}),
		ResetsReleased: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resets_released_total",
			Help:      "Reset lines released after their hold expired.",
		}),
		ReleaseWriteErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "release_write_errors_total",
			Help:      "Failed writes when releasing a reset line.",
		}),
		PendingResets: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_resets",
			Help:      "Reset lines currently held active.",
		}),
		DrainBudgetHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drain_budget_exceeded_total",
			Help:      "Request drain phases cut short by their time budget.",
		}),
		OOMEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oom_pressure_events_total",
			Help:      "Memory pressure notifications received.",
		}),
		OOMKilled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oom_killed_processes_total",
			Help:      "Unprivileged processes killed on memory pressure.",
		}),
	}
	m.Handled = RequestCounters{
		ResetOK:               m.Requests.WithLabelValues(OpReset, ResultOK),
		ResetUnknownPin:       m.Requests.WithLabelValues(OpReset, ResultUnknownPin),
		ResetAlreadyResetting: m.Requests.WithLabelValues(OpReset, ResultAlreadyResetting),
		ResetHeapFull:         m.Requests.WithLabelValues(OpReset, ResultHeapFull),
		ResetLineWrite:        m.Requests.WithLabelValues(OpReset, ResultLineWrite),
		ResetError:            m.Requests.WithLabelValues(OpReset, ResultError),
		StatusOK:              m.Requests.WithLabelValues(OpStatus, ResultOK),
		Unsupported:           m.Requests.WithLabelValues(OpOther, ResultUnsupported),
	}
	return m
}

// Discard returns metrics registered nowhere.
func Discard() *Metrics {
	return New(prometheus.NewRegistry())
}
