// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus collectors for transitions, mask applications and priority
// escalation.

package control

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "coreparker"

// Mask application results.
const (
	resultOK       = "ok"
	resultNotFound = "not_found"
	resultError    = "error"
)

// Metrics groups every collector of the package.
type Metrics struct {
	Transitions    *prometheus.CounterVec
	MaskApplied    *prometheus.CounterVec
	LookupFailures prometheus.Counter
	Escalations    prometheus.Counter
	Reassertions   prometheus.Counter
	CrashResets    prometheus.Counter
	LoadState      prometheus.Gauge
	CoresToPark    prometheus.Gauge
	Realtime       prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// yields working but unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "controller",
			Name:      "transitions_total",
			Help:      "Load-state transition events handled, by event.",
		}, []string{"event"}),
		MaskApplied: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "controller",
			Name:      "mask_applications_total",
			Help:      "Affinity mask applications by target state and result.",
		}, []string{"state", "result"}),
		LookupFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "process",
			Name:      "lookup_failures_total",
			Help:      "Mutations skipped because the game process was not found.",
		}),
		Escalations: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "watchdog",
			Name:      "escalations_total",
			Help:      "Times the game was raised to realtime priority during a hung load.",
		}),
		Reassertions: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "watchdog",
			Name:      "reassertions_total",
			Help:      "Times an external priority reset was undone.",
		}),
		CrashResets: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "watchdog",
			Name:      "crash_resets_total",
			Help:      "Loads abandoned because the game disappeared while escalated.",
		}),
		LoadState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "controller",
			Name:      "loading",
			Help:      "1 while a load is in progress, 0 otherwise.",
		}),
		CoresToPark: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "controller",
			Name:      "cores_to_park",
			Help:      "Cores removed from the affinity mask during loads.",
		}),
		Realtime: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "watchdog",
			Name:      "realtime",
			Help:      "1 while the game runs at escalated priority.",
		}),
	}
}

// BindTunable keeps the cores_to_park gauge in sync with t.
func (m *Metrics) BindTunable(t *Tunable) {
	m.CoresToPark.Set(float64(t.Get()))
	t.OnChange(func(_, cur int) {
		m.CoresToPark.Set(float64(cur))
	})
}

func boolGauge(g prometheus.Gauge, v bool) {
	if v {
		g.Set(1)
	} else {
		g.Set(0)
	}
}
