// Package metrics exposes Prometheus collectors for model lifecycle and
// inference activity. Collectors are registered on the default registry;
// the host application decides whether and how to expose them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	modelLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modelrt",
			Subsystem: "model",
			Name:      "loads_total",
			Help:      "Total number of model load attempts",
		},
		[]string{"backend", "outcome"},
	)

	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modelrt",
			Subsystem: "model",
			Name:      "runs_total",
			Help:      "Total number of inference runs",
		},
		[]string{"backend", "outcome"},
	)

	runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "modelrt",
			Subsystem: "model",
			Name:      "run_duration_seconds",
			Help:      "Duration of inference runs in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	boundRows = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "modelrt",
			Subsystem: "model",
			Name:      "bound_rows",
			Help:      "Batch rows of the currently bound input",
		},
		[]string{"backend"},
	)
)

func init() {
	prometheus.MustRegister(modelLoadsTotal, runsTotal, runDuration, boundRows)
}

// outcomeLabel maps an error to the outcome label value.
func outcomeLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveLoad records one model load attempt.
func ObserveLoad(backendName string, err error) {
	modelLoadsTotal.WithLabelValues(backendName, outcomeLabel(err)).Inc()
}

// ObserveRun records one inference run and its duration.
func ObserveRun(backendName string, start time.Time, err error) {
	runsTotal.WithLabelValues(backendName, outcomeLabel(err)).Inc()
	runDuration.WithLabelValues(backendName).Observe(time.Since(start).Seconds())
}

// SetBoundRows records the batch size of the currently bound input.
func SetBoundRows(backendName string, rows int) {
	boundRows.WithLabelValues(backendName).Set(float64(rows))
}
