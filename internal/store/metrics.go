package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// recordsGauge tracks the current number of stored records.
	recordsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "motorqc",
			Subsystem: "store",
			Name:      "records",
			Help:      "Number of quality-control records currently in the store",
		},
	)

	// mutationsTotal counts store mutations.
	// Labels: op (add, clear)
	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "motorqc",
			Subsystem: "store",
			Name:      "mutations_total",
			Help:      "Total number of store mutations by operation",
		},
		[]string{"op"},
	)

	persistErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "motorqc",
			Subsystem: "store",
			Name:      "persist_errors_total",
			Help:      "Total number of failed durable writes",
		},
	)
)
