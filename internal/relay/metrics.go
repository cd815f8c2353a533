package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// uploadsTotal counts relay requests.
	// Labels: result (stored, bad_request, store_error)
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "motorqc",
			Subsystem: "relay",
			Name:      "uploads_total",
			Help:      "Total number of upload relay requests by result",
		},
		[]string{"result"},
	)

	uploadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "motorqc",
			Subsystem: "relay",
			Name:      "upload_bytes",
			Help:      "Size of stored CSV objects in bytes",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
		},
	)
)
