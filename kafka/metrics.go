package kafka

import (
	// External Packages
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var loopMetrics = struct {
	Records       *prometheus.CounterVec
	HandlerErrors *prometheus.CounterVec
	PollErrors    *prometheus.CounterVec
	Bursts        *prometheus.CounterVec
	Assignments   *prometheus.CounterVec
}{
	Records: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "station_stream", Subsystem: "consumer", Name: "records_total",
			Help: "Records handed to the message handler",
		},
		[]string{"pattern"},
	),
	HandlerErrors: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "station_stream", Subsystem: "consumer", Name: "handler_errors_total",
			Help: "Records the message handler reported as failed",
		},
		[]string{"pattern"},
	),
	PollErrors: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "station_stream", Subsystem: "consumer", Name: "poll_errors_total",
			Help: "Polls that ended in a transport or decode error",
		},
		[]string{"pattern", "kind"},
	),
	Bursts: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "station_stream", Subsystem: "consumer", Name: "bursts_total",
			Help: "Drain bursts started by the poll loop",
		},
		[]string{"pattern"},
	),
	Assignments: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "station_stream", Subsystem: "consumer", Name: "assignments_total",
			Help: "Partition assignments received from the group",
		},
		[]string{"pattern"},
	),
}
