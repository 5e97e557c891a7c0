package logentries

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the delivery pipeline counters. Each Client gets its own set
// so several clients (and tests) can register into separate registries.
type Metrics struct {
	LinesEnqueued   prometheus.Counter
	LinesDropped    prometheus.Counter
	LinesSent       prometheus.Counter
	WriteFailures   prometheus.Counter
	ConnectFailures prometheus.Counter
	Connects        prometheus.Counter
	QueueDepth      prometheus.GaugeFunc
	State           prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg when it is
// not nil. queueDepth is sampled at scrape time.
func NewMetrics(reg prometheus.Registerer, queueDepth func() float64) *Metrics {
	m := &Metrics{
		LinesEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "logentries",
			Name:      "lines_enqueued_total",
			Help:      "Lines accepted into the event queue.",
		}),
		LinesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "logentries",
			Name:      "lines_dropped_total",
			Help:      "Lines discarded by the queue-full policy.",
		}),
		LinesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "logentries",
			Name:      "lines_sent_total",
			Help:      "Lines written to the collector connection.",
		}),
		WriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "logentries",
			Name:      "write_failures_total",
			Help:      "Socket writes that failed and forced a reconnect.",
		}),
		ConnectFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "logentries",
			Name:      "connect_failures_total",
			Help:      "Failed connection attempts.",
		}),
		Connects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "logentries",
			Name:      "connects_total",
			Help:      "Successful connection attempts.",
		}),
		QueueDepth: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "logentries",
			Name:      "queue_depth",
			Help:      "Lines currently waiting in the event queue.",
		}, queueDepth),
		State: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "logentries",
			Name:      "worker_state",
			Help:      "Delivery worker state: 0 disconnected, 1 connecting, 2 connected, 3 stopped.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.LinesEnqueued,
			m.LinesDropped,
			m.LinesSent,
			m.WriteFailures,
			m.ConnectFailures,
			m.Connects,
			m.QueueDepth,
			m.State,
		)
	}
	return m
}
