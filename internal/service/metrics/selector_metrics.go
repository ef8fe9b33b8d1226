package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	SelectorLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "overdrive",
			Subsystem: "selector",
			Name:      "latency_seconds",
			Help:      "Latency of selector calls",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"result"},
	)

	SelectorAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "overdrive",
			Subsystem: "selector",
			Name:      "attempts_total",
			Help:      "Selector call attempts by result",
		},
		[]string{"result"},
	)

	ChartRenders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "overdrive",
			Subsystem: "charts",
			Name:      "renders_total",
			Help:      "Chart render attempts by result",
		},
		[]string{"result"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(SelectorLatency, SelectorAttempts, ChartRenders)
	})
}
