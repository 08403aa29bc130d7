package session

import "github.com/prometheus/client_golang/prometheus"

var (
	tagsReadTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rfidd",
			Subsystem: "session",
			Name:      "tags_read_total",
			Help:      "Normalized tag reads delivered to the host",
		},
	)

	tuningStepsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rfidd",
			Subsystem: "session",
			Name:      "tuning_steps_total",
			Help:      "Radio configurations applied by the auto-tuner",
		},
	)

	accessOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rfidd",
			Subsystem: "session",
			Name:      "access_operations_total",
			Help:      "Tag access operations by kind and result",
		},
		[]string{"kind", "result"},
	)

	inventoryStartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rfidd",
			Subsystem: "session",
			Name:      "inventory_starts_total",
			Help:      "Inventory start commands by result (ok, rejected, coalesced)",
		},
		[]string{"result"},
	)

	connectedGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rfidd",
			Subsystem: "session",
			Name:      "connected",
			Help:      "1 while the reader is connected",
		},
	)

	scanningGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rfidd",
			Subsystem: "session",
			Name:      "scanning",
			Help:      "1 while inventory scanning is active",
		},
	)
)

func init() {
	prometheus.MustRegister(tagsReadTotal, tuningStepsTotal, accessOperationsTotal,
		inventoryStartsTotal, connectedGauge, scanningGauge)
}

func boolGauge(g prometheus.Gauge, v bool) {
	if v {
		g.Set(1)
		return
	}
	g.Set(0)
}
