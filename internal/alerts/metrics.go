package alerts

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	alertsFiredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "raidwatch",
			Subsystem: "alerts",
			Name:      "fired_total",
			Help:      "Total number of alerts fired by severity.",
		},
		[]string{"severity"},
	)

	alertsResolvedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "raidwatch",
			Subsystem: "alerts",
			Name:      "resolved_total",
			Help:      "Total number of alerts whose condition cleared.",
		},
	)

	alertsAcknowledgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "raidwatch",
			Subsystem: "alerts",
			Name:      "acknowledged_total",
			Help:      "Total number of alerts acknowledged.",
		},
	)
)
