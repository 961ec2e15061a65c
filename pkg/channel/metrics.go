package channel

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cortex",
		Subsystem: "manager",
		Name:      "messages_total",
		Help:      "Messages received by the watch manager, by type.",
	}, []string{"type"})
	metricChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cortex",
		Subsystem: "manager",
		Name:      "changes_total",
		Help:      "Change events routed by the watch manager, by kind.",
	}, []string{"kind"})
	metricClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cortex",
		Subsystem: "manager",
		Name:      "clients",
		Help:      "Connected coordinator clients.",
	})
	metricRegisteredPaths = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cortex",
		Subsystem: "manager",
		Name:      "registered_paths",
		Help:      "Paths registered with the filesystem watcher.",
	})
)
