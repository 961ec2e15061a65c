package rebuild

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result labels of metricRebuildsTotal.
const (
	resultDispatched    = "dispatched"
	resultSucceeded     = "succeeded"
	resultFailed        = "failed"
	resultDropped       = "dropped"
	resultDispatchError = "dispatch_error"
)

var metricRebuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "cortex",
	Subsystem: "watch",
	Name:      "rebuilds_total",
	Help:      "Change events handled by the rebuild trigger, by result.",
}, []string{"result"})
