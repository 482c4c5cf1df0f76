// internal/relay/metrics.go
package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	exchangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_exchanges_total",
		Help: "Wire-protocol exchanges by result.",
	}, []string{"result"})

	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_recovery_retries_total",
		Help: "Recovery worker retry attempts.",
	})

	recoveriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_recoveries_total",
		Help: "Recovery retries that succeeded.",
	})

	forwardsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_forwards_total",
		Help: "Backend deliveries by result.",
	}, []string{"result"})

	requeuesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_forward_requeues_total",
		Help: "Failed deliveries re-enqueued for another pass.",
	})

	droppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_dropped_total",
		Help: "Messages and jobs shed on full queues.",
	}, []string{"queue"})
)

// QueueCollectors returns depth gauges for this relay instance. They
// are registered by the caller; the counters above live on the default
// registry so multiple relay instances (tests) share them safely.
func (r *Relay) QueueCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "relay_recovery_queue_depth",
			Help: "Jobs waiting in the recovery queue.",
		}, func() float64 { return float64(r.RecoveryDepth()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "relay_forward_queue_depth",
			Help: "Messages waiting in the forward queue.",
		}, func() float64 { return float64(r.ForwardDepth()) }),
	}
}
