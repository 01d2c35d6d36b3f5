package lightclient

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	appliedUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lightclient_applied_updates_total",
		Help: "The number of light client updates applied to the store",
	})
	rejectedUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lightclient_rejected_updates_total",
		Help: "The number of light client updates that failed verification, by error class",
	}, []string{"class"})
	finalizedSlotGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lightclient_finalized_slot",
		Help: "The slot of the latest finalized header in the store",
	})
	periodGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lightclient_sync_committee_period",
		Help: "The sync committee period of the store",
	})
)
