package scheduler

import "github.com/prometheus/client_golang/prometheus"

var (
	admissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vramd",
			Subsystem: "scheduler",
			Name:      "admissions_total",
			Help:      "Load request outcomes",
		},
		[]string{"outcome"},
	)

	evictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vramd",
			Subsystem: "scheduler",
			Name:      "evictions_total",
			Help:      "Models evicted to make room",
		},
	)

	loadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "vramd",
			Subsystem: "scheduler",
			Name:      "load_duration_seconds",
			Help:      "Duration of physical model loads",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	sweepReclaimsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vramd",
			Subsystem: "scheduler",
			Name:      "sweep_reclaims_total",
			Help:      "State reclaimed by the staleness reaper",
		},
		[]string{"kind"},
	)

	vramCapacityBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vramd",
			Subsystem: "scheduler",
			Name:      "vram_capacity_bytes",
			Help:      "Configured VRAM capacity",
		},
	)

	vramUsedBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vramd",
			Subsystem: "scheduler",
			Name:      "vram_used_bytes",
			Help:      "VRAM claimed by resident and reserved models",
		},
	)

	residentModels = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vramd",
			Subsystem: "scheduler",
			Name:      "resident_models",
			Help:      "Models in any state other than unloaded",
		},
	)
)

func init() {
	prometheus.MustRegister(
		admissionsTotal, evictionsTotal, loadDuration, sweepReclaimsTotal,
		vramCapacityBytes, vramUsedBytes, residentModels,
	)
}
