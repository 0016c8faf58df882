package playback

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	itemsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "herald_playback_enqueued_total",
		Help: "Items accepted into a sink queue",
	}, []string{"sink"})

	itemsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "herald_playback_started_total",
		Help: "Items dispatched to a sink",
	}, []string{"sink"})

	itemsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "herald_playback_completed_total",
		Help: "Completion signals processed, by result",
	}, []string{"sink", "result"})

	itemsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "herald_playback_dropped_total",
		Help: "Items dropped without being played, by reason",
	}, []string{"sink", "reason"})

	pendingItems = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "herald_playback_pending",
		Help: "Items waiting in a sink queue",
	}, []string{"sink"})

	playbackSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "herald_playback_duration_seconds",
		Help:    "Time from dispatch to processed completion",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	})
)
