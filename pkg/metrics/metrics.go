package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var latencyBuckets = []float64{
	0.001, // 1ms
	0.005, // 5ms
	0.01,  // 10ms
	0.025, // 25ms
	0.05,  // 50ms
	0.1,   // 100ms
	0.25,  // 250ms
	0.5,   // 500ms
	1.0,   // 1s
	2.5,   // 2.5s
	5.0,   // 5s
}

var (
	// EntryIngestDuration tracks the latency of the ingestion pipeline
	EntryIngestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rafl_entry_ingest_duration_seconds",
			Help:    "Duration of entry ingestion requests in seconds",
			Buckets: latencyBuckets,
		},
		[]string{"result"}, // recorded or rejected
	)

	// EntryRejections counts rejected entries by reason code
	EntryRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rafl_entry_rejections_total",
			Help: "Entries rejected by the ingestion pipeline, by reason",
		},
		[]string{"reason"},
	)

	// EntriesRecorded counts recorded entries by source channel
	EntriesRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rafl_entries_recorded_total",
			Help: "Entries recorded, by source",
		},
		[]string{"source"},
	)

	// WinnerDrawDuration tracks the latency of winner draws
	WinnerDrawDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rafl_winner_draw_duration_seconds",
			Help:    "Duration of winner draws in seconds",
			Buckets: latencyBuckets,
		},
		[]string{"result"},
	)

	// PromotionsAutoEnded counts promotions closed by the lifecycle job
	PromotionsAutoEnded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rafl_promotions_auto_ended_total",
			Help: "Promotions moved to ended after their end date passed",
		},
	)
)

// RecordEntryIngest records the duration of an ingestion request
func RecordEntryIngest(result string, duration float64) {
	EntryIngestDuration.WithLabelValues(result).Observe(duration)
}

// RecordEntryRejection counts a rejection with its reason code
func RecordEntryRejection(reason string) {
	EntryRejections.WithLabelValues(reason).Inc()
}

// RecordEntryRecorded counts a recorded entry
func RecordEntryRecorded(source string) {
	EntriesRecorded.WithLabelValues(source).Inc()
}

// RecordWinnerDraw records the duration of a draw
func RecordWinnerDraw(result string, duration float64) {
	WinnerDrawDuration.WithLabelValues(result).Observe(duration)
}

// RecordPromotionsAutoEnded adds n auto-ended promotions
func RecordPromotionsAutoEnded(n int) {
	PromotionsAutoEnded.Add(float64(n))
}
