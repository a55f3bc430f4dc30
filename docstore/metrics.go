package docstore

import "github.com/prometheus/client_golang/prometheus"

// Metrics vectors for the bulk write engine, in the same spirit as the
// teacher's index_manager.go ReindexTaskCount/ReindexDuration vectors —
// applied here to bulkWrite/bulkAddRevisions instead of reindexing.
var (
	bulkWriteEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docstore",
		Subsystem: "write_engine",
		Name:      "events_total",
	}, []string{"collection", "operation"})

	bulkWriteConflicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docstore",
		Subsystem: "write_engine",
		Name:      "conflicts_total",
	}, []string{"collection"})

	bulkWriteDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "docstore",
		Subsystem: "write_engine",
		Name:      "bulk_duration_seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"collection", "kind"})

	changesSequence = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "docstore",
		Subsystem: "write_engine",
		Name:      "changes_sequence",
	}, []string{"collection"})
)

func init() {
	prometheus.MustRegister(bulkWriteEvents, bulkWriteConflicts, bulkWriteDuration, changesSequence)
}

func observeBulk(collection string, kind string, events []ChangeEvent, conflicts int, seconds float64) {
	bulkWriteDuration.WithLabelValues(collection, kind).Observe(seconds)
	if conflicts > 0 {
		bulkWriteConflicts.WithLabelValues(collection).Add(float64(conflicts))
	}
	for _, e := range events {
		bulkWriteEvents.WithLabelValues(collection, string(e.Operation)).Inc()
	}
}

func observeSequence(collection string, seq uint64) {
	changesSequence.WithLabelValues(collection).Set(float64(seq))
}
