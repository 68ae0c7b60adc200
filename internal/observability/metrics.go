package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Retrieval paths used as the "path" label.
const (
	PathDictionary = "dictionary"
	PathLexical    = "lexical"
	PathApprox     = "approx"
)

// Best-effort write kinds used as the "kind" label.
const (
	WritePosting   = "posting"
	WriteSignature = "signature"
	WriteMeta      = "meta"
)

var (
	retrievalHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kb_retrieval_hits_total",
			Help: "Hits produced per retrieval path before merging.",
		},
		[]string{"path"},
	)

	retrievalErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kb_retrieval_errors_total",
			Help: "Retrieval paths that failed and contributed nothing.",
		},
		[]string{"path"},
	)

	retrievalLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kb_retrieval_duration_seconds",
			Help:    "End-to-end retrieval latency.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	importedChunks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kb_imported_chunks_total",
			Help: "Chunks written by imports.",
		},
	)

	writeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kb_import_write_failures_total",
			Help: "Best-effort import writes that failed.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(retrievalHits, retrievalErrors, retrievalLatency, importedChunks, writeFailures)
}

// ObserveRetrievalPath records the hit count of one retrieval path, or a
// failure when failed is set.
func ObserveRetrievalPath(path string, hits int, failed bool) {
	if failed {
		retrievalErrors.WithLabelValues(path).Inc()
		return
	}
	retrievalHits.WithLabelValues(path).Add(float64(hits))
}

// ObserveRetrieval records the latency of a whole retrieval.
func ObserveRetrieval(d time.Duration) {
	retrievalLatency.Observe(d.Seconds())
}

// ObserveImport records imported chunks and best-effort write failures.
func ObserveImport(imported, postingFailures, signatureFailures, metaFailures int) {
	importedChunks.Add(float64(imported))
	for kind, n := range map[string]int{
		WritePosting:   postingFailures,
		WriteSignature: signatureFailures,
		WriteMeta:      metaFailures,
	} {
		if n > 0 {
			writeFailures.WithLabelValues(kind).Add(float64(n))
		}
	}
}
