package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRetrievalPath(t *testing.T) {
	before := testutil.ToFloat64(retrievalHits.WithLabelValues(PathLexical))
	beforeErr := testutil.ToFloat64(retrievalErrors.WithLabelValues(PathApprox))

	ObserveRetrievalPath(PathLexical, 3, false)
	ObserveRetrievalPath(PathApprox, 0, true)

	if got := testutil.ToFloat64(retrievalHits.WithLabelValues(PathLexical)) - before; got != 3 {
		t.Fatalf("lexical hits delta = %v, want 3", got)
	}
	if got := testutil.ToFloat64(retrievalErrors.WithLabelValues(PathApprox)) - beforeErr; got != 1 {
		t.Fatalf("approx errors delta = %v, want 1", got)
	}
}

func TestObserveImport(t *testing.T) {
	before := testutil.ToFloat64(importedChunks)
	beforeSig := testutil.ToFloat64(writeFailures.WithLabelValues(WriteSignature))

	ObserveImport(4, 0, 2, 0)
	ObserveRetrieval(5 * time.Millisecond)

	if got := testutil.ToFloat64(importedChunks) - before; got != 4 {
		t.Fatalf("imported delta = %v, want 4", got)
	}
	if got := testutil.ToFloat64(writeFailures.WithLabelValues(WriteSignature)) - beforeSig; got != 2 {
		t.Fatalf("signature failures delta = %v, want 2", got)
	}
	if n := testutil.CollectAndCount(retrievalLatency); n != 1 {
		t.Fatalf("latency collector count = %d", n)
	}
}
