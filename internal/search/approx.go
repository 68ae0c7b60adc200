package search

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-kb-retrieval/internal/minhash"
	"github.com/tbourn/go-kb-retrieval/internal/store"
	"github.com/tbourn/go-kb-retrieval/internal/textnorm"
)

const (
	// DefaultApproxCeiling is the corpus size from which the matcher stops
	// scanning every signature and only checks lexical candidates.
	DefaultApproxCeiling = 5000
	// DefaultApproxThreshold is the exclusive lower bound on the Jaccard
	// estimate for a chunk to be reported.
	DefaultApproxThreshold = 0.18
	// DefaultApproxTopN caps the number of approximate hits.
	DefaultApproxTopN = 6
)

type ApproxOption func(*approxConfig)

type approxConfig struct {
	ceiling   int64
	threshold float64
	topN      int
	log       zerolog.Logger
}

// WithCeiling sets the full-scan ceiling. Non-positive values are ignored.
func WithCeiling(n int64) ApproxOption {
	return func(c *approxConfig) {
		if n > 0 {
			c.ceiling = n
		}
	}
}

// WithThreshold sets the similarity threshold. Values outside [0,1) are ignored.
func WithThreshold(th float64) ApproxOption {
	return func(c *approxConfig) {
		if th >= 0 && th < 1 {
			c.threshold = th
		}
	}
}

// WithTopN sets the maximum number of hits. Non-positive values are ignored.
func WithTopN(n int) ApproxOption {
	return func(c *approxConfig) {
		if n > 0 {
			c.topN = n
		}
	}
}

// WithApproxLogger sets the logger used for best-effort failures.
func WithApproxLogger(l zerolog.Logger) ApproxOption {
	return func(c *approxConfig) { c.log = l }
}

// ApproxMatcher finds chunks whose MinHash signature is close to the
// query's, catching paraphrases and near-duplicates that share few exact
// terms.
//
// Below the ceiling every stored signature is compared (linear scan). At or
// above it only the supplied candidate ids are compared, using the
// signature stored on each chunk, so cost stays bounded by the lexical
// shortlist. There is no bucketed (banded LSH) index.
type ApproxMatcher struct {
	st  store.Store
	gen *minhash.Generator
	cfg approxConfig
}

// NewApproxMatcher returns a matcher using gen for query signatures. gen
// must match the parameters the corpus signatures were built with.
func NewApproxMatcher(st store.Store, gen *minhash.Generator, opts ...ApproxOption) *ApproxMatcher {
	cfg := approxConfig{
		ceiling:   DefaultApproxCeiling,
		threshold: DefaultApproxThreshold,
		topN:      DefaultApproxTopN,
		log:       zerolog.Nop(),
	}
	for _, o := range opts {
		o(&cfg)
	}
	return &ApproxMatcher{st: st, gen: gen, cfg: cfg}
}

// Match returns up to topN chunks whose estimated Jaccard similarity with
// query exceeds the threshold, best first. Hit.Score carries the estimate.
// candidates is only consulted when the corpus is at or above the ceiling.
//
// A query with no shingles and an empty corpus both yield no hits.
func (m *ApproxMatcher) Match(ctx context.Context, query string, candidates []string) ([]Hit, error) {
	shingles := m.gen.Shingles(query)
	if len(shingles) == 0 {
		return nil, nil
	}
	total, err := m.st.Count(ctx, store.Chunks)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	if total == 0 {
		return nil, nil
	}
	qsig := m.gen.Signature(shingles)

	var scored []Hit
	keep := func(id string, sig []uint32) {
		if est := minhash.JaccardEstimate(qsig, sig); est > m.cfg.threshold {
			scored = append(scored, Hit{ID: id, Score: est})
		}
	}

	if total < m.cfg.ceiling {
		err := m.st.ScanSignatures(ctx, func(id string, sig []uint32) bool {
			keep(id, sig)
			return true
		})
		if err != nil {
			return nil, fmt.Errorf("scan signatures: %w", err)
		}
	} else {
		for _, id := range textnorm.Unique(candidates) {
			ch, err := m.st.GetChunk(ctx, id)
			if err != nil {
				m.cfg.log.Warn().Err(err).Str("chunk_id", id).Msg("candidate read failed; skipped")
				continue
			}
			keep(ch.ID, ch.Signature)
		}
	}

	sortHits(scored)
	if len(scored) > m.cfg.topN {
		scored = scored[:m.cfg.topN]
	}

	out := make([]Hit, 0, len(scored))
	for _, h := range scored {
		ch, err := m.st.GetChunk(ctx, h.ID)
		if err != nil {
			m.cfg.log.Warn().Err(err).Str("chunk_id", h.ID).Msg("matched chunk read failed; skipped")
			continue
		}
		h.Title, h.Text = ch.Title, ch.Text
		out = append(out, h)
	}
	return out, nil
}
