// Package search implements retrieval over a store.Store: an inverted index
// with IDF-weighted lexical scoring, a MinHash approximate matcher, and the
// merger that combines their results with dictionary hits.
//
// Properties kept by every path:
//
//   - Deterministic ordering (score descending, ties by id ascending)
//   - No full-corpus scan on the lexical path; only postings of query terms
//   - Best effort on storage failures: bad reads are logged and skipped
//
// The index holds no state of its own beyond configuration, so a single
// Index is safe for concurrent queries. Writers must be serialized by the
// caller.
package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-kb-retrieval/internal/store"
	"github.com/tbourn/go-kb-retrieval/internal/textnorm"
)

const (
	// DefaultTopK is used when a caller passes a non-positive topK.
	DefaultTopK = 6
	// DefaultShortlistFactor multiplies topK to size the candidate shortlist
	// that is refined by term overlap.
	DefaultShortlistFactor = 8
)

// Hit is a ranked chunk.
type Hit struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	shortlistFactor int
	log             zerolog.Logger
}

func defaultConfig() config {
	return config{
		shortlistFactor: DefaultShortlistFactor,
		log:             zerolog.Nop(),
	}
}

// WithShortlistFactor sets the shortlist multiplier. Values below 1 are ignored.
func WithShortlistFactor(n int) Option {
	return func(c *config) {
		if n >= 1 {
			c.shortlistFactor = n
		}
	}
}

// WithLogger sets the logger used for best-effort failures.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) { c.log = l }
}

// ----------------------------------------------------------------------------
// Index

// Index maintains posting lists in a store and scores queries against them.
type Index struct {
	st  store.Store
	cfg config
}

// NewIndex returns an Index over st.
func NewIndex(st store.Store, opts ...Option) *Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &Index{st: st, cfg: cfg}
}

// Add records id in the posting list of every unique term of text. Terms
// that only occur in previousText (the chunk's text before a re-import) lose
// id. Adding the same (id, text) twice leaves the postings unchanged.
//
// A failed posting read or write affects only that term: the remaining
// terms are still processed and all failures are returned joined.
func (x *Index) Add(ctx context.Context, id, text, previousText string) error {
	terms := textnorm.Terms(text)
	var errs []error

	for _, term := range terms {
		ids, err := x.posting(ctx, term)
		if err != nil {
			errs = append(errs, fmt.Errorf("read posting %q: %w", term, err))
			continue
		}
		if contains(ids, id) {
			continue
		}
		if err := x.st.PutPosting(ctx, term, append(ids, id)); err != nil {
			errs = append(errs, fmt.Errorf("write posting %q: %w", term, err))
		}
	}

	if previousText != "" {
		current := make(map[string]struct{}, len(terms))
		for _, t := range terms {
			current[t] = struct{}{}
		}
		for _, term := range textnorm.Terms(previousText) {
			if _, still := current[term]; still {
				continue
			}
			ids, err := x.posting(ctx, term)
			if err != nil {
				errs = append(errs, fmt.Errorf("read posting %q: %w", term, err))
				continue
			}
			kept := remove(ids, id)
			if len(kept) == len(ids) {
				continue
			}
			if err := x.st.PutPosting(ctx, term, kept); err != nil {
				errs = append(errs, fmt.Errorf("write posting %q: %w", term, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Query normalizes q and runs Search over its unique terms.
func (x *Index) Query(ctx context.Context, q string, topK int) ([]Hit, error) {
	return x.Search(ctx, textnorm.Terms(q), topK)
}

// QueryShortlist is Query that also returns the ids of the IDF shortlist
// (up to topK*shortlistFactor, best first) the hits were refined from.
// Approximate matching over a large corpus uses them as its candidates.
func (x *Index) QueryShortlist(ctx context.Context, q string, topK int) ([]Hit, []string, error) {
	return x.rank(ctx, textnorm.Terms(q), topK)
}

// Search ranks chunks by summed IDF weight of the matched query terms,
// idf = ln(1 + total/max(1, |postings|)). The best topK*shortlistFactor
// candidates are loaded and refined by overlap/(1+|chunk term set|) before
// the final cut to topK.
//
// Terms without a posting list contribute nothing. An error is returned only
// when the corpus size cannot be read.
func (x *Index) Search(ctx context.Context, terms []string, topK int) ([]Hit, error) {
	hits, _, err := x.rank(ctx, terms, topK)
	return hits, err
}

func (x *Index) rank(ctx context.Context, terms []string, topK int) ([]Hit, []string, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	terms = textnorm.Unique(terms)
	if len(terms) == 0 {
		return nil, nil, nil
	}

	total, err := x.st.Count(ctx, store.Chunks)
	if err != nil {
		return nil, nil, fmt.Errorf("count chunks: %w", err)
	}
	if total == 0 {
		return nil, nil, nil
	}

	scores := make(map[string]float64)
	for _, term := range terms {
		ids, err := x.st.GetPosting(ctx, term)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			x.cfg.log.Warn().Err(err).Str("term", term).Msg("posting read failed; term skipped")
			continue
		}
		if len(ids) == 0 {
			continue
		}
		idf := math.Log(1 + float64(total)/float64(max(1, len(ids))))
		for _, id := range ids {
			scores[id] += idf
		}
	}
	if len(scores) == 0 {
		return nil, nil, nil
	}

	shortlist := make([]Hit, 0, len(scores))
	for id, s := range scores {
		shortlist = append(shortlist, Hit{ID: id, Score: s})
	}
	sortHits(shortlist)
	if n := topK * x.cfg.shortlistFactor; len(shortlist) > n {
		shortlist = shortlist[:n]
	}
	ids := make([]string, len(shortlist))
	for i, h := range shortlist {
		ids[i] = h.ID
	}

	refined := make([]Hit, 0, len(shortlist))
	for _, h := range shortlist {
		ch, err := x.st.GetChunk(ctx, h.ID)
		if err != nil {
			x.cfg.log.Warn().Err(err).Str("chunk_id", h.ID).Msg("chunk read failed; candidate dropped")
			continue
		}
		set := textnorm.TermSet(ch.Text)
		overlap := 0
		for _, t := range terms {
			if _, ok := set[t]; ok {
				overlap++
			}
		}
		refined = append(refined, Hit{
			ID:    ch.ID,
			Title: ch.Title,
			Text:  ch.Text,
			Score: h.Score + float64(overlap)/float64(1+len(set)),
		})
	}
	sortHits(refined)
	if len(refined) > topK {
		refined = refined[:topK]
	}
	return refined, ids, nil
}

// posting returns the posting list of term, treating a missing list as empty.
func (x *Index) posting(ctx context.Context, term string) ([]string, error) {
	ids, err := x.st.GetPosting(ctx, term)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return ids, err
}

// ----------------------------------------------------------------------------
// Helpers

// sortHits orders by score descending, then id ascending.
func sortHits(hs []Hit) {
	sort.Slice(hs, func(a, b int) bool {
		if hs[a].Score != hs[b].Score {
			return hs[a].Score > hs[b].Score
		}
		return hs[a].ID < hs[b].ID
	})
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func remove(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
