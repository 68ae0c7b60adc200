package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-kb-retrieval/internal/config"
	"github.com/tbourn/go-kb-retrieval/internal/domain"
	"github.com/tbourn/go-kb-retrieval/internal/ingest"
	"github.com/tbourn/go-kb-retrieval/internal/matchers"
	"github.com/tbourn/go-kb-retrieval/internal/minhash"
	"github.com/tbourn/go-kb-retrieval/internal/observability"
	"github.com/tbourn/go-kb-retrieval/internal/search"
	"github.com/tbourn/go-kb-retrieval/internal/store"
)

// CorpusStats describes the loaded corpus.
type CorpusStats struct {
	Chunks        int64      `json:"chunks"`
	Postings      int64      `json:"postings"`
	Signatures    int64      `json:"signatures"`
	LastImportAt  *time.Time `json:"last_import_at,omitempty"`
	SignatureSize int        `json:"signature_size"`
	ShingleSize   int        `json:"shingle_size"`
	SeedBase      uint32     `json:"seed_base"`
	Entities      int        `json:"entities"`
	Topics        int        `json:"topics"`
}

type RetrievalOption func(*retrievalOptions)

type retrievalOptions struct {
	kb      *matchers.KnowledgeBase
	imp     config.ImportConfig
	yielder ingest.Yielder
	log     zerolog.Logger
}

// WithKnowledgeBase enables the dictionary path. Without it only the
// lexical and approximate paths contribute.
func WithKnowledgeBase(kb *matchers.KnowledgeBase) RetrievalOption {
	return func(o *retrievalOptions) { o.kb = kb }
}

// WithImportConfig sets batch size and pacing for imports.
func WithImportConfig(c config.ImportConfig) RetrievalOption {
	return func(o *retrievalOptions) { o.imp = c }
}

// WithImportYielder replaces the paced yielder between import batches.
func WithImportYielder(y ingest.Yielder) RetrievalOption {
	return func(o *retrievalOptions) { o.yielder = y }
}

// WithRetrievalLogger sets the logger shared by the index, matcher and importer.
func WithRetrievalLogger(l zerolog.Logger) RetrievalOption {
	return func(o *retrievalOptions) { o.log = l }
}

// RetrievalService is the engine handle: it owns the store, the index, the
// approximate matcher and the importer, and answers Retrieve by merging the
// dictionary, lexical and approximate paths.
//
// Retrieve is safe for concurrent use. Imports and Reset are serialized by
// an internal mutex; a Retrieve running alongside an import may observe a
// partially imported batch.
type RetrievalService struct {
	mu sync.Mutex

	st       store.Store
	gen      *minhash.Generator
	idx      *search.Index
	approx   *search.ApproxMatcher
	importer *ingest.Importer
	kb       *matchers.KnowledgeBase
	dict     matchers.Chain

	topK        int
	approxScore float64
	log         zerolog.Logger
}

// NewRetrievalService wires the retrieval pipeline over st. Zero fields of
// cfg take the package defaults.
func NewRetrievalService(st store.Store, cfg config.RetrievalConfig, opts ...RetrievalOption) *RetrievalService {
	o := retrievalOptions{log: zerolog.Nop()}
	for _, fn := range opts {
		fn(&o)
	}
	cfg = withRetrievalDefaults(cfg)

	gen := minhash.New(
		minhash.WithChannels(cfg.SignatureSize),
		minhash.WithShingleSize(cfg.ShingleSize),
	)
	idx := search.NewIndex(st,
		search.WithShortlistFactor(cfg.ShortlistFactor),
		search.WithLogger(o.log.With().Str("component", "index").Logger()),
	)
	approx := search.NewApproxMatcher(st, gen,
		search.WithCeiling(cfg.ApproxCeiling),
		search.WithThreshold(cfg.ApproxThreshold),
		search.WithTopN(cfg.ApproxTopN),
		search.WithApproxLogger(o.log.With().Str("component", "approx").Logger()),
	)

	impOpts := []ingest.Option{
		ingest.WithBatchSize(o.imp.BatchSize),
		ingest.WithLogger(o.log.With().Str("component", "import").Logger()),
	}
	if o.yielder != nil {
		impOpts = append(impOpts, ingest.WithYielder(o.yielder))
	} else if o.imp.BatchDelay > 0 {
		impOpts = append(impOpts, ingest.WithYielder(ingest.NewDelayYielder(o.imp.BatchDelay)))
	}

	s := &RetrievalService{
		st:          st,
		gen:         gen,
		idx:         idx,
		approx:      approx,
		importer:    ingest.NewImporter(st, idx, gen, impOpts...),
		kb:          o.kb,
		topK:        cfg.DefaultTopK,
		approxScore: cfg.ApproxScore,
		log:         o.log,
	}
	if o.kb != nil {
		s.dict = matchers.DictionaryChain(o.kb)
	}
	return s
}

func withRetrievalDefaults(c config.RetrievalConfig) config.RetrievalConfig {
	if c.ShingleSize <= 0 {
		c.ShingleSize = minhash.DefaultShingleSize
	}
	if c.SignatureSize <= 0 {
		c.SignatureSize = minhash.DefaultChannels
	}
	if c.DefaultTopK <= 0 {
		c.DefaultTopK = search.DefaultTopK
	}
	if c.ShortlistFactor <= 0 {
		c.ShortlistFactor = search.DefaultShortlistFactor
	}
	if c.ApproxCeiling <= 0 {
		c.ApproxCeiling = search.DefaultApproxCeiling
	}
	if c.ApproxThreshold <= 0 {
		c.ApproxThreshold = search.DefaultApproxThreshold
	}
	if c.ApproxTopN <= 0 {
		c.ApproxTopN = search.DefaultApproxTopN
	}
	if c.ApproxScore <= 0 {
		c.ApproxScore = search.ApproxScore
	}
	return c
}

// Generator returns the signature generator used for queries and imports.
func (s *RetrievalService) Generator() *minhash.Generator { return s.gen }

// Retrieve returns up to topK hits for query, best first. A non-positive
// topK uses the configured default. A blank or unmappable query yields no
// hits. A path that fails is logged and contributes nothing, so Retrieve
// itself only fails when ctx is done.
func (s *RetrievalService) Retrieve(ctx context.Context, query string, topK int) ([]search.Hit, error) {
	ctx, span := observability.Tracer("services").Start(ctx, "RetrievalService.Retrieve",
		trace.WithAttributes(attribute.Int("top_k", topK)),
	)
	defer span.End()
	start := time.Now()
	defer func() { observability.ObserveRetrieval(time.Since(start)) }()

	if topK <= 0 {
		topK = s.topK
	}
	if strings.TrimSpace(query) == "" {
		return []search.Hit{}, nil
	}

	dict := s.dict.Hits(query)
	observability.ObserveRetrievalPath(observability.PathDictionary, len(dict), false)

	lexical, shortlist, err := s.idx.QueryShortlist(ctx, query, topK)
	if err != nil {
		s.pathFailed(span, observability.PathLexical, err)
		lexical, shortlist = nil, nil
	} else {
		observability.ObserveRetrievalPath(observability.PathLexical, len(lexical), false)
	}

	// Above the ceiling the matcher only compares the lexical shortlist.
	approx, err := s.approx.Match(ctx, query, shortlist)
	if err != nil {
		s.pathFailed(span, observability.PathApprox, err)
		approx = nil
	} else {
		observability.ObserveRetrievalPath(observability.PathApprox, len(approx), false)
	}

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	out := search.Merge(topK, dict, lexical, search.WithScore(approx, s.approxScore))
	span.SetAttributes(
		attribute.Int("hits.dictionary", len(dict)),
		attribute.Int("hits.lexical", len(lexical)),
		attribute.Int("hits.approx", len(approx)),
		attribute.Int("hits.merged", len(out)),
	)
	return out, nil
}

func (s *RetrievalService) pathFailed(span trace.Span, path string, err error) {
	observability.ObserveRetrievalPath(path, 0, true)
	span.RecordError(err, trace.WithAttributes(attribute.String("path", path)))
	s.log.Warn().Err(err).Str("path", path).Msg("retrieval path failed")
}

// Import decodes a JSON chunk payload from r and imports it.
func (s *RetrievalService) Import(ctx context.Context, r io.Reader) (ingest.Report, error) {
	return s.runImport(ctx, "RetrievalService.Import", func(ctx context.Context) (ingest.Report, error) {
		return s.importer.ImportReader(ctx, r)
	})
}

// ImportChunks imports already decoded chunks.
func (s *RetrievalService) ImportChunks(ctx context.Context, chunks []domain.Chunk) (ingest.Report, error) {
	return s.runImport(ctx, "RetrievalService.ImportChunks", func(ctx context.Context) (ingest.Report, error) {
		return s.importer.ImportChunks(ctx, chunks)
	})
}

func (s *RetrievalService) runImport(ctx context.Context, name string, fn func(context.Context) (ingest.Report, error)) (ingest.Report, error) {
	ctx, span := observability.Tracer("services").Start(ctx, name)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	rep, err := fn(ctx)
	observability.ObserveImport(rep.Imported, rep.PostingFailures, rep.SignatureFailures, rep.MetaFailures)
	span.SetAttributes(
		attribute.Int("import.received", rep.Received),
		attribute.Int("import.imported", rep.Imported),
		attribute.Int("import.skipped", rep.Skipped),
		attribute.Int("import.batches", rep.Batches),
	)

	ev := s.log.Info()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		ev = s.log.Error().Err(err)
	} else if rep.WriteErrors != nil {
		ev = s.log.Warn().AnErr("write_errors", rep.WriteErrors)
	}
	ev.Int("received", rep.Received).
		Int("imported", rep.Imported).
		Int("skipped", rep.Skipped).
		Int("batches", rep.Batches).
		Int("signatures_computed", rep.SignaturesComputed).
		Msg("import finished")
	return rep, err
}

// Chunk returns a stored chunk by id.
func (s *RetrievalService) Chunk(ctx context.Context, id string) (domain.Chunk, error) {
	c, err := s.st.GetChunk(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Chunk{}, ErrChunkNotFound
	}
	return c, err
}

// Stats reports collection sizes and the corpus metadata. Before the first
// import the signature parameters are those of the running generator.
func (s *RetrievalService) Stats(ctx context.Context) (CorpusStats, error) {
	var st CorpusStats
	var err error
	if st.Chunks, err = s.st.Count(ctx, store.Chunks); err != nil {
		return st, err
	}
	if st.Postings, err = s.st.Count(ctx, store.Postings); err != nil {
		return st, err
	}
	if st.Signatures, err = s.st.Count(ctx, store.Signatures); err != nil {
		return st, err
	}

	meta, err := s.st.GetMeta(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		st.SignatureSize, st.ShingleSize, st.SeedBase = s.gen.Channels(), s.gen.ShingleSize(), s.gen.SeedBase()
	case err != nil:
		return st, err
	default:
		st.LastImportAt = meta.LastImportAt
		st.SignatureSize, st.ShingleSize, st.SeedBase = meta.SignatureSize, meta.ShingleSize, meta.SeedBase
	}
	if s.kb != nil {
		st.Entities, st.Topics = s.kb.Len()
	}
	return st, nil
}

// Reset clears chunks, postings, signatures and metadata.
func (s *RetrievalService) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.st.Reset(ctx); err != nil {
		return err
	}
	s.log.Info().Msg("corpus reset")
	return nil
}

// Close releases the store.
func (s *RetrievalService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Close()
}
