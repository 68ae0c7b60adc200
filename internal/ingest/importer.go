// Package ingest loads chunk records into a store.Store: it validates import
// payloads, completes missing signatures, writes chunks, postings and
// signatures, and keeps the corpus metadata current.
//
// Imports run as a queue of bounded batches with a yield between batches
// (see Scheduler). A chunk write failure aborts the import; posting and
// signature failures are logged, counted and reported without aborting.
// Batches that completed before an abort stay committed.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-kb-retrieval/internal/domain"
	"github.com/tbourn/go-kb-retrieval/internal/minhash"
	"github.com/tbourn/go-kb-retrieval/internal/search"
	"github.com/tbourn/go-kb-retrieval/internal/store"
)

const (
	// DefaultBatchSize is the number of records processed between yields.
	DefaultBatchSize = 150
	// DefaultBatchDelay is the pause between batches.
	DefaultBatchDelay = 30 * time.Millisecond
)

// Report summarizes an import. WriteErrors joins the best-effort failures
// counted in PostingFailures, SignatureFailures and MetaFailures. Skipped
// counts chunks left in place because their checksum was unchanged; their
// postings and signature are still re-applied.
type Report struct {
	Received           int   `json:"received"`
	Imported           int   `json:"imported"`
	Skipped            int   `json:"skipped"`
	Batches            int   `json:"batches"`
	SignaturesComputed int   `json:"signatures_computed"`
	PostingFailures    int   `json:"posting_failures"`
	SignatureFailures  int   `json:"signature_failures"`
	MetaFailures       int   `json:"meta_failures"`
	WriteErrors        error `json:"-"`
}

type Option func(*Importer)

// WithBatchSize sets the batch size. Non-positive values are ignored.
func WithBatchSize(n int) Option {
	return func(im *Importer) {
		if n > 0 {
			im.batchSize = n
		}
	}
}

// WithYielder replaces the default DelayYielder.
func WithYielder(y Yielder) Option {
	return func(im *Importer) {
		if y != nil {
			im.yielder = y
		}
	}
}

// WithLogger sets the logger for best-effort failures.
func WithLogger(l zerolog.Logger) Option {
	return func(im *Importer) { im.log = l }
}

// WithClock overrides time.Now for the last-import timestamp.
func WithClock(now func() time.Time) Option {
	return func(im *Importer) {
		if now != nil {
			im.now = now
		}
	}
}

// Importer writes chunk records through an Index and a Store. It is not
// safe for concurrent use; callers serialize imports.
type Importer struct {
	st        store.Store
	idx       *search.Index
	gen       *minhash.Generator
	batchSize int
	yielder   Yielder
	log       zerolog.Logger
	now       func() time.Time
}

// NewImporter returns an Importer. gen determines the expected signature
// length; records whose signature differs are re-signed.
func NewImporter(st store.Store, idx *search.Index, gen *minhash.Generator, opts ...Option) *Importer {
	im := &Importer{
		st:        st,
		idx:       idx,
		gen:       gen,
		batchSize: DefaultBatchSize,
		yielder:   NewDelayYielder(DefaultBatchDelay),
		log:       zerolog.Nop(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(im)
	}
	return im
}

// ImportReader decodes a JSON payload from r and imports it.
func (im *Importer) ImportReader(ctx context.Context, r io.Reader) (Report, error) {
	raws, err := DecodePayload(r)
	if err != nil {
		return Report{}, err
	}
	return im.Import(ctx, raws)
}

// Import validates and writes raw records batch by batch. A malformed record
// fails its batch before any of that batch is written.
func (im *Importer) Import(ctx context.Context, raws []json.RawMessage) (Report, error) {
	rep := Report{Received: len(raws)}
	var werrs []error

	sched := NewScheduler(im.yielder)
	for start := 0; start < len(raws); start += im.batchSize {
		lo, hi := start, min(start+im.batchSize, len(raws))
		sched.Enqueue(func(ctx context.Context) error {
			chunks := make([]domain.Chunk, 0, hi-lo)
			for i := lo; i < hi; i++ {
				c, err := ParseRecord(i, raws[i])
				if err != nil {
					return err
				}
				chunks = append(chunks, c)
			}
			return im.writeBatch(ctx, chunks, &rep, &werrs)
		})
	}
	return im.run(ctx, sched, &rep, &werrs)
}

// ImportChunks imports already-decoded chunks, e.g. from the offline
// builder. Chunks must carry id, title and text.
func (im *Importer) ImportChunks(ctx context.Context, chunks []domain.Chunk) (Report, error) {
	rep := Report{Received: len(chunks)}
	var werrs []error

	sched := NewScheduler(im.yielder)
	for start := 0; start < len(chunks); start += im.batchSize {
		batch := chunks[start:min(start+im.batchSize, len(chunks))]
		offset := start
		sched.Enqueue(func(ctx context.Context) error {
			for i, c := range batch {
				if c.ID == "" {
					return &PayloadError{Index: offset + i, Field: "id", Reason: "is required"}
				}
			}
			return im.writeBatch(ctx, batch, &rep, &werrs)
		})
	}
	return im.run(ctx, sched, &rep, &werrs)
}

func (im *Importer) run(ctx context.Context, sched *Scheduler, rep *Report, werrs *[]error) (Report, error) {
	n, runErr := sched.Run(ctx)
	rep.Batches = n

	if rep.Imported > 0 {
		if err := im.updateMeta(ctx); err != nil {
			rep.MetaFailures++
			*werrs = append(*werrs, err)
			im.log.Warn().Err(err).Msg("corpus metadata update failed")
		}
	}
	rep.WriteErrors = errors.Join(*werrs...)
	return *rep, runErr
}

func (im *Importer) writeBatch(ctx context.Context, batch []domain.Chunk, rep *Report, werrs *[]error) error {
	for _, c := range batch {
		if !im.gen.Valid(c.Signature) {
			c.Shingles, c.Signature = im.gen.FromText(c.Text)
			rep.SignaturesComputed++
		}
		if len(c.Shingles) == 0 {
			c.Shingles = im.gen.Shingles(c.Text)
		}
		c.Checksum = Checksum(c)

		// An unchanged chunk is not rewritten, but its postings and
		// signature are re-applied so an earlier partial import is repaired.
		unchanged := false
		previousText := ""
		prev, err := im.st.GetChunk(ctx, c.ID)
		switch {
		case err == nil:
			if prev.Checksum == c.Checksum {
				unchanged = true
			} else {
				previousText = prev.Text
			}
		case errors.Is(err, store.ErrNotFound):
		default:
			im.log.Warn().Err(err).Str("chunk_id", c.ID).Msg("previous chunk read failed; treating as new")
		}
		if unchanged {
			rep.Skipped++
		} else {
			c.UpdatedAt = im.now().UTC()
			if err := im.st.PutChunk(ctx, c); err != nil {
				return fmt.Errorf("write chunk %q: %w", c.ID, err)
			}
		}

		if err := im.idx.Add(ctx, c.ID, c.Text, previousText); err != nil {
			rep.PostingFailures++
			*werrs = append(*werrs, fmt.Errorf("chunk %q: %w", c.ID, err))
			im.log.Warn().Err(err).Str("chunk_id", c.ID).Msg("posting update incomplete")
		}
		if err := im.st.PutSignature(ctx, c.ID, c.Signature); err != nil {
			rep.SignatureFailures++
			*werrs = append(*werrs, fmt.Errorf("signature %q: %w", c.ID, err))
			im.log.Warn().Err(err).Str("chunk_id", c.ID).Msg("signature write failed")
		}
		if !unchanged {
			rep.Imported++
		}
	}
	return nil
}

func (im *Importer) updateMeta(ctx context.Context) error {
	total, err := im.st.Count(ctx, store.Chunks)
	if err != nil {
		return fmt.Errorf("count chunks: %w", err)
	}
	if prev, err := im.st.GetMeta(ctx); err == nil && prev.SignatureSize != 0 && prev.SignatureSize != im.gen.Channels() {
		im.log.Warn().
			Int("stored", prev.SignatureSize).
			Int("current", im.gen.Channels()).
			Msg("signature size changed; older signatures will not match")
	}
	ts := im.now().UTC()
	return im.st.PutMeta(ctx, domain.CorpusMeta{
		TotalChunks:   total,
		LastImportAt:  &ts,
		SignatureSize: im.gen.Channels(),
		ShingleSize:   im.gen.ShingleSize(),
		SeedBase:      im.gen.SeedBase(),
	})
}
