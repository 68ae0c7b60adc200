// Package store defines the persistence collaborator used by the index,
// the approximate matcher and the importer. Implementations live in
// store/memstore (process memory) and repo (GORM over SQLite).
//
// Implementations must copy slices on the way in and out so callers can
// never observe or cause a half-applied write.
package store

import (
	"context"
	"errors"

	"github.com/tbourn/go-kb-retrieval/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: record not found")

// Collection names a countable record set.
type Collection string

const (
	Chunks     Collection = "chunks"
	Postings   Collection = "postings"
	Signatures Collection = "signatures"
)

// Store is the persistence contract of the knowledge base.
type Store interface {
	// PutChunk inserts or overwrites a chunk by id.
	PutChunk(ctx context.Context, c domain.Chunk) error
	// GetChunk returns the chunk with id, or ErrNotFound.
	GetChunk(ctx context.Context, id string) (domain.Chunk, error)

	// PutPosting replaces the posting list of term.
	PutPosting(ctx context.Context, term string, ids []string) error
	// GetPosting returns the posting list of term, or ErrNotFound.
	GetPosting(ctx context.Context, term string) ([]string, error)

	// PutSignature inserts or overwrites the signature of a chunk.
	PutSignature(ctx context.Context, id string, sig []uint32) error
	// ScanSignatures calls fn for every stored signature until fn returns
	// false. Iteration order is unspecified.
	ScanSignatures(ctx context.Context, fn func(id string, sig []uint32) bool) error

	// Count returns the number of records in a collection.
	Count(ctx context.Context, c Collection) (int64, error)

	// PutMeta replaces the corpus metadata.
	PutMeta(ctx context.Context, m domain.CorpusMeta) error
	// GetMeta returns the corpus metadata, or ErrNotFound before the first
	// import.
	GetMeta(ctx context.Context) (domain.CorpusMeta, error)

	// Reset removes every chunk, posting, signature and the metadata.
	Reset(ctx context.Context) error
	// Close releases underlying resources.
	Close() error
}
