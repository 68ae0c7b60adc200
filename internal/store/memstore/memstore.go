// Package memstore is an in-memory store.Store, used for tests, the CLI
// query path over a payload file, and STORE_DRIVER=memory.
package memstore

import (
	"context"
	"sync"

	"github.com/tbourn/go-kb-retrieval/internal/domain"
	"github.com/tbourn/go-kb-retrieval/internal/store"
)

// Store keeps every collection in maps guarded by a RWMutex. It is safe for
// concurrent use.
type Store struct {
	mu         sync.RWMutex
	chunks     map[string]domain.Chunk
	postings   map[string][]string
	signatures map[string][]uint32
	meta       *domain.CorpusMeta
}

var _ store.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	s := &Store{}
	s.init()
	return s
}

func (s *Store) init() {
	s.chunks = make(map[string]domain.Chunk)
	s.postings = make(map[string][]string)
	s.signatures = make(map[string][]uint32)
	s.meta = nil
}

func (s *Store) PutChunk(_ context.Context, c domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[c.ID] = copyChunk(c)
	return nil
}

func (s *Store) GetChunk(_ context.Context, id string) (domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chunks[id]
	if !ok {
		return domain.Chunk{}, store.ErrNotFound
	}
	return copyChunk(c), nil
}

func (s *Store) PutPosting(_ context.Context, term string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.postings[term] = append([]string(nil), ids...)
	return nil
}

func (s *Store) GetPosting(_ context.Context, term string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids, ok := s.postings[term]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]string(nil), ids...), nil
}

func (s *Store) PutSignature(_ context.Context, id string, sig []uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signatures[id] = append([]uint32(nil), sig...)
	return nil
}

// ScanSignatures iterates over a snapshot, so fn may call back into the
// store.
func (s *Store) ScanSignatures(ctx context.Context, fn func(id string, sig []uint32) bool) error {
	s.mu.RLock()
	snap := make(map[string][]uint32, len(s.signatures))
	for id, sig := range s.signatures {
		snap[id] = append([]uint32(nil), sig...)
	}
	s.mu.RUnlock()

	for id, sig := range snap {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn(id, sig) {
			return nil
		}
	}
	return nil
}

func (s *Store) Count(_ context.Context, c store.Collection) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch c {
	case store.Chunks:
		return int64(len(s.chunks)), nil
	case store.Postings:
		return int64(len(s.postings)), nil
	case store.Signatures:
		return int64(len(s.signatures)), nil
	}
	return 0, nil
}

func (s *Store) PutMeta(_ context.Context, m domain.CorpusMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.LastImportAt != nil {
		t := *m.LastImportAt
		m.LastImportAt = &t
	}
	s.meta = &m
	return nil
}

func (s *Store) GetMeta(_ context.Context) (domain.CorpusMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.meta == nil {
		return domain.CorpusMeta{}, store.ErrNotFound
	}
	m := *s.meta
	if m.LastImportAt != nil {
		t := *m.LastImportAt
		m.LastImportAt = &t
	}
	return m, nil
}

func (s *Store) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	return nil
}

func (s *Store) Close() error { return nil }

func copyChunk(c domain.Chunk) domain.Chunk {
	c.Shingles = append([]string(nil), c.Shingles...)
	c.Signature = append([]uint32(nil), c.Signature...)
	return c
}
