package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-kb-retrieval/internal/domain"
	"github.com/tbourn/go-kb-retrieval/internal/store"
)

func TestChunks_CopyOnPutAndGet(t *testing.T) {
	ctx := context.Background()
	s := New()

	c := domain.Chunk{ID: "a_0", Title: "a", Text: "x", Signature: []uint32{1, 2}}
	if err := s.PutChunk(ctx, c); err != nil {
		t.Fatalf("PutChunk: %v", err)
	}
	c.Signature[0] = 99

	got, err := s.GetChunk(ctx, "a_0")
	if err != nil {
		t.Fatalf("GetChunk: %v", err)
	}
	if got.Signature[0] != 1 {
		t.Fatalf("store observed caller mutation: %v", got.Signature)
	}
	got.Signature[1] = 42
	again, _ := s.GetChunk(ctx, "a_0")
	if again.Signature[1] != 2 {
		t.Fatalf("store observed reader mutation: %v", again.Signature)
	}

	if _, err := s.GetChunk(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostings(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, err := s.GetPosting(ctx, "tokyo"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	ids := []string{"a_0"}
	_ = s.PutPosting(ctx, "tokyo", ids)
	ids[0] = "zzz"
	got, err := s.GetPosting(ctx, "tokyo")
	if err != nil || len(got) != 1 || got[0] != "a_0" {
		t.Fatalf("GetPosting = %v, %v", got, err)
	}
}

func TestScanSignatures_StopsEarly(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, id := range []string{"a", "b", "c"} {
		_ = s.PutSignature(ctx, id, []uint32{1})
	}
	seen := 0
	if err := s.ScanSignatures(ctx, func(string, []uint32) bool {
		seen++
		return seen < 2
	}); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if seen != 2 {
		t.Fatalf("expected scan to stop after 2, saw %d", seen)
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if err := s.ScanSignatures(cctx, func(string, []uint32) bool { return true }); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCountMetaReset(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.PutChunk(ctx, domain.Chunk{ID: "a"})
	_ = s.PutChunk(ctx, domain.Chunk{ID: "b"})
	_ = s.PutPosting(ctx, "t", []string{"a"})
	_ = s.PutSignature(ctx, "a", []uint32{1})

	if n, _ := s.Count(ctx, store.Chunks); n != 2 {
		t.Fatalf("chunks = %d", n)
	}
	if n, _ := s.Count(ctx, store.Postings); n != 1 {
		t.Fatalf("postings = %d", n)
	}
	if n, _ := s.Count(ctx, store.Signatures); n != 1 {
		t.Fatalf("signatures = %d", n)
	}

	if _, err := s.GetMeta(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before first meta, got %v", err)
	}
	now := time.Now().UTC()
	_ = s.PutMeta(ctx, domain.CorpusMeta{TotalChunks: 2, LastImportAt: &now, SignatureSize: 128})
	m, err := s.GetMeta(ctx)
	if err != nil || m.TotalChunks != 2 || m.SignatureSize != 128 || !m.LastImportAt.Equal(now) {
		t.Fatalf("GetMeta = %+v, %v", m, err)
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if n, _ := s.Count(ctx, store.Chunks); n != 0 {
		t.Fatalf("chunks after reset = %d", n)
	}
	if _, err := s.GetMeta(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("meta should be cleared by reset, got %v", err)
	}
}
