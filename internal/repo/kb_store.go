package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-kb-retrieval/internal/domain"
	"github.com/tbourn/go-kb-retrieval/internal/store"
)

// scanBatchSize bounds the number of signature rows held in memory while
// scanning.
const scanBatchSize = 500

var errStopScan = errors.New("repo: scan stopped")

// KBStore persists chunks, postings, signatures and corpus metadata in the
// tables created by AutoMigrate. It owns the *gorm.DB handle: Close closes
// the underlying connection pool.
type KBStore struct {
	db *gorm.DB
}

var _ store.Store = (*KBStore)(nil)

// NewKBStore wraps a migrated database handle.
func NewKBStore(db *gorm.DB) *KBStore {
	return &KBStore{db: db}
}

// DB exposes the handle for the chat log, which shares the database file.
func (s *KBStore) DB() *gorm.DB { return s.db }

func (s *KBStore) PutChunk(ctx context.Context, c domain.Chunk) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&c).Error
}

func (s *KBStore) GetChunk(ctx context.Context, id string) (domain.Chunk, error) {
	var c domain.Chunk
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return domain.Chunk{}, translate(err)
	}
	return c, nil
}

func (s *KBStore) PutPosting(ctx context.Context, term string, ids []string) error {
	p := domain.Posting{Term: term, ChunkIDs: ids}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&p).Error
}

func (s *KBStore) GetPosting(ctx context.Context, term string) ([]string, error) {
	var p domain.Posting
	if err := s.db.WithContext(ctx).Where("term = ?", term).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return p.ChunkIDs, nil
}

func (s *KBStore) PutSignature(ctx context.Context, id string, sig []uint32) error {
	row := domain.SignatureRow{ChunkID: id, Signature: sig}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
}

// ScanSignatures reads signatures in primary-key order, scanBatchSize rows
// at a time.
func (s *KBStore) ScanSignatures(ctx context.Context, fn func(id string, sig []uint32) bool) error {
	var rows []domain.SignatureRow
	res := s.db.WithContext(ctx).
		Order("chunk_id ASC").
		FindInBatches(&rows, scanBatchSize, func(_ *gorm.DB, _ int) error {
			for _, r := range rows {
				if !fn(r.ChunkID, r.Signature) {
					return errStopScan
				}
			}
			return nil
		})
	if res.Error != nil && !errors.Is(res.Error, errStopScan) {
		return res.Error
	}
	return nil
}

func (s *KBStore) Count(ctx context.Context, c store.Collection) (int64, error) {
	var model any
	switch c {
	case store.Chunks:
		model = &domain.Chunk{}
	case store.Postings:
		model = &domain.Posting{}
	case store.Signatures:
		model = &domain.SignatureRow{}
	default:
		return 0, nil
	}
	var n int64
	err := s.db.WithContext(ctx).Model(model).Count(&n).Error
	return n, err
}

func (s *KBStore) PutMeta(ctx context.Context, m domain.CorpusMeta) error {
	m.ID = 1
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&m).Error
}

func (s *KBStore) GetMeta(ctx context.Context) (domain.CorpusMeta, error) {
	var m domain.CorpusMeta
	if err := s.db.WithContext(ctx).Where("id = ?", 1).First(&m).Error; err != nil {
		return domain.CorpusMeta{}, translate(err)
	}
	return m, nil
}

// Reset clears every knowledge-base table in one transaction. The chat log
// is left untouched.
func (s *KBStore) Reset(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{
			&domain.Chunk{},
			&domain.Posting{},
			&domain.SignatureRow{},
			&domain.CorpusMeta{},
		} {
			if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *KBStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	return err
}
