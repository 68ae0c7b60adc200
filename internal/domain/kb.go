package domain

import "time"

// Chunk is one indexed slice of a source document. It doubles as the
// record format of import payloads and of the offline builder's output.
//
// ID is derived from the document title and the chunk ordinal and is
// stable across rebuilds, so re-importing the same id overwrites.
// Shingles and Signature are optional in payloads; they are computed when
// missing or when the signature length does not match the corpus.
type Chunk struct {
	ID        string    `json:"id"                  gorm:"type:varchar(255);primaryKey"`
	Title     string    `json:"title"               gorm:"type:varchar(255);not null"`
	Text      string    `json:"text"                gorm:"type:text;not null"`
	Shingles  []string  `json:"shingles,omitempty"  gorm:"serializer:json"`
	Signature []uint32  `json:"signature,omitempty" gorm:"serializer:json"`
	Checksum  string    `json:"-"                   gorm:"type:varchar(16)"`
	UpdatedAt time.Time `json:"-"`
}

// TableName returns the database table name for Chunk.
func (Chunk) TableName() string { return "chunks" }

// Posting maps a normalized term to the ids of the chunks containing it.
// ChunkIDs holds no duplicates.
type Posting struct {
	Term     string   `gorm:"type:varchar(255);primaryKey"`
	ChunkIDs []string `gorm:"serializer:json"`
}

// TableName returns the database table name for Posting.
func (Posting) TableName() string { return "postings" }

// SignatureRow stores the MinHash signature of a chunk for approximate
// matching scans.
type SignatureRow struct {
	ChunkID   string   `gorm:"type:varchar(255);primaryKey"`
	Signature []uint32 `gorm:"serializer:json"`
}

// TableName returns the database table name for SignatureRow.
func (SignatureRow) TableName() string { return "signatures" }

// CorpusMeta describes the corpus as a whole: how many chunks it holds,
// when it was last imported into, and the signature parameters it was
// built with. There is a single row.
type CorpusMeta struct {
	ID            uint       `json:"-"              gorm:"primaryKey"`
	TotalChunks   int64      `json:"total_chunks"`
	LastImportAt  *time.Time `json:"last_import_at,omitempty"`
	SignatureSize int        `json:"signature_size"`
	ShingleSize   int        `json:"shingle_size"`
	SeedBase      uint32     `json:"seed_base"`
}

// TableName returns the database table name for CorpusMeta.
func (CorpusMeta) TableName() string { return "corpus_meta" }
