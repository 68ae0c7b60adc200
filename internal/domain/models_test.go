package domain

import (
	"reflect"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:domain_"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Enforce FKs so cascades actually execute.
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		(Chat{}).TableName():         "chats",
		(Message{}).TableName():      "messages",
		(Chunk{}).TableName():        "chunks",
		(Posting{}).TableName():      "postings",
		(SignatureRow{}).TableName(): "signatures",
		(CorpusMeta{}).TableName():   "corpus_meta",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestMigrations_Indexes_AndCascades(t *testing.T) {
	db := newDomainDB(t, "chat")

	if err := db.AutoMigrate(&Chat{}, &Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()
	if !m.HasIndex(&Chat{}, "idx_user_chats") {
		t.Fatalf("expected index idx_user_chats on chats")
	}
	if !m.HasIndex(&Message{}, "idx_chat_msgs") {
		t.Fatalf("expected index idx_chat_msgs on messages")
	}

	now := time.Now().UTC()
	if err := db.Create(&Chat{ID: "c1", UserID: "u1", Title: "T", CreatedAt: now}).Error; err != nil {
		t.Fatalf("insert chat: %v", err)
	}
	msg := &Message{ID: "m1", ChatID: "c1", Role: "assistant", Content: "hi", Source: "entity", CreatedAt: now}
	if err := db.Create(msg).Error; err != nil {
		t.Fatalf("insert message: %v", err)
	}

	// role constraint
	bad := &Message{ID: "m2", ChatID: "c1", Role: "system", Content: "x", CreatedAt: now}
	if err := db.Create(bad).Error; err == nil {
		t.Fatalf("expected check constraint violation for role=system")
	}

	// CASCADE: deleting the chat deletes its messages
	if err := db.Unscoped().Delete(&Chat{}, "id = ?", "c1").Error; err != nil {
		t.Fatalf("delete chat: %v", err)
	}
	var cnt int64
	if err := db.Model(&Message{}).Where("chat_id = ?", "c1").Count(&cnt).Error; err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("expected messages to cascade-delete, got %d", cnt)
	}
}

func TestChunk_SerializedColumns(t *testing.T) {
	db := newDomainDB(t, "kb")
	if err := db.AutoMigrate(&Chunk{}, &Posting{}, &SignatureRow{}, &CorpusMeta{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	in := Chunk{
		ID:        "Doc_0",
		Title:     "Doc",
		Text:      "hello world",
		Shingles:  []string{"hello", "world"},
		Signature: []uint32{1, 2, 4294967295},
		Checksum:  "abc",
	}
	if err := db.Create(&in).Error; err != nil {
		t.Fatalf("create chunk: %v", err)
	}
	var out Chunk
	if err := db.First(&out, "id = ?", "Doc_0").Error; err != nil {
		t.Fatalf("load chunk: %v", err)
	}
	if !reflect.DeepEqual(out.Shingles, in.Shingles) || !reflect.DeepEqual(out.Signature, in.Signature) {
		t.Fatalf("serialized columns mismatch: %#v", out)
	}

	p := Posting{Term: "hello", ChunkIDs: []string{"Doc_0"}}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("create posting: %v", err)
	}
	var gotP Posting
	if err := db.First(&gotP, "term = ?", "hello").Error; err != nil {
		t.Fatalf("load posting: %v", err)
	}
	if len(gotP.ChunkIDs) != 1 || gotP.ChunkIDs[0] != "Doc_0" {
		t.Fatalf("posting ids = %#v", gotP.ChunkIDs)
	}
}
