// Package repo is the GORM persistence layer. It holds the assistant's chat
// log (chats, messages and their ETag aggregates) and KBStore, the SQLite
// implementation of store.Store for chunks, postings and signatures.
//
// Chat-log functions take a *gorm.DB so they compose with transactions.
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-kb-retrieval/internal/domain"
)

// Applied in order on every new database handle.
var pragmas = []string{
	"journal_mode=WAL",
	"synchronous=NORMAL",
	"foreign_keys=ON",
	"busy_timeout=5000",
}

// OpenSQLite opens or creates the database at path with the pure-Go driver,
// tunes it for a single-process server and traces every statement.
func OpenSQLite(path string) (*gorm.DB, error) {
	// The driver reports a missing directory as "out of memory".
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("sqlite dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, err
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}
	for _, p := range pragmas {
		if err := db.Exec("PRAGMA " + p).Error; err != nil {
			return nil, fmt.Errorf("pragma %s: %w", p, err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// AutoMigrate brings the chat-log and knowledge-base tables up to date.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Chat{}, &domain.Message{},
		&domain.Chunk{}, &domain.Posting{}, &domain.SignatureRow{}, &domain.CorpusMeta{},
	)
}
