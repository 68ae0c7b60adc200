package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/go-kb-retrieval/internal/config"
	"github.com/tbourn/go-kb-retrieval/internal/matchers"
	"github.com/tbourn/go-kb-retrieval/internal/repo"
	"github.com/tbourn/go-kb-retrieval/internal/services"
	"github.com/tbourn/go-kb-retrieval/internal/store"
	"github.com/tbourn/go-kb-retrieval/internal/store/memstore"
	"github.com/tbourn/go-kb-retrieval/internal/sysutil"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "aru",
	Short: "Offline knowledge-base retrieval",
	Long: `aru chunks documents into a knowledge base and answers queries from it
with dictionary lookups, lexical ranking and MinHash similarity.
Settings come from the environment and an optional .env file.`,
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if envFile != "" {
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("load env file: %w", err)
			}
			return nil
		}
		_ = godotenv.Load()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load settings from this file instead of ./.env")
}

// loadConfig reads the configuration and builds the root logger, which
// writes to the command's error stream.
func loadConfig(cmd *cobra.Command) (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, zerolog.Nop(), fmt.Errorf("config: %w", err)
	}
	return cfg, sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, cmd.ErrOrStderr()), nil
}

// app holds the collaborators shared by the commands that touch the corpus.
type app struct {
	cfg   config.Config
	log   zerolog.Logger
	db    *gorm.DB
	kb    *matchers.KnowledgeBase
	svc   *services.RetrievalService
	ownDB bool
}

// openApp opens the database, picks the store named by STORE_DRIVER and
// loads the dictionary pack (the built-in one when KNOWLEDGE_PATH is unset).
func openApp(cmd *cobra.Command) (*app, error) {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	kb := matchers.Builtin()
	if cfg.Storage.KnowledgePath != "" {
		if kb, err = matchers.Load(cfg.Storage.KnowledgePath); err != nil {
			return nil, fmt.Errorf("knowledge pack: %w", err)
		}
	}

	db, err := repo.OpenSQLite(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	a := &app{cfg: cfg, log: log, db: db, kb: kb}
	var st store.Store
	switch cfg.Storage.Driver {
	case "memory":
		st = memstore.New()
		a.ownDB = true
	default:
		st = repo.NewKBStore(db)
	}
	a.svc = services.NewRetrievalService(st, cfg.Retrieval,
		services.WithKnowledgeBase(kb),
		services.WithImportConfig(cfg.Import),
		services.WithRetrievalLogger(log),
	)
	entities, topics := kb.Len()
	log.Debug().Str("driver", cfg.Storage.Driver).Int("entities", entities).Int("topics", topics).Msg("corpus opened")
	return a, nil
}

// Close releases the store and, when the store does not own it, the
// chat database.
func (a *app) Close() error {
	err := a.svc.Close()
	if a.ownDB {
		if sqlDB, dbErr := a.db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
	}
	return err
}
