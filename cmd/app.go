package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lodestone-data/lodestone/db"
	"github.com/lodestone-data/lodestone/internal/assistant"
	"github.com/lodestone-data/lodestone/internal/bronze"
	"github.com/lodestone-data/lodestone/internal/config"
	"github.com/lodestone-data/lodestone/internal/conversation"
	"github.com/lodestone-data/lodestone/internal/database"
	"github.com/lodestone-data/lodestone/internal/llm"
	"github.com/lodestone-data/lodestone/internal/log"
	"github.com/lodestone-data/lodestone/internal/tenant"
	"github.com/lodestone-data/lodestone/internal/vecindex"
)

// app holds the wired services shared by the CLI commands.
type app struct {
	cfg       *config.Config
	logger    log.Logger
	pool      *pgxpool.Pool
	configs   *bronze.DirStore
	audit     *bronze.AuditLog
	convs     *conversation.Store
	tenants   *tenant.Store
	assistant *assistant.Service
}

// setup loads config, runs migrations, and wires every service. The model
// backend may be absent; the assistant then serves degraded answers.
func setup(ctx context.Context, logger log.Logger) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := database.Open(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	var backend assistant.Backend
	var embedder vecindex.Embedder
	client, err := llm.New(cfg, logger)
	switch {
	case err == nil:
		backend = client
		embedder = client
	case errors.Is(err, llm.ErrUnavailable):
		logger.Warn("no API key configured; assistant will serve degraded answers")
	default:
		pool.Close()
		return nil, fmt.Errorf("creating model client: %w", err)
	}

	configs := bronze.NewDirStore(cfg.SourcesDir, logger)
	warehouse := bronze.NewWarehouseClient(cfg.WarehouseHost, cfg.WarehouseToken, cfg.WarehouseID, logger)
	audit := bronze.NewAuditLog(warehouse, logger)
	convs := conversation.NewStore(pool)
	tenants := tenant.NewStore(pool)
	index := vecindex.New(pool, embedder, logger)

	svc := assistant.New(index, configs, audit, convs, backend, nil,
		assistant.Options{
			DocsDir:      cfg.DocsDir,
			TopK:         cfg.RetrievalTopK,
			HistoryLimit: cfg.HistoryLimit,
		}, logger)

	return &app{
		cfg:       cfg,
		logger:    logger,
		pool:      pool,
		configs:   configs,
		audit:     audit,
		convs:     convs,
		tenants:   tenants,
		assistant: svc,
	}, nil
}

func (a *app) close() {
	a.pool.Close()
}
