package app

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"reportline/internal/config"
	"reportline/internal/db"
	"reportline/internal/engine"
	"reportline/internal/logging"
	"reportline/internal/migrate"
)

// Overrides are flag values that win over reportline.yml.
type Overrides struct {
	LogLevel  string
	LogFormat string
	DBPath    string
}

// Runtime bundles everything a command needs to talk to the engine.
type Runtime struct {
	Workspace string
	Config    *config.Config
	Logger    *zap.Logger
	DB        *sql.DB
	Engine    engine.Engine
}

// Open loads config, builds the logger, opens the database and applies pending
// migrations. A missing reportline.yml falls back to defaults.
func Open(ctx context.Context, workspace string, o Overrides) (*Runtime, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.Log.Format = o.LogFormat
	}
	if o.DBPath != "" {
		cfg.Database.Path = o.DBPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace, Path: cfg.Database.Path})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := migrate.MigrateContext(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Runtime{
		Workspace: workspace,
		Config:    cfg,
		Logger:    logger,
		DB:        conn,
		Engine:    engine.New(conn, cfg, logger),
	}, nil
}

// Close flushes the logger and closes the database.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	_ = r.Logger.Sync()
	return r.DB.Close()
}
