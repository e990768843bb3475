package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	repo "github.com/joseph-ayodele/invoice-ocr/internal/repository"
)

// ConnectDB opens the archive database, pings it and brings its schema up
// to date. The returned DB is closed with repository.Close.
func ConnectDB(ctx context.Context, cfg common.DatabaseConfig, pingTimeout time.Duration, logger *slog.Logger) (*repo.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connecting to database")
	db, err := repo.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	if err := repo.HealthCheck(ctx, db, pingTimeout, logger); err != nil {
		repo.Close(db, logger)
		return nil, err
	}
	if err := repo.Migrate(ctx, db); err != nil {
		logger.Error("failed to migrate database", "error", err)
		repo.Close(db, logger)
		return nil, err
	}
	logger.Info("successfully connected to database", "dialect", db.Dialect)
	return db, nil
}
