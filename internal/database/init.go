package database

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/race-escrow/internal/config"
)

// Initialize creates a database connection pool and verifies the ledger schema is present
func Initialize(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*DB, error) {
	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	var present bool
	err = db.pool.QueryRow(ctx, "SELECT to_regclass('public.ledger_accounts') IS NOT NULL").Scan(&present)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to inspect schema: %w", err)
	}
	if !present {
		log.Warn("ledger_accounts table not found, run 'racectl migrate' before serving")
	}

	return db, nil
}
