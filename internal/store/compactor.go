package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

const DefaultCompactionInterval = 24 * time.Hour

// Compactor periodically reclaims space left behind by truncated and deleted files
type Compactor struct {
	db       *sqlx.DB
	interval time.Duration
}

func NewCompactor(db *sqlx.DB, interval time.Duration) *Compactor {
	return &Compactor{
		db:       db,
		interval: interval,
	}
}

// Start runs Compact on every tick until ctx is done. A zero interval disables it.
func (c *Compactor) Start(ctx context.Context) error {
	if c.interval <= 0 {
		slog.Debug("compactor disabled")
		return nil
	}

	slog.Debug("compactor started", "interval", c.interval)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("compactor stopped")
			return nil
		case <-ticker.C:
			if err := c.Compact(ctx); err != nil {
				slog.Error("compactor error", "error", err)
			}
		}
	}
}

func (c *Compactor) Compact(ctx context.Context) error {
	start := time.Now()
	slog.Info("compacting database")

	if _, err := c.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	if _, err := c.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}

	slog.Info("database compacted", "took", time.Since(start))
	return nil
}
