package server

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/dossier/internal/backup"
	"github.com/openmined/dossier/internal/files"
	"github.com/openmined/dossier/internal/store"
)

type Services struct {
	Store     *store.SqliteStore
	Files     *files.Service
	Compactor *store.Compactor
	// Backup is nil unless a bucket is configured
	Backup *backup.S3Backup
}

func NewServices(ctx context.Context, config *Config, db *sqlx.DB) (*Services, error) {
	st, err := store.NewSqliteStore(db)
	if err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}
	filesSvc := files.NewService(st)

	svc := &Services{
		Store:     st,
		Files:     filesSvc,
		Compactor: store.NewCompactor(db, config.Compaction.Interval),
	}

	if config.Backup.Enabled() {
		client, err := backup.NewS3Client(ctx, &config.Backup)
		if err != nil {
			return nil, fmt.Errorf("create backup client: %w", err)
		}
		svc.Backup = backup.New(client, &config.Backup, filesSvc)
	}

	return svc, nil
}
