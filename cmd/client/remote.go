package main

import (
	"fmt"

	"github.com/openmined/dossier/internal/db"
	"github.com/openmined/dossier/internal/dossiersdk"
	"github.com/openmined/dossier/internal/files"
	"github.com/openmined/dossier/internal/store"
	"github.com/openmined/dossier/internal/sync"
	"github.com/openmined/dossier/internal/utils"
)

// openRemote connects to the configured server, or opens the local store.
// The returned close func is always safe to call.
func openRemote(cfg *Config) (sync.Remote, func() error, error) {
	noop := func() error { return nil }

	if cfg.ServerURL != "" {
		client, err := dossiersdk.New(cfg.ServerURL)
		if err != nil {
			return nil, noop, err
		}
		return client, noop, nil
	}

	path, err := utils.ResolvePath(cfg.DB)
	if err != nil {
		return nil, noop, fmt.Errorf("db path: %w", err)
	}

	sqlDB, err := db.NewSqliteDB(db.WithPath(path))
	if err != nil {
		return nil, noop, err
	}

	st, err := store.NewSqliteStore(sqlDB)
	if err != nil {
		sqlDB.Close()
		return nil, noop, err
	}

	return files.NewService(st), sqlDB.Close, nil
}
