package main

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/openmined/dossier/internal/files"
	"github.com/openmined/dossier/internal/sync"
	"github.com/spf13/viper"
)

const (
	defaultChunkSize   = sync.DefaultChunkSize
	defaultMaxAttempts = sync.DefaultMaxAttempts
)

var ErrNoTarget = errors.New("either --server or --db is required")

type Config struct {
	ServerURL string
	DB        string
	Sync      SyncConfig
}

type SyncConfig struct {
	Workers         int
	ChunkSize       int
	MaxAttempts     int
	IgnoreFile      string
	ContinueOnError bool
}

func currentConfig() (*Config, error) {
	cfg := &Config{
		ServerURL: viper.GetString("server_url"),
		DB:        viper.GetString("db"),
		Sync: SyncConfig{
			Workers:         viper.GetInt("sync.workers"),
			ChunkSize:       viper.GetInt("sync.chunk_size"),
			MaxAttempts:     viper.GetInt("sync.max_attempts"),
			IgnoreFile:      viper.GetString("sync.ignore_file"),
			ContinueOnError: viper.GetBool("sync.continue_on_error"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.ServerURL == "" && c.DB == "":
		return ErrNoTarget
	case c.ServerURL != "" && c.DB != "":
		return fmt.Errorf("`server_url` and `db` are mutually exclusive")
	}

	if c.ServerURL != "" {
		u, err := url.Parse(c.ServerURL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("invalid `server_url` %q", c.ServerURL)
		}
	}

	if c.Sync.Workers < 0 {
		return fmt.Errorf("`sync.workers` must not be negative")
	}
	if c.Sync.ChunkSize <= 0 {
		return fmt.Errorf("`sync.chunk_size` must be positive")
	}
	if c.Sync.ChunkSize > files.MaxChunkSize {
		return fmt.Errorf("`sync.chunk_size` must not exceed %d bytes", files.MaxChunkSize)
	}
	if c.Sync.MaxAttempts <= 0 {
		return fmt.Errorf("`sync.max_attempts` must be positive")
	}
	return nil
}
