package server

import (
	"fmt"
	"time"

	"github.com/openmined/dossier/internal/backup"
	"github.com/ulule/limiter/v3"
)

const (
	DefaultAddr      = "127.0.0.1:3000"
	DefaultRateLimit = "100-S"
	DefaultDBPath    = "dossier.sqlite3"
)

type Config struct {
	HTTP       HTTPConfig       `mapstructure:"http"`
	DB         DBConfig         `mapstructure:"db"`
	Compaction CompactionConfig `mapstructure:"compaction"`
	Backup     backup.S3Config  `mapstructure:"backup"`
	LogDir     string           `mapstructure:"log_dir"`
}

type HTTPConfig struct {
	Addr      string `mapstructure:"addr"`
	CertFile  string `mapstructure:"cert_file"`
	KeyFile   string `mapstructure:"key_file"`
	HSTS      bool   `mapstructure:"hsts"`
	RateLimit string `mapstructure:"rate_limit"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type CompactionConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

func (c *HTTPConfig) TLSEnabled() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http `addr` required")
	}
	if (c.HTTP.CertFile == "") != (c.HTTP.KeyFile == "") {
		return fmt.Errorf("http `cert_file` and `key_file` must be set together")
	}
	if c.HTTP.HSTS && !c.HTTP.TLSEnabled() {
		return fmt.Errorf("http `hsts` requires tls")
	}
	if c.HTTP.RateLimit != "" {
		if _, err := limiter.NewRateFromFormatted(c.HTTP.RateLimit); err != nil {
			return fmt.Errorf("http `rate_limit`: %w", err)
		}
	}
	if c.DB.Path == "" {
		return fmt.Errorf("db `path` required")
	}
	if c.Compaction.Interval < 0 {
		return fmt.Errorf("compaction `interval` must not be negative")
	}
	if err := c.Backup.Validate(); err != nil {
		return err
	}
	return nil
}
