package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/openmined/dossier/internal/server"
	"github.com/openmined/dossier/internal/store"
	"github.com/openmined/dossier/internal/utils"
	"github.com/openmined/dossier/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	defaultBackupInterval = time.Hour
	logFileName           = "server.log"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "dossier-server",
		Short:   "Dossier content server",
		Version: version.Detailed(),
		RunE:    runServe,
	}

	rootCmd.PersistentFlags().StringP("config", "f", "", "Path to the config file")
	rootCmd.PersistentFlags().String("db", server.DefaultDBPath, "Path to the sqlite store")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-dir", "", "Also write logs to <log-dir>/"+logFileName)
	addServeFlags(rootCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the file API and stored content (default)",
		RunE:  runServe,
	}
	addServeFlags(serveCmd)

	rootCmd.AddCommand(serveCmd, newBackupCmd(), newVersionCmd())
	return rootCmd
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("bind", "b", server.DefaultAddr, "Address to bind the server")
	cmd.Flags().StringP("cert", "c", "", "Path to the certificate file")
	cmd.Flags().StringP("key", "k", "", "Path to the key file")
}

func main() {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	closeLog, err := setupLogger(cmd.ErrOrStderr(), cfg.LogDir, viper.GetString("log_level"))
	if err != nil {
		return err
	}
	defer closeLog()

	slog.Info("dossier-server", "version", version.Version, "revision", version.Revision, "build", version.BuildDate)

	srv, err := server.New(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	defer slog.Info("Bye!")
	if err := srv.Start(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server", "error", err)
		return err
	}
	return nil
}

func loadConfig(cmd *cobra.Command) (*server.Config, error) {
	v := viper.GetViper()

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/dossier")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config read '%s': %w", v.ConfigFileUsed(), err)
		}
	}

	v.SetDefault("http.addr", server.DefaultAddr)
	v.SetDefault("http.cert_file", "")
	v.SetDefault("http.key_file", "")
	v.SetDefault("http.hsts", false)
	v.SetDefault("http.rate_limit", server.DefaultRateLimit)
	v.SetDefault("db.path", server.DefaultDBPath)
	v.SetDefault("compaction.interval", store.DefaultCompactionInterval)
	v.SetDefault("log_dir", "")
	v.SetDefault("log_level", "info")

	v.SetDefault("backup.bucket_name", "")
	v.SetDefault("backup.region", "")
	v.SetDefault("backup.endpoint", "")
	v.SetDefault("backup.access_key", "")
	v.SetDefault("backup.secret_key", "")
	v.SetDefault("backup.prefix", "")
	v.SetDefault("backup.use_accelerate", false)
	v.SetDefault("backup.interval", defaultBackupInterval)

	bindFlag(v, cmd, "http.addr", "bind")
	bindFlag(v, cmd, "http.cert_file", "cert")
	bindFlag(v, cmd, "http.key_file", "key")
	bindFlag(v, cmd, "db.path", "db")
	bindFlag(v, cmd, "log_dir", "log-dir")
	bindFlag(v, cmd, "log_level", "log-level")

	v.SetEnvPrefix("DOSSIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg server.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config parse: %w", err)
	}

	if cfg.DB.Path != "" {
		path, err := utils.ResolvePath(cfg.DB.Path)
		if err != nil {
			return nil, fmt.Errorf("db path: %w", err)
		}
		cfg.DB.Path = path
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func bindFlag(v *viper.Viper, cmd *cobra.Command, key string, name string) {
	if flag := cmd.Flags().Lookup(name); flag != nil {
		v.BindPFlag(key, flag)
	}
}

// setupLogger logs to w and, when logDir is set, to a log file in it.
// The returned func closes the log file.
func setupLogger(w io.Writer, logDir string, level string) (func() error, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}

	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
	}
	stdoutHandler := tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    noColor,
	})

	if logDir == "" {
		slog.SetDefault(slog.New(stdoutHandler))
		return func() error { return nil }, nil
	}

	logFile := filepath.Join(logDir, logFileName)
	if err := utils.EnsureParent(logFile); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	interceptor := utils.NewLogInterceptor(file)
	fileHandler := slog.NewTextHandler(interceptor, &slog.HandlerOptions{
		Level: lvl,
		// the interceptor stamps every line already
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})

	slog.SetDefault(slog.New(utils.NewMultiLogHandler(stdoutHandler, fileHandler)))
	return func() error {
		return errors.Join(interceptor.Close(), file.Close())
	}, nil
}
