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

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/openmined/dossier/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	home, _        = os.UserHomeDir()
	configFileName = "config"
)

var (
	red    = color.New(color.FgHiRed, color.Bold).SprintFunc()
	green  = color.New(color.FgHiGreen).SprintFunc()
	yellow = color.New(color.FgHiYellow).SprintFunc()
	cyan   = color.New(color.FgHiCyan).SprintFunc()
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "dossier",
		Short:         "Mirror local directories into a dossier store",
		Version:       version.Detailed(),
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd); err != nil {
				return err
			}
			return setupLogger(cmd.ErrOrStderr(), viper.GetString("log_level"))
		},
	}

	rootCmd.PersistentFlags().SortFlags = false
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default ~/.dossier/config.yaml)")
	rootCmd.PersistentFlags().StringP("server", "s", "", "Dossier server URL")
	rootCmd.PersistentFlags().String("db", "", "Local store path, used instead of a server")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newSyncCmd(),
		newUploadCmd(),
		newLsCmd(),
		newRmCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), red("Error:"), err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) error {
	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(filepath.Join(home, ".dossier"))
		viper.AddConfigPath(filepath.Join(home, ".config", "dossier"))
		viper.SetConfigName(configFileName)
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		var notFound viper.ConfigFileNotFoundError
		if !enoent && !errors.As(err, &notFound) {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.SetDefault("log_level", "info")
	viper.SetDefault("sync.workers", 0)
	viper.SetDefault("sync.chunk_size", defaultChunkSize)
	viper.SetDefault("sync.max_attempts", defaultMaxAttempts)
	viper.SetDefault("sync.ignore_file", "")
	viper.SetDefault("sync.continue_on_error", false)

	bindFlag(cmd, "server_url", "server")
	bindFlag(cmd, "db", "db")
	bindFlag(cmd, "log_level", "log-level")
	bindFlag(cmd, "sync.workers", "workers")
	bindFlag(cmd, "sync.ignore_file", "ignore-file")
	bindFlag(cmd, "sync.continue_on_error", "continue-on-error")

	viper.SetEnvPrefix("DOSSIER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	return nil
}

// bindFlag binds a flag when the running command defines it
func bindFlag(cmd *cobra.Command, key string, name string) {
	if flag := cmd.Flags().Lookup(name); flag != nil {
		viper.BindPFlag(key, flag)
	}
}

func setupLogger(w io.Writer, level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("log level %q: %w", level, err)
	}

	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
	}

	slog.SetDefault(slog.New(tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		TimeFormat: "15:04:05.000",
		NoColor:    noColor,
	})))
	return nil
}
