package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/openmined/dossier/internal/db"
	"github.com/openmined/dossier/internal/server"
	"github.com/openmined/dossier/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var errBackupDisabled = errors.New("backup bucket not configured (set backup.bucket_name)")

func newBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup [prefix]",
		Short: "Copy finalized files to the configured S3 bucket once",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			if !cfg.Backup.Enabled() {
				return errBackupDisabled
			}

			closeLog, err := setupLogger(cmd.ErrOrStderr(), cfg.LogDir, viper.GetString("log_level"))
			if err != nil {
				return err
			}
			defer closeLog()

			prefix := store.Separator
			if len(args) == 1 {
				prefix = store.NormalizeDir(args[0])
			}

			sqlDB, err := db.NewSqliteDB(db.WithPath(cfg.DB.Path))
			if err != nil {
				return err
			}
			defer sqlDB.Close()

			svc, err := server.NewServices(cmd.Context(), cfg, sqlDB)
			if err != nil {
				return err
			}

			report, err := svc.Backup.Run(cmd.Context(), prefix)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "backup of %s: %d uploaded (%s), %d deleted, %d unchanged, %d skipped in %s\n",
				prefix,
				report.Uploaded,
				humanize.Bytes(uint64(report.Bytes)),
				report.Deleted,
				report.Unchanged,
				report.Skipped,
				report.Took.Round(time.Millisecond),
			)
			return nil
		},
	}
}
