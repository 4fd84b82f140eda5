package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/openmined/dossier/internal/sync"
	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sync <dir> <remote-prefix>",
		Short: "Mirror a local directory under a remote prefix",
		Long: `Mirror a local directory under a remote prefix.

Files missing remotely are created, files whose content differs are replaced,
and remote files under the prefix with no local counterpart are deleted.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := currentConfig()
			if err != nil {
				return err
			}

			remote, closeRemote, err := openRemote(cfg)
			if err != nil {
				return err
			}
			defer closeRemote()

			ignore, err := loadIgnore(cfg, args[0])
			if err != nil {
				return err
			}

			engine := sync.NewEngine(remote,
				sync.WithScanWorkers(cfg.Sync.Workers),
				sync.WithUploadWorkers(cfg.Sync.Workers),
				sync.WithUploadChunkSize(cfg.Sync.ChunkSize),
				sync.WithUploadMaxAttempts(cfg.Sync.MaxAttempts),
				sync.WithContinueOnError(cfg.Sync.ContinueOnError),
				sync.WithIgnore(ignore),
			)

			out := cmd.OutOrStdout()
			if dryRun {
				plan, err := engine.Plan(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				printPlan(out, plan)
				return nil
			}

			report, err := engine.Sync(cmd.Context(), args[0], args[1], func(p sync.Progress) {
				printProgress(out, p)
			})
			if report != nil {
				printReport(out, report)
			}
			return err
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Print the planned operations without applying them")
	cmd.Flags().IntP("workers", "w", 0, "Concurrent scan and upload workers (0 = 2 x CPUs)")
	cmd.Flags().String("ignore-file", "", "Ignore file (default <dir>/"+sync.DefaultIgnoreFile+")")
	cmd.Flags().Bool("continue-on-error", false, "Keep applying operations after one fails")

	return cmd
}

func loadIgnore(cfg *Config, root string) (*sync.IgnoreList, error) {
	path := cfg.Sync.IgnoreFile
	if path == "" {
		path = filepath.Join(root, sync.DefaultIgnoreFile)
	}
	ignore, err := sync.LoadIgnoreFile(path)
	if err != nil {
		return nil, fmt.Errorf("ignore file: %w", err)
	}
	return ignore, nil
}

func opLabel(t sync.OpType) string {
	switch t {
	case sync.OpCreate:
		return green(string(t))
	case sync.OpReplace:
		return cyan(string(t))
	case sync.OpDelete:
		return yellow(string(t))
	}
	return string(t)
}

func printProgress(w io.Writer, p sync.Progress) {
	if p.Err != nil {
		fmt.Fprintf(w, "%s %s (%d/%d): %v\n", red("FAILED"), p.Op.RemotePath(), p.Completed, p.Total, p.Err)
		return
	}
	fmt.Fprintf(w, "%s %s (%d/%d)\n", opLabel(p.Op.Type()), p.Op.RemotePath(), p.Completed, p.Total)
}

func printPlan(w io.Writer, plan *sync.Plan) {
	for _, op := range plan.Ops {
		fmt.Fprintf(w, "%s %s\n", opLabel(op.Type()), op.RemotePath())
	}
	fmt.Fprintf(w, "%d to create, %d to replace, %d to delete, %d unchanged (%s to upload)\n",
		plan.Count(sync.OpCreate),
		plan.Count(sync.OpReplace),
		plan.Count(sync.OpDelete),
		plan.Unchanged,
		humanize.Bytes(uint64(plan.Bytes)),
	)
}

func printReport(w io.Writer, report *sync.Report) {
	status := green("done")
	switch {
	case report.Cancelled:
		status = yellow("cancelled")
	case len(report.Failed) > 0:
		status = red("failed")
	}

	fmt.Fprintf(w, "sync %s: %d/%d operations, %s uploaded in %s\n",
		status,
		report.Succeeded,
		report.Total,
		humanize.Bytes(uint64(report.Uploaded)),
		report.Duration.Round(time.Millisecond),
	)
	if report.Retries > 0 {
		fmt.Fprintf(w, "%d verification retries\n", report.Retries)
	}
	for _, opErr := range report.Failed {
		fmt.Fprintf(w, "  %s %v\n", red("x"), opErr)
	}
}
