package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/openmined/dossier/internal/sync"
	"github.com/spf13/cobra"
)

func newUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file> <remote-path>",
		Short: "Upload a single file",
		Long: `Upload a single file.

A remote path ending in "/" is treated as a directory and the local file name is appended.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := currentConfig()
			if err != nil {
				return err
			}

			localPath := args[0]
			info, err := os.Stat(localPath)
			if err != nil {
				return err
			}
			if !info.Mode().IsRegular() {
				return fmt.Errorf("%s is not a regular file", localPath)
			}

			remotePath, err := sync.NormalizeUploadPath(localPath, args[1])
			if err != nil {
				return err
			}

			remote, closeRemote, err := openRemote(cfg)
			if err != nil {
				return err
			}
			defer closeRemote()

			uploader := sync.NewUploader(remote,
				sync.WithChunkSize(cfg.Sync.ChunkSize),
				sync.WithMaxAttempts(cfg.Sync.MaxAttempts),
			)

			res, err := uploader.Upload(cmd.Context(), localPath, remotePath, nil)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s) %s\n",
				green("uploaded"),
				res.Path,
				humanize.Bytes(uint64(res.Size)),
				res.Digest,
			)
			return nil
		},
	}
}
