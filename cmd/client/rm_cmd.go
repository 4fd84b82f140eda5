package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path>...",
		Short: "Delete remote files",
		Args:  cobra.MinimumNArgs(1),
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

			out := cmd.OutOrStdout()
			for _, path := range args {
				deleted, err := remote.DeleteFile(cmd.Context(), path)
				if err != nil {
					return fmt.Errorf("rm %s: %w", path, err)
				}
				if deleted {
					fmt.Fprintf(out, "%s %s\n", green("deleted"), path)
				} else {
					fmt.Fprintf(out, "%s %s\n", yellow("not found"), path)
				}
			}
			return nil
		},
	}
}
