package main

import (
	"fmt"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/openmined/dossier/internal/store"
	"github.com/spf13/cobra"
)

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [prefix]",
		Short: "List finalized files under a prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := currentConfig()
			if err != nil {
				return err
			}

			prefix := store.Separator
			if len(args) == 1 {
				prefix = store.NormalizeDir(args[0])
			}

			remote, closeRemote, err := openRemote(cfg)
			if err != nil {
				return err
			}
			defer closeRemote()

			listed, err := remote.ListFiles(cmd.Context(), prefix)
			if err != nil {
				return err
			}

			paths := make([]string, 0, len(listed))
			for p := range listed {
				paths = append(paths, p)
			}
			slices.Sort(paths)

			out := cmd.OutOrStdout()
			for _, p := range paths {
				fmt.Fprintf(out, "%s  %s\n", listed[p], p)
			}
			fmt.Fprintf(out, "%s files under %s\n", humanize.Comma(int64(len(paths))), prefix)
			return nil
		},
	}
}
