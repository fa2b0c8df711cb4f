package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the recall index from the artifact and report on it",
	RunE:  runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, log, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	tbl, idx, err := loadIndex(ctx, cfg.ArtifactPath, log)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "artifact:  %s\n", cfg.ArtifactPath)
	fmt.Fprintf(out, "dimension: %d\n", idx.Dim())
	fmt.Fprintf(out, "vectors:   %d (%d dropped)\n", tbl.Len(), tbl.Dropped())
	fmt.Fprintf(out, "items:     %d (%d dropped)\n", idx.Len(), idx.Dropped())
	return nil
}
