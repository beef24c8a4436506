package main

import (
	"context"
	"fmt"

	"github.com/hyperjump/hypogen/internal/cli"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newIndexCmd(opts *rootOptions) *cobra.Command {
	var (
		save   string
		format string
	)
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the combined index and print its statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			outFormat, err := cli.ParseOutputFormat(format)
			if err != nil {
				return err
			}
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			components, err := initializeComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer components.Close()

			idx, err := components.Generator.CombinedIndex(ctx)
			if err != nil {
				return err
			}

			if save == "" {
				save = cfg.Storage.VectorPath
			}
			if save != "" {
				if err := idx.SaveVectors(save); err != nil {
					return fmt.Errorf("save vectors: %w", err)
				}
				logger.Info("vectors saved", zap.String("path", save))
			}
			return cli.WriteStats(cmd.OutOrStdout(), idx.Stats(), outFormat)
		},
	}
	cmd.Flags().StringVar(&save, "save", "", "write the vector index to this path (default storage.vector_path)")
	cmd.Flags().StringVar(&format, "format", string(cli.OutputText), "output format: text or json")
	return cmd
}
