package main

import (
	"context"
	"strings"
	"time"

	"github.com/hyperjump/hypogen/internal/cli"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var (
		format  string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Generate a hypothesis for one question",
		Long: `Builds the index and gene network from the configured data directories and
answers a single question. All arguments are joined into the question.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			components, err := initializeComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer components.Close()

			h, err := components.Generator.Generate(ctx, buildQuestion(args))
			if err != nil {
				logger.Debug("ask failed", zap.Error(err))
				return err
			}
			return cli.WriteHypothesis(cmd.OutOrStdout(), h, outFormat)
		},
	}
	cmd.Flags().StringVar(&format, "format", string(cli.OutputText), "output format: text or json")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall deadline including index build (0 disables)")
	return cmd
}

// buildQuestion joins args with single spaces, so quoted and unquoted questions match.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
