package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyperjump/hypogen/internal/config"
	"github.com/hyperjump/hypogen/internal/hypothesis"
	"github.com/hyperjump/hypogen/internal/server"
	"github.com/hyperjump/hypogen/internal/watcher"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// dataExtensions are the input files whose change triggers a rebuild.
var dataExtensions = []string{".xml", ".gaf", ".txt", ".tsv"}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var lazy bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Builds the combined index and gene network, then serves the HTTP API.
With --lazy both are built on the first request instead of at startup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, logger, lazy)
		},
	}
	cmd.Flags().BoolVar(&lazy, "lazy", false, "build the index and network on first request")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, logger *zap.Logger, lazy bool) error {
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()
	gen := components.Generator

	if !lazy {
		start := time.Now()
		if err := gen.WarmUp(ctx); err != nil {
			return err
		}
		logger.Info("warm-up complete", zap.Duration("duration", time.Since(start)))
	}

	if cfg.Watch.Enabled {
		w, err := startWatcher(ctx, cfg, gen, logger)
		if err != nil {
			return err
		}
		defer w.Stop()
	}

	srv := server.NewServer(gen, &cfg.Server, logger)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

// startWatcher invalidates the generator whenever a data file changes. The next
// request then performs a full rebuild.
func startWatcher(ctx context.Context, cfg *config.Config, gen *hypothesis.Generator, logger *zap.Logger) (*watcher.Watcher, error) {
	w := watcher.NewWatcher(
		[]string{cfg.Data.KEGGDir, cfg.Data.GODir},
		dataExtensions,
		func(paths []string) {
			logger.Info("data changed, invalidating index", zap.Strings("paths", paths))
			gen.Invalidate()
		},
		watcher.WithLogger(logger),
		watcher.WithDebounce(cfg.Watch.Debounce),
	)
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return w, nil
}
