// Package main is the hypogen CLI entry point.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/hypogen/internal/config"
	"github.com/hyperjump/hypogen/pkg/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	envFile    string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "hypogen",
		Short: "Generate biomedical hypotheses from KEGG pathways and GO annotations",
		Long: `hypogen indexes KEGG pathway XML and Gene Ontology annotation files,
builds a gene interaction network, and answers questions about gene involvement
in disease with a language model grounded on the retrieved context.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file path (default ./config.yaml when present)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", config.DefaultEnvFile, "dotenv file with overrides")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(opts),
		newAskCmd(opts),
		newIndexCmd(opts),
		newInspectCmd(),
		newVersionCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// resolveConfigPath falls back to config.yaml in the working directory when no path is given.
func resolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	if cwd, err := os.Getwd(); err == nil {
		fallback := filepath.Join(cwd, "config.yaml")
		if _, err := os.Stat(fallback); err == nil {
			return fallback
		}
	}
	return ""
}

// setup resolves the configuration and creates the logger.
func (o *rootOptions) setup() (*config.Config, *zap.Logger, error) {
	path := resolveConfigPath(o.configPath)
	cfg, err := config.Resolve(path, o.envFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if o.debug {
		cfg.Debug = true
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", path), zap.Bool("debug", cfg.Debug))
	return cfg, logger, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("hypogen version %s\n", version)
		},
	}
}
