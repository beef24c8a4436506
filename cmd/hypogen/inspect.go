package main

import (
	"context"
	"os"

	"github.com/hyperjump/hypogen/internal/cli"
	"github.com/hyperjump/hypogen/internal/gaf"
	"github.com/hyperjump/hypogen/internal/kegg"
	"github.com/hyperjump/hypogen/internal/network"
	"github.com/hyperjump/hypogen/internal/vector"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show what the parsers make of an input file",
	}
	cmd.PersistentFlags().StringVar(&format, "format", string(cli.OutputText), "output format: text or json")

	cmd.AddCommand(&cobra.Command{
		Use:   "pathway <file>",
		Short: "Parse a KEGG pathway XML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := cli.ParseOutputFormat(format)
			if err != nil {
				return err
			}
			p, err := kegg.ParsePathway(args[0])
			if err != nil {
				return err
			}
			return cli.WritePathway(cmd.OutOrStdout(), p, outFormat)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "network <dir|file>",
		Short: "Build the gene network of a pathway file or directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := cli.ParseOutputFormat(format)
			if err != nil {
				return err
			}
			g, err := loadNetwork(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return cli.WriteNetwork(cmd.OutOrStdout(), g, outFormat)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "vectors <file>",
		Short: "Load a vector index file written by index --save",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := cli.ParseOutputFormat(format)
			if err != nil {
				return err
			}
			idx, err := vector.OpenMemoryIndex(args[0])
			if err != nil {
				return err
			}
			defer idx.Close()
			return cli.WriteVectorFile(cmd.OutOrStdout(), cli.VectorFile{
				Path:       args[0],
				Vectors:    idx.Size(),
				Dimensions: idx.Dimensions(),
			}, outFormat)
		},
	})

	var limit int
	gafCmd := &cobra.Command{
		Use:   "gaf <file>",
		Short: "Parse a GO annotation file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := cli.ParseOutputFormat(format)
			if err != nil {
				return err
			}
			t, err := gaf.ParseFile(args[0])
			if err != nil {
				return err
			}
			return cli.WriteGAF(cmd.OutOrStdout(), t, limit, outFormat)
		},
	}
	gafCmd.Flags().IntVarP(&limit, "limit", "n", 20, "annotations to show (0 for all)")
	cmd.AddCommand(gafCmd)
	return cmd
}

func loadNetwork(ctx context.Context, path string) (*network.Graph, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		if ctx == nil {
			ctx = context.Background()
		}
		return kegg.BuildNetworkFromDirectory(ctx, path)
	}
	return kegg.BuildGeneNetwork(path)
}
