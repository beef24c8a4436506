// Package cli renders command output for the hypogen CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/hypogen/internal/gaf"
	"github.com/hyperjump/hypogen/internal/indexer"
	"github.com/hyperjump/hypogen/internal/models"
	"github.com/hyperjump/hypogen/internal/network"
	"github.com/hyperjump/hypogen/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" and "json", case-insensitively. Empty means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use text or json)", s)
	}
}

const rule = "─────────────────────────────────────────────────────────"

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteHypothesis writes an answer with its context and network facts.
func WriteHypothesis(w io.Writer, h *models.Hypothesis, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, struct {
			*models.Hypothesis
			DurationMS int64 `json:"duration_ms"`
		}{h, h.Duration.Milliseconds()})
	}
	fmt.Fprintf(w, "\n%s\n\n", h.Answer)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Request %s answered in %dms from %d context chunk(s)\n",
		h.RequestID, h.Duration.Milliseconds(), len(h.Context))
	for i, item := range h.Context {
		fmt.Fprintf(w, "\n[%d] Score: %.4f (Semantic: %.4f, Keyword: %.4f)\n",
			i+1, item.Score, item.SemanticScore, item.KeywordScore)
		if src := item.Metadata[models.MetaFilePath]; src != "" {
			fmt.Fprintf(w, "Source: %s\n", src)
		}
		fmt.Fprintf(w, "%s\n", utils.Truncate(item.Text, 200))
	}
	if len(h.NetworkFacts) > 0 {
		fmt.Fprintf(w, "\nGene network:\n")
		for _, f := range h.NetworkFacts {
			fmt.Fprintf(w, "  %s\n", f)
		}
	}
	return nil
}

// WriteStats writes index build statistics.
func WriteStats(w io.Writer, s indexer.Stats, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	fmt.Fprintf(w, "Documents:  %d\n", s.Documents)
	fmt.Fprintf(w, "GO chunks:  %d\n", s.GOChunks)
	fmt.Fprintf(w, "Chunks:     %d\n", s.Chunks)
	fmt.Fprintf(w, "Vectors:    %d\n", s.Vectors)
	fmt.Fprintf(w, "Split:      %s\n", s.SplitDuration)
	fmt.Fprintf(w, "Insert:     %s\n", s.InsertDuration)
	fmt.Fprintf(w, "Total:      %s\n", s.TotalDuration)
	return nil
}

// VectorFile summarizes a vector index file written by `hypogen index --save`.
type VectorFile struct {
	Path       string `json:"path"`
	Vectors    int    `json:"vectors"`
	Dimensions int    `json:"dimensions"`
}

// WriteVectorFile writes a vector file summary.
func WriteVectorFile(w io.Writer, v VectorFile, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, v)
	}
	fmt.Fprintf(w, "File:       %s\n", v.Path)
	fmt.Fprintf(w, "Vectors:    %d\n", v.Vectors)
	fmt.Fprintf(w, "Dimensions: %d\n", v.Dimensions)
	return nil
}

// WritePathway writes a parsed pathway.
func WritePathway(w io.Writer, p *models.Pathway, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, p)
	}
	fmt.Fprintf(w, "Pathway %s (number %s): %s\n", p.ID, p.Number, p.Title)
	fmt.Fprintf(w, "%d gene(s), %d compound(s)\n", len(p.Genes), len(p.Compounds))
	for _, g := range p.Genes {
		if len(g.Aliases) > 0 {
			fmt.Fprintf(w, "  %-12s %s (aliases: %s)\n", g.ID, g.Name, strings.Join(g.Aliases, ", "))
		} else {
			fmt.Fprintf(w, "  %-12s %s\n", g.ID, g.Name)
		}
	}
	if len(p.Compounds) > 0 {
		fmt.Fprintf(w, "Compounds: %s\n", strings.Join(p.Compounds, ", "))
	}
	return nil
}

// WriteNetwork writes a gene network summary and its edges.
func WriteNetwork(w io.Writer, g *network.Graph, format OutputFormat) error {
	edges := g.Edges()
	if format == OutputJSON {
		return writeJSON(w, struct {
			Nodes []string       `json:"nodes"`
			Edges []network.Edge `json:"edges"`
		}{g.Nodes(), edges})
	}
	fmt.Fprintf(w, "%d gene(s), %d interaction(s)\n", g.NodeCount(), g.EdgeCount())
	for _, e := range edges {
		fmt.Fprintf(w, "  %s\n", network.FormatEdge(e))
	}
	return nil
}

// WriteGAF writes the table shape and up to limit annotations. limit <= 0 writes all.
func WriteGAF(w io.Writer, t *gaf.Table, limit int, format OutputFormat) error {
	rows, cols := t.Shape()
	anns := gaf.Annotations(t)
	if limit > 0 && len(anns) > limit {
		anns = anns[:limit]
	}
	if format == OutputJSON {
		return writeJSON(w, struct {
			Rows        int              `json:"rows"`
			Columns     int              `json:"columns"`
			Annotations []gaf.Annotation `json:"annotations"`
		}{rows, cols, anns})
	}
	fmt.Fprintf(w, "Shape: %d rows x %d columns\n", rows, cols)
	for _, a := range anns {
		fmt.Fprintf(w, "  %s:%s\t%s\t%s\t%s\t%s\n", a.DB, a.ObjectID, a.Symbol, a.GOID, a.EvidenceCode, a.Aspect)
	}
	return nil
}
