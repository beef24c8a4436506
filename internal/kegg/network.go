package kegg

import (
	"context"
	"io"

	"github.com/hyperjump/hypogen/internal/network"
)

// BuildGeneNetwork builds the directed gene graph of the pathway file at path.
// Relations whose entries do not both resolve to genes are skipped.
func BuildGeneNetwork(path string) (*network.Graph, error) {
	doc, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return doc.geneNetwork(), nil
}

// BuildGeneNetworkReader is BuildGeneNetwork for an already open reader.
func BuildGeneNetworkReader(r io.Reader, name string) (*network.Graph, error) {
	doc, err := decode(r, name)
	if err != nil {
		return nil, err
	}
	return doc.geneNetwork(), nil
}

// BuildNetworkFromDirectory merges the gene networks of every .xml file in dir.
func BuildNetworkFromDirectory(ctx context.Context, dir string) (*network.Graph, error) {
	paths, err := xmlFiles(dir)
	if err != nil {
		return nil, err
	}
	merged := network.New()
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g, err := BuildGeneNetwork(p)
		if err != nil {
			return nil, err
		}
		merged.Merge(g)
	}
	return merged, nil
}

func (k *kgml) geneNetwork() *network.Graph {
	g := network.New()
	byEntry := make(map[string]string)
	for _, e := range k.Entries {
		if e.Type != entryTypeGene {
			continue
		}
		gene, ok := geneFromName(e.Name)
		if !ok {
			continue
		}
		g.AddNode(gene.ID)
		if e.ID != "" {
			byEntry[e.ID] = gene.ID
		}
	}
	for _, r := range k.Relations {
		if r.Entry1 == "" || r.Entry2 == "" {
			continue
		}
		from, ok1 := byEntry[r.Entry1]
		to, ok2 := byEntry[r.Entry2]
		if !ok1 || !ok2 {
			continue
		}
		g.AddEdge(from, to, r.Type)
	}
	return g
}
