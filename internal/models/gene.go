// Package models defines the core data structures shared across hypogen:
// pathways and genes, loaded documents and chunks, and hypothesis answers.
package models

// Gene is a gene entry parsed from a KEGG pathway file.
type Gene struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Aliases []string `json:"aliases"`
}

// Pathway is the parsed content of exactly one KEGG XML file.
// Genes keep file order and may contain duplicate IDs.
type Pathway struct {
	ID        string   `json:"id"`
	Number    string   `json:"number"`
	Title     string   `json:"title"`
	Genes     []Gene   `json:"genes"`
	Compounds []string `json:"compounds"`
}

// GeneIDs returns the IDs of p's genes in file order.
func (p *Pathway) GeneIDs() []string {
	ids := make([]string, len(p.Genes))
	for i, g := range p.Genes {
		ids[i] = g.ID
	}
	return ids
}
