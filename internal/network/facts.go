package network

import "fmt"

// Facts renders the direct relations of each gene as "A -[label]-> B" lines.
// Genes missing from g are skipped; each line appears once.
func Facts(g *Graph, genes []string) []string {
	if g == nil {
		return nil
	}
	var (
		out  []string
		seen = make(map[string]struct{})
	)
	add := func(e Edge) {
		line := FormatEdge(e)
		if _, ok := seen[line]; ok {
			return
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	for _, gene := range genes {
		id, ok := g.Lookup(gene)
		if !ok {
			continue
		}
		for _, e := range g.Successors(id) {
			add(e)
		}
		for _, e := range g.Predecessors(id) {
			add(e)
		}
	}
	return out
}

// FormatEdge renders e as "From -[Label]-> To". An empty label renders as "-->".
func FormatEdge(e Edge) string {
	if e.Label == "" {
		return fmt.Sprintf("%s --> %s", e.From, e.To)
	}
	return fmt.Sprintf("%s -[%s]-> %s", e.From, e.Label, e.To)
}
