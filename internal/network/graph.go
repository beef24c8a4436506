// Package network holds the directed gene-interaction graph built from pathway relations.
package network

import (
	"sort"
	"strings"
	"sync"
)

// Edge is a directed, labelled relation between two genes.
type Edge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label"`
}

// Graph is a directed graph keyed by gene identifier. Each ordered pair has at most one
// edge; adding it again replaces the label. All methods are safe for concurrent use.
type Graph struct {
	mu    sync.RWMutex
	order []string
	nodes map[string]struct{}
	lower map[string]string
	out   map[string]map[string]string
	in    map[string]map[string]string
	edges int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]struct{}),
		lower: make(map[string]string),
		out:   make(map[string]map[string]string),
		in:    make(map[string]map[string]string),
	}
}

// AddNode adds id if absent and reports whether it was added.
func (g *Graph) AddNode(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addNodeLocked(id)
}

func (g *Graph) addNodeLocked(id string) bool {
	if _, ok := g.nodes[id]; ok {
		return false
	}
	g.nodes[id] = struct{}{}
	g.order = append(g.order, id)
	key := strings.ToLower(id)
	if _, ok := g.lower[key]; !ok {
		g.lower[key] = id
	}
	return true
}

// AddEdge adds from -> to with label, creating missing nodes. An existing edge keeps
// its position but takes the new label.
func (g *Graph) AddEdge(from, to, label string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addEdgeLocked(from, to, label)
}

func (g *Graph) addEdgeLocked(from, to, label string) {
	g.addNodeLocked(from)
	g.addNodeLocked(to)
	if g.out[from] == nil {
		g.out[from] = make(map[string]string)
	}
	if g.in[to] == nil {
		g.in[to] = make(map[string]string)
	}
	if _, ok := g.out[from][to]; !ok {
		g.edges++
	}
	g.out[from][to] = label
	g.in[to][from] = label
}

// HasNode reports whether id is a node.
func (g *Graph) HasNode(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// Lookup resolves a name to a node id, ignoring case.
func (g *Graph) Lookup(name string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if _, ok := g.nodes[name]; ok {
		return name, true
	}
	id, ok := g.lower[strings.ToLower(name)]
	return id, ok
}

// HasEdge reports whether from -> to exists.
func (g *Graph) HasEdge(from, to string) bool {
	_, ok := g.EdgeLabel(from, to)
	return ok
}

// EdgeLabel returns the label of from -> to.
func (g *Graph) EdgeLabel(from, to string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	label, ok := g.out[from][to]
	return label, ok
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges
}

// Nodes returns node ids in insertion order.
func (g *Graph) Nodes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.order...)
}

// Edges returns every edge, grouped by source in node insertion order and sorted by target.
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Edge, 0, g.edges)
	for _, from := range g.order {
		out = append(out, sortedEdges(g.out[from], func(to, label string) Edge {
			return Edge{From: from, To: to, Label: label}
		})...)
	}
	return out
}

// Successors returns the outgoing edges of id sorted by target.
func (g *Graph) Successors(id string) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedEdges(g.out[id], func(to, label string) Edge {
		return Edge{From: id, To: to, Label: label}
	})
}

// Predecessors returns the incoming edges of id sorted by source.
func (g *Graph) Predecessors(id string) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedEdges(g.in[id], func(from, label string) Edge {
		return Edge{From: from, To: id, Label: label}
	})
}

// Neighbors returns the ids adjacent to id in either direction, sorted and deduplicated.
func (g *Graph) Neighbors(id string) []string {
	seen := make(map[string]struct{})
	for _, e := range g.Successors(id) {
		seen[e.To] = struct{}{}
	}
	for _, e := range g.Predecessors(id) {
		seen[e.From] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Merge adds every node and edge of other to g. Labels from other win on shared edges.
func (g *Graph) Merge(other *Graph) {
	if other == nil || other == g {
		return
	}
	nodes := other.Nodes()
	edges := other.Edges()
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, n := range nodes {
		g.addNodeLocked(n)
	}
	for _, e := range edges {
		g.addEdgeLocked(e.From, e.To, e.Label)
	}
}

func sortedEdges(adj map[string]string, mk func(peer, label string) Edge) []Edge {
	peers := make([]string, 0, len(adj))
	for p := range adj {
		peers = append(peers, p)
	}
	sort.Strings(peers)
	out := make([]Edge, len(peers))
	for i, p := range peers {
		out[i] = mk(p, adj[p])
	}
	return out
}
