package graph

import (
	"github.com/powers-protocol/powers/pkg/domain"
)

// Graph is the dependency graph of a set of mandates. Node ids are mandate
// indices in decimal form.
type Graph struct {
	ids          []string
	mandates     map[string]domain.Mandate
	dependencies map[string][]string
	dependents   map[string][]string
}

// Build indexes mandates and derives both adjacency lists. The zero
// reference and references to unknown mandates are ignored; a duplicate
// index keeps its first occurrence.
func Build(mandates []domain.Mandate) *Graph {
	g := &Graph{
		mandates:     make(map[string]domain.Mandate, len(mandates)),
		dependencies: make(map[string][]string, len(mandates)),
		dependents:   make(map[string][]string, len(mandates)),
	}
	for _, m := range mandates {
		id := m.ID()
		if _, dup := g.mandates[id]; dup {
			continue
		}
		g.ids = append(g.ids, id)
		g.mandates[id] = m
	}
	for _, id := range g.ids {
		for _, ref := range g.mandates[id].DependencyRefs() {
			target := domain.Mandate{Index: ref}.ID()
			if _, ok := g.mandates[target]; !ok {
				continue
			}
			g.dependencies[id] = appendUnique(g.dependencies[id], target)
			g.dependents[target] = appendUnique(g.dependents[target], id)
		}
	}
	return g
}

func appendUnique(list []string, id string) []string {
	for _, existing := range list {
		if existing == id {
			return list
		}
	}
	return append(list, id)
}

// IDs returns node ids in input order.
func (g *Graph) IDs() []string {
	return append([]string(nil), g.ids...)
}

// Len returns the number of mandates in the graph.
func (g *Graph) Len() int {
	return len(g.ids)
}

// Has reports whether id is a node of the graph.
func (g *Graph) Has(id string) bool {
	_, ok := g.mandates[id]
	return ok
}

// Mandate returns the mandate behind id.
func (g *Graph) Mandate(id string) (domain.Mandate, bool) {
	m, ok := g.mandates[id]
	return m, ok
}

// Dependencies returns the mandates id must check before it can be fulfilled.
func (g *Graph) Dependencies(id string) []string {
	return append([]string(nil), g.dependencies[id]...)
}

// Dependents returns the mandates that check id.
func (g *Graph) Dependents(id string) []string {
	return append([]string(nil), g.dependents[id]...)
}

// Roots returns the mandates without dependencies, in input order.
func (g *Graph) Roots() []string {
	var roots []string
	for _, id := range g.ids {
		if len(g.dependencies[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}
