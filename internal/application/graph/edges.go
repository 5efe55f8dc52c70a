package graph

import "fmt"

// EdgeKind distinguishes the two dependency conditions.
type EdgeKind string

const (
	EdgeNeedFulfilled    EdgeKind = "needFulfilled"
	EdgeNeedNotFulfilled EdgeKind = "needNotFulfilled"
)

// Handles the flow canvas attaches edges to.
const (
	TargetHandle = "fulfilled-target"

	dimmedOpacity = 0.5
	dashPattern   = "6,3"
)

// Edge points from a mandate to the mandate it depends on.
type Edge struct {
	ID              string   `json:"id"`
	Source          string   `json:"source"`
	Target          string   `json:"target"`
	SourceHandle    string   `json:"sourceHandle"`
	TargetHandle    string   `json:"targetHandle"`
	Kind            EdgeKind `json:"kind"`
	Label           string   `json:"label"`
	StrokeDasharray string   `json:"strokeDasharray,omitempty"`
	Opacity         float64  `json:"opacity"`
}

// Dashed reports whether the edge is drawn with a dash pattern.
func (e Edge) Dashed() bool {
	return e.StrokeDasharray != ""
}

// Edges returns one edge per dependency reference that resolves to a node.
// With a non-empty connected set, edges touching no connected node are
// dimmed.
func (g *Graph) Edges(connected map[string]bool) []Edge {
	var edges []Edge
	for _, id := range g.ids {
		c := g.mandates[id].Conditions
		if target, ok := g.ref(c.NeedFulfilled); ok {
			edges = append(edges, newEdge(id, target, EdgeNeedFulfilled, connected))
		}
		if target, ok := g.ref(c.NeedNotFulfilled); ok {
			edges = append(edges, newEdge(id, target, EdgeNeedNotFulfilled, connected))
		}
	}
	return edges
}

func (g *Graph) ref(index uint16) (string, bool) {
	if index == 0 {
		return "", false
	}
	id := fmt.Sprintf("%d", index)
	return id, g.Has(id)
}

func newEdge(source, target string, kind EdgeKind, connected map[string]bool) Edge {
	e := Edge{
		ID:           fmt.Sprintf("%s-%s-%s", source, kind, target),
		Source:       source,
		Target:       target,
		SourceHandle: string(kind) + "-handle",
		TargetHandle: TargetHandle,
		Kind:         kind,
		Opacity:      1,
	}
	switch kind {
	case EdgeNeedFulfilled:
		e.Label = "Needs Fulfilled"
	case EdgeNeedNotFulfilled:
		e.Label = "Needs Not Fulfilled"
		e.StrokeDasharray = dashPattern
	}
	if len(connected) > 0 && !connected[source] && !connected[target] {
		e.Opacity = dimmedOpacity
	}
	return e
}
