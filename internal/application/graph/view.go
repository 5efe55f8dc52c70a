package graph

import (
	"github.com/powers-protocol/powers/pkg/domain"
)

// Node is a mandate as drawn on the canvas.
type Node struct {
	ID       string          `json:"id"`
	Mandate  domain.Mandate  `json:"mandate"`
	Position domain.Position `json:"position"`
	Cell     *Cell           `json:"cell,omitempty"`
	Selected bool            `json:"selected"`
	// Connected is true when the node shares a component with the selection.
	Connected bool           `json:"connected"`
	Opacity   float64        `json:"opacity"`
	Executed  bool           `json:"executed"`
	Action    *domain.Action `json:"action,omitempty"`
}

// ViewOptions selects what a view highlights.
type ViewOptions struct {
	Selected string
	Cache    map[string]domain.Position
	// Action, when set, is matched across mandates with ActionChain.
	Action *domain.Action
}

// View is a complete, renderable graph.
type View struct {
	Nodes     []Node   `json:"nodes"`
	Edges     []Edge   `json:"edges"`
	Selected  string   `json:"selected,omitempty"`
	FromCache bool     `json:"fromCache"`
	Warnings  []string `json:"warnings,omitempty"`
}

// NewView lays out mandates and decorates the result for display. It never
// fails: unresolvable action data only drops the executed markers and is
// reported as a warning.
func NewView(mandates []domain.Mandate, opts ViewOptions) *View {
	g := Build(mandates)
	placement := g.Layout(opts.Cache)
	connected := g.Connected(opts.Selected)

	v := &View{
		Selected:  opts.Selected,
		FromCache: placement.FromCache,
		Warnings:  NewValidator().Issues(mandates),
	}

	chain, err := ActionChain(opts.Action, mandates)
	if err != nil {
		v.Warnings = append(v.Warnings, err.Error())
		chain = nil
	}

	for _, id := range g.ids {
		n := Node{
			ID:        id,
			Mandate:   g.mandates[id],
			Position:  placement.Positions[id],
			Selected:  id == opts.Selected,
			Connected: connected[id],
			Opacity:   1,
		}
		if cell, ok := placement.Cells[id]; ok {
			n.Cell = &cell
		}
		if len(connected) > 0 && !n.Connected {
			n.Opacity = dimmedOpacity
		}
		if a, ok := chain[id]; ok {
			n.Action = &a
			n.Executed = a.Fulfilled()
		}
		v.Nodes = append(v.Nodes, n)
	}
	v.Edges = g.Edges(connected)
	return v
}

// Positions returns node positions keyed by id.
func (v *View) Positions() map[string]domain.Position {
	out := make(map[string]domain.Position, len(v.Nodes))
	for _, n := range v.Nodes {
		out[n.ID] = n.Position
	}
	return out
}
