package domain

import "time"

// Position is a node position in flow coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Viewport is the last-used pan/zoom of a flow view.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// LayoutRecord is the cached layout of one Powers contract. Node keys are
// mandate indices in decimal form.
type LayoutRecord struct {
	Address   string              `json:"address"`
	Nodes     map[string]Position `json:"nodes,omitempty"`
	Viewport  *Viewport           `json:"viewport,omitempty"`
	UpdatedAt time.Time           `json:"updatedAt"`
}
