package drawer

import (
	graphs "github.com/craftdeck/craftdeck-backend/internal/graphs/domain"
)

// Position is a canvas coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LayoutDirection is the rank direction of the default layout.
type LayoutDirection string

const (
	LayoutTopBottom LayoutDirection = "TB"
	LayoutLeftRight LayoutDirection = "LR"
)

// Interactions are the gesture callbacks the drawer wires into the canvas
// exactly once. Any nil callback is simply not fired.
type Interactions struct {
	OnClick      func(pos Position)
	OnNodeTapped func(nodeID string)
	OnEdgeTapped func(edgeID string)
	OnViewNode   func(nodeID string)
	// OnEdgeDrawn fires when an edge drag completes between two nodes the
	// canvas accepted as connectable.
	OnEdgeDrawn func(edgeID, sourceID, targetID string)
	OnZoom      func(level float64)
	OnPan       func(x, y float64)
}

// Canvas is the opaque visual engine: it renders nodes and edges, fires
// gesture callbacks and supports layout and an edge-drawing mode. Removing
// a node removes its incident edges on the canvas as well.
type Canvas interface {
	Bind(in Interactions)
	AddNode(node graphs.Node, groupTag string, pos *Position)
	UpdateNode(id string, data graphs.Data)
	RemoveNode(id string)
	AddEdge(e graphs.Edge)
	RemoveEdge(id string)
	SetDrawMode(enabled bool)
	Layout(direction LayoutDirection)
}
