package drawer

import (
	graphs "github.com/craftdeck/craftdeck-backend/internal/graphs/domain"
)

// Event is the closed union of everything the drawer's bus can carry. The
// success half means "this client just performed the mutation locally;
// persist it now". The rest are pure UI signals. Consumers branch with a
// type switch; there are no other implementations.
type Event interface {
	isEvent()
}

// AddNodeSuccess reports a node placed locally, optionally at an explicit
// position (active placement).
type AddNodeSuccess struct {
	Node     graphs.Node
	Position *Position
}

// UpdateNodeSuccess reports a local shallow-merge into a node's data.
type UpdateNodeSuccess struct {
	NodeID  string
	Kind    graphs.NodeKind
	Changes graphs.Data
}

// UpdateNodeThumbnailSuccess reports a local node thumbnail change.
type UpdateNodeThumbnailSuccess struct {
	NodeID  string
	Kind    graphs.NodeKind
	FileID  string
	FileURL string
}

// DeleteNodeSuccess reports a local node removal. It carries the node's
// kind because the node is already gone from the canvas by emit time.
type DeleteNodeSuccess struct {
	NodeID string
	Kind   graphs.NodeKind
}

// UpdateGraphSuccess reports a local merge into the graph's data.
type UpdateGraphSuccess struct {
	Changes graphs.Data
}

// UpdateGraphThumbnailSuccess reports a local graph thumbnail change.
type UpdateGraphThumbnailSuccess struct {
	FileID  string
	FileURL string
}

// AddEdgeSuccess reports an edge drawn locally.
type AddEdgeSuccess struct {
	Edge graphs.Edge
}

// DeleteEdgeSuccess reports a local edge removal.
type DeleteEdgeSuccess struct {
	EdgeID string
}

// Click is a tap on empty canvas.
type Click struct {
	Position Position
}

// OneTapNode is a tap selecting a node.
type OneTapNode struct {
	Node graphs.Node
}

// OneTapEdge is a tap selecting an edge.
type OneTapEdge struct {
	Edge graphs.Edge
}

// ViewNode asks the page to open a node (context-menu "view").
type ViewNode struct {
	NodeID string
}

// GraphScrolled carries the zoom level after a scroll gesture.
type GraphScrolled struct {
	ZoomSize float64
}

// PanDragged carries the pan offset after a drag gesture.
type PanDragged struct {
	X float64
	Y float64
}

func (AddNodeSuccess) isEvent()              {}
func (UpdateNodeSuccess) isEvent()           {}
func (UpdateNodeThumbnailSuccess) isEvent()  {}
func (DeleteNodeSuccess) isEvent()           {}
func (UpdateGraphSuccess) isEvent()          {}
func (UpdateGraphThumbnailSuccess) isEvent() {}
func (AddEdgeSuccess) isEvent()              {}
func (DeleteEdgeSuccess) isEvent()           {}
func (Click) isEvent()                       {}
func (OneTapNode) isEvent()                  {}
func (OneTapEdge) isEvent()                  {}
func (ViewNode) isEvent()                    {}
func (GraphScrolled) isEvent()               {}
func (PanDragged) isEvent()                  {}
