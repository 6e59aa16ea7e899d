package drawer

import (
	"log"
	"sync"

	graphs "github.com/craftdeck/craftdeck-backend/internal/graphs/domain"
)

// Drawer owns one in-memory graph and its canvas rendering. It is the
// single translation point between gestures/programmatic calls and the
// event bus: mutation methods apply the change locally and emit a success
// event for persistence, while the Handle* methods replay an already
// confirmed remote change without emitting anything, which is what breaks
// the client-to-client feedback loop.
//
// The drawer trusts its caller; it validates nothing and never rolls an
// optimistic mutation back when the remote write later fails.
type Drawer struct {
	mu          sync.Mutex
	graph       *graphs.Graph
	canvas      Canvas
	direction   LayoutDirection
	initialized bool

	subs   []chan Event
	closed bool
}

// New creates a drawer for one graph. Call Initialize before use.
func New(g *graphs.Graph, canvas Canvas) *Drawer {
	return &Drawer{
		graph:     g,
		canvas:    canvas,
		direction: LayoutTopBottom,
	}
}

// Initialize wires the canvas gesture callbacks into the event bus, draws
// the current graph and runs the default layout. Calling it again is a
// no-op.
func (d *Drawer) Initialize() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.initialized {
		return
	}
	d.initialized = true

	// The callbacks fire later, from canvas gestures, so each one takes
	// the lock itself.
	d.canvas.Bind(Interactions{
		OnClick: func(pos Position) {
			d.mu.Lock()
			defer d.mu.Unlock()
			d.emit(Click{Position: pos})
		},
		OnNodeTapped: func(nodeID string) {
			d.mu.Lock()
			defer d.mu.Unlock()
			if n := d.graph.Node(nodeID); n != nil {
				d.emit(OneTapNode{Node: *n})
			}
		},
		OnEdgeTapped: func(edgeID string) {
			d.mu.Lock()
			defer d.mu.Unlock()
			if e := d.graph.Edge(edgeID); e != nil {
				d.emit(OneTapEdge{Edge: *e})
			}
		},
		OnViewNode: func(nodeID string) {
			d.mu.Lock()
			defer d.mu.Unlock()
			d.emit(ViewNode{NodeID: nodeID})
		},
		OnEdgeDrawn: func(edgeID, sourceID, targetID string) {
			d.mu.Lock()
			defer d.mu.Unlock()
			e := graphs.Edge{ID: edgeID, Source: sourceID, Target: targetID}
			d.graph.Edges = append(d.graph.Edges, e)
			d.emit(AddEdgeSuccess{Edge: e})
		},
		OnZoom: func(level float64) {
			d.mu.Lock()
			defer d.mu.Unlock()
			d.emit(GraphScrolled{ZoomSize: level})
		},
		OnPan: func(x, y float64) {
			d.mu.Lock()
			defer d.mu.Unlock()
			d.emit(PanDragged{X: x, Y: y})
		},
	})

	for _, n := range d.graph.Nodes {
		d.canvas.AddNode(n, n.GroupTag(), nil)
	}
	for _, e := range d.graph.Edges {
		d.canvas.AddEdge(e)
	}
	d.canvas.Layout(d.direction)
}

// Graph returns a snapshot of the current graph value.
func (d *Drawer) Graph() graphs.Graph {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshot()
}

func (d *Drawer) snapshot() graphs.Graph {
	g := *d.graph
	g.Data = d.graph.Data.Merge(nil)
	g.Nodes = append([]graphs.Node{}, d.graph.Nodes...)
	g.Edges = append([]graphs.Edge{}, d.graph.Edges...)
	return g
}

// Events subscribes to the bus. Every subscriber gets every event emitted
// after subscription; slow subscribers drop.
func (d *Drawer) Events() <-chan Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := make(chan Event, 64)
	d.subs = append(d.subs, ch)
	return ch
}

// Close tears down every subscription.
func (d *Drawer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	for _, ch := range d.subs {
		close(ch)
	}
	d.subs = nil
}

// emit fans an event out to all subscribers. Callers hold d.mu.
func (d *Drawer) emit(ev Event) {
	if d.closed {
		return
	}
	for _, ch := range d.subs {
		select {
		case ch <- ev:
		default:
			log.Printf("drawer: dropping %T for slow subscriber", ev)
		}
	}
}

// AddNode places a node on the canvas, optionally at an explicit position,
// and emits the local success event.
func (d *Drawer) AddNode(node graphs.Node, pos *Position) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.graph.Nodes = append(d.graph.Nodes, node)
	d.canvas.AddNode(node, node.GroupTag(), pos)
	d.emit(AddNodeSuccess{Node: node, Position: pos})
}

// UpdateNode shallow-merges changes into a node's data. The node's kind is
// never touched.
func (d *Drawer) UpdateNode(nodeID string, changes graphs.Data, kind graphs.NodeKind) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.applyNodeChanges(nodeID, changes)
	d.emit(UpdateNodeSuccess{NodeID: nodeID, Kind: kind, Changes: changes})
}

// UpdateNodeThumbnail sets a node's thumbnail from an uploaded file.
func (d *Drawer) UpdateNodeThumbnail(nodeID string, fileID, fileURL string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	kind := d.applyNodeChanges(nodeID, graphs.Data{"thumbnailUrl": fileURL})
	d.emit(UpdateNodeThumbnailSuccess{NodeID: nodeID, Kind: kind, FileID: fileID, FileURL: fileURL})
}

// applyNodeChanges merges changes into the node's data on both the graph
// value and the canvas. Returns the node's kind. Callers hold d.mu.
func (d *Drawer) applyNodeChanges(nodeID string, changes graphs.Data) graphs.NodeKind {
	n := d.graph.Node(nodeID)
	if n == nil {
		return ""
	}
	delete(changes, "kind")
	n.Data = n.Data.Merge(changes)
	d.canvas.UpdateNode(nodeID, n.Data)
	return n.Kind
}

// RemoveNode removes a node and its incident edges and emits exactly one
// delete event carrying the node's prior kind.
func (d *Drawer) RemoveNode(nodeID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	kind, removed := d.removeNodeLocked(nodeID)
	if !removed {
		return
	}
	d.emit(DeleteNodeSuccess{NodeID: nodeID, Kind: kind})
}

func (d *Drawer) removeNodeLocked(nodeID string) (graphs.NodeKind, bool) {
	n := d.graph.Node(nodeID)
	if n == nil {
		return "", false
	}
	kind := n.Kind

	nodes := d.graph.Nodes[:0]
	for _, existing := range d.graph.Nodes {
		if existing.ID != nodeID {
			nodes = append(nodes, existing)
		}
	}
	d.graph.Nodes = nodes

	edges := d.graph.Edges[:0]
	for _, e := range d.graph.Edges {
		if e.Source != nodeID && e.Target != nodeID {
			edges = append(edges, e)
		}
	}
	d.graph.Edges = edges

	// The canvas drops incident edges together with the node.
	d.canvas.RemoveNode(nodeID)
	return kind, true
}

// AddEdge inserts an edge programmatically (as opposed to an edge drawn on
// the canvas, which arrives via the edge-drawn callback).
func (d *Drawer) AddEdge(e graphs.Edge) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.graph.Edges = append(d.graph.Edges, e)
	d.canvas.AddEdge(e)
	d.emit(AddEdgeSuccess{Edge: e})
}

// RemoveEdge removes one edge.
func (d *Drawer) RemoveEdge(edgeID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.removeEdgeLocked(edgeID) {
		return
	}
	d.emit(DeleteEdgeSuccess{EdgeID: edgeID})
}

func (d *Drawer) removeEdgeLocked(edgeID string) bool {
	found := false
	edges := d.graph.Edges[:0]
	for _, e := range d.graph.Edges {
		if e.ID == edgeID {
			found = true
			continue
		}
		edges = append(edges, e)
	}
	d.graph.Edges = edges
	if found {
		d.canvas.RemoveEdge(edgeID)
	}
	return found
}

// UpdateGraph shallow-merges changes into the graph's data.
func (d *Drawer) UpdateGraph(changes graphs.Data) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.graph.Data = d.graph.Data.Merge(changes)
	d.emit(UpdateGraphSuccess{Changes: changes})
}

// UpdateGraphThumbnail sets the graph's thumbnail from an uploaded file.
func (d *Drawer) UpdateGraphThumbnail(fileID, fileURL string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.graph.Data = d.graph.Data.Merge(graphs.Data{"thumbnailUrl": fileURL})
	d.emit(UpdateGraphThumbnailSuccess{FileID: fileID, FileURL: fileURL})
}

// SetDrawMode toggles the canvas edge-drawing mode.
func (d *Drawer) SetDrawMode(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.canvas.SetDrawMode(enabled)
}

// SetLayoutDirection changes the rank direction used by RestartLayout.
func (d *Drawer) SetLayoutDirection(dir LayoutDirection) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.direction = dir
}

// RestartLayout reruns the layout with the last used direction.
func (d *Drawer) RestartLayout() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.canvas.Layout(d.direction)
}

// The Handle* methods apply a remotely confirmed mutation. They are
// idempotent and emit nothing.

// HandleGraphUpdated merges remotely confirmed graph data.
func (d *Drawer) HandleGraphUpdated(changes graphs.Data) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.graph.Data = d.graph.Data.Merge(changes)
}

// HandleGraphThumbnailUpdated applies a remotely confirmed graph thumbnail.
func (d *Drawer) HandleGraphThumbnailUpdated(fileID, fileURL string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.graph.Data = d.graph.Data.Merge(graphs.Data{"thumbnailUrl": fileURL})
}

// HandleNodeAdded inserts a remotely created node.
func (d *Drawer) HandleNodeAdded(node graphs.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.graph.Node(node.ID) != nil {
		return
	}
	d.graph.Nodes = append(d.graph.Nodes, node)
	d.canvas.AddNode(node, node.GroupTag(), nil)
}

// HandleNodeUpdated merges remotely confirmed node data.
func (d *Drawer) HandleNodeUpdated(nodeID string, changes graphs.Data) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.applyNodeChanges(nodeID, changes)
}

// HandleNodeThumbnailUpdated applies a remotely confirmed node thumbnail.
func (d *Drawer) HandleNodeThumbnailUpdated(nodeID string, fileID, fileURL string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.applyNodeChanges(nodeID, graphs.Data{"thumbnailUrl": fileURL})
}

// HandleNodeRemoved removes a remotely deleted node and its edges.
func (d *Drawer) HandleNodeRemoved(nodeID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removeNodeLocked(nodeID)
}

// HandleEdgeAdded inserts a remotely created edge.
func (d *Drawer) HandleEdgeAdded(e graphs.Edge) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.graph.Edge(e.ID) != nil {
		return
	}
	d.graph.Edges = append(d.graph.Edges, e)
	d.canvas.AddEdge(e)
}

// HandleEdgeRemoved removes a remotely deleted edge.
func (d *Drawer) HandleEdgeRemoved(edgeID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removeEdgeLocked(edgeID)
}
