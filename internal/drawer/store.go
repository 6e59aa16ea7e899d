package drawer

import (
	"context"
	"sync"

	graphs "github.com/craftdeck/craftdeck-backend/internal/graphs/domain"
)

// GraphStore is the presentation-state adapter over one drawer: current
// graph snapshot, selection, pan and zoom, plus a coalesced change signal
// for pages to re-render on.
type GraphStore struct {
	drawer *Drawer

	mu           sync.RWMutex
	selectedNode *graphs.Node
	selectedEdge *graphs.Edge
	zoom         float64
	panX, panY   float64

	changes chan struct{}
}

// NewGraphStore creates a store over the drawer. Call Run to start
// consuming the drawer's events.
func NewGraphStore(d *Drawer) *GraphStore {
	return &GraphStore{
		drawer:  d,
		zoom:    1,
		changes: make(chan struct{}, 1),
	}
}

// Run consumes the drawer's bus until the context is done or the drawer
// closes.
func (s *GraphStore) Run(ctx context.Context) {
	stream := s.drawer.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-stream:
			if !open {
				return
			}
			s.consume(ev)
		}
	}
}

func (s *GraphStore) consume(ev Event) {
	s.mu.Lock()
	switch e := ev.(type) {
	case Click:
		s.selectedNode = nil
		s.selectedEdge = nil
	case OneTapNode:
		n := e.Node
		s.selectedNode = &n
		s.selectedEdge = nil
	case OneTapEdge:
		edge := e.Edge
		s.selectedEdge = &edge
		s.selectedNode = nil
	case GraphScrolled:
		s.zoom = e.ZoomSize
	case PanDragged:
		s.panX, s.panY = e.X, e.Y
	case DeleteNodeSuccess:
		if s.selectedNode != nil && s.selectedNode.ID == e.NodeID {
			s.selectedNode = nil
		}
	case DeleteEdgeSuccess:
		if s.selectedEdge != nil && s.selectedEdge.ID == e.EdgeID {
			s.selectedEdge = nil
		}
	}
	s.mu.Unlock()
	s.notify()
}

func (s *GraphStore) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// Changes signals after any state transition. Signals coalesce.
func (s *GraphStore) Changes() <-chan struct{} {
	return s.changes
}

// Graph returns the drawer's current graph snapshot.
func (s *GraphStore) Graph() graphs.Graph {
	return s.drawer.Graph()
}

// SelectedNode returns the selected node, or nil.
func (s *GraphStore) SelectedNode() *graphs.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selectedNode == nil {
		return nil
	}
	n := *s.selectedNode
	return &n
}

// SelectedEdge returns the selected edge, or nil.
func (s *GraphStore) SelectedEdge() *graphs.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selectedEdge == nil {
		return nil
	}
	e := *s.selectedEdge
	return &e
}

// Zoom returns the current zoom level.
func (s *GraphStore) Zoom() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.zoom
}

// Pan returns the current pan offset.
func (s *GraphStore) Pan() (x, y float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.panX, s.panY
}
