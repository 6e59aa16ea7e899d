package repository

import (
	"context"
	"sync"
	"time"

	"github.com/craftdeck/craftdeck-backend/internal/graphs/domain"
)

// MemStore is an in-memory Store with the same copy-on-read document
// semantics as the Firestore repository. Update serializes mutations under
// one lock, which stands in for Firestore's transaction retry.
type MemStore struct {
	mu     sync.Mutex
	graphs map[string]*domain.Graph
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{graphs: make(map[string]*domain.Graph)}
}

func cloneGraph(g *domain.Graph) *domain.Graph {
	out := *g
	out.Data = g.Data.Merge(nil)
	out.Nodes = make([]domain.Node, len(g.Nodes))
	for i, n := range g.Nodes {
		out.Nodes[i] = domain.Node{ID: n.ID, Kind: n.Kind, Data: n.Data.Merge(nil)}
	}
	out.Edges = append([]domain.Edge{}, g.Edges...)
	return &out
}

func (s *MemStore) Get(ctx context.Context, id string) (*domain.Graph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.graphs[id]
	if !ok {
		return nil, domain.ErrGraphNotFound
	}
	return cloneGraph(g), nil
}

func (s *MemStore) Create(ctx context.Context, g *domain.Graph) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	c := cloneGraph(g)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.Nodes == nil {
		c.Nodes = []domain.Node{}
	}
	if c.Edges == nil {
		c.Edges = []domain.Edge{}
	}
	s.graphs[g.ID] = c
	return nil
}

func (s *MemStore) Update(ctx context.Context, id string, mutate func(g *domain.Graph) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.graphs[id]
	if !ok {
		return domain.ErrGraphNotFound
	}
	g := cloneGraph(stored)
	if err := mutate(g); err != nil {
		return err
	}
	g.UpdatedAt = time.Now().UTC()
	s.graphs[id] = g
	return nil
}

func (s *MemStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.graphs, id)
	return nil
}

func (s *MemStore) Stamp(ctx context.Context, id, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.graphs[id]
	if !ok {
		return domain.ErrGraphNotFound
	}
	g.LastEventID = eventID
	g.UpdatedAt = time.Now().UTC()
	return nil
}
