package repository

import (
	"context"

	"github.com/craftdeck/craftdeck-backend/internal/graphs/domain"
)

// Store is the graph document store the relay mutates. Update runs the
// mutate callback inside a transaction that re-reads the document and
// writes the whole value back, so concurrent mutations to one graph
// serialize instead of losing writes.
type Store interface {
	Get(ctx context.Context, id string) (*domain.Graph, error)
	Create(ctx context.Context, g *domain.Graph) error
	Update(ctx context.Context, id string, mutate func(g *domain.Graph) error) error
	Delete(ctx context.Context, id string) error

	// Stamp records the latest applied event on a graph document. This is
	// the acknowledgement write, separate from the data write.
	Stamp(ctx context.Context, id, eventID string) error
}
