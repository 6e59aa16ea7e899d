package repository

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/craftdeck/craftdeck-backend/internal/graphs/domain"
)

const graphsCollection = "graphs"

// FirestoreRepository persists one document per graph under graphs/{id}.
// Nodes and edges live inside the document's array fields and are always
// rewritten whole inside a transaction.
type FirestoreRepository struct {
	client *firestore.Client
}

// NewFirestoreRepository creates a new graph repository.
func NewFirestoreRepository(client *firestore.Client) *FirestoreRepository {
	return &FirestoreRepository{client: client}
}

func (r *FirestoreRepository) doc(id string) *firestore.DocumentRef {
	return r.client.Collection(graphsCollection).Doc(id)
}

func snapshotToGraph(snap *firestore.DocumentSnapshot) (*domain.Graph, error) {
	var g domain.Graph
	if err := snap.DataTo(&g); err != nil {
		return nil, fmt.Errorf("failed to decode graph document: %w", err)
	}
	g.ID = snap.Ref.ID
	if g.Nodes == nil {
		g.Nodes = []domain.Node{}
	}
	if g.Edges == nil {
		g.Edges = []domain.Edge{}
	}
	return &g, nil
}

// Get fetches one graph document.
func (r *FirestoreRepository) Get(ctx context.Context, id string) (*domain.Graph, error) {
	snap, err := r.doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, domain.ErrGraphNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get graph %s: %w", id, err)
	}
	return snapshotToGraph(snap)
}

// Create writes a fresh graph document.
func (r *FirestoreRepository) Create(ctx context.Context, g *domain.Graph) error {
	now := time.Now().UTC()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now
	if g.Nodes == nil {
		g.Nodes = []domain.Node{}
	}
	if g.Edges == nil {
		g.Edges = []domain.Edge{}
	}
	if _, err := r.doc(g.ID).Set(ctx, g); err != nil {
		return fmt.Errorf("failed to create graph %s: %w", g.ID, err)
	}
	return nil
}

// Update re-reads the graph inside a transaction, applies mutate to the
// decoded value and writes the whole document back. Firestore retries the
// transaction on contention, so two updates to different nodes of the same
// graph both land.
func (r *FirestoreRepository) Update(ctx context.Context, id string, mutate func(g *domain.Graph) error) error {
	ref := r.doc(id)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return domain.ErrGraphNotFound
		}
		if err != nil {
			return err
		}
		g, err := snapshotToGraph(snap)
		if err != nil {
			return err
		}
		if err := mutate(g); err != nil {
			return err
		}
		g.UpdatedAt = time.Now().UTC()
		return tx.Set(ref, g)
	})
	if err != nil {
		if err == domain.ErrGraphNotFound {
			return err
		}
		return fmt.Errorf("failed to update graph %s: %w", id, err)
	}
	return nil
}

// Delete removes the graph document. Child graph documents referenced by
// node ids are not touched; cascades stop one level up at the caller.
func (r *FirestoreRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete graph %s: %w", id, err)
	}
	return nil
}

// Stamp writes the acknowledgement fields only.
func (r *FirestoreRepository) Stamp(ctx context.Context, id, eventID string) error {
	_, err := r.doc(id).Update(ctx, []firestore.Update{
		{Path: "lastEventId", Value: eventID},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	if status.Code(err) == codes.NotFound {
		return domain.ErrGraphNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to stamp graph %s: %w", id, err)
	}
	return nil
}
