package service

import (
	"context"
	"fmt"

	"github.com/craftdeck/craftdeck-backend/internal/graphs/domain"
	"github.com/craftdeck/craftdeck-backend/internal/graphs/export"
	"github.com/craftdeck/craftdeck-backend/internal/graphs/repository"
)

// GraphService serves graph documents to read-side consumers.
type GraphService struct {
	store repository.Store
}

// NewGraphService creates a new GraphService.
func NewGraphService(store repository.Store) *GraphService {
	return &GraphService{store: store}
}

// GetGraph fetches one graph document.
func (s *GraphService) GetGraph(ctx context.Context, id string) (*domain.Graph, error) {
	return s.store.Get(ctx, id)
}

// ExportGraph renders a graph in the requested format ("dot" or "json").
func (s *GraphService) ExportGraph(ctx context.Context, id, format string) ([]byte, string, error) {
	g, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}

	switch format {
	case "dot":
		out, err := export.ToDOT(*g)
		return out, "text/vnd.graphviz", err
	case "json", "":
		out, err := export.ToJSON(*g)
		return out, "application/json", err
	default:
		return nil, "", fmt.Errorf("unsupported export format: %s", format)
	}
}
