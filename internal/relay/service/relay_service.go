package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"golang.org/x/time/rate"

	"github.com/craftdeck/craftdeck-backend/internal/events/broker"
	events "github.com/craftdeck/craftdeck-backend/internal/events/domain"
	graphs "github.com/craftdeck/craftdeck-backend/internal/graphs/domain"
	"github.com/craftdeck/craftdeck-backend/internal/graphs/repository"
)

// EventLog records every relayed envelope, commands and successes alike.
type EventLog interface {
	Append(ctx context.Context, env events.Envelope) error
}

// UploadRecorder tracks thumbnail file provenance.
type UploadRecorder interface {
	Record(ctx context.Context, fileID, kind, ref string) error
}

// handler applies one command kind. The ok result is false when the
// envelope's type tag does not match the handler, in which case the
// envelope is dropped without error.
type handler func(ctx context.Context, env events.Envelope) (success events.Envelope, ok bool, err error)

// Service is the relay worker: it consumes command envelopes, applies each
// one transactionally to the graph document store, broadcasts the matching
// success envelope, and stamps acknowledgements when successes come back
// around. Mutation and acknowledgement are two separate writes on purpose;
// clients converge on the broadcast, not on the stamp.
type Service struct {
	store    repository.Store
	broker   *broker.Broker
	eventLog EventLog
	uploads  UploadRecorder
	limiter  *rate.Limiter
	handlers map[string]handler
}

// New creates a relay service. eventLog and uploads may be nil, in which
// case the corresponding bookkeeping is skipped.
func New(store repository.Store, b *broker.Broker, eventLog EventLog, uploads UploadRecorder, commandsPerSecond int) *Service {
	if commandsPerSecond <= 0 {
		commandsPerSecond = 200
	}
	s := &Service{
		store:    store,
		broker:   b,
		eventLog: eventLog,
		uploads:  uploads,
		limiter:  rate.NewLimiter(rate.Limit(commandsPerSecond), commandsPerSecond),
	}
	s.handlers = map[string]handler{
		events.TypeCreateWorkspace:          s.createWorkspace,
		events.TypeUpdateWorkspace:          s.updateWorkspace,
		events.TypeUpdateWorkspaceThumbnail: s.updateWorkspaceThumbnail,
		events.TypeDeleteWorkspace:          s.deleteWorkspace,
		events.TypeCreateNode:               s.createNode,
		events.TypeUpdateNode:               s.updateNode,
		events.TypeUpdateNodeThumbnail:      s.updateNodeThumbnail,
		events.TypeDeleteNode:               s.deleteNode,
		events.TypeCreateEdge:               s.createEdge,
		events.TypeDeleteEdge:               s.deleteEdge,
	}
	return s
}

// Run consumes commands and acknowledgements until the context is done.
func (s *Service) Run(ctx context.Context) error {
	commands, stopCommands := s.broker.SubscribeCommands(ctx)
	defer stopCommands()

	acks, stopAcks := s.broker.SubscribeAllEvents(ctx)
	defer stopAcks()

	log.Println("relay: consuming commands")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case env, open := <-commands:
			if !open {
				return nil
			}
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
			if err := s.Apply(ctx, env); err != nil {
				log.Printf("relay: failed to apply %s (%s): %v", env.Data.Type, env.ID, err)
			}

		case env, open := <-acks:
			if !open {
				return nil
			}
			s.Acknowledge(ctx, env)
		}
	}
}

// Apply dispatches one command envelope: mutate the store, append the
// success to the event log, broadcast it. A publish failure after a
// successful write is logged only; other clients converge on their next
// read, not via a compensating transaction.
func (s *Service) Apply(ctx context.Context, env events.Envelope) error {
	h, known := s.handlers[env.Data.Type]
	if !known {
		return fmt.Errorf("%w: %s", events.ErrUnknownEventType, env.Data.Type)
	}

	success, ok, err := h(ctx, env)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if s.eventLog != nil {
		if err := s.eventLog.Append(ctx, success); err != nil {
			log.Printf("relay: failed to log success %s: %v", success.ID, err)
		}
	}
	if err := s.broker.PublishSuccess(ctx, success); err != nil {
		log.Printf("relay: applied %s but failed to broadcast success: %v", env.Data.Type, err)
	}
	return nil
}

// Acknowledge stamps lastEventId on every graph document a success event
// touched. Documents already deleted by the command are skipped.
func (s *Service) Acknowledge(ctx context.Context, env events.Envelope) {
	if !events.IsSuccessType(env.Data.Type) {
		return
	}
	for _, graphID := range env.Data.GraphIDs {
		if err := s.store.Stamp(ctx, graphID, env.ID); err != nil {
			if errors.Is(err, graphs.ErrGraphNotFound) {
				continue
			}
			log.Printf("relay: failed to stamp %s on graph %s: %v", env.ID, graphID, err)
		}
	}
}

func (s *Service) createWorkspace(ctx context.Context, env events.Envelope) (events.Envelope, bool, error) {
	if env.Data.Type != events.TypeCreateWorkspace {
		return events.Envelope{}, false, nil
	}
	var p events.CreateWorkspacePayload
	if err := env.DecodePayload(&p); err != nil {
		return events.Envelope{}, false, err
	}

	g := &graphs.Graph{
		ID:   p.ID,
		Kind: graphs.GraphKindWorkspace,
		Data: graphs.Data{
			"kind":   string(graphs.GraphKindWorkspace),
			"name":   p.Name,
			"userId": p.UserID,
		},
	}
	if err := s.store.Create(ctx, g); err != nil {
		return events.Envelope{}, false, err
	}
	success, err := events.NewSuccess(env, p, []string{p.ID})
	return success, err == nil, err
}

func (s *Service) updateWorkspace(ctx context.Context, env events.Envelope) (events.Envelope, bool, error) {
	if env.Data.Type != events.TypeUpdateWorkspace {
		return events.Envelope{}, false, nil
	}
	var p events.UpdateWorkspacePayload
	if err := env.DecodePayload(&p); err != nil {
		return events.Envelope{}, false, err
	}

	err := s.store.Update(ctx, p.ID, func(g *graphs.Graph) error {
		g.Data = g.Data.Merge(p.Changes)
		return nil
	})
	if err != nil {
		return events.Envelope{}, false, err
	}
	success, err := events.NewSuccess(env, p, []string{p.ID})
	return success, err == nil, err
}

func (s *Service) updateWorkspaceThumbnail(ctx context.Context, env events.Envelope) (events.Envelope, bool, error) {
	if env.Data.Type != events.TypeUpdateWorkspaceThumbnail {
		return events.Envelope{}, false, nil
	}
	var p events.UpdateWorkspaceThumbnailPayload
	if err := env.DecodePayload(&p); err != nil {
		return events.Envelope{}, false, err
	}

	err := s.store.Update(ctx, p.ID, func(g *graphs.Graph) error {
		g.Data = g.Data.Merge(graphs.Data{"thumbnailUrl": p.FileURL})
		return nil
	})
	if err != nil {
		return events.Envelope{}, false, err
	}
	s.recordUpload(ctx, p.FileID, string(graphs.GraphKindWorkspace), p.ID)
	success, err := events.NewSuccess(env, p, []string{p.ID})
	return success, err == nil, err
}

func (s *Service) deleteWorkspace(ctx context.Context, env events.Envelope) (events.Envelope, bool, error) {
	if env.Data.Type != events.TypeDeleteWorkspace {
		return events.Envelope{}, false, nil
	}
	var p events.DeleteWorkspacePayload
	if err := env.DecodePayload(&p); err != nil {
		return events.Envelope{}, false, err
	}

	if err := s.store.Delete(ctx, p.ID); err != nil {
		return events.Envelope{}, false, err
	}
	success, err := events.NewSuccess(env, p, []string{p.ID})
	return success, err == nil, err
}

func (s *Service) createNode(ctx context.Context, env events.Envelope) (events.Envelope, bool, error) {
	if env.Data.Type != events.TypeCreateNode {
		return events.Envelope{}, false, nil
	}
	var p events.CreateNodePayload
	if err := env.DecodePayload(&p); err != nil {
		return events.Envelope{}, false, err
	}

	node := graphs.Node{ID: p.ID, Kind: p.Kind, Data: p.Data}
	err := s.store.Update(ctx, p.GraphID, func(g *graphs.Graph) error {
		if g.Node(p.ID) != nil {
			return nil // already applied, converge idempotently
		}
		g.Nodes = append(g.Nodes, node)
		return nil
	})
	if err != nil {
		return events.Envelope{}, false, err
	}

	touched := []string{p.GraphID}
	if p.IsGraph {
		// A node that is itself a graph root gets its own document.
		child := &graphs.Graph{
			ID:   p.ID,
			Kind: graphKindForNode(p.Kind),
			Data: p.Data.Merge(graphs.Data{"kind": string(graphKindForNode(p.Kind))}),
		}
		if err := s.store.Create(ctx, child); err != nil {
			return events.Envelope{}, false, err
		}
		touched = append(touched, p.ID)
	}
	success, err := events.NewSuccess(env, p, touched)
	return success, err == nil, err
}

func (s *Service) updateNode(ctx context.Context, env events.Envelope) (events.Envelope, bool, error) {
	if env.Data.Type != events.TypeUpdateNode {
		return events.Envelope{}, false, nil
	}
	var p events.UpdateNodePayload
	if err := env.DecodePayload(&p); err != nil {
		return events.Envelope{}, false, err
	}

	// The node's kind never changes; only data merges.
	delete(p.Changes, "kind")

	err := s.store.Update(ctx, p.GraphID, func(g *graphs.Graph) error {
		n := g.Node(p.ID)
		if n == nil {
			return graphs.ErrNodeNotFound
		}
		n.Data = n.Data.Merge(p.Changes)
		return nil
	})
	if err != nil {
		return events.Envelope{}, false, err
	}

	touched := []string{p.GraphID}
	if p.IsGraph {
		err := s.store.Update(ctx, p.ID, func(g *graphs.Graph) error {
			g.Data = g.Data.Merge(p.Changes)
			return nil
		})
		if err != nil {
			return events.Envelope{}, false, err
		}
		touched = append(touched, p.ID)
	}
	success, err := events.NewSuccess(env, p, touched)
	return success, err == nil, err
}

func (s *Service) updateNodeThumbnail(ctx context.Context, env events.Envelope) (events.Envelope, bool, error) {
	if env.Data.Type != events.TypeUpdateNodeThumbnail {
		return events.Envelope{}, false, nil
	}
	var p events.UpdateNodeThumbnailPayload
	if err := env.DecodePayload(&p); err != nil {
		return events.Envelope{}, false, err
	}

	changes := graphs.Data{"thumbnailUrl": p.FileURL}
	err := s.store.Update(ctx, p.GraphID, func(g *graphs.Graph) error {
		n := g.Node(p.ID)
		if n == nil {
			return graphs.ErrNodeNotFound
		}
		n.Data = n.Data.Merge(changes)
		return nil
	})
	if err != nil {
		return events.Envelope{}, false, err
	}

	touched := []string{p.GraphID}
	if p.IsGraph {
		err := s.store.Update(ctx, p.ID, func(g *graphs.Graph) error {
			g.Data = g.Data.Merge(changes)
			return nil
		})
		if err != nil {
			return events.Envelope{}, false, err
		}
		touched = append(touched, p.ID)
	}
	s.recordUpload(ctx, p.FileID, string(p.Kind), p.ID)
	success, err := events.NewSuccess(env, p, touched)
	return success, err == nil, err
}

func (s *Service) deleteNode(ctx context.Context, env events.Envelope) (events.Envelope, bool, error) {
	if env.Data.Type != events.TypeDeleteNode {
		return events.Envelope{}, false, nil
	}
	var p events.DeleteNodePayload
	if err := env.DecodePayload(&p); err != nil {
		return events.Envelope{}, false, err
	}

	err := s.store.Update(ctx, p.GraphID, func(g *graphs.Graph) error {
		nodes := g.Nodes[:0]
		for _, n := range g.Nodes {
			if n.ID != p.ID {
				nodes = append(nodes, n)
			}
		}
		g.Nodes = nodes

		// Edges referencing the node go with it.
		edges := g.Edges[:0]
		for _, e := range g.Edges {
			if e.Source != p.ID && e.Target != p.ID {
				edges = append(edges, e)
			}
		}
		g.Edges = edges
		return nil
	})
	if err != nil {
		return events.Envelope{}, false, err
	}

	touched := []string{p.GraphID}
	if p.IsGraph {
		// Cascades one level only: the child document is removed, its own
		// children are not chased.
		if err := s.store.Delete(ctx, p.ID); err != nil {
			return events.Envelope{}, false, err
		}
		touched = append(touched, p.ID)
	}
	success, err := events.NewSuccess(env, p, touched)
	return success, err == nil, err
}

func (s *Service) createEdge(ctx context.Context, env events.Envelope) (events.Envelope, bool, error) {
	if env.Data.Type != events.TypeCreateEdge {
		return events.Envelope{}, false, nil
	}
	var p events.CreateEdgePayload
	if err := env.DecodePayload(&p); err != nil {
		return events.Envelope{}, false, err
	}

	err := s.store.Update(ctx, p.GraphID, func(g *graphs.Graph) error {
		if g.Edge(p.ID) != nil {
			return nil
		}
		g.Edges = append(g.Edges, graphs.Edge{ID: p.ID, Source: p.Source, Target: p.Target})
		return nil
	})
	if err != nil {
		return events.Envelope{}, false, err
	}
	success, err := events.NewSuccess(env, p, []string{p.GraphID})
	return success, err == nil, err
}

func (s *Service) deleteEdge(ctx context.Context, env events.Envelope) (events.Envelope, bool, error) {
	if env.Data.Type != events.TypeDeleteEdge {
		return events.Envelope{}, false, nil
	}
	var p events.DeleteEdgePayload
	if err := env.DecodePayload(&p); err != nil {
		return events.Envelope{}, false, err
	}

	err := s.store.Update(ctx, p.GraphID, func(g *graphs.Graph) error {
		edges := g.Edges[:0]
		for _, e := range g.Edges {
			if e.ID != p.ID {
				edges = append(edges, e)
			}
		}
		g.Edges = edges
		return nil
	})
	if err != nil {
		return events.Envelope{}, false, err
	}
	success, err := events.NewSuccess(env, p, []string{p.GraphID})
	return success, err == nil, err
}

func (s *Service) recordUpload(ctx context.Context, fileID, kind, ref string) {
	if s.uploads == nil || fileID == "" {
		return
	}
	if err := s.uploads.Record(ctx, fileID, kind, ref); err != nil {
		log.Printf("relay: failed to record upload %s: %v", fileID, err)
	}
}

// graphKindForNode maps a graph-rooted node kind to the kind of its own
// graph document.
func graphKindForNode(kind graphs.NodeKind) graphs.GraphKind {
	switch kind {
	case graphs.NodeKindInstruction:
		return graphs.GraphKindInstruction
	default:
		return graphs.GraphKindApplication
	}
}
