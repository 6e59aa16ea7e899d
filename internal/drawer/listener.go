package drawer

import (
	"context"
	"log"
	"sync"

	"github.com/craftdeck/craftdeck-backend/internal/events/broker"
	events "github.com/craftdeck/craftdeck-backend/internal/events/domain"
	graphs "github.com/craftdeck/craftdeck-backend/internal/graphs/domain"
)

// Listener feeds remotely confirmed success events into a drawer. Events
// issued by this client are dropped (echo suppression: the drawer already
// applied them optimistically when it emitted the local event), and every
// other event is applied exactly once even when it arrives on more than
// one subscribed channel.
type Listener struct {
	clientID string
	drawer   *Drawer
	broker   *broker.Broker
	types    map[string]bool

	mu   sync.Mutex
	seen map[string]bool
}

// NewListener creates a listener for one drawer. If eventTypes is empty
// every success type is dispatched; otherwise only the named ones.
func NewListener(clientID string, d *Drawer, b *broker.Broker, eventTypes ...string) *Listener {
	var types map[string]bool
	if len(eventTypes) > 0 {
		types = make(map[string]bool, len(eventTypes))
		for _, t := range eventTypes {
			types[t] = true
		}
	}
	return &Listener{
		clientID: clientID,
		drawer:   d,
		broker:   b,
		types:    types,
		seen:     make(map[string]bool),
	}
}

// Listen subscribes to the success channels of the given graph ids (the
// drawer's own graph plus any parent graphs) and dispatches until the
// context is done.
func (l *Listener) Listen(ctx context.Context, graphIDs ...string) error {
	stream, stop := l.broker.SubscribeGraphs(ctx, graphIDs...)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, open := <-stream:
			if !open {
				return nil
			}
			l.Dispatch(env)
		}
	}
}

// Dispatch routes one success envelope to the drawer's handler for it.
func (l *Listener) Dispatch(env events.Envelope) {
	if !events.IsSuccessType(env.Data.Type) {
		return
	}
	if env.Data.ClientID == l.clientID {
		// Our own echo; already applied at emission time.
		return
	}
	if l.types != nil && !l.types[env.Data.Type] {
		return
	}

	l.mu.Lock()
	if l.seen[env.ID] {
		l.mu.Unlock()
		return
	}
	l.seen[env.ID] = true
	l.mu.Unlock()

	if err := l.apply(env); err != nil {
		log.Printf("listener: failed to apply %s (%s): %v", env.Data.Type, env.ID, err)
	}
}

func (l *Listener) apply(env events.Envelope) error {
	graphID := l.drawer.Graph().ID

	switch events.CommandType(env.Data.Type) {
	case events.TypeUpdateWorkspace:
		var p events.UpdateWorkspacePayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		if p.ID == graphID {
			l.drawer.HandleGraphUpdated(p.Changes)
		}

	case events.TypeUpdateWorkspaceThumbnail:
		var p events.UpdateWorkspaceThumbnailPayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		if p.ID == graphID {
			l.drawer.HandleGraphThumbnailUpdated(p.FileID, p.FileURL)
		}

	case events.TypeCreateNode:
		var p events.CreateNodePayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		if p.GraphID == graphID {
			l.drawer.HandleNodeAdded(graphsNode(p))
		}

	case events.TypeUpdateNode:
		var p events.UpdateNodePayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		if p.GraphID == graphID {
			l.drawer.HandleNodeUpdated(p.ID, p.Changes)
		} else if p.IsGraph && p.ID == graphID {
			// The node is this drawer's own graph root, edited from its
			// parent graph.
			l.drawer.HandleGraphUpdated(p.Changes)
		}

	case events.TypeUpdateNodeThumbnail:
		var p events.UpdateNodeThumbnailPayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		if p.GraphID == graphID {
			l.drawer.HandleNodeThumbnailUpdated(p.ID, p.FileID, p.FileURL)
		} else if p.IsGraph && p.ID == graphID {
			l.drawer.HandleGraphThumbnailUpdated(p.FileID, p.FileURL)
		}

	case events.TypeDeleteNode:
		var p events.DeleteNodePayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		if p.GraphID == graphID {
			l.drawer.HandleNodeRemoved(p.ID)
		}

	case events.TypeCreateEdge:
		var p events.CreateEdgePayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		if p.GraphID == graphID {
			l.drawer.HandleEdgeAdded(edgeOf(p))
		}

	case events.TypeDeleteEdge:
		var p events.DeleteEdgePayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		if p.GraphID == graphID {
			l.drawer.HandleEdgeRemoved(p.ID)
		}
	}
	return nil
}

func graphsNode(p events.CreateNodePayload) graphs.Node {
	return graphs.Node{ID: p.ID, Kind: p.Kind, Data: p.Data}
}

func edgeOf(p events.CreateEdgePayload) graphs.Edge {
	return graphs.Edge{ID: p.ID, Source: p.Source, Target: p.Target}
}
