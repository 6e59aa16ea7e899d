package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/craftdeck/craftdeck-backend/internal/events/domain"
)

const (
	commandChannel     = "graph:commands"       // All command envelopes
	eventChannelPrefix = "graph:events:"        // Success fan-out: graph:events:{graph_id}
	eventChannelGlob   = eventChannelPrefix + "*"
)

// Broker relays event envelopes over Redis pub/sub. Commands go to a single
// shared channel; success events are fanned out to one channel per touched
// graph so stream subscribers only see their own scope.
type Broker struct {
	client *redis.Client
}

// New creates a Broker on top of an existing Redis client.
func New(client *redis.Client) *Broker {
	return &Broker{client: client}
}

// EventChannel returns the success channel name for a graph id.
func EventChannel(graphID string) string {
	return fmt.Sprintf("%s%s", eventChannelPrefix, graphID)
}

// PublishCommand publishes a command envelope to the shared command channel.
func (b *Broker) PublishCommand(ctx context.Context, env domain.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal command envelope: %w", err)
	}
	if err := b.client.Publish(ctx, commandChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish command: %w", err)
	}
	return nil
}

// PublishSuccess publishes a success envelope to the event channel of every
// graph it touched.
func (b *Broker) PublishSuccess(ctx context.Context, env domain.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal success envelope: %w", err)
	}
	seen := make(map[string]bool, len(env.Data.GraphIDs))
	for _, graphID := range env.Data.GraphIDs {
		if graphID == "" || seen[graphID] {
			continue
		}
		seen[graphID] = true
		if err := b.client.Publish(ctx, EventChannel(graphID), data).Err(); err != nil {
			return fmt.Errorf("failed to publish success for graph %s: %w", graphID, err)
		}
	}
	return nil
}

// SubscribeCommands streams every command envelope published to the shared
// command channel. The returned stop function tears the subscription down
// and closes the channel.
func (b *Broker) SubscribeCommands(ctx context.Context) (<-chan domain.Envelope, func()) {
	sub := b.client.Subscribe(ctx, commandChannel)
	return b.pump(ctx, sub)
}

// SubscribeGraphs streams success envelopes for the given graph ids.
func (b *Broker) SubscribeGraphs(ctx context.Context, graphIDs ...string) (<-chan domain.Envelope, func()) {
	channels := make([]string, 0, len(graphIDs))
	for _, id := range graphIDs {
		channels = append(channels, EventChannel(id))
	}
	sub := b.client.Subscribe(ctx, channels...)
	return b.pump(ctx, sub)
}

// SubscribeAllEvents pattern-subscribes to every graph's success channel.
// Used by the relay's acknowledgement half.
func (b *Broker) SubscribeAllEvents(ctx context.Context) (<-chan domain.Envelope, func()) {
	sub := b.client.PSubscribe(ctx, eventChannelGlob)
	return b.pump(ctx, sub)
}

func (b *Broker) pump(ctx context.Context, sub *redis.PubSub) (<-chan domain.Envelope, func()) {
	out := make(chan domain.Envelope, 64)

	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var env domain.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Printf("broker: dropping undecodable message on %s: %v", msg.Channel, err)
				continue
			}
			select {
			case out <- env:
			case <-ctx.Done():
				return
			}
		}
	}()

	stop := func() {
		_ = sub.Close()
	}
	return out, stop
}
