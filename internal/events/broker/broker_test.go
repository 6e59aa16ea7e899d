package broker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftdeck/craftdeck-backend/internal/events/domain"
)

func setupBroker(t *testing.T) *Broker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client)
}

func receive(t *testing.T, ch <-chan domain.Envelope) domain.Envelope {
	t.Helper()
	select {
	case env := <-ch:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for envelope")
		return domain.Envelope{}
	}
}

func expectNothing(t *testing.T, ch <-chan domain.Envelope) {
	t.Helper()
	select {
	case env := <-ch:
		t.Fatalf("unexpected envelope %s (%s)", env.ID, env.Data.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEventChannel(t *testing.T) {
	assert.Equal(t, "graph:events:w1", EventChannel("w1"))
}

func TestCommandRoundTrip(t *testing.T) {
	b := setupBroker(t)
	ctx := context.Background()

	commands, stop := b.SubscribeCommands(ctx)
	defer stop()
	time.Sleep(20 * time.Millisecond)

	cmd, err := domain.NewCommand(domain.TypeCreateEdge,
		domain.CreateEdgePayload{ID: "e1", GraphID: "w1", Source: "a", Target: "b"},
		[]string{"w1"}, "c1")
	require.NoError(t, err)
	require.NoError(t, b.PublishCommand(ctx, cmd))

	got := receive(t, commands)
	assert.Equal(t, cmd.ID, got.ID)
	assert.Equal(t, domain.TypeCreateEdge, got.Data.Type)
	assert.Equal(t, []string{"w1"}, got.Data.GraphIDs)

	var p domain.CreateEdgePayload
	require.NoError(t, got.DecodePayload(&p))
	assert.Equal(t, "e1", p.ID)
}

func TestSuccessFanOut(t *testing.T) {
	b := setupBroker(t)
	ctx := context.Background()

	w1, stopW1 := b.SubscribeGraphs(ctx, "w1")
	defer stopW1()
	w2, stopW2 := b.SubscribeGraphs(ctx, "w2")
	defer stopW2()
	other, stopOther := b.SubscribeGraphs(ctx, "other")
	defer stopOther()
	time.Sleep(20 * time.Millisecond)

	cmd, err := domain.NewCommand(domain.TypeCreateNode,
		domain.CreateNodePayload{ID: "n1", GraphID: "w1"}, []string{"w1"}, "c1")
	require.NoError(t, err)
	// Duplicate graph ids must not double-publish on the same channel.
	success, err := domain.NewSuccess(cmd, nil, []string{"w1", "w2", "w1", ""})
	require.NoError(t, err)
	require.NoError(t, b.PublishSuccess(ctx, success))

	assert.Equal(t, success.ID, receive(t, w1).ID)
	assert.Equal(t, success.ID, receive(t, w2).ID)
	expectNothing(t, w1)
	expectNothing(t, other)
}

func TestSubscribeAllEvents(t *testing.T) {
	b := setupBroker(t)
	ctx := context.Background()

	all, stop := b.SubscribeAllEvents(ctx)
	defer stop()
	time.Sleep(20 * time.Millisecond)

	cmd, err := domain.NewCommand(domain.TypeDeleteEdge,
		domain.DeleteEdgePayload{ID: "e1", GraphID: "w7"}, []string{"w7"}, "c1")
	require.NoError(t, err)

	// Commands do not hit the pattern subscription, successes do.
	require.NoError(t, b.PublishCommand(ctx, cmd))
	expectNothing(t, all)

	success, err := domain.NewSuccess(cmd, nil, []string{"w7"})
	require.NoError(t, err)
	require.NoError(t, b.PublishSuccess(ctx, success))
	assert.Equal(t, success.ID, receive(t, all).ID)
}

func TestStopClosesStream(t *testing.T) {
	b := setupBroker(t)
	ctx := context.Background()

	commands, stop := b.SubscribeCommands(ctx)
	stop()

	select {
	case _, open := <-commands:
		assert.False(t, open, "stream must be closed after stop")
	case <-time.After(2 * time.Second):
		t.Fatal("stream not closed after stop")
	}
}
