package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftdeck/craftdeck-backend/internal/events/broker"
	events "github.com/craftdeck/craftdeck-backend/internal/events/domain"
	graphs "github.com/craftdeck/craftdeck-backend/internal/graphs/domain"
	"github.com/craftdeck/craftdeck-backend/internal/graphs/repository"
)

const testClient = "11111111-1111-1111-1111-111111111111"

type capturedLog struct {
	mu   sync.Mutex
	envs []events.Envelope
}

func (c *capturedLog) Append(ctx context.Context, env events.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.envs = append(c.envs, env)
	return nil
}

type capturedUploads struct {
	mu      sync.Mutex
	records [][3]string
}

func (c *capturedUploads) Record(ctx context.Context, fileID, kind, ref string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, [3]string{fileID, kind, ref})
	return nil
}

type relayFixture struct {
	svc     *Service
	store   *repository.MemStore
	broker  *broker.Broker
	log     *capturedLog
	uploads *capturedUploads
}

func setupRelay(t *testing.T) *relayFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := repository.NewMemStore()
	b := broker.New(client)
	logSink := &capturedLog{}
	uploads := &capturedUploads{}
	return &relayFixture{
		svc:     New(store, b, logSink, uploads, 0),
		store:   store,
		broker:  b,
		log:     logSink,
		uploads: uploads,
	}
}

func command(t *testing.T, eventType string, payload interface{}, graphIDs ...string) events.Envelope {
	t.Helper()
	env, err := events.NewCommand(eventType, payload, graphIDs, testClient)
	require.NoError(t, err)
	return env
}

func (f *relayFixture) seedWorkspace(t *testing.T, ctx context.Context) {
	t.Helper()
	require.NoError(t, f.store.Create(ctx, &graphs.Graph{
		ID:   "w1",
		Kind: graphs.GraphKindWorkspace,
		Data: graphs.Data{"kind": "workspace", "name": "Test"},
		Nodes: []graphs.Node{
			{ID: "n1", Kind: graphs.NodeKindCollection, Data: graphs.Data{"name": "Users"}},
			{ID: "n2", Kind: graphs.NodeKindInstruction, Data: graphs.Data{"name": "CreateUser"}},
		},
		Edges: []graphs.Edge{{ID: "e1", Source: "n1", Target: "n2"}},
	}))
}

func receiveEnvelope(t *testing.T, ch <-chan events.Envelope) events.Envelope {
	t.Helper()
	select {
	case env := <-ch:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for envelope")
		return events.Envelope{}
	}
}

func TestCreateWorkspace(t *testing.T) {
	f := setupRelay(t)
	ctx := context.Background()

	stream, stop := f.broker.SubscribeGraphs(ctx, "w1")
	defer stop()

	cmd := command(t, events.TypeCreateWorkspace,
		events.CreateWorkspacePayload{ID: "w1", Name: "Test", UserID: "u1"}, "w1")
	require.NoError(t, f.svc.Apply(ctx, cmd))

	g, err := f.store.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, graphs.GraphKindWorkspace, g.Kind)
	assert.Equal(t, "workspace", g.Data["kind"])
	assert.Equal(t, "Test", g.Data["name"])
	assert.Empty(t, g.Nodes)

	success := receiveEnvelope(t, stream)
	assert.Equal(t, "createWorkspaceSuccess", success.Data.Type)
	assert.Equal(t, cmd.ID, success.Data.CorrelationID)
	assert.Equal(t, testClient, success.Data.ClientID)
}

func TestCreateNode(t *testing.T) {
	t.Run("plain node lands in the parent graph only", func(t *testing.T) {
		f := setupRelay(t)
		ctx := context.Background()
		f.seedWorkspace(t, ctx)

		cmd := command(t, events.TypeCreateNode, events.CreateNodePayload{
			ID: "n3", GraphID: "w1", Kind: graphs.NodeKindSigner,
			Data: graphs.Data{"name": "Payer"},
		}, "w1")
		require.NoError(t, f.svc.Apply(ctx, cmd))

		g, err := f.store.Get(ctx, "w1")
		require.NoError(t, err)
		require.NotNil(t, g.Node("n3"))

		_, err = f.store.Get(ctx, "n3")
		assert.ErrorIs(t, err, graphs.ErrGraphNotFound)
	})

	t.Run("graph-rooted node also gets its own document", func(t *testing.T) {
		f := setupRelay(t)
		ctx := context.Background()
		f.seedWorkspace(t, ctx)

		cmd := command(t, events.TypeCreateNode, events.CreateNodePayload{
			ID: "a1", GraphID: "w1", IsGraph: true, Kind: graphs.NodeKindApplication,
			Data: graphs.Data{"name": "App"},
		}, "w1")
		require.NoError(t, f.svc.Apply(ctx, cmd))

		parent, err := f.store.Get(ctx, "w1")
		require.NoError(t, err)
		require.NotNil(t, parent.Node("a1"))

		child, err := f.store.Get(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, graphs.GraphKindApplication, child.Kind)
		assert.Empty(t, child.Nodes)
		assert.Empty(t, child.Edges)
	})
}

func TestUpdateNode(t *testing.T) {
	t.Run("kind is immutable, data merges", func(t *testing.T) {
		f := setupRelay(t)
		ctx := context.Background()
		f.seedWorkspace(t, ctx)

		cmd := command(t, events.TypeUpdateNode, events.UpdateNodePayload{
			ID: "n1", GraphID: "w1", Kind: graphs.NodeKindCollection,
			Changes: graphs.Data{"kind": "signer", "name": "Accounts"},
		}, "w1")
		require.NoError(t, f.svc.Apply(ctx, cmd))

		g, err := f.store.Get(ctx, "w1")
		require.NoError(t, err)
		n := g.Node("n1")
		require.NotNil(t, n)
		assert.Equal(t, graphs.NodeKindCollection, n.Kind)
		assert.Equal(t, "Accounts", n.Data["name"])
		assert.NotContains(t, n.Data, "kind")
	})

	t.Run("missing node fails", func(t *testing.T) {
		f := setupRelay(t)
		ctx := context.Background()
		f.seedWorkspace(t, ctx)

		cmd := command(t, events.TypeUpdateNode, events.UpdateNodePayload{
			ID: "missing", GraphID: "w1", Changes: graphs.Data{"name": "X"},
		}, "w1")
		assert.ErrorIs(t, f.svc.Apply(ctx, cmd), graphs.ErrNodeNotFound)
	})

	t.Run("graph-rooted node mirrors changes into its own document", func(t *testing.T) {
		f := setupRelay(t)
		ctx := context.Background()
		f.seedWorkspace(t, ctx)

		create := command(t, events.TypeCreateNode, events.CreateNodePayload{
			ID: "a1", GraphID: "w1", IsGraph: true, Kind: graphs.NodeKindApplication,
			Data: graphs.Data{"name": "App"},
		}, "w1")
		require.NoError(t, f.svc.Apply(ctx, create))

		update := command(t, events.TypeUpdateNode, events.UpdateNodePayload{
			ID: "a1", GraphID: "w1", IsGraph: true, Kind: graphs.NodeKindApplication,
			Changes: graphs.Data{"name": "Renamed"},
		}, "w1")
		require.NoError(t, f.svc.Apply(ctx, update))

		child, err := f.store.Get(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, "Renamed", child.Data["name"])
	})
}

// Two concurrent updates to different nodes of the same graph must both
// land: the store re-reads the whole node array per transaction.
func TestConcurrentNodeUpdates(t *testing.T) {
	f := setupRelay(t)
	ctx := context.Background()
	f.seedWorkspace(t, ctx)

	cmds := []events.Envelope{
		command(t, events.TypeUpdateNode, events.UpdateNodePayload{
			ID: "n1", GraphID: "w1", Changes: graphs.Data{"name": "First"},
		}, "w1"),
		command(t, events.TypeUpdateNode, events.UpdateNodePayload{
			ID: "n2", GraphID: "w1", Changes: graphs.Data{"name": "Second"},
		}, "w1"),
	}

	var wg sync.WaitGroup
	for _, cmd := range cmds {
		wg.Add(1)
		go func(env events.Envelope) {
			defer wg.Done()
			assert.NoError(t, f.svc.Apply(ctx, env))
		}(cmd)
	}
	wg.Wait()

	g, err := f.store.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "First", g.Node("n1").Data["name"])
	assert.Equal(t, "Second", g.Node("n2").Data["name"])
}

func TestDeleteNode(t *testing.T) {
	t.Run("cascades to incident edges", func(t *testing.T) {
		f := setupRelay(t)
		ctx := context.Background()
		f.seedWorkspace(t, ctx)

		cmd := command(t, events.TypeDeleteNode, events.DeleteNodePayload{
			ID: "n1", GraphID: "w1", Kind: graphs.NodeKindCollection,
		}, "w1")
		require.NoError(t, f.svc.Apply(ctx, cmd))

		g, err := f.store.Get(ctx, "w1")
		require.NoError(t, err)
		assert.Nil(t, g.Node("n1"))
		assert.Empty(t, g.Edges)
	})

	t.Run("graph-rooted node deletion removes the child document", func(t *testing.T) {
		f := setupRelay(t)
		ctx := context.Background()
		f.seedWorkspace(t, ctx)

		create := command(t, events.TypeCreateNode, events.CreateNodePayload{
			ID: "a1", GraphID: "w1", IsGraph: true, Kind: graphs.NodeKindApplication,
			Data: graphs.Data{"name": "App"},
		}, "w1")
		require.NoError(t, f.svc.Apply(ctx, create))

		del := command(t, events.TypeDeleteNode, events.DeleteNodePayload{
			ID: "a1", GraphID: "w1", IsGraph: true, Kind: graphs.NodeKindApplication,
		}, "w1")
		require.NoError(t, f.svc.Apply(ctx, del))

		_, err := f.store.Get(ctx, "a1")
		assert.ErrorIs(t, err, graphs.ErrGraphNotFound)
	})
}

func TestEdgeCommands(t *testing.T) {
	f := setupRelay(t)
	ctx := context.Background()
	f.seedWorkspace(t, ctx)

	create := command(t, events.TypeCreateEdge, events.CreateEdgePayload{
		ID: "e2", GraphID: "w1", Source: "n2", Target: "n1",
	}, "w1")
	require.NoError(t, f.svc.Apply(ctx, create))

	g, err := f.store.Get(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, g.Edge("e2"))

	del := command(t, events.TypeDeleteEdge, events.DeleteEdgePayload{ID: "e2", GraphID: "w1"}, "w1")
	require.NoError(t, f.svc.Apply(ctx, del))

	g, err = f.store.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Nil(t, g.Edge("e2"))
}

func TestThumbnailCommands(t *testing.T) {
	f := setupRelay(t)
	ctx := context.Background()
	f.seedWorkspace(t, ctx)

	nodeThumb := command(t, events.TypeUpdateNodeThumbnail, events.UpdateNodeThumbnailPayload{
		ID: "n1", GraphID: "w1", FileID: "f1", FileURL: "https://cdn/img.png",
		Kind: graphs.NodeKindCollection,
	}, "w1")
	require.NoError(t, f.svc.Apply(ctx, nodeThumb))

	g, err := f.store.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/img.png", g.Node("n1").Data["thumbnailUrl"])

	wsThumb := command(t, events.TypeUpdateWorkspaceThumbnail, events.UpdateWorkspaceThumbnailPayload{
		ID: "w1", FileID: "f2", FileURL: "https://cdn/ws.png",
	}, "w1")
	require.NoError(t, f.svc.Apply(ctx, wsThumb))

	g, err = f.store.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/ws.png", g.Data["thumbnailUrl"])

	require.Len(t, f.uploads.records, 2)
	assert.Equal(t, [3]string{"f1", "collection", "n1"}, f.uploads.records[0])
	assert.Equal(t, [3]string{"f2", "workspace", "w1"}, f.uploads.records[1])
}

func TestWorkspaceLifecycle(t *testing.T) {
	f := setupRelay(t)
	ctx := context.Background()
	f.seedWorkspace(t, ctx)

	update := command(t, events.TypeUpdateWorkspace, events.UpdateWorkspacePayload{
		ID: "w1", Changes: graphs.Data{"description": "demo"},
	}, "w1")
	require.NoError(t, f.svc.Apply(ctx, update))

	g, err := f.store.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "Test", g.Data["name"], "disjoint keys must survive the merge")
	assert.Equal(t, "demo", g.Data["description"])

	del := command(t, events.TypeDeleteWorkspace, events.DeleteWorkspacePayload{ID: "w1"}, "w1")
	require.NoError(t, f.svc.Apply(ctx, del))

	_, err = f.store.Get(ctx, "w1")
	assert.ErrorIs(t, err, graphs.ErrGraphNotFound)
}

func TestApplyUnknownType(t *testing.T) {
	f := setupRelay(t)
	env, err := events.NewCommand("mystery", struct{}{}, []string{"w1"}, testClient)
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.Apply(context.Background(), env), events.ErrUnknownEventType)
}

func TestAcknowledge(t *testing.T) {
	f := setupRelay(t)
	ctx := context.Background()
	f.seedWorkspace(t, ctx)

	cmd := command(t, events.TypeUpdateWorkspace, events.UpdateWorkspacePayload{
		ID: "w1", Changes: graphs.Data{"name": "X"},
	}, "w1")
	success, err := events.NewSuccess(cmd, nil, []string{"w1", "gone"})
	require.NoError(t, err)

	// Deleted documents are skipped, present ones are stamped.
	f.svc.Acknowledge(ctx, success)

	g, err := f.store.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, success.ID, g.LastEventID)

	// Commands are not acknowledgements.
	f.svc.Acknowledge(ctx, cmd)
	g, _ = f.store.Get(ctx, "w1")
	assert.Equal(t, success.ID, g.LastEventID)
}

// End-to-end through Redis: a command published on the command channel is
// applied and its success lands on the graph channel with the issuing
// client preserved.
func TestRelayRun(t *testing.T) {
	f := setupRelay(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.svc.Run(ctx)
	}()

	// Give the subscriptions a moment to attach.
	time.Sleep(50 * time.Millisecond)

	stream, stop := f.broker.SubscribeGraphs(ctx, "w9")
	defer stop()

	cmd := command(t, events.TypeCreateWorkspace,
		events.CreateWorkspacePayload{ID: "w9", Name: "Live", UserID: "u1"}, "w9")
	require.NoError(t, f.broker.PublishCommand(ctx, cmd))

	success := receiveEnvelope(t, stream)
	assert.Equal(t, "createWorkspaceSuccess", success.Data.Type)
	assert.Equal(t, cmd.ID, success.Data.CorrelationID)

	require.Eventually(t, func() bool {
		g, err := f.store.Get(ctx, "w9")
		return err == nil && g.Data["name"] == "Live"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not shut down")
	}
}
