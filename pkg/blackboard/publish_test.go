package blackboard

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// failPublish rejects every PUBLISH command and passes the rest through.
type failPublish struct{}

func (failPublish) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (failPublish) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if cmd.Name() == "publish" {
			return errors.New("publish refused")
		}
		return next(ctx, cmd)
	}
}

func (failPublish) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestWritesSucceedWhenPublishFails(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	core, logs := observer.New(zap.WarnLevel)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "publish-run", WithLogger(zap.New(core)))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	d1, d2 := seedElements(t, client)
	client.rdb.AddHook(failPublish{})

	node := &Node{
		ID:               uuid.New().String(),
		Type:             NodeTypeSharedConcept,
		Label:            "Minimum password length",
		SourceDataset:    SourceDatasetBoth,
		SourceElementIDs: []string{d1[0].ID, d2[0].ID},
	}
	require.NoError(t, client.CreateNode(ctx, node))

	edge := &Edge{ID: uuid.New().String(), SourceNodeID: d2[0].ID, TargetNodeID: node.ID, Type: EdgeTypeImplements}
	require.NoError(t, client.CreateEdge(ctx, edge))

	entry := &Entry{Type: EntryTypeFinding, Content: "auth.go checks the password", Turn: 1}
	require.NoError(t, client.AppendEntry(ctx, entry))

	nodes, err := client.ListNodes(ctx)
	require.NoError(t, err)
	var labels []string
	for _, n := range nodes {
		labels = append(labels, n.Label)
	}
	assert.Contains(t, labels, "Minimum password length")

	edges, err := client.ListEdges(ctx)
	require.NoError(t, err)
	assert.Len(t, edges, 1)

	entries, err := client.ListEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry.ID, entries[0].ID)

	failures := logs.FilterMessage("event_publish_failed").All()
	require.Len(t, failures, 3)
	assert.Equal(t, string(EventNodeCreated), failures[0].ContextMap()["kind"])
	assert.Equal(t, "publish-run", failures[0].ContextMap()["run_id"])
}
