package blackboard

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a test client connected to a miniredis instance
func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-run")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func seedElements(t *testing.T, client *Client) (d1, d2 []*Element) {
	ctx := context.Background()
	d1 = []*Element{
		{ID: "aaa11111-0000-4000-8000-000000000001", Label: "User login", Content: "Users must log in with email and password"},
		{ID: "bbb22222-0000-4000-8000-000000000002", Label: "Audit logging", Content: "Every admin action is logged"},
	}
	d2 = []*Element{
		{ID: "ccc33333-0000-4000-8000-000000000003", Label: "auth.go", Content: "func Login(email, password string) error"},
	}
	require.NoError(t, client.AddElements(ctx, Dataset1, d1))
	require.NoError(t, client.AddElements(ctx, Dataset2, d2))
	return d1, d2
}

func TestNewClient(t *testing.T) {
	t.Run("creates client successfully", func(t *testing.T) {
		client, _ := setupTestClient(t)
		assert.Equal(t, "test-run", client.RunID())
	})

	t.Run("rejects empty run ID", func(t *testing.T) {
		_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "run ID cannot be empty")
	})
}

func TestPing(t *testing.T) {
	client, _ := setupTestClient(t)
	assert.NoError(t, client.Ping(context.Background()))
}

func TestAddElements(t *testing.T) {
	ctx := context.Background()
	client, _ := setupTestClient(t)
	d1, _ := seedElements(t, client)

	t.Run("assigns indexes and dataset", func(t *testing.T) {
		assert.Equal(t, 0, d1[0].Index)
		assert.Equal(t, 1, d1[1].Index)
		assert.Equal(t, Dataset1, d1[1].Dataset)
	})

	t.Run("reports dataset sizes", func(t *testing.T) {
		n, err := client.DatasetSize(ctx, Dataset1)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = client.DatasetSize(ctx, Dataset2)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("mirrors each element as a node", func(t *testing.T) {
		node, err := client.GetNode(ctx, d1[0].ID)
		require.NoError(t, err)
		assert.Equal(t, NodeTypeDataset1Element, node.Type)
		assert.Equal(t, "User login", node.Label)
		assert.Equal(t, []string{d1[0].ID}, node.SourceElementIDs)
	})

	t.Run("appends after the current tail", func(t *testing.T) {
		extra := []*Element{{Label: "Password reset", Content: "Users can reset passwords"}}
		require.NoError(t, client.AddElements(ctx, Dataset1, extra))
		assert.Equal(t, 2, extra[0].Index)
		assert.NotEmpty(t, extra[0].ID)
	})

	t.Run("rejects an invalid dataset", func(t *testing.T) {
		err := client.AddElements(ctx, Dataset(3), []*Element{{Label: "x"}})
		assert.Error(t, err)
	})

	t.Run("rejects an element without label or content", func(t *testing.T) {
		err := client.AddElements(ctx, Dataset2, []*Element{{}})
		assert.Error(t, err)
	})
}

func TestListElements(t *testing.T) {
	ctx := context.Background()
	client, _ := setupTestClient(t)
	d1, _ := seedElements(t, client)

	elements, err := client.ListElements(ctx, Dataset1, 0, 10)
	require.NoError(t, err)
	require.Len(t, elements, 2)
	assert.Equal(t, d1[0].ID, elements[0].ID)
	assert.Equal(t, d1[1].ID, elements[1].ID)

	elements, err = client.ListElements(ctx, Dataset1, 1, 10)
	require.NoError(t, err)
	require.Len(t, elements, 1)
	assert.Equal(t, "Audit logging", elements[0].Label)

	elements, err = client.ListElements(ctx, Dataset1, 5, 10)
	require.NoError(t, err)
	assert.Empty(t, elements)
}

func TestGetElement(t *testing.T) {
	ctx := context.Background()
	client, _ := setupTestClient(t)
	_, d2 := seedElements(t, client)

	e, err := client.GetElement(ctx, d2[0].ID)
	require.NoError(t, err)
	assert.Equal(t, Dataset2, e.Dataset)
	assert.Equal(t, "func Login(email, password string) error", e.Content)

	_, err = client.GetElement(ctx, uuid.New().String())
	assert.True(t, IsNotFound(err))
}

func TestCreateNode(t *testing.T) {
	ctx := context.Background()
	client, _ := setupTestClient(t)
	d1, _ := seedElements(t, client)

	t.Run("writes a concept node", func(t *testing.T) {
		node := &Node{
			ID:               uuid.New().String(),
			Type:             NodeTypeDataset1Concept,
			Label:            "Authentication",
			SourceDataset:    SourceDataset1,
			SourceElementIDs: []string{d1[0].ID},
		}
		require.NoError(t, client.CreateNode(ctx, node))
		assert.NotZero(t, node.CreatedAtMs)

		got, err := client.GetNode(ctx, node.ID)
		require.NoError(t, err)
		assert.Equal(t, node.Label, got.Label)
		assert.Equal(t, node.SourceElementIDs, got.SourceElementIDs)
	})

	t.Run("rejects concept without provenance", func(t *testing.T) {
		err := client.CreateNode(ctx, &Node{
			ID:            uuid.New().String(),
			Type:          NodeTypeGap,
			Label:         "Missing audit trail",
			SourceDataset: SourceDatasetBoth,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least one source element")
	})

	t.Run("lists element and concept nodes", func(t *testing.T) {
		nodes, err := client.ListNodes(ctx)
		require.NoError(t, err)
		assert.Len(t, nodes, 4)
	})
}

func TestCreateEdge(t *testing.T) {
	ctx := context.Background()
	client, _ := setupTestClient(t)
	d1, d2 := seedElements(t, client)

	t.Run("writes edge and adjacency", func(t *testing.T) {
		edge := &Edge{
			ID:           uuid.New().String(),
			SourceNodeID: d2[0].ID,
			TargetNodeID: d1[0].ID,
			Type:         EdgeTypeImplements,
		}
		require.NoError(t, client.CreateEdge(ctx, edge))

		for _, id := range []string{d1[0].ID, d2[0].ID} {
			edges, err := client.EdgesForNode(ctx, id)
			require.NoError(t, err)
			require.Len(t, edges, 1)
			assert.Equal(t, edge.ID, edges[0].ID)
		}

		edges, err := client.EdgesForNode(ctx, d1[1].ID)
		require.NoError(t, err)
		assert.Empty(t, edges)
	})

	t.Run("never writes a dangling edge", func(t *testing.T) {
		edge := &Edge{
			ID:           uuid.New().String(),
			SourceNodeID: d1[0].ID,
			TargetNodeID: uuid.New().String(),
			Type:         EdgeTypeRelatesTo,
		}
		err := client.CreateEdge(ctx, edge)
		require.Error(t, err)
		assert.True(t, IsNotFound(err))

		edges, err := client.ListEdges(ctx)
		require.NoError(t, err)
		assert.Len(t, edges, 1)
	})

	t.Run("rejects unknown edge type", func(t *testing.T) {
		err := client.CreateEdge(ctx, &Edge{
			ID:           uuid.New().String(),
			SourceNodeID: d1[0].ID,
			TargetNodeID: d1[1].ID,
			Type:         "contradicts",
		})
		assert.Error(t, err)
	})
}

func TestAppendAndReadEntries(t *testing.T) {
	ctx := context.Background()
	client, _ := setupTestClient(t)

	confidence := 0.8
	inputs := []*Entry{
		{Type: EntryTypeObservation, Content: "first"},
		{Type: EntryTypeFinding, Content: "second", Confidence: &confidence},
		{Type: EntryTypeToolResult, Content: `{"ok":true}`},
		{Type: EntryTypeObservation, Content: "fourth", TargetPerspective: "security"},
	}
	for _, e := range inputs {
		require.NoError(t, client.AppendEntry(ctx, e))
	}

	t.Run("assigns strictly increasing sequences", func(t *testing.T) {
		for i := 1; i < len(inputs); i++ {
			assert.Greater(t, inputs[i].Sequence, inputs[i-1].Sequence)
		}
	})

	t.Run("reads newest first", func(t *testing.T) {
		entries, err := client.ReadEntries(ctx, nil, 2)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "fourth", entries[0].Content)
		assert.Equal(t, "security", entries[0].TargetPerspective)
		assert.Equal(t, `{"ok":true}`, entries[1].Content)
	})

	t.Run("filters by type", func(t *testing.T) {
		entries, err := client.ReadEntries(ctx, []EntryType{EntryTypeObservation, EntryTypeFinding}, 10)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "fourth", entries[0].Content)
		assert.Equal(t, "second", entries[1].Content)
		require.NotNil(t, entries[1].Confidence)
		assert.InDelta(t, 0.8, *entries[1].Confidence, 1e-9)
		assert.Equal(t, "first", entries[2].Content)
	})

	t.Run("lists in sequence order", func(t *testing.T) {
		entries, err := client.ListEntries(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 4)
		assert.Equal(t, "first", entries[0].Content)
		assert.Equal(t, int64(1), entries[0].Sequence)
	})

	t.Run("rejects out of range confidence", func(t *testing.T) {
		bad := 1.5
		err := client.AppendEntry(ctx, &Entry{Type: EntryTypeConclusion, Content: "x", Confidence: &bad})
		assert.Error(t, err)
	})
}

func TestUpsertCell(t *testing.T) {
	ctx := context.Background()
	client, _ := setupTestClient(t)
	d1, _ := seedElements(t, client)

	cell := &Cell{ElementID: d1[0].ID, Step: 2, Polarity: 0.5, EvidenceSummary: "partial"}
	require.NoError(t, client.UpsertCell(ctx, cell))
	assert.Equal(t, CriticalityInfo, cell.Criticality)

	// Same key replaces the value.
	require.NoError(t, client.UpsertCell(ctx, &Cell{
		ElementID: d1[0].ID, Step: 2, Polarity: -0.25, Criticality: CriticalityMajor,
	}))
	require.NoError(t, client.UpsertCell(ctx, &Cell{ElementID: d1[0].ID, Step: 1, Polarity: 1}))

	cells, err := client.ListCells(ctx)
	require.NoError(t, err)
	require.Len(t, cells, 2)
	assert.Equal(t, 1, cells[0].Step)
	assert.Equal(t, -0.25, cells[1].Polarity)
	assert.Equal(t, CriticalityMajor, cells[1].Criticality)

	t.Run("rejects bounds violations", func(t *testing.T) {
		assert.Error(t, client.UpsertCell(ctx, &Cell{ElementID: d1[0].ID, Step: 6}))
		assert.Error(t, client.UpsertCell(ctx, &Cell{ElementID: d1[0].ID, Step: 1, Polarity: 1.2}))
	})
}

func TestVennPersistence(t *testing.T) {
	ctx := context.Background()
	client, _ := setupTestClient(t)

	_, err := client.GetVenn(ctx)
	assert.True(t, IsNotFound(err))

	v := &VennResult{
		Aligned:    []VennEntry{{ID: "a1", Label: "Login", SourceElement: "d1-aaa11111", TargetElement: "d2-ccc33333"}},
		UniqueToD1: []VennEntry{{ID: "v2", Label: "Audit logging"}},
		Summary:    VennSummary{TotalD1Coverage: 50, TotalD2Coverage: 100, AlignmentScore: 75},
	}
	require.NoError(t, client.SaveVenn(ctx, v))

	got, err := client.GetVenn(ctx)
	require.NoError(t, err)
	assert.Equal(t, v.Aligned, got.Aligned)
	assert.Equal(t, 75.0, got.Summary.AlignmentScore)
	assert.NotZero(t, got.FinalizedAtMs)
}

func TestRunStatus(t *testing.T) {
	ctx := context.Background()
	client, _ := setupTestClient(t)

	_, err := client.GetStatus(ctx)
	assert.True(t, IsNotFound(err))

	require.NoError(t, client.SetStatus(ctx, &RunStatus{State: RunStateTurnPending, Turn: 3, MaxTurns: 40, Lens: "security"}))

	status, err := client.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "test-run", status.RunID)
	assert.Equal(t, RunStateTurnPending, status.State)
	assert.Equal(t, 3, status.Turn)
	assert.Equal(t, "security", status.Lens)
}

func TestRunLock(t *testing.T) {
	ctx := context.Background()
	client, mr := setupTestClient(t)

	require.NoError(t, client.AcquireRun(ctx, "owner-a", time.Minute))
	assert.ErrorIs(t, client.AcquireRun(ctx, "owner-b", time.Minute), ErrRunLocked)

	// Releasing with the wrong token is a no-op.
	require.NoError(t, client.ReleaseRun(ctx, "owner-b"))
	assert.ErrorIs(t, client.AcquireRun(ctx, "owner-b", time.Minute), ErrRunLocked)

	require.NoError(t, client.RefreshRun(ctx, "owner-a", time.Minute))
	assert.ErrorIs(t, client.RefreshRun(ctx, "owner-b", time.Minute), ErrRunLocked)

	require.NoError(t, client.ReleaseRun(ctx, "owner-a"))
	require.NoError(t, client.AcquireRun(ctx, "owner-b", time.Second))

	mr.FastForward(2 * time.Second)
	require.NoError(t, client.AcquireRun(ctx, "owner-c", time.Minute))
}

func TestRunNamespacing(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	runA, err := NewClient(&redis.Options{Addr: mr.Addr()}, "run-a")
	require.NoError(t, err)
	defer runA.Close()
	runB, err := NewClient(&redis.Options{Addr: mr.Addr()}, "run-b")
	require.NoError(t, err)
	defer runB.Close()

	require.NoError(t, runA.AppendEntry(ctx, &Entry{Type: EntryTypePlan, Content: "only in A"}))

	entries, err := runB.ListEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, runB.AppendEntry(ctx, &Entry{Type: EntryTypePlan, Content: "first in B"}))
	entries, err = runB.ListEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].Sequence)
}

func TestSubscribeEvents(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, _ := setupTestClient(t)
	d1, _ := seedElements(t, client)

	sub, err := client.SubscribeEvents(ctx)
	require.NoError(t, err)
	defer sub.Close()

	node := &Node{
		ID:               uuid.New().String(),
		Type:             NodeTypeTheme,
		Label:            "Identity",
		SourceDataset:    SourceDataset1,
		SourceElementIDs: []string{d1[0].ID},
	}
	require.NoError(t, client.CreateNode(ctx, node))

	select {
	case event := <-sub.Events():
		require.NotNil(t, event)
		assert.Equal(t, EventNodeCreated, event.Kind)
		assert.Equal(t, node.ID, event.ID)
		assert.Equal(t, "test-run", event.RunID)
	case <-ctx.Done():
		t.Fatal("timed out waiting for node event")
	}

	assert.NoError(t, sub.Close())
	assert.NoError(t, sub.Close())
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(redis.Nil))
	assert.False(t, IsNotFound(nil))
	assert.False(t, IsNotFound(assert.AnError))
}
