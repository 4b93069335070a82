package watch

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dyluth/auditor/pkg/blackboard"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newClient(t *testing.T) *blackboard.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := blackboard.NewClient(&redis.Options{Addr: mr.Addr()}, "watch-run")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestPollForCompletion(t *testing.T) {
	ctx := context.Background()

	t.Run("returns once the run is done", func(t *testing.T) {
		client := newClient(t)
		require.NoError(t, client.SetStatus(ctx, &blackboard.RunStatus{State: blackboard.RunStateTurnPending, Turn: 1, MaxTurns: 5}))

		go func() {
			time.Sleep(50 * time.Millisecond)
			_ = client.SetStatus(ctx, &blackboard.RunStatus{State: blackboard.RunStateDone, Turn: 2, MaxTurns: 5})
		}()

		status, err := PollForCompletion(ctx, client, 10*time.Millisecond, 2*time.Second)
		require.NoError(t, err)
		assert.Equal(t, blackboard.RunStateDone, status.State)
		assert.Equal(t, 2, status.Turn)
	})

	t.Run("times out on a run that never finishes", func(t *testing.T) {
		client := newClient(t)

		_, err := PollForCompletion(ctx, client, 10*time.Millisecond, 60*time.Millisecond)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timeout waiting for run")
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		client := newClient(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := PollForCompletion(cctx, client, 10*time.Millisecond, time.Second)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestStreamEvents(t *testing.T) {
	ctx := context.Background()
	client := newClient(t)

	var (
		buf bytes.Buffer
		wg  sync.WaitGroup
		err error
	)
	sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ready := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		err = StreamEvents(sctx, &readySource{client: client, ready: ready}, OutputFormatDefault, &buf)
	}()
	<-ready

	require.NoError(t, client.AppendEntry(ctx, &blackboard.Entry{Type: blackboard.EntryTypePlan, Content: "Start with security requirements", Turn: 1}))
	require.NoError(t, client.SetStatus(ctx, &blackboard.RunStatus{State: blackboard.RunStateDone, Turn: 1, MaxTurns: 5}))

	wg.Wait()
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "📝 Blackboard #1 plan (turn 1): Start with security requirements")
	assert.Contains(t, out, "🔄 Status: DONE turn=1/5")
	assert.Equal(t, 2, strings.Count(out, "\n"))
}

// readySource signals once the subscription is confirmed.
type readySource struct {
	client *blackboard.Client
	ready  chan struct{}
}

func (s *readySource) SubscribeEvents(ctx context.Context) (*blackboard.Subscription, error) {
	sub, err := s.client.SubscribeEvents(ctx)
	close(s.ready)
	return sub, err
}

func TestFormatEvent(t *testing.T) {
	raw := func(v any) json.RawMessage {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		return data
	}

	tests := []struct {
		name     string
		event    *blackboard.Event
		expected string
	}{
		{
			name: "node created",
			event: &blackboard.Event{Kind: blackboard.EventNodeCreated, Data: raw(blackboard.Node{
				ID: "33333333-3333-4333-8333-333333333333", Type: blackboard.NodeTypeGap, Label: "No audit log",
			})},
			expected: `🧩 Node created: gap "No audit log" (33333333)`,
		},
		{
			name: "edge created",
			event: &blackboard.Event{Kind: blackboard.EventEdgeCreated, Data: raw(blackboard.Edge{
				SourceNodeID: "11111111-1111-4111-8111-111111111111", TargetNodeID: "22222222-2222-4222-8222-222222222222", Type: blackboard.EdgeTypeImplements,
			})},
			expected: "🔗 Edge created: 11111111 -[implements]-> 22222222",
		},
		{
			name: "long entry is truncated to its first line",
			event: &blackboard.Event{Kind: blackboard.EventEntryAppended, Data: raw(blackboard.Entry{
				Sequence: 7, Type: blackboard.EntryTypeFinding, Turn: 3, Content: "Short finding\nwith detail",
			})},
			expected: "📝 Blackboard #7 finding (turn 3): Short finding",
		},
		{
			name: "venn finalized",
			event: &blackboard.Event{Kind: blackboard.EventVennFinalized, Data: raw(blackboard.VennResult{
				UniqueToD1: []blackboard.VennEntry{{ID: "a"}}, Aligned: []blackboard.VennEntry{{ID: "b"}, {ID: "c"}},
			})},
			expected: "✅ Venn finalized: unique_d1=1 aligned=2 unique_d2=0",
		},
		{
			name: "failed status",
			event: &blackboard.Event{Kind: blackboard.EventStatusChanged, Data: raw(blackboard.RunStatus{
				State: blackboard.RunStateFailed, Turn: 4, MaxTurns: 4, Lens: "security", Error: "turn budget exhausted",
			})},
			expected: "🔄 Status: FAILED turn=4/4 lens=security error=turn budget exhausted",
		},
		{
			name:     "unparseable payload falls back",
			event:    &blackboard.Event{Kind: blackboard.EventCellRecorded, ID: "x:1", Data: json.RawMessage(`"oops"`)},
			expected: "• cell_recorded x:1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatEvent(tt.event))
		})
	}
}
