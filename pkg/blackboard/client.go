package blackboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrRunLocked is returned by AcquireRun when another orchestrator owns the run.
var ErrRunLocked = errors.New("run is locked by another orchestrator")

// releaseScript deletes the lock only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// refreshScript extends the lock TTL only if it still carries our token.
var refreshScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// Client provides run-scoped Redis operations for the audit store.
// All keys and channels are automatically namespaced with the run ID.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb    *redis.Client
	runID  string
	now    func() time.Time
	logger *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger used for failures that do not fail the call,
// such as event publishing.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a new store client for the specified run.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - runID: audit run identifier (must not be empty)
//
// Returns an error if runID is empty.
func NewClient(redisOpts *redis.Options, runID string, opts ...ClientOption) (*Client, error) {
	if runID == "" {
		return nil, fmt.Errorf("run ID cannot be empty")
	}

	c := &Client{
		rdb:    redis.NewClient(redisOpts),
		runID:  runID,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// RunID returns the run this client is scoped to.
func (c *Client) RunID() string {
	return c.runID
}

// Close closes the Redis connection. Implements io.Closer.
// After calling Close(), the client should not be used.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) nowMs() int64 {
	return c.now().UnixMilli()
}

// AddElements appends elements to a dataset, assigning indexes after the
// current tail. Each element also gets a graph node of the matching element
// type whose ID equals the element ID. Elements without an ID get a fresh UUID.
func (c *Client) AddElements(ctx context.Context, d Dataset, elements []*Element) error {
	if err := d.Validate(); err != nil {
		return err
	}

	start, err := c.DatasetSize(ctx, d)
	if err != nil {
		return err
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, e := range elements {
			if e.ID == "" {
				e.ID = uuid.New().String()
			}
			e.ID = strings.ToLower(e.ID)
			e.Dataset = d
			e.Index = start + i
			if err := e.Validate(); err != nil {
				return fmt.Errorf("invalid element at index %d: %w", e.Index, err)
			}

			node := &Node{
				ID:               e.ID,
				Type:             d.ElementNodeType(),
				Label:            elementNodeLabel(e),
				SourceDataset:    SourceDataset(d.String()),
				SourceElementIDs: []string{e.ID},
				CreatedAtMs:      c.nowMs(),
			}
			nodeHash, err := NodeToHash(node)
			if err != nil {
				return fmt.Errorf("failed to serialize element node: %w", err)
			}

			pipe.HSet(ctx, ElementKey(c.runID, e.ID), ElementToHash(e))
			pipe.ZAdd(ctx, DatasetKey(c.runID, d), redis.Z{Score: IndexScore(e.Index), Member: e.ID})
			pipe.HSet(ctx, NodeKey(c.runID, node.ID), nodeHash)
			pipe.SAdd(ctx, NodesKey(c.runID), node.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write elements to Redis: %w", err)
	}
	return nil
}

func elementNodeLabel(e *Element) string {
	if strings.TrimSpace(e.Label) != "" {
		return e.Label
	}
	content := strings.TrimSpace(e.Content)
	if len(content) > 60 {
		content = content[:60]
	}
	return content
}

// DatasetSize returns the number of elements ingested into a dataset.
func (c *Client) DatasetSize(ctx context.Context, d Dataset) (int, error) {
	n, err := c.rdb.ZCard(ctx, DatasetKey(c.runID, d)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read dataset size: %w", err)
	}
	return int(n), nil
}

// ElementIDs returns every element ID of a dataset in index order.
func (c *Client) ElementIDs(ctx context.Context, d Dataset) ([]string, error) {
	ids, err := c.rdb.ZRange(ctx, DatasetKey(c.runID, d), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset index: %w", err)
	}
	return ids, nil
}

// ListElements returns up to limit elements of a dataset starting at offset, in index order.
func (c *Client) ListElements(ctx context.Context, d Dataset, offset, limit int) ([]*Element, error) {
	if offset < 0 || limit <= 0 {
		return []*Element{}, nil
	}
	ids, err := c.rdb.ZRange(ctx, DatasetKey(c.runID, d), int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset index: %w", err)
	}
	return c.getElements(ctx, ids)
}

func (c *Client) getElements(ctx context.Context, ids []string) ([]*Element, error) {
	if len(ids) == 0 {
		return []*Element{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, ElementKey(c.runID, id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read elements from Redis: %w", err)
	}

	elements := make([]*Element, 0, len(ids))
	for i, cmd := range cmds {
		hash := cmd.Val()
		if len(hash) == 0 {
			return nil, fmt.Errorf("element %s is indexed but missing", ids[i])
		}
		e, err := HashToElement(hash)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize element: %w", err)
		}
		elements = append(elements, e)
	}
	return elements, nil
}

// GetElement retrieves an element by ID.
// Returns (nil, redis.Nil) if the element doesn't exist.
func (c *Client) GetElement(ctx context.Context, elementID string) (*Element, error) {
	hash, err := c.rdb.HGetAll(ctx, ElementKey(c.runID, elementID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read element from Redis: %w", err)
	}
	if len(hash) == 0 {
		return nil, redis.Nil
	}

	e, err := HashToElement(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize element: %w", err)
	}
	return e, nil
}

// CreateNode validates and writes a node, then publishes a node_created event.
func (c *Client) CreateNode(ctx context.Context, n *Node) error {
	if n.CreatedAtMs == 0 {
		n.CreatedAtMs = c.nowMs()
	}
	if err := n.Validate(); err != nil {
		return fmt.Errorf("invalid node: %w", err)
	}

	hash, err := NodeToHash(n)
	if err != nil {
		return fmt.Errorf("failed to serialize node: %w", err)
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, NodeKey(c.runID, n.ID), hash)
		pipe.SAdd(ctx, NodesKey(c.runID), n.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write node to Redis: %w", err)
	}

	c.publish(ctx, EventNodeCreated, n.ID, n)
	return nil
}

// GetNode retrieves a node by ID.
// Returns (nil, redis.Nil) if the node doesn't exist.
func (c *Client) GetNode(ctx context.Context, nodeID string) (*Node, error) {
	hash, err := c.rdb.HGetAll(ctx, NodeKey(c.runID, nodeID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read node from Redis: %w", err)
	}
	if len(hash) == 0 {
		return nil, redis.Nil
	}

	n, err := HashToNode(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize node: %w", err)
	}
	return n, nil
}

// NodeExists checks if a node exists without fetching it.
func (c *Client) NodeExists(ctx context.Context, nodeID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, NodeKey(c.runID, nodeID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check node existence: %w", err)
	}
	return n > 0, nil
}

// ListNodes returns every node of the run ordered by creation time, then ID.
func (c *Client) ListNodes(ctx context.Context) ([]*Node, error) {
	ids, err := c.rdb.SMembers(ctx, NodesKey(c.runID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read node index: %w", err)
	}
	if len(ids) == 0 {
		return []*Node{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, NodeKey(c.runID, id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read nodes from Redis: %w", err)
	}

	nodes := make([]*Node, 0, len(ids))
	for _, cmd := range cmds {
		if len(cmd.Val()) == 0 {
			continue
		}
		n, err := HashToNode(cmd.Val())
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize node: %w", err)
		}
		nodes = append(nodes, n)
	}

	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].CreatedAtMs != nodes[j].CreatedAtMs {
			return nodes[i].CreatedAtMs < nodes[j].CreatedAtMs
		}
		return nodes[i].ID < nodes[j].ID
	})
	return nodes, nil
}

// CreateEdge validates and writes an edge. Both endpoints must already exist;
// a dangling edge is never written.
func (c *Client) CreateEdge(ctx context.Context, e *Edge) error {
	if e.CreatedAtMs == 0 {
		e.CreatedAtMs = c.nowMs()
	}
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid edge: %w", err)
	}

	for _, id := range []string{e.SourceNodeID, e.TargetNodeID} {
		ok, err := c.NodeExists(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("edge endpoint %s does not exist: %w", id, redis.Nil)
		}
	}

	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, EdgeKey(c.runID, e.ID), EdgeToHash(e))
		pipe.SAdd(ctx, EdgesKey(c.runID), e.ID)
		pipe.SAdd(ctx, NodeEdgesKey(c.runID, e.SourceNodeID), e.ID)
		pipe.SAdd(ctx, NodeEdgesKey(c.runID, e.TargetNodeID), e.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write edge to Redis: %w", err)
	}

	c.publish(ctx, EventEdgeCreated, e.ID, e)
	return nil
}

// ListEdges returns every edge of the run ordered by creation time, then ID.
func (c *Client) ListEdges(ctx context.Context) ([]*Edge, error) {
	ids, err := c.rdb.SMembers(ctx, EdgesKey(c.runID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read edge index: %w", err)
	}
	return c.getEdges(ctx, ids)
}

// EdgesForNode returns the edges touching a node in either direction.
func (c *Client) EdgesForNode(ctx context.Context, nodeID string) ([]*Edge, error) {
	ids, err := c.rdb.SMembers(ctx, NodeEdgesKey(c.runID, nodeID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read adjacency set: %w", err)
	}
	return c.getEdges(ctx, ids)
}

func (c *Client) getEdges(ctx context.Context, ids []string) ([]*Edge, error) {
	if len(ids) == 0 {
		return []*Edge{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, EdgeKey(c.runID, id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read edges from Redis: %w", err)
	}

	edges := make([]*Edge, 0, len(ids))
	for _, cmd := range cmds {
		if len(cmd.Val()) == 0 {
			continue
		}
		e, err := HashToEdge(cmd.Val())
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize edge: %w", err)
		}
		edges = append(edges, e)
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].CreatedAtMs != edges[j].CreatedAtMs {
			return edges[i].CreatedAtMs < edges[j].CreatedAtMs
		}
		return edges[i].ID < edges[j].ID
	})
	return edges, nil
}

// AppendEntry assigns the next sequence number to the entry and writes it.
// Entries are never modified after this call.
func (c *Client) AppendEntry(ctx context.Context, e *Entry) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid entry: %w", err)
	}

	seq, err := c.rdb.Incr(ctx, EntrySeqKey(c.runID)).Result()
	if err != nil {
		return fmt.Errorf("failed to allocate entry sequence: %w", err)
	}
	e.Sequence = seq
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAtMs == 0 {
		e.CreatedAtMs = c.nowMs()
	}

	score := SequenceScore(seq)
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, EntryKey(c.runID, e.ID), EntryToHash(e))
		pipe.ZAdd(ctx, BlackboardKey(c.runID), redis.Z{Score: score, Member: e.ID})
		pipe.ZAdd(ctx, BlackboardTypeKey(c.runID, e.Type), redis.Z{Score: score, Member: e.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write entry to Redis: %w", err)
	}

	c.publish(ctx, EventEntryAppended, e.ID, e)
	return nil
}

// ReadEntries returns up to limit entries, newest first. When types is
// non-empty only entries of those types are returned.
func (c *Client) ReadEntries(ctx context.Context, types []EntryType, limit int) ([]*Entry, error) {
	if limit <= 0 {
		return []*Entry{}, nil
	}

	keys := []string{BlackboardKey(c.runID)}
	if len(types) > 0 {
		keys = keys[:0]
		seen := make(map[EntryType]bool)
		for _, t := range types {
			if seen[t] {
				continue
			}
			seen[t] = true
			keys = append(keys, BlackboardTypeKey(c.runID, t))
		}
	}

	var members []redis.Z
	for _, key := range keys {
		zs, err := c.rdb.ZRevRangeWithScores(ctx, key, 0, int64(limit-1)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read blackboard index: %w", err)
		}
		members = append(members, zs...)
	}

	sort.Slice(members, func(i, j int) bool { return members[i].Score > members[j].Score })
	if len(members) > limit {
		members = members[:limit]
	}

	ids := make([]string, len(members))
	for i, z := range members {
		ids[i] = z.Member.(string)
	}
	return c.getEntries(ctx, ids)
}

// ListEntries returns the whole log in sequence order.
func (c *Client) ListEntries(ctx context.Context) ([]*Entry, error) {
	ids, err := c.rdb.ZRange(ctx, BlackboardKey(c.runID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read blackboard index: %w", err)
	}
	return c.getEntries(ctx, ids)
}

func (c *Client) getEntries(ctx context.Context, ids []string) ([]*Entry, error) {
	if len(ids) == 0 {
		return []*Entry{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, EntryKey(c.runID, id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read entries from Redis: %w", err)
	}

	entries := make([]*Entry, 0, len(ids))
	for _, cmd := range cmds {
		if len(cmd.Val()) == 0 {
			continue
		}
		e, err := HashToEntry(cmd.Val())
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// UpsertCell writes a tesseract cell, replacing any previous value for the
// same (element, step) key.
func (c *Client) UpsertCell(ctx context.Context, cell *Cell) error {
	if cell.Criticality == "" {
		cell.Criticality = CriticalityInfo
	}
	if err := cell.Validate(); err != nil {
		return fmt.Errorf("invalid cell: %w", err)
	}
	cell.UpdatedAtMs = c.nowMs()

	data, err := json.Marshal(cell)
	if err != nil {
		return fmt.Errorf("failed to serialize cell: %w", err)
	}
	if err := c.rdb.HSet(ctx, CellsKey(c.runID), cell.Field(), data).Err(); err != nil {
		return fmt.Errorf("failed to write cell to Redis: %w", err)
	}

	c.publish(ctx, EventCellRecorded, cell.Field(), cell)
	return nil
}

// ListCells returns every tesseract cell ordered by element ID, then step.
func (c *Client) ListCells(ctx context.Context) ([]*Cell, error) {
	raw, err := c.rdb.HGetAll(ctx, CellsKey(c.runID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read tesseract from Redis: %w", err)
	}

	cells := make([]*Cell, 0, len(raw))
	for field, data := range raw {
		var cell Cell
		if err := json.Unmarshal([]byte(data), &cell); err != nil {
			return nil, fmt.Errorf("failed to deserialize cell %s: %w", field, err)
		}
		cells = append(cells, &cell)
	}

	sort.Slice(cells, func(i, j int) bool {
		if cells[i].ElementID != cells[j].ElementID {
			return cells[i].ElementID < cells[j].ElementID
		}
		return cells[i].Step < cells[j].Step
	})
	return cells, nil
}

// SaveVenn persists the finalized Venn result, replacing any earlier one.
func (c *Client) SaveVenn(ctx context.Context, v *VennResult) error {
	if v.FinalizedAtMs == 0 {
		v.FinalizedAtMs = c.nowMs()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to serialize venn result: %w", err)
	}
	if err := c.rdb.Set(ctx, VennKey(c.runID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write venn result to Redis: %w", err)
	}

	c.publish(ctx, EventVennFinalized, c.runID, v)
	return nil
}

// GetVenn retrieves the finalized Venn result.
// Returns (nil, redis.Nil) if the run has not been finalized.
func (c *Client) GetVenn(ctx context.Context) (*VennResult, error) {
	data, err := c.rdb.Get(ctx, VennKey(c.runID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, redis.Nil
		}
		return nil, fmt.Errorf("failed to read venn result from Redis: %w", err)
	}

	var v VennResult
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to deserialize venn result: %w", err)
	}
	return &v, nil
}

// SetStatus writes the run status and publishes a status_changed event.
func (c *Client) SetStatus(ctx context.Context, s *RunStatus) error {
	s.RunID = c.runID
	s.UpdatedAtMs = c.nowMs()
	if err := c.rdb.HSet(ctx, StatusKey(c.runID), StatusToHash(s)).Err(); err != nil {
		return fmt.Errorf("failed to write run status to Redis: %w", err)
	}
	c.publish(ctx, EventStatusChanged, c.runID, s)
	return nil
}

// GetStatus reads the run status.
// Returns (nil, redis.Nil) if the run has never been started.
func (c *Client) GetStatus(ctx context.Context) (*RunStatus, error) {
	hash, err := c.rdb.HGetAll(ctx, StatusKey(c.runID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read run status from Redis: %w", err)
	}
	if len(hash) == 0 {
		return nil, redis.Nil
	}

	s, err := HashToStatus(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize run status: %w", err)
	}
	return s, nil
}

// AcquireRun takes exclusive ownership of the run for ttl.
// Returns ErrRunLocked if another holder owns it.
func (c *Client) AcquireRun(ctx context.Context, token string, ttl time.Duration) error {
	ok, err := c.rdb.SetNX(ctx, RunLockKey(c.runID), token, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !ok {
		return ErrRunLocked
	}
	return nil
}

// RefreshRun extends ownership of the run. Returns ErrRunLocked if the lock
// expired and was taken by someone else.
func (c *Client) RefreshRun(ctx context.Context, token string, ttl time.Duration) error {
	n, err := refreshScript.Run(ctx, c.rdb, []string{RunLockKey(c.runID)}, token, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("failed to refresh run lock: %w", err)
	}
	if n == 0 {
		return ErrRunLocked
	}
	return nil
}

// ReleaseRun drops ownership of the run if token still holds it.
func (c *Client) ReleaseRun(ctx context.Context, token string) error {
	if err := releaseScript.Run(ctx, c.rdb, []string{RunLockKey(c.runID)}, token).Err(); err != nil {
		return fmt.Errorf("failed to release run lock: %w", err)
	}
	return nil
}

// EventKind names the change an Event reports.
type EventKind string

const (
	EventNodeCreated   EventKind = "node_created"
	EventEdgeCreated   EventKind = "edge_created"
	EventEntryAppended EventKind = "entry_appended"
	EventCellRecorded  EventKind = "cell_recorded"
	EventVennFinalized EventKind = "venn_finalized"
	EventStatusChanged EventKind = "status_changed"
)

// Event is published on the run's channel after every successful write.
type Event struct {
	Kind  EventKind       `json:"kind"`
	RunID string          `json:"run_id"`
	ID    string          `json:"id"`
	AtMs  int64           `json:"at_ms"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// publish sends an event after a committed write. Delivery is at-most-once:
// a failure is logged and never reported to the caller of the write.
func (c *Client) publish(ctx context.Context, kind EventKind, id string, v interface{}) {
	data, err := json.Marshal(v)
	if err == nil {
		var event []byte
		event, err = json.Marshal(Event{Kind: kind, RunID: c.runID, ID: id, AtMs: c.nowMs(), Data: data})
		if err == nil {
			err = c.rdb.Publish(ctx, EventsChannel(c.runID), event).Err()
		}
	}
	if err != nil {
		c.logger.Warn("event_publish_failed",
			zap.String("run_id", c.runID),
			zap.String("kind", string(kind)),
			zap.String("id", id),
			zap.Error(err))
	}
}

// Subscription represents an active Pub/Sub subscription to run events.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	events <-chan *Event
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of run events.
// The channel will be closed when the subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan *Event {
	return s.events
}

// Errors returns the channel of subscription errors.
// The subscription continues after errors; malformed messages are skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeEvents subscribes to every event of this run.
//
// Events are delivered on a buffered channel (size 10) to prevent blocking.
// If the subscriber is too slow, events may be dropped by Redis Pub/Sub (at-most-once delivery).
func (c *Client) SubscribeEvents(ctx context.Context) (*Subscription, error) {
	pubsub := c.rdb.Subscribe(ctx, EventsChannel(c.runID))

	// Wait for confirmation so that events published right after this call are not lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to run events: %w", err)
	}

	eventsChan := make(chan *Event, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal run event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
