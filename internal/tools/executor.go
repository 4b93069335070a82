package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dyluth/auditor/internal/perspective"
	"github.com/dyluth/auditor/internal/resolver"
	"github.com/dyluth/auditor/pkg/blackboard"
	"go.uber.org/zap"
)

// DefaultBatchSize is the number of elements request_next_batch returns.
const DefaultBatchSize = 10

// Store is the subset of the run store the executor needs.
// *blackboard.Client satisfies it.
type Store interface {
	DatasetSize(ctx context.Context, d blackboard.Dataset) (int, error)
	ListElements(ctx context.Context, d blackboard.Dataset, offset, limit int) ([]*blackboard.Element, error)
	GetElement(ctx context.Context, elementID string) (*blackboard.Element, error)

	CreateNode(ctx context.Context, n *blackboard.Node) error
	GetNode(ctx context.Context, nodeID string) (*blackboard.Node, error)
	ListNodes(ctx context.Context) ([]*blackboard.Node, error)
	CreateEdge(ctx context.Context, e *blackboard.Edge) error
	ListEdges(ctx context.Context) ([]*blackboard.Edge, error)

	AppendEntry(ctx context.Context, e *blackboard.Entry) error
	ReadEntries(ctx context.Context, types []blackboard.EntryType, limit int) ([]*blackboard.Entry, error)

	UpsertCell(ctx context.Context, cell *blackboard.Cell) error
	SaveVenn(ctx context.Context, v *blackboard.VennResult) error
}

// Call is one tool invocation requested by the model.
type Call struct {
	Tool      string         `json:"tool"`
	Params    map[string]any `json:"params"`
	Rationale string         `json:"rationale,omitempty"`
	Turn      int            `json:"-"`
}

// Result is the outcome of one Call. Exactly one of Data and Err is set.
type Result struct {
	Tool      string
	Data      any
	Err       error
	Finalized bool // finalize_venn stored a valid result
	Duration  time.Duration
}

// OK reports whether the call succeeded.
func (r *Result) OK() bool {
	return r.Err == nil
}

// Payload returns the structured form of the result fed back to the model.
func (r *Result) Payload() map[string]any {
	if r.Err == nil {
		return map[string]any{"tool": r.Tool, "ok": true, "result": r.Data}
	}

	detail := map[string]any{"kind": Kind(r.Err), "message": r.Err.Error()}
	var (
		validation *ValidationError
		ambiguous  *AmbiguousIdError
	)
	switch {
	case errors.As(r.Err, &validation):
		if validation.Field != "" {
			detail["field"] = validation.Field
		}
		if len(validation.IDs) > 0 {
			detail["ids"] = validation.IDs
		}
	case errors.As(r.Err, &ambiguous):
		detail["message"] = resolver.FormatAmbiguousError(ambiguous)
		detail["ids"] = ambiguous.Matches
	}
	return map[string]any{"tool": r.Tool, "ok": false, "error": detail}
}

// JSON renders Payload as a compact JSON string.
func (r *Result) JSON() string {
	data, err := json.Marshal(r.Payload())
	if err != nil {
		return fmt.Sprintf(`{"tool":%q,"ok":false,"error":{"kind":%q,"message":%q}}`, r.Tool, KindInternal, err.Error())
	}
	return string(data)
}

// Executor dispatches tool calls against one run's stores. Calls must be
// executed one at a time; each call's writes are durable before it returns.
type Executor struct {
	store     Store
	index     *resolver.Index
	logger    *zap.Logger
	batchSize int
	lenses    []string
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the executor's logger.
func WithLogger(l *zap.Logger) Option {
	return func(x *Executor) { x.logger = l }
}

// WithBatchSize overrides the request_next_batch page size.
func WithBatchSize(n int) Option {
	return func(x *Executor) {
		if n > 0 {
			x.batchSize = n
		}
	}
}

// WithLenses restricts the targetAgent values write_blackboard accepts.
func WithLenses(ids []string) Option {
	return func(x *Executor) { x.lenses = ids }
}

// NewExecutor creates an executor. The index must already hold every node
// of the run; the executor keeps it current as it creates concepts.
func NewExecutor(store Store, index *resolver.Index, opts ...Option) *Executor {
	x := &Executor{
		store:     store,
		index:     index,
		logger:    zap.NewNop(),
		batchSize: DefaultBatchSize,
		lenses:    perspective.IDs(),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

type handler func(x *Executor, ctx context.Context, call Call, a args) (any, error)

var handlers = map[string]handler{
	RequestNextBatch:    (*Executor).requestNextBatch,
	ReadDatasetItem:     (*Executor).readDatasetItem,
	QueryKnowledgeGraph: (*Executor).queryKnowledgeGraph,
	GetConceptLinks:     (*Executor).getConceptLinks,
	WriteBlackboard:     (*Executor).writeBlackboard,
	ReadBlackboard:      (*Executor).readBlackboard,
	CreateConcept:       (*Executor).createConcept,
	LinkConcepts:        (*Executor).linkConcepts,
	RecordTesseractCell: (*Executor).recordTesseractCell,
	FinalizeVenn:        (*Executor).finalizeVenn,
}

// paramAliases maps alternative parameter names onto canonical ones.
var paramAliases = map[string]map[string]string{
	CreateConcept: {"name": "label"},
}

// Execute runs one call. It never panics on bad input and never returns a
// nil Result; failures are reported in Result.Err.
func (x *Executor) Execute(ctx context.Context, call Call) *Result {
	start := time.Now()
	res := &Result{Tool: call.Tool}

	data, err := x.dispatch(ctx, call)
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = err
		x.logger.Info("tool_failed",
			zap.String("tool", call.Tool),
			zap.Int("turn", call.Turn),
			zap.String("kind", Kind(err)),
			zap.Error(err))
		return res
	}

	res.Data = data
	if call.Tool == FinalizeVenn {
		res.Finalized = true
	}
	x.logger.Debug("tool_succeeded",
		zap.String("tool", call.Tool),
		zap.Int("turn", call.Turn),
		zap.Duration("duration", res.Duration))
	return res
}

func (x *Executor) dispatch(ctx context.Context, call Call) (any, error) {
	tool, ok := Lookup(call.Tool)
	if !ok {
		return nil, invalid(call.Tool, "tool", "unknown tool %q", call.Tool)
	}
	h := handlers[tool.Name]

	raw := make(map[string]any, len(call.Params))
	for k, v := range call.Params {
		raw[k] = v
	}
	for alias, canonical := range paramAliases[tool.Name] {
		if _, ok := raw[canonical]; !ok {
			if v, ok := raw[alias]; ok {
				raw[canonical] = v
			}
		}
	}

	a := args{tool: tool.Name, raw: raw}
	for _, name := range tool.RequiredParams() {
		if !a.has(name) {
			return nil, invalid(tool.Name, name, "is required")
		}
	}

	return h(x, ctx, call, a)
}
