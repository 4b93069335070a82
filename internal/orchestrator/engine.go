// Package orchestrator drives one audit run: a bounded loop that asks the
// model for a turn, executes the requested tool calls in order and stops
// once a Venn result is finalized or the turn budget runs out.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dyluth/auditor/internal/config"
	"github.com/dyluth/auditor/internal/llm"
	"github.com/dyluth/auditor/internal/perspective"
	"github.com/dyluth/auditor/internal/resolver"
	"github.com/dyluth/auditor/internal/tools"
	"github.com/dyluth/auditor/pkg/blackboard"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// reasoningTypes are the entry types shown in the turn prompt window.
// Tool results are reported separately, and only for the previous turn.
var reasoningTypes = []blackboard.EntryType{
	blackboard.EntryTypePlan,
	blackboard.EntryTypeFinding,
	blackboard.EntryTypeObservation,
	blackboard.EntryTypeQuestion,
	blackboard.EntryTypeConclusion,
}

// Settings bound the turn loop.
type Settings struct {
	MaxTurns            int
	TurnTimeout         time.Duration
	BlackboardWindow    int
	BatchSize           int
	MaxTransportRetries int
	Lenses              []string
}

// SettingsFromConfig converts a validated orchestrator section.
func SettingsFromConfig(o *config.OrchestratorConfig) Settings {
	s := Settings{
		MaxTurns:         o.MaxTurns,
		TurnTimeout:      o.TurnTimeoutDuration(),
		BlackboardWindow: o.BlackboardWindow,
		BatchSize:        o.BatchSize,
		Lenses:           o.Lenses,
	}
	if o.MaxTransportRetries != nil {
		s.MaxTransportRetries = *o.MaxTransportRetries
	}
	return s
}

func (s *Settings) validate() error {
	if s.MaxTurns < 1 || s.MaxTurns > config.MaxTurnsLimit {
		return fmt.Errorf("max turns must be between 1 and %d, got %d", config.MaxTurnsLimit, s.MaxTurns)
	}
	if s.TurnTimeout <= 0 {
		s.TurnTimeout = config.DefaultTurnTimeout
	}
	if s.BlackboardWindow <= 0 {
		s.BlackboardWindow = config.DefaultBlackboardWindow
	}
	if s.BatchSize <= 0 {
		s.BatchSize = config.DefaultBatchSize
	}
	if s.MaxTransportRetries < 0 {
		return fmt.Errorf("max transport retries must be >= 0, got %d", s.MaxTransportRetries)
	}
	if len(s.Lenses) == 0 {
		s.Lenses = perspective.IDs()
	}
	return perspective.Validate(s.Lenses)
}

// Engine runs audits against one model. An Engine holds no per-run state;
// concurrent calls to Run with different run clients are independent.
type Engine struct {
	model      llm.Model
	settings   Settings
	logger     *zap.Logger
	newBackOff func() backoff.BackOff
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithBackOff sets the retry schedule for transient model failures.
// The number of retries is always capped by MaxTransportRetries.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(e *Engine) { e.newBackOff = f }
}

// NewEngine creates an engine. An unknown lens in settings is a
// configuration error wrapping perspective.ErrUnknownLens.
func NewEngine(model llm.Model, settings Settings, opts ...Option) (*Engine, error) {
	if model == nil {
		return nil, fmt.Errorf("model is required")
	}
	if err := settings.validate(); err != nil {
		return nil, fmt.Errorf("invalid orchestrator settings: %w", err)
	}

	e := &Engine{
		model:    model,
		settings: settings,
		logger:   zap.NewNop(),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 20 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Settings returns the validated settings, defaults applied.
func (e *Engine) Settings() Settings {
	return e.settings
}

// run is the state of one Run call. It is owned by a single goroutine.
type run struct {
	e      *Engine
	client *blackboard.Client
	exec   *tools.Executor
	logger *zap.Logger
	token  string

	turn      int
	d1Size    int
	d2Size    int
	finalized bool

	lens       perspective.Lens
	nextLens   string
	results    []string // tool_result payloads of the previous turn
	lastFailed string
}

// Run executes the audit loop for the run the client is scoped to and
// returns everything the run accumulated.
//
// The error is nil when the run reached DONE. Otherwise it is a
// *TransportError, a *TerminationError or a store failure, and the report
// (when non-nil) holds the partial results. A run held by another
// orchestrator fails with blackboard.ErrRunLocked and no report.
func (e *Engine) Run(ctx context.Context, client *blackboard.Client) (*Report, error) {
	r := &run{
		e:      e,
		client: client,
		logger: e.logger.With(zap.String("run_id", client.RunID())),
		token:  uuid.New().String(),
	}

	if err := r.init(ctx); err != nil {
		return nil, err
	}
	activeRuns.Inc()
	defer activeRuns.Dec()

	// Persistence past this point must survive cancellation of ctx.
	bg := context.WithoutCancel(ctx)
	defer func() {
		if err := client.ReleaseRun(bg, r.token); err != nil {
			r.logger.Warn("run_lock_release_failed", zap.Error(err))
		}
	}()

	runErr := r.loop(ctx)

	final := blackboard.RunStateDone
	if runErr != nil {
		final = blackboard.RunStateFailed
	}
	if err := r.setState(bg, final, runErr); err != nil && runErr == nil {
		runErr = err
		final = blackboard.RunStateFailed
	}
	runsTotal.WithLabelValues(string(final)).Inc()

	r.logEvent("run_finished",
		zap.String("state", string(final)),
		zap.Int("turns", r.turn),
		zap.Bool("finalized", r.finalized),
		zap.NamedError("cause", runErr))

	rep, err := BuildReport(bg, client, final, r.turn, runErr)
	if err != nil {
		r.logger.Error("report_failed", zap.Error(err))
		if runErr == nil {
			runErr = err
		}
	}
	return rep, runErr
}

// init claims the run and loads what every turn needs.
func (r *run) init(ctx context.Context) error {
	ttl := r.e.lockTTL()
	if err := r.client.AcquireRun(ctx, r.token, ttl); err != nil {
		return fmt.Errorf("failed to claim run %s: %w", r.client.RunID(), err)
	}

	err := r.load(ctx)
	if err != nil {
		if relErr := r.client.ReleaseRun(context.WithoutCancel(ctx), r.token); relErr != nil {
			r.logger.Warn("run_lock_release_failed", zap.Error(relErr))
		}
		return err
	}
	return nil
}

func (r *run) load(ctx context.Context) error {
	if err := r.resume(ctx); err != nil {
		return err
	}

	var err error
	if r.d1Size, err = r.client.DatasetSize(ctx, blackboard.Dataset1); err != nil {
		return err
	}
	if r.d2Size, err = r.client.DatasetSize(ctx, blackboard.Dataset2); err != nil {
		return err
	}

	index, err := resolver.Load(ctx, r.client)
	if err != nil {
		return err
	}
	r.exec = tools.NewExecutor(r.client, index,
		tools.WithLogger(r.logger),
		tools.WithBatchSize(r.e.settings.BatchSize),
		tools.WithLenses(r.e.settings.Lenses))

	if err := r.setState(ctx, blackboard.RunStateInit, nil); err != nil {
		return err
	}
	r.logEvent("run_started",
		zap.String("model", r.e.model.Name()),
		zap.Int("dataset1_size", r.d1Size),
		zap.Int("dataset2_size", r.d2Size),
		zap.Int("max_turns", r.e.settings.MaxTurns),
		zap.Int("start_turn", r.turn))
	return nil
}

func (e *Engine) lockTTL() time.Duration {
	return 2*e.settings.TurnTimeout + time.Minute
}

// loop runs turns until the run is DONE (nil) or FAILED (error).
func (r *run) loop(ctx context.Context) error {
	bg := context.WithoutCancel(ctx)
	s := r.e.settings

	for {
		if err := ctx.Err(); err != nil {
			return r.stop("run cancelled", err)
		}
		if r.turn >= s.MaxTurns {
			return r.stop(fmt.Sprintf("turn budget of %d exhausted", s.MaxTurns), nil)
		}
		if err := r.client.RefreshRun(bg, r.token, r.e.lockTTL()); err != nil {
			return fmt.Errorf("lost ownership of run: %w", err)
		}

		r.turn++
		if err := r.selectLens(); err != nil {
			return err
		}
		if err := r.setState(bg, blackboard.RunStateTurnPending, nil); err != nil {
			return err
		}

		done, err := r.executeTurn(ctx, bg)
		var te *TransportError
		if errors.As(err, &te) && r.finalized {
			return r.stop(fmt.Sprintf("model unreachable on turn %d", te.Turn), err)
		}
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// stop ends the loop outside of a model decision. A run that already
// stored a Venn result ends DONE; any other run fails.
func (r *run) stop(reason string, cause error) error {
	if r.finalized {
		r.logEvent("run_stopped", zap.String("reason", reason))
		return nil
	}
	return &TerminationError{Turns: r.turn, Reason: reason, Err: cause}
}

// selectLens picks the lens for the current turn: the one the model asked
// for last turn, otherwise the next one in rotation.
func (r *run) selectLens() error {
	if r.nextLens != "" {
		lens, err := perspective.Get(r.nextLens)
		r.nextLens = ""
		if err == nil {
			r.lens = lens
			return nil
		}
	}
	lens, err := perspective.ForTurn(r.e.settings.Lenses, r.turn)
	if err != nil {
		return err
	}
	r.lens = lens
	return nil
}

// executeTurn performs one TURN_PENDING -> TURN_EXECUTING cycle. It
// reports done when the model ended the analysis with a finalized Venn.
func (r *run) executeTurn(ctx, bg context.Context) (bool, error) {
	start := time.Now()
	defer func() { turnDuration.Observe(time.Since(start).Seconds()) }()

	req, err := r.buildRequest(bg)
	if err != nil {
		return false, err
	}

	resp, err := r.callModel(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			// Cancelled while waiting for the model; the loop decides.
			return false, nil
		}
		if reason, ok := turnFailure(err); ok {
			return false, r.failTurn(bg, reason)
		}
		return false, err
	}
	turnsTotal.WithLabelValues("ok").Inc()
	r.lastFailed = ""

	r.logEvent("turn_received",
		zap.Int("turn", r.turn),
		zap.String("lens", r.lens.ID),
		zap.String("perspective", resp.Perspective),
		zap.Int("tool_calls", len(resp.ToolCalls)),
		zap.Bool("continue", resp.ContinueAnalysis),
		zap.String("model", resp.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))
	r.logger.Debug("model_thinking", zap.Int("turn", r.turn), zap.String("thinking", resp.Thinking))

	if resp.Perspective != "" {
		if r.allowedLens(resp.Perspective) {
			r.nextLens = resp.Perspective
		} else {
			r.logger.Info("perspective_ignored", zap.Int("turn", r.turn), zap.String("perspective", resp.Perspective))
		}
	}

	if err := r.setState(bg, blackboard.RunStateTurnExecuting, nil); err != nil {
		return false, err
	}
	if err := r.runTools(ctx, bg, resp.ToolCalls); err != nil {
		return false, err
	}

	if resp.ContinueAnalysis {
		return false, nil
	}
	if r.finalized {
		return true, nil
	}

	// The model wants to stop but nothing is finalized yet: keep going.
	note := "continueAnalysis=false was ignored because finalize_venn has not succeeded yet"
	r.logEvent("stop_refused", zap.Int("turn", r.turn))
	r.lastFailed = note
	return false, r.observe(bg, note)
}

// runTools executes the calls sequentially. Each call runs to completion
// even if ctx is cancelled meanwhile; cancellation is honored between calls.
func (r *run) runTools(ctx, bg context.Context, calls []llm.ToolCall) error {
	r.results = r.results[:0]
	for i, tc := range calls {
		if ctx.Err() != nil {
			r.logEvent("tool_calls_skipped",
				zap.Int("turn", r.turn),
				zap.Int("skipped", len(calls)-i))
			return nil
		}

		res := r.exec.Execute(bg, tools.Call{
			Tool:      tc.Tool,
			Params:    tc.Params,
			Rationale: tc.Rationale,
			Turn:      r.turn,
		})
		toolCallsTotal.WithLabelValues(toolLabel(tc.Tool), outcomeLabel(res)).Inc()

		payload := res.JSON()
		entry := &blackboard.Entry{
			Type:    blackboard.EntryTypeToolResult,
			Content: payload,
			Turn:    r.turn,
		}
		if err := r.client.AppendEntry(bg, entry); err != nil {
			return fmt.Errorf("failed to record result of %s: %w", tc.Tool, err)
		}
		r.results = append(r.results, payload)

		if res.Finalized {
			r.finalized = true
			r.logEvent("venn_finalized", zap.Int("turn", r.turn))
		}
	}
	return nil
}

// failTurn records a turn that produced no usable response. The turn still
// counts toward the budget.
func (r *run) failTurn(bg context.Context, reason string) error {
	r.logEvent("turn_failed", zap.Int("turn", r.turn), zap.String("reason", reason))
	r.results = r.results[:0]
	r.lastFailed = reason
	return r.observe(bg, fmt.Sprintf("turn %d failed: %s", r.turn, reason))
}

func (r *run) observe(bg context.Context, content string) error {
	entry := &blackboard.Entry{Type: blackboard.EntryTypeObservation, Content: content, Turn: r.turn}
	if err := r.client.AppendEntry(bg, entry); err != nil {
		return fmt.Errorf("failed to record observation: %w", err)
	}
	return nil
}

// turnFailure classifies errors that cost a turn without failing the run.
func turnFailure(err error) (string, bool) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		turnsTotal.WithLabelValues("timeout").Inc()
		return "model did not answer within the turn timeout", true
	case llm.IsParseError(err):
		turnsTotal.WithLabelValues("parse_error").Inc()
		return err.Error(), true
	default:
		return "", false
	}
}

// callModel sends the turn, retrying transient failures with backoff
// inside the turn timeout.
func (r *run) callModel(ctx context.Context, req *llm.TurnRequest) (*llm.TurnResponse, error) {
	turnCtx, cancel := context.WithTimeout(ctx, r.e.settings.TurnTimeout)
	defer cancel()

	attempts := 0
	op := func() (*llm.TurnResponse, error) {
		attempts++
		resp, err := r.e.model.Turn(turnCtx, req)
		if err == nil {
			return resp, nil
		}
		if turnCtx.Err() != nil {
			return nil, backoff.Permanent(turnCtx.Err())
		}
		if llm.IsTransient(err) {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		modelRetriesTotal.Inc()
		r.logger.Warn("model_retry",
			zap.Int("turn", r.turn),
			zap.Int("attempt", attempts),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(r.e.newBackOff(), uint64(r.e.settings.MaxTransportRetries)),
		turnCtx)
	resp, err := backoff.RetryNotifyWithData(op, policy, notify)
	if err == nil {
		return resp, nil
	}

	if turnCtx.Err() != nil {
		return nil, turnCtx.Err()
	}
	if llm.IsParseError(err) {
		return nil, err
	}
	return nil, &TransportError{Turn: r.turn, Attempts: attempts, Err: err}
}

// buildRequest assembles the turn payload from the store.
func (r *run) buildRequest(ctx context.Context) (*llm.TurnRequest, error) {
	recent, err := r.client.ReadEntries(ctx, reasoningTypes, r.e.settings.BlackboardWindow)
	if err != nil {
		return nil, err
	}

	return &llm.TurnRequest{
		RunID:  r.client.RunID(),
		Turn:   r.turn,
		System: systemPrompt(r.lens, r.e.settings.Lenses),
		Prompt: userPrompt(turnContext{
			RunID:      r.client.RunID(),
			Turn:       r.turn,
			MaxTurns:   r.e.settings.MaxTurns,
			D1Size:     r.d1Size,
			D2Size:     r.d2Size,
			Finalized:  r.finalized,
			Recent:     recent,
			Results:    r.results,
			LastFailed: r.lastFailed,
		}),
	}, nil
}

// setState persists a state transition. runErr is recorded on the status.
func (r *run) setState(ctx context.Context, state blackboard.RunState, runErr error) error {
	status := &blackboard.RunStatus{
		State:    state,
		Turn:     r.turn,
		MaxTurns: r.e.settings.MaxTurns,
		Lens:     r.lens.ID,
	}
	if runErr != nil {
		status.Error = runErr.Error()
	}
	if err := r.client.SetStatus(ctx, status); err != nil {
		return fmt.Errorf("failed to persist run state %s: %w", state, err)
	}
	return nil
}

func (r *run) allowedLens(id string) bool {
	lens, err := perspective.Get(id)
	if err != nil {
		return false
	}
	for _, allowed := range r.e.settings.Lenses {
		if allowed == lens.ID {
			return true
		}
	}
	return false
}

// logEvent logs a structured orchestrator event.
func (r *run) logEvent(eventType string, fields ...zap.Field) {
	r.logger.Info(eventType, append(fields, zap.String("event_type", eventType), zap.String("component", "orchestrator"))...)
}

func toolLabel(name string) string {
	if _, ok := tools.Lookup(name); ok {
		return name
	}
	return "unknown"
}

func outcomeLabel(res *tools.Result) string {
	if res.OK() {
		return "ok"
	}
	return tools.Kind(res.Err)
}
