// Package watch follows a run while it executes: it streams store events and
// waits for the run to reach a terminal state.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/auditor/internal/resolver"
	"github.com/dyluth/auditor/pkg/blackboard"
)

// OutputFormat selects how streamed events are written.
type OutputFormat string

const (
	// OutputFormatDefault is one human-readable line per event.
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSON is one raw event object per line.
	OutputFormatJSON OutputFormat = "json"
)

// StatusReader reads the persisted run status.
type StatusReader interface {
	GetStatus(ctx context.Context) (*blackboard.RunStatus, error)
}

// EventSource subscribes to a run's event channel.
type EventSource interface {
	SubscribeEvents(ctx context.Context) (*blackboard.Subscription, error)
}

// PollForCompletion polls the run status every interval until the run is
// DONE or FAILED, the timeout elapses, or ctx ends. A run that has not
// started yet is waited for.
func PollForCompletion(ctx context.Context, store StatusReader, interval, timeout time.Duration) (*blackboard.RunStatus, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		status, err := store.GetStatus(ctx)
		switch {
		case err == nil && status.State.Terminal():
			return status, nil
		case err != nil && !blackboard.IsNotFound(err):
			return nil, fmt.Errorf("failed to query run status: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, fmt.Errorf("timeout waiting for run to finish after %v", timeout)
		case <-ticker.C:
		}
	}
}

// StreamEvents writes run events to w until the run reaches a terminal state
// or ctx ends. Malformed events are reported inline and skipped.
func StreamEvents(ctx context.Context, source EventSource, format OutputFormat, w io.Writer) error {
	sub, err := source.SubscribeEvents(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			fmt.Fprintf(w, "⚠️  %v\n", err)

		case event, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if err := writeEvent(w, event, format); err != nil {
				return err
			}
			if isFinal(event) {
				return nil
			}
		}
	}
}

func writeEvent(w io.Writer, event *blackboard.Event, format OutputFormat) error {
	if format == OutputFormatJSON {
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}

	ts := time.UnixMilli(event.AtMs).Format("15:04:05")
	_, err := fmt.Fprintf(w, "[%s] %s\n", ts, FormatEvent(event))
	return err
}

// isFinal reports whether event marks the end of the run.
func isFinal(event *blackboard.Event) bool {
	if event.Kind != blackboard.EventStatusChanged {
		return false
	}
	var s blackboard.RunStatus
	if err := json.Unmarshal(event.Data, &s); err != nil {
		return false
	}
	return s.State.Terminal()
}

// FormatEvent renders one event as a single human-readable line.
func FormatEvent(event *blackboard.Event) string {
	switch event.Kind {
	case blackboard.EventNodeCreated:
		var n blackboard.Node
		if json.Unmarshal(event.Data, &n) == nil {
			return fmt.Sprintf("🧩 Node created: %s %q (%s)", n.Type, n.Label, resolver.ShortID(n.ID))
		}

	case blackboard.EventEdgeCreated:
		var e blackboard.Edge
		if json.Unmarshal(event.Data, &e) == nil {
			return fmt.Sprintf("🔗 Edge created: %s -[%s]-> %s", resolver.ShortID(e.SourceNodeID), e.Type, resolver.ShortID(e.TargetNodeID))
		}

	case blackboard.EventEntryAppended:
		var e blackboard.Entry
		if json.Unmarshal(event.Data, &e) == nil {
			return fmt.Sprintf("📝 Blackboard #%d %s (turn %d): %s", e.Sequence, e.Type, e.Turn, firstLine(e.Content, 80))
		}

	case blackboard.EventCellRecorded:
		var c blackboard.Cell
		if json.Unmarshal(event.Data, &c) == nil {
			return fmt.Sprintf("🧊 Tesseract cell: %s step %d polarity=%+.2f %s", c.ElementLabel, c.Step, c.Polarity, c.Criticality)
		}

	case blackboard.EventVennFinalized:
		var v blackboard.VennResult
		if json.Unmarshal(event.Data, &v) == nil {
			return fmt.Sprintf("✅ Venn finalized: unique_d1=%d aligned=%d unique_d2=%d", len(v.UniqueToD1), len(v.Aligned), len(v.UniqueToD2))
		}

	case blackboard.EventStatusChanged:
		var s blackboard.RunStatus
		if json.Unmarshal(event.Data, &s) == nil {
			line := fmt.Sprintf("🔄 Status: %s turn=%d/%d", s.State, s.Turn, s.MaxTurns)
			if s.Lens != "" {
				line += " lens=" + s.Lens
			}
			if s.Error != "" {
				line += " error=" + s.Error
			}
			return line
		}
	}

	return fmt.Sprintf("• %s %s", event.Kind, event.ID)
}

func firstLine(s string, max int) string {
	for i, r := range s {
		if r == '\n' {
			s = s[:i]
			break
		}
	}
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}
