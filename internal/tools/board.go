package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyluth/auditor/pkg/blackboard"
)

const (
	defaultBoardLimit = 20
	maxBoardLimit     = 100
)

type writeResult struct {
	ID       string `json:"id"`
	Sequence int64  `json:"sequence"`
}

func (x *Executor) writeBlackboard(ctx context.Context, call Call, a args) (any, error) {
	typ, _ := a.str("entryType")
	entryType := blackboard.EntryType(strings.ToLower(typ))
	if err := entryType.Validate(); err != nil {
		return nil, invalid(a.tool, "entryType", "%q is not one of %v", typ, entryTypeEnum)
	}

	content, ok := a.str("content")
	if !ok {
		return nil, invalid(a.tool, "content", "must not be empty")
	}

	entry := &blackboard.Entry{Type: entryType, Content: content, Turn: call.Turn}

	confidence, ok, err := a.number("confidence")
	if err != nil {
		return nil, err
	}
	if ok {
		if confidence < 0 || confidence > 1 {
			return nil, invalid(a.tool, "confidence", "must be between 0 and 1, got %g", confidence)
		}
		entry.Confidence = &confidence
	}

	if target, ok := a.str("targetAgent"); ok {
		lens, known := x.lens(target)
		if !known {
			return nil, invalid(a.tool, "targetAgent", "%q is not one of %v", target, x.lenses)
		}
		entry.TargetPerspective = lens
	}

	if err := x.store.AppendEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append blackboard entry: %w", err)
	}
	return writeResult{ID: entry.ID, Sequence: entry.Sequence}, nil
}

func (x *Executor) lens(id string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(id))
	for _, l := range x.lenses {
		if l == key {
			return l, true
		}
	}
	return "", false
}

type readResult struct {
	Count   int         `json:"count"`
	Entries []entryView `json:"entries"`
	Ignored []string    `json:"ignoredEntryTypes,omitempty"`
}

func (x *Executor) readBlackboard(ctx context.Context, _ Call, a args) (any, error) {
	limit := defaultBoardLimit
	if n, ok, err := a.integer("limit"); err == nil && ok {
		limit = clamp(n, 1, maxBoardLimit)
	}

	var (
		types   []blackboard.EntryType
		ignored []string
	)
	// An unreadable entryTypes value is treated like an absent one.
	names, _ := a.list("entryTypes")
	for _, name := range names {
		t := blackboard.EntryType(strings.ToLower(name))
		if t.Validate() != nil {
			ignored = append(ignored, name)
			continue
		}
		types = append(types, t)
	}
	if len(names) > 0 && len(types) == 0 {
		return readResult{Entries: []entryView{}, Ignored: ignored}, nil
	}

	entries, err := x.store.ReadEntries(ctx, types, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read blackboard: %w", err)
	}
	views := make([]entryView, len(entries))
	for i, e := range entries {
		views[i] = newEntryView(e)
	}
	return readResult{Count: len(views), Entries: views, Ignored: ignored}, nil
}
