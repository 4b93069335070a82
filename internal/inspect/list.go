// Package inspect renders a run's stored state for the CLI: the blackboard
// log, graph nodes, tesseract cells and the Venn result.
package inspect

import (
	"context"
	"fmt"
	"io"

	"github.com/dyluth/auditor/internal/filter"
	"github.com/dyluth/auditor/internal/graph"
	"github.com/dyluth/auditor/pkg/blackboard"
)

// OutputFormat specifies how list output is rendered.
type OutputFormat string

const (
	// OutputFormatDefault is a table with truncated content.
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL emits complete records as line-delimited JSON.
	OutputFormatJSONL OutputFormat = "jsonl"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputFormatDefault, OutputFormatJSONL:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format: %s", s)
	}
}

// Store is the read side of the run store used by this package.
type Store interface {
	RunID() string
	ListEntries(ctx context.Context) ([]*blackboard.Entry, error)
	ListNodes(ctx context.Context) ([]*blackboard.Node, error)
	ListEdges(ctx context.Context) ([]*blackboard.Edge, error)
	ListCells(ctx context.Context) ([]*blackboard.Cell, error)
	GetVenn(ctx context.Context) (*blackboard.VennResult, error)
}

// ListEntries writes the run's blackboard log, oldest first, applying filters.
func ListEntries(ctx context.Context, store Store, format OutputFormat, filters *filter.Criteria, w io.Writer) error {
	entries, err := store.ListEntries(ctx)
	if err != nil {
		return fmt.Errorf("failed to list blackboard entries: %w", err)
	}
	entries = filters.Apply(entries)

	switch format {
	case OutputFormatDefault:
		FormatEntries(w, entries, store.RunID())
	case OutputFormatJSONL:
		return FormatJSONL(w, entries)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
	return nil
}

// ListNodes writes graph nodes selected by a graph filter and node type.
// nodeType follows graph.Snapshot.Query ("" or "all" for any type).
func ListNodes(ctx context.Context, store Store, f graph.Filter, nodeType string, format OutputFormat, w io.Writer) error {
	snap, err := loadSnapshot(ctx, store)
	if err != nil {
		return err
	}
	nodes := snap.Query(f, nodeType, 0)

	switch format {
	case OutputFormatDefault:
		FormatNodes(w, nodes, store.RunID())
	case OutputFormatJSONL:
		return FormatJSONL(w, nodes)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
	return nil
}

// ListCells writes the tesseract.
func ListCells(ctx context.Context, store Store, format OutputFormat, w io.Writer) error {
	cells, err := store.ListCells(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tesseract cells: %w", err)
	}

	switch format {
	case OutputFormatDefault:
		FormatCells(w, cells, store.RunID())
	case OutputFormatJSONL:
		return FormatJSONL(w, cells)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
	return nil
}

// ShowVenn writes the finalized Venn result. In JSONL mode an unfinalized run
// produces no output.
func ShowVenn(ctx context.Context, store Store, format OutputFormat, w io.Writer) error {
	v, err := store.GetVenn(ctx)
	if err != nil && !blackboard.IsNotFound(err) {
		return fmt.Errorf("failed to read venn result: %w", err)
	}

	switch format {
	case OutputFormatDefault:
		FormatVenn(w, v, store.RunID())
	case OutputFormatJSONL:
		if v == nil {
			return nil
		}
		return FormatJSONL(w, []*blackboard.VennResult{v})
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
	return nil
}

func loadSnapshot(ctx context.Context, store Store) (*graph.Snapshot, error) {
	nodes, err := store.ListNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list graph nodes: %w", err)
	}
	edges, err := store.ListEdges(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list graph edges: %w", err)
	}
	return graph.NewSnapshot(nodes, edges), nil
}
