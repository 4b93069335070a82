package tools

import (
	"context"
	"fmt"

	"github.com/dyluth/auditor/internal/resolver"
	"github.com/dyluth/auditor/pkg/blackboard"
)

type batchResult struct {
	Dataset    string        `json:"dataset"`
	StartIndex int           `json:"startIndex"`
	NextIndex  int           `json:"nextIndex"`
	Total      int           `json:"total"`
	HasMore    bool          `json:"hasMore"`
	Elements   []elementView `json:"elements"`
}

func (x *Executor) requestNextBatch(ctx context.Context, _ Call, a args) (any, error) {
	d, err := a.dataset("dataset")
	if err != nil {
		return nil, err
	}
	start, _, err := a.integer("startIndex")
	if err != nil {
		return nil, err
	}
	if start < 0 {
		return nil, invalid(a.tool, "startIndex", "must be zero or greater, got %d", start)
	}

	size, err := x.store.DatasetSize(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s size: %w", d, err)
	}
	if start > size {
		return nil, &RangeError{Dataset: d, StartIndex: start, Size: size}
	}

	elements, err := x.store.ListElements(ctx, d, start, x.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s batch: %w", d, err)
	}

	views := make([]elementView, len(elements))
	for i, e := range elements {
		views[i] = newElementView(e)
	}
	next := start + len(elements)
	return batchResult{
		Dataset:    d.String(),
		StartIndex: start,
		NextIndex:  next,
		Total:      size,
		HasMore:    next < size,
		Elements:   views,
	}, nil
}

func (x *Executor) readDatasetItem(ctx context.Context, _ Call, a args) (any, error) {
	d, err := a.dataset("dataset")
	if err != nil {
		return nil, err
	}
	ref, _ := a.str("itemId")

	id, err := x.index.Resolve(ref, resolver.InDataset(d))
	if err != nil {
		return nil, err
	}
	el, err := x.store.GetElement(ctx, id)
	if err != nil {
		if blackboard.IsNotFound(err) {
			return nil, &NotFoundError{Candidate: ref}
		}
		return nil, fmt.Errorf("failed to read element %s: %w", id, err)
	}
	return newElementView(el), nil
}

// universe loads every element of both datasets.
func (x *Executor) universe(ctx context.Context) (d1, d2 []*blackboard.Element, err error) {
	load := func(d blackboard.Dataset) ([]*blackboard.Element, error) {
		size, err := x.store.DatasetSize(ctx, d)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s size: %w", d, err)
		}
		elements, err := x.store.ListElements(ctx, d, 0, size)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", d, err)
		}
		return elements, nil
	}
	if d1, err = load(blackboard.Dataset1); err != nil {
		return nil, nil, err
	}
	if d2, err = load(blackboard.Dataset2); err != nil {
		return nil, nil, err
	}
	return d1, d2, nil
}
