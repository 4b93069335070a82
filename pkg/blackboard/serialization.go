package blackboard

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores data as string-to-string maps (hashes). Array fields are
// JSON-encoded into single hash fields. Cells and the Venn result are stored
// as whole JSON documents since they are always read and written as a unit.

// ElementToHash converts an Element struct to a Redis hash format.
func ElementToHash(e *Element) map[string]interface{} {
	return map[string]interface{}{
		"id":      e.ID,
		"dataset": int(e.Dataset),
		"index":   e.Index,
		"label":   e.Label,
		"content": e.Content,
	}
}

// HashToElement converts a Redis hash to an Element struct.
func HashToElement(hash map[string]string) (*Element, error) {
	dataset, err := strconv.Atoi(hash["dataset"])
	if err != nil {
		return nil, fmt.Errorf("invalid dataset field: %w", err)
	}
	index, err := strconv.Atoi(hash["index"])
	if err != nil {
		return nil, fmt.Errorf("invalid index field: %w", err)
	}

	return &Element{
		ID:      hash["id"],
		Dataset: Dataset(dataset),
		Index:   index,
		Label:   hash["label"],
		Content: hash["content"],
	}, nil
}

// NodeToHash converts a Node struct to a Redis hash format.
// source_element_ids is JSON-encoded.
func NodeToHash(n *Node) (map[string]interface{}, error) {
	sources := n.SourceElementIDs
	if sources == nil {
		sources = []string{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal source element ids: %w", err)
	}

	return map[string]interface{}{
		"id":                 n.ID,
		"type":               string(n.Type),
		"label":              n.Label,
		"description":        n.Description,
		"source_dataset":     string(n.SourceDataset),
		"source_element_ids": string(sourcesJSON),
		"created_at_ms":      n.CreatedAtMs,
	}, nil
}

// HashToNode converts a Redis hash to a Node struct.
func HashToNode(hash map[string]string) (*Node, error) {
	var sources []string
	if raw := hash["source_element_ids"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &sources); err != nil {
			return nil, fmt.Errorf("failed to unmarshal source_element_ids: %w", err)
		}
	}
	if sources == nil {
		sources = []string{}
	}

	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)

	return &Node{
		ID:               hash["id"],
		Type:             NodeType(hash["type"]),
		Label:            hash["label"],
		Description:      hash["description"],
		SourceDataset:    SourceDataset(hash["source_dataset"]),
		SourceElementIDs: sources,
		CreatedAtMs:      createdAtMs,
	}, nil
}

// EdgeToHash converts an Edge struct to a Redis hash format.
func EdgeToHash(e *Edge) map[string]interface{} {
	return map[string]interface{}{
		"id":             e.ID,
		"source_node_id": e.SourceNodeID,
		"target_node_id": e.TargetNodeID,
		"type":           string(e.Type),
		"label":          e.Label,
		"created_at_ms":  e.CreatedAtMs,
	}
}

// HashToEdge converts a Redis hash to an Edge struct.
func HashToEdge(hash map[string]string) (*Edge, error) {
	if hash["source_node_id"] == "" || hash["target_node_id"] == "" {
		return nil, fmt.Errorf("edge %q is missing an endpoint", hash["id"])
	}
	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)

	return &Edge{
		ID:           hash["id"],
		SourceNodeID: hash["source_node_id"],
		TargetNodeID: hash["target_node_id"],
		Type:         EdgeType(hash["type"]),
		Label:        hash["label"],
		CreatedAtMs:  createdAtMs,
	}, nil
}

// EntryToHash converts an Entry struct to a Redis hash format.
// A nil confidence is stored as an empty string.
func EntryToHash(e *Entry) map[string]interface{} {
	confidence := ""
	if e.Confidence != nil {
		confidence = strconv.FormatFloat(*e.Confidence, 'f', -1, 64)
	}

	return map[string]interface{}{
		"id":                 e.ID,
		"sequence":           e.Sequence,
		"type":               string(e.Type),
		"content":            e.Content,
		"confidence":         confidence,
		"target_perspective": e.TargetPerspective,
		"turn":               e.Turn,
		"created_at_ms":      e.CreatedAtMs,
	}
}

// HashToEntry converts a Redis hash to an Entry struct.
func HashToEntry(hash map[string]string) (*Entry, error) {
	seq, err := strconv.ParseInt(hash["sequence"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid sequence field: %w", err)
	}

	var confidence *float64
	if raw := hash["confidence"]; raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid confidence field: %w", err)
		}
		confidence = &v
	}

	turn, _ := strconv.Atoi(hash["turn"])
	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)

	return &Entry{
		ID:                hash["id"],
		Sequence:          seq,
		Type:              EntryType(hash["type"]),
		Content:           hash["content"],
		Confidence:        confidence,
		TargetPerspective: hash["target_perspective"],
		Turn:              turn,
		CreatedAtMs:       createdAtMs,
	}, nil
}

// StatusToHash converts a RunStatus struct to a Redis hash format.
func StatusToHash(s *RunStatus) map[string]interface{} {
	return map[string]interface{}{
		"run_id":        s.RunID,
		"state":         string(s.State),
		"turn":          s.Turn,
		"max_turns":     s.MaxTurns,
		"lens":          s.Lens,
		"error":         s.Error,
		"updated_at_ms": s.UpdatedAtMs,
	}
}

// HashToStatus converts a Redis hash to a RunStatus struct.
func HashToStatus(hash map[string]string) (*RunStatus, error) {
	turn, err := strconv.Atoi(hash["turn"])
	if err != nil {
		return nil, fmt.Errorf("invalid turn field: %w", err)
	}
	maxTurns, _ := strconv.Atoi(hash["max_turns"])
	updatedAtMs, _ := strconv.ParseInt(hash["updated_at_ms"], 10, 64)

	return &RunStatus{
		RunID:       hash["run_id"],
		State:       RunState(hash["state"]),
		Turn:        turn,
		MaxTurns:    maxTurns,
		Lens:        hash["lens"],
		Error:       hash["error"],
		UpdatedAtMs: updatedAtMs,
	}, nil
}
