package blackboard

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by run ID so that
// concurrent audit runs never observe each other's state.
//
// Key pattern: audit:{run_id}:{entity}:{id}
// Channel pattern: audit:{run_id}:events

// ElementKey returns the Redis key for an element hash.
// Pattern: audit:{run_id}:element:{element_id}
func ElementKey(runID, elementID string) string {
	return fmt.Sprintf("audit:%s:element:%s", runID, elementID)
}

// DatasetKey returns the ZSET of element IDs for a dataset, scored by index.
// Pattern: audit:{run_id}:dataset:{n}
func DatasetKey(runID string, d Dataset) string {
	return fmt.Sprintf("audit:%s:dataset:%d", runID, int(d))
}

// NodeKey returns the Redis key for a graph node hash.
// Pattern: audit:{run_id}:node:{node_id}
func NodeKey(runID, nodeID string) string {
	return fmt.Sprintf("audit:%s:node:%s", runID, nodeID)
}

// NodesKey returns the SET of all node IDs in the run.
// Pattern: audit:{run_id}:nodes
func NodesKey(runID string) string {
	return fmt.Sprintf("audit:%s:nodes", runID)
}

// EdgeKey returns the Redis key for an edge hash.
// Pattern: audit:{run_id}:edge:{edge_id}
func EdgeKey(runID, edgeID string) string {
	return fmt.Sprintf("audit:%s:edge:%s", runID, edgeID)
}

// EdgesKey returns the SET of all edge IDs in the run.
// Pattern: audit:{run_id}:edges
func EdgesKey(runID string) string {
	return fmt.Sprintf("audit:%s:edges", runID)
}

// NodeEdgesKey returns the adjacency SET of a node (edges in either direction).
// Pattern: audit:{run_id}:node:{node_id}:edges
func NodeEdgesKey(runID, nodeID string) string {
	return fmt.Sprintf("audit:%s:node:%s:edges", runID, nodeID)
}

// EntryKey returns the Redis key for a blackboard entry hash.
// Pattern: audit:{run_id}:entry:{entry_id}
func EntryKey(runID, entryID string) string {
	return fmt.Sprintf("audit:%s:entry:%s", runID, entryID)
}

// EntrySeqKey returns the counter used to assign entry sequence numbers.
// Pattern: audit:{run_id}:entry_seq
func EntrySeqKey(runID string) string {
	return fmt.Sprintf("audit:%s:entry_seq", runID)
}

// BlackboardKey returns the ZSET of every entry ID scored by sequence.
// Pattern: audit:{run_id}:blackboard
func BlackboardKey(runID string) string {
	return fmt.Sprintf("audit:%s:blackboard", runID)
}

// BlackboardTypeKey returns the per-type ZSET of entry IDs scored by sequence.
// Pattern: audit:{run_id}:blackboard:{entry_type}
func BlackboardTypeKey(runID string, t EntryType) string {
	return fmt.Sprintf("audit:%s:blackboard:%s", runID, t)
}

// CellsKey returns the tesseract hash; fields are {element_id}:{step}.
// Pattern: audit:{run_id}:tesseract
func CellsKey(runID string) string {
	return fmt.Sprintf("audit:%s:tesseract", runID)
}

// VennKey returns the key holding the finalized Venn result as JSON.
// Pattern: audit:{run_id}:venn
func VennKey(runID string) string {
	return fmt.Sprintf("audit:%s:venn", runID)
}

// StatusKey returns the run status hash.
// Pattern: audit:{run_id}:status
func StatusKey(runID string) string {
	return fmt.Sprintf("audit:%s:status", runID)
}

// RunLockKey returns the key guarding single-orchestrator ownership of a run.
// Pattern: audit:{run_id}:lock
func RunLockKey(runID string) string {
	return fmt.Sprintf("audit:%s:lock", runID)
}

// EventsChannel returns the Pub/Sub channel for run events.
// Pattern: audit:{run_id}:events
func EventsChannel(runID string) string {
	return fmt.Sprintf("audit:%s:events", runID)
}
