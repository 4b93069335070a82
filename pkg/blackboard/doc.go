// Package blackboard provides type-safe Go definitions and the Redis-backed
// store for an audit run.
//
// # Overview
//
// An audit run compares two datasets: dataset 1 (the reference, typically
// requirements) and dataset 2 (the subject, typically an implementation).
// Everything the run produces lives here, namespaced by run ID:
//
//   - Elements are the ingested items of each dataset. They are immutable once
//     the run starts and each one is mirrored by an element node in the graph.
//   - Nodes and Edges form the knowledge graph. Concept-type nodes must carry
//     the element IDs they were derived from, and an edge is only written when
//     both endpoints exist.
//   - Entries form the blackboard: an append-only reasoning log with a
//     strictly increasing per-run sequence.
//   - Cells form the tesseract: one slot per (dataset-1 element, step), last
//     write wins.
//   - The Venn result is the terminal classification of the run.
//
// # Usage Example
//
//	client, err := blackboard.NewClient(&redis.Options{Addr: "localhost:6379"}, runID)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.AppendEntry(ctx, &blackboard.Entry{
//		Type:    blackboard.EntryTypeObservation,
//		Content: "Login requirement has no matching rate limiter",
//	})
//
// # Redis Schema
//
// All Redis keys follow the pattern: audit:{run_id}:{entity}:{id}
//
// Elements: audit:{run_id}:element:{element_id} (hash) indexed by audit:{run_id}:dataset:{n} (zset)
// Nodes: audit:{run_id}:node:{node_id} (hash) indexed by audit:{run_id}:nodes (set)
// Edges: audit:{run_id}:edge:{edge_id} (hash) indexed by audit:{run_id}:edges and per-node adjacency sets
// Entries: audit:{run_id}:entry:{entry_id} (hash) indexed by audit:{run_id}:blackboard[:{type}] (zsets)
// Tesseract: audit:{run_id}:tesseract (hash of JSON cells)
// Venn: audit:{run_id}:venn (JSON string)
//
// Every successful write publishes an Event on audit:{run_id}:events.
// Publishing is at-most-once; a failed publish is logged, not returned.
package blackboard
