package blackboard

// Sequence utilities
//
// Blackboard entries are indexed in ZSETs where:
// - Key: audit:{run_id}:blackboard (or the per-type variant)
// - Members: entry IDs
// - Score: the entry's sequence number (as float64)
//
// Reading the log newest-first is a ZREVRANGE over these sets. Dataset ZSETs
// use the same encoding with the element's index as score.

// SequenceScore converts an entry sequence number to a Redis ZSET score.
// Sequence numbers start at 1 and increment per run.
func SequenceScore(seq int64) float64 {
	return float64(seq)
}

// SequenceFromScore converts a Redis ZSET score back to a sequence number.
func SequenceFromScore(score float64) int64 {
	return int64(score)
}

// IndexScore converts an element index to a dataset ZSET score.
func IndexScore(index int) float64 {
	return float64(index)
}
