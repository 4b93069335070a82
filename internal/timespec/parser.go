// Package timespec parses the --since/--until flags used to narrow
// blackboard listings.
package timespec

import (
	"fmt"
	"time"
)

// Parse converts a time specification into a Unix timestamp in milliseconds.
//
// Two forms are accepted:
//   - a Go duration ("90s", "15m", "1h30m"), meaning that long ago
//   - an RFC3339 timestamp ("2026-03-01T09:00:00Z")
func Parse(spec string) (int64, error) {
	return ParseAt(spec, time.Now())
}

// ParseAt is Parse with an explicit reference time for relative durations.
func ParseAt(spec string, now time.Time) (int64, error) {
	if spec == "" {
		return 0, fmt.Errorf("empty time specification")
	}

	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		return t.UnixMilli(), nil
	}

	if d, err := time.ParseDuration(spec); err == nil {
		if d < 0 {
			return 0, fmt.Errorf("negative duration %q: use a positive age like '30m'", spec)
		}
		return now.Add(-d).UnixMilli(), nil
	}

	return 0, fmt.Errorf("invalid time specification: %s (use duration like '1h30m' or RFC3339 like '2026-03-01T09:00:00Z')", spec)
}

// Range is a half-open window over creation timestamps. A zero bound is open.
type Range struct {
	SinceMs int64
	UntilMs int64
}

// Contains reports whether tsMs falls inside the window.
func (r Range) Contains(tsMs int64) bool {
	if r.SinceMs > 0 && tsMs < r.SinceMs {
		return false
	}
	if r.UntilMs > 0 && tsMs > r.UntilMs {
		return false
	}
	return true
}

// ParseRange parses both --since and --until flags into a Range.
// Either may be empty. Since must be strictly before until when both are set.
func ParseRange(since, until string) (Range, error) {
	now := time.Now()
	var r Range
	var err error

	if since != "" {
		if r.SinceMs, err = ParseAt(since, now); err != nil {
			return Range{}, fmt.Errorf("invalid --since: %w", err)
		}
	}

	if until != "" {
		if r.UntilMs, err = ParseAt(until, now); err != nil {
			return Range{}, fmt.Errorf("invalid --until: %w", err)
		}
	}

	if r.SinceMs > 0 && r.UntilMs > 0 && r.SinceMs >= r.UntilMs {
		return Range{}, fmt.Errorf("--since must be before --until")
	}

	return r, nil
}
