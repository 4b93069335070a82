package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dyluth/auditor/pkg/blackboard"
)

// args wraps raw call parameters with lenient typed getters. Models are
// inconsistent about numbers (1, 1.0, "1"), so numeric getters accept all three.
type args struct {
	tool string
	raw  map[string]any
}

func (a args) has(name string) bool {
	v, ok := a.raw[name]
	return ok && v != nil
}

// str returns a trimmed string parameter; ok is false when absent or empty.
func (a args) str(name string) (string, bool) {
	v, ok := a.raw[name]
	if !ok || v == nil {
		return "", false
	}
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case json.Number:
		s = val.String()
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	default:
		s = fmt.Sprint(val)
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func (a args) number(name string) (float64, bool, error) {
	v, ok := a.raw[name]
	if !ok || v == nil {
		return 0, false, nil
	}
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0, true, invalid(a.tool, name, "%q is not a number", val.String())
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, true, invalid(a.tool, name, "%q is not a number", val)
		}
		f = parsed
	default:
		return 0, true, invalid(a.tool, name, "expected a number, got %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, true, invalid(a.tool, name, "must be a finite number")
	}
	return f, true, nil
}

func (a args) integer(name string) (int, bool, error) {
	f, ok, err := a.number(name)
	if err != nil || !ok {
		return 0, ok, err
	}
	if f != math.Trunc(f) {
		return 0, true, invalid(a.tool, name, "%g is not an integer", f)
	}
	return int(f), true, nil
}

// list accepts a list of strings or a single string.
func (a args) list(name string) ([]string, error) {
	v, ok := a.raw[name]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return []string{strings.TrimSpace(val)}, nil
	case []string:
		return val, nil
	case []any:
		out := make([]string, 0, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, invalid(a.tool, name, "item %d is %T, expected a string", i, item)
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	default:
		return nil, invalid(a.tool, name, "expected a list of strings, got %T", v)
	}
}

// decode re-encodes the whole parameter map into v.
func (a args) decode(v any) error {
	data, err := json.Marshal(a.raw)
	if err != nil {
		return invalid(a.tool, "", "parameters are not JSON-encodable: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return invalid(a.tool, "", "parameters do not match the expected shape: %v", err)
	}
	return nil
}

// dataset parses the dataset parameter, accepting 1, 2, "1", "dataset1", "dataset_1" and "d1".
func (a args) dataset(name string) (blackboard.Dataset, error) {
	s, ok := a.str(name)
	if !ok {
		return 0, invalid(a.tool, name, "is required")
	}
	d, err := blackboard.ParseDataset(s)
	if err != nil {
		return 0, invalid(a.tool, name, "%q is not dataset1 or dataset2", s)
	}
	return d, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
