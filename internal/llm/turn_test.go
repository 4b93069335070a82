package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTurn(t *testing.T) {
	t.Run("plain envelope", func(t *testing.T) {
		resp, err := ParseTurn(`{"thinking":"start","perspective":"security","toolCalls":[{"tool":"request_next_batch","params":{"dataset":"dataset1","startIndex":0},"rationale":"read"}],"continueAnalysis":true}`)
		require.NoError(t, err)
		assert.Equal(t, "start", resp.Thinking)
		assert.Equal(t, "security", resp.Perspective)
		assert.True(t, resp.ContinueAnalysis)
		require.Len(t, resp.ToolCalls, 1)
		assert.Equal(t, "request_next_batch", resp.ToolCalls[0].Tool)
		assert.Equal(t, json.Number("0"), resp.ToolCalls[0].Params["startIndex"])
		assert.Equal(t, "read", resp.ToolCalls[0].Rationale)
	})

	t.Run("fenced with trailing comma and comment", func(t *testing.T) {
		resp, err := ParseTurn("Here is my plan:\n```json\n{\n  \"thinking\": \"done\", // final\n  \"toolCalls\": [],\n  \"continueAnalysis\": false,\n}\n```")
		require.NoError(t, err)
		assert.False(t, resp.ContinueAnalysis)
		assert.Empty(t, resp.ToolCalls)
	})

	t.Run("missing tool calls means none", func(t *testing.T) {
		resp, err := ParseTurn(`{"thinking":"x","continueAnalysis":true}`)
		require.NoError(t, err)
		assert.NotNil(t, resp.ToolCalls)
		assert.Empty(t, resp.ToolCalls)
	})

	t.Run("null params become empty", func(t *testing.T) {
		resp, err := ParseTurn(`{"toolCalls":[{"tool":"read_blackboard","params":null}],"continueAnalysis":true}`)
		require.NoError(t, err)
		assert.NotNil(t, resp.ToolCalls[0].Params)
	})

	failures := []struct {
		name    string
		content string
	}{
		{"no json", "I think we should keep going."},
		{"broken json", `{"thinking": "x", "continueAnalysis": tru}`},
		{"missing continue flag", `{"thinking":"x","toolCalls":[]}`},
		{"tool call without name", `{"toolCalls":[{"params":{}}],"continueAnalysis":true}`},
		{"tool calls not a list", `{"toolCalls":{"tool":"x"},"continueAnalysis":true}`},
	}
	for _, tc := range failures {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseTurn(tc.content)
			require.Error(t, err)
			assert.True(t, IsParseError(err))
			assert.False(t, IsTransient(err))
		})
	}
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a": "http://x"}`, ExtractJSON(`{"a": "http://x"}`))
	assert.Equal(t, "", ExtractJSON("nothing here"))
	assert.Equal(t, "{\"a\": 1}", ExtractJSON("{\"a\": 1,}"))
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, IsTransient(classifyHTTPError(429, nil)))
	assert.True(t, IsTransient(classifyHTTPError(503, []byte("busy"))))
	assert.True(t, IsFatal(classifyHTTPError(401, nil)))
	assert.True(t, IsFatal(classifyHTTPError(400, nil)))

	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	assert.Contains(t, classifyHTTPError(500, long).Error(), "...")
}
