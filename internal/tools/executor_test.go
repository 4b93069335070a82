package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/auditor/internal/resolver"
	"github.com/dyluth/auditor/pkg/blackboard"
)

const (
	passwordID = "aaa11111-0000-4000-8000-000000000001"
	auditID    = "bbb22222-0000-4000-8000-000000000002"
	loginTSID  = "ccc33333-0000-4000-8000-000000000003"
)

type fixture struct {
	client *blackboard.Client
	index  *resolver.Index
	exec   *Executor
}

func setupExecutor(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client, err := blackboard.NewClient(&redis.Options{Addr: mr.Addr()}, "exec-test")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	require.NoError(t, client.AddElements(ctx, blackboard.Dataset1, []*blackboard.Element{
		{ID: passwordID, Label: "Password policy", Content: "Passwords must be at least 12 characters"},
		{ID: auditID, Label: "Audit logging", Content: "Administrative actions are logged"},
	}))
	require.NoError(t, client.AddElements(ctx, blackboard.Dataset2, []*blackboard.Element{
		{ID: loginTSID, Label: "login.ts: enforces 12-char minimum", Content: "if (pw.length < 12) throw ..."},
	}))

	index, err := resolver.Load(ctx, client)
	require.NoError(t, err)

	return &fixture{client: client, index: index, exec: NewExecutor(client, index)}
}

func (f *fixture) call(t *testing.T, tool string, params map[string]any) *Result {
	t.Helper()
	res := f.exec.Execute(context.Background(), Call{Tool: tool, Params: params, Turn: 1})
	require.NotNil(t, res)
	return res
}

// jsonParams decodes params the way they arrive from a model response.
func jsonParams(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

func TestExecutor_PasswordPolicyScenario(t *testing.T) {
	f := setupExecutor(t)
	ctx := context.Background()

	res := f.call(t, QueryKnowledgeGraph, map[string]any{"filter": "orphans"})
	require.True(t, res.OK(), res.JSON())
	assert.Equal(t, 1, res.Data.(graphQueryResult).Count)

	res = f.call(t, CreateConcept, map[string]any{
		"label":            "Password Policy Concept",
		"description":      "Minimum password length rules",
		"nodeType":         "dataset1_concept",
		"sourceDataset":    "dataset1",
		"sourceElementIds": []any{"aaa11111"},
	})
	require.True(t, res.OK(), res.JSON())
	created := res.Data.(createConceptResult)
	assert.Equal(t, []string{passwordID}, created.SourceElementIDs)
	assert.Empty(t, created.Unresolved)

	res = f.call(t, LinkConcepts, map[string]any{
		"sourceNodeId": "d2-ccc33333",
		"targetNodeId": "Password Policy Concept",
		"edgeType":     "implements",
	})
	require.True(t, res.OK(), res.JSON())
	link := res.Data.(linkResult)
	assert.Equal(t, loginTSID, link.SourceNodeID)
	assert.Equal(t, created.ID, link.TargetNodeID)

	res = f.call(t, RecordTesseractCell, map[string]any{
		"elementId":       "d1-aaa11111",
		"step":            1,
		"polarity":        0.8,
		"criticality":     "minor",
		"evidenceSummary": "login.ts enforces the minimum",
	})
	require.True(t, res.OK(), res.JSON())

	res = f.call(t, QueryKnowledgeGraph, map[string]any{"filter": "orphans"})
	require.True(t, res.OK())
	assert.Equal(t, 0, res.Data.(graphQueryResult).Count)

	res = f.call(t, FinalizeVenn, jsonParams(t, `{
		"aligned": [{"id":"v1","label":"Password policy","sourceElement":"d1-aaa11111","targetElement":"d2-ccc33333","criticality":"minor","evidence":"length check"}],
		"uniqueToD1": [{"id":"v2","label":"Audit logging","criticality":"major","evidence":"no audit trail"}],
		"uniqueToD2": [],
		"summary": {"totalD1Coverage":50,"totalD2Coverage":100,"alignmentScore":75}
	}`))
	require.True(t, res.OK(), res.JSON())
	assert.True(t, res.Finalized)

	stored, err := f.client.GetVenn(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored.Computed)
	assert.Equal(t, 50.0, stored.Computed.TotalD1Coverage)
	assert.Equal(t, 100.0, stored.Computed.TotalD2Coverage)
	assert.Equal(t, 75.0, stored.Summary.AlignmentScore)
	assert.Equal(t, auditID, stored.UniqueToD1[0].D1ElementID)
}

func TestExecutor_FinalizeRejectsOmittedElement(t *testing.T) {
	f := setupExecutor(t)

	res := f.call(t, FinalizeVenn, jsonParams(t, `{
		"aligned": [{"id":"v1","label":"Password policy","sourceElement":"d1-aaa11111","targetElement":"d2-ccc33333"}],
		"uniqueToD1": [],
		"uniqueToD2": [],
		"summary": {"totalD1Coverage":50,"totalD2Coverage":100,"alignmentScore":75}
	}`))
	require.False(t, res.OK())
	assert.False(t, res.Finalized)
	assert.True(t, IsValidationError(res.Err))
	assert.Contains(t, res.Err.Error(), auditID)

	payload := res.Payload()
	assert.Equal(t, false, payload["ok"])
	detail := payload["error"].(map[string]any)
	assert.Equal(t, KindValidation, detail["kind"])
	assert.Equal(t, []string{auditID}, detail["ids"])

	_, err := f.client.GetVenn(context.Background())
	assert.True(t, blackboard.IsNotFound(err))
}

func TestExecutor_FinalizeIsIdempotent(t *testing.T) {
	f := setupExecutor(t)
	params := `{
		"aligned": [],
		"uniqueToD1": [{"id":"aaa11111"},{"id":"bbb22222"}],
		"uniqueToD2": [{"id":"ccc33333"}],
		"summary": {"totalD1Coverage":0,"totalD2Coverage":0,"alignmentScore":0}
	}`
	require.True(t, f.call(t, FinalizeVenn, jsonParams(t, params)).OK())
	require.True(t, f.call(t, FinalizeVenn, jsonParams(t, params)).OK())

	stored, err := f.client.GetVenn(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored.UniqueToD1, 2)
}

func TestExecutor_ConceptProvenance(t *testing.T) {
	f := setupExecutor(t)
	base := func(sources any) map[string]any {
		return map[string]any{
			"label":            "Logging",
			"description":      "Audit trail",
			"nodeType":         "theme",
			"sourceDataset":    "dataset1",
			"sourceElementIds": sources,
		}
	}

	t.Run("empty sources rejected", func(t *testing.T) {
		res := f.call(t, CreateConcept, base([]any{}))
		require.False(t, res.OK())
		assert.True(t, IsValidationError(res.Err))
	})

	t.Run("missing sources rejected", func(t *testing.T) {
		p := base(nil)
		delete(p, "sourceElementIds")
		res := f.call(t, CreateConcept, p)
		require.False(t, res.OK())
		assert.Equal(t, KindValidation, Kind(res.Err))
	})

	t.Run("all unresolved rejected", func(t *testing.T) {
		res := f.call(t, CreateConcept, base([]any{"zzz99999", "not-an-id"}))
		require.False(t, res.OK())
		var v *ValidationError
		require.ErrorAs(t, res.Err, &v)
		assert.Equal(t, []string{"zzz99999", "not-an-id"}, v.IDs)
	})

	t.Run("partially unresolved accepted", func(t *testing.T) {
		res := f.call(t, CreateConcept, base([]any{"bbb22222", "zzz99999"}))
		require.True(t, res.OK(), res.JSON())
		created := res.Data.(createConceptResult)
		assert.Equal(t, []string{auditID}, created.SourceElementIDs)
		assert.Equal(t, []string{"zzz99999"}, created.Unresolved)

		node, err := f.client.GetNode(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{auditID}, node.SourceElementIDs)
	})

	t.Run("name is accepted for label", func(t *testing.T) {
		p := base([]any{"aaa11111"})
		delete(p, "label")
		p["name"] = "Password rules"
		res := f.call(t, CreateConcept, p)
		require.True(t, res.OK(), res.JSON())
		assert.Equal(t, "Password rules", res.Data.(createConceptResult).Label)
	})

	t.Run("element types cannot be created", func(t *testing.T) {
		p := base([]any{"aaa11111"})
		p["nodeType"] = "dataset1_element"
		res := f.call(t, CreateConcept, p)
		assert.True(t, IsValidationError(res.Err))
	})
}

func TestExecutor_AmbiguityFlip(t *testing.T) {
	f := setupExecutor(t)
	read := func() *Result {
		return f.call(t, ReadDatasetItem, map[string]any{"dataset": "dataset1", "itemId": "aaa11111"})
	}

	first := read()
	require.True(t, first.OK(), first.JSON())
	second := read()
	require.True(t, second.OK())
	assert.Equal(t, first.Data.(elementView).ID, second.Data.(elementView).ID)

	twin := &blackboard.Element{ID: "aaa11111-0000-4000-8000-000000000099", Label: "Password rotation"}
	require.NoError(t, f.client.AddElements(context.Background(), blackboard.Dataset1, []*blackboard.Element{twin}))
	f.index.AddElement(twin)

	res := read()
	require.False(t, res.OK())
	assert.Equal(t, KindAmbiguous, Kind(res.Err))
	assert.True(t, resolver.IsAmbiguousError(res.Err))

	detail := res.Payload()["error"].(map[string]any)
	assert.Contains(t, detail["message"], "Use a longer prefix")
}

func TestExecutor_ReadDatasetItemNotFound(t *testing.T) {
	f := setupExecutor(t)

	res := f.call(t, ReadDatasetItem, map[string]any{"dataset": 2, "itemId": "aaa11111"})
	require.False(t, res.OK())
	assert.Equal(t, KindNotFound, Kind(res.Err))
}

func TestExecutor_TesseractUpsert(t *testing.T) {
	f := setupExecutor(t)
	record := func(polarity float64) *Result {
		return f.call(t, RecordTesseractCell, map[string]any{
			"elementId":       "aaa11111",
			"step":            2,
			"polarity":        polarity,
			"evidenceSummary": "re-analysed",
		})
	}

	require.True(t, record(0.2).OK())
	require.True(t, record(-0.5).OK())

	cells, err := f.client.ListCells(context.Background())
	require.NoError(t, err)
	require.Len(t, cells, 1)
	assert.Equal(t, -0.5, cells[0].Polarity)
	assert.Equal(t, "Password policy", cells[0].ElementLabel)
	assert.Equal(t, "Step 2", cells[0].StepLabel)
	assert.Equal(t, blackboard.CriticalityInfo, cells[0].Criticality)

	testCases := []struct {
		name   string
		params map[string]any
	}{
		{"polarity too high", map[string]any{"elementId": "aaa11111", "step": 1, "polarity": 1.5, "evidenceSummary": "x"}},
		{"step too high", map[string]any{"elementId": "aaa11111", "step": 6, "polarity": 0, "evidenceSummary": "x"}},
		{"step zero", map[string]any{"elementId": "aaa11111", "step": 0, "polarity": 0, "evidenceSummary": "x"}},
		{"fractional step", map[string]any{"elementId": "aaa11111", "step": 1.5, "polarity": 0, "evidenceSummary": "x"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := f.call(t, RecordTesseractCell, tc.params)
			assert.True(t, IsValidationError(res.Err), res.JSON())
		})
	}

	t.Run("dataset2 elements are not cells", func(t *testing.T) {
		res := f.call(t, RecordTesseractCell, map[string]any{"elementId": "ccc33333", "step": 1, "polarity": 0, "evidenceSummary": "x"})
		assert.Equal(t, KindNotFound, Kind(res.Err))
	})
}

func TestExecutor_RequestNextBatch(t *testing.T) {
	f := setupExecutor(t)

	res := f.call(t, RequestNextBatch, map[string]any{"dataset": "dataset1", "startIndex": 0})
	require.True(t, res.OK())
	batch := res.Data.(batchResult)
	assert.Len(t, batch.Elements, 2)
	assert.Equal(t, 2, batch.NextIndex)
	assert.False(t, batch.HasMore)
	assert.Equal(t, "aaa11111", batch.Elements[0].ShortID)

	res = f.call(t, RequestNextBatch, map[string]any{"dataset": "d2", "startIndex": "1"})
	require.True(t, res.OK(), res.JSON())
	assert.Empty(t, res.Data.(batchResult).Elements)

	res = f.call(t, RequestNextBatch, map[string]any{"dataset": "dataset_1", "startIndex": 5})
	require.False(t, res.OK())
	assert.True(t, IsRangeError(res.Err))
	assert.Equal(t, KindRange, Kind(res.Err))

	res = f.call(t, RequestNextBatch, map[string]any{"dataset": "dataset3", "startIndex": 0})
	assert.True(t, IsValidationError(res.Err))
}

func TestExecutor_RequestNextBatchPages(t *testing.T) {
	f := setupExecutor(t)
	f.exec = NewExecutor(f.client, f.index, WithBatchSize(1))

	res := f.call(t, RequestNextBatch, map[string]any{"dataset": 1, "startIndex": 0})
	require.True(t, res.OK())
	batch := res.Data.(batchResult)
	assert.Len(t, batch.Elements, 1)
	assert.True(t, batch.HasMore)
	assert.Equal(t, 1, batch.NextIndex)
}

func TestExecutor_Blackboard(t *testing.T) {
	f := setupExecutor(t)

	require.True(t, f.call(t, WriteBlackboard, map[string]any{"entryType": "plan", "content": "read dataset 1"}).OK())
	res := f.call(t, WriteBlackboard, map[string]any{
		"entryType": "finding", "content": "no audit trail", "confidence": 0.9, "targetAgent": "security",
	})
	require.True(t, res.OK(), res.JSON())
	require.True(t, f.call(t, WriteBlackboard, map[string]any{"entryType": "finding", "content": "length enforced"}).OK())

	t.Run("rejects unknown entry type", func(t *testing.T) {
		res := f.call(t, WriteBlackboard, map[string]any{"entryType": "hypothesis", "content": "x"})
		assert.True(t, IsValidationError(res.Err))
	})

	t.Run("rejects confidence outside range", func(t *testing.T) {
		res := f.call(t, WriteBlackboard, map[string]any{"entryType": "finding", "content": "x", "confidence": 1.5})
		assert.True(t, IsValidationError(res.Err))
	})

	t.Run("rejects unknown perspective", func(t *testing.T) {
		res := f.call(t, WriteBlackboard, map[string]any{"entryType": "finding", "content": "x", "targetAgent": "auditor"})
		assert.True(t, IsValidationError(res.Err))
	})

	t.Run("reads newest first filtered by type", func(t *testing.T) {
		res := f.call(t, ReadBlackboard, map[string]any{"entryTypes": []any{"finding", "bogus"}})
		require.True(t, res.OK())
		read := res.Data.(readResult)
		require.Len(t, read.Entries, 2)
		assert.Equal(t, "length enforced", read.Entries[0].Content)
		assert.Equal(t, "security", read.Entries[1].TargetPerspective)
		assert.Equal(t, []string{"bogus"}, read.Ignored)
	})

	t.Run("limit", func(t *testing.T) {
		res := f.call(t, ReadBlackboard, map[string]any{"limit": 1})
		require.True(t, res.OK())
		assert.Len(t, res.Data.(readResult).Entries, 1)
	})
}

func TestExecutor_GetConceptLinks(t *testing.T) {
	f := setupExecutor(t)

	res := f.call(t, CreateConcept, map[string]any{
		"label": "Authentication", "description": "login", "nodeType": "shared_concept",
		"sourceDataset": "both", "sourceElementIds": []any{"aaa11111", "ccc33333"},
	})
	require.True(t, res.OK(), res.JSON())
	require.True(t, f.call(t, LinkConcepts, map[string]any{
		"sourceNodeId": "ccc33333", "targetNodeId": "authentication", "edgeType": "implements",
	}).OK())

	res = f.call(t, GetConceptLinks, map[string]any{"nodeId": "Authentication"})
	require.True(t, res.OK(), res.JSON())
	links := res.Data.(conceptLinksResult)
	require.Len(t, links.Links, 1)
	assert.Equal(t, "incoming", links.Links[0].Direction)
	assert.Equal(t, loginTSID, links.Links[0].Node.ID)
	assert.Len(t, links.SourceElements, 2)

	res = f.call(t, GetConceptLinks, map[string]any{"nodeId": "Authorisation"})
	assert.Equal(t, KindNotFound, Kind(res.Err))

	res = f.call(t, QueryKnowledgeGraph, map[string]any{"filter": "shared"})
	require.True(t, res.OK())
	assert.Equal(t, 1, res.Data.(graphQueryResult).Count)
}

func TestExecutor_LinkConceptsErrors(t *testing.T) {
	f := setupExecutor(t)

	res := f.call(t, LinkConcepts, map[string]any{"sourceNodeId": "ccc33333", "targetNodeId": "Nothing", "edgeType": "implements"})
	assert.Equal(t, KindNotFound, Kind(res.Err))

	res = f.call(t, LinkConcepts, map[string]any{"sourceNodeId": "ccc33333", "targetNodeId": "aaa11111", "edgeType": "contradicts"})
	assert.True(t, IsValidationError(res.Err))

	res = f.call(t, LinkConcepts, map[string]any{"sourceNodeId": "ccc33333", "targetNodeId": "ccc33333", "edgeType": "relates_to"})
	assert.True(t, IsValidationError(res.Err))
}

func TestExecutor_CallContract(t *testing.T) {
	f := setupExecutor(t)

	res := f.call(t, "delete_everything", nil)
	assert.True(t, IsValidationError(res.Err))

	res = f.call(t, WriteBlackboard, map[string]any{"entryType": "plan"})
	var v *ValidationError
	require.ErrorAs(t, res.Err, &v)
	assert.Equal(t, "content", v.Field)

	res = f.call(t, QueryKnowledgeGraph, map[string]any{"filter": "everything", "limit": 1})
	require.True(t, res.OK())
	q := res.Data.(graphQueryResult)
	assert.Equal(t, 1, q.Count)
	assert.NotEmpty(t, q.Note)
}

func TestResultJSON(t *testing.T) {
	ok := &Result{Tool: WriteBlackboard, Data: writeResult{ID: "e1", Sequence: 3}}
	assert.JSONEq(t, `{"tool":"write_blackboard","ok":true,"result":{"id":"e1","sequence":3}}`, ok.JSON())

	failed := &Result{Tool: RequestNextBatch, Err: &RangeError{Dataset: blackboard.Dataset1, StartIndex: 9, Size: 2}}
	assert.JSONEq(t, `{"tool":"request_next_batch","ok":false,"error":{"kind":"range","message":"startIndex 9 is past the end of dataset1 (size 2)"}}`, failed.JSON())
}
