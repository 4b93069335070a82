package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/auditor/internal/llm"
	"github.com/dyluth/auditor/internal/llm/llmtest"
	"github.com/dyluth/auditor/internal/llm/providers"
	"github.com/dyluth/auditor/internal/orchestrator"
)

const (
	passwordID = "aaa11111-0000-4000-8000-000000000001"
	auditID    = "bbb22222-0000-4000-8000-000000000002"
	loginTSID  = "ccc33333-0000-4000-8000-000000000003"
)

const requirementsYAML = `elements:
  - id: aaa11111-0000-4000-8000-000000000001
    label: Password policy
    content: Passwords must be at least 12 characters.
  - id: bbb22222-0000-4000-8000-000000000002
    label: Audit logging
    content: Administrative actions are logged.
`

const codeJSON = `[{"id": "ccc33333-0000-4000-8000-000000000003", "label": "login.ts", "content": "if (pw.length < 12) throw new Error()"}]`

const auditYAML = `version: "1.0"
orchestrator:
  max_turns: 5
  turn_timeout: 10s
provider:
  name: xai
  model: grok-4
`

const graphTurn = `{
  "thinking": "Link the password rule to login.ts.",
  "toolCalls": [
    {"tool": "create_concept", "params": {"label": "Minimum password length", "description": "At least 12 characters", "nodeType": "shared_concept", "sourceDataset": "both", "sourceElementIds": ["d1-aaa11111", "d2-ccc33333"]}},
    {"tool": "link_concepts", "params": {"sourceNodeId": "d2-ccc33333", "targetNodeId": "Minimum password length", "edgeType": "implements"}},
    {"tool": "write_blackboard", "params": {"entryType": "finding", "content": "login.ts enforces the password minimum", "confidence": 0.9}}
  ],
  "continueAnalysis": true
}`

const vennTurn = `{
  "thinking": "Everything is classified.",
  "toolCalls": [{"tool": "finalize_venn", "params": {
    "aligned": [{"id": "v1", "label": "Password policy", "sourceElement": "d1-aaa11111", "targetElement": "d2-ccc33333"}],
    "uniqueToD1": [{"id": "v2", "label": "Audit logging", "criticality": "major"}],
    "uniqueToD2": [],
    "summary": {"totalD1Coverage": 50, "totalD2Coverage": 100, "alignmentScore": 75}
  }}],
  "continueAnalysis": false
}`

type cliEnv struct {
	dir string
	mr  *miniredis.Miniredis
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	env := &cliEnv{dir: t.TempDir(), mr: miniredis.RunT(t)}
	for name, content := range map[string]string{
		"requirements.yml": requirementsYAML,
		"code.json":        codeJSON,
		"audit.yml":        auditYAML,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(env.dir, name), []byte(content), 0o644))
	}
	return env
}

func (e *cliEnv) path(name string) string {
	return filepath.Join(e.dir, name)
}

// execute runs the root command with args and fresh flag values.
func (e *cliEnv) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()

	full := append([]string{"--redis-url", "redis://" + e.mr.Addr(), "--config", e.path("audit.yml")}, args...)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(full)
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags() {
	runID, redisURL, configPath, debug = "", "", "audit.yml", false
	ingestDataset1, ingestDataset2 = "", ""
	runMaxTurns, runHealthAddr, runReportFile = 0, "", ""
	bbOutputFormat, bbSince, bbUntil, bbType, bbLens, bbTurn = "default", "", "", "", "", 0
	graphOutputFormat, graphFilter, graphNodeType = "default", "all", ""
	tesseractOutputFormat, vennOutputFormat = "default", "default"
	watchOutputFormat, watchWait = "default", false
	forceInit = false
}

func useScriptedModel(t *testing.T, steps ...llmtest.Step) *llmtest.Model {
	t.Helper()
	model := &llmtest.Model{Steps: steps}
	prev := newModel
	newModel = func(ctx context.Context, provider, name string, opts providers.Options) (llm.Model, error) {
		return model, nil
	}
	t.Cleanup(func() { newModel = prev })
	return model
}

func TestRootCommand_ShowsHelpWhenNoSubcommand(t *testing.T) {
	env := newCLIEnv(t)
	out, err := env.execute(t)
	require.NoError(t, err)
	assert.Contains(t, out, "Usage:")
	assert.Contains(t, out, "auditor")
}

func TestRootCommand_RejectsUnknownFlags(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.execute(t, "--unknown-flag", "value")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag")
}

func TestCommandsRequireRun(t *testing.T) {
	env := newCLIEnv(t)
	for _, name := range []string{"status", "blackboard", "graph", "tesseract", "venn"} {
		t.Run(name, func(t *testing.T) {
			_, err := env.execute(t, name)
			require.Error(t, err)
			assert.Equal(t, "run ID required", err.Error())
		})
	}
}

func TestIngestAndRun(t *testing.T) {
	env := newCLIEnv(t)
	model := useScriptedModel(t,
		llmtest.Step{Content: graphTurn},
		llmtest.Step{Content: vennTurn},
	)

	out, err := env.execute(t, "ingest", "--run", "cli-1",
		"--dataset1", env.path("requirements.yml"), "--dataset2", env.path("code.json"))
	require.NoError(t, err)
	assert.Contains(t, out, "dataset1: ingested 2 element(s)")
	assert.Contains(t, out, "dataset2: ingested 1 element(s)")

	out, err = env.execute(t, "status", "--run", "cli-1")
	require.NoError(t, err)
	assert.Contains(t, out, "not started")
	assert.Contains(t, out, "Datasets: 2 reference / 1 subject element(s)")

	reportPath := env.path("report.json")
	out, err = env.execute(t, "run", "--run", "cli-1", "--report-file", reportPath)
	require.NoError(t, err)
	assert.Equal(t, 2, model.CallCount())
	assert.Contains(t, out, "after 2 turn(s)")
	assert.Contains(t, out, "1 unique to dataset 1, 1 aligned, 0 unique to dataset 2")

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var report orchestrator.Report
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, "DONE", string(report.State))
	require.NotNil(t, report.Venn)
	assert.Empty(t, report.Orphans)

	t.Run("status", func(t *testing.T) {
		out, err := env.execute(t, "status", "--run", "cli-1")
		require.NoError(t, err)
		assert.Contains(t, out, "DONE")
		assert.Contains(t, out, "finalized at turn 2")
	})

	t.Run("venn", func(t *testing.T) {
		out, err := env.execute(t, "venn", "--run", "cli-1")
		require.NoError(t, err)
		assert.Contains(t, out, "Aligned (1):")
		assert.Contains(t, out, "[major] Audit logging")
	})

	t.Run("blackboard filtered to findings", func(t *testing.T) {
		out, err := env.execute(t, "blackboard", "--run", "cli-1", "--type", "finding", "--output", "jsonl")
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 1)
		assert.Contains(t, lines[0], "login.ts enforces the password minimum")
	})

	t.Run("graph shared nodes", func(t *testing.T) {
		out, err := env.execute(t, "graph", "--run", "cli-1", "--filter", "shared")
		require.NoError(t, err)
		assert.Contains(t, out, "Minimum password length")
		assert.Contains(t, out, "1 node found")
	})

	t.Run("graph get by label", func(t *testing.T) {
		out, err := env.execute(t, "graph", "--run", "cli-1", "minimum password length")
		require.NoError(t, err)
		assert.Contains(t, out, `"type": "implements"`)
	})

	t.Run("graph orphans are empty", func(t *testing.T) {
		out, err := env.execute(t, "graph", "--run", "cli-1", "--filter", "orphans")
		require.NoError(t, err)
		assert.Contains(t, out, "No graph nodes found")
	})

	t.Run("ingest refused after start", func(t *testing.T) {
		_, err := env.execute(t, "ingest", "--run", "cli-1", "--dataset1", env.path("requirements.yml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "has already started")
	})

	t.Run("finished run cannot restart", func(t *testing.T) {
		_, err := env.execute(t, "run", "--run", "cli-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "has already finished")
	})
}

func TestRun_TurnBudgetExhausted(t *testing.T) {
	env := newCLIEnv(t)
	useScriptedModel(t, llmtest.Step{Content: graphTurn})

	_, err := env.execute(t, "ingest", "--run", "cli-2",
		"--dataset1", env.path("requirements.yml"), "--dataset2", env.path("code.json"))
	require.NoError(t, err)

	out, err := env.execute(t, "run", "--run", "cli-2", "--max-turns", "2")
	require.Error(t, err)
	assert.Equal(t, "run ended without a Venn result", err.Error())
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "after 2 turn(s)")
}

func TestInvalidFlagValues(t *testing.T) {
	env := newCLIEnv(t)

	tests := []struct {
		args []string
		want string
	}{
		{args: []string{"blackboard", "--run", "x", "--output", "xml"}, want: "invalid output format"},
		{args: []string{"blackboard", "--run", "x", "--since", "soon"}, want: "invalid time filter"},
		{args: []string{"graph", "--run", "x", "--filter", "lonely"}, want: "invalid graph filter"},
		{args: []string{"ingest", "--run", "x"}, want: "nothing to ingest"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args[:1], " ")+" "+tt.want, func(t *testing.T) {
			_, err := env.execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestInit(t *testing.T) {
	env := newCLIEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)

	out, err := env.execute(t, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Successfully initialized audit workspace")
	assert.FileExists(t, filepath.Join(dir, "audit.yml"))
	assert.FileExists(t, filepath.Join(dir, "datasets", "requirements.yml"))

	_, err = env.execute(t, "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workspace already initialized")

	_, err = env.execute(t, "init", "--force")
	require.NoError(t, err)
}
