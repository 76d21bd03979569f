package agent

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahul/stepwright/internal/llmtest"
	"github.com/rahul/stepwright/internal/observability"
	"github.com/rahul/stepwright/internal/planning"
	"github.com/rahul/stepwright/internal/store"
)

type agentFixture struct {
	agent *Agent
	stubs *stubSet
	store *store.PlanStore
}

func newAgentFixture(t *testing.T, model *llmtest.Model) *agentFixture {
	t.Helper()
	st, err := store.NewPlanStore(filepath.Join(t.TempDir(), "plans.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	reg := builtinRegistry(t)
	interp, err := planning.NewInterpreter(reg, planning.WithIDFunc(func() string { return "plan-a" }))
	require.NoError(t, err)

	stubs := newStubSet()
	engine := NewEngine(stubs.registry, nil, nil)
	engine.Recorder = st

	a := NewAgent(NewAnalyzer(model, reg, nil, nil), interp, engine)
	a.History = st
	a.Plans = st
	return &agentFixture{agent: a, stubs: stubs, store: st}
}

func TestAgentFallsBackWhenModelFails(t *testing.T) {
	f := newAgentFixture(t, llmtest.Failing(errors.New("connection refused")))

	answer, err := f.agent.Think(context.Background(), "chat-1", "show me the git log")
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"action": "log"}, f.stubs.git.lastArgs(t))
	assert.Contains(t, answer, "Plan plan-a (fallback)")
	assert.Contains(t, answer, "abc123 initial commit")

	rec, err := f.store.GetPlan("plan-a")
	require.NoError(t, err)
	assert.Equal(t, "fallback", rec.Origin)
	require.Len(t, rec.Steps, 1)
	assert.Equal(t, "ok", rec.Steps[0].Outcome)

	history, err := f.store.GetHistory("chat-1", 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	role, _, _ := observability.GetStatus()
	assert.Equal(t, observability.RoleIdle, role)
}

func TestAgentRunsExtractedPlan(t *testing.T) {
	model := llmtest.Text(`Sure, here is the plan:
{"requires_tools": true, "execution_steps": [
  {"step": "look for main", "tool": "search", "parameters": {"pattern": "main"}},
  {"step": "summarize", "tool": "summary", "parameters": {"task": "explain main"}, "dependencies": [1]}
]}`)
	f := newAgentFixture(t, model)
	f.stubs.search.err = nil
	f.stubs.search.output = "main.go:3: func main()"

	answer, err := f.agent.Think(context.Background(), "chat-2", "explain the main function")
	require.NoError(t, err)
	assert.Equal(t, "one commit so far", answer)

	assert.Equal(t, "main", f.stubs.search.lastArgs(t)["query"])
	args := f.stubs.summary.lastArgs(t)
	assert.Equal(t, "explain main", args["task_description"])
	assert.Equal(t, map[string]any{"step_1": "main.go:3: func main()"}, args["collected_data"])

	rec, err := f.store.GetPlan("plan-a")
	require.NoError(t, err)
	assert.Equal(t, "extracted", rec.Origin)
	require.Len(t, rec.Steps, 2)
	assert.Equal(t, []string{"step_1"}, rec.Steps[1].DependsOn)
	assert.Contains(t, rec.Steps[0].Provenance, `renamed "pattern" to "query"`)
}

func TestAgentRunCancelled(t *testing.T) {
	f := newAgentFixture(t, llmtest.Text("{}"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := f.agent.Run(ctx, "chat-3", "show me the git log")
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Zero(t, f.stubs.git.calls())
}

func TestAgentAsksForClarification(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{
			name: "with steps",
			reply: `{"needs_clarification": true, "clarification_questions": ["Which remote?", " "],
				"execution_steps": [{"tool": "git", "parameters": {"action": "push"}}]}`,
		},
		{
			name:  "questions only",
			reply: `{"needs_clarification": true, "clarification_questions": ["Which remote?"]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAgentFixture(t, llmtest.Text(tt.reply))

			answer, err := f.agent.Think(context.Background(), "chat-4", "push it")
			require.NoError(t, err)
			assert.Equal(t, "I need some clarification to help you better:\n1. Which remote?\n", answer)
			assert.Zero(t, f.stubs.git.calls())
			assert.Zero(t, f.stubs.explain.calls())

			rec, err := f.store.GetPlan("plan-a")
			require.NoError(t, err)
			assert.Equal(t, "extracted", rec.Origin)

			history, err := f.store.GetHistory("chat-4", 10)
			require.NoError(t, err)
			assert.Len(t, history, 2)
		})
	}
}

func TestAgentIgnoresClarificationWithoutQuestions(t *testing.T) {
	f := newAgentFixture(t, llmtest.Text(`{"needs_clarification": true,
		"execution_steps": [{"tool": "git", "parameters": {"action": "log"}}]}`))

	answer, err := f.agent.Think(context.Background(), "chat-5", "show the log")
	require.NoError(t, err)
	assert.Contains(t, answer, "abc123 initial commit")
	assert.Equal(t, 1, f.stubs.git.calls())
}
