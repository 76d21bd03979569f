package planning

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolved(id, tool string, deps ...string) CorrectedStep {
	return CorrectedStep{
		ProposedStep: ProposedStep{ID: id, Tool: tool, DependsOn: deps},
		Parameters:   map[string]any{},
		Status:       StatusResolved,
	}
}

func unresolvable(id, reason string, deps ...string) CorrectedStep {
	s := resolved(id, "x", deps...)
	s.markUnresolvable(reason)
	return s
}

type outcome struct {
	id     string
	status Status
	reason string
}

func outcomes(steps []CorrectedStep) []outcome {
	out := make([]outcome, len(steps))
	for i, s := range steps {
		out[i] = outcome{s.ID, s.Status, s.Reason}
	}
	return out
}

func TestAssemble(t *testing.T) {
	tests := []struct {
		name  string
		steps []CorrectedStep
		want  []outcome
	}{
		{
			name:  "ids assigned by position",
			steps: []CorrectedStep{resolved("", "a"), resolved("", "b", "step_1")},
			want: []outcome{
				{"step_1", StatusResolved, ""},
				{"step_2", StatusResolved, ""},
			},
		},
		{
			name:  "generated id avoids supplied ids",
			steps: []CorrectedStep{resolved("", "a"), resolved("step_1", "b")},
			want: []outcome{
				{"step_1_2", StatusResolved, ""},
				{"step_1", StatusResolved, ""},
			},
		},
		{
			name:  "forward reference",
			steps: []CorrectedStep{resolved("", "a", "step_2"), resolved("", "b")},
			want: []outcome{
				{"step_1", StatusUnresolvable, "invalid dependency: step_2"},
				{"step_2", StatusResolved, ""},
			},
		},
		{
			name:  "self reference",
			steps: []CorrectedStep{resolved("", "a", "step_1")},
			want:  []outcome{{"step_1", StatusUnresolvable, "invalid dependency: step_1"}},
		},
		{
			name:  "unknown reference",
			steps: []CorrectedStep{resolved("", "a"), resolved("", "b", "setup")},
			want: []outcome{
				{"step_1", StatusResolved, ""},
				{"step_2", StatusUnresolvable, "invalid dependency: setup"},
			},
		},
		{
			name: "blocked transitively",
			steps: []CorrectedStep{
				unresolvable("", "unknown tool: deploy"),
				resolved("", "b", "step_1"),
				resolved("", "c", "step_2"),
				resolved("", "d"),
			},
			want: []outcome{
				{"step_1", StatusUnresolvable, "unknown tool: deploy"},
				{"step_2", StatusUnresolvable, "blocked by dependency: step_1"},
				{"step_3", StatusUnresolvable, "blocked by dependency: step_2"},
				{"step_4", StatusResolved, ""},
			},
		},
		{
			name:  "duplicate id",
			steps: []CorrectedStep{resolved("fetch", "a"), resolved("fetch", "b"), resolved("", "c", "fetch")},
			want: []outcome{
				{"fetch", StatusResolved, ""},
				{"fetch", StatusUnresolvable, "duplicate step id: fetch"},
				{"step_3", StatusResolved, ""},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, outcomes(Assemble(tt.steps)))
		})
	}
}

func TestAssembleDoesNotModifyInput(t *testing.T) {
	in := []CorrectedStep{resolved("", "a", "step_9", "step_9")}
	out := Assemble(in)

	assert.Empty(t, in[0].ID)
	assert.Empty(t, in[0].Provenance)
	assert.Equal(t, StatusResolved, in[0].Status)
	assert.Equal(t, []string{"step_9"}, out[0].DependsOn)
}

func TestAssembleIsIdempotent(t *testing.T) {
	first := Assemble([]CorrectedStep{
		unresolvable("", "bad"),
		resolved("", "b", "step_1"),
		resolved("", "c"),
		resolved("", "d", "step_3"),
	})
	assert.Equal(t, first, Assemble(first))
}

// Random dependency graphs never yield a resolved step that points forward
// or at an unresolvable step.
func TestAssembleNeverLeavesBadEdges(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 500; round++ {
		n := 1 + rng.Intn(8)
		steps := make([]CorrectedStep, n)
		for i := range steps {
			var deps []string
			for d := rng.Intn(3); d > 0; d-- {
				deps = append(deps, fmt.Sprintf("step_%d", 1+rng.Intn(n+1)))
			}
			if rng.Intn(5) == 0 {
				steps[i] = unresolvable("", "bad", deps...)
			} else {
				steps[i] = resolved("", "t", deps...)
			}
		}

		plan := Assemble(steps)
		require.Len(t, plan, n)
		pos := make(map[string]int)
		for i, s := range plan {
			pos[s.ID] = i
		}
		for i, s := range plan {
			if !s.Resolved() {
				assert.NotEmpty(t, s.Reason)
				continue
			}
			for _, ref := range s.DependsOn {
				j, ok := pos[ref]
				require.True(t, ok, "round %d: %s depends on missing %s", round, s.ID, ref)
				assert.Less(t, j, i, "round %d: forward edge", round)
				assert.True(t, plan[j].Resolved(), "round %d: %s depends on unresolvable %s", round, s.ID, ref)
			}
		}
	}
}

func TestPlanOrderAndSummary(t *testing.T) {
	p := &Plan{
		ID:     "p1",
		Origin: OriginExtracted,
		Steps: Assemble([]CorrectedStep{
			unresolvable("", "unknown tool: deploy"),
			resolved("", "git"),
			resolved("", "search", "step_2"),
		}),
	}
	order := p.Order()
	require.Len(t, order, 2)
	assert.Equal(t, "step_2", order[0].ID)
	assert.Equal(t, "step_3", order[1].ID)
	assert.Len(t, p.Unresolvable(), 1)

	s, ok := p.Step("step_3")
	require.True(t, ok)
	assert.Equal(t, "search", s.Tool)

	sum := p.Summary()
	assert.Contains(t, sum, "Plan p1 (extracted, 3 steps)")
	assert.Contains(t, sum, "✗ step_1 [x]: unknown tool: deploy")
	assert.Contains(t, sum, "✓ step_3 [search] (after step_2)")
}
