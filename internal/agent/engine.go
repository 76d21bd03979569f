package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/rahul/stepwright/internal/governance"
	"github.com/rahul/stepwright/internal/observability"
	"github.com/rahul/stepwright/internal/planning"
	"github.com/rahul/stepwright/internal/tools"
)

// OutcomeStatus is what happened to a step at run time.
type OutcomeStatus string

const (
	OutcomeOK      OutcomeStatus = "ok"
	OutcomeFailed  OutcomeStatus = "failed"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeDenied  OutcomeStatus = "denied"
)

// collectedDataParam is filled with earlier results for summary steps.
const collectedDataParam = "collected_data"

// Outcome records the execution of one plan step.
type Outcome struct {
	StepID   string        `json:"step_id"`
	Tool     string        `json:"tool"`
	Status   OutcomeStatus `json:"status"`
	Output   string        `json:"output,omitempty"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration"`
}

// OutcomeRecorder persists step outcomes.
type OutcomeRecorder interface {
	RecordOutcome(planID, stepID, outcome, output string) error
}

// Engine runs a plan's steps in order against the tool registry.
type Engine struct {
	Tools       *tools.Registry
	Policy      governance.PolicyEngine
	Logger      *observability.Logger
	Recorder    OutcomeRecorder
	StepTimeout time.Duration
	// AnswerTools are the tools whose output is itself the reply.
	AnswerTools []string
}

func NewEngine(registry *tools.Registry, policy governance.PolicyEngine, logger *observability.Logger) *Engine {
	return &Engine{
		Tools:       registry,
		Policy:      policy,
		Logger:      logger,
		StepTimeout: 2 * time.Minute,
		AnswerTools: DefaultAnswerTools(),
	}
}

// DefaultAnswerTools returns the summary tool and the default fallback tool.
func DefaultAnswerTools() []string {
	return []string{"summary", planning.DefaultFallbackTool}
}

// Execute runs every step of plan. Unresolvable steps and steps whose
// dependencies did not succeed are skipped; a failing step never aborts
// the steps that do not depend on it.
func (e *Engine) Execute(ctx context.Context, chatID string, plan *planning.Plan) *Report {
	report := &Report{Plan: plan, AnswerTools: e.AnswerTools}
	results := make(map[string]Outcome, len(plan.Steps))

	for _, step := range plan.Steps {
		out := e.runStep(ctx, chatID, plan, step, results)
		if _, dup := results[step.ID]; !dup {
			results[step.ID] = out
		}
		report.Outcomes = append(report.Outcomes, out)

		e.Logger.LogStep(chatID, plan.ID, out.StepID, out.Tool, string(out.Status), out.Detail)
		observability.CountStep(string(out.Status))
		if e.Recorder != nil {
			if err := e.Recorder.RecordOutcome(plan.ID, out.StepID, string(out.Status), out.Output); err != nil {
				log.Printf("Warning: failed to record outcome of %s: %v", out.StepID, err)
			}
		}
	}
	return report
}

func (e *Engine) runStep(ctx context.Context, chatID string, plan *planning.Plan, step planning.CorrectedStep, results map[string]Outcome) Outcome {
	out := Outcome{StepID: step.ID, Tool: step.Tool}
	skip := func(detail string) Outcome {
		out.Status = OutcomeSkipped
		out.Detail = detail
		return out
	}

	if !step.Resolved() {
		return skip(step.Reason)
	}
	for _, dep := range step.DependsOn {
		if r := results[dep]; r.Status != OutcomeOK {
			return skip(fmt.Sprintf("dependency %s did not succeed", dep))
		}
	}
	if err := ctx.Err(); err != nil {
		return skip(err.Error())
	}

	tool := e.Tools.Get(step.Tool)
	if tool == nil {
		out.Status = OutcomeFailed
		out.Detail = fmt.Sprintf("tool %s is not available", step.Tool)
		return out
	}

	params := make(map[string]any, len(step.Parameters)+1)
	fill := placeholders{plan: plan, step: step, results: results}
	for k, v := range step.Parameters {
		r, err := fill.resolve(v)
		if err != nil {
			out.Status = OutcomeFailed
			out.Detail = fmt.Sprintf("parameter %s: %v", k, err)
			return out
		}
		params[k] = r
	}
	if declares(tool, collectedDataParam) {
		if _, set := params[collectedDataParam]; !set {
			params[collectedDataParam] = collect(plan, step, results)
		}
	}
	args, err := json.Marshal(params)
	if err != nil {
		out.Status = OutcomeFailed
		out.Detail = fmt.Sprintf("encode arguments: %v", err)
		return out
	}

	action, _ := params["action"].(string)
	if e.Policy != nil {
		res, err := e.Policy.Evaluate(ctx, governance.Request{
			Tool:      step.Tool,
			Action:    action,
			Arguments: string(args),
			ChatID:    chatID,
			PlanID:    plan.ID,
		})
		if err != nil {
			out.Status = OutcomeFailed
			out.Detail = fmt.Sprintf("policy check: %v", err)
			return out
		}
		e.Logger.LogPolicyCheck(chatID, plan.ID, step.Tool, string(res.Effect), res.Reason)
		if res.Effect == governance.EffectDeny {
			out.Status = OutcomeDenied
			out.Detail = res.Reason
			return out
		}
	}

	label := step.Description
	if label == "" {
		label = step.ID + " " + step.Tool
	}
	observability.SetStatus(observability.RoleExecuting, label)
	e.Logger.LogToolCall(chatID, plan.ID, step.Tool, string(args))

	runCtx := ctx
	if e.StepTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.StepTimeout)
		defer cancel()
	}
	start := time.Now()
	result, err := tool.Execute(runCtx, string(args))
	out.Duration = time.Since(start)
	if err != nil {
		out.Status = OutcomeFailed
		out.Detail = err.Error()
		return out
	}
	e.Logger.LogToolResult(chatID, plan.ID, step.Tool, result, out.Duration)
	out.Status = OutcomeOK
	out.Output = result
	return out
}

func declares(t tools.Tool, param string) bool {
	props, _ := t.Parameters()["properties"].(map[string]any)
	_, ok := props[param]
	return ok
}

// collect gathers the outputs a summary step works from: its dependencies,
// or every earlier successful step when it declares none.
func collect(plan *planning.Plan, step planning.CorrectedStep, results map[string]Outcome) map[string]any {
	data := make(map[string]any)
	if len(step.DependsOn) > 0 {
		for _, dep := range step.DependsOn {
			data[dep] = results[dep].Output
		}
		return data
	}
	for _, s := range plan.Steps {
		if s.ID == step.ID {
			break
		}
		if r, ok := results[s.ID]; ok && r.Status == OutcomeOK {
			data[s.ID] = r.Output
		}
	}
	return data
}

// Report is the result of executing one plan. A plan that asked for
// clarification is not executed and carries the questions instead.
type Report struct {
	Plan          *planning.Plan `json:"plan"`
	Outcomes      []Outcome      `json:"outcomes"`
	Clarification []string       `json:"clarification,omitempty"`
	AnswerTools   []string       `json:"-"`
}

// Succeeded reports whether every runnable step completed.
func (r *Report) Succeeded() bool {
	for _, o := range r.Outcomes {
		if o.Status != OutcomeOK {
			return false
		}
	}
	return len(r.Outcomes) > 0
}

// Answer is the text to send back to the user: the clarifying questions
// when the plan asked any, else the output of the last successful step run
// by one of AnswerTools, otherwise the full rendering.
func (r *Report) Answer() string {
	if len(r.Clarification) > 0 {
		return r.clarify()
	}
	answering := r.AnswerTools
	if answering == nil {
		answering = DefaultAnswerTools()
	}
	for i := len(r.Outcomes) - 1; i >= 0; i-- {
		o := r.Outcomes[i]
		if o.Status != OutcomeOK {
			continue
		}
		for _, t := range answering {
			if strings.EqualFold(o.Tool, t) {
				return o.Output
			}
		}
	}
	return r.Render()
}

func (r *Report) clarify() string {
	var b strings.Builder
	b.WriteString("I need some clarification to help you better:\n")
	for i, q := range r.Clarification {
		fmt.Fprintf(&b, "%d. %s\n", i+1, q)
	}
	return b.String()
}

const maxRenderedOutput = 3000

// Render lists every step with its outcome and output.
func (r *Report) Render() string {
	var b strings.Builder
	if r.Plan != nil {
		fmt.Fprintf(&b, "Plan %s (%s)\n", r.Plan.ID, r.Plan.Origin)
	}
	if len(r.Clarification) > 0 {
		b.WriteString("\n" + r.clarify())
	}
	for _, o := range r.Outcomes {
		mark := "✓"
		if o.Status != OutcomeOK {
			mark = "✗"
		}
		fmt.Fprintf(&b, "\n%s %s [%s] %s", mark, o.StepID, o.Tool, o.Status)
		if o.Detail != "" {
			fmt.Fprintf(&b, ": %s", o.Detail)
		}
		b.WriteByte('\n')
		if o.Output != "" {
			output := o.Output
			if len(output) > maxRenderedOutput {
				output = output[:maxRenderedOutput] + "\n... (output truncated) ..."
			}
			b.WriteString(output)
			b.WriteByte('\n')
		}
	}
	return b.String()
}
