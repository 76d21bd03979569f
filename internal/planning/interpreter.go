package planning

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/rahul/stepwright/internal/schema"
)

// ErrNoFallbackTool is returned when the tool used for unmatched requests is
// not registered or cannot take free text.
var ErrNoFallbackTool = errors.New("fallback tool is not usable")

// DefaultFallbackTool answers requests no rule matched.
const DefaultFallbackTool = "explain"

const summaryTool = "summary"

// Interpreter turns one request plus the model's raw answer into a Plan.
// It holds no mutable state after construction and is safe for concurrent use.
type Interpreter struct {
	registry    *schema.Registry
	extractor   *Extractor
	synth       *Synthesizer
	summaryStep bool
	newID       func() string
}

type Option func(*Interpreter)

func WithReasoningTags(tags []TagPair) Option {
	return func(in *Interpreter) { in.extractor.ReasoningTags = tags }
}

func WithRules(rules []Rule) Option {
	return func(in *Interpreter) { in.synth.Rules = rules }
}

func WithFallbackTool(tool string) Option {
	return func(in *Interpreter) {
		if tool != "" {
			in.synth.DefaultTool = tool
		}
	}
}

// WithSummaryStep appends a summary step to analysis-style requests.
func WithSummaryStep(on bool) Option {
	return func(in *Interpreter) { in.summaryStep = on }
}

// WithIDFunc replaces the plan id generator; tests use it for stable ids.
func WithIDFunc(f func() string) Option {
	return func(in *Interpreter) {
		if f != nil {
			in.newID = f
		}
	}
}

func NewInterpreter(reg *schema.Registry, opts ...Option) (*Interpreter, error) {
	if reg == nil || reg.Snapshot().Len() == 0 {
		return nil, schema.ErrEmptyRegistry
	}
	in := &Interpreter{
		registry:  reg,
		extractor: NewExtractor(DefaultReasoningTags),
		synth:     NewSynthesizer(DefaultRules(), DefaultFallbackTool),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(in)
	}

	if err := in.checkFallback(reg.Snapshot()); err != nil {
		return nil, err
	}
	if err := reg.Require(in.synth.DefaultTool); err != nil {
		return nil, fmt.Errorf("pin fallback tool: %w", err)
	}
	if err := reg.RequireCheck(in.checkFallback); err != nil {
		return nil, fmt.Errorf("pin fallback tool: %w", err)
	}
	return in, nil
}

// checkFallback confirms snap can still produce a resolved fallback step, so
// a reload cannot leave Interpret unable to degrade.
func (in *Interpreter) checkFallback(snap *schema.Snapshot) error {
	tool := in.synth.DefaultTool
	if _, ok := snap.Lookup(tool); !ok {
		return fmt.Errorf("%w: %s is not registered", ErrNoFallbackTool, tool)
	}
	if step := in.synth.fallbackStep("step_1", "help", snap); !step.Resolved() {
		return fmt.Errorf("%w: %s: %s", ErrNoFallbackTool, tool, step.Reason)
	}
	return nil
}

// Interpret never fails: output that yields no structure degrades to a
// single-step fallback plan, and faulty steps are kept as unresolvable.
func (in *Interpreter) Interpret(request, raw string) *Plan {
	snap := in.registry.Snapshot()
	plan := &Plan{ID: in.newID(), Request: request}

	ex, ok := in.extractor.Extract(raw)
	if !ok {
		step := in.synth.Synthesize(request, snap)
		plan.Origin = OriginFallback
		plan.Analysis = Analysis{
			RequiresTools: step.Tool != in.synth.DefaultTool,
			ToolsNeeded:   []string{step.Tool},
		}
		plan.Steps = []CorrectedStep{step}
		plan.Repairs = []string{"no structured output found, synthesized a plan from the request"}
		return plan
	}

	plan.Origin = OriginExtracted
	plan.Analysis = ex.Analysis
	plan.Repairs = ex.Repairs
	if len(ex.Steps) == 0 {
		// only questions came back; keep a runnable step for callers that
		// do not stop to ask them
		plan.Steps = []CorrectedStep{in.synth.Synthesize(request, snap)}
		plan.Repairs = append(plan.Repairs, "no steps proposed, synthesized one from the request")
		return plan
	}

	corrected := make([]CorrectedStep, 0, len(ex.Steps)+1)
	for _, ps := range ex.Steps {
		if strings.TrimSpace(ps.Tool) == "" {
			corrected = append(corrected, in.inferTool(ps, request, snap))
			continue
		}
		entry, _ := snap.Lookup(ps.Tool)
		corrected = append(corrected, Correct(ps, entry))
	}
	plan.Steps = Assemble(corrected)

	if in.summaryStep {
		plan.Steps = in.appendSummary(request, plan.Steps, snap)
	}
	return plan
}

// inferTool picks a tool for a step that named none, classifying its
// description and feeding the request text as content.
func (in *Interpreter) inferTool(ps ProposedStep, request string, snap *schema.Snapshot) CorrectedStep {
	text := ps.Description
	if strings.TrimSpace(text) == "" {
		text = request
	}
	step := in.synth.infer(text, request, ps.ID, snap)
	if ps.Description != "" {
		step.Description = ps.Description
	}
	step.Label = ps.Label
	step.DependsOn = append([]string(nil), ps.DependsOn...)
	return step
}

var analysisWords = []string{
	"analyze", "analyse", "analysis", "summarize", "summarise", "summary",
	"explain", "overview", "describe", "understand",
}

func (in *Interpreter) appendSummary(request string, steps []CorrectedStep, snap *schema.Snapshot) []CorrectedStep {
	entry, ok := snap.Lookup(summaryTool)
	if !ok || !hasAnyWord(strings.ToLower(request), analysisWords...) {
		return steps
	}
	last := ""
	for _, s := range steps {
		if strings.EqualFold(s.Tool, entry.Tool) {
			return steps
		}
		if s.Resolved() {
			last = s.ID
		}
	}
	if last == "" {
		return steps
	}
	sum := Correct(ProposedStep{
		Description:   "Summarize the collected results",
		Tool:          entry.Tool,
		RawParameters: map[string]any{primaryParam(entry, "task_description"): request},
		DependsOn:     []string{last},
	}, entry)
	sum.Provenance = append([]Fix{{Kind: FixInferred, To: entry.Tool, Detail: "appended summary step"}}, sum.Provenance...)
	return Assemble(append(steps, sum))
}
