// Package planning interprets model output into an executable Plan.
//
// The pipeline is: strip reasoning, extract a structured analysis (repairing
// truncated or malformed JSON along the way), correct every proposed tool
// call against its schema entry, and assemble a dependency-checked plan.
// When nothing structured can be recovered a single-step plan is synthesized
// from the user's request instead.
//
// Everything here is synchronous, allocation-only and free of I/O, so an
// Interpreter may be shared by concurrent callers.
package planning

import (
	"fmt"
	"strings"
)

// ProposedStep is a tool call candidate as the model stated it.
//
// ID is always the positional step_N once extracted. Label keeps the id the
// model wrote, if any, for display only.
type ProposedStep struct {
	ID            string         `json:"id,omitempty"`
	Label         string         `json:"label,omitempty"`
	Description   string         `json:"description,omitempty"`
	Tool          string         `json:"tool"`
	RawParameters map[string]any `json:"raw_parameters,omitempty"`
	DependsOn     []string       `json:"depends_on,omitempty"`
}

// Status of a step once corrected and assembled.
type Status string

const (
	StatusResolved     Status = "resolved"
	StatusUnresolvable Status = "unresolvable"
)

// FixKind names a single correction applied to a step.
type FixKind string

const (
	FixRenamed      FixKind = "renamed"
	FixNormalized   FixKind = "normalized"
	FixSynonym      FixKind = "synonym"
	FixDerived      FixKind = "derived"
	FixSubstituted  FixKind = "substituted"
	FixDefaulted    FixKind = "defaulted"
	FixDropped      FixKind = "dropped"
	FixInferred     FixKind = "inferred"
	FixUnresolvable FixKind = "unresolvable"
)

// Fix is one provenance record. String renders it for humans.
type Fix struct {
	Kind   FixKind `json:"kind"`
	Param  string  `json:"param,omitempty"`
	From   any     `json:"from,omitempty"`
	To     any     `json:"to,omitempty"`
	Detail string  `json:"detail,omitempty"`
}

func (f Fix) String() string {
	switch f.Kind {
	case FixRenamed:
		return fmt.Sprintf("renamed %q to %q", f.From, f.Param)
	case FixNormalized:
		return fmt.Sprintf("normalized %s from %#v to %#v", f.Param, f.From, f.To)
	case FixSynonym:
		return fmt.Sprintf("mapped %s %#v to %#v", f.Param, f.From, f.To)
	case FixDerived:
		return fmt.Sprintf("derived %s = %#v", f.Param, f.To)
	case FixSubstituted:
		return fmt.Sprintf("substituted %s %#v with default %#v", f.Param, f.From, f.To)
	case FixDefaulted:
		return fmt.Sprintf("defaulted %s to %#v", f.Param, f.To)
	case FixDropped:
		return fmt.Sprintf("dropped %s %#v: %s", f.Param, f.From, f.Detail)
	case FixInferred:
		return fmt.Sprintf("inferred tool %q: %s", f.To, f.Detail)
	case FixUnresolvable:
		return "unresolvable: " + f.Detail
	}
	return string(f.Kind)
}

// CorrectedStep is a ProposedStep whose Parameters satisfy the tool schema,
// or which is marked unresolvable with a Reason.
type CorrectedStep struct {
	ProposedStep
	Parameters map[string]any `json:"parameters"`
	Status     Status         `json:"status"`
	Reason     string         `json:"reason,omitempty"`
	Provenance []Fix          `json:"provenance,omitempty"`
}

func (s *CorrectedStep) Resolved() bool { return s.Status == StatusResolved }

func (s *CorrectedStep) record(f Fix) {
	s.Provenance = append(s.Provenance, f)
}

// markUnresolvable keeps the first reason a step was rejected for.
func (s *CorrectedStep) markUnresolvable(reason string) {
	if s.Status == StatusUnresolvable {
		return
	}
	s.Status = StatusUnresolvable
	s.Reason = reason
	s.record(Fix{Kind: FixUnresolvable, Detail: reason})
}

// Analysis carries the model's plan-level metadata.
type Analysis struct {
	RequiresTools          bool     `json:"requires_tools"`
	ToolsNeeded            []string `json:"tools_needed,omitempty"`
	Complexity             string   `json:"complexity,omitempty"`
	Priority               int      `json:"priority,omitempty"`
	NeedsClarification     bool     `json:"needs_clarification,omitempty"`
	ClarificationQuestions []string `json:"clarification_questions,omitempty"`
}

// Questions returns the non-blank clarification questions when the model
// asked for clarification, nil otherwise.
func (a Analysis) Questions() []string {
	if !a.NeedsClarification {
		return nil
	}
	var out []string
	for _, q := range a.ClarificationQuestions {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	return out
}

// Origin records which path produced a plan.
type Origin string

const (
	OriginExtracted Origin = "extracted"
	OriginFallback  Origin = "fallback"
)

// Plan is the finalized output handed to an execution engine. It is not
// modified after Interpret returns.
type Plan struct {
	ID       string          `json:"id"`
	Request  string          `json:"request"`
	Origin   Origin          `json:"origin"`
	Analysis Analysis        `json:"analysis"`
	Steps    []CorrectedStep `json:"steps"`
	Repairs  []string        `json:"repairs,omitempty"`
}

// Step returns the step with the given id.
func (p *Plan) Step(id string) (CorrectedStep, bool) {
	for _, s := range p.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return CorrectedStep{}, false
}

// Order returns resolved steps in an order that respects every dependency.
// Dependencies only point backwards, so declaration order suffices.
func (p *Plan) Order() []CorrectedStep {
	var out []CorrectedStep
	for _, s := range p.Steps {
		if s.Resolved() {
			out = append(out, s)
		}
	}
	return out
}

// Unresolvable returns the steps that will not run.
func (p *Plan) Unresolvable() []CorrectedStep {
	var out []CorrectedStep
	for _, s := range p.Steps {
		if !s.Resolved() {
			out = append(out, s)
		}
	}
	return out
}

// Summary renders the plan as a short multi-line listing.
func (p *Plan) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan %s (%s, %d steps)\n", p.ID, p.Origin, len(p.Steps))
	for _, s := range p.Steps {
		mark := "✓"
		if !s.Resolved() {
			mark = "✗"
		}
		fmt.Fprintf(&b, "%s %s [%s]", mark, s.ID, s.Tool)
		if s.Description != "" {
			fmt.Fprintf(&b, " %s", s.Description)
		}
		if len(s.DependsOn) > 0 {
			fmt.Fprintf(&b, " (after %s)", strings.Join(s.DependsOn, ", "))
		}
		if !s.Resolved() {
			fmt.Fprintf(&b, ": %s", s.Reason)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
