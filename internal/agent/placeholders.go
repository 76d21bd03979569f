package agent

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rahul/stepwright/internal/planning"
)

var (
	placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_\-]+)\s*\}\}`)
	// search output lists matches as "path:line: text"
	matchLinePattern = regexp.MustCompile(`(?m)^(\S[^:\n]*):\d+: `)
)

const searchResultPlaceholder = "search_result"

// placeholders fills {{step_N_result}} and {{search_result}} references in
// a step's parameters from earlier outcomes. A step may only read results
// of its own dependencies; {{search_result}} is the first file matched by
// the latest successful search.
type placeholders struct {
	plan    *planning.Plan
	step    planning.CorrectedStep
	results map[string]Outcome
}

func (p placeholders) resolve(v any) (any, error) {
	switch val := v.(type) {
	case string:
		return p.fill(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, x := range val {
			r, err := p.resolve(x)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, x := range val {
			r, err := p.resolve(x)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	}
	return v, nil
}

func (p placeholders) fill(s string) (string, error) {
	if !strings.Contains(s, "{{") {
		return s, nil
	}
	var firstErr error
	out := placeholderPattern.ReplaceAllStringFunc(s, func(m string) string {
		name := placeholderPattern.FindStringSubmatch(m)[1]
		value, known, err := p.lookup(name)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if !known || err != nil {
			return m
		}
		return value
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// lookup reports known=false for names it does not recognize; those are
// left in place.
func (p placeholders) lookup(name string) (value string, known bool, err error) {
	lower := strings.ToLower(name)
	if lower == searchResultPlaceholder {
		path, err := p.latestSearchMatch()
		return path, true, err
	}
	ref, ok := strings.CutSuffix(lower, "_result")
	if !ok {
		return "", false, nil
	}
	id := p.stepID(ref)
	for _, dep := range p.step.DependsOn {
		if dep == id {
			return p.results[id].Output, true, nil
		}
	}
	return "", true, fmt.Errorf("{{%s}} does not name a dependency of %s", name, p.step.ID)
}

// stepID maps a reference onto a step id, accepting the label the model
// gave the step.
func (p placeholders) stepID(ref string) string {
	for _, s := range p.plan.Steps {
		if strings.EqualFold(s.ID, ref) {
			return s.ID
		}
	}
	for _, s := range p.plan.Steps {
		if s.Label != "" && strings.EqualFold(s.Label, ref) {
			return s.ID
		}
	}
	return ref
}

func (p placeholders) latestSearchMatch() (string, error) {
	var before []planning.CorrectedStep
	for _, s := range p.plan.Steps {
		if s.ID == p.step.ID {
			break
		}
		before = append(before, s)
	}
	for i := len(before) - 1; i >= 0; i-- {
		r, ok := p.results[before[i].ID]
		if !ok || r.Status != OutcomeOK || r.Tool != "search" {
			continue
		}
		if m := matchLinePattern.FindStringSubmatch(r.Output); m != nil {
			return m[1], nil
		}
		return "", fmt.Errorf("{{%s}}: %s matched no files", searchResultPlaceholder, r.StepID)
	}
	return "", fmt.Errorf("{{%s}}: no earlier search succeeded", searchResultPlaceholder)
}
