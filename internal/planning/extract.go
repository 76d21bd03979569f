package planning

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// maxCandidates bounds how many bracketed regions are considered per input.
const maxCandidates = 16

// Extraction is what the extractor recovered from one model output.
type Extraction struct {
	Analysis Analysis
	Steps    []ProposedStep
	Repairs  []string
}

// Extractor recovers proposed steps from raw model output.
type Extractor struct {
	ReasoningTags []TagPair
}

func NewExtractor(tags []TagPair) *Extractor {
	return &Extractor{ReasoningTags: tags}
}

type attempt struct {
	text string
	note string
}

// Extract returns ok=false when no candidate parses into at least one step
// or a request for clarification.
// It never panics on malformed input and performs a bounded number of parse
// attempts: at most four per candidate.
func (e *Extractor) Extract(raw string) (*Extraction, bool) {
	text := StripReasoning(raw, e.ReasoningTags)
	var stripped []string
	if len(text) != len(raw) {
		stripped = append(stripped, "removed reasoning segments")
	}

	for _, cand := range candidates(text) {
		for _, at := range attempts(cand) {
			doc, err := decode(at.text)
			if err != nil {
				continue
			}
			ex := mapDocument(doc)
			if ex == nil || (len(ex.Steps) == 0 && len(ex.Analysis.Questions()) == 0) {
				// parsed but carries no plan; a repair cannot change that
				break
			}
			ex.Repairs = append(stripped, ex.Repairs...)
			if at.note != "" {
				ex.Repairs = append(ex.Repairs, at.note)
			}
			return ex, true
		}
	}
	return nil, false
}

// candidates lists the whole text (when it looks structured) and every
// bracketed region, longest first.
func candidates(text string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		add(trimmed)
	}
	for _, r := range scanRegions(text, maxCandidates) {
		add(text[r.start:r.end])
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

// attempts yields the direct parse followed by the repair passes, each
// building on the previous one.
func attempts(cand string) []attempt {
	out := []attempt{{text: cand}}
	closed, ok := closeTruncated(cand)
	if ok {
		out = append(out, attempt{text: closed, note: "closed truncated structure"})
	} else {
		closed = cand
	}
	if norm := normalizeJSON(closed); norm != closed {
		note := "normalized quoting and delimiters"
		if ok {
			note = "closed truncated structure and normalized quoting"
		}
		out = append(out, attempt{text: norm, note: note})
	}
	if lead, ok := leadingRegion(cand); ok {
		out = append(out, attempt{text: normalizeJSON(lead), note: "dropped trailing text after structure"})
	}
	return out
}

func decode(s string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after value")
	}
	return plainNumbers(v), nil
}

// plainNumbers turns json.Number into int when integral, float64 otherwise.
func plainNumbers(v any) any {
	switch vv := v.(type) {
	case json.Number:
		if n, err := vv.Int64(); err == nil && n >= math.MinInt && n <= math.MaxInt {
			return int(n)
		}
		f, _ := vv.Float64()
		return f
	case map[string]any:
		for k, x := range vv {
			vv[k] = plainNumbers(x)
		}
		return vv
	case []any:
		for i, x := range vv {
			vv[i] = plainNumbers(x)
		}
		return vv
	}
	return v
}

var (
	stepListKeys   = []string{"execution_steps", "steps", "plan", "tool_calls"}
	toolKeys       = []string{"tool", "tool_name", "name", "function"}
	paramKeys      = []string{"parameters", "params", "arguments", "args", "input"}
	descKeys       = []string{"step", "description", "step_description", "task"}
	dependencyKeys = []string{"dependencies", "depends_on", "deps", "after"}
	idKeys         = []string{"id", "step_id"}
)

// rawStep holds a step before dependency references are normalized.
type rawStep struct {
	id   any
	step ProposedStep
	deps []any
}

func mapDocument(doc any) *Extraction {
	ex := &Extraction{}
	var elems []any
	var legacy []string

	switch d := doc.(type) {
	case []any:
		elems = d
	case map[string]any:
		ex.Analysis = mapAnalysis(d)
		legacy = stringSlice(d["action_sequence"])
		if list, ok := firstList(d, stepListKeys); ok && len(list) > 0 {
			elems = list
		} else if len(legacy) > 0 {
			ex.Repairs = append(ex.Repairs, "converted legacy action_sequence into steps")
			for _, a := range legacy {
				elems = append(elems, a)
			}
		} else if looksLikeStep(d) {
			elems = []any{d}
		}
	default:
		return nil
	}

	var raws []rawStep
	for _, el := range elems {
		if rs, ok := mapStep(el); ok {
			raws = append(raws, rs)
		}
	}
	if len(raws) == 0 {
		if len(ex.Analysis.Questions()) > 0 {
			return ex
		}
		return nil
	}

	zeroBased := usesZeroIndex(raws)
	names := make(map[string]string)
	for i, r := range raws {
		id := fmt.Sprintf("step_%d", i+1)
		raws[i].step.ID = id
		label := refLabel(r.id)
		if label == "" {
			continue
		}
		raws[i].step.Label = label
		key := strings.ToLower(label)
		if _, taken := names[key]; taken {
			ex.Repairs = append(ex.Repairs, fmt.Sprintf("duplicate step id %q resolves to its first use", label))
			continue
		}
		names[key] = id
	}
	for j, a := range legacy {
		key := strings.ToLower(strings.TrimSpace(a))
		if _, taken := names[key]; !taken && key != "" {
			names[key] = fmt.Sprintf("step_%d", j+1)
		}
	}
	for _, r := range raws {
		s := r.step
		for _, d := range r.deps {
			if ref := normalizeRef(d, zeroBased, names); ref != "" {
				s.DependsOn = append(s.DependsOn, ref)
			}
		}
		ex.Steps = append(ex.Steps, s)
	}
	return ex
}

func mapAnalysis(d map[string]any) Analysis {
	a := Analysis{
		RequiresTools:          truthy(d["requires_tools"]),
		ToolsNeeded:            stringSlice(d["tools_needed"]),
		NeedsClarification:     truthy(d["needs_clarification"]),
		ClarificationQuestions: stringSlice(d["clarification_questions"]),
	}
	if c, ok := d["complexity"].(string); ok {
		a.Complexity = c
	}
	if p, ok := toInt(d["priority"]); ok {
		a.Priority = p
	}
	return a
}

func looksLikeStep(d map[string]any) bool {
	_, ok := firstValue(d, toolKeys)
	return ok
}

func mapStep(el any) (rawStep, bool) {
	switch v := el.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return rawStep{}, false
		}
		return rawStep{step: ProposedStep{Description: v}}, true
	case map[string]any:
		return mapStepObject(v), true
	}
	return rawStep{}, false
}

func mapStepObject(m map[string]any) rawStep {
	var r rawStep
	used := make(map[string]bool)
	take := func(keys []string) (any, bool) {
		for _, k := range keys {
			if v, ok := m[k]; ok {
				used[k] = true
				return v, true
			}
		}
		return nil, false
	}

	var params any
	if tv, ok := take(toolKeys); ok {
		switch t := tv.(type) {
		case string:
			r.step.Tool = strings.TrimSpace(t)
		case map[string]any:
			// OpenAI style {"function": {"name": ..., "arguments": ...}}
			if n, ok := t["name"].(string); ok {
				r.step.Tool = strings.TrimSpace(n)
			}
			if a, ok := firstValue(t, paramKeys); ok {
				params = a
			}
		}
	}
	if pv, ok := take(paramKeys); ok {
		params = pv
	}
	if dv, ok := take(descKeys); ok {
		if s, ok := dv.(string); ok {
			r.step.Description = s
		}
	}
	if depv, ok := take(dependencyKeys); ok {
		switch d := depv.(type) {
		case []any:
			r.deps = d
		case nil:
		default:
			r.deps = []any{d}
		}
	}
	if idv, ok := take(idKeys); ok {
		r.id = idv
	}

	r.step.RawParameters = paramMap(params)
	if params == nil {
		// parameters written inline next to the tool name
		inline := make(map[string]any)
		for k, v := range m {
			if !used[k] && !isStepField(k) {
				inline[k] = v
			}
		}
		if len(inline) > 0 {
			r.step.RawParameters = inline
		}
	}
	return r
}

func isStepField(k string) bool {
	for _, group := range [][]string{toolKeys, paramKeys, descKeys, dependencyKeys, idKeys} {
		for _, g := range group {
			if g == k {
				return true
			}
		}
	}
	switch k {
	case "status", "expected_output", "reason", "rationale", "priority":
		return true
	}
	return false
}

// paramMap accepts an object, or a string holding a JSON object.
func paramMap(v any) map[string]any {
	switch p := v.(type) {
	case map[string]any:
		return p
	case string:
		s := strings.TrimSpace(p)
		if s == "" {
			return nil
		}
		for _, text := range []string{s, normalizeJSON(s)} {
			if doc, err := decode(text); err == nil {
				if m, ok := doc.(map[string]any); ok {
					return m
				}
			}
		}
	}
	return nil
}

var stepRefPattern = regexp.MustCompile(`(?i)^step[\s_\-#]*(\d+)$`)

// refLabel renders a supplied id or dependency as text.
func refLabel(v any) string {
	switch r := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(r)
	case float64:
		return strconv.FormatFloat(r, 'f', -1, 64)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// normalizeRef maps a dependency reference onto step_N. A reference equal to
// some step's supplied id resolves to that step. Otherwise integers are
// positions, 1-based unless the document uses index 0 somewhere, and explicit
// "step N" forms are taken as written. Anything else is returned verbatim for
// the assembler to reject.
func normalizeRef(v any, zeroBased bool, names map[string]string) string {
	if id, ok := names[strings.ToLower(refLabel(v))]; ok {
		return id
	}
	switch r := v.(type) {
	case nil:
		return ""
	case int:
		return positional(r, zeroBased)
	case float64:
		if r == math.Trunc(r) {
			return positional(int(r), zeroBased)
		}
		return strconv.FormatFloat(r, 'f', -1, 64)
	case string:
		s := strings.TrimSpace(r)
		if s == "" {
			return ""
		}
		if m := stepRefPattern.FindStringSubmatch(s); m != nil {
			n, _ := strconv.Atoi(m[1])
			return fmt.Sprintf("step_%d", n)
		}
		if n, err := strconv.Atoi(s); err == nil {
			return positional(n, zeroBased)
		}
		return s
	}
	return fmt.Sprint(v)
}

func positional(n int, zeroBased bool) string {
	if zeroBased {
		n++
	}
	return fmt.Sprintf("step_%d", n)
}

func usesZeroIndex(raws []rawStep) bool {
	isZero := func(v any) bool {
		switch r := v.(type) {
		case int:
			return r == 0
		case float64:
			return r == 0
		case string:
			return strings.TrimSpace(r) == "0"
		}
		return false
	}
	for _, r := range raws {
		if isZero(r.id) {
			return true
		}
		for _, d := range r.deps {
			if isZero(d) {
				return true
			}
		}
	}
	return false
}

func firstList(m map[string]any, keys []string) ([]any, bool) {
	for _, k := range keys {
		if l, ok := m[k].([]any); ok {
			return l, true
		}
	}
	return nil, false
}

func firstValue(m map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func stringSlice(v any) []string {
	switch l := v.(type) {
	case []any:
		out := make([]string, 0, len(l))
		for _, x := range l {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if l != "" {
			return []string{l}
		}
	}
	return nil
}

func truthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		ok, _ := strconv.ParseBool(strings.TrimSpace(b))
		return ok
	}
	return false
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		if n == math.Trunc(n) {
			return int(n), true
		}
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}
