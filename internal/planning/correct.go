package planning

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/rahul/stepwright/internal/schema"
)

// Correct maps step's raw parameters onto entry. The result holds only
// declared parameter names; every rename, coercion, substitution and default
// is recorded in Provenance. A nil entry means the tool is not registered.
//
// Correct is a pure function of its arguments.
func Correct(step ProposedStep, entry *schema.Entry) CorrectedStep {
	out := CorrectedStep{
		ProposedStep: step,
		Parameters:   make(map[string]any),
		Status:       StatusResolved,
	}
	out.DependsOn = append([]string(nil), step.DependsOn...)

	if entry == nil {
		name := strings.TrimSpace(step.Tool)
		if name == "" {
			out.markUnresolvable("no tool specified")
		} else {
			out.markUnresolvable("unknown tool: " + name)
		}
		return out
	}
	if step.Tool != entry.Tool {
		out.Tool = entry.Tool
		if strings.TrimSpace(step.Tool) != "" {
			out.record(Fix{Kind: FixNormalized, Param: "tool", From: step.Tool, To: entry.Tool})
		}
	}

	keys := sortedKeys(step.RawParameters)
	var pending []schema.Derivation

	for i := range entry.Params {
		p := &entry.Params[i]
		v, key, ok := lookup(step.RawParameters, keys, p)
		if !ok {
			continue
		}
		if key != p.Name {
			out.record(Fix{Kind: FixRenamed, Param: p.Name, From: key})
		}

		cv, ok := coerce(v, p.Type)
		if !ok {
			out.record(Fix{Kind: FixDropped, Param: p.Name, From: v, Detail: "expected " + string(p.Type)})
			continue
		}
		if !sameValue(cv, v) {
			out.record(Fix{Kind: FixNormalized, Param: p.Name, From: v, To: cv})
		}
		if s, isStr := cv.(string); isStr && strings.TrimSpace(s) == "" && p.Required {
			continue
		}

		if p.IsEnum() {
			resolved, derive, keep := resolveEnum(&out, p, cv)
			if !keep {
				continue
			}
			cv = resolved
			pending = append(pending, derive...)
		}
		out.Parameters[p.Name] = cv
	}

	for _, d := range pending {
		applyDerivation(&out, entry, d)
	}

	for i := range entry.Params {
		p := &entry.Params[i]
		if _, ok := out.Parameters[p.Name]; ok || !p.Required {
			continue
		}
		if p.HasDefault() {
			out.Parameters[p.Name] = p.Default
			out.record(Fix{Kind: FixDefaulted, Param: p.Name, To: p.Default})
			continue
		}
		out.markUnresolvable("missing required parameter: " + p.Name)
	}
	return out
}

// lookup finds p's value: exact name, then aliases in declared order, then a
// case-insensitive match on either. Returns the key the value was found under.
func lookup(raw map[string]any, keys []string, p *schema.Param) (any, string, bool) {
	if raw == nil {
		return nil, "", false
	}
	if v, ok := raw[p.Name]; ok && v != nil {
		return v, p.Name, true
	}
	for _, a := range p.Aliases {
		if v, ok := raw[a]; ok && v != nil {
			return v, a, true
		}
	}
	for _, k := range keys {
		if raw[k] == nil {
			continue
		}
		if strings.EqualFold(k, p.Name) {
			return raw[k], k, true
		}
		for _, a := range p.Aliases {
			if strings.EqualFold(k, a) {
				return raw[k], k, true
			}
		}
	}
	return nil, "", false
}

// resolveEnum returns the in-domain value for v. keep is false when the value
// was dropped or the step became unresolvable.
func resolveEnum(out *CorrectedStep, p *schema.Param, v any) (any, []schema.Derivation, bool) {
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	if p.Member(s) {
		return s, nil, true
	}
	if m, ok := p.FoldMember(s); ok {
		out.record(Fix{Kind: FixNormalized, Param: p.Name, From: v, To: m})
		return m, nil, true
	}
	if syn, ok := p.Synonym(s); ok {
		out.record(Fix{Kind: FixSynonym, Param: p.Name, From: v, To: syn.Value})
		return syn.Value, syn.Derive, true
	}
	if p.HasDefault() {
		out.record(Fix{Kind: FixSubstituted, Param: p.Name, From: v, To: p.Default})
		return p.Default, nil, true
	}
	if !p.Required {
		out.record(Fix{Kind: FixDropped, Param: p.Name, From: v, Detail: "not in " + strings.Join(p.Enum, "|")})
		return nil, nil, false
	}
	out.markUnresolvable(fmt.Sprintf("invalid value for %s: %v", p.Name, v))
	return nil, nil, false
}

// applyDerivation sets an auxiliary parameter produced by a synonym. A value
// the model supplied itself is only replaced when the derivation says so.
func applyDerivation(out *CorrectedStep, entry *schema.Entry, d schema.Derivation) {
	if _, ok := entry.Param(d.Param); !ok {
		return
	}
	current, present := out.Parameters[d.Param]
	if present && !d.Overwrite {
		return
	}
	if d.OnlyIfAlternation {
		s, _ := current.(string)
		if !present || !hasAlternation(s) {
			return
		}
	}
	value, ok := expand(d.Template, out.Parameters)
	if !ok {
		return
	}
	out.Parameters[d.Param] = value
	out.record(Fix{Kind: FixDerived, Param: d.Param, From: current, To: value})
}

// expand fills {param} placeholders with the first term of that parameter's
// value. ok is false when a referenced parameter has no usable value.
func expand(tmpl string, params map[string]any) (string, bool) {
	var b strings.Builder
	for {
		open := strings.IndexByte(tmpl, '{')
		if open < 0 {
			b.WriteString(tmpl)
			return b.String(), true
		}
		end := strings.IndexByte(tmpl[open:], '}')
		if end < 0 {
			b.WriteString(tmpl)
			return b.String(), true
		}
		b.WriteString(tmpl[:open])
		name := tmpl[open+1 : open+end]
		s, _ := params[name].(string)
		term := firstTerm(s)
		if term == "" {
			return "", false
		}
		b.WriteString(term)
		tmpl = tmpl[open+end+1:]
	}
}

// firstTerm picks the first alternative of a query such as "main|app" or
// "main.go, util.go", without glob stars.
func firstTerm(s string) string {
	f := strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	for _, t := range f {
		if t = strings.Trim(t, "*()^$"); t != "" {
			return t
		}
	}
	return ""
}

func hasAlternation(s string) bool {
	return strings.Contains(s, "|")
}

func coerce(v any, t schema.ParamType) (any, bool) {
	switch t {
	case schema.TypeAny:
		return v, true
	case schema.TypeString:
		switch x := v.(type) {
		case string:
			return x, true
		case int:
			return strconv.Itoa(x), true
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64), true
		case bool:
			return strconv.FormatBool(x), true
		case []any:
			parts := make([]string, 0, len(x))
			for _, e := range x {
				s, ok := coerce(e, schema.TypeString)
				if !ok {
					return nil, false
				}
				parts = append(parts, s.(string))
			}
			return strings.Join(parts, " "), true
		}
	case schema.TypeInteger:
		switch x := v.(type) {
		case int:
			return x, true
		case float64:
			if x == math.Trunc(x) && !math.IsInf(x, 0) {
				return int(x), true
			}
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(x)); err == nil {
				return n, true
			}
		}
	case schema.TypeNumber:
		switch x := v.(type) {
		case int, float64:
			return x, true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
				return f, true
			}
		}
	case schema.TypeBoolean:
		switch x := v.(type) {
		case bool:
			return x, true
		case int:
			if x == 0 || x == 1 {
				return x == 1, true
			}
		case string:
			switch strings.ToLower(strings.TrimSpace(x)) {
			case "true", "yes", "y", "1", "on":
				return true, true
			case "false", "no", "n", "0", "off":
				return false, true
			}
		}
	case schema.TypeArray:
		switch x := v.(type) {
		case []any:
			return x, true
		case map[string]any:
			return nil, false
		default:
			return []any{x}, true
		}
	case schema.TypeObject:
		switch x := v.(type) {
		case map[string]any:
			return x, true
		case string:
			var m map[string]any
			if err := json.Unmarshal([]byte(x), &m); err == nil && m != nil {
				return m, true
			}
		}
	}
	return nil, false
}

// sameValue compares scalars by identity and composites by type only.
func sameValue(a, b any) bool {
	switch a.(type) {
	case []any:
		_, ok := b.([]any)
		return ok
	case map[string]any:
		_, ok := b.(map[string]any)
		return ok
	}
	switch b.(type) {
	case []any, map[string]any:
		return false
	}
	return a == b
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
