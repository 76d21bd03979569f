package schema

import (
	"fmt"
	"sort"
)

// Describer is the subset of a tool the registry needs: a name and a JSON
// Schema for its inputs.
type Describer interface {
	Name() string
	Description() string
	Parameters() map[string]any
}

// FromTools derives entries from tool JSON schemas and annotates them with
// the alias and synonym tables in tables (keyed by tool name). Tools with no
// table keep only what their JSON schema states.
func FromTools(tools []Describer, tables map[string]Entry) ([]Entry, error) {
	if len(tools) == 0 {
		return nil, ErrEmptyRegistry
	}
	out := make([]Entry, 0, len(tools))
	for _, t := range tools {
		e, err := fromJSONSchema(t.Name(), t.Description(), t.Parameters())
		if err != nil {
			return nil, err
		}
		if tbl, ok := tables[normalizeTool(t.Name())]; ok {
			e = Annotate(e, tbl)
		}
		out = append(out, e)
	}
	return out, nil
}

func fromJSONSchema(name, description string, js map[string]any) (Entry, error) {
	e := Entry{Tool: name, Description: description}
	props, _ := js["properties"].(map[string]any)
	required := make(map[string]bool)
	for _, r := range stringList(js["required"]) {
		required[r] = true
	}

	names := make([]string, 0, len(props))
	for k := range props {
		names = append(names, k)
	}
	// required first, then by name; Annotate reorders by the table when one exists
	sort.Slice(names, func(i, j int) bool {
		if required[names[i]] != required[names[j]] {
			return required[names[i]]
		}
		return names[i] < names[j]
	})

	for _, n := range names {
		prop, ok := props[n].(map[string]any)
		if !ok {
			return Entry{}, fmt.Errorf("tool %s: property %s is not an object", name, n)
		}
		p := Param{Name: n, Required: required[n]}
		if t, ok := prop["type"].(string); ok {
			p.Type = ParamType(t)
		}
		if d, ok := prop["description"].(string); ok {
			p.Description = d
		}
		if d, ok := prop["default"]; ok {
			p.Default = d
		}
		p.Enum = stringList(prop["enum"])
		e.Params = append(e.Params, p)
	}
	return e, nil
}

func stringList(v any) []string {
	switch vv := v.(type) {
	case []string:
		return append([]string(nil), vv...)
	case []any:
		out := make([]string, 0, len(vv))
		for _, x := range vv {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
