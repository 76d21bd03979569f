// Package schema describes the parameters every tool accepts: names, types,
// aliases, enumerated domains with their synonym tables, and defaults.
//
// Entries are plain data. The planning pipeline runs one generic correction
// algorithm over them instead of branching per tool.
package schema

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyRegistry = errors.New("schema registry is empty")
	ErrUnknownTool   = errors.New("unknown tool")
)

// ParamType is the JSON type a parameter value must have.
type ParamType string

const (
	TypeAny     ParamType = ""
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
	TypeObject  ParamType = "object"
)

// Derivation synthesizes an auxiliary parameter when a synonym is applied.
// Template placeholders of the form {param} expand to the first term of that
// parameter's corrected value.
type Derivation struct {
	Param             string `yaml:"param" json:"param"`
	Template          string `yaml:"template" json:"template"`
	Overwrite         bool   `yaml:"overwrite,omitempty" json:"overwrite,omitempty"`
	OnlyIfAlternation bool   `yaml:"only_if_alternation,omitempty" json:"only_if_alternation,omitempty"`
}

// Synonym maps an out-of-domain value onto a member of an enumerated domain.
type Synonym struct {
	Value  string       `yaml:"value" json:"value"`
	Derive []Derivation `yaml:"derive,omitempty" json:"derive,omitempty"`
}

// Param is one accepted parameter of a tool.
type Param struct {
	Name        string             `yaml:"name" json:"name"`
	Type        ParamType          `yaml:"type,omitempty" json:"type,omitempty"`
	Description string             `yaml:"description,omitempty" json:"description,omitempty"`
	Required    bool               `yaml:"required,omitempty" json:"required,omitempty"`
	Default     any                `yaml:"default,omitempty" json:"default,omitempty"`
	Aliases     []string           `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Enum        []string           `yaml:"enum,omitempty" json:"enum,omitempty"`
	Synonyms    map[string]Synonym `yaml:"synonyms,omitempty" json:"synonyms,omitempty"`
}

func (p *Param) HasDefault() bool { return p.Default != nil }

func (p *Param) IsEnum() bool { return len(p.Enum) > 0 }

// Member reports whether v belongs to the enumerated domain, exactly.
func (p *Param) Member(v string) bool {
	for _, e := range p.Enum {
		if e == v {
			return true
		}
	}
	return false
}

// FoldMember returns the domain member equal to v under case folding.
func (p *Param) FoldMember(v string) (string, bool) {
	v = strings.TrimSpace(v)
	for _, e := range p.Enum {
		if strings.EqualFold(e, v) {
			return e, true
		}
	}
	return "", false
}

// Synonym looks up the synonym table case-insensitively.
func (p *Param) Synonym(v string) (Synonym, bool) {
	if len(p.Synonyms) == 0 {
		return Synonym{}, false
	}
	key := strings.ToLower(strings.TrimSpace(v))
	if s, ok := p.Synonyms[key]; ok {
		return s, true
	}
	for k, s := range p.Synonyms {
		if strings.EqualFold(k, key) {
			return s, true
		}
	}
	return Synonym{}, false
}

// Entry is the schema of a single tool. Params are in priority order.
type Entry struct {
	Tool        string  `yaml:"tool" json:"tool"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
	Primary     string  `yaml:"primary,omitempty" json:"primary,omitempty"`
	Params      []Param `yaml:"params" json:"params"`
}

// Param returns the declared parameter with the given name.
func (e *Entry) Param(name string) (*Param, bool) {
	for i := range e.Params {
		if e.Params[i].Name == name {
			return &e.Params[i], true
		}
	}
	return nil, false
}

// Required lists the names of required parameters in priority order.
func (e *Entry) Required() []string {
	var names []string
	for _, p := range e.Params {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

func (e *Entry) validate() error {
	if strings.TrimSpace(e.Tool) == "" {
		return fmt.Errorf("entry has no tool name")
	}
	seen := make(map[string]string)
	for _, p := range e.Params {
		if p.Name == "" {
			return fmt.Errorf("tool %s: parameter with empty name", e.Tool)
		}
		if owner, dup := seen[p.Name]; dup {
			return fmt.Errorf("tool %s: %q declared twice (also by %s)", e.Tool, p.Name, owner)
		}
		seen[p.Name] = p.Name
	}
	for _, p := range e.Params {
		for _, a := range p.Aliases {
			if owner, dup := seen[a]; dup && owner != p.Name {
				return fmt.Errorf("tool %s: alias %q of %s collides with %s", e.Tool, a, p.Name, owner)
			}
			seen[a] = p.Name
		}
		if p.IsEnum() && p.HasDefault() {
			d, ok := p.Default.(string)
			if !ok || !p.Member(d) {
				return fmt.Errorf("tool %s: default %v of %s is not in its domain", e.Tool, p.Default, p.Name)
			}
		}
		for k, s := range p.Synonyms {
			if !p.Member(s.Value) {
				return fmt.Errorf("tool %s: synonym %q of %s maps outside the domain", e.Tool, k, p.Name)
			}
		}
	}
	if e.Primary != "" {
		if _, ok := seen[e.Primary]; !ok {
			return fmt.Errorf("tool %s: primary parameter %q is not declared", e.Tool, e.Primary)
		}
	}
	return nil
}

// clone deep-copies the entry so snapshots never share mutable state with callers.
func (e Entry) clone() Entry {
	out := e
	out.Params = make([]Param, len(e.Params))
	for i, p := range e.Params {
		cp := p
		cp.Aliases = append([]string(nil), p.Aliases...)
		cp.Enum = append([]string(nil), p.Enum...)
		if p.Synonyms != nil {
			cp.Synonyms = make(map[string]Synonym, len(p.Synonyms))
			for k, s := range p.Synonyms {
				s.Derive = append([]Derivation(nil), s.Derive...)
				cp.Synonyms[strings.ToLower(k)] = s
			}
		}
		out.Params[i] = cp
	}
	return out
}
