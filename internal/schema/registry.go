package schema

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Snapshot is an immutable set of tool entries. Entries handed out by Lookup
// must be treated as read-only.
type Snapshot struct {
	entries map[string]*Entry
	order   []string
}

// NewSnapshot validates and copies entries into a new snapshot.
func NewSnapshot(entries []Entry) (*Snapshot, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyRegistry
	}
	s := &Snapshot{entries: make(map[string]*Entry, len(entries))}
	for _, e := range entries {
		if err := e.validate(); err != nil {
			return nil, err
		}
		key := normalizeTool(e.Tool)
		if _, dup := s.entries[key]; dup {
			return nil, fmt.Errorf("tool %s declared twice", e.Tool)
		}
		cp := e.clone()
		s.entries[key] = &cp
		s.order = append(s.order, key)
	}
	return s, nil
}

// Lookup finds a tool's entry. Tool names are matched case-insensitively.
func (s *Snapshot) Lookup(tool string) (*Entry, bool) {
	if s == nil {
		return nil, false
	}
	e, ok := s.entries[normalizeTool(tool)]
	return e, ok
}

// Tools returns the registered tool names in declaration order.
func (s *Snapshot) Tools() []string {
	out := make([]string, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.entries[k].Tool)
	}
	return out
}

// Entries returns deep copies of all entries in declaration order.
func (s *Snapshot) Entries() []Entry {
	out := make([]Entry, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.entries[k].clone())
	}
	return out
}

func (s *Snapshot) Len() int { return len(s.order) }

func normalizeTool(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Registry holds the current snapshot. Readers never observe a partially
// built table: a reload builds a complete Snapshot and swaps the pointer.
type Registry struct {
	current atomic.Pointer[Snapshot]
	version atomic.Uint64

	mu       sync.Mutex
	required []string
	checks   []Check
}

// Check inspects a candidate snapshot. A non-nil error keeps it out.
type Check func(*Snapshot) error

func NewRegistry(entries []Entry) (*Registry, error) {
	snap, err := NewSnapshot(entries)
	if err != nil {
		return nil, err
	}
	r := &Registry{}
	r.current.Store(snap)
	r.version.Store(1)
	return r, nil
}

// Snapshot returns the current table set. Callers should take one snapshot
// per unit of work and use it throughout.
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// Version increments on every successful swap.
func (r *Registry) Version() uint64 {
	return r.version.Load()
}

// Require pins tools that every future snapshot must contain.
func (r *Registry) Require(tools ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := r.current.Load()
	for _, t := range tools {
		if _, ok := snap.Lookup(t); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownTool, t)
		}
	}
	r.required = append(r.required, tools...)
	return nil
}

// RequireCheck runs c against the current snapshot and, if it passes, against
// every snapshot offered to Swap from then on.
func (r *Registry) RequireCheck(c Check) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := c(r.current.Load()); err != nil {
		return err
	}
	r.checks = append(r.checks, c)
	return nil
}

// Swap installs a fully built snapshot.
func (r *Registry) Swap(snap *Snapshot) error {
	if snap == nil || snap.Len() == 0 {
		return ErrEmptyRegistry
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.required {
		if _, ok := snap.Lookup(t); !ok {
			return fmt.Errorf("reload rejected: %w: %s", ErrUnknownTool, t)
		}
	}
	for _, c := range r.checks {
		if err := c(snap); err != nil {
			return fmt.Errorf("reload rejected: %w", err)
		}
	}
	r.current.Store(snap)
	r.version.Add(1)
	return nil
}

// Reload builds a snapshot from entries and swaps it in.
func (r *Registry) Reload(entries []Entry) error {
	snap, err := NewSnapshot(entries)
	if err != nil {
		return err
	}
	return r.Swap(snap)
}

// Overlay merges over onto base. Params named in over come first, in over's
// order, with over's non-empty fields winning; base-only params follow.
func Overlay(base, over Entry) Entry {
	out := base.clone()
	if over.Description != "" {
		out.Description = over.Description
	}
	if over.Primary != "" {
		out.Primary = over.Primary
	}
	merged := make([]Param, 0, len(out.Params)+len(over.Params))
	used := make(map[string]bool)
	for _, op := range over.clone().Params {
		if bp, ok := out.Param(op.Name); ok {
			merged = append(merged, mergeParam(*bp, op))
		} else {
			merged = append(merged, op)
		}
		used[op.Name] = true
	}
	for _, bp := range out.Params {
		if !used[bp.Name] {
			merged = append(merged, bp)
		}
	}
	out.Params = merged
	return out
}

// Annotate copies aliases, enum domains, synonyms and defaults from table
// onto the params entry already declares. It never adds parameters.
func Annotate(entry, table Entry) Entry {
	out := entry.clone()
	for i, p := range out.Params {
		tp, ok := table.Param(p.Name)
		if !ok {
			continue
		}
		out.Params[i] = mergeParam(p, *tp)
	}
	if out.Primary == "" {
		if _, ok := out.Param(table.Primary); ok {
			out.Primary = table.Primary
		}
	}
	// keep the table's priority order for the params both sides know
	rank := make(map[string]int, len(table.Params))
	for i, p := range table.Params {
		rank[p.Name] = i
	}
	sort.SliceStable(out.Params, func(i, j int) bool {
		ri, okI := rank[out.Params[i].Name]
		rj, okJ := rank[out.Params[j].Name]
		switch {
		case okI && okJ:
			return ri < rj
		case okI:
			return true
		default:
			return false
		}
	})
	return out
}

func mergeParam(base, over Param) Param {
	out := base
	if over.Type != TypeAny {
		out.Type = over.Type
	}
	if over.Description != "" {
		out.Description = over.Description
	}
	if over.Required {
		out.Required = true
	}
	if over.Default != nil {
		out.Default = over.Default
	}
	if len(over.Enum) > 0 {
		out.Enum = append([]string(nil), over.Enum...)
	}
	out.Aliases = appendUnique(out.Aliases, over.Aliases...)
	if len(over.Synonyms) > 0 {
		syn := make(map[string]Synonym, len(out.Synonyms)+len(over.Synonyms))
		for k, v := range out.Synonyms {
			syn[k] = v
		}
		for k, v := range over.Synonyms {
			syn[strings.ToLower(k)] = v
		}
		out.Synonyms = syn
	}
	return out
}

func appendUnique(dst []string, src ...string) []string {
	for _, s := range src {
		found := false
		for _, d := range dst {
			if d == s {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, s)
		}
	}
	return dst
}
