package schema

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinIsValid(t *testing.T) {
	snap, err := NewSnapshot(Builtin())
	require.NoError(t, err)
	assert.Equal(t, []string{"search", "git", "file", "summary", "refactor", "explain", "web_search", "fetch"}, snap.Tools())

	e, ok := snap.Lookup("  SEARCH ")
	require.True(t, ok)
	assert.Equal(t, "query", e.Primary)
	assert.Equal(t, []string{"query"}, e.Required())
}

func TestNewSnapshotRejectsBadEntries(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		wantErr string
	}{
		{name: "empty", entries: nil, wantErr: "empty"},
		{
			name:    "duplicate tool",
			entries: []Entry{{Tool: "a"}, {Tool: "A"}},
			wantErr: "declared twice",
		},
		{
			name: "alias collides with param",
			entries: []Entry{{Tool: "a", Params: []Param{
				{Name: "x"},
				{Name: "y", Aliases: []string{"x"}},
			}}},
			wantErr: "collides",
		},
		{
			name: "default outside domain",
			entries: []Entry{{Tool: "a", Params: []Param{
				{Name: "m", Enum: []string{"one"}, Default: "two"},
			}}},
			wantErr: "not in its domain",
		},
		{
			name: "synonym outside domain",
			entries: []Entry{{Tool: "a", Params: []Param{
				{Name: "m", Enum: []string{"one"}, Synonyms: map[string]Synonym{"uno": {Value: "eins"}}},
			}}},
			wantErr: "outside the domain",
		},
		{
			name:    "unknown primary",
			entries: []Entry{{Tool: "a", Primary: "q"}},
			wantErr: "primary",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSnapshot(tt.entries)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRegistrySwapIsAtomic(t *testing.T) {
	reg, err := NewRegistry(Builtin())
	require.NoError(t, err)
	require.NoError(t, reg.Require("explain"))

	small := []Entry{{Tool: "explain", Primary: "question", Params: []Param{{Name: "question", Required: true}}}}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				snap := reg.Snapshot()
				// a reader sees either the full builtin set or the full small set
				n := snap.Len()
				if n != len(Builtin()) && n != 1 {
					t.Errorf("torn snapshot with %d tools", n)
					return
				}
				_, ok := snap.Lookup("explain")
				assert.True(t, ok)
			}
		}()
	}
	for j := 0; j < 50; j++ {
		if j%2 == 0 {
			require.NoError(t, reg.Reload(small))
		} else {
			require.NoError(t, reg.Reload(Builtin()))
		}
	}
	wg.Wait()
	assert.Equal(t, uint64(51), reg.Version())
}

func TestRegistryRejectsSnapshotsMissingRequiredTools(t *testing.T) {
	reg, err := NewRegistry(Builtin())
	require.NoError(t, err)
	require.NoError(t, reg.Require("explain"))

	err = reg.Reload([]Entry{{Tool: "git"}})
	require.ErrorIs(t, err, ErrUnknownTool)
	_, ok := reg.Snapshot().Lookup("search")
	assert.True(t, ok, "previous snapshot must stay in place")

	assert.ErrorIs(t, reg.Swap(nil), ErrEmptyRegistry)
	assert.ErrorIs(t, reg.Require("nope"), ErrUnknownTool)
}

func TestRegistryChecksGateSwaps(t *testing.T) {
	reg, err := NewRegistry(Builtin())
	require.NoError(t, err)

	noGit := errors.New("git has no params")
	check := func(s *Snapshot) error {
		if e, ok := s.Lookup("git"); ok && len(e.Params) == 0 {
			return noGit
		}
		return nil
	}
	require.NoError(t, reg.RequireCheck(check))
	before := reg.Version()

	err = reg.Reload([]Entry{{Tool: "git"}, {Tool: "search"}})
	assert.ErrorIs(t, err, noGit)
	assert.Equal(t, before, reg.Version())
	e, _ := reg.Snapshot().Lookup("git")
	assert.NotEmpty(t, e.Params)

	require.NoError(t, reg.Reload([]Entry{{Tool: "git", Params: []Param{{Name: "action"}}}}))
	assert.Equal(t, before+1, reg.Version())

	assert.ErrorIs(t, reg.RequireCheck(func(*Snapshot) error { return noGit }), noGit)
}

func TestSnapshotEntriesAreCopies(t *testing.T) {
	snap, err := NewSnapshot(Builtin())
	require.NoError(t, err)

	entries := snap.Entries()
	entries[0].Params[0].Aliases[0] = "mutated"

	e, _ := snap.Lookup("search")
	assert.Equal(t, "pattern", e.Params[0].Aliases[0])
}

func TestDecodeEncodeCompose(t *testing.T) {
	doc := `
tools:
  - tool: search
    params:
      - name: query
        aliases: [needle]
  - tool: lint
    description: Run the linter
    params:
      - name: target
        type: string
        required: true
`
	overlay, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)

	entries := Compose(Builtin(), overlay)
	snap, err := NewSnapshot(entries)
	require.NoError(t, err)

	search, ok := snap.Lookup("search")
	require.True(t, ok)
	q, _ := search.Param("query")
	assert.Contains(t, q.Aliases, "needle")
	assert.Contains(t, q.Aliases, "pattern")
	assert.True(t, q.Required, "overlay must not drop base flags")

	lint, ok := snap.Lookup("lint")
	require.True(t, ok)
	assert.Equal(t, []string{"target"}, lint.Required())

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, snap.Entries()))
	again, err := Decode(&buf)
	require.NoError(t, err)
	assert.Len(t, again, snap.Len())

	_, err = Decode(strings.NewReader("tools: []\n"))
	assert.ErrorIs(t, err, ErrEmptyRegistry)
	_, err = Decode(strings.NewReader("tools:\n  - tool: x\n    bogus: 1\n"))
	assert.Error(t, err)
}

type fakeTool struct {
	name   string
	params map[string]any
}

func (f fakeTool) Name() string               { return f.name }
func (f fakeTool) Description() string        { return "fake " + f.name }
func (f fakeTool) Parameters() map[string]any { return f.params }

func TestFromToolsAnnotatesDeclaredParamsOnly(t *testing.T) {
	search := fakeTool{name: "search", params: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"search_type": map[string]any{"type": "string", "enum": []string{"text", "regex", "function", "class", "import"}, "default": "text"},
			"query":       map[string]any{"type": "string"},
			"max_results": map[string]any{"type": "integer"},
		},
		"required": []string{"query"},
	}}
	custom := fakeTool{name: "deploy", params: map[string]any{
		"type":       "object",
		"properties": map[string]any{"env": map[string]any{"type": "string"}},
		"required":   []any{"env"},
	}}

	entries, err := FromTools([]Describer{search, custom}, BuiltinByTool())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	s := entries[0]
	names := make([]string, 0, len(s.Params))
	for _, p := range s.Params {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"query", "search_type", "max_results"}, names, "table order wins, undeclared params are not added")
	q, _ := s.Param("query")
	assert.True(t, q.Required)
	assert.Contains(t, q.Aliases, "pattern")
	st, _ := s.Param("search_type")
	_, ok := st.Synonym("filename")
	assert.True(t, ok)
	assert.Equal(t, "query", s.Primary)

	d := entries[1]
	assert.Equal(t, []string{"env"}, d.Required())

	_, err = NewSnapshot(entries)
	require.NoError(t, err)
}
