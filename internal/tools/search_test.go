package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleGo = `package main

import (
	"fmt"
	"github.com/rahul/stepwright/internal/planning"
)

func main() {
	fmt.Println("hi")
}

func (s *Server) handleRequest(w int) {}
type Server struct {}
`

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func searchWorkspace(t *testing.T) *CodeSearchTool {
	t.Helper()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"main.go":      sampleGo,
		"app.py":       "def handle_request():\n    pass\nclass App:\n    pass\n",
		".git/config":  "main",
		"vendor/x.go":  "func main() {}",
		"bin.dat":      "main\x00\x01",
		"docs/note.md": "nothing to see",
	})
	return NewCodeSearchTool(root)
}

func TestCodeSearchModes(t *testing.T) {
	s := searchWorkspace(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		query SearchQuery
		want  []string // path:line
	}{
		{"text restricted by pattern", SearchQuery{Query: "main", FilePattern: "*.go"}, []string{"main.go:1", "main.go:8"}},
		{"function", SearchQuery{Query: "handleRequest", SearchType: "function"}, []string{"main.go:12"}},
		{"class", SearchQuery{Query: "Server", SearchType: "class"}, []string{"main.go:13"}},
		{"import", SearchQuery{Query: "planning", SearchType: "import"}, []string{"main.go:5"}},
		{"text alternation", SearchQuery{Query: "handle_request|App"}, []string{"app.py:1", "app.py:3"}},
		{"regex", SearchQuery{Query: `^def \w+\(`, SearchType: "regex"}, []string{"app.py:1"}},
		{"max results", SearchQuery{Query: "main", MaxResults: 1}, []string{"main.go:1"}},
		{"binary skipped", SearchQuery{Query: "main", FilePattern: "*.dat"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches, err := s.Search(ctx, tt.query)
			require.NoError(t, err)
			var got []string
			for _, m := range matches {
				got = append(got, fmt.Sprintf("%s:%d", m.Path, m.Line))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCodeSearchContextAndOutput(t *testing.T) {
	s := searchWorkspace(t)
	matches, err := s.Search(context.Background(), SearchQuery{Query: "fmt.Println", ContextLines: 1})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, []string{"func main() {", "}"}, matches[0].Context)

	out, err := s.Execute(context.Background(), `{"query": "Server", "search_type": "class"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 matches")
	assert.Contains(t, out, "main.go:13: type Server struct {}")

	out, err = s.Execute(context.Background(), `{"query": "zzz_nothing"}`)
	require.NoError(t, err)
	assert.Equal(t, `No matches for "zzz_nothing"`, out)
}

func TestCodeSearchErrors(t *testing.T) {
	s := searchWorkspace(t)
	ctx := context.Background()

	_, err := s.Execute(ctx, `{"query": "(", "search_type": "regex"}`)
	assert.ErrorContains(t, err, "invalid pattern")

	_, err = s.Execute(ctx, `{"query": "  "}`)
	assert.ErrorContains(t, err, "empty query")

	_, err = s.Execute(ctx, `{"query": "x", "search_type": "filename"}`)
	assert.ErrorContains(t, err, "unknown search_type")

	_, err = s.Execute(ctx, `not json`)
	assert.ErrorContains(t, err, "invalid input")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.Search(cancelled, SearchQuery{Query: "main"})
	assert.ErrorIs(t, err, context.Canceled)
}
