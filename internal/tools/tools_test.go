package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahul/stepwright/internal/llmtest"
	"github.com/rahul/stepwright/internal/schema"
)

func TestFileTool(t *testing.T) {
	f := NewFileTool(t.TempDir())
	ctx := context.Background()

	run := func(input string) string {
		t.Helper()
		out, err := f.Execute(ctx, input)
		require.NoError(t, err, input)
		return out
	}

	assert.Equal(t, "Successfully wrote 5 bytes to notes/a.txt", run(`{"action": "write", "path": "notes/a.txt", "content": "hello"}`))
	assert.Equal(t, "hello", run(`{"action": "read", "path": "notes/a.txt"}`))
	assert.Equal(t, "notes/a.txt exists (file)", run(`{"action": "exists", "path": "notes/a.txt"}`))
	assert.Equal(t, "notes exists (directory)", run(`{"action": "exists", "path": "notes"}`))
	assert.Equal(t, "b.txt does not exist", run(`{"action": "exists", "path": "b.txt"}`))
	assert.Equal(t, "[file] a.txt\n", run(`{"action": "list", "path": "notes"}`))
	assert.Equal(t, "[dir] notes\n", run(`{"action": "list"}`))

	multi := run(`{"action": "read_multiple", "paths": ["notes/a.txt", "missing.txt"]}`)
	assert.Contains(t, multi, "=== notes/a.txt ===\nhello")
	assert.Contains(t, multi, "=== missing.txt ===\nerror: failed to read file")

	assert.Equal(t, "Successfully deleted notes/a.txt", run(`{"action": "delete", "path": "notes/a.txt"}`))
	assert.Equal(t, "Directory is empty", run(`{"action": "list", "path": "notes"}`))
}

func TestFileToolRejects(t *testing.T) {
	f := NewFileTool(t.TempDir())
	ctx := context.Background()

	tests := []struct {
		input string
		err   string
	}{
		{`{"action": "read", "path": "../outside.txt"}`, "unsafe path attempt"},
		{`{"action": "read", "path": "/etc/passwd"}`, "unsafe path attempt"},
		{`{"action": "delete", "path": "."}`, "refusing to delete"},
		{`{"action": "read"}`, "read requires a path"},
		{`{"action": "read_multiple"}`, "read_multiple requires paths"},
		{`{"action": "read", "path": "a", "encoding": "latin-1"}`, "unsupported encoding"},
		{`{"action": "chmod", "path": "a"}`, "invalid action"},
		{`{"action": 3}`, "invalid input"},
	}
	for _, tt := range tests {
		_, err := f.Execute(ctx, tt.input)
		assert.ErrorContains(t, err, tt.err, tt.input)
	}
}

func TestFileToolReadMultipleLimit(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a": "1", "b": "2", "c": "3"})
	out, err := NewFileTool(root).Execute(context.Background(), `{"action": "read_multiple", "paths": ["a", "b", "c"], "max_files": 2}`)
	require.NoError(t, err)
	assert.Contains(t, out, "=== b ===")
	assert.NotContains(t, out, "=== c ===")
}

type recordedRun struct {
	dir  string
	argv []string
}

func fakeGit(output string, err error) (*GitTool, *[]recordedRun) {
	var runs []recordedRun
	g := &GitTool{Root: "/repo", Run: func(_ context.Context, dir, name string, args ...string) (string, error) {
		runs = append(runs, recordedRun{dir: dir, argv: append([]string{name}, args...)})
		return output, err
	}}
	return g, &runs
}

func TestGitToolCommands(t *testing.T) {
	tests := []struct {
		input string
		argv  string
	}{
		{`{"action": "status"}`, "git status --short --branch"},
		{`{}`, "git status --short --branch"},
		{`{"action": "log"}`, "git log --oneline --decorate -n 20"},
		{`{"action": "diff"}`, "git diff --stat --patch"},
		{`{"action": "diff", "files": "a.go b.go"}`, "git diff --stat --patch -- a.go b.go"},
		{`{"action": "diff", "files": "--output=/tmp/x"}`, "git diff --stat --patch -- --output=/tmp/x"},
		{`{"action": "add"}`, "git add -- ."},
		{`{"action": "add", "files": "a.go"}`, "git add -- a.go"},
		{`{"action": "commit", "message": "fix parser"}`, "git commit -m fix parser"},
		{`{"action": "branch"}`, "git branch --list --all"},
		{`{"action": "branch", "branch_name": "feature"}`, "git branch feature"},
		{`{"action": "push"}`, "git push origin"},
		{`{"action": "pull", "remote": "upstream"}`, "git pull --ff-only upstream"},
	}
	for _, tt := range tests {
		g, runs := fakeGit(" done \n", nil)
		out, err := g.Execute(context.Background(), tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, "done", out)
		require.Len(t, *runs, 1)
		assert.Equal(t, "/repo", (*runs)[0].dir)
		assert.Equal(t, tt.argv, strings.Join((*runs)[0].argv, " "), tt.input)
	}
}

func TestGitToolErrors(t *testing.T) {
	g, runs := fakeGit("", nil)
	_, err := g.Execute(context.Background(), `{"action": "commit"}`)
	assert.ErrorContains(t, err, "commit requires a message")
	_, err = g.Execute(context.Background(), `{"action": "rebase"}`)
	assert.ErrorContains(t, err, "invalid action")
	_, err = g.Execute(context.Background(), `{"action": "branch", "branch_name": "--set-upstream-to=evil/main"}`)
	assert.ErrorContains(t, err, "invalid branch name")
	_, err = g.Execute(context.Background(), `{"action": "push", "remote": "--receive-pack=touch /tmp/pwned"}`)
	assert.ErrorContains(t, err, "invalid remote")
	assert.Empty(t, *runs)

	out, err := g.Execute(context.Background(), `{"action": "status"}`)
	require.NoError(t, err)
	assert.Equal(t, "(no output)", out)

	boom := errors.New("exit status 1")
	g, _ = fakeGit("rejected", boom)
	_, err = g.Execute(context.Background(), `{"action": "push"}`)
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "git push failed")
	assert.ErrorContains(t, err, "rejected")
}

const articleHTML = `<!DOCTYPE html>
<html><head><title>Planning notes</title><script>alert("x")</script></head>
<body>
<nav><a href="/">home</a></nav>
<article>
<h1>Planning notes</h1>
<p>Every step in a plan names a tool and the parameters it needs. The interpreter repairs truncated
model output, corrects parameter names against the tool tables, and checks that every dependency
points at an earlier step before anything runs.</p>
<p>When nothing structured can be recovered, a single step is synthesized from the request so the
user always gets an answer, even when the model rambles instead of producing a plan.</p>
<p>Steps that cannot be corrected stay in the plan with a reason, and anything that depends on them is
blocked as well, so the executor never runs a step whose inputs were never produced.</p>
</article>
</body></html>`

func TestFetchTool(t *testing.T) {
	var agent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent = r.Header.Get("User-Agent")
		if r.URL.Path != "/article" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, articleHTML)
	}))
	defer srv.Close()

	f := &FetchTool{UserAgent: "stepwright-test", Client: srv.Client()}
	out, err := f.Execute(context.Background(), fmt.Sprintf(`{"url": %q}`, srv.URL+"/article"))
	require.NoError(t, err)
	assert.Equal(t, "stepwright-test", agent)
	assert.True(t, strings.HasPrefix(out, "TITLE: "), out)
	assert.Contains(t, out, "-- CONTENT --")
	assert.Contains(t, out, "checks that every dependency")
	assert.NotContains(t, out, "alert(")

	_, err = f.Execute(context.Background(), fmt.Sprintf(`{"url": %q}`, srv.URL+"/missing"))
	assert.ErrorContains(t, err, "status code 404")

	_, err = f.Execute(context.Background(), `{"url": "file:///etc/passwd"}`)
	assert.ErrorContains(t, err, "unsupported URL scheme")
}

type fakeCaller struct {
	query string
	err   error
}

func (c *fakeCaller) Call(_ context.Context, input string) (string, error) {
	c.query = input
	return "result for " + input, c.err
}

func TestWebSearchTool(t *testing.T) {
	c := &fakeCaller{}
	s := NewWebSearchToolWith(c)
	out, err := s.Execute(context.Background(), `{"query": "go 1.25 release"}`)
	require.NoError(t, err)
	assert.Equal(t, "result for go 1.25 release", out)

	c.err = errors.New("rate limited")
	_, err = s.Execute(context.Background(), `{"query": "x"}`)
	assert.ErrorContains(t, err, "search failed: rate limited")
}

func TestExplainTool(t *testing.T) {
	m := llmtest.Text("  Because goroutines are cheap.\n")
	e := NewExplainTool(m)
	out, err := e.Execute(context.Background(), `{"question": "why do people like Go", "context": "concurrency"}`)
	require.NoError(t, err)
	assert.Equal(t, "Because goroutines are cheap.", out)
	assert.Contains(t, m.LastPrompt(), "Question: why do people like Go")
	assert.Contains(t, m.LastPrompt(), "Context:\nconcurrency")

	_, err = e.Execute(context.Background(), `{"question": ""}`)
	assert.ErrorContains(t, err, "empty question")

	_, err = NewExplainTool(llmtest.Failing(errors.New("offline"))).Execute(context.Background(), `{"question": "x"}`)
	assert.ErrorContains(t, err, "explain failed: offline")
}

func TestSummaryTool(t *testing.T) {
	m := llmtest.Text("Two packages.")
	s := NewSummaryTool(m)
	out, err := s.Execute(context.Background(), `{
		"task_description": "analyze the project structure",
		"focus": "architecture",
		"collected_data": {"step_2": "[dir] internal", "step_1": "[file] go.mod"}}`)
	require.NoError(t, err)
	assert.Equal(t, "Two packages.", out)

	prompt := m.LastPrompt()
	assert.Contains(t, prompt, "Task: analyze the project structure")
	assert.Contains(t, prompt, focusInstructions["architecture"])
	assert.Less(t, strings.Index(prompt, "## step_1"), strings.Index(prompt, "## step_2"))

	_, err = s.Execute(context.Background(), `{"task_description": "x", "focus": "poetry"}`)
	require.NoError(t, err)
	assert.Contains(t, m.LastPrompt(), focusInstructions["overview"])
	assert.Contains(t, m.LastPrompt(), "(no data was collected)")
}

func TestRefactorTool(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"svc.go": "package svc\n\nfunc load() {}\n\nfunc run() { load(); loader() }\n"})
	r := NewRefactorTool(root)
	ctx := context.Background()

	out, err := r.Execute(ctx, `{"action": "rename", "file_path": "svc.go", "target": "load", "new_name": "fetch"}`)
	require.NoError(t, err)
	assert.Equal(t, "rename: 2 change(s) in svc.go", out)

	out, err = r.Execute(ctx, `{"action": "add_docstring", "file_path": "svc.go", "target": "run", "content": "run starts the service."}`)
	require.NoError(t, err)
	assert.Equal(t, "add_docstring: 1 change(s) in svc.go", out)

	data, err := os.ReadFile(filepath.Join(root, "svc.go"))
	require.NoError(t, err)
	assert.Equal(t, "package svc\n\nfunc fetch() {}\n\n// run starts the service.\nfunc run() { fetch(); loader() }\n", string(data))

	_, err = r.Execute(ctx, `{"action": "inline", "file_path": "svc.go", "target": "run"}`)
	assert.ErrorContains(t, err, "inline is not supported")
	_, err = r.Execute(ctx, `{"action": "rename", "file_path": "svc.go", "target": "missing", "new_name": "x"}`)
	assert.ErrorContains(t, err, "missing not found")
	_, err = r.Execute(ctx, `{"action": "rename", "file_path": "svc.go", "target": "run", "new_name": "a b"}`)
	assert.ErrorContains(t, err, "new_name must be an identifier")
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	root := t.TempDir()
	model := llmtest.Text("ok")
	r := NewRegistry()
	r.Register(NewCodeSearchTool(root))
	r.Register(NewGitTool(root))
	r.Register(NewFileTool(root))
	r.Register(NewSummaryTool(model))
	r.Register(NewRefactorTool(root))
	r.Register(NewExplainTool(model))
	r.Register(NewWebSearchToolWith(&fakeCaller{}))
	r.Register(NewFetchTool())
	return r
}

func TestRegistryList(t *testing.T) {
	r := testRegistry(t)
	var names []string
	for _, tool := range r.List() {
		names = append(names, tool.Name())
	}
	assert.Equal(t, []string{"explain", "fetch", "file", "git", "refactor", "search", "summary", "web_search"}, names)
	assert.Nil(t, r.Get("shell"))
}

// The JSON schema every tool declares and the built-in alias tables must
// describe the same parameters, otherwise corrections would be dropped.
func TestToolSchemasMatchBuiltinTables(t *testing.T) {
	r := testRegistry(t)
	tables := schema.BuiltinByTool()

	entries, err := schema.FromTools(r.Describers(), tables)
	require.NoError(t, err)
	snap, err := schema.NewSnapshot(entries)
	require.NoError(t, err)
	assert.Equal(t, len(tables), snap.Len())

	for _, tool := range r.List() {
		table, ok := tables[tool.Name()]
		require.True(t, ok, tool.Name())
		entry, ok := snap.Lookup(tool.Name())
		require.True(t, ok)

		props := tool.Parameters()["properties"].(map[string]any)
		var declared, tabled []string
		for name := range props {
			declared = append(declared, name)
		}
		for _, p := range table.Params {
			tabled = append(tabled, p.Name)
			got, ok := entry.Param(p.Name)
			require.True(t, ok, "%s.%s", tool.Name(), p.Name)
			assert.Equal(t, p.Enum, got.Enum, "%s.%s enum", tool.Name(), p.Name)
			assert.Equal(t, p.Aliases, got.Aliases, "%s.%s aliases", tool.Name(), p.Name)
		}
		assert.ElementsMatch(t, tabled, declared, tool.Name())
		assert.Equal(t, table.Primary, entry.Primary, tool.Name())
	}
}
