package tools

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const maxSearchFileSize = 1 << 20

var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	".venv":        true,
}

// CodeSearchTool searches file contents under Root.
type CodeSearchTool struct {
	Root string
}

func NewCodeSearchTool(root string) *CodeSearchTool {
	absRoot, _ := filepath.Abs(root)
	return &CodeSearchTool{Root: absRoot}
}

func (s *CodeSearchTool) Name() string {
	return "search"
}

func (s *CodeSearchTool) Description() string {
	return "Search code in the workspace for text, regular expressions, function or type definitions, and imports."
}

func (s *CodeSearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Text, regex, or symbol name to search for. In text mode '|' separates alternatives.",
			},
			"search_type": map[string]any{
				"type":        "string",
				"enum":        []string{"text", "regex", "function", "class", "import"},
				"default":     "text",
				"description": "Kind of search",
			},
			"file_pattern": map[string]any{
				"type":        "string",
				"default":     "*",
				"description": "Glob matched against file names, e.g. *.go",
			},
			"max_results": map[string]any{
				"type":        "integer",
				"default":     50,
				"description": "Maximum number of matches",
			},
			"context_lines": map[string]any{
				"type":        "integer",
				"default":     3,
				"description": "Lines of context around each match",
			},
		},
		"required": []string{"query"},
	}
}

// SearchQuery holds the arguments of one search.
type SearchQuery struct {
	Query        string `json:"query"`
	SearchType   string `json:"search_type"`
	FilePattern  string `json:"file_pattern"`
	MaxResults   int    `json:"max_results"`
	ContextLines int    `json:"context_lines"`
}

// Match is one hit of a code search.
type Match struct {
	Path    string
	Line    int
	Text    string
	Context []string
}

func (s *CodeSearchTool) Execute(ctx context.Context, input string) (string, error) {
	args := SearchQuery{SearchType: "text", FilePattern: "*", MaxResults: 50, ContextLines: 3}
	if err := decodeArgs(input, &args); err != nil {
		return "", err
	}
	matches, err := s.Search(ctx, args)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return fmt.Sprintf("No matches for %q", args.Query), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d matches for %q:\n", len(matches), args.Query)
	for _, m := range matches {
		fmt.Fprintf(&b, "\n%s:%d: %s\n", m.Path, m.Line, m.Text)
		for _, c := range m.Context {
			fmt.Fprintf(&b, "    %s\n", c)
		}
	}
	return truncate(b.String(), 50000), nil
}

// Search walks Root and returns matches in path order.
func (s *CodeSearchTool) Search(ctx context.Context, args SearchQuery) ([]Match, error) {
	if strings.TrimSpace(args.Query) == "" {
		return nil, fmt.Errorf("empty query")
	}
	if args.MaxResults <= 0 {
		args.MaxResults = 50
	}
	if args.ContextLines < 0 {
		args.ContextLines = 0
	}
	if args.FilePattern == "" {
		args.FilePattern = "*"
	}
	if _, err := filepath.Match(args.FilePattern, ""); err != nil {
		return nil, fmt.Errorf("invalid file_pattern %q: %w", args.FilePattern, err)
	}
	re, err := compileQuery(args.SearchType, args.Query)
	if err != nil {
		return nil, err
	}

	var matches []Match
	err = filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != s.Root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if ok, _ := filepath.Match(args.FilePattern, d.Name()); !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() > maxSearchFileSize {
			return nil
		}
		rel, _ := filepath.Rel(s.Root, path)
		found, err := searchFile(path, filepath.ToSlash(rel), re, args.ContextLines, args.MaxResults-len(matches))
		if err != nil {
			return nil
		}
		matches = append(matches, found...)
		if len(matches) >= args.MaxResults {
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", s.Root, err)
	}
	return matches, nil
}

func compileQuery(mode, query string) (*regexp.Regexp, error) {
	var expr string
	switch mode {
	case "", "text":
		var alts []string
		for _, part := range strings.Split(query, "|") {
			if part = strings.TrimSpace(part); part != "" {
				alts = append(alts, regexp.QuoteMeta(part))
			}
		}
		if len(alts) == 0 {
			return nil, fmt.Errorf("empty query")
		}
		expr = "(?i)" + strings.Join(alts, "|")
	case "regex":
		expr = query
	case "function":
		name := regexp.QuoteMeta(query)
		expr = `^\s*(?:func\s+(?:\([^)]*\)\s*)?` + name + `\b|(?:async\s+)?def\s+` + name + `\b|function\s+` + name + `\b)`
	case "class":
		name := regexp.QuoteMeta(query)
		expr = `^\s*(?:type\s+` + name + `\s+(?:struct|interface)\b|class\s+` + name + `\b)`
	case "import":
		name := regexp.QuoteMeta(query)
		expr = `^\s*(?:import\b.*` + name + `|from\s+\S*` + name + `\S*\s+import\b|"[^"]*` + name + `[^"]*"$|require\(.*` + name + `)`
	default:
		return nil, fmt.Errorf("unknown search_type %q", mode)
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	return re, nil
}

func searchFile(path, rel string, re *regexp.Regexp, contextLines, limit int) ([]Match, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return nil, nil
	}

	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), maxSearchFileSize)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}

	var out []Match
	for i, line := range lines {
		if len(out) >= limit {
			break
		}
		if !re.MatchString(line) {
			continue
		}
		lo, hi := max(0, i-contextLines), min(len(lines), i+contextLines+1)
		var ctxLines []string
		for j := lo; j < hi; j++ {
			if j != i {
				ctxLines = append(ctxLines, lines[j])
			}
		}
		out = append(out, Match{Path: rel, Line: i + 1, Text: strings.TrimSpace(line), Context: ctxLines})
	}
	return out, nil
}
