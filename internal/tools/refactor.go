package tools

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// RefactorTool applies small structural edits to a single file.
// Only rename and add_docstring are implemented; the other actions are
// declared so plans that mention them correct cleanly and fail at run time
// with a clear message.
type RefactorTool struct {
	files *FileTool
}

func NewRefactorTool(root string) *RefactorTool {
	return &RefactorTool{files: NewFileTool(root)}
}

func (r *RefactorTool) Name() string {
	return "refactor"
}

func (r *RefactorTool) Description() string {
	return "Structural code edits on one file: rename a symbol or add a doc comment above a definition."
}

func (r *RefactorTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"enum":        []string{"rename", "extract_function", "inline", "move_function", "add_docstring"},
				"description": "The refactoring to apply",
			},
			"file_path": map[string]any{
				"type":        "string",
				"description": "File to edit, relative to the workspace",
			},
			"target": map[string]any{
				"type":        "string",
				"description": "Symbol to rename or document",
			},
			"new_name": map[string]any{
				"type":        "string",
				"description": "New symbol name (only for 'rename')",
			},
			"start_line": map[string]any{
				"type":        "integer",
				"description": "First line of the region",
			},
			"end_line": map[string]any{
				"type":        "integer",
				"description": "Last line of the region",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "Doc comment text (only for 'add_docstring')",
			},
		},
		"required": []string{"action", "file_path"},
	}
}

type refactorArgs struct {
	Action   string `json:"action"`
	FilePath string `json:"file_path"`
	Target   string `json:"target"`
	NewName  string `json:"new_name"`
	Content  string `json:"content"`
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (r *RefactorTool) Execute(ctx context.Context, input string) (string, error) {
	var args refactorArgs
	if err := decodeArgs(input, &args); err != nil {
		return "", err
	}
	path, err := r.files.resolve(args.FilePath)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	if !identPattern.MatchString(args.Target) {
		return "", fmt.Errorf("target must be an identifier, got %q", args.Target)
	}

	var out string
	var n int
	switch args.Action {
	case "rename":
		out, n, err = rename(string(data), args.Target, args.NewName)
	case "add_docstring":
		out, n, err = addDocComment(string(data), args.Target, args.Content)
	case "extract_function", "inline", "move_function":
		return "", fmt.Errorf("%s is not supported", args.Action)
	default:
		return "", fmt.Errorf("invalid action %q", args.Action)
	}
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(out), 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return fmt.Sprintf("%s: %d change(s) in %s", args.Action, n, args.FilePath), nil
}

func rename(src, from, to string) (string, int, error) {
	if !identPattern.MatchString(to) {
		return "", 0, fmt.Errorf("new_name must be an identifier, got %q", to)
	}
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(from) + `\b`)
	n := len(re.FindAllStringIndex(src, -1))
	if n == 0 {
		return "", 0, fmt.Errorf("%s not found", from)
	}
	return re.ReplaceAllLiteralString(src, to), n, nil
}

// addDocComment inserts a comment above the first definition of name.
func addDocComment(src, name, text string) (string, int, error) {
	if strings.TrimSpace(text) == "" {
		return "", 0, fmt.Errorf("add_docstring requires content")
	}
	def := regexp.MustCompile(`^(\s*)(?:func\s+(?:\([^)]*\)\s*)?|type\s+|def\s+|class\s+)` + regexp.QuoteMeta(name) + `\b`)
	lines := strings.Split(src, "\n")
	for i, line := range lines {
		m := def.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		indent := m[1]
		marker := "// "
		if strings.Contains(line, "def ") || strings.Contains(line, "class ") {
			marker = "# "
		}
		var doc []string
		for _, l := range strings.Split(strings.TrimSpace(text), "\n") {
			doc = append(doc, indent+marker+strings.TrimSpace(l))
		}
		out := append(append(append([]string{}, lines[:i]...), doc...), lines[i:]...)
		return strings.Join(out, "\n"), 1, nil
	}
	return "", 0, fmt.Errorf("definition of %s not found", name)
}
