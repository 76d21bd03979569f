package tools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const maxReadSize = 200000

// FileTool reads and writes files inside Root.
type FileTool struct {
	Root string
}

func NewFileTool(root string) *FileTool {
	absRoot, _ := filepath.Abs(root)
	return &FileTool{Root: absRoot}
}

func (f *FileTool) Name() string {
	return "file"
}

func (f *FileTool) Description() string {
	return "Manage files in the workspace: read, read_multiple, write, list, exists, and delete."
}

func (f *FileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"enum":        []string{"read", "read_multiple", "write", "list", "exists", "delete"},
				"default":     "read",
				"description": "The operation to perform",
			},
			"path": map[string]any{
				"type":        "string",
				"description": "File or directory path relative to the workspace",
			},
			"paths": map[string]any{
				"type":        "array",
				"description": "Paths to read (only for 'read_multiple')",
			},
			"max_files": map[string]any{
				"type":        "integer",
				"default":     5,
				"description": "Maximum number of files for 'read_multiple'",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "The content to write (only for 'write')",
			},
			"encoding": map[string]any{
				"type":        "string",
				"default":     "utf-8",
				"description": "Text encoding; only utf-8 is supported",
			},
		},
		"required": []string{"action"},
	}
}

type fileArgs struct {
	Action   string   `json:"action"`
	Path     string   `json:"path"`
	Paths    []string `json:"paths"`
	MaxFiles int      `json:"max_files"`
	Content  string   `json:"content"`
	Encoding string   `json:"encoding"`
}

func (f *FileTool) Execute(ctx context.Context, input string) (string, error) {
	args := fileArgs{Action: "read", MaxFiles: 5}
	if err := decodeArgs(input, &args); err != nil {
		return "", err
	}
	if args.Encoding != "" && !strings.EqualFold(strings.ReplaceAll(args.Encoding, "-", ""), "utf8") {
		return "", fmt.Errorf("unsupported encoding: %s", args.Encoding)
	}

	switch args.Action {
	case "read_multiple":
		return f.readMultiple(args)
	case "list":
		if args.Path == "" {
			args.Path = "."
		}
	}

	if args.Path == "" {
		return "", fmt.Errorf("%s requires a path", args.Action)
	}
	targetPath, err := f.resolve(args.Path)
	if err != nil {
		return "", err
	}

	switch args.Action {
	case "read":
		return readFile(targetPath)
	case "write":
		if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
		if err := os.WriteFile(targetPath, []byte(args.Content), 0644); err != nil {
			return "", fmt.Errorf("failed to write file: %w", err)
		}
		return fmt.Sprintf("Successfully wrote %d bytes to %s", len(args.Content), args.Path), nil
	case "list":
		return f.list(targetPath)
	case "exists":
		info, err := os.Stat(targetPath)
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Sprintf("%s does not exist", args.Path), nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to stat: %w", err)
		}
		kind := "file"
		if info.IsDir() {
			kind = "directory"
		}
		return fmt.Sprintf("%s exists (%s)", args.Path, kind), nil
	case "delete":
		if targetPath == f.Root {
			return "", fmt.Errorf("refusing to delete the workspace root")
		}
		if err := os.Remove(targetPath); err != nil {
			return "", fmt.Errorf("failed to delete: %w", err)
		}
		return fmt.Sprintf("Successfully deleted %s", args.Path), nil
	default:
		return "", fmt.Errorf("invalid action %q: use read, read_multiple, write, list, exists or delete", args.Action)
	}
}

// resolve joins name onto Root and rejects paths that escape it.
func (f *FileTool) resolve(name string) (string, error) {
	targetPath := filepath.Join(f.Root, name)
	if filepath.IsAbs(name) {
		targetPath = filepath.Clean(name)
	}
	rel, err := filepath.Rel(f.Root, targetPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("unsafe path attempt: %s", name)
	}
	return targetPath, nil
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return truncate(string(data), maxReadSize), nil
}

func (f *FileTool) readMultiple(args fileArgs) (string, error) {
	paths := args.Paths
	if len(paths) == 0 && args.Path != "" {
		paths = []string{args.Path}
	}
	if len(paths) == 0 {
		return "", fmt.Errorf("read_multiple requires paths")
	}
	if args.MaxFiles > 0 && len(paths) > args.MaxFiles {
		paths = paths[:args.MaxFiles]
	}

	var b strings.Builder
	for _, p := range paths {
		fmt.Fprintf(&b, "=== %s ===\n", p)
		target, err := f.resolve(p)
		if err == nil {
			var content string
			if content, err = readFile(target); err == nil {
				b.WriteString(content)
			}
		}
		if err != nil {
			fmt.Fprintf(&b, "error: %v", err)
		}
		b.WriteString("\n\n")
	}
	return b.String(), nil
}

func (f *FileTool) list(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to list directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return entries[i].Name() < entries[j].Name()
	})
	var output strings.Builder
	for _, entry := range entries {
		typeStr := "file"
		if entry.IsDir() {
			typeStr = "dir"
		}
		fmt.Fprintf(&output, "[%s] %s\n", typeStr, entry.Name())
	}
	if output.Len() == 0 {
		return "Directory is empty", nil
	}
	return output.String(), nil
}
