package tools

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes a command in dir and returns its combined output.
type Runner func(ctx context.Context, dir, name string, args ...string) (string, error)

func execRunner(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	return string(output), err
}

// GitTool runs git subcommands in the workspace.
type GitTool struct {
	Root string
	Run  Runner
}

func NewGitTool(root string) *GitTool {
	return &GitTool{Root: root, Run: execRunner}
}

func (g *GitTool) Name() string {
	return "git"
}

func (g *GitTool) Description() string {
	return "Version control operations in the workspace: status, diff, add, commit, branch, log, push, pull."
}

func (g *GitTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"enum":        []string{"status", "diff", "add", "commit", "branch", "log", "push", "pull"},
				"default":     "status",
				"description": "The git operation to perform",
			},
			"files": map[string]any{
				"type":        "string",
				"description": "Space separated paths (for 'add' and 'diff')",
			},
			"message": map[string]any{
				"type":        "string",
				"description": "Commit message (only for 'commit')",
			},
			"branch_name": map[string]any{
				"type":        "string",
				"description": "Branch to create (only for 'branch')",
			},
			"remote": map[string]any{
				"type":        "string",
				"default":     "origin",
				"description": "Remote name (for 'push' and 'pull')",
			},
		},
		"required": []string{"action"},
	}
}

type gitArgs struct {
	Action     string `json:"action"`
	Files      string `json:"files"`
	Message    string `json:"message"`
	BranchName string `json:"branch_name"`
	Remote     string `json:"remote"`
}

// command maps the arguments to a git argv.
func (a gitArgs) command() ([]string, error) {
	files := strings.Fields(a.Files)
	remote := a.Remote
	if remote == "" {
		remote = "origin"
	}
	if strings.HasPrefix(remote, "-") {
		return nil, fmt.Errorf("invalid remote %q", remote)
	}
	switch a.Action {
	case "", "status":
		return []string{"status", "--short", "--branch"}, nil
	case "diff":
		argv := []string{"diff", "--stat", "--patch"}
		if len(files) > 0 {
			argv = append(append(argv, "--"), files...)
		}
		return argv, nil
	case "add":
		if len(files) == 0 {
			files = []string{"."}
		}
		return append([]string{"add", "--"}, files...), nil
	case "commit":
		if strings.TrimSpace(a.Message) == "" {
			return nil, fmt.Errorf("commit requires a message")
		}
		return []string{"commit", "-m", a.Message}, nil
	case "branch":
		if a.BranchName != "" {
			if strings.HasPrefix(a.BranchName, "-") {
				return nil, fmt.Errorf("invalid branch name %q", a.BranchName)
			}
			return []string{"branch", a.BranchName}, nil
		}
		return []string{"branch", "--list", "--all"}, nil
	case "log":
		return []string{"log", "--oneline", "--decorate", "-n", "20"}, nil
	case "push":
		return []string{"push", remote}, nil
	case "pull":
		return []string{"pull", "--ff-only", remote}, nil
	}
	return nil, fmt.Errorf("invalid action %q", a.Action)
}

func (g *GitTool) Execute(ctx context.Context, input string) (string, error) {
	var args gitArgs
	if err := decodeArgs(input, &args); err != nil {
		return "", err
	}
	argv, err := args.command()
	if err != nil {
		return "", err
	}

	output, err := g.Run(ctx, g.Root, "git", argv...)
	result := strings.TrimSpace(output)
	if result == "" {
		result = "(no output)"
	}
	if err != nil {
		return "", fmt.Errorf("git %s failed: %w\nOutput: %s", argv[0], err, result)
	}
	return truncate(result, 50000), nil
}
