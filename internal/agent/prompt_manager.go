package agent

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const analyzerPromptFile = "analyzer.md"

// DefaultAnalyzerPrompt is used when the prompts directory has no analyzer.md.
const DefaultAnalyzerPrompt = `You are the planning stage of a coding assistant. Read the user's request and
decide which tools are needed to answer it.

Reply with a single JSON object and nothing else:

{
  "requires_tools": true,
  "tools_needed": ["search"],
  "complexity": "simple",
  "execution_steps": [
    {
      "step": "what this step does",
      "tool": "tool name",
      "parameters": {"name": "value"},
      "dependencies": []
    }
  ]
}

Rules:
- Use only the tools listed below and only the parameters they declare.
- "dependencies" lists the 1-based numbers of earlier steps whose output this step needs.
- If the request can be answered without touching the workspace, use the explain tool.
- Do not wrap the JSON in prose.`

type PromptManager struct {
	Directory string
}

func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{Directory: dir}
}

// GetContextPrompt joins every markdown file in the directory except the
// analyzer prompt, in identity, soul, capabilities, user order, then by
// name. A missing directory yields an empty prompt.
func (pm *PromptManager) GetContextPrompt() (string, error) {
	if pm == nil || pm.Directory == "" {
		return "", nil
	}
	files, err := os.ReadDir(pm.Directory)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read prompts directory: %w", err)
	}

	order := map[string]int{
		"identity.md":     1,
		"soul.md":         2,
		"capabilities.md": 3,
		"user.md":         4,
	}

	sort.Slice(files, func(i, j int) bool {
		oi, okI := order[files[i].Name()]
		oj, okJ := order[files[j].Name()]
		if okI && okJ {
			return oi < oj
		}
		if okI {
			return true
		}
		if okJ {
			return false
		}
		return files[i].Name() < files[j].Name()
	})

	var contents []string
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".md") || f.Name() == analyzerPromptFile {
			continue
		}
		path := filepath.Join(pm.Directory, f.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("Warning: Failed to read prompt file %s: %v", path, err)
			continue
		}
		contents = append(contents, strings.TrimSpace(string(data)))
	}

	return strings.Join(contents, "\n\n---\n\n"), nil
}

// GetAnalyzerPrompt returns analyzer.md, or DefaultAnalyzerPrompt when the
// file does not exist.
func (pm *PromptManager) GetAnalyzerPrompt() (string, error) {
	if pm == nil || pm.Directory == "" {
		return DefaultAnalyzerPrompt, nil
	}
	data, err := os.ReadFile(filepath.Join(pm.Directory, analyzerPromptFile))
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultAnalyzerPrompt, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read analyzer prompt: %w", err)
	}
	return string(data), nil
}
