package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

const maxCollectedData = 40000

var focusInstructions = map[string]string{
	"overview":      "Give a short overview of what was found.",
	"architecture":  "Describe the structure: packages, components and how they connect.",
	"functionality": "Describe what the code does and its main features.",
	"issues":        "Point out bugs, risks and things that look wrong.",
}

// SummaryTool condenses the output of earlier steps with the model.
type SummaryTool struct {
	Model llms.Model
}

func NewSummaryTool(model llms.Model) *SummaryTool {
	return &SummaryTool{Model: model}
}

func (s *SummaryTool) Name() string {
	return "summary"
}

func (s *SummaryTool) Description() string {
	return "Summarize the data collected by earlier steps for the user's task."
}

func (s *SummaryTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task_description": map[string]any{
				"type":        "string",
				"description": "What the user asked for",
			},
			"collected_data": map[string]any{
				"description": "Results of earlier steps; filled in by the executor",
			},
			"context": map[string]any{
				"type":        "string",
				"description": "Extra context",
			},
			"focus": map[string]any{
				"type":        "string",
				"enum":        []string{"overview", "architecture", "functionality", "issues"},
				"default":     "overview",
				"description": "What the summary should concentrate on",
			},
		},
		"required": []string{"task_description"},
	}
}

func (s *SummaryTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		TaskDescription string `json:"task_description"`
		CollectedData   any    `json:"collected_data"`
		Context         string `json:"context"`
		Focus           string `json:"focus"`
	}
	if err := decodeArgs(input, &args); err != nil {
		return "", err
	}
	instruction, ok := focusInstructions[args.Focus]
	if !ok {
		instruction = focusInstructions["overview"]
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Task: %s\n\n%s\n\n", args.TaskDescription, instruction)
	if args.Context != "" {
		fmt.Fprintf(&prompt, "Context:\n%s\n\n", args.Context)
	}
	data := renderCollected(args.CollectedData)
	if data == "" {
		data = "(no data was collected)"
	}
	fmt.Fprintf(&prompt, "Collected data:\n%s\n", truncate(data, maxCollectedData))

	out, err := llms.GenerateFromSinglePrompt(ctx, s.Model, prompt.String(), llms.WithTemperature(0.2))
	if err != nil {
		return "", fmt.Errorf("summary failed: %w", err)
	}
	return strings.TrimSpace(out), nil
}

func renderCollected(v any) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		return vv
	case map[string]any:
		keys := sortedKeys(vv)
		var b strings.Builder
		for _, k := range keys {
			fmt.Fprintf(&b, "## %s\n%s\n\n", k, renderCollected(vv[k]))
		}
		return b.String()
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
