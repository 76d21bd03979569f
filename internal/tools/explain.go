package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// ExplainTool answers a question directly with the model.
type ExplainTool struct {
	Model llms.Model
}

func NewExplainTool(model llms.Model) *ExplainTool {
	return &ExplainTool{Model: model}
}

func (e *ExplainTool) Name() string {
	return "explain"
}

func (e *ExplainTool) Description() string {
	return "Answer a question or explain a concept directly, without touching the workspace."
}

func (e *ExplainTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question": map[string]any{
				"type":        "string",
				"description": "The question to answer",
			},
			"context": map[string]any{
				"type":        "string",
				"description": "Optional background for the answer",
			},
		},
		"required": []string{"question"},
	}
}

func (e *ExplainTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Question string `json:"question"`
		Context  string `json:"context"`
	}
	if err := decodeArgs(input, &args); err != nil {
		return "", err
	}
	if strings.TrimSpace(args.Question) == "" {
		return "", fmt.Errorf("empty question")
	}

	var prompt strings.Builder
	prompt.WriteString("You are a concise software engineering assistant. Answer the question below.\n\n")
	if args.Context != "" {
		fmt.Fprintf(&prompt, "Context:\n%s\n\n", args.Context)
	}
	fmt.Fprintf(&prompt, "Question: %s\n", args.Question)

	answer, err := llms.GenerateFromSinglePrompt(ctx, e.Model, prompt.String(), llms.WithTemperature(0.2))
	if err != nil {
		return "", fmt.Errorf("explain failed: %w", err)
	}
	return strings.TrimSpace(answer), nil
}
