package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/rahul/stepwright/internal/observability"
	"github.com/rahul/stepwright/internal/schema"
)

// Analyzer asks the model for a plan and returns its raw reply. The reply is
// not parsed here; that is the interpreter's job.
type Analyzer struct {
	Model   llms.Model
	Schema  *schema.Registry
	Prompts *PromptManager
	Logger  *observability.Logger
	// OfferTools passes the tool catalogue as function definitions as well
	// as in the prompt. Tool calls in the reply are rendered back to text.
	OfferTools bool
}

func NewAnalyzer(model llms.Model, reg *schema.Registry, prompts *PromptManager, logger *observability.Logger) *Analyzer {
	return &Analyzer{
		Model:      model,
		Schema:     reg,
		Prompts:    prompts,
		Logger:     logger,
		OfferTools: true,
	}
}

// Analyze returns the model's raw answer for request.
func (a *Analyzer) Analyze(ctx context.Context, chatID, request string, history []llms.MessageContent) (string, error) {
	analyzerPrompt, err := a.Prompts.GetAnalyzerPrompt()
	if err != nil {
		return "", err
	}
	contextPrompt, err := a.Prompts.GetContextPrompt()
	if err != nil {
		log.Printf("Warning: Failed to load context prompt: %v", err)
	}

	snap := a.Schema.Snapshot()
	system := fmt.Sprintf("%s\n\n## Available Tools:\n%s", analyzerPrompt, Catalogue(snap))
	if contextPrompt != "" {
		system = contextPrompt + "\n\n---\n\n" + system
	}

	messages := []llms.MessageContent{
		{Role: llms.ChatMessageTypeSystem, Parts: []llms.ContentPart{llms.TextPart(system)}},
	}
	messages = append(messages, history...)
	messages = append(messages, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(request)},
	})

	opts := []llms.CallOption{llms.WithTemperature(0)}
	if a.OfferTools {
		opts = append(opts, llms.WithTools(ToolDefinitions(snap)))
	}

	resp, err := a.Model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("analyze request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("analyze request: empty response from model")
	}

	choice := resp.Choices[0]
	raw := choice.Content
	if len(choice.ToolCalls) > 0 {
		raw = renderToolCalls(choice.ToolCalls)
	}
	a.Logger.LogLLM(chatID, "", request, raw, choice.ToolCalls)
	return raw, nil
}

// renderToolCalls turns native tool calls into the text form the extractor
// accepts, so both reply styles take the same path.
func renderToolCalls(calls []llms.ToolCall) string {
	type function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	}
	type call struct {
		Function function `json:"function"`
	}
	doc := struct {
		ToolCalls []call `json:"tool_calls"`
	}{}
	for _, tc := range calls {
		if tc.FunctionCall == nil {
			continue
		}
		doc.ToolCalls = append(doc.ToolCalls, call{Function: function{Name: tc.FunctionCall.Name, Arguments: tc.FunctionCall.Arguments}})
	}
	data, _ := json.Marshal(doc)
	return string(data)
}

// Catalogue renders the schema for the analyzer prompt.
func Catalogue(snap *schema.Snapshot) string {
	var b strings.Builder
	for _, e := range snap.Entries() {
		fmt.Fprintf(&b, "- %s: %s\n", e.Tool, e.Description)
		for _, p := range e.Params {
			var notes []string
			if p.Type != schema.TypeAny {
				notes = append(notes, string(p.Type))
			}
			if p.Required {
				notes = append(notes, "required")
			}
			if p.IsEnum() {
				notes = append(notes, "one of "+strings.Join(p.Enum, "|"))
			}
			if p.HasDefault() {
				notes = append(notes, fmt.Sprintf("default %v", p.Default))
			}
			fmt.Fprintf(&b, "    %s (%s)", p.Name, strings.Join(notes, ", "))
			if p.Description != "" {
				fmt.Fprintf(&b, ": %s", p.Description)
			}
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// ToolDefinitions converts the schema into function definitions.
func ToolDefinitions(snap *schema.Snapshot) []llms.Tool {
	var out []llms.Tool
	for _, e := range snap.Entries() {
		props := make(map[string]any, len(e.Params))
		for _, p := range e.Params {
			prop := map[string]any{}
			if p.Type != schema.TypeAny {
				prop["type"] = string(p.Type)
			}
			if p.Description != "" {
				prop["description"] = p.Description
			}
			if p.IsEnum() {
				prop["enum"] = p.Enum
			}
			props[p.Name] = prop
		}
		out = append(out, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        e.Tool,
				Description: e.Description,
				Parameters: map[string]any{
					"type":       "object",
					"properties": props,
					"required":   e.Required(),
				},
			},
		})
	}
	return out
}
