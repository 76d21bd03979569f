package tools

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/tools/duckduckgo"
)

// Caller is satisfied by langchaingo tools such as duckduckgo.Tool.
type Caller interface {
	Call(ctx context.Context, input string) (string, error)
}

type WebSearchTool struct {
	client Caller
}

func NewWebSearchTool() (*WebSearchTool, error) {
	ddg, err := duckduckgo.New(10, duckduckgo.DefaultUserAgent)
	if err != nil {
		return nil, err
	}
	return &WebSearchTool{client: ddg}, nil
}

// NewWebSearchToolWith uses client instead of DuckDuckGo.
func NewWebSearchToolWith(client Caller) *WebSearchTool {
	return &WebSearchTool{client: client}
}

func (s *WebSearchTool) Name() string {
	return "web_search"
}

func (s *WebSearchTool) Description() string {
	return "Search the web using DuckDuckGo for real-time information."
}

func (s *WebSearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query to look up",
			},
		},
		"required": []string{"query"},
	}
}

func (s *WebSearchTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := decodeArgs(input, &args); err != nil {
		return "", err
	}

	res, err := s.client.Call(ctx, args.Query)
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}
	return res, nil
}
