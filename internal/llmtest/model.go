// Package llmtest provides a scripted llms.Model for tests.
package llmtest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// ErrExhausted is returned once every scripted reply has been consumed.
var ErrExhausted = errors.New("llmtest: no scripted reply left")

// Reply is one scripted model turn.
type Reply struct {
	Content   string
	ToolCalls []llms.ToolCall
	Err       error
}

// Model replays Replies in order and records every prompt it was sent.
// With Repeat set the last reply is served forever.
type Model struct {
	mu      sync.Mutex
	Replies []Reply
	Repeat  bool
	Prompts []string
	Options []llms.CallOptions
}

func New(replies ...Reply) *Model {
	return &Model{Replies: replies}
}

// Text returns a model that always answers with content.
func Text(content string) *Model {
	return &Model{Replies: []Reply{{Content: content}}, Repeat: true}
}

// Failing returns a model whose every call fails with err.
func Failing(err error) *Model {
	return &Model{Replies: []Reply{{Err: err}}, Repeat: true}
}

func (m *Model) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}

	var prompt strings.Builder
	for _, msg := range messages {
		for _, p := range msg.Parts {
			if t, ok := p.(llms.TextContent); ok {
				if prompt.Len() > 0 {
					prompt.WriteString("\n")
				}
				prompt.WriteString(t.Text)
			}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prompts = append(m.Prompts, prompt.String())
	m.Options = append(m.Options, opts)

	if len(m.Replies) == 0 {
		return nil, ErrExhausted
	}
	r := m.Replies[0]
	if len(m.Replies) > 1 || !m.Repeat {
		m.Replies = m.Replies[1:]
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: r.Content, ToolCalls: r.ToolCalls}},
	}, nil
}

func (m *Model) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// LastPrompt returns the text of the most recent call.
func (m *Model) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Prompts) == 0 {
		return ""
	}
	return m.Prompts[len(m.Prompts)-1]
}

// Calls reports how many times the model was invoked.
func (m *Model) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}
