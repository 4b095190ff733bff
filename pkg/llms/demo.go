package llms

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentcore/orchestrator/pkg/config"
)

// demoProvider needs no credentials and never leaves the process: it echoes
// a canned response so the reasoning loop (C2) and SSE translator (C5) can
// be exercised end-to-end without a configured upstream (SPEC_FULL.md
// Supplemented Feature: demo provider).
type demoProvider struct {
	model string
}

func newDemoProvider(cfg *config.LLMProviderConfig) *demoProvider {
	model := cfg.Model
	if model == "" {
		model = "demo"
	}
	return &demoProvider{model: model}
}

func (p *demoProvider) Kind() string                  { return string(config.LLMProviderDemo) }
func (p *demoProvider) SupportedModels() []string     { return []string{p.model} }
func (p *demoProvider) SupportsFunctionCalling() bool { return true }

func lastUserMessage(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}

// Chat echoes the last user message framed as an assistant reply, prefixed
// by a one-line fabricated reasoning trace so the hidden reasoning channel
// has something to carry even with no configured upstream. If a tool is
// offered and the prompt mentions its name, it calls that tool once
// instead, so demo runs can exercise the tool-execution path too.
func (p *demoProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	prompt := lastUserMessage(req.Messages)
	reasoning := fmt.Sprintf("considering: %s", prompt)
	for _, t := range req.Tools {
		if strings.Contains(strings.ToLower(prompt), strings.ToLower(t.Name)) {
			return ChatResponse{
				Reasoning: reasoning,
				ToolCalls: []ToolCall{{
					ID:        "demo_1",
					Name:      t.Name,
					Arguments: map[string]interface{}{},
					RawArgs:   "{}",
				}},
				FinishReason: "tool_calls",
				Model:        p.model,
			}, nil
		}
	}
	content := fmt.Sprintf("demo provider received: %s", prompt)
	return ChatResponse{
		Content:      content,
		Reasoning:    reasoning,
		FinishReason: "stop",
		Model:        p.model,
		Usage:        newTokenCounter(p.model).estimateUsage(req.Messages, content),
	}, nil
}

// ChatStream streams Chat's result as a reasoning delta, then a content or
// tool-call delta, then a terminal chunk, so callers exercising the
// streaming path see the same contract shape a real reasoning-capable
// provider would produce.
func (p *demoProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	resp, err := p.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	out := make(chan StreamChunk, 3)
	if resp.Reasoning != "" {
		out <- StreamChunk{ReasoningDelta: resp.Reasoning, IsFirst: true}
	}
	if resp.Content != "" {
		out <- StreamChunk{ContentDelta: resp.Content, IsFirst: resp.Reasoning == ""}
	}
	for i, tc := range resp.ToolCalls {
		out <- StreamChunk{
			IsFirst:       resp.Reasoning == "" && resp.Content == "" && i == 0,
			ToolCallDelta: &ToolCallDelta{Index: i, ID: tc.ID, Name: tc.Name, ArgumentsJSON: tc.RawArgs},
		}
	}
	out <- StreamChunk{FinishReason: resp.FinishReason, IsLast: true}
	close(out)
	return out, nil
}
