package llms

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agentcore/orchestrator/pkg/config"
)

func newAnthropicTestProvider(t *testing.T, baseURL string) *anthropicProvider {
	t.Helper()
	return newAnthropicProvider(&config.LLMProviderConfig{
		Kind:    config.LLMProviderAnthropic,
		BaseURL: baseURL,
		APIKey:  "test-key",
		Model:   "claude-sonnet-4-20250514",
	})
}

func TestAnthropicChatSplitsSystemPromptAndDecodesContentBlocks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Fatalf("unexpected x-api-key header: %q", got)
		}
		fmt.Fprint(w, `{
			"model": "claude-sonnet-4-20250514",
			"content": [
				{"type": "text", "text": "looking it up"},
				{"type": "tool_use", "id": "toolu_1", "name": "search", "input": {"q": "x"}}
			],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 10, "output_tokens": 4}
		}`)
	}))
	defer srv.Close()

	provider := newAnthropicTestProvider(t, srv.URL)
	resp, err := provider.Chat(context.Background(), ChatRequest{
		Messages: []Message{
			{Role: "system", Content: "be terse"},
			{Role: "user", Content: "find x"},
		},
		Sampling: SamplingConfig{Model: "claude-sonnet-4-20250514"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "looking it up" {
		t.Fatalf("expected text block concatenated, got %q", resp.Content)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "search" || resp.ToolCalls[0].ID != "toolu_1" {
		t.Fatalf("unexpected tool calls: %+v", resp.ToolCalls)
	}
	if resp.Usage.TotalTokens != 14 {
		t.Fatalf("expected usage total 14, got %d", resp.Usage.TotalTokens)
	}
}

func TestSplitSystemPromptJoinsMultipleSystemMessages(t *testing.T) {
	system, rest := splitSystemPrompt([]Message{
		{Role: "system", Content: "first"},
		{Role: "user", Content: "hi"},
		{Role: "system", Content: "second"},
	})
	if system != "first\n\nsecond" {
		t.Fatalf("unexpected system prompt: %q", system)
	}
	if len(rest) != 1 || rest[0].Content != "hi" {
		t.Fatalf("expected only the user message to remain, got %+v", rest)
	}
}

func TestAnthropicChatStreamEmitsToolUseBlockStartAndInputJSONDeltas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lines := []string{
			`event: content_block_start
data: {"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"toolu_1","name":"search"}}`,
			`event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"q\":\"x\"}"}}`,
			`event: message_delta
data: {"type":"message_delta","delta":{"stop_reason":"tool_use"},"usage":{"output_tokens":4}}`,
			`event: message_stop
data: {"type":"message_stop"}`,
		}
		for _, l := range lines {
			fmt.Fprintf(w, "%s\n\n", l)
		}
	}))
	defer srv.Close()

	provider := newAnthropicTestProvider(t, srv.URL)
	chunks, err := provider.ChatStream(context.Background(), ChatRequest{Sampling: SamplingConfig{Model: "claude-sonnet-4-20250514"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	acc := newToolCallAccumulator()
	var sawLast bool
	for c := range chunks {
		if c.Err != nil {
			t.Fatalf("unexpected stream error: %v", c.Err)
		}
		if c.ToolCallDelta != nil {
			acc.accumulate(*c.ToolCallDelta)
		}
		if c.IsLast {
			sawLast = true
		}
	}
	if !sawLast {
		t.Fatalf("expected message_stop to set IsLast")
	}

	calls := acc.finalize()
	if len(calls) != 1 || calls[0].ID != "toolu_1" || calls[0].Name != "search" {
		t.Fatalf("unexpected accumulated calls: %+v", calls)
	}
	if calls[0].Arguments["q"] != "x" {
		t.Fatalf("expected parsed argument q=x, got %v", calls[0].Arguments)
	}
}
