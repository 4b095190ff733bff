package llms

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/agentcore/orchestrator/pkg/config"
	"github.com/agentcore/orchestrator/pkg/httpclient"
)

// anthropicProvider speaks POST {base}/v1/messages: the system prompt is
// hoisted out of the message list, and tool calls/results are content
// blocks rather than a parallel array (§4.1).
type anthropicProvider struct {
	kind    string
	baseURL string
	apiKey  string
	models  []string
	http    *httpclient.Client
}

func newAnthropicProvider(cfg *config.LLMProviderConfig) *anthropicProvider {
	models := cfg.Models
	if len(models) == 0 && cfg.Model != "" {
		models = []string{cfg.Model}
	}
	return &anthropicProvider{
		kind:    string(cfg.Kind),
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		models:  models,
		http:    httpclient.New(httpclient.WithMaxRetries(0), httpclient.WithHeaderParser(httpclient.ParseAnthropicHeaders)),
	}
}

func (p *anthropicProvider) Kind() string                  { return p.kind }
func (p *anthropicProvider) SupportedModels() []string     { return p.models }
func (p *anthropicProvider) SupportsFunctionCalling() bool { return true }

type anthropicContentBlock struct {
	Type      string                 `json:"type"`
	Text      string                 `json:"text,omitempty"`
	ID        string                 `json:"id,omitempty"`
	Name      string                 `json:"name,omitempty"`
	Input     map[string]interface{} `json:"input,omitempty"`
	ToolUseID string                 `json:"tool_use_id,omitempty"`
	Content   string                 `json:"content,omitempty"`
	IsError   bool                   `json:"is_error,omitempty"`
}

type anthropicMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string or []anthropicContentBlock
}

type anthropicTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
	ToolChoice  interface{}        `json:"tool_choice,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
	TopP        *float64           `json:"top_p,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	StopSeqs    []string           `json:"stop_sequences,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicResponse struct {
	Model      string                  `json:"model"`
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// anthropicStreamEvent covers the subset of SSE event types this adapter
// interprets: content_block_start/delta (text_delta, input_json_delta),
// message_delta (stop_reason, usage), and message_stop as terminator.
type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
	Delta struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta"`
	ContentBlock struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func splitSystemPrompt(messages []Message) (system string, rest []Message) {
	var systemParts []string
	for _, m := range messages {
		if m.Role == "system" {
			systemParts = append(systemParts, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(systemParts, "\n\n"), rest
}

func toAnthropicMessages(messages []Message) []anthropicMessage {
	out := make([]anthropicMessage, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "tool":
			out = append(out, anthropicMessage{
				Role: "user",
				Content: []anthropicContentBlock{{
					Type:      "tool_result",
					ToolUseID: m.ToolCallID,
					Content:   m.Content,
				}},
			})
		case "assistant":
			if len(m.ToolCalls) == 0 {
				out = append(out, anthropicMessage{Role: "assistant", Content: m.Content})
				continue
			}
			blocks := []anthropicContentBlock{}
			if m.Content != "" {
				blocks = append(blocks, anthropicContentBlock{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, anthropicContentBlock{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Name,
					Input: tc.Arguments,
				})
			}
			out = append(out, anthropicMessage{Role: "assistant", Content: blocks})
		default:
			out = append(out, anthropicMessage{Role: "user", Content: m.Content})
		}
	}
	return out
}

func toAnthropicTools(tools []ToolDefinition) []anthropicTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]anthropicTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, anthropicTool{Name: t.Name, Description: t.Description, InputSchema: t.Parameters})
	}
	return out
}

func buildAnthropicRequest(req ChatRequest, stream bool) anthropicRequest {
	system, rest := splitSystemPrompt(req.Messages)
	maxTokens := req.Sampling.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	body := anthropicRequest{
		Model:       req.Sampling.Model,
		System:      system,
		Messages:    toAnthropicMessages(rest),
		Tools:       toAnthropicTools(req.Tools),
		Temperature: req.Sampling.Temperature,
		TopP:        req.Sampling.TopP,
		MaxTokens:   maxTokens,
		StopSeqs:    req.Sampling.Stop,
		Stream:      stream,
	}
	switch req.Sampling.ToolChoice {
	case ToolChoiceNone:
		body.ToolChoice = map[string]string{"type": "none"}
	case ToolChoiceSpecific:
		body.ToolChoice = map[string]string{"type": "tool", "name": req.Sampling.ToolChoiceName}
	case ToolChoiceAuto:
		body.ToolChoice = map[string]string{"type": "auto"}
	}
	return body
}

func (p *anthropicProvider) newHTTPRequest(ctx context.Context, body interface{}) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")
	return httpReq, nil
}

func (p *anthropicProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	httpReq, err := p.newHTTPRequest(ctx, buildAnthropicRequest(req, false))
	if err != nil {
		return ChatResponse{}, &TransportError{ProviderKind: p.kind, Err: err}
	}

	resp, err := p.http.Do(httpReq)
	if err != nil && resp == nil {
		return ChatResponse{}, classifyHTTPErr(p.kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ChatResponse{}, providerHTTPError(p.kind, resp)
	}

	var parsed anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ChatResponse{}, &ProviderError{ProviderKind: p.kind, Message: "failed to decode response", Err: err}
	}

	var text string
	var calls []ToolCall
	for _, block := range parsed.Content {
		switch block.Type {
		case "text":
			text += block.Text
		case "tool_use":
			raw, _ := json.Marshal(block.Input)
			calls = append(calls, ToolCall{ID: block.ID, Name: block.Name, Arguments: block.Input, RawArgs: string(raw)})
		}
	}

	return ChatResponse{
		Content:      text,
		ToolCalls:    calls,
		FinishReason: parsed.StopReason,
		Model:        parsed.Model,
		Usage: Usage{
			PromptTokens:     parsed.Usage.InputTokens,
			CompletionTokens: parsed.Usage.OutputTokens,
			TotalTokens:      parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		},
	}, nil
}

func (p *anthropicProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	httpReq, err := p.newHTTPRequest(ctx, buildAnthropicRequest(req, true))
	if err != nil {
		return nil, &TransportError{ProviderKind: p.kind, Err: err}
	}

	resp, err := p.http.Do(httpReq)
	if err != nil && resp == nil {
		return nil, classifyHTTPErr(p.kind, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, providerHTTPError(p.kind, resp)
	}

	out := make(chan StreamChunk)
	go func() {
		defer resp.Body.Close()
		defer close(out)

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		// Anthropic assigns each content block a fixed index within the
		// message; tool_use blocks map 1-to-1 onto our positional
		// accumulator contract.
		toolUseIndexes := map[int]bool{}
		first := true

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" {
				continue
			}

			var event anthropicStreamEvent
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				out <- StreamChunk{Err: &ProviderError{ProviderKind: p.kind, Message: "failed to decode stream event", Err: err}}
				return
			}

			switch event.Type {
			case "content_block_start":
				if event.ContentBlock.Type == "tool_use" {
					toolUseIndexes[event.Index] = true
					out <- StreamChunk{
						IsFirst:       first,
						ToolCallDelta: &ToolCallDelta{Index: event.Index, ID: event.ContentBlock.ID, Name: event.ContentBlock.Name},
					}
					first = false
				}
			case "content_block_delta":
				switch event.Delta.Type {
				case "text_delta":
					out <- StreamChunk{ContentDelta: event.Delta.Text, IsFirst: first}
					first = false
				case "input_json_delta":
					out <- StreamChunk{ToolCallDelta: &ToolCallDelta{Index: event.Index, ArgumentsJSON: event.Delta.PartialJSON}}
				}
			case "message_delta":
				if event.Delta.StopReason != "" {
					out <- StreamChunk{
						FinishReason: event.Delta.StopReason,
						Usage: &Usage{
							CompletionTokens: event.Usage.OutputTokens,
							TotalTokens:      event.Usage.OutputTokens,
						},
					}
				}
			case "message_stop":
				out <- StreamChunk{IsLast: true}
				return
			}
		}
		if err := scanner.Err(); err != nil {
			out <- StreamChunk{Err: &TransportError{ProviderKind: p.kind, Err: err}}
		}
	}()

	return out, nil
}
