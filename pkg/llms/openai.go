package llms

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/agentcore/orchestrator/pkg/config"
	"github.com/agentcore/orchestrator/pkg/httpclient"
)

// openAICompatibleProvider speaks the POST {base}/chat/completions wire
// shape shared by openai, deepseek, qwen, moonshot, and zhipu (§4.1).
// No retries are attempted here: C1 owns a single attempt per call, C2
// owns iteration.
type openAICompatibleProvider struct {
	kind    string
	baseURL string
	apiKey  string
	models  []string
	http    *httpclient.Client
}

func newOpenAICompatibleProvider(cfg *config.LLMProviderConfig) *openAICompatibleProvider {
	models := cfg.Models
	if len(models) == 0 && cfg.Model != "" {
		models = []string{cfg.Model}
	}
	return &openAICompatibleProvider{
		kind:    string(cfg.Kind),
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		models:  models,
		http:    httpclient.New(httpclient.WithMaxRetries(0)),
	}
}

func (p *openAICompatibleProvider) Kind() string                  { return p.kind }
func (p *openAICompatibleProvider) SupportedModels() []string     { return p.models }
func (p *openAICompatibleProvider) SupportsFunctionCalling() bool { return true }

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	Name       string           `json:"name,omitempty"`
}

type openAIToolCall struct {
	Index    *int               `json:"index,omitempty"`
	ID       string             `json:"id,omitempty"`
	Type     string             `json:"type,omitempty"`
	Function openAIToolCallFunc `json:"function"`
}

type openAIToolCallFunc struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

type openAITool struct {
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Tools       []openAITool    `json:"tools,omitempty"`
	ToolChoice  interface{}     `json:"tool_choice,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Stop        []string        `json:"stop,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content          string           `json:"content"`
			ReasoningContent string           `json:"reasoning_content"`
			ToolCalls        []openAIToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type openAIStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content          string           `json:"content"`
			ReasoningContent string           `json:"reasoning_content"`
			ToolCalls        []openAIToolCall `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func toOpenAIMessages(messages []Message) []openAIMessage {
	out := make([]openAIMessage, 0, len(messages))
	for _, m := range messages {
		om := openAIMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID, Name: m.Name}
		for _, tc := range m.ToolCalls {
			args := tc.RawArgs
			if args == "" && tc.Arguments != nil {
				b, _ := json.Marshal(tc.Arguments)
				args = string(b)
			}
			om.ToolCalls = append(om.ToolCalls, openAIToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: openAIToolCallFunc{
					Name:      tc.Name,
					Arguments: args,
				},
			})
		}
		out = append(out, om)
	}
	return out
}

func toOpenAITools(tools []ToolDefinition) []openAITool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openAITool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openAITool{
			Type: "function",
			Function: openAIFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

func buildOpenAIRequest(req ChatRequest, stream bool) openAIRequest {
	body := openAIRequest{
		Model:       req.Sampling.Model,
		Messages:    toOpenAIMessages(req.Messages),
		Tools:       toOpenAITools(req.Tools),
		Temperature: req.Sampling.Temperature,
		TopP:        req.Sampling.TopP,
		MaxTokens:   req.Sampling.MaxTokens,
		Stop:        req.Sampling.Stop,
		Stream:      stream,
	}
	switch req.Sampling.ToolChoice {
	case ToolChoiceNone:
		body.ToolChoice = "none"
	case ToolChoiceSpecific:
		body.ToolChoice = map[string]interface{}{
			"type":     "function",
			"function": map[string]string{"name": req.Sampling.ToolChoiceName},
		}
	case ToolChoiceAuto:
		body.ToolChoice = "auto"
	}
	return body
}

func (p *openAICompatibleProvider) newHTTPRequest(ctx context.Context, body interface{}) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	return httpReq, nil
}

func (p *openAICompatibleProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	httpReq, err := p.newHTTPRequest(ctx, buildOpenAIRequest(req, false))
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

	var parsed openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ChatResponse{}, &ProviderError{ProviderKind: p.kind, Message: "failed to decode response", Err: err}
	}
	if len(parsed.Choices) == 0 {
		return ChatResponse{}, &ProviderError{ProviderKind: p.kind, Message: "response had no choices"}
	}

	choice := parsed.Choices[0]
	return ChatResponse{
		Content:      choice.Message.Content,
		Reasoning:    choice.Message.ReasoningContent,
		ToolCalls:    fromOpenAIToolCalls(choice.Message.ToolCalls),
		FinishReason: choice.FinishReason,
		Model:        parsed.Model,
		Usage: Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}, nil
}

func fromOpenAIToolCalls(calls []openAIToolCall) []ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]ToolCall, 0, len(calls))
	for _, c := range calls {
		var args map[string]interface{}
		if err := json.Unmarshal([]byte(c.Function.Arguments), &args); err != nil {
			args = map[string]interface{}{"_raw_args": c.Function.Arguments}
		}
		out = append(out, ToolCall{ID: c.ID, Name: c.Function.Name, Arguments: args, RawArgs: c.Function.Arguments})
	}
	return out
}

func (p *openAICompatibleProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	httpReq, err := p.newHTTPRequest(ctx, buildOpenAIRequest(req, true))
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
		first := true

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}

			var chunk openAIStreamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				out <- StreamChunk{Err: &ProviderError{ProviderKind: p.kind, Message: "failed to decode stream chunk", Err: err}}
				return
			}
			if len(chunk.Choices) == 0 {
				continue
			}

			choice := chunk.Choices[0]
			var usage *Usage
			if chunk.Usage != nil {
				usage = &Usage{
					PromptTokens:     chunk.Usage.PromptTokens,
					CompletionTokens: chunk.Usage.CompletionTokens,
					TotalTokens:      chunk.Usage.TotalTokens,
				}
			}
			finishReason := ""
			isLast := false
			if choice.FinishReason != nil {
				finishReason = *choice.FinishReason
				isLast = true
			}

			if len(choice.Delta.ToolCalls) == 0 {
				out <- StreamChunk{
					ContentDelta:   choice.Delta.Content,
					ReasoningDelta: choice.Delta.ReasoningContent,
					FinishReason:   finishReason,
					IsFirst:        first,
					IsLast:         isLast,
					Usage:          usage,
				}
				first = false
				continue
			}

			for i, tc := range choice.Delta.ToolCalls {
				idx := 0
				if tc.Index != nil {
					idx = *tc.Index
				}
				delta := ToolCallDelta{Index: idx, ID: tc.ID, Name: tc.Function.Name, ArgumentsJSON: tc.Function.Arguments}
				sc := StreamChunk{ToolCallDelta: &delta, IsFirst: first}
				first = false
				if i == len(choice.Delta.ToolCalls)-1 {
					sc.FinishReason = finishReason
					sc.IsLast = isLast
					sc.Usage = usage
				}
				out <- sc
			}
		}
		if err := scanner.Err(); err != nil {
			out <- StreamChunk{Err: &TransportError{ProviderKind: p.kind, Err: err}}
		}
	}()

	return out, nil
}

func classifyHTTPErr(kind string, err error) error {
	return &TransportError{ProviderKind: kind, Err: err}
}

func providerHTTPError(kind string, resp *http.Response) error {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	msg := body.Error.Message
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return &ProviderError{ProviderKind: kind, StatusCode: resp.StatusCode, Message: msg}
}
