package llms

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentcore/orchestrator/pkg/config"
	"google.golang.org/genai"
)

// geminiProvider speaks the Google genai SDK directly rather than a
// hand-rolled HTTP client: tool calls are FunctionCall parts with no
// provider-issued id, so we synthesize one from name and position (§4.1).
type geminiProvider struct {
	kind   string
	model  string
	models []string
	client *genai.Client
}

func newGeminiProvider(cfg *config.LLMProviderConfig) *geminiProvider {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		// Registration only builds the adapter; the first Chat/ChatStream
		// call surfaces a TransportError instead of failing process startup.
		client = nil
	}
	models := cfg.Models
	if len(models) == 0 && cfg.Model != "" {
		models = []string{cfg.Model}
	}
	return &geminiProvider{
		kind:   string(cfg.Kind),
		model:  cfg.Model,
		models: models,
		client: client,
	}
}

func (p *geminiProvider) Kind() string                  { return p.kind }
func (p *geminiProvider) SupportedModels() []string     { return p.models }
func (p *geminiProvider) SupportsFunctionCalling() bool { return true }

func toGeminiContents(messages []Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			continue
		}
		content := &genai.Content{}
		switch m.Role {
		case "assistant":
			content.Role = genai.RoleModel
		default:
			content.Role = genai.RoleUser
		}
		if m.Content != "" {
			content.Parts = append(content.Parts, &genai.Part{Text: m.Content})
		}
		for _, tc := range m.ToolCalls {
			content.Parts = append(content.Parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{Name: tc.Name, Args: tc.Arguments},
			})
		}
		if m.Role == "tool" {
			var response map[string]interface{}
			if err := json.Unmarshal([]byte(m.Content), &response); err != nil {
				response = map[string]interface{}{"result": m.Content}
			}
			content.Parts = append(content.Parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{Name: m.Name, Response: response},
			})
		}
		if len(content.Parts) > 0 {
			out = append(out, content)
		}
	}
	return out
}

func systemInstruction(messages []Message) *genai.Content {
	var system string
	for _, m := range messages {
		if m.Role == "system" {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
		}
	}
	if system == "" {
		return nil
	}
	return &genai.Content{Parts: []*genai.Part{{Text: system}}}
}

func toGeminiTools(tools []ToolDefinition) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  jsonSchemaToGenaiSchema(t.Parameters),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// jsonSchemaToGenaiSchema covers the subset of JSON Schema our tool
// parameter maps actually use: object/string/number/integer/boolean/array
// with nested properties and a required list.
func jsonSchemaToGenaiSchema(raw map[string]interface{}) *genai.Schema {
	if raw == nil {
		return &genai.Schema{Type: genai.TypeObject}
	}
	schema := &genai.Schema{}
	if t, ok := raw["type"].(string); ok {
		switch t {
		case "object":
			schema.Type = genai.TypeObject
		case "array":
			schema.Type = genai.TypeArray
		case "string":
			schema.Type = genai.TypeString
		case "number":
			schema.Type = genai.TypeNumber
		case "integer":
			schema.Type = genai.TypeInteger
		case "boolean":
			schema.Type = genai.TypeBoolean
		default:
			schema.Type = genai.TypeObject
		}
	} else {
		schema.Type = genai.TypeObject
	}
	if desc, ok := raw["description"].(string); ok {
		schema.Description = desc
	}
	if props, ok := raw["properties"].(map[string]interface{}); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, v := range props {
			if sub, ok := v.(map[string]interface{}); ok {
				schema.Properties[name] = jsonSchemaToGenaiSchema(sub)
			}
		}
	}
	if req, ok := raw["required"].([]interface{}); ok {
		for _, r := range req {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	if items, ok := raw["items"].(map[string]interface{}); ok {
		schema.Items = jsonSchemaToGenaiSchema(items)
	}
	return schema
}

func buildGeminiConfig(req ChatRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction(req.Messages),
		Tools:             toGeminiTools(req.Tools),
	}
	if req.Sampling.Temperature != nil {
		temp := float32(*req.Sampling.Temperature)
		cfg.Temperature = &temp
	}
	if req.Sampling.TopP != nil {
		topP := float32(*req.Sampling.TopP)
		cfg.TopP = &topP
	}
	if req.Sampling.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.Sampling.MaxTokens)
	}
	if req.Sampling.ToolChoice == ToolChoiceNone {
		cfg.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeNone},
		}
	}
	return cfg
}

func (p *geminiProvider) modelOrDefault(model string) string {
	if model != "" {
		return model
	}
	return p.model
}

func (p *geminiProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if p.client == nil {
		return ChatResponse{}, &TransportError{ProviderKind: p.kind, Err: fmt.Errorf("gemini client not initialized")}
	}
	model := p.modelOrDefault(req.Sampling.Model)
	resp, err := p.client.Models.GenerateContent(ctx, model, toGeminiContents(req.Messages), buildGeminiConfig(req))
	if err != nil {
		return ChatResponse{}, &ProviderError{ProviderKind: p.kind, Message: err.Error(), Err: err}
	}

	var text string
	var calls []ToolCall
	var finish string
	callIndex := 0
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		if candidate.FinishReason != "" {
			finish = string(candidate.FinishReason)
		}
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				text += part.Text
			}
			if part.FunctionCall != nil {
				raw, _ := json.Marshal(part.FunctionCall.Args)
				calls = append(calls, ToolCall{
					ID:        fmt.Sprintf("%s_%d", part.FunctionCall.Name, callIndex),
					Name:      part.FunctionCall.Name,
					Arguments: part.FunctionCall.Args,
					RawArgs:   string(raw),
				})
				callIndex++
			}
		}
	}

	usage := Usage{}
	if resp.UsageMetadata != nil {
		usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	return ChatResponse{
		Content:      text,
		ToolCalls:    calls,
		FinishReason: finish,
		Model:        model,
		Usage:        usage,
	}, nil
}

func (p *geminiProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	if p.client == nil {
		return nil, &TransportError{ProviderKind: p.kind, Err: fmt.Errorf("gemini client not initialized")}
	}
	model := p.modelOrDefault(req.Sampling.Model)
	streamIter := p.client.Models.GenerateContentStream(ctx, model, toGeminiContents(req.Messages), buildGeminiConfig(req))

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		first := true
		callIndex := 0

		for resp, err := range streamIter {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if err != nil {
				out <- StreamChunk{Err: &ProviderError{ProviderKind: p.kind, Message: err.Error(), Err: err}}
				return
			}
			if resp == nil {
				continue
			}
			for _, candidate := range resp.Candidates {
				if candidate.Content == nil {
					continue
				}
				for _, part := range candidate.Content.Parts {
					if part.Text != "" {
						out <- StreamChunk{ContentDelta: part.Text, IsFirst: first}
						first = false
					}
					if part.FunctionCall != nil {
						raw, _ := json.Marshal(part.FunctionCall.Args)
						out <- StreamChunk{
							IsFirst: first,
							ToolCallDelta: &ToolCallDelta{
								Index:         callIndex,
								ID:            fmt.Sprintf("%s_%d", part.FunctionCall.Name, callIndex),
								Name:          part.FunctionCall.Name,
								ArgumentsJSON: string(raw),
							},
						}
						first = false
						callIndex++
					}
				}
				if candidate.FinishReason != "" {
					var usage *Usage
					if resp.UsageMetadata != nil {
						usage = &Usage{
							PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
							CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
							TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
						}
					}
					out <- StreamChunk{FinishReason: string(candidate.FinishReason), Usage: usage}
				}
			}
		}
		out <- StreamChunk{IsLast: true}
	}()

	return out, nil
}
