// Package llms implements the provider gateway (C1): a neutral chat API
// that hides the wire differences between OpenAI-compatible and Anthropic
// endpoints, including the shape of tool calls and the presence or absence
// of a separate reasoning channel.
package llms

import "time"

// ============================================================================
// COMMON FUNCTION CALLING TYPES
// Shared across OpenAI-compatible and Anthropic providers
// ============================================================================

// Message is the universal chat message shape (§3 DATA MODEL). A tool-role
// message must reference a ToolCall id that appeared in an earlier
// assistant message in the same conversation; C2 enforces that invariant,
// not this package.
type Message struct {
	Role       string     `json:"role"`                   // "user", "assistant", "system", "tool"
	Content    string     `json:"content,omitempty"`      // Text content
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // Tool calls (from assistant)
	ToolCallID string     `json:"tool_call_id,omitempty"` // Tool call ID (for tool role)
	Name       string     `json:"name,omitempty"`         // Tool name (for tool role)
}

// ToolDefinition represents a tool/function that can be called
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"` // JSON Schema
}

// ToolCall represents a tool call requested by the LLM. Id is unique within
// a single assistant turn (§3 invariant).
type ToolCall struct {
	ID        string                 `json:"id"`                 // Unique identifier for this call
	Name      string                 `json:"name"`               // Tool name
	Arguments map[string]interface{} `json:"arguments"`          // Parsed arguments
	RawArgs   string                 `json:"raw_args,omitempty"` // Original JSON string, or the sole value of a `_raw_args` fallback
}

// ToolChoice is the sampling config's tool-choice policy (§3 ChatRequest).
type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceNone     ToolChoice = "none"
	ToolChoiceSpecific ToolChoice = "specific"
)

// SamplingConfig carries model selection, decoding parameters, and provider
// selection hints for a ChatRequest (§4.1 provider selection priority).
type SamplingConfig struct {
	Model          string     `json:"model"`
	Temperature    *float64   `json:"temperature,omitempty"`
	TopP           *float64   `json:"top_p,omitempty"`
	MaxTokens      int        `json:"max_tokens,omitempty"`
	Stop           []string   `json:"stop,omitempty"`
	ToolChoice     ToolChoice `json:"tool_choice,omitempty"`
	ToolChoiceName string     `json:"tool_choice_name,omitempty"` // when ToolChoice == specific
	ProviderID     string     `json:"provider_id,omitempty"`      // explicit selection, priority 1
	ProviderKind   string     `json:"provider_kind,omitempty"`    // explicit selection, priority 2
}

// ChatRequest is the neutral form consumed by a Provider's Chat/ChatStream.
type ChatRequest struct {
	Messages []Message        `json:"messages"`
	Tools    []ToolDefinition `json:"tools,omitempty"`
	Sampling SamplingConfig   `json:"sampling"`
	Stream   bool             `json:"stream,omitempty"`
}

// Usage carries token accounting from a provider response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// ChatResponse is the neutral response of a blocking Chat call.
type ChatResponse struct {
	Content      string     `json:"content,omitempty"`
	Reasoning    string     `json:"reasoning,omitempty"` // hidden chain-of-thought channel
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	FinishReason string     `json:"finish_reason,omitempty"`
	Model        string     `json:"model,omitempty"`
	Usage        Usage      `json:"usage,omitempty"`
}

// ToolCallDelta is a single positional fragment of a streaming tool call.
// ID is set only the first time a position is observed; Name and
// ArgumentsJSON are fragments the caller accumulates by Index.
type ToolCallDelta struct {
	Index         int    `json:"index"`
	ID            string `json:"id,omitempty"`
	Name          string `json:"name,omitempty"`
	ArgumentsJSON string `json:"arguments_json,omitempty"`
}

// StreamChunk is one element of a ChatStream sequence (§3
// ChatResponse/StreamChunk). Any subset of fields may be populated.
type StreamChunk struct {
	ContentDelta   string         `json:"content_delta,omitempty"`
	ReasoningDelta string         `json:"reasoning_delta,omitempty"`
	ToolCallDelta  *ToolCallDelta `json:"tool_call_delta,omitempty"`
	FinishReason   string         `json:"finish_reason,omitempty"`
	IsFirst        bool           `json:"is_first,omitempty"`
	IsLast         bool           `json:"is_last,omitempty"`
	Usage          *Usage         `json:"usage,omitempty"`
	Err            error          `json:"-"`

	// Phase identifies which C2 node's Chat call produced this chunk when
	// stream-capture mode is active (e.g. "plan", "think"), set from the
	// WithChatPhase tag on the calling context. Empty when the caller never
	// tagged a phase. A capture consumer uses this to tell a planner's
	// silently-accumulated JSON payload apart from a think node's content
	// that belongs on the wire (§4.2.1).
	Phase string `json:"phase,omitempty"`
}

// timeout is C1's fixed per-call timeout (§4.1: "Timeout fires at 120s per
// call; a timeout is surfaced as ProviderError(timeout)").
const timeout = 120 * time.Second

// ============================================================================
// STRUCTURED OUTPUT TYPES
// Provider-agnostic structured output configuration
// ============================================================================

// StructuredOutputConfig represents structured output configuration
// that works across all providers (Anthropic, OpenAI, Gemini)
type StructuredOutputConfig struct {
	// Format specifies the output format: "json", "xml", "enum"
	Format string `json:"format,omitempty" yaml:"format,omitempty"`

	// Schema is the JSON schema for structured output (for format="json")
	// Can be provided as a JSON string or map
	Schema interface{} `json:"schema,omitempty" yaml:"schema,omitempty"`

	// Enum values (for format="enum")
	Enum []string `json:"enum,omitempty" yaml:"enum,omitempty"`

	// Prefill string for Anthropic (optional, Anthropic-specific optimization)
	Prefill string `json:"prefill,omitempty" yaml:"prefill,omitempty"`

	// PropertyOrdering for Gemini (optional, Gemini-specific optimization)
	PropertyOrdering []string `json:"property_ordering,omitempty" yaml:"property_ordering,omitempty"`
}

// JSONSchema represents a JSON Schema (simplified for common use)
type JSONSchema struct {
	Type                 string                `json:"type"`
	Properties           map[string]JSONSchema `json:"properties,omitempty"`
	Items                *JSONSchema           `json:"items,omitempty"`
	Required             []string              `json:"required,omitempty"`
	Enum                 []string              `json:"enum,omitempty"`
	Description          string                `json:"description,omitempty"`
	PropertyOrdering     []string              `json:"propertyOrdering,omitempty"`     // Gemini-specific
	AdditionalProperties *bool                 `json:"additionalProperties,omitempty"` // JSON Schema standard
}

// ConvertToolInfoToDefinition converts from tools package format
func ConvertToolInfoToDefinition(name, description string, parameters []interface{}) ToolDefinition {
	// Convert parameters to JSON Schema format
	schema := map[string]interface{}{
		"type":       "object",
		"properties": make(map[string]interface{}),
		"required":   []string{},
	}

	properties := schema["properties"].(map[string]interface{})
	required := []string{}

	// Parse parameters (assuming they're in a specific format)
	for _, param := range parameters {
		if p, ok := param.(map[string]interface{}); ok {
			paramName := p["name"].(string)
			paramType := p["type"].(string)
			paramDesc := p["description"].(string)
			isRequired := p["required"].(bool)

			properties[paramName] = map[string]interface{}{
				"type":        paramType,
				"description": paramDesc,
			}

			if isRequired {
				required = append(required, paramName)
			}
		}
	}

	schema["required"] = required

	return ToolDefinition{
		Name:        name,
		Description: description,
		Parameters:  schema,
	}
}
