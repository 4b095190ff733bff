package llms

import "context"

// Provider is the adapter contract every C1 backend implements: a kind id,
// a supported model list, and whether it supports function calling (§4.1
// "all currently specified adapters do").
type Provider interface {
	Kind() string
	SupportedModels() []string
	SupportsFunctionCalling() bool

	// Chat performs a blocking chat call.
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)

	// ChatStream returns a channel of StreamChunk. The channel is closed
	// when the stream ends (success, error, or context cancellation); a
	// chunk with Err set precedes the final close on failure.
	ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error)
}
