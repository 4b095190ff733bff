package llms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/agentcore/orchestrator/pkg/config"
	"github.com/agentcore/orchestrator/pkg/registry"
)

// Gateway is the provider gateway (C1): it holds one Provider adapter per
// configured provider record and implements the selection priority and
// stream-capture mode from §4.1.
type Gateway struct {
	providers *registry.BaseRegistry[Provider]
	configs   map[string]*config.LLMProviderConfig // by provider record id
}

// NewGateway creates an empty Gateway.
func NewGateway() *Gateway {
	return &Gateway{
		providers: registry.NewBaseRegistry[Provider](),
		configs:   make(map[string]*config.LLMProviderConfig),
	}
}

// Register builds and registers a Provider adapter from a configured
// provider record. id is the provider record's id (used for explicit
// provider-id selection, §4.1 priority 1).
func (g *Gateway) Register(id string, cfg *config.LLMProviderConfig) error {
	if cfg == nil {
		return fmt.Errorf("llm provider config cannot be nil")
	}
	provider, err := newAdapter(cfg)
	if err != nil {
		return fmt.Errorf("failed to build provider %q: %w", id, err)
	}
	if err := g.providers.Register(id, provider); err != nil {
		return fmt.Errorf("failed to register provider %q: %w", id, err)
	}
	g.configs[id] = cfg
	return nil
}

// newAdapter constructs the Provider implementation for cfg.Kind.
func newAdapter(cfg *config.LLMProviderConfig) (Provider, error) {
	switch {
	case cfg.Kind == config.LLMProviderDemo:
		return newDemoProvider(cfg), nil
	case cfg.Kind == config.LLMProviderAnthropic:
		return newAnthropicProvider(cfg), nil
	case cfg.Kind == config.LLMProviderGemini:
		return newGeminiProvider(cfg), nil
	case cfg.Kind.IsOpenAICompatible():
		return newOpenAICompatibleProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported provider kind %q", cfg.Kind)
	}
}

// selection finds the (Provider, record-id) pair matching req per §4.1's
// priority order: explicit id, then explicit kind, then model-name
// inference. ownerID, when non-empty, additionally restricts candidates
// to records owned by that caller.
func (g *Gateway) selection(req ChatRequest, ownerID string) (Provider, string, error) {
	if id := req.Sampling.ProviderID; id != "" {
		cfg, ok := g.configs[id]
		if !ok || !cfg.IsSelectable() || !ownerMatches(cfg, ownerID) {
			return nil, "", &ProviderNotConfiguredError{Selector: id}
		}
		provider, _ := g.providers.Get(id)
		return provider, id, nil
	}

	kind := config.LLMProviderKind(req.Sampling.ProviderKind)
	if kind == "" {
		kind = config.InferProviderKind(req.Sampling.Model)
	}

	id, ok := g.firstSelectableByKind(kind, ownerID)
	if !ok {
		return nil, "", &ProviderNotConfiguredError{Selector: string(kind)}
	}
	provider, _ := g.providers.Get(id)
	return provider, id, nil
}

func (g *Gateway) firstSelectableByKind(kind config.LLMProviderKind, ownerID string) (string, bool) {
	for id, cfg := range g.configs {
		if cfg.Kind != kind {
			continue
		}
		if !cfg.IsSelectable() {
			continue
		}
		if !ownerMatches(cfg, ownerID) {
			continue
		}
		return id, true
	}
	return "", false
}

func ownerMatches(cfg *config.LLMProviderConfig, ownerID string) bool {
	if ownerID == "" || cfg.OwnerID == "" {
		return true
	}
	return cfg.OwnerID == ownerID
}

// fitContext trims messages to the selected provider record's configured
// context window, dropping the oldest non-system messages first. A record
// with no configured window (ContextWindowTokens == 0) is returned
// unmodified.
func (g *Gateway) fitContext(messages []Message, providerID, model string) []Message {
	cfg, ok := g.configs[providerID]
	if !ok || cfg.ContextWindowTokens <= 0 {
		return messages
	}
	counter := newTokenCounter(model)
	fitted := counter.fitWithinLimit(messages, cfg.ContextWindowTokens)
	if len(fitted) < len(messages) {
		slog.Debug("llms: trimmed conversation to fit context window",
			"provider_id", providerID, "dropped", len(messages)-len(fitted), "window", cfg.ContextWindowTokens)
	}
	return fitted
}

// Chat performs a blocking chat call, implementing stream-capture mode
// transparently when the context carries a capture queue (§4.1).
func (g *Gateway) Chat(ctx context.Context, req ChatRequest, ownerID string) (ChatResponse, error) {
	provider, providerID, err := g.selection(req, ownerID)
	if err != nil {
		return ChatResponse{}, err
	}
	if !modelSupported(provider, req.Sampling.Model) {
		return ChatResponse{}, &ModelNotSupportedError{ProviderKind: provider.Kind(), Model: req.Sampling.Model}
	}
	req.Messages = g.fitContext(req.Messages, providerID, req.Sampling.Model)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	slog.Debug("llms: chat", "provider_id", providerID, "provider_kind", provider.Kind(), "model", req.Sampling.Model)

	if queue, ok := captureQueue(ctx); ok {
		return g.chatViaStream(ctx, provider, req, queue)
	}

	resp, err := provider.Chat(ctx, req)
	if err != nil {
		return ChatResponse{}, classifyError(provider.Kind(), err)
	}
	return resp, nil
}

// ChatStream returns the provider's chunked stream directly.
func (g *Gateway) ChatStream(ctx context.Context, req ChatRequest, ownerID string) (<-chan StreamChunk, error) {
	provider, providerID, err := g.selection(req, ownerID)
	if err != nil {
		return nil, err
	}
	if !modelSupported(provider, req.Sampling.Model) {
		return nil, &ModelNotSupportedError{ProviderKind: provider.Kind(), Model: req.Sampling.Model}
	}
	req.Messages = g.fitContext(req.Messages, providerID, req.Sampling.Model)

	slog.Debug("llms: chat_stream", "provider_id", providerID, "provider_kind", provider.Kind(), "model", req.Sampling.Model)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	chunks, err := provider.ChatStream(ctx, req)
	if err != nil {
		cancel()
		return nil, classifyError(provider.Kind(), err)
	}

	out := make(chan StreamChunk)
	go func() {
		defer cancel()
		defer close(out)
		for chunk := range chunks {
			out <- chunk
		}
	}()
	return out, nil
}

// chatViaStream implements stream-capture mode: it drives ChatStream
// internally, forwards every chunk to queue, and aggregates content,
// reasoning, tool-call positions, and finish reason into a composed
// non-streaming ChatResponse (§4.1 "Stream-capture mode").
func (g *Gateway) chatViaStream(ctx context.Context, provider Provider, req ChatRequest, queue chan<- StreamChunk) (ChatResponse, error) {
	chunks, err := provider.ChatStream(ctx, req)
	if err != nil {
		return ChatResponse{}, classifyError(provider.Kind(), err)
	}

	acc := newToolCallAccumulator()
	var content, reasoning, finish string
	var usage Usage
	phase := chatPhase(ctx)

	for chunk := range chunks {
		chunk.Phase = phase
		select {
		case queue <- chunk:
		case <-ctx.Done():
			// §5: the C1↔C5 queue is bounded and producers block on
			// backpressure; only a canceled turn may abandon the send.
			return ChatResponse{}, ctx.Err()
		}

		if chunk.Err != nil {
			return ChatResponse{}, classifyError(provider.Kind(), chunk.Err)
		}
		content += chunk.ContentDelta
		reasoning += chunk.ReasoningDelta
		if chunk.ToolCallDelta != nil {
			acc.accumulate(*chunk.ToolCallDelta)
		}
		if chunk.FinishReason != "" {
			finish = chunk.FinishReason
		}
		if chunk.Usage != nil {
			usage = *chunk.Usage
		}
	}

	return ChatResponse{
		Content:      content,
		Reasoning:    reasoning,
		ToolCalls:    acc.finalize(),
		FinishReason: finish,
		Model:        req.Sampling.Model,
		Usage:        usage,
	}, nil
}

func modelSupported(provider Provider, model string) bool {
	models := provider.SupportedModels()
	if len(models) == 0 {
		return true
	}
	for _, m := range models {
		if m == model {
			return true
		}
	}
	return false
}

// captureContextKey is the context key under which a stream-capture queue
// is attached by WithStreamCapture.
type captureContextKey struct{}

// WithStreamCapture attaches a process-local bounded queue to ctx; a
// subsequent Chat call on that context runs in stream-capture mode,
// forwarding every chunk to queue while still returning a composed
// response (§4.1). Used by a nested planner to surface reasoning without
// duplicating its chat path.
func WithStreamCapture(ctx context.Context, queue chan<- StreamChunk) context.Context {
	return context.WithValue(ctx, captureContextKey{}, queue)
}

// chatPhaseContextKey is the context key under which a calling node tags
// its Chat call with WithChatPhase.
type chatPhaseContextKey struct{}

// WithChatPhase tags ctx with the name of the C2 node issuing the Chat
// call (e.g. "plan", "think"), so a stream-capture consumer can tell a
// planner's silently-accumulated content apart from a think node's
// wire-visible content (§4.2.1).
func WithChatPhase(ctx context.Context, phase string) context.Context {
	return context.WithValue(ctx, chatPhaseContextKey{}, phase)
}

func chatPhase(ctx context.Context) string {
	phase, _ := ctx.Value(chatPhaseContextKey{}).(string)
	return phase
}

func captureQueue(ctx context.Context) (chan<- StreamChunk, bool) {
	q, ok := ctx.Value(captureContextKey{}).(chan<- StreamChunk)
	return q, ok
}

// toolCallAccumulator implements §4.1's streaming tool-call accumulation
// contract: per position, accumulate id (set once), name (concatenation),
// and arguments-JSON (concatenation); emit a parsed ToolCall if the
// arguments form valid JSON, otherwise a `{"_raw_args": ...}` fallback.
type toolCallAccumulator struct {
	order []int
	byPos map[int]*accumulatedCall
}

type accumulatedCall struct {
	id   string
	name string
	args string
}

func newToolCallAccumulator() *toolCallAccumulator {
	return &toolCallAccumulator{byPos: make(map[int]*accumulatedCall)}
}

func (a *toolCallAccumulator) accumulate(delta ToolCallDelta) {
	call, ok := a.byPos[delta.Index]
	if !ok {
		call = &accumulatedCall{}
		a.byPos[delta.Index] = call
		a.order = append(a.order, delta.Index)
	}
	if call.id == "" && delta.ID != "" {
		call.id = delta.ID
	}
	call.name += delta.Name
	call.args += delta.ArgumentsJSON
}

func (a *toolCallAccumulator) finalize() []ToolCall {
	if len(a.order) == 0 {
		return nil
	}
	calls := make([]ToolCall, 0, len(a.order))
	for _, pos := range a.order {
		c := a.byPos[pos]
		tc := ToolCall{ID: c.id, Name: c.name, RawArgs: c.args}

		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(c.args), &parsed); err == nil {
			tc.Arguments = parsed
		} else {
			tc.Arguments = map[string]interface{}{"_raw_args": c.args}
		}
		calls = append(calls, tc)
	}
	return calls
}

func classifyError(providerKind string, err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &ProviderError{ProviderKind: providerKind, Message: err.Error(), Timeout: true, Err: err}
	}
	switch err.(type) {
	case *TransportError, *ProviderError:
		return err
	default:
		return &TransportError{ProviderKind: providerKind, Err: err}
	}
}
