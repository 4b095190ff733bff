package llms

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// tokenCounter estimates token counts per model so the gateway can trim
// conversation history to a provider's context window before dispatch, and
// so providers that don't report native usage (the demo provider) can still
// populate ChatResponse.Usage with a plausible estimate.
type tokenCounter struct {
	encoding *tiktoken.Tiktoken
}

var (
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	encodingMu    sync.Mutex
)

func newTokenCounter(model string) *tokenCounter {
	name := encodingForModel(model)

	encodingMu.Lock()
	defer encodingMu.Unlock()
	if enc, ok := encodingCache[name]; ok {
		return &tokenCounter{encoding: enc}
	}
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		// No local fallback estimate is attempted here; count() already
		// degrades to a character-based heuristic when encoding is nil.
		return &tokenCounter{}
	}
	encodingCache[name] = enc
	return &tokenCounter{encoding: enc}
}

func (tc *tokenCounter) count(text string) int {
	if tc.encoding == nil {
		return len(text) / 4
	}
	return len(tc.encoding.Encode(text, nil, nil))
}

// countMessage follows OpenAI's per-message token overhead accounting
// (role + content + a fixed per-message delimiter cost).
func (tc *tokenCounter) countMessage(m Message) int {
	return 3 + tc.count(m.Role) + tc.count(m.Content)
}

// fitWithinLimit keeps the most recent messages that fit within maxTokens,
// always preserving a leading system message when present. Returns messages
// unmodified if maxTokens is non-positive.
func (tc *tokenCounter) fitWithinLimit(messages []Message, maxTokens int) []Message {
	if maxTokens <= 0 || len(messages) == 0 {
		return messages
	}

	rest := messages
	var system *Message
	if messages[0].Role == "system" {
		s := messages[0]
		system = &s
		rest = messages[1:]
	}

	budget := maxTokens - 3 // reply priming, per countMessage's overhead
	if system != nil {
		budget -= tc.countMessage(*system)
	}
	if budget <= 0 {
		if system != nil {
			return []Message{*system}
		}
		return nil
	}

	fitted := make([]Message, 0, len(rest))
	used := 0
	for i := len(rest) - 1; i >= 0; i-- {
		cost := tc.countMessage(rest[i])
		if used+cost > budget {
			break
		}
		fitted = append([]Message{rest[i]}, fitted...)
		used += cost
	}

	if system != nil {
		return append([]Message{*system}, fitted...)
	}
	return fitted
}

// estimateUsage is used by providers with no native usage accounting.
func (tc *tokenCounter) estimateUsage(messages []Message, completion string) Usage {
	prompt := 0
	for _, m := range messages {
		prompt += tc.countMessage(m)
	}
	completionTokens := tc.count(completion)
	return Usage{
		PromptTokens:     prompt,
		CompletionTokens: completionTokens,
		TotalTokens:      prompt + completionTokens,
	}
}

func encodingForModel(model string) string {
	lower := strings.ToLower(model)
	if strings.Contains(lower, "gpt-4o") || strings.Contains(lower, "o1") {
		return "o200k_base"
	}
	return "cl100k_base"
}
