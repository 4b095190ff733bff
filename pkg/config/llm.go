// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"strings"
)

// LLMProviderKind identifies an LLM provider's wire family and credentials.
//
// The OpenAI-compatible family (openai, deepseek, qwen, moonshot, zhipu) all
// speak the same POST {base}/chat/completions wire shape and differ only in
// base URL and default model; anthropic speaks v1/messages; gemini speaks the
// Google genai wire protocol; demo requires no credentials at all.
type LLMProviderKind string

const (
	LLMProviderOpenAI    LLMProviderKind = "openai"
	LLMProviderDeepSeek  LLMProviderKind = "deepseek"
	LLMProviderQwen      LLMProviderKind = "qwen"
	LLMProviderMoonshot  LLMProviderKind = "moonshot"
	LLMProviderZhipu     LLMProviderKind = "zhipu"
	LLMProviderAnthropic LLMProviderKind = "anthropic"
	LLMProviderGemini    LLMProviderKind = "gemini"
	LLMProviderBaidu     LLMProviderKind = "baidu"
	LLMProviderDemo      LLMProviderKind = "demo"
)

// openAICompatibleKinds speak the chat/completions wire shape.
var openAICompatibleKinds = map[LLMProviderKind]bool{
	LLMProviderOpenAI:   true,
	LLMProviderDeepSeek: true,
	LLMProviderQwen:     true,
	LLMProviderMoonshot: true,
	LLMProviderZhipu:    true,
}

// IsOpenAICompatible reports whether kind shares the chat/completions wire shape.
func (k LLMProviderKind) IsOpenAICompatible() bool {
	return openAICompatibleKinds[k]
}

var defaultBaseURLs = map[LLMProviderKind]string{
	LLMProviderOpenAI:   "https://api.openai.com/v1",
	LLMProviderDeepSeek: "https://api.deepseek.com/v1",
	LLMProviderQwen:     "https://dashscope.aliyuncs.com/compatible-mode/v1",
	LLMProviderMoonshot: "https://api.moonshot.cn/v1",
	LLMProviderZhipu:    "https://open.bigmodel.cn/api/paas/v4",
	LLMProviderAnthropic: "https://api.anthropic.com",
}

var defaultModels = map[LLMProviderKind]string{
	LLMProviderOpenAI:    "gpt-4o",
	LLMProviderDeepSeek:  "deepseek-chat",
	LLMProviderQwen:      "qwen-plus",
	LLMProviderMoonshot:  "moonshot-v1-8k",
	LLMProviderZhipu:     "glm-4",
	LLMProviderAnthropic: "claude-sonnet-4-20250514",
	LLMProviderGemini:    "gemini-2.0-flash",
	LLMProviderDemo:      "demo",
}

// modelNamePatterns is the fixed substring table used to infer a provider
// kind from a model name when neither an explicit provider id nor an
// explicit provider kind is supplied. Order matters: first match wins.
var modelNamePatterns = []struct {
	substr string
	kind   LLMProviderKind
}{
	{"gpt", LLMProviderOpenAI},
	{"o1", LLMProviderOpenAI},
	{"claude", LLMProviderAnthropic},
	{"deepseek", LLMProviderDeepSeek},
	{"qwen", LLMProviderQwen},
	{"glm", LLMProviderZhipu},
	{"moonshot", LLMProviderMoonshot},
	{"gemini", LLMProviderGemini},
	{"ernie", LLMProviderBaidu},
}

// InferProviderKind infers a provider kind from a model name by substring
// match, defaulting to openai when nothing matches.
func InferProviderKind(model string) LLMProviderKind {
	lower := strings.ToLower(model)
	for _, p := range modelNamePatterns {
		if strings.Contains(lower, p.substr) {
			return p.kind
		}
	}
	return LLMProviderOpenAI
}

// ThinkingConfig configures extended thinking (Claude).
type ThinkingConfig struct {
	Enabled      *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	BudgetTokens int   `yaml:"budget_tokens,omitempty" json:"budget_tokens,omitempty"`
}

// LLMProviderConfig is a configured LLM provider record, matching the
// `{id, owner_id, kind, base_url, api_key, enabled, model list}` shape the
// core consumes from its configuration collaborator.
type LLMProviderConfig struct {
	ID      string          `yaml:"id,omitempty" json:"id,omitempty"`
	OwnerID string          `yaml:"owner_id,omitempty" json:"owner_id,omitempty"`
	Kind    LLMProviderKind `yaml:"kind,omitempty" json:"kind,omitempty"`
	Enabled bool            `yaml:"enabled" json:"enabled"`

	Model   string   `yaml:"model,omitempty" json:"model,omitempty"`
	Models  []string `yaml:"models,omitempty" json:"models,omitempty"`
	APIKey  string   `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	BaseURL string   `yaml:"base_url,omitempty" json:"base_url,omitempty"`

	Temperature *float64        `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	MaxTokens   int             `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	Thinking    *ThinkingConfig `yaml:"thinking,omitempty" json:"thinking,omitempty"`

	// ContextWindowTokens bounds how much conversation history the gateway
	// will send upstream; the gateway trims oldest non-system messages first
	// once the estimated token count would exceed it. Zero disables trimming.
	ContextWindowTokens int `yaml:"context_window_tokens,omitempty" json:"context_window_tokens,omitempty"`
}

var defaultContextWindows = map[LLMProviderKind]int{
	LLMProviderOpenAI:    128000,
	LLMProviderDeepSeek:  64000,
	LLMProviderQwen:      32000,
	LLMProviderMoonshot:  8000,
	LLMProviderZhipu:     128000,
	LLMProviderAnthropic: 200000,
	LLMProviderGemini:    1000000,
}

// SetDefaults fills in per-kind defaults the way the original LLMConfig did.
func (c *LLMProviderConfig) SetDefaults() {
	if c.Kind == "" {
		c.Kind = detectProviderKindFromEnv()
	}
	if c.Model == "" {
		c.Model = defaultModels[c.Kind]
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURLs[c.Kind]
	}
	if c.APIKey == "" {
		c.APIKey = getAPIKeyFromEnv(c.Kind)
	}
	if c.Temperature == nil {
		temp := 0.7
		c.Temperature = &temp
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.ContextWindowTokens == 0 {
		c.ContextWindowTokens = defaultContextWindows[c.Kind]
	}
	if c.Thinking != nil {
		if c.Thinking.Enabled == nil {
			c.Thinking.Enabled = BoolPtr(true)
		}
		if c.Thinking.BudgetTokens == 0 {
			c.Thinking.BudgetTokens = 1024
		}
	}
}

// Validate checks the LLM provider configuration.
func (c *LLMProviderConfig) Validate() error {
	if c.Kind != LLMProviderDemo && c.APIKey == "" {
		return fmt.Errorf("api_key is required for provider kind %q", c.Kind)
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	return nil
}

// IsSelectable reports whether this record may be selected by the gateway:
// enabled and carrying a non-empty API key (demo providers need neither).
func (c *LLMProviderConfig) IsSelectable() bool {
	if c == nil || !c.Enabled {
		return false
	}
	if c.Kind == LLMProviderDemo {
		return true
	}
	return c.APIKey != ""
}

func detectProviderKindFromEnv() LLMProviderKind {
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		return LLMProviderAnthropic
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		return LLMProviderOpenAI
	}
	if os.Getenv("DEEPSEEK_API_KEY") != "" {
		return LLMProviderDeepSeek
	}
	if os.Getenv("GEMINI_API_KEY") != "" || os.Getenv("GOOGLE_API_KEY") != "" {
		return LLMProviderGemini
	}
	return LLMProviderDemo
}

func getAPIKeyFromEnv(kind LLMProviderKind) string {
	switch kind {
	case LLMProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case LLMProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case LLMProviderDeepSeek:
		return os.Getenv("DEEPSEEK_API_KEY")
	case LLMProviderQwen:
		return os.Getenv("QWEN_API_KEY")
	case LLMProviderMoonshot:
		return os.Getenv("MOONSHOT_API_KEY")
	case LLMProviderZhipu:
		return os.Getenv("ZHIPU_API_KEY")
	case LLMProviderGemini:
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			return key
		}
		return os.Getenv("GOOGLE_API_KEY")
	default:
		return ""
	}
}
