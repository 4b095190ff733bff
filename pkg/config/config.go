// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config provides configuration loading and management for the
// orchestration engine.
//
// Example config:
//
//	version: "1"
//	name: my-orchestrator
//
//	llms:
//	  default:
//	    kind: anthropic
//	    model: claude-sonnet-4-20250514
//	    api_key: ${ANTHROPIC_API_KEY}
//	    enabled: true
//
//	tools:
//	  calculator:
//	    kind: builtin
//
//	server:
//	  addr: ":8080"
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure: the core's read path into the
// "relational store for users/providers/tools/skills" external collaborator
// (see §6 of the specification) when backed by a remote Source.
type Config struct {
	Version     string `yaml:"version,omitempty"`
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`

	LLMs   map[string]*LLMProviderConfig `yaml:"llms,omitempty"`
	Tools  map[string]*ToolEntryConfig   `yaml:"tools,omitempty"`
	Skills map[string]*SkillConfig       `yaml:"skills,omitempty"`

	Server     ServerConfig     `yaml:"server,omitempty"`
	Logger     *LoggerConfig    `yaml:"logger,omitempty"`
	Checkpoint *StoreConfig     `yaml:"checkpoint,omitempty"`
	Conversations *StoreConfig  `yaml:"conversations,omitempty"`

	DAG *DAGConfig `yaml:"dag,omitempty"`
}

// ServerConfig configures the HTTP boundary that hosts the SSE endpoint.
type ServerConfig struct {
	Addr            string `yaml:"addr,omitempty"`
	AllowedOrigins  []string `yaml:"allowed_origins,omitempty"`
	IterationCap    int    `yaml:"iteration_cap,omitempty"`
	QueueSize       int    `yaml:"queue_size,omitempty"`
}

func (s *ServerConfig) SetDefaults() {
	if s.Addr == "" {
		s.Addr = ":8080"
	}
	if s.IterationCap == 0 {
		s.IterationCap = 10
	}
	if s.QueueSize == 0 {
		s.QueueSize = 256
	}
}

func (s *ServerConfig) Validate() error {
	if s.IterationCap < 0 {
		return fmt.Errorf("iteration_cap must be >= 0")
	}
	return nil
}

// LoggerConfig configures structured logging.
type LoggerConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"` // "text" or "json"
}

func (l *LoggerConfig) Validate() error {
	switch l.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", l.Level)
	}
	return nil
}

// StoreConfig configures a SQL-backed persistence store selected by DSN scheme.
type StoreConfig struct {
	Driver string `yaml:"driver,omitempty"` // sqlite3, postgres, mysql
	DSN    string `yaml:"dsn,omitempty"`
}

// DAGConfig configures the skill DAG engine's level-parallel execution.
type DAGConfig struct {
	MaxConcurrency int `yaml:"max_concurrency,omitempty"`
}

func (d *DAGConfig) SetDefaults() {
	if d.MaxConcurrency == 0 {
		d.MaxConcurrency = 10
	}
}

// SetDefaults applies default values to the config.
func (c *Config) SetDefaults() {
	if c.LLMs == nil {
		c.LLMs = make(map[string]*LLMProviderConfig)
	}
	if c.Tools == nil {
		c.Tools = make(map[string]*ToolEntryConfig)
	}
	if c.Skills == nil {
		c.Skills = make(map[string]*SkillConfig)
	}
	if len(c.LLMs) == 0 {
		demo := &LLMProviderConfig{Kind: LLMProviderDemo, Enabled: true}
		demo.SetDefaults()
		c.LLMs["demo"] = demo
	}

	for name, llm := range c.LLMs {
		if llm == nil {
			llm = &LLMProviderConfig{}
			c.LLMs[name] = llm
		}
		if llm.ID == "" {
			llm.ID = name
		}
		llm.SetDefaults()
	}
	for name, tool := range c.Tools {
		if tool == nil {
			tool = &ToolEntryConfig{}
			c.Tools[name] = tool
		}
		tool.SetDefaults(name)
	}

	c.Server.SetDefaults()
	if c.DAG == nil {
		c.DAG = &DAGConfig{}
	}
	c.DAG.SetDefaults()
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	for name, llm := range c.LLMs {
		if llm == nil {
			continue
		}
		if err := llm.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("llm %q: %v", name, err))
		}
	}
	for name, tool := range c.Tools {
		if tool == nil {
			continue
		}
		if err := tool.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("tool %q: %v", name, err))
		}
	}
	for name, skill := range c.Skills {
		if skill == nil {
			continue
		}
		if err := skill.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("skill %q: %v", name, err))
		}
	}
	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server: %v", err))
	}
	if c.Logger != nil {
		if err := c.Logger.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("logger: %v", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// GetLLM returns the LLM provider config by name.
func (c *Config) GetLLM(name string) (*LLMProviderConfig, bool) {
	llm, ok := c.LLMs[name]
	return llm, ok
}

// GetTool returns the tool config by name.
func (c *Config) GetTool(name string) (*ToolEntryConfig, bool) {
	tool, ok := c.Tools[name]
	return tool, ok
}

// GetSkill returns the skill config by name.
func (c *Config) GetSkill(name string) (*SkillConfig, bool) {
	skill, ok := c.Skills[name]
	return skill, ok
}
