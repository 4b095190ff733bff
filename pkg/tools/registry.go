package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/agentcore/orchestrator/pkg/config"
	"github.com/agentcore/orchestrator/pkg/observability"
	"github.com/agentcore/orchestrator/pkg/registry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ToolEntry is one process-local built-in: a Tool implementation discovered
// from a ToolSource (local config-driven tools, or an MCP server).
type ToolEntry struct {
	Tool       Tool       `json:"tool"`
	Source     ToolSource `json:"source"`
	SourceType string     `json:"source_type"`
	Name       string     `json:"name"`
	Internal   bool       `json:"internal"` // not visible to agents
}

type ToolRegistryError struct {
	Component string
	Action    string
	Message   string
	Err       error
}

func (e *ToolRegistryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Component, e.Action, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Component, e.Action, e.Message)
}

func NewToolRegistryError(component, action, message string, err error) *ToolRegistryError {
	return &ToolRegistryError{Component: component, Action: action, Message: message, Err: err}
}

// ToolRegistry is C3, the tool executor: a built-in map (process-local
// Tool implementations registered from ToolSources) consulted before a
// catalog of kind-dispatched service-backed tools (§4.3).
type ToolRegistry struct {
	*registry.BaseRegistry[ToolEntry]
	catalog *Catalog
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		BaseRegistry: registry.NewBaseRegistry[ToolEntry](),
		catalog:      NewCatalog(nil, nil, nil),
	}
}

// WithCatalog attaches the service-backed tool catalog and its adapters
// (step 2/3 of the dispatch order); without one, only built-ins resolve.
func (r *ToolRegistry) WithCatalog(catalog *Catalog) *ToolRegistry {
	r.catalog = catalog
	return r
}

// ToolRegistryBuilder provides a fluent API for building tool registries.
type ToolRegistryBuilder struct {
	toolConfig map[string]*config.ToolConfig
	catalog    *Catalog
}

func NewToolRegistryBuilder() *ToolRegistryBuilder {
	return &ToolRegistryBuilder{}
}

func (b *ToolRegistryBuilder) WithConfig(toolConfig map[string]*config.ToolConfig) *ToolRegistryBuilder {
	b.toolConfig = toolConfig
	return b
}

func (b *ToolRegistryBuilder) WithCatalog(catalog *Catalog) *ToolRegistryBuilder {
	b.catalog = catalog
	return b
}

func (b *ToolRegistryBuilder) Build() (*ToolRegistry, error) {
	reg := NewToolRegistry()
	if b.catalog != nil {
		reg.catalog = b.catalog
	}

	if b.toolConfig != nil {
		if err := reg.initializeFromConfig(b.toolConfig); err != nil {
			return nil, fmt.Errorf("failed to initialize tool registry from config: %w", err)
		}
	}

	return reg, nil
}

func (r *ToolRegistry) RegisterSource(source ToolSource) error {
	name := source.GetName()
	if name == "" {
		return NewToolRegistryError("ToolRegistry", "RegisterSource", "source name cannot be empty", nil)
	}

	if err := source.DiscoverTools(context.Background()); err != nil {
		return NewToolRegistryError("ToolRegistry", "RegisterSource",
			fmt.Sprintf("failed to discover tools from source %s", name), err)
	}

	for _, toolInfo := range source.ListTools() {
		tool, exists := source.GetTool(toolInfo.Name)
		if !exists {
			continue
		}

		isInternal := false
		if mcpSource, ok := source.(*MCPToolSource); ok {
			isInternal = mcpSource.internal
		}

		entry := ToolEntry{
			Tool:       tool,
			Source:     source,
			SourceType: source.GetType(),
			Name:       toolInfo.Name,
			Internal:   isInternal,
		}

		if err := r.Register(toolInfo.Name, entry); err != nil {
			return NewToolRegistryError("ToolRegistry", "RegisterSource",
				fmt.Sprintf("failed to register tool %s", toolInfo.Name), err)
		}
	}

	return nil
}

func (r *ToolRegistry) DiscoverAllTools(ctx context.Context) error {
	repositories := make(map[string]ToolSource)
	for _, entry := range r.List() {
		repositories[entry.Source.GetName()] = entry.Source
	}

	r.Clear()

	for repoName, repo := range repositories {
		if err := repo.DiscoverTools(ctx); err != nil {
			slog.Warn("Failed to discover tools from source", "source", repoName, "error", err)
			continue
		}

		for _, toolInfo := range repo.ListTools() {
			tool, exists := repo.GetTool(toolInfo.Name)
			if !exists {
				slog.Warn("Tool listed but not available", "tool", toolInfo.Name, "source", repoName)
				continue
			}

			if _, exists := r.Get(toolInfo.Name); exists {
				slog.Warn("Tool name conflict, skipping", "tool", toolInfo.Name)
				continue
			}

			isInternal := false
			if mcpSource, ok := repo.(*MCPToolSource); ok {
				isInternal = mcpSource.internal
			}

			entry := ToolEntry{
				Tool:       tool,
				Source:     repo,
				SourceType: repo.GetType(),
				Name:       toolInfo.Name,
				Internal:   isInternal,
			}

			if err := r.Register(toolInfo.Name, entry); err != nil {
				return NewToolRegistryError("ToolRegistry", "DiscoverAllTools",
					fmt.Sprintf("failed to register tool %s", toolInfo.Name), err)
			}
		}
	}
	return nil
}

func (r *ToolRegistry) initializeFromConfig(toolConfig map[string]*config.ToolConfig) error {
	localTools := make(map[string]*config.ToolConfig)
	mcpTools := make(map[string]*config.ToolConfig)

	for name, tool := range toolConfig {
		if tool != nil {
			if tool.Type == "mcp" {
				mcpTools[name] = tool
			} else {
				localTools[name] = tool
			}
		}
	}

	if len(localTools) > 0 {
		repo, err := NewLocalToolSourceWithConfig(localTools)
		if err != nil {
			return fmt.Errorf("failed to create local tool source: %w", err)
		}

		if err := r.RegisterSource(repo); err != nil {
			return fmt.Errorf("failed to register local source: %w", err)
		}

		for toolName, toolConfig := range localTools {
			if toolConfig != nil && toolConfig.Internal != nil && *toolConfig.Internal {
				if entry, exists := r.Get(toolName); exists {
					entry.Internal = true
					if err := r.Register(toolName, entry); err != nil {
						return fmt.Errorf("failed to mark tool %s as internal: %w", toolName, err)
					}
				}
			}
		}
	}

	for toolName, toolConfig := range mcpTools {
		if toolConfig == nil || toolConfig.Enabled == nil || !*toolConfig.Enabled {
			continue
		}

		serverURL := toolConfig.ServerURL
		if serverURL == "" {
			slog.Warn("MCP tool missing server_url, skipping", "tool", toolName)
			continue
		}

		mcpSource, err := NewMCPToolSourceWithConfig(toolConfig)
		if err != nil {
			slog.Warn("Failed to create MCP source", "source", toolName, "error", err)
			continue
		}

		if err := r.RegisterSource(mcpSource); err != nil {
			slog.Warn("Failed to register MCP source", "source", toolName, "error", err)
			continue
		}
	}

	return nil
}

// ListMCPToolNames returns all available MCP tool names from all MCP sources.
func (r *ToolRegistry) ListMCPToolNames() []string {
	var toolNames []string
	for _, entry := range r.List() {
		if entry.SourceType == "mcp" {
			if mcpSource, ok := entry.Source.(interface{ ListMCPToolNames() []string }); ok {
				toolNames = append(toolNames, mcpSource.ListMCPToolNames()...)
			}
		}
	}
	return toolNames
}

func (r *ToolRegistry) GetTool(name string) (Tool, error) {
	entry, exists := r.Get(name)
	if !exists {
		return nil, NewToolRegistryError("ToolRegistry", "GetTool",
			fmt.Sprintf("tool %s not found", name), nil)
	}
	return entry.Tool, nil
}

// ListTools returns every built-in plus every active catalog tool, for
// surfacing to C1 as ToolDefinitions (excluding internal built-ins).
func (r *ToolRegistry) ListTools() []ToolInfo {
	return r.ListToolsWithFilter(true)
}

func (r *ToolRegistry) ListToolsWithFilter(excludeInternal bool) []ToolInfo {
	var tools []ToolInfo
	for _, entry := range r.List() {
		if excludeInternal && entry.Internal {
			continue
		}
		info := entry.Tool.GetInfo()
		info.ServerURL = entry.Source.GetName()
		tools = append(tools, info)
	}

	if r.catalog != nil {
		tools = append(tools, r.catalog.ListActive()...)
	}

	sort.Slice(tools, func(i, j int) bool {
		return tools[i].Name < tools[j].Name
	})

	return tools
}

func (r *ToolRegistry) ListToolsBySource() map[string][]ToolInfo {
	result := make(map[string][]ToolInfo)
	for _, entry := range r.List() {
		repoName := entry.Source.GetName()
		result[repoName] = append(result[repoName], entry.Tool.GetInfo())
	}
	return result
}

// ExecuteTool implements C3's dispatch order (§4.3):
//  1. a process-local built-in (registered Tool) by name.
//  2. else an active catalog entry by name, dispatched by kind.
//
// Step 1 failures and step-2 dispatch failures are both surfaced as a
// structured ToolResult with Success=false, never a Go error — only a
// missing name at both steps returns a *ToolExecutionError, matching
// §7's "surfaced to C2 as a structured tool result with success=false"
// for beneath-C3 failures versus a hard not-found.
func (r *ToolRegistry) ExecuteTool(ctx context.Context, toolName string, args map[string]interface{}) (ToolResult, error) {
	start := time.Now()

	tracer := observability.GetTracer("agentcore.tools")
	ctx, span := tracer.Start(ctx, observability.SpanToolExecution,
		trace.WithAttributes(attribute.String(observability.AttrToolName, toolName)))
	defer span.End()

	if entry, ok := r.Get(toolName); ok {
		result, err := entry.Tool.Execute(ctx, args)
		result.ToolName = toolName
		if result.ExecutionTime == 0 {
			result.ExecutionTime = time.Since(start)
		}
		r.recordSpan(span, toolName, result, err, time.Since(start))
		if err != nil {
			result.Success = false
			if result.Error == "" {
				result.Error = err.Error()
			}
		}
		return result, nil
	}

	if r.catalog == nil {
		err := &ToolExecutionError{ToolName: toolName, Message: "not found"}
		r.recordSpan(span, toolName, ToolResult{}, err, time.Since(start))
		return ToolResult{Success: false, Error: err.Error(), ToolName: toolName}, err
	}

	entry, ok := r.catalog.Lookup(toolName)
	if !ok {
		err := &ToolExecutionError{ToolName: toolName, Message: "not found"}
		r.recordSpan(span, toolName, ToolResult{}, err, time.Since(start))
		return ToolResult{Success: false, Error: err.Error(), ToolName: toolName}, err
	}

	result := r.catalog.Dispatch(ctx, entry, args)
	result.ToolName = toolName
	result.ExecutionTime = time.Since(start)
	r.catalog.RecordStats(toolName, float64(result.ExecutionTime.Milliseconds()), result.Success)
	r.recordSpan(span, toolName, result, nil, result.ExecutionTime)
	return result, nil
}

func (r *ToolRegistry) recordSpan(span trace.Span, toolName string, result ToolResult, execErr error, duration time.Duration) {
	metrics := observability.GetGlobalMetrics()

	switch {
	case execErr != nil:
		span.RecordError(execErr)
		span.SetStatus(codes.Error, execErr.Error())
		if metrics != nil {
			metrics.RecordToolExecution(context.Background(), toolName, duration, execErr)
		}
	case !result.Success:
		err := fmt.Errorf("%s", result.Error)
		span.RecordError(err)
		span.SetStatus(codes.Error, result.Error)
		if metrics != nil {
			metrics.RecordToolExecution(context.Background(), toolName, duration, err)
		}
	default:
		span.SetStatus(codes.Ok, "success")
		if metrics != nil {
			metrics.RecordToolExecution(context.Background(), toolName, duration, nil)
		}
	}
	span.SetAttributes(
		attribute.Bool("tool.success", result.Success),
		attribute.Int64("tool.duration_ms", duration.Milliseconds()),
	)
}

// CatalogEntry exposes a catalog entry's visibility/ownership fields so a
// caller (C2's execute_tools node) can run a C6 permission check before
// invocation without reaching into Catalog internals. Built-ins have no
// catalog entry and are always permitted here; built-in-level access
// control, if any, is a policy for the caller to apply separately.
func (r *ToolRegistry) CatalogEntry(toolName string) (*config.ToolEntryConfig, bool) {
	if r.catalog == nil {
		return nil, false
	}
	return r.catalog.Lookup(toolName)
}

func (r *ToolRegistry) GetToolSource(toolName string) (string, error) {
	entry, exists := r.Get(toolName)
	if !exists {
		return "", NewToolRegistryError("ToolRegistry", "GetToolSource",
			fmt.Sprintf("tool %s not found", toolName), nil)
	}
	return entry.Source.GetName(), nil
}

func (r *ToolRegistry) RemoveSource(sourceName string) error {
	for _, entry := range r.List() {
		if entry.Source.GetName() == sourceName {
			if err := r.Remove(entry.Name); err != nil {
				return NewToolRegistryError("ToolRegistry", "RemoveSource",
					fmt.Sprintf("failed to remove tool %s", entry.Name), err)
			}
		}
	}
	return nil
}
