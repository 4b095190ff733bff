package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/agentcore/orchestrator/pkg/config"
)

// Catalog is the second half of C3's dispatch order (§4.3): a set of
// service-backed tools keyed by name, each kind-routed to one of three
// adapters. Unlike the process-local built-in map a ToolRegistry also
// holds, catalog entries carry rolling call statistics that are updated
// after every dispatch.
type Catalog struct {
	mu       sync.RWMutex
	entries  map[string]*config.ToolEntryConfig
	adapters *Adapters
	logger   *slog.Logger
}

// NewCatalog builds a Catalog over a set of entries. A nil adapters bundle
// falls back to mock adapters per kind; a nil logger falls back to the
// default slog logger.
func NewCatalog(entries map[string]*config.ToolEntryConfig, adapters *Adapters, logger *slog.Logger) *Catalog {
	if entries == nil {
		entries = make(map[string]*config.ToolEntryConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		entries:  entries,
		adapters: adapters,
		logger:   logger,
	}
}

// Put registers or replaces a catalog entry, applying its defaults.
func (c *Catalog) Put(entry *config.ToolEntryConfig) error {
	entry.SetDefaults(entry.Name)
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("catalog: invalid tool %q: %w", entry.Name, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.Name] = entry
	return nil
}

// Lookup returns the active catalog entry by name. Draft and deprecated
// entries are not dispatchable, matching the active-status filter the
// reference executor applied before routing by kind.
func (c *Catalog) Lookup(name string) (*config.ToolEntryConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[name]
	if !ok || entry.Status != config.ToolStatusActive {
		return nil, false
	}
	return entry, true
}

// ListActive returns every active catalog entry as a ToolInfo, for
// surfacing alongside built-ins.
func (c *Catalog) ListActive() []ToolInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var infos []ToolInfo
	for _, entry := range c.entries {
		if entry.Status != config.ToolStatusActive {
			continue
		}
		infos = append(infos, ToolInfo{
			Name:        entry.Name,
			Description: entry.Description,
		})
	}
	return infos
}

// Dispatch routes entry to the adapter for its kind (§4.3). A dispatch
// failure never returns a Go error: it comes back as a ToolResult with
// Success=false, matching the structured failure ExecuteTool surfaces to
// C2 for anything beneath a hard not-found.
func (c *Catalog) Dispatch(ctx context.Context, entry *config.ToolEntryConfig, args map[string]interface{}) ToolResult {
	output, err := c.dispatch(ctx, entry, args)
	if err != nil {
		c.logger.Warn("catalog: tool dispatch failed", "tool", entry.Name, "kind", entry.Kind, "error", err)
		return ToolResult{Success: false, Error: err.Error()}
	}
	return ToolResult{Success: true, Output: output}
}

func (c *Catalog) dispatch(ctx context.Context, entry *config.ToolEntryConfig, args map[string]interface{}) (map[string]interface{}, error) {
	switch entry.Kind {
	case config.ToolKindMLModel:
		modelID, _ := entry.ServiceConfig["model_id"].(string)
		endpoint, _ := entry.ServiceConfig["endpoint"].(string)
		return c.adapters.ml().Predict(ctx, modelID, endpoint, args)

	case config.ToolKindDataAPI:
		if template, ok := entry.ServiceConfig["query_template"].(string); ok && template != "" {
			return c.adapters.warehouse().QueryTemplate(ctx, template, args)
		}
		table, _ := entry.ServiceConfig["table_name"].(string)
		return c.adapters.warehouse().QueryTable(ctx, table, args)

	case config.ToolKindExternalAPI:
		url, _ := entry.ServiceConfig["url"].(string)
		method, _ := entry.ServiceConfig["method"].(string)
		if method == "" {
			method = "POST"
		}
		headers := map[string]string{}
		if raw, ok := entry.ServiceConfig["headers"].(map[string]interface{}); ok {
			for k, v := range raw {
				if s, ok := v.(string); ok {
					headers[k] = s
				}
			}
		}
		return c.adapters.external().Call(ctx, url, method, headers, args)

	default:
		return map[string]interface{}{
			"tool":    entry.Name,
			"status":  "executed",
			"input":   args,
			"message": "Generic tool execution - implement specific handler",
		}, nil
	}
}

// RecordStats folds one call's outcome into the entry's rolling averages
// (§4.3): avg_latency_ms and success_rate are both cumulative means over
// call_count, recomputed in place rather than stored as raw series. A
// missing entry is ignored — statistics are best-effort and must never
// fail the call they describe.
func (c *Catalog) RecordStats(name string, latencyMs float64, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[name]
	if !ok {
		return
	}
	n := float64(entry.CallCount)
	successVal := 0.0
	if success {
		successVal = 1.0
	}
	entry.AvgLatencyMs = (entry.AvgLatencyMs*n + latencyMs) / (n + 1)
	entry.SuccessRate = (entry.SuccessRate*n + successVal) / (n + 1)
	entry.CallCount++
}
