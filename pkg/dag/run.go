package dag

import (
	"context"
	"log/slog"
	"sync"

	"github.com/agentcore/orchestrator/pkg/tools"
	"golang.org/x/sync/errgroup"
)

// Executor is the C3 surface the DAG engine runs against. *tools.ToolRegistry
// satisfies this directly.
type Executor interface {
	ExecuteTool(ctx context.Context, toolName string, args map[string]interface{}) (tools.ToolResult, error)
}

// Engine runs a Workflow's nodes level by level, bounding per-level
// concurrency with a semaphore (default 10, per §4.4).
type Engine struct {
	executor       Executor
	maxConcurrency int
}

// New creates an Engine. maxConcurrency <= 0 falls back to 10.
func New(executor Executor, maxConcurrency int) *Engine {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	return &Engine{executor: executor, maxConcurrency: maxConcurrency}
}

// Run executes wf to completion and returns the projected output. input
// becomes ctx["input"]; each node's output (or {"error": message} on
// failure) is merged into ctx under the node's id once its level completes.
func (e *Engine) Run(ctx context.Context, wf Workflow, input interface{}) (interface{}, error) {
	levels, err := Plan(wf.Nodes)
	if err != nil {
		return nil, newError("run", "failed to plan workflow", err)
	}

	byID := make(map[string]Node, len(wf.Nodes))
	for _, n := range wf.Nodes {
		byID[n.ID] = n
	}

	rollingCtx := map[string]interface{}{"input": input}

	for levelIdx, level := range levels {
		slog.Debug("dag: executing level", "level", levelIdx, "size", len(level))
		results, err := e.runLevel(ctx, level, byID, rollingCtx)
		if err != nil {
			return nil, err
		}
		for id, out := range results {
			rollingCtx[id] = out
		}
	}

	if wf.OutputMapping != nil {
		return resolveMapping(wf.OutputMapping, rollingCtx), nil
	}

	perNode := make(map[string]interface{}, len(byID))
	for id, out := range rollingCtx {
		if id == "input" {
			continue
		}
		perNode[id] = out
	}
	return perNode, nil
}

// runLevel executes every node in a level concurrently, bounded by
// maxConcurrency. A node failure is captured as {"error": message} in its
// own result slot; it never aborts the level or later levels (§4.4).
func (e *Engine) runLevel(ctx context.Context, level []string, byID map[string]Node, rollingCtx map[string]interface{}) (map[string]interface{}, error) {
	results := make(map[string]interface{}, len(level))
	var mu lockableMap
	mu.m = results

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrency)

	for _, id := range level {
		node := byID[id]
		g.Go(func() error {
			out := e.runNode(gctx, node, rollingCtx)
			mu.set(node.ID, out)
			return nil
		})
	}

	// Node failures are captured per-node, not propagated, so Wait only
	// ever reports a context cancellation from the caller.
	if err := g.Wait(); err != nil {
		return nil, newError("run", "level execution aborted", err)
	}
	return results, nil
}

func (e *Engine) runNode(ctx context.Context, node Node, rollingCtx map[string]interface{}) interface{} {
	if node.Condition != "" && !truthy(resolvePath(node.Condition, rollingCtx)) {
		return map[string]interface{}{"skipped": true}
	}

	args := resolveMapping(node.ParamsMapping, rollingCtx)

	result, err := e.executor.ExecuteTool(ctx, node.Tool, args)
	if err != nil {
		slog.Debug("dag: node execution failed", "node", node.ID, "tool", node.Tool, "error", err)
		return map[string]interface{}{"error": err.Error()}
	}
	if !result.Success {
		return map[string]interface{}{"error": result.Error}
	}
	if result.Output != nil {
		return result.Output
	}
	return result.Content
}

// lockableMap is a tiny mutex-guarded map used only to collect level results
// written concurrently from errgroup goroutines.
type lockableMap struct {
	mu sync.Mutex
	m  map[string]interface{}
}

func (l *lockableMap) set(k string, v interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.m[k] = v
}
