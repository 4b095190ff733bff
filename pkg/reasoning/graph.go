package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/agentcore/orchestrator/pkg/checkpoint"
	"github.com/agentcore/orchestrator/pkg/llms"
	"github.com/agentcore/orchestrator/pkg/permission"
	"github.com/agentcore/orchestrator/pkg/tools"
)

// Deps are the collaborators a Runner needs to drive the graph: C1 for
// plan/think, C3 for execute_tools, C6's caller identity for the
// execute_tools invocation-path permission check, and an optional
// checkpoint.Manager for per-transition state capture.
type Deps struct {
	Gateway    *llms.Gateway
	OwnerID    string
	Tools      *tools.ToolRegistry
	Caller     permission.User
	Checkpoint *checkpoint.Manager

	// ExpectedOutputKeys optionally declares, per tool name, the keys a
	// structured result must carry for validate's shape check (§4.2.4).
	// A tool absent from this map skips the shape check entirely.
	ExpectedOutputKeys map[string][]string

	// OnEvent, if set, is called synchronously from the node that produced
	// each Event — including concurrently from executeTools's per-call
	// goroutines. A nil OnEvent disables event delivery entirely, which is
	// the default for a Runner driven without an SSE translator attached.
	OnEvent func(Event)

	Logger *slog.Logger
}

func (d *Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// Runner drives one AgentState through the C2 graph.
type Runner struct {
	deps Deps
}

// NewRunner builds a Runner over deps.
func NewRunner(deps Deps) *Runner {
	return &Runner{deps: deps}
}

// Run executes the graph to completion: plan, then think/execute_tools/
// validate until status=done or the iteration cap forces respond, then
// respond or error. It mutates state in place and returns the terminal
// error, if any (think-node failure is the only error return; every
// other failure is absorbed into state per §7's propagation policy).
func (r *Runner) Run(ctx context.Context, state *AgentState) error {
	r.plan(ctx, state)
	r.checkpointAfter(ctx, state, checkpoint.PhasePlan)

	for {
		if err := r.think(ctx, state); err != nil {
			r.errorNode(state, err)
			r.checkpointErrorAfter(ctx, state, err)
			return err
		}
		r.checkpointAfter(ctx, state, checkpoint.PhaseThink)

		if state.Status != StatusToolCalling {
			break
		}

		r.executeTools(ctx, state)
		r.checkpointAfter(ctx, state, checkpoint.PhaseExecuteTools)

		r.validate(state)
		r.checkpointAfter(ctx, state, checkpoint.PhaseValidate)

		if state.Iteration >= state.IterationCap {
			break
		}
	}

	r.respond(state)
	// A successful terminal state has nothing left to resume; clear
	// rather than leave a final respond checkpoint behind.
	if r.deps.Checkpoint != nil {
		r.deps.Checkpoint.Clear(ctx, state.ThreadID())
	}
	return nil
}

func (r *Runner) checkpointAfter(ctx context.Context, state *AgentState, phase checkpoint.Phase) {
	if r.deps.Checkpoint == nil {
		return
	}
	data, err := json.Marshal(state)
	if err != nil {
		r.deps.logger().Warn("reasoning: failed to marshal state for checkpoint", "error", err)
		return
	}
	r.deps.Checkpoint.Checkpoint(ctx, state.ThreadID(), phase, state.Iteration, data)
}

func (r *Runner) checkpointErrorAfter(ctx context.Context, state *AgentState, runErr error) {
	if r.deps.Checkpoint == nil {
		return
	}
	data, err := json.Marshal(state)
	if err != nil {
		r.deps.logger().Warn("reasoning: failed to marshal state for error checkpoint", "error", err)
		return
	}
	r.deps.Checkpoint.CheckpointError(ctx, state.ThreadID(), state.Iteration, data, runErr)
}

// plan runs on iteration 0 only (§4.2.1), and only when the caller offered
// at least one tool — with nothing to plan tool use around, the node is a
// no-op passthrough. Parse failures are swallowed — planning is advisory
// and never fails the turn; the iteration counter is not advanced either
// way.
func (r *Runner) plan(ctx context.Context, state *AgentState) {
	if state.Iteration != 0 {
		return
	}
	if len(state.AvailableTools) == 0 {
		return
	}

	zero := 0.0
	req := llms.ChatRequest{
		Messages: []llms.Message{
			{Role: "user", Content: planPrompt(state.Input)},
		},
		Sampling: llms.SamplingConfig{
			Model:        state.ModelID,
			Temperature:  &zero,
			ProviderID:   state.ProviderID,
			ProviderKind: state.ProviderKind,
		},
	}

	resp, err := r.deps.Gateway.Chat(llms.WithChatPhase(ctx, "plan"), req, r.deps.OwnerID)
	if err != nil {
		r.deps.logger().Warn("reasoning: plan node call failed, proceeding without a plan", "error", err)
		return
	}

	record, err := parsePlanningRecord(resp.Content)
	if err != nil {
		r.deps.logger().Debug("reasoning: plan node returned unparseable JSON, proceeding without a plan", "error", err)
		return
	}
	state.Planning = record
}

// think rebuilds the provider's message list and calls C1 (§4.2.2). On
// iteration 0 it appends the user's input. The iteration cap is enforced
// here: tool calls returned once the cap has already been reached for
// this round are discarded and the turn is forced toward respond with
// whatever final_response is already known (possibly empty), matching
// "think → respond if iteration≥cap".
func (r *Runner) think(ctx context.Context, state *AgentState) error {
	roundIndex := state.Iteration
	r.emit(Event{Kind: EventThinkStart, Iteration: roundIndex})

	if state.Iteration == 0 {
		state.Messages = append(state.Messages, llms.Message{Role: "user", Content: state.Input})
	}

	req := llms.ChatRequest{
		Messages: append([]llms.Message(nil), state.Messages...),
		Tools:    state.AvailableTools,
		Sampling: llms.SamplingConfig{
			Model:        state.ModelID,
			Temperature:  state.Temperature,
			ProviderID:   state.ProviderID,
			ProviderKind: state.ProviderKind,
		},
	}
	if len(state.AvailableTools) > 0 {
		req.Sampling.ToolChoice = llms.ToolChoiceAuto
	}

	resp, err := r.deps.Gateway.Chat(llms.WithChatPhase(ctx, "think"), req, r.deps.OwnerID)
	if err != nil {
		r.emit(Event{Kind: EventThinkEnd, Iteration: roundIndex, Err: err})
		return err
	}

	state.ReasoningText = resp.Reasoning
	r.emit(Event{Kind: EventThinkEnd, Iteration: roundIndex, Response: resp.Content})

	if len(resp.ToolCalls) > 0 && roundIndex < state.IterationCap {
		state.Messages = append(state.Messages, llms.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		state.PendingToolCalls = resp.ToolCalls
		state.Iteration = roundIndex + 1
		state.Status = StatusToolCalling
		return nil
	}

	if len(resp.ToolCalls) > 0 {
		// Cap already reached for this round: discard the new tool calls
		// rather than honor them, and fall through to respond with the
		// last known assistant content.
		state.Status = StatusDone
		return nil
	}

	state.FinalResponse = resp.Content
	state.Messages = append(state.Messages, llms.Message{Role: "assistant", Content: resp.Content})
	state.Status = StatusDone
	return nil
}

// executeTools dispatches every pending call through C3, applying C6's
// invocation-path permission check first (§4.2.3, §7). Calls may overlap;
// the resulting tool-role messages are appended in the server-provided
// order regardless of completion order.
func (r *Runner) executeTools(ctx context.Context, state *AgentState) {
	calls := state.PendingToolCalls
	results := make([]ToolCallResult, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call llms.ToolCall) {
			defer wg.Done()
			result := r.executeOne(ctx, state, call)
			results[i] = result
			r.emit(Event{Kind: EventToolResult, Iteration: state.Iteration, ToolResult: result})
		}(i, call)
	}
	wg.Wait()

	for _, result := range results {
		state.Messages = append(state.Messages, llms.Message{
			Role:       "tool",
			Content:    result.Content,
			ToolCallID: result.ToolCallID,
			Name:       result.ToolName,
		})
	}

	state.LatestToolResults = results
	state.PendingToolCalls = nil
	state.Status = StatusValidating
}

func (r *Runner) executeOne(ctx context.Context, state *AgentState, call llms.ToolCall) ToolCallResult {
	if entry, ok := r.deps.Tools.CatalogEntry(call.Name); ok {
		if !permission.May(r.deps.Caller, entry) {
			return ToolCallResult{
				ToolCallID: call.ID,
				ToolName:   call.Name,
				Content:    "Error: forbidden",
				Success:    false,
				Error:      "forbidden",
			}
		}
	}

	result, err := r.deps.Tools.ExecuteTool(ctx, call.Name, call.Arguments)
	if err != nil && !result.Success {
		return ToolCallResult{
			ToolCallID: call.ID,
			ToolName:   call.Name,
			Content:    fmt.Sprintf("Error: %s", err.Error()),
			Success:    false,
			Error:      err.Error(),
		}
	}
	if !result.Success {
		return ToolCallResult{
			ToolCallID: call.ID,
			ToolName:   call.Name,
			Content:    fmt.Sprintf("Error: %s", result.Error),
			Success:    false,
			Error:      result.Error,
		}
	}

	content := result.Content
	if content == "" {
		if encoded, err := json.Marshal(result.Output); err == nil {
			content = string(encoded)
		}
	}
	return ToolCallResult{
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Output:     result.Output,
		Content:    content,
		Success:    true,
	}
}

// validate runs the shape check and sensitive-data scan over every
// successful structured tool result (§4.2.4). It never blocks progression
// — the aggregate ValidationStatus is informational only.
func (r *Runner) validate(state *AgentState) {
	state.ValidationIssues = nil

	for i := range state.LatestToolResults {
		result := &state.LatestToolResults[i]
		if !result.Success {
			continue
		}
		output, ok := result.Output.(map[string]interface{})
		if !ok {
			continue
		}

		if expected, declared := r.deps.ExpectedOutputKeys[result.ToolName]; declared {
			for _, key := range expected {
				if _, present := output[key]; !present {
					state.ValidationIssues = append(state.ValidationIssues, ValidationIssue{
						ToolCallID: result.ToolCallID,
						ToolName:   result.ToolName,
						Level:      IssueLevelHigh,
						Kind:       "missing_key",
						Message:    fmt.Sprintf("missing expected key %q", key),
					})
				}
			}
		}

		masked, issues := scanAndMask(output, result.ToolCallID, result.ToolName)
		if len(issues) > 0 {
			result.Output = masked
			if encoded, err := json.Marshal(masked); err == nil {
				result.Content = string(encoded)
			}
			state.ValidationIssues = append(state.ValidationIssues, issues...)
		}
	}

	// Re-mask the corresponding tool-role messages so the sanitized
	// content, not the raw one, is what reaches the next think call.
	maskedByCallID := make(map[string]string, len(state.LatestToolResults))
	for _, result := range state.LatestToolResults {
		maskedByCallID[result.ToolCallID] = result.Content
	}
	for i := range state.Messages {
		if state.Messages[i].Role != "tool" {
			continue
		}
		if content, ok := maskedByCallID[state.Messages[i].ToolCallID]; ok {
			state.Messages[i].Content = content
		}
	}

	state.ValidationStatus = aggregateValidationStatus(state.ValidationIssues)
	state.Status = StatusThinking
}

func aggregateValidationStatus(issues []ValidationIssue) ValidationStatus {
	hasHigh := false
	hasAny := len(issues) > 0
	for _, issue := range issues {
		if issue.Level == IssueLevelCritical || issue.Level == IssueLevelHigh {
			hasHigh = true
		}
	}
	switch {
	case hasHigh:
		return ValidationFailed
	case hasAny:
		return ValidationWarning
	default:
		return ValidationPassed
	}
}

// respond marks the state terminal (§4.2.5); it makes no other mutation.
func (r *Runner) respond(state *AgentState) {
	state.Status = StatusDone
	r.emit(Event{Kind: EventDone, Iteration: state.Iteration, Response: state.FinalResponse})
}

// errorNode composes the user-visible error message (§4.2.5, §7). The
// partial assistant content accumulated so far is not treated as final.
func (r *Runner) errorNode(state *AgentState, err error) {
	state.FinalResponse = fmt.Sprintf("An error occurred: %s", err.Error())
	state.Status = StatusError
	r.emit(Event{Kind: EventError, Iteration: state.Iteration, Err: err})
}

func planPrompt(input string) string {
	return fmt.Sprintf(`Perceive the user's need and respond with exactly one JSON object, no other text, with fields:
- intent: one of "query", "analysis", "prediction", "workflow", "conversation", "unknown"
- confidence: a number between 0 and 1
- reasoning: a short explanation
- plan_steps: an array of strings describing the steps you intend to take
- entities: an object of any entities you extracted from the request

User request:
%s`, input)
}

func parsePlanningRecord(content string) (*PlanningRecord, error) {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end < 0 || end < start {
		return nil, fmt.Errorf("no JSON object found in planner response")
	}
	var record PlanningRecord
	if err := json.Unmarshal([]byte(content[start:end+1]), &record); err != nil {
		return nil, err
	}
	return &record, nil
}
