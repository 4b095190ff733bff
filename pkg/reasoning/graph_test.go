package reasoning

import (
	"context"
	"sync"
	"testing"

	"github.com/agentcore/orchestrator/pkg/checkpoint"
	"github.com/agentcore/orchestrator/pkg/config"
	"github.com/agentcore/orchestrator/pkg/llms"
	"github.com/agentcore/orchestrator/pkg/permission"
	"github.com/agentcore/orchestrator/pkg/tools"
)

// sumTool is a minimal builtin used to exercise execute_tools without
// pulling in a real adapter.
type sumTool struct{}

func (sumTool) GetInfo() tools.ToolInfo {
	return tools.ToolInfo{Name: "calculator", Description: "adds two numbers"}
}
func (sumTool) GetName() string        { return "calculator" }
func (sumTool) GetDescription() string { return "adds two numbers" }
func (sumTool) Execute(_ context.Context, args map[string]interface{}) (tools.ToolResult, error) {
	a, _ := args["a"].(float64)
	b, _ := args["b"].(float64)
	return tools.ToolResult{Success: true, Output: map[string]interface{}{"sum": a + b}}, nil
}

type stubSource struct{ name string }

func (s stubSource) GetName() string                    { return s.name }
func (s stubSource) GetType() string                    { return "stub" }
func (s stubSource) DiscoverTools(context.Context) error { return nil }
func (s stubSource) ListTools() []tools.ToolInfo         { return nil }
func (s stubSource) GetTool(string) (tools.Tool, bool)   { return nil, false }

func newTestRegistry(t *testing.T) *tools.ToolRegistry {
	t.Helper()
	reg := tools.NewToolRegistry()
	if err := reg.Register("calculator", tools.ToolEntry{
		Tool:   sumTool{},
		Source: stubSource{name: "test"},
		Name:   "calculator",
	}); err != nil {
		t.Fatalf("register calculator tool: %v", err)
	}
	return reg
}

func newTestGateway(t *testing.T) *llms.Gateway {
	t.Helper()
	gw := llms.NewGateway()
	cfg := &config.LLMProviderConfig{Kind: config.LLMProviderDemo, Enabled: true}
	cfg.SetDefaults()
	if err := gw.Register("demo", cfg); err != nil {
		t.Fatalf("register demo provider: %v", err)
	}
	return gw
}

func TestRunner_PlainChatNoTools(t *testing.T) {
	state := NewAgentState("s1", "u1", "hello", nil, 10)
	runner := NewRunner(Deps{Gateway: newTestGateway(t), Tools: newTestRegistry(t)})

	if err := runner.Run(context.Background(), state); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if state.Status != StatusDone {
		t.Errorf("Status = %v, want done", state.Status)
	}
	if state.Iteration != 0 {
		t.Errorf("Iteration = %d, want 0", state.Iteration)
	}
	if len(state.PendingToolCalls) != 0 {
		t.Errorf("PendingToolCalls = %v, want empty", state.PendingToolCalls)
	}
	if state.FinalResponse == "" {
		t.Error("expected a non-empty final response")
	}
}

func TestRunner_SingleToolCall(t *testing.T) {
	state := NewAgentState("s1", "u1", "please use calculator", []llms.ToolDefinition{
		{Name: "calculator", Description: "adds", Parameters: map[string]interface{}{}},
	}, 10)
	runner := NewRunner(Deps{Gateway: newTestGateway(t), Tools: newTestRegistry(t)})

	// The demo provider calls the tool exactly once per distinct prompt
	// mention; since the original input persists in messages, it would
	// call forever, so cap at 1 to isolate the single-call path.
	state.IterationCap = 1

	if err := runner.Run(context.Background(), state); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if state.Iteration != 1 {
		t.Errorf("Iteration = %d, want 1", state.Iteration)
	}
	if len(state.LatestToolResults) != 1 {
		t.Fatalf("LatestToolResults = %v, want 1 entry", state.LatestToolResults)
	}
	if !state.LatestToolResults[0].Success {
		t.Errorf("expected tool call to succeed, got %+v", state.LatestToolResults[0])
	}
}

func TestRunner_IterationCapTwoRounds(t *testing.T) {
	state := NewAgentState("s1", "u1", "please use calculator", []llms.ToolDefinition{
		{Name: "calculator", Description: "adds", Parameters: map[string]interface{}{}},
	}, 2)
	runner := NewRunner(Deps{Gateway: newTestGateway(t), Tools: newTestRegistry(t)})

	if err := runner.Run(context.Background(), state); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if state.Iteration != 2 {
		t.Errorf("Iteration = %d, want 2 (two full rounds before the cap forces respond)", state.Iteration)
	}
	if state.Status != StatusDone {
		t.Errorf("Status = %v, want done", state.Status)
	}
	if len(state.PendingToolCalls) != 0 {
		t.Error("expected no pending tool calls once capped")
	}
}

func TestRunner_IterationCapZeroNoTools(t *testing.T) {
	state := NewAgentState("s1", "u1", "hello", nil, 0)
	runner := NewRunner(Deps{Gateway: newTestGateway(t), Tools: newTestRegistry(t)})

	if err := runner.Run(context.Background(), state); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if state.Status != StatusDone || state.Iteration != 0 {
		t.Errorf("state = %+v, want a single think then respond with iteration 0", state)
	}
}

func TestRunner_PermissionDeniedToolCall(t *testing.T) {
	reg := newTestRegistry(t)
	entry := &config.ToolEntryConfig{
		Name:          "calculator",
		Visibility:    config.VisibilityInternal,
		AllowedRoles:  []string{"admin"},
		Status:        config.ToolStatusActive,
	}
	entry.SetDefaults("calculator")
	catalog := tools.NewCatalog(map[string]*config.ToolEntryConfig{"calculator": entry}, nil, nil)
	reg = reg.WithCatalog(catalog)

	state := NewAgentState("s1", "u1", "please use calculator", []llms.ToolDefinition{
		{Name: "calculator", Description: "adds", Parameters: map[string]interface{}{}},
	}, 1)
	runner := NewRunner(Deps{
		Gateway: newTestGateway(t),
		Tools:   reg,
		Caller:  permission.User{ID: "u1", Roles: []string{"viewer"}},
	})

	if err := runner.Run(context.Background(), state); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(state.LatestToolResults) != 1 {
		t.Fatalf("LatestToolResults = %v, want 1 entry", state.LatestToolResults)
	}
	result := state.LatestToolResults[0]
	if result.Success || result.Error != "forbidden" {
		t.Errorf("result = %+v, want a forbidden failure", result)
	}
}

func TestRunner_ThinkFailureGoesToError(t *testing.T) {
	state := NewAgentState("s1", "u1", "hello", nil, 10)
	runner := NewRunner(Deps{Gateway: llms.NewGateway(), Tools: newTestRegistry(t)})

	err := runner.Run(context.Background(), state)
	if err == nil {
		t.Fatal("expected an error when no provider is configured")
	}
	if state.Status != StatusError {
		t.Errorf("Status = %v, want error", state.Status)
	}
	if state.FinalResponse == "" {
		t.Error("expected a composed error message")
	}
}

func TestRunner_ChecksAndClearsCheckpoints(t *testing.T) {
	enabled := true
	backend := checkpoint.NewMemoryBackend()
	manager := checkpoint.NewManager(&checkpoint.Config{Enabled: &enabled}, backend)

	state := NewAgentState("thread-a", "u1", "hello", nil, 10)
	runner := NewRunner(Deps{Gateway: newTestGateway(t), Tools: newTestRegistry(t), Checkpoint: manager})

	if err := runner.Run(context.Background(), state); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	_, ok, err := manager.Resume(context.Background(), "thread-a")
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if ok {
		t.Error("expected the checkpoint to be cleared after a successful respond")
	}
}

func TestAggregateValidationStatus(t *testing.T) {
	if got := aggregateValidationStatus(nil); got != ValidationPassed {
		t.Errorf("no issues: got %v, want passed", got)
	}
	warn := []ValidationIssue{{Level: IssueLevelLow}}
	if got := aggregateValidationStatus(warn); got != ValidationWarning {
		t.Errorf("low-only issues: got %v, want warning", got)
	}
	fail := []ValidationIssue{{Level: IssueLevelLow}, {Level: IssueLevelHigh}}
	if got := aggregateValidationStatus(fail); got != ValidationFailed {
		t.Errorf("mixed issues: got %v, want failed", got)
	}
}

func TestValidate_SensitiveDataMaskedAndFlagged(t *testing.T) {
	state := &AgentState{
		LatestToolResults: []ToolCallResult{
			{
				ToolCallID: "call_1",
				ToolName:   "lookup",
				Success:    true,
				Output: map[string]interface{}{
					"email": "alice@example.com",
					"note":  "no sensitive data here",
				},
			},
		},
		Messages: []llms.Message{
			{Role: "tool", ToolCallID: "call_1", Content: `{"email":"alice@example.com"}`},
		},
	}
	runner := NewRunner(Deps{})
	runner.validate(state)

	if state.ValidationStatus != ValidationFailed {
		t.Errorf("ValidationStatus = %v, want failed", state.ValidationStatus)
	}
	if len(state.ValidationIssues) != 1 {
		t.Fatalf("ValidationIssues = %v, want 1 issue", state.ValidationIssues)
	}
	masked := state.LatestToolResults[0].Output.(map[string]interface{})["email"].(string)
	if masked == "alice@example.com" {
		t.Error("expected the email to be masked in the result output")
	}
	if state.Messages[0].Content == `{"email":"alice@example.com"}` {
		t.Error("expected the tool-role message content to carry the masked value")
	}
}

func TestValidate_MissingExpectedKey(t *testing.T) {
	state := &AgentState{
		LatestToolResults: []ToolCallResult{
			{ToolCallID: "call_1", ToolName: "lookup", Success: true, Output: map[string]interface{}{"id": "X"}},
		},
	}
	runner := NewRunner(Deps{ExpectedOutputKeys: map[string][]string{"lookup": {"id", "score"}}})
	runner.validate(state)

	if state.ValidationStatus != ValidationFailed {
		t.Errorf("ValidationStatus = %v, want failed", state.ValidationStatus)
	}
	found := false
	for _, issue := range state.ValidationIssues {
		if issue.Kind == "missing_key" {
			found = true
		}
	}
	if !found {
		t.Error("expected a missing_key issue for the undeclared 'score' field")
	}
}

func TestParsePlanningRecord(t *testing.T) {
	record, err := parsePlanningRecord(`Here is my plan: {"intent":"query","confidence":0.8,"reasoning":"r","plan_steps":["a"],"entities":{}}`)
	if err != nil {
		t.Fatalf("parsePlanningRecord() error = %v", err)
	}
	if record.Intent != "query" || record.Confidence != 0.8 {
		t.Errorf("record = %+v", record)
	}
}

func TestRunner_EmitsEvents(t *testing.T) {
	var kinds []EventKind
	var mu sync.Mutex
	record := func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, e.Kind)
	}

	state := NewAgentState("s1", "u1", "please use calculator", []llms.ToolDefinition{
		{Name: "calculator", Description: "adds", Parameters: map[string]interface{}{}},
	}, 1)
	runner := NewRunner(Deps{Gateway: newTestGateway(t), Tools: newTestRegistry(t), OnEvent: record})

	if err := runner.Run(context.Background(), state); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []EventKind{EventThinkStart, EventThinkEnd, EventToolResult, EventDone}
	if len(kinds) != len(want) {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
	for i, k := range want {
		if kinds[i] != k {
			t.Errorf("event[%d] = %v, want %v", i, kinds[i], k)
		}
	}
}

func TestParsePlanningRecord_NoJSON(t *testing.T) {
	if _, err := parsePlanningRecord("no json here"); err == nil {
		t.Fatal("expected an error when no JSON object is present")
	}
}
