// Package reasoning implements the ReAct agent loop (C2): an explicit
// plan/think/execute_tools/validate/respond/error graph over AgentState,
// calling the provider gateway (pkg/llms) and the tool executor
// (pkg/tools) from each node.
package reasoning

import (
	"github.com/agentcore/orchestrator/pkg/llms"
)

// Status is AgentState's lifecycle position (§3 DATA MODEL).
type Status string

const (
	StatusThinking    Status = "thinking"
	StatusToolCalling Status = "tool_calling"
	StatusValidating  Status = "validating"
	StatusResponding  Status = "responding"
	StatusDone        Status = "done"
	StatusError       Status = "error"
)

// ValidationStatus is the aggregate outcome of the validate node.
type ValidationStatus string

const (
	ValidationPassed  ValidationStatus = "passed"
	ValidationWarning ValidationStatus = "warning"
	ValidationFailed  ValidationStatus = "failed"
)

// IssueLevel grades a single ValidationIssue. Only "high" is currently
// produced (shape check and sensitive-data scan both record high); medium
// and low are part of the level vocabulary for a future validator that
// emits softer findings, per the aggregate rule in §4.2.4.
type IssueLevel string

const (
	IssueLevelCritical IssueLevel = "critical"
	IssueLevelHigh     IssueLevel = "high"
	IssueLevelMedium   IssueLevel = "medium"
	IssueLevelLow      IssueLevel = "low"
)

// ValidationIssue records one finding from the validate node against a
// single tool result.
type ValidationIssue struct {
	ToolCallID string     `json:"tool_call_id"`
	ToolName   string     `json:"tool_name"`
	Level      IssueLevel `json:"level"`
	Kind       string     `json:"kind"` // "missing_key" or "sensitive_data"
	Message    string     `json:"message"`
}

// PlanningRecord is the plan node's JSON payload (§4.2.1), stored
// best-effort — a parse failure leaves this nil rather than failing the
// turn, since planning is advisory.
type PlanningRecord struct {
	Intent     string                 `json:"intent"`
	Confidence float64                `json:"confidence"`
	Reasoning  string                 `json:"reasoning"`
	PlanSteps  []string               `json:"plan_steps"`
	Entities   map[string]interface{} `json:"entities"`
}

// ToolCallResult pairs one of AgentState's PendingToolCalls with its
// outcome from C3, keeping the call id so validate/respond can attribute
// issues and tool-role messages back to the call that produced them.
type ToolCallResult struct {
	ToolCallID string
	ToolName   string
	Output     interface{} // structured result on success
	Content    string      // the string/JSON content appended to messages
	Success    bool
	Error      string
}

// AgentState is C2's state (§3 DATA MODEL). It is created once on user
// input, mutated only by graph node functions, and checkpointed after
// every node transition (pkg/checkpoint). It is terminal when Status is
// done or error, or when Iteration reaches IterationCap mid tool_calling.
type AgentState struct {
	SessionID string
	UserID    string

	Messages []llms.Message
	Input    string

	ModelID        string
	ProviderID     string // explicit provider selection, §4.1 priority 1
	ProviderKind   string // explicit provider selection, §4.1 priority 2
	Temperature    *float64
	AvailableTools []llms.ToolDefinition

	PendingToolCalls   []llms.ToolCall
	LatestToolResults  []ToolCallResult
	FinalResponse      string
	ReasoningText      string

	Iteration    int
	IterationCap int
	Status       Status

	Planning *PlanningRecord

	ValidationStatus ValidationStatus
	ValidationIssues []ValidationIssue
}

// NewAgentState creates an AgentState for a new turn. iterationCap<=0
// falls back to the §4.2 default of 10.
func NewAgentState(sessionID, userID, input string, tools []llms.ToolDefinition, iterationCap int) *AgentState {
	if iterationCap <= 0 {
		iterationCap = 10
	}
	return &AgentState{
		SessionID:      sessionID,
		UserID:         userID,
		Input:          input,
		AvailableTools: tools,
		IterationCap:   iterationCap,
		Status:         StatusThinking,
	}
}

// ThreadID is the checkpoint thread id for this state: the session id by
// default (§4.2 "Checkpointing").
func (s *AgentState) ThreadID() string {
	if s.SessionID != "" {
		return s.SessionID
	}
	return "default"
}

// Done reports whether the graph has reached a terminal state.
func (s *AgentState) Done() bool {
	return s.Status == StatusDone || s.Status == StatusError
}
