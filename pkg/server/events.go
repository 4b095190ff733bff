// Package server implements the event fan-out translator (C5): an HTTP/SSE
// boundary that drives one pkg/reasoning.Runner turn per request and
// streams its graph transitions and C1 token stream as typed SSE frames.
package server

// Name is an SSE event name (§4.5 Event Fan-out).
type Name string

const (
	NameThinking   Name = "thinking"
	NameToolCall   Name = "tool_call"
	NameToolResult Name = "tool_result"
	NameMessage    Name = "message"
	NameError      Name = "error"
	NameDone       Name = "done"
)

// ThinkingStatus is the lifecycle of one "thinking" step.
type ThinkingStatus string

const (
	ThinkingInProgress ThinkingStatus = "in-progress"
	ThinkingCompleted  ThinkingStatus = "completed"
	ThinkingFailed     ThinkingStatus = "failed"
)

// ToolCallStatus is the lifecycle of one "tool_call" frame sequence.
type ToolCallStatus string

const (
	ToolCallCalling ToolCallStatus = "calling"
	ToolCallDone    ToolCallStatus = "done"
	ToolCallFailed  ToolCallStatus = "failed"
)

// ThinkingPayload is the data field of a "thinking" frame.
type ThinkingPayload struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Status      ThinkingStatus `json:"status"`
	Content     string         `json:"content"`
	Accumulated string         `json:"accumulated,omitempty"`
	Group       string         `json:"group,omitempty"`
}

// ToolCallPayload is the data field of a "tool_call" frame. Arguments is
// {} in the first "calling" frame, then the parsed object whenever the
// accumulated JSON is valid and {"_raw_args": "..."} while it is not.
type ToolCallPayload struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Arguments    interface{}    `json:"arguments"`
	Status       ToolCallStatus `json:"status"`
	Group        string         `json:"group"`
	GroupID      string         `json:"groupId"`
	DisplayTitle string         `json:"displayTitle"`
	SubItemType  string         `json:"subItemType"`
}

// ToolResultPayload is the data field of a "tool_result" frame.
type ToolResultPayload struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Result  string `json:"result"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// MessagePayload is the data field of a "message" frame.
type MessagePayload struct {
	Content string `json:"content"`
}

// ErrorPayload is the data field of an "error" frame.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Frame is one SSE event a Turn is ready to emit.
type Frame struct {
	Name    Name
	Payload interface{}
}
