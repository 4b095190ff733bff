package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/agentcore/orchestrator/pkg/llms"
	"github.com/agentcore/orchestrator/pkg/reasoning"
)

// StepRecord is one "thinking" step as persisted alongside the final
// assistant message, so a conversation can be replayed without re-running
// the model (§4.5 "Persistence").
type StepRecord struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Status  string `json:"status"`
	Content string `json:"content"`
	Group   string `json:"group"`
}

// Turn drives one reasoning.AgentState through a Runner, merging the
// graph's node-transition events with C1's streamed chunks into a single
// ordered sequence of SSE Frames (§4.5 "Two streams merged", §5).
type Turn struct {
	Deps      reasoning.Deps
	State     *reasoning.AgentState
	QueueSize int
}

type mergedItem struct {
	chunk *llms.StreamChunk
	event *reasoning.Event
}

// Run drives the turn to completion, sending every Frame to out in strict
// emission order. It returns the full assistant content and step records
// for persistence, and the Runner's terminal error if any. If ctx is
// canceled before the turn finishes naturally, Run returns ctx.Err() and
// the caller must not persist the partial result (§4.5 "Cancellation").
func (t *Turn) Run(ctx context.Context, out chan<- Frame) (string, []StepRecord, error) {
	queueSize := t.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}

	chunks := make(chan llms.StreamChunk, queueSize)
	merged := make(chan mergedItem, queueSize)

	var forwarder sync.WaitGroup
	forwarder.Add(1)
	go func() {
		defer forwarder.Done()
		for c := range chunks {
			c := c
			select {
			case merged <- mergedItem{chunk: &c}:
			case <-ctx.Done():
				return
			}
		}
	}()

	deps := t.Deps
	deps.OnEvent = func(e reasoning.Event) {
		select {
		case merged <- mergedItem{event: &e}:
		case <-ctx.Done():
		}
	}
	runner := reasoning.NewRunner(deps)
	runCtx := llms.WithStreamCapture(ctx, chunks)

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- runner.Run(runCtx, t.State)
		close(chunks)
		forwarder.Wait()
		close(merged)
	}()

	fanout := newToolCallFanout()
	stepsByID := make(map[string]int)
	reasoningAcc := make(map[string]string)
	var steps []StepRecord
	var transcript []byte
	currentThinkIteration := 0

	emit := func(f Frame) bool {
		select {
		case out <- f:
			return true
		case <-ctx.Done():
			return false
		}
	}

drain:
	for item := range merged {
		select {
		case <-ctx.Done():
			break drain
		default:
		}

		switch {
		case item.chunk != nil:
			c := item.chunk
			if c.Err != nil {
				if !emit(Frame{Name: NameError, Payload: ErrorPayload{Code: "provider_error", Message: c.Err.Error()}}) {
					break drain
				}
				continue
			}

			if c.ReasoningDelta != "" {
				id := fmt.Sprintf("think-%d", currentThinkIteration)
				title, group := "Thinking", fmt.Sprintf("round-%d", currentThinkIteration)
				if c.Phase == "plan" {
					id, title, group = "plan", "Planning", "plan"
				}
				if _, ok := stepsByID[id]; !ok {
					stepsByID[id] = len(steps)
					steps = append(steps, StepRecord{ID: id, Title: title, Status: string(ThinkingInProgress), Group: group})
				}
				reasoningAcc[id] += c.ReasoningDelta
				if !emit(Frame{Name: NameThinking, Payload: ThinkingPayload{
					ID: id, Title: title, Status: ThinkingInProgress,
					Content: c.ReasoningDelta, Accumulated: reasoningAcc[id], Group: group,
				}}) {
					break drain
				}
			}

			// The planner's JSON payload is accumulated silently (§4.2.1):
			// only a "think" phase's content and tool calls reach the
			// client as message/tool_call frames.
			if c.Phase == "plan" {
				continue
			}

			if c.ContentDelta != "" {
				transcript = append(transcript, c.ContentDelta...)
				if !emit(Frame{Name: NameMessage, Payload: MessagePayload{Content: c.ContentDelta}}) {
					break drain
				}
			}
			if c.ToolCallDelta != nil {
				for _, f := range fanout.apply(*c.ToolCallDelta) {
					if !emit(f) {
						break drain
					}
				}
			}

		case item.event != nil:
			e := *item.event
			switch e.Kind {
			case reasoning.EventThinkStart:
				currentThinkIteration = e.Iteration
				if e.Iteration == 0 {
					if idx, ok := stepsByID["plan"]; ok && steps[idx].Status == string(ThinkingInProgress) {
						steps[idx].Status = string(ThinkingCompleted)
						if !emit(Frame{Name: NameThinking, Payload: ThinkingPayload{
							ID: "plan", Title: "Planning", Status: ThinkingCompleted,
							Accumulated: reasoningAcc["plan"], Group: "plan",
						}}) {
							break drain
						}
					}
				}
				rec := StepRecord{
					ID:     fmt.Sprintf("think-%d", e.Iteration),
					Title:  "Thinking",
					Status: string(ThinkingInProgress),
					Group:  fmt.Sprintf("round-%d", e.Iteration),
				}
				stepsByID[rec.ID] = len(steps)
				steps = append(steps, rec)
				if !emit(Frame{Name: NameThinking, Payload: ThinkingPayload{
					ID: rec.ID, Title: rec.Title, Status: ThinkingInProgress, Content: "", Group: rec.Group,
				}}) {
					break drain
				}

			case reasoning.EventThinkEnd:
				id := fmt.Sprintf("think-%d", e.Iteration)
				status := ThinkingCompleted
				if e.Err != nil {
					status = ThinkingFailed
				}
				content := e.Response
				if idx, ok := stepsByID[id]; ok {
					steps[idx].Status = string(status)
					steps[idx].Content = content
				}
				if !emit(Frame{Name: NameThinking, Payload: ThinkingPayload{
					ID: id, Title: "Thinking", Status: status, Content: content, Group: fmt.Sprintf("round-%d", e.Iteration),
				}}) {
					break drain
				}

			case reasoning.EventToolResult:
				res := e.ToolResult
				if frame, ok := fanout.complete(res.ToolCallID, res.Success); ok {
					if !emit(frame) {
						break drain
					}
				}
				if !emit(Frame{Name: NameToolResult, Payload: ToolResultPayload{
					ID: res.ToolCallID, Name: res.ToolName, Result: res.Content, Success: res.Success, Error: res.Error,
				}}) {
					break drain
				}

			case reasoning.EventError:
				if !emit(Frame{Name: NameError, Payload: ErrorPayload{Code: "agent_error", Message: e.Err.Error()}}) {
					break drain
				}

			case reasoning.EventDone:
				// No frame of its own; "done" is emitted once after the
				// merge loop drains, per §4.5.
			}
		}
	}

	runErr := <-runErrCh
	if ctx.Err() != nil {
		return "", nil, ctx.Err()
	}

	emit(Frame{Name: NameDone, Payload: struct{}{}})
	return string(transcript), steps, runErr
}
