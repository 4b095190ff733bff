package server

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/agentcore/orchestrator/pkg/llms"
)

// toolCallFanout accumulates C1's per-position streaming tool-call deltas
// into the "tool_call" frame sequence required by §4.5: a calling frame
// once the name is known, an update frame each time accumulated arguments
// change, and a done/failed frame once C3 returns a result.
type toolCallFanout struct {
	mu        sync.Mutex
	byPos     map[int]*fanoutCall
	byID      map[string]*fanoutCall
	groupIDs  map[string]string
	nextGroup int
}

type fanoutCall struct {
	id           string
	name         string
	argsBuf      strings.Builder
	started      bool
	group        string
	groupID      string
	displayTitle string
	subItemType  string
}

func newToolCallFanout() *toolCallFanout {
	return &toolCallFanout{
		byPos:    make(map[int]*fanoutCall),
		byID:     make(map[string]*fanoutCall),
		groupIDs: make(map[string]string),
	}
}

// apply accumulates one delta and returns the frames it produces, in
// emission order: at most a "calling" frame (once) followed by an
// "arguments updated" frame.
func (f *toolCallFanout) apply(delta llms.ToolCallDelta) []Frame {
	f.mu.Lock()
	defer f.mu.Unlock()

	call, ok := f.byPos[delta.Index]
	if !ok {
		call = &fanoutCall{}
		f.byPos[delta.Index] = call
	}
	if call.id == "" && delta.ID != "" {
		call.id = delta.ID
		f.byID[call.id] = call
	}
	call.name += delta.Name
	call.argsBuf.WriteString(delta.ArgumentsJSON)

	var frames []Frame
	if !call.started && call.name != "" {
		call.started = true
		call.group, call.subItemType = classifyToolGroup(call.name)
		call.groupID = f.groupID(call.group)
		call.displayTitle = displayTitleFor(call.name, call.group)
		frames = append(frames, Frame{Name: NameToolCall, Payload: ToolCallPayload{
			ID: call.id, Name: call.name, Arguments: map[string]interface{}{},
			Status: ToolCallCalling, Group: call.group, GroupID: call.groupID,
			DisplayTitle: call.displayTitle, SubItemType: call.subItemType,
		}})
	}

	if args := call.argsBuf.String(); args != "" {
		frames = append(frames, Frame{Name: NameToolCall, Payload: ToolCallPayload{
			ID: call.id, Name: call.name, Arguments: parseOrRaw(args),
			Status: ToolCallCalling, Group: call.group, GroupID: call.groupID,
			DisplayTitle: call.displayTitle, SubItemType: call.subItemType,
		}})
	}
	return frames
}

// complete produces the terminal tool_call frame for toolCallID once C3
// returns a result. The second return value is false if no streamed call
// with that id was ever observed (a non-streaming or synthetic call).
func (f *toolCallFanout) complete(toolCallID string, success bool) (Frame, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call, ok := f.byID[toolCallID]
	if !ok {
		return Frame{}, false
	}
	status := ToolCallDone
	if !success {
		status = ToolCallFailed
	}
	return Frame{Name: NameToolCall, Payload: ToolCallPayload{
		ID: call.id, Name: call.name, Arguments: parseOrRaw(call.argsBuf.String()),
		Status: status, Group: call.group, GroupID: call.groupID,
		DisplayTitle: call.displayTitle, SubItemType: call.subItemType,
	}}, true
}

func (f *toolCallFanout) groupID(group string) string {
	if id, ok := f.groupIDs[group]; ok {
		return id
	}
	f.nextGroup++
	id := fmt.Sprintf("group-%d", f.nextGroup)
	f.groupIDs[group] = id
	return id
}

// parseOrRaw implements §4.5's arguments fallback: the parsed object once
// the accumulated JSON is valid, otherwise {"_raw_args": "<partial>"}.
func parseOrRaw(args string) interface{} {
	if args == "" {
		return map[string]interface{}{}
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(args), &parsed); err == nil {
		return parsed
	}
	return map[string]interface{}{"_raw_args": args}
}
