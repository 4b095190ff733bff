package server

import (
	"testing"

	"github.com/agentcore/orchestrator/pkg/llms"
)

func TestToolCallFanout_SingleDeltaProducesCallingThenUpdate(t *testing.T) {
	f := newToolCallFanout()
	frames := f.apply(llms.ToolCallDelta{Index: 0, ID: "call_1", Name: "web_search", ArgumentsJSON: `{"q":"go"}`})

	if len(frames) != 2 {
		t.Fatalf("frames = %d, want 2", len(frames))
	}
	calling := frames[0].Payload.(ToolCallPayload)
	if calling.Status != ToolCallCalling || calling.Name != "web_search" {
		t.Errorf("first frame = %+v, want calling/web_search", calling)
	}
	if args, ok := calling.Arguments.(map[string]interface{}); !ok || len(args) != 0 {
		t.Errorf("first frame Arguments = %v, want empty object", calling.Arguments)
	}
	update := frames[1].Payload.(ToolCallPayload)
	args, ok := update.Arguments.(map[string]interface{})
	if !ok || args["q"] != "go" {
		t.Errorf("second frame Arguments = %v, want {q: go}", update.Arguments)
	}
	if update.Group != "搜索信息" {
		t.Errorf("Group = %q, want 搜索信息", update.Group)
	}
}

func TestToolCallFanout_FragmentedDeltasAccumulate(t *testing.T) {
	f := newToolCallFanout()
	f.apply(llms.ToolCallDelta{Index: 0, ID: "call_1", Name: "run_"})
	frames := f.apply(llms.ToolCallDelta{Index: 0, Name: "python", ArgumentsJSON: `{"code":`})
	frames = append(frames, f.apply(llms.ToolCallDelta{Index: 0, ArgumentsJSON: `"1+1"}`})...)

	last := frames[len(frames)-1].Payload.(ToolCallPayload)
	args, ok := last.Arguments.(map[string]interface{})
	if !ok || args["code"] != "1+1" {
		t.Errorf("final Arguments = %v, want {code: 1+1}", last.Arguments)
	}
	if last.Name != "run_python" {
		t.Errorf("Name = %q, want run_python", last.Name)
	}
}

func TestToolCallFanout_InvalidJSONFallsBackToRawArgs(t *testing.T) {
	f := newToolCallFanout()
	frames := f.apply(llms.ToolCallDelta{Index: 0, ID: "call_1", Name: "calculator", ArgumentsJSON: `{"a":`})
	last := frames[len(frames)-1].Payload.(ToolCallPayload)
	args, ok := last.Arguments.(map[string]interface{})
	if !ok || args["_raw_args"] != `{"a":` {
		t.Errorf("Arguments = %v, want raw args fallback", last.Arguments)
	}
}

func TestToolCallFanout_CompleteProducesTerminalFrame(t *testing.T) {
	f := newToolCallFanout()
	f.apply(llms.ToolCallDelta{Index: 0, ID: "call_1", Name: "calculator", ArgumentsJSON: `{"a":1}`})

	frame, ok := f.complete("call_1", true)
	if !ok {
		t.Fatal("complete() ok = false, want true")
	}
	payload := frame.Payload.(ToolCallPayload)
	if payload.Status != ToolCallDone {
		t.Errorf("Status = %v, want done", payload.Status)
	}

	if _, ok := f.complete("unknown", true); ok {
		t.Error("complete() on unseen id should return ok = false")
	}
}

func TestToolCallFanout_GroupIDStableWithinGroup(t *testing.T) {
	f := newToolCallFanout()
	f.apply(llms.ToolCallDelta{Index: 0, ID: "call_1", Name: "web_search"})
	frames := f.apply(llms.ToolCallDelta{Index: 1, ID: "call_2", Name: "search_more"})

	id1 := f.byID["call_1"].groupID
	id2 := frames[0].Payload.(ToolCallPayload).GroupID
	if id1 != id2 {
		t.Errorf("groupID mismatch: %q vs %q, want same group id for same category", id1, id2)
	}
}
