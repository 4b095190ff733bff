// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package checkpoint provides per-node-transition state capture and
// recovery for the C2 ReAct agent loop (§4.2).
//
// A checkpoint is keyed by thread id (the session id by default, or a
// caller-supplied id) and carries the graph node just completed plus the
// full AgentState, serialized as opaque JSON so this package never needs
// to import pkg/reasoning. Resuming a thread means loading the most
// recent State, unmarshaling AgentStateJSON back into a
// reasoning.AgentState, and re-entering the graph at the recorded node.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"time"
)

// Phase is the C2 graph node a checkpoint was taken after.
type Phase string

const (
	PhasePlan         Phase = "plan"
	PhaseThink        Phase = "think"
	PhaseExecuteTools Phase = "execute_tools"
	PhaseValidate     Phase = "validate"
	PhaseRespond      Phase = "respond"
	PhaseError        Phase = "error"
)

// State is one checkpoint: a thread id, the node it was taken after, and
// the full agent state at that point.
type State struct {
	ThreadID       string          `json:"thread_id"`
	Phase          Phase           `json:"phase"`
	Iteration      int             `json:"iteration"`
	CheckpointTime time.Time       `json:"checkpoint_time"`
	AgentStateJSON json.RawMessage `json:"agent_state"`
	Error          string          `json:"error,omitempty"`
}

// NewState creates a checkpoint State with required fields.
func NewState(threadID string, phase Phase, iteration int, agentStateJSON json.RawMessage) *State {
	return &State{
		ThreadID:       threadID,
		Phase:          phase,
		Iteration:      iteration,
		CheckpointTime: time.Now(),
		AgentStateJSON: agentStateJSON,
	}
}

// WithError records that the checkpoint was taken on the error path.
func (s *State) WithError(err error) *State {
	if err != nil {
		s.Error = err.Error()
		s.Phase = PhaseError
	}
	return s
}

// Serialize converts the State to JSON bytes.
func (s *State) Serialize() ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("cannot serialize nil checkpoint state")
	}
	return json.Marshal(s)
}

// Deserialize reconstructs a State from JSON bytes.
func Deserialize(data []byte) (*State, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot deserialize empty checkpoint data")
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint state: %w", err)
	}
	return &state, nil
}
