// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package checkpoint

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Manager orchestrates checkpointing for a C2 run: one Save per graph
// node transition, and a Load/Clear pair for resuming or discarding a
// thread. When disabled it is a safe, silent no-op — the loop proceeds
// in-memory only, per §4.2.
type Manager struct {
	config  *Config
	storage *Storage
}

// NewManager creates a new checkpoint Manager over backend. A nil backend
// is replaced by an in-memory one; a nil config disables checkpointing.
func NewManager(cfg *Config, backend Backend) *Manager {
	if cfg == nil {
		cfg = &Config{}
		cfg.SetDefaults()
	}
	return &Manager{
		config:  cfg,
		storage: NewStorage(backend),
	}
}

// IsEnabled returns whether checkpointing is enabled.
func (m *Manager) IsEnabled() bool {
	return m != nil && m.config.IsEnabled()
}

// Checkpoint saves the agent state after a graph node transition. No-op
// if the manager is nil or checkpointing is disabled.
func (m *Manager) Checkpoint(ctx context.Context, threadID string, phase Phase, iteration int, agentState json.RawMessage) {
	if !m.IsEnabled() {
		return
	}
	state := NewState(threadID, phase, iteration, agentState)
	if err := m.storage.Save(ctx, state); err != nil {
		slog.Warn("checkpoint: failed to save", "thread_id", threadID, "phase", phase, "error", err)
	}
}

// CheckpointError saves a checkpoint on the error path, independent of
// IsEnabled, so a run that fails leaves a record even when periodic
// checkpointing is otherwise off. Matches §4.2.5: the error node is a
// terminal state worth always recording once a backend is configured.
func (m *Manager) CheckpointError(ctx context.Context, threadID string, iteration int, agentState json.RawMessage, runErr error) {
	if m == nil {
		return
	}
	state := NewState(threadID, PhaseError, iteration, agentState).WithError(runErr)
	if err := m.storage.Save(ctx, state); err != nil {
		slog.Warn("checkpoint: failed to save error state", "thread_id", threadID, "error", err)
	}
}

// Resume loads the most recent checkpoint for a thread id, for a caller
// that wants to re-enter the graph at the recorded node instead of
// starting fresh.
func (m *Manager) Resume(ctx context.Context, threadID string) (*State, bool, error) {
	if m == nil {
		return nil, false, nil
	}
	return m.storage.Load(ctx, threadID)
}

// Clear discards the checkpoint for a thread id once a run finishes
// successfully, so completed threads don't accumulate stale state.
func (m *Manager) Clear(ctx context.Context, threadID string) {
	if !m.IsEnabled() {
		return
	}
	if err := m.storage.Clear(ctx, threadID); err != nil {
		slog.Warn("checkpoint: failed to clear", "thread_id", threadID, "error", err)
	}
}
