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

package checkpoint

import (
	"context"
	"fmt"
	"sync"
)

// Backend persists the single most recent checkpoint per thread id. A
// thread id defaults to the session id (§4.2) but callers may supply any
// stable key.
type Backend interface {
	Save(ctx context.Context, threadID string, data []byte) error
	Load(ctx context.Context, threadID string) ([]byte, bool, error)
	Delete(ctx context.Context, threadID string) error
}

// MemoryBackend is the default Backend: process-local, lost on restart.
// A deployment that needs real resume-after-crash durability supplies its
// own Backend (a SQL table keyed by thread id, matching the `query_template`/
// `table_name` shape §4.3's data_api tools already use for persistence).
type MemoryBackend struct {
	mu    sync.RWMutex
	state map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{state: make(map[string][]byte)}
}

func (b *MemoryBackend) Save(_ context.Context, threadID string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state[threadID] = data
	return nil
}

func (b *MemoryBackend) Load(_ context.Context, threadID string) ([]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.state[threadID]
	return data, ok, nil
}

func (b *MemoryBackend) Delete(_ context.Context, threadID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.state, threadID)
	return nil
}

// Storage is the checkpoint-State-aware layer on top of a raw Backend.
type Storage struct {
	backend Backend
}

// NewStorage creates a new checkpoint Storage over the given Backend. A
// nil backend is replaced by a MemoryBackend.
func NewStorage(backend Backend) *Storage {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	return &Storage{backend: backend}
}

// Save persists a checkpoint state, overwriting any prior checkpoint for
// the same thread id — only the latest checkpoint per thread is kept.
func (s *Storage) Save(ctx context.Context, state *State) error {
	if state == nil {
		return fmt.Errorf("cannot save nil checkpoint state")
	}
	if state.ThreadID == "" {
		return fmt.Errorf("thread_id is required for checkpoint")
	}

	data, err := state.Serialize()
	if err != nil {
		return fmt.Errorf("serialize checkpoint state: %w", err)
	}

	if err := s.backend.Save(ctx, state.ThreadID, data); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load retrieves the most recent checkpoint for a thread id.
func (s *Storage) Load(ctx context.Context, threadID string) (*State, bool, error) {
	data, ok, err := s.backend.Load(ctx, threadID)
	if err != nil {
		return nil, false, fmt.Errorf("load checkpoint: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	state, err := Deserialize(data)
	if err != nil {
		return nil, false, fmt.Errorf("deserialize checkpoint: %w", err)
	}
	return state, true, nil
}

// Clear removes the checkpoint for a thread id.
func (s *Storage) Clear(ctx context.Context, threadID string) error {
	if err := s.backend.Delete(ctx, threadID); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}
