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

package observability

import (
	"context"
	"time"
)

// NoopManager returns a no-operation Manager that does nothing.
// Use this when observability is completely disabled.
func NoopManager() *Manager {
	return &Manager{}
}

// NoopMetrics is a Metrics implementation that discards everything.
// GetGlobalMetrics falls back to it when no recorder has been installed.
type NoopMetrics struct{}

func (NoopMetrics) RecordAgentCall(_ context.Context, _ time.Duration, _ int, _ error)       {}
func (NoopMetrics) RecordToolExecution(_ context.Context, _ string, _ time.Duration, _ error) {}
func (NoopMetrics) RecordLLMCall(_ context.Context, _ string, _ time.Duration, _, _ int, _ error) {
}
func (NoopMetrics) RecordHTTPRequest(_ context.Context, _, _ string, _ int, _ time.Duration, _ int) {
}
func (NoopMetrics) RecordGRPCCall(_ context.Context, _, _, _ string, _ time.Duration, _ error) {}
func (NoopMetrics) RecordSession(_ context.Context, _ string, _ time.Duration, _ bool)         {}
func (NoopMetrics) RecordConversationTurn(_ context.Context, _ string, _ int)                  {}
func (NoopMetrics) RecordDAGLevel(_ context.Context, _ string, _, _ int, _ time.Duration)      {}
func (NoopMetrics) RecordPermissionDenial(_ context.Context, _, _ string)                      {}
func (NoopMetrics) SetSSEQueueDepth(_ context.Context, _ string, _ int)                        {}

var _ Metrics = NoopMetrics{}
