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

package provider

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of fsnotify events a single editor
// save typically produces (write, then chmod, then another write) into one
// reload signal.
const reloadDebounce = 100 * time.Millisecond

// rewatchAttempts bounds how long FileProvider keeps retrying after its
// watched file disappears (editors that save via rename-over-original
// briefly unlink the original path).
const rewatchAttempts = 10

// FileProvider is the filesystem-backed Provider: it reads the orchestrator
// config from a single YAML/JSON file and, when Watch is called, emits a
// reload signal whenever that file's directory reports a write, create, or
// remove-then-recreate for it.
type FileProvider struct {
	path string

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	closed  bool
}

// NewFileProvider resolves path to an absolute form and returns a provider
// reading from it. The file need not exist yet.
func NewFileProvider(path string) (*FileProvider, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path %q: %w", path, err)
	}
	return &FileProvider{path: absPath}, nil
}

// Type returns TypeFile.
func (p *FileProvider) Type() Type {
	return TypeFile
}

// Load reads the full config file contents.
func (p *FileProvider) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", p.path, err)
	}
	return data, nil
}

// Watch starts an fsnotify watch on the file's parent directory (fsnotify
// cannot watch a single file reliably across editors' save strategies) and
// returns a buffered channel that receives a value after each debounced
// change. The channel closes when ctx is canceled or Close is called.
func (p *FileProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("file provider for %s is closed", p.path)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	p.watcher = watcher

	dir := filepath.Dir(p.path)
	base := filepath.Base(p.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch directory %s: %w", dir, err)
	}

	changes := make(chan struct{}, 1)
	go p.watchLoop(ctx, watcher, base, changes)

	slog.Info("config: watching file for changes", "path", p.path)
	return changes, nil
}

func (p *FileProvider) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, base string, changes chan<- struct{}) {
	defer close(changes)
	defer watcher.Close()

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	signal := func() {
		select {
		case changes <- struct{}{}:
		default:
			// a reload is already pending
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}

			switch {
			case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(reloadDebounce, func() {
					slog.Debug("config: file changed", "path", p.path)
					signal()
				})
			case event.Op&fsnotify.Remove != 0:
				slog.Warn("config: watched file removed, attempting to re-establish watch", "path", p.path)
				go p.rewatch(ctx, watcher, signal)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Error("config: file watcher error", "path", p.path, "error", err)
		}
	}
}

// rewatch polls for the file's reappearance after a Remove event, since
// some editors save by unlinking and recreating rather than truncating.
func (p *FileProvider) rewatch(ctx context.Context, watcher *fsnotify.Watcher, signal func()) {
	ticker := time.NewTicker(reloadDebounce * 5)
	defer ticker.Stop()

	for i := 0; i < rewatchAttempts; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := os.Stat(p.path); err != nil {
				continue
			}
			if err := watcher.Add(filepath.Dir(p.path)); err != nil {
				continue
			}
			slog.Info("config: re-established file watch", "path", p.path)
			signal()
			return
		}
	}
	slog.Warn("config: gave up re-establishing file watch", "path", p.path)
}

// Close stops watching and releases the underlying fsnotify watcher.
func (p *FileProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.watcher == nil {
		return nil
	}
	err := p.watcher.Close()
	p.watcher = nil
	return err
}

var _ Provider = (*FileProvider)(nil)
