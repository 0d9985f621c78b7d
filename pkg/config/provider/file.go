// Copyright 2026 Kadir Pekel
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

// Package provider watches configuration sources for changes. The
// serve command uses it to reapply the logging level without a
// restart.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher signals when a config file changes on disk. Rapid
// successive writes, the usual editor save pattern, collapse into a
// single signal.
type Watcher struct {
	path string
	log  *slog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	closed  bool
}

// NewWatcher prepares a watcher for the given file. Nothing is
// observed until Start.
func NewWatcher(path string, log *slog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{path: abs, log: log}, nil
}

// Start begins watching. The returned channel carries one value per
// observed change and closes when ctx ends or the watcher is closed.
func (w *Watcher) Start(ctx context.Context) (<-chan struct{}, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, fmt.Errorf("watcher is closed")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Watch the parent directory; watching the file itself breaks
	// with editors that rename a fresh copy over it.
	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.watcher = fsw

	ch := make(chan struct{}, 1)
	go w.run(ctx, fsw, ch)

	w.log.Info("Watching config file", "path", w.path)
	return ch, nil
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher, ch chan<- struct{}) {
	defer close(ch)
	defer func() { _ = fsw.Close() }()

	// A write burst settles before the signal fires.
	const settle = 100 * time.Millisecond
	var pending *time.Timer
	notify := func() {
		select {
		case ch <- struct{}{}:
		default:
			// A change is already queued.
		}
	}

	for {
		select {
		case <-ctx.Done():
			if pending != nil {
				pending.Stop()
			}
			return

		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != filepath.Base(w.path) {
				continue
			}
			switch {
			case ev.Has(fsnotify.Write), ev.Has(fsnotify.Create):
				if pending != nil {
					pending.Stop()
				}
				pending = time.AfterFunc(settle, notify)
			case ev.Has(fsnotify.Remove):
				w.log.Warn("Config file removed", "path", w.path)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.log.Error("Config watch error", "error", err)
		}
	}
}

// Close stops the watcher. Safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}
