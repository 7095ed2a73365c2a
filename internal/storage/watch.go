/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	applog "photobook/internal/log"
)

// DefaultWatchDebounce coalesces the burst of events a transactional save produces.
const DefaultWatchDebounce = 250 * time.Millisecond

// Change is one reload of a watched manifest.
type Change struct {
	Handle *ProjectHandle
	Err    error
}

// Watcher reports external edits of a project manifest.
type Watcher struct {
	w       *fsnotify.Watcher
	changes chan Change
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	log     *slog.Logger
}

// Watch observes the manifest in root and reloads it after every change settles for debounce
// (DefaultWatchDebounce when zero). The directory is watched rather than the file, because Save
// replaces the manifest by rename.
func Watch(ctx context.Context, root string, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(root); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", root, err)
	}
	ctx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		w:       fw,
		changes: make(chan Change),
		cancel:  cancel,
		log:     applog.WithOperation(applog.WithComponent("storage"), "watch").With(slog.String("root", root)),
	}
	w.wg.Add(1)
	go w.loop(ctx, root, debounce)
	return w, nil
}

// Changes delivers reloads until the watcher is closed.
func (w *Watcher) Changes() <-chan Change { return w.changes }

// Close stops watching and closes the Changes channel.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.w.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop(ctx context.Context, root string, debounce time.Duration) {
	defer w.wg.Done()
	defer close(w.changes)
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.w.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != ManifestFileName || ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Stop()
				timer.Reset(debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			ph, err := Open(root)
			if err != nil {
				w.log.Warn("reload failed", slog.Any("err", err))
			}
			select {
			case w.changes <- Change{Handle: ph, Err: err}:
			case <-ctx.Done():
				return
			}
		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", slog.Any("err", err))
		}
	}
}
