/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"photobook/internal/domain"
	applog "photobook/internal/log"
)

// Saver persists a project snapshot. Implementations include the manifest store and the
// remote backend.
type Saver interface {
	Save(ctx context.Context, p domain.Project) error
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context, p domain.Project) error

func (f SaverFunc) Save(ctx context.Context, p domain.Project) error { return f(ctx, p) }

// SaveResult reports one finished background save.
type SaveResult struct {
	ProjectID string
	Revision  int
	Duration  time.Duration
	Err       error
}

var (
	// ErrNoSaver is returned by Save when the session has no Saver.
	ErrNoSaver = errors.New("editor: no saver configured")
	// ErrClosed is returned by Save after Close.
	ErrClosed = errors.New("editor: session closed")
)

// Save snapshots the project and persists it in the background. It returns the revision number
// of the snapshot; the outcome arrives on SaveResults. Local edits are never rolled back, whatever
// the result.
func (s *Session) Save(ctx context.Context) (int, error) {
	if s.saver == nil {
		return 0, ErrNoSaver
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	s.revision++
	rev := s.revision
	snap := s.project.Clone()
	ctx = applog.ContextWithProject(ctx, snap.ID)
	s.saveWG.Add(1)
	go func() {
		defer s.saveWG.Done()
		start := time.Now()
		err := s.saver.Save(ctx, snap)
		res := SaveResult{ProjectID: snap.ID, Revision: rev, Duration: time.Since(start), Err: err}
		s.metrics.SaveFinished(res.Duration, err)
		if err != nil {
			s.log.Error("save failed", slog.Int("revision", rev), slog.Any("err", err))
		} else {
			s.log.Debug("saved", slog.Int("revision", rev), slog.Duration("took", res.Duration))
		}
		select {
		case s.saves <- res:
		default:
			s.log.Warn("save result dropped; nobody is reading SaveResults", slog.Int("revision", rev))
		}
	}()
	return rev, nil
}

// SaveResults delivers the outcome of every Save. It is closed by Close.
func (s *Session) SaveResults() <-chan SaveResult { return s.saves }

// Close waits for pending saves and closes the results channel.
func (s *Session) Close() {
	s.saveMu.Lock()
	if s.closed {
		s.saveMu.Unlock()
		return
	}
	s.closed = true
	s.saveMu.Unlock()
	s.saveWG.Wait()
	close(s.saves)
}
