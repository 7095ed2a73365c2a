/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package history records reversible document changes and replays them for undo/redo.
package history

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"photobook/internal/document"
	"photobook/internal/domain"
	applog "photobook/internal/log"
)

// DefaultMaxDepth bounds the undo stack when Config.MaxDepth is not set.
const DefaultMaxDepth = 50

var (
	// ErrGroupOpen is returned when recording or undoing while an interactive group is buffering.
	ErrGroupOpen = errors.New("history: interactive group in progress")
	// ErrNoGroup is returned by Buffer/Commit without a preceding Begin.
	ErrNoGroup = errors.New("history: no interactive group")
)

// Action is one undoable step: the diff that performs it and the diff that reverses it.
type Action struct {
	Kind    string
	Forward document.Diff
	Inverse document.Diff
	TS      time.Time
	// MergeKey, when set and Config.MergeWindow > 0, lets consecutive actions with the same key
	// collapse into one entry (e.g. repeated arrow-key nudges of one element).
	MergeKey string
}

// Status reports what Undo/Redo did.
type Status int

const (
	StatusApplied Status = iota
	StatusEmpty
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusApplied:
		return "applied"
	case StatusEmpty:
		return "empty"
	default:
		return "failed"
	}
}

// Config controls depth and merging.
type Config struct {
	// MaxDepth caps the undo stack; the oldest entries are discarded first.
	MaxDepth int
	// MergeWindow merges actions sharing a MergeKey recorded within the window. Zero disables merging.
	MergeWindow time.Duration
	// Now is the clock used for timestamps; defaults to time.Now.
	Now func() time.Time
}

// Manager holds the undo and redo stacks of one editing session.
// It is safe for concurrent use.
type Manager struct {
	cfg  Config
	mu   sync.Mutex
	undo []Action
	redo []Action

	group *group
	log   *slog.Logger
}

type group struct {
	kind    string
	forward document.Diff
	inverse document.Diff
	steps   int
}

// NewManager returns a manager with defaults applied.
func NewManager(cfg Config) *Manager {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{cfg: cfg, log: applog.WithComponent("history")}
}

// Record pushes an action and clears the redo stack. Actions with an empty forward diff are ignored.
func (m *Manager) Record(a Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.group != nil {
		return ErrGroupOpen
	}
	m.recordLocked(a)
	return nil
}

func (m *Manager) recordLocked(a Action) {
	if a.Forward.Empty() {
		return
	}
	if a.TS.IsZero() {
		a.TS = m.cfg.Now()
	}
	m.redo = nil
	if n := len(m.undo); n > 0 && a.MergeKey != "" && m.cfg.MergeWindow > 0 {
		last := m.undo[n-1]
		if last.MergeKey == a.MergeKey && a.TS.Sub(last.TS) < m.cfg.MergeWindow {
			m.undo[n-1] = Action{
				Kind:     a.Kind,
				Forward:  last.Forward.Then(a.Forward).Compact(),
				Inverse:  a.Inverse.Then(last.Inverse).Compact(),
				TS:       a.TS,
				MergeKey: a.MergeKey,
			}
			return
		}
	}
	m.undo = append(m.undo, a)
	if over := len(m.undo) - m.cfg.MaxDepth; over > 0 {
		m.undo = append([]Action(nil), m.undo[over:]...)
	}
}

// Undo applies the inverse of the most recent action to p. An empty stack is not an error: it
// returns p unchanged with StatusEmpty.
func (m *Manager) Undo(p domain.Project) (domain.Project, Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.group != nil {
		return p, StatusFailed, ErrGroupOpen
	}
	n := len(m.undo)
	if n == 0 {
		return p, StatusEmpty, nil
	}
	a := m.undo[n-1]
	next, err := document.Apply(p, a.Inverse)
	if err != nil {
		m.log.Error("undo failed", slog.String("kind", a.Kind), slog.Any("err", err))
		return p, StatusFailed, err
	}
	m.undo = m.undo[:n-1]
	m.redo = append(m.redo, a)
	m.log.Debug("undo", slog.String("kind", a.Kind), slog.Int("remaining", len(m.undo)))
	return next, StatusApplied, nil
}

// Redo re-applies the most recently undone action.
func (m *Manager) Redo(p domain.Project) (domain.Project, Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.group != nil {
		return p, StatusFailed, ErrGroupOpen
	}
	n := len(m.redo)
	if n == 0 {
		return p, StatusEmpty, nil
	}
	a := m.redo[n-1]
	next, err := document.Apply(p, a.Forward)
	if err != nil {
		m.log.Error("redo failed", slog.String("kind", a.Kind), slog.Any("err", err))
		return p, StatusFailed, err
	}
	m.redo = m.redo[:n-1]
	m.undo = append(m.undo, a)
	if over := len(m.undo) - m.cfg.MaxDepth; over > 0 {
		m.undo = append([]Action(nil), m.undo[over:]...)
	}
	m.log.Debug("redo", slog.String("kind", a.Kind), slog.Int("remaining", len(m.redo)))
	return next, StatusApplied, nil
}

// Clear drops both stacks and any open group.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undo, m.redo, m.group = nil, nil, nil
}

// CanUndo reports whether Undo would apply something.
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo) > 0 && m.group == nil
}

// CanRedo reports whether Redo would apply something.
func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo) > 0 && m.group == nil
}

// Stats returns the stack sizes.
func (m *Manager) Stats() (undo, redo int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo), len(m.redo)
}

// PeekUndo returns the action Undo would reverse, for menu labels.
func (m *Manager) PeekUndo() (Action, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.undo) == 0 {
		return Action{}, false
	}
	return m.undo[len(m.undo)-1], true
}

// PeekRedo returns the action Redo would re-apply.
func (m *Manager) PeekRedo() (Action, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.redo) == 0 {
		return Action{}, false
	}
	return m.redo[len(m.redo)-1], true
}
