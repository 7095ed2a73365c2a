/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package history

import (
	"log/slog"

	"photobook/internal/document"
)

// Interactive edits (a drag, a resize handle, a rotation knob) produce a result per frame. They are
// buffered in a group and land in the history as a single action when the interaction ends.

// Begin opens a group. A group already open is an error; the caller must Commit or Discard first.
func (m *Manager) Begin(kind string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.group != nil {
		return ErrGroupOpen
	}
	m.group = &group{kind: kind}
	return nil
}

// InGroup reports whether a group is open.
func (m *Manager) InGroup() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.group != nil
}

// Buffer appends one intermediate step to the open group.
func (m *Manager) Buffer(res document.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.group == nil {
		return ErrNoGroup
	}
	m.group.forward = m.group.forward.Then(res.Forward)
	m.group.inverse = res.Inverse.Then(m.group.inverse)
	m.group.steps++
	return nil
}

// Commit closes the group and records it as one action. It reports false when the group had no
// steps or its steps ended where they began, in which case nothing is recorded.
func (m *Manager) Commit() (Action, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.group
	if g == nil {
		return Action{}, false, ErrNoGroup
	}
	m.group = nil
	if g.steps == 0 {
		return Action{}, false, nil
	}
	if g.forward.Cancels(g.inverse) {
		m.log.Debug("group dropped, no net change", slog.String("kind", g.kind), slog.Int("steps", g.steps))
		return Action{}, false, nil
	}
	a := Action{Kind: g.kind, Forward: g.forward.Compact(), Inverse: g.inverse.Compact(), TS: m.cfg.Now()}
	m.recordLocked(a)
	m.log.Debug("group committed", slog.String("kind", g.kind), slog.Int("steps", g.steps), slog.Int("ops", len(a.Forward)))
	return a, true, nil
}

// Discard closes the group without recording. It returns the diff that reverts every buffered
// step, so the caller can restore the pre-interaction snapshot if it applied them live.
func (m *Manager) Discard() (document.Diff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.group
	if g == nil {
		return nil, ErrNoGroup
	}
	m.group = nil
	return g.inverse.Compact(), nil
}
