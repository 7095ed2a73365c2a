/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"photobook/internal/dnd"
	"photobook/internal/history"
	"photobook/internal/vector"
)

// Palette drags (and element drags started outside the canvas, e.g. from a page strip) run
// through the dnd resolver against the active page and the session viewport.

// StartDrop opens a drag session for payload at the screen point. A second concurrent session is
// rejected with *dnd.DragSessionConflictError.
func (s *Session) StartDrop(screen vector.Pt, payload dnd.Payload) error {
	if s.drag != nil {
		return s.dragConflict()
	}
	if s.pan != nil {
		return ErrBusy
	}
	if _, ok := s.ActivePage(); !ok {
		return ErrNoPage
	}
	ds, err := s.drops.Start(s.project, s.view.PageID, s.Viewport(), screen, payload)
	if err != nil {
		return err
	}
	s.drop = ds
	return nil
}

// MoveDrop updates the drop preview.
func (s *Session) MoveDrop(screen vector.Pt) (dnd.Preview, error) {
	if s.drop == nil {
		return dnd.Preview{}, dnd.ErrNoSession
	}
	pv, err := s.drop.Move(screen)
	s.guides = pv.Guides
	return pv, err
}

// EndDrop resolves the drop. Created and moved outcomes are recorded as one history entry and
// select the element; a rejected drop leaves the document untouched.
func (s *Session) EndDrop(screen vector.Pt) (dnd.Drop, error) {
	if s.drop == nil {
		return dnd.Drop{}, dnd.ErrNoSession
	}
	ds := s.drop
	s.drop = nil
	s.guides = nil
	drop, err := ds.End(s.project, screen)
	if err != nil {
		s.noteFailure(err)
		return drop, err
	}
	switch drop.Outcome {
	case dnd.OutcomeCreated, dnd.OutcomeMoved:
		kind := "add"
		if drop.Outcome == dnd.OutcomeMoved {
			kind = "move"
		}
		a := history.Action{Kind: kind, Forward: drop.Result.Forward, Inverse: drop.Result.Inverse}
		if err := s.commit(a, drop.Result.Next); err != nil {
			return drop, err
		}
		s.setSelection([]string{drop.ElementID})
	}
	return drop, nil
}

// CancelDrop abandons the drop session without touching the document.
func (s *Session) CancelDrop() dnd.Drop {
	if s.drop == nil {
		return dnd.Drop{Outcome: dnd.OutcomeCancelled}
	}
	ds := s.drop
	s.drop = nil
	s.guides = nil
	return ds.Cancel(s.project)
}

// HandleInput feeds one raw backend event into the drop session. payload is used when the event
// starts a drag. Events the backend ignores return a zero Drop.
func (s *Session) HandleInput(b dnd.InputBackend, raw any, payload dnd.Payload) (dnd.Drop, error) {
	ev, ok := b.Normalize(raw)
	if !ok {
		return dnd.Drop{}, nil
	}
	switch ev.Phase {
	case dnd.PhaseStart:
		return dnd.Drop{}, s.StartDrop(ev.Pos, payload)
	case dnd.PhaseMove:
		pv, err := s.MoveDrop(ev.Pos)
		return dnd.Drop{Guides: pv.Guides}, err
	case dnd.PhaseEnd:
		return s.EndDrop(ev.Pos)
	default:
		return s.CancelDrop(), nil
	}
}
