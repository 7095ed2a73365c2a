/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"strings"

	"photobook/internal/document"
	"photobook/internal/domain"
	"photobook/internal/history"
	"photobook/internal/layout"
)

// AddElement places el on the active page, records it and selects it. It returns the element id.
func (s *Session) AddElement(el domain.Element) (string, error) {
	if s.busy() {
		return "", ErrBusy
	}
	if _, ok := s.ActivePage(); !ok {
		return "", ErrNoPage
	}
	res, err := s.model.AddElement(s.project, s.view.PageID, el)
	if err := s.run("add", res, err); err != nil {
		return "", err
	}
	pg, _ := s.ActivePage()
	id := pg.Elements[len(pg.Elements)-1].ID
	s.setSelection([]string{id})
	return id, nil
}

// AddPage inserts pg at index (negative appends) and makes it the active page.
func (s *Session) AddPage(pg domain.Page, index int) (string, error) {
	if s.busy() {
		return "", ErrBusy
	}
	res, err := s.model.AddPage(s.project, pg, index)
	if err := s.run("addPage", res, err); err != nil {
		return "", err
	}
	id := res.Forward[0].Page.ID
	s.view.PageID = id
	s.setSelection(nil)
	return id, nil
}

// RemovePage deletes a page with its elements.
func (s *Session) RemovePage(id string) error {
	if s.busy() {
		return ErrBusy
	}
	res, err := s.model.RemovePage(s.project, id)
	return s.run("removePage", res, err)
}

// ReorderPages sets the page order.
func (s *Session) ReorderPages(order []string) error {
	if s.busy() {
		return ErrBusy
	}
	res, err := s.model.ReorderPages(s.project, order)
	return s.run("reorderPages", res, err)
}

// DuplicatePage copies a page right after itself and returns the copy's id.
func (s *Session) DuplicatePage(id string) (string, error) {
	if s.busy() {
		return "", ErrBusy
	}
	res, err := s.model.DuplicatePage(s.project, id)
	if err := s.run("duplicatePage", res, err); err != nil {
		return "", err
	}
	return res.Forward[0].Page.ID, nil
}

// BringToFront raises the single selected element above all others.
func (s *Session) BringToFront() error {
	return s.onSelected("bringToFront", s.model.BringToFront)
}

// SendToBack lowers the single selected element below all others.
func (s *Session) SendToBack() error {
	return s.onSelected("sendToBack", s.model.SendToBack)
}

func (s *Session) onSelected(kind string, op func(domain.Project, string, string) (document.Result, error)) error {
	if s.busy() {
		return ErrBusy
	}
	if len(s.view.Selected) != 1 {
		return nil
	}
	res, err := op(s.project, s.view.PageID, s.view.Selected[0])
	return s.run(kind, res, err)
}

// SetLocked locks or unlocks every selected element as one history entry.
func (s *Session) SetLocked(locked bool) error {
	if s.busy() {
		return ErrBusy
	}
	var fwd, inv document.Diff
	p := s.project
	for _, id := range s.view.Selected {
		res, err := s.model.SetLocked(p, s.view.PageID, id, locked)
		if err != nil {
			return err
		}
		fwd = fwd.Then(res.Forward)
		inv = res.Inverse.Then(inv)
		p = res.Next
	}
	if fwd.Empty() {
		return nil
	}
	return s.commit(history.Action{Kind: "lock", Forward: fwd, Inverse: inv}, p)
}

// UpdateContent replaces the content of an element on the active page.
func (s *Session) UpdateContent(id string, c domain.Content) error {
	if s.busy() {
		return ErrBusy
	}
	res, err := s.model.UpdateContent(s.project, s.view.PageID, id, c)
	return s.run("content", res, err)
}

// Rotate sets the rotation of the single selected element.
func (s *Session) Rotate(degrees float64) error {
	if s.busy() {
		return ErrBusy
	}
	if len(s.view.Selected) != 1 {
		return nil
	}
	res, err := s.model.RotateElement(s.project, s.view.PageID, s.view.Selected[0], degrees)
	return s.run("rotate", res, err)
}

// Nudge moves the unlocked selection by dx,dy. Repeated nudges of the same selection within the
// history merge window collapse into one undo step.
func (s *Session) Nudge(dx, dy float64) error {
	if s.busy() {
		return ErrBusy
	}
	pg, ok := s.ActivePage()
	if !ok {
		return ErrNoPage
	}
	var updates []document.ElementUpdate
	for _, id := range s.view.Selected {
		el, ok := pg.Element(id)
		if !ok || el.Locked {
			continue
		}
		g := el.Geometry
		g.X += dx
		g.Y += dy
		updates = append(updates, document.ElementUpdate{ID: id, Geometry: g})
	}
	if len(updates) == 0 {
		return nil
	}
	res, err := s.model.SetGeometries(s.project, pg.ID, updates)
	if err != nil {
		return err
	}
	key := "nudge:" + pg.ID + ":" + strings.Join(s.view.Selected, ",")
	return s.commit(history.Action{Kind: "nudge", Forward: res.Forward, Inverse: res.Inverse, MergeKey: key}, res.Next)
}

// ApplyTemplate lays the active page out with tmpl. A page-type mismatch is reported through the
// plan's Warning and leaves the document untouched.
func (s *Session) ApplyTemplate(tmpl layout.Template, dims layout.Dims) (layout.Plan, error) {
	if s.busy() {
		return layout.Plan{}, ErrBusy
	}
	plan, res, err := layout.ApplyToProject(s.model, s.project, s.view.PageID, tmpl, dims)
	if err != nil {
		return plan, err
	}
	if plan.Warning != nil {
		s.metrics.TemplateApplied(tmpl.Name, "warning")
		s.log.Warn("template not applied", "template", tmpl.Name, "err", plan.Warning)
		return plan, nil
	}
	s.metrics.TemplateApplied(tmpl.Name, "applied")
	if res.Forward.Empty() {
		return plan, nil
	}
	return plan, s.Commit("applyTemplate:"+tmpl.Name, res)
}
