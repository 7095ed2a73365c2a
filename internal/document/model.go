/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package document implements the photobook document model operators. Each operator takes the
// current immutable project plus parameters and returns the next project together with the
// forward and inverse diffs. Nothing is changed in place; a failed operator returns an error and
// the caller keeps its snapshot.
package document

import (
	"github.com/google/uuid"

	"photobook/internal/domain"
	"photobook/internal/limits"
)

// Result is the outcome of a successful operator.
type Result struct {
	Next    domain.Project
	Forward Diff
	Inverse Diff
}

// Model holds the collaborators the operators need. The zero value is usable: it applies no tier
// limits and generates UUIDs.
type Model struct {
	Limits limits.Checker
	NewID  func() string
}

// New returns a Model that consults checker before growing the document.
func New(checker limits.Checker) *Model {
	return &Model{Limits: checker}
}

func (m *Model) newID() string {
	if m != nil && m.NewID != nil {
		return m.NewID()
	}
	return uuid.NewString()
}

func (m *Model) check(tier domain.Tier, kind limits.IntentKind, current int) error {
	if m == nil || m.Limits == nil {
		return nil
	}
	d := m.Limits.CheckLimit(tier, limits.Intent{Kind: kind, Current: current})
	if !d.Allowed {
		return &LimitExceededError{Intent: kind, Reason: d.Reason}
	}
	return nil
}

func (m *Model) commit(p domain.Project, forward, inverse Diff) (Result, error) {
	next, err := Apply(p, forward)
	if err != nil {
		return Result{Next: p}, err
	}
	return Result{Next: next, Forward: forward, Inverse: inverse}, nil
}

// NewProject creates an empty project after checking the owner's photobook quota.
// owned is the number of photobooks the owner already has.
func (m *Model) NewProject(id, ownerID, name string, tier domain.Tier, owned int) (domain.Project, error) {
	if err := m.check(tier, limits.IntentCreateProject, owned); err != nil {
		return domain.Project{}, err
	}
	if id == "" {
		id = m.newID()
	}
	if tier == "" {
		tier = domain.TierFree
	}
	return domain.Project{ID: id, OwnerID: ownerID, Name: name, Tier: tier, Pages: []domain.Page{}}, nil
}

func locate(p domain.Project, pageID, elementID string) (domain.Page, domain.Element, int, error) {
	pg, ok := p.Page(pageID)
	if !ok {
		return domain.Page{}, domain.Element{}, -1, invalid("page", "no page %q", pageID)
	}
	i := pg.ElementIndex(elementID)
	if i < 0 {
		return pg, domain.Element{}, -1, invalid("element", "no element %q on page %q", elementID, pageID)
	}
	return pg, pg.Elements[i], i, nil
}

// AddElement appends el to the page. An empty id is generated; a zero ZIndex places the element on
// top of the existing ones.
func (m *Model) AddElement(p domain.Project, pageID string, el domain.Element) (Result, error) {
	pg, ok := p.Page(pageID)
	if !ok {
		return Result{Next: p}, invalid("page", "no page %q", pageID)
	}
	if el.ID == "" {
		el.ID = m.newID()
	}
	if pg.ElementIndex(el.ID) >= 0 {
		return Result{Next: p}, invalid("element.id", "duplicate element id %q", el.ID)
	}
	if err := ValidateElement(el); err != nil {
		return Result{Next: p}, err
	}
	if err := m.check(p.Tier, limits.IntentAddElement, len(pg.Elements)); err != nil {
		return Result{Next: p}, err
	}
	if el.Geometry.ZIndex == 0 && len(pg.Elements) > 0 {
		el.Geometry.ZIndex = pg.MaxZ() + 1
	}
	return m.commit(p,
		Diff{insertElementOp(pageID, len(pg.Elements), el)},
		Diff{removeElementOp(pageID, el.ID)})
}

func (m *Model) setGeometry(p domain.Project, pageID, id string, change func(g domain.Geometry) domain.Geometry) (Result, error) {
	_, el, _, err := locate(p, pageID, id)
	if err != nil {
		return Result{Next: p}, err
	}
	if el.Locked {
		return Result{Next: p}, invalid("element", "element %q is locked", id)
	}
	g := change(el.Geometry)
	if err := ValidateGeometry(g); err != nil {
		return Result{Next: p}, err
	}
	return m.commit(p,
		Diff{setGeometryOp(pageID, id, g)},
		Diff{setGeometryOp(pageID, id, el.Geometry)})
}

// MoveElement sets the element's position.
func (m *Model) MoveElement(p domain.Project, pageID, id string, x, y float64) (Result, error) {
	return m.setGeometry(p, pageID, id, func(g domain.Geometry) domain.Geometry {
		g.X, g.Y = x, y
		return g
	})
}

// ResizeElement sets the element's bounding box. Resizing from a leading edge moves the origin,
// which is why the position is part of the call.
func (m *Model) ResizeElement(p domain.Project, pageID, id string, x, y, width, height float64) (Result, error) {
	return m.setGeometry(p, pageID, id, func(g domain.Geometry) domain.Geometry {
		g.X, g.Y, g.Width, g.Height = x, y, width, height
		return g
	})
}

// RotateElement sets the rotation in degrees.
func (m *Model) RotateElement(p domain.Project, pageID, id string, degrees float64) (Result, error) {
	return m.setGeometry(p, pageID, id, func(g domain.Geometry) domain.Geometry {
		g.Rotation = degrees
		return g
	})
}

// BringToFront puts the element above every other element on the page.
func (m *Model) BringToFront(p domain.Project, pageID, id string) (Result, error) {
	pg, _ := p.Page(pageID)
	top := pg.MaxZ() + 1
	return m.setGeometry(p, pageID, id, func(g domain.Geometry) domain.Geometry {
		g.ZIndex = top
		return g
	})
}

// SendToBack puts the element below every other element on the page.
func (m *Model) SendToBack(p domain.Project, pageID, id string) (Result, error) {
	pg, _ := p.Page(pageID)
	bottom := pg.MinZ() - 1
	return m.setGeometry(p, pageID, id, func(g domain.Geometry) domain.Geometry {
		g.ZIndex = bottom
		return g
	})
}

// ElementUpdate is one entry of a batch geometry change. Crop, when set, replaces the image crop.
type ElementUpdate struct {
	ID       string
	Geometry domain.Geometry
	Crop     *domain.Crop
}

// SetGeometries applies several geometry changes to one page as a single result.
// Updates are applied in the given order; locked elements are rejected.
func (m *Model) SetGeometries(p domain.Project, pageID string, updates []ElementUpdate) (Result, error) {
	pg, ok := p.Page(pageID)
	if !ok {
		return Result{Next: p}, invalid("page", "no page %q", pageID)
	}
	var fwd, inv Diff
	seen := make(map[string]bool, len(updates))
	for _, u := range updates {
		if seen[u.ID] {
			return Result{Next: p}, invalid("element", "element %q updated twice", u.ID)
		}
		seen[u.ID] = true
		el, ok := pg.Element(u.ID)
		if !ok {
			return Result{Next: p}, invalid("element", "no element %q on page %q", u.ID, pageID)
		}
		if el.Locked {
			return Result{Next: p}, invalid("element", "element %q is locked", u.ID)
		}
		if err := ValidateGeometry(u.Geometry); err != nil {
			return Result{Next: p}, err
		}
		fwd = append(fwd, setGeometryOp(pageID, u.ID, u.Geometry))
		inv = append(inv, setGeometryOp(pageID, u.ID, el.Geometry))
		if u.Crop != nil {
			c := el.Content
			cr := *u.Crop
			c.Crop = &cr
			if err := ValidateContent(el.Kind, c); err != nil {
				return Result{Next: p}, err
			}
			fwd = append(fwd, setContentOp(pageID, u.ID, c))
			inv = append(inv, setContentOp(pageID, u.ID, el.Content))
		}
	}
	return m.commit(p, fwd, reversed(inv))
}

// UpdateContent replaces the element's payload.
func (m *Model) UpdateContent(p domain.Project, pageID, id string, c domain.Content) (Result, error) {
	_, el, _, err := locate(p, pageID, id)
	if err != nil {
		return Result{Next: p}, err
	}
	if err := ValidateContent(el.Kind, c); err != nil {
		return Result{Next: p}, err
	}
	return m.commit(p,
		Diff{setContentOp(pageID, id, c)},
		Diff{setContentOp(pageID, id, el.Content)})
}

// SetLocked toggles the lock flag; locked elements cannot be moved or resized.
func (m *Model) SetLocked(p domain.Project, pageID, id string, locked bool) (Result, error) {
	_, el, _, err := locate(p, pageID, id)
	if err != nil {
		return Result{Next: p}, err
	}
	return m.commit(p,
		Diff{{Kind: OpSetLocked, PageID: pageID, ElementID: id, Locked: locked}},
		Diff{{Kind: OpSetLocked, PageID: pageID, ElementID: id, Locked: el.Locked}})
}

// SetTemplateRef records which template laid the page out. An empty name clears it.
func (m *Model) SetTemplateRef(p domain.Project, pageID, name string) (Result, error) {
	pg, ok := p.Page(pageID)
	if !ok {
		return Result{Next: p}, invalid("page", "no page %q", pageID)
	}
	if pg.TemplateRef == name {
		return Result{Next: p}, nil
	}
	return m.commit(p,
		Diff{{Kind: OpSetTemplate, PageID: pageID, Template: name}},
		Diff{{Kind: OpSetTemplate, PageID: pageID, Template: pg.TemplateRef}})
}

// DeleteElement removes the element from the page.
func (m *Model) DeleteElement(p domain.Project, pageID, id string) (Result, error) {
	return m.DeleteElements(p, pageID, []string{id})
}

// DeleteElements removes several elements from one page as a single result.
func (m *Model) DeleteElements(p domain.Project, pageID string, ids []string) (Result, error) {
	pg, ok := p.Page(pageID)
	if !ok {
		return Result{Next: p}, invalid("page", "no page %q", pageID)
	}
	if len(ids) == 0 {
		return Result{Next: p}, invalid("element", "nothing to delete")
	}
	work := pg.Clone()
	var fwd, inv Diff
	for _, id := range ids {
		i := work.ElementIndex(id)
		if i < 0 {
			return Result{Next: p}, invalid("element", "no element %q on page %q", id, pageID)
		}
		fwd = append(fwd, removeElementOp(pageID, id))
		inv = append(inv, insertElementOp(pageID, i, work.Elements[i]))
		work.Elements = append(work.Elements[:i], work.Elements[i+1:]...)
	}
	return m.commit(p, fwd, reversed(inv))
}

// AddPage inserts pg at index; a negative or out-of-range index appends. An empty page id is
// generated and a zero size gets the default size for the page type.
func (m *Model) AddPage(p domain.Project, pg domain.Page, index int) (Result, error) {
	pg = withPageDefaults(pg)
	if pg.ID == "" {
		pg.ID = m.newID()
	}
	if p.PageIndex(pg.ID) >= 0 {
		return Result{Next: p}, invalid("page.id", "duplicate page id %q", pg.ID)
	}
	if pg.Elements == nil {
		pg.Elements = []domain.Element{}
	}
	if err := validatePage(pg); err != nil {
		return Result{Next: p}, err
	}
	if err := m.check(p.Tier, limits.IntentAddPage, len(p.Pages)); err != nil {
		return Result{Next: p}, err
	}
	if n := len(pg.Elements); n > 0 {
		if err := m.check(p.Tier, limits.IntentAddElement, n-1); err != nil {
			return Result{Next: p}, err
		}
	}
	if index < 0 || index > len(p.Pages) {
		index = len(p.Pages)
	}
	return m.commit(p,
		Diff{insertPageOp(index, pg)},
		Diff{{Kind: OpRemovePage, PageID: pg.ID}})
}

// RemovePage deletes the page and, with it, all of its elements.
func (m *Model) RemovePage(p domain.Project, pageID string) (Result, error) {
	i := p.PageIndex(pageID)
	if i < 0 {
		return Result{Next: p}, invalid("page", "no page %q", pageID)
	}
	return m.commit(p,
		Diff{{Kind: OpRemovePage, PageID: pageID}},
		Diff{insertPageOp(i, p.Pages[i])})
}

// ReorderPages sets the page order. order must be a permutation of the current page ids.
func (m *Model) ReorderPages(p domain.Project, order []string) (Result, error) {
	if len(order) != len(p.Pages) {
		return Result{Next: p}, invalid("order", "expected %d page ids, got %d", len(p.Pages), len(order))
	}
	seen := make(map[string]bool, len(order))
	for _, id := range order {
		if seen[id] {
			return Result{Next: p}, invalid("order", "page %q listed twice", id)
		}
		if p.PageIndex(id) < 0 {
			return Result{Next: p}, invalid("order", "no page %q", id)
		}
		seen[id] = true
	}
	old := make([]string, len(p.Pages))
	for i, pg := range p.Pages {
		old[i] = pg.ID
	}
	return m.commit(p,
		Diff{{Kind: OpSetPageOrder, Order: append([]string(nil), order...)}},
		Diff{{Kind: OpSetPageOrder, Order: old}})
}

// DuplicatePage inserts a copy of the page right after it. The copy and its elements get new ids.
func (m *Model) DuplicatePage(p domain.Project, pageID string) (Result, error) {
	i := p.PageIndex(pageID)
	if i < 0 {
		return Result{Next: p}, invalid("page", "no page %q", pageID)
	}
	if err := m.check(p.Tier, limits.IntentAddPage, len(p.Pages)); err != nil {
		return Result{Next: p}, err
	}
	cp := p.Pages[i].Clone()
	cp.ID = m.newID()
	for j := range cp.Elements {
		cp.Elements[j].ID = m.newID()
	}
	return m.commit(p,
		Diff{insertPageOp(i+1, cp)},
		Diff{{Kind: OpRemovePage, PageID: cp.ID}})
}

func reversed(d Diff) Diff {
	out := make(Diff, len(d))
	for i, op := range d {
		out[len(d)-1-i] = op
	}
	return out
}
