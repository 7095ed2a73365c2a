/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package document

import (
	"errors"
	"fmt"

	"photobook/internal/domain"
)

// OpKind identifies a single reversible change.
type OpKind string

const (
	OpInsertElement OpKind = "insertElement"
	OpRemoveElement OpKind = "removeElement"
	OpSetGeometry   OpKind = "setGeometry"
	OpSetContent    OpKind = "setContent"
	OpSetLocked     OpKind = "setLocked"
	OpInsertPage    OpKind = "insertPage"
	OpRemovePage    OpKind = "removePage"
	OpSetPageOrder  OpKind = "setPageOrder"
	OpSetTemplate   OpKind = "setTemplate"
)

// Op is one step of a Diff. Only the fields relevant to Kind are set.
type Op struct {
	Kind      OpKind           `json:"kind"`
	PageID    string           `json:"pageId,omitempty"`
	ElementID string           `json:"elementId,omitempty"`
	Index     int              `json:"index,omitempty"`
	Element   *domain.Element  `json:"element,omitempty"`
	Geometry  *domain.Geometry `json:"geometry,omitempty"`
	Content   *domain.Content  `json:"content,omitempty"`
	Locked    bool             `json:"locked,omitempty"`
	Page      *domain.Page     `json:"page,omitempty"`
	Order     []string         `json:"order,omitempty"`
	Template  string           `json:"template,omitempty"`
}

// Diff is an ordered list of ops applied front to back.
type Diff []Op

// ErrStale is returned by Apply when an op references something the document does not contain.
var ErrStale = errors.New("diff does not match document")

// Then returns d followed by next. Neither input is modified.
func (d Diff) Then(next Diff) Diff {
	out := make(Diff, 0, len(d)+len(next))
	out = append(out, d...)
	return append(out, next...)
}

// Compact folds SetGeometry ops on the same element within a run of SetGeometry ops, keeping the
// last value. Ops on different elements commute inside such a run, so the result is equivalent.
func (d Diff) Compact() Diff {
	out := make(Diff, 0, len(d))
	runStart := 0
	for _, op := range d {
		if op.Kind != OpSetGeometry {
			out = append(out, op)
			runStart = len(out)
			continue
		}
		for i := runStart; i < len(out); i++ {
			if out[i].PageID == op.PageID && out[i].ElementID == op.ElementID {
				out = append(out[:i], out[i+1:]...)
				break
			}
		}
		out = append(out, op)
	}
	return out
}

// Cancels reports whether applying d and then inverse leaves every element where it was, i.e.
// both diffs hold only SetGeometry ops and each element ends at the geometry it started from.
// Both sides are compacted first.
func (d Diff) Cancels(inverse Diff) bool {
	fwd, inv := d.Compact(), inverse.Compact()
	if len(fwd) == 0 || len(fwd) != len(inv) {
		return false
	}
	start := make(map[[2]string]domain.Geometry, len(inv))
	for _, op := range inv {
		if op.Kind != OpSetGeometry || op.Geometry == nil {
			return false
		}
		start[[2]string{op.PageID, op.ElementID}] = *op.Geometry
	}
	for _, op := range fwd {
		if op.Kind != OpSetGeometry || op.Geometry == nil {
			return false
		}
		g, ok := start[[2]string{op.PageID, op.ElementID}]
		if !ok || g != *op.Geometry {
			return false
		}
	}
	return true
}

// Empty reports whether the diff changes nothing.
func (d Diff) Empty() bool { return len(d) == 0 }

// Apply returns a new project with the diff applied. p is never modified.
func Apply(p domain.Project, d Diff) (domain.Project, error) {
	next := p.Clone()
	for i, op := range d {
		if err := applyOp(&next, op); err != nil {
			return p, fmt.Errorf("op %d (%s): %w", i, op.Kind, err)
		}
	}
	return next, nil
}

func applyOp(p *domain.Project, op Op) error {
	switch op.Kind {
	case OpInsertPage:
		if op.Page == nil || op.Index < 0 || op.Index > len(p.Pages) {
			return ErrStale
		}
		if p.PageIndex(op.Page.ID) >= 0 {
			return fmt.Errorf("page %q already present: %w", op.Page.ID, ErrStale)
		}
		pg := op.Page.Clone()
		p.Pages = append(p.Pages, domain.Page{})
		copy(p.Pages[op.Index+1:], p.Pages[op.Index:])
		p.Pages[op.Index] = pg
		return nil
	case OpRemovePage:
		i := p.PageIndex(op.PageID)
		if i < 0 {
			return fmt.Errorf("page %q: %w", op.PageID, ErrStale)
		}
		p.Pages = append(p.Pages[:i], p.Pages[i+1:]...)
		return nil
	case OpSetPageOrder:
		if len(op.Order) != len(p.Pages) {
			return ErrStale
		}
		reordered := make([]domain.Page, 0, len(p.Pages))
		for _, id := range op.Order {
			i := p.PageIndex(id)
			if i < 0 {
				return fmt.Errorf("page %q: %w", id, ErrStale)
			}
			reordered = append(reordered, p.Pages[i])
		}
		p.Pages = reordered
		return nil
	case OpSetTemplate:
		i := p.PageIndex(op.PageID)
		if i < 0 {
			return fmt.Errorf("page %q: %w", op.PageID, ErrStale)
		}
		p.Pages[i].TemplateRef = op.Template
		return nil
	}

	pi := p.PageIndex(op.PageID)
	if pi < 0 {
		return fmt.Errorf("page %q: %w", op.PageID, ErrStale)
	}
	pg := &p.Pages[pi]
	if op.Kind == OpInsertElement {
		if op.Element == nil || op.Index < 0 || op.Index > len(pg.Elements) {
			return ErrStale
		}
		if pg.ElementIndex(op.Element.ID) >= 0 {
			return fmt.Errorf("element %q already present: %w", op.Element.ID, ErrStale)
		}
		pg.Elements = append(pg.Elements, domain.Element{})
		copy(pg.Elements[op.Index+1:], pg.Elements[op.Index:])
		pg.Elements[op.Index] = op.Element.Clone()
		return nil
	}

	ei := pg.ElementIndex(op.ElementID)
	if ei < 0 {
		return fmt.Errorf("element %q: %w", op.ElementID, ErrStale)
	}
	switch op.Kind {
	case OpRemoveElement:
		pg.Elements = append(pg.Elements[:ei], pg.Elements[ei+1:]...)
	case OpSetGeometry:
		if op.Geometry == nil {
			return ErrStale
		}
		pg.Elements[ei].Geometry = *op.Geometry
	case OpSetContent:
		if op.Content == nil {
			return ErrStale
		}
		el := domain.Element{Content: *op.Content}.Clone()
		pg.Elements[ei].Content = el.Content
	case OpSetLocked:
		pg.Elements[ei].Locked = op.Locked
	default:
		return fmt.Errorf("unknown op kind %q", op.Kind)
	}
	return nil
}

func insertElementOp(pageID string, index int, el domain.Element) Op {
	c := el.Clone()
	return Op{Kind: OpInsertElement, PageID: pageID, Index: index, Element: &c}
}

func removeElementOp(pageID, id string) Op {
	return Op{Kind: OpRemoveElement, PageID: pageID, ElementID: id}
}

func setGeometryOp(pageID, id string, g domain.Geometry) Op {
	return Op{Kind: OpSetGeometry, PageID: pageID, ElementID: id, Geometry: &g}
}

func setContentOp(pageID, id string, c domain.Content) Op {
	cc := domain.Element{Content: c}.Clone().Content
	return Op{Kind: OpSetContent, PageID: pageID, ElementID: id, Content: &cc}
}

func insertPageOp(index int, pg domain.Page) Op {
	c := pg.Clone()
	return Op{Kind: OpInsertPage, Index: index, Page: &c}
}
