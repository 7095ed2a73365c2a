/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package layout maps the slots of a named template onto the elements of a page. Application is
// deterministic and never creates or deletes elements: surplus elements stay where they are and
// surplus slots stay empty.
package layout

import (
	"errors"
	"fmt"
	"math"

	"photobook/internal/document"
	"photobook/internal/domain"
	"photobook/internal/vector"
)

// ErrTemplateMismatch is the warning returned in Plan.Warning when the template does not support
// the page type. It is not a failure: nothing is changed.
var ErrTemplateMismatch = errors.New("layout: template does not support page type")

// Slot is one placement box. Coordinates are fractions of the page size (0..1) so one template
// fits any page dimensions; Rotation is in degrees.
type Slot struct {
	X        float64 `yaml:"x" json:"x"`
	Y        float64 `yaml:"y" json:"y"`
	Width    float64 `yaml:"width" json:"width"`
	Height   float64 `yaml:"height" json:"height"`
	Rotation float64 `yaml:"rotation,omitempty" json:"rotation,omitempty"`
}

// Template is a named, ordered set of slots. An empty PageTypes list supports every page type.
type Template struct {
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	PageTypes   []domain.PageType `yaml:"page_types,omitempty" json:"pageTypes,omitempty"`
	Slots       []Slot            `yaml:"slots" json:"slots"`
}

// Supports reports whether the template may be applied to a page of type pt.
func (t Template) Supports(pt domain.PageType) bool {
	if len(t.PageTypes) == 0 {
		return true
	}
	for _, s := range t.PageTypes {
		if s == pt {
			return true
		}
	}
	return false
}

// Validate checks the template's name and slot boxes.
func (t Template) Validate() error {
	if t.Name == "" {
		return errors.New("template name is required")
	}
	if len(t.Slots) == 0 {
		return fmt.Errorf("template %q has no slots", t.Name)
	}
	for i, s := range t.Slots {
		for _, v := range []float64{s.X, s.Y, s.Width, s.Height, s.Rotation} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("template %q slot %d: non-finite value", t.Name, i)
			}
		}
		if s.Width <= 0 || s.Height <= 0 {
			return fmt.Errorf("template %q slot %d: width and height must be > 0", t.Name, i)
		}
	}
	return nil
}

// Dims holds the natural pixel size of image elements by element id. Elements missing from the
// map fall back to Content.NaturalWidth/NaturalHeight.
type Dims map[string]vector.Size

// Plan is the outcome of Apply: the new geometry (and crop, for images) per placed element.
type Plan struct {
	Template   string
	PageID     string
	Geometries map[string]domain.Geometry
	Crops      map[string]domain.Crop
	// Placed lists element ids in slot order; Placed[i] went to slot i.
	Placed []string
	// Unplaced are the elements left untouched: surplus and locked elements.
	Unplaced   []string
	EmptySlots int
	Warning    error
}

// Apply maps tmpl onto pg. Elements are taken in paint order, skipping locked ones; element i gets
// slot i.
func Apply(pg domain.Page, tmpl Template, dims Dims) Plan {
	plan := Plan{
		Template:   tmpl.Name,
		PageID:     pg.ID,
		Geometries: map[string]domain.Geometry{},
		Crops:      map[string]domain.Crop{},
	}
	if !tmpl.Supports(pg.Type) {
		plan.Warning = fmt.Errorf("%w: %q on %s page %q", ErrTemplateMismatch, tmpl.Name, pg.Type, pg.ID)
		return plan
	}
	slot := 0
	for _, el := range pg.PaintOrder() {
		if el.Locked || slot >= len(tmpl.Slots) {
			plan.Unplaced = append(plan.Unplaced, el.ID)
			continue
		}
		s := tmpl.Slots[slot]
		slot++
		g := domain.Geometry{
			X:        vector.FloatRound(s.X*pg.Width, 3),
			Y:        vector.FloatRound(s.Y*pg.Height, 3),
			Width:    vector.FloatRound(s.Width*pg.Width, 3),
			Height:   vector.FloatRound(s.Height*pg.Height, 3),
			Rotation: s.Rotation,
			ZIndex:   el.Geometry.ZIndex,
		}
		plan.Geometries[el.ID] = g
		plan.Placed = append(plan.Placed, el.ID)
		if el.Kind != domain.KindImage {
			continue
		}
		natural, ok := dims[el.ID]
		if !ok {
			natural = vector.Size{W: el.Content.NaturalWidth, H: el.Content.NaturalHeight}
		}
		if c, ok := CoverCrop(natural, g.Width, g.Height); ok {
			plan.Crops[el.ID] = c
		}
	}
	plan.EmptySlots = len(tmpl.Slots) - slot
	return plan
}

// CoverCrop returns the centred window of an image of the given natural size that fills a box of
// w x h without distortion. ok is false when any size is unknown.
func CoverCrop(natural vector.Size, w, h float64) (domain.Crop, bool) {
	if natural.W <= 0 || natural.H <= 0 || w <= 0 || h <= 0 {
		return domain.Crop{}, false
	}
	boxAspect := w / h
	if natural.W/natural.H > boxAspect {
		cw := natural.H * boxAspect
		return domain.Crop{
			X: vector.FloatRound((natural.W-cw)/2, 3), Y: 0,
			Width: vector.FloatRound(cw, 3), Height: natural.H,
		}, true
	}
	ch := natural.W / boxAspect
	return domain.Crop{
		X: 0, Y: vector.FloatRound((natural.H-ch)/2, 3),
		Width: natural.W, Height: vector.FloatRound(ch, 3),
	}, true
}

// ApplyToProject applies tmpl to one page of p and returns the plan together with a single
// document result covering every placed element and the page's template reference. On a mismatch the plan carries the warning and
// the result leaves p unchanged.
func ApplyToProject(m *document.Model, p domain.Project, pageID string, tmpl Template, dims Dims) (Plan, document.Result, error) {
	pg, ok := p.Page(pageID)
	if !ok {
		return Plan{}, document.Result{Next: p}, fmt.Errorf("layout: no page %q", pageID)
	}
	if err := tmpl.Validate(); err != nil {
		return Plan{}, document.Result{Next: p}, err
	}
	plan := Apply(pg, tmpl, dims)
	if plan.Warning != nil || len(plan.Placed) == 0 {
		return plan, document.Result{Next: p}, nil
	}
	updates := make([]document.ElementUpdate, 0, len(plan.Placed))
	for _, id := range plan.Placed {
		u := document.ElementUpdate{ID: id, Geometry: plan.Geometries[id]}
		if c, ok := plan.Crops[id]; ok {
			u.Crop = &c
		}
		updates = append(updates, u)
	}
	res, err := m.SetGeometries(p, pageID, updates)
	if err != nil {
		return plan, document.Result{Next: p}, err
	}
	ref, err := m.SetTemplateRef(res.Next, pageID, tmpl.Name)
	if err != nil {
		return plan, document.Result{Next: p}, err
	}
	return plan, document.Result{
		Next:    ref.Next,
		Forward: res.Forward.Then(ref.Forward),
		Inverse: ref.Inverse.Then(res.Inverse),
	}, nil
}
