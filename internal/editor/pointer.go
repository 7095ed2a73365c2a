/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"fmt"
	"log/slog"
	"math"

	"photobook/internal/document"
	"photobook/internal/domain"
	"photobook/internal/vector"
)

// Handle is the part of a selected element grabbed by the pointer.
type Handle string

const (
	HandleNone   Handle = ""
	HandleNW     Handle = "nw"
	HandleNE     Handle = "ne"
	HandleSW     Handle = "sw"
	HandleSE     Handle = "se"
	HandleRotate Handle = "rotate"
)

// handleSize is the edge length of a corner handle in screen pixels; the rotation knob sits
// rotateOffset pixels above the top edge.
const (
	handleSize   = 8.0
	rotateOffset = 24.0
	minSize      = 1.0
)

// Target is what lies under the pointer. An empty ElementID is the page background.
type Target struct {
	ElementID string
	Handle    Handle
}

// Modifiers are the keyboard modifiers held during a pointer event.
type Modifiers struct {
	Shift, Ctrl, Meta bool
}

func (m Modifiers) toggle() bool { return m.Shift || m.Ctrl || m.Meta }

type dragState struct {
	kind      string
	handle    Handle
	before    domain.Project
	priorMode Mode
	priorSel  []string
	start     vector.Pt
	ids       []string
	orig      map[string]domain.Geometry
	steps     int
}

type panState struct {
	start      vector.Pt
	panX, panY float64
	prior      Mode
}

// HitTest resolves a screen point to a target: handles of a single selection first, then the
// top-most element in paint order.
func (s *Session) HitTest(screen vector.Pt) Target {
	pg, ok := s.ActivePage()
	if !ok {
		return Target{}
	}
	vp := s.Viewport()
	if len(s.view.Selected) == 1 {
		if el, ok := pg.Element(s.view.Selected[0]); ok && !el.Locked {
			r := geomRect(el.Geometry)
			b := vector.RotatedBounds(r, el.Geometry.Rotation)
			p0 := vp.ToScreen(b.Min())
			p1 := vp.ToScreen(b.Max())
			h := handleSize / 2
			// Corner handles sit on the element's own corners, rotated with it.
			m := vector.RotateAbout(r.Center(), el.Geometry.Rotation)
			corner := func(x, y float64) vector.Pt { return vp.ToScreen(m.Apply(vector.Pt{X: x, Y: y})) }
			corners := []struct {
				h  Handle
				pt vector.Pt
			}{
				{HandleNW, corner(r.X, r.Y)}, {HandleNE, corner(r.X+r.W, r.Y)},
				{HandleSW, corner(r.X, r.Y+r.H)}, {HandleSE, corner(r.X+r.W, r.Y+r.H)},
			}
			for _, c := range corners {
				if vector.R(c.pt.X-h, c.pt.Y-h, handleSize, handleSize).Contains(screen) {
					return Target{ElementID: el.ID, Handle: c.h}
				}
			}
			knob := vector.Pt{X: (p0.X + p1.X) / 2, Y: p0.Y - rotateOffset}
			if vector.R(knob.X-6, knob.Y-6, 12, 12).Contains(screen) {
				return Target{ElementID: el.ID, Handle: HandleRotate}
			}
		}
	}
	pos := vp.ToPage(screen)
	order := pg.PaintOrder()
	for i := len(order) - 1; i >= 0; i-- {
		g := order[i].Geometry
		if vector.HitRotated(geomRect(g), g.Rotation, pos) {
			return Target{ElementID: order[i].ID}
		}
	}
	return Target{}
}

// PointerDown starts an interaction at the screen point. On an element it selects and starts a
// drag; with a toggle modifier it adds or removes the element from the selection instead. On the
// background it clears the selection, starts panning with the pan tool, or creates an element
// with the text and shape tools.
func (s *Session) PointerDown(t Target, mods Modifiers, screen vector.Pt) error {
	if err := s.dragConflict(); err != nil {
		return err
	}
	if s.busy() {
		return ErrBusy
	}
	pg, ok := s.ActivePage()
	if !ok {
		return ErrNoPage
	}
	pos := s.Viewport().ToPage(screen)

	if s.view.Tool == domain.ToolPan {
		s.pan = &panState{start: screen, panX: s.view.PanX, panY: s.view.PanY, prior: s.mode}
		s.mode = ModePanning
		return nil
	}
	if t.ElementID == "" {
		switch s.view.Tool {
		case domain.ToolText:
			return s.createAt(domain.Element{Kind: domain.KindText}, pos)
		case domain.ToolShape:
			return s.createAt(domain.Element{Kind: domain.KindShape, Content: domain.Content{ShapeKind: "rect"}}, pos)
		}
		s.setSelection(nil)
		return nil
	}
	el, ok := pg.Element(t.ElementID)
	if !ok {
		return fmt.Errorf("editor: no element %q on page %q", t.ElementID, pg.ID)
	}
	if mods.toggle() && t.Handle == HandleNone {
		s.toggle(el.ID)
		return nil
	}

	priorMode, priorSel := s.mode, s.Selection()
	if t.Handle != HandleNone || !s.view.IsSelected(el.ID) {
		s.setSelection([]string{el.ID})
	}
	kind := "move"
	switch t.Handle {
	case HandleNW, HandleNE, HandleSW, HandleSE:
		kind = "resize"
	case HandleRotate:
		kind = "rotate"
	}
	d := &dragState{
		kind: kind, handle: t.Handle, before: s.project,
		priorMode: priorMode, priorSel: priorSel,
		start: pos, orig: map[string]domain.Geometry{},
	}
	for _, id := range s.view.Selected {
		e, ok := pg.Element(id)
		if !ok || e.Locked {
			continue
		}
		d.ids = append(d.ids, id)
		d.orig[id] = e.Geometry
	}
	if len(d.ids) == 0 {
		return nil
	}
	if err := s.hist.Begin(kind); err != nil {
		return err
	}
	s.drag = d
	s.mode = ModeDragging
	s.metrics.DragStarted()
	s.log.Debug("drag start", slog.String("kind", kind), slog.Int("elements", len(d.ids)))
	return nil
}

func (s *Session) toggle(id string) {
	sel := s.Selection()
	for i, cur := range sel {
		if cur == id {
			s.setSelection(append(sel[:i], sel[i+1:]...))
			return
		}
	}
	s.setSelection(append(sel, id))
}

func (s *Session) createAt(el domain.Element, pos vector.Pt) error {
	el.Geometry = domain.Geometry{X: pos.X, Y: pos.Y, Width: s.opts.DefaultSize.W, Height: s.opts.DefaultSize.H}
	if _, err := s.AddElement(el); err != nil {
		return err
	}
	s.view.Tool = domain.ToolSelect
	return nil
}

// PointerMove updates a drag or pan in progress. Without one it does nothing.
func (s *Session) PointerMove(screen vector.Pt) error {
	switch {
	case s.pan != nil:
		s.view.PanX = s.pan.panX + screen.X - s.pan.start.X
		s.view.PanY = s.pan.panY + screen.Y - s.pan.start.Y
		return nil
	case s.drag != nil:
		return s.dragTo(s.Viewport().ToPage(screen))
	}
	return nil
}

func (s *Session) dragTo(pos vector.Pt) error {
	d := s.drag
	pg, ok := s.ActivePage()
	if !ok {
		return ErrNoPage
	}
	var target map[string]domain.Geometry
	switch d.kind {
	case "resize":
		target = map[string]domain.Geometry{d.ids[0]: resized(d.orig[d.ids[0]], d.handle, pos.X-d.start.X, pos.Y-d.start.Y)}
	case "rotate":
		target = map[string]domain.Geometry{d.ids[0]: rotated(d.orig[d.ids[0]], d.start, pos)}
	default:
		target = s.moved(pg, pos.X-d.start.X, pos.Y-d.start.Y)
	}

	var updates []document.ElementUpdate
	for _, id := range d.ids {
		g := target[id]
		if cur, ok := pg.Element(id); ok && cur.Geometry == g {
			continue
		}
		updates = append(updates, document.ElementUpdate{ID: id, Geometry: g})
	}
	if len(updates) == 0 {
		return nil
	}
	res, err := s.model.SetGeometries(s.project, pg.ID, updates)
	if err != nil {
		return err
	}
	if err := s.hist.Buffer(res); err != nil {
		return err
	}
	s.project = res.Next
	d.steps++
	return nil
}

// moved translates the dragged elements, snapping the union of their bounds to the page and the
// elements that stay put.
func (s *Session) moved(pg domain.Page, dx, dy float64) map[string]domain.Geometry {
	d := s.drag
	s.guides = nil
	if s.opts.Snap {
		var union vector.Rect
		for i, id := range d.ids {
			g := d.orig[id]
			b := vector.RotatedBounds(geomRect(g), g.Rotation)
			if i == 0 {
				union = b
			} else {
				union = union.Union(b)
			}
		}
		moving := union.Translate(dx, dy)
		anchors := []vector.Anchor{{Rect: vector.R(0, 0, pg.Width, pg.Height), Weight: 1}}
		for _, el := range pg.Elements {
			if _, dragged := d.orig[el.ID]; dragged {
				continue
			}
			anchors = append(anchors, vector.Anchor{Rect: vector.RotatedBounds(geomRect(el.Geometry), el.Geometry.Rotation), Weight: 1})
		}
		snapped, guides := vector.ComputeSmartGuides(moving, anchors, s.opts.SnapOptions)
		dx += snapped.X - moving.X
		dy += snapped.Y - moving.Y
		s.guides = guides
	}
	out := make(map[string]domain.Geometry, len(d.ids))
	for _, id := range d.ids {
		g := d.orig[id]
		g.X += dx
		g.Y += dy
		out[id] = g
	}
	return out
}

// resized moves the grabbed corner by dx,dy while the opposite corner stays fixed. The resize runs
// in the element's own frame, so on a rotated element the far corner keeps its page position.
func resized(g domain.Geometry, h Handle, dx, dy float64) domain.Geometry {
	rad := g.Rotation * math.Pi / 180
	flat := math.Mod(g.Rotation, 360) == 0
	if !flat {
		d := vector.Rotate(-rad).Apply(vector.Pt{X: dx, Y: dy})
		dx, dy = d.X, d.Y
	}
	x0, y0, x1, y1 := g.X, g.Y, g.X+g.Width, g.Y+g.Height
	switch h {
	case HandleNW:
		x0, y0 = math.Min(x0+dx, x1-minSize), math.Min(y0+dy, y1-minSize)
	case HandleNE:
		x1, y0 = math.Max(x1+dx, x0+minSize), math.Min(y0+dy, y1-minSize)
	case HandleSW:
		x0, y1 = math.Min(x0+dx, x1-minSize), math.Max(y1+dy, y0+minSize)
	case HandleSE:
		x1, y1 = math.Max(x1+dx, x0+minSize), math.Max(y1+dy, y0+minSize)
	}
	if flat {
		g.X, g.Y, g.Width, g.Height = x0, y0, x1-x0, y1-y0
		return g
	}
	// The new box is centered off the old center; carry that offset back into page space.
	c := geomRect(g).Center()
	off := vector.Rotate(rad).Apply(vector.Pt{X: (x0+x1)/2 - c.X, Y: (y0+y1)/2 - c.Y})
	w, ht := x1-x0, y1-y0
	g.X = vector.FloatRound(c.X+off.X-w/2, 3)
	g.Y = vector.FloatRound(c.Y+off.Y-ht/2, 3)
	g.Width, g.Height = vector.FloatRound(w, 3), vector.FloatRound(ht, 3)
	return g
}

// rotated turns g around its center by the angle swept from start to cur.
func rotated(g domain.Geometry, start, cur vector.Pt) domain.Geometry {
	c := geomRect(g).Center()
	a0 := math.Atan2(start.Y-c.Y, start.X-c.X)
	a1 := math.Atan2(cur.Y-c.Y, cur.X-c.X)
	deg := g.Rotation + (a1-a0)*180/math.Pi
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	g.Rotation = vector.FloatRound(deg, 3)
	return g
}

// PointerUp ends a drag or pan. A drag that moved records exactly one history entry; a click
// without movement records nothing.
func (s *Session) PointerUp(screen vector.Pt) error {
	switch {
	case s.pan != nil:
		_ = s.PointerMove(screen)
		s.mode = s.pan.prior
		s.pan = nil
		return nil
	case s.drag == nil:
		return nil
	}
	moveErr := s.dragTo(s.Viewport().ToPage(screen))
	d := s.drag
	a, recorded, err := s.hist.Commit()
	s.drag = nil
	s.guides = nil
	s.mode = modeFor(len(s.view.Selected))
	if err != nil {
		return err
	}
	outcome := "click"
	if recorded {
		outcome = d.kind
		s.metrics.HistoryOp("record", "applied")
		s.log.Debug("drag committed", slog.String("kind", d.kind), slog.Int("frames", d.steps), slog.Int("ops", len(a.Forward)))
	}
	s.metrics.DragFinished(outcome)
	return moveErr
}

// Escape cancels the interaction in progress. A drag reverts to the pre-drag snapshot without a
// history entry and restores the prior selection; a pan returns to its start. Without an
// interaction it clears the selection.
func (s *Session) Escape() {
	switch {
	case s.drag != nil:
		d := s.drag
		if _, err := s.hist.Discard(); err != nil {
			s.log.Warn("discard drag group", slog.Any("err", err))
		}
		s.project = d.before
		s.drag = nil
		s.guides = nil
		s.view.Selected = d.priorSel
		s.mode = d.priorMode
		s.metrics.DragFinished("cancel")
		s.log.Debug("drag cancelled", slog.String("kind", d.kind))
	case s.pan != nil:
		s.view.PanX, s.view.PanY = s.pan.panX, s.pan.panY
		s.mode = s.pan.prior
		s.pan = nil
	case s.drop != nil:
		s.CancelDrop()
	default:
		s.setSelection(nil)
	}
}

// CancelDrag is Escape for callers that cancel programmatically. It reports whether a drag was
// in progress.
func (s *Session) CancelDrag() bool {
	if s.drag == nil && s.drop == nil {
		return false
	}
	s.Escape()
	return true
}

// Marquee selects every element whose bounds intersect rect (page coordinates). With a toggle
// modifier the hits are added to the current selection.
func (s *Session) Marquee(rect vector.Rect, mods Modifiers) error {
	if s.busy() {
		return ErrBusy
	}
	pg, ok := s.ActivePage()
	if !ok {
		return ErrNoPage
	}
	var sel []string
	if mods.toggle() {
		sel = s.Selection()
	}
	for _, el := range pg.PaintOrder() {
		b := vector.RotatedBounds(geomRect(el.Geometry), el.Geometry.Rotation)
		if !b.Intersects(rect) || (mods.toggle() && s.view.IsSelected(el.ID)) {
			continue
		}
		sel = append(sel, el.ID)
	}
	s.setSelection(sel)
	return nil
}

func geomRect(g domain.Geometry) vector.Rect {
	return vector.R(g.X, g.Y, g.Width, g.Height)
}
