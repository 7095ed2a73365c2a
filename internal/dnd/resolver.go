/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package dnd

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"photobook/internal/document"
	"photobook/internal/domain"
	applog "photobook/internal/log"
	"photobook/internal/metrics"
	"photobook/internal/vector"
)

// Source is where a dragged payload comes from.
type Source string

const (
	SourcePalette Source = "palette"
	SourceElement Source = "element"
)

// ElementTemplate describes the element a palette item creates. A zero size falls back to the
// resolver's default size.
type ElementTemplate struct {
	Kind    domain.ElementKind
	Width   float64
	Height  float64
	Content domain.Content
}

// Payload is what is being dragged.
type Payload struct {
	Source    Source
	Template  ElementTemplate
	ElementID string
}

// Outcome is how a drag session ended.
type Outcome string

const (
	OutcomeNone      Outcome = ""
	OutcomeCreated   Outcome = "create"
	OutcomeMoved     Outcome = "move"
	OutcomeRejected  Outcome = "reject"
	OutcomeCancelled Outcome = "cancel"
)

// Drop is the resolution of a finished session. For created and moved outcomes Result carries the
// document change to record in the history; otherwise Result.Next is the unchanged project.
type Drop struct {
	Outcome   Outcome
	Result    document.Result
	ElementID string
	Guides    []vector.GuideLine
}

// Preview is the live state of a session while the pointer moves.
type Preview struct {
	Rect   vector.Rect
	Guides []vector.GuideLine
	Inside bool
}

// ErrNoSession is returned when a move, end or cancel arrives without an active session.
var ErrNoSession = errors.New("dnd: no active drag session")

// DragSessionConflictError rejects a start while another session is still active.
type DragSessionConflictError struct {
	Active    Source
	ElementID string
}

func (e *DragSessionConflictError) Error() string {
	if e.ElementID != "" {
		return fmt.Sprintf("drag session already active (%s %s)", e.Active, e.ElementID)
	}
	return fmt.Sprintf("drag session already active (%s)", e.Active)
}

// Options configures a Resolver.
type Options struct {
	// Snap enables smart-guide snapping against the page edges and sibling elements.
	Snap        bool
	SnapOptions vector.SnapOptions
	// DefaultSize is used for palette items without their own size; defaults to 200x150.
	DefaultSize vector.Size
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// Resolver owns at most one active drag session.
type Resolver struct {
	model *document.Model
	opts  Options
	log   *slog.Logger

	mu     sync.Mutex
	active *Session
}

// NewResolver returns a resolver that mutates documents through model.
func NewResolver(model *document.Model, opts Options) *Resolver {
	if opts.DefaultSize.W <= 0 || opts.DefaultSize.H <= 0 {
		opts.DefaultSize = vector.Size{W: 200, H: 150}
	}
	if opts.SnapOptions.Threshold <= 0 {
		opts.SnapOptions = vector.DefaultSnapOptions()
	}
	l := opts.Logger
	if l == nil {
		l = applog.WithComponent("dnd")
	}
	return &Resolver{model: model, opts: opts, log: l}
}

// Active reports whether a session is in progress.
func (r *Resolver) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// Start opens a session for payload on the given page. screen is the pointer position.
func (r *Resolver) Start(p domain.Project, pageID string, vp Viewport, screen vector.Pt, payload Payload) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		return nil, &DragSessionConflictError{Active: r.active.payload.Source, ElementID: r.active.payload.ElementID}
	}
	pg, ok := p.Page(pageID)
	if !ok {
		return nil, fmt.Errorf("dnd: no page %q", pageID)
	}
	s := &Session{r: r, page: pg, vp: vp, payload: payload}
	s.start = vp.ToPage(screen)
	s.cur = s.start
	switch payload.Source {
	case SourcePalette:
		if !payload.Template.Kind.Valid() {
			return nil, fmt.Errorf("dnd: palette item has unknown kind %q", payload.Template.Kind)
		}
		s.size = vector.Size{W: payload.Template.Width, H: payload.Template.Height}
		if s.size.W <= 0 || s.size.H <= 0 {
			s.size = r.opts.DefaultSize
		}
	case SourceElement:
		el, ok := pg.Element(payload.ElementID)
		if !ok {
			return nil, fmt.Errorf("dnd: no element %q on page %q", payload.ElementID, pageID)
		}
		if el.Locked {
			return nil, fmt.Errorf("dnd: element %q is locked", el.ID)
		}
		s.orig = el.Geometry
	default:
		return nil, fmt.Errorf("dnd: unknown payload source %q", payload.Source)
	}
	r.active = s
	r.opts.Metrics.DragStarted()
	r.log.Debug("drag start", slog.String("source", string(payload.Source)), slog.String("page", pageID))
	return s, nil
}

// Handle routes a canonical event to the active session, opening one on PhaseStart. payload is
// only read on start. Moves return OutcomeNone.
func (r *Resolver) Handle(p domain.Project, pageID string, vp Viewport, ev Event, payload Payload) (Drop, error) {
	if ev.Phase == PhaseStart {
		_, err := r.Start(p, pageID, vp, ev.Pos, payload)
		return Drop{Result: document.Result{Next: p}}, err
	}
	r.mu.Lock()
	s := r.active
	r.mu.Unlock()
	if s == nil {
		return Drop{Result: document.Result{Next: p}}, ErrNoSession
	}
	switch ev.Phase {
	case PhaseMove:
		pv, err := s.Move(ev.Pos)
		return Drop{Result: document.Result{Next: p}, Guides: pv.Guides}, err
	case PhaseEnd:
		return s.End(p, ev.Pos)
	case PhaseCancel:
		return s.Cancel(p), nil
	}
	return Drop{Result: document.Result{Next: p}}, fmt.Errorf("dnd: unknown phase %q", ev.Phase)
}

func (r *Resolver) finish(s *Session, outcome Outcome) {
	r.mu.Lock()
	if r.active == s {
		r.active = nil
	}
	r.mu.Unlock()
	r.opts.Metrics.DragFinished(string(outcome))
	r.log.Debug("drag end", slog.String("outcome", string(outcome)))
}

// Session is one drag from start to end or cancel. It is not safe for concurrent use.
type Session struct {
	r       *Resolver
	page    domain.Page
	vp      Viewport
	payload Payload

	start vector.Pt
	cur   vector.Pt
	size  vector.Size
	orig  domain.Geometry
	done  bool
}

// Payload returns what is being dragged.
func (s *Session) Payload() Payload { return s.payload }

func (s *Session) inside(pt vector.Pt) bool {
	return vector.R(0, 0, s.page.Width, s.page.Height).Contains(pt)
}

// preview computes the target rectangle for the current pointer position.
func (s *Session) preview() Preview {
	var rect vector.Rect
	rot := 0.0
	if s.payload.Source == SourcePalette {
		rect = vector.R(s.cur.X-s.size.W/2, s.cur.Y-s.size.H/2, s.size.W, s.size.H)
	} else {
		rect = vector.R(s.orig.X+s.cur.X-s.start.X, s.orig.Y+s.cur.Y-s.start.Y, s.orig.Width, s.orig.Height)
		rot = s.orig.Rotation
	}
	pv := Preview{Rect: rect, Inside: s.inside(s.cur)}
	if !s.r.opts.Snap {
		return pv
	}
	bounds := vector.RotatedBounds(rect, rot)
	snapped, guides := vector.ComputeSmartGuides(bounds, s.anchors(), s.r.opts.SnapOptions)
	pv.Rect = rect.Translate(snapped.X-bounds.X, snapped.Y-bounds.Y)
	pv.Guides = guides
	return pv
}

func (s *Session) anchors() []vector.Anchor {
	out := make([]vector.Anchor, 0, len(s.page.Elements)+1)
	out = append(out, vector.Anchor{Rect: vector.R(0, 0, s.page.Width, s.page.Height), Weight: 1})
	for _, el := range s.page.Elements {
		if el.ID == s.payload.ElementID {
			continue
		}
		g := el.Geometry
		out = append(out, vector.Anchor{Rect: vector.RotatedBounds(vector.R(g.X, g.Y, g.Width, g.Height), g.Rotation), Weight: 1})
	}
	return out
}

// Move updates the pointer position (screen coordinates) and returns the live preview.
func (s *Session) Move(screen vector.Pt) (Preview, error) {
	if s.done {
		return Preview{}, ErrNoSession
	}
	s.cur = s.vp.ToPage(screen)
	return s.preview(), nil
}

// End resolves the drop at screen against the current project p. A drop outside the page canvas
// is rejected without mutation. A document error (validation, tier limit) is returned together
// with a rejected drop.
func (s *Session) End(p domain.Project, screen vector.Pt) (Drop, error) {
	if s.done {
		return Drop{Result: document.Result{Next: p}}, ErrNoSession
	}
	s.cur = s.vp.ToPage(screen)
	pv := s.preview()
	s.done = true

	rejected := Drop{Outcome: OutcomeRejected, Result: document.Result{Next: p}, ElementID: s.payload.ElementID}
	if !pv.Inside {
		s.r.finish(s, OutcomeRejected)
		return rejected, nil
	}

	var (
		res     document.Result
		err     error
		outcome Outcome
		id      string
	)
	switch s.payload.Source {
	case SourcePalette:
		el := domain.Element{
			Kind:     s.payload.Template.Kind,
			Geometry: domain.Geometry{X: pv.Rect.X, Y: pv.Rect.Y, Width: pv.Rect.W, Height: pv.Rect.H},
			Content:  s.payload.Template.Content,
		}
		res, err = s.r.model.AddElement(p, s.page.ID, el)
		outcome = OutcomeCreated
		if err == nil {
			if pg, ok := res.Next.Page(s.page.ID); ok && len(pg.Elements) > 0 {
				id = pg.Elements[len(pg.Elements)-1].ID
			}
		}
	default:
		res, err = s.r.model.MoveElement(p, s.page.ID, s.payload.ElementID, pv.Rect.X, pv.Rect.Y)
		outcome, id = OutcomeMoved, s.payload.ElementID
	}
	if err != nil {
		s.r.log.Warn("drop rejected", slog.String("source", string(s.payload.Source)), slog.Any("err", err))
		s.r.finish(s, OutcomeRejected)
		return rejected, err
	}
	s.r.finish(s, outcome)
	return Drop{Outcome: outcome, Result: res, ElementID: id, Guides: pv.Guides}, nil
}

// Cancel ends the session without touching the document.
func (s *Session) Cancel(p domain.Project) Drop {
	if !s.done {
		s.done = true
		s.r.finish(s, OutcomeCancelled)
	}
	return Drop{Outcome: OutcomeCancelled, Result: document.Result{Next: p}, ElementID: s.payload.ElementID}
}
