/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package editor holds the editing session: the current project snapshot, the selection and tool
// state machine, and the glue that routes every mutation through the document operators and the
// history. A Session is an explicit value; there is no process-wide editor state.
package editor

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"photobook/internal/dnd"
	"photobook/internal/document"
	"photobook/internal/domain"
	"photobook/internal/history"
	applog "photobook/internal/log"
	"photobook/internal/metrics"
	"photobook/internal/vector"
)

// Mode is the interaction state of the session.
type Mode string

const (
	ModeIdle     Mode = "idle"
	ModeSingle   Mode = "single-selected"
	ModeMulti    Mode = "multi-selected"
	ModeDragging Mode = "dragging"
	ModePanning  Mode = "panning"
)

var (
	// ErrBusy is returned by operations that cannot run while a drag or pan owns the pointer.
	ErrBusy = errors.New("editor: interaction in progress")
	// ErrNoPage is returned when the project has no active page.
	ErrNoPage = errors.New("editor: no active page")
)

// Zoom bounds.
const (
	MinZoom = 0.1
	MaxZoom = 4.0
)

// Options configures a Session. Zero values get working defaults.
type Options struct {
	Model   *document.Model
	History *history.Manager
	Drops   *dnd.Resolver
	Saver   Saver
	// Snap enables smart guides while dragging elements.
	Snap        bool
	SnapOptions vector.SnapOptions
	// DefaultSize is the size of elements created by the text and shape tools.
	DefaultSize vector.Size
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// Session is one user's editing session on one project. Methods must be called from a single
// goroutine; Save hands persistence to a background goroutine.
type Session struct {
	project domain.Project
	view    domain.EditorState
	mode    Mode

	model   *document.Model
	hist    *history.Manager
	drops   *dnd.Resolver
	saver   Saver
	opts    Options
	metrics *metrics.Metrics
	log     *slog.Logger

	drag   *dragState
	pan    *panState
	drop   *dnd.Session
	guides []vector.GuideLine

	saveMu   sync.Mutex
	saves    chan SaveResult
	saveWG   sync.WaitGroup
	revision int
	closed   bool
}

// New starts a session on p. The first page becomes the active page.
func New(p domain.Project, opts Options) *Session {
	if opts.Model == nil {
		opts.Model = &document.Model{}
	}
	if opts.History == nil {
		opts.History = history.NewManager(history.Config{})
	}
	if opts.SnapOptions.Threshold <= 0 {
		opts.SnapOptions = vector.DefaultSnapOptions()
	}
	if opts.DefaultSize.W <= 0 || opts.DefaultSize.H <= 0 {
		opts.DefaultSize = vector.Size{W: 200, H: 150}
	}
	if opts.Drops == nil {
		opts.Drops = dnd.NewResolver(opts.Model, dnd.Options{Snap: opts.Snap, SnapOptions: opts.SnapOptions, DefaultSize: opts.DefaultSize, Metrics: opts.Metrics})
	}
	l := opts.Logger
	if l == nil {
		l = applog.WithComponent("editor")
	}
	s := &Session{
		project: p.Clone(),
		view:    domain.EditorState{ProjectID: p.ID, Tool: domain.ToolSelect, Zoom: 1},
		mode:    ModeIdle,
		model:   opts.Model,
		hist:    opts.History,
		drops:   opts.Drops,
		saver:   opts.Saver,
		opts:    opts,
		metrics: opts.Metrics,
		log:     l.With(slog.String("project", p.ID)),
		saves:   make(chan SaveResult, 16),
	}
	if len(p.Pages) > 0 {
		s.view.PageID = p.Pages[0].ID
	}
	return s
}

// Project returns the current snapshot. The caller must not modify it.
func (s *Session) Project() domain.Project { return s.project }

// State returns a copy of the view state.
func (s *Session) State() domain.EditorState {
	v := s.view
	v.Selected = append([]string(nil), s.view.Selected...)
	return v
}

// Mode returns the interaction state.
func (s *Session) Mode() Mode { return s.mode }

// Selection returns the selected element ids in selection order.
func (s *Session) Selection() []string { return append([]string(nil), s.view.Selected...) }

// History exposes the undo manager, e.g. for menu labels.
func (s *Session) History() *history.Manager { return s.hist }

// Guides returns the smart guides of the current drag frame.
func (s *Session) Guides() []vector.GuideLine { return s.guides }

// ActivePage returns the page being edited.
func (s *Session) ActivePage() (domain.Page, bool) {
	return s.project.Page(s.view.PageID)
}

// SetActivePage switches pages and drops the selection.
func (s *Session) SetActivePage(id string) error {
	if s.busy() {
		return ErrBusy
	}
	if s.project.PageIndex(id) < 0 {
		return fmt.Errorf("editor: no page %q", id)
	}
	s.view.PageID = id
	s.setSelection(nil)
	return nil
}

// SetTool changes the tool. Switching tools ends nothing; it is refused during a drag.
func (s *Session) SetTool(t domain.ToolMode) error {
	if s.busy() {
		return ErrBusy
	}
	switch t {
	case domain.ToolSelect, domain.ToolPan, domain.ToolText, domain.ToolShape:
	default:
		return fmt.Errorf("editor: unknown tool %q", t)
	}
	s.view.Tool = t
	return nil
}

// SetZoom clamps z to [MinZoom, MaxZoom].
func (s *Session) SetZoom(z float64) {
	s.view.Zoom = min(max(z, MinZoom), MaxZoom)
}

// SetPan sets the screen offset of the page origin.
func (s *Session) SetPan(x, y float64) {
	s.view.PanX, s.view.PanY = x, y
}

// Viewport returns the screen/page transform of the session.
func (s *Session) Viewport() dnd.Viewport {
	return dnd.Viewport{Zoom: s.view.Zoom, PanX: s.view.PanX, PanY: s.view.PanY}
}

func (s *Session) busy() bool {
	return s.mode == ModeDragging || s.mode == ModePanning || s.drop != nil
}

// dragConflict rejects a second drag while a pointer drag or a drop session is active. The error
// matches both ErrBusy and *dnd.DragSessionConflictError.
func (s *Session) dragConflict() error {
	var c *dnd.DragSessionConflictError
	switch {
	case s.drag != nil:
		c = &dnd.DragSessionConflictError{Active: dnd.SourceElement, ElementID: s.drag.ids[0]}
	case s.drop != nil:
		pl := s.drop.Payload()
		c = &dnd.DragSessionConflictError{Active: pl.Source, ElementID: pl.ElementID}
	default:
		return nil
	}
	return fmt.Errorf("%w: %w", ErrBusy, c)
}

// setSelection replaces the selection and derives the mode from its size.
func (s *Session) setSelection(ids []string) {
	s.view.Selected = append([]string(nil), ids...)
	s.mode = modeFor(len(ids))
}

func modeFor(n int) Mode {
	switch {
	case n == 0:
		return ModeIdle
	case n == 1:
		return ModeSingle
	default:
		return ModeMulti
	}
}

// pruneSelection drops ids that no longer exist on the active page. If the active page itself is
// gone, the first page becomes active.
func (s *Session) pruneSelection() {
	pg, ok := s.ActivePage()
	if !ok {
		s.view.PageID = ""
		if len(s.project.Pages) > 0 {
			s.view.PageID = s.project.Pages[0].ID
		}
		s.setSelection(nil)
		return
	}
	kept := s.view.Selected[:0:0]
	for _, id := range s.view.Selected {
		if pg.ElementIndex(id) >= 0 {
			kept = append(kept, id)
		}
	}
	s.setSelection(kept)
}

// Commit records a finished document change produced outside the session's own operators (layout
// templates, drops, CLI edits) and makes its result current.
func (s *Session) Commit(kind string, res document.Result) error {
	if s.busy() {
		return ErrBusy
	}
	return s.commit(history.Action{Kind: kind, Forward: res.Forward, Inverse: res.Inverse}, res.Next)
}

func (s *Session) commit(a history.Action, next domain.Project) error {
	if err := s.hist.Record(a); err != nil {
		s.metrics.HistoryOp("record", "failed")
		return err
	}
	s.project = next
	s.pruneSelection()
	s.metrics.HistoryOp("record", "applied")
	s.log.Debug("recorded", slog.String("kind", a.Kind), slog.Int("ops", len(a.Forward)))
	return nil
}

// run applies an operator result: on error the snapshot is left untouched and limit denials are
// counted.
func (s *Session) run(kind string, res document.Result, err error) error {
	if err != nil {
		s.noteFailure(err)
		return err
	}
	return s.Commit(kind, res)
}

func (s *Session) noteFailure(err error) {
	var le *document.LimitExceededError
	if errors.As(err, &le) {
		s.metrics.LimitDenied(string(le.Intent), le.Reason)
		s.log.Warn("limit exceeded", slog.String("intent", string(le.Intent)), slog.String("reason", le.Reason))
	}
}

// Undo reverses the last recorded change. An empty history is not an error.
func (s *Session) Undo() (history.Status, error) {
	if s.busy() {
		return history.StatusFailed, ErrBusy
	}
	next, st, err := s.hist.Undo(s.project)
	s.metrics.HistoryOp("undo", st.String())
	if st == history.StatusApplied {
		s.project = next
		s.pruneSelection()
	}
	return st, err
}

// Redo re-applies the last undone change.
func (s *Session) Redo() (history.Status, error) {
	if s.busy() {
		return history.StatusFailed, ErrBusy
	}
	next, st, err := s.hist.Redo(s.project)
	s.metrics.HistoryOp("redo", st.String())
	if st == history.StatusApplied {
		s.project = next
		s.pruneSelection()
	}
	return st, err
}

// Select replaces the selection with ids, which must exist on the active page.
func (s *Session) Select(ids ...string) error {
	if s.busy() {
		return ErrBusy
	}
	pg, ok := s.ActivePage()
	if !ok {
		return ErrNoPage
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if pg.ElementIndex(id) < 0 {
			return fmt.Errorf("editor: no element %q on page %q", id, pg.ID)
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	s.setSelection(out)
	return nil
}

// SelectAll selects every element of the active page in paint order.
func (s *Session) SelectAll() {
	if s.busy() {
		return
	}
	pg, ok := s.ActivePage()
	if !ok {
		return
	}
	ids := make([]string, 0, len(pg.Elements))
	for _, el := range pg.PaintOrder() {
		ids = append(ids, el.ID)
	}
	s.setSelection(ids)
}

// ClearSelection empties the selection.
func (s *Session) ClearSelection() {
	if s.busy() {
		return
	}
	s.setSelection(nil)
}

// DeleteSelected removes every selected element as one history entry and clears the selection.
func (s *Session) DeleteSelected() error {
	if s.busy() {
		return ErrBusy
	}
	if len(s.view.Selected) == 0 {
		return nil
	}
	res, err := s.model.DeleteElements(s.project, s.view.PageID, s.view.Selected)
	return s.run("delete", res, err)
}
