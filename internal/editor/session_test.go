/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photobook/internal/dnd"
	"photobook/internal/document"
	"photobook/internal/domain"
	"photobook/internal/history"
	"photobook/internal/layout"
	"photobook/internal/limits"
	applog "photobook/internal/log"
	"photobook/internal/metrics"
	"photobook/internal/vector"
)

func seqModel() *document.Model {
	n := 0
	return &document.Model{NewID: func() string { n++; return fmt.Sprintf("new-%d", n) }}
}

func fixture() domain.Project {
	return domain.Project{ID: "book", Tier: domain.TierFree, Pages: []domain.Page{
		{ID: "p1", Type: domain.PageSpread, Width: 1000, Height: 500, Elements: []domain.Element{
			{ID: "a", Kind: domain.KindShape, Geometry: domain.Geometry{X: 100, Y: 100, Width: 50, Height: 50}, Content: domain.Content{ShapeKind: "rect"}},
			{ID: "b", Kind: domain.KindText, Geometry: domain.Geometry{X: 300, Y: 300, Width: 80, Height: 20, ZIndex: 1}, Content: domain.Content{Text: "hello"}},
			{ID: "c", Kind: domain.KindImage, Geometry: domain.Geometry{X: 600, Y: 50, Width: 200, Height: 150, ZIndex: 2}, Content: domain.Content{Src: "c.jpg"}, Locked: true},
		}},
		{ID: "p2", Type: domain.PageSingle, Width: 500, Height: 500, Elements: []domain.Element{}},
	}}
}

func newSession(t *testing.T, opts Options) *Session {
	t.Helper()
	if opts.Model == nil {
		opts.Model = seqModel()
	}
	s := New(fixture(), opts)
	t.Cleanup(s.Close)
	return s
}

func pt(x, y float64) vector.Pt { return vector.Pt{X: x, Y: y} }

func geometryOf(t *testing.T, s *Session, id string) domain.Geometry {
	t.Helper()
	pg, ok := s.ActivePage()
	require.True(t, ok)
	el, ok := pg.Element(id)
	require.True(t, ok, "element %s", id)
	return el.Geometry
}

func TestNewSessionDefaults(t *testing.T) {
	s := newSession(t, Options{})
	st := s.State()
	assert.Equal(t, "book", st.ProjectID)
	assert.Equal(t, "p1", st.PageID)
	assert.Equal(t, domain.ToolSelect, st.Tool)
	assert.Equal(t, 1.0, st.Zoom)
	assert.Equal(t, ModeIdle, s.Mode())
}

func TestDragRecordsSingleHistoryEntry(t *testing.T) {
	s := newSession(t, Options{})
	require.NoError(t, s.PointerDown(Target{ElementID: "a"}, Modifiers{}, pt(110, 110)))
	assert.Equal(t, ModeDragging, s.Mode())
	for i := 1; i <= 15; i++ {
		require.NoError(t, s.PointerMove(pt(110+float64(i)*4, 110+float64(i))))
	}
	require.NoError(t, s.PointerUp(pt(200, 130)))

	assert.Equal(t, ModeSingle, s.Mode())
	assert.Equal(t, []string{"a"}, s.Selection())
	g := geometryOf(t, s, "a")
	assert.Equal(t, 190.0, g.X)
	assert.Equal(t, 120.0, g.Y)
	undo, redo := s.History().Stats()
	assert.Equal(t, 1, undo)
	assert.Equal(t, 0, redo)

	st, err := s.Undo()
	require.NoError(t, err)
	assert.Equal(t, history.StatusApplied, st)
	assert.Equal(t, fixture(), s.Project())
}

func TestEscapeDuringDragRestoresSnapshot(t *testing.T) {
	s := newSession(t, Options{Snap: true})
	require.NoError(t, s.Select("b"))
	before := s.Project()

	require.NoError(t, s.PointerDown(Target{ElementID: "a"}, Modifiers{}, pt(120, 120)))
	for _, p := range []vector.Pt{pt(300, 10), pt(-50, 400), pt(900, 480)} {
		require.NoError(t, s.PointerMove(p))
	}
	assert.NotEqual(t, before, s.Project())
	s.Escape()

	assert.Equal(t, before, s.Project())
	assert.Equal(t, []string{"b"}, s.Selection())
	assert.Equal(t, ModeSingle, s.Mode())
	assert.False(t, s.History().InGroup())
	undo, _ := s.History().Stats()
	assert.Zero(t, undo)
	assert.Empty(t, s.Guides())
}

func TestClickWithoutMoveRecordsNothing(t *testing.T) {
	s := newSession(t, Options{})
	require.NoError(t, s.PointerDown(Target{ElementID: "b"}, Modifiers{}, pt(310, 305)))
	require.NoError(t, s.PointerUp(pt(310, 305)))
	assert.Equal(t, ModeSingle, s.Mode())
	assert.False(t, s.History().CanUndo())
}

func TestModifierClickBuildsMultiSelectionAndDragsTogether(t *testing.T) {
	s := newSession(t, Options{})
	shift := Modifiers{Shift: true}
	require.NoError(t, s.PointerDown(Target{ElementID: "a"}, shift, pt(110, 110)))
	assert.Equal(t, ModeSingle, s.Mode())
	require.NoError(t, s.PointerDown(Target{ElementID: "b"}, Modifiers{Ctrl: true}, pt(310, 310)))
	assert.Equal(t, ModeMulti, s.Mode())
	assert.Equal(t, []string{"a", "b"}, s.Selection())

	require.NoError(t, s.PointerDown(Target{ElementID: "a"}, Modifiers{}, pt(110, 110)))
	require.NoError(t, s.PointerMove(pt(120, 115)))
	require.NoError(t, s.PointerUp(pt(120, 115)))
	assert.Equal(t, ModeMulti, s.Mode())
	assert.Equal(t, 110.0, geometryOf(t, s, "a").X)
	assert.Equal(t, 310.0, geometryOf(t, s, "b").X)
	undo, _ := s.History().Stats()
	assert.Equal(t, 1, undo)

	// toggling again removes from the selection
	require.NoError(t, s.PointerDown(Target{ElementID: "a"}, shift, pt(110, 110)))
	assert.Equal(t, []string{"b"}, s.Selection())
	assert.Equal(t, ModeSingle, s.Mode())
}

func TestBackgroundClickClearsSelection(t *testing.T) {
	s := newSession(t, Options{})
	s.SelectAll()
	assert.Equal(t, ModeMulti, s.Mode())
	require.NoError(t, s.PointerDown(Target{}, Modifiers{}, pt(900, 450)))
	assert.Empty(t, s.Selection())
	assert.Equal(t, ModeIdle, s.Mode())
}

func TestLockedElementSelectsButDoesNotDrag(t *testing.T) {
	s := newSession(t, Options{})
	require.NoError(t, s.PointerDown(Target{ElementID: "c"}, Modifiers{}, pt(650, 100)))
	assert.Equal(t, ModeSingle, s.Mode())
	require.NoError(t, s.PointerMove(pt(700, 200)))
	require.NoError(t, s.PointerUp(pt(700, 200)))
	assert.Equal(t, 600.0, geometryOf(t, s, "c").X)
	assert.False(t, s.History().CanUndo())
}

func TestMarquee(t *testing.T) {
	s := newSession(t, Options{})
	require.NoError(t, s.Marquee(vector.RectFromPoints(pt(200, 200), pt(90, 90)), Modifiers{}))
	assert.Equal(t, []string{"a"}, s.Selection())
	require.NoError(t, s.Marquee(vector.R(290, 290, 20, 20), Modifiers{Shift: true}))
	assert.Equal(t, []string{"a", "b"}, s.Selection())
	assert.Equal(t, ModeMulti, s.Mode())
	require.NoError(t, s.Marquee(vector.R(0, 400, 10, 10), Modifiers{}))
	assert.Equal(t, ModeIdle, s.Mode())
}

func TestDeleteSelectedIsAtomic(t *testing.T) {
	s := newSession(t, Options{})
	require.NoError(t, s.Select("a", "b"))
	require.NoError(t, s.DeleteSelected())
	pg, _ := s.ActivePage()
	assert.Len(t, pg.Elements, 1)
	assert.Empty(t, s.Selection())
	assert.Equal(t, ModeIdle, s.Mode())

	_, err := s.Undo()
	require.NoError(t, err)
	assert.Equal(t, fixture(), s.Project())
}

func TestUndoPrunesSelection(t *testing.T) {
	s := newSession(t, Options{})
	id, err := s.AddElement(domain.Element{Kind: domain.KindText, Geometry: domain.Geometry{X: 1, Y: 1, Width: 10, Height: 10}})
	require.NoError(t, err)
	assert.Equal(t, []string{id}, s.Selection())
	_, err = s.Undo()
	require.NoError(t, err)
	assert.Empty(t, s.Selection())
	assert.Equal(t, ModeIdle, s.Mode())
}

func TestAddUndoRedoScenario(t *testing.T) {
	s := newSession(t, Options{})
	require.NoError(t, s.SetActivePage("p2"))
	geom := domain.Geometry{X: 100, Y: 100, Width: 200, Height: 150}
	_, err := s.AddElement(domain.Element{Kind: domain.KindImage, Geometry: geom, Content: domain.Content{Src: "x.jpg"}})
	require.NoError(t, err)

	_, err = s.Undo()
	require.NoError(t, err)
	pg, _ := s.ActivePage()
	assert.Empty(t, pg.Elements)

	st, err := s.Redo()
	require.NoError(t, err)
	assert.Equal(t, history.StatusApplied, st)
	pg, _ = s.ActivePage()
	require.Len(t, pg.Elements, 1)
	assert.Equal(t, geom, pg.Elements[0].Geometry)

	st, err = s.Redo()
	require.NoError(t, err)
	assert.Equal(t, history.StatusEmpty, st)
}

func TestResizeAndRotateHandles(t *testing.T) {
	s := newSession(t, Options{})
	require.NoError(t, s.Select("a"))
	assert.Equal(t, Target{ElementID: "a", Handle: HandleSE}, s.HitTest(pt(150, 150)))
	assert.Equal(t, Target{ElementID: "a", Handle: HandleRotate}, s.HitTest(pt(125, 76)))
	assert.Equal(t, Target{ElementID: "a"}, s.HitTest(pt(125, 125)))
	assert.Equal(t, Target{}, s.HitTest(pt(950, 450)))

	require.NoError(t, s.PointerDown(Target{ElementID: "a", Handle: HandleSE}, Modifiers{}, pt(150, 150)))
	require.NoError(t, s.PointerMove(pt(160, 155)))
	require.NoError(t, s.PointerUp(pt(170, 160)))
	g := geometryOf(t, s, "a")
	assert.Equal(t, domain.Geometry{X: 100, Y: 100, Width: 70, Height: 60}, g)

	require.NoError(t, s.PointerDown(Target{ElementID: "a", Handle: HandleNW}, Modifiers{}, pt(100, 100)))
	require.NoError(t, s.PointerUp(pt(500, 500)))
	g = geometryOf(t, s, "a")
	assert.Equal(t, 1.0, g.Width, "corner cannot cross the opposite corner")

	s2 := newSession(t, Options{})
	require.NoError(t, s2.Select("a"))
	require.NoError(t, s2.PointerDown(Target{ElementID: "a", Handle: HandleRotate}, Modifiers{}, pt(125, 75)))
	require.NoError(t, s2.PointerUp(pt(175, 125)))
	assert.Equal(t, 90.0, geometryOf(t, s2, "a").Rotation)
}

func TestResizeRotatedElementKeepsOppositeCorner(t *testing.T) {
	p := fixture()
	p.Pages[0].Elements[0].Geometry.Rotation = 90
	s := New(p, Options{Model: seqModel()})
	t.Cleanup(s.Close)
	require.NoError(t, s.Select("a"))

	// At 90 degrees the element's own bottom-right corner sits at the page's bottom-left.
	require.Equal(t, Target{ElementID: "a", Handle: HandleSE}, s.HitTest(pt(100, 150)))
	require.Equal(t, Target{ElementID: "a", Handle: HandleNW}, s.HitTest(pt(150, 100)))

	require.NoError(t, s.PointerDown(Target{ElementID: "a", Handle: HandleSE}, Modifiers{}, pt(100, 150)))
	require.NoError(t, s.PointerUp(pt(90, 170)))
	g := geometryOf(t, s, "a")
	assert.Equal(t, domain.Geometry{X: 85, Y: 105, Width: 70, Height: 60, Rotation: 90}, g)

	nw := vector.RotateAbout(geomRect(g).Center(), g.Rotation).Apply(pt(g.X, g.Y))
	assert.InDelta(t, 150.0, nw.X, 1e-9)
	assert.InDelta(t, 100.0, nw.Y, 1e-9)
}

func TestDragBackToStartRecordsNothing(t *testing.T) {
	s := newSession(t, Options{})
	require.NoError(t, s.PointerDown(Target{ElementID: "a"}, Modifiers{}, pt(110, 110)))
	require.NoError(t, s.PointerMove(pt(200, 200)))
	require.NoError(t, s.PointerMove(pt(150, 150)))
	require.NoError(t, s.PointerUp(pt(110, 110)))

	assert.Equal(t, ModeSingle, s.Mode())
	assert.Equal(t, fixture(), s.Project())
	assert.False(t, s.History().InGroup())
	undo, _ := s.History().Stats()
	assert.Zero(t, undo)
}

func TestSecondDragIsAConflict(t *testing.T) {
	s := newSession(t, Options{})
	var conflict *dnd.DragSessionConflictError

	require.NoError(t, s.PointerDown(Target{ElementID: "a"}, Modifiers{}, pt(110, 110)))
	err := s.StartDrop(pt(500, 250), dnd.Payload{Source: dnd.SourcePalette, Template: dnd.ElementTemplate{Kind: domain.KindShape}})
	require.True(t, errors.As(err, &conflict), "got %v", err)
	assert.Equal(t, dnd.SourceElement, conflict.Active)
	assert.Equal(t, "a", conflict.ElementID)
	assert.ErrorIs(t, err, ErrBusy)
	require.NoError(t, s.PointerUp(pt(110, 110)))

	require.NoError(t, s.StartDrop(pt(310, 305), dnd.Payload{Source: dnd.SourceElement, ElementID: "b"}))
	err = s.PointerDown(Target{ElementID: "a"}, Modifiers{}, pt(110, 110))
	require.True(t, errors.As(err, &conflict), "got %v", err)
	assert.Equal(t, dnd.SourceElement, conflict.Active)
	assert.Equal(t, "b", conflict.ElementID)
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, ModeSingle, s.Mode())
	s.CancelDrop()
}

func TestHitTestRespectsPaintOrderAndZoom(t *testing.T) {
	s := newSession(t, Options{})
	s.SetZoom(2)
	s.SetPan(10, 10)
	assert.Equal(t, Target{ElementID: "a"}, s.HitTest(pt(10+2*120, 10+2*120)))
	s.SetZoom(100)
	assert.Equal(t, MaxZoom, s.State().Zoom)
}

func TestPanTool(t *testing.T) {
	s := newSession(t, Options{})
	require.NoError(t, s.SetTool(domain.ToolPan))
	require.NoError(t, s.PointerDown(Target{ElementID: "a"}, Modifiers{}, pt(0, 0)))
	assert.Equal(t, ModePanning, s.Mode())
	assert.ErrorIs(t, s.SetTool(domain.ToolSelect), ErrBusy)
	require.NoError(t, s.PointerMove(pt(30, 40)))
	require.NoError(t, s.PointerUp(pt(30, 40)))
	st := s.State()
	assert.Equal(t, 30.0, st.PanX)
	assert.Equal(t, 40.0, st.PanY)
	assert.Equal(t, ModeIdle, s.Mode())

	require.NoError(t, s.PointerDown(Target{}, Modifiers{}, pt(0, 0)))
	require.NoError(t, s.PointerMove(pt(100, 100)))
	s.Escape()
	assert.Equal(t, 30.0, s.State().PanX)
}

func TestTextToolCreatesElement(t *testing.T) {
	s := newSession(t, Options{DefaultSize: vector.Size{W: 120, H: 40}})
	require.NoError(t, s.SetTool(domain.ToolText))
	require.NoError(t, s.PointerDown(Target{}, Modifiers{}, pt(10, 20)))
	require.Len(t, s.Selection(), 1)
	g := geometryOf(t, s, s.Selection()[0])
	assert.Equal(t, domain.Geometry{X: 10, Y: 20, Width: 120, Height: 40, ZIndex: 3}, g)
	assert.Equal(t, domain.ToolSelect, s.State().Tool)
}

func TestPaletteDropThroughBackend(t *testing.T) {
	s := newSession(t, Options{})
	b := dnd.DetectBackend(dnd.Capabilities{FinePointer: true})
	payload := dnd.Payload{Source: dnd.SourcePalette, Template: dnd.ElementTemplate{Kind: domain.KindImage, Width: 100, Height: 80, Content: domain.Content{Src: "sea.jpg"}}}

	_, err := s.HandleInput(b, dnd.MouseEvent{Type: "mousedown", X: 500, Y: 250}, payload)
	require.NoError(t, err)
	err = s.StartDrop(pt(1, 1), payload)
	var conflict *dnd.DragSessionConflictError
	assert.True(t, errors.As(err, &conflict))
	assert.ErrorIs(t, s.Select("a"), ErrBusy)

	_, err = s.HandleInput(b, dnd.MouseEvent{Type: "mousemove", X: 520, Y: 260}, payload)
	require.NoError(t, err)
	drop, err := s.HandleInput(b, dnd.MouseEvent{Type: "mouseup", X: 540, Y: 270}, payload)
	require.NoError(t, err)
	assert.Equal(t, dnd.OutcomeCreated, drop.Outcome)
	assert.Equal(t, []string{drop.ElementID}, s.Selection())
	g := geometryOf(t, s, drop.ElementID)
	assert.Equal(t, 490.0, g.X)
	assert.Equal(t, 230.0, g.Y)

	undo, _ := s.History().Stats()
	assert.Equal(t, 1, undo)
}

func TestDropOutsideCanvasChangesNothing(t *testing.T) {
	s := newSession(t, Options{})
	require.NoError(t, s.StartDrop(pt(120, 120), dnd.Payload{Source: dnd.SourceElement, ElementID: "a"}))
	drop, err := s.EndDrop(pt(1500, 120))
	require.NoError(t, err)
	assert.Equal(t, dnd.OutcomeRejected, drop.Outcome)
	assert.Equal(t, fixture(), s.Project())
	assert.False(t, s.History().CanUndo())

	require.NoError(t, s.StartDrop(pt(120, 120), dnd.Payload{Source: dnd.SourceElement, ElementID: "a"}))
	assert.True(t, s.CancelDrag())
	assert.Equal(t, fixture(), s.Project())
}

func TestRenderList(t *testing.T) {
	s := newSession(t, Options{})
	require.NoError(t, s.Select("b"))
	items := s.RenderList()
	require.Len(t, items, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{items[0].ID, items[1].ID, items[2].ID})
	assert.True(t, items[1].Selected)
	assert.False(t, items[0].Selected)
	assert.True(t, items[2].Locked)
	assert.Empty(t, s.RenderPage("p2"))
	assert.Nil(t, s.RenderPage("nope"))
}

func TestSaveIsAsyncAndNeverRollsBack(t *testing.T) {
	saved := make(chan domain.Project, 2)
	saver := SaverFunc(func(ctx context.Context, p domain.Project) error {
		saved <- p
		if len(p.Pages[0].Elements) == 2 {
			return errors.New("backend unavailable")
		}
		return nil
	})
	s := newSession(t, Options{Saver: saver})
	require.NoError(t, s.Select("a"))
	require.NoError(t, s.DeleteSelected())

	rev, err := s.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rev)

	select {
	case res := <-s.SaveResults():
		assert.Equal(t, 1, res.Revision)
		assert.Equal(t, "book", res.ProjectID)
		assert.Error(t, res.Err)
	case <-time.After(5 * time.Second):
		t.Fatal("no save result")
	}
	pg, _ := s.ActivePage()
	assert.Len(t, pg.Elements, 2, "failed save must not roll back")
	assert.True(t, s.History().CanUndo())
	assert.Len(t, (<-saved).Pages[0].Elements, 2)

	s.Close()
	_, err = s.Save(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	_, open := <-s.SaveResults()
	assert.False(t, open)

	_, err = New(fixture(), Options{}).Save(context.Background())
	assert.ErrorIs(t, err, ErrNoSaver)
}

func TestSaveTagsContextWithProject(t *testing.T) {
	var buf bytes.Buffer
	applog.Init(applog.Options{Level: "info", Format: "json", Writer: &buf})
	t.Cleanup(func() { applog.Init(applog.Options{Writer: &bytes.Buffer{}}) })

	saver := SaverFunc(func(ctx context.Context, p domain.Project) error {
		applog.L().InfoContext(ctx, "persisted")
		return nil
	})
	s := newSession(t, Options{Saver: saver})
	_, err := s.Save(context.Background())
	require.NoError(t, err)
	res := <-s.SaveResults()
	require.NoError(t, res.Err)
	assert.Contains(t, buf.String(), `"project":"book"`)
}

func TestLimitDenialIsCounted(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	table := limits.TierTable{domain.TierFree: {MaxPages: 2, MaxElementsPerPage: 3, MaxPhotobooks: 1}}
	s := newSession(t, Options{Model: document.New(table), Metrics: m})

	_, err := s.AddElement(domain.Element{Kind: domain.KindText, Geometry: domain.Geometry{Width: 1, Height: 1}})
	var le *document.LimitExceededError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, limits.ReasonMaxElements, le.Reason)
	pg, _ := s.ActivePage()
	assert.Len(t, pg.Elements, 3)

	_, err = s.AddPage(domain.Page{}, -1)
	require.Error(t, err)
	assert.Len(t, s.Project().Pages, 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LimitDenials.WithLabelValues("add_element", limits.ReasonMaxElements)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LimitDenials.WithLabelValues("add_page", limits.ReasonMaxPages)))
}

func TestNudgesMergeIntoOneEntry(t *testing.T) {
	h := history.NewManager(history.Config{MergeWindow: time.Minute})
	s := newSession(t, Options{History: h})
	require.NoError(t, s.Select("a", "c"))
	for i := 0; i < 4; i++ {
		require.NoError(t, s.Nudge(1, 0))
	}
	assert.Equal(t, 104.0, geometryOf(t, s, "a").X)
	assert.Equal(t, 600.0, geometryOf(t, s, "c").X, "locked elements are not nudged")
	undo, _ := h.Stats()
	assert.Equal(t, 1, undo)
	_, _ = s.Undo()
	assert.Equal(t, 100.0, geometryOf(t, s, "a").X)
}

func TestApplyTemplateIsOneEntry(t *testing.T) {
	s := newSession(t, Options{})
	tmpl := layout.Template{Name: "two", Slots: []layout.Slot{{Width: 0.5, Height: 1}, {X: 0.5, Width: 0.5, Height: 1}}}
	plan, err := s.ApplyTemplate(tmpl, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, plan.Placed)
	assert.Equal(t, []string{"c"}, plan.Unplaced)
	assert.Equal(t, 500.0, geometryOf(t, s, "b").X)
	undo, _ := s.History().Stats()
	assert.Equal(t, 1, undo)

	single := layout.Template{Name: "single", PageTypes: []domain.PageType{domain.PageSingle}, Slots: tmpl.Slots}
	plan, err = s.ApplyTemplate(single, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, plan.Warning, layout.ErrTemplateMismatch)
	undo, _ = s.History().Stats()
	assert.Equal(t, 1, undo)
}

func TestPageOperations(t *testing.T) {
	s := newSession(t, Options{})
	id, err := s.AddPage(domain.Page{Type: domain.PageSingle}, 1)
	require.NoError(t, err)
	assert.Equal(t, id, s.State().PageID)
	dup, err := s.DuplicatePage("p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", dup, id, "p2"}, pageIDs(s.Project()))
	require.NoError(t, s.ReorderPages([]string{"p2", id, dup, "p1"}))
	require.NoError(t, s.RemovePage(id))
	assert.Equal(t, "p2", s.State().PageID, "removing the active page activates the first page")
	for s.History().CanUndo() {
		_, err := s.Undo()
		require.NoError(t, err)
	}
	assert.Equal(t, fixture(), s.Project())
}

func TestZOrderAndLock(t *testing.T) {
	s := newSession(t, Options{})
	require.NoError(t, s.Select("a"))
	require.NoError(t, s.BringToFront())
	assert.Equal(t, 3, geometryOf(t, s, "a").ZIndex)
	require.NoError(t, s.SendToBack())
	assert.Equal(t, 0, geometryOf(t, s, "a").ZIndex, "below b at 1")
	require.NoError(t, s.SetLocked(true))
	require.NoError(t, s.PointerDown(Target{ElementID: "a"}, Modifiers{}, pt(110, 110)))
	assert.Equal(t, ModeSingle, s.Mode(), "locked element does not start a drag")
	assert.Error(t, s.Rotate(45), "locked elements cannot be rotated")
	undo, _ := s.History().Stats()
	assert.Equal(t, 3, undo)
}

func pageIDs(p domain.Project) []string {
	out := make([]string, len(p.Pages))
	for i, pg := range p.Pages {
		out[i] = pg.ID
	}
	return out
}
