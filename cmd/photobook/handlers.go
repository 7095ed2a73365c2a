/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"photobook/internal/backend"
	"photobook/internal/config"
	"photobook/internal/crash"
	"photobook/internal/domain"
	"photobook/internal/export"
	"photobook/internal/imaging"
	"photobook/internal/layout"
	applog "photobook/internal/log"
	"photobook/internal/storage"
	"photobook/internal/telemetry"
	"photobook/internal/vector"
)

const (
	defaultPageHeight  = 600
	defaultSingleWidth = 600
	defaultSpreadWidth = 1200
	placementMargin    = 20
	placementGridStep  = 10
)

func runInit(cmd *cobra.Command, a *app, dir, name, id, tier, owner string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if _, err := os.Stat(storage.ManifestPath(abs)); err == nil {
		return fmt.Errorf("%s already holds a project", abs)
	}
	if name == "" {
		name = filepath.Base(abs)
	}
	if owner == "" {
		owner = a.cfg.General.Owner
	}
	if tier == "" {
		tier = a.cfg.General.Tier
	}
	owned := 0
	ix, err := a.catalog()
	if err != nil {
		a.log.Warn("catalogue unavailable; photobook quota not checked", slog.Any("err", err))
	} else {
		defer ix.Close()
		if owned, err = ix.CountOwned(cmd.Context(), owner); err != nil {
			return fmt.Errorf("count projects: %w", err)
		}
	}
	m, err := a.model()
	if err != nil {
		return err
	}
	p, err := m.NewProject(id, owner, name, domain.Tier(strings.ToLower(tier)), owned)
	if err != nil {
		return a.explain(err)
	}
	ph, err := storage.InitProject(abs, p)
	if err != nil {
		return err
	}
	if ix != nil {
		ctx := applog.ContextWithProject(cmd.Context(), p.ID)
		if err := ix.Upsert(ctx, abs, ph.Project); err != nil {
			a.log.WarnContext(ctx, "catalogue update failed", slog.Any("err", err))
		}
	}
	fmt.Fprintf(a.out, "Created project %q (%s) in %s\n", p.Name, p.ID, abs)
	return nil
}

func runInfo(cmd *cobra.Command, a *app, dir string, asJSON bool) error {
	ph, err := storage.Open(dir)
	if err != nil {
		return err
	}
	p := ph.Project
	if asJSON {
		data, err := storage.Marshal(p)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(a.out, string(data))
		return err
	}
	fmt.Fprintf(a.out, "Project:  %s (%s)\n", p.Name, p.ID)
	fmt.Fprintf(a.out, "Owner:    %s\n", p.OwnerID)
	fmt.Fprintf(a.out, "Tier:     %s\n", p.Tier)
	fmt.Fprintf(a.out, "Pages:    %d\n", len(p.Pages))
	fmt.Fprintf(a.out, "Elements: %d\n", p.ElementCount())
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for i, pg := range p.Pages {
		tmpl := pg.TemplateRef
		if tmpl == "" {
			tmpl = "-"
		}
		fmt.Fprintf(tw, "  %d\t%s\t%s\t%gx%g\t%d elements\t%s\n", i+1, pg.ID, pg.Type, pg.Width, pg.Height, len(pg.Elements), tmpl)
	}
	return tw.Flush()
}

func runAddPage(cmd *cobra.Command, a *app, dir, pageType string, width, height float64, index int) error {
	pt := domain.PageType(strings.ToLower(pageType))
	if pt != domain.PageSingle && pt != domain.PageSpread {
		return fmt.Errorf("unknown page type %q (want single or spread)", pageType)
	}
	if width == 0 {
		width = defaultSingleWidth
		if pt == domain.PageSpread {
			width = defaultSpreadWidth
		}
	}
	if height == 0 {
		height = defaultPageHeight
	}
	ws, err := a.open(dir)
	if err != nil {
		return err
	}
	defer ws.close()
	defer crash.Recover(ws.rescue())

	id, err := ws.sess.AddPage(domain.Page{Type: pt, Width: width, Height: height}, index)
	if err != nil {
		return a.explain(err)
	}
	if err := ws.save(cmd.Context()); err != nil {
		return err
	}
	telemetry.Track(telemetry.EventPageAdded, map[string]any{"type": string(pt), "pages": len(ws.ph.Project.Pages)})
	fmt.Fprintf(a.out, "Added %s page %s\n", pt, id)
	return nil
}

type elementFlags struct {
	page, kind, src, text, shape string
	x, y, width, height          float64
	rotation                     float64
	locked                       bool
	placed, sized                bool
}

func runAddElement(cmd *cobra.Command, a *app, dir string, f elementFlags) error {
	kind := domain.ElementKind(strings.ToLower(f.kind))
	if !kind.Valid() {
		return fmt.Errorf("unknown element kind %q (want image, text or shape)", f.kind)
	}
	ws, err := a.open(dir)
	if err != nil {
		return err
	}
	defer ws.close()
	defer crash.Recover(ws.rescue())

	pg, err := targetPage(ws, f.page)
	if err != nil {
		return err
	}
	el := domain.Element{Kind: kind, Locked: f.locked}
	var natural vector.Size
	switch kind {
	case domain.KindImage:
		if f.src == "" {
			return errors.New("--src is required for image elements")
		}
		el.Content.Src = filepath.ToSlash(f.src)
		info, err := imaging.DimensionsFile(imaging.Resolve(ws.ph.Root, el.Content.Src))
		if err != nil {
			fmt.Fprintf(a.errOut, "warning: cannot read %s: %v\n", f.src, err)
		} else {
			natural = info.Size()
			el.Content.NaturalWidth, el.Content.NaturalHeight = natural.W, natural.H
		}
	case domain.KindText:
		if f.text == "" {
			return errors.New("--text is required for text elements")
		}
		el.Content.Text = f.text
	case domain.KindShape:
		el.Content.ShapeKind = strings.ToLower(f.shape)
	}

	size := vector.Size{W: f.width, H: f.height}
	if !f.sized {
		size = fitSize(a.cfg.Editor.DefaultSize(), natural)
	}
	r := vector.R(f.x, f.y, size.W, size.H)
	if !f.placed {
		r, _ = vector.SuggestPlacement(vector.R(0, 0, pg.Width, pg.Height), size, obstacles(pg),
			vector.PlaceOptions{Margin: placementMargin, GridStep: placementGridStep})
	}
	el.Geometry = domain.Geometry{X: r.X, Y: r.Y, Width: r.W, Height: r.H, Rotation: f.rotation}
	if kind == domain.KindImage && natural.W > 0 {
		if c, ok := layout.CoverCrop(natural, r.W, r.H); ok {
			el.Content.Crop = &c
		}
	}

	id, err := ws.sess.AddElement(el)
	if err != nil {
		return a.explain(err)
	}
	if err := ws.save(cmd.Context()); err != nil {
		return err
	}
	telemetry.Track(telemetry.EventElementAdded, map[string]any{"kind": string(kind), "placed": f.placed})
	fmt.Fprintf(a.out, "Added %s %s to page %s at %.0f,%.0f (%.0fx%.0f)\n", kind, id, pg.ID, r.X, r.Y, r.W, r.H)
	return nil
}

// targetPage activates the page with id, or the last page when id is empty.
func targetPage(ws *workspace, id string) (domain.Page, error) {
	p := ws.sess.Project()
	if id == "" {
		if len(p.Pages) == 0 {
			return domain.Page{}, errors.New("the project has no pages; run add-page first")
		}
		id = p.Pages[len(p.Pages)-1].ID
	}
	if err := ws.sess.SetActivePage(id); err != nil {
		return domain.Page{}, err
	}
	pg, _ := ws.sess.ActivePage()
	return pg, nil
}

// fitSize scales natural to fit inside box, keeping its aspect ratio. Without a natural size it
// returns box.
func fitSize(box, natural vector.Size) vector.Size {
	if natural.W <= 0 || natural.H <= 0 {
		return box
	}
	s := min(box.W/natural.W, box.H/natural.H)
	return vector.Size{W: vector.FloatRound(natural.W*s, 2), H: vector.FloatRound(natural.H*s, 2)}
}

func obstacles(pg domain.Page) []vector.Rect {
	out := make([]vector.Rect, 0, len(pg.Elements))
	for _, el := range pg.Elements {
		g := el.Geometry
		out = append(out, vector.RotatedBounds(vector.R(g.X, g.Y, g.Width, g.Height), g.Rotation))
	}
	return out
}

func runApplyTemplate(cmd *cobra.Command, a *app, dir, name, pageID string) error {
	ws, err := a.open(dir)
	if err != nil {
		return err
	}
	defer ws.close()
	defer crash.Recover(ws.rescue())

	reg, err := a.templates(ws.ph.Root)
	if err != nil {
		return err
	}
	tmpl, ok := reg.Get(name)
	if !ok {
		names := make([]string, 0)
		for _, t := range reg.List() {
			names = append(names, t.Name)
		}
		return fmt.Errorf("unknown template %q (available: %s)", name, strings.Join(names, ", "))
	}
	pg, err := targetPage(ws, pageID)
	if err != nil {
		return err
	}
	dims, err := imaging.PageDims(pg, ws.ph.Root)
	if err != nil {
		a.log.Warn("some image sizes unknown", slog.Any("err", err))
	}
	plan, err := ws.sess.ApplyTemplate(tmpl, layout.Dims(dims))
	if err != nil {
		return err
	}
	if plan.Warning != nil {
		fmt.Fprintf(a.errOut, "warning: %v\n", plan.Warning)
		return nil
	}
	if err := ws.save(cmd.Context()); err != nil {
		return err
	}
	telemetry.Track(telemetry.EventTemplateApplied, map[string]any{
		"template": tmpl.Name, "placed": len(plan.Placed), "empty_slots": plan.EmptySlots,
	})
	fmt.Fprintf(a.out, "Applied %s to page %s: %d placed, %d untouched, %d empty slots\n",
		tmpl.Name, pg.ID, len(plan.Placed), len(plan.Unplaced), plan.EmptySlots)
	return nil
}

func runTemplatesList(cmd *cobra.Command, a *app, dir, pageType string) error {
	root := ""
	if dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return err
		}
		root = abs
	}
	reg, err := a.templates(root)
	if err != nil {
		return err
	}
	ts := reg.List()
	if pageType != "" {
		ts = reg.ForPageType(domain.PageType(strings.ToLower(pageType)))
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, t := range ts {
		types := "any"
		if len(t.PageTypes) > 0 {
			parts := make([]string, len(t.PageTypes))
			for i, pt := range t.PageTypes {
				parts[i] = string(pt)
			}
			types = strings.Join(parts, ",")
		}
		fmt.Fprintf(tw, "%s\t%s\t%d slots\t%s\n", t.Name, types, len(t.Slots), t.Description)
	}
	return tw.Flush()
}

func runTemplatesExportPack(cmd *cobra.Command, a *app, dir, zipPath string) error {
	n, err := layout.ExportPack(filepath.Join(dir, storage.TemplatesDirName), zipPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Packed %d template files into %s\n", n, zipPath)
	return nil
}

func runTemplatesInstallPack(cmd *cobra.Command, a *app, dir, zipPath string) error {
	n, err := layout.InstallPack(filepath.Join(dir, storage.TemplatesDirName), zipPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Installed %d template files from %s\n", n, zipPath)
	return nil
}

func runTemplatesUsage(cmd *cobra.Command, a *app, name string) error {
	ix, err := a.catalog()
	if err != nil {
		return err
	}
	defer ix.Close()
	refs, err := ix.PagesUsingTemplate(cmd.Context(), name)
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		fmt.Fprintf(a.out, "No catalogued page uses %s\n", name)
		return nil
	}
	for _, r := range refs {
		fmt.Fprintf(a.out, "%s\tpage %d\t%s\n", r.ProjectID, r.Position+1, r.PageID)
	}
	return nil
}

func runExportPDF(cmd *cobra.Command, a *app, dir, out string, opt export.PDFOptions) error {
	ph, err := storage.Open(dir)
	if err != nil {
		return err
	}
	rep, err := export.ProofPDF(ph, out, opt)
	if err != nil {
		return err
	}
	a.report("pdf", rep)
	return nil
}

func runExport(cmd *cobra.Command, a *app, dir string, opt export.BatchOptions) error {
	ph, err := storage.Open(dir)
	if err != nil {
		return err
	}
	rep, err := export.BatchExport(ph, opt)
	if err != nil {
		return err
	}
	a.report(string(opt.Preset), rep)
	return nil
}

func (a *app) report(format string, rep export.Report) {
	for _, f := range rep.Files {
		fmt.Fprintf(a.out, "Wrote %s\n", f)
	}
	if len(rep.Missing) > 0 {
		fmt.Fprintf(a.errOut, "warning: %d image(s) unreadable, drawn as placeholders: %s\n",
			len(rep.Missing), strings.Join(rep.Missing, ", "))
	}
	telemetry.Track(telemetry.EventExported, map[string]any{
		"format": format, "pages": rep.Pages, "images": rep.Images, "missing": len(rep.Missing),
	})
}

func runValidate(cmd *cobra.Command, a *app, dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(storage.ManifestPath(abs))
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	var problems []string
	if err := storage.Validate(data); err != nil {
		var se *storage.SchemaError
		if !errors.As(err, &se) {
			return err
		}
		problems = append(problems, se.Problems...)
		return a.printProblems(problems, nil)
	}
	p, err := storage.Unmarshal(data)
	if err != nil {
		return err
	}
	if err := storage.CheckIntegrity(p); err != nil {
		problems = append(problems, err.Error())
	}

	var warnings []string
	tbl, err := a.cfg.Limits.Table()
	if err != nil {
		return err
	}
	tier := p.Tier
	if tier == "" {
		tier = domain.TierFree
	}
	if lim, ok := tbl.Limits(tier); !ok {
		warnings = append(warnings, fmt.Sprintf("unknown tier %q", tier))
	} else {
		if lim.MaxPages > 0 && len(p.Pages) > lim.MaxPages {
			warnings = append(warnings, fmt.Sprintf("%d pages exceed the %s limit of %d", len(p.Pages), tier, lim.MaxPages))
		}
		for _, pg := range p.Pages {
			if lim.MaxElementsPerPage > 0 && len(pg.Elements) > lim.MaxElementsPerPage {
				warnings = append(warnings, fmt.Sprintf("page %s: %d elements exceed the %s limit of %d",
					pg.ID, len(pg.Elements), tier, lim.MaxElementsPerPage))
			}
		}
	}
	for _, pg := range p.Pages {
		if _, err := imaging.PageDims(pg, abs); err != nil {
			for _, e := range strings.Split(err.Error(), "\n") {
				warnings = append(warnings, fmt.Sprintf("page %s: %s", pg.ID, e))
			}
		}
	}
	return a.printProblems(problems, warnings)
}

func (a *app) printProblems(problems, warnings []string) error {
	for _, w := range warnings {
		fmt.Fprintf(a.out, "warning: %s\n", w)
	}
	for _, p := range problems {
		fmt.Fprintf(a.out, "error: %s\n", p)
	}
	if len(problems) > 0 {
		return fmt.Errorf("%d problem(s) found", len(problems))
	}
	fmt.Fprintln(a.out, "OK")
	return nil
}

func runWatch(cmd *cobra.Command, a *app, dir string, debounce time.Duration) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	w, err := storage.Watch(ctx, abs, debounce)
	if err != nil {
		return err
	}
	defer w.Close()
	ix, err := a.catalog()
	if err != nil {
		a.log.Warn("catalogue unavailable", slog.Any("err", err))
		ix = nil
	} else {
		defer ix.Close()
	}
	fmt.Fprintf(a.out, "Watching %s\n", abs)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ch, ok := <-w.Changes():
			if !ok {
				return nil
			}
			if ch.Err != nil {
				fmt.Fprintf(a.errOut, "warning: reload failed: %v\n", ch.Err)
				continue
			}
			p := ch.Handle.Project
			fmt.Fprintf(a.out, "Reloaded %s: %d pages, %d elements\n", p.Name, len(p.Pages), p.ElementCount())
			if ix != nil {
				if err := ix.Upsert(ctx, abs, p); err != nil {
					a.log.WarnContext(applog.ContextWithProject(ctx, p.ID), "catalogue update failed", slog.Any("err", err))
				}
			}
		}
	}
}

func runCatalogList(cmd *cobra.Command, a *app) error {
	ix, err := a.catalog()
	if err != nil {
		return err
	}
	defer ix.Close()
	entries, err := ix.List(cmd.Context())
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d pages\t%s\t%s\n", e.ID, e.Name, e.Tier, e.Pages,
			e.UpdatedAt.Local().Format(time.DateTime), e.Root)
	}
	return tw.Flush()
}

func runCatalogRebuild(cmd *cobra.Command, a *app, dirs []string) error {
	ix, err := a.catalog()
	if err != nil {
		return err
	}
	defer ix.Close()
	roots := make([]string, 0, len(dirs))
	for _, d := range dirs {
		abs, err := filepath.Abs(d)
		if err != nil {
			return err
		}
		roots = append(roots, abs)
	}
	n, err := ix.Rebuild(cmd.Context(), roots)
	fmt.Fprintf(a.out, "Catalogued %d of %d projects\n", n, len(roots))
	return err
}

func runCatalogCheck(cmd *cobra.Command, a *app) error {
	ix, err := a.catalog()
	if err != nil {
		return err
	}
	defer ix.Close()
	if err := ix.Check(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "OK")
	return nil
}

func runLogin(cmd *cobra.Command, a *app, token string) error {
	if err := config.SetToken(strings.TrimSpace(token)); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	fmt.Fprintln(a.out, "Token stored in the OS keyring")
	return nil
}

func runLogout(cmd *cobra.Command, a *app) error {
	if err := config.ClearToken(); err != nil {
		return fmt.Errorf("remove token: %w", err)
	}
	fmt.Fprintln(a.out, "Token removed")
	return nil
}

// projectSaver is what push needs from either remote store.
type projectSaver interface {
	PutProject(ctx context.Context, p domain.Project, base int64) (int64, error)
}

// storeSaver adapts the Postgres store to projectSaver.
type storeSaver struct{ *backend.Store }

func (s storeSaver) PutProject(ctx context.Context, p domain.Project, base int64) (int64, error) {
	return s.Put(ctx, p, base)
}

func runPush(cmd *cobra.Command, a *app, dir, url, dsn string, base int64) error {
	ph, err := storage.Open(dir)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if dsn == "" {
		dsn = a.cfg.Backend.DSN
	}
	if url == "" {
		url = a.cfg.Backend.BaseURL
	}
	var dst projectSaver
	switch {
	case dsn != "":
		st, err := backend.Open(ctx, dsn)
		if err != nil {
			return err
		}
		defer st.Close()
		dst = storeSaver{st}
	case url != "":
		if a.token == "" {
			return errors.New("no backend token; run photobook login first")
		}
		dst = backend.NewClient(url, a.token).WithTimeout(a.cfg.Backend.Timeout())
	default:
		return errors.New("no backend configured; pass --url or --dsn")
	}
	v, err := dst.PutProject(ctx, ph.Project, base)
	if errors.Is(err, backend.ErrVersionConflict) {
		return fmt.Errorf("the remote copy changed after version %d; push with --base 0 to overwrite: %w", base, err)
	}
	if err != nil {
		return err
	}
	telemetry.Track(telemetry.EventPushed, map[string]any{"pages": len(ph.Project.Pages), "version": v})
	fmt.Fprintf(a.out, "Pushed %s as version %d\n", ph.Project.ID, v)
	return nil
}

func runServe(cmd *cobra.Command, a *app, addr, dsn, secret string) error {
	sc := backend.ServerConfigFromEnv()
	if a.cfg.Backend.DSN != "" {
		sc.DBURL = a.cfg.Backend.DSN
	}
	if a.cfg.Backend.Addr != "" {
		sc.Addr = a.cfg.Backend.Addr
	}
	if dsn != "" {
		sc.DBURL = dsn
	}
	if addr != "" {
		sc.Addr = addr
	}
	if secret != "" {
		sc.Secret = secret
	}
	return backend.Serve(cmd.Context(), sc)
}
