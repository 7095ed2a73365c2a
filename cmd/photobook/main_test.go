/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"photobook/internal/backend"
	"photobook/internal/domain"
	"photobook/internal/storage"
)

// isolate points config, catalogue and keyring at a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("PB_CONFIG", filepath.Join(dir, "config.yaml"))
	t.Setenv("PB_CATALOG_DIR", filepath.Join(dir, "catalog"))
	t.Setenv("PB_OWNER", "u1")
	t.Setenv("PB_TIER", "")
	t.Setenv("PB_TIER_FILE", "")
	t.Setenv("PB_BACKEND_URL", "")
	t.Setenv("PB_PG_DSN", "")
	t.Setenv("PB_TELEMETRY_OPT_IN", "")
	keyring.MockInit()
	return dir
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := buildRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, errOut, err := run(t, args...)
	require.NoError(t, err, "photobook %s\nstderr: %s", strings.Join(args, " "), errOut)
	return out
}

func loadProject(t *testing.T, dir string) domain.Project {
	t.Helper()
	ph, err := storage.Open(dir)
	require.NoError(t, err)
	return ph.Project
}

func writePhoto(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestRootRegistersCommands(t *testing.T) {
	root := buildRootCmd()
	want := []string{
		"init", "info", "add-page", "add-element", "apply-template", "templates", "export-pdf", "export",
		"validate", "watch", "catalog", "login", "logout", "push", "serve", "version",
	}
	have := map[string]bool{}
	for _, c := range root.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		assert.True(t, have[name], "missing subcommand %s", name)
	}
}

func TestBuildAndExportProject(t *testing.T) {
	tmp := isolate(t)
	proj := filepath.Join(tmp, "summer")

	mustRun(t, "init", proj, "--name", "Summer", "--id", "book-1")
	_, _, err := run(t, "init", proj)
	require.Error(t, err, "init must refuse an existing project")

	mustRun(t, "add-page", proj, "--type", "spread")
	writePhoto(t, filepath.Join(proj, storage.PhotosDirName, "red.png"), 200, 100)
	mustRun(t, "add-element", proj, "--kind", "image", "--src", "photos/red.png")
	mustRun(t, "add-element", proj, "--kind", "text", "--text", "Beach day", "--x", "40", "--y", "500", "--width", "300", "--height", "40")

	p := loadProject(t, proj)
	require.Len(t, p.Pages, 1)
	pg := p.Pages[0]
	assert.Equal(t, domain.PageSpread, pg.Type)
	assert.Equal(t, 1200.0, pg.Width)
	require.Len(t, pg.Elements, 2)

	img := pg.Elements[0]
	assert.Equal(t, domain.KindImage, img.Kind)
	assert.Equal(t, 200.0, img.Content.NaturalWidth)
	assert.InDelta(t, 2.0, img.Geometry.Width/img.Geometry.Height, 0.01, "aspect ratio kept")
	assert.GreaterOrEqual(t, img.Geometry.X, 20.0)
	assert.GreaterOrEqual(t, img.Geometry.Y, 20.0)

	txt := pg.Elements[1]
	assert.Equal(t, domain.Geometry{X: 40, Y: 500, Width: 300, Height: 40, ZIndex: txt.Geometry.ZIndex}, txt.Geometry)

	out := mustRun(t, "apply-template", proj, "grid-4")
	assert.Contains(t, out, "2 placed")
	p = loadProject(t, proj)
	assert.Equal(t, "grid-4", p.Pages[0].TemplateRef)

	out = mustRun(t, "info", proj)
	assert.Contains(t, out, "Summer (book-1)")
	assert.Contains(t, out, "grid-4")

	out = mustRun(t, "info", proj, "--json")
	var decoded domain.Project
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "book-1", decoded.ID)

	mustRun(t, "export-pdf", proj, "--guides")
	assert.FileExists(t, filepath.Join(proj, storage.ExportsDirName, "proof.pdf"))

	out = mustRun(t, "validate", proj)
	assert.Contains(t, out, "OK")

	out = mustRun(t, "catalog", "list")
	assert.Contains(t, out, "book-1")

	out = mustRun(t, "templates", "usage", "grid-4")
	assert.Contains(t, out, "book-1")
}

func TestTemplateMismatchLeavesPage(t *testing.T) {
	tmp := isolate(t)
	proj := filepath.Join(tmp, "book")
	mustRun(t, "init", proj)
	mustRun(t, "add-page", proj, "--type", "spread")
	mustRun(t, "add-element", proj, "--kind", "shape", "--shape", "ellipse")
	before := loadProject(t, proj)

	_, errOut, err := run(t, "apply-template", proj, "polaroid")
	require.NoError(t, err)
	assert.Contains(t, errOut, "warning")
	assert.Equal(t, before, loadProject(t, proj))

	_, _, err = run(t, "apply-template", proj, "no-such-template")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "available")
}

func TestTierLimitDeniesPage(t *testing.T) {
	tmp := isolate(t)
	tiers := filepath.Join(tmp, "tiers.yaml")
	require.NoError(t, os.WriteFile(tiers, []byte("tiers:\n  free: {max_pages: 1, max_elements_per_page: 5, max_photobooks: 3}\n"), 0o644))
	t.Setenv("PB_TIER_FILE", tiers)

	proj := filepath.Join(tmp, "book")
	mustRun(t, "init", proj, "--tier", "free")
	mustRun(t, "add-page", proj)
	_, _, err := run(t, "add-page", proj)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not allow")
	assert.Len(t, loadProject(t, proj).Pages, 1)
}

func TestValidateReportsBrokenManifest(t *testing.T) {
	tmp := isolate(t)
	proj := filepath.Join(tmp, "book")
	mustRun(t, "init", proj)
	require.NoError(t, os.WriteFile(storage.ManifestPath(proj), []byte(`{"id": 5}`), 0o644))

	out, _, err := run(t, "validate", proj)
	require.Error(t, err)
	assert.Contains(t, out, "error:")
}

type fakeStore struct {
	mu       sync.Mutex
	projects map[string]domain.Project
	versions map[string]int64
}

func (f *fakeStore) Put(_ context.Context, p domain.Project, base int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if base != 0 && f.versions[p.ID] != base {
		return 0, backend.ErrVersionConflict
	}
	f.versions[p.ID]++
	f.projects[p.ID] = p
	return f.versions[p.ID], nil
}

func (f *fakeStore) Get(_ context.Context, id string) (domain.Project, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok {
		return domain.Project{}, 0, backend.ErrNotFound
	}
	return p, f.versions[id], nil
}

func (f *fakeStore) List(context.Context, string) ([]backend.Summary, error) { return nil, nil }
func (f *fakeStore) Delete(context.Context, string) error                   { return nil }
func (f *fakeStore) Ping(context.Context) error                             { return nil }

func TestPushOverHTTP(t *testing.T) {
	tmp := isolate(t)
	store := &fakeStore{projects: map[string]domain.Project{}, versions: map[string]int64{}}
	srv := httptest.NewServer(backend.NewHandler(store, "test-secret"))
	defer srv.Close()

	proj := filepath.Join(tmp, "book")
	mustRun(t, "init", proj, "--id", "book-9")
	mustRun(t, "add-page", proj)

	_, _, err := run(t, "push", proj, "--url", srv.URL)
	require.Error(t, err, "push without a token")

	resp, err := http.Post(srv.URL+"/api/auth/token", "application/json", strings.NewReader(`{"subject":"u1"}`))
	require.NoError(t, err)
	var tok struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tok))
	resp.Body.Close()

	mustRun(t, "login", tok.Token)
	out := mustRun(t, "push", proj, "--url", srv.URL)
	assert.Contains(t, out, "version 1")
	p, v, err := store.Get(context.Background(), "book-9")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	assert.Len(t, p.Pages, 1)

	_, _, err = run(t, "push", proj, "--url", srv.URL, "--base", "5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--base 0")

	mustRun(t, "logout")
	_, _, err = run(t, "push", proj, "--url", srv.URL)
	require.Error(t, err)
}
