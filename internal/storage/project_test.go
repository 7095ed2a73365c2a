/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"photobook/internal/domain"
	applog "photobook/internal/log"
)

func mixedProject() domain.Project {
	return domain.Project{
		ID: "book-1", OwnerID: "u1", Name: "Summer", Tier: domain.TierPlus, ThemeRef: "linen",
		Pages: []domain.Page{
			{ID: "p1", Type: domain.PageSpread, Width: 1200, Height: 600, TemplateRef: "two-up", Elements: []domain.Element{
				{ID: "img", Kind: domain.KindImage, Geometry: domain.Geometry{X: 10, Y: 20, Width: 300, Height: 200, Rotation: 12.5},
					Content: domain.Content{Src: "photos/beach.jpg", NaturalWidth: 4000, NaturalHeight: 3000, Crop: &domain.Crop{X: 0, Y: 250, Width: 4000, Height: 2500}}},
				{ID: "txt", Kind: domain.KindText, Geometry: domain.Geometry{X: 400, Y: 20, Width: 200, Height: 40, ZIndex: 1}, Content: domain.Content{Text: "Day one"}, Locked: true},
			}},
			{ID: "p2", Type: domain.PageSingle, Width: 600, Height: 600, Elements: []domain.Element{
				{ID: "sh", Kind: domain.KindShape, Geometry: domain.Geometry{X: 0, Y: 0, Width: 600, Height: 10, ZIndex: -1}, Content: domain.Content{ShapeKind: "rect"}},
			}},
		},
	}
}

func TestMarshalRoundTripMixedPages(t *testing.T) {
	p := mixedProject()
	data, err := Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(got, p) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, p)
	}
	again, _ := Marshal(got)
	if string(again) != string(data) {
		t.Fatalf("encoding is not stable")
	}
}

func TestMarshalFillsEmptyLists(t *testing.T) {
	data, err := Marshal(domain.Project{ID: "x", Name: "Empty", Pages: []domain.Page{{ID: "p", Type: domain.PageSingle, Width: 1, Height: 1}}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, `"elements": []`) || !strings.Contains(s, `"tier": ""`) {
		t.Fatalf("unexpected manifest:\n%s", s)
	}
	if _, err := Unmarshal(data); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
}

func TestMarshalKeepsTierAsGiven(t *testing.T) {
	for _, tier := range []domain.Tier{"", domain.TierFree, "business"} {
		p := mixedProject()
		p.Tier = tier
		data, err := Marshal(p)
		if err != nil {
			t.Fatalf("Marshal tier %q: %v", tier, err)
		}
		got, err := Unmarshal(data)
		if err != nil {
			t.Fatalf("Unmarshal tier %q: %v", tier, err)
		}
		if !reflect.DeepEqual(got, p) {
			t.Fatalf("tier %q: round trip mismatch, got tier %q", tier, got.Tier)
		}
	}

	root := t.TempDir()
	p := mixedProject()
	p.Tier = "business"
	if _, err := InitProject(root, p); err != nil {
		t.Fatalf("InitProject: %v", err)
	}
	ph, err := Open(root)
	if err != nil || ph.Recovered || ph.Project.Tier != "business" {
		t.Fatalf("Open custom tier: %+v, %v", ph, err)
	}
}

func TestMarshalRejectsSchemaViolations(t *testing.T) {
	p := mixedProject()
	p.Pages[1].Type = "triptych"
	var se *SchemaError
	if _, err := Marshal(p); !errors.As(err, &se) {
		t.Fatalf("want SchemaError, got %v", err)
	}

	root := t.TempDir()
	ph, err := InitProject(root, mixedProject())
	if err != nil {
		t.Fatalf("InitProject: %v", err)
	}
	ph.Project = p
	if err := Save(ph); err == nil {
		t.Fatalf("Save should refuse an invalid manifest")
	}
	back, err := Open(root)
	if err != nil || back.Recovered || back.Project.Pages[1].Type != domain.PageSingle {
		t.Fatalf("manifest on disk should be untouched: %+v, %v", back, err)
	}
}

func TestUnmarshalRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"not json":       `{`,
		"missing pages":  `{"id":"a","name":"n","tier":"free"}`,
		"bad kind":       `{"id":"a","name":"n","tier":"free","pages":[{"id":"p","type":"single","width":1,"height":1,"elements":[{"id":"e","kind":"video","geometry":{"x":0,"y":0,"width":1,"height":1,"rotation":0,"zIndex":0},"content":{}}]}]}`,
		"zero width":     `{"id":"a","name":"n","tier":"free","pages":[{"id":"p","type":"single","width":1,"height":1,"elements":[{"id":"e","kind":"text","geometry":{"x":0,"y":0,"width":0,"height":1,"rotation":0,"zIndex":0},"content":{}}]}]}`,
		"duplicate id":   `{"id":"a","name":"n","tier":"free","pages":[{"id":"p","type":"single","width":1,"height":1,"elements":[{"id":"e","kind":"text","geometry":{"x":0,"y":0,"width":1,"height":1,"rotation":0,"zIndex":0},"content":{}},{"id":"e","kind":"text","geometry":{"x":0,"y":0,"width":1,"height":1,"rotation":0,"zIndex":0},"content":{}}]}]}`,
		"image no src":   `{"id":"a","name":"n","tier":"free","pages":[{"id":"p","type":"single","width":1,"height":1,"elements":[{"id":"e","kind":"image","geometry":{"x":0,"y":0,"width":1,"height":1,"rotation":0,"zIndex":0},"content":{}}]}]}`,
		"duplicate page": `{"id":"a","name":"n","tier":"free","pages":[{"id":"p","type":"single","width":1,"height":1,"elements":[]},{"id":"p","type":"single","width":1,"height":1,"elements":[]}]}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Unmarshal([]byte(in)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
	var se *SchemaError
	if err := Validate([]byte(cases["bad kind"])); !errors.As(err, &se) || len(se.Problems) == 0 {
		t.Fatalf("want SchemaError, got %v", err)
	}
}

func TestInitProjectCreatesStructureAndManifest(t *testing.T) {
	root := t.TempDir()
	ph, err := InitProject(root, mixedProject())
	if err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	for _, d := range []string{"photos", "templates", "exports", BackupsDirName} {
		p := filepath.Join(root, d)
		if fi, err := os.Stat(p); err != nil || !fi.IsDir() {
			t.Fatalf("expected directory %s to exist", p)
		}
	}
	opened, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if opened.Recovered {
		t.Fatalf("fresh project should not be recovered")
	}
	if !reflect.DeepEqual(opened.Project, ph.Project) {
		t.Fatalf("opened project differs")
	}
	if _, err := InitProject("  ", domain.Project{}); err == nil {
		t.Fatalf("blank root must fail")
	}
}

func TestSaveBacksUpAndOpenRecovers(t *testing.T) {
	root := t.TempDir()
	ph, err := InitProject(root, mixedProject())
	if err != nil {
		t.Fatalf("InitProject: %v", err)
	}
	ph.Project.Name = "Renamed"
	if err := Save(ph); err != nil {
		t.Fatalf("Save: %v", err)
	}
	baks, err := Backups(root)
	if err != nil || len(baks) != 1 {
		t.Fatalf("expected one backup, got %v (%v)", baks, err)
	}

	if err := os.WriteFile(ph.ManifestPath, []byte(`{"id": "broken"`), 0o644); err != nil {
		t.Fatal(err)
	}
	rec, err := Open(root)
	if err != nil {
		t.Fatalf("Open corrupt: %v", err)
	}
	if !rec.Recovered || rec.Project.Name != "Summer" {
		t.Fatalf("expected recovery of the previous manifest, got %+v", rec)
	}

	// a schema-invalid manifest is treated like a corrupt one
	if err := os.WriteFile(ph.ManifestPath, []byte(`{"id":"x","name":"n","tier":7,"pages":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if rec, err := Open(root); err != nil || !rec.Recovered {
		t.Fatalf("expected recovery, got %v", err)
	}
}

func TestOpenWithoutBackupsFails(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(ManifestPath(root), []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(root); err == nil {
		t.Fatalf("expected error")
	}
}

func TestBackupsArePruned(t *testing.T) {
	root := t.TempDir()
	bdir := filepath.Join(root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < MaxBackups+5; i++ {
		name := filepath.Join(bdir, ManifestFileName+".20240101-0000"+string(rune('a'+i))+".bak")
		if err := os.WriteFile(name, []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	ph, err := InitProject(root, mixedProject())
	if err != nil {
		t.Fatal(err)
	}
	if err := Save(ph); err != nil {
		t.Fatal(err)
	}
	baks, _ := Backups(root)
	if len(baks) != MaxBackups {
		t.Fatalf("want %d backups, got %d", MaxBackups, len(baks))
	}
}

func TestSaveAsMovesHandle(t *testing.T) {
	ph, err := InitProject(t.TempDir(), mixedProject())
	if err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(t.TempDir(), "copy")
	if err := SaveAs(ph, dst); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	if ph.ManifestPath != ManifestPath(dst) {
		t.Fatalf("handle not updated: %s", ph.ManifestPath)
	}
	if _, err := Open(dst); err != nil {
		t.Fatalf("Open copy: %v", err)
	}
}

func TestDirSaverUpdatesIndex(t *testing.T) {
	root := t.TempDir()
	ix, err := OpenIndex(IndexPath(t.TempDir()))
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	defer ix.Close()
	s := DirSaver{Root: root, Index: ix}
	if err := s.Save(context.Background(), mixedProject()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := Open(root); err != nil {
		t.Fatalf("Open: %v", err)
	}
	e, err := ix.Get(context.Background(), "book-1")
	if err != nil || e.Pages != 2 || e.Elements != 3 {
		t.Fatalf("index entry %+v, %v", e, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Save(ctx, mixedProject()); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled save: %v", err)
	}
}

func TestDirSaverLogsProjectFromContext(t *testing.T) {
	var buf bytes.Buffer
	applog.Init(applog.Options{Level: "debug", Format: "json", Writer: &buf})
	t.Cleanup(func() { applog.Init(applog.Options{Writer: &bytes.Buffer{}}) })

	ctx := applog.ContextWithSession(applog.ContextWithProject(context.Background(), "book-1"), "cli-7")
	if err := (DirSaver{Root: t.TempDir()}).Save(ctx, mixedProject()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	out := buf.String()
	for _, want := range []string{`"msg":"manifest saved"`, `"project":"book-1"`, `"session":"cli-7"`, `"component":"storage"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log %q missing %s", out, want)
		}
	}
}

func TestAutosaveCrashIsNotABackup(t *testing.T) {
	root := t.TempDir()
	if _, err := InitProject(root, mixedProject()); err != nil {
		t.Fatalf("init: %v", err)
	}
	path, err := AutosaveCrash(root, mixedProject())
	if err != nil {
		t.Fatalf("autosave: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(path), CrashAutosavePrefix) {
		t.Fatalf("unexpected autosave name %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read autosave: %v", err)
	}
	if p, err := Unmarshal(data); err != nil || p.ID != "book-1" {
		t.Fatalf("autosave does not load: %v", err)
	}
	backups, err := Backups(root)
	if err != nil {
		t.Fatalf("backups: %v", err)
	}
	for _, b := range backups {
		if b == path {
			t.Fatalf("autosave listed as backup")
		}
	}
	if _, err := AutosaveCrash("", mixedProject()); err == nil {
		t.Fatalf("expected error for empty root")
	}
}
