/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package layout

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"photobook/internal/domain"
)

func TestBuiltinRegistry(t *testing.T) {
	r, err := Builtin()
	if err != nil {
		t.Fatalf("builtin: %v", err)
	}
	grid, ok := r.Get("grid-4")
	if !ok || len(grid.Slots) != 4 {
		t.Fatalf("grid-4 missing or malformed: %+v", grid)
	}
	all := r.List()
	for i := 1; i < len(all); i++ {
		if all[i-1].Name >= all[i].Name {
			t.Fatalf("List not sorted: %q before %q", all[i-1].Name, all[i].Name)
		}
	}
	for _, tmpl := range r.ForPageType(domain.PageSingle) {
		if tmpl.Name == "grid-6" || tmpl.Name == "hero-plus-two" {
			t.Fatalf("spread-only template %q offered for single pages", tmpl.Name)
		}
	}
}

func TestLoadDirOverridesAndRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	data, err := MarshalTemplates(Template{Name: "grid-4", Slots: []Slot{{Width: 1, Height: 1}}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "custom.yaml"), data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	r, _ := Builtin()
	n, err := r.LoadDir(dir)
	if err != nil || n != 1 {
		t.Fatalf("LoadDir n=%d err=%v", n, err)
	}
	if g, _ := r.Get("grid-4"); len(g.Slots) != 1 {
		t.Fatalf("user template should override builtin")
	}

	if err := os.WriteFile(filepath.Join(dir, "broken.yml"), []byte("templates:\n  - name: broken\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewRegistry().LoadDir(dir); err == nil {
		t.Fatalf("expected error for template without slots")
	}
	if n, err := NewRegistry().LoadDir(filepath.Join(dir, "missing")); err != nil || n != 0 {
		t.Fatalf("missing dir should be empty, got n=%d err=%v", n, err)
	}
}

func TestExportInstallPackRoundTrip(t *testing.T) {
	src := t.TempDir()
	data, _ := MarshalTemplates(Template{Name: "mine", Slots: []Slot{{X: 0.1, Y: 0.1, Width: 0.8, Height: 0.8}}})
	if err := os.WriteFile(filepath.Join(src, "mine.yaml"), data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	zipPath := filepath.Join(t.TempDir(), "out", "pack.zip")
	n, err := ExportPack(src, zipPath)
	if err != nil || n != 1 {
		t.Fatalf("export n=%d err=%v", n, err)
	}

	dst := t.TempDir()
	installed, err := InstallPack(dst, zipPath)
	if err != nil || installed != 1 {
		t.Fatalf("install n=%d err=%v", installed, err)
	}
	r := NewRegistry()
	if _, err := r.LoadDir(dst); err != nil {
		t.Fatalf("load installed: %v", err)
	}
	if _, ok := r.Get("mine"); !ok {
		t.Fatalf("installed template not found")
	}
	// second install skips the existing file
	if again, err := InstallPack(dst, zipPath); err != nil || again != 0 {
		t.Fatalf("reinstall n=%d err=%v", again, err)
	}
}

func TestExportPackEmptyDir(t *testing.T) {
	if _, err := ExportPack("", ""); err == nil {
		t.Fatalf("expected error on empty args")
	}
	zipPath := filepath.Join(t.TempDir(), "empty.zip")
	if _, err := ExportPack(filepath.Join(t.TempDir(), "none"), zipPath); err != nil {
		t.Fatalf("export: %v", err)
	}
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer r.Close()
	if len(r.File) != 1 || r.File[0].Name != PackManifest {
		t.Fatalf("expected manifest only, got %d entries", len(r.File))
	}
}

func TestInstallPackZipSlip(t *testing.T) {
	dir := t.TempDir()
	zpath := filepath.Join(dir, "pack.zip")
	f, err := os.Create(zpath)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	zw := zip.NewWriter(f)
	good, _ := MarshalTemplates(Template{Name: "ok", Slots: []Slot{{Width: 1, Height: 1}}})
	w, _ := zw.Create("../evil.yaml")
	_, _ = w.Write(good)
	w, _ = zw.Create("readme.txt")
	_, _ = w.Write([]byte("not a template"))
	w, _ = zw.Create("nested/ok.yaml")
	_, _ = w.Write(good)
	_ = zw.Close()
	_ = f.Close()

	target := filepath.Join(dir, "templates")
	n, err := InstallPack(target, zpath)
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected only nested/ok.yaml installed, got %d", n)
	}
	if _, err := os.Stat(filepath.Join(dir, "evil.yaml")); err == nil {
		t.Fatalf("evil.yaml escaped the template dir")
	}
	if _, err := os.Stat(filepath.Join(target, "nested", "ok.yaml")); err != nil {
		t.Fatalf("nested template missing: %v", err)
	}
}
