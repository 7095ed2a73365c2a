/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"photobook/internal/domain"
	"photobook/internal/storage"
)

func sampleProject() domain.Project {
	return domain.Project{
		ID: "book-1", Name: "Holiday", Tier: domain.TierFree,
		Pages: []domain.Page{
			{ID: "p1", Type: domain.PageSpread, Width: 1000, Height: 500, Elements: []domain.Element{
				{ID: "photo", Kind: domain.KindImage, Geometry: domain.Geometry{X: 100, Y: 100, Width: 300, Height: 300},
					Content: domain.Content{Src: "photos/red.png"}},
				{ID: "caption", Kind: domain.KindText, Geometry: domain.Geometry{X: 100, Y: 420, Width: 300, Height: 40, ZIndex: 1},
					Content: domain.Content{Text: "Summer at the lake"}},
				{ID: "badge", Kind: domain.KindShape, Geometry: domain.Geometry{X: 700, Y: 50, Width: 100, Height: 100, Rotation: 30, ZIndex: 2},
					Content: domain.Content{ShapeKind: "ellipse"}},
				{ID: "lost", Kind: domain.KindImage, Geometry: domain.Geometry{X: 600, Y: 300, Width: 100, Height: 100, ZIndex: 3},
					Content: domain.Content{Src: "photos/missing.jpg"}},
			}},
			{ID: "p2", Type: domain.PageSingle, Width: 500, Height: 500, Elements: []domain.Element{}},
		},
	}
}

// setupProject initialises a project on disk with a 200x100 solid red photo.
func setupProject(t *testing.T) *storage.ProjectHandle {
	t.Helper()
	root := t.TempDir()
	ph, err := storage.InitProject(root, sampleProject())
	if err != nil {
		t.Fatalf("init project: %v", err)
	}
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			img.SetRGBA(x, y, color.RGBA{220, 10, 10, 255})
		}
	}
	f, err := os.Create(filepath.Join(root, storage.PhotosDirName, "red.png"))
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return ph
}

func assertFile(t *testing.T, path string) {
	t.Helper()
	st, err := os.Stat(path)
	if err != nil {
		t.Fatalf("missing %s: %v", path, err)
	}
	if st.Size() <= 0 {
		t.Fatalf("empty file: %s", path)
	}
}
