/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"photobook/internal/domain"
	"photobook/internal/vector"
)

func sample(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 0x80, 0xff})
		}
	}
	return img
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, sample(w, h)); err != nil {
		t.Fatalf("png: %v", err)
	}
	return buf.Bytes()
}

func TestDimensionsFormats(t *testing.T) {
	var bm, tf bytes.Buffer
	if err := bmp.Encode(&bm, sample(30, 20)); err != nil {
		t.Fatalf("bmp: %v", err)
	}
	if err := tiff.Encode(&tf, sample(7, 9), nil); err != nil {
		t.Fatalf("tiff: %v", err)
	}
	cases := []struct {
		name   string
		data   []byte
		w, h   int
		format string
	}{
		{"png", encodePNG(t, 64, 48), 64, 48, "png"},
		{"bmp", bm.Bytes(), 30, 20, "bmp"},
		{"tiff", tf.Bytes(), 7, 9, "tiff"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			info, err := Dimensions(bytes.NewReader(c.data))
			if err != nil {
				t.Fatalf("Dimensions: %v", err)
			}
			if info.Width != c.w || info.Height != c.h || info.Format != c.format {
				t.Fatalf("got %+v", info)
			}
		})
	}
}

func TestDimensionsUnsupported(t *testing.T) {
	_, err := Dimensions(strings.NewReader("definitely not an image"))
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("want ErrUnsupported, got %v", err)
	}
}

func TestThumbnailKeepsAspect(t *testing.T) {
	img, err := Thumbnail(bytes.NewReader(encodePNG(t, 200, 100)), 50)
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 50 || b.Dy() != 25 {
		t.Fatalf("bounds = %v", b)
	}
	small, err := Thumbnail(bytes.NewReader(encodePNG(t, 10, 40)), 50)
	if err != nil {
		t.Fatalf("Thumbnail small: %v", err)
	}
	if b := small.Bounds(); b.Dx() != 10 || b.Dy() != 40 {
		t.Fatalf("small image should not be scaled, got %v", b)
	}
}

func TestPageDims(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "photos"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "photos", "a.png"), encodePNG(t, 40, 30), 0o644); err != nil {
		t.Fatal(err)
	}
	pg := domain.Page{ID: "p", Elements: []domain.Element{
		{ID: "a", Kind: domain.KindImage, Content: domain.Content{Src: "photos/a.png"}},
		{ID: "known", Kind: domain.KindImage, Content: domain.Content{Src: "x.jpg", NaturalWidth: 4000, NaturalHeight: 3000}},
		{ID: "missing", Kind: domain.KindImage, Content: domain.Content{Src: "nope.jpg"}},
		{ID: "t", Kind: domain.KindText, Content: domain.Content{Text: "hi"}},
	}}
	dims, err := PageDims(pg, root)
	if err == nil || !strings.Contains(err.Error(), "element missing") {
		t.Fatalf("want error naming the missing element, got %v", err)
	}
	if dims["a"] != (vector.Size{W: 40, H: 30}) {
		t.Fatalf("a = %+v", dims["a"])
	}
	if dims["known"] != (vector.Size{W: 4000, H: 3000}) {
		t.Fatalf("known = %+v", dims["known"])
	}
	if _, ok := dims["t"]; ok || len(dims) != 2 {
		t.Fatalf("unexpected dims %+v", dims)
	}
}
