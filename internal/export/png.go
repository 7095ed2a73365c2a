/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"

	"photobook/internal/domain"
	"photobook/internal/editor"
	"photobook/internal/storage"
	"photobook/internal/textlayout"
)

var textFonts = textlayout.OTProvider{Lib: textlayout.Default()}

// PNGOptions controls page previews.
// - MaxEdge: pixel length of the longer page edge (default 1024)
// - IncludeGuides: draw the page border and the spread gutter
// - FontSize: text size in page units (default 12)
// - Pages: zero-based; empty means all pages
type PNGOptions struct {
	MaxEdge       int
	IncludeGuides bool
	FontSize      float64
	ImageMaxEdge  int
	Pages         []int
}

// DefaultPreviewEdge is the default preview size.
const DefaultPreviewEdge = 1024

var (
	white      = color.RGBA{255, 255, 255, 255}
	black      = color.RGBA{0, 0, 0, 255}
	guideRGBA  = color.RGBA{255, 0, 0, 255}
	strokeRGBA = color.RGBA{40, 40, 40, 255}
	fillRGBA   = color.RGBA{220, 220, 220, 255}
	holderRGBA = color.RGBA{160, 160, 160, 255}
)

// PreviewPNGs writes one PNG per selected page as page-<n>.png into outDir. Relative
// directories land in the project's exports folder.
func PreviewPNGs(ph *storage.ProjectHandle, outDir string, opt PNGOptions) (Report, error) {
	var rep Report
	if ph == nil {
		return rep, fmt.Errorf("project handle is nil")
	}
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(ph.Root, storage.ExportsDirName, outDir)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return rep, fmt.Errorf("ensure out dir: %w", err)
	}
	pics := newPictures(ph.Root, opt.ImageMaxEdge)
	for _, idx := range pageIndexes(len(ph.Project.Pages), opt.Pages) {
		name := filepath.Join(outDir, fmt.Sprintf("page-%d.png", idx+1))
		f, err := os.Create(name)
		if err != nil {
			return rep, fmt.Errorf("create png: %w", err)
		}
		pr, err := writePagePNG(f, ph.Project.Pages[idx], pics, opt)
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close png: %w", cerr)
		}
		if err != nil {
			return rep, err
		}
		pr.Files = []string{name}
		rep.merge(pr)
	}
	return rep, nil
}

// PagePNG renders a single page preview to w. Image sources resolve against root.
func PagePNG(w io.Writer, pg domain.Page, root string, opt PNGOptions) (Report, error) {
	return writePagePNG(w, pg, newPictures(root, opt.ImageMaxEdge), opt)
}

func writePagePNG(w io.Writer, pg domain.Page, pics *pictures, opt PNGOptions) (Report, error) {
	img, rep := renderPage(pg, pics, opt)
	if err := png.Encode(w, img); err != nil {
		return rep, fmt.Errorf("encode png: %w", err)
	}
	return rep, nil
}

func renderPage(pg domain.Page, pics *pictures, opt PNGOptions) (*image.RGBA, Report) {
	rep := Report{Pages: 1}
	edge := opt.MaxEdge
	if edge <= 0 {
		edge = DefaultPreviewEdge
	}
	if opt.FontSize <= 0 {
		opt.FontSize = 12
	}
	s := float64(edge) / math.Max(pg.Width, pg.Height)
	pw := max(1, int(math.Round(pg.Width*s)))
	ph := max(1, int(math.Round(pg.Height*s)))
	dst := image.NewRGBA(image.Rect(0, 0, pw, ph))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(white), image.Point{}, draw.Src)

	for _, it := range editor.RenderItems(pg) {
		g := it.Geometry
		tw := max(1, int(math.Round(g.Width*s)))
		th := max(1, int(math.Round(g.Height*s)))
		switch it.Kind {
		case domain.KindImage:
			pic, err := pics.get(it.Content.Src)
			if err != nil {
				rep.Missing = append(rep.Missing, it.ID)
				place(dst, placeholderTile(tw, th), image.Rect(0, 0, tw, th), g, s)
				continue
			}
			rep.Images++
			crop := cropOf(it, pic.natural)
			b := pic.img.Bounds()
			t := float64(b.Dx()) / pic.natural.W
			sr := image.Rect(
				b.Min.X+int(math.Round(crop.X*t)), b.Min.Y+int(math.Round(crop.Y*t)),
				b.Min.X+int(math.Round((crop.X+crop.Width)*t)), b.Min.Y+int(math.Round((crop.Y+crop.Height)*t)),
			).Intersect(b)
			if sr.Empty() {
				continue
			}
			place(dst, pic.img, sr, g, s)
		case domain.KindText:
			place(dst, textTile(it.Content.Text, tw, th, opt.FontSize*s), image.Rect(0, 0, tw, th), g, s)
		case domain.KindShape:
			place(dst, shapeTile(it.Content.ShapeKind, tw, th), image.Rect(0, 0, tw, th), g, s)
		}
	}

	if opt.IncludeGuides {
		strokeRect(dst, 0, 0, pw-1, ph-1, guideRGBA)
		if pg.Type == domain.PageSpread {
			gx := pw / 2
			for y := 0; y < ph; y += 6 {
				for k := y; k < min(y+3, ph); k++ {
					dst.SetRGBA(gx, k, guideRGBA)
				}
			}
		}
	}
	return dst, rep
}

// place draws the sr window of src into the element box of g, rotated clockwise about the box
// centre. s is pixels per page unit.
func place(dst draw.Image, src image.Image, sr image.Rectangle, g domain.Geometry, s float64) {
	ex, ey, ew, eh := g.X*s, g.Y*s, g.Width*s, g.Height*s
	mx, my := ex+ew/2, ey+eh/2
	kx := ew / float64(sr.Dx())
	ky := eh / float64(sr.Dy())
	ax := ex - mx - float64(sr.Min.X)*kx
	ay := ey - my - float64(sr.Min.Y)*ky
	sin, cos := math.Sincos(g.Rotation * math.Pi / 180)
	m := f64.Aff3{
		cos * kx, -sin * ky, mx + cos*ax - sin*ay,
		sin * kx, cos * ky, my + sin*ax + cos*ay,
	}
	draw.ApproxBiLinear.Transform(dst, m, src, sr, draw.Over, nil)
}

func placeholderTile(w, h int) *image.RGBA {
	t := image.NewRGBA(image.Rect(0, 0, w, h))
	strokeRect(t, 0, 0, w-1, h-1, holderRGBA)
	for i := 0; i < w; i++ {
		y := i * (h - 1) / max(1, w-1)
		t.SetRGBA(i, y, holderRGBA)
		t.SetRGBA(i, h-1-y, holderRGBA)
	}
	return t
}

func shapeTile(kind string, w, h int) *image.RGBA {
	t := image.NewRGBA(image.Rect(0, 0, w, h))
	switch strings.ToLower(kind) {
	case "ellipse", "circle":
		rx, ry := float64(w)/2, float64(h)/2
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dx := (float64(x) + 0.5 - rx) / rx
				dy := (float64(y) + 0.5 - ry) / ry
				d := dx*dx + dy*dy
				switch {
				case d > 1:
				case d > 0.9:
					t.SetRGBA(x, y, strokeRGBA)
				default:
					t.SetRGBA(x, y, fillRGBA)
				}
			}
		}
	case "line":
		for x := 0; x < w; x++ {
			t.SetRGBA(x, h/2, strokeRGBA)
		}
	default:
		fillRect(t, 0, 0, w-1, h-1, fillRGBA)
		strokeRect(t, 0, 0, w-1, h-1, strokeRGBA)
	}
	return t
}

// textTile lays the text out in the Go font at size px, wrapping at the tile width and clipping at
// its height.
func textTile(text string, w, h int, size float64) *image.RGBA {
	t := image.NewRGBA(image.Rect(0, 0, w, h))
	spec := textlayout.FontSpec{Family: textlayout.DefaultFamily, SizePt: float32(max(size, 1))}
	box := textlayout.NewWordWrap(textFonts).Layout(text, spec, float32(w))
	face, met := textFonts.Resolve(spec)
	defer face.Close()
	d := font.Drawer{Dst: t, Src: image.NewUniform(black), Face: face}
	y := met.Ascent
	for _, line := range box.Lines {
		if y > float32(h) {
			break
		}
		d.Dot = fixed.P(0, int(math.Round(float64(y))))
		d.DrawString(line.Text)
		y += met.LineHeight()
	}
	return t
}

// strokeRect draws a 1px axis-aligned rectangle border inclusive of endpoints.
func strokeRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	for x := x0; x <= x1; x++ {
		img.SetRGBA(x, y0, col)
		img.SetRGBA(x, y1, col)
	}
	for y := y0; y <= y1; y++ {
		img.SetRGBA(x0, y, col)
		img.SetRGBA(x1, y, col)
	}
}

func fillRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			img.SetRGBA(x, y, col)
		}
	}
}
