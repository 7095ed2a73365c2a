/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"photobook/internal/domain"
	"photobook/internal/editor"
	"photobook/internal/storage"
)

// PDFOptions controls the proof PDF. Page units map 1:1 to points.
//
// Boxes:
// - MediaBox = page + 2*bleed
// - the trim box and the spread gutter are drawn as hairlines when IncludeGuides is set
type PDFOptions struct {
	IncludeGuides bool
	Bleed         float64
	FontSize      float64 // default 12
	ImageMaxEdge  int     // default DefaultImageEdge
	Pages         []int   // zero-based; empty means all pages
	Title         string
}

type rgb struct{ R, G, B int }

var (
	guideColor       = rgb{255, 0, 0}
	shapeStroke      = rgb{40, 40, 40}
	shapeFill        = rgb{220, 220, 220}
	placeholderColor = rgb{160, 160, 160}
)

// ProofPDF writes a proof of the project at outPath. Relative paths land in the project's
// exports folder.
func ProofPDF(ph *storage.ProjectHandle, outPath string, opt PDFOptions) (Report, error) {
	if ph == nil {
		return Report{}, fmt.Errorf("project handle is nil")
	}
	if !filepath.IsAbs(outPath) {
		outPath = filepath.Join(ph.Root, storage.ExportsDirName, outPath)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return Report{}, fmt.Errorf("ensure out dir: %w", err)
	}
	var buf bytes.Buffer
	rep, err := WriteProofPDF(&buf, ph.Project, ph.Root, opt)
	if err != nil {
		return rep, err
	}
	if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
		return rep, fmt.Errorf("write pdf: %w", err)
	}
	rep.Files = append(rep.Files, outPath)
	return rep, nil
}

// WriteProofPDF renders the selected pages of p, one PDF page per project page. Image sources
// resolve against root.
func WriteProofPDF(w io.Writer, p domain.Project, root string, opt PDFOptions) (Report, error) {
	var rep Report
	pages := pageIndexes(len(p.Pages), opt.Pages)
	if len(pages) == 0 {
		return rep, fmt.Errorf("project has no pages to export")
	}
	if opt.FontSize <= 0 {
		opt.FontSize = 12
	}
	bleed := opt.Bleed
	if bleed < 0 {
		bleed = 0
	}
	first := p.Pages[pages[0]]
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: first.Width + 2*bleed, Ht: first.Height + 2*bleed},
	})
	title := opt.Title
	if title == "" {
		title = p.Name + " proof"
	}
	pdf.SetTitle(title, true)
	pdf.SetCreator("photobook", false)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetFont("Helvetica", "", opt.FontSize)

	pics := newPictures(root, opt.ImageMaxEdge)
	registered := map[string]bool{}
	for _, idx := range pages {
		pg := p.Pages[idx]
		pdf.AddPageFormat("", gofpdf.SizeType{Wd: pg.Width + 2*bleed, Ht: pg.Height + 2*bleed})
		rep.Pages++

		for _, it := range editor.RenderItems(pg) {
			g := it.Geometry
			x, y := g.X+bleed, g.Y+bleed
			pdf.TransformBegin()
			if g.Rotation != 0 {
				// gofpdf rotates counter-clockwise; element rotation is clockwise.
				pdf.TransformRotate(-g.Rotation, x+g.Width/2, y+g.Height/2)
			}
			switch it.Kind {
			case domain.KindImage:
				if pdfImage(pdf, pics, registered, it, x, y) {
					rep.Images++
				} else {
					rep.Missing = append(rep.Missing, it.ID)
					pdfPlaceholder(pdf, x, y, g.Width, g.Height)
				}
			case domain.KindText:
				pdf.SetTextColor(0, 0, 0)
				pdf.SetFont("Helvetica", "", opt.FontSize)
				pdf.ClipRect(x, y, g.Width, g.Height, false)
				pdf.SetXY(x, y)
				pdf.MultiCell(g.Width, opt.FontSize*1.2, pdfText(pdf, it.Content.Text), "", "L", false)
				pdf.ClipEnd()
			case domain.KindShape:
				pdfShape(pdf, it.Content.ShapeKind, x, y, g.Width, g.Height)
			}
			pdf.TransformEnd()
		}

		if opt.IncludeGuides {
			setDraw(pdf, guideColor)
			pdf.SetLineWidth(0.2)
			pdf.Rect(bleed, bleed, pg.Width, pg.Height, "D")
			if pg.Type == domain.PageSpread {
				pdf.SetDashPattern([]float64{3, 3}, 0)
				pdf.Line(bleed+pg.Width/2, bleed, bleed+pg.Width/2, bleed+pg.Height)
				pdf.SetDashPattern([]float64{}, 0)
			}
		}
	}
	if err := pdf.Output(w); err != nil {
		return rep, fmt.Errorf("write pdf: %w", err)
	}
	return rep, nil
}

// pdfImage draws the crop window of the item's image into its box. It reports false when the
// image could not be loaded.
func pdfImage(pdf *gofpdf.Fpdf, pics *pictures, registered map[string]bool, it editor.RenderItem, x, y float64) bool {
	pic, err := pics.get(it.Content.Src)
	if err != nil {
		return false
	}
	name := "img:" + it.Content.Src
	if !registered[name] {
		var buf bytes.Buffer
		if err := png.Encode(&buf, pic.img); err != nil {
			return false
		}
		pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "PNG"}, &buf)
		if pdf.Err() {
			return false
		}
		registered[name] = true
	}
	g := it.Geometry
	crop := cropOf(it, pic.natural)
	kx, ky := g.Width/crop.Width, g.Height/crop.Height
	pdf.ClipRect(x, y, g.Width, g.Height, false)
	pdf.ImageOptions(name, x-crop.X*kx, y-crop.Y*ky, pic.natural.W*kx, pic.natural.H*ky,
		false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	pdf.ClipEnd()
	return true
}

func pdfPlaceholder(pdf *gofpdf.Fpdf, x, y, w, h float64) {
	setDraw(pdf, placeholderColor)
	pdf.SetLineWidth(0.5)
	pdf.Rect(x, y, w, h, "D")
	pdf.Line(x, y, x+w, y+h)
	pdf.Line(x+w, y, x, y+h)
}

func pdfShape(pdf *gofpdf.Fpdf, kind string, x, y, w, h float64) {
	setDraw(pdf, shapeStroke)
	pdf.SetFillColor(shapeFill.R, shapeFill.G, shapeFill.B)
	pdf.SetLineWidth(1)
	switch strings.ToLower(kind) {
	case "ellipse", "circle":
		pdf.Ellipse(x+w/2, y+h/2, w/2, h/2, 0, "FD")
	case "line":
		pdf.Line(x, y+h/2, x+w, y+h/2)
	default:
		pdf.Rect(x, y, w, h, "FD")
	}
}

// pdfText converts to the cp1252 encoding of the core fonts.
func pdfText(pdf *gofpdf.Fpdf, s string) string {
	return pdf.UnicodeTranslatorFromDescriptor("")(s)
}

func setDraw(pdf *gofpdf.Fpdf, c rgb) {
	pdf.SetDrawColor(c.R, c.G, c.B)
}
