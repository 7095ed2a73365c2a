/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package textlayout measures and line-breaks element text for raster output. Faces come from a
// Provider so tests can use the fixed 7x13 bitmap face while previews use scalable fonts.
package textlayout

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// FontSpec describes a requested font. SizePt is in output pixels at 72 DPI.
type FontSpec struct {
	Family string
	SizePt float32
	Weight int // 100..900
	Italic bool
}

// Metrics are the vertical metrics of a resolved face, in pixels.
type Metrics struct {
	Ascent, Descent, LineGap float32
}

// LineHeight is the baseline-to-baseline distance.
func (m Metrics) LineHeight() float32 { return m.Ascent + m.Descent + m.LineGap }

// Line is one laid out line.
type Line struct {
	Text  string
	Width float32
}

// TextBox is the result of laying text out into a width.
type TextBox struct {
	Lines   []Line
	Width   float32
	Height  float32
	Metrics Metrics
}

// Provider maps a FontSpec to a concrete face. Callers close the face.
type Provider interface {
	Resolve(FontSpec) (font.Face, Metrics)
}

// BasicProvider always returns basicfont's Face7x13; sizes are ignored.
type BasicProvider struct{}

func (BasicProvider) Resolve(FontSpec) (font.Face, Metrics) {
	return basicfont.Face7x13, metricsOf(basicfont.Face7x13)
}

func metricsOf(f font.Face) Metrics {
	m := f.Metrics()
	return Metrics{
		Ascent:  float32(m.Ascent.Round()),
		Descent: float32(m.Descent.Round()),
		LineGap: float32(m.Height.Round() - m.Ascent.Round() - m.Descent.Round()),
	}
}

// WordWrap breaks text on spaces and newlines. Words wider than the box are split between runes.
// It does no shaping or hyphenation.
type WordWrap struct{ Provider Provider }

func NewWordWrap(provider Provider) *WordWrap {
	if provider == nil {
		provider = BasicProvider{}
	}
	return &WordWrap{Provider: provider}
}

// Layout lays text out in spec. A maxWidth <= 0 disables wrapping.
func (l *WordWrap) Layout(text string, spec FontSpec, maxWidth float32) TextBox {
	face, met := l.Provider.Resolve(spec)
	defer face.Close()
	d := &font.Drawer{Face: face}
	box := TextBox{Metrics: met}
	emit := func(s string) {
		w := advance(d, s)
		box.Lines = append(box.Lines, Line{Text: s, Width: w})
		box.Width = max(box.Width, w)
		box.Height += met.LineHeight()
	}
	space := advance(d, " ")
	for _, para := range strings.Split(text, "\n") {
		line, lineW := "", float32(0)
		for _, word := range strings.Fields(para) {
			w := advance(d, word)
			for maxWidth > 0 && w > maxWidth && utf8.RuneCountInString(word) > 1 {
				if line != "" {
					emit(line)
					line, lineW = "", 0
				}
				head := fitPrefix(d, word, maxWidth)
				emit(head)
				word = word[len(head):]
				w = advance(d, word)
			}
			switch {
			case line == "":
				line, lineW = word, w
			case maxWidth <= 0 || lineW+space+w <= maxWidth:
				line += " " + word
				lineW += space + w
			default:
				emit(line)
				line, lineW = word, w
			}
		}
		emit(line)
	}
	return box
}

// fitPrefix returns the longest prefix of word, at least one rune, that fits in maxWidth.
func fitPrefix(d *font.Drawer, word string, maxWidth float32) string {
	_, first := utf8.DecodeRuneInString(word)
	end := first
	for i := range word {
		if i <= first {
			continue
		}
		if advance(d, word[:i]) > maxWidth {
			break
		}
		end = i
	}
	return word[:end]
}

func advance(d *font.Drawer, s string) float32 {
	return float32(d.MeasureString(s)) / 64
}

// Measure returns the single-line width and line height of text in spec.
func Measure(provider Provider, text string, spec FontSpec) (w, h float32) {
	if provider == nil {
		provider = BasicProvider{}
	}
	face, met := provider.Resolve(spec)
	defer face.Close()
	return advance(&font.Drawer{Face: face}, text), met.Ascent + met.Descent
}
