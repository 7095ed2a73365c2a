/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import "sort"

// This file defines the photobook document model. Everything here is plain data with JSON tags so
// a Project round-trips through the persistence layer without loss. Mutation goes through the
// document package; nothing in this package changes a value in place.

// ElementKind is the type of a placed element.
type ElementKind string

const (
	KindImage ElementKind = "image"
	KindText  ElementKind = "text"
	KindShape ElementKind = "shape"
)

// Valid reports whether k is one of the known element kinds.
func (k ElementKind) Valid() bool {
	switch k {
	case KindImage, KindText, KindShape:
		return true
	}
	return false
}

// PageType distinguishes a two-sided spread from a single page; templates declare which they fit.
type PageType string

const (
	PageSpread PageType = "spread"
	PageSingle PageType = "single"
)

// Tier is an account plan name.
type Tier string

const (
	TierFree Tier = "free"
	TierPlus Tier = "plus"
	TierPro  Tier = "pro"
)

// Project is the top-level photobook document.
type Project struct {
	ID        string `json:"id"`
	OwnerID   string `json:"ownerId"`
	Name      string `json:"name"`
	Tier      Tier   `json:"tier"`
	Pages     []Page `json:"pages"`
	Published bool   `json:"published"`
	ThemeRef  string `json:"themeRef,omitempty"`
}

// Page is one canvas (a spread or a single side) within a Project.
type Page struct {
	ID          string    `json:"id"`
	Type        PageType  `json:"type"`
	Width       float64   `json:"width"`
	Height      float64   `json:"height"`
	TemplateRef string    `json:"templateRef,omitempty"`
	Elements    []Element `json:"elements"`
}

// Element is a placed image, text or shape.
type Element struct {
	ID       string      `json:"id"`
	Kind     ElementKind `json:"kind"`
	Geometry Geometry    `json:"geometry"`
	Content  Content     `json:"content"`
	Locked   bool        `json:"locked,omitempty"`
}

// Geometry is in page units with the origin at the page's top-left corner.
// Rotation is in degrees, clockwise.
type Geometry struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"`
	ZIndex   int     `json:"zIndex"`
}

// Content holds the payload; only the field matching the element kind is meaningful.
type Content struct {
	Src       string `json:"src,omitempty"`
	Text      string `json:"text,omitempty"`
	ShapeKind string `json:"shapeKind,omitempty"`
	// NaturalWidth/NaturalHeight are the source image pixel dimensions when known.
	NaturalWidth  float64 `json:"naturalWidth,omitempty"`
	NaturalHeight float64 `json:"naturalHeight,omitempty"`
	Crop          *Crop   `json:"crop,omitempty"`
}

// Crop is the window of the source image (in source pixels) shown inside the element bounds.
type Crop struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// AccountLimits are the quantity caps of a tier. Zero means unlimited.
type AccountLimits struct {
	MaxPages           int `json:"maxPages" yaml:"max_pages"`
	MaxElementsPerPage int `json:"maxElementsPerPage" yaml:"max_elements_per_page"`
	MaxPhotobooks      int `json:"maxPhotobooks" yaml:"max_photobooks"`
}

// Clone returns a deep copy of the project.
func (p Project) Clone() Project {
	out := p
	if p.Pages != nil {
		out.Pages = make([]Page, len(p.Pages))
		for i := range p.Pages {
			out.Pages[i] = p.Pages[i].Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the page.
func (pg Page) Clone() Page {
	out := pg
	if pg.Elements != nil {
		out.Elements = make([]Element, len(pg.Elements))
		for i := range pg.Elements {
			out.Elements[i] = pg.Elements[i].Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the element.
func (e Element) Clone() Element {
	out := e
	if e.Content.Crop != nil {
		c := *e.Content.Crop
		out.Content.Crop = &c
	}
	return out
}

// PageIndex returns the index of the page with id, or -1.
func (p Project) PageIndex(id string) int {
	for i := range p.Pages {
		if p.Pages[i].ID == id {
			return i
		}
	}
	return -1
}

// Page returns the page with id.
func (p Project) Page(id string) (Page, bool) {
	if i := p.PageIndex(id); i >= 0 {
		return p.Pages[i], true
	}
	return Page{}, false
}

// ElementIndex returns the index of the element with id, or -1.
func (pg Page) ElementIndex(id string) int {
	for i := range pg.Elements {
		if pg.Elements[i].ID == id {
			return i
		}
	}
	return -1
}

// Element returns the element with id.
func (pg Page) Element(id string) (Element, bool) {
	if i := pg.ElementIndex(id); i >= 0 {
		return pg.Elements[i], true
	}
	return Element{}, false
}

// PaintOrder returns the page's elements sorted by ZIndex; ties keep insertion order.
func (pg Page) PaintOrder() []Element {
	out := make([]Element, len(pg.Elements))
	copy(out, pg.Elements)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Geometry.ZIndex < out[j].Geometry.ZIndex })
	return out
}

// MaxZ returns the highest ZIndex on the page, or -1 for an empty page.
func (pg Page) MaxZ() int {
	z := -1
	for _, e := range pg.Elements {
		if e.Geometry.ZIndex > z {
			z = e.Geometry.ZIndex
		}
	}
	return z
}

// MinZ returns the lowest ZIndex on the page, or 0 for an empty page.
func (pg Page) MinZ() int {
	if len(pg.Elements) == 0 {
		return 0
	}
	z := pg.Elements[0].Geometry.ZIndex
	for _, e := range pg.Elements[1:] {
		if e.Geometry.ZIndex < z {
			z = e.Geometry.ZIndex
		}
	}
	return z
}

// ElementCount returns the number of elements over all pages.
func (p Project) ElementCount() int {
	n := 0
	for _, pg := range p.Pages {
		n += len(pg.Elements)
	}
	return n
}
