/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package document

import (
	"math"

	"photobook/internal/domain"
)

// Default canvas sizes in page units, used when a new page does not specify one.
const (
	DefaultSpreadWidth  = 1200.0
	DefaultSpreadHeight = 600.0
	DefaultSingleWidth  = 600.0
	DefaultSingleHeight = 600.0
)

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ValidateGeometry checks that every value is finite and the box has a positive size.
func ValidateGeometry(g domain.Geometry) error {
	if !finite(g.X, g.Y, g.Width, g.Height, g.Rotation) {
		return invalid("geometry", "values must be finite")
	}
	if g.Width <= 0 {
		return invalid("geometry.width", "must be > 0, got %v", g.Width)
	}
	if g.Height <= 0 {
		return invalid("geometry.height", "must be > 0, got %v", g.Height)
	}
	return nil
}

// ValidateContent checks the payload against the element kind.
func ValidateContent(kind domain.ElementKind, c domain.Content) error {
	switch kind {
	case domain.KindImage:
		if c.Src == "" {
			return invalid("content.src", "image requires a source")
		}
		if !finite(c.NaturalWidth, c.NaturalHeight) || c.NaturalWidth < 0 || c.NaturalHeight < 0 {
			return invalid("content.natural", "image dimensions must be finite and non-negative")
		}
		if c.Crop != nil {
			cr := c.Crop
			if !finite(cr.X, cr.Y, cr.Width, cr.Height) || cr.Width <= 0 || cr.Height <= 0 {
				return invalid("content.crop", "crop must be finite with positive size")
			}
		}
	case domain.KindShape:
		if c.ShapeKind == "" {
			return invalid("content.shapeKind", "shape requires a shape kind")
		}
	case domain.KindText:
	default:
		return invalid("kind", "unknown element kind %q", kind)
	}
	return nil
}

// ValidateElement checks kind, geometry and content.
func ValidateElement(el domain.Element) error {
	if !el.Kind.Valid() {
		return invalid("kind", "unknown element kind %q", el.Kind)
	}
	if err := ValidateGeometry(el.Geometry); err != nil {
		return err
	}
	return ValidateContent(el.Kind, el.Content)
}

func validatePage(pg domain.Page) error {
	switch pg.Type {
	case domain.PageSpread, domain.PageSingle:
	default:
		return invalid("page.type", "unknown page type %q", pg.Type)
	}
	if !finite(pg.Width, pg.Height) || pg.Width <= 0 || pg.Height <= 0 {
		return invalid("page.size", "page size must be finite and > 0")
	}
	seen := make(map[string]bool, len(pg.Elements))
	for _, el := range pg.Elements {
		if el.ID == "" {
			return invalid("element.id", "element id is required")
		}
		if seen[el.ID] {
			return invalid("element.id", "duplicate element id %q", el.ID)
		}
		seen[el.ID] = true
		if err := ValidateElement(el); err != nil {
			return err
		}
	}
	return nil
}

func withPageDefaults(pg domain.Page) domain.Page {
	if pg.Type == "" {
		pg.Type = domain.PageSpread
	}
	if pg.Width == 0 && pg.Height == 0 {
		if pg.Type == domain.PageSingle {
			pg.Width, pg.Height = DefaultSingleWidth, DefaultSingleHeight
		} else {
			pg.Width, pg.Height = DefaultSpreadWidth, DefaultSpreadHeight
		}
	}
	return pg
}
