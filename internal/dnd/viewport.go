/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package dnd

import "photobook/internal/vector"

// Viewport is the zoom/pan transform between screen and page coordinates:
// screen = page*zoom + pan. A non-positive zoom is treated as 1.
type Viewport struct {
	Zoom       float64
	PanX, PanY float64
}

func (v Viewport) zoom() float64 {
	if v.Zoom <= 0 {
		return 1
	}
	return v.Zoom
}

// ToPage maps a screen point to page-local coordinates.
func (v Viewport) ToPage(screen vector.Pt) vector.Pt {
	z := v.zoom()
	return vector.Pt{X: (screen.X - v.PanX) / z, Y: (screen.Y - v.PanY) / z}
}

// ToScreen maps a page point to screen coordinates.
func (v Viewport) ToScreen(page vector.Pt) vector.Pt {
	z := v.zoom()
	return vector.Pt{X: page.X*z + v.PanX, Y: page.Y*z + v.PanY}
}

// Transform returns the page-to-screen affine transform.
func (v Viewport) Transform() vector.Affine2D {
	z := v.zoom()
	return vector.Translate(v.PanX, v.PanY).Mul(vector.Scale(z, z))
}
