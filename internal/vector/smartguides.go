/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

// Smart guides snap a dragged element to the page edges and to sibling elements. The functions
// are UI-agnostic and deterministic so frontends and tests get identical results.

import "math"

// Guide orientations and kinds.
const (
	Vertical    = "vertical"
	Horizontal  = "horizontal"
	GuideEdge   = "edge"
	GuideCenter = "center"
)

// SnapOptions controls which guide candidates are considered and the threshold.
type SnapOptions struct {
	// Threshold is the maximum distance in page units at which snapping occurs.
	Threshold     float64
	SnapToEdges   bool
	SnapToCenters bool
}

// DefaultSnapOptions snaps edges and centers within 6 page units.
func DefaultSnapOptions() SnapOptions {
	return SnapOptions{Threshold: 6, SnapToEdges: true, SnapToCenters: true}
}

// Anchor is a static reference rect (the page or a sibling element).
// Higher Weight wins near-ties; use 1 when unsure.
type Anchor struct {
	Rect   Rect
	Weight float64
}

// GuideLine describes a visual guide produced by a snap. Position is the x (vertical) or
// y (horizontal) coordinate, rounded to 3 decimals.
type GuideLine struct {
	Orientation string
	Kind        string
	Position    float64
	From        Pt
	To          Pt
}

type axisBest struct {
	delta float64
	dist  float64
	guide GuideLine
}

func (b *axisBest) consider(delta, threshold, weight float64, g GuideLine) {
	dist := math.Abs(delta)
	if dist > threshold {
		return
	}
	score := dist / math.Max(1, weight)
	if score < b.dist {
		b.dist = dist
		b.delta = delta
		b.guide = g
	}
}

// ComputeSmartGuides snaps moving against anchors, independently in X and Y, and returns the
// snapped rectangle plus the guides to draw.
func ComputeSmartGuides(moving Rect, anchors []Anchor, opts SnapOptions) (Rect, []GuideLine) {
	if opts.Threshold <= 0 {
		opts.Threshold = 6
	}
	bx := axisBest{dist: math.Inf(1)}
	by := axisBest{dist: math.Inf(1)}

	mxL, mxR, mxT, mxB := moving.X, moving.X+moving.W, moving.Y, moving.Y+moving.H
	mxCX, mxCY := moving.X+moving.W/2, moving.Y+moving.H/2

	for _, a := range anchors {
		axL, axR, axT, axB := a.Rect.X, a.Rect.X+a.Rect.W, a.Rect.Y, a.Rect.Y+a.Rect.H
		axCX, axCY := a.Rect.X+a.Rect.W/2, a.Rect.Y+a.Rect.H/2

		if opts.SnapToEdges {
			bx.consider(mxL-axL, opts.Threshold, a.Weight, guideForVertical(axL, moving, a.Rect, GuideEdge))
			bx.consider(mxR-axR, opts.Threshold, a.Weight, guideForVertical(axR, moving, a.Rect, GuideEdge))
			// abutting
			bx.consider(mxL-axR, opts.Threshold, a.Weight, guideForVertical(axR, moving, a.Rect, GuideEdge))
			bx.consider(mxR-axL, opts.Threshold, a.Weight, guideForVertical(axL, moving, a.Rect, GuideEdge))

			by.consider(mxT-axT, opts.Threshold, a.Weight, guideForHorizontal(axT, moving, a.Rect, GuideEdge))
			by.consider(mxB-axB, opts.Threshold, a.Weight, guideForHorizontal(axB, moving, a.Rect, GuideEdge))
			by.consider(mxT-axB, opts.Threshold, a.Weight, guideForHorizontal(axB, moving, a.Rect, GuideEdge))
			by.consider(mxB-axT, opts.Threshold, a.Weight, guideForHorizontal(axT, moving, a.Rect, GuideEdge))
		}
		if opts.SnapToCenters {
			bx.consider(mxCX-axCX, opts.Threshold, a.Weight, guideForVertical(axCX, moving, a.Rect, GuideCenter))
			by.consider(mxCY-axCY, opts.Threshold, a.Weight, guideForHorizontal(axCY, moving, a.Rect, GuideCenter))
		}
	}

	var guides []GuideLine
	snapped := moving
	if bx.dist <= opts.Threshold {
		snapped.X = FloatRound(moving.X-bx.delta, 3)
		guides = append(guides, bx.guide)
	}
	if by.dist <= opts.Threshold {
		snapped.Y = FloatRound(moving.Y-by.delta, 3)
		guides = append(guides, by.guide)
	}
	return snapped, guides
}

func guideForVertical(x float64, a, b Rect, kind string) GuideLine {
	minY := math.Min(a.Y, b.Y)
	maxY := math.Max(a.Y+a.H, b.Y+b.H)
	x = FloatRound(x, 3)
	return GuideLine{Orientation: Vertical, Kind: kind, Position: x, From: Pt{x, minY}, To: Pt{x, maxY}}
}

func guideForHorizontal(y float64, a, b Rect, kind string) GuideLine {
	minX := math.Min(a.X, b.X)
	maxX := math.Max(a.X+a.W, b.X+b.W)
	y = FloatRound(y, 3)
	return GuideLine{Orientation: Horizontal, Kind: kind, Position: y, From: Pt{minX, y}, To: Pt{maxX, y}}
}
