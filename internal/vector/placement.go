/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import (
	"math"
	"sort"
)

// PlaceOptions controls SuggestPlacement. The search is deterministic for identical inputs.
//
// Margin is the clearance kept from the page edges. GridStep is the search granularity; lower
// values are slower but find tighter fits. With HasAnchor the candidates closest to Anchor are
// tried first (e.g. where a palette item was dropped).
type PlaceOptions struct {
	Margin    float64
	GridStep  float64
	Anchor    Pt
	HasAnchor bool
}

// SuggestPlacement proposes a rect of the given size inside page that avoids obstacles (the
// existing elements). If nothing fits without overlap, the least overlapping candidate wins.
// The result always stays inside page inset by Margin (shrunk if size does not fit).
// It also returns the number of candidates evaluated.
func SuggestPlacement(page Rect, size Size, obstacles []Rect, opts PlaceOptions) (Rect, int) {
	if opts.Margin < 0 {
		opts.Margin = 0
	}
	if opts.GridStep <= 0 {
		opts.GridStep = 8
	}

	inner := page.Inset(opts.Margin, opts.Margin)
	bw := math.Min(math.Max(0, size.W), inner.W)
	bh := math.Min(math.Max(0, size.H), inner.H)

	x0, y0 := inner.X, inner.Y
	x1 := math.Max(x0, inner.X+inner.W-bw)
	y1 := math.Max(y0, inner.Y+inner.H-bh)

	var candidates []Rect
	for y := y0; ; y += opts.GridStep {
		if y > y1 {
			y = y1
		}
		for x := x0; ; x += opts.GridStep {
			if x > x1 {
				x = x1
			}
			candidates = append(candidates, R(FloatRound(x, 3), FloatRound(y, 3), FloatRound(bw, 3), FloatRound(bh, 3)))
			if x == x1 {
				break
			}
		}
		if y == y1 {
			break
		}
	}

	if opts.HasAnchor {
		sort.SliceStable(candidates, func(i, j int) bool {
			di := distance(candidates[i].Center(), opts.Anchor)
			dj := distance(candidates[j].Center(), opts.Anchor)
			if di == dj {
				if candidates[i].Y == candidates[j].Y {
					return candidates[i].X < candidates[j].X
				}
				return candidates[i].Y < candidates[j].Y
			}
			return di < dj
		})
	}

	best := candidates[0]
	bestCost := math.Inf(1)
	attempts := 0
	for _, c := range candidates {
		attempts++
		overlap := totalOverlapArea(c, obstacles)
		if overlap <= 0.0001 {
			best = c
			break
		}
		cost := overlap * 10_000
		if opts.HasAnchor {
			cost += distance(c.Center(), opts.Anchor)
		}
		// reading order: prefer higher, then further left
		cost += c.Y*0.01 + c.X*0.001
		if cost < bestCost {
			bestCost = cost
			best = c
		}
	}
	return clampRectTo(best, inner), attempts
}

func distance(a, b Pt) float64 { return math.Hypot(a.X-b.X, a.Y-b.Y) }

func clampRectTo(r Rect, bounds Rect) Rect {
	if r.X < bounds.X {
		r.X = bounds.X
	}
	if r.Y < bounds.Y {
		r.Y = bounds.Y
	}
	if r.X+r.W > bounds.X+bounds.W {
		r.X = bounds.X + bounds.W - r.W
	}
	if r.Y+r.H > bounds.Y+bounds.H {
		r.Y = bounds.Y + bounds.H - r.H
	}
	return r
}

func totalOverlapArea(r Rect, obstacles []Rect) float64 {
	var sum float64
	for _, o := range obstacles {
		if r.Intersects(o) {
			sum += r.Intersection(o).Area()
		}
	}
	return sum
}
