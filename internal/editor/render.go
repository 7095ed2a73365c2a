/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import "photobook/internal/domain"

// RenderItem is what a rendering surface needs to draw one element.
type RenderItem struct {
	ID       string             `json:"id"`
	Kind     domain.ElementKind `json:"kind"`
	Geometry domain.Geometry    `json:"geometry"`
	Content  domain.Content     `json:"content"`
	Selected bool               `json:"selected"`
	Locked   bool               `json:"locked,omitempty"`
}

// RenderList returns the active page's elements in paint order.
func (s *Session) RenderList() []RenderItem {
	return s.RenderPage(s.view.PageID)
}

// RenderPage returns the elements of any page in paint order. Only the active page carries
// selection flags.
func (s *Session) RenderPage(pageID string) []RenderItem {
	pg, ok := s.project.Page(pageID)
	if !ok {
		return nil
	}
	return renderItems(pg, pageID == s.view.PageID, s.view)
}

// RenderItems builds the render list of a page outside a session (export, thumbnails).
func RenderItems(pg domain.Page) []RenderItem {
	return renderItems(pg, false, domain.EditorState{})
}

func renderItems(pg domain.Page, active bool, view domain.EditorState) []RenderItem {
	order := pg.PaintOrder()
	out := make([]RenderItem, 0, len(order))
	for _, el := range order {
		item := RenderItem{ID: el.ID, Kind: el.Kind, Geometry: el.Geometry, Content: el.Content, Locked: el.Locked}
		if el.Content.Crop != nil {
			c := *el.Content.Crop
			item.Content.Crop = &c
		}
		item.Selected = active && view.IsSelected(el.ID)
		out = append(out, item)
	}
	return out
}
