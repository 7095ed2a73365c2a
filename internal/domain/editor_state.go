/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// ToolMode is the active editing tool.
type ToolMode string

const (
	ToolSelect ToolMode = "select"
	ToolPan    ToolMode = "pan"
	ToolText   ToolMode = "text"
	ToolShape  ToolMode = "shape"
)

// EditorState is the transient per-session view state. It is rebuilt each session and never persisted.
type EditorState struct {
	ProjectID string   `json:"projectId"`
	PageID    string   `json:"pageId"`
	Selected  []string `json:"selected"`
	Tool      ToolMode `json:"tool"`
	Zoom      float64  `json:"zoom"`
	PanX      float64  `json:"panX"`
	PanY      float64  `json:"panY"`
}

// IsSelected reports whether id is part of the selection.
func (s EditorState) IsSelected(id string) bool {
	for _, sel := range s.Selected {
		if sel == id {
			return true
		}
	}
	return false
}
