/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"encoding/json"
	"reflect"
	"testing"
)

func sampleProject() Project {
	return Project{
		ID:      "p1",
		OwnerID: "u1",
		Name:    "Summer",
		Tier:    TierFree,
		Pages: []Page{
			{ID: "pg1", Type: PageSpread, Width: 1200, Height: 600, Elements: []Element{
				{ID: "e1", Kind: KindImage, Geometry: Geometry{X: 10, Y: 10, Width: 100, Height: 80, ZIndex: 1},
					Content: Content{Src: "beach.jpg", NaturalWidth: 4000, NaturalHeight: 3000, Crop: &Crop{Width: 4000, Height: 3000}}},
				{ID: "e2", Kind: KindText, Geometry: Geometry{X: 20, Y: 200, Width: 300, Height: 40}, Content: Content{Text: "Day one"}},
			}},
		},
	}
}

func TestProjectJSONRoundTrip(t *testing.T) {
	p := sampleProject()
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Project
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(got, p) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, p)
	}
}

func TestCloneIsDeep(t *testing.T) {
	p := sampleProject()
	c := p.Clone()
	c.Pages[0].Elements[0].Geometry.X = 999
	c.Pages[0].Elements[0].Content.Crop.X = 5
	c.Pages[0].Elements = append(c.Pages[0].Elements, Element{ID: "e3"})
	if p.Pages[0].Elements[0].Geometry.X != 10 {
		t.Fatalf("clone shares element storage")
	}
	if p.Pages[0].Elements[0].Content.Crop.X != 0 {
		t.Fatalf("clone shares crop pointer")
	}
	if len(p.Pages[0].Elements) != 2 {
		t.Fatalf("clone shares element slice")
	}
}

func TestPaintOrderTiesKeepInsertionOrder(t *testing.T) {
	pg := Page{Elements: []Element{
		{ID: "a", Geometry: Geometry{ZIndex: 2}},
		{ID: "b", Geometry: Geometry{ZIndex: 1}},
		{ID: "c", Geometry: Geometry{ZIndex: 1}},
		{ID: "d", Geometry: Geometry{ZIndex: 0}},
	}}
	var ids []string
	for _, e := range pg.PaintOrder() {
		ids = append(ids, e.ID)
	}
	if want := []string{"d", "b", "c", "a"}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("paint order = %v, want %v", ids, want)
	}
	if pg.MaxZ() != 2 || pg.MinZ() != 0 {
		t.Fatalf("MaxZ/MinZ = %d/%d", pg.MaxZ(), pg.MinZ())
	}
}

func TestLookups(t *testing.T) {
	p := sampleProject()
	if p.PageIndex("pg1") != 0 || p.PageIndex("nope") != -1 {
		t.Fatalf("PageIndex lookup wrong")
	}
	pg, ok := p.Page("pg1")
	if !ok {
		t.Fatalf("page not found")
	}
	if e, ok := pg.Element("e2"); !ok || e.Content.Text != "Day one" {
		t.Fatalf("element lookup wrong: %+v %v", e, ok)
	}
	if p.ElementCount() != 2 {
		t.Fatalf("ElementCount = %d", p.ElementCount())
	}
	if !ElementKind("shape").Valid() || ElementKind("video").Valid() {
		t.Fatalf("kind validation wrong")
	}
	st := EditorState{Selected: []string{"e1"}}
	if !st.IsSelected("e1") || st.IsSelected("e2") {
		t.Fatalf("IsSelected wrong")
	}
}
