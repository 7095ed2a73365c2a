/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"reflect"
	"testing"
)

func lines(box TextBox) []string {
	out := make([]string, len(box.Lines))
	for i, l := range box.Lines {
		out[i] = l.Text
	}
	return out
}

func TestWordWrap(t *testing.T) {
	l := NewWordWrap(BasicProvider{})
	// the 7x13 face advances 7px per rune
	box := l.Layout("one two three\nfour", FontSpec{}, 49)
	if got, want := lines(box), []string{"one two", "three", "four"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("lines = %q", got)
	}
	if box.Width != 49 || box.Height != 3*box.Metrics.LineHeight() {
		t.Fatalf("box = %vx%v", box.Width, box.Height)
	}
}

func TestWordWrap_SplitsLongWords(t *testing.T) {
	box := NewWordWrap(nil).Layout("abcdefghij", FontSpec{}, 28)
	if got, want := lines(box), []string{"abcd", "efgh", "ij"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("lines = %q", got)
	}
}

func TestWordWrap_NoLimit(t *testing.T) {
	box := NewWordWrap(nil).Layout("a  b   c", FontSpec{}, 0)
	if got := lines(box); !reflect.DeepEqual(got, []string{"a b c"}) {
		t.Fatalf("lines = %q", got)
	}
}

func TestMeasure_Deterministic(t *testing.T) {
	w, h := Measure(BasicProvider{}, "ABC", FontSpec{})
	if w != 21 || h <= 0 {
		t.Fatalf("measure = %v x %v", w, h)
	}
}

func TestOTProvider_ScalesWithSize(t *testing.T) {
	p := OTProvider{Lib: Default()}
	small, _ := Measure(p, "photobook", FontSpec{Family: DefaultFamily, SizePt: 10})
	large, _ := Measure(p, "photobook", FontSpec{Family: DefaultFamily, SizePt: 40})
	if small <= 0 || large < 3*small {
		t.Fatalf("widths small=%v large=%v", small, large)
	}
}

func TestOTProvider_FallsBackForUnknownFamily(t *testing.T) {
	p := OTProvider{Lib: Default()}
	w, _ := Measure(p, "ABC", FontSpec{Family: "Nope", SizePt: 30})
	if w != 21 {
		t.Fatalf("fallback width = %v", w)
	}
	if err := NewFontLibrary().Add("bad", 400, false, []byte("not a font")); err == nil {
		t.Fatalf("expected parse error")
	}
}
