/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package dnd turns raw pointer input from different backends into canonical drag sessions and
// resolves where a drop lands on the page: create a new element, move an existing one, or reject.
package dnd

import (
	"photobook/internal/vector"
)

// Phase is the step of a canonical drag sequence.
type Phase string

const (
	PhaseStart  Phase = "start"
	PhaseMove   Phase = "move"
	PhaseEnd    Phase = "end"
	PhaseCancel Phase = "cancel"
)

// Event is a backend-independent pointer event in screen coordinates.
type Event struct {
	Phase Phase
	Pos   vector.Pt
}

// InputBackend normalizes one raw event of its device family. ok is false for events that do not
// take part in a drag (hover, secondary touches, other buttons).
type InputBackend interface {
	Name() string
	Normalize(raw any) (ev Event, ok bool)
}

// MouseEvent is a raw pointer/mouse event. Type is one of mousedown, mousemove, mouseup or
// mouseleave; Button 0 is the primary button.
type MouseEvent struct {
	Type   string
	X, Y   float64
	Button int
}

// MouseBackend follows the primary button. Moves without a pressed button are hover and ignored.
type MouseBackend struct {
	down bool
}

func (b *MouseBackend) Name() string { return "mouse" }

func (b *MouseBackend) Normalize(raw any) (Event, bool) {
	me, ok := raw.(MouseEvent)
	if !ok {
		return Event{}, false
	}
	pos := vector.Pt{X: me.X, Y: me.Y}
	switch me.Type {
	case "mousedown":
		if me.Button != 0 || b.down {
			return Event{}, false
		}
		b.down = true
		return Event{Phase: PhaseStart, Pos: pos}, true
	case "mousemove":
		if !b.down {
			return Event{}, false
		}
		return Event{Phase: PhaseMove, Pos: pos}, true
	case "mouseup":
		if !b.down || me.Button != 0 {
			return Event{}, false
		}
		b.down = false
		return Event{Phase: PhaseEnd, Pos: pos}, true
	case "mouseleave":
		if !b.down {
			return Event{}, false
		}
		b.down = false
		return Event{Phase: PhaseCancel, Pos: pos}, true
	}
	return Event{}, false
}

// Touch is one contact point of a TouchEvent.
type Touch struct {
	ID   int
	X, Y float64
}

// TouchEvent is a raw touch event. Type is one of touchstart, touchmove, touchend or touchcancel;
// Changed lists the touches that changed with this event.
type TouchEvent struct {
	Type    string
	Changed []Touch
}

// TouchBackend tracks the first touch only; additional fingers are ignored until it lifts.
type TouchBackend struct {
	active bool
	id     int
}

func (b *TouchBackend) Name() string { return "touch" }

func (b *TouchBackend) Normalize(raw any) (Event, bool) {
	te, ok := raw.(TouchEvent)
	if !ok {
		return Event{}, false
	}
	if te.Type == "touchstart" {
		if b.active || len(te.Changed) == 0 {
			return Event{}, false
		}
		t := te.Changed[0]
		b.active, b.id = true, t.ID
		return Event{Phase: PhaseStart, Pos: vector.Pt{X: t.X, Y: t.Y}}, true
	}
	if !b.active {
		return Event{}, false
	}
	t, found := b.tracked(te.Changed)
	if !found {
		return Event{}, false
	}
	pos := vector.Pt{X: t.X, Y: t.Y}
	switch te.Type {
	case "touchmove":
		return Event{Phase: PhaseMove, Pos: pos}, true
	case "touchend":
		b.active = false
		return Event{Phase: PhaseEnd, Pos: pos}, true
	case "touchcancel":
		b.active = false
		return Event{Phase: PhaseCancel, Pos: pos}, true
	}
	return Event{}, false
}

func (b *TouchBackend) tracked(ts []Touch) (Touch, bool) {
	for _, t := range ts {
		if t.ID == b.id {
			return t, true
		}
	}
	return Touch{}, false
}

// Capabilities describes the input hardware reported by the host at session start.
type Capabilities struct {
	Touch bool
	// FinePointer is true when a mouse, pen or trackpad is the primary pointer.
	FinePointer bool
}

// DetectBackend picks the backend for the host. A fine pointer wins over touch on hybrid devices.
func DetectBackend(c Capabilities) InputBackend {
	if c.Touch && !c.FinePointer {
		return &TouchBackend{}
	}
	return &MouseBackend{}
}
