/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchReloadsOnSave(t *testing.T) {
	root := t.TempDir()
	ph, err := InitProject(root, mixedProject())
	if err != nil {
		t.Fatal(err)
	}
	w, err := Watch(context.Background(), root, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Close()

	// unrelated files do not trigger a reload
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	ph.Project.Name = "Edited elsewhere"
	if err := Save(ph); err != nil {
		t.Fatal(err)
	}
	select {
	case ch := <-w.Changes():
		if ch.Err != nil {
			t.Fatalf("reload error: %v", ch.Err)
		}
		if ch.Handle.Project.Name != "Edited elsewhere" {
			t.Fatalf("reloaded name = %q", ch.Handle.Project.Name)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestWatchCloseEndsChanges(t *testing.T) {
	w, err := Watch(context.Background(), t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := <-w.Changes(); ok {
		t.Fatal("channel still open")
	}
	if _, err := Watch(context.Background(), filepath.Join(t.TempDir(), "missing"), 0); err == nil {
		t.Fatal("watching a missing dir must fail")
	}
}
