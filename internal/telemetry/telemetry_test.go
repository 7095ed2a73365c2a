/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type collector struct {
	mu      sync.Mutex
	events  []Event
	crashes [][]byte
}

func (c *collector) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		var ev Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			t.Errorf("bad event json: %v", err)
		}
		c.mu.Lock()
		c.events = append(c.events, ev)
		c.mu.Unlock()
	})
	mux.HandleFunc("/crash", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.crashes = append(c.crashes, b)
		c.mu.Unlock()
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_TrackAndUploadCrash(t *testing.T) {
	var col collector
	srv := col.server(t)
	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", CrashURL: srv.URL + "/crash", Timeout: 2 * time.Second})

	if !c.Enabled() {
		t.Fatalf("expected client to be enabled")
	}
	c.Track(EventTemplateApplied, map[string]any{
		"template": "grid-4",
		"placed":   3,
		"caption":  strings.Repeat("x", 200),
		"nested":   map[string]any{"a": 1},
	})
	c.Track(EventExported, nil)
	c.Close()

	col.mu.Lock()
	events := append([]Event(nil), col.events...)
	col.mu.Unlock()
	if len(events) != 2 {
		t.Fatalf("expected 2 events after Close, got %d", len(events))
	}
	ev := events[0]
	if ev.Name != EventTemplateApplied || ev.TS == "" || ev.Session == "" {
		t.Fatalf("event = %+v", ev)
	}
	if ev.Session != events[1].Session {
		t.Fatalf("session id should be stable per client")
	}
	if ev.Props["template"] != "grid-4" || ev.Props["placed"] != float64(3) {
		t.Fatalf("props = %v", ev.Props)
	}
	if s, _ := ev.Props["caption"].(string); len(s) != maxPropLen {
		t.Fatalf("long string not cut: %d", len(s))
	}
	if _, ok := ev.Props["nested"]; ok {
		t.Fatalf("non-scalar property kept")
	}

	c.UploadCrash([]byte("STACKTRACE"))
	col.mu.Lock()
	defer col.mu.Unlock()
	if len(col.crashes) != 1 || string(col.crashes[0]) != "STACKTRACE" {
		t.Fatalf("crashes = %q", col.crashes)
	}
}

func TestClient_DisabledAndEmptyEventName(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	c := New(Config{OptIn: false, EventsURL: srv.URL + "/events", CrashURL: srv.URL + "/crash", Timeout: time.Second})
	if c.Enabled() {
		t.Fatalf("expected disabled client")
	}
	c.Track("ignored", nil)
	c.UploadCrash([]byte("ignored"))
	c.Close()

	c2 := New(Config{OptIn: true, EventsURL: srv.URL + "/events", Timeout: time.Second})
	c2.Track("", nil)
	c2.Flush(context.Background())
	c2.Close()
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("expected no requests, got %d", hits)
	}

	var nilClient *Client
	if nilClient.Enabled() {
		t.Fatalf("nil client must be disabled")
	}
}

func TestFromEnvAndDefault(t *testing.T) {
	t.Setenv("PB_TELEMETRY_OPT_IN", "yes")
	t.Setenv("PB_TELEMETRY_URL", "http://127.0.0.1:0")
	t.Setenv("PB_CRASH_UPLOAD_URL", "")
	t.Setenv("PB_TELEMETRY_TIMEOUT_MS", "100")

	cfg := FromEnv()
	if !cfg.OptIn || cfg.EventsURL == "" || cfg.Timeout != 100*time.Millisecond {
		t.Fatalf("FromEnv did not parse correctly: %+v", cfg)
	}
	SetDefault(New(cfg))
	t.Cleanup(func() { SetDefault(New(Config{})) })
	if !Default().Enabled() {
		t.Fatalf("default client should be enabled with env config")
	}
}
