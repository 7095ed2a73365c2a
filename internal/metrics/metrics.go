/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package metrics exposes Prometheus instruments for the editor engine. All recording methods are
// nil-safe so components can run without metrics.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	HistoryOps       *prometheus.CounterVec
	Drags            *prometheus.CounterVec
	LimitDenials     *prometheus.CounterVec
	Saves            *prometheus.CounterVec
	SaveDuration     prometheus.Histogram
	TemplatesApplied *prometheus.CounterVec
	ActiveDrags      prometheus.Gauge
}

var (
	defaultOnce sync.Once
	defaultInst *Metrics
)

// Default returns the instruments registered on the global Prometheus registry.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultInst = New(prometheus.DefaultRegisterer)
	})
	return defaultInst
}

// New registers a fresh set of instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HistoryOps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "photobook_history_ops_total",
			Help: "History operations by kind (record, undo, redo) and status",
		}, []string{"op", "status"}),
		Drags: f.NewCounterVec(prometheus.CounterOpts{
			Name: "photobook_drags_total",
			Help: "Finished drag sessions by outcome",
		}, []string{"outcome"}),
		LimitDenials: f.NewCounterVec(prometheus.CounterOpts{
			Name: "photobook_limit_denials_total",
			Help: "Mutations denied by the account tier limiter",
		}, []string{"intent", "reason"}),
		Saves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "photobook_saves_total",
			Help: "Project saves by result",
		}, []string{"result"}),
		SaveDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "photobook_save_duration_seconds",
			Help:    "Time spent persisting a project snapshot",
			Buckets: prometheus.DefBuckets,
		}),
		TemplatesApplied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "photobook_templates_applied_total",
			Help: "Layout template applications by template and result",
		}, []string{"template", "result"}),
		ActiveDrags: f.NewGauge(prometheus.GaugeOpts{
			Name: "photobook_active_drags",
			Help: "Drag sessions currently in progress",
		}),
	}
}

func (m *Metrics) HistoryOp(op, status string) {
	if m == nil || m.HistoryOps == nil {
		return
	}
	m.HistoryOps.WithLabelValues(op, status).Inc()
}

func (m *Metrics) DragStarted() {
	if m == nil || m.ActiveDrags == nil {
		return
	}
	m.ActiveDrags.Inc()
}

func (m *Metrics) DragFinished(outcome string) {
	if m == nil || m.Drags == nil {
		return
	}
	m.ActiveDrags.Dec()
	m.Drags.WithLabelValues(outcome).Inc()
}

func (m *Metrics) LimitDenied(intent, reason string) {
	if m == nil || m.LimitDenials == nil {
		return
	}
	m.LimitDenials.WithLabelValues(intent, reason).Inc()
}

func (m *Metrics) SaveFinished(d time.Duration, err error) {
	if m == nil || m.Saves == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Saves.WithLabelValues(result).Inc()
	m.SaveDuration.Observe(d.Seconds())
}

func (m *Metrics) TemplateApplied(name, result string) {
	if m == nil || m.TemplatesApplied == nil {
		return
	}
	m.TemplatesApplied.WithLabelValues(name, result).Inc()
}
