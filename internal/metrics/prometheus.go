// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package metrics exports the monitor's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SamplesTotal counts accelerometer samples by outcome:
	// accepted, degenerate, gated, stopped.
	SamplesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posture_samples_total",
			Help: "Accelerometer samples received, by outcome",
		},
		[]string{"outcome"},
	)

	// LargeMotionResets counts forced transitions caused by acceleration spikes.
	LargeMotionResets = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "posture_large_motion_resets_total",
			Help: "Samples whose magnitude change forced the state back to normal",
		},
	)

	// Transitions counts debounced state changes by target state.
	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posture_transitions_total",
			Help: "Debounced posture state transitions",
		},
		[]string{"to"},
	)

	// SideLying is 1 while the debounced state is side-lying.
	SideLying = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "posture_side_lying",
			Help: "1 while the user is lying on their side",
		},
	)

	// Monitoring is 1 while the monitor accepts samples.
	Monitoring = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "posture_monitoring",
			Help: "1 while posture monitoring is enabled",
		},
	)

	// ReminderTicks counts scheduler ticks by verdict.
	ReminderTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posture_reminder_ticks_total",
			Help: "Reminder scheduler ticks, by verdict",
		},
		[]string{"verdict"},
	)

	// RemindersFired counts fired reminders.
	RemindersFired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "posture_reminders_fired_total",
			Help: "Total number of reminders fired",
		},
	)

	// DroppedEvents counts events a sink could not deliver.
	DroppedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posture_dropped_events_total",
			Help: "Events dropped because the consumer was not keeping up",
		},
		[]string{"kind"},
	)

	// ProcessingLatency measures per-sample pipeline time.
	ProcessingLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "posture_sample_processing_seconds",
			Help:    "Time spent processing one accelerometer sample",
			Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005},
		},
	)

	// RequestsTotal counts HTTP API requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posture_http_requests_total",
			Help: "Total number of HTTP API requests processed",
		},
		[]string{"endpoint", "method", "status"},
	)
)

// SetSideLying updates the side-lying gauge.
func SetSideLying(v bool) {
	SideLying.Set(boolGauge(v))
}

// SetMonitoring updates the monitoring gauge.
func SetMonitoring(v bool) {
	Monitoring.Set(boolGauge(v))
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
