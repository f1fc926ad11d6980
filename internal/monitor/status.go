// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package monitor

import (
	"github.com/relabs-tech/posture_guard/internal/orientation"
	"github.com/relabs-tech/posture_guard/internal/posture"
	"github.com/relabs-tech/posture_guard/internal/settings"
)

// Status is a point-in-time snapshot of the monitor for diagnostics.
type Status struct {
	Monitoring   bool              `json:"monitoring"`
	Active       bool              `json:"active"`
	Rotation     posture.Rotation  `json:"rotation"`
	State        posture.State     `json:"state"`
	Dwell        posture.Dwell     `json:"dwell"`
	Gravity      posture.Vec3      `json:"gravity"`
	Tilt         orientation.Tilt  `json:"tilt"`
	LastEstimate *posture.Estimate `json:"lastEstimate,omitempty"`
	LastDecision *posture.Decision `json:"lastDecision,omitempty"`
	LastSampleMs int64             `json:"lastSampleMs"`

	// NextReminderBaseMs is the instant the next reminder is measured from;
	// nil while the timer is disarmed.
	NextReminderBaseMs *int64 `json:"nextReminderBaseMs,omitempty"`

	Settings settings.Settings `json:"settings"`
}

// Status returns a copy of the current monitor state.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	gravity := m.filter.Gravity()
	st := Status{
		Monitoring:   m.monitoring,
		Active:       m.active && m.pushed,
		Rotation:     m.rotation,
		State:        m.debouncer.State(),
		Dwell:        m.debouncer.Dwell(),
		Gravity:      gravity,
		Tilt:         orientation.TiltFromGravity(gravity.X, gravity.Y, gravity.Z),
		LastSampleMs: m.lastSampleMs,
		Settings:     *m.cfg.Load(),
	}
	if st.State.SinceMs != nil {
		v := *st.State.SinceMs
		st.State.SinceMs = &v
	}
	if m.lastEstimate != nil {
		e := *m.lastEstimate
		st.LastEstimate = &e
	}
	if m.lastDecision != nil {
		d := *m.lastDecision
		st.LastDecision = &d
	}
	if base, armed := m.scheduler.LastResetMs(); armed {
		st.NextReminderBaseMs = &base
	}
	return st
}
