// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package reminder decides when a side-lying reminder fires.
package reminder

import (
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/posture_guard/internal/posture"
	"github.com/relabs-tech/posture_guard/internal/settings"
)

// TickInterval is the cadence the scheduler expects to be driven at.
const TickInterval = time.Second

// Event is emitted each time a reminder fires.
type Event struct {
	ID               string `json:"id"`
	FiredAtMs        int64  `json:"firedAtMs"`
	ShouldVibrate    bool   `json:"shouldVibrate"`
	SideLyingSinceMs int64  `json:"sideLyingSinceMs"`
	ElapsedMs        int64  `json:"elapsedMs"`
	IncrementCounter bool   `json:"incrementCounter"`
}

// Verdict explains the outcome of a tick.
type Verdict int

const (
	VerdictNotSideLying Verdict = iota
	VerdictBelowThreshold
	VerdictQuietHours
	VerdictFired
)

func (v Verdict) String() string {
	switch v {
	case VerdictNotSideLying:
		return "not_side_lying"
	case VerdictBelowThreshold:
		return "below_threshold"
	case VerdictQuietHours:
		return "quiet_hours"
	case VerdictFired:
		return "fired"
	}
	return "unknown"
}

// Scheduler holds the reminder timer. The timer is armed from the posture
// onset and re-armed every time a reminder fires. It is not safe for
// concurrent use; the monitor serializes access.
type Scheduler struct {
	lastResetMs int64
	onsetMs     int64
	armed       bool
	newID       func() string
}

// NewScheduler creates a disarmed scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{newID: uuid.NewString}
}

// Tick evaluates the reminder rule at nowMs. loc is the zone quiet hours are
// expressed in; nil means time.Local.
//
// The timer is never reset while below the threshold or inside quiet hours,
// so accumulated time is honoured as soon as both conditions clear.
func (s *Scheduler) Tick(nowMs int64, state posture.State, cfg settings.Settings, loc *time.Location) (*Event, Verdict) {
	if !state.IsSideLying || state.SinceMs == nil {
		s.armed = false
		return nil, VerdictNotSideLying
	}
	if !s.armed || s.onsetMs != *state.SinceMs {
		s.onsetMs = *state.SinceMs
		s.lastResetMs = s.onsetMs
		s.armed = true
	}

	elapsed := nowMs - s.lastResetMs
	if elapsed < int64(settings.ClampThreshold(cfg.ThresholdSeconds))*1000 {
		return nil, VerdictBelowThreshold
	}
	if cfg.DNDEnabled {
		start := settings.ClampMinuteOfDay(cfg.DNDStartMinutes)
		end := settings.ClampMinuteOfDay(cfg.DNDEndMinutes)
		if InQuietHours(MinuteOfDay(nowMs, loc), start, end) {
			return nil, VerdictQuietHours
		}
	}

	s.lastResetMs = nowMs
	return &Event{
		ID:               s.newID(),
		FiredAtMs:        nowMs,
		ShouldVibrate:    cfg.VibrationEnabled,
		SideLyingSinceMs: s.onsetMs,
		ElapsedMs:        elapsed,
		IncrementCounter: true,
	}, VerdictFired
}

// LastResetMs returns the instant the next reminder is measured from, and
// whether the timer is armed.
func (s *Scheduler) LastResetMs() (int64, bool) {
	return s.lastResetMs, s.armed
}

// Reset disarms the timer.
func (s *Scheduler) Reset() {
	s.lastResetMs = 0
	s.onsetMs = 0
	s.armed = false
}

// MinuteOfDay returns the wall-clock minute of day (0..1439) of nowMs in loc.
func MinuteOfDay(nowMs int64, loc *time.Location) int {
	if loc == nil {
		loc = time.Local
	}
	t := time.UnixMilli(nowMs).In(loc)
	return t.Hour()*60 + t.Minute()
}

// InQuietHours reports whether minute lies in [start, end). A window with
// start > end spans midnight; start == end is an empty window.
func InQuietHours(minute, start, end int) bool {
	if start <= end {
		return minute >= start && minute < end
	}
	return minute >= start || minute < end
}
