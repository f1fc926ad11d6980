// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package settings holds the user-facing reminder configuration snapshot.
// A Settings value is immutable once handed to the monitor; updates replace
// the whole snapshot.
package settings

import (
	"github.com/relabs-tech/posture_guard/internal/posture"
)

const (
	MinThresholdSeconds = 1
	MaxThresholdSeconds = 300
	MaxMinuteOfDay      = 24*60 - 1

	DefaultThresholdSeconds = 5
	DefaultDNDStartMinutes  = 23 * 60
	DefaultDNDEndMinutes    = 7 * 60
)

// Settings is the configuration snapshot read by the detection core.
type Settings struct {
	ThresholdSeconds  int                        `json:"thresholdSeconds"`
	VibrationEnabled  bool                       `json:"vibrationEnabled"`
	DNDEnabled        bool                       `json:"dndEnabled"`
	DNDStartMinutes   int                        `json:"dndStartMinutes"`
	DNDEndMinutes     int                        `json:"dndEndMinutes"`
	UseCustomPostures bool                       `json:"useCustomPostures"`
	Postures          []posture.ReferencePosture `json:"postures,omitempty"`
}

// Defaults mirrors the first-run values of the phone app.
func Defaults() Settings {
	return Settings{
		ThresholdSeconds: DefaultThresholdSeconds,
		VibrationEnabled: true,
		DNDEnabled:       false,
		DNDStartMinutes:  DefaultDNDStartMinutes,
		DNDEndMinutes:    DefaultDNDEndMinutes,
	}
}

// Clamp returns a copy with every numeric field forced into its valid range.
// The posture list is copied so the caller may keep mutating its own slice.
func (s Settings) Clamp() Settings {
	out := s
	out.ThresholdSeconds = ClampThreshold(s.ThresholdSeconds)
	out.DNDStartMinutes = ClampMinuteOfDay(s.DNDStartMinutes)
	out.DNDEndMinutes = ClampMinuteOfDay(s.DNDEndMinutes)
	if s.Postures != nil {
		out.Postures = make([]posture.ReferencePosture, len(s.Postures))
		copy(out.Postures, s.Postures)
	}
	return out
}

// ClampThreshold forces a reminder threshold into [1,300] seconds.
func ClampThreshold(v int) int {
	if v < MinThresholdSeconds {
		return MinThresholdSeconds
	}
	if v > MaxThresholdSeconds {
		return MaxThresholdSeconds
	}
	return v
}

// ClampMinuteOfDay forces v into [0,1439].
func ClampMinuteOfDay(v int) int {
	if v < 0 {
		return 0
	}
	if v > MaxMinuteOfDay {
		return MaxMinuteOfDay
	}
	return v
}
