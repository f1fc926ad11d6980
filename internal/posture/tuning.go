// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package posture turns raw accelerometer samples into a debounced
// side-lying / normal classification.
//
// The pipeline is causal and constant-memory:
//
//	Sample -> Filter -> ToScreen -> Classifier -> Debouncer -> State
//
// Nothing here blocks, allocates per sample beyond small values, or does I/O.
package posture

import "math"

// Tuning groups the empirically tuned constants of the pipeline.
// DefaultTuning returns the values the phone app shipped with.
type Tuning struct {
	// Filter
	Alpha                float64 // exponential smoothing factor for the gravity direction
	MinMagnitude         float64 // samples with |a| below this are discarded
	LargeMotionThreshold float64 // |g - lastG| above this forces state back to normal

	// Geometric rule
	UprightCos   float64 // |nz| <= UprightCos means the screen is tilted > 40° from flat
	SideRatio    float64 // |screenX| / (|screenY| + RatioEpsilon) must exceed this
	RatioEpsilon float64

	// Reference posture matching
	SimilarityThreshold float64
	NormalWeight        float64
	RawWeight           float64

	// Debouncer (milliseconds)
	EnterHoldMs int64
	ExitHoldMs  int64
	MaxStepMs   int64
}

// DefaultTuning returns the reference constants.
func DefaultTuning() Tuning {
	return Tuning{
		Alpha:                0.15,
		MinMagnitude:         1e-3,
		LargeMotionThreshold: 2.0,

		UprightCos:   0.766, // cos(40°)
		SideRatio:    1.8,
		RatioEpsilon: 1e-3,

		SimilarityThreshold: 0.5,
		NormalWeight:        0.9,
		RawWeight:           0.1,

		EnterHoldMs: 1000,
		ExitHoldMs:  1500,
		MaxStepMs:   500,
	}
}

// normalized replaces any unusable field with its default so a bad override
// never stalls detection.
func (t Tuning) normalized() Tuning {
	d := DefaultTuning()
	if !(t.Alpha > 0 && t.Alpha <= 1) {
		t.Alpha = d.Alpha
	}
	if !positive(t.MinMagnitude) {
		t.MinMagnitude = d.MinMagnitude
	}
	if !positive(t.LargeMotionThreshold) {
		t.LargeMotionThreshold = d.LargeMotionThreshold
	}
	if !(t.UprightCos > 0 && t.UprightCos <= 1) {
		t.UprightCos = d.UprightCos
	}
	if !positive(t.SideRatio) {
		t.SideRatio = d.SideRatio
	}
	if !positive(t.RatioEpsilon) {
		t.RatioEpsilon = d.RatioEpsilon
	}
	if !positive(t.SimilarityThreshold) {
		t.SimilarityThreshold = d.SimilarityThreshold
	}
	if !nonNegative(t.NormalWeight) || !nonNegative(t.RawWeight) || t.NormalWeight+t.RawWeight == 0 {
		t.NormalWeight, t.RawWeight = d.NormalWeight, d.RawWeight
	}
	if t.EnterHoldMs <= 0 {
		t.EnterHoldMs = d.EnterHoldMs
	}
	if t.ExitHoldMs <= 0 {
		t.ExitHoldMs = d.ExitHoldMs
	}
	if t.MaxStepMs <= 0 {
		t.MaxStepMs = d.MaxStepMs
	}
	return t
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

func nonNegative(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0)
}
