// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package posture

import "math"

// FlatPrior is the initial gravity estimate: device flat, screen up.
var FlatPrior = Vec3{X: 0, Y: 0, Z: 1}

// Estimate is the filter output for one accepted sample.
type Estimate struct {
	Normal      Vec3    `json:"normal"` // smoothed unit gravity direction
	Raw         Vec3    `json:"raw"`    // unfiltered acceleration of this sample
	G           float64 `json:"g"`      // |a| of this sample
	DeltaG      float64 `json:"deltaG"` // |g - previous g|
	LargeMotion bool    `json:"largeMotion"`
}

// Filter exponentially smooths the gravity unit vector and tracks the
// sample-to-sample change in magnitude.
type Filter struct {
	alpha        float64
	minMagnitude float64
	largeMotion  float64

	avg       Vec3
	lastG     float64
	haveLastG bool
}

// NewFilter creates a Filter seeded with FlatPrior.
func NewFilter(t Tuning) *Filter {
	t = t.normalized()
	return &Filter{
		alpha:        t.Alpha,
		minMagnitude: t.MinMagnitude,
		largeMotion:  t.LargeMotionThreshold,
		avg:          FlatPrior,
	}
}

// Update folds s into the running estimate. It returns ok=false and leaves
// all state untouched for degenerate samples (near-zero or non-finite
// magnitude).
func (f *Filter) Update(s Sample) (Estimate, bool) {
	a := s.Accel()
	if !a.Finite() {
		return Estimate{}, false
	}
	g := a.Norm()
	if g < f.minMagnitude || math.IsInf(g, 0) {
		return Estimate{}, false
	}

	n := a.Scale(1 / g)
	f.avg = Vec3{
		X: f.alpha*n.X + (1-f.alpha)*f.avg.X,
		Y: f.alpha*n.Y + (1-f.alpha)*f.avg.Y,
		Z: f.alpha*n.Z + (1-f.alpha)*f.avg.Z,
	}

	var deltaG float64
	if f.haveLastG {
		deltaG = math.Abs(g - f.lastG)
	}
	f.lastG = g
	f.haveLastG = true

	return Estimate{
		Normal:      f.avg,
		Raw:         a,
		G:           g,
		DeltaG:      deltaG,
		LargeMotion: deltaG > f.largeMotion,
	}, true
}

// Gravity returns the current smoothed gravity direction.
func (f *Filter) Gravity() Vec3 {
	return f.avg
}

// Reset restores the flat prior and forgets the previous magnitude.
func (f *Filter) Reset() {
	f.avg = FlatPrior
	f.lastG = 0
	f.haveLastG = false
}
