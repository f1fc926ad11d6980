// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package posture

import "math"

// Sample is one accelerometer reading in m/s² (resting |a| ≈ 9.8).
type Sample struct {
	Ax          float64 `json:"ax"`
	Ay          float64 `json:"ay"`
	Az          float64 `json:"az"`
	TimestampMs int64   `json:"ts"`
}

// Vec3 is a 3D vector in device frame.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Accel returns the acceleration vector of the sample.
func (s Sample) Accel() Vec3 {
	return Vec3{X: s.Ax, Y: s.Ay, Z: s.Az}
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Scale returns v multiplied by k.
func (v Vec3) Scale(k float64) Vec3 {
	return Vec3{X: v.X * k, Y: v.Y * k, Z: v.Z * k}
}

// DistSq returns the squared Euclidean distance between v and o.
func (v Vec3) DistSq(o Vec3) float64 {
	dx := v.X - o.X
	dy := v.Y - o.Y
	dz := v.Z - o.Z
	return dx*dx + dy*dy + dz*dz
}

// Finite reports whether no component is NaN or ±Inf.
func (v Vec3) Finite() bool {
	return finite(v.X) && finite(v.Y) && finite(v.Z)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
