// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package orientation derives human-readable angles from a gravity vector.
// The detection core never uses these; they feed status payloads and the
// capture tool.
package orientation

import (
	"math"
)

// Pose is roll/pitch in degrees. Yaw is unobservable from gravity alone.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
}

// ComputePoseFromAccel computes roll and pitch from accelerometer data only.
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func ComputePoseFromAccel(ax, ay, az float64) Pose {
	rollRad := math.Atan2(ay, az)
	pitchRad := math.Atan2(-ax, math.Sqrt(ay*ay+az*az))

	return Pose{
		Roll:  rollRad * 180.0 / math.Pi,
		Pitch: pitchRad * 180.0 / math.Pi,
	}
}

// Tilt describes how the screen is held relative to gravity.
type Tilt struct {
	Pose
	// ScreenTilt is the angle between the screen normal and gravity:
	// 0 when lying flat face up, 90 when held vertical.
	ScreenTilt float64 `json:"screenTilt"`
	// SideRoll is the in-plane angle of gravity, 0 when the bottom edge
	// points down and ±90 when a long edge points down.
	SideRoll float64 `json:"sideRoll"`
}

// TiltFromGravity computes Tilt from a (not necessarily unit) gravity
// vector in device frame. A zero vector yields the flat pose.
func TiltFromGravity(nx, ny, nz float64) Tilt {
	g := math.Sqrt(nx*nx + ny*ny + nz*nz)
	if g < 1e-9 {
		return Tilt{}
	}
	cosTilt := math.Abs(nz) / g
	if cosTilt > 1 {
		cosTilt = 1
	}
	return Tilt{
		Pose:       ComputePoseFromAccel(nx, ny, nz),
		ScreenTilt: math.Acos(cosTilt) * 180.0 / math.Pi,
		SideRoll:   math.Atan2(nx, ny) * 180.0 / math.Pi,
	}
}
