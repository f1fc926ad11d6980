// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"github.com/relabs-tech/posture_guard/internal/posture"
)

// StandardGravity in m/s².
const StandardGravity = 9.80665

// Reading represents a single raw accelerometer sample in sensor counts.
type Reading struct {
	Source string `json:"source"` // "mpu9250", "serial", "mock"

	Ax int16 `json:"ax"`
	Ay int16 `json:"ay"`
	Az int16 `json:"az"`

	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	Range byte `json:"range"`
}

// LSBPerG returns the counts per g for an MPU-9250 accelerometer range.
func LSBPerG(rangeSel byte) float64 {
	switch rangeSel {
	case 1:
		return 8192
	case 2:
		return 4096
	case 3:
		return 2048
	default:
		return 16384
	}
}

// Sample converts the reading to m/s² stamped with ts.
func (r Reading) Sample(ts int64) posture.Sample {
	k := StandardGravity / LSBPerG(r.Range)
	return posture.Sample{
		Ax:          float64(r.Ax) * k,
		Ay:          float64(r.Ay) * k,
		Az:          float64(r.Az) * k,
		TimestampMs: ts,
	}
}

// Source is anything that can provide accelerometer samples over time.
type Source interface {
	Next() (posture.Sample, error)
}
