// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"math"
	"time"

	"github.com/relabs-tech/posture_guard/internal/imu"
	"github.com/relabs-tech/posture_guard/internal/posture"
)

// Mock scenarios.
const (
	ScenarioSide      = "side"      // held upright, rolled onto the left edge
	ScenarioFlat      = "flat"      // face up on a table
	ScenarioAlternate = "alternate" // 20s side, 20s upright portrait, repeating
	ScenarioWalk      = "walk"      // portrait with periodic acceleration spikes
)

const alternatePeriod = 40 * time.Second

type mockSource struct {
	scenario string
	start    time.Time
	now      func() time.Time
}

// NewMockSource creates a scripted accelerometer source. now defaults to
// time.Now.
func NewMockSource(scenario string, now func() time.Time) (imu.Source, error) {
	switch scenario {
	case ScenarioSide, ScenarioFlat, ScenarioAlternate, ScenarioWalk:
	default:
		return nil, fmt.Errorf("unknown mock scenario %q", scenario)
	}
	if now == nil {
		now = time.Now
	}
	return &mockSource{scenario: scenario, start: now(), now: now}, nil
}

func (m *mockSource) Next() (posture.Sample, error) {
	t := m.now()
	a := MockAcceleration(m.scenario, t.Sub(m.start))
	return posture.Sample{Ax: a.X, Ay: a.Y, Az: a.Z, TimestampMs: t.UnixMilli()}, nil
}

// MockAcceleration returns the scripted acceleration (m/s²) of a scenario
// at elapsed. A small hand tremor is added to every scenario.
func MockAcceleration(scenario string, elapsed time.Duration) posture.Vec3 {
	s := elapsed.Seconds()
	tremor := 0.08 * math.Sin(s*7.3)

	side := posture.Vec3{X: imu.StandardGravity*0.97 + tremor, Y: 0.6 + tremor, Z: 2.0}
	portrait := posture.Vec3{X: tremor, Y: imu.StandardGravity*0.9 + tremor, Z: 3.5}

	switch scenario {
	case ScenarioSide:
		return side
	case ScenarioFlat:
		return posture.Vec3{X: tremor, Y: tremor, Z: imu.StandardGravity}
	case ScenarioAlternate:
		if elapsed%alternatePeriod < alternatePeriod/2 {
			return side
		}
		return portrait
	case ScenarioWalk:
		// 150ms step impact every 600ms.
		if elapsed%(600*time.Millisecond) < 150*time.Millisecond {
			return portrait.Scale(1.35)
		}
		return portrait
	}
	return posture.Vec3{Z: imu.StandardGravity}
}
