// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package posture

import (
	"errors"
	"fmt"
)

// ErrInvalidRotation is returned for display rotations that are not a
// multiple of 90 degrees.
var ErrInvalidRotation = errors.New("invalid display rotation")

// Rotation is the display rotation in degrees.
type Rotation int

const (
	Rotation0   Rotation = 0
	Rotation90  Rotation = 90
	Rotation180 Rotation = 180
	Rotation270 Rotation = 270
)

// ParseRotation accepts any multiple of 90 degrees, including negative
// values, and normalizes it into [0,360).
func ParseRotation(deg int) (Rotation, error) {
	if deg%90 != 0 {
		return Rotation0, fmt.Errorf("%w: %d", ErrInvalidRotation, deg)
	}
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return Rotation(deg), nil
}

// Valid reports whether r is one of the four supported rotations.
func (r Rotation) Valid() bool {
	switch r {
	case Rotation0, Rotation90, Rotation180, Rotation270:
		return true
	}
	return false
}

// ToScreen maps the device-frame gravity projection (nx, ny) onto the screen
// plane so "left/right" means screen left/right regardless of how the
// device is held. Unknown rotations map as identity.
func ToScreen(nx, ny float64, r Rotation) (x, y float64) {
	switch r {
	case Rotation90:
		return -ny, nx
	case Rotation180:
		return -nx, -ny
	case Rotation270:
		return ny, -nx
	default:
		return nx, ny
	}
}
