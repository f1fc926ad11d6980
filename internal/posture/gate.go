// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package posture

// Signal is the platform's view of whether the device is in active use.
type Signal struct {
	ScreenOn bool `json:"screenOn"`
	Unlocked bool `json:"unlocked"`
}

// SignalReader reads the current interaction signal from the platform.
type SignalReader func() (Signal, error)

// IsActive reports whether classification should run. A failed read counts
// as active: under-detecting beats a silently stalled monitor.
func IsActive(sig Signal, err error) bool {
	if err != nil {
		return true
	}
	return sig.ScreenOn && sig.Unlocked
}

// ReadActive calls read and applies IsActive. A nil reader or a panicking
// reader both count as active.
func ReadActive(read SignalReader) (active bool) {
	if read == nil {
		return true
	}
	defer func() {
		if recover() != nil {
			active = true
		}
	}()
	return IsActive(read())
}
