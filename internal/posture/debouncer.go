// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package posture

// State is the debounced classification. SinceMs is non-nil iff
// IsSideLying is true.
type State struct {
	IsSideLying bool   `json:"isSideLying"`
	SinceMs     *int64 `json:"sideLyingSinceMs"`
}

// Dwell holds the accumulated time each candidate value has held, capped
// at the matching hold. At most one field is non-zero.
type Dwell struct {
	SideHoldMs   int64 `json:"sideHoldMs"`
	NormalHoldMs int64 `json:"normalHoldMs"`
}

// Debouncer is a Schmitt trigger over dwell time: entering side-lying needs
// EnterHoldMs of continuous candidates, leaving it needs ExitHoldMs of
// continuous non-candidates. Time is measured between samples, so the result
// does not depend on the sampling rate.
type Debouncer struct {
	enterHoldMs int64
	exitHoldMs  int64
	maxStepMs   int64

	state    State
	dwell    Dwell
	lastMs   int64
	haveLast bool
}

// NewDebouncer creates a Debouncer in the normal state.
func NewDebouncer(t Tuning) *Debouncer {
	t = t.normalized()
	return &Debouncer{
		enterHoldMs: t.EnterHoldMs,
		exitHoldMs:  t.ExitHoldMs,
		maxStepMs:   t.MaxStepMs,
	}
}

// Advance accumulates the time since the previous sample into the dwell
// counter matching candidate and applies the transition rules. changed is
// true only when the state flipped.
func (d *Debouncer) Advance(candidate bool, nowMs int64) (state State, changed bool) {
	var dt int64
	if d.haveLast {
		dt = clampStep(nowMs-d.lastMs, d.maxStepMs)
	}
	d.lastMs = nowMs
	d.haveLast = true

	// Counters saturate at their hold.
	if candidate {
		d.dwell.SideHoldMs = min(d.dwell.SideHoldMs+dt, d.enterHoldMs)
		d.dwell.NormalHoldMs = 0
	} else {
		d.dwell.NormalHoldMs = min(d.dwell.NormalHoldMs+dt, d.exitHoldMs)
		d.dwell.SideHoldMs = 0
	}

	switch {
	case !d.state.IsSideLying && d.dwell.SideHoldMs >= d.enterHoldMs:
		since := nowMs
		d.state = State{IsSideLying: true, SinceMs: &since}
		changed = true
	case d.state.IsSideLying && d.dwell.NormalHoldMs >= d.exitHoldMs:
		d.state = State{}
		changed = true
	}
	return d.state, changed
}

// ForceNormal performs a hard transition to normal, bypassing the exit hold,
// and clears all dwell. The next sample measures its step from nowMs.
func (d *Debouncer) ForceNormal(nowMs int64) (changed bool) {
	changed = d.state.IsSideLying
	d.state = State{}
	d.dwell = Dwell{}
	d.lastMs = nowMs
	d.haveLast = true
	return changed
}

// State returns the current debounced state.
func (d *Debouncer) State() State {
	return d.state
}

// Dwell returns the current dwell accumulators.
func (d *Debouncer) Dwell() Dwell {
	return d.dwell
}

// Reset returns the debouncer to its initial state.
func (d *Debouncer) Reset() {
	d.state = State{}
	d.dwell = Dwell{}
	d.lastMs = 0
	d.haveLast = false
}

func clampStep(dt, max int64) int64 {
	if dt < 0 {
		return 0
	}
	if dt > max {
		return max
	}
	return dt
}
