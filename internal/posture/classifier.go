// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package posture

import "math"

// Mode names the rule that produced a Decision.
type Mode string

const (
	ModeGeometric Mode = "geometric"
	ModeCustom    Mode = "custom"
)

// Decision is the instantaneous (not yet debounced) classification of one
// sample, plus the numbers that led to it.
type Decision struct {
	Candidate bool    `json:"candidate"`
	Mode      Mode    `json:"mode"`
	Upright   bool    `json:"upright"`
	Ratio     float64 `json:"ratio"`

	// Set in custom mode only.
	MatchID       string  `json:"matchId,omitempty"`
	MatchName     string  `json:"matchName,omitempty"`
	MatchDistance float64 `json:"matchDistance,omitempty"`
}

// Classifier decides whether a filtered reading looks like side-lying.
type Classifier struct {
	tuning Tuning
}

// NewClassifier creates a Classifier.
func NewClassifier(t Tuning) Classifier {
	return Classifier{tuning: t.normalized()}
}

// Classify evaluates one reading. With useCustom set and at least one
// reference posture, the nearest reference decides; otherwise the geometric
// rule applies: screen tilted more than 40° from flat and gravity pointing
// mostly to a screen side.
func (c Classifier) Classify(est Estimate, screenX, screenY float64, useCustom bool, refs []ReferencePosture) Decision {
	t := c.tuning
	d := Decision{
		Mode:    ModeGeometric,
		Upright: math.Abs(est.Normal.Z) <= t.UprightCos,
		Ratio:   math.Abs(screenX) / (math.Abs(screenY) + t.RatioEpsilon),
	}

	if useCustom && len(refs) > 0 {
		d.Mode = ModeCustom
		best := -1
		bestDist := math.Inf(1)
		for i, ref := range refs {
			dist := ref.Distance(est.Normal, est.Raw, t.NormalWeight, t.RawWeight)
			if dist < bestDist {
				best, bestDist = i, dist
			}
		}
		if best >= 0 {
			d.MatchID = refs[best].ID
			d.MatchName = refs[best].Name
			d.MatchDistance = bestDist
			d.Candidate = bestDist < t.SimilarityThreshold
		}
		return d
	}

	d.Candidate = d.Upright && d.Ratio > t.SideRatio
	return d
}
