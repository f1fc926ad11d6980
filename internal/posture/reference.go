// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package posture

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrInvalidReference is returned when a reference posture document cannot
// be used.
var ErrInvalidReference = errors.New("invalid reference posture")

// ReferencePosture is a user-recorded posture snapshot. Values are never
// mutated after load; updates replace the whole list.
type ReferencePosture struct {
	ID     string
	Name   string
	Normal Vec3 // smoothed gravity direction at capture time
	Raw    Vec3 // raw acceleration at capture time (m/s²)
}

// referenceJSON is the on-wire form used by the phone app.
type referenceJSON struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	AvgNx float64 `json:"avgNx"`
	AvgNy float64 `json:"avgNy"`
	AvgNz float64 `json:"avgNz"`
	RawAx float64 `json:"rawAx"`
	RawAy float64 `json:"rawAy"`
	RawAz float64 `json:"rawAz"`
}

func (p ReferencePosture) MarshalJSON() ([]byte, error) {
	return json.Marshal(referenceJSON{
		ID: p.ID, Name: p.Name,
		AvgNx: p.Normal.X, AvgNy: p.Normal.Y, AvgNz: p.Normal.Z,
		RawAx: p.Raw.X, RawAy: p.Raw.Y, RawAz: p.Raw.Z,
	})
}

func (p *ReferencePosture) UnmarshalJSON(data []byte) error {
	var w referenceJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = ReferencePosture{
		ID:     w.ID,
		Name:   w.Name,
		Normal: Vec3{X: w.AvgNx, Y: w.AvgNy, Z: w.AvgNz},
		Raw:    Vec3{X: w.RawAx, Y: w.RawAy, Z: w.RawAz},
	}
	return nil
}

// Validate checks the posture has an ID and finite vectors.
func (p ReferencePosture) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidReference)
	}
	if !p.Normal.Finite() || !p.Raw.Finite() {
		return fmt.Errorf("%w: %s has non-finite values", ErrInvalidReference, p.ID)
	}
	return nil
}

// Distance is the weighted squared distance between the posture and the
// current smoothed normal / raw acceleration. Gravity direction dominates;
// raw acceleration carries hand tremor and only nudges the result.
func (p ReferencePosture) Distance(normal, raw Vec3, normalWeight, rawWeight float64) float64 {
	return p.Normal.DistSq(normal)*normalWeight + p.Raw.DistSq(raw)*rawWeight
}

// ParseReferencePostures decodes a JSON array of postures. The document is
// accepted or rejected as a whole.
func ParseReferencePostures(data []byte) ([]ReferencePosture, error) {
	var out []ReferencePosture
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	for _, p := range out {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// LoadReferencePostures reads a posture document from disk. A missing file
// yields an empty list.
func LoadReferencePostures(path string) ([]ReferencePosture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read reference postures: %w", err)
	}
	return ParseReferencePostures(data)
}

// SaveReferencePostures writes the list as an indented JSON document.
func SaveReferencePostures(path string, postures []ReferencePosture) error {
	if postures == nil {
		postures = []ReferencePosture{}
	}
	data, err := json.MarshalIndent(postures, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode reference postures: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write reference postures: %w", err)
	}
	return nil
}
