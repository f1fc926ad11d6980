package app

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/relabs-tech/posture_guard/internal/posture"
	"github.com/relabs-tech/posture_guard/internal/sensors"
)

func assertVecNear(t *testing.T, want, got posture.Vec3) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-9)
	assert.InDelta(t, want.Y, got.Y, 1e-9)
	assert.InDelta(t, want.Z, got.Z, 1e-9)
}

func TestPostureCapture_StillDevice(t *testing.T) {
	c := NewPostureCapture(posture.DefaultTuning())
	for ts := int64(0); ts <= 3000; ts += 50 {
		c.Add(posture.Sample{Ax: 9.8, TimestampMs: ts})
	}

	ref, spread, err := c.Result("Left in bed")
	require.NoError(t, err)
	assert.NotEmpty(t, ref.ID)
	assert.Equal(t, "Left in bed", ref.Name)
	assert.InDelta(t, 1.0, ref.Normal.X, 0.05)
	assert.InDelta(t, 0.0, ref.Normal.Z, 0.05)
	assertVecNear(t, posture.Vec3{X: 9.8}, ref.Raw)
	assert.Less(t, spread, 0.05)
	assert.Equal(t, 41, c.Samples(), "warm-up samples are not averaged")

	// The captured posture matches its own source in custom mode.
	d := posture.NewClassifier(posture.DefaultTuning()).Classify(
		posture.Estimate{Normal: posture.Vec3{X: 1}, Raw: posture.Vec3{X: 9.8}},
		1, 0, true, []posture.ReferencePosture{ref})
	assert.True(t, d.Candidate)
}

func TestPostureCapture_MovingDevice(t *testing.T) {
	c := NewPostureCapture(posture.DefaultTuning())
	for ts := int64(0); ts <= 5000; ts += 50 {
		s := posture.Sample{Ax: 9.8, TimestampMs: ts}
		if (ts/1000)%2 == 1 {
			s = posture.Sample{Az: 9.8, TimestampMs: ts}
		}
		c.Add(s)
	}

	_, spread, err := c.Result("wobbly")
	assert.ErrorIs(t, err, ErrCaptureUnstable)
	assert.Greater(t, spread, captureMaxSpread)
}

func TestPostureCapture_TooShort(t *testing.T) {
	c := NewPostureCapture(posture.DefaultTuning())
	for ts := int64(0); ts <= 1200; ts += 50 {
		c.Add(posture.Sample{Ax: 9.8, TimestampMs: ts})
	}
	_, _, err := c.Result("short")
	assert.ErrorContains(t, err, "samples captured")
}

func TestPostureCapture_SkipsDegenerateSamples(t *testing.T) {
	c := NewPostureCapture(posture.DefaultTuning())
	for ts := int64(0); ts <= 3000; ts += 50 {
		c.Add(posture.Sample{Ax: 9.8, TimestampMs: ts})
		c.Add(posture.Sample{TimestampMs: ts})
	}
	ref, _, err := c.Result("side")
	require.NoError(t, err)
	assertVecNear(t, posture.Vec3{X: 9.8}, ref.Raw)
}

type sliceSource struct {
	samples []posture.Sample
}

func (s *sliceSource) Next() (posture.Sample, error) {
	if len(s.samples) == 0 {
		return posture.Sample{}, io.EOF
	}
	next := s.samples[0]
	s.samples = s.samples[1:]
	return next, nil
}

func TestStreamSamples_ClosesAtEndOfSource(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	src := &sliceSource{samples: []posture.Sample{{Ax: 9.8, TimestampMs: 1}, {Az: 9.8, TimestampMs: 2}}}

	var got []posture.Sample
	for s := range streamSamples(context.Background(), src, 0, zap.New(core)) {
		got = append(got, s)
	}
	assert.Len(t, got, 2)
	assert.Zero(t, logs.FilterMessage("sensor stream stopped").Len())
}

func TestStreamSamples_CaptureWindowEndIsNotAnError(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	src, err := sensors.NewMockSource("side", time.Now)
	require.NoError(t, err)
	for range streamSamples(ctx, src, time.Millisecond, zap.New(core)) {
	}
	assert.Zero(t, logs.FilterMessage("sensor stream stopped").Len())
}
