// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relabs-tech/posture_guard/internal/config"
	"github.com/relabs-tech/posture_guard/internal/imu"
	"github.com/relabs-tech/posture_guard/internal/posture"
	"github.com/relabs-tech/posture_guard/internal/sensors"
)

const (
	// captureWarmup lets the smoothed normal converge away from the flat
	// prior before samples are averaged.
	captureWarmup = time.Second
	// captureMinSamples is the fewest accepted samples a capture may use.
	captureMinSamples = 10
	// captureMaxSpread is the largest RMS deviation of the normal from its
	// mean before the capture is rejected as not still.
	captureMaxSpread = 0.15
)

// ErrCaptureUnstable is returned when the device moved during a capture.
var ErrCaptureUnstable = errors.New("device was not held still")

// PostureCapture averages the smoothed normal and raw acceleration of a
// still device into a ReferencePosture.
type PostureCapture struct {
	filter  *posture.Filter
	startMs int64
	started bool

	n      int
	moved  int
	sumN   posture.Vec3
	sumRaw posture.Vec3
	sumNSq float64
}

func NewPostureCapture(t posture.Tuning) *PostureCapture {
	return &PostureCapture{filter: posture.NewFilter(t)}
}

// Add folds one sample into the capture.
func (c *PostureCapture) Add(s posture.Sample) {
	if !c.started {
		c.startMs = s.TimestampMs
		c.started = true
	}
	est, ok := c.filter.Update(s)
	if !ok {
		return
	}
	if est.LargeMotion {
		c.moved++
		return
	}
	if s.TimestampMs-c.startMs < captureWarmup.Milliseconds() {
		return
	}
	c.n++
	c.sumN = posture.Vec3{X: c.sumN.X + est.Normal.X, Y: c.sumN.Y + est.Normal.Y, Z: c.sumN.Z + est.Normal.Z}
	c.sumRaw = posture.Vec3{X: c.sumRaw.X + est.Raw.X, Y: c.sumRaw.Y + est.Raw.Y, Z: c.sumRaw.Z + est.Raw.Z}
	c.sumNSq += est.Normal.X*est.Normal.X + est.Normal.Y*est.Normal.Y + est.Normal.Z*est.Normal.Z
}

// Samples returns the number of samples averaged so far.
func (c *PostureCapture) Samples() int {
	return c.n
}

// Result builds the reference posture. The spread is the RMS distance of
// the averaged normals from their mean.
func (c *PostureCapture) Result(name string) (posture.ReferencePosture, float64, error) {
	if c.n < captureMinSamples {
		return posture.ReferencePosture{}, 0, fmt.Errorf("only %d samples captured, need %d", c.n, captureMinSamples)
	}
	k := 1 / float64(c.n)
	meanN := c.sumN.Scale(k)
	meanRaw := c.sumRaw.Scale(k)

	variance := c.sumNSq*k - (meanN.X*meanN.X + meanN.Y*meanN.Y + meanN.Z*meanN.Z)
	spread := math.Sqrt(math.Max(variance, 0))
	if spread > captureMaxSpread || c.moved > c.n/10 {
		return posture.ReferencePosture{}, spread, ErrCaptureUnstable
	}

	ref := posture.ReferencePosture{
		ID:     uuid.NewString(),
		Name:   name,
		Normal: meanN,
		Raw:    meanRaw,
	}
	return ref, spread, ref.Validate()
}

// RunPostureCapture records the current posture for duration and appends
// it to the custom postures file.
func RunPostureCapture(ctx context.Context, cfg *config.Config, name string, duration time.Duration, logger *zap.Logger) (posture.ReferencePosture, error) {
	if cfg.CustomPosturesFile == "" {
		return posture.ReferencePosture{}, fmt.Errorf("CUSTOM_POSTURES_FILE is not set")
	}
	if cfg.SensorSource == config.SourceMQTT {
		return posture.ReferencePosture{}, fmt.Errorf("posture capture needs a local sensor, not %q", cfg.SensorSource)
	}

	src, closer, err := openSource(cfg, logger)
	if err != nil {
		return posture.ReferencePosture{}, err
	}
	if closer != nil {
		defer closer.Close()
	}

	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	interval := time.Duration(cfg.SampleInterval) * time.Millisecond
	if cfg.SensorSource == config.SourceSerial {
		interval = 0
	}
	samples := streamSamples(ctx, src, interval, logger)

	logger.Info("capturing posture, hold the device still",
		zap.String("name", name), zap.Duration("duration", duration))
	capture := NewPostureCapture(cfg.Tuning())
	for s := range samples {
		capture.Add(s)
	}

	ref, spread, err := capture.Result(name)
	if err != nil {
		return posture.ReferencePosture{}, fmt.Errorf("capture %q (spread %.3f): %w", name, spread, err)
	}

	refs, err := posture.LoadReferencePostures(cfg.CustomPosturesFile)
	if err != nil {
		return posture.ReferencePosture{}, err
	}
	refs = append(refs, ref)
	if err := posture.SaveReferencePostures(cfg.CustomPosturesFile, refs); err != nil {
		return posture.ReferencePosture{}, err
	}
	logger.Info("posture saved",
		zap.String("id", ref.ID),
		zap.String("file", cfg.CustomPosturesFile),
		zap.Int("samples", capture.Samples()),
		zap.Float64("spread", spread))
	return ref, nil
}

// streamSamples reads src in the background. The returned channel closes
// when the stream ends; errors other than ctx ending are logged.
func streamSamples(ctx context.Context, src imu.Source, interval time.Duration, logger *zap.Logger) <-chan posture.Sample {
	samples := make(chan posture.Sample, sampleBuffer)
	go func() {
		defer close(samples)
		err := sensors.Stream(ctx, src, interval, samples, logger)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			logger.Error("sensor stream stopped", zap.Error(err))
		}
	}()
	return samples
}
