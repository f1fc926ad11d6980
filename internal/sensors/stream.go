// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/posture_guard/internal/imu"
	"github.com/relabs-tech/posture_guard/internal/posture"
)

// Stream reads src and forwards samples to out until ctx is done or the
// source reports io.EOF. Polled sources (mock, SPI) are read every
// interval; with interval <= 0 the source is read back to back, which
// suits blocking sources such as a serial line. Read errors are logged
// and skipped.
func Stream(ctx context.Context, src imu.Source, interval time.Duration, out chan<- posture.Sample, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		s, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			logger.Warn("sensor read error", zap.Error(err))
			continue
		}

		select {
		case out <- s:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
