// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/posture_guard/internal/config"
	"github.com/relabs-tech/posture_guard/internal/monitor"
	"github.com/relabs-tech/posture_guard/internal/reminder"
	"github.com/relabs-tech/posture_guard/internal/sensors"
)

// RunMockConsole runs the detection core on the mock sensor without a
// broker and prints events and a status line every second.
func RunMockConsole(ctx context.Context, cfg *config.Config, out io.Writer, logger *zap.Logger) error {
	initial, err := cfg.Settings()
	if err != nil {
		return err
	}
	tuning := cfg.Tuning()

	src, err := sensors.NewMockSource(cfg.MockScenario, time.Now)
	if err != nil {
		return err
	}

	m := monitor.New(monitor.Options{
		Tuning:   &tuning,
		Settings: &initial,
		Rotation: cfg.DisplayRotation,
		Location: cfg.Location(),
		Logger:   logger,
		Sink: monitor.SinkFuncs{
			OnPosture:  func(ev monitor.PostureEvent) { fmt.Fprintln(out, formatPosture(ev)) },
			OnReminder: func(ev reminder.Event) { fmt.Fprintln(out, formatReminder(ev)) },
		},
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	samples := streamSamples(ctx, src, time.Duration(cfg.SampleInterval)*time.Millisecond, logger)

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Fprintln(out, formatStatus(m.Status()))
			}
		}
	}()

	err = m.Run(ctx, samples, reminder.TickInterval)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
