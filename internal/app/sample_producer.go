// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/posture_guard/internal/config"
	"github.com/relabs-tech/posture_guard/internal/posture"
	"github.com/relabs-tech/posture_guard/internal/sensors"
)

// RunSampleProducer publishes raw samples from the configured local sensor
// to TOPIC_SAMPLES, for a monitor running with SENSOR_SOURCE=mqtt.
func RunSampleProducer(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if cfg.SensorSource == config.SourceMQTT {
		return fmt.Errorf("sample producer needs a local sensor, not %q", cfg.SensorSource)
	}
	src, closer, err := openSource(cfg, logger)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDProducer, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	pub := mqttPublisher{client: client}

	interval := time.Duration(cfg.SampleInterval) * time.Millisecond
	if cfg.SensorSource == config.SourceSerial {
		interval = 0
	}
	samples := make(chan posture.Sample, sampleBuffer)
	errCh := make(chan error, 1)
	go func() {
		defer close(samples)
		errCh <- sensors.Stream(ctx, src, interval, samples, logger)
	}()

	logger.Info("publishing samples", zap.String("topic", cfg.TopicSamples), zap.String("source", cfg.SensorSource))
	var published int
	for s := range samples {
		if err := publishJSON(pub, cfg.TopicSamples, false, s); err != nil {
			logger.Warn("sample publish failed", zap.Error(err))
			continue
		}
		published++
		if published%100 == 0 {
			logger.Debug("samples published", zap.Int("count", published))
		}
	}

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
