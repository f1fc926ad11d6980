// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/posture_guard/internal/config"
	"github.com/relabs-tech/posture_guard/internal/counter"
	"github.com/relabs-tech/posture_guard/internal/imu"
	"github.com/relabs-tech/posture_guard/internal/metrics"
	"github.com/relabs-tech/posture_guard/internal/monitor"
	"github.com/relabs-tech/posture_guard/internal/posture"
	"github.com/relabs-tech/posture_guard/internal/reminder"
	"github.com/relabs-tech/posture_guard/internal/sensors"
)

const (
	sampleBuffer = 256
	eventBuffer  = 64
)

// RunPostureMonitor reads accelerometer samples, runs the detection core,
// and publishes posture changes, reminders, daily stats and status over
// MQTT. Settings, monitoring, rotation and interaction arrive as MQTT
// commands. It returns when ctx is cancelled.
func RunPostureMonitor(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting posture monitor",
		zap.String("source", cfg.SensorSource),
		zap.Int("sample_interval_ms", cfg.SampleInterval))

	initial, err := cfg.Settings()
	if err != nil {
		return err
	}
	tuning := cfg.Tuning()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDMonitor, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	pub := mqttPublisher{client: client}

	// The counter is optional; reminders still fire without Redis.
	var daily *counter.DailyCounter
	if cfg.RedisAddr != "" {
		rdb, err := counter.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Warn("Redis unavailable, daily counter disabled", zap.Error(err))
		} else {
			defer rdb.Close()
			daily = counter.NewDailyCounter(rdb, cfg.CounterKeyPrefix, cfg.Location())
		}
	}

	sink := monitor.NewChannelSink(eventBuffer)
	m := monitor.New(monitor.Options{
		Tuning:   &tuning,
		Settings: &initial,
		Rotation: cfg.DisplayRotation,
		Location: cfg.Location(),
		Logger:   logger.Named("monitor"),
		Sink:     sink,
	})

	commands := NewCommandHandler(m, commandTopics(cfg), logger)
	for _, topic := range commands.Topics() {
		if err := subscribe(client, topic, func(topic string, payload []byte) {
			if err := commands.Handle(topic, payload); err != nil {
				logger.Warn("rejected command", zap.String("topic", topic), zap.Error(err))
			}
		}, logger); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	samples := make(chan posture.Sample, sampleBuffer)
	var wg sync.WaitGroup
	errCh := make(chan error, 4)

	if cfg.SensorSource == config.SourceMQTT {
		if err := subscribeSamples(client, cfg.TopicSamples, samples, logger); err != nil {
			return err
		}
	} else {
		src, closer, err := openSource(cfg, logger)
		if err != nil {
			return err
		}
		if closer != nil {
			defer closer.Close()
		}
		interval := time.Duration(cfg.SampleInterval) * time.Millisecond
		if cfg.SensorSource == config.SourceSerial {
			interval = 0
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sensors.Stream(ctx, src, interval, samples, logger.Named("sensor")); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("sensor stream: %w", err)
			}
		}()
	}

	pump := NewEventPump(pub, EventTopics{
		Posture:  cfg.TopicPosture,
		Reminder: cfg.TopicReminder,
		Stats:    cfg.TopicStats,
	}, daily, nil, logger.Named("events"))

	var hub *Hub
	if cfg.MonitorHTTPPort > 0 {
		hub = NewHub(logger.Named("ws"))
		defer hub.Close()
		pump.hub = hub
		router := NewRouter(&localController{monitor: m, counter: daily}, hub, "", logger.Named("http"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := Serve(ctx, fmt.Sprintf(":%d", cfg.MonitorHTTPPort), router, logger.Named("http")); err != nil {
				errCh <- err
			}
		}()
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		pump.Run(ctx, sink.Events())
	}()
	go func() {
		defer wg.Done()
		publishStatus(ctx, m, pub, cfg.TopicStatus, time.Duration(cfg.StatusInterval)*time.Millisecond, logger)
	}()
	go func() {
		defer wg.Done()
		if err := m.Run(ctx, samples, reminder.TickInterval); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		logger.Error("posture monitor failed", zap.Error(runErr))
	}
	cancel()
	wg.Wait()
	logger.Info("posture monitor stopped")
	return runErr
}

// openSource builds the polled or streaming sensor for cfg.SensorSource.
func openSource(cfg *config.Config, logger *zap.Logger) (imu.Source, io.Closer, error) {
	switch cfg.SensorSource {
	case config.SourceMock:
		src, err := sensors.NewMockSource(cfg.MockScenario, time.Now)
		return src, nil, err
	case config.SourceMPU9250:
		src, err := sensors.NewMPU9250Source(cfg.IMUSPIDevice, cfg.IMUCSPin, cfg.IMUAccelRange, logger.Named("mpu9250"))
		return src, nil, err
	case config.SourceSerial:
		src, err := sensors.OpenSerialSource(cfg.SerialPort, cfg.SerialBaudRate)
		if err != nil {
			return nil, nil, err
		}
		return src, src, nil
	}
	return nil, nil, fmt.Errorf("unsupported sensor source %q", cfg.SensorSource)
}

// subscribeSamples feeds JSON samples from topic into out. Samples are
// dropped when out is full.
func subscribeSamples(client mqtt.Client, topic string, out chan<- posture.Sample, logger *zap.Logger) error {
	return subscribe(client, topic, func(_ string, payload []byte) {
		var s posture.Sample
		if err := json.Unmarshal(payload, &s); err != nil {
			logger.Warn("bad sample payload", zap.Error(err))
			return
		}
		if s.TimestampMs == 0 {
			s.TimestampMs = time.Now().UnixMilli()
		}
		select {
		case out <- s:
		default:
			metrics.DroppedEvents.WithLabelValues("sample").Inc()
		}
	}, logger)
}

// publishStatus publishes a retained status snapshot every interval.
func publishStatus(ctx context.Context, m *monitor.Monitor, pub Publisher, topic string, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 || topic == "" {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := publishJSON(pub, topic, true, m.Status()); err != nil {
				logger.Warn("status publish failed", zap.Error(err))
			}
		}
	}
}
