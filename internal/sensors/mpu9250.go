// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/posture_guard/internal/imu"
	"github.com/relabs-tech/posture_guard/internal/posture"
)

type mpu9250Source struct {
	imu        *mpu9250.MPU9250
	accelRange byte
	now        func() time.Time
}

// NewMPU9250Source initializes an MPU9250 over SPI and returns a source
// reading its accelerometer.
func NewMPU9250Source(spiDev, csPin string, accelRange byte, logger *zap.Logger) (imu.Source, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, fmt.Errorf("IMU CS pin %q not found", csPin)
	}

	tr, err := mpu9250.NewSpiTransport(spiDev, cs)
	if err != nil {
		return nil, fmt.Errorf("IMU SPI transport (%s): %w", spiDev, err)
	}

	dev, err := mpu9250.New(tr)
	if err != nil {
		return nil, fmt.Errorf("IMU device creation: %w", err)
	}

	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("IMU initialization: %w", err)
	}

	if _, err := dev.SelfTest(); err != nil {
		logger.Warn("IMU self-test failed", zap.Error(err))
	}
	if err := dev.Calibrate(); err != nil {
		logger.Warn("IMU calibration failed", zap.Error(err))
	}

	if err := dev.SetAccelRange(accelRange); err != nil {
		return nil, fmt.Errorf("IMU set accel range: %w", err)
	}
	logger.Info("IMU ready",
		zap.String("spi", spiDev),
		zap.String("cs", csPin),
		zap.Int("accel_range_g", []int{2, 4, 8, 16}[accelRange&3]),
	)

	return &mpu9250Source{imu: dev, accelRange: accelRange, now: time.Now}, nil
}

// Next reads the accelerometer and converts counts to m/s².
func (s *mpu9250Source) Next() (posture.Sample, error) {
	ax, err := s.imu.GetAccelerationX()
	if err != nil {
		return posture.Sample{}, fmt.Errorf("IMU accel X: %w", err)
	}
	ay, err := s.imu.GetAccelerationY()
	if err != nil {
		return posture.Sample{}, fmt.Errorf("IMU accel Y: %w", err)
	}
	az, err := s.imu.GetAccelerationZ()
	if err != nil {
		return posture.Sample{}, fmt.Errorf("IMU accel Z: %w", err)
	}

	r := imu.Reading{Source: "mpu9250", Ax: ax, Ay: ay, Az: az, Range: s.accelRange}
	return r.Sample(s.now().UnixMilli()), nil
}
