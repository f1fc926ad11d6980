// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// ./cmd/posture_capture/main.go
//
// Records the current device posture as a custom reference posture.
// Hold the device in the posture to capture and keep it still for the
// whole capture window. The averaged smoothed normal and raw acceleration
// are appended to CUSTOM_POSTURES_FILE.
//
// Run:
//
//	go run ./cmd/posture_capture -name "Left in bed"
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/posture_guard/internal/app"
	"github.com/relabs-tech/posture_guard/internal/config"
	"github.com/relabs-tech/posture_guard/internal/logging"
)

func main() {
	configPath := flag.String("config", "./posture_config.txt", "path to configuration file")
	name := flag.String("name", "", "display name of the captured posture")
	duration := flag.Duration("duration", 5*time.Second, "capture window")
	flag.Parse()

	if *name == "" {
		log.Fatalf("-name is required")
	}
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	logger := logging.MustNewLogger(cfg.LogLevel, cfg.LogFormat, "posture-capture")
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ref, err := app.RunPostureCapture(ctx, cfg, *name, *duration, logger)
	if err != nil {
		logger.Fatal("capture failed", zap.Error(err))
	}
	fmt.Printf("captured %q (%s): normal=(%.3f, %.3f, %.3f) raw=(%.2f, %.2f, %.2f)\n",
		ref.Name, ref.ID,
		ref.Normal.X, ref.Normal.Y, ref.Normal.Z,
		ref.Raw.X, ref.Raw.Y, ref.Raw.Z)
}
