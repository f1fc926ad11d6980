// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/relabs-tech/posture_guard/internal/app"
	"github.com/relabs-tech/posture_guard/internal/config"
	"github.com/relabs-tech/posture_guard/internal/logging"
)

func main() {
	configPath := flag.String("config", "./posture_config.txt", "path to configuration file")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	logger := logging.MustNewLogger(cfg.LogLevel, cfg.LogFormat, "posture-console")
	defer logger.Sync()
	logger.Info("starting posture console (mock sensor, no broker)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunMockConsole(ctx, cfg, os.Stdout, logger); err != nil {
		logger.Fatal("fatal", zap.Error(err))
	}
}
