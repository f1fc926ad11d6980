// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/posture_guard/internal/config"
	"github.com/relabs-tech/posture_guard/internal/counter"
	"github.com/relabs-tech/posture_guard/internal/monitor"
	"github.com/relabs-tech/posture_guard/internal/reminder"
)

// RunConsoleMQTT prints posture, reminder, stats and status messages until
// ctx is cancelled.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config, out io.Writer, logger *zap.Logger) error {
	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	printer := &consolePrinter{out: out, topics: cfg}
	for _, topic := range []string{cfg.TopicPosture, cfg.TopicReminder, cfg.TopicStats, cfg.TopicStatus} {
		if err := subscribe(client, topic, func(topic string, payload []byte) {
			if err := printer.Print(topic, payload); err != nil {
				logger.Warn("console: bad payload", zap.String("topic", topic), zap.Error(err))
			}
		}, logger); err != nil {
			return err
		}
	}

	<-ctx.Done()
	logger.Info("console: shutting down")
	return nil
}

type consolePrinter struct {
	out    io.Writer
	topics *config.Config
}

// Print formats one message as a console line.
func (p *consolePrinter) Print(topic string, payload []byte) error {
	switch topic {
	case p.topics.TopicPosture:
		var ev monitor.PostureEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return err
		}
		fmt.Fprintln(p.out, formatPosture(ev))
	case p.topics.TopicReminder:
		var ev reminder.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			return err
		}
		fmt.Fprintln(p.out, formatReminder(ev))
	case p.topics.TopicStats:
		var s counter.Stats
		if err := json.Unmarshal(payload, &s); err != nil {
			return err
		}
		fmt.Fprintf(p.out, "[STAT]  date=%s reminders=%d\n", s.Date, s.TodayRemindCount)
	case p.topics.TopicStatus:
		var st monitor.Status
		if err := json.Unmarshal(payload, &st); err != nil {
			return err
		}
		fmt.Fprintln(p.out, formatStatus(st))
	default:
		return fmt.Errorf("unexpected topic %q", topic)
	}
	return nil
}

func formatPosture(ev monitor.PostureEvent) string {
	state := "NORMAL"
	if ev.IsSideLying {
		state = "SIDE  "
	}
	since := "-"
	if ev.SinceMs != nil {
		since = time.UnixMilli(*ev.SinceMs).Format(time.TimeOnly)
	}
	return fmt.Sprintf("[POST]  %s since=%s reason=%s", state, since, ev.Reason)
}

func formatReminder(ev reminder.Event) string {
	return fmt.Sprintf("[RMND]  at=%s elapsed=%.1fs vibrate=%t id=%s",
		time.UnixMilli(ev.FiredAtMs).Format(time.TimeOnly),
		float64(ev.ElapsedMs)/1000, ev.ShouldVibrate, ev.ID)
}

func formatStatus(st monitor.Status) string {
	return fmt.Sprintf("[STS ]  monitoring=%t active=%t side=%t roll=%6.2f tilt=%6.2f side_hold=%4dms normal_hold=%4dms",
		st.Monitoring, st.Active, st.State.IsSideLying,
		st.Tilt.SideRoll, st.Tilt.ScreenTilt,
		st.Dwell.SideHoldMs, st.Dwell.NormalHoldMs)
}
