// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/posture_guard/internal/counter"
	"github.com/relabs-tech/posture_guard/internal/monitor"
)

var timeNow = time.Now

// KindStats tags daily counter updates sent to websocket clients.
const KindStats monitor.EventKind = "stats"

// StatsEvent is the websocket envelope for a counter update.
type StatsEvent struct {
	Kind  monitor.EventKind `json:"type"`
	Stats counter.Stats     `json:"stats"`
}

// EventTopics names the outbound event topics.
type EventTopics struct {
	Posture  string
	Reminder string
	Stats    string
}

// EventPump drains monitor events and publishes them. Reminders that ask
// for it bump the daily counter, whose new value is published as well.
type EventPump struct {
	pub     Publisher
	topics  EventTopics
	counter *counter.DailyCounter
	hub     *Hub
	logger  *zap.Logger
}

// NewEventPump creates a pump. counter and hub may be nil.
func NewEventPump(pub Publisher, topics EventTopics, c *counter.DailyCounter, hub *Hub, logger *zap.Logger) *EventPump {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPump{pub: pub, topics: topics, counter: c, hub: hub, logger: logger}
}

// Run handles events until ctx is done or the channel is closed.
func (p *EventPump) Run(ctx context.Context, events <-chan monitor.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := p.Handle(ctx, ev); err != nil {
				p.logger.Error("event delivery failed", zap.String("type", string(ev.Kind)), zap.Error(err))
			}
		}
	}
}

// Handle delivers a single event.
func (p *EventPump) Handle(ctx context.Context, ev monitor.Event) error {
	if p.hub != nil {
		p.hub.Broadcast(ev)
	}

	switch ev.Kind {
	case monitor.KindPosture:
		if ev.Posture == nil {
			return nil
		}
		p.logger.Info("posture changed",
			zap.Bool("side_lying", ev.Posture.IsSideLying),
			zap.String("reason", string(ev.Posture.Reason)),
			zap.Int64("at_ms", ev.Posture.AtMs))
		return publishJSON(p.pub, p.topics.Posture, true, ev.Posture)

	case monitor.KindReminder:
		r := ev.Reminder
		if r == nil {
			return nil
		}
		p.logger.Info("reminder fired",
			zap.String("id", r.ID),
			zap.Int64("elapsed_ms", r.ElapsedMs),
			zap.Bool("vibrate", r.ShouldVibrate))
		if err := publishJSON(p.pub, p.topics.Reminder, false, r); err != nil {
			return err
		}
		if !r.IncrementCounter || p.counter == nil {
			return nil
		}
		stats, err := p.counter.Increment(ctx, time.UnixMilli(r.FiredAtMs))
		if err != nil {
			return err
		}
		if p.hub != nil {
			p.hub.Broadcast(StatsEvent{Kind: KindStats, Stats: stats})
		}
		return publishJSON(p.pub, p.topics.Stats, true, stats)
	}
	return nil
}
