// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/relabs-tech/posture_guard/internal/counter"
	"github.com/relabs-tech/posture_guard/internal/monitor"
	"github.com/relabs-tech/posture_guard/internal/posture"
	"github.com/relabs-tech/posture_guard/internal/settings"
)

// ErrUnavailable is returned when a controller has nothing to report yet.
var ErrUnavailable = errors.New("not available")

// ControlMessage toggles monitoring.
type ControlMessage struct {
	Monitoring bool `json:"monitoring"`
}

// RotationMessage carries the display rotation in degrees.
type RotationMessage struct {
	Rotation int `json:"rotation"`
}

// InteractionMessage carries the host's screen and keyguard state.
type InteractionMessage struct {
	ScreenOn bool `json:"screenOn"`
	Unlocked bool `json:"unlocked"`
}

// Controller is what the HTTP API drives. It is served either by an
// in-process monitor or by a remote one reached over MQTT.
type Controller interface {
	Status(ctx context.Context) (monitor.Status, error)
	Stats(ctx context.Context) (counter.Stats, error)
	UpdateSettings(ctx context.Context, s settings.Settings) error
	SetMonitoring(ctx context.Context, on bool) error
	SetRotation(ctx context.Context, r posture.Rotation) error
}

// DecodeSettings parses a settings snapshot. Absent fields keep their
// defaults and out-of-range values are clamped.
func DecodeSettings(payload []byte) (settings.Settings, error) {
	s := settings.Defaults()
	if err := json.Unmarshal(payload, &s); err != nil {
		return settings.Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return s.Clamp(), nil
}

// CommandHandler applies inbound MQTT commands to a monitor.
type CommandHandler struct {
	monitor *monitor.Monitor
	topics  CommandTopics
	logger  *zap.Logger
}

// CommandTopics names the inbound command topics.
type CommandTopics struct {
	Config      string
	Control     string
	Rotation    string
	Interaction string
}

func NewCommandHandler(m *monitor.Monitor, topics CommandTopics, logger *zap.Logger) *CommandHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandHandler{monitor: m, topics: topics, logger: logger}
}

// Topics lists the topics Handle understands.
func (h *CommandHandler) Topics() []string {
	return []string{h.topics.Config, h.topics.Control, h.topics.Rotation, h.topics.Interaction}
}

// Handle decodes payload according to topic and applies it.
func (h *CommandHandler) Handle(topic string, payload []byte) error {
	switch topic {
	case h.topics.Config:
		s, err := DecodeSettings(payload)
		if err != nil {
			return err
		}
		h.monitor.OnConfigUpdated(s)
		h.logger.Info("settings updated",
			zap.Int("threshold_s", s.ThresholdSeconds),
			zap.Bool("dnd", s.DNDEnabled),
			zap.Bool("custom_postures", s.UseCustomPostures))

	case h.topics.Control:
		var msg ControlMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("decode control: %w", err)
		}
		if msg.Monitoring {
			h.monitor.Start()
		} else {
			h.monitor.Stop()
		}
		h.logger.Info("monitoring toggled", zap.Bool("monitoring", msg.Monitoring))

	case h.topics.Rotation:
		var msg RotationMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("decode rotation: %w", err)
		}
		r, err := posture.ParseRotation(msg.Rotation)
		if err != nil {
			return err
		}
		return h.monitor.OnRotationChanged(r)

	case h.topics.Interaction:
		var msg InteractionMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("decode interaction: %w", err)
		}
		h.monitor.OnInteractionSignal(posture.IsActive(posture.Signal{
			ScreenOn: msg.ScreenOn,
			Unlocked: msg.Unlocked,
		}, nil))

	default:
		return fmt.Errorf("unknown command topic %q", topic)
	}
	return nil
}

// localController serves the API from an in-process monitor.
type localController struct {
	monitor *monitor.Monitor
	counter *counter.DailyCounter
}

func (c *localController) Status(context.Context) (monitor.Status, error) {
	return c.monitor.Status(), nil
}

func (c *localController) Stats(ctx context.Context) (counter.Stats, error) {
	if c.counter == nil {
		return counter.Stats{}, ErrUnavailable
	}
	return c.counter.Today(ctx, timeNow())
}

func (c *localController) UpdateSettings(_ context.Context, s settings.Settings) error {
	c.monitor.OnConfigUpdated(s)
	return nil
}

func (c *localController) SetMonitoring(_ context.Context, on bool) error {
	if on {
		c.monitor.Start()
	} else {
		c.monitor.Stop()
	}
	return nil
}

func (c *localController) SetRotation(_ context.Context, r posture.Rotation) error {
	return c.monitor.OnRotationChanged(r)
}
