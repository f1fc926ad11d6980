package app

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/posture_guard/internal/config"
	"github.com/relabs-tech/posture_guard/internal/monitor"
	"github.com/relabs-tech/posture_guard/internal/posture"
	"github.com/relabs-tech/posture_guard/internal/reminder"
)

func TestConsolePrinter(t *testing.T) {
	var buf bytes.Buffer
	p := &consolePrinter{out: &buf, topics: config.Defaults()}
	cfg := config.Defaults()

	since := int64(1000)
	payload, err := json.Marshal(monitor.PostureEvent{IsSideLying: true, SinceMs: &since, AtMs: 1000, Reason: monitor.ReasonDwell})
	require.NoError(t, err)
	require.NoError(t, p.Print(cfg.TopicPosture, payload))
	assert.Contains(t, buf.String(), "[POST]  SIDE")
	assert.Contains(t, buf.String(), "reason=dwell")

	buf.Reset()
	payload, err = json.Marshal(reminder.Event{ID: "abc", FiredAtMs: 6000, ElapsedMs: 5000, ShouldVibrate: true})
	require.NoError(t, err)
	require.NoError(t, p.Print(cfg.TopicReminder, payload))
	assert.Contains(t, buf.String(), "elapsed=5.0s vibrate=true id=abc")

	buf.Reset()
	require.NoError(t, p.Print(cfg.TopicStats, []byte(`{"date": "2026-05-01", "todayRemindCount": 7}`)))
	assert.Equal(t, "[STAT]  date=2026-05-01 reminders=7\n", buf.String())

	buf.Reset()
	payload, err = json.Marshal(monitor.Status{Monitoring: true, Active: true, State: posture.State{IsSideLying: true}})
	require.NoError(t, err)
	require.NoError(t, p.Print(cfg.TopicStatus, payload))
	assert.Contains(t, buf.String(), "monitoring=true active=true side=true")
}

func TestConsolePrinter_Rejects(t *testing.T) {
	p := &consolePrinter{out: &bytes.Buffer{}, topics: config.Defaults()}
	assert.Error(t, p.Print("elsewhere", []byte(`{}`)))
	assert.Error(t, p.Print(config.Defaults().TopicStats, []byte(`{`)))
}
