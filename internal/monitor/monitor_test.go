package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/posture_guard/internal/posture"
	"github.com/relabs-tech/posture_guard/internal/reminder"
	"github.com/relabs-tech/posture_guard/internal/settings"
)

type recorder struct {
	postures  []PostureEvent
	reminders []reminder.Event
}

func (r *recorder) sink() Sink {
	return SinkFuncs{
		OnPosture:  func(ev PostureEvent) { r.postures = append(r.postures, ev) },
		OnReminder: func(ev reminder.Event) { r.reminders = append(r.reminders, ev) },
	}
}

// fixedClock returns a clock frozen at ms.
func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func newTestMonitor(t *testing.T, cfg settings.Settings) (*Monitor, *recorder) {
	t.Helper()
	rec := &recorder{}
	m := New(Options{
		Settings: &cfg,
		Location: time.UTC,
		Sink:     rec.sink(),
		Now:      fixedClock(0),
	})
	return m, rec
}

// side is gravity along device X: upright and rolled 90 degrees.
func side(ts int64) posture.Sample { return posture.Sample{Ax: 9.8, TimestampMs: ts} }

// flat is the device lying face up.
func flat(ts int64) posture.Sample { return posture.Sample{Az: 9.8, TimestampMs: ts} }

// drive feeds sample(ts) every 100ms and ticks every 1000ms over [from, to].
func drive(m *Monitor, sample func(int64) posture.Sample, from, to int64) {
	for ts := from; ts <= to; ts += 100 {
		m.OnSample(sample(ts))
		if ts%1000 == 0 {
			m.Tick(ts)
		}
	}
}

func TestMonitor_SideLyingScenario(t *testing.T) {
	cfg := settings.Defaults()
	cfg.ThresholdSeconds = 5
	m, rec := newTestMonitor(t, cfg)

	drive(m, side, 0, 16_500)

	require.Len(t, rec.postures, 1)
	onset := rec.postures[0]
	assert.True(t, onset.IsSideLying)
	assert.Equal(t, ReasonDwell, onset.Reason)
	require.NotNil(t, onset.SinceMs)
	assert.Equal(t, int64(1000), *onset.SinceMs)

	var fired []int64
	for _, ev := range rec.reminders {
		fired = append(fired, ev.FiredAtMs-*onset.SinceMs)
		assert.True(t, ev.ShouldVibrate)
	}
	assert.Equal(t, []int64{5000, 10_000, 15_000}, fired)

	st := m.Status()
	assert.True(t, st.State.IsSideLying)
	require.NotNil(t, st.NextReminderBaseMs)
	assert.Equal(t, int64(16_000), *st.NextReminderBaseMs)
	assert.Equal(t, int64(16_500), st.LastSampleMs)
	require.NotNil(t, st.LastDecision)
	assert.Equal(t, posture.ModeGeometric, st.LastDecision.Mode)
}

func TestMonitor_ReturnToNormalNeedsExitHold(t *testing.T) {
	m, rec := newTestMonitor(t, settings.Defaults())
	drive(m, side, 0, 3000)
	require.Len(t, rec.postures, 1)

	// The smoothed normal needs a few samples to swing back, then 1500ms of
	// normal readings are required.
	drive(m, flat, 3100, 4000)
	assert.Len(t, rec.postures, 1)
	assert.True(t, m.Status().State.IsSideLying)

	drive(m, flat, 4100, 6000)
	require.Len(t, rec.postures, 2)
	back := rec.postures[1]
	assert.False(t, back.IsSideLying)
	assert.Nil(t, back.SinceMs)
	assert.Equal(t, ReasonDwell, back.Reason)
	assert.GreaterOrEqual(t, back.AtMs-3000, int64(1500))
}

func TestMonitor_NoReminderWhenNormal(t *testing.T) {
	m, rec := newTestMonitor(t, settings.Defaults())
	drive(m, flat, 0, 20_000)
	assert.Empty(t, rec.postures)
	assert.Empty(t, rec.reminders)
}

func TestMonitor_LargeMotionForcesNormal(t *testing.T) {
	m, rec := newTestMonitor(t, settings.Defaults())
	drive(m, side, 0, 2000)
	require.True(t, m.Status().State.IsSideLying)

	m.OnSample(posture.Sample{Ax: 12.5, TimestampMs: 2100})
	require.Len(t, rec.postures, 2)
	assert.False(t, rec.postures[1].IsSideLying)
	assert.Equal(t, ReasonLargeMotion, rec.postures[1].Reason)
	assert.Equal(t, posture.Dwell{}, m.Status().Dwell)

	// Dropping back to 9.8 is another spike; no new event while normal.
	m.OnSample(side(2200))
	assert.Len(t, rec.postures, 2)

	// Steady readings re-enter after a fresh enter hold.
	drive(m, side, 2300, 4000)
	require.Len(t, rec.postures, 3)
	assert.True(t, rec.postures[2].IsSideLying)
	assert.Equal(t, int64(3200), *rec.postures[2].SinceMs)
}

func TestMonitor_DegenerateSamplesAreIgnored(t *testing.T) {
	m, rec := newTestMonitor(t, settings.Defaults())
	before := m.Status().Gravity
	for ts := int64(0); ts < 5000; ts += 100 {
		m.OnSample(posture.Sample{Ax: 1e-4, TimestampMs: ts})
	}
	assert.Equal(t, before, m.Status().Gravity)
	assert.Nil(t, m.Status().LastEstimate)
	assert.Empty(t, rec.postures)
}

func TestMonitor_InactiveGateForcesNormal(t *testing.T) {
	m, rec := newTestMonitor(t, settings.Defaults())
	drive(m, side, 0, 2000)
	require.Len(t, rec.postures, 1)

	m.OnInteractionSignal(false)
	require.Len(t, rec.postures, 2)
	assert.Equal(t, ReasonInactive, rec.postures[1].Reason)
	assert.False(t, m.Status().Active)

	// Side-down on the nightstand: nothing accumulates.
	drive(m, side, 2100, 4900)
	assert.Len(t, rec.postures, 2)
	assert.Equal(t, posture.Dwell{}, m.Status().Dwell)
	assert.Empty(t, rec.reminders)

	m.OnInteractionSignal(true)
	drive(m, side, 5000, 6500)
	require.Len(t, rec.postures, 3)
	assert.Equal(t, int64(5900), *rec.postures[2].SinceMs)
}

func TestMonitor_InteractionReaderFailsOpen(t *testing.T) {
	cfg := settings.Defaults()
	rec := &recorder{}
	m := New(Options{
		Settings:    &cfg,
		Sink:        rec.sink(),
		Now:         fixedClock(0),
		Interaction: func() (posture.Signal, error) { return posture.Signal{}, errors.New("no keyguard") },
	})
	drive(m, side, 0, 1500)
	assert.Len(t, rec.postures, 1)

	locked := New(Options{
		Settings:    &cfg,
		Sink:        rec.sink(),
		Now:         fixedClock(0),
		Interaction: func() (posture.Signal, error) { return posture.Signal{ScreenOn: true}, nil },
	})
	drive(locked, side, 0, 1500)
	assert.Len(t, rec.postures, 1, "locked device never reports side-lying")
}

func TestMonitor_ConfigUpdateIsClampedAndApplied(t *testing.T) {
	cfg := settings.Defaults()
	cfg.ThresholdSeconds = 60
	m, rec := newTestMonitor(t, cfg)
	drive(m, side, 0, 3000)
	assert.Empty(t, rec.reminders)

	update := settings.Defaults()
	update.ThresholdSeconds = -4
	update.DNDStartMinutes = 5000
	m.OnConfigUpdated(update)

	got := m.Settings()
	assert.Equal(t, settings.MinThresholdSeconds, got.ThresholdSeconds)
	assert.Equal(t, settings.MaxMinuteOfDay, got.DNDStartMinutes)

	m.Tick(3000)
	assert.Len(t, rec.reminders, 1)
}

func TestMonitor_QuietHoursSuppressReminders(t *testing.T) {
	cfg := settings.Defaults()
	cfg.ThresholdSeconds = 1
	cfg.DNDEnabled = true
	cfg.DNDStartMinutes = 0
	cfg.DNDEndMinutes = 60 // samples are at 00:00 UTC
	m, rec := newTestMonitor(t, cfg)

	drive(m, side, 0, 10_000)
	assert.Len(t, rec.postures, 1)
	assert.Empty(t, rec.reminders)
}

func TestMonitor_CustomPostures(t *testing.T) {
	cfg := settings.Defaults()
	cfg.UseCustomPostures = true
	cfg.Postures = []posture.ReferencePosture{
		{ID: "bed", Name: "Flat in bed", Normal: posture.Vec3{Z: 1}, Raw: posture.Vec3{Z: 9.8}},
	}
	m, rec := newTestMonitor(t, cfg)

	drive(m, flat, 0, 1500)
	require.Len(t, rec.postures, 1)
	assert.True(t, rec.postures[0].IsSideLying)
	d := m.Status().LastDecision
	require.NotNil(t, d)
	assert.Equal(t, posture.ModeCustom, d.Mode)
	assert.Equal(t, "bed", d.MatchID)
}

func TestMonitor_RotationChanged(t *testing.T) {
	m, rec := newTestMonitor(t, settings.Defaults())
	assert.ErrorIs(t, m.OnRotationChanged(posture.Rotation(45)), posture.ErrInvalidRotation)
	require.NoError(t, m.OnRotationChanged(posture.Rotation90))
	assert.Equal(t, posture.Rotation90, m.Status().Rotation)

	// Gravity along device Y reads as sideways in landscape.
	drive(m, func(ts int64) posture.Sample { return posture.Sample{Ay: 9.8, TimestampMs: ts} }, 0, 1500)
	assert.Len(t, rec.postures, 1)
}

func TestMonitor_StopAndStart(t *testing.T) {
	m, rec := newTestMonitor(t, settings.Defaults())
	drive(m, side, 0, 2000)
	require.True(t, m.Status().State.IsSideLying)

	m.Stop()
	assert.False(t, m.Monitoring())
	require.Len(t, rec.postures, 2)
	assert.Equal(t, ReasonStopped, rec.postures[1].Reason)

	drive(m, side, 2100, 8000)
	assert.Len(t, rec.postures, 2)
	assert.Empty(t, rec.reminders)
	st := m.Status()
	assert.Equal(t, posture.FlatPrior, st.Gravity)
	assert.Zero(t, st.LastSampleMs)
	assert.Nil(t, st.NextReminderBaseMs)

	m.Start()
	assert.True(t, m.Monitoring())
	drive(m, side, 9000, 10_500)
	require.Len(t, rec.postures, 3)
	assert.Equal(t, int64(10_000), *rec.postures[2].SinceMs)
}

func TestMonitor_Reset(t *testing.T) {
	m, rec := newTestMonitor(t, settings.Defaults())
	drive(m, side, 0, 2000)
	m.Reset()
	assert.Len(t, rec.postures, 2)
	st := m.Status()
	assert.True(t, st.Monitoring)
	assert.False(t, st.State.IsSideLying)
	assert.Equal(t, posture.FlatPrior, st.Gravity)
}

func TestMonitor_RunWithChannelSink(t *testing.T) {
	sink := NewChannelSink(16)
	m := New(Options{Sink: sink, Now: fixedClock(0)})

	samples := make(chan posture.Sample)
	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background(), samples, time.Millisecond) }()

	for ts := int64(0); ts <= 1500; ts += 100 {
		samples <- side(ts)
	}
	close(samples)
	require.NoError(t, <-done)

	select {
	case ev := <-sink.Events():
		assert.Equal(t, KindPosture, ev.Kind)
		require.NotNil(t, ev.Posture)
		assert.True(t, ev.Posture.IsSideLying)
	default:
		t.Fatal("expected a posture event")
	}
}

func TestMonitor_RunUsesOneClockForSamplesAndTicks(t *testing.T) {
	const wallMs = int64(1_700_000_000_000)
	cfg := settings.Defaults()
	cfg.ThresholdSeconds = 60
	sink := NewChannelSink(16)
	m := New(Options{Settings: &cfg, Sink: sink, Now: fixedClock(wallMs)})

	samples := make(chan posture.Sample)
	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background(), samples, time.Millisecond) }()

	// Device uptime clock, far behind the wall clock.
	for ts := int64(0); ts <= 1500; ts += 100 {
		samples <- side(ts)
		time.Sleep(time.Millisecond)
	}
	close(samples)
	require.NoError(t, <-done)

	var postures []PostureEvent
	for len(sink.Events()) > 0 {
		ev := <-sink.Events()
		require.Equal(t, KindPosture, ev.Kind, "no reminder before the threshold")
		postures = append(postures, *ev.Posture)
	}
	require.Len(t, postures, 1)
	require.NotNil(t, postures[0].SinceMs)
	assert.Equal(t, wallMs+1000, *postures[0].SinceMs, "onset on the monitor clock")
}

func TestSampleClock_Align(t *testing.T) {
	var c sampleClock
	assert.Equal(t, int64(10_000), c.align(0, 10_000))
	assert.Equal(t, int64(10_100), c.align(100, 10_050), "device spacing is kept")

	// A device clock reset is re-anchored instead of jumping back.
	assert.Equal(t, int64(20_000), c.align(5, 20_000))
	assert.Equal(t, int64(20_095), c.align(100, 20_100))
}

func TestMonitor_RunStopsOnContext(t *testing.T) {
	m := New(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.Run(ctx, make(chan posture.Sample), time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChannelSink_DropsWhenFull(t *testing.T) {
	sink := NewChannelSink(1)
	sink.ReminderFired(reminder.Event{ID: "a"})
	sink.ReminderFired(reminder.Event{ID: "b"})
	assert.Equal(t, uint64(1), sink.Dropped())

	ev := <-sink.Events()
	require.NotNil(t, ev.Reminder)
	assert.Equal(t, "a", ev.Reminder.ID)
}
