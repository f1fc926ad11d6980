// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package monitor is the serialized posture-detection core. Samples, timer
// ticks, configuration swaps and interaction signals may arrive from any
// goroutine; a single mutex orders them so the debouncer and the reminder
// scheduler always observe a consistent posture state.
package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/posture_guard/internal/metrics"
	"github.com/relabs-tech/posture_guard/internal/posture"
	"github.com/relabs-tech/posture_guard/internal/reminder"
	"github.com/relabs-tech/posture_guard/internal/settings"
)

// Options configures a Monitor. Zero values are replaced with defaults.
type Options struct {
	Tuning   *posture.Tuning
	Settings *settings.Settings
	Rotation posture.Rotation
	Location *time.Location // quiet hours zone, default time.Local
	Logger   *zap.Logger
	Sink     Sink

	// Interaction, when set, is polled on every sample in addition to the
	// pushed OnInteractionSignal value. Read errors count as active.
	Interaction posture.SignalReader

	// Now is the clock used by Run and the signal handlers.
	Now func() time.Time
}

// Monitor wires OrientationFilter -> ScreenSpaceMapper -> PostureClassifier
// -> StabilityDebouncer, gated by the interaction signal, and drives the
// ReminderScheduler from Tick.
type Monitor struct {
	mu sync.Mutex

	filter     *posture.Filter
	classifier posture.Classifier
	debouncer  *posture.Debouncer
	scheduler  *reminder.Scheduler

	cfg atomic.Pointer[settings.Settings]

	rotation    posture.Rotation
	pushed      bool // last OnInteractionSignal value
	active      bool // gate result of the last sample
	monitoring  bool
	interaction posture.SignalReader

	lastEstimate *posture.Estimate
	lastDecision *posture.Decision
	lastSampleMs int64

	loc    *time.Location
	now    func() time.Time
	sink   Sink
	logger *zap.Logger
}

// New creates a monitor that is monitoring, active, and in the normal state.
func New(opts Options) *Monitor {
	tuning := posture.DefaultTuning()
	if opts.Tuning != nil {
		tuning = *opts.Tuning
	}
	cfg := settings.Defaults()
	if opts.Settings != nil {
		cfg = *opts.Settings
	}
	rotation := opts.Rotation
	if !rotation.Valid() {
		rotation = posture.Rotation0
	}

	m := &Monitor{
		filter:      posture.NewFilter(tuning),
		classifier:  posture.NewClassifier(tuning),
		debouncer:   posture.NewDebouncer(tuning),
		scheduler:   reminder.NewScheduler(),
		rotation:    rotation,
		pushed:      true,
		active:      true,
		monitoring:  true,
		interaction: opts.Interaction,
		loc:         opts.Location,
		now:         opts.Now,
		sink:        opts.Sink,
		logger:      opts.Logger,
	}
	if m.loc == nil {
		m.loc = time.Local
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.sink == nil {
		m.sink = nopSink{}
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	m.storeSettings(cfg)
	metrics.SetMonitoring(true)
	metrics.SetSideLying(false)
	return m
}

// OnSample feeds one raw accelerometer reading through the pipeline.
func (m *Monitor) OnSample(s posture.Sample) {
	start := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.monitoring {
		metrics.SamplesTotal.WithLabelValues("stopped").Inc()
		return
	}
	m.lastSampleMs = s.TimestampMs

	est, ok := m.filter.Update(s)
	if !ok {
		metrics.SamplesTotal.WithLabelValues("degenerate").Inc()
		return
	}
	m.lastEstimate = &est

	m.active = m.pushed && posture.ReadActive(m.interaction)
	if !m.active {
		metrics.SamplesTotal.WithLabelValues("gated").Inc()
		m.forceNormal(s.TimestampMs, ReasonInactive)
		return
	}
	metrics.SamplesTotal.WithLabelValues("accepted").Inc()

	if est.LargeMotion {
		metrics.LargeMotionResets.Inc()
		m.logger.Debug("large motion, forcing normal",
			zap.Float64("delta_g", est.DeltaG),
			zap.Int64("ts", s.TimestampMs),
		)
		m.forceNormal(s.TimestampMs, ReasonLargeMotion)
		return
	}

	cfg := m.cfg.Load()
	x, y := posture.ToScreen(est.Normal.X, est.Normal.Y, m.rotation)
	d := m.classifier.Classify(est, x, y, cfg.UseCustomPostures, cfg.Postures)
	m.lastDecision = &d

	state, changed := m.debouncer.Advance(d.Candidate, s.TimestampMs)
	if changed {
		fields := []zap.Field{
			zap.Bool("side_lying", state.IsSideLying),
			zap.Int64("ts", s.TimestampMs),
			zap.String("mode", string(d.Mode)),
			zap.Float64("ratio", d.Ratio),
		}
		if d.MatchID != "" {
			fields = append(fields, zap.String("match", d.MatchID), zap.Float64("distance", d.MatchDistance))
		}
		m.logger.Info("posture changed", fields...)
		m.emitPosture(state, s.TimestampMs, ReasonDwell)
	}
	metrics.ProcessingLatency.Observe(time.Since(start).Seconds())
}

// Tick drives the reminder scheduler. It is meant to be called once a
// second regardless of posture changes.
func (m *Monitor) Tick(nowMs int64) *reminder.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.monitoring {
		return nil
	}
	cfg := m.cfg.Load()
	ev, verdict := m.scheduler.Tick(nowMs, m.debouncer.State(), *cfg, m.loc)
	metrics.ReminderTicks.WithLabelValues(verdict.String()).Inc()
	if ev == nil {
		return nil
	}
	metrics.RemindersFired.Inc()
	m.logger.Info("reminder fired",
		zap.String("id", ev.ID),
		zap.Int64("elapsed_ms", ev.ElapsedMs),
		zap.Bool("vibrate", ev.ShouldVibrate),
	)
	m.sink.ReminderFired(*ev)
	return ev
}

// OnRotationChanged sets the display rotation. Invalid rotations are
// rejected and the previous rotation stays in effect.
func (m *Monitor) OnRotationChanged(r posture.Rotation) error {
	if !r.Valid() {
		return posture.ErrInvalidRotation
	}
	m.mu.Lock()
	m.rotation = r
	m.mu.Unlock()
	return nil
}

// OnConfigUpdated atomically replaces the settings snapshot. Values are
// clamped again here so a misbehaving caller cannot push the core out of
// range.
func (m *Monitor) OnConfigUpdated(s settings.Settings) {
	m.storeSettings(s)
	m.logger.Info("settings updated",
		zap.Int("threshold_seconds", m.cfg.Load().ThresholdSeconds),
		zap.Bool("dnd", s.DNDEnabled),
		zap.Bool("custom_postures", s.UseCustomPostures),
		zap.Int("postures", len(s.Postures)),
	)
}

// Settings returns the active settings snapshot.
func (m *Monitor) Settings() settings.Settings {
	return *m.cfg.Load()
}

func (m *Monitor) storeSettings(s settings.Settings) {
	clamped := s.Clamp()
	m.cfg.Store(&clamped)
}

// OnInteractionSignal records whether the device is in active use. Going
// inactive forces the state back to normal immediately.
func (m *Monitor) OnInteractionSignal(active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pushed = active
	if active || !m.monitoring {
		return
	}
	m.active = false
	m.forceNormal(m.now().UnixMilli(), ReasonInactive)
}

// Stop suspends monitoring. Samples and ticks are ignored until Start.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.monitoring {
		return
	}
	m.forceNormal(m.now().UnixMilli(), ReasonStopped)
	m.resetLocked()
	m.monitoring = false
	metrics.SetMonitoring(false)
	m.logger.Info("monitoring stopped")
}

// Start resumes monitoring from the initial state: flat gravity prior, no
// side-lying, no accumulated dwell, timer disarmed.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.monitoring {
		return
	}
	m.resetLocked()
	m.monitoring = true
	metrics.SetMonitoring(true)
	m.logger.Info("monitoring started")
}

// Monitoring reports whether samples are being processed.
func (m *Monitor) Monitoring() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.monitoring
}

// Reset restores the initial pipeline state without changing the
// monitoring flag, settings or rotation.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.debouncer.State().IsSideLying {
		m.forceNormal(m.now().UnixMilli(), ReasonStopped)
	}
	m.resetLocked()
}

func (m *Monitor) resetLocked() {
	m.filter.Reset()
	m.debouncer.Reset()
	m.scheduler.Reset()
	m.lastEstimate = nil
	m.lastDecision = nil
	m.lastSampleMs = 0
	metrics.SetSideLying(false)
}

// forceNormal clears dwell and emits a transition if the state was
// side-lying.
func (m *Monitor) forceNormal(nowMs int64, reason Reason) {
	if !m.debouncer.ForceNormal(nowMs) {
		return
	}
	m.logger.Info("posture changed",
		zap.Bool("side_lying", false),
		zap.Int64("ts", nowMs),
		zap.String("reason", string(reason)),
	)
	m.emitPosture(m.debouncer.State(), nowMs, reason)
}

func (m *Monitor) emitPosture(state posture.State, atMs int64, reason Reason) {
	to := "normal"
	if state.IsSideLying {
		to = "side_lying"
	}
	metrics.Transitions.WithLabelValues(to).Inc()
	metrics.SetSideLying(state.IsSideLying)

	var since *int64
	if state.SinceMs != nil {
		v := *state.SinceMs
		since = &v
	}
	m.sink.PostureChanged(PostureEvent{
		IsSideLying: state.IsSideLying,
		SinceMs:     since,
		AtMs:        atMs,
		Reason:      reason,
	})
}

// Run processes samples and drives Tick every tickInterval until ctx is
// done or samples is closed. Sample timestamps are shifted onto the
// monitor clock so posture onsets and ticks share one time base.
func (m *Monitor) Run(ctx context.Context, samples <-chan posture.Sample, tickInterval time.Duration) error {
	if tickInterval <= 0 {
		tickInterval = reminder.TickInterval
	}
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	var clock sampleClock

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-samples:
			if !ok {
				return nil
			}
			s.TimestampMs = clock.align(s.TimestampMs, m.now().UnixMilli())
			m.OnSample(s)
		case <-ticker.C:
			m.Tick(m.now().UnixMilli())
		}
	}
}

// maxClockSkewMs is how far an aligned sample may drift from the monitor
// clock before the offset is measured again.
const maxClockSkewMs = 5000

// sampleClock maps a device clock onto the monitor clock with a fixed
// offset, keeping the device's own sample spacing.
type sampleClock struct {
	offsetMs int64
	measured bool
}

func (c *sampleClock) align(deviceMs, nowMs int64) int64 {
	if c.measured {
		aligned := deviceMs + c.offsetMs
		if skew := aligned - nowMs; skew <= maxClockSkewMs && skew >= -maxClockSkewMs {
			return aligned
		}
	}
	c.offsetMs = nowMs - deviceMs
	c.measured = true
	return nowMs
}
