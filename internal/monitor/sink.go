// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package monitor

import (
	"sync/atomic"

	"github.com/relabs-tech/posture_guard/internal/metrics"
	"github.com/relabs-tech/posture_guard/internal/reminder"
)

// Reason explains why the posture state changed.
type Reason string

const (
	ReasonDwell       Reason = "dwell"
	ReasonLargeMotion Reason = "large_motion"
	ReasonInactive    Reason = "inactive"
	ReasonStopped     Reason = "stopped"
)

// PostureEvent is emitted on every debounced state transition, never per
// sample. SinceMs is nil when IsSideLying is false.
type PostureEvent struct {
	IsSideLying bool   `json:"isSideLying"`
	SinceMs     *int64 `json:"sinceMs"`
	AtMs        int64  `json:"atMs"`
	Reason      Reason `json:"reason"`
}

// Sink receives the monitor's outputs. Methods are called with the
// monitor's lock held: they must not block and must not call back into the
// Monitor.
type Sink interface {
	PostureChanged(PostureEvent)
	ReminderFired(reminder.Event)
}

// SinkFuncs adapts plain functions to Sink. Nil fields are skipped.
type SinkFuncs struct {
	OnPosture  func(PostureEvent)
	OnReminder func(reminder.Event)
}

func (f SinkFuncs) PostureChanged(ev PostureEvent) {
	if f.OnPosture != nil {
		f.OnPosture(ev)
	}
}

func (f SinkFuncs) ReminderFired(ev reminder.Event) {
	if f.OnReminder != nil {
		f.OnReminder(ev)
	}
}

type nopSink struct{}

func (nopSink) PostureChanged(PostureEvent)  {}
func (nopSink) ReminderFired(reminder.Event) {}

// EventKind tags an Event delivered through a ChannelSink.
type EventKind string

const (
	KindPosture  EventKind = "posture"
	KindReminder EventKind = "reminder"
)

// Event is the union of monitor outputs carried on a channel.
type Event struct {
	Kind     EventKind       `json:"type"`
	Posture  *PostureEvent   `json:"posture,omitempty"`
	Reminder *reminder.Event `json:"reminder,omitempty"`
}

// ChannelSink forwards events to a buffered channel without blocking. When
// the buffer is full the event is dropped and counted.
type ChannelSink struct {
	ch      chan Event
	dropped atomic.Uint64
}

// NewChannelSink creates a sink with the given buffer size (minimum 1).
func NewChannelSink(buffer int) *ChannelSink {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelSink{ch: make(chan Event, buffer)}
}

// Events returns the receive side of the sink.
func (s *ChannelSink) Events() <-chan Event {
	return s.ch
}

// Dropped returns the number of events lost to a full buffer.
func (s *ChannelSink) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *ChannelSink) PostureChanged(ev PostureEvent) {
	s.push(Event{Kind: KindPosture, Posture: &ev})
}

func (s *ChannelSink) ReminderFired(ev reminder.Event) {
	s.push(Event{Kind: KindReminder, Reminder: &ev})
}

func (s *ChannelSink) push(ev Event) {
	select {
	case s.ch <- ev:
	default:
		s.dropped.Add(1)
		metrics.DroppedEvents.WithLabelValues(string(ev.Kind)).Inc()
	}
}
