package app

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/posture_guard/internal/counter"
	"github.com/relabs-tech/posture_guard/internal/monitor"
	"github.com/relabs-tech/posture_guard/internal/settings"
)

type published struct {
	Topic    string
	Retained bool
	Payload  []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(topic string, retained bool, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{Topic: topic, Retained: retained, Payload: payload})
	return nil
}

func (p *fakePublisher) onTopic(topic string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, m := range p.msgs {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v))
	return v
}

var testCommandTopics = CommandTopics{
	Config:      "t/config",
	Control:     "t/control",
	Rotation:    "t/rotation",
	Interaction: "t/interaction",
}

var testEventTopics = EventTopics{
	Posture:  "t/state",
	Reminder: "t/reminder",
	Stats:    "t/stats",
}

func newTestMonitor(t *testing.T) *monitor.Monitor {
	t.Helper()
	cfg := settings.Defaults()
	return monitor.New(monitor.Options{
		Settings: &cfg,
		Location: time.UTC,
		Now:      func() time.Time { return time.UnixMilli(0) },
	})
}

func newTestCounter(t *testing.T) (*miniredis.Miniredis, *counter.DailyCounter) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, counter.NewDailyCounter(client, "test:reminders:", time.UTC)
}
