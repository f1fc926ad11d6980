package counter

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *DailyCounter) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewDailyCounter(client, "test:reminders:", time.UTC)
}

func TestDailyCounter_Increment(t *testing.T) {
	mr, c := setupTestRedis(t)
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 22, 0, 0, 0, time.UTC)

	for i := int64(1); i <= 3; i++ {
		stats, err := c.Increment(ctx, at)
		require.NoError(t, err)
		assert.Equal(t, i, stats.TodayRemindCount)
		assert.Equal(t, "2026-05-01", stats.Date)
	}

	assert.True(t, mr.Exists("test:reminders:2026-05-01"))
	assert.Equal(t, DefaultTTL, mr.TTL("test:reminders:2026-05-01"))
}

func TestDailyCounter_NewDayStartsAtOne(t *testing.T) {
	_, c := setupTestRedis(t)
	ctx := context.Background()
	day1 := time.Date(2026, 5, 1, 23, 59, 0, 0, time.UTC)

	_, err := c.Increment(ctx, day1)
	require.NoError(t, err)
	_, err = c.Increment(ctx, day1)
	require.NoError(t, err)

	stats, err := c.Increment(ctx, day1.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TodayRemindCount)
	assert.Equal(t, "2026-05-02", stats.Date)

	prev, err := c.Today(ctx, day1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), prev.TodayRemindCount)
}

func TestDailyCounter_TodayMissingKey(t *testing.T) {
	_, c := setupTestRedis(t)
	stats, err := c.Today(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, stats.TodayRemindCount)
}

func TestDailyCounter_KeyUsesLocation(t *testing.T) {
	zone := time.FixedZone("UTC+8", 8*3600)
	c := NewDailyCounter(nil, "", zone)
	at := time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, DefaultKeyPrefix+"2026-05-02", c.Key(at))
}

func TestDailyCounter_RedisDown(t *testing.T) {
	mr, c := setupTestRedis(t)
	mr.Close()
	_, err := c.Increment(context.Background(), time.Now())
	assert.Error(t, err)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	client, err := NewRedisClient(context.Background(), addr, "", 0)
	require.NoError(t, err)
	client.Close()

	mr.Close()
	_, err = NewRedisClient(context.Background(), addr, "", 0)
	assert.Error(t, err)
}
