// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package counter keeps the per-day reminder count in Redis.
package counter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	// DefaultKeyPrefix is prepended to the YYYY-MM-DD day key.
	DefaultKeyPrefix = "posture:reminders:"
	// DefaultTTL keeps yesterday's count readable after midnight.
	DefaultTTL = 48 * time.Hour

	dayLayout = "2006-01-02"
)

// Stats is the payload published after every increment.
type Stats struct {
	Date             string `json:"date"`
	TodayRemindCount int64  `json:"todayRemindCount"`
}

// DailyCounter counts fired reminders per local calendar day.
type DailyCounter struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	loc    *time.Location
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewDailyCounter creates a counter. An empty prefix uses DefaultKeyPrefix
// and a nil loc uses time.Local.
func NewDailyCounter(client redis.Cmdable, prefix string, loc *time.Location) *DailyCounter {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if loc == nil {
		loc = time.Local
	}
	return &DailyCounter{client: client, prefix: prefix, ttl: DefaultTTL, loc: loc}
}

// Key returns the Redis key holding the count for the day containing at.
func (c *DailyCounter) Key(at time.Time) string {
	return c.prefix + at.In(c.loc).Format(dayLayout)
}

// Increment adds one reminder to the day containing at and returns the new
// count for that day.
func (c *DailyCounter) Increment(ctx context.Context, at time.Time) (Stats, error) {
	key := c.Key(at)

	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return Stats{}, fmt.Errorf("failed to increment reminder count: %w", err)
	}
	return Stats{Date: at.In(c.loc).Format(dayLayout), TodayRemindCount: incr.Val()}, nil
}

// Today returns the count for the day containing at. A missing key is zero.
func (c *DailyCounter) Today(ctx context.Context, at time.Time) (Stats, error) {
	stats := Stats{Date: at.In(c.loc).Format(dayLayout)}
	n, err := c.client.Get(ctx, c.Key(at)).Int64()
	if errors.Is(err, redis.Nil) {
		return stats, nil
	}
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read reminder count: %w", err)
	}
	stats.TodayRemindCount = n
	return stats, nil
}
