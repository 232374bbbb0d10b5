// Package control is the shared pause/stop switch between the admin surface
// and a running scrape. The admin process sets flags in Redis; the
// orchestrator polls them between subjects and reacts cooperatively, never
// mid-profile.
package control

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	pauseKey = "liscraper:control:pause"
	stopKey  = "liscraper:control:stop"

	// Stop requests expire on their own so a crashed admin process cannot
	// wedge future runs.
	stopTTL = 24 * time.Hour
)

// Switch reads and writes the control flags.
type Switch struct {
	client *redis.Client
}

// New connects a Switch to Redis.
func New(addr, password string, db int) *Switch {
	return &Switch{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

// NewWithClient wraps an existing client. Tests use this with miniredis.
func NewWithClient(client *redis.Client) *Switch {
	return &Switch{client: client}
}

// Close releases the Redis connection.
func (s *Switch) Close() error {
	return s.client.Close()
}

// Pause halts processing after the current subject finishes.
func (s *Switch) Pause(ctx context.Context) error {
	if err := s.client.Set(ctx, pauseKey, "1", 0).Err(); err != nil {
		return fmt.Errorf("set pause flag: %w", err)
	}
	return nil
}

// Resume clears the pause flag.
func (s *Switch) Resume(ctx context.Context) error {
	if err := s.client.Del(ctx, pauseKey).Err(); err != nil {
		return fmt.Errorf("clear pause flag: %w", err)
	}
	return nil
}

// RequestStop asks the running scrape to finish the current subject and
// exit.
func (s *Switch) RequestStop(ctx context.Context) error {
	if err := s.client.Set(ctx, stopKey, "1", stopTTL).Err(); err != nil {
		return fmt.Errorf("set stop flag: %w", err)
	}
	return nil
}

// Clear resets both flags. Called at the start of a new run.
func (s *Switch) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, pauseKey, stopKey).Err(); err != nil {
		return fmt.Errorf("clear control flags: %w", err)
	}
	return nil
}

// State reads both flags in one round trip.
func (s *Switch) State(ctx context.Context) (paused, stopped bool, err error) {
	vals, err := s.client.MGet(ctx, pauseKey, stopKey).Result()
	if err != nil {
		return false, false, fmt.Errorf("read control flags: %w", err)
	}
	return vals[0] != nil, vals[1] != nil, nil
}
