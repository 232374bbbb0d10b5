// Package pacing provides randomized human-like delays between browser
// actions. Every navigation, click, and scroll the scraper performs goes
// through a Sampler so that consecutive actions are never uniformly spaced.
package pacing

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Sampler produces randomized pauses between scraper actions.
type Sampler interface {
	// Delay blocks for a random duration within the sampler's configured
	// bounds, or until the context is canceled.
	Delay(ctx context.Context) error

	// DelayBetween blocks for a random duration in [min, max], or until the
	// context is canceled.
	DelayBetween(ctx context.Context, min, max time.Duration) error

	// Sample returns a random duration within the configured bounds without
	// sleeping.
	Sample() time.Duration
}

// Human is a Sampler drawing uniformly from a fixed [Min, Max] window.
type Human struct {
	min time.Duration
	max time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewHuman returns a Sampler over [min, max]. Bounds are swapped when given
// out of order so callers cannot construct an empty window.
func NewHuman(min, max time.Duration) *Human {
	if max < min {
		min, max = max, min
	}
	return &Human{
		min: min,
		max: max,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewHumanSeeded returns a deterministic Sampler for tests.
func NewHumanSeeded(min, max time.Duration, seed int64) *Human {
	h := NewHuman(min, max)
	h.rng = rand.New(rand.NewSource(seed))
	return h
}

// Sample returns a uniform random duration in [min, max].
func (h *Human) Sample() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	span := h.max - h.min
	if span <= 0 {
		return h.min
	}
	return h.min + time.Duration(h.rng.Int63n(int64(span)+1))
}

// Delay sleeps for a random duration in [min, max], honoring ctx.
func (h *Human) Delay(ctx context.Context) error {
	return sleep(ctx, h.Sample())
}

// DelayBetween sleeps for a random duration in [min, max], honoring ctx.
func (h *Human) DelayBetween(ctx context.Context, min, max time.Duration) error {
	if max < min {
		min, max = max, min
	}
	span := max - min
	d := min
	if span > 0 {
		h.mu.Lock()
		d = min + time.Duration(h.rng.Int63n(int64(span)+1))
		h.mu.Unlock()
	}
	return sleep(ctx, d)
}

// Shuffle randomizes the order of items in place so subjects are never
// processed in a predictable sequence.
func (h *Human) Shuffle(n int, swap func(i, j int)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rng.Shuffle(n, swap)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// nop is a Sampler that never sleeps. Used in tests and dry runs.
type nop struct{}

func (nop) Delay(ctx context.Context) error                            { return ctx.Err() }
func (nop) DelayBetween(ctx context.Context, _, _ time.Duration) error { return ctx.Err() }
func (nop) Sample() time.Duration                                      { return 0 }

// None returns a Sampler that never sleeps.
func None() Sampler { return nop{} }
