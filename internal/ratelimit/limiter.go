// Package ratelimit implements per-user fixed-window admission control for
// outgoing chat messages.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultPoints = 30
	DefaultWindow = time.Minute
)

// Decision is the outcome of one Consume call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

type Limiter interface {
	Consume(ctx context.Context, key string) (Decision, error)
}

type bucket struct {
	count   int
	resetAt time.Time
}

// Memory is a process-local fixed-window limiter. Every Consume counts against
// the window, rejected ones included.
type Memory struct {
	points int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

func NewMemory(points int, window time.Duration) *Memory {
	if points <= 0 {
		points = DefaultPoints
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Memory{
		points:  points,
		window:  window,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// WithClock replaces the time source. Used by tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Consume(_ context.Context, key string) (Decision, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		b = &bucket{resetAt: now.Add(m.window)}
		m.buckets[key] = b
	}
	b.count++

	if b.count > m.points {
		return Decision{Allowed: false, RetryAfter: b.resetAt.Sub(now)}, nil
	}
	return Decision{Allowed: true, Remaining: m.points - b.count}, nil
}

// Sweep drops every bucket whose window has ended and returns how many were removed.
func (m *Memory) Sweep() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k, b := range m.buckets {
		if !now.Before(b.resetAt) {
			delete(m.buckets, k)
			n++
		}
	}
	return n
}

// Run sweeps on every tick until ctx is done.
func (m *Memory) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = m.window
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Sweep()
		}
	}
}

func (m *Memory) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}
