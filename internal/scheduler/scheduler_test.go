package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	deadline time.Time
	f        func()
	stopped  bool
	fired    bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{deadline: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	stopped := !t.fired && !t.stopped
	t.stopped = true
	return stopped
}

// Advance fires due timers in deadline order, stepping the clock to each
// deadline before its callback runs. A callback that re-arms therefore
// computes its next deadline from the fire instant, as with time.AfterFunc,
// and newly armed timers falling inside the jump fire in the same advance.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	for {
		c.mu.Lock()
		var due *fakeTimer
		for _, t := range c.timers {
			if t.fired || t.stopped || t.deadline.After(target) {
				continue
			}
			if due == nil || t.deadline.Before(due.deadline) {
				due = t
			}
		}
		if due == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		due.fired = true
		if c.now.Before(due.deadline) {
			c.now = due.deadline
		}
		c.mu.Unlock()
		due.f()
	}
}

func TestJobRunsEveryInterval(t *testing.T) {
	clock := newFakeClock()
	s := New(zap.NewNop())
	s.WithClock(clock)

	runs := 0
	s.Every("count", time.Minute, func(ctx context.Context) error {
		runs++
		return nil
	})
	s.Start(context.Background())

	clock.Advance(30 * time.Second)
	if runs != 0 {
		t.Fatalf("job ran before the first interval")
	}
	clock.Advance(30 * time.Second)
	if runs != 1 {
		t.Fatalf("expected 1 run, got %d", runs)
	}
	clock.Advance(2 * time.Minute)
	if runs != 3 {
		t.Fatalf("expected 3 runs, got %d", runs)
	}
	s.Stop()
}

func TestFailingJobStaysScheduled(t *testing.T) {
	clock := newFakeClock()
	s := New(zap.NewNop())
	s.WithClock(clock)

	runs := 0
	s.Every("flaky", time.Minute, func(ctx context.Context) error {
		runs++
		return errors.New("boom")
	})
	s.Start(context.Background())

	clock.Advance(3 * time.Minute)
	if runs != 3 {
		t.Fatalf("expected 3 runs, got %d", runs)
	}
	s.Stop()
}

func TestPanickingJobStaysScheduled(t *testing.T) {
	clock := newFakeClock()
	s := New(zap.NewNop())
	s.WithClock(clock)

	runs := 0
	s.Every("angry", time.Minute, func(ctx context.Context) error {
		runs++
		panic("boom")
	})
	s.Start(context.Background())

	clock.Advance(2 * time.Minute)
	if runs != 2 {
		t.Fatalf("expected 2 runs, got %d", runs)
	}
	s.Stop()
}

func TestIndependentJobsKeepTheirOwnCadence(t *testing.T) {
	clock := newFakeClock()
	s := New(zap.NewNop())
	s.WithClock(clock)

	fast, slow := 0, 0
	s.Every("fast", time.Minute, func(ctx context.Context) error {
		fast++
		return nil
	})
	s.Every("slow", 5*time.Minute, func(ctx context.Context) error {
		slow++
		return nil
	})
	s.Start(context.Background())

	clock.Advance(5 * time.Minute)
	if fast != 5 || slow != 1 {
		t.Fatalf("got fast=%d slow=%d, want 5 and 1", fast, slow)
	}
	s.Stop()
}

func TestStopPreventsFurtherRuns(t *testing.T) {
	clock := newFakeClock()
	s := New(zap.NewNop())
	s.WithClock(clock)

	runs := 0
	s.Every("count", time.Minute, func(ctx context.Context) error {
		runs++
		return nil
	})
	s.Start(context.Background())

	clock.Advance(time.Minute)
	s.Stop()
	clock.Advance(10 * time.Minute)
	if runs != 1 {
		t.Fatalf("job ran after Stop, got %d runs", runs)
	}
}

func TestStartIsIdempotent(t *testing.T) {
	clock := newFakeClock()
	s := New(zap.NewNop())
	s.WithClock(clock)

	runs := 0
	s.Every("count", time.Minute, func(ctx context.Context) error {
		runs++
		return nil
	})
	s.Start(context.Background())
	s.Start(context.Background())

	clock.Advance(time.Minute)
	if runs != 1 {
		t.Fatalf("double start doubled the schedule, got %d runs", runs)
	}
	s.Stop()
}
