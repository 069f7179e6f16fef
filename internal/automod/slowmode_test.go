package automod

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"guildwarden/internal/scheduler"
)

type fakeGate struct {
	mu     sync.Mutex
	denied []string
	opened []string
}

func (g *fakeGate) DenySend(ctx context.Context, channelID, userID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.denied = append(g.denied, channelID+"|"+userID)
	return nil
}

func (g *fakeGate) AllowSend(ctx context.Context, channelID, userID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.opened = append(g.opened, channelID+"|"+userID)
	return nil
}

type stubClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*stubTimer
}

type stubTimer struct {
	deadline time.Time
	f        func()
	stopped  bool
	fired    bool
}

func newStubClock() *stubClock {
	return &stubClock{now: time.Unix(1700000000, 0)}
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stubClock) AfterFunc(d time.Duration, f func()) scheduler.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &stubTimer{deadline: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *stubTimer) Stop() bool {
	stopped := !t.fired && !t.stopped
	t.stopped = true
	return stopped
}

func (c *stubClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	due := []*stubTimer{}
	for _, t := range c.timers {
		if !t.fired && !t.stopped && !t.deadline.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

// instantClock fires callbacks synchronously inside AfterFunc, modelling a
// cooldown that lapses before the caller gets the timer back.
type instantClock struct{}

func (instantClock) Now() time.Time { return time.Unix(1700000000, 0) }

func (instantClock) AfterFunc(d time.Duration, f func()) scheduler.Timer {
	f()
	return firedTimer{}
}

type firedTimer struct{}

func (firedTimer) Stop() bool { return false }

func TestCooldownDeniesThenReleases(t *testing.T) {
	gate := &fakeGate{}
	clock := newStubClock()
	s := NewSlowmode(gate, clock, zap.NewNop())
	ctx := context.Background()

	s.SetChannel("chan1", 30*time.Second)
	s.HandleMessage(ctx, "chan1", "user1")

	if len(gate.denied) != 1 || gate.denied[0] != "chan1|user1" {
		t.Fatalf("unexpected denies %v", gate.denied)
	}
	if len(gate.opened) != 0 {
		t.Fatalf("released too early")
	}

	clock.Advance(30 * time.Second)
	if len(gate.opened) != 1 || gate.opened[0] != "chan1|user1" {
		t.Fatalf("unexpected releases %v", gate.opened)
	}
}

func TestNoCooldownConfigured(t *testing.T) {
	gate := &fakeGate{}
	s := NewSlowmode(gate, newStubClock(), zap.NewNop())

	s.HandleMessage(context.Background(), "chan1", "user1")
	if len(gate.denied) != 0 {
		t.Fatalf("channel without a cooldown must not deny")
	}
}

func TestArmedCooldownNotDoubled(t *testing.T) {
	gate := &fakeGate{}
	clock := newStubClock()
	s := NewSlowmode(gate, clock, zap.NewNop())
	ctx := context.Background()

	s.SetChannel("chan1", time.Minute)
	s.HandleMessage(ctx, "chan1", "user1")
	s.HandleMessage(ctx, "chan1", "user1")

	if len(gate.denied) != 1 {
		t.Fatalf("expected one deny, got %d", len(gate.denied))
	}
}

func TestImmediateExpiryLeavesNoStaleEntry(t *testing.T) {
	gate := &fakeGate{}
	s := NewSlowmode(gate, instantClock{}, zap.NewNop())
	ctx := context.Background()

	s.SetChannel("chan1", time.Nanosecond)
	s.HandleMessage(ctx, "chan1", "user1")
	s.HandleMessage(ctx, "chan1", "user1")

	if len(gate.denied) != 2 {
		t.Fatalf("second message must cool down again, got %d denies", len(gate.denied))
	}
	if len(gate.opened) != 2 {
		t.Fatalf("expected both cooldowns released, got %d", len(gate.opened))
	}
}

func TestZeroCooldownDisablesChannel(t *testing.T) {
	gate := &fakeGate{}
	s := NewSlowmode(gate, newStubClock(), zap.NewNop())
	ctx := context.Background()

	s.SetChannel("chan1", time.Minute)
	s.SetChannel("chan1", 0)
	s.HandleMessage(ctx, "chan1", "user1")

	if len(gate.denied) != 0 {
		t.Fatalf("disabled channel must not deny")
	}
}

func TestReleaseLiftsPendingCooldowns(t *testing.T) {
	gate := &fakeGate{}
	clock := newStubClock()
	s := NewSlowmode(gate, clock, zap.NewNop())
	ctx := context.Background()

	s.SetChannel("chan1", time.Minute)
	s.HandleMessage(ctx, "chan1", "user1")
	s.HandleMessage(ctx, "chan1", "user2")

	s.Release(ctx)
	if len(gate.opened) != 2 {
		t.Fatalf("expected both cooldowns lifted, got %v", gate.opened)
	}

	clock.Advance(time.Minute)
	if len(gate.opened) != 2 {
		t.Fatalf("stopped timers must not release again")
	}
}
