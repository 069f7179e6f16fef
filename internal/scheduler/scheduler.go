// Package scheduler runs named periodic jobs on an injectable clock.
// A job's timer is re-armed only after its body returns, so an overrun
// delays the next run instead of overlapping or skipping it.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"guildwarden/internal/metrics"
)

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

type realTimer struct{ t *time.Timer }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

func (t realTimer) Stop() bool { return t.t.Stop() }

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

// Task is one job body. The error is logged and counted; it never stops
// the schedule.
type Task func(ctx context.Context) error

type job struct {
	name     string
	interval time.Duration
	task     Task
	timer    Timer
}

type Scheduler struct {
	mu      sync.Mutex
	clock   Clock
	logger  *zap.Logger
	jobs    []*job
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	wg      sync.WaitGroup
}

func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{clock: realClock{}, logger: logger}
}

// WithClock overrides the clock, for tests. Must be called before Start.
func (s *Scheduler) WithClock(clock Clock) { s.clock = clock }

// Every registers a named periodic job. Must be called before Start.
func (s *Scheduler) Every(name string, interval time.Duration, task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, &job{name: name, interval: interval, task: task})
}

// Start arms every registered job. The first run happens one interval in.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	for _, j := range s.jobs {
		s.arm(j)
	}
}

// Stop cancels the job context and every pending timer. Bodies already
// running are waited for.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	for _, j := range s.jobs {
		if j.timer != nil {
			j.timer.Stop()
		}
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) arm(j *job) {
	j.timer = s.clock.AfterFunc(j.interval, func() { s.fire(j) })
}

func (s *Scheduler) fire(j *job) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	s.runOnce(ctx, j)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.arm(j)
}

func (s *Scheduler) runOnce(ctx context.Context, j *job) {
	defer func() {
		if r := recover(); r != nil {
			metrics.JobFailures.WithLabelValues(j.name).Inc()
			s.logger.Error("job panicked", zap.String("job", j.name), zap.Any("panic", r))
		}
	}()
	if err := j.task(ctx); err != nil {
		metrics.JobFailures.WithLabelValues(j.name).Inc()
		s.logger.Warn("job failed", zap.String("job", j.name), zap.Error(err))
	}
}
