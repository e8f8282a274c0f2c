package jobs

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// JobFunc is the unit of scheduled work.
type JobFunc func(context.Context) error

type jobKind int

const (
	kindDaily jobKind = iota
	kindInterval
)

type job struct {
	name         string
	kind         jobKind
	hour         int
	minute       int
	weekdaysOnly bool
	interval     time.Duration
	fn           JobFunc
}

// Scheduler fires registered jobs either once a day at a wall-clock time or
// on a fixed interval. Daily jobs are resolved in the process local time zone.
type Scheduler struct {
	logger *zap.Logger

	jobs    []job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewScheduler builds an empty scheduler.
func NewScheduler(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{logger: logger}
}

// AddDaily registers a job that runs every day at the given "HH:MM" time.
// With weekdaysOnly set, Saturday and Sunday occurrences are skipped.
func (s *Scheduler) AddDaily(name, at string, weekdaysOnly bool, fn JobFunc) error {
	hour, minute, err := parseAt(at)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("schedule %s: scheduler already started", name)
	}
	s.jobs = append(s.jobs, job{
		name:         name,
		kind:         kindDaily,
		hour:         hour,
		minute:       minute,
		weekdaysOnly: weekdaysOnly,
		fn:           fn,
	})
	return nil
}

// AddInterval registers a job that runs immediately and then every interval.
func (s *Scheduler) AddInterval(name string, interval time.Duration, fn JobFunc) error {
	if interval <= 0 {
		return fmt.Errorf("schedule %s: interval must be positive", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("schedule %s: scheduler already started", name)
	}
	s.jobs = append(s.jobs, job{name: name, kind: kindInterval, interval: interval, fn: fn})
	return nil
}

// Start launches one goroutine per registered job. Safe to call once.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	for _, j := range s.jobs {
		s.wg.Add(1)
		switch j.kind {
		case kindDaily:
			go s.runDaily(j)
		case kindInterval:
			go s.runInterval(j)
		}
	}
	s.started = true
	s.logger.Sugar().Infow("scheduler started", "jobs", len(s.jobs))
}

// Stop cancels all job loops and waits for them to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
	s.logger.Sugar().Infow("scheduler stopped")
}

func (s *Scheduler) runDaily(j job) {
	defer s.wg.Done()
	for {
		next := nextRun(time.Now(), j.hour, j.minute, j.weekdaysOnly)
		s.logger.Sugar().Infow("next run scheduled", "job", j.name, "at", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.execute(j)
		}
	}
}

func (s *Scheduler) runInterval(j job) {
	defer s.wg.Done()

	s.execute(j)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.execute(j)
		}
	}
}

// execute runs the job and keeps the loop alive through panics. A crashing
// run must not take the daemon's other schedules down with it.
func (s *Scheduler) execute(j job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Sugar().Errorw("job panicked", "job", j.name, "panic", r)
		}
	}()

	start := time.Now()
	if err := j.fn(s.ctx); err != nil {
		s.logger.Sugar().Errorw("job failed", "job", j.name, "error", err, "duration", time.Since(start))
		return
	}
	s.logger.Sugar().Infow("job completed", "job", j.name, "duration", time.Since(start))
}

// nextRun returns the first instant strictly after now that lands on
// hour:minute, skipping weekend days when weekdaysOnly is set.
func nextRun(now time.Time, hour, minute int, weekdaysOnly bool) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	for weekdaysOnly && (next.Weekday() == time.Saturday || next.Weekday() == time.Sunday) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func parseAt(at string) (int, int, error) {
	parts := strings.Split(at, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", at)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", at)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", at)
	}
	return hour, minute, nil
}
