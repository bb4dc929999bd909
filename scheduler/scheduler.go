package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// TaskFn is the function signature for scheduled tasks. ctx is cancelled
// when the scheduler stops.
type TaskFn func(ctx context.Context)

const (
	KindInterval = "interval"
	KindCron     = "cron"
	KindDelay    = "delay"
)

// JobInfo describes one registered job.
type JobInfo struct {
	Name     string    `json:"name"`
	Kind     string    `json:"kind"`
	Schedule string    `json:"schedule"`
	NextRun  time.Time `json:"next_run"`
	LastRun  time.Time `json:"last_run,omitempty"`
	Runs     int64     `json:"runs"`
	Panics   int64     `json:"panics"`
}

type job struct {
	info   JobInfo
	stopCh chan struct{}
	timer  *time.Timer // delay jobs only
}

// Scheduler runs interval, cron and one-shot jobs.
type Scheduler struct {
	mu     sync.Mutex
	jobs   map[string]*job
	logger *zap.Logger
	now    func() time.Time
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Scheduler.
func New(logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		jobs:   make(map[string]*job),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		ctx:    ctx,
		cancel: cancel,
	}
}

// every fires at a fixed interval after the previous run.
type every time.Duration

func (e every) Next(t time.Time) time.Time { return t.Add(time.Duration(e)) }

// AddTicker registers a task to run on a fixed interval.
// If a task with the same name exists, it is replaced.
func (s *Scheduler) AddTicker(name string, interval time.Duration, fn TaskFn) {
	s.addSchedule(name, KindInterval, interval.String(), every(interval), fn)
}

// AddCron registers a task on a standard five-field cron expression,
// e.g. "0 0 * * 1", evaluated in UTC. A "CRON_TZ=" prefix pins another
// time zone.
func (s *Scheduler) AddCron(name, spec string, fn TaskFn) error {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("scheduler: parse cron %q: %w", spec, err)
	}
	s.addSchedule(name, KindCron, spec, sched, fn)
	return nil
}

func (s *Scheduler) addSchedule(name, kind, spec string, sched cron.Schedule, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(name)
	j := &job{
		info:   JobInfo{Name: name, Kind: kind, Schedule: spec, NextRun: sched.Next(s.now())},
		stopCh: make(chan struct{}),
	}
	s.jobs[name] = j

	go func() {
		for {
			s.mu.Lock()
			wait := j.info.NextRun.Sub(s.now())
			s.mu.Unlock()

			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
				s.run(j, fn)
				s.mu.Lock()
				j.info.NextRun = sched.Next(s.now())
				s.mu.Unlock()
			case <-j.stopCh:
				timer.Stop()
				return
			case <-s.ctx.Done():
				timer.Stop()
				return
			}
		}
	}()
	s.logger.Info("scheduler task registered",
		zap.String("name", name),
		zap.String("kind", kind),
		zap.String("schedule", spec),
		zap.Time("next_run", j.info.NextRun))
}

// AddDelay runs fn once after the given delay.
func (s *Scheduler) AddDelay(name string, delay time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(name)
	j := &job{
		info:   JobInfo{Name: name, Kind: KindDelay, Schedule: delay.String(), NextRun: s.now().Add(delay)},
		stopCh: make(chan struct{}),
	}
	j.timer = time.AfterFunc(delay, func() {
		if s.ctx.Err() != nil {
			return
		}
		s.run(j, fn)
		s.mu.Lock()
		if s.jobs[name] == j {
			delete(s.jobs, name)
		}
		s.mu.Unlock()
	})
	s.jobs[name] = j
}

func (s *Scheduler) run(j *job, fn TaskFn) {
	started := s.now()
	defer func() {
		r := recover()
		if r != nil {
			s.logger.Error("scheduler task panicked",
				zap.String("task", j.info.Name),
				zap.Any("recover", r))
		}
		s.mu.Lock()
		j.info.LastRun = started
		j.info.Runs++
		if r != nil {
			j.info.Panics++
		}
		s.mu.Unlock()
	}()
	fn(s.ctx)
}

// Remove stops and removes a task by name.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(name)
}

func (s *Scheduler) removeLocked(name string) {
	j, ok := s.jobs[name]
	if !ok {
		return
	}
	if j.timer != nil {
		j.timer.Stop()
	}
	close(j.stopCh)
	delete(s.jobs, name)
}

// Stop stops all tasks and cancels the context of running ones.
func (s *Scheduler) Stop() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.timer != nil {
			j.timer.Stop()
		}
	}
}

// Jobs returns a snapshot of every registered task, sorted by name.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.info)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}
