// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package scheduler runs the agent's periodic jobs: ring alignment,
// warning evaluation, retry processing, housekeeping.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/geotunnel/edge-agent/pkg/telemetry"
	"github.com/geotunnel/edge-agent/pkg/util/log"
)

var taskRuns = telemetry.NewCounter("scheduler", "task_runs_total",
	"Scheduled task executions", "task", "result")

// Task is one periodic job.
type Task struct {
	Name     string
	Fn       func(ctx context.Context) error
	Interval time.Duration
	Enabled  bool

	LastRun    time.Time
	NextRun    time.Time
	RunCount   int64
	ErrorCount int64
	LastError  string

	schedule cron.Schedule
}

// Scheduler ticks once a second and dispatches due tasks concurrently.
type Scheduler struct {
	clock clock.Clock

	mu    sync.Mutex
	tasks map[string]*Task

	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithClock substitutes the wall clock, for tests.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// New builds an idle scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{clock: clock.New(), tasks: map[string]*Task{}}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Add registers a periodic task.
func (s *Scheduler) Add(name string, interval time.Duration, fn func(ctx context.Context) error) error {
	if interval <= 0 {
		return errors.Errorf("task %s: non-positive interval", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[name]; exists {
		return errors.Errorf("task %s already registered", name)
	}
	s.tasks[name] = &Task{
		Name:     name,
		Fn:       fn,
		Interval: interval,
		Enabled:  true,
		NextRun:  s.clock.Now().Add(interval),
	}
	log.Infof("scheduled task %s every %s", name, interval)
	return nil
}

// AddCron registers a task on a cron expression, for housekeeping jobs
// that should run at fixed times of day rather than fixed intervals.
func (s *Scheduler) AddCron(name, spec string, fn func(ctx context.Context) error) error {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return errors.Wrapf(err, "parsing cron spec for task %s", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[name]; exists {
		return errors.Errorf("task %s already registered", name)
	}
	now := s.clock.Now()
	s.tasks[name] = &Task{
		Name:    name,
		Fn:      fn,
		Enabled: true,
		NextRun: schedule.Next(now),
		// Interval zero marks a cron task; the next run comes from the
		// schedule after each dispatch.
		schedule: schedule,
	}
	log.Infof("scheduled cron task %s (%s)", name, spec)
	return nil
}

// Start launches the tick loop.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		ticker := s.clock.Ticker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.dispatchDue(ctx)
			}
		}
	}()
}

// Stop terminates the loop and waits for in-flight tasks.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	s.wg.Wait()
}

func (s *Scheduler) dispatchDue(ctx context.Context) {
	now := s.clock.Now()
	s.mu.Lock()
	var due []*Task
	for _, t := range s.tasks {
		if !t.Enabled || now.Before(t.NextRun) {
			continue
		}
		t.LastRun = now
		if t.schedule != nil {
			t.NextRun = t.schedule.Next(now)
		} else {
			t.NextRun = now.Add(t.Interval)
		}
		due = append(due, t)
	}
	s.mu.Unlock()

	for _, t := range due {
		t := t
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			err := t.Fn(ctx)
			s.mu.Lock()
			t.RunCount++
			if err != nil {
				t.ErrorCount++
				t.LastError = err.Error()
			}
			s.mu.Unlock()
			if err != nil {
				taskRuns.WithLabelValues(t.Name, "error").Inc()
				log.Errorf("task %s failed: %v", t.Name, err) //nolint:errcheck
			} else {
				taskRuns.WithLabelValues(t.Name, "ok").Inc()
			}
		}()
	}
}

// SetEnabled toggles a task.
func (s *Scheduler) SetEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, found := s.tasks[name]
	if !found {
		return errors.Errorf("task %s not registered", name)
	}
	t.Enabled = enabled
	return nil
}

// UpdateInterval changes a periodic task's interval.
func (s *Scheduler) UpdateInterval(name string, interval time.Duration) error {
	if interval <= 0 {
		return errors.Errorf("task %s: non-positive interval", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, found := s.tasks[name]
	if !found {
		return errors.Errorf("task %s not registered", name)
	}
	t.Interval = interval
	t.NextRun = s.clock.Now().Add(interval)
	return nil
}

// TaskStatus is a snapshot of one task's counters.
type TaskStatus struct {
	Name       string    `json:"name"`
	Enabled    bool      `json:"enabled"`
	Interval   string    `json:"interval"`
	LastRun    time.Time `json:"last_run"`
	NextRun    time.Time `json:"next_run"`
	RunCount   int64     `json:"run_count"`
	ErrorCount int64     `json:"error_count"`
	LastError  string    `json:"last_error,omitempty"`
}

// Status snapshots every task.
func (s *Scheduler) Status() []TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TaskStatus, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, TaskStatus{
			Name:       t.Name,
			Enabled:    t.Enabled,
			Interval:   t.Interval.String(),
			LastRun:    t.LastRun,
			NextRun:    t.NextRun,
			RunCount:   t.RunCount,
			ErrorCount: t.ErrorCount,
			LastError:  t.LastError,
		})
	}
	return out
}
