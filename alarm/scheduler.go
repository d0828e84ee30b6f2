// Package alarm keeps one pending reminder per task and fires the ones that
// have come due from a periodic cron sweep.
package alarm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cyp0633/librepeat/task"
	"github.com/robfig/cron/v3"
)

// DefaultReminderHour is the local hour date-only tasks are reminded at
const DefaultReminderHour = 9

// DefaultInterval is how often the sweep checks for due alarms
const DefaultInterval = 30 * time.Second

// ErrAlreadyStarted is returned by Start on a running scheduler
var ErrAlreadyStarted = errors.New("alarm: scheduler already started")

// Alarm is one pending reminder
type Alarm struct {
	TaskID task.ID
	At     time.Time
}

// Scheduler holds pending alarms keyed by task id
type Scheduler struct {
	mu     sync.Mutex
	alarms map[task.ID]time.Time

	fire         func(Alarm)
	loc          *time.Location
	reminderHour int
	interval     time.Duration
	now          func() time.Time
	logger       *slog.Logger

	cron *cron.Cron
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithLocation sets the zone reminder hours are interpreted in
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithReminderHour sets the hour date-only tasks are reminded at
func WithReminderHour(hour int) Option {
	return func(s *Scheduler) {
		if hour >= 0 && hour < 24 {
			s.reminderHour = hour
		}
	}
}

// WithInterval sets the sweep period, rounded down to whole seconds
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= time.Second {
			s.interval = d
		}
	}
}

// WithClock replaces time.Now for the sweep
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger for the scheduler
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a scheduler that hands due alarms to fire
func New(fire func(Alarm), opts ...Option) *Scheduler {
	s := &Scheduler{
		alarms:       make(map[task.ID]time.Time),
		fire:         fire,
		loc:          time.Local,
		reminderHour: DefaultReminderHour,
		interval:     DefaultInterval,
		now:          time.Now,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule sets the alarm of t at its due date, replacing any pending one.
// A task without a due date has its alarm cancelled.
func (s *Scheduler) Schedule(t task.Task) {
	if !t.HasDueDate() {
		s.Cancel(t.ID)
		return
	}
	at := t.DueDate
	if !t.HasDueTime {
		at = s.atReminderHour(t.DueDate)
	}
	s.set(t.ID, at)
}

// Reschedule moves a pending alarm by newDue-oldDue so a custom reminder
// offset survives. Without a pending alarm one is set at newDue, or at the
// reminder hour when newDue is a local midnight.
func (s *Scheduler) Reschedule(_ context.Context, id task.ID, oldDue, newDue time.Time) {
	if newDue.IsZero() {
		s.Cancel(id)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	at, ok := s.alarms[id]
	switch {
	case ok && !oldDue.IsZero():
		at = at.Add(newDue.Sub(oldDue))
	case isMidnight(newDue.In(s.loc)):
		at = s.atReminderHour(newDue)
	default:
		at = newDue
	}
	s.alarms[id] = at
	s.logger.Debug("alarm rescheduled", "task_id", id, "at", at)
}

// Cancel drops the pending alarm of id
func (s *Scheduler) Cancel(id task.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.alarms, id)
}

// Pending returns the alarm time of id
func (s *Scheduler) Pending(id task.ID) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.alarms[id]
	return at, ok
}

// Due removes and returns every alarm at or before now, earliest first
func (s *Scheduler) Due(now time.Time) []Alarm {
	s.mu.Lock()
	var due []Alarm
	for id, at := range s.alarms {
		if !at.After(now) {
			due = append(due, Alarm{TaskID: id, At: at})
			delete(s.alarms, id)
		}
	}
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].At.Equal(due[j].At) {
			return due[i].TaskID < due[j].TaskID
		}
		return due[i].At.Before(due[j].At)
	})
	return due
}

// Start registers the sweep job and starts the cron runner
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return ErrAlreadyStarted
	}

	c := cron.New(cron.WithLocation(s.loc))
	spec := fmt.Sprintf("@every %ds", int(s.interval.Seconds()))
	if _, err := c.AddFunc(spec, s.sweep); err != nil {
		return fmt.Errorf("failed to register alarm sweep: %w", err)
	}
	c.Start()
	s.cron = c
	s.logger.Info("alarm scheduler started", "interval", s.interval)
	return nil
}

// Stop halts the sweep and waits for a running one to finish or ctx to end
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	s.logger.Info("alarm scheduler stopped")
}

// sweep fires every due alarm
func (s *Scheduler) sweep() {
	for _, a := range s.Due(s.now()) {
		s.logger.Debug("alarm fired", "task_id", a.TaskID, "at", a.At)
		if s.fire != nil {
			s.fire(a)
		}
	}
}

func (s *Scheduler) set(id task.ID, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alarms[id] = at
	s.logger.Debug("alarm scheduled", "task_id", id, "at", at)
}

func (s *Scheduler) atReminderHour(day time.Time) time.Time {
	y, m, d := day.In(s.loc).Date()
	return time.Date(y, m, d, s.reminderHour, 0, 0, 0, s.loc)
}

func isMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0
}
