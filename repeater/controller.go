// Package repeater moves completed recurring tasks to their next occurrence
// and tells the store, calendar, alarms and listeners about it.
package repeater

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/samber/mo"

	"github.com/cyp0633/librepeat/recurrence"
	"github.com/cyp0633/librepeat/task"
)

// ErrNoStore is returned by New when no TaskStore is given
var ErrNoStore = errors.New("repeater: task store is required")

// Controller advances recurring tasks. It holds no per-task state, so one
// controller may serve many tasks concurrently; calls for the same task id
// must be serialized by the caller (see Service).
type Controller struct {
	store    TaskStore
	calendar CalendarSync
	alarms   AlarmScheduler
	notifier ChangeNotifier

	engine *recurrence.Engine
	config recurrence.Config
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Controller
type Option func(*Controller)

// WithLogger sets the logger for the controller
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock replaces time.Now, used when a task has no anchor date
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithConfig sets the rule cache and location used for computing dates
func WithConfig(config recurrence.Config) Option {
	return func(c *Controller) {
		c.config = config
	}
}

// New creates a controller. store is required; nil calendar, alarm and
// notifier collaborators are skipped.
func New(store TaskStore, cal CalendarSync, alarms AlarmScheduler, notifier ChangeNotifier, opts ...Option) (*Controller, error) {
	if store == nil {
		return nil, ErrNoStore
	}

	c := &Controller{
		store:    store,
		calendar: cal,
		alarms:   alarms,
		notifier: notifier,
		config:   recurrence.DefaultConfig,
		now:      time.Now,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.engine = recurrence.NewEngineWithConfig(c.config)
	return c, nil
}

// Engine exposes the recurrence engine the controller computes with
func (c *Controller) Engine() *recurrence.Engine {
	return c.engine
}

// Advance moves t to the next occurrence of its recurrence rule.
//
// Only a missing or unparsable rule aborts early. The series ending is a
// normal outcome, not an error. Once the task has been advanced the calendar,
// store, alarm scheduler and notifier are called in that order, each one
// regardless of how the previous ones did.
func (c *Controller) Advance(ctx context.Context, t task.Task) Result {
	result := Result{Outcome: NoRecurrence, Task: t, OldDue: t.DueDate}

	if !t.IsRecurring() {
		return result
	}

	rule, err := c.engine.Parse(t.Recurrence)
	if err != nil {
		c.logger.Warn("invalid recurrence rule",
			"task_id", t.ID,
			"rule", t.Recurrence,
			"error", err)
		result.Outcome = InvalidRule
		result.Err = err
		return result
	}

	anchor := c.anchor(t, rule)
	occ, ok := c.engine.Next(anchor, t.HasDueTime, rule)
	count, bounded := rule.Count.Get()

	if !ok {
		result.Outcome = SeriesExhausted
		if bounded && count == 1 {
			result.Outcome = SeriesEndedByCount
		}
		c.logger.Debug("series has no next occurrence",
			"task_id", t.ID,
			"rule", t.Recurrence,
			"outcome", result.Outcome)
		return result
	}
	result.NewDue = occ.Time

	if !t.RepeatUntil.IsZero() && c.dayAfter(occ.Time, t.RepeatUntil) {
		result.Outcome = SeriesEndedByUntil
		c.logger.Debug("series passed its repeat-until date",
			"task_id", t.ID,
			"next", occ.Time,
			"until", t.RepeatUntil)
		if fn, ok := c.notifier.(FinishNotifier); ok {
			fn.NotifyRepeatFinished(ctx, t.ID, t.DueDate, occ.Time)
		}
		return result
	}

	if bounded && count == 1 {
		result.Outcome = SeriesEndedByCount
		c.logger.Debug("series reached its last occurrence", "task_id", t.ID)
		return result
	}

	next := t.WithDueDate(occ.Time, occ.HasTime).Reopened()
	if bounded {
		next.Recurrence = rule.WithCount(count - 1).String()
	}
	next.Modified = c.now()

	result.Outcome = Advanced
	result.Task = next
	result.NewDue = next.DueDate

	if c.calendar != nil {
		if err := c.calendar.Reschedule(ctx, next); err != nil {
			c.logger.Error("failed to reschedule calendar event",
				"task_id", next.ID,
				"calendar_uri", next.CalendarURI,
				"error", err)
			result.SyncErr = err
		}
	}

	if err := c.store.Save(ctx, next); err != nil {
		c.logger.Error("failed to save advanced task",
			"task_id", next.ID,
			"error", err)
		result.StoreErr = err
	}

	previous := result.OldDue
	if previous.IsZero() {
		previous = c.previousDue(occ, rule)
	}

	if c.alarms != nil {
		c.alarms.Reschedule(ctx, next.ID, previous, result.NewDue)
	}

	if c.notifier != nil {
		c.notifier.NotifyRepeated(ctx, next.ID, previous, result.NewDue)
	}

	c.logger.Info("task advanced",
		"task_id", next.ID,
		"old_due", result.OldDue,
		"new_due", result.NewDue,
		"rule", next.Recurrence)

	return result
}

// previousDue stands in for a missing old due date: one series step before
// occ, so alarm offsets and listeners still see the spacing of the series.
// It is zero when the series has no step after occ to measure.
func (c *Controller) previousDue(occ recurrence.Occurrence, rule recurrence.Rule) time.Time {
	rule.Count = mo.None[int]()
	after, ok := c.engine.Next(occ.Time, occ.HasTime, rule)
	if !ok {
		return time.Time{}
	}
	return occ.Time.Add(-after.Time.Sub(occ.Time))
}

// anchor picks the date the next occurrence is computed from. A timed due
// date keeps a day-or-longer series on its scheduled time of day even when
// the anchor is the completion moment.
func (c *Controller) anchor(t task.Task, rule recurrence.Rule) time.Time {
	loc := c.engine.Location()

	var anchor time.Time
	if rule.Anchor == recurrence.FromCompletionDate {
		anchor = t.CompletionDate
	} else {
		anchor = t.DueDate
	}
	if anchor.IsZero() {
		anchor = c.now()
	}
	anchor = anchor.In(loc)

	if t.HasDueDate() && t.HasDueTime && !rule.IsSubDay() {
		due := t.DueDate.In(loc)
		y, m, d := anchor.Date()
		anchor = time.Date(y, m, d, due.Hour(), due.Minute(), due.Second(), 0, loc)
	}
	return anchor
}

// dayAfter reports whether a falls on a later calendar day than b
func (c *Controller) dayAfter(a, b time.Time) bool {
	loc := c.engine.Location()
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC).After(time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC))
}
