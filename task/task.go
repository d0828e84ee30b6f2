// Package task holds the task value the recurrence engine reads and advances.
package task

import (
	"time"

	"github.com/google/uuid"
)

// ID identifies a task. It is opaque to the engine.
type ID string

// NewID returns a fresh random task id
func NewID() ID {
	return ID(uuid.New().String())
}

// Task is the projection of a stored task the recurrence engine works with.
// A zero time.Time means "not set" for every date field.
type Task struct {
	ID    ID
	Title string
	Notes string

	// DueDate is either a date (midnight, HasDueTime false) or a date and
	// time of day (HasDueTime true). See NewDueDate.
	DueDate    time.Time
	HasDueTime bool

	CompletionDate time.Time
	// Recurrence is the serialized recurrence rule, empty when the task does not repeat.
	Recurrence  string
	RepeatUntil time.Time
	// HideUntil keeps its offset from DueDate when the due date moves.
	HideUntil      time.Time
	ReminderSnooze time.Time

	// CalendarURI points to an external calendar event mirroring this task.
	CalendarURI       string
	EstimatedDuration time.Duration

	Created  time.Time
	Modified time.Time
}

// NewDueDate normalizes a due date. Date-only values are moved to midnight in
// loc, timed values lose their sub-second part.
func NewDueDate(t time.Time, hasTime bool, loc *time.Location) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	if !hasTime {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
	return t.Truncate(time.Second)
}

// HasDueDate reports whether a due date is set
func (t Task) HasDueDate() bool {
	return !t.DueDate.IsZero()
}

// IsCompleted reports whether the task carries a completion date
func (t Task) IsCompleted() bool {
	return !t.CompletionDate.IsZero()
}

// IsRecurring reports whether the task has a recurrence rule
func (t Task) IsRecurring() bool {
	return t.Recurrence != ""
}

// WithDueDate returns a copy of t due at due. When both the old due date and
// HideUntil are set, HideUntil moves by the same amount as the due date.
func (t Task) WithDueDate(due time.Time, hasTime bool) Task {
	loc := due.Location()
	due = NewDueDate(due, hasTime, loc)
	if !t.HideUntil.IsZero() && t.HasDueDate() && !due.IsZero() {
		t.HideUntil = t.HideUntil.Add(due.Sub(t.DueDate))
	}
	t.DueDate = due
	t.HasDueTime = hasTime && !due.IsZero()
	return t
}

// Reopened returns a copy of t with completion and snooze cleared
func (t Task) Reopened() Task {
	t.CompletionDate = time.Time{}
	t.ReminderSnooze = time.Time{}
	return t
}

// Completed returns a copy of t completed at at
func (t Task) Completed(at time.Time) Task {
	t.CompletionDate = at
	return t
}
