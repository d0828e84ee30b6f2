package repeater

import (
	"context"
	"time"

	"github.com/cyp0633/librepeat/task"
)

// TaskStore persists an advanced task. Save must write every field Advance
// changed in one step.
type TaskStore interface {
	Save(ctx context.Context, t task.Task) error
}

// CalendarSync mirrors the new due date to an external calendar
type CalendarSync interface {
	Reschedule(ctx context.Context, t task.Task) error
}

// AlarmScheduler moves the pending reminder of a task. oldDue is derived from
// the series when the task had no due date, and zero only when that is not
// possible either.
type AlarmScheduler interface {
	Reschedule(ctx context.Context, id task.ID, oldDue, newDue time.Time)
}

// ChangeNotifier is told about every advanced task
type ChangeNotifier interface {
	NotifyRepeated(ctx context.Context, id task.ID, oldDue, newDue time.Time)
}

// FinishNotifier is optionally implemented by a ChangeNotifier that also
// wants to hear when a series ends because of its repeat-until date.
type FinishNotifier interface {
	NotifyRepeatFinished(ctx context.Context, id task.ID, oldDue, newDue time.Time)
}

// TaskSource loads the current state of a task
type TaskSource interface {
	Fetch(ctx context.Context, id task.ID) (task.Task, error)
}
