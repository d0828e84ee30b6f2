package repeater

import (
	"errors"
	"fmt"
	"time"

	"github.com/cyp0633/librepeat/task"
)

// Outcome is the terminal state of one Advance call
type Outcome int

const (
	// NoRecurrence means the task has no rule; nothing happened.
	NoRecurrence Outcome = iota
	// InvalidRule means the stored rule could not be parsed; nothing happened.
	InvalidRule
	// SeriesExhausted means no next occurrence could be found.
	SeriesExhausted
	// SeriesEndedByUntil means the next occurrence falls after the repeat-until day.
	SeriesEndedByUntil
	// SeriesEndedByCount means the current occurrence was the last one.
	SeriesEndedByCount
	// Advanced means the task moved to its next occurrence and every
	// collaborator was called.
	Advanced
)

var outcomeNames = map[Outcome]string{
	NoRecurrence:       "no_recurrence",
	InvalidRule:        "invalid_rule",
	SeriesExhausted:    "series_exhausted",
	SeriesEndedByUntil: "series_ended_by_until",
	SeriesEndedByCount: "series_ended_by_count",
	Advanced:           "advanced",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Result describes what Advance did.
type Result struct {
	Outcome Outcome
	// Task is the advanced task when Outcome is Advanced, otherwise the input
	// task unchanged.
	Task task.Task
	// OldDue is the stored due date before advancing, zero when the task had
	// none. Alarms and notifiers are then given one series step before NewDue.
	OldDue time.Time
	NewDue time.Time

	// Err is the parse error for InvalidRule.
	Err error
	// SyncErr and StoreErr are collaborator failures. They never stop the
	// remaining collaborators from running.
	SyncErr  error
	StoreErr error
}

// Error joins every error carried by the result, nil when there is none
func (r Result) Error() error {
	return errors.Join(r.Err, r.SyncErr, r.StoreErr)
}

// Persisted reports whether the advanced task reached the store
func (r Result) Persisted() bool {
	return r.Outcome == Advanced && r.StoreErr == nil
}
