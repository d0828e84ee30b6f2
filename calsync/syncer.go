package calsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/cyp0633/librepeat/task"
	"github.com/emersion/go-ical"
	"github.com/google/uuid"
)

// DefaultEventDuration is the length of a timed event for a task without an
// estimated duration
const DefaultEventDuration = time.Hour

// ErrNoDueDate is returned when a task without a due date is synced
var ErrNoDueDate = errors.New("calsync: task has no due date")

// Syncer keeps the calendar event linked to a task on the task's due date.
type Syncer struct {
	cal Calendar
	loc *time.Location

	// endAtDeadline makes a timed event end at the due time instead of
	// starting there.
	endAtDeadline   bool
	defaultDuration time.Duration

	now    func() time.Time
	logger *slog.Logger
}

// SyncerOption configures a Syncer
type SyncerOption func(*Syncer)

// WithLocation sets the zone event times are written in
func WithLocation(loc *time.Location) SyncerOption {
	return func(s *Syncer) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithEndAtDeadline makes timed events end at the due time
func WithEndAtDeadline(enabled bool) SyncerOption {
	return func(s *Syncer) {
		s.endAtDeadline = enabled
	}
}

// WithDefaultDuration sets the event length used when a task has no estimate
func WithDefaultDuration(d time.Duration) SyncerOption {
	return func(s *Syncer) {
		if d > 0 {
			s.defaultDuration = d
		}
	}
}

// WithClock replaces time.Now for DTSTAMP values
func WithClock(now func() time.Time) SyncerOption {
	return func(s *Syncer) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger for the syncer
func WithLogger(logger *slog.Logger) SyncerOption {
	return func(s *Syncer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSyncer creates a syncer writing to cal
func NewSyncer(cal Calendar, opts ...SyncerOption) *Syncer {
	s := &Syncer{
		cal:             cal,
		loc:             time.Local,
		defaultDuration: DefaultEventDuration,
		now:             time.Now,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reschedule moves the event linked to t onto t's due date. Tasks without a
// linked event are ignored.
func (s *Syncer) Reschedule(ctx context.Context, t task.Task) error {
	if t.CalendarURI == "" {
		return nil
	}
	if !t.HasDueDate() {
		return ErrNoDueDate
	}

	event, etag, err := s.cal.Get(ctx, t.CalendarURI)
	if err != nil {
		return fmt.Errorf("failed to fetch event %s: %w", t.CalendarURI, err)
	}

	s.applyTask(event, t)
	bumpSequence(event)

	newETag, err := s.cal.Put(ctx, t.CalendarURI, event, etag)
	if err != nil {
		return fmt.Errorf("failed to update event %s: %w", t.CalendarURI, err)
	}

	s.logger.Debug("calendar event rescheduled",
		"task_id", t.ID,
		"uri", t.CalendarURI,
		"due", t.DueDate,
		"etag", newETag)
	return nil
}

// Link creates an event for t in the collection at collectionURL and returns
// t with CalendarURI pointing at it.
func (s *Syncer) Link(ctx context.Context, t task.Task, collectionURL string) (task.Task, error) {
	if !t.HasDueDate() {
		return t, ErrNoDueDate
	}

	id := uuid.New().String()
	base, err := url.Parse(collectionURL)
	if err != nil {
		return t, fmt.Errorf("failed to parse collection URL: %w", err)
	}
	ref, err := url.Parse(id + ".ics")
	if err != nil {
		return t, fmt.Errorf("failed to parse object URL: %w", err)
	}
	objectURL := base.ResolveReference(ref).String()

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, id)
	s.applyTask(event, t)

	if _, err := s.cal.Put(ctx, objectURL, event, ""); err != nil {
		return t, fmt.Errorf("failed to create event: %w", err)
	}

	s.logger.Info("calendar event linked", "task_id", t.ID, "uri", objectURL)
	t.CalendarURI = objectURL
	return t, nil
}

// applyTask writes the task's title, notes and due date into event
func (s *Syncer) applyTask(event *ical.Event, t task.Task) {
	event.Props.SetText(ical.PropSummary, t.Title)
	if t.Notes != "" {
		event.Props.SetText(ical.PropDescription, t.Notes)
	} else {
		delete(event.Props, ical.PropDescription)
	}
	event.Props.SetDateTime(ical.PropDateTimeStamp, s.now().UTC())

	start, end := s.eventSpan(t)
	if !t.HasDueTime {
		event.Props.SetDate(ical.PropDateTimeStart, start)
		event.Props.SetDate(ical.PropDateTimeEnd, end)
		return
	}
	event.Props.SetDateTime(ical.PropDateTimeStart, wireTime(start))
	event.Props.SetDateTime(ical.PropDateTimeEnd, wireTime(end))
}

// wireTime returns t in a zone a calendar server can resolve. The process
// local zone is named "Local", which is no TZID, so it is written as UTC.
func wireTime(t time.Time) time.Time {
	if t.Location() == time.Local || t.Location().String() == "Local" {
		return t.UTC()
	}
	return t
}

// eventSpan returns the event start and end for t. Date-only tasks span the
// whole due day.
func (s *Syncer) eventSpan(t task.Task) (time.Time, time.Time) {
	due := t.DueDate.In(s.loc)
	if !t.HasDueTime {
		y, m, d := due.Date()
		start := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
		return start, start.AddDate(0, 0, 1)
	}

	length := t.EstimatedDuration
	if length <= 0 {
		length = s.defaultDuration
	}
	if s.endAtDeadline {
		return due.Add(-length), due
	}
	return due, due.Add(length)
}

// bumpSequence increments the event's SEQUENCE so clients notice the change
func bumpSequence(event *ical.Event) {
	seq := 0
	if prop := event.Props.Get(ical.PropSequence); prop != nil {
		if n, err := strconv.Atoi(prop.Value); err == nil {
			seq = n
		}
	}
	prop := ical.NewProp(ical.PropSequence)
	prop.Value = strconv.Itoa(seq + 1)
	event.Props.Set(prop)
}
