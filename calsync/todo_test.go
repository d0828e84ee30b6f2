package calsync

import (
	"strings"
	"testing"
	"time"

	"github.com/cyp0633/librepeat/task"
	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const todoCalendar = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//EN\r\n" +
	"BEGIN:VTODO\r\n" +
	"UID:todo-1\r\n" +
	"DTSTAMP:20160801T000000Z\r\n" +
	"SUMMARY:Pay rent\r\n" +
	"DESCRIPTION:transfer to landlord\r\n" +
	"DUE;VALUE=DATE:20160831\r\n" +
	"RRULE:FREQ=MONTHLY;UNTIL=20161231T000000Z;INTERVAL=1\r\n" +
	"END:VTODO\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:event-1\r\n" +
	"DTSTAMP:20160801T000000Z\r\n" +
	"DTSTART:20160801T100000Z\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VTODO\r\n" +
	"UID:todo-2\r\n" +
	"DTSTAMP:20160801T000000Z\r\n" +
	"SUMMARY:Stand-up\r\n" +
	"DUE:20160826T093000Z\r\n" +
	"COMPLETED:20160826T094500Z\r\n" +
	"RRULE:FREQ=WEEKLY;BYDAY=MO,WE;FROM=COMPLETION\r\n" +
	"END:VTODO\r\n" +
	"END:VCALENDAR\r\n"

func TestTasksFromCalendar(t *testing.T) {
	tasks, err := TasksFromCalendar(strings.NewReader(todoCalendar), time.UTC)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	rent := tasks[0]
	assert.Equal(t, task.ID("todo-1"), rent.ID)
	assert.Equal(t, "Pay rent", rent.Title)
	assert.Equal(t, "transfer to landlord", rent.Notes)
	assert.False(t, rent.HasDueTime)
	assert.True(t, time.Date(2016, 8, 31, 0, 0, 0, 0, time.UTC).Equal(rent.DueDate))
	assert.Equal(t, "FREQ=MONTHLY;INTERVAL=1", rent.Recurrence)
	assert.True(t, time.Date(2016, 12, 31, 0, 0, 0, 0, time.UTC).Equal(rent.RepeatUntil))
	assert.False(t, rent.IsCompleted())

	standup := tasks[1]
	assert.True(t, standup.HasDueTime)
	assert.True(t, time.Date(2016, 8, 26, 9, 30, 0, 0, time.UTC).Equal(standup.DueDate))
	assert.True(t, time.Date(2016, 8, 26, 9, 45, 0, 0, time.UTC).Equal(standup.CompletionDate))
	assert.Equal(t, "FREQ=WEEKLY;INTERVAL=1;BYDAY=MO,WE;FROM=COMPLETION", standup.Recurrence)
	assert.True(t, standup.RepeatUntil.IsZero())
}

func TestTaskFromTodo(t *testing.T) {
	t.Run("rejects other components", func(t *testing.T) {
		_, err := TaskFromTodo(ical.NewEvent().Component, time.UTC)
		assert.Error(t, err)
	})

	t.Run("generates an id when UID is missing", func(t *testing.T) {
		comp := ical.NewComponent(ical.CompToDo)
		comp.Props.SetText(ical.PropSummary, "no uid")
		got, err := TaskFromTodo(comp, time.UTC)
		require.NoError(t, err)
		assert.NotEmpty(t, got.ID)
		assert.False(t, got.HasDueDate())
	})

	t.Run("falls back to DTSTART", func(t *testing.T) {
		comp := ical.NewComponent(ical.CompToDo)
		comp.Props.SetText(ical.PropUID, "x")
		comp.Props.SetDateTime(ical.PropDateTimeStart, time.Date(2016, 8, 26, 7, 0, 0, 0, time.UTC))
		got, err := TaskFromTodo(comp, time.UTC)
		require.NoError(t, err)
		assert.True(t, got.HasDueTime)
		assert.True(t, time.Date(2016, 8, 26, 7, 0, 0, 0, time.UTC).Equal(got.DueDate))
	})

	t.Run("keeps unparsable rules verbatim", func(t *testing.T) {
		comp := ical.NewComponent(ical.CompToDo)
		comp.Props.SetText(ical.PropUID, "y")
		prop := ical.NewProp(ical.PropRecurrenceRule)
		prop.Value = "FREQ=SECONDLY;UNTIL=20170101"
		comp.Props.Set(prop)

		got, err := TaskFromTodo(comp, time.UTC)
		require.NoError(t, err)
		assert.Equal(t, "FREQ=SECONDLY", got.Recurrence)
		assert.True(t, time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC).Equal(got.RepeatUntil))
	})

	t.Run("bad until", func(t *testing.T) {
		comp := ical.NewComponent(ical.CompToDo)
		prop := ical.NewProp(ical.PropRecurrenceRule)
		prop.Value = "FREQ=DAILY;UNTIL=tomorrow"
		comp.Props.Set(prop)

		_, err := TaskFromTodo(comp, time.UTC)
		assert.ErrorContains(t, err, "invalid UNTIL")
	})
}
