package calsync

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cyp0633/librepeat/recurrence"
	"github.com/cyp0633/librepeat/task"
	"github.com/emersion/go-ical"
)

var untilLayouts = []string{
	"20060102T150405Z",
	"20060102T150405",
	"20060102",
}

// TaskFromTodo converts a VTODO component into a task. Dates without a zone
// are read in loc. An UNTIL part of the RRULE becomes the task's RepeatUntil.
func TaskFromTodo(comp *ical.Component, loc *time.Location) (task.Task, error) {
	if comp.Name != ical.CompToDo {
		return task.Task{}, fmt.Errorf("expected %s component, got %s", ical.CompToDo, comp.Name)
	}
	if loc == nil {
		loc = time.Local
	}

	var t task.Task
	if uid, err := comp.Props.Text(ical.PropUID); err == nil && uid != "" {
		t.ID = task.ID(uid)
	} else {
		t.ID = task.NewID()
	}
	t.Title, _ = comp.Props.Text(ical.PropSummary)
	t.Notes, _ = comp.Props.Text(ical.PropDescription)

	dueProp := comp.Props.Get(ical.PropDue)
	if dueProp == nil {
		dueProp = comp.Props.Get(ical.PropDateTimeStart)
	}
	if dueProp != nil {
		due, err := dueProp.DateTime(loc)
		if err != nil {
			return task.Task{}, fmt.Errorf("invalid due date: %w", err)
		}
		hasTime := dueProp.ValueType() != ical.ValueDate
		t.DueDate = task.NewDueDate(due, hasTime, loc)
		t.HasDueTime = hasTime
	}

	var err error
	if t.CompletionDate, err = propTime(comp, ical.PropCompleted, loc); err != nil {
		return task.Task{}, err
	}
	if t.Created, err = propTime(comp, ical.PropCreated, loc); err != nil {
		return task.Task{}, err
	}
	if t.Modified, err = propTime(comp, ical.PropLastModified, loc); err != nil {
		return task.Task{}, err
	}

	if prop := comp.Props.Get(ical.PropRecurrenceRule); prop != nil {
		rule, until, err := splitUntil(prop.Value, loc)
		if err != nil {
			return task.Task{}, err
		}
		t.Recurrence = rule
		t.RepeatUntil = until
	}

	return t, nil
}

// TasksFromCalendar decodes an iCalendar stream and converts every VTODO in it
func TasksFromCalendar(r io.Reader, loc *time.Location) ([]task.Task, error) {
	dec := ical.NewDecoder(r)
	var tasks []task.Task
	for {
		cal, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode calendar: %w", err)
		}
		for _, child := range cal.Children {
			if child.Name != ical.CompToDo {
				continue
			}
			t, err := TaskFromTodo(child, loc)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

func propTime(comp *ical.Component, name string, loc *time.Location) (time.Time, error) {
	prop := comp.Props.Get(name)
	if prop == nil {
		return time.Time{}, nil
	}
	v, err := prop.DateTime(loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, nil
}

// splitUntil removes UNTIL from rule text and returns it separately. A rule
// the recurrence parser accepts is returned in its normalized form.
func splitUntil(text string, loc *time.Location) (string, time.Time, error) {
	var until time.Time
	fields := strings.Split(strings.TrimSpace(text), ";")
	kept := fields[:0]
	for _, field := range fields {
		key, value, _ := strings.Cut(field, "=")
		if !strings.EqualFold(strings.TrimSpace(key), "UNTIL") {
			kept = append(kept, field)
			continue
		}
		v, err := parseUntil(strings.TrimSpace(value), loc)
		if err != nil {
			return "", time.Time{}, err
		}
		until = v
	}

	rule := strings.Join(kept, ";")
	if parsed, err := recurrence.Parse(rule); err == nil {
		rule = parsed.String()
	}
	return rule, until, nil
}

func parseUntil(value string, loc *time.Location) (time.Time, error) {
	for _, layout := range untilLayouts {
		if strings.HasSuffix(layout, "Z") {
			if t, err := time.Parse(layout, value); err == nil {
				return t.In(loc), nil
			}
			continue
		}
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid UNTIL value %q", value)
}
