// Package backup writes tasks to a flat XML document and reads them back.
//
// The document looks like
//
//	<tasks version="1" format="2">
//	  <task id="..." title="..." due="1472214600000" hasDueTime="true" recurrence="FREQ=DAILY;INTERVAL=1"/>
//	</tasks>
//
// Times are Unix milliseconds; absent times are written as 0.
package backup

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/beevik/etree"
	"github.com/cyp0633/librepeat/task"
)

const (
	rootTag = "tasks"
	taskTag = "task"

	// Version is written on export; Format is the only format accepted on import.
	Version = "1"
	Format  = "2"
)

// ErrInvalidBackup wraps every error caused by document content
var ErrInvalidBackup = errors.New("invalid backup")

type timeField struct {
	attr string
	get  func(*task.Task) *time.Time
}

var timeFields = []timeField{
	{"due", func(t *task.Task) *time.Time { return &t.DueDate }},
	{"completed", func(t *task.Task) *time.Time { return &t.CompletionDate }},
	{"repeatUntil", func(t *task.Task) *time.Time { return &t.RepeatUntil }},
	{"hideUntil", func(t *task.Task) *time.Time { return &t.HideUntil }},
	{"snoozeUntil", func(t *task.Task) *time.Time { return &t.ReminderSnooze }},
	{"created", func(t *task.Task) *time.Time { return &t.Created }},
	{"modified", func(t *task.Task) *time.Time { return &t.Modified }},
}

// Export writes tasks as an indented XML document
func Export(w io.Writer, tasks []task.Task) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement(rootTag)
	root.CreateAttr("version", Version)
	root.CreateAttr("format", Format)

	for i := range tasks {
		t := &tasks[i]
		elem := root.CreateElement(taskTag)
		elem.CreateAttr("id", string(t.ID))
		elem.CreateAttr("title", t.Title)
		if t.Notes != "" {
			elem.CreateAttr("notes", t.Notes)
		}
		for _, f := range timeFields {
			elem.CreateAttr(f.attr, strconv.FormatInt(toMillis(*f.get(t)), 10))
		}
		elem.CreateAttr("hasDueTime", strconv.FormatBool(t.HasDueTime))
		if t.Recurrence != "" {
			elem.CreateAttr("recurrence", t.Recurrence)
		}
		if t.CalendarURI != "" {
			elem.CreateAttr("calendarUri", t.CalendarURI)
		}
		if t.EstimatedDuration > 0 {
			elem.CreateAttr("estimatedSeconds", strconv.FormatInt(int64(t.EstimatedDuration/time.Second), 10))
		}
	}

	doc.Indent(2)
	if _, err := doc.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	return nil
}

// Import reads a document written by Export. Times are returned in loc.
func Import(r io.Reader, loc *time.Location) ([]task.Task, error) {
	if loc == nil {
		loc = time.Local
	}

	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}

	root := doc.Root()
	if root == nil || root.Tag != rootTag {
		return nil, fmt.Errorf("%w: missing <%s> root", ErrInvalidBackup, rootTag)
	}
	if format := root.SelectAttrValue("format", ""); format != Format {
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidBackup, format)
	}

	elems := root.SelectElements(taskTag)
	tasks := make([]task.Task, 0, len(elems))
	for i, elem := range elems {
		t, err := parseTask(elem, loc)
		if err != nil {
			return nil, fmt.Errorf("%w: task %d: %v", ErrInvalidBackup, i, err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func parseTask(elem *etree.Element, loc *time.Location) (task.Task, error) {
	t := task.Task{
		ID:          task.ID(elem.SelectAttrValue("id", "")),
		Title:       elem.SelectAttrValue("title", ""),
		Notes:       elem.SelectAttrValue("notes", ""),
		Recurrence:  elem.SelectAttrValue("recurrence", ""),
		CalendarURI: elem.SelectAttrValue("calendarUri", ""),
	}
	if t.ID == "" {
		return task.Task{}, errors.New("missing id")
	}

	for _, f := range timeFields {
		v, err := attrMillis(elem, f.attr, loc)
		if err != nil {
			return task.Task{}, err
		}
		*f.get(&t) = v
	}

	if raw := elem.SelectAttrValue("hasDueTime", ""); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return task.Task{}, fmt.Errorf("hasDueTime: %w", err)
		}
		t.HasDueTime = b && t.HasDueDate()
	}

	if raw := elem.SelectAttrValue("estimatedSeconds", ""); raw != "" {
		secs, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return task.Task{}, fmt.Errorf("estimatedSeconds: %w", err)
		}
		t.EstimatedDuration = time.Duration(secs) * time.Second
	}
	return t, nil
}

func attrMillis(elem *etree.Element, name string, loc *time.Location) (time.Time, error) {
	raw := elem.SelectAttrValue(name, "0")
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", name, err)
	}
	if ms == 0 {
		return time.Time{}, nil
	}
	return time.UnixMilli(ms).In(loc), nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
