// Package calsync mirrors task due dates onto iCalendar events stored in a
// local map or on a CalDAV server, and imports VTODO components as tasks.
package calsync

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/emersion/go-ical"
)

var (
	// ErrNotFound is returned when no calendar object exists at a URI
	ErrNotFound = errors.New("calsync: calendar object not found")
	// ErrPreconditionFailed is returned when the etag given to Put is stale
	ErrPreconditionFailed = errors.New("calsync: calendar object was modified")
	// ErrNoEvent is returned for a calendar object without a VEVENT
	ErrNoEvent = errors.New("calsync: calendar object has no event")
)

const prodID = "-//github.com/cyp0633/librepeat//NONSGML v1.0//EN"

// Calendar stores single-event calendar objects addressed by URI.
//
// Put with an empty etag creates the object and fails if it exists; with an
// etag it replaces the object only if the stored etag still matches.
type Calendar interface {
	Get(ctx context.Context, uri string) (*ical.Event, string, error)
	Put(ctx context.Context, uri string, event *ical.Event, etag string) (string, error)
}

// encodeEvent wraps event in a VCALENDAR and encodes it
func encodeEvent(event *ical.Event) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, prodID)
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Children = append(cal.Children, event.Component)

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("failed to encode calendar: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeEvent returns the first VEVENT of an encoded calendar object
func decodeEvent(data []byte) (*ical.Event, error) {
	cal, err := ical.NewDecoder(bytes.NewReader(data)).Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to decode calendar: %w", err)
	}
	events := cal.Events()
	if len(events) == 0 {
		return nil, ErrNoEvent
	}
	return &events[0], nil
}
