package calsync

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"sync"

	"github.com/emersion/go-ical"
)

type memoryObject struct {
	data []byte
	etag string
}

// MemoryCalendar is an in-process Calendar, mostly for tests and dry runs
type MemoryCalendar struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

// NewMemoryCalendar creates an empty calendar
func NewMemoryCalendar() *MemoryCalendar {
	return &MemoryCalendar{objects: make(map[string]memoryObject)}
}

func generateETag(data []byte) string {
	hash := sha1.Sum(data)
	return `"` + hex.EncodeToString(hash[:]) + `"`
}

func (c *MemoryCalendar) Get(_ context.Context, uri string) (*ical.Event, string, error) {
	c.mu.RLock()
	obj, ok := c.objects[uri]
	c.mu.RUnlock()
	if !ok {
		return nil, "", ErrNotFound
	}

	event, err := decodeEvent(obj.data)
	if err != nil {
		return nil, "", err
	}
	return event, obj.etag, nil
}

func (c *MemoryCalendar) Put(_ context.Context, uri string, event *ical.Event, etag string) (string, error) {
	data, err := encodeEvent(event)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	existing, exists := c.objects[uri]
	switch {
	case etag == "" && exists:
		return "", ErrPreconditionFailed
	case etag != "" && !exists:
		return "", ErrNotFound
	case etag != "" && existing.etag != etag:
		return "", ErrPreconditionFailed
	}

	newETag := generateETag(data)
	c.objects[uri] = memoryObject{data: data, etag: newETag}
	return newETag, nil
}

// Len returns the number of stored objects
func (c *MemoryCalendar) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.objects)
}

var _ Calendar = (*MemoryCalendar)(nil)
