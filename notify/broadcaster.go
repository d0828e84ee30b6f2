// Package notify fans task change events out to in-process subscribers.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cyp0633/librepeat/task"
)

// Kind tells what happened to a task
type Kind int

const (
	// Repeated is sent when a task moved to its next occurrence.
	Repeated Kind = iota
	// RepeatFinished is sent when a series ended at its repeat-until date.
	RepeatFinished
)

func (k Kind) String() string {
	switch k {
	case Repeated:
		return "repeated"
	case RepeatFinished:
		return "repeat_finished"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Event is one task change
type Event struct {
	Kind   Kind
	TaskID task.ID
	OldDue time.Time
	NewDue time.Time
}

// Broadcaster delivers events to every subscriber without blocking the
// sender. A subscriber whose buffer is full misses the event.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	logger *slog.Logger
}

// Option configures a Broadcaster
type Option func(*Broadcaster)

// WithLogger sets the logger for the broadcaster
func WithLogger(logger *slog.Logger) Option {
	return func(b *Broadcaster) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New creates a broadcaster with no subscribers
func New(opts ...Option) *Broadcaster {
	b := &Broadcaster{
		subs:   make(map[int]chan Event),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe returns a channel receiving future events and a func that
// unsubscribes and closes it. Calling cancel more than once is safe.
func (b *Broadcaster) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Subscribers returns the number of active subscriptions
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish sends ev to every subscriber that has room for it
func (b *Broadcaster) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("subscriber buffer full, dropping event",
				"subscriber", id,
				"kind", ev.Kind,
				"task_id", ev.TaskID)
		}
	}
}

// NotifyRepeated publishes a Repeated event
func (b *Broadcaster) NotifyRepeated(_ context.Context, id task.ID, oldDue, newDue time.Time) {
	b.Publish(Event{Kind: Repeated, TaskID: id, OldDue: oldDue, NewDue: newDue})
}

// NotifyRepeatFinished publishes a RepeatFinished event
func (b *Broadcaster) NotifyRepeatFinished(_ context.Context, id task.ID, oldDue, newDue time.Time) {
	b.Publish(Event{Kind: RepeatFinished, TaskID: id, OldDue: oldDue, NewDue: newDue})
}
