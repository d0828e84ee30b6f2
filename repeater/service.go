package repeater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cyp0633/librepeat/task"
)

// ErrNotCompleted is returned by OnCompleted for a task that is still open
var ErrNotCompleted = errors.New("repeater: task is not completed")

// Service is the completion entry point. It serializes work per task id so
// the read, compute and save steps of one task never interleave.
type Service struct {
	source TaskSource
	ctrl   *Controller
	locks  *keyedMutex
	now    func() time.Time
	logger *slog.Logger
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithServiceLogger sets the logger for the service
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithServiceClock replaces time.Now as the completion timestamp source
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a completion service reading tasks from src
func NewService(src TaskSource, ctrl *Controller, opts ...ServiceOption) *Service {
	s := &Service{
		source: src,
		ctrl:   ctrl,
		locks:  newKeyedMutex(),
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Complete marks the task completed now and advances it. A task that does not
// advance is saved as completed.
func (s *Service) Complete(ctx context.Context, id task.ID) (Result, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	t, err := s.source.Fetch(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("failed to fetch task %s: %w", id, err)
	}

	if !t.IsCompleted() {
		t = t.Completed(s.now())
	}

	result := s.ctrl.Advance(ctx, t)
	if result.Outcome == Advanced {
		return result, nil
	}

	t.Modified = s.now()
	if err := s.ctrl.store.Save(ctx, t); err != nil {
		s.logger.Error("failed to save completed task",
			"task_id", id,
			"error", err)
		result.StoreErr = err
	}
	result.Task = t
	return result, nil
}

// OnCompleted advances a task that has already been marked completed
// elsewhere. It returns ErrNotCompleted without touching the task otherwise.
func (s *Service) OnCompleted(ctx context.Context, id task.ID) (Result, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	t, err := s.source.Fetch(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("failed to fetch task %s: %w", id, err)
	}
	if !t.IsCompleted() {
		s.logger.Debug("ignoring completion event for open task", "task_id", id)
		return Result{Outcome: NoRecurrence, Task: t, OldDue: t.DueDate}, ErrNotCompleted
	}

	return s.ctrl.Advance(ctx, t), nil
}

// keyedMutex hands out one mutex per task id and forgets it once nobody
// holds or waits for it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[task.ID]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[task.ID]*refMutex)}
}

// Lock blocks until id is free and returns the matching unlock func
func (k *keyedMutex) Lock(id task.ID) func() {
	k.mu.Lock()
	m, ok := k.locks[id]
	if !ok {
		m = &refMutex{}
		k.locks[id] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
