// memory based implementation for testing purposes
package memory

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/cyp0633/librepeat/storage"
	"github.com/cyp0633/librepeat/task"
)

// Store implements storage.Store using an in-memory map
type Store struct {
	mu     sync.RWMutex
	tasks  map[task.ID]task.Task
	logger *slog.Logger
}

// Option represents a configuration option for the Store
type Option func(*Store)

// WithLogger sets the logger for the store
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a new in-memory store
func New(opts ...Option) *Store {
	s := &Store{
		tasks:  make(map[task.ID]task.Task),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Create(_ context.Context, t task.Task) error {
	if err := storage.Validate(t); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[t.ID]; exists {
		return &storage.Error{
			Type:    storage.ErrAlreadyExists,
			Message: "task already exists: " + string(t.ID),
		}
	}
	s.tasks[t.ID] = t
	s.logger.Debug("task created", "task_id", t.ID)
	return nil
}

func (s *Store) Fetch(_ context.Context, id task.ID) (task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return task.Task{}, storage.NotFound(id)
	}
	return t, nil
}

// Save replaces an existing task
func (s *Store) Save(_ context.Context, t task.Task) error {
	if err := storage.Validate(t); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[t.ID]; !ok {
		return storage.NotFound(t.ID)
	}
	s.tasks[t.ID] = t
	s.logger.Debug("task saved", "task_id", t.ID, "due", t.DueDate)
	return nil
}

func (s *Store) Delete(_ context.Context, id task.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return storage.NotFound(id)
	}
	delete(s.tasks, id)
	return nil
}

// List returns matching tasks ordered by id
func (s *Store) List(_ context.Context, filter storage.Filter) ([]task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]task.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if filter.Matches(t) {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

var _ storage.Store = (*Store)(nil)
