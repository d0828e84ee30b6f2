// Package storage defines the task store contract and its error taxonomy.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/cyp0633/librepeat/task"
)

// Error types
type ErrorType string

const (
	ErrNotFound      ErrorType = "not_found"
	ErrAlreadyExists ErrorType = "already_exists"
	ErrInvalidInput  ErrorType = "invalid_input"
	ErrBackend       ErrorType = "backend"
)

// Error represents a storage-related error
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a storage not-found error
func IsNotFound(err error) bool {
	return hasType(err, ErrNotFound)
}

// IsAlreadyExists reports whether err is a storage conflict on create
func IsAlreadyExists(err error) bool {
	return hasType(err, ErrAlreadyExists)
}

func hasType(err error, typ ErrorType) bool {
	var se *Error
	return errors.As(err, &se) && se.Type == typ
}

// NotFound builds the not-found error for a task id
func NotFound(id task.ID) *Error {
	return &Error{Type: ErrNotFound, Message: fmt.Sprintf("task %s not found", id)}
}

// Store is implemented by every task store. Save replaces an existing task
// and writes all of its fields at once.
type Store interface {
	Create(ctx context.Context, t task.Task) error
	Fetch(ctx context.Context, id task.ID) (task.Task, error)
	Save(ctx context.Context, t task.Task) error
	Delete(ctx context.Context, id task.ID) error
	List(ctx context.Context, filter Filter) ([]task.Task, error)
}

// Filter narrows List results. The zero value matches every task.
type Filter struct {
	RecurringOnly bool
	// CompletedOnly limits the result to tasks with a completion date.
	CompletedOnly bool
}

// Matches reports whether t passes the filter
func (f Filter) Matches(t task.Task) bool {
	if f.RecurringOnly && !t.IsRecurring() {
		return false
	}
	if f.CompletedOnly && !t.IsCompleted() {
		return false
	}
	return true
}

// Validate checks the fields every store requires
func Validate(t task.Task) error {
	if t.ID == "" {
		return &Error{Type: ErrInvalidInput, Message: "task id is empty"}
	}
	return nil
}
