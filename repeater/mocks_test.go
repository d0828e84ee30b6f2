package repeater

import (
	"context"
	"sync"
	"time"

	"github.com/cyp0633/librepeat/task"
	"github.com/stretchr/testify/mock"
)

// callLog records collaborator calls across mocks so tests can check ordering
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *callLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type mockStore struct {
	mock.Mock
	log *callLog
}

func (m *mockStore) Save(ctx context.Context, t task.Task) error {
	if m.log != nil {
		m.log.add("save")
	}
	args := m.Called(ctx, t)
	return args.Error(0)
}

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Fetch(ctx context.Context, id task.ID) (task.Task, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(task.Task), args.Error(1)
}

type mockCalendar struct {
	mock.Mock
	log *callLog
}

func (m *mockCalendar) Reschedule(ctx context.Context, t task.Task) error {
	if m.log != nil {
		m.log.add("calendar")
	}
	args := m.Called(ctx, t)
	return args.Error(0)
}

type mockAlarms struct {
	mock.Mock
	log *callLog
}

func (m *mockAlarms) Reschedule(ctx context.Context, id task.ID, oldDue, newDue time.Time) {
	if m.log != nil {
		m.log.add("alarm")
	}
	m.Called(ctx, id, oldDue, newDue)
}

type mockNotifier struct {
	mock.Mock
	log *callLog
}

func (m *mockNotifier) NotifyRepeated(ctx context.Context, id task.ID, oldDue, newDue time.Time) {
	if m.log != nil {
		m.log.add("notify")
	}
	m.Called(ctx, id, oldDue, newDue)
}

// mockFinishNotifier also implements FinishNotifier
type mockFinishNotifier struct {
	mockNotifier
}

func (m *mockFinishNotifier) NotifyRepeatFinished(ctx context.Context, id task.ID, oldDue, newDue time.Time) {
	m.Called(ctx, id, oldDue, newDue)
}
