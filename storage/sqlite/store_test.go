package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cyp0633/librepeat/storage"
	"github.com/cyp0633/librepeat/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	s, err := Open(dsn, WithLocation(time.UTC))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleTask() task.Task {
	due := time.Date(2016, 8, 26, 12, 30, 0, 0, time.UTC)
	return task.Task{
		ID:                "a",
		Title:             "water plants",
		Notes:             "balcony only",
		DueDate:           due,
		HasDueTime:        true,
		Recurrence:        "FREQ=DAILY;INTERVAL=1;COUNT=3",
		RepeatUntil:       time.Date(2016, 12, 31, 0, 0, 0, 0, time.UTC),
		HideUntil:         due.Add(-time.Hour),
		CalendarURI:       "http://dav.example.com/cal/a.ics",
		EstimatedDuration: 45 * time.Minute,
		Created:           due.AddDate(0, 0, -10),
		Modified:          due.AddDate(0, 0, -1),
	}
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	in := sampleTask()
	require.NoError(t, s.Create(ctx, in))

	got, err := s.Fetch(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, in, got)
	assert.True(t, got.CompletionDate.IsZero())
	assert.True(t, got.ReminderSnooze.IsZero())
}

func TestStore_SaveWritesEveryField(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	in := sampleTask()
	in.CompletionDate = in.DueDate.Add(10 * time.Minute)
	in.ReminderSnooze = in.DueDate.Add(5 * time.Minute)
	require.NoError(t, s.Create(ctx, in))

	next := in.WithDueDate(in.DueDate.AddDate(0, 0, 1), true).Reopened()
	next.Recurrence = "FREQ=DAILY;INTERVAL=1;COUNT=2"
	require.NoError(t, s.Save(ctx, next))

	got, err := s.Fetch(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, next, got)
	assert.True(t, got.CompletionDate.IsZero(), "zero values must be written too")
	assert.True(t, got.ReminderSnooze.IsZero())
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Create(ctx, sampleTask()))

	err := s.Create(ctx, sampleTask())
	assert.True(t, storage.IsAlreadyExists(err), "got %v", err)

	_, err = s.Fetch(ctx, "missing")
	assert.True(t, storage.IsNotFound(err))

	err = s.Save(ctx, task.Task{ID: "missing"})
	assert.True(t, storage.IsNotFound(err))

	err = s.Delete(ctx, "missing")
	assert.True(t, storage.IsNotFound(err))

	var se *storage.Error
	require.ErrorAs(t, s.Save(ctx, task.Task{}), &se)
	assert.Equal(t, storage.ErrInvalidInput, se.Type)

	require.NoError(t, s.Delete(ctx, "a"))
	_, err = s.Fetch(ctx, "a")
	assert.True(t, storage.IsNotFound(err))
}

func TestStore_List(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	done := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, tk := range []task.Task{
		{ID: "c", Recurrence: "FREQ=WEEKLY"},
		{ID: "a"},
		{ID: "b", Recurrence: "FREQ=DAILY", CompletionDate: done},
	} {
		require.NoError(t, s.Create(ctx, tk))
	}

	tests := []struct {
		name   string
		filter storage.Filter
		want   []task.ID
	}{
		{"all", storage.Filter{}, []task.ID{"a", "b", "c"}},
		{"recurring", storage.Filter{RecurringOnly: true}, []task.ID{"b", "c"}},
		{"recurring completed", storage.Filter{RecurringOnly: true, CompletedOnly: true}, []task.ID{"b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.List(ctx, tt.filter)
			require.NoError(t, err)
			ids := make([]task.ID, len(got))
			for i, tk := range got {
				ids[i] = tk.ID
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tasks.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Create(context.Background(), task.Task{ID: "x"}))
	assert.FileExists(t, path)
}
