// Package sqlite stores tasks in SQLite through gorm.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlitedriver "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cyp0633/librepeat/storage"
	"github.com/cyp0633/librepeat/task"
)

// taskRecord is the row layout. Times are Unix milliseconds, 0 when unset.
type taskRecord struct {
	ID                string `gorm:"primaryKey"`
	Title             string
	Notes             string
	DueDate           int64
	HasDueTime        bool
	CompletionDate    int64  `gorm:"index"`
	Recurrence        string `gorm:"index"`
	RepeatUntil       int64
	HideUntil         int64
	ReminderSnooze    int64
	CalendarURI       string
	EstimatedDuration int64
	Created           int64
	Modified          int64
}

func (taskRecord) TableName() string {
	return "tasks"
}

// Store implements storage.Store on a gorm database
type Store struct {
	db     *gorm.DB
	loc    *time.Location
	logger *slog.Logger
}

// Option represents a configuration option for the Store
type Option func(*Store)

// WithLogger sets the logger for the store. gorm's own messages go to the
// same logger at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLocation sets the zone loaded times are returned in
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// Open opens a SQLite database at dsn and migrates the task table
func Open(dsn string, opts ...Option) (*Store, error) {
	if dsn == "" {
		dsn = "librepeat.db"
	}

	s := &Store{
		loc:    time.Local,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := ensureDirForSQLite(dsn); err != nil {
		return nil, err
	}

	dbLogger := logger.New(slogWriter{s.logger}, logger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})

	db, err := gorm.Open(sqlitedriver.Open(dsn), &gorm.Config{
		Logger:         dbLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.AutoMigrate(&taskRecord{}); err != nil {
		return nil, fmt.Errorf("migrate db: %w", err)
	}

	s.db = db
	return s, nil
}

// Close releases the underlying connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Create(ctx context.Context, t task.Task) error {
	if err := storage.Validate(t); err != nil {
		return err
	}

	rec := toRecord(t)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return &storage.Error{
				Type:    storage.ErrAlreadyExists,
				Message: "task already exists: " + string(t.ID),
				Err:     err,
			}
		}
		return backendError("create task", err)
	}
	return nil
}

func (s *Store) Fetch(ctx context.Context, id task.ID) (task.Task, error) {
	var rec taskRecord
	if err := s.db.WithContext(ctx).Where("id = ?", string(id)).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return task.Task{}, storage.NotFound(id)
		}
		return task.Task{}, backendError("fetch task", err)
	}
	return s.fromRecord(rec), nil
}

// Save writes every column of an existing task in a single UPDATE
func (s *Store) Save(ctx context.Context, t task.Task) error {
	if err := storage.Validate(t); err != nil {
		return err
	}

	rec := toRecord(t)
	res := s.db.WithContext(ctx).
		Model(&taskRecord{}).
		Where("id = ?", rec.ID).
		Select("*").
		Updates(&rec)
	if res.Error != nil {
		return backendError("save task", res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.NotFound(t.ID)
	}

	s.logger.Debug("task saved", "task_id", t.ID, "due", t.DueDate)
	return nil
}

func (s *Store) Delete(ctx context.Context, id task.ID) error {
	res := s.db.WithContext(ctx).Where("id = ?", string(id)).Delete(&taskRecord{})
	if res.Error != nil {
		return backendError("delete task", res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.NotFound(id)
	}
	return nil
}

// List returns matching tasks ordered by id
func (s *Store) List(ctx context.Context, filter storage.Filter) ([]task.Task, error) {
	query := s.db.WithContext(ctx).Model(&taskRecord{})
	if filter.RecurringOnly {
		query = query.Where("recurrence <> ?", "")
	}
	if filter.CompletedOnly {
		query = query.Where("completion_date <> ?", 0)
	}

	var recs []taskRecord
	if err := query.Order("id").Find(&recs).Error; err != nil {
		return nil, backendError("list tasks", err)
	}

	tasks := make([]task.Task, len(recs))
	for i, rec := range recs {
		tasks[i] = s.fromRecord(rec)
	}
	return tasks, nil
}

func backendError(msg string, err error) error {
	return &storage.Error{Type: storage.ErrBackend, Message: msg, Err: err}
}

func toRecord(t task.Task) taskRecord {
	return taskRecord{
		ID:                string(t.ID),
		Title:             t.Title,
		Notes:             t.Notes,
		DueDate:           toMillis(t.DueDate),
		HasDueTime:        t.HasDueTime,
		CompletionDate:    toMillis(t.CompletionDate),
		Recurrence:        t.Recurrence,
		RepeatUntil:       toMillis(t.RepeatUntil),
		HideUntil:         toMillis(t.HideUntil),
		ReminderSnooze:    toMillis(t.ReminderSnooze),
		CalendarURI:       t.CalendarURI,
		EstimatedDuration: t.EstimatedDuration.Milliseconds(),
		Created:           toMillis(t.Created),
		Modified:          toMillis(t.Modified),
	}
}

func (s *Store) fromRecord(rec taskRecord) task.Task {
	return task.Task{
		ID:                task.ID(rec.ID),
		Title:             rec.Title,
		Notes:             rec.Notes,
		DueDate:           s.fromMillis(rec.DueDate),
		HasDueTime:        rec.HasDueTime,
		CompletionDate:    s.fromMillis(rec.CompletionDate),
		Recurrence:        rec.Recurrence,
		RepeatUntil:       s.fromMillis(rec.RepeatUntil),
		HideUntil:         s.fromMillis(rec.HideUntil),
		ReminderSnooze:    s.fromMillis(rec.ReminderSnooze),
		CalendarURI:       rec.CalendarURI,
		EstimatedDuration: time.Duration(rec.EstimatedDuration) * time.Millisecond,
		Created:           s.fromMillis(rec.Created),
		Modified:          s.fromMillis(rec.Modified),
	}
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func (s *Store) fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).In(s.loc)
}

// slogWriter feeds gorm's logger into slog
type slogWriter struct {
	logger *slog.Logger
}

func (w slogWriter) Printf(format string, args ...interface{}) {
	w.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "gorm")
}

// ensureDirForSQLite creates parent dir for SQLite file if needed.
func ensureDirForSQLite(dsn string) error {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}

var _ storage.Store = (*Store)(nil)
