// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"noticias_ingest/internal/model"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a conditional update loses a race or a
// unique constraint (such as the article slug) is violated.
var ErrConflict = errors.New("conflict")

// ImportFilter narrows an import-history listing. Zero values mean "any".
type ImportFilter struct {
	Status model.ImportStatus
	Type   model.ImportType
	Source string
	Since  *time.Time
	Limit  int
}

// Storage is the interface for all persistence operations.
type Storage interface {
	CreateArticle(ctx context.Context, a *model.Article) error
	ListRecentArticles(ctx context.Context, since time.Time, limit int) ([]model.Article, error)

	EnqueueItem(ctx context.Context, item *model.QueueItem) error
	GetQueueItem(ctx context.Context, id string) (*model.QueueItem, error)
	ListQueue(ctx context.Context, status model.QueueStatus) ([]model.QueueItem, error)
	// PromoteQueueItem atomically claims a pending item and inserts the
	// promoted article; either both happen or neither does.
	PromoteQueueItem(ctx context.Context, id string, article *model.Article, reviewer string, at time.Time) error
	// MarkQueueItem moves a pending item to a terminal status.
	MarkQueueItem(ctx context.Context, id string, status model.QueueStatus, reviewer string, at time.Time) error
	DeleteQueueItem(ctx context.Context, id string) error

	RecordImport(ctx context.Context, rec *model.ImportRecord) error
	ListImports(ctx context.Context, f ImportFilter) ([]model.ImportRecord, error)
	PurgeImportsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	CreateSchedule(ctx context.Context, s *model.Schedule) error
	GetSchedule(ctx context.Context, id int64) (*model.Schedule, error)
	ListSchedules(ctx context.Context) ([]model.Schedule, error)
	ListDueSchedules(ctx context.Context, now time.Time) ([]model.Schedule, error)
	UpdateSchedule(ctx context.Context, s *model.Schedule) error
	UpdateScheduleRuns(ctx context.Context, id int64, lastRun, nextRun time.Time) error
	DeleteSchedule(ctx context.Context, id int64) error

	CreateRunLog(ctx context.Context, l *model.RunLog) error
	ListRunLogs(ctx context.Context, scheduleID int64, limit int) ([]model.RunLog, error)

	CreateSource(ctx context.Context, s *model.Source) error
	GetSource(ctx context.Context, id int64) (*model.Source, error)
	ListSources(ctx context.Context, activeOnly bool) ([]model.Source, error)
	DeleteSource(ctx context.Context, id int64) error

	Close() error
}
