package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"noticias_ingest/internal/model"
	"noticias_ingest/internal/slug"
	"noticias_ingest/internal/storage"
)

// slugRetries bounds the numeric suffixes tried on slug collisions.
const slugRetries = 4

// Service writes ingested content to storage, either directly to the
// published store or into the moderation queue, and keeps the import
// audit trail.
type Service struct {
	store storage.Storage
	log   *slog.Logger
}

// NewService creates an ingestion service.
func NewService(store storage.Storage, log *slog.Logger) *Service {
	return &Service{store: store, log: log}
}

// Enqueue places a prepared item into the moderation queue.
func (s *Service) Enqueue(ctx context.Context, item *model.QueueItem) error {
	if err := s.store.EnqueueItem(ctx, item); err != nil {
		return fmt.Errorf("enqueue item: %w", err)
	}
	return nil
}

// Publish bypasses moderation and writes the article directly. Slug
// collisions are retried with numeric suffixes. The import outcome is
// recorded either way; a failure to write the audit row is logged, not
// surfaced.
func (s *Service) Publish(ctx context.Context, item *model.QueueItem, importedBy string) (*model.Article, error) {
	baseSlug := slug.Make(item.Title)
	if baseSlug == "" {
		baseSlug = item.ID
	}

	var article *model.Article
	var err error
	for attempt := 0; attempt <= slugRetries; attempt++ {
		articleSlug := baseSlug
		if attempt > 0 {
			articleSlug = fmt.Sprintf("%s-%d", baseSlug, attempt+1)
		}
		article = ArticleFromQueueItem(item, uuid.New().String(), articleSlug, time.Now().UTC())

		err = s.store.CreateArticle(ctx, article)
		if err == nil || !errors.Is(err, storage.ErrConflict) {
			break
		}
	}

	rec := &model.ImportRecord{
		Title:           item.Title,
		Slug:            article.Slug,
		SourceURL:       item.SourceURL,
		SourceName:      item.SourceName,
		ImportType:      item.ImportMode,
		FormatCorrected: item.FormatCorrected,
		Status:          model.ImportSuccess,
		ImportedBy:      importedBy,
	}
	if err != nil {
		rec.Status = model.ImportError
		rec.ErrorMessage = err.Error()
	} else {
		rec.ArticleID = &article.ID
	}
	if recErr := s.store.RecordImport(ctx, rec); recErr != nil {
		s.log.Error("record import", "title", item.Title, "error", recErr)
	}

	if err != nil {
		return nil, err
	}
	return article, nil
}
