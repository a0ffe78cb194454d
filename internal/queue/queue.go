// Package queue implements the moderation state machine for ingested
// articles: pending items are approved into published articles or
// rejected, and either terminal state may be hard-deleted.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"noticias_ingest/internal/ingest"
	"noticias_ingest/internal/model"
	"noticias_ingest/internal/slug"
	"noticias_ingest/internal/storage"
)

// ErrAlreadyReviewed is returned when approving or rejecting an item that
// already left the pending state. Terminal states never transition again.
var ErrAlreadyReviewed = errors.New("queue item already reviewed")

// slugRetries bounds the numeric suffixes tried when a promoted article's
// slug collides with an existing one.
const slugRetries = 4

// Queue coordinates moderation transitions against storage.
type Queue struct {
	store storage.Storage
	log   *slog.Logger
}

// New creates a moderation queue service.
func New(store storage.Storage, log *slog.Logger) *Queue {
	return &Queue{store: store, log: log}
}

// List returns queue items, optionally filtered by status.
func (q *Queue) List(ctx context.Context, status model.QueueStatus) ([]model.QueueItem, error) {
	return q.store.ListQueue(ctx, status)
}

// Approve promotes a pending item into a published article and stamps the
// reviewer. The article insert and the status flip commit together; a
// second approval of the same item fails with ErrAlreadyReviewed and never
// creates a second article. On success an import audit record is written.
func (q *Queue) Approve(ctx context.Context, id, reviewer string) (*model.Article, error) {
	item, err := q.store.GetQueueItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Status != model.QueuePending {
		return nil, fmt.Errorf("queue item %s is %s: %w", id, item.Status, ErrAlreadyReviewed)
	}

	now := time.Now().UTC()
	baseSlug := slug.Make(item.Title)
	if baseSlug == "" {
		baseSlug = item.ID
	}

	var article *model.Article
	for attempt := 0; ; attempt++ {
		s := baseSlug
		if attempt > 0 {
			s = fmt.Sprintf("%s-%d", baseSlug, attempt+1)
		}
		article = ingest.ArticleFromQueueItem(item, uuid.New().String(), s, now)

		err = q.store.PromoteQueueItem(ctx, id, article, reviewer, now)
		if err == nil {
			break
		}
		if !errors.Is(err, storage.ErrConflict) {
			return nil, err
		}
		// A conflict is either a slug collision (the claim rolled back, the
		// item is still pending, retry with a suffix) or a lost claim race
		// (the item left pending, which is final).
		current, cerr := q.store.GetQueueItem(ctx, id)
		if cerr == nil && current.Status != model.QueuePending {
			return nil, fmt.Errorf("queue item %s is %s: %w", id, current.Status, ErrAlreadyReviewed)
		}
		if attempt >= slugRetries {
			return nil, err
		}
	}

	rec := &model.ImportRecord{
		ArticleID:       &article.ID,
		Title:           article.Title,
		Slug:            article.Slug,
		SourceURL:       article.SourceURL,
		SourceName:      article.SourceName,
		ImportType:      article.ImportMode,
		FormatCorrected: item.FormatCorrected,
		Status:          model.ImportSuccess,
		ImportedBy:      reviewer,
	}
	if err := q.store.RecordImport(ctx, rec); err != nil {
		// The promotion committed; the missing audit row is logged, not
		// surfaced.
		q.log.Error("record import after approval", "queue_id", id, "article_id", article.ID, "error", err)
	}

	q.log.Info("queue item approved", "queue_id", id, "article_id", article.ID, "slug", article.Slug, "reviewer", reviewer)
	return article, nil
}

// Reject moves a pending item to the rejected terminal state. No article
// and no import record are created.
func (q *Queue) Reject(ctx context.Context, id, reviewer string) error {
	err := q.store.MarkQueueItem(ctx, id, model.QueueRejected, reviewer, time.Now().UTC())
	if errors.Is(err, storage.ErrConflict) {
		return fmt.Errorf("reject %s: %w", id, ErrAlreadyReviewed)
	}
	if err != nil {
		return err
	}
	q.log.Info("queue item rejected", "queue_id", id, "reviewer", reviewer)
	return nil
}

// Delete removes a queue item from any state. Articles already promoted
// from it are not touched.
func (q *Queue) Delete(ctx context.Context, id string) error {
	if err := q.store.DeleteQueueItem(ctx, id); err != nil {
		return err
	}
	q.log.Info("queue item deleted", "queue_id", id)
	return nil
}
