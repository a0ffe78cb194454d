package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite" // SQLite driver registration.

	"noticias_ingest/internal/model"
	"noticias_ingest/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=OFF"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("disable foreign keys: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// CreateArticle inserts a published or draft article. A duplicate slug
// surfaces as ErrConflict.
func (s *SQLite) CreateArticle(ctx context.Context, a *model.Article) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO articles (id, title, slug, content, excerpt, status, source_url, source_name,
		                       category, image_url, tags, seo_title, seo_description, seo_keywords,
		                       read_time, import_mode, published_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Title, a.Slug, a.Content, a.Excerpt, string(a.Status), a.SourceURL, a.SourceName,
		a.Category, a.ImageURL, marshalTags(a.Tags), a.SEOTitle, a.SEODesc, a.SEOKeywords,
		a.ReadTime, string(a.ImportMode), formatNullTime(a.PublishedAt), a.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert article slug %q: %w", a.Slug, ErrConflict)
		}
		return fmt.Errorf("insert article: %w", err)
	}
	return nil
}

// ListRecentArticles returns articles created at or after since, most
// recent first, capped at limit. This is the duplicate-detection window.
func (s *SQLite) ListRecentArticles(ctx context.Context, since time.Time, limit int) ([]model.Article, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+articleCols+` FROM articles
		 WHERE created_at >= ? ORDER BY created_at DESC LIMIT ?`,
		since.UTC().Format(timeLayout), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent articles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var articles []model.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *a)
	}
	return articles, rows.Err()
}

// EnqueueItem inserts a moderation queue entry.
func (s *SQLite) EnqueueItem(ctx context.Context, item *model.QueueItem) error {
	if item.Status == "" {
		item.Status = model.QueuePending
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO articles_queue (id, title, content, excerpt, source_url, source_name, category,
		                             feed_name, image_url, tags, seo_title, seo_description, seo_keywords,
		                             read_time, import_mode, format_corrected, status, reviewed_by,
		                             reviewed_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Title, item.Content, item.Excerpt, item.SourceURL, item.SourceName, item.Category,
		item.FeedName, item.ImageURL, marshalTags(item.Tags), item.SEOTitle, item.SEODesc, item.SEOKeywords,
		item.ReadTime, string(item.ImportMode), boolToInt(item.FormatCorrected), string(item.Status),
		item.ReviewedBy, formatNullTime(item.ReviewedAt), item.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert queue item: %w", err)
	}
	return nil
}

// GetQueueItem returns a single queue item by its ID.
func (s *SQLite) GetQueueItem(ctx context.Context, id string) (*model.QueueItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+queueCols+` FROM articles_queue WHERE id = ?`, id,
	)
	item, err := scanQueueItem(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("queue item %s: %w", id, ErrNotFound)
	}
	return item, err
}

// ListQueue returns queue items, optionally filtered by status, newest first.
func (s *SQLite) ListQueue(ctx context.Context, status model.QueueStatus) ([]model.QueueItem, error) {
	q := sq.Select(strings.Split(queueCols, ", ")...).
		From("articles_queue").
		OrderBy("created_at DESC")
	if status != "" {
		q = q.Where(sq.Eq{"status": string(status)})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build queue query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query queue: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []model.QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// PromoteQueueItem claims a pending queue item and inserts its promoted
// article in a single transaction. The conditional claim guarantees a
// racing second approval cannot create a second article: it finds the row
// already approved and gets ErrConflict.
func (s *SQLite) PromoteQueueItem(ctx context.Context, id string, article *model.Article, reviewer string, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE articles_queue SET status = ?, reviewed_by = ?, reviewed_at = ?
		 WHERE id = ? AND status = ?`,
		string(model.QueueApproved), reviewer, at.UTC().Format(timeLayout), id, string(model.QueuePending),
	)
	if err != nil {
		return fmt.Errorf("claim queue item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return queueClaimError(ctx, tx, id)
	}

	if article.CreatedAt.IsZero() {
		article.CreatedAt = at.UTC()
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO articles (id, title, slug, content, excerpt, status, source_url, source_name,
		                       category, image_url, tags, seo_title, seo_description, seo_keywords,
		                       read_time, import_mode, published_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		article.ID, article.Title, article.Slug, article.Content, article.Excerpt, string(article.Status),
		article.SourceURL, article.SourceName, article.Category, article.ImageURL, marshalTags(article.Tags),
		article.SEOTitle, article.SEODesc, article.SEOKeywords, article.ReadTime, string(article.ImportMode),
		formatNullTime(article.PublishedAt), article.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert promoted article slug %q: %w", article.Slug, ErrConflict)
		}
		return fmt.Errorf("insert promoted article: %w", err)
	}

	return tx.Commit()
}

// MarkQueueItem moves a pending queue item to a terminal status.
func (s *SQLite) MarkQueueItem(ctx context.Context, id string, status model.QueueStatus, reviewer string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE articles_queue SET status = ?, reviewed_by = ?, reviewed_at = ?
		 WHERE id = ? AND status = ?`,
		string(status), reviewer, at.UTC().Format(timeLayout), id, string(model.QueuePending),
	)
	if err != nil {
		return fmt.Errorf("mark queue item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return queueClaimError(ctx, s.db, id)
	}
	return nil
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queueClaimError distinguishes a missing row from one already reviewed.
// Inside PromoteQueueItem it must read through the open transaction: a
// second pool connection would not see the row, and with an in-memory
// database it would not even see the schema.
func queueClaimError(ctx context.Context, q rowQuerier, id string) error {
	var status string
	err := q.QueryRowContext(ctx, `SELECT status FROM articles_queue WHERE id = ?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return fmt.Errorf("queue item %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("check queue item: %w", err)
	}
	return fmt.Errorf("queue item %s already %s: %w", id, status, ErrConflict)
}

// DeleteQueueItem removes a queue item regardless of status. Articles
// already promoted from it are untouched.
func (s *SQLite) DeleteQueueItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM articles_queue WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete queue item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("queue item %s: %w", id, ErrNotFound)
	}
	return nil
}

// RecordImport appends an audit entry and populates its ID and CreatedAt.
func (s *SQLite) RecordImport(ctx context.Context, rec *model.ImportRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	var articleID any
	if rec.ArticleID != nil {
		articleID = *rec.ArticleID
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO noticias_ai_imports (article_id, title, slug, source_url, source_name, import_type,
		                                  format_corrected, status, error_message, imported_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		articleID, rec.Title, rec.Slug, rec.SourceURL, rec.SourceName, string(rec.ImportType),
		boolToInt(rec.FormatCorrected), string(rec.Status), rec.ErrorMessage, rec.ImportedBy,
		rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert import record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	rec.ID = id
	return nil
}

// ListImports returns import records matching the filter, newest first.
func (s *SQLite) ListImports(ctx context.Context, f ImportFilter) ([]model.ImportRecord, error) {
	q := sq.Select("id", "article_id", "title", "slug", "source_url", "source_name", "import_type",
		"format_corrected", "status", "error_message", "imported_by", "created_at").
		From("noticias_ai_imports").
		OrderBy("created_at DESC")

	if f.Status != "" {
		q = q.Where(sq.Eq{"status": string(f.Status)})
	}
	if f.Type != "" {
		q = q.Where(sq.Eq{"import_type": string(f.Type)})
	}
	if f.Source != "" {
		q = q.Where(sq.Eq{"source_name": f.Source})
	}
	if f.Since != nil {
		q = q.Where(sq.GtOrEq{"created_at": f.Since.UTC().Format(timeLayout)})
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build imports query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query imports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var recs []model.ImportRecord
	for rows.Next() {
		var r model.ImportRecord
		var articleID sql.NullString
		var typeStr, statusStr, createdStr string
		var corrected int
		if err := rows.Scan(&r.ID, &articleID, &r.Title, &r.Slug, &r.SourceURL, &r.SourceName,
			&typeStr, &corrected, &statusStr, &r.ErrorMessage, &r.ImportedBy, &createdStr); err != nil {
			return nil, fmt.Errorf("scan import record: %w", err)
		}
		if articleID.Valid {
			v := articleID.String
			r.ArticleID = &v
		}
		r.ImportType = model.ImportType(typeStr)
		r.FormatCorrected = corrected == 1
		r.Status = model.ImportStatus(statusStr)
		r.CreatedAt, _ = time.Parse(timeLayout, createdStr)
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// PurgeImportsBefore bulk-deletes audit entries older than cutoff.
func (s *SQLite) PurgeImportsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM noticias_ai_imports WHERE created_at < ?`,
		cutoff.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("purge imports: %w", err)
	}
	return res.RowsAffected()
}

// CreateSchedule inserts a schedule and populates its ID and CreatedAt.
func (s *SQLite) CreateSchedule(ctx context.Context, sc *model.Schedule) error {
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO noticias_ai_schedules (name, source_urls, interval_minutes, max_articles,
		                                    auto_publish, is_active, last_run, next_run, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.Name, marshalTags(sc.SourceURLs), sc.IntervalMinutes, sc.MaxArticles,
		boolToInt(sc.AutoPublish), boolToInt(sc.IsActive),
		formatNullTime(sc.LastRun), formatNullTime(sc.NextRun), sc.CreatedBy,
		sc.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	sc.ID = id
	return nil
}

// GetSchedule returns a single schedule by its ID.
func (s *SQLite) GetSchedule(ctx context.Context, id int64) (*model.Schedule, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+scheduleCols+` FROM noticias_ai_schedules WHERE id = ?`, id,
	)
	sc, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("schedule %d: %w", id, ErrNotFound)
	}
	return sc, err
}

// ListSchedules returns all schedules ordered by ID.
func (s *SQLite) ListSchedules(ctx context.Context) ([]model.Schedule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scheduleCols+` FROM noticias_ai_schedules ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanSchedules(rows)
}

// ListDueSchedules returns active schedules whose next run is at or before now.
func (s *SQLite) ListDueSchedules(ctx context.Context, now time.Time) ([]model.Schedule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scheduleCols+` FROM noticias_ai_schedules
		 WHERE is_active = 1 AND (next_run IS NULL OR next_run <= ?) ORDER BY id`,
		now.UTC().Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("query due schedules: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanSchedules(rows)
}

// UpdateSchedule persists changes to an existing schedule.
func (s *SQLite) UpdateSchedule(ctx context.Context, sc *model.Schedule) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE noticias_ai_schedules
		 SET name = ?, source_urls = ?, interval_minutes = ?, max_articles = ?,
		     auto_publish = ?, is_active = ?, last_run = ?, next_run = ?
		 WHERE id = ?`,
		sc.Name, marshalTags(sc.SourceURLs), sc.IntervalMinutes, sc.MaxArticles,
		boolToInt(sc.AutoPublish), boolToInt(sc.IsActive),
		formatNullTime(sc.LastRun), formatNullTime(sc.NextRun), sc.ID,
	)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("schedule %d: %w", sc.ID, ErrNotFound)
	}
	return nil
}

// UpdateScheduleRuns stamps last_run and next_run after an execution.
func (s *SQLite) UpdateScheduleRuns(ctx context.Context, id int64, lastRun, nextRun time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE noticias_ai_schedules SET last_run = ?, next_run = ? WHERE id = ?`,
		lastRun.UTC().Format(timeLayout), nextRun.UTC().Format(timeLayout), id,
	)
	if err != nil {
		return fmt.Errorf("update schedule runs: %w", err)
	}
	return nil
}

// DeleteSchedule removes a schedule and its run logs.
func (s *SQLite) DeleteSchedule(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM noticias_ai_schedule_logs WHERE schedule_id = ?`, id); err != nil {
		return fmt.Errorf("delete schedule logs: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM noticias_ai_schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("schedule %d: %w", id, ErrNotFound)
	}
	return tx.Commit()
}

// CreateRunLog appends a run log entry and populates its ID and CreatedAt.
func (s *SQLite) CreateRunLog(ctx context.Context, l *model.RunLog) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO noticias_ai_schedule_logs (schedule_id, status, articles_imported, articles_failed,
		                                        duration_ms, error_message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ScheduleID, string(l.Status), l.ArticlesImported, l.ArticlesFailed,
		l.DurationMs, l.ErrorMessage, l.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert run log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	l.ID = id
	return nil
}

// ListRunLogs returns the most recent run logs for a schedule.
func (s *SQLite) ListRunLogs(ctx context.Context, scheduleID int64, limit int) ([]model.RunLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, schedule_id, status, articles_imported, articles_failed, duration_ms, error_message, created_at
		 FROM noticias_ai_schedule_logs WHERE schedule_id = ? ORDER BY id DESC LIMIT ?`,
		scheduleID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query run logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var logs []model.RunLog
	for rows.Next() {
		var l model.RunLog
		var statusStr, createdStr string
		if err := rows.Scan(&l.ID, &l.ScheduleID, &statusStr, &l.ArticlesImported, &l.ArticlesFailed,
			&l.DurationMs, &l.ErrorMessage, &createdStr); err != nil {
			return nil, fmt.Errorf("scan run log: %w", err)
		}
		l.Status = model.RunStatus(statusStr)
		l.CreatedAt, _ = time.Parse(timeLayout, createdStr)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// CreateSource inserts an operator-defined source and populates its ID.
func (s *SQLite) CreateSource(ctx context.Context, src *model.Source) error {
	if src.CreatedAt.IsZero() {
		src.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO noticias_ai_sources (name, domain_pattern, badge, color, parse_hints,
		                                  is_active, is_system, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		src.Name, src.DomainPattern, src.Badge, src.Color, src.ParseHints,
		boolToInt(src.IsActive), boolToInt(src.IsSystem), src.CreatedBy,
		src.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert source: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	src.ID = id
	return nil
}

// GetSource returns a single source by its ID.
func (s *SQLite) GetSource(ctx context.Context, id int64) (*model.Source, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, domain_pattern, badge, color, parse_hints, is_active, is_system, created_by, created_at
		 FROM noticias_ai_sources WHERE id = ?`, id,
	)
	src, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("source %d: %w", id, ErrNotFound)
	}
	return src, err
}

// ListSources returns sources ordered by ID, optionally active only.
func (s *SQLite) ListSources(ctx context.Context, activeOnly bool) ([]model.Source, error) {
	query := `SELECT id, name, domain_pattern, badge, color, parse_hints, is_active, is_system, created_by, created_at
	          FROM noticias_ai_sources`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var srcs []model.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		srcs = append(srcs, *src)
	}
	return srcs, rows.Err()
}

// DeleteSource removes an operator-defined source.
func (s *SQLite) DeleteSource(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM noticias_ai_sources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete source: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("source %d: %w", id, ErrNotFound)
	}
	return nil
}

const articleCols = "id, title, slug, content, excerpt, status, source_url, source_name, category, " +
	"image_url, tags, seo_title, seo_description, seo_keywords, read_time, import_mode, published_at, created_at"

const queueCols = "id, title, content, excerpt, source_url, source_name, category, feed_name, image_url, " +
	"tags, seo_title, seo_description, seo_keywords, read_time, import_mode, format_corrected, status, " +
	"reviewed_by, reviewed_at, created_at"

const scheduleCols = "id, name, source_urls, interval_minutes, max_articles, auto_publish, is_active, " +
	"last_run, next_run, created_by, created_at"

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func marshalTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func unmarshalTags(s string) []string {
	if s == "" || s == "[]" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(s), &tags); err != nil {
		return nil
	}
	return tags
}

func formatNullTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.UTC().Format(timeLayout)
	return &v
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanArticle(row scannable) (*model.Article, error) {
	var a model.Article
	var statusStr, tagsStr, modeStr, createdStr string
	var published sql.NullString
	err := row.Scan(&a.ID, &a.Title, &a.Slug, &a.Content, &a.Excerpt, &statusStr, &a.SourceURL, &a.SourceName,
		&a.Category, &a.ImageURL, &tagsStr, &a.SEOTitle, &a.SEODesc, &a.SEOKeywords,
		&a.ReadTime, &modeStr, &published, &createdStr)
	if err != nil {
		return nil, fmt.Errorf("scan article: %w", err)
	}
	a.Status = model.ArticleStatus(statusStr)
	a.Tags = unmarshalTags(tagsStr)
	a.ImportMode = model.ImportType(modeStr)
	a.PublishedAt = parseNullTime(published)
	a.CreatedAt, _ = time.Parse(timeLayout, createdStr)
	return &a, nil
}

func scanQueueItem(row scannable) (*model.QueueItem, error) {
	var item model.QueueItem
	var tagsStr, modeStr, statusStr, createdStr string
	var corrected int
	var reviewed sql.NullString
	err := row.Scan(&item.ID, &item.Title, &item.Content, &item.Excerpt, &item.SourceURL, &item.SourceName,
		&item.Category, &item.FeedName, &item.ImageURL, &tagsStr, &item.SEOTitle, &item.SEODesc,
		&item.SEOKeywords, &item.ReadTime, &modeStr, &corrected, &statusStr, &item.ReviewedBy, &reviewed, &createdStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan queue item: %w", err)
	}
	item.Tags = unmarshalTags(tagsStr)
	item.ImportMode = model.ImportType(modeStr)
	item.FormatCorrected = corrected == 1
	item.Status = model.QueueStatus(statusStr)
	item.ReviewedAt = parseNullTime(reviewed)
	item.CreatedAt, _ = time.Parse(timeLayout, createdStr)
	return &item, nil
}

func scanSchedule(row scannable) (*model.Schedule, error) {
	var sc model.Schedule
	var urlsStr, createdStr string
	var autoPublish, isActive int
	var lastRun, nextRun sql.NullString
	err := row.Scan(&sc.ID, &sc.Name, &urlsStr, &sc.IntervalMinutes, &sc.MaxArticles,
		&autoPublish, &isActive, &lastRun, &nextRun, &sc.CreatedBy, &createdStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan schedule: %w", err)
	}
	sc.SourceURLs = unmarshalTags(urlsStr)
	sc.AutoPublish = autoPublish == 1
	sc.IsActive = isActive == 1
	sc.LastRun = parseNullTime(lastRun)
	sc.NextRun = parseNullTime(nextRun)
	sc.CreatedAt, _ = time.Parse(timeLayout, createdStr)
	return &sc, nil
}

func scanSchedules(rows *sql.Rows) ([]model.Schedule, error) {
	var schedules []model.Schedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *sc)
	}
	return schedules, rows.Err()
}

func scanSource(row scannable) (*model.Source, error) {
	var src model.Source
	var isActive, isSystem int
	var createdStr string
	err := row.Scan(&src.ID, &src.Name, &src.DomainPattern, &src.Badge, &src.Color, &src.ParseHints,
		&isActive, &isSystem, &src.CreatedBy, &createdStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan source: %w", err)
	}
	src.IsActive = isActive == 1
	src.IsSystem = isSystem == 1
	src.CreatedAt, _ = time.Parse(timeLayout, createdStr)
	return &src, nil
}
