// Package model defines the domain types used across the application.
package model

import "time"

// ArticleStatus is the publication state of a stored article.
type ArticleStatus string

// Supported article statuses.
const (
	StatusDraft     ArticleStatus = "draft"
	StatusPublished ArticleStatus = "published"
)

// Article is a piece of published (or draft) portal content.
type Article struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Slug        string        `json:"slug"`
	Content     string        `json:"content"`
	Excerpt     string        `json:"excerpt"`
	Status      ArticleStatus `json:"status"`
	SourceURL   string        `json:"source_url"`
	SourceName  string        `json:"source_name"`
	Category    string        `json:"category"`
	ImageURL    string        `json:"image_url"`
	Tags        []string      `json:"tags"`
	SEOTitle    string        `json:"seo_title"`
	SEODesc     string        `json:"seo_description"`
	SEOKeywords string        `json:"seo_keywords"`
	ReadTime    int           `json:"read_time"`
	ImportMode  ImportType    `json:"import_mode"`
	PublishedAt *time.Time    `json:"published_at"`
	CreatedAt   time.Time     `json:"created_at"`
}

// QueueStatus is the moderation state of a queue item.
type QueueStatus string

// Supported queue statuses. Approved and rejected are terminal.
const (
	QueuePending  QueueStatus = "pending"
	QueueApproved QueueStatus = "approved"
	QueueRejected QueueStatus = "rejected"
)

// QueueItem is an ingested article awaiting moderation. FormatCorrected
// records that the bold-lead fix was applied at build time, so the
// import audit keeps the flag even when the item sits in moderation
// before being approved.
type QueueItem struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	Content         string      `json:"content"`
	Excerpt         string      `json:"excerpt"`
	SourceURL       string      `json:"source_url"`
	SourceName      string      `json:"source_name"`
	Category        string      `json:"category"`
	FeedName        string      `json:"feed_name"`
	ImageURL        string      `json:"image_url"`
	Tags            []string    `json:"tags"`
	SEOTitle        string      `json:"seo_title"`
	SEODesc         string      `json:"seo_description"`
	SEOKeywords     string      `json:"seo_keywords"`
	ReadTime        int         `json:"read_time"`
	ImportMode      ImportType  `json:"import_mode"`
	FormatCorrected bool        `json:"format_corrected"`
	Status          QueueStatus `json:"status"`
	ReviewedBy      string      `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time  `json:"reviewed_at,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

// ImportType distinguishes how an article entered the system.
type ImportType string

// Supported import types.
const (
	ImportSingle ImportType = "single"
	ImportBatch  ImportType = "batch"
	ImportJSON   ImportType = "json"
)

// ImportStatus is the outcome of an import attempt.
type ImportStatus string

// Supported import statuses.
const (
	ImportSuccess ImportStatus = "success"
	ImportError   ImportStatus = "error"
)

// ImportRecord is an append-only audit entry for one ingestion attempt.
// Records are never updated after creation.
type ImportRecord struct {
	ID              int64        `json:"id"`
	ArticleID       *string      `json:"article_id"`
	Title           string       `json:"title"`
	Slug            string       `json:"slug"`
	SourceURL       string       `json:"source_url"`
	SourceName      string       `json:"source_name"`
	ImportType      ImportType   `json:"import_type"`
	FormatCorrected bool         `json:"format_corrected"`
	Status          ImportStatus `json:"status"`
	ErrorMessage    string       `json:"error_message,omitempty"`
	ImportedBy      string       `json:"imported_by"`
	CreatedAt       time.Time    `json:"created_at"`
}

// Schedule is a recurring ingestion job definition.
type Schedule struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	SourceURLs      []string   `json:"source_urls"`
	IntervalMinutes int        `json:"interval_minutes"`
	MaxArticles     int        `json:"max_articles"`
	AutoPublish     bool       `json:"auto_publish"`
	IsActive        bool       `json:"is_active"`
	LastRun         *time.Time `json:"last_run"`
	NextRun         *time.Time `json:"next_run"`
	CreatedBy       string     `json:"created_by"`
	CreatedAt       time.Time  `json:"created_at"`
}

// RunStatus is the outcome of one schedule execution.
type RunStatus string

// Supported run statuses.
const (
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial"
	RunError   RunStatus = "error"
)

// RunLog is one append-only entry per schedule execution.
type RunLog struct {
	ID               int64     `json:"id"`
	ScheduleID       int64     `json:"schedule_id"`
	Status           RunStatus `json:"status"`
	ArticlesImported int       `json:"articles_imported"`
	ArticlesFailed   int       `json:"articles_failed"`
	DurationMs       int64     `json:"duration_ms"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Source is a publisher profile used to tag article provenance.
type Source struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	DomainPattern string    `json:"domain_pattern"`
	Badge         string    `json:"badge"`
	Color         string    `json:"color"`
	ParseHints    string    `json:"parse_hints,omitempty"`
	IsActive      bool      `json:"is_active"`
	IsSystem      bool      `json:"is_system"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// MatchType identifies which check classified a candidate as duplicate.
type MatchType string

// Supported duplicate match types.
const (
	MatchNone  MatchType = ""
	MatchURL   MatchType = "url"
	MatchSlug  MatchType = "slug"
	MatchTitle MatchType = "title"
)

// ArticleRef is a lightweight reference to an existing stored article.
type ArticleRef struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	PublishedAt *time.Time `json:"published_at"`
}

// DuplicateInfo is the duplicate-detection verdict attached to a candidate.
// Similarity is populated only for title matches; Existing is populated
// whenever IsDuplicate is true.
type DuplicateInfo struct {
	IsDuplicate bool        `json:"is_duplicate"`
	MatchType   MatchType   `json:"match_type,omitempty"`
	Existing    *ArticleRef `json:"existing_article,omitempty"`
	Similarity  int         `json:"similarity,omitempty"`
}

// Candidate is an externally fetched article that has not yet been
// committed to the moderation queue or the published store.
type Candidate struct {
	Title       string         `json:"title"`
	Link        string         `json:"link"`
	Description string         `json:"description"`
	PublishedAt *time.Time     `json:"published_at"`
	ImageURL    string         `json:"image_url"`
	FeedURL     string         `json:"feed_url"`
	FeedName    string         `json:"feed_name"`
	Selected    bool           `json:"selected"`
	Duplicate   *DuplicateInfo `json:"duplicate_info,omitempty"`
}
