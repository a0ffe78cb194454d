package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"noticias_ingest/internal/model"
	"noticias_ingest/internal/sources"
)

const (
	excerptLen    = 300
	seoDescLen    = 160
	seoKeywordMax = 8
)

// BuildQueueItem assembles the storable form of a fetched candidate:
// normalized content, derived excerpt and SEO metadata, read time, and
// source attribution from the publisher profile. The returned item is
// pending and carries a fresh ID; FormatCorrected is set when the
// bold-lead fix was applied.
func BuildQueueItem(c model.Candidate, profile sources.Profile, mode model.ImportType) *model.QueueItem {
	content := c.Description
	if strings.TrimSpace(content) == "" {
		content = "<p>" + c.Title + "</p>"
	} else if !strings.Contains(content, "<p") {
		content = "<p>" + content + "</p>"
	}
	content, corrected := EnsureBoldLead(content)

	excerpt := Excerpt(content, excerptLen)

	return &model.QueueItem{
		ID:              uuid.New().String(),
		Title:           c.Title,
		Content:         content,
		Excerpt:         excerpt,
		SourceURL:       c.Link,
		SourceName:      profile.Name,
		FeedName:        c.FeedName,
		ImageURL:        c.ImageURL,
		SEOTitle:        c.Title,
		SEODesc:         Excerpt(content, seoDescLen),
		SEOKeywords:     keywords(c.Title),
		ReadTime:        ReadTime(content),
		ImportMode:      mode,
		FormatCorrected: corrected,
		Status:          model.QueuePending,
		CreatedAt:       time.Now().UTC(),
	}
}

// ArticleFromQueueItem copies a queue item into a new published article.
func ArticleFromQueueItem(item *model.QueueItem, id, slug string, now time.Time) *model.Article {
	publishedAt := now.UTC()
	return &model.Article{
		ID:          id,
		Title:       item.Title,
		Slug:        slug,
		Content:     item.Content,
		Excerpt:     item.Excerpt,
		Status:      model.StatusPublished,
		SourceURL:   item.SourceURL,
		SourceName:  item.SourceName,
		Category:    item.Category,
		ImageURL:    item.ImageURL,
		Tags:        item.Tags,
		SEOTitle:    item.SEOTitle,
		SEODesc:     item.SEODesc,
		SEOKeywords: item.SEOKeywords,
		ReadTime:    item.ReadTime,
		ImportMode:  item.ImportMode,
		PublishedAt: &publishedAt,
		CreatedAt:   publishedAt,
	}
}

// keywords derives a comma-separated keyword list from the longer words
// of the title.
func keywords(title string) string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(title)) {
		w = strings.Trim(w, ".,;:!?\"'()[]")
		if len([]rune(w)) > 3 {
			words = append(words, w)
		}
		if len(words) == seoKeywordMax {
			break
		}
	}
	return strings.Join(words, ", ")
}

// Validate rejects candidates that cannot become queue items.
func Validate(c model.Candidate) error {
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("candidate has no title")
	}
	if strings.TrimSpace(c.Link) == "" {
		return fmt.Errorf("candidate %q has no link", c.Title)
	}
	return nil
}
