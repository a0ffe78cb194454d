// Package fetcher downloads external feeds and maps their items to
// ingestion candidates.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/sethvargo/go-retry"

	"noticias_ingest/internal/model"
)

// DefaultTimeout bounds a single feed download. A source that does not
// answer in time is a per-source failure, never a run-wide abort.
const DefaultTimeout = 10 * time.Second

const maxBodySize = 5 * 1024 * 1024

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher downloads and parses external feeds.
type Fetcher struct {
	client  HTTPClient
	timeout time.Duration
}

// New creates a Fetcher with the given HTTP client.
func New(client HTTPClient) *Fetcher {
	return &Fetcher{
		client:  client,
		timeout: DefaultTimeout,
	}
}

// SetTimeout overrides the per-fetch timeout.
func (f *Fetcher) SetTimeout(d time.Duration) {
	f.timeout = d
}

// Fetch downloads and parses a feed from the given URL. Network errors and
// 5xx responses are retried twice with exponential backoff; client errors
// fail immediately.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*gofeed.Feed, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var body string
	backoff := retry.WithMaxRetries(2, retry.NewExponential(300*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		body, err = f.download(ctx, url)
		return err
	})
	if err != nil {
		return nil, err
	}

	parser := gofeed.NewParser()
	feed, err := parser.ParseString(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

func (f *Fetcher) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "NoticiasIngest/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", retry.RetryableError(fmt.Errorf("http get: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 500 {
		return "", retry.RetryableError(fmt.Errorf("server status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", retry.RetryableError(fmt.Errorf("read body: %w", err))
	}
	return string(data), nil
}

// Candidates maps feed items to ingestion candidates, at most max per feed.
// Candidates start selected; duplicate detection may deselect them later.
func Candidates(feed *gofeed.Feed, feedURL string, max int) []model.Candidate {
	items := feed.Items
	if max > 0 && len(items) > max {
		items = items[:max]
	}

	candidates := make([]model.Candidate, 0, len(items))
	for _, item := range items {
		candidates = append(candidates, model.Candidate{
			Title:       strings.TrimSpace(item.Title),
			Link:        strings.TrimSpace(item.Link),
			Description: item.Description,
			PublishedAt: item.PublishedParsed,
			ImageURL:    itemImage(item),
			FeedURL:     feedURL,
			FeedName:    feed.Title,
			Selected:    true,
		})
	}
	return candidates
}

// itemImage picks a lead image from the item image or the first image
// enclosure, if any.
func itemImage(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}
	return ""
}
