// Package dedup classifies fetched candidates against recently stored
// articles so the same story is not published twice.
package dedup

import (
	"math"
	"strings"
	"unicode/utf8"

	"noticias_ingest/internal/model"
	"noticias_ingest/internal/slug"
)

// TitleThreshold is the minimum similarity score for a title match.
const TitleThreshold = 0.85

// Window bounds for the existing-article scan. Duplicates almost always
// show up against very recent content, so the scan is capped instead of
// walking the full corpus.
const (
	WindowDays  = 30
	WindowLimit = 500
)

// minTokenLen excludes short words (articles, prepositions) from the
// similarity comparison. Titles made only of short words never match by
// similarity; that is a known precision trade-off.
const minTokenLen = 3

// Similarity scores how alike two titles are, in [0, 1]. Identical strings
// (after case folding and trimming) score 1; the general case is the
// Jaccard index over words longer than three characters, which is cheap
// and insensitive to word order and punctuation rewrites.
func Similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	inter := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		if utf8.RuneCountInString(w) > minTokenLen {
			set[w] = struct{}{}
		}
	}
	return set
}

// Check annotates every candidate with a duplicate verdict against the
// window of existing articles and deselects the duplicates. Checks are
// evaluated in precedence order and the first match wins: exact URL,
// then slug equality, then title similarity. The window is scanned in
// storage order and the first article crossing the similarity threshold
// is recorded, not the best one.
//
// Check only annotates in memory; it never writes to storage. Callers that
// fail to load the window should pass it empty so ingestion stays available.
func Check(candidates []model.Candidate, window []model.Article) []model.Candidate {
	refs := make([]windowRef, len(window))
	for i, a := range window {
		refs[i] = windowRef{
			article: model.ArticleRef{ID: a.ID, Title: a.Title, Slug: a.Slug, PublishedAt: a.PublishedAt},
			url:     strings.ToLower(a.SourceURL),
			slug:    a.Slug,
			title:   a.Title,
		}
	}

	for i := range candidates {
		info := classify(&candidates[i], refs)
		candidates[i].Duplicate = info
		if info.IsDuplicate {
			candidates[i].Selected = false
		}
	}
	return candidates
}

type windowRef struct {
	article model.ArticleRef
	url     string
	slug    string
	title   string
}

func classify(c *model.Candidate, refs []windowRef) *model.DuplicateInfo {
	link := strings.ToLower(strings.TrimSpace(c.Link))
	if link != "" {
		for _, r := range refs {
			if r.url != "" && r.url == link {
				ref := r.article
				return &model.DuplicateInfo{IsDuplicate: true, MatchType: model.MatchURL, Existing: &ref}
			}
		}
	}

	candSlug := slug.Make(c.Title)
	if candSlug != "" {
		for _, r := range refs {
			if r.slug != "" && r.slug == candSlug {
				ref := r.article
				return &model.DuplicateInfo{IsDuplicate: true, MatchType: model.MatchSlug, Existing: &ref}
			}
		}
	}

	for _, r := range refs {
		score := Similarity(c.Title, r.title)
		if score >= TitleThreshold {
			ref := r.article
			return &model.DuplicateInfo{
				IsDuplicate: true,
				MatchType:   model.MatchTitle,
				Existing:    &ref,
				Similarity:  int(math.Round(score * 100)),
			}
		}
	}

	return &model.DuplicateInfo{IsDuplicate: false}
}

// Filter removes candidates already classified as duplicates, preserving
// the order of the remainder.
func Filter(candidates []model.Candidate) []model.Candidate {
	kept := make([]model.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Duplicate != nil && c.Duplicate.IsDuplicate {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}
