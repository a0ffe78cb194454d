package ingest

import (
	"strings"
	"testing"
	"time"

	"noticias_ingest/internal/model"
	"noticias_ingest/internal/sources"
)

func TestBuildQueueItem(t *testing.T) {
	profile := sources.Profile{Name: "G1", DomainPattern: "g1.globo.com", Badge: "G1", Color: "#C4170C"}

	t.Run("full candidate", func(t *testing.T) {
		c := model.Candidate{
			Title:       "Governo anuncia nova política econômica",
			Link:        "https://g1.globo.com/economia/noticia.ghtml",
			Description: "<p>O governo federal anunciou um pacote de medidas.</p>",
			ImageURL:    "https://g1.globo.com/img/foto.jpg",
			FeedName:    "G1 Economia",
		}

		item := BuildQueueItem(c, profile, model.ImportBatch)

		if !item.FormatCorrected {
			t.Error("plain lead paragraph must be corrected")
		}
		if item.ID == "" {
			t.Error("expected generated ID")
		}
		if item.Status != model.QueuePending {
			t.Errorf("status = %s, want pending", item.Status)
		}
		if item.SourceName != "G1" {
			t.Errorf("source name = %q, want G1", item.SourceName)
		}
		if item.SourceURL != c.Link || item.ImageURL != c.ImageURL || item.FeedName != c.FeedName {
			t.Errorf("candidate fields not carried: %+v", item)
		}
		if !strings.Contains(item.Content, "<strong>") {
			t.Errorf("content missing bold lead: %q", item.Content)
		}
		if item.Excerpt == "" || len(item.Excerpt) > 303 {
			t.Errorf("bad excerpt: %q", item.Excerpt)
		}
		if item.SEOTitle != c.Title {
			t.Errorf("seo title = %q", item.SEOTitle)
		}
		if len(item.SEODesc) > 163 {
			t.Errorf("seo description too long: %d", len(item.SEODesc))
		}
		if !strings.Contains(item.SEOKeywords, "governo") || !strings.Contains(item.SEOKeywords, "política") {
			t.Errorf("keywords = %q", item.SEOKeywords)
		}
		if item.ReadTime < 1 {
			t.Errorf("read time = %d", item.ReadTime)
		}
		if item.ImportMode != model.ImportBatch {
			t.Errorf("import mode = %s", item.ImportMode)
		}
	})

	t.Run("empty description falls back to title", func(t *testing.T) {
		c := model.Candidate{Title: "Notícia sem corpo", Link: "https://example.com/a"}
		item := BuildQueueItem(c, sources.Generic, model.ImportSingle)
		if !item.FormatCorrected {
			t.Error("fallback paragraph must get the bold lead")
		}
		if !strings.Contains(item.Content, "Notícia sem corpo") {
			t.Errorf("content = %q", item.Content)
		}
		if item.SourceName != sources.Generic.Name {
			t.Errorf("source name = %q", item.SourceName)
		}
	})

	t.Run("bare text wrapped in paragraph", func(t *testing.T) {
		c := model.Candidate{
			Title:       "Notícia",
			Link:        "https://example.com/b",
			Description: "texto corrido sem marcação alguma",
		}
		item := BuildQueueItem(c, sources.Generic, model.ImportSingle)
		if !strings.HasPrefix(item.Content, "<p>") {
			t.Errorf("content not wrapped: %q", item.Content)
		}
	})
}

func TestArticleFromQueueItem(t *testing.T) {
	now := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	item := &model.QueueItem{
		ID:         "queue-id",
		Title:      "Chuvas intensas atingem o litoral",
		Content:    "<p><strong>A Defesa Civil</strong> emitiu alerta.</p>",
		Excerpt:    "A Defesa Civil emitiu alerta.",
		SourceURL:  "https://example.com/chuvas",
		SourceName: "Fonte externa",
		Category:   "brasil",
		Tags:       []string{"clima"},
		SEOTitle:   "Chuvas intensas",
		ReadTime:   1,
		ImportMode: model.ImportBatch,
	}

	a := ArticleFromQueueItem(item, "article-id", "chuvas-intensas-atingem-o-litoral", now)

	if a.ID != "article-id" || a.Slug != "chuvas-intensas-atingem-o-litoral" {
		t.Errorf("identity not applied: %+v", a)
	}
	if a.Status != model.StatusPublished {
		t.Errorf("status = %s, want published", a.Status)
	}
	if a.PublishedAt == nil || !a.PublishedAt.Equal(now) {
		t.Errorf("published_at = %v, want %v", a.PublishedAt, now)
	}
	if a.Title != item.Title || a.Content != item.Content || a.Category != item.Category {
		t.Errorf("content fields not copied: %+v", a)
	}
	if len(a.Tags) != 1 || a.Tags[0] != "clima" {
		t.Errorf("tags = %v", a.Tags)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		candidate model.Candidate
		wantErr   bool
	}{
		{name: "valid", candidate: model.Candidate{Title: "Título", Link: "https://example.com"}, wantErr: false},
		{name: "missing title", candidate: model.Candidate{Link: "https://example.com"}, wantErr: true},
		{name: "blank title", candidate: model.Candidate{Title: "   ", Link: "https://example.com"}, wantErr: true},
		{name: "missing link", candidate: model.Candidate{Title: "Título"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.candidate)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%+v) error = %v, wantErr %v", tt.candidate, err, tt.wantErr)
			}
		})
	}
}
