package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"noticias_ingest/internal/model"
)

var ignoreArticleTS = cmpopts.IgnoreFields(model.Article{}, "CreatedAt", "PublishedAt")
var ignoreQueueTS = cmpopts.IgnoreFields(model.QueueItem{}, "CreatedAt")
var ignoreScheduleTS = cmpopts.IgnoreFields(model.Schedule{}, "CreatedAt")

func newTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testArticle(id, slug string, createdAt time.Time) *model.Article {
	published := createdAt
	return &model.Article{
		ID:          id,
		Title:       "Governo anuncia nova política econômica",
		Slug:        slug,
		Content:     "<p><strong>O governo federal</strong> anunciou novas medidas.</p>",
		Excerpt:     "O governo federal anunciou novas medidas.",
		Status:      model.StatusPublished,
		SourceURL:   "https://g1.globo.com/economia/" + slug,
		SourceName:  "G1",
		Tags:        []string{"economia", "governo"},
		ReadTime:    1,
		ImportMode:  model.ImportSingle,
		PublishedAt: &published,
		CreatedAt:   createdAt,
	}
}

func testQueueItem(id string) *model.QueueItem {
	return &model.QueueItem{
		ID:              id,
		Title:           "Chuvas intensas atingem o litoral paulista",
		Content:         "<p><strong>A Defesa Civil</strong> emitiu alerta.</p>",
		Excerpt:         "A Defesa Civil emitiu alerta.",
		SourceURL:       "https://noticias.example.com.br/brasil/chuvas-" + id,
		SourceName:      "Fonte externa",
		FeedName:        "Portal de Notícias",
		ReadTime:        1,
		ImportMode:      model.ImportBatch,
		FormatCorrected: true,
		Status:          model.QueuePending,
	}
}

func TestArticleCreateAndWindow(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	for i, slug := range []string{"primeira-noticia", "segunda-noticia", "terceira-noticia"} {
		a := testArticle(slug+"-id", slug, base.Add(time.Duration(i)*time.Hour))
		if err := s.CreateArticle(ctx, a); err != nil {
			t.Fatalf("create article %s: %v", slug, err)
		}
	}

	t.Run("duplicate slug conflicts", func(t *testing.T) {
		dup := testArticle("outro-id", "primeira-noticia", base)
		err := s.CreateArticle(ctx, dup)
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("window is newest first", func(t *testing.T) {
		got, err := s.ListRecentArticles(ctx, base, 10)
		if err != nil {
			t.Fatalf("list recent: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 articles, got %d", len(got))
		}
		if got[0].Slug != "terceira-noticia" || got[2].Slug != "primeira-noticia" {
			t.Errorf("wrong order: %s ... %s", got[0].Slug, got[2].Slug)
		}
	})

	t.Run("window respects since and limit", func(t *testing.T) {
		got, err := s.ListRecentArticles(ctx, base.Add(30*time.Minute), 1)
		if err != nil {
			t.Fatalf("list recent: %v", err)
		}
		if len(got) != 1 || got[0].Slug != "terceira-noticia" {
			t.Errorf("expected only the newest article, got %+v", got)
		}
	})

	t.Run("round trip preserves fields", func(t *testing.T) {
		got, err := s.ListRecentArticles(ctx, base, 10)
		if err != nil {
			t.Fatalf("list recent: %v", err)
		}
		want := testArticle("terceira-noticia-id", "terceira-noticia", base)
		if diff := cmp.Diff(*want, got[0], ignoreArticleTS); diff != "" {
			t.Errorf("article mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestQueueLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	item := testQueueItem("q1")
	if err := s.EnqueueItem(ctx, item); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	got, err := s.GetQueueItem(ctx, "q1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(*testQueueItem("q1"), *got, ignoreQueueTS); diff != "" {
		t.Errorf("queue item mismatch (-want +got):\n%s", diff)
	}

	if _, err := s.GetQueueItem(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	t.Run("list filters by status", func(t *testing.T) {
		other := testQueueItem("q2")
		if err := s.EnqueueItem(ctx, other); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		if err := s.MarkQueueItem(ctx, "q2", model.QueueRejected, "editor", time.Now()); err != nil {
			t.Fatalf("mark: %v", err)
		}

		pending, err := s.ListQueue(ctx, model.QueuePending)
		if err != nil {
			t.Fatalf("list pending: %v", err)
		}
		if len(pending) != 1 || pending[0].ID != "q1" {
			t.Errorf("expected only q1 pending, got %+v", pending)
		}

		all, err := s.ListQueue(ctx, "")
		if err != nil {
			t.Fatalf("list all: %v", err)
		}
		if len(all) != 2 {
			t.Errorf("expected 2 items, got %d", len(all))
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := s.DeleteQueueItem(ctx, "q1"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if err := s.DeleteQueueItem(ctx, "q1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}
	})
}

func TestPromoteQueueItem(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)

	t.Run("promotes exactly once", func(t *testing.T) {
		s := newTestDB(t)
		if err := s.EnqueueItem(ctx, testQueueItem("q1")); err != nil {
			t.Fatalf("enqueue: %v", err)
		}

		article := testArticle("art-1", "chuvas-litoral", now)
		if err := s.PromoteQueueItem(ctx, "q1", article, "editor", now); err != nil {
			t.Fatalf("promote: %v", err)
		}

		item, err := s.GetQueueItem(ctx, "q1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if item.Status != model.QueueApproved || item.ReviewedBy != "editor" || item.ReviewedAt == nil {
			t.Errorf("claim not stamped: %+v", item)
		}

		window, err := s.ListRecentArticles(ctx, now.Add(-time.Hour), 10)
		if err != nil {
			t.Fatalf("list recent: %v", err)
		}
		if len(window) != 1 || window[0].ID != "art-1" {
			t.Errorf("promoted article missing: %+v", window)
		}

		// A second promotion finds the claim gone.
		again := testArticle("art-2", "chuvas-litoral-2", now)
		if err := s.PromoteQueueItem(ctx, "q1", again, "editor", now); !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict on second promote, got %v", err)
		}
		window, _ = s.ListRecentArticles(ctx, now.Add(-time.Hour), 10)
		if len(window) != 1 {
			t.Errorf("second article must not exist, got %d", len(window))
		}
	})

	t.Run("slug collision rolls back the claim", func(t *testing.T) {
		s := newTestDB(t)
		if err := s.CreateArticle(ctx, testArticle("existing", "slug-ocupado", now)); err != nil {
			t.Fatalf("create article: %v", err)
		}
		if err := s.EnqueueItem(ctx, testQueueItem("q1")); err != nil {
			t.Fatalf("enqueue: %v", err)
		}

		colliding := testArticle("art-1", "slug-ocupado", now)
		if err := s.PromoteQueueItem(ctx, "q1", colliding, "editor", now); !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}

		item, err := s.GetQueueItem(ctx, "q1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if item.Status != model.QueuePending {
			t.Errorf("claim must roll back with the article insert, status = %s", item.Status)
		}
	})

	t.Run("missing item", func(t *testing.T) {
		s := newTestDB(t)
		err := s.PromoteQueueItem(ctx, "missing", testArticle("a", "b", now), "editor", now)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestMarkQueueItem(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	now := time.Now().UTC()

	if err := s.EnqueueItem(ctx, testQueueItem("q1")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := s.MarkQueueItem(ctx, "q1", model.QueueRejected, "editor", now); err != nil {
		t.Fatalf("mark: %v", err)
	}

	if err := s.MarkQueueItem(ctx, "q1", model.QueueRejected, "editor", now); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict on terminal item, got %v", err)
	}
	if err := s.MarkQueueItem(ctx, "missing", model.QueueRejected, "editor", now); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestImports(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	base := time.Date(2026, 8, 25, 8, 0, 0, 0, time.UTC)
	articleID := "art-1"
	records := []model.ImportRecord{
		{ArticleID: &articleID, Title: "Primeira", SourceName: "G1", ImportType: model.ImportSingle, Status: model.ImportSuccess, ImportedBy: "editor", CreatedAt: base},
		{Title: "Segunda", SourceName: "UOL", ImportType: model.ImportBatch, Status: model.ImportError, ErrorMessage: "feed indisponível", ImportedBy: "system", CreatedAt: base.Add(time.Hour)},
		{Title: "Terceira", SourceName: "G1", ImportType: model.ImportBatch, FormatCorrected: true, Status: model.ImportSuccess, ImportedBy: "system", CreatedAt: base.Add(2 * time.Hour)},
	}
	for i := range records {
		rec := records[i]
		if err := s.RecordImport(ctx, &rec); err != nil {
			t.Fatalf("record import %d: %v", i, err)
		}
		if rec.ID == 0 {
			t.Fatal("expected non-zero record ID")
		}
	}

	tests := []struct {
		name       string
		filter     ImportFilter
		wantTitles []string
	}{
		{
			name:       "no filter newest first",
			filter:     ImportFilter{},
			wantTitles: []string{"Terceira", "Segunda", "Primeira"},
		},
		{
			name:       "by status",
			filter:     ImportFilter{Status: model.ImportError},
			wantTitles: []string{"Segunda"},
		},
		{
			name:       "by type",
			filter:     ImportFilter{Type: model.ImportBatch},
			wantTitles: []string{"Terceira", "Segunda"},
		},
		{
			name:       "by source",
			filter:     ImportFilter{Source: "G1"},
			wantTitles: []string{"Terceira", "Primeira"},
		},
		{
			name: "since",
			filter: func() ImportFilter {
				since := base.Add(time.Hour)
				return ImportFilter{Since: &since}
			}(),
			wantTitles: []string{"Terceira", "Segunda"},
		},
		{
			name:       "limit",
			filter:     ImportFilter{Limit: 1},
			wantTitles: []string{"Terceira"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListImports(ctx, tt.filter)
			if err != nil {
				t.Fatalf("list imports: %v", err)
			}
			var titles []string
			for _, r := range got {
				titles = append(titles, r.Title)
			}
			if diff := cmp.Diff(tt.wantTitles, titles); diff != "" {
				t.Errorf("titles mismatch (-want +got):\n%s", diff)
			}
		})
	}

	t.Run("article id round trips", func(t *testing.T) {
		got, err := s.ListImports(ctx, ImportFilter{Source: "G1", Status: model.ImportSuccess, Type: model.ImportSingle})
		if err != nil {
			t.Fatalf("list imports: %v", err)
		}
		if len(got) != 1 || got[0].ArticleID == nil || *got[0].ArticleID != articleID {
			t.Errorf("expected article id %q, got %+v", articleID, got)
		}
	})

	t.Run("purge", func(t *testing.T) {
		purged, err := s.PurgeImportsBefore(ctx, base.Add(90*time.Minute))
		if err != nil {
			t.Fatalf("purge: %v", err)
		}
		if purged != 2 {
			t.Errorf("expected 2 purged, got %d", purged)
		}
		remaining, _ := s.ListImports(ctx, ImportFilter{})
		if len(remaining) != 1 || remaining[0].Title != "Terceira" {
			t.Errorf("wrong rows remain: %+v", remaining)
		}
	})
}

func TestScheduleCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	next := time.Date(2026, 8, 27, 15, 0, 0, 0, time.UTC)

	sc := model.Schedule{
		Name:            "Importação G1",
		SourceURLs:      []string{"https://g1.globo.com/rss/g1/", "https://g1.globo.com/rss/g1/economia/"},
		IntervalMinutes: 30,
		MaxArticles:     5,
		AutoPublish:     false,
		IsActive:        true,
		NextRun:         &next,
		CreatedBy:       "editor",
	}
	if err := s.CreateSchedule(ctx, &sc); err != nil {
		t.Fatalf("create: %v", err)
	}
	if sc.ID == 0 {
		t.Fatal("expected non-zero ID")
	}

	got, err := s.GetSchedule(ctx, sc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(sc, *got, ignoreScheduleTS); diff != "" {
		t.Errorf("schedule mismatch (-want +got):\n%s", diff)
	}

	t.Run("update", func(t *testing.T) {
		sc.Name = "Importação G1 e UOL"
		sc.IntervalMinutes = 60
		sc.IsActive = false
		if err := s.UpdateSchedule(ctx, &sc); err != nil {
			t.Fatalf("update: %v", err)
		}
		got, err := s.GetSchedule(ctx, sc.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Name != sc.Name || got.IntervalMinutes != 60 || got.IsActive {
			t.Errorf("update not persisted: %+v", got)
		}
	})

	t.Run("update missing", func(t *testing.T) {
		missing := sc
		missing.ID = 9999
		if err := s.UpdateSchedule(ctx, &missing); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("run stamps", func(t *testing.T) {
		last := time.Date(2026, 8, 27, 16, 0, 0, 0, time.UTC)
		if err := s.UpdateScheduleRuns(ctx, sc.ID, last, last.Add(time.Hour)); err != nil {
			t.Fatalf("update runs: %v", err)
		}
		got, _ := s.GetSchedule(ctx, sc.ID)
		if got.LastRun == nil || !got.LastRun.Equal(last) {
			t.Errorf("last_run = %v, want %v", got.LastRun, last)
		}
		if got.NextRun == nil || !got.NextRun.Equal(last.Add(time.Hour)) {
			t.Errorf("next_run = %v, want %v", got.NextRun, last.Add(time.Hour))
		}
	})

	t.Run("delete cascades logs", func(t *testing.T) {
		if err := s.CreateRunLog(ctx, &model.RunLog{ScheduleID: sc.ID, Status: model.RunSuccess}); err != nil {
			t.Fatalf("create run log: %v", err)
		}
		if err := s.DeleteSchedule(ctx, sc.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := s.GetSchedule(ctx, sc.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		logs, err := s.ListRunLogs(ctx, sc.ID, 10)
		if err != nil {
			t.Fatalf("list run logs: %v", err)
		}
		if len(logs) != 0 {
			t.Errorf("expected no logs after delete, got %d", len(logs))
		}
		if err := s.DeleteSchedule(ctx, sc.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}
	})
}

func TestListDueSchedules(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	now := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)

	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	mk := func(name string, active bool, nextRun *time.Time) {
		t.Helper()
		sc := model.Schedule{
			Name:            name,
			SourceURLs:      []string{"https://example.com/rss"},
			IntervalMinutes: 30,
			IsActive:        active,
			NextRun:         nextRun,
		}
		if err := s.CreateSchedule(ctx, &sc); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}

	mk("due", true, &past)
	mk("due-exact", true, &now)
	mk("never-ran", true, nil)
	mk("future", true, &future)
	mk("inactive", false, &past)

	due, err := s.ListDueSchedules(ctx, now)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}

	var names []string
	for _, sc := range due {
		names = append(names, sc.Name)
	}
	want := []string{"due", "due-exact", "never-ran"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("due schedules mismatch (-want +got):\n%s", diff)
	}
}

func TestRunLogs(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	for i, status := range []model.RunStatus{model.RunSuccess, model.RunPartial, model.RunError} {
		l := model.RunLog{
			ScheduleID:       1,
			Status:           status,
			ArticlesImported: i,
			ArticlesFailed:   3 - i,
			DurationMs:       int64(100 * (i + 1)),
		}
		if err := s.CreateRunLog(ctx, &l); err != nil {
			t.Fatalf("create run log: %v", err)
		}
		if l.ID == 0 {
			t.Fatal("expected non-zero ID")
		}
	}

	logs, err := s.ListRunLogs(ctx, 1, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 logs, got %d", len(logs))
	}
	if logs[0].Status != model.RunError || logs[1].Status != model.RunPartial {
		t.Errorf("wrong order: %s, %s", logs[0].Status, logs[1].Status)
	}
}

func TestSources(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	t.Run("system rows are seeded", func(t *testing.T) {
		all, err := s.ListSources(ctx, false)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(all) != 4 {
			t.Fatalf("expected 4 seeded sources, got %d", len(all))
		}
		for _, src := range all {
			if !src.IsSystem || !src.IsActive {
				t.Errorf("seeded source must be system and active: %+v", src)
			}
		}
	})

	src := model.Source{
		Name:          "Blog Regional",
		DomainPattern: "blogregional.com.br",
		Badge:         "Blog",
		Color:         "#333333",
		IsActive:      true,
		CreatedBy:     "editor",
	}
	if err := s.CreateSource(ctx, &src); err != nil {
		t.Fatalf("create: %v", err)
	}
	if src.ID == 0 {
		t.Fatal("expected non-zero ID")
	}

	got, err := s.GetSource(ctx, src.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(src, *got, cmpopts.IgnoreFields(model.Source{}, "CreatedAt")); diff != "" {
		t.Errorf("source mismatch (-want +got):\n%s", diff)
	}

	t.Run("active only filter", func(t *testing.T) {
		inactive := model.Source{Name: "Desativada", DomainPattern: "off.com.br", IsActive: false}
		if err := s.CreateSource(ctx, &inactive); err != nil {
			t.Fatalf("create: %v", err)
		}
		active, err := s.ListSources(ctx, true)
		if err != nil {
			t.Fatalf("list active: %v", err)
		}
		for _, a := range active {
			if a.Name == "Desativada" {
				t.Error("inactive source returned by active-only listing")
			}
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := s.DeleteSource(ctx, src.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := s.GetSource(ctx, src.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := s.DeleteSource(ctx, src.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}
	})
}
