// Package api exposes the ingestion pipeline over HTTP for the admin
// panel: preview and import of external content, moderation queue
// actions, schedule management, import history, and statistics.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"noticias_ingest/internal/dedup"
	"noticias_ingest/internal/fetcher"
	"noticias_ingest/internal/ingest"
	"noticias_ingest/internal/model"
	"noticias_ingest/internal/queue"
	"noticias_ingest/internal/scheduler"
	"noticias_ingest/internal/sources"
	"noticias_ingest/internal/stats"
	"noticias_ingest/internal/storage"
)

// Handler wires the HTTP surface to the pipeline services.
type Handler struct {
	store storage.Storage
	queue *queue.Queue
	sched *scheduler.Scheduler
	svc   *ingest.Service
	fetch *fetcher.Fetcher
	log   *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(store storage.Storage, q *queue.Queue, sched *scheduler.Scheduler, svc *ingest.Service, f *fetcher.Fetcher, log *slog.Logger) *Handler {
	return &Handler{store: store, queue: q, sched: sched, svc: svc, fetch: f, log: log}
}

// RegisterRoutes mounts every endpoint under /api.
func RegisterRoutes(r *gin.Engine, h *Handler) {
	api := r.Group("/api")
	{
		api.POST("/ingest/preview", h.Preview)
		api.POST("/ingest", h.Import)

		api.GET("/queue", h.ListQueue)
		api.POST("/queue/:id/approve", h.ApproveQueueItem)
		api.POST("/queue/:id/reject", h.RejectQueueItem)
		api.DELETE("/queue/:id", h.DeleteQueueItem)

		api.GET("/schedules", h.ListSchedules)
		api.POST("/schedules", h.CreateSchedule)
		api.GET("/schedules/:id", h.GetSchedule)
		api.PUT("/schedules/:id", h.UpdateSchedule)
		api.DELETE("/schedules/:id", h.DeleteSchedule)
		api.POST("/schedules/:id/run", h.RunSchedule)
		api.GET("/schedules/:id/logs", h.ScheduleLogs)

		api.GET("/imports", h.ListImports)
		api.DELETE("/imports", h.PurgeImports)

		api.GET("/stats", h.Stats)

		api.GET("/sources", h.ListSources)
		api.POST("/sources", h.CreateSource)
		api.DELETE("/sources/:id", h.DeleteSource)
	}
}

// reviewer identifies the acting operator, defaulting to "system" when
// the admin panel does not forward one.
func reviewer(c *gin.Context) string {
	if who := c.GetHeader("X-Reviewer"); who != "" {
		return who
	}
	return "system"
}

// fail maps service errors onto HTTP statuses.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, storage.ErrConflict),
		errors.Is(err, queue.ErrAlreadyReviewed),
		errors.Is(err, scheduler.ErrRunInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, scheduler.ErrInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.log.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

type previewRequest struct {
	URLs        []string `json:"urls"`
	MaxArticles int      `json:"max_articles"`
}

// Preview: POST /api/ingest/preview
// Fetches the given feeds, annotates every candidate with its duplicate
// verdict and publisher profile, and returns them without writing
// anything. Duplicates come back deselected.
func (h *Handler) Preview(c *gin.Context) {
	var req previewRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json: " + err.Error()})
		return
	}
	if len(req.URLs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one feed URL is required"})
		return
	}
	if req.MaxArticles <= 0 {
		req.MaxArticles = 10
	}

	ctx := c.Request.Context()

	type result struct {
		url        string
		candidates []model.Candidate
		err        error
	}
	results := make([]result, len(req.URLs))
	var wg sync.WaitGroup
	for i, url := range req.URLs {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			feed, err := h.fetch.Fetch(ctx, url)
			if err != nil {
				results[i] = result{url: url, err: err}
				return
			}
			results[i] = result{url: url, candidates: fetcher.Candidates(feed, url, req.MaxArticles)}
		}(i, url)
	}
	wg.Wait()

	var candidates []model.Candidate
	feedErrors := map[string]string{}
	for _, r := range results {
		if r.err != nil {
			feedErrors[r.url] = r.err.Error()
			continue
		}
		candidates = append(candidates, r.candidates...)
	}

	candidates = dedup.Check(candidates, h.window(c))

	reg := h.registry(c)
	profiles := make([]sources.Profile, len(candidates))
	duplicates := 0
	for i := range candidates {
		profiles[i] = reg.Detect(candidates[i].Link)
		if candidates[i].Duplicate != nil && candidates[i].Duplicate.IsDuplicate {
			duplicates++
		}
	}

	type previewItem struct {
		model.Candidate
		Source sources.Profile `json:"source"`
	}
	items := make([]previewItem, len(candidates))
	for i := range candidates {
		items[i] = previewItem{Candidate: candidates[i], Source: profiles[i]}
	}

	c.JSON(http.StatusOK, gin.H{
		"meta": gin.H{
			"total":      len(items),
			"duplicates": duplicates,
			"errors":     feedErrors,
		},
		"data": items,
	})
}

type importRequest struct {
	Articles    []model.Candidate `json:"articles"`
	AutoPublish bool              `json:"auto_publish"`
	ImportType  model.ImportType  `json:"import_type"`
}

// Import: POST /api/ingest
// Commits the selected candidates: straight to the published store when
// auto_publish is set, otherwise into the moderation queue.
func (h *Handler) Import(c *gin.Context) {
	var req importRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json: " + err.Error()})
		return
	}
	if len(req.Articles) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one article is required"})
		return
	}
	switch req.ImportType {
	case model.ImportSingle, model.ImportBatch, model.ImportJSON:
	case "":
		req.ImportType = model.ImportSingle
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown import_type " + string(req.ImportType)})
		return
	}

	ctx := c.Request.Context()
	who := reviewer(c)
	reg := h.registry(c)

	imported, failed := 0, 0
	var failures []string
	for _, cand := range req.Articles {
		if !cand.Selected {
			continue
		}
		if err := ingest.Validate(cand); err != nil {
			failed++
			failures = append(failures, err.Error())
			continue
		}

		profile := reg.Detect(cand.Link)
		item := ingest.BuildQueueItem(cand, profile, req.ImportType)

		var err error
		if req.AutoPublish {
			_, err = h.svc.Publish(ctx, item, who)
		} else {
			err = h.svc.Enqueue(ctx, item)
		}
		if err != nil {
			failed++
			failures = append(failures, cand.Title+": "+err.Error())
			continue
		}
		imported++
	}

	c.JSON(http.StatusCreated, gin.H{
		"meta": gin.H{
			"imported": imported,
			"failed":   failed,
			"errors":   failures,
		},
	})
}

// ListQueue: GET /api/queue?status=pending
func (h *Handler) ListQueue(c *gin.Context) {
	status := model.QueueStatus(c.Query("status"))
	switch status {
	case "", model.QueuePending, model.QueueApproved, model.QueueRejected:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status " + string(status)})
		return
	}

	items, err := h.queue.List(c.Request.Context(), status)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"meta": gin.H{"count": len(items)},
		"data": items,
	})
}

// ApproveQueueItem: POST /api/queue/:id/approve
func (h *Handler) ApproveQueueItem(c *gin.Context) {
	article, err := h.queue.Approve(c.Request.Context(), c.Param("id"), reviewer(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": article})
}

// RejectQueueItem: POST /api/queue/:id/reject
func (h *Handler) RejectQueueItem(c *gin.Context) {
	if err := h.queue.Reject(c.Request.Context(), c.Param("id"), reviewer(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": c.Param("id"), "status": model.QueueRejected}})
}

// DeleteQueueItem: DELETE /api/queue/:id
func (h *Handler) DeleteQueueItem(c *gin.Context) {
	if err := h.queue.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListSchedules: GET /api/schedules
func (h *Handler) ListSchedules(c *gin.Context) {
	schedules, err := h.sched.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"meta": gin.H{"count": len(schedules)},
		"data": schedules,
	})
}

// CreateSchedule: POST /api/schedules
func (h *Handler) CreateSchedule(c *gin.Context) {
	var sc model.Schedule
	if err := c.BindJSON(&sc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json: " + err.Error()})
		return
	}
	sc.CreatedBy = reviewer(c)
	sc.IsActive = true

	if err := h.sched.Create(c.Request.Context(), &sc); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": sc})
}

// GetSchedule: GET /api/schedules/:id
func (h *Handler) GetSchedule(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	sc, err := h.sched.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sc})
}

// UpdateSchedule: PUT /api/schedules/:id
func (h *Handler) UpdateSchedule(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var sc model.Schedule
	if err := c.BindJSON(&sc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json: " + err.Error()})
		return
	}
	sc.ID = id

	if err := h.sched.Update(c.Request.Context(), &sc); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sc})
}

// DeleteSchedule: DELETE /api/schedules/:id
func (h *Handler) DeleteSchedule(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	if err := h.sched.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RunSchedule: POST /api/schedules/:id/run
// Forces an immediate execution; a run already in flight is a conflict.
func (h *Handler) RunSchedule(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	runLog, err := h.sched.RunNow(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": runLog})
}

// ScheduleLogs: GET /api/schedules/:id/logs?limit=20
func (h *Handler) ScheduleLogs(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	limit := parseLimit(c.DefaultQuery("limit", "20"))

	logs, err := h.sched.Logs(c.Request.Context(), id, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"meta": gin.H{"count": len(logs), "limit": limit},
		"data": logs,
	})
}

// ListImports: GET /api/imports?status=&type=&source=&since=&limit=
func (h *Handler) ListImports(c *gin.Context) {
	f := storage.ImportFilter{
		Status: model.ImportStatus(c.Query("status")),
		Type:   model.ImportType(c.Query("type")),
		Source: c.Query("source"),
		Limit:  parseLimit(c.DefaultQuery("limit", "50")),
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since: " + err.Error()})
			return
		}
		f.Since = &since
	}

	records, err := h.store.ListImports(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"meta": gin.H{"count": len(records), "limit": f.Limit},
		"data": records,
	})
}

// PurgeImports: DELETE /api/imports?before=2026-01-01T00:00:00Z
func (h *Handler) PurgeImports(c *gin.Context) {
	raw := c.Query("before")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "before parameter is required"})
		return
	}
	cutoff, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before: " + err.Error()})
		return
	}

	purged, err := h.store.PurgeImportsBefore(c.Request.Context(), cutoff)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"meta": gin.H{"purged": purged}})
}

// Stats: GET /api/stats?period=week
func (h *Handler) Stats(c *gin.Context) {
	period := stats.Period(c.DefaultQuery("period", string(stats.PeriodWeek)))
	switch period {
	case stats.PeriodDay, stats.PeriodWeek, stats.PeriodMonth:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown period " + string(period)})
		return
	}

	now := time.Now().UTC()
	start := period.Start(now)
	records, err := h.store.ListImports(c.Request.Context(), storage.ImportFilter{Since: &start})
	if err != nil {
		h.fail(c, err)
		return
	}

	st := stats.Compute(records, period, now)

	reg := h.registry(c)
	st.Resolve(func(name string) (string, string, bool) {
		for _, p := range reg.Profiles() {
			if p.Name == name {
				return p.Badge, p.Color, true
			}
		}
		return "", "", false
	})

	c.JSON(http.StatusOK, gin.H{"data": st})
}

// ListSources: GET /api/sources
// Returns the stored operator sources plus the resolved profile layering.
func (h *Handler) ListSources(c *gin.Context) {
	stored, err := h.store.ListSources(c.Request.Context(), false)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"meta": gin.H{"count": len(stored)},
		"data": stored,
	})
}

// CreateSource: POST /api/sources
func (h *Handler) CreateSource(c *gin.Context) {
	var src model.Source
	if err := c.BindJSON(&src); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json: " + err.Error()})
		return
	}
	if src.Name == "" || src.DomainPattern == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and domain_pattern are required"})
		return
	}
	src.IsActive = true
	src.IsSystem = false
	src.CreatedBy = reviewer(c)

	if err := h.store.CreateSource(c.Request.Context(), &src); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": src})
}

// DeleteSource: DELETE /api/sources/:id
// System-seeded sources cannot be deleted.
func (h *Handler) DeleteSource(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	src, err := h.store.GetSource(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if src.IsSystem {
		c.JSON(http.StatusConflict, gin.H{"error": "system sources cannot be deleted"})
		return
	}

	if err := h.store.DeleteSource(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// window loads the recent-article comparison window, empty when storage
// is unavailable so previews keep working.
func (h *Handler) window(c *gin.Context) []model.Article {
	since := time.Now().UTC().AddDate(0, 0, -dedup.WindowDays)
	window, err := h.store.ListRecentArticles(c.Request.Context(), since, dedup.WindowLimit)
	if err != nil {
		h.log.Warn("duplicate window unavailable", "error", err)
		return nil
	}
	return window
}

func (h *Handler) registry(c *gin.Context) *sources.Registry {
	stored, err := h.store.ListSources(c.Request.Context(), true)
	if err != nil {
		h.log.Warn("list sources", "error", err)
		stored = nil
	}
	reg, err := sources.New(stored)
	if err != nil {
		h.log.Error("build source registry", "error", err)
		reg, _ = sources.New(nil)
	}
	return reg
}

func (h *Handler) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id " + c.Param("id")})
		return 0, false
	}
	return id, true
}

// parseLimit ensures a sane integer limit, with bounds.
func parseLimit(s string) int {
	l, err := strconv.Atoi(s)
	if err != nil || l <= 0 {
		return 20
	}
	if l > 200 {
		return 200
	}
	return l
}
