// Package scheduler manages recurring ingestion jobs: due-schedule
// polling, fan-out fetching of the configured sources, duplicate
// filtering, and queueing or auto-publishing of the surviving candidates.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"

	"noticias_ingest/internal/dedup"
	"noticias_ingest/internal/fetcher"
	"noticias_ingest/internal/ingest"
	"noticias_ingest/internal/model"
	"noticias_ingest/internal/notify"
	"noticias_ingest/internal/sources"
	"noticias_ingest/internal/storage"
)

// ErrRunInFlight is returned when a run is requested for a schedule that
// is already executing. Two runs racing on the same schedule row would
// race on last_run/next_run, so the second is rejected.
var ErrRunInFlight = errors.New("schedule run already in flight")

// ErrInvalid is returned for malformed schedule definitions.
var ErrInvalid = errors.New("invalid schedule")

const defaultMaxArticles = 10

// Scheduler runs ingestion schedules and manages their definitions.
type Scheduler struct {
	store    storage.Storage
	fetcher  *fetcher.Fetcher
	svc      *ingest.Service
	notifier notify.Notifier
	log      *slog.Logger
	tick     time.Duration

	mu       sync.Mutex
	inFlight map[int64]struct{}
}

// New creates a Scheduler.
func New(store storage.Storage, f *fetcher.Fetcher, notifier notify.Notifier, log *slog.Logger) *Scheduler {
	return &Scheduler{
		store:    store,
		fetcher:  f,
		svc:      ingest.NewService(store, log),
		notifier: notifier,
		log:      log,
		tick:     1 * time.Minute,
		inFlight: make(map[int64]struct{}),
	}
}

// SetTickInterval overrides the default 1-minute due-schedule poll.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	s.tick = d
}

// Run starts the polling loop, blocking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.checkDue(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkDue(ctx)
		}
	}
}

func (s *Scheduler) checkDue(ctx context.Context) {
	due, err := s.store.ListDueSchedules(ctx, time.Now().UTC())
	if err != nil {
		s.log.Error("list due schedules", "error", err)
		return
	}

	for i := range due {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.Execute(ctx, &due[i]); err != nil {
			s.log.Error("execute schedule", "schedule_id", due[i].ID, "error", err)
		}
	}
}

// Create validates a new schedule and computes its first next_run.
func (s *Scheduler) Create(ctx context.Context, sc *model.Schedule) error {
	if err := validate(sc); err != nil {
		return err
	}
	next := time.Now().UTC().Add(time.Duration(sc.IntervalMinutes) * time.Minute)
	sc.NextRun = &next
	return s.store.CreateSchedule(ctx, sc)
}

// Update validates and persists changes to a schedule. next_run is
// recomputed from the (possibly new) interval.
func (s *Scheduler) Update(ctx context.Context, sc *model.Schedule) error {
	if err := validate(sc); err != nil {
		return err
	}
	next := time.Now().UTC().Add(time.Duration(sc.IntervalMinutes) * time.Minute)
	sc.NextRun = &next
	return s.store.UpdateSchedule(ctx, sc)
}

// Get returns a schedule by ID.
func (s *Scheduler) Get(ctx context.Context, id int64) (*model.Schedule, error) {
	return s.store.GetSchedule(ctx, id)
}

// List returns all schedules.
func (s *Scheduler) List(ctx context.Context) ([]model.Schedule, error) {
	return s.store.ListSchedules(ctx)
}

// Delete removes a schedule and its run logs.
func (s *Scheduler) Delete(ctx context.Context, id int64) error {
	return s.store.DeleteSchedule(ctx, id)
}

// Logs returns the most recent run logs for a schedule.
func (s *Scheduler) Logs(ctx context.Context, id int64, limit int) ([]model.RunLog, error) {
	if _, err := s.store.GetSchedule(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListRunLogs(ctx, id, limit)
}

// RunNow forces an out-of-band execution of a schedule.
func (s *Scheduler) RunNow(ctx context.Context, id int64) (*model.RunLog, error) {
	sc, err := s.store.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, sc)
}

func validate(sc *model.Schedule) error {
	if strings.TrimSpace(sc.Name) == "" {
		return fmt.Errorf("name is required: %w", ErrInvalid)
	}
	if sc.IntervalMinutes < 1 {
		return fmt.Errorf("interval must be at least 1 minute: %w", ErrInvalid)
	}
	if len(sc.SourceURLs) == 0 {
		return fmt.Errorf("at least one source URL is required: %w", ErrInvalid)
	}
	if sc.MaxArticles <= 0 {
		sc.MaxArticles = defaultMaxArticles
	}
	return nil
}

type fetchResult struct {
	url        string
	candidates []model.Candidate
	err        error
}

// Execute runs one schedule: every source URL is fetched concurrently
// with its own bounded timeout, the gathered candidates are deduplicated
// against the recent-article window, and the survivors are enqueued for
// moderation or published directly when auto_publish is set.
//
// One source failing is recorded in the run log and does not abort the
// run. Whatever happens, exactly one run log is written and
// last_run/next_run are advanced so a broken schedule does not retry in a
// tight loop.
func (s *Scheduler) Execute(ctx context.Context, sc *model.Schedule) (*model.RunLog, error) {
	if !s.begin(sc.ID) {
		return nil, fmt.Errorf("schedule %d: %w", sc.ID, ErrRunInFlight)
	}
	defer s.end(sc.ID)

	start := time.Now()
	s.log.Info("schedule run started", "schedule_id", sc.ID, "name", sc.Name, "sources", len(sc.SourceURLs))

	results := make([]fetchResult, len(sc.SourceURLs))
	var wg sync.WaitGroup
	for i, url := range sc.SourceURLs {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			feed, err := s.fetcher.Fetch(ctx, url)
			if err != nil {
				results[i] = fetchResult{url: url, err: err}
				return
			}
			results[i] = fetchResult{url: url, candidates: fetcher.Candidates(feed, url, sc.MaxArticles)}
		}(i, url)
	}
	wg.Wait()

	var candidates []model.Candidate
	var fetchErrs error
	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			fetchErrs = multierr.Append(fetchErrs, fmt.Errorf("%s: %w", r.url, r.err))
			continue
		}
		candidates = append(candidates, r.candidates...)
	}

	unique := s.dedupe(ctx, candidates)
	imported, itemsFailed := s.process(ctx, sc, unique)
	failed += itemsFailed

	runLog := &model.RunLog{
		ScheduleID:       sc.ID,
		Status:           runStatus(len(sc.SourceURLs), imported, failed, ctx.Err()),
		ArticlesImported: imported,
		ArticlesFailed:   failed,
		DurationMs:       time.Since(start).Milliseconds(),
	}
	if fetchErrs != nil {
		runLog.ErrorMessage = fetchErrs.Error()
	}
	if ctx.Err() != nil && runLog.ErrorMessage == "" {
		runLog.ErrorMessage = ctx.Err().Error()
	}

	s.finish(sc, runLog)
	return runLog, nil
}

// dedupe loads the recent-article window and filters duplicate
// candidates. If the window cannot be fetched the candidates pass through
// unfiltered: duplicate detection is advisory and must not block
// ingestion.
func (s *Scheduler) dedupe(ctx context.Context, candidates []model.Candidate) []model.Candidate {
	if len(candidates) == 0 {
		return nil
	}
	since := time.Now().UTC().AddDate(0, 0, -dedup.WindowDays)
	window, err := s.store.ListRecentArticles(ctx, since, dedup.WindowLimit)
	if err != nil {
		s.log.Warn("duplicate window unavailable, ingesting unchecked", "error", err)
		return candidates
	}
	checked := dedup.Check(candidates, window)
	unique := dedup.Filter(checked)
	if dropped := len(checked) - len(unique); dropped > 0 {
		s.log.Info("duplicates filtered", "dropped", dropped, "kept", len(unique))
	}
	return unique
}

func (s *Scheduler) process(ctx context.Context, sc *model.Schedule, candidates []model.Candidate) (imported, failed int) {
	registry := s.registry(ctx)

	for i := range candidates {
		c := candidates[i]
		if err := ingest.Validate(c); err != nil {
			s.log.Warn("candidate skipped", "error", err)
			failed++
			continue
		}

		profile := registry.Detect(c.Link)
		item := ingest.BuildQueueItem(c, profile, model.ImportBatch)
		item.FeedName = sc.Name

		if sc.AutoPublish {
			if _, err := s.svc.Publish(ctx, item, sc.CreatedBy); err != nil {
				s.log.Error("auto-publish candidate", "schedule_id", sc.ID, "link", c.Link, "error", err)
				failed++
				continue
			}
		} else {
			if err := s.svc.Enqueue(ctx, item); err != nil {
				s.log.Error("enqueue candidate", "schedule_id", sc.ID, "link", c.Link, "error", err)
				failed++
				continue
			}
		}
		imported++
	}
	return imported, failed
}

// registry builds the source-profile lookup from the stored sources,
// falling back to the builtins alone when the store is unavailable.
func (s *Scheduler) registry(ctx context.Context) *sources.Registry {
	stored, err := s.store.ListSources(ctx, true)
	if err != nil {
		s.log.Warn("list sources", "error", err)
		stored = nil
	}
	registry, err := sources.New(stored)
	if err != nil {
		s.log.Error("build source registry", "error", err)
		registry, _ = sources.New(nil)
	}
	return registry
}

// finish writes the run log, advances the schedule's run stamps, and
// alerts the operator about non-success outcomes. All of this is
// best-effort: the run outcome is already decided.
func (s *Scheduler) finish(sc *model.Schedule, runLog *model.RunLog) {
	// A fresh context: the run's context may already be cancelled and the
	// log must still be written.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.store.CreateRunLog(ctx, runLog); err != nil {
		s.log.Error("write run log", "schedule_id", sc.ID, "error", err)
	}

	now := time.Now().UTC()
	next := now.Add(time.Duration(sc.IntervalMinutes) * time.Minute)
	if err := s.store.UpdateScheduleRuns(ctx, sc.ID, now, next); err != nil {
		s.log.Error("update schedule runs", "schedule_id", sc.ID, "error", err)
	}

	s.log.Info("schedule run finished", "schedule_id", sc.ID, "status", runLog.Status,
		"imported", runLog.ArticlesImported, "failed", runLog.ArticlesFailed, "duration_ms", runLog.DurationMs)

	if runLog.Status != model.RunSuccess {
		notify.Alert(s.notifier, s.log, sc, runLog)
	}
}

func runStatus(sourceCount, imported, failed int, ctxErr error) model.RunStatus {
	switch {
	case ctxErr != nil:
		return model.RunError
	case failed == 0:
		return model.RunSuccess
	case imported > 0:
		return model.RunPartial
	case failed >= sourceCount && imported == 0:
		return model.RunError
	default:
		return model.RunPartial
	}
}

func (s *Scheduler) begin(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, running := s.inFlight[id]; running {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *Scheduler) end(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
}
