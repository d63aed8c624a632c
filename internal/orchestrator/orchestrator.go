// Package orchestrator drives per-URL fetch, extract, normalize and save
// pipelines for explicit-list and topic-discovery jobs.
package orchestrator

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/pageharvest/harvestd/internal/extract"
	"github.com/pageharvest/harvestd/internal/harvest"
	"github.com/pageharvest/harvestd/internal/metrics"
	"github.com/pageharvest/harvestd/internal/queue"
)

// Config bounds job sizes and the worker pool.
type Config struct {
	// MaxListURLs caps how many URLs one uploaded list may schedule.
	MaxListURLs int
	// Workers sizes the list-mode worker pool.
	Workers int
	// MaxFilesPerJob is the secondary stop condition for topic jobs.
	MaxFilesPerJob int
	// MaxResults clamps the desired count of topic jobs.
	MaxResults int
}

// Orchestrator accepts jobs and runs the harvesting pipeline.
type Orchestrator struct {
	fetcher    harvest.Fetcher
	extractor  *extract.Extractor
	store      harvest.ArtifactStore
	discoverer harvest.Discoverer
	jobs       *JobStore
	idGen      harvest.IDGenerator
	clock      harvest.Clock
	tasks      *queue.Queue
	cfg        Config
	logger     *zap.Logger
}

// New constructs an Orchestrator.
func New(
	fetcher harvest.Fetcher,
	extractor *extract.Extractor,
	store harvest.ArtifactStore,
	discoverer harvest.Discoverer,
	jobs *JobStore,
	idGen harvest.IDGenerator,
	clock harvest.Clock,
	tasks *queue.Queue,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.MaxListURLs <= 0 {
		cfg.MaxListURLs = 50
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxFilesPerJob <= 0 {
		cfg.MaxFilesPerJob = 50
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 50
	}
	return &Orchestrator{
		fetcher:    fetcher,
		extractor:  extractor,
		store:      store,
		discoverer: discoverer,
		jobs:       jobs,
		idGen:      idGen,
		clock:      clock,
		tasks:      tasks,
		cfg:        cfg,
		logger:     logger,
	}
}

// Jobs exposes the job store for status queries.
func (o *Orchestrator) Jobs() *JobStore {
	return o.jobs
}

// Run consumes queued list-mode tasks with a pool of workers until the
// context finishes.
func (o *Orchestrator) Run(ctx context.Context) {
	for i := 0; i < o.cfg.Workers; i++ {
		go o.workerLoop(ctx)
	}
	<-ctx.Done()
}

func (o *Orchestrator) workerLoop(ctx context.Context) {
	for {
		task, err := o.tasks.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				return
			}
			o.logger.Error("task dequeue failed", zap.Error(err))
			continue
		}
		out := o.process(ctx, task)
		o.recordOutcome(task.JobID, out)
	}
}

// SplitURLList extracts non-blank lines from a newline-delimited upload.
func SplitURLList(text string) []string {
	var urls []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		urls = append(urls, line)
	}
	return urls
}

// HarvestList schedules pipelines for an explicit URL list and returns
// without waiting for them. At most MaxListURLs are scheduled; the
// returned flag reports whether lines were dropped so the caller can
// signal partial processing. Completion is pollable via the job store.
func (o *Orchestrator) HarvestList(ctx context.Context, urls []string, format harvest.OutputFormat) (harvest.Job, bool, error) {
	if len(urls) == 0 {
		return harvest.Job{}, false, &harvest.ValidationError{Msg: "no URLs to schedule"}
	}
	truncated := false
	if len(urls) > o.cfg.MaxListURLs {
		urls = urls[:o.cfg.MaxListURLs]
		truncated = true
	}

	id, err := o.idGen.NewID()
	if err != nil {
		return harvest.Job{}, false, err
	}

	job := harvest.Job{
		ID:        id,
		Mode:      harvest.ModeList,
		Format:    format,
		Folder:    id,
		Status:    harvest.JobStatusRunning,
		Counters:  harvest.JobCounters{Scheduled: len(urls)},
		Submitted: o.clock.Now(),
	}
	o.jobs.Create(job)
	metrics.JobAccepted(string(harvest.ModeList))

	// Feed the queue off the request goroutine so the response is not
	// held up by a full queue; workers own the tasks from here on.
	go func(urls []string) {
		feedCtx := context.WithoutCancel(ctx)
		for _, u := range urls {
			if err := o.tasks.Enqueue(feedCtx, queue.Task{
				JobID:  id,
				URL:    u,
				Folder: id,
				Format: format,
			}); err != nil {
				o.logger.Error("task enqueue failed",
					zap.String("job_id", id),
					zap.String("url", u),
					zap.Error(err),
				)
				o.recordOutcome(id, outcomeFailed)
			}
		}
	}(urls)

	return job, truncated, nil
}

// HarvestTopic materializes a session directory, discovers candidate URLs
// for the topic, and processes them sequentially. Challenged URLs are
// skipped; per-URL failures never abort the job. The call blocks until
// the job finishes, so partial success still answers the caller.
func (o *Orchestrator) HarvestTopic(ctx context.Context, topic string, desired int, format harvest.OutputFormat) (harvest.Job, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return harvest.Job{}, &harvest.ValidationError{Msg: "topic must not be empty"}
	}
	if desired <= 0 {
		desired = 10
	}
	if desired > o.cfg.MaxResults {
		desired = o.cfg.MaxResults
	}

	id, err := o.idGen.NewID()
	if err != nil {
		return harvest.Job{}, err
	}

	folder := id
	if slug := topicSlug(topic); slug != "" {
		folder = id + "_" + slug
	}
	if _, err := o.store.CreateSession(folder); err != nil {
		return harvest.Job{}, err
	}

	job := harvest.Job{
		ID:        id,
		Mode:      harvest.ModeTopic,
		Format:    format,
		Folder:    folder,
		Status:    harvest.JobStatusRunning,
		Submitted: o.clock.Now(),
	}
	o.jobs.Create(job)
	metrics.JobAccepted(string(harvest.ModeTopic))

	candidates, err := o.discoverer.Discover(ctx, topic, desired)
	if err != nil {
		o.logger.Warn("discovery ended early",
			zap.String("job_id", id),
			zap.Error(err),
		)
	}
	o.jobs.Update(id, func(j *harvest.Job) {
		j.Counters.Scheduled = len(candidates)
	})

	processed := make(map[string]struct{}, len(candidates))
	saved := 0
	for _, u := range candidates {
		if saved >= desired || o.store.FileCount(folder) >= o.cfg.MaxFilesPerJob {
			break
		}
		if _, done := processed[u]; done {
			continue
		}
		processed[u] = struct{}{}

		out := o.process(ctx, queue.Task{
			JobID:  id,
			URL:    u,
			Folder: folder,
			Format: format,
		})
		o.recordOutcome(id, out)
		if out == outcomeSucceeded {
			saved++
		}
	}

	o.jobs.Update(id, func(j *harvest.Job) {
		j.Status = harvest.JobStatusCompleted
	})
	final, _ := o.jobs.Get(id)
	return final, nil
}

type outcome int

const (
	outcomeSucceeded outcome = iota
	outcomeFailed
	outcomeSkipped
)

// process runs one URL through fetch, extract, normalize and save.
func (o *Orchestrator) process(ctx context.Context, t queue.Task) outcome {
	page, err := o.fetcher.Fetch(ctx, t.URL)
	switch {
	case errors.Is(err, harvest.ErrChallenged):
		o.logger.Info("skipping challenged url",
			zap.String("job_id", t.JobID),
			zap.String("url", t.URL),
		)
		metrics.PageOutcome("skipped")
		return outcomeSkipped
	case err != nil:
		o.logger.Error("fetch failed",
			zap.String("job_id", t.JobID),
			zap.String("url", t.URL),
			zap.Error(err),
		)
		metrics.PageOutcome("failed")
		return outcomeFailed
	}

	title, body, err := o.extractor.Extract(page.Body)
	if err != nil {
		o.logger.Error("extract failed",
			zap.String("job_id", t.JobID),
			zap.String("url", t.URL),
			zap.Error(err),
		)
		metrics.PageOutcome("failed")
		return outcomeFailed
	}

	artifact := harvest.Artifact{
		JobID:     t.JobID,
		SourceURL: t.URL,
		Title:     title,
		Text:      extract.Normalize(body),
		Folder:    t.Folder,
		Format:    t.Format,
	}
	if err := o.store.Save(ctx, artifact); err != nil {
		o.logger.Error("artifact save failed",
			zap.String("job_id", t.JobID),
			zap.String("url", t.URL),
			zap.Error(err),
		)
		metrics.PageOutcome("failed")
		return outcomeFailed
	}

	metrics.PageOutcome("succeeded")
	return outcomeSucceeded
}

// recordOutcome folds one pipeline result into the job counters. List
// jobs complete when every scheduled task has an outcome; topic jobs are
// completed explicitly because they may stop early.
func (o *Orchestrator) recordOutcome(jobID string, out outcome) {
	o.jobs.Update(jobID, func(j *harvest.Job) {
		switch out {
		case outcomeSucceeded:
			j.Counters.Succeeded++
		case outcomeFailed:
			j.Counters.Failed++
		case outcomeSkipped:
			j.Counters.Skipped++
		}
		done := j.Counters.Succeeded + j.Counters.Failed + j.Counters.Skipped
		if j.Mode == harvest.ModeList && done >= j.Counters.Scheduled {
			j.Status = harvest.JobStatusCompleted
		}
	})
}

// topicSlug sanitizes a topic into a directory-name suffix.
func topicSlug(topic string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(topic) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > 40 {
		slug = strings.Trim(slug[:40], "-")
	}
	return slug
}
