package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Kounain2234/AI-Recruitment-App/internal/domain"
	"github.com/Kounain2234/AI-Recruitment-App/internal/metrics"
)

var (
	// ErrNoJobSelected is returned when a batch is started without a job.
	ErrNoJobSelected = errors.New("select a job before analyzing resumes")
	// ErrNoFiles is returned when a batch has no pending resumes.
	ErrNoFiles = errors.New("add at least one resume before analyzing")
	// ErrUnknownJob is returned when the selected job cannot be found.
	ErrUnknownJob = errors.New("selected job not found")
	// ErrBatchRunning is returned when a session already has a batch in flight.
	ErrBatchRunning = errors.New("a batch is already running for this session")
	// ErrNotRetryable is returned when persistence retry is requested for a task
	// that did not fail at persistence.
	ErrNotRetryable = errors.New("task has no cached result to persist")
)

// IsValidation reports whether err is a precondition failure of a batch.
func IsValidation(err error) bool {
	return errors.Is(err, ErrNoJobSelected) || errors.Is(err, ErrNoFiles) || errors.Is(err, ErrUnknownJob)
}

// Orchestrator runs upload batches on a bounded worker pool.
type Orchestrator struct {
	pipeline *Pipeline
	jobs     JobFinder
	workers  int
	kpi      *KPI
	logger   zerolog.Logger
}

func NewOrchestrator(pipeline *Pipeline, jobs JobFinder, workers int, kpi *KPI, logger zerolog.Logger) *Orchestrator {
	if workers < 1 {
		workers = 1
	}
	if kpi == nil {
		kpi = &KPI{}
	}
	return &Orchestrator{
		pipeline: pipeline,
		jobs:     jobs,
		workers:  workers,
		kpi:      kpi,
		logger:   logger,
	}
}

// KPI exposes the collected batch statistics.
func (o *Orchestrator) KPI() *KPI {
	return o.kpi
}

type batch struct {
	session *Session
	job     *domain.JobPosting
	pending []string
	started time.Time
}

// Run validates the batch and processes it to completion.
func (o *Orchestrator) Run(ctx context.Context, s *Session, jobID string) (Summary, error) {
	b, err := o.begin(ctx, s, jobID)
	if err != nil {
		return Summary{}, err
	}
	return o.execute(ctx, b), nil
}

// Start validates the batch synchronously and processes it in the background.
// The returned channel yields the summary once every claimed task is terminal.
func (o *Orchestrator) Start(ctx context.Context, s *Session, jobID string) (<-chan Summary, error) {
	b, err := o.begin(ctx, s, jobID)
	if err != nil {
		return nil, err
	}
	done := make(chan Summary, 1)
	go func() {
		done <- o.execute(ctx, b)
		close(done)
	}()
	return done, nil
}

// RetryPersist stores the cached result of a task that failed at persistence.
func (o *Orchestrator) RetryPersist(ctx context.Context, s *Session, taskID string) (Task, error) {
	start := time.Now()
	err := o.pipeline.Retry(ctx, s, taskID)
	if errors.Is(err, ErrTaskNotFound) || errors.Is(err, ErrNotRetryable) {
		return Task{}, err
	}
	task, terr := s.Task(taskID)
	if terr != nil {
		return Task{}, terr
	}
	o.record(task, time.Since(start))
	return task, err
}

func (o *Orchestrator) begin(ctx context.Context, s *Session, jobID string) (*batch, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, ErrNoJobSelected
	}
	pending, err := s.beginBatch()
	if err != nil {
		return nil, err
	}
	job, err := o.jobs.GetJob(ctx, s.UserID, jobID)
	if err != nil || job == nil {
		s.endBatch(nil)
		if err == nil {
			err = errors.New("no job returned")
		}
		return nil, fmt.Errorf("%w: %v", ErrUnknownJob, err)
	}
	return &batch{session: s, job: job, pending: pending, started: time.Now().UTC()}, nil
}

func (o *Orchestrator) execute(ctx context.Context, b *batch) Summary {
	logger := o.logger.With().Str("session_id", b.session.ID).Str("job_id", b.job.ID).Logger()
	logger.Info().Int("files", len(b.pending)).Int("workers", o.workers).Msg("batch started")

	queue := make(chan string, len(b.pending))
	for _, id := range b.pending {
		queue <- id
	}
	close(queue)

	var (
		mu      sync.Mutex
		summary = Summary{JobID: b.job.ID, StartedAt: b.started}
		wg      sync.WaitGroup
	)
	workers := o.workers
	if workers > len(b.pending) {
		workers = len(b.pending)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for taskID := range queue {
				task, ok := o.runTask(ctx, b, taskID, workerID, logger)
				if !ok {
					continue
				}
				mu.Lock()
				summary.Total++
				if task.Status == TaskCompleted {
					summary.Completed++
				} else {
					summary.Failed++
				}
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	summary.FinishedAt = time.Now().UTC()
	b.session.endBatch(&summary)
	logger.Info().
		Int("total", summary.Total).
		Int("completed", summary.Completed).
		Int("failed", summary.Failed).
		Msg("batch finished")
	return summary
}

// runTask claims and processes one task. Tasks removed before a worker
// reaches them are skipped.
func (o *Orchestrator) runTask(ctx context.Context, b *batch, taskID string, workerID int, logger zerolog.Logger) (Task, bool) {
	task, ok := b.session.claim(taskID)
	if !ok {
		logger.Info().Str("task_id", taskID).Msg("task no longer pending, skipping")
		return Task{}, false
	}
	logger.Debug().Str("task_id", taskID).Int("worker", workerID).Msg("worker picked task")

	start := time.Now()
	func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().Str("task_id", taskID).Interface("panic", r).Msg("task panicked")
				_ = b.session.fail(taskID, fmt.Errorf("internal error: %v", r))
			}
		}()
		_ = o.pipeline.Process(ctx, b.session, task, b.job)
	}()

	final, err := b.session.Task(taskID)
	if err != nil {
		return Task{}, false
	}
	o.record(final, time.Since(start))
	return final, true
}

func (o *Orchestrator) record(task Task, elapsed time.Duration) {
	o.kpi.Record(task.Status, elapsed)
	metrics.UploadTasksCount.WithLabelValues(string(task.Status), string(task.Stage)).Inc()
	metrics.UploadTasksDuration.WithLabelValues(string(task.Status)).Observe(elapsed.Seconds())
}
