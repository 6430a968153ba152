package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Kounain2234/AI-Recruitment-App/internal/analysis"
	"github.com/Kounain2234/AI-Recruitment-App/internal/dlp"
	"github.com/Kounain2234/AI-Recruitment-App/internal/domain"
	"github.com/Kounain2234/AI-Recruitment-App/internal/objectstore"
	"github.com/Kounain2234/AI-Recruitment-App/internal/screening"
)

// CandidateStore persists mapped candidate records.
type CandidateStore interface {
	InsertCandidate(ctx context.Context, rec *domain.CandidateRecord) (string, error)
}

// JobFinder looks up the job a batch screens against.
type JobFinder interface {
	GetJob(ctx context.Context, userID, jobID string) (*domain.JobPosting, error)
}

// Analyzer submits a resume to the screening workflow.
type Analyzer interface {
	Analyze(ctx context.Context, sub screening.Submission) (*screening.Result, error)
}

// Deps are the collaborators of a Pipeline. Scanner may be nil.
type Deps struct {
	Storage     objectstore.Store
	Analyzer    Analyzer
	Candidates  CandidateStore
	Scanner     dlp.Scanner
	StepTimeout time.Duration
	Logger      zerolog.Logger
}

// Pipeline runs one claimed task from storage upload to persistence.
type Pipeline struct {
	storage     objectstore.Store
	analyzer    Analyzer
	candidates  CandidateStore
	scanner     dlp.Scanner
	stepTimeout time.Duration
	now         func() time.Time
	logger      zerolog.Logger
}

func NewPipeline(deps Deps) *Pipeline {
	timeout := deps.StepTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Pipeline{
		storage:     deps.Storage,
		analyzer:    deps.Analyzer,
		candidates:  deps.Candidates,
		scanner:     deps.Scanner,
		stepTimeout: timeout,
		now:         time.Now,
		logger:      deps.Logger,
	}
}

// StoragePath is where a user's resume lands in object storage.
func StoragePath(userID string, at time.Time, fileName string) string {
	name := strings.NewReplacer("/", "_", "\\", "_").Replace(fileName)
	return fmt.Sprintf("%s/%d_%s", userID, at.UnixMilli(), name)
}

// Process drives task through every step and records its terminal state on s.
// The returned error is the task failure, already reflected in the session.
func (p *Pipeline) Process(ctx context.Context, s *Session, task Task, job *domain.JobPosting) error {
	logger := p.logger.With().Str("task_id", task.ID).Str("job_id", job.ID).Str("file", task.FileName).Logger()

	rec, err := p.analyze(ctx, s, task, job, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("resume analysis failed")
		return p.recordFailure(s, task.ID, err)
	}
	s.cacheResult(task.ID, rec)

	return p.persist(ctx, s, task.ID, rec, logger)
}

// Retry stores the cached result of a task that failed at persistence.
func (p *Pipeline) Retry(ctx context.Context, s *Session, taskID string) error {
	task, err := s.reopen(taskID)
	if err != nil {
		return err
	}
	logger := p.logger.With().Str("task_id", task.ID).Str("file", task.FileName).Logger()
	logger.Info().Msg("retrying candidate persistence")
	return p.persist(ctx, s, task.ID, *task.Result, logger)
}

func (p *Pipeline) analyze(ctx context.Context, s *Session, task Task, job *domain.JobPosting, logger zerolog.Logger) (domain.CandidateRecord, error) {
	if err := p.scan(ctx, task, logger); err != nil {
		return domain.CandidateRecord{}, &StageError{Stage: StageScan, Err: err}
	}

	path := StoragePath(s.UserID, p.now(), task.FileName)
	if err := p.upload(ctx, path, task); err != nil {
		return domain.CandidateRecord{}, &StageError{Stage: StageStorage, Err: err}
	}
	resumeURL := p.storage.PublicURL(path)
	s.setResumeURL(task.ID, resumeURL)
	s.setProgress(task.ID, ProgressStored)
	logger.Debug().Str("path", path).Msg("resume stored")

	s.setProgress(task.ID, ProgressSubmitted)
	res, err := p.analyzer.Analyze(ctx, screening.Submission{
		FileName:    task.FileName,
		ContentType: task.ContentType,
		Data:        task.data,
		JobID:       job.ID,
		JobTitle:    job.Title,
		UserID:      s.UserID,
		ResumeURL:   resumeURL,
	})
	if err != nil {
		return domain.CandidateRecord{}, &StageError{Stage: StageSubmit, Err: err}
	}
	s.setProgress(task.ID, ProgressAnswered)
	if res == nil || res.Payload == nil {
		return domain.CandidateRecord{}, &StageError{Stage: StageMapping, Err: analysis.ErrMalformedPayload}
	}
	if err := analysis.CheckAnalysis(res.Payload); err != nil {
		return domain.CandidateRecord{}, &StageError{Stage: StageMapping, Err: err}
	}

	rec := analysis.Map(res.Payload, task.FileName)
	rec.JobID = job.ID
	rec.UserID = s.UserID
	rec.ResumeURL = resumeURL
	return rec, nil
}

func (p *Pipeline) scan(ctx context.Context, task Task, logger zerolog.Logger) error {
	if p.scanner == nil {
		return nil
	}
	err := p.scanner.ScanFile(ctx, dlp.File{Name: task.FileName, Size: task.Size, Data: task.data})
	if err == nil {
		return nil
	}
	if !p.scanner.Enforced() {
		logger.Warn().Err(err).Msg("upload policy violation (monitor mode)")
		return nil
	}
	return err
}

func (p *Pipeline) upload(ctx context.Context, path string, task Task) error {
	stepCtx, cancel := context.WithTimeout(ctx, p.stepTimeout)
	defer cancel()
	return p.storage.Upload(stepCtx, path, task.data, task.ContentType)
}

func (p *Pipeline) persist(ctx context.Context, s *Session, taskID string, rec domain.CandidateRecord, logger zerolog.Logger) error {
	stepCtx, cancel := context.WithTimeout(ctx, p.stepTimeout)
	defer cancel()

	id, err := p.candidates.InsertCandidate(stepCtx, &rec)
	if err != nil {
		logger.Error().Err(err).Msg("failed to persist candidate")
		return p.recordFailure(s, taskID, &StageError{Stage: StagePersist, Err: err})
	}
	if err := s.complete(taskID, id); err != nil {
		return err
	}
	logger.Info().Str("candidate_id", id).Int("match_score", rec.MatchScore).Msg("candidate stored")
	return nil
}

func (p *Pipeline) recordFailure(s *Session, taskID string, err error) error {
	if ferr := s.fail(taskID, err); ferr != nil {
		return errors.Join(err, ferr)
	}
	return err
}
