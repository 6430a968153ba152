package ingest

import (
	"fmt"
	"time"

	"github.com/Kounain2234/AI-Recruitment-App/internal/domain"
)

// TaskStatus is the lifecycle state of one uploaded resume.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskError      TaskStatus = "error"
)

// Stage names the pipeline step a task failed in.
type Stage string

const (
	StageScan    Stage = "scan"
	StageStorage Stage = "storage"
	StageSubmit  Stage = "submit"
	StageMapping Stage = "mapping"
	StagePersist Stage = "persist"
)

// Progress checkpoints reported while a task moves through the pipeline.
const (
	ProgressClaimed   = 10
	ProgressStored    = 30
	ProgressSubmitted = 50
	ProgressAnswered  = 80
	ProgressDone      = 100
)

// Task is one resume in an upload session.
type Task struct {
	ID          string                  `json:"id"`
	FileName    string                  `json:"file_name"`
	ContentType string                  `json:"content_type"`
	Size        int64                   `json:"size"`
	Status      TaskStatus              `json:"status"`
	Progress    int                     `json:"progress"`
	ResumeURL   string                  `json:"resume_url,omitempty"`
	Result      *domain.CandidateRecord `json:"result,omitempty"`
	Error       string                  `json:"error,omitempty"`
	Stage       Stage                   `json:"stage,omitempty"`
	CandidateID string                  `json:"candidate_id,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`

	data []byte
}

// Data returns the raw file bytes.
func (t *Task) Data() []byte {
	return t.data
}

func (t *Task) snapshot() Task {
	cp := *t
	if t.Result != nil {
		res := *t.Result
		res.SkillsAnalysis = append([]domain.SkillMatch(nil), t.Result.SkillsAnalysis...)
		res.RobustPoints = append([]string(nil), t.Result.RobustPoints...)
		res.LackingPoints = append([]string(nil), t.Result.LackingPoints...)
		cp.Result = &res
	}
	return cp
}

// advance raises progress; it never moves backwards.
func (t *Task) advance(progress int) {
	if progress > t.Progress {
		t.Progress = progress
	}
}

// isValidTransition enforces the task state machine edges. A failed task only
// leaves the error state when its cached result is persisted again.
func isValidTransition(t *Task, to TaskStatus) bool {
	switch t.Status {
	case TaskPending:
		return to == TaskProcessing
	case TaskProcessing:
		return to == TaskCompleted || to == TaskError
	case TaskError:
		return to == TaskProcessing && t.Stage == StagePersist && t.Result != nil
	default:
		return false
	}
}

// StageError ties a task failure to the step that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
