package ingest

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Kounain2234/AI-Recruitment-App/internal/domain"
)

var (
	// ErrTaskNotFound is returned for an unknown task id.
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskNotPending is returned when removing a task that already started.
	ErrTaskNotPending = errors.New("task is not pending")
	// ErrSessionNotFound is returned for an unknown session id.
	ErrSessionNotFound = errors.New("upload session not found")
)

// Summary is reported once every task claimed by a batch is terminal.
type Summary struct {
	JobID      string    `json:"job_id"`
	Total      int       `json:"total"`
	Completed  int       `json:"completed"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Session holds the ephemeral upload tasks of one user.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time

	mu      sync.RWMutex
	tasks   []*Task
	running bool
	summary *Summary
}

// SessionSnapshot is a point-in-time copy of a session.
type SessionSnapshot struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Tasks       []Task    `json:"tasks"`
	Running     bool      `json:"running"`
	LastSummary *Summary  `json:"last_summary,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func NewSession(userID string) *Session {
	return &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
}

// AddFile queues a resume as a pending task.
func (s *Session) AddFile(name, contentType string, data []byte) Task {
	now := time.Now().UTC()
	t := &Task{
		ID:          uuid.NewString(),
		FileName:    name,
		ContentType: contentType,
		Size:        int64(len(data)),
		Status:      TaskPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		data:        data,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, t)
	return t.snapshot()
}

// Remove discards a task that has not started yet.
func (s *Session) Remove(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.tasks {
		if t.ID != taskID {
			continue
		}
		if t.Status != TaskPending {
			return ErrTaskNotPending
		}
		s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
		return nil
	}
	return ErrTaskNotFound
}

// Task returns a copy of one task.
func (s *Session) Task(taskID string) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := s.find(taskID)
	if t == nil {
		return Task{}, ErrTaskNotFound
	}
	return t.snapshot(), nil
}

// Snapshot copies the session state for display.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := SessionSnapshot{
		ID:        s.ID,
		UserID:    s.UserID,
		Tasks:     make([]Task, 0, len(s.tasks)),
		Running:   s.running,
		CreatedAt: s.CreatedAt,
	}
	for _, t := range s.tasks {
		out.Tasks = append(out.Tasks, t.snapshot())
	}
	if s.summary != nil {
		sum := *s.summary
		out.LastSummary = &sum
	}
	return out
}

// Running reports whether a batch is in flight.
func (s *Session) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// beginBatch marks the session running and returns the pending task ids in
// list order.
func (s *Session) beginBatch() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil, ErrBatchRunning
	}
	var pending []string
	for _, t := range s.tasks {
		if t.Status == TaskPending {
			pending = append(pending, t.ID)
		}
	}
	if len(pending) == 0 {
		return nil, ErrNoFiles
	}
	s.running = true
	return pending, nil
}

func (s *Session) endBatch(summary *Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	if summary != nil {
		s.summary = summary
	}
}

// claim moves a pending task to processing. Tasks removed or already started
// are reported as not claimable.
func (s *Session) claim(taskID string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.find(taskID)
	if t == nil || t.Status != TaskPending {
		return Task{}, false
	}
	t.Status = TaskProcessing
	t.advance(ProgressClaimed)
	t.UpdatedAt = time.Now().UTC()
	cp := t.snapshot()
	return cp, true
}

// reopen moves a persist-stage failure back to processing so its cached
// result can be stored again.
func (s *Session) reopen(taskID string) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.find(taskID)
	if t == nil {
		return Task{}, ErrTaskNotFound
	}
	if !isValidTransition(t, TaskProcessing) {
		return Task{}, ErrNotRetryable
	}
	t.Status = TaskProcessing
	t.Error = ""
	t.UpdatedAt = time.Now().UTC()
	return t.snapshot(), nil
}

func (s *Session) setProgress(taskID string, progress int) {
	s.update(taskID, func(t *Task) {
		t.advance(progress)
	})
}

func (s *Session) setResumeURL(taskID, resumeURL string) {
	s.update(taskID, func(t *Task) {
		t.ResumeURL = resumeURL
	})
}

// cacheResult keeps the mapped record so persistence can be retried alone.
func (s *Session) cacheResult(taskID string, rec domain.CandidateRecord) {
	s.update(taskID, func(t *Task) {
		t.Result = &rec
	})
}

func (s *Session) complete(taskID, candidateID string) error {
	return s.transition(taskID, TaskCompleted, func(t *Task) {
		t.advance(ProgressDone)
		t.CandidateID = candidateID
		t.Error = ""
		t.Stage = ""
		if t.Result != nil {
			t.Result.ID = candidateID
		}
	})
}

func (s *Session) fail(taskID string, err error) error {
	return s.transition(taskID, TaskError, func(t *Task) {
		var stageErr *StageError
		if errors.As(err, &stageErr) {
			t.Stage = stageErr.Stage
			t.Error = stageErr.Err.Error()
		} else {
			t.Error = err.Error()
		}
	})
}

func (s *Session) transition(taskID string, to TaskStatus, fn func(t *Task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.find(taskID)
	if t == nil {
		return ErrTaskNotFound
	}
	if !isValidTransition(t, to) {
		return fmt.Errorf("invalid transition: %s -> %s", t.Status, to)
	}
	t.Status = to
	fn(t)
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Session) update(taskID string, fn func(t *Task)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.find(taskID); t != nil {
		fn(t)
		t.UpdatedAt = time.Now().UTC()
	}
}

func (s *Session) find(taskID string) *Task {
	for _, t := range s.tasks {
		if t.ID == taskID {
			return t
		}
	}
	return nil
}

// Registry keeps upload sessions in memory.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

func (r *Registry) Create(userID string) *Session {
	s := NewSession(userID)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	return s
}

// Get returns the session only when it belongs to userID.
func (r *Registry) Get(id, userID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok || s.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete drops a session unless a batch is still running on it.
func (r *Registry) Delete(id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.UserID != userID {
		return ErrSessionNotFound
	}
	if s.Running() {
		return ErrBatchRunning
	}
	delete(r.sessions, id)
	return nil
}

// List returns the caller's sessions, newest first.
func (r *Registry) List(userID string) []SessionSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SessionSnapshot, 0)
	for _, s := range r.sessions {
		if s.UserID == userID {
			out = append(out, s.Snapshot())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
