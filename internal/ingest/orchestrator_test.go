package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kounain2234/AI-Recruitment-App/internal/dlp"
	"github.com/Kounain2234/AI-Recruitment-App/internal/domain"
	"github.com/Kounain2234/AI-Recruitment-App/internal/proxy"
	"github.com/Kounain2234/AI-Recruitment-App/internal/screening"
)

type harness struct {
	storage    *memStorage
	analyzer   *fakeAnalyzer
	candidates *fakeCandidates
	jobs       *fakeJobs
	orch       *Orchestrator
}

func newHarness(workers int, analyzer Analyzer, scanner dlp.Scanner) *harness {
	h := &harness{
		storage:    newMemStorage(),
		candidates: &fakeCandidates{},
		jobs:       &fakeJobs{},
	}
	if analyzer == nil {
		h.analyzer = &fakeAnalyzer{}
		analyzer = h.analyzer
	}
	pipeline := NewPipeline(Deps{
		Storage:     h.storage,
		Analyzer:    analyzer,
		Candidates:  h.candidates,
		Scanner:     scanner,
		StepTimeout: time.Second,
		Logger:      zerolog.Nop(),
	})
	pipeline.now = func() time.Time { return time.UnixMilli(1700000000000) }
	h.orch = NewOrchestrator(pipeline, h.jobs, workers, nil, zerolog.Nop())
	return h
}

func TestRunRoundTrip(t *testing.T) {
	h := newHarness(1, nil, nil)
	h.analyzer.payload = func(screening.Submission) (map[string]any, error) {
		return map[string]any{
			"name":               "Jane Doe",
			"email":              "jane@example.com",
			"matchScore":         91,
			"predictive_score":   70,
			"biasScore":          8,
			"skills":             []any{map[string]any{"name": "Go", "match": 90}},
			"robust":             []any{"Strong Go"},
			"lacking":            []any{"No React"},
			"growthPotential":    "medium",
			"totalExperience":    "6 years",
			"relevantExperience": "4 years",
		}, nil
	}
	s := NewSession("user-1")
	task := s.AddFile("jane.pdf", "application/pdf", []byte("%PDF"))

	summary, err := h.orch.Run(context.Background(), s, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 0, summary.Failed)

	got, err := s.Task(task.ID)
	require.NoError(t, err)
	assert.Equal(t, TaskCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, "cand-1", got.CandidateID)

	records := h.candidates.all()
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, "job-1", rec.JobID)
	assert.Equal(t, "user-1", rec.UserID)
	assert.Equal(t, "Jane Doe", rec.Name)
	assert.Equal(t, 91, rec.MatchScore)
	assert.Equal(t, 70, rec.PredictiveScore)
	assert.Equal(t, 8, rec.BiasScore)
	assert.Equal(t, []domain.SkillMatch{{Name: "Go", Match: 90}}, rec.SkillsAnalysis)
	assert.Equal(t, []string{"Strong Go"}, rec.RobustPoints)
	assert.Equal(t, []string{"No React"}, rec.LackingPoints)
	assert.Equal(t, domain.GrowthMedium, rec.GrowthPotential)
	assert.Equal(t, domain.CandidateStatusNew, rec.Status)
	assert.Equal(t, "https://files.example.com/user-1/1700000000000_jane.pdf", rec.ResumeURL)
	assert.Equal(t, rec.ResumeURL, got.ResumeURL)
	assert.Equal(t, rec.Name, got.Result.Name)

	sub := h.analyzer.subs[0]
	assert.Equal(t, "job-1", sub.JobID)
	assert.Equal(t, "Backend Engineer", sub.JobTitle)
	assert.Equal(t, "user-1", sub.UserID)
	assert.Equal(t, rec.ResumeURL, sub.ResumeURL)
	assert.Equal(t, []byte("%PDF"), sub.Data)
	assert.False(t, s.Running())
}

func TestRunIsolatesStorageFailure(t *testing.T) {
	for _, workers := range []int{1, 3} {
		h := newHarness(workers, nil, nil)
		h.storage.failOn = "_broken.pdf"
		s := NewSession("user-1")
		s.AddFile("a.pdf", "application/pdf", []byte("a"))
		broken := s.AddFile("broken.pdf", "application/pdf", []byte("b"))
		s.AddFile("c.pdf", "application/pdf", []byte("c"))

		summary, err := h.orch.Run(context.Background(), s, "job-1")
		require.NoError(t, err)
		assert.Equal(t, Summary{JobID: "job-1", Total: 3, Completed: 2, Failed: 1, StartedAt: summary.StartedAt, FinishedAt: summary.FinishedAt}, summary)

		for _, task := range s.Snapshot().Tasks {
			if task.ID == broken.ID {
				assert.Equal(t, TaskError, task.Status)
				assert.Equal(t, StageStorage, task.Stage)
				assert.Equal(t, "bucket quota exceeded", task.Error)
				assert.Nil(t, task.Result)
				continue
			}
			assert.Equal(t, TaskCompleted, task.Status, task.FileName)
		}
		assert.Equal(t, 2, h.analyzer.calls())
		assert.Len(t, h.candidates.all(), 2)
	}
}

func TestRunPreconditions(t *testing.T) {
	h := newHarness(1, nil, nil)

	empty := NewSession("user-1")
	_, err := h.orch.Run(context.Background(), empty, "job-1")
	assert.ErrorIs(t, err, ErrNoFiles)
	assert.True(t, IsValidation(err))

	withFile := NewSession("user-1")
	withFile.AddFile("a.pdf", "application/pdf", []byte("a"))
	_, err = h.orch.Run(context.Background(), withFile, "  ")
	assert.ErrorIs(t, err, ErrNoJobSelected)

	_, err = h.orch.Run(context.Background(), withFile, "job-404")
	assert.ErrorIs(t, err, ErrUnknownJob)
	assert.False(t, withFile.Running())
	assert.Equal(t, TaskPending, withFile.Snapshot().Tasks[0].Status)

	assert.Equal(t, 0, h.storage.uploads())
	assert.Equal(t, 0, h.analyzer.calls())
	assert.Empty(t, h.candidates.all())
}

func TestRunSkipsTasksRemovedWhilePending(t *testing.T) {
	release := make(chan struct{})
	first := true
	analyzer := &fakeAnalyzer{}
	analyzer.payload = func(sub screening.Submission) (map[string]any, error) {
		if first {
			first = false
			<-release
		}
		return map[string]any{"name": sub.FileName}, nil
	}
	h := newHarness(1, analyzer, nil)
	s := NewSession("user-1")
	s.AddFile("a.pdf", "application/pdf", []byte("a"))
	removed := s.AddFile("b.pdf", "application/pdf", []byte("b"))

	done, err := h.orch.Start(context.Background(), s, "job-1")
	require.NoError(t, err)

	_, err = h.orch.Start(context.Background(), s, "job-1")
	assert.ErrorIs(t, err, ErrBatchRunning)

	require.Eventually(t, func() bool { return analyzer.calls() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Remove(removed.ID))
	close(release)

	summary := <-done
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Completed)
	assert.Len(t, s.Snapshot().Tasks, 1)
	assert.Equal(t, 1, analyzer.calls())
}

func TestRemoveRejectsStartedTask(t *testing.T) {
	s := NewSession("user-1")
	task := s.AddFile("a.pdf", "application/pdf", []byte("a"))
	_, ok := s.claim(task.ID)
	require.True(t, ok)

	assert.ErrorIs(t, s.Remove(task.ID), ErrTaskNotPending)
	assert.ErrorIs(t, s.Remove("missing"), ErrTaskNotFound)
}

func TestRetryPersist(t *testing.T) {
	h := newHarness(1, nil, nil)
	h.candidates.failures = 1
	s := NewSession("user-1")
	task := s.AddFile("jane.pdf", "application/pdf", []byte("%PDF"))

	summary, err := h.orch.Run(context.Background(), s, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	failed, _ := s.Task(task.ID)
	assert.Equal(t, TaskError, failed.Status)
	assert.Equal(t, StagePersist, failed.Stage)
	assert.Equal(t, "connection reset by peer", failed.Error)
	require.NotNil(t, failed.Result)
	assert.Equal(t, "Jane Doe", failed.Result.Name)

	retried, err := h.orch.RetryPersist(context.Background(), s, task.ID)
	require.NoError(t, err)
	assert.Equal(t, TaskCompleted, retried.Status)
	assert.Equal(t, 100, retried.Progress)
	assert.Equal(t, "cand-1", retried.CandidateID)
	assert.Equal(t, 1, h.analyzer.calls(), "analysis is not repeated")

	_, err = h.orch.RetryPersist(context.Background(), s, task.ID)
	assert.ErrorIs(t, err, ErrNotRetryable)
}

func TestRetryPersistRejectsOtherStages(t *testing.T) {
	h := newHarness(1, nil, nil)
	h.storage.failOn = ".pdf"
	s := NewSession("user-1")
	task := s.AddFile("jane.pdf", "application/pdf", []byte("%PDF"))
	_, err := h.orch.Run(context.Background(), s, "job-1")
	require.NoError(t, err)

	_, err = h.orch.RetryPersist(context.Background(), s, task.ID)
	assert.ErrorIs(t, err, ErrNotRetryable)
}

func TestPolicyRejectionIsIsolated(t *testing.T) {
	h := newHarness(1, nil, dlp.NewRuleScanner())
	s := NewSession("user-1")
	bad := s.AddFile("payload.exe", "application/octet-stream", []byte("MZ"))
	s.AddFile("ok.pdf", "application/pdf", []byte("%PDF"))

	summary, err := h.orch.Run(context.Background(), s, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 1, summary.Failed)

	got, _ := s.Task(bad.ID)
	assert.Equal(t, StageScan, got.Stage)
	assert.Contains(t, got.Error, "blocked_extension")
	assert.Equal(t, 1, h.storage.uploads())
}

func TestAnalyzerErrorsSurfaceOnTask(t *testing.T) {
	analyzer := &fakeAnalyzer{payload: func(screening.Submission) (map[string]any, error) {
		return nil, &screening.StatusError{Code: http.StatusNotFound, Message: "No response from webhook"}
	}}
	h := newHarness(1, analyzer, nil)
	s := NewSession("user-1")
	task := s.AddFile("jane.pdf", "application/pdf", []byte("%PDF"))

	_, err := h.orch.Run(context.Background(), s, "job-1")
	require.NoError(t, err)

	got, _ := s.Task(task.ID)
	assert.Equal(t, TaskError, got.Status)
	assert.Equal(t, StageSubmit, got.Stage)
	assert.Equal(t, "screening failed with status 404: No response from webhook", got.Error)
	assert.GreaterOrEqual(t, got.Progress, ProgressSubmitted)
}

func TestAcknowledgementWithoutAnalysisFailsMapping(t *testing.T) {
	analyzer := &fakeAnalyzer{payload: func(screening.Submission) (map[string]any, error) {
		return map[string]any{"message": "Workflow was started"}, nil
	}}
	h := newHarness(1, analyzer, nil)
	s := NewSession("user-1")
	task := s.AddFile("jane_doe.pdf", "application/pdf", []byte("%PDF"))

	summary, err := h.orch.Run(context.Background(), s, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	got, _ := s.Task(task.ID)
	assert.Equal(t, TaskError, got.Status)
	assert.Equal(t, StageMapping, got.Stage)
	assert.Contains(t, got.Error, "no analysis fields")
	assert.Nil(t, got.Result)
	assert.Empty(t, h.candidates.all())
}

func TestPanicInCollaboratorFailsOnlyThatTask(t *testing.T) {
	analyzer := &fakeAnalyzer{payload: func(sub screening.Submission) (map[string]any, error) {
		if sub.FileName == "boom.pdf" {
			panic("nil map")
		}
		return map[string]any{"name": "Ok"}, nil
	}}
	h := newHarness(1, analyzer, nil)
	s := NewSession("user-1")
	s.AddFile("boom.pdf", "application/pdf", []byte("x"))
	s.AddFile("fine.pdf", "application/pdf", []byte("y"))

	summary, err := h.orch.Run(context.Background(), s, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 1, summary.Failed)
	assert.Contains(t, s.Snapshot().Tasks[0].Error, "internal error")
}

func TestFallbackThroughProxyEndToEnd(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		if r.URL.Path == "/webhook-test/candidate-screening" {
			_, _ = w.Write([]byte(`{"name":"Jane Doe","match_score":77}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer hook.Close()

	proxyHandler := proxy.NewHandler(proxy.Options{PrimaryURL: hook.URL + "/webhook/candidate-screening", Logger: zerolog.Nop()})
	proxySrv := httptest.NewServer(proxy.NewRouter(proxyHandler))
	defer proxySrv.Close()

	client := screening.NewClient(proxySrv.URL+"/resume-screening", 5*time.Second)
	h := newHarness(1, client, nil)
	s := NewSession("user-1")
	task := s.AddFile("resume.pdf", "application/pdf", []byte("%PDF"))

	summary, err := h.orch.Run(context.Background(), s, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Completed)

	got, _ := s.Task(task.ID)
	assert.Equal(t, TaskCompleted, got.Status)
	records := h.candidates.all()
	require.Len(t, records, 1)
	assert.Equal(t, "Jane Doe", records[0].Name)
	assert.Equal(t, 77, records[0].MatchScore)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/webhook/candidate-screening", "/webhook-test/candidate-screening"}, paths)
}

func TestStoragePath(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	assert.Equal(t, "u1/1700000000123_my cv.pdf", StoragePath("u1", at, "my cv.pdf"))
	assert.False(t, strings.Contains(StoragePath("u1", at, "../x/y.pdf"), "/x/"))
}

func TestKPISnapshot(t *testing.T) {
	k := &KPI{}
	for i := 1; i <= 20; i++ {
		k.Record(TaskCompleted, time.Duration(i)*time.Second)
	}
	k.Record(TaskError, time.Second)

	snap := k.Snapshot()
	assert.Equal(t, 20, snap.Completed)
	assert.Equal(t, 1, snap.Failures)
	assert.InDelta(t, 20.0/21.0, snap.SuccessRate, 1e-9)
	assert.Equal(t, float64(19000), snap.P95LatencyMs)
	assert.Equal(t, float64(11000), snap.MedianLatencyMs)
}

func TestKPIKeepsBoundedLatencyWindow(t *testing.T) {
	k := &KPI{}
	for i := 0; i < kpiWindow; i++ {
		k.Record(TaskCompleted, time.Hour)
	}
	for i := 0; i < kpiWindow; i++ {
		k.Record(TaskCompleted, time.Millisecond)
	}

	snap := k.Snapshot()
	assert.Len(t, k.latencies, kpiWindow)
	assert.Equal(t, 2*kpiWindow, snap.Completed)
	assert.Equal(t, float64(1), snap.P95LatencyMs)
}

func TestTaskTransitions(t *testing.T) {
	task := &Task{Status: TaskPending}
	assert.True(t, isValidTransition(task, TaskProcessing))
	assert.False(t, isValidTransition(task, TaskCompleted))

	task.Status = TaskCompleted
	assert.False(t, isValidTransition(task, TaskProcessing))

	task.Status = TaskError
	task.Stage = StagePersist
	assert.False(t, isValidTransition(task, TaskProcessing), "no cached result")
	task.Result = &domain.CandidateRecord{}
	assert.True(t, isValidTransition(task, TaskProcessing))

	err := &StageError{Stage: StageStorage, Err: errors.New("denied")}
	assert.Equal(t, "storage: denied", err.Error())
	assert.True(t, errors.Is(err, err.Err))
}
