package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Kounain2234/AI-Recruitment-App/internal/domain"
	"github.com/Kounain2234/AI-Recruitment-App/internal/screening"
)

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	failOn  string
	calls   int
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}}
}

func (m *memStorage) Name() string { return "memory" }

func (m *memStorage) Upload(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failOn != "" && strings.HasSuffix(key, m.failOn) {
		return errors.New("bucket quota exceeded")
	}
	m.objects[key] = data
	return nil
}

func (m *memStorage) PublicURL(key string) string {
	return "https://files.example.com/" + key
}

func (m *memStorage) uploads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type fakeAnalyzer struct {
	mu      sync.Mutex
	subs    []screening.Submission
	payload func(sub screening.Submission) (map[string]any, error)
}

func (f *fakeAnalyzer) Analyze(_ context.Context, sub screening.Submission) (*screening.Result, error) {
	f.mu.Lock()
	f.subs = append(f.subs, sub)
	f.mu.Unlock()
	if f.payload == nil {
		return &screening.Result{Status: 200, Payload: map[string]any{"name": "Jane Doe", "matchScore": 80}}, nil
	}
	payload, err := f.payload(sub)
	if err != nil {
		return nil, err
	}
	return &screening.Result{Status: 200, Payload: payload}, nil
}

func (f *fakeAnalyzer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

type fakeCandidates struct {
	mu       sync.Mutex
	records  []domain.CandidateRecord
	failures int
}

func (f *fakeCandidates) InsertCandidate(_ context.Context, rec *domain.CandidateRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return "", errors.New("connection reset by peer")
	}
	if err := rec.Validate(); err != nil {
		return "", err
	}
	id := fmt.Sprintf("cand-%d", len(f.records)+1)
	stored := *rec
	stored.ID = id
	f.records = append(f.records, stored)
	return id, nil
}

func (f *fakeCandidates) all() []domain.CandidateRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.CandidateRecord(nil), f.records...)
}

type fakeJobs struct {
	calls int
}

func (f *fakeJobs) GetJob(_ context.Context, userID, jobID string) (*domain.JobPosting, error) {
	f.calls++
	if jobID != "job-1" {
		return nil, errors.New("no rows in result set")
	}
	return &domain.JobPosting{ID: jobID, UserID: userID, Title: "Backend Engineer", Status: domain.JobStatusActive}, nil
}
