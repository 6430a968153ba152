// Package api serves the recruiting dashboard: upload sessions, batch
// analysis, jobs and candidates.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/Kounain2234/AI-Recruitment-App/internal/auth"
	"github.com/Kounain2234/AI-Recruitment-App/internal/domain"
	"github.com/Kounain2234/AI-Recruitment-App/internal/httpx"
	"github.com/Kounain2234/AI-Recruitment-App/internal/ingest"
	"github.com/Kounain2234/AI-Recruitment-App/internal/metrics"
	"github.com/Kounain2234/AI-Recruitment-App/internal/store"
)

// JobStore manages job postings.
type JobStore interface {
	CreateJob(ctx context.Context, job *domain.JobPosting) error
	GetJob(ctx context.Context, userID, jobID string) (*domain.JobPosting, error)
	ListJobs(ctx context.Context, userID string, status domain.JobStatus) ([]domain.JobPosting, error)
	DeleteJob(ctx context.Context, userID, jobID string) error
}

// CandidateStore reads candidates, updates their review status and removes them.
type CandidateStore interface {
	ListCandidates(ctx context.Context, f store.CandidateFilter) ([]domain.CandidateRecord, error)
	GetCandidate(ctx context.Context, userID, id string) (*domain.CandidateRecord, error)
	UpdateCandidateStatus(ctx context.Context, userID, id string, status domain.CandidateStatus) error
	DeleteCandidate(ctx context.Context, userID, id string) error
	CountCandidates(ctx context.Context, userID string) (store.CandidateCounts, error)
}

// Options wires a Server.
type Options struct {
	Sessions       *ingest.Registry
	Orchestrator   *ingest.Orchestrator
	Jobs           JobStore
	Candidates     CandidateStore
	Auth           auth.Config
	FilesDir       string
	MaxUploadBytes int64
	// BaseContext bounds background batches; it outlives individual requests.
	BaseContext context.Context
	Logger      zerolog.Logger
}

type Server struct {
	sessions       *ingest.Registry
	orch           *ingest.Orchestrator
	jobs           JobStore
	candidates     CandidateStore
	auth           auth.Config
	filesDir       string
	maxUploadBytes int64
	baseCtx        context.Context
	logger         zerolog.Logger
}

func NewServer(opts Options) *Server {
	baseCtx := opts.BaseContext
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 50 << 20
	}
	sessions := opts.Sessions
	if sessions == nil {
		sessions = ingest.NewRegistry()
	}
	return &Server{
		sessions:       sessions,
		orch:           opts.Orchestrator,
		jobs:           opts.Jobs,
		candidates:     opts.Candidates,
		auth:           opts.Auth,
		filesDir:       opts.FilesDir,
		maxUploadBytes: maxUpload,
		baseCtx:        baseCtx,
		logger:         opts.Logger,
	}
}

// Router builds the dashboard HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(httpx.CORS())
	r.MethodNotAllowed(httpx.MethodNotAllowed)
	r.NotFound(httpx.NotFound)

	r.Get("/healthz", healthz)
	r.Handle("/metrics", metrics.Handler())
	if s.filesDir != "" {
		r.Handle("/files/*", http.StripPrefix("/files/", http.FileServer(http.Dir(s.filesDir))))
	}

	r.Group(func(api chi.Router) {
		api.Use(auth.Middleware(s.auth))

		api.Get("/sessions", s.listSessions)
		api.Post("/sessions", s.createSession)
		api.Get("/sessions/{id}", s.getSession)
		api.Delete("/sessions/{id}", s.deleteSession)
		api.Post("/sessions/{id}/files", s.addFiles)
		api.Delete("/sessions/{id}/files/{taskID}", s.removeFile)
		api.Post("/sessions/{id}/files/{taskID}/retry-persist", s.retryPersist)
		api.Post("/sessions/{id}/analyze", s.analyze)

		api.Post("/jobs", s.createJob)
		api.Get("/jobs", s.listJobs)
		api.Get("/jobs/{id}", s.getJob)
		api.Delete("/jobs/{id}", s.deleteJob)

		api.Get("/candidates", s.listCandidates)
		api.Get("/candidates/{id}", s.getCandidate)
		api.Patch("/candidates/{id}/status", s.updateCandidateStatus)
		api.Delete("/candidates/{id}", s.deleteCandidate)

		api.Get("/reports/kpi", s.kpi)
		api.Get("/reports/candidates", s.candidateCounts)
	})
	return r
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) kpi(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, s.orch.KPI().Snapshot())
}

// requestLogger logs one line per request through zerolog.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("elapsed", time.Since(start)).
				Msg("http request")
		})
	}
}
