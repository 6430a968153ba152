package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Kounain2234/AI-Recruitment-App/internal/auth"
	"github.com/Kounain2234/AI-Recruitment-App/internal/domain"
	"github.com/Kounain2234/AI-Recruitment-App/internal/httpx"
	"github.com/Kounain2234/AI-Recruitment-App/internal/store"
)

type jobRequest struct {
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Location         string   `json:"location"`
	WorkType         []string `json:"work_type"`
	YearsExperience  string   `json:"years_experience"`
	MustHaveSkills   []string `json:"must_have_skills"`
	GoodToHaveSkills []string `json:"good_to_have_skills"`
	Status           string   `json:"status"`
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	job := &domain.JobPosting{
		UserID:           auth.UserID(r.Context()),
		Title:            req.Title,
		Description:      req.Description,
		Location:         req.Location,
		WorkType:         req.WorkType,
		YearsExperience:  req.YearsExperience,
		MustHaveSkills:   req.MustHaveSkills,
		GoodToHaveSkills: req.GoodToHaveSkills,
		Status:           domain.JobStatus(req.Status),
	}
	if job.Status == "" {
		job.Status = domain.JobStatusActive
	}
	if err := job.Validate(); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.jobs.CreateJob(r.Context(), job); err != nil {
		s.logger.Error().Err(err).Msg("failed to create job")
		httpx.WriteError(w, http.StatusInternalServerError, "failed to create job")
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, job)
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	status := domain.JobStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		httpx.WriteError(w, http.StatusBadRequest, "unknown job status")
		return
	}
	jobs, err := s.jobs.ListJobs(r.Context(), auth.UserID(r.Context()), status)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list jobs")
		httpx.WriteError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.GetJob(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, job)
}

func (s *Server) deleteJob(w http.ResponseWriter, r *http.Request) {
	err := s.jobs.DeleteJob(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to delete job")
		httpx.WriteError(w, http.StatusInternalServerError, "failed to delete job")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listCandidates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.CandidateFilter{
		UserID: auth.UserID(r.Context()),
		JobID:  q.Get("job_id"),
		Status: domain.CandidateStatus(q.Get("status")),
		Query:  q.Get("q"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		httpx.WriteError(w, http.StatusBadRequest, "unknown candidate status")
		return
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			httpx.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}
	candidates, err := s.candidates.ListCandidates(r.Context(), filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list candidates")
		httpx.WriteError(w, http.StatusInternalServerError, "failed to list candidates")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"candidates": candidates})
}

func (s *Server) getCandidate(w http.ResponseWriter, r *http.Request) {
	rec, err := s.candidates.GetCandidate(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "candidate not found")
		return
	}
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load candidate")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rec)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) updateCandidateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	status := domain.CandidateStatus(req.Status)
	if !status.Valid() {
		httpx.WriteError(w, http.StatusBadRequest, "unknown candidate status")
		return
	}
	err := s.candidates.UpdateCandidateStatus(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), status)
	if errors.Is(err, store.ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "candidate not found")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to update candidate status")
		httpx.WriteError(w, http.StatusInternalServerError, "failed to update candidate")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"id": chi.URLParam(r, "id"), "status": string(status)})
}

func (s *Server) deleteCandidate(w http.ResponseWriter, r *http.Request) {
	err := s.candidates.DeleteCandidate(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "candidate not found")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to delete candidate")
		httpx.WriteError(w, http.StatusInternalServerError, "failed to delete candidate")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) candidateCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.candidates.CountCandidates(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to count candidates")
		httpx.WriteError(w, http.StatusInternalServerError, "failed to count candidates")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, counts)
}
