package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Kounain2234/AI-Recruitment-App/internal/auth"
	"github.com/Kounain2234/AI-Recruitment-App/internal/httpx"
	"github.com/Kounain2234/AI-Recruitment-App/internal/ingest"
)

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*ingest.Session, bool) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"), auth.UserID(r.Context()))
	if err != nil {
		httpx.WriteError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return sess, true
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"sessions": s.sessions.List(auth.UserID(r.Context()))})
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create(auth.UserID(r.Context()))
	httpx.WriteJSON(w, http.StatusCreated, sess.Snapshot())
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	err := s.sessions.Delete(chi.URLParam(r, "id"), auth.UserID(r.Context()))
	switch {
	case errors.Is(err, ingest.ErrSessionNotFound):
		httpx.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ingest.ErrBatchRunning):
		httpx.WriteError(w, http.StatusConflict, err.Error())
	case err != nil:
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// addFiles accepts one or more resumes in the repeated "files" field.
func (s *Server) addFiles(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := append(r.MultipartForm.File["files"], r.MultipartForm.File["file"]...)
	if len(headers) == 0 {
		httpx.WriteError(w, http.StatusBadRequest, "files field is required")
		return
	}
	added := make([]ingest.Task, 0, len(headers))
	for _, fh := range headers {
		data, err := readUploadedFile(fh)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, fmt.Sprintf("read %s: %v", fh.Filename, err))
			return
		}
		contentType := fh.Header.Get("Content-Type")
		if contentType == "" {
			contentType = http.DetectContentType(data)
		}
		added = append(added, sess.AddFile(fh.Filename, contentType, data))
	}
	s.logger.Info().Str("session_id", sess.ID).Int("files", len(added)).Msg("resumes added")
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"tasks": added})
}

func readUploadedFile(fh *multipart.FileHeader) ([]byte, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return io.ReadAll(src)
}

func (s *Server) removeFile(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	err := sess.Remove(chi.URLParam(r, "taskID"))
	switch {
	case errors.Is(err, ingest.ErrTaskNotFound):
		httpx.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ingest.ErrTaskNotPending):
		httpx.WriteError(w, http.StatusConflict, err.Error())
	case err != nil:
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

type analyzeRequest struct {
	JobID string `json:"job_id"`
}

// analyze validates the batch and runs it in the background. Clients poll
// GET /sessions/{id} for per-file progress and the final summary.
func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req analyzeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
			return
		}
	}
	if req.JobID == "" {
		req.JobID = r.URL.Query().Get("job_id")
	}

	done, err := s.orch.Start(s.baseCtx, sess, req.JobID)
	switch {
	case ingest.IsValidation(err):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, ingest.ErrBatchRunning):
		httpx.WriteError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	go func() {
		summary := <-done
		s.logger.Info().
			Str("session_id", sess.ID).
			Str("summary", fmt.Sprintf("%d resume(s) analyzed, %d failed", summary.Completed, summary.Failed)).
			Msg("analysis complete")
	}()
	httpx.WriteJSON(w, http.StatusAccepted, sess.Snapshot())
}

func (s *Server) retryPersist(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	task, err := s.orch.RetryPersist(r.Context(), sess, chi.URLParam(r, "taskID"))
	switch {
	case errors.Is(err, ingest.ErrTaskNotFound):
		httpx.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ingest.ErrNotRetryable):
		httpx.WriteError(w, http.StatusConflict, err.Error())
	case err != nil:
		httpx.WriteJSON(w, http.StatusBadGateway, map[string]any{"error": strings.TrimSpace(task.Error), "task": task})
	default:
		httpx.WriteJSON(w, http.StatusOK, task)
	}
}
