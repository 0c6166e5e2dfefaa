package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/esgqa/internal/auth"
	"github.com/seantiz/esgqa/internal/engine"
	"github.com/seantiz/esgqa/internal/model"
)

const maxBodySize = 1 << 20 // 1 MB

// submitQuestionRequest is the JSON body for POST /api/v1/qa.
type submitQuestionRequest struct {
	Question string `json:"question"`
	Company  string `json:"company"`
}

type submitQuestionResponse struct {
	JobID       string    `json:"jobId"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submittedAt"`
}

type listAnswersResponse struct {
	Answers []model.AnswerRecord `json:"answers"`
}

func (s *Server) handleSubmitQuestion(w http.ResponseWriter, r *http.Request) {
	var req submitQuestionRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Question == "" || req.Company == "" {
		s.writeError(w, http.StatusBadRequest, "Question and company are required")
		return
	}

	claims, _ := auth.ClaimsFromContext(r.Context())
	j, err := s.engine.Submit(r.Context(), req.Question, req.Company, claims.UserID)
	switch {
	case errors.Is(err, engine.ErrQuestionTooLong):
		s.writeError(w, http.StatusRequestEntityTooLarge, "Question too long - maximum 10,000 characters")
		return
	case errors.Is(err, engine.ErrInvalidArgument):
		s.writeError(w, http.StatusBadRequest, "Question cannot be empty")
		return
	case err != nil:
		s.logger.Error("submit question", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to submit question")
		return
	}

	s.writeJSON(w, http.StatusAccepted, submitQuestionResponse{
		JobID:       j.ID,
		Status:      j.Status,
		SubmittedAt: j.SubmittedAt,
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobId")

	v, err := s.engine.Get(r.Context(), id)
	switch {
	case errors.Is(err, engine.ErrInvalidArgument):
		s.writeError(w, http.StatusBadRequest, "Invalid job ID format")
		return
	case errors.Is(err, engine.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "Job not found")
		return
	case err != nil:
		s.logger.Error("get job", "job_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	s.writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleListAnswers(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, listAnswersResponse{Answers: s.engine.RecentAnswers()})
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
