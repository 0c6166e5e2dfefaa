package api

import (
	"encoding/json"
	"net"
	"net/http"
	"time"
)

// retryAfterSeconds is reported to rate limited clients.
const retryAfterSeconds = 60

type upstreamAnswerResponse struct {
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
}

type rateLimitedResponse struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retryAfter"`
}

// handleUpstreamAnswer simulates the upstream answering service: rate limited
// per client address, occasionally failing and always slow.
func (s *Server) handleUpstreamAnswer(w http.ResponseWriter, r *http.Request) {
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

	client := clientAddr(r)
	if !s.limiter.Allow(client) {
		s.logger.Warn("upstream rate limit exceeded", "client", client)
		w.Header().Set("Retry-After", "60")
		s.writeJSON(w, http.StatusTooManyRequests, rateLimitedResponse{
			Error:      "Too Many Requests - Rate limit exceeded",
			RetryAfter: retryAfterSeconds,
		})
		return
	}

	if s.opts.Random.Float64() < s.opts.UpstreamErrorRate {
		s.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	select {
	case <-time.After(s.opts.UpstreamDelay.Pick(s.opts.Random)):
	case <-r.Context().Done():
		return // Client gave up.
	}

	gen := s.engine.Generator()
	s.writeJSON(w, http.StatusOK, upstreamAnswerResponse{
		Answer:     gen.Answer(req.Question, req.Company),
		Confidence: gen.Confidence(),
	})
}

// clientAddr returns the remote IP of r without its port.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
