package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/seantiz/esgqa/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	User      auth.User `json:"user"`
	ExpiresIn int       `json:"expiresIn"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		s.writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	token, user, err := s.auth.Login(req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		s.writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		s.logger.Error("issue token", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	s.writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		User:      user,
		ExpiresIn: int(s.auth.TTL().Seconds()),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

// requireAuth verifies the bearer token and stores its claims on the request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := r.Header.Get("Authorization")
		if !strings.HasPrefix(hdr, "Bearer ") {
			s.writeError(w, http.StatusUnauthorized, "Unauthorized - No token provided")
			return
		}

		claims, err := s.auth.Verify(strings.TrimPrefix(hdr, "Bearer "))
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "Unauthorized - Invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
	})
}

// requireAdmin rejects requests whose claims do not carry the admin role.
// It must run after requireAuth.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok || claims.Role != auth.RoleAdmin {
			s.writeError(w, http.StatusForbidden, "Forbidden - Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
