package server

import (
	"encoding/json"
	"net/http"
)

// loginRequest is the JSON body for POST /api/auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse carries the minted token and its lifetime.
type loginResponse struct {
	Token      string `json:"token"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

// LoginAPI handles POST /api/auth/login.
func (s *Server) LoginAPI(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, "HttpClientError", http.StatusBadRequest)
		return
	}

	token := s.auth.Login(req.Username, req.Password)
	if token == "" {
		httpError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	httpResponseJSON(w, loginResponse{
		Token:      token,
		TTLSeconds: int64(s.auth.Lifetime().Seconds()),
	}, http.StatusOK)
}

// ValidateAPI handles GET /api/auth/validate. The auth middleware has
// already accepted the token when this runs.
func (s *Server) ValidateAPI(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// LogoutAPI handles POST /api/auth/logout.
func (s *Server) LogoutAPI(w http.ResponseWriter, r *http.Request) {
	s.auth.Logout(bearerToken(r))
	w.WriteHeader(http.StatusNoContent)
}
