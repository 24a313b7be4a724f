package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/smartsec-cloud/authcore"
)

// Server wires the authentication service into an HTTP router.
type Server struct {
	svc    *authcore.Service
	router *mux.Router
}

// NewServer builds the router. The returned Server implements http.Handler.
func NewServer(svc *authcore.Service) *Server {
	s := &Server{svc: svc, router: mux.NewRouter()}

	s.router.Use(callerContext)

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/auth").Subrouter()
	api.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/password/expired", s.handleExpiredPassword).Methods(http.MethodPost)

	// Logout names its session by token, so an unknown token is a 400 rather
	// than the middleware's 401. The websocket route validates inside the
	// handler because browsers cannot set headers on upgrade requests.
	api.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	api.HandleFunc("/ws", s.handleSessionSocket).Methods(http.MethodGet)

	authed := api.NewRoute().Subrouter()
	authed.Use(s.requireSession)
	authed.HandleFunc("/logout-all", s.handleLogoutAll).Methods(http.MethodPost)
	authed.HandleFunc("/change-password", s.handleChangePassword).Methods(http.MethodPost)
	authed.HandleFunc("/sessions", s.handleListSessions).Methods(http.MethodGet)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	TenantID string `json:"tenant_id"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	account, err := s.svc.Register(r.Context(), authcore.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		TenantID: req.TenantID,
	})
	if err != nil {
		var policyErr *authcore.PolicyError
		switch {
		case errors.As(err, &policyErr):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"error":       "password rejected by policy",
				"score":       policyErr.Score,
				"issues":      policyErr.Issues,
				"suggestions": policyErr.Suggestions,
			})
		case errors.Is(err, authcore.ErrAccountExists):
			writeError(w, http.StatusConflict, "account already exists")
		default:
			writeServiceError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"id":       account.ID,
		"username": account.Username,
		"email":    account.Email,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	outcome, err := s.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	switch outcome.Kind {
	case authcore.OutcomeAuthenticated:
		body := tokenResponse(outcome.Tokens)
		// No second factor exists in this service; clients still branch on
		// the field.
		body["requires_mfa"] = false
		writeJSON(w, http.StatusOK, body)
	case authcore.OutcomeRateLimited:
		w.Header().Set("Retry-After", retryAfter(outcome.RetryAfter))
		writeError(w, http.StatusTooManyRequests, "too many login attempts")
	case authcore.OutcomeAccountLocked:
		w.Header().Set("Retry-After", retryAfter(outcome.LockedFor))
		writeError(w, http.StatusLocked, "account temporarily locked")
	case authcore.OutcomeAccountDeactivated:
		writeError(w, http.StatusForbidden, "account deactivated")
	case authcore.OutcomePasswordExpired:
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error": "password expired",
			"code":  "password_expired",
		})
	case authcore.OutcomePasswordCompromised:
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error": "password appears in a known breach and must be changed",
			"code":  "password_compromised",
		})
	default:
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeBody(w, r, &req) {
		return
	}

	pair, err := s.svc.RefreshAccess(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, authcore.ErrRefreshRateLimited):
			writeError(w, http.StatusTooManyRequests, "too many refresh attempts")
		case errors.Is(err, authcore.ErrUnauthenticated):
			writeError(w, http.StatusUnauthorized, "invalid refresh token")
		default:
			writeServiceError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse(pair))
}

type logoutRequest struct {
	AccessToken string `json:"access_token"`
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}
	token := req.AccessToken
	if token == "" {
		token = bearerToken(r)
	}

	if err := s.svc.Logout(r.Context(), token); err != nil {
		switch {
		case errors.Is(err, authcore.ErrUnauthenticated), errors.Is(err, authcore.ErrSessionNotFound):
			writeError(w, http.StatusBadRequest, "unknown token")
		default:
			writeServiceError(w, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.LogoutAll(r.Context(), bearerToken(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"sessions_terminated": n})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := s.svc.ChangePassword(r.Context(), bearerToken(r), req.CurrentPassword, req.NewPassword)
	if err != nil {
		writePasswordChangeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}

type expiredPasswordRequest struct {
	Username        string `json:"username"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (s *Server) handleExpiredPassword(w http.ResponseWriter, r *http.Request) {
	var req expiredPasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := s.svc.ChangeExpiredPassword(r.Context(), req.Username, req.CurrentPassword, req.NewPassword)
	if err != nil {
		writePasswordChangeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.svc.ListSessions(r.Context(), bearerToken(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]map[string]interface{}, 0, len(sessions))
	for _, info := range sessions {
		out = append(out, sessionJSON(info))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": out})
}

func writePasswordChangeError(w http.ResponseWriter, err error) {
	var policyErr *authcore.PolicyError
	switch {
	case errors.As(err, &policyErr):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":       "password rejected by policy",
			"score":       policyErr.Score,
			"issues":      policyErr.Issues,
			"suggestions": policyErr.Suggestions,
		})
	case errors.Is(err, authcore.ErrPasswordReuse):
		writeError(w, http.StatusBadRequest, "password was used recently")
	case errors.Is(err, authcore.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, authcore.ErrAccountLocked):
		writeError(w, http.StatusLocked, "account temporarily locked")
	case errors.Is(err, authcore.ErrAccountDeactivated):
		writeError(w, http.StatusForbidden, "account deactivated")
	default:
		writeServiceError(w, err)
	}
}

func tokenResponse(pair *authcore.TokenPair) map[string]interface{} {
	return map[string]interface{}{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"token_type":    pair.TokenType,
		"expires_in":    pair.ExpiresIn,
		"session_id":    pair.SessionID,
	}
}

func sessionJSON(info authcore.SessionInfo) map[string]interface{} {
	return map[string]interface{}{
		"session_id":    info.SessionID,
		"device_name":   info.DeviceName,
		"fingerprint":   info.Fingerprint,
		"ip":            info.IP,
		"user_agent":    info.UserAgent,
		"created_at":    info.CreatedAt.Format(time.RFC3339),
		"last_activity": info.LastActivity.Format(time.RFC3339),
		"expires_at":    info.ExpiresAt.Format(time.RFC3339),
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("httpapi: response encode failed: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authcore.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthenticated")
	case errors.Is(err, authcore.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func retryAfter(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
