// Package httpapi exposes the challenge-response handshake over HTTP and
// provides the middleware that guards downstream handlers with it.
package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/HumanjavaEnterprises/nostr-auth-middleware/internal/platform/errors"
	"github.com/HumanjavaEnterprises/nostr-auth-middleware/internal/services/auth"
)

// Server hosts the auth HTTP endpoints.
type Server struct {
	service *auth.Service
}

// NewServer builds a server over the auth service.
func NewServer(service *auth.Service) *Server {
	return &Server{service: service}
}

// RegisterRoutes registers the auth HTTP endpoints on the provided mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	if mux == nil {
		return
	}

	mux.HandleFunc("/auth/nostr/challenge", s.handleChallenge)
	mux.HandleFunc("/auth/nostr/verify", s.handleVerify)
	mux.HandleFunc("/auth/nostr/session", s.handleSession)
	mux.HandleFunc("/auth/nostr/logout", s.handleLogout)
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	_ = encoder.Encode(payload)
}

// writeError maps a domain error to its HTTP status and a stable JSON
// body. Unknown codes surface as a plain 500 so internals never leak.
func writeError(w http.ResponseWriter, err error) {
	code := apperrors.GetCode(err)
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.Printf("auth http error: %v", err)
		writeJSON(w, status, errorResponse{Error: errorBody{
			Code:    string(apperrors.CodeUnknown),
			Message: "internal error",
		}})
		return
	}
	writeJSON(w, status, errorResponse{Error: errorBody{
		Code:    string(code),
		Message: err.Error(),
	}})
}

// bearerToken extracts the token from an Authorization: Bearer header.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", apperrors.New(apperrors.CodeTokenInvalid, "missing bearer token")
	}
	tokenString := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if tokenString == "" {
		return "", apperrors.New(apperrors.CodeTokenInvalid, "missing bearer token")
	}
	return tokenString, nil
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339)
}
