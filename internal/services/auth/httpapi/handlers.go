package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/nbd-wtf/go-nostr"
)

type challengeRequest struct {
	Pubkey string `json:"pubkey"`
}

type challengeResponse struct {
	ChallengeID string       `json:"challenge_id"`
	Challenge   string       `json:"challenge"`
	Event       *nostr.Event `json:"event"`
	ExpiresAt   string       `json:"expires_at"`
}

func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request challengeRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	issued, err := s.service.CreateChallenge(r.Context(), request.Pubkey)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, challengeResponse{
		ChallengeID: issued.ID,
		Challenge:   issued.Value,
		Event:       issued.Event,
		ExpiresAt:   formatTime(issued.ExpiresAt),
	})
}

type verifyRequest struct {
	ChallengeID string       `json:"challenge_id"`
	Event       *nostr.Event `json:"event"`
}

type verifyResponse struct {
	Token     string `json:"token"`
	Pubkey    string `json:"pubkey"`
	Npub      string `json:"npub"`
	ExpiresAt string `json:"expires_at"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	session, err := s.service.VerifyChallenge(r.Context(), request.ChallengeID, request.Event)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, verifyResponse{
		Token:     session.Token,
		Pubkey:    session.Pubkey,
		Npub:      session.Npub,
		ExpiresAt: formatTime(session.ExpiresAt),
	})
}

type sessionResponse struct {
	Pubkey    string `json:"pubkey"`
	Npub      string `json:"npub"`
	IssuedAt  string `json:"issued_at"`
	ExpiresAt string `json:"expires_at"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tokenString, err := bearerToken(r)
	if err != nil {
		writeError(w, err)
		return
	}

	info, err := s.service.Authenticate(r.Context(), tokenString)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		Pubkey:    info.Pubkey,
		Npub:      info.Npub,
		IssuedAt:  formatTime(info.IssuedAt),
		ExpiresAt: formatTime(info.ExpiresAt),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tokenString, err := bearerToken(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.service.Revoke(r.Context(), tokenString); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
