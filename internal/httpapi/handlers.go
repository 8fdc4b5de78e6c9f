package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/roach88/giftswap/internal/exchange"
	"github.com/roach88/giftswap/internal/store"
)

type registerRequest struct {
	Name string `json:"name"`
}

type registerResponse struct {
	Token string `json:"token"`
}

type statusResponse struct {
	RegistrationOpen bool    `json:"registrationOpen"`
	AssignmentsReady bool    `json:"assignmentsReady"`
	LastShuffledAt   *string `json:"lastShuffledAt"`
	Participants     int     `json:"participants"`
}

type participantResponse struct {
	Name             string `json:"name"`
	RegisteredAt     string `json:"registeredAt"`
	AssignmentsReady bool   `json:"assignmentsReady"`
	Recipient        string `json:"recipient,omitempty"`
}

type adminParticipant struct {
	Token         string `json:"token"`
	Name          string `json:"name"`
	RegisteredAt  string `json:"registeredAt"`
	IPAddress     string `json:"ipAddress,omitempty"`
	HasAssignment bool   `json:"hasAssignment"`
}

type adminListResponse struct {
	Participants []adminParticipant `json:"participants"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	token, err := s.registry.Register(r.Context(), req.Name, ClientIP(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{Token: token})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toStatus(s.registry.Status()))
}

func (s *Server) handleParticipant(w http.ResponseWriter, r *http.Request) {
	a, err := s.registry.Assignment(r.PathValue("token"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, participantResponse{
		Name:             a.Participant.Name,
		RegisteredAt:     formatTime(a.Participant.RegisteredAt),
		AssignmentsReady: a.Ready,
		Recipient:        a.Recipient,
	})
}

func (s *Server) handleAdminParticipants(w http.ResponseWriter, r *http.Request) {
	entries, err := s.admin.Participants(r.Header.Get(AdminSecretHeader))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := adminListResponse{Participants: make([]adminParticipant, len(entries))}
	for i, e := range entries {
		out.Participants[i] = adminParticipant{
			Token:         e.Token,
			Name:          e.Name,
			RegisteredAt:  formatTime(e.RegisteredAt),
			IPAddress:     e.IPAddress,
			HasAssignment: e.HasAssignment,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAdminShuffle(w http.ResponseWriter, r *http.Request) {
	if err := s.admin.Shuffle(r.Context(), r.Header.Get(AdminSecretHeader)); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("assignments shuffled", "participants", s.registry.Size(), "client_ip", ClientIP(r))
	writeJSON(w, http.StatusOK, toStatus(s.registry.Status()))
}

func (s *Server) handleAdminReopen(w http.ResponseWriter, r *http.Request) {
	if err := s.admin.Reopen(r.Context(), r.Header.Get(AdminSecretHeader)); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("registration reopened", "client_ip", ClientIP(r))
	writeJSON(w, http.StatusOK, toStatus(s.registry.Status()))
}

func toStatus(st exchange.Status) statusResponse {
	out := statusResponse{
		RegistrationOpen: st.RegistrationOpen,
		AssignmentsReady: st.AssignmentsReady,
		Participants:     st.Participants,
	}
	if st.LastShuffledAt != nil {
		at := formatTime(*st.LastShuffledAt)
		out.LastShuffledAt = &at
	}
	return out
}

func formatTime(t time.Time) string {
	return t.UTC().Format(store.TimeLayout)
}
