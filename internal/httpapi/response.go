package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/roach88/giftswap/internal/exchange"
)

// statusFor maps an exchange error kind to an HTTP status.
func statusFor(kind exchange.ErrorKind) int {
	switch kind {
	case exchange.KindValidation:
		return http.StatusBadRequest
	case exchange.KindState:
		return http.StatusConflict
	case exchange.KindAuth:
		return http.StatusUnauthorized
	case exchange.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err. Only the exchange message is sent to the client;
// causes stay in the log.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var e *exchange.Error
	if !errors.As(err, &e) {
		s.logger.Error("unhandled error", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	status := statusFor(e.Kind)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "kind", e.Kind, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: e.Message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
