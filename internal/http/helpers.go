package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"scontrini/internal/core"
)

// UserIDHeader carries the opaque user identifier set by the upstream
// authentication layer. Requests without it are rejected.
const UserIDHeader = "X-User-ID"

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

// requireUser rejects unauthenticated requests and rate-limits write
// requests before handing off to the handler.
func (s *Server) requireUser(next func(w http.ResponseWriter, r *http.Request, userID string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "missing "+UserIDHeader+" header")
			return
		}

		if r.Method == http.MethodPost || r.Method == http.MethodDelete {
			if !s.rateLimiter.allow(requestIP(r)) {
				slog.WarnContext(r.Context(), "Rate limit exceeded",
					"client_ip", requestIP(r),
					"method", r.Method,
					"url", r.URL.Path)
				w.Header().Set("Retry-After", "60")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
		}

		next(w, r, userID)
	}
}

// requestIP keys the rate limiter. X-Forwarded-For may carry a
// comma-separated hop list; only the first hop identifies the client.
func requestIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	return dec.Decode(dst)
}

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// writeServiceError maps service-layer errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case isValidationError(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		slog.ErrorContext(r.Context(), "Request failed",
			"error", err,
			"method", r.Method,
			"url", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func isValidationError(err error) bool {
	return errors.Is(err, core.ErrEmptyUser) ||
		errors.Is(err, core.ErrEmptyName) ||
		errors.Is(err, core.ErrEmptyCategory) ||
		errors.Is(err, core.ErrInvalidAmount) ||
		errors.Is(err, core.ErrInvalidQuantity)
}
