package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/bobmcallan/ticker/internal/models"
	"github.com/bobmcallan/ticker/internal/services/watchlist"
)

// ErrorResponse is the standard error format for REST API responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message})
}

// WriteErrorWithCode writes a JSON error response with an error code.
func WriteErrorWithCode(w http.ResponseWriter, statusCode int, message, code string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// WriteServiceError maps a service error onto a status code. The error kind
// is echoed in the code field so clients can branch without parsing messages.
func WriteServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, watchlist.ErrAlreadyTracked):
		WriteErrorWithCode(w, http.StatusConflict, err.Error(), "already_tracked")
		return
	case errors.Is(err, watchlist.ErrNotTracked):
		WriteErrorWithCode(w, http.StatusNotFound, err.Error(), "not_tracked")
		return
	case errors.Is(err, watchlist.ErrInvalidOrder):
		WriteErrorWithCode(w, http.StatusBadRequest, err.Error(), "invalid_order")
		return
	}

	kind := models.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case models.KindNotFound:
		status = http.StatusNotFound
	case models.KindUnknownMarket:
		status = http.StatusBadRequest
	case models.KindUpstream, models.KindMalformed:
		status = http.StatusBadGateway
	case models.KindTimeout:
		status = http.StatusGatewayTimeout
	}
	WriteErrorWithCode(w, status, err.Error(), string(kind))
}

// RequireMethod validates the HTTP method and returns true if it matches.
// If it doesn't match, it writes a 405 response and returns false.
func RequireMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	return false
}

// DecodeJSON reads and decodes JSON from the request body into v.
// Returns false and writes a 400 error if decoding fails.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil {
		WriteError(w, http.StatusBadRequest, "Request body is required")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return false
	}
	return true
}

// PathParam extracts a path parameter from the URL path.
// For a pattern like /api/tickers/{market}/{symbol}, calling PathParam(r, "/api/tickers/", "")
// extracts the {market} part.
func PathParam(r *http.Request, prefix, suffix string) string {
	path := r.URL.Path
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	rest := path[len(prefix):]
	if suffix != "" {
		idx := strings.Index(rest, suffix)
		if idx < 0 {
			return rest
		}
		return rest[:idx]
	}
	// No suffix: return up to the next /
	if idx := strings.Index(rest, "/"); idx >= 0 {
		return rest[:idx]
	}
	return rest
}
