// Package web holds the HTTP helpers and middleware shared by the REST handlers.
package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Message          string            `json:"message"`
	ValidationErrors map[string]string `json:"validation_errors,omitempty"`
}

func RespondJSON(w http.ResponseWriter, logger *slog.Logger, status int, payload any) {
	if payload == nil {
		w.WriteHeader(status)
		return
	}

	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Error encoding response to JSON", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(response)
}

func RespondError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	RespondJSON(w, logger, status, ErrorResponse{Message: message})
}

// RespondValidationError answers 400 with the failed rule of every field.
func RespondValidationError(w http.ResponseWriter, logger *slog.Logger, message string, fields map[string]string) {
	RespondJSON(w, logger, http.StatusBadRequest, ErrorResponse{Message: message, ValidationErrors: fields})
}

// PathParam returns the decoded value of a chi URL parameter.
// chi routes on RawPath when it is set, so only then is the value still escaped.
func PathParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return raw
	}
	value, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return value
}
