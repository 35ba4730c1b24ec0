package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/shasan419/qkart/internal/apierror"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleServiceError maps the service error taxonomy to an HTTP response.
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *apierror.Error
	if !errors.As(err, &apiErr) {
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	var code string
	switch apiErr.Status {
	case http.StatusNotFound:
		code = "not_found"
	case http.StatusBadRequest:
		code = "invalid_request"
	case http.StatusUnauthorized:
		code = "unauthenticated"
	default:
		code = "internal_error"
	}

	respondError(w, apiErr.Status, code, apiErr.Message)
}
