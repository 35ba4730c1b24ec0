package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

type UserHandler struct {
	service UserAPI
	timeout time.Duration
}

func NewUserHandler(service UserAPI, timeout time.Duration) *UserHandler {
	return &UserHandler{
		service: service,
		timeout: timeout,
	}
}

type SetAddressRequestDTO struct {
	Address string `json:"address"`
}

// minAddressLength matches the account-facing validation: anything
// shorter cannot be a deliverable address.
const minAddressLength = 20

func (h *UserHandler) SetAddress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user := userFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "Please authenticate")
		return
	}

	var req SetAddressRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if len(req.Address) < minAddressLength {
		respondError(w, http.StatusBadRequest, "invalid_address", "address must be at least 20 characters")
		return
	}

	if err := h.service.SetAddress(ctx, user.Email, req.Address); err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"address": req.Address})
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "Please authenticate")
		return
	}

	respondJSON(w, http.StatusOK, user)
}
