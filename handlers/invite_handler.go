package handlers

import (
	"errors"
	"net/http"

	"github.com/Dosada05/the-match/middleware"
	"github.com/Dosada05/the-match/services"
	"github.com/go-chi/chi/v5"
)

type InviteHandler struct {
	inviteService services.InviteService
}

func NewInviteHandler(is services.InviteService) *InviteHandler {
	return &InviteHandler{inviteService: is}
}

// CreateHandler handles POST /teams/{teamID}/invites
func (h *InviteHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to create an invite")
		return
	}

	teamID, err := getIDFromURL(r, "teamID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	invite, err := h.inviteService.CreateInvite(r.Context(), teamID, currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	payload := jsonResponse{
		"invite": invite,
		"token":  invite.Token,
	}
	if err := writeJSON(w, http.StatusCreated, payload, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ResolveHandler handles GET /invites/{token}
func (h *InviteHandler) ResolveHandler(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		badRequestResponse(w, r, errors.New("missing invite token in URL path"))
		return
	}

	team, err := h.inviteService.ResolveInvite(r.Context(), token)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"team": team}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RevokeHandler handles DELETE /teams/{teamID}/invites/{token}
func (h *InviteHandler) RevokeHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	teamID, err := getIDFromURL(r, "teamID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	token := chi.URLParam(r, "token")
	if token == "" {
		badRequestResponse(w, r, errors.New("missing invite token in URL path"))
		return
	}

	if err := h.inviteService.RevokeInvite(r.Context(), teamID, currentUserID, token); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
